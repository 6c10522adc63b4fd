package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/Evgen-rus/Tg-mtproto/internal/config"
	"github.com/Evgen-rus/Tg-mtproto/internal/keyword"
	"github.com/Evgen-rus/Tg-mtproto/internal/models"
	"github.com/Evgen-rus/Tg-mtproto/internal/relay"
	"github.com/Evgen-rus/Tg-mtproto/internal/server"
	"github.com/Evgen-rus/Tg-mtproto/internal/storage"
)

const romashkaReply = "**ООО \"Ромашка\"**\nИНН 7801234567\n**Выручка:** 1 000 000 ₽"

type apiFixture struct {
	ts     *httptest.Server
	store  *storage.SQLiteStorage
	sender *recordingSender
}

// newAPIServer runs the HTTP API over a fresh store and in-memory index, as `serve` would.
func newAPIServer(t *testing.T, withSender bool) *apiFixture {
	t.Helper()
	cfg := config.Default(t.TempDir())
	cfg.Storage.BleveIndexPath = ""
	store := newTestStore(t)
	idx, err := keyword.NewBleveIndex("")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = idx.Close() })

	f := &apiFixture{store: store, sender: &recordingSender{}}
	var sender relay.Sender
	if withSender {
		sender = f.sender
	}
	session := relay.NewSession(store, sender, relay.WithIndex(idx))
	f.ts = httptest.NewServer(server.NewServer(session, store, idx, cfg, zap.NewNop()).Router())
	t.Cleanup(f.ts.Close)
	return f
}

func (f *apiFixture) postEvent(t *testing.T, text string) models.Outcome {
	t.Helper()
	body, err := json.Marshal(models.ReplyEvent{Kind: models.EventEdited, Text: &text})
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.Post(f.ts.URL+"/api/v1/events", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("events: status %d", resp.StatusCode)
	}
	var out models.Outcome
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	return out
}

func unusedLocal(t *testing.T) localSendFunc {
	return func(ctx context.Context, text string) (*relay.SendResult, error) {
		t.Errorf("local send used for %q while the server answered", text)
		return nil, errors.New("unexpected local send")
	}
}

func TestSendCommand_ReplyLinksToServerQuery(t *testing.T) {
	f := newAPIServer(t, true)
	var warn bytes.Buffer

	res, err := sendCommand(context.Background(), f.ts.URL, "/inn 7801234567", unusedLocal(t), &warn)
	if err != nil {
		t.Fatalf("sendCommand: %v", err)
	}
	if res.QueryID == 0 || res.INN != "7801234567" {
		t.Fatalf("send result = %+v", res)
	}
	if warn.Len() != 0 {
		t.Errorf("unexpected warning: %s", warn.String())
	}
	if sent := f.sender.texts(); len(sent) != 1 || sent[0] != "/inn 7801234567" {
		t.Errorf("sender got %v", sent)
	}

	out := f.postEvent(t, romashkaReply)
	if out.Status != models.OutcomeSaved {
		t.Fatalf("outcome = %+v", out)
	}
	if out.SourceQueryID != res.QueryID || out.Fallback {
		t.Errorf("reply linked to query %d (fallback %v), want %d", out.SourceQueryID, out.Fallback, res.QueryID)
	}
	if n, _ := f.store.CountQueries(context.Background()); n != 1 {
		t.Errorf("queries = %d, want only the sent command", n)
	}
}

func TestSendCommand_FallsBackWhenServerIsDown(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	deadURL := ts.URL
	ts.Close()

	session := relay.NewSession(newTestStore(t), &recordingSender{})
	var warn bytes.Buffer
	res, err := sendCommand(context.Background(), deadURL, "/inn 7801234567", session.SendCommand, &warn)
	if err != nil {
		t.Fatalf("sendCommand: %v", err)
	}
	if res.QueryID == 0 {
		t.Fatalf("send result = %+v", res)
	}
	for _, sub := range []string{"no server at " + deadURL, "not be linked"} {
		if !strings.Contains(warn.String(), sub) {
			t.Errorf("warning missing %q: %s", sub, warn.String())
		}
	}
}

func TestSendCommand_ServerErrorIsNotRetriedLocally(t *testing.T) {
	f := newAPIServer(t, false)
	var warn bytes.Buffer

	_, err := sendCommand(context.Background(), f.ts.URL, "/inn 7801234567", unusedLocal(t), &warn)
	if err == nil || !strings.Contains(err.Error(), "503") {
		t.Fatalf("err = %v, want the server's 503", err)
	}
	if errors.Is(err, errUnreachable) {
		t.Error("an answering server is not unreachable")
	}
}

func TestClientReadPaths(t *testing.T) {
	f := newAPIServer(t, true)
	ctx := context.Background()
	res, err := sendViaHTTP(ctx, f.ts.URL, "/inn 7801234567")
	if err != nil {
		t.Fatal(err)
	}
	f.postEvent(t, romashkaReply)

	t.Run("results by inn", func(t *testing.T) {
		got, err := resultsViaHTTP(ctx, f.ts.URL, resultsQuery{INN: "7801234567"})
		if err != nil {
			t.Fatal(err)
		}
		if len(got) != 1 || got[0].INN != "7801234567" || got[0].SourceQueryID != res.QueryID {
			t.Errorf("results = %+v", got)
		}
	})

	t.Run("results by query", func(t *testing.T) {
		got, err := resultsViaHTTP(ctx, f.ts.URL, resultsQuery{QueryID: res.QueryID})
		if err != nil {
			t.Fatal(err)
		}
		if len(got) != 1 {
			t.Errorf("results = %+v", got)
		}
	})

	t.Run("results page", func(t *testing.T) {
		got, err := resultsViaHTTP(ctx, f.ts.URL, resultsQuery{Limit: 10})
		if err != nil {
			t.Fatal(err)
		}
		if len(got) != 1 {
			t.Errorf("results = %+v", got)
		}
	})

	t.Run("unknown inn", func(t *testing.T) {
		_, err := resultsViaHTTP(ctx, f.ts.URL, resultsQuery{INN: "7801234568"})
		if err == nil || !strings.Contains(err.Error(), "404") {
			t.Errorf("err = %v, want 404", err)
		}
	})

	t.Run("search", func(t *testing.T) {
		hits, err := searchViaHTTP(ctx, f.ts.URL, "ромашка", 5, false)
		if err != nil {
			t.Fatal(err)
		}
		if len(hits) != 1 || hits[0].Result.INN != "7801234567" {
			t.Errorf("hits = %+v", hits)
		}
	})

	t.Run("status", func(t *testing.T) {
		st, err := statusViaHTTP(ctx, f.ts.URL)
		if err != nil {
			t.Fatal(err)
		}
		if st.Queries != 1 || st.Results != 1 || st.Indexed == nil || *st.Indexed != 1 {
			t.Errorf("status = %+v", st)
		}
	})

	t.Run("export", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "out.xlsx")
		n, err := exportViaHTTP(ctx, f.ts.URL, path)
		if err != nil {
			t.Fatal(err)
		}
		if n != 1 {
			t.Errorf("rows = %d, want 1", n)
		}
		x, err := excelize.OpenFile(path)
		if err != nil {
			t.Fatalf("open workbook: %v", err)
		}
		defer x.Close()
		rows, _ := x.GetRows("inn_results")
		if len(rows) != 2 || rows[1][0] != "7801234567" {
			t.Errorf("rows = %v", rows)
		}
	})
}

func TestDefaultServerURL(t *testing.T) {
	cfg := config.Default(t.TempDir())
	for host, want := range map[string]string{
		"":          "http://localhost:8080",
		"0.0.0.0":   "http://localhost:8080",
		"127.0.0.1": "http://127.0.0.1:8080",
		"::1":       "http://[::1]:8080",
	} {
		cfg.Server.Host = host
		if got := defaultServerURL(cfg); got != want {
			t.Errorf("defaultServerURL(host %q) = %q, want %q", host, got, want)
		}
	}
}
