package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/Evgen-rus/Tg-mtproto/internal/config"
	"github.com/Evgen-rus/Tg-mtproto/internal/keyword"
	"github.com/Evgen-rus/Tg-mtproto/internal/models"
	"github.com/Evgen-rus/Tg-mtproto/internal/relay"
	"github.com/Evgen-rus/Tg-mtproto/internal/storage"
)

func TestSearchArgsReorder(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected []string
	}{
		{
			name:     "flags after query are moved first",
			args:     []string{"ромашка", "-limit", "5"},
			expected: []string{"-limit", "5", "ромашка"},
		},
		{
			name:     "flags first returns unchanged",
			args:     []string{"-fuzzy", "ромашка"},
			expected: []string{"-fuzzy", "ромашка"},
		},
		{
			name:     "query only returns unchanged",
			args:     []string{"ооо ромашка"},
			expected: []string{"ооо ромашка"},
		},
		{
			name:     "empty args returns unchanged",
			args:     []string{},
			expected: []string{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := searchArgsReorder(tt.args)
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("searchArgsReorder() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestBuildSearchQuery(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected string
	}{
		{"single word", []string{"ромашка"}, "ромашка"},
		{"command", []string{"/inn", "7801234567"}, "/inn 7801234567"},
		{"empty args", []string{}, ""},
		{"blank args", []string{"  ", "  "}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := buildSearchQuery(tt.args); got != tt.expected {
				t.Errorf("buildSearchQuery(%v) = %q, want %q", tt.args, got, tt.expected)
			}
		})
	}
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{config.EnvBot, config.EnvDBPath, config.EnvLogLevel, config.EnvInboxDir, config.EnvOutboxDir} {
		t.Setenv(k, "")
	}
}

func TestLoadConfig_defaultsWhenNoFile(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	chdir(t, dir)

	cfg, resolved, err := loadConfig(defaultConfigPath)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if resolved != "" && resolved != defaultConfigPath {
		t.Errorf("resolved = %q", resolved)
	}
	if resolved == "" && cfg.Storage.DatabasePath != filepath.Join(dir, "tg_results.db") {
		t.Errorf("DatabasePath = %q", cfg.Storage.DatabasePath)
	}
}

func TestLoadConfig_cwdConfigAndEnvFile(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	chdir(t, dir)
	yaml := "bot:\n  username: \"@from_file\"\nstorage:\n  database_path: ./file.db\n"
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("BOT=@from_env\nLOG_LEVEL=DEBUG\n"), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, resolved, err := loadConfig(defaultConfigPath)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if resolved != filepath.Join(dir, "config.yaml") {
		t.Errorf("resolved = %q", resolved)
	}
	if cfg.Bot.Username != "@from_env" {
		t.Errorf("env should override file, got %q", cfg.Bot.Username)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q", cfg.LogLevel)
	}
	if cfg.Storage.DatabasePath != filepath.Join(dir, "file.db") {
		t.Errorf("DatabasePath = %q", cfg.Storage.DatabasePath)
	}
}

func TestLoadConfig_invalid(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	chdir(t, dir)
	path := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(path, []byte("log_level: loud\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, _, err := loadConfig(path); err == nil {
		t.Fatal("expected validation error")
	}
}

type recordingSender struct {
	mu   sync.Mutex
	sent []string
}

func (r *recordingSender) Send(_ context.Context, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, text)
	return nil
}

func (r *recordingSender) texts() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.sent...)
}

func newTestStore(t *testing.T) *storage.SQLiteStorage {
	t.Helper()
	store, err := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "tg.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestChatLoop(t *testing.T) {
	store := newTestStore(t)
	sender := &recordingSender{}
	session := relay.NewSession(store, sender)

	in := strings.NewReader("/inn 7801234567\n\n/start\n/exit\n/inn 7801234568\n")
	var out bytes.Buffer
	if err := chatLoop(context.Background(), in, &out, session); err != nil {
		t.Fatalf("chatLoop: %v", err)
	}
	if !reflect.DeepEqual(sender.sent, []string{"/inn 7801234567", "/start"}) {
		t.Errorf("sent = %v", sender.sent)
	}
	if out.String() != "[you] /inn 7801234567\n[you] /start\n" {
		t.Errorf("output = %q", out.String())
	}
	if n, _ := store.CountQueries(context.Background()); n != 1 {
		t.Errorf("only the INN command is logged, got %d queries", n)
	}
}

func TestChatLoop_EOF(t *testing.T) {
	session := relay.NewSession(newTestStore(t), &recordingSender{})
	var out bytes.Buffer
	if err := chatLoop(context.Background(), strings.NewReader("/inn 7801234567"), &out, session); err != nil {
		t.Fatalf("chatLoop: %v", err)
	}
	if !strings.Contains(out.String(), "[you] /inn 7801234567") {
		t.Errorf("output = %q", out.String())
	}
}

func TestEchoHandler(t *testing.T) {
	store := newTestStore(t)
	session := relay.NewSession(store, &recordingSender{})
	var out bytes.Buffer
	handle := echoHandler(&out, session, 0)

	searching := "Идёт поиск..."
	if got := handle(context.Background(), models.ReplyEvent{Kind: models.EventNew, Text: &searching}); got.Status != models.OutcomeSkipped {
		t.Errorf("new message outcome = %+v", got)
	}
	reply := "**ООО \"Ромашка\"**\nИНН 7801234567"
	got := handle(context.Background(), models.ReplyEvent{Kind: models.EventEdited, Text: &reply, Buttons: [][]string{{"Excel"}}})
	if got.Status != models.OutcomeSaved {
		t.Fatalf("edit outcome = %+v", got)
	}
	s := out.String()
	for _, sub := range []string{"< Идёт поиск...", "< [edit] **ООО", "  [Excel]", "saved inn=7801234567"} {
		if !strings.Contains(s, sub) {
			t.Errorf("output missing %q:\n%s", sub, s)
		}
	}
}

func TestReindexAndLocalStatus(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	qid, err := store.LogQuery(ctx, "/inn 7801234567")
	if err != nil {
		t.Fatal(err)
	}
	for _, inn := range []string{"7801234567", "7801234568", "500100732259"} {
		rec := &models.Record{INN: inn, RawText: "ИНН " + inn}
		rec.CompanyName = models.Ptr("ООО Компания " + inn)
		if err := store.UpsertResult(ctx, qid, rec); err != nil {
			t.Fatal(err)
		}
	}
	idx, err := keyword.NewBleveIndex("")
	if err != nil {
		t.Fatal(err)
	}
	defer idx.Close()

	n, err := reindex(ctx, store, idx)
	if err != nil {
		t.Fatalf("reindex: %v", err)
	}
	if n != 3 {
		t.Errorf("reindexed %d, want 3", n)
	}

	cfg := config.Default(t.TempDir())
	cfg.Storage.BleveIndexPath = ""
	c := &Components{Config: cfg, Logger: zap.NewNop(), Storage: store, Index: idx}
	hits, err := searchLocal(ctx, c, "500100732259", 5, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 || hits[0].Result.INN != "500100732259" {
		t.Errorf("hits = %+v", hits)
	}

	st, err := localStatus(ctx, c)
	if err != nil {
		t.Fatalf("localStatus: %v", err)
	}
	if st.Queries != 1 || st.Results != 3 || st.Indexed == nil || *st.Indexed != 3 {
		t.Errorf("status = %+v", st)
	}

	c.Index = nil
	st, err = localStatus(ctx, c)
	if err != nil {
		t.Fatalf("localStatus without index: %v", err)
	}
	if st.Indexed != nil || st.Results != 3 {
		t.Errorf("status without index = %+v", st)
	}
}

func TestSearchLocal_DropsStaleIndexEntries(t *testing.T) {
	ctx := context.Background()
	idx, err := keyword.NewBleveIndex("")
	if err != nil {
		t.Fatal(err)
	}
	defer idx.Close()
	ghost := &models.Result{Record: models.Record{INN: "7801234599", CompanyDetails: models.CompanyDetails{CompanyName: models.Ptr("ООО Призрак")}}}
	if err := idx.Index(ctx, ghost); err != nil {
		t.Fatal(err)
	}

	c := &Components{Config: config.Default(t.TempDir()), Logger: zap.NewNop(), Storage: newTestStore(t), Index: idx}
	hits, err := searchLocal(ctx, c, "призрак", 5, nil)
	if err != nil {
		t.Fatalf("searchLocal: %v", err)
	}
	if len(hits) != 0 {
		t.Errorf("hits = %+v, want none", hits)
	}
	if n, _ := idx.DocCount(); n != 0 {
		t.Errorf("DocCount = %d, stale entry should be deleted", n)
	}
}

func TestInitializeComponents(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default(dir)

	c, err := initializeComponents(cfg, zap.NewNop(), componentOptions{})
	if err != nil {
		t.Fatalf("initializeComponents: %v", err)
	}
	if c.Outbox != nil {
		t.Error("no bot configured, outbox should be nil")
	}
	if c.Index != nil {
		t.Error("index opened without withIndex")
	}
	if _, err := c.Session.SendCommand(context.Background(), "/inn 7801234567"); err != relay.ErrNoSender {
		t.Errorf("SendCommand err = %v, want ErrNoSender", err)
	}
	c.Close()

	cfg.Bot.Username = "@registry_bot"
	c, err = initializeComponents(cfg, zap.NewNop(), componentOptions{withIndex: true, resetIndex: true})
	if err != nil {
		t.Fatalf("initializeComponents: %v", err)
	}
	defer c.Close()
	if _, err := c.Session.SendCommand(context.Background(), "/inn 7801234567"); err != nil {
		t.Fatalf("SendCommand: %v", err)
	}
	entries, err := os.ReadDir(cfg.Spool.OutboxDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || filepath.Ext(entries[0].Name()) != ".json" {
		t.Errorf("outbox entries = %v", entries)
	}
}

func TestInitializeComponents_RunsBesideOpenIndex(t *testing.T) {
	cfg := config.Default(t.TempDir())
	held, err := openIndex(cfg.Storage.BleveIndexPath, false)
	if err != nil {
		t.Fatalf("openIndex: %v", err)
	}
	defer held.Close()

	type opened struct {
		c   *Components
		err error
	}
	done := make(chan opened, 1)
	go func() {
		c, err := initializeComponents(cfg, zap.NewNop(), componentOptions{})
		done <- opened{c, err}
	}()

	select {
	case got := <-done:
		if got.err != nil {
			t.Fatalf("initializeComponents: %v", got.err)
		}
		defer got.c.Close()
		if got.c.Index != nil {
			t.Error("index should stay closed")
		}
		st, err := localStatus(context.Background(), got.c)
		if err != nil {
			t.Fatalf("localStatus: %v", err)
		}
		if st.Indexed != nil {
			t.Errorf("Indexed = %d, want unset", *st.Indexed)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("initializeComponents blocked on the index held by another opener")
	}
}

func TestWriteDefaultConfig(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "etc", "config.yaml")

	if err := writeDefaultConfig(path, false); err != nil {
		t.Fatalf("writeDefaultConfig: %v", err)
	}
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("written config does not validate: %v", err)
	}
	if want := filepath.Join(dir, "etc", "tg_results.db"); cfg.Storage.DatabasePath != want {
		t.Errorf("DatabasePath = %q, want %q", cfg.Storage.DatabasePath, want)
	}
	if cfg.Server.Port != 8080 || cfg.Bot.CommandPrefix != "/inn" {
		t.Errorf("defaults lost: %+v", cfg)
	}

	if err := writeDefaultConfig(path, false); err == nil {
		t.Error("expected an error for an existing file without -force")
	}
	if err := writeDefaultConfig(path, true); err != nil {
		t.Errorf("writeDefaultConfig with force: %v", err)
	}
}

// chdir is a stand-in for testing.T.Chdir (Go 1.24+): it switches the working
// directory for the duration of the test and restores it on cleanup.
func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PWD", dir)
	t.Cleanup(func() {
		if err := os.Chdir(wd); err != nil {
			t.Fatal(err)
		}
	})
}
