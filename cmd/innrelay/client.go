package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Evgen-rus/Tg-mtproto/internal/cli"
	"github.com/Evgen-rus/Tg-mtproto/internal/config"
	"github.com/Evgen-rus/Tg-mtproto/internal/models"
	"github.com/Evgen-rus/Tg-mtproto/internal/relay"
)

// errUnreachable marks transport failures: nothing answered at the server URL.
var errUnreachable = errors.New("server unreachable")

var httpClient = &http.Client{Timeout: 30 * time.Second}

// defaultServerURL is the address a local `innrelay serve` listens on.
func defaultServerURL(cfg *config.Config) string {
	host := cfg.Server.Host
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "localhost"
	}
	return "http://" + net.JoinHostPort(host, strconv.Itoa(cfg.Server.Port))
}

func doRequest(ctx context.Context, method, rawURL string, body io.Reader, contentType string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errUnreachable, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return resp, nil
}

func getJSON(ctx context.Context, rawURL string, v interface{}) error {
	resp, err := doRequest(ctx, http.MethodGet, rawURL, nil, "")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return json.NewDecoder(resp.Body).Decode(v)
}

func postJSON(ctx context.Context, rawURL string, in, out interface{}) error {
	body, err := json.Marshal(in)
	if err != nil {
		return err
	}
	resp, err := doRequest(ctx, http.MethodPost, rawURL, bytes.NewReader(body), "application/json")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return json.NewDecoder(resp.Body).Decode(out)
}

// sendViaHTTP hands the command to a running server so its session owns the pending entry.
func sendViaHTTP(ctx context.Context, serverURL, text string) (*relay.SendResult, error) {
	var res relay.SendResult
	if err := postJSON(ctx, strings.TrimRight(serverURL, "/")+"/api/v1/commands", models.CommandInput{Text: text}, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func searchViaHTTP(ctx context.Context, serverURL, query string, limit int, fuzzy bool) ([]cli.SearchHit, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("limit", strconv.Itoa(limit))
	if fuzzy {
		params.Set("fuzzy", "true")
	}
	var resp struct {
		Hits []cli.SearchHit `json:"hits"`
	}
	if err := getJSON(ctx, strings.TrimRight(serverURL, "/")+"/api/v1/search?"+params.Encode(), &resp); err != nil {
		return nil, err
	}
	return resp.Hits, nil
}

func resultsViaHTTP(ctx context.Context, serverURL string, q resultsQuery) ([]*models.Result, error) {
	base := strings.TrimRight(serverURL, "/") + "/api/v1"
	switch {
	case q.INN != "":
		var r models.Result
		if err := getJSON(ctx, base+"/results/"+url.PathEscape(q.INN), &r); err != nil {
			return nil, err
		}
		return []*models.Result{&r}, nil
	case q.QueryID > 0:
		var resp struct {
			Results []*models.Result `json:"results"`
		}
		if err := getJSON(ctx, fmt.Sprintf("%s/queries/%d/results", base, q.QueryID), &resp); err != nil {
			return nil, err
		}
		return resp.Results, nil
	default:
		params := url.Values{}
		params.Set("offset", strconv.Itoa(q.Offset))
		params.Set("limit", strconv.Itoa(q.Limit))
		var resp struct {
			Results []*models.Result `json:"results"`
		}
		if err := getJSON(ctx, base+"/results?"+params.Encode(), &resp); err != nil {
			return nil, err
		}
		return resp.Results, nil
	}
}

// exportViaHTTP downloads the workbook to path and returns the row count the server reported.
func exportViaHTTP(ctx context.Context, serverURL, path string) (int, error) {
	resp, err := doRequest(ctx, http.MethodGet, strings.TrimRight(serverURL, "/")+"/api/v1/export", nil, "")
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	f, err := os.Create(path)
	if err != nil {
		return 0, err
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		return 0, err
	}
	if err := f.Close(); err != nil {
		return 0, err
	}
	n, _ := strconv.Atoi(resp.Header.Get("X-Row-Count"))
	return n, nil
}

// statusResponse is the shape of GET /api/v1/status.
type statusResponse struct {
	Queries        int64   `json:"queries"`
	Results        int64   `json:"results"`
	Pending        int     `json:"pending"`
	Indexed        *uint64 `json:"indexed"`
	DiskUsageBytes int64   `json:"disk_usage_bytes"`
	Footprint      struct {
		DatabaseBytes int64 `json:"database_bytes"`
		IndexBytes    int64 `json:"index_bytes"`
	} `json:"footprint"`
	Config struct {
		DatabasePath   string `json:"database_path"`
		BleveIndexPath string `json:"bleve_index_path"`
	} `json:"config"`
}

func (r statusResponse) toStatus() cli.Status {
	return cli.Status{
		DatabasePath:   r.Config.DatabasePath,
		IndexPath:      r.Config.BleveIndexPath,
		Queries:        r.Queries,
		Results:        r.Results,
		Indexed:        r.Indexed,
		DatabaseBytes:  r.Footprint.DatabaseBytes,
		IndexBytes:     r.Footprint.IndexBytes,
		DiskUsageBytes: r.DiskUsageBytes,
	}
}

func statusViaHTTP(ctx context.Context, serverURL string) (cli.Status, error) {
	var resp statusResponse
	if err := getJSON(ctx, strings.TrimRight(serverURL, "/")+"/api/v1/status", &resp); err != nil {
		return cli.Status{}, err
	}
	return resp.toStatus(), nil
}
