// Package cli provides output helpers for the innrelay command line.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/Evgen-rus/Tg-mtproto/internal/export"
	"github.com/Evgen-rus/Tg-mtproto/internal/models"
	"github.com/Evgen-rus/Tg-mtproto/pkg/utils"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// NoTextPlaceholder is shown for bot messages that carry no text.
const NoTextPlaceholder = "[сообщение без текста]"

const rule = "─────────────────────────────────────────────────────────"

// ParseFormat maps a --format flag value to an OutputFormat. Unknown values fall back to text.
func ParseFormat(s string) OutputFormat {
	if strings.EqualFold(strings.TrimSpace(s), string(OutputJSON)) {
		return OutputJSON
	}
	return OutputText
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteResults writes stored results to w in the given format.
func WriteResults(w io.Writer, results []*models.Result, format OutputFormat) error {
	if format == OutputJSON {
		if results == nil {
			results = []*models.Result{}
		}
		return writeJSON(w, results)
	}
	fmt.Fprintf(w, "\n%d result(s)\n\n", len(results))
	for _, r := range results {
		writeOneResult(w, r, "")
	}
	return nil
}

// SearchHit pairs a stored result with its index score.
type SearchHit struct {
	Score  float64        `json:"score"`
	Result *models.Result `json:"result"`
}

// WriteSearchHits writes search hits to w in the given format.
func WriteSearchHits(w io.Writer, query string, hits []SearchHit, format OutputFormat) error {
	if format == OutputJSON {
		if hits == nil {
			hits = []SearchHit{}
		}
		return writeJSON(w, map[string]interface{}{"query": query, "hits": hits})
	}
	fmt.Fprintf(w, "\nFound %d results for %q\n\n", len(hits), query)
	for i, h := range hits {
		writeOneResult(w, h.Result, fmt.Sprintf("Rank: %d | Score: %.4f", i+1, h.Score))
	}
	return nil
}

func writeOneResult(w io.Writer, r *models.Result, header string) {
	fmt.Fprintln(w, rule)
	if header != "" {
		fmt.Fprintln(w, header)
	}
	fmt.Fprintf(w, "ИНН: %s\n", r.INN)
	if r.CompanyName != nil {
		fmt.Fprintf(w, "Название: %s\n", *r.CompanyName)
	}
	if r.CompanyStatus != nil {
		fmt.Fprintf(w, "Статус: %s\n", *r.CompanyStatus)
	}
	if r.DirectorName != nil {
		fmt.Fprintf(w, "Руководитель: %s\n", *r.DirectorName)
	}
	if r.Revenue2024 != nil {
		fmt.Fprintf(w, "Выручка 2024: %d\n", *r.Revenue2024)
	}
	if len(r.Founders) > 0 {
		fmt.Fprintf(w, "Учредители:\n%s\n", export.FormatFounders(r.Founders))
	}
	fmt.Fprintf(w, "Запрос #%d | обновлено %s\n", r.SourceQueryID, r.UpdatedAt.UTC().Format("2006-01-02 15:04:05"))
	fmt.Fprintln(w)
}

// WriteOutcome writes what the relay did with one event.
func WriteOutcome(w io.Writer, out models.Outcome, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, out)
	}
	var b strings.Builder
	b.WriteString(out.Status)
	if out.INN != "" {
		fmt.Fprintf(&b, " inn=%s", out.INN)
	}
	if out.SourceQueryID != 0 {
		fmt.Fprintf(&b, " query=%d", out.SourceQueryID)
		if out.Fallback {
			b.WriteString(" (auto)")
		}
	}
	if out.Reason != "" {
		fmt.Fprintf(&b, ": %s", out.Reason)
	}
	if len(out.Missing) > 0 {
		fmt.Fprintf(&b, " [missing: %s]", strings.Join(out.Missing, ", "))
	}
	if out.EventID != "" {
		fmt.Fprintf(&b, " (%s)", out.EventID)
	}
	_, err := fmt.Fprintln(w, b.String())
	return err
}

// WriteParsed writes the extracted fields of a reply.
func WriteParsed(w io.Writer, f *models.Fields, format OutputFormat) error {
	missing := f.MissingFields()
	if format == OutputJSON {
		return writeJSON(w, map[string]interface{}{"fields": f, "missing": missing})
	}
	inn := "-"
	if f.INN != nil {
		inn = *f.INN
	}
	fmt.Fprintf(w, "inn: %s\n", inn)
	data, err := json.MarshalIndent(f.CompanyDetails, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "%s\n", data)
	if len(missing) > 0 {
		fmt.Fprintf(w, "missing: %s\n", strings.Join(missing, ", "))
	}
	return nil
}

// Status is the summary printed by the status command.
type Status struct {
	DatabasePath   string  `json:"database_path"`
	IndexPath      string  `json:"bleve_index_path,omitempty"`
	Queries        int64   `json:"queries"`
	Results        int64   `json:"results"`
	Indexed        *uint64 `json:"indexed,omitempty"`
	DatabaseBytes  int64   `json:"database_bytes"`
	IndexBytes     int64   `json:"index_bytes"`
	DiskUsageBytes int64   `json:"disk_usage_bytes"`
}

// WriteStatus writes the status summary.
func WriteStatus(w io.Writer, s Status, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, s)
	}
	fmt.Fprintf(w, "Database:   %s\n", s.DatabasePath)
	if s.IndexPath != "" {
		fmt.Fprintf(w, "Index:      %s\n", s.IndexPath)
	}
	fmt.Fprintf(w, "Queries:    %d\n", s.Queries)
	fmt.Fprintf(w, "Results:    %d\n", s.Results)
	if s.Indexed != nil {
		fmt.Fprintf(w, "Indexed:    %d\n", *s.Indexed)
	}
	fmt.Fprintf(w, "Disk usage: %s (db %s, index %s)\n",
		FormatBytes(s.DiskUsageBytes), FormatBytes(s.DatabaseBytes), FormatBytes(s.IndexBytes))
	return nil
}

// FormatBytes renders n using binary units.
func FormatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

// WriteOutgoing echoes a command typed in chat mode.
func WriteOutgoing(w io.Writer, text string) {
	fmt.Fprintf(w, "[you] %s\n", text)
}

// WriteIncoming prints a bot message in chat mode. Edits are marked, buttons are listed row by row.
func WriteIncoming(w io.Writer, ev models.ReplyEvent, maxLen int) {
	prefix := "<"
	if ev.Kind == models.EventEdited {
		prefix = "< [edit]"
	}
	text := ev.TextOrEmpty()
	if strings.TrimSpace(text) == "" {
		text = NoTextPlaceholder
	}
	fmt.Fprintf(w, "%s %s\n", prefix, utils.Truncate(text, maxLen))
	for _, row := range ev.Buttons {
		fmt.Fprintf(w, "  [%s]\n", strings.Join(row, "] ["))
	}
}
