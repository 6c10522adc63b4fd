package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Evgen-rus/Tg-mtproto/internal/export"
	"github.com/Evgen-rus/Tg-mtproto/internal/keyword"
	"github.com/Evgen-rus/Tg-mtproto/internal/models"
	"github.com/Evgen-rus/Tg-mtproto/internal/normalize"
	"github.com/Evgen-rus/Tg-mtproto/internal/relay"
	"github.com/Evgen-rus/Tg-mtproto/internal/storage"
)

const maxBodyBytes = 1 << 20

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func (s *Server) handleSendCommand(w http.ResponseWriter, r *http.Request) {
	var input models.CommandInput
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&input); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := input.Validate(); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.logger.Debug("send command request", zap.String("text", input.Text))
	res, err := s.session.SendCommand(r.Context(), input.Text)
	switch {
	case errors.Is(err, relay.ErrNoSender):
		s.respondError(w, http.StatusServiceUnavailable, err.Error())
		return
	case err != nil && res != nil:
		// Logged and pending, but the bridge did not take it.
		s.logger.Error("send command failed", zap.Error(err))
		s.respondJSON(w, http.StatusBadGateway, map[string]interface{}{"error": err.Error(), "command": res})
		return
	case err != nil:
		s.logger.Error("send command failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusAccepted, res)
}

func (s *Server) handleEvent(w http.ResponseWriter, r *http.Request) {
	var ev models.ReplyEvent
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&ev); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if ev.Kind == "" {
		ev.Kind = models.EventEdited
	}
	if ev.Kind != models.EventNew && ev.Kind != models.EventEdited {
		s.respondError(w, http.StatusBadRequest, "kind must be \"new\" or \"edited\"")
		return
	}
	if ev.ID == "" {
		ev.ID = uuid.New().String()
	}
	out := s.session.HandleEvent(r.Context(), ev)
	s.respondJSON(w, http.StatusOK, out)
}

type parseResponse struct {
	Fields  *models.Fields `json:"fields"`
	Missing []string       `json:"missing"`
	Valid   bool           `json:"valid"`
	Reason  string         `json:"reason,omitempty"`
}

// handleParse extracts fields without storing anything. The body is the reply text,
// or a JSON object {"text": "..."} when sent as application/json.
func (s *Server) handleParse(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "failed to read body")
		return
	}
	text := string(body)
	if mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type")); mt == "application/json" {
		var in struct {
			Text string `json:"text"`
		}
		if err := json.NewDecoder(bytes.NewReader(body)).Decode(&in); err != nil {
			s.respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		text = in.Text
	}

	fields := s.session.Extract(text)
	resp := parseResponse{Fields: fields, Missing: fields.MissingFields(), Valid: true}
	if _, err := s.normalizer.Normalize(fields); err != nil {
		resp.Valid = false
		resp.Reason = err.Error()
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListResults(w http.ResponseWriter, r *http.Request) {
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	if offset < 0 {
		offset = 0
	}
	limit := s.limit(r)
	results, err := s.storage.ListResults(r.Context(), offset, limit)
	if err != nil {
		s.logger.Error("list results failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if results == nil {
		results = []*models.Result{}
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"results": results,
		"offset":  offset,
		"limit":   limit,
	})
}

func (s *Server) handleGetResult(w http.ResponseWriter, r *http.Request) {
	inn := chi.URLParam(r, "inn")
	if !normalize.IsINN(inn) {
		s.respondError(w, http.StatusBadRequest, "inn must be 10 or 12 digits")
		return
	}
	res, err := s.storage.GetResult(r.Context(), inn)
	if errors.Is(err, storage.ErrNotFound) {
		s.respondError(w, http.StatusNotFound, "result not found")
		return
	}
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, res)
}

func (s *Server) handleQueryResults(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		s.respondError(w, http.StatusBadRequest, "invalid query id")
		return
	}
	q, err := s.storage.GetQuery(r.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		s.respondError(w, http.StatusNotFound, "query not found")
		return
	}
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	results, err := s.storage.ListResultsByQuery(r.Context(), id)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if results == nil {
		results = []*models.Result{}
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"query": q, "results": results})
}

type searchHit struct {
	Score  float64        `json:"score"`
	Result *models.Result `json:"result"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if s.index == nil {
		s.respondError(w, http.StatusNotImplemented, "search index not enabled")
		return
	}
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		s.respondError(w, http.StatusBadRequest, "q is required")
		return
	}
	opts := &keyword.SearchOptions{}
	if s.config != nil {
		opts.NameBoost = s.config.Search.NameBoost
		opts.FuzzyEnabled = s.config.Search.Fuzzy
	}
	if v := r.URL.Query().Get("fuzzy"); v != "" {
		opts.FuzzyEnabled, _ = strconv.ParseBool(v)
	}
	s.logger.Debug("search request", zap.String("query", q))
	hits, err := s.index.Search(r.Context(), q, s.limit(r), opts)
	if err != nil {
		s.logger.Error("search failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	out := make([]searchHit, 0, len(hits))
	for _, h := range hits {
		res, err := s.storage.GetResult(r.Context(), h.INN)
		if errors.Is(err, storage.ErrNotFound) {
			// Stale index entry; drop it so it stops matching.
			s.logger.Debug("search hit not in storage", zap.String("inn", h.INN))
			if err := s.index.Delete(r.Context(), h.INN); err != nil {
				s.logger.Warn("failed to drop stale index entry", zap.String("inn", h.INN), zap.Error(err))
			}
			continue
		}
		if err != nil {
			s.logger.Error("search: get result failed", zap.String("inn", h.INN), zap.Error(err))
			continue
		}
		out = append(out, searchHit{Score: h.Score, Result: res})
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"query": q, "hits": out})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	rows, err := s.storage.ListExportRows(r.Context())
	if err != nil {
		s.logger.Error("export failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	var buf bytes.Buffer
	if err := export.Write(&buf, rows); err != nil {
		s.logger.Error("export failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	name := export.DefaultFileName(s.now())
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	w.Header().Set("X-Row-Count", strconv.Itoa(len(rows)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	queries, err := s.storage.CountQueries(ctx)
	if err != nil {
		s.logger.Error("status: count queries failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	results, err := s.storage.CountResults(ctx)
	if err != nil {
		s.logger.Error("status: count results failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	resp := map[string]interface{}{
		"queries": queries,
		"results": results,
		"pending": s.session.Pending().Len(),
	}
	if s.index != nil {
		if n, err := s.index.DocCount(); err == nil {
			resp["indexed"] = n
		}
	}
	if s.config != nil {
		resp["config"] = map[string]interface{}{
			"bot":              s.config.Bot.Username,
			"database_path":    s.config.Storage.DatabasePath,
			"bleve_index_path": s.config.Storage.BleveIndexPath,
			"inbox_dir":        s.config.Spool.InboxDir,
			"outbox_dir":       s.config.Spool.OutboxDir,
		}
		if fp, err := storage.MeasureFootprint(s.config.Storage.DatabasePath, s.config.Storage.BleveIndexPath); err == nil {
			resp["disk_usage_bytes"] = fp.Total()
			resp["footprint"] = fp
		}
	}
	s.respondJSON(w, http.StatusOK, resp)
}

// limit reads ?limit=, falling back to the configured default and capping at the maximum.
func (s *Server) limit(r *http.Request) int {
	def, maxLimit := 10, 100
	if s.config != nil {
		def, maxLimit = s.config.Search.DefaultLimit, s.config.Search.MaxLimit
	}
	n, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || n <= 0 {
		return def
	}
	if n > maxLimit {
		return maxLimit
	}
	return n
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
