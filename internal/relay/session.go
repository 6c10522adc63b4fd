// Package relay drives the conversation with the registry bot: it logs outgoing commands,
// turns edited bot replies into stored results, and keeps the host loop alive on failure.
package relay

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/Evgen-rus/Tg-mtproto/internal/correlate"
	"github.com/Evgen-rus/Tg-mtproto/internal/extract"
	"github.com/Evgen-rus/Tg-mtproto/internal/keyword"
	"github.com/Evgen-rus/Tg-mtproto/internal/models"
	"github.com/Evgen-rus/Tg-mtproto/internal/normalize"
	"github.com/Evgen-rus/Tg-mtproto/internal/storage"
)

// Defaults for the bot reply conventions.
const (
	DefaultResultMarker      = "ИНН"
	DefaultFallbackQueryText = "(auto) ответ без сопоставленного запроса"
)

// ErrNoSender is returned by SendCommand when the session has no outgoing channel.
var ErrNoSender = errors.New("no sender configured")

// Sender delivers a text command to the bot.
type Sender interface {
	Send(ctx context.Context, text string) error
}

// Resolver returns the query id a stored result should reference.
type Resolver func(ctx context.Context, inn string) (int64, error)

// SendResult describes a sent command. QueryID is zero when the command carried no INN.
type SendResult struct {
	Text    string `json:"text"`
	INN     string `json:"inn,omitempty"`
	QueryID int64  `json:"query_id,omitempty"`
}

// Session owns the pending map and handles one event at a time.
type Session struct {
	mu sync.Mutex

	store      storage.Storage
	sender     Sender
	extractor  *extract.Extractor
	normalizer *normalize.Normalizer
	pending    *correlate.Pending
	index      keyword.ResultIndex
	logger     *zap.Logger

	commandPrefix string
	resultMarker  string
	fallbackText  string
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Session) { s.logger = l }
}

// WithIndex makes the session index every saved result for search.
func WithIndex(idx keyword.ResultIndex) Option {
	return func(s *Session) { s.index = idx }
}

// WithCommandPrefix sets the command whose argument is an INN. Default "/inn".
func WithCommandPrefix(prefix string) Option {
	return func(s *Session) { s.commandPrefix = prefix }
}

// WithResultMarker sets the substring an edited message must contain to be parsed.
func WithResultMarker(marker string) Option {
	return func(s *Session) { s.resultMarker = marker }
}

// WithFallbackQueryText sets the query text logged for replies with no pending command.
func WithFallbackQueryText(text string) Option {
	return func(s *Session) { s.fallbackText = text }
}

// NewSession creates a session over store. sender may be nil for sessions that only ingest.
func NewSession(store storage.Storage, sender Sender, opts ...Option) *Session {
	s := &Session{
		store:         store,
		sender:        sender,
		extractor:     extract.NewExtractor(),
		normalizer:    normalize.NewNormalizer(),
		pending:       correlate.NewPending(),
		logger:        zap.NewNop(),
		commandPrefix: correlate.DefaultPrefix,
		resultMarker:  DefaultResultMarker,
		fallbackText:  DefaultFallbackQueryText,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Pending returns the session's correlator.
func (s *Session) Pending() *correlate.Pending {
	return s.pending
}

// LogQuery appends text to the query log.
func (s *Session) LogQuery(ctx context.Context, text string) (int64, error) {
	return s.store.LogQuery(ctx, text)
}

// Extract parses reply text into fields.
func (s *Session) Extract(text string) *models.Fields {
	return s.extractor.Extract(text)
}

// NormalizeAndUpsert validates fields and stores them under the query id returned by resolve.
// A nil resolve uses the pending map with fallback synthesis. Returns normalize.ErrRejected
// (wrapped) when the reply is not a result; resolve is not called in that case.
func (s *Session) NormalizeAndUpsert(ctx context.Context, fields *models.Fields, resolve Resolver) (*models.Record, int64, error) {
	rec, err := s.normalizer.Normalize(fields)
	if err != nil {
		return nil, 0, err
	}
	if resolve == nil {
		resolve = func(ctx context.Context, inn string) (int64, error) {
			id, _, err := s.resolveQuery(ctx, inn)
			return id, err
		}
	}
	queryID, err := resolve(ctx, rec.INN)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to resolve source query for inn %s: %w", rec.INN, err)
	}
	if err := s.store.UpsertResult(ctx, queryID, rec); err != nil {
		return nil, 0, err
	}
	return rec, queryID, nil
}

// resolveQuery looks inn up in the pending map. On a miss it logs a fallback query and
// returns its id with fallback set. The fallback is not added to the pending map.
// It runs only after the reply passed validation; if the upsert that follows fails, the
// fallback row stays in the append-only log with no result, and HandleEvent logs its id.
func (s *Session) resolveQuery(ctx context.Context, inn string) (int64, bool, error) {
	if id, ok := s.pending.Resolve(inn); ok {
		s.logger.Info("matched source query", zap.String("inn", inn), zap.Int64("source_query_id", id))
		return id, false, nil
	}
	id, err := s.store.LogQuery(ctx, s.fallbackText)
	if err != nil {
		return 0, false, err
	}
	s.logger.Warn("no source query matched, created fallback",
		zap.String("inn", inn), zap.Int64("source_query_id", id))
	return id, true, nil
}

// SendCommand sends text to the bot. An INN command is logged and recorded as pending
// before it is handed to the sender, so a fast reply always finds it.
func (s *Session) SendCommand(ctx context.Context, text string) (*SendResult, error) {
	in := models.CommandInput{Text: text}
	if err := in.Validate(); err != nil {
		return nil, err
	}
	if s.sender == nil {
		return nil, ErrNoSender
	}
	text = in.Text
	res := &SendResult{Text: text}

	s.mu.Lock()
	if inn, ok := correlate.CommandINN(text, s.commandPrefix); ok {
		id, err := s.store.LogQuery(ctx, text)
		if err != nil {
			s.mu.Unlock()
			return nil, err
		}
		s.pending.RecordPending(inn, id)
		res.INN, res.QueryID = inn, id
		s.logger.Info("source query logged", zap.String("inn", inn), zap.Int64("source_query_id", id))
	} else if strings.HasPrefix(strings.ToLower(text), strings.ToLower(s.commandPrefix)) {
		s.logger.Debug("command has INN prefix but no INN", zap.String("text", text))
	}
	s.mu.Unlock()

	if err := s.sender.Send(ctx, text); err != nil {
		return res, fmt.Errorf("failed to send command: %w", err)
	}
	return res, nil
}

// HandleEvent processes one inbound bot message. It never returns an error and never panics;
// every failure is logged and reported in the Outcome.
func (s *Session) HandleEvent(ctx context.Context, ev models.ReplyEvent) (out models.Outcome) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out.EventID = ev.ID
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("panic while handling event", zap.String("event_id", ev.ID), zap.Any("panic", r))
			out = models.Outcome{EventID: ev.ID, Status: models.OutcomeFailed, Reason: fmt.Sprint(r)}
		}
	}()

	text := ev.TextOrEmpty()
	switch ev.Kind {
	case models.EventNew:
		s.logger.Debug("bot message", zap.Int("text_len", len(text)), zap.Int("button_rows", len(ev.Buttons)))
		out.Status, out.Reason = models.OutcomeSkipped, "new message"
		return out
	case models.EventEdited:
	default:
		s.logger.Warn("unknown event kind", zap.String("kind", string(ev.Kind)))
		out.Status, out.Reason = models.OutcomeSkipped, "unknown event kind"
		return out
	}

	if !strings.Contains(text, s.resultMarker) {
		s.logger.Debug("skip edited message: no result marker")
		out.Status, out.Reason = models.OutcomeSkipped, "no result marker"
		return out
	}

	fields := s.extractor.Extract(text)
	var (
		fallback   bool
		fallbackID int64
	)
	resolve := func(ctx context.Context, inn string) (int64, error) {
		id, fb, err := s.resolveQuery(ctx, inn)
		if fb {
			fallback, fallbackID = true, id
		}
		return id, err
	}
	rec, queryID, err := s.NormalizeAndUpsert(ctx, fields, resolve)
	if errors.Is(err, normalize.ErrRejected) {
		s.logger.Info("reply rejected", zap.Error(err))
		out.Status, out.Reason = models.OutcomeRejected, err.Error()
		return out
	}
	if err != nil {
		s.logger.Error("failed to save edited message", zap.Error(err))
		if fallback {
			s.logger.Warn("fallback query left without a result", zap.Int64("source_query_id", fallbackID))
			out.SourceQueryID, out.Fallback = fallbackID, true
		}
		out.Status, out.Reason = models.OutcomeFailed, err.Error()
		return out
	}

	missing := rec.MissingFields()
	s.logger.Info("parsed fields",
		zap.String("inn", rec.INN),
		zap.Int("raw_text_len", len(rec.RawText)),
		zap.Any("fields", rec.CompanyDetails),
	)
	if len(missing) > 0 {
		s.logger.Info("missing fields", zap.String("inn", rec.INN), zap.Strings("missing", missing))
	}
	s.logger.Info("saved to db", zap.String("inn", rec.INN), zap.Int64("source_query_id", queryID))

	s.indexResult(ctx, rec.INN)

	out.Status = models.OutcomeSaved
	out.INN = rec.INN
	out.SourceQueryID = queryID
	out.Fallback = fallback
	out.Missing = missing
	return out
}

// indexResult refreshes the search document for inn. Failures only cost search freshness.
func (s *Session) indexResult(ctx context.Context, inn string) {
	if s.index == nil {
		return
	}
	r, err := s.store.GetResult(ctx, inn)
	if err == nil {
		err = s.index.Index(ctx, r)
	}
	if err != nil {
		s.logger.Warn("failed to index result", zap.String("inn", inn), zap.Error(err))
	}
}
