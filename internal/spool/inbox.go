package spool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/Evgen-rus/Tg-mtproto/internal/models"
)

const (
	defaultDebounce = 300 * time.Millisecond
	processedDir    = "processed"
	failedDir       = "failed"
)

// DefaultExtensions are the inbox file types understood by DecodeEvent.
var DefaultExtensions = []string{".json", ".txt", ".md"}

// Handler processes one inbound event.
type Handler func(ctx context.Context, ev models.ReplyEvent) models.Outcome

// Inbox watches a directory for event files, hands each to a Handler, then moves it to
// processed/ (or failed/ when it cannot be decoded). Files whose name starts with "." are
// ignored so writers can stage and rename.
type Inbox struct {
	dir        string
	extensions []string
	handle     Handler
	debounce   time.Duration
	logger     *zap.Logger

	mu          sync.Mutex
	watcher     *fsnotify.Watcher
	debounceMap map[string]*time.Timer
	started     bool
	ctx         context.Context
	done        chan struct{}
	stopOnce    sync.Once
	wg          sync.WaitGroup

	// procMu serializes file processing between the drain and watcher paths.
	procMu sync.Mutex
}

// InboxOption configures an Inbox.
type InboxOption func(*Inbox)

// WithLogger sets a logger. Defaults to a no-op logger.
func WithLogger(l *zap.Logger) InboxOption {
	return func(in *Inbox) { in.logger = l }
}

// WithDebounce sets how long a file must be quiet before it is processed.
func WithDebounce(d time.Duration) InboxOption {
	return func(in *Inbox) { in.debounce = d }
}

// WithExtensions restricts which files are picked up. Empty means DefaultExtensions.
func WithExtensions(exts []string) InboxOption {
	return func(in *Inbox) {
		if len(exts) > 0 {
			in.extensions = exts
		}
	}
}

// NewInbox creates an inbox over dir.
func NewInbox(dir string, handle Handler, opts ...InboxOption) *Inbox {
	in := &Inbox{
		dir:         filepath.Clean(dir),
		extensions:  DefaultExtensions,
		handle:      handle,
		debounce:    defaultDebounce,
		logger:      zap.NewNop(),
		debounceMap: make(map[string]*time.Timer),
		done:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(in)
	}
	return in
}

// Dir returns the watched directory.
func (in *Inbox) Dir() string {
	return in.dir
}

// Start creates the directory if missing, begins watching it, and drains files already
// present. It runs until ctx is cancelled or Stop is called.
func (in *Inbox) Start(ctx context.Context) error {
	in.mu.Lock()
	if in.started {
		in.mu.Unlock()
		return nil
	}
	if err := os.MkdirAll(in.dir, 0755); err != nil {
		in.mu.Unlock()
		return fmt.Errorf("failed to create inbox: %w", err)
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		in.mu.Unlock()
		return err
	}
	if err := w.Add(in.dir); err != nil {
		_ = w.Close()
		in.mu.Unlock()
		return err
	}
	in.watcher = w
	in.started = true
	in.ctx = ctx
	in.logger.Debug("inbox starting", zap.String("dir", in.dir), zap.Strings("extensions", in.extensions))
	in.mu.Unlock()

	in.wg.Add(1)
	go in.run(ctx, w)

	if _, err := in.Drain(ctx); err != nil {
		in.logger.Warn("inbox drain failed", zap.Error(err))
	}
	return nil
}

func (in *Inbox) run(ctx context.Context, w *fsnotify.Watcher) {
	defer in.wg.Done()
	for {
		select {
		case <-ctx.Done():
			go in.Stop()
			return
		case <-in.done:
			return
		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			if ev.Has(fsnotify.Create) || ev.Has(fsnotify.Write) {
				if in.accepts(ev.Name) {
					in.debounceProcess(ev.Name)
				}
			}
			if ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) {
				in.cancelDebounce(ev.Name)
			}
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			if err != nil {
				in.logger.Debug("inbox watcher error", zap.Error(err))
			}
		}
	}
}

// accepts reports whether path is a file directly inside the inbox with a known extension.
func (in *Inbox) accepts(path string) bool {
	if filepath.Dir(filepath.Clean(path)) != in.dir {
		return false
	}
	if strings.HasPrefix(filepath.Base(path), ".") {
		return false
	}
	return matchExtension(path, in.extensions)
}

func matchExtension(path string, extensions []string) bool {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	if len(extensions) == 0 {
		return true
	}
	for _, e := range extensions {
		if strings.TrimPrefix(strings.ToLower(e), ".") == ext {
			return true
		}
	}
	return false
}

func (in *Inbox) debounceProcess(path string) {
	in.mu.Lock()
	defer in.mu.Unlock()
	if !in.started {
		return
	}
	if t, ok := in.debounceMap[path]; ok && t.Stop() {
		in.wg.Done()
	}
	in.wg.Add(1)
	in.debounceMap[path] = time.AfterFunc(in.debounce, func() {
		defer in.wg.Done()
		in.mu.Lock()
		delete(in.debounceMap, path)
		ctx := in.ctx
		in.mu.Unlock()
		in.ProcessFile(ctx, path)
	})
}

func (in *Inbox) cancelDebounce(path string) {
	in.mu.Lock()
	defer in.mu.Unlock()
	if t, ok := in.debounceMap[path]; ok {
		if t.Stop() {
			in.wg.Done()
		}
		delete(in.debounceMap, path)
	}
}

// Drain processes every matching file currently in the inbox, oldest name first.
// Returns the number of files handled.
func (in *Inbox) Drain(ctx context.Context) (int, error) {
	entries, err := os.ReadDir(in.dir)
	if err != nil {
		return 0, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		path := filepath.Join(in.dir, e.Name())
		if in.accepts(path) {
			names = append(names, path)
		}
	}
	sort.Strings(names)
	n := 0
	for _, path := range names {
		if in.ProcessFile(ctx, path) {
			n++
		}
	}
	return n, nil
}

// ProcessFile decodes path, hands the event to the handler and moves the file away.
// Returns false when the file was already gone.
func (in *Inbox) ProcessFile(ctx context.Context, path string) bool {
	in.procMu.Lock()
	defer in.procMu.Unlock()

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return false
	}
	if err != nil {
		in.logger.Warn("inbox read failed", zap.String("path", path), zap.Error(err))
		return false
	}

	ev, err := DecodeEvent(filepath.Base(path), data)
	if err != nil {
		in.logger.Warn("inbox file rejected", zap.String("path", path), zap.Error(err))
		in.move(path, failedDir)
		return true
	}

	out := in.handle(ctx, ev)
	in.logger.Debug("inbox event handled",
		zap.String("path", path),
		zap.String("status", out.Status),
		zap.String("inn", out.INN),
	)
	in.move(path, processedDir)
	return true
}

func (in *Inbox) move(path, sub string) {
	dst := filepath.Join(in.dir, sub)
	if err := os.MkdirAll(dst, 0755); err != nil {
		in.logger.Error("inbox cannot create directory", zap.String("dir", dst), zap.Error(err))
		return
	}
	target := filepath.Join(dst, filepath.Base(path))
	if _, err := os.Stat(target); err == nil {
		target = filepath.Join(dst, time.Now().UTC().Format("20060102T150405.000000000")+"_"+filepath.Base(path))
	}
	if err := os.Rename(path, target); err != nil {
		in.logger.Error("inbox cannot move file", zap.String("path", path), zap.Error(err))
	}
}

// DecodeEvent turns an inbox file into an event. JSON files carry a ReplyEvent;
// .txt and .md files are the text of an edited bot message. The file name is the
// event id when none is given. A JSON event without a kind is treated as an edit.
func DecodeEvent(name string, data []byte) (models.ReplyEvent, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".json":
		var ev models.ReplyEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return ev, fmt.Errorf("invalid event json: %w", err)
		}
		if ev.Kind == "" {
			ev.Kind = models.EventEdited
		}
		if ev.Kind != models.EventNew && ev.Kind != models.EventEdited {
			return ev, fmt.Errorf("unknown event kind %q", ev.Kind)
		}
		if ev.ID == "" {
			ev.ID = name
		}
		return ev, nil
	default:
		text := string(data)
		return models.ReplyEvent{ID: name, Kind: models.EventEdited, Text: &text}, nil
	}
}

// Stop stops watching and waits for pending work to finish.
func (in *Inbox) Stop() {
	in.mu.Lock()
	if !in.started {
		in.mu.Unlock()
		return
	}
	for path, t := range in.debounceMap {
		if t.Stop() {
			in.wg.Done()
		}
		delete(in.debounceMap, path)
	}
	w := in.watcher
	in.watcher = nil
	in.started = false
	in.mu.Unlock()

	in.stopOnce.Do(func() { close(in.done) })
	_ = w.Close()
	in.wg.Wait()
}
