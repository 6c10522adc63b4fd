// Package main is the innrelay CLI entry point.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/Evgen-rus/Tg-mtproto/internal/cli"
	"github.com/Evgen-rus/Tg-mtproto/internal/config"
	"github.com/Evgen-rus/Tg-mtproto/internal/export"
	"github.com/Evgen-rus/Tg-mtproto/internal/extract"
	"github.com/Evgen-rus/Tg-mtproto/internal/keyword"
	"github.com/Evgen-rus/Tg-mtproto/internal/models"
	"github.com/Evgen-rus/Tg-mtproto/internal/normalize"
	"github.com/Evgen-rus/Tg-mtproto/internal/relay"
	"github.com/Evgen-rus/Tg-mtproto/internal/server"
	"github.com/Evgen-rus/Tg-mtproto/internal/spool"
	"github.com/Evgen-rus/Tg-mtproto/internal/storage"
	"github.com/Evgen-rus/Tg-mtproto/pkg/utils"
)

var version = "dev"

const (
	defaultConfigPath = "/usr/local/etc/innrelay/config.yaml"
	envFile           = ".env"
	reindexPageSize   = 500
)

// loadConfig loads config from path. When path is the default, config.yaml in the current
// directory wins if present; when neither exists, defaults rooted at the current directory
// are used. The .env file and environment overrides are applied last.
// Returns the config and the path that was actually loaded ("" for defaults).
func loadConfig(path string) (*config.Config, string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, "", err
	}
	var cfg *config.Config
	resolved := path
	if path == defaultConfigPath {
		if fallback := filepath.Join(cwd, "config.yaml"); fileExists(fallback) {
			resolved = fallback
		} else if !fileExists(path) {
			resolved = ""
		}
	}
	if resolved == "" {
		cfg = config.Default(cwd)
	} else {
		cfg, err = config.Load(resolved)
		if err != nil {
			return nil, "", err
		}
	}
	if err := config.LoadEnvFile(filepath.Join(cwd, envFile)); err != nil {
		return nil, "", err
	}
	config.ApplyEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, "", err
	}
	return cfg, resolved, nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func newLogger(cfg *config.Config, debug bool) (*zap.Logger, error) {
	if cfg.Debug || debug {
		return utils.NewLogger(true)
	}
	return utils.NewLoggerWithLevel(cfg.LogLevel)
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "serve", "server":
		runServe()
	case "chat":
		runChat()
	case "send":
		runSend()
	case "ingest":
		runIngest()
	case "parse":
		runParse()
	case "export":
		runExport()
	case "search":
		runSearch()
	case "results":
		runResults()
	case "status":
		runStatus()
	case "config":
		runConfig()
	case "version", "--version", "-v":
		fmt.Printf("innrelay version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func exitf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

// Components holds initialized services.
type Components struct {
	Config  *config.Config
	Logger  *zap.Logger
	Storage storage.Storage
	Index   keyword.ResultIndex
	Outbox  *spool.Outbox
	Session *relay.Session
}

// Close releases the index (when open) and the database.
func (c *Components) Close() {
	if c.Index != nil {
		_ = c.Index.Close()
	}
	if c.Storage != nil {
		_ = c.Storage.Close()
	}
}

type componentOptions struct {
	// withIndex opens the search index. The index holds an exclusive file lock, so only
	// commands that search or write results open it; the rest run beside a live serve.
	withIndex bool
	// resetIndex deletes the on-disk index before opening it.
	resetIndex bool
}

// initializeComponents opens storage, optionally the index, and builds the relay session.
// The outbox sender is only wired when a bot username is configured.
func initializeComponents(cfg *config.Config, logger *zap.Logger, opts componentOptions) (*Components, error) {
	store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	c := &Components{Config: cfg, Logger: logger, Storage: store}

	sessionOpts := []relay.Option{
		relay.WithLogger(logger),
		relay.WithCommandPrefix(cfg.Bot.CommandPrefix),
		relay.WithResultMarker(cfg.Bot.ResultMarker),
		relay.WithFallbackQueryText(cfg.Bot.FallbackQueryText),
	}
	if opts.withIndex {
		idx, err := openIndex(cfg.Storage.BleveIndexPath, opts.resetIndex)
		if err != nil {
			c.Close()
			return nil, err
		}
		c.Index = idx
		sessionOpts = append(sessionOpts, relay.WithIndex(idx))
	}

	var sender relay.Sender
	if cfg.Bot.Username != "" {
		outbox, err := spool.NewOutbox(cfg.Spool.OutboxDir, cfg.Bot.Username)
		if err != nil {
			c.Close()
			return nil, err
		}
		c.Outbox = outbox
		sender = outbox
	}
	c.Session = relay.NewSession(store, sender, sessionOpts...)
	return c, nil
}

func openIndex(path string, reset bool) (*keyword.BleveIndex, error) {
	if path != "" {
		if reset {
			if err := os.RemoveAll(path); err != nil {
				return nil, fmt.Errorf("failed to remove index: %w", err)
			}
		}
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create index directory: %w", err)
		}
	}
	idx, err := keyword.NewBleveIndex(path)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize keyword index: %w", err)
	}
	return idx, nil
}

// loadOrExit loads config and builds the logger, exiting on failure.
func loadOrExit(configPath string, debug bool) (*config.Config, *zap.Logger) {
	cfg, resolved, err := loadConfig(configPath)
	if err != nil {
		exitf("Failed to load config: %v", err)
	}
	logger, err := newLogger(cfg, debug)
	if err != nil {
		exitf("Failed to create logger: %v", err)
	}
	logger.Debug("config loaded", zap.String("config_path", resolved))
	return cfg, logger
}

// setup is the common prologue of every local command: config, logger, components.
func setup(configPath string, debug bool, opts componentOptions) *Components {
	cfg, logger := loadOrExit(configPath, debug)
	c, err := initializeComponents(cfg, logger, opts)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	return c
}

func newInbox(cfg *config.Config, handle spool.Handler, logger *zap.Logger) *spool.Inbox {
	exts := cfg.Spool.Extensions
	if len(exts) == 0 {
		exts = spool.DefaultExtensions
	}
	return spool.NewInbox(cfg.Spool.InboxDir, handle,
		spool.WithLogger(logger),
		spool.WithDebounce(time.Duration(cfg.Spool.DebounceMS)*time.Millisecond),
		spool.WithExtensions(exts),
	)
}

func runServe() {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	c := setup(*configPath, *debug, componentOptions{withIndex: true})
	defer c.Close()
	logger := c.Logger
	defer logger.Sync()
	if c.Outbox == nil {
		logger.Warn("bot username not set; commands cannot be sent", zap.String("env", config.EnvBot))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	inbox := newInbox(c.Config, c.Session.HandleEvent, logger)
	if err := inbox.Start(ctx); err != nil {
		logger.Fatal("Failed to start inbox", zap.Error(err))
	}
	defer inbox.Stop()

	srv := server.NewServer(c.Session, c.Storage, c.Index, c.Config, logger)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server failed", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(shutdownCtx)
}

func runSend() {
	fs := flag.NewFlagSet("send", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "", "server URL (default: the configured server address)")
	local := fs.Bool("local", false, "send directly through the outbox, without a running server")
	format := fs.String("format", "text", "output format: text or json")
	_ = fs.Parse(searchArgsReorder(os.Args[2:]))
	text := buildSearchQuery(fs.Args())
	if text == "" {
		fmt.Println("Usage: innrelay send [flags] <command>   e.g. innrelay send /inn 7801234567")
		os.Exit(1)
	}

	cfg, logger := loadOrExit(*configPath, false)
	defer logger.Sync()
	target := *serverURL
	if target == "" {
		target = defaultServerURL(cfg)
	}
	if *local {
		target = ""
	}
	res, err := sendCommand(context.Background(), target, text, func(ctx context.Context, text string) (*relay.SendResult, error) {
		c, err := initializeComponents(cfg, logger, componentOptions{})
		if err != nil {
			return nil, err
		}
		defer c.Close()
		return c.Session.SendCommand(ctx, text)
	}, os.Stderr)
	if err != nil {
		exitf("Send failed: %v", err)
	}
	if cli.ParseFormat(*format) == cli.OutputJSON {
		_ = json.NewEncoder(os.Stdout).Encode(res)
		return
	}
	if res.QueryID != 0 {
		fmt.Printf("Sent %q (query #%d, inn %s)\n", res.Text, res.QueryID, res.INN)
		return
	}
	fmt.Printf("Sent %q\n", res.Text)
}

// localSendFunc sends a command from this process.
type localSendFunc func(ctx context.Context, text string) (*relay.SendResult, error)

// sendCommand posts text to the server at serverURL so the serving session owns the pending
// entry and links the bot's reply to this query. When nothing answers there, or serverURL is
// empty, it sends from this process instead; the pending entry then dies with the process,
// so the reply will be stored against a fallback query. A warning saying so goes to warn.
func sendCommand(ctx context.Context, serverURL, text string, local localSendFunc, warn io.Writer) (*relay.SendResult, error) {
	if serverURL != "" {
		res, err := sendViaHTTP(ctx, serverURL, text)
		if !errors.Is(err, errUnreachable) {
			return res, err
		}
		fmt.Fprintf(warn, "warning: no server at %s (%v)\n", serverURL, err)
	}
	res, err := local(ctx, text)
	if err == nil && res.QueryID != 0 {
		fmt.Fprintf(warn, "warning: sent without a running server; the reply will not be linked to query #%d\n", res.QueryID)
	}
	return res, err
}

// runIngest processes inbox files once. With file arguments it handles those files in place;
// otherwise it drains the configured inbox directory.
func runIngest() {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	format := fs.String("format", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])
	outFormat := cli.ParseFormat(*format)

	c := setup(*configPath, false, componentOptions{withIndex: true})
	defer c.Close()
	ctx := context.Background()

	if fs.NArg() > 0 {
		for _, path := range fs.Args() {
			data, err := os.ReadFile(path)
			if err != nil {
				exitf("Failed to read %s: %v", path, err)
			}
			ev, err := spool.DecodeEvent(filepath.Base(path), data)
			if err != nil {
				exitf("Failed to decode %s: %v", path, err)
			}
			_ = cli.WriteOutcome(os.Stdout, c.Session.HandleEvent(ctx, ev), outFormat)
		}
		return
	}

	if err := os.MkdirAll(c.Config.Spool.InboxDir, 0755); err != nil {
		exitf("Failed to create inbox: %v", err)
	}
	inbox := newInbox(c.Config, func(ctx context.Context, ev models.ReplyEvent) models.Outcome {
		out := c.Session.HandleEvent(ctx, ev)
		_ = cli.WriteOutcome(os.Stdout, out, outFormat)
		return out
	}, c.Logger)
	n, err := inbox.Drain(ctx)
	if err != nil {
		exitf("Ingest failed: %v", err)
	}
	if outFormat == cli.OutputText {
		fmt.Printf("Processed %d file(s) from %s\n", n, c.Config.Spool.InboxDir)
	}
}

// runParse extracts fields from a reply read from a file or stdin. Nothing is stored.
func runParse() {
	fs := flag.NewFlagSet("parse", flag.ExitOnError)
	format := fs.String("format", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	var (
		data []byte
		err  error
	)
	if fs.NArg() == 0 || fs.Arg(0) == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(fs.Arg(0))
	}
	if err != nil {
		exitf("Failed to read input: %v", err)
	}

	fields := extract.NewExtractor().Extract(string(data))
	outFormat := cli.ParseFormat(*format)
	if err := cli.WriteParsed(os.Stdout, fields, outFormat); err != nil {
		exitf("Output failed: %v", err)
	}
	if _, err := normalize.NewNormalizer().Normalize(fields); err != nil {
		if outFormat == cli.OutputText {
			fmt.Printf("would be rejected: %v\n", err)
		}
		os.Exit(2)
	}
}

func runExport() {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	output := fs.String("o", "", "output file (default <export.output_dir>/inn_results_<timestamp>.xlsx)")
	serverURL := fs.String("server", "", "download the workbook from a running server instead")
	_ = fs.Parse(os.Args[2:])

	cfg, logger := loadOrExit(*configPath, false)
	defer logger.Sync()
	path := *output
	if path == "" {
		path = filepath.Join(cfg.Export.OutputDir, export.DefaultFileName(time.Now()))
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		exitf("Failed to create output directory: %v", err)
	}

	var (
		n   int
		err error
	)
	if *serverURL != "" {
		n, err = exportViaHTTP(context.Background(), *serverURL, path)
	} else {
		c, initErr := initializeComponents(cfg, logger, componentOptions{})
		if initErr != nil {
			exitf("Failed to initialize: %v", initErr)
		}
		defer c.Close()
		n, err = export.Export(context.Background(), c.Storage, path)
	}
	if err != nil {
		exitf("Export failed: %v", err)
	}
	fmt.Printf("Exported %d row(s) to %s\n", n, path)
}

// printSearchUsage prints search subcommand usage.
func printSearchUsage(fs *flag.FlagSet) {
	fmt.Fprintf(fs.Output(), "Usage: innrelay search [flags] <query>\n\n")
	fmt.Fprintf(fs.Output(), "Query is all remaining arguments joined by spaces. Digits-only queries match INNs.\n\n")
	fs.PrintDefaults()
	fmt.Fprintf(fs.Output(), `
Examples:
  innrelay search ромашка
  innrelay search --fuzzy ромошка            # typo-tolerant search
  innrelay search 7801234567
  innrelay search --reindex                  # rebuild the index from the database
  innrelay search --server http://localhost:8080 ромашка
`)
}

// buildSearchQuery joins all positional args with spaces so multi-word queries
// work the same with or without shell quoting.
func buildSearchQuery(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// searchArgsReorder moves any flags (and their values) that appear after the query
// to the front of the slice so that flag.Parse() sees them.
func searchArgsReorder(args []string) []string {
	for i, a := range args {
		if len(a) > 0 && a[0] == '-' {
			if i == 0 {
				return args
			}
			reordered := make([]string, 0, len(args))
			reordered = append(reordered, args[i:]...)
			reordered = append(reordered, args[:i]...)
			return reordered
		}
	}
	return args
}

func runSearch() {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "", "server URL; use it while innrelay serve holds the index")
	limit := fs.Int("limit", 10, "number of results")
	fuzzy := fs.Bool("fuzzy", false, "enable fuzzy matching for typo tolerance")
	reindexFlag := fs.Bool("reindex", false, "rebuild the index from the database before searching")
	format := fs.String("format", "text", "output format: text or json")
	fs.Usage = func() { printSearchUsage(fs) }
	_ = fs.Parse(searchArgsReorder(os.Args[2:]))

	query := buildSearchQuery(fs.Args())
	if query == "" && !*reindexFlag {
		printSearchUsage(fs)
		os.Exit(1)
	}
	outFormat := cli.ParseFormat(*format)

	if *serverURL != "" {
		hits, err := searchViaHTTP(context.Background(), *serverURL, query, *limit, *fuzzy)
		if err != nil {
			exitf("Search failed: %v", err)
		}
		if err := cli.WriteSearchHits(os.Stdout, query, hits, outFormat); err != nil {
			exitf("Output failed: %v", err)
		}
		return
	}

	c := setup(*configPath, false, componentOptions{withIndex: true, resetIndex: *reindexFlag})
	defer c.Close()
	ctx := context.Background()

	if *reindexFlag {
		n, err := reindex(ctx, c.Storage, c.Index)
		if err != nil {
			exitf("Reindex failed: %v", err)
		}
		fmt.Fprintf(os.Stderr, "Reindexed %d result(s)\n", n)
		if query == "" {
			return
		}
	}

	opts := &keyword.SearchOptions{
		NameBoost:    c.Config.Search.NameBoost,
		FuzzyEnabled: *fuzzy || c.Config.Search.Fuzzy,
	}
	hits, err := searchLocal(ctx, c, query, *limit, opts)
	if err != nil {
		exitf("Search failed: %v", err)
	}
	// Retry with typo tolerance before reporting nothing.
	if len(hits) == 0 && !opts.FuzzyEnabled {
		opts.FuzzyEnabled = true
		if fuzzyHits, fuzzyErr := searchLocal(ctx, c, query, *limit, opts); fuzzyErr == nil {
			hits = fuzzyHits
		}
	}
	if err := cli.WriteSearchHits(os.Stdout, query, hits, outFormat); err != nil {
		exitf("Output failed: %v", err)
	}
}

func searchLocal(ctx context.Context, c *Components, query string, limit int, opts *keyword.SearchOptions) ([]cli.SearchHit, error) {
	raw, err := c.Index.Search(ctx, query, limit, opts)
	if err != nil {
		return nil, err
	}
	hits := make([]cli.SearchHit, 0, len(raw))
	for _, h := range raw {
		res, err := c.Storage.GetResult(ctx, h.INN)
		if errors.Is(err, storage.ErrNotFound) {
			c.Logger.Debug("dropping stale index entry", zap.String("inn", h.INN))
			if err := c.Index.Delete(ctx, h.INN); err != nil {
				c.Logger.Warn("failed to drop stale index entry", zap.String("inn", h.INN), zap.Error(err))
			}
			continue
		}
		if err != nil {
			return nil, err
		}
		hits = append(hits, cli.SearchHit{Score: h.Score, Result: res})
	}
	return hits, nil
}

// reindex walks every stored result and adds it to idx. Returns the number indexed.
func reindex(ctx context.Context, store storage.Storage, idx keyword.ResultIndex) (int, error) {
	n := 0
	for offset := 0; ; offset += reindexPageSize {
		results, err := store.ListResults(ctx, offset, reindexPageSize)
		if err != nil {
			return n, fmt.Errorf("list results: %w", err)
		}
		for _, r := range results {
			if err := idx.Index(ctx, r); err != nil {
				return n, fmt.Errorf("index %s: %w", r.INN, err)
			}
			n++
		}
		if len(results) < reindexPageSize {
			return n, nil
		}
	}
}

func runResults() {
	fs := flag.NewFlagSet("results", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	inn := fs.String("inn", "", "show the result for one INN")
	queryID := fs.Int64("query", 0, "show results produced by one source query id")
	offset := fs.Int("offset", 0, "skip this many results")
	limit := fs.Int("limit", 20, "number of results")
	format := fs.String("format", "text", "output format: text or json")
	serverURL := fs.String("server", "", "server URL (empty = use direct storage)")
	_ = fs.Parse(os.Args[2:])
	ctx := context.Background()
	q := resultsQuery{INN: strings.TrimSpace(*inn), QueryID: *queryID, Offset: *offset, Limit: *limit}

	if *serverURL != "" {
		results, err := resultsViaHTTP(ctx, *serverURL, q)
		if err != nil {
			exitf("Listing results failed: %v", err)
		}
		if err := cli.WriteResults(os.Stdout, results, cli.ParseFormat(*format)); err != nil {
			exitf("Output failed: %v", err)
		}
		return
	}

	c := setup(*configPath, false, componentOptions{})
	defer c.Close()
	results, err := listResults(ctx, c.Storage, q)
	if errors.Is(err, storage.ErrNotFound) {
		exitf("No result for INN %s", q.INN)
	}
	if err != nil {
		exitf("Listing results failed: %v", err)
	}
	if err := cli.WriteResults(os.Stdout, results, cli.ParseFormat(*format)); err != nil {
		exitf("Output failed: %v", err)
	}
}

// resultsQuery selects results by INN, by source query, or by page, in that order of preference.
type resultsQuery struct {
	INN     string
	QueryID int64
	Offset  int
	Limit   int
}

func listResults(ctx context.Context, store storage.Storage, q resultsQuery) ([]*models.Result, error) {
	switch {
	case q.INN != "":
		r, err := store.GetResult(ctx, q.INN)
		if err != nil {
			return nil, err
		}
		return []*models.Result{r}, nil
	case q.QueryID > 0:
		return store.ListResultsByQuery(ctx, q.QueryID)
	default:
		return store.ListResults(ctx, q.Offset, q.Limit)
	}
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "", "server URL (empty = use direct storage)")
	format := fs.String("format", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	var status cli.Status
	if *serverURL != "" {
		var err error
		if status, err = statusViaHTTP(context.Background(), *serverURL); err != nil {
			exitf("Status failed: %v", err)
		}
	} else {
		c := setup(*configPath, false, componentOptions{})
		defer c.Close()
		var err error
		if status, err = localStatus(context.Background(), c); err != nil {
			exitf("Status failed: %v", err)
		}
	}
	if err := cli.WriteStatus(os.Stdout, status, cli.ParseFormat(*format)); err != nil {
		exitf("Output failed: %v", err)
	}
}

func localStatus(ctx context.Context, c *Components) (cli.Status, error) {
	s := cli.Status{
		DatabasePath: c.Config.Storage.DatabasePath,
		IndexPath:    c.Config.Storage.BleveIndexPath,
	}
	var err error
	if s.Queries, err = c.Storage.CountQueries(ctx); err != nil {
		return s, err
	}
	if s.Results, err = c.Storage.CountResults(ctx); err != nil {
		return s, err
	}
	if c.Index != nil {
		n, err := c.Index.DocCount()
		if err != nil {
			return s, err
		}
		s.Indexed = &n
	}
	fp, err := storage.MeasureFootprint(s.DatabasePath, s.IndexPath)
	if err != nil {
		return s, err
	}
	s.DatabaseBytes, s.IndexBytes, s.DiskUsageBytes = fp.DatabaseBytes, fp.IndexBytes, fp.Total()
	return s, nil
}

func runConfig() {
	if len(os.Args) < 3 || os.Args[2] != "init" {
		exitf("Usage: innrelay config init [-o config.yaml] [-force]")
	}
	fs := flag.NewFlagSet("config init", flag.ExitOnError)
	output := fs.String("o", "config.yaml", "where to write the config")
	force := fs.Bool("force", false, "overwrite an existing file")
	_ = fs.Parse(os.Args[3:])

	if err := writeDefaultConfig(*output, *force); err != nil {
		exitf("Config init failed: %v", err)
	}
	fmt.Printf("Wrote %s\n", *output)
}

// writeDefaultConfig writes the built-in defaults to path. Paths stay "./"-relative so they
// resolve against wherever the file lives.
func writeDefaultConfig(path string, force bool) error {
	if !force && fileExists(path) {
		return fmt.Errorf("%s already exists (use -force to overwrite)", path)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	var cfg config.Config
	config.ApplyDefaults(&cfg)
	return config.Save(path, &cfg)
}

func printUsage() {
	fmt.Println(`innrelay - relay between you and a Telegram INN registry bot

Usage:
  innrelay <command> [flags]

Commands:
  serve     Watch the inbox and serve the HTTP API
  chat      Interactive session: type commands, see the bot's replies
  send      Send one command to the bot (e.g. send /inn 7801234567)
  ingest    Process inbox files once (or the given files)
  parse     Show the fields extracted from a reply (stdin or file)
  export    Write all results to an xlsx workbook
  search    Full-text search over stored results
  results   List stored results
  status    Show counts and disk usage
  config    config init: write a default config.yaml
  version   Show version
  help      Show this help

Every command accepts -config <path>. Without one, ./config.yaml is used when present,
otherwise built-in defaults. Variables from .env (BOT, DB_PATH, LOG_LEVEL, INBOX_DIR,
OUTBOX_DIR) override the file.

send, results, export and status accept -server <url> to go through a running
innrelay serve. send does so by default and falls back to local mode, with a warning,
when nothing answers.`)
}
