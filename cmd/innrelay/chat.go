package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"go.uber.org/zap"

	"github.com/Evgen-rus/Tg-mtproto/internal/cli"
	"github.com/Evgen-rus/Tg-mtproto/internal/config"
	"github.com/Evgen-rus/Tg-mtproto/internal/models"
	"github.com/Evgen-rus/Tg-mtproto/internal/relay"
	"github.com/Evgen-rus/Tg-mtproto/internal/spool"
)

const exitCommand = "/exit"

// syncWriter serializes writes from the input loop and the inbox watcher.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

// echoHandler prints each bot message before handing it to the session, and reports saved results.
func echoHandler(w io.Writer, session *relay.Session, maxLen int) spool.Handler {
	return func(ctx context.Context, ev models.ReplyEvent) models.Outcome {
		cli.WriteIncoming(w, ev, maxLen)
		out := session.HandleEvent(ctx, ev)
		if out.Status == models.OutcomeSaved {
			_ = cli.WriteOutcome(w, out, cli.OutputText)
		}
		return out
	}
}

// chatLoop reads commands line by line and sends them until /exit, EOF or ctx is done.
func chatLoop(ctx context.Context, in io.Reader, w io.Writer, session *relay.Session) error {
	lines := make(chan string)
	errc := make(chan error, 1)
	done := make(chan struct{})
	defer close(done)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-done:
				return
			}
		}
		errc <- scanner.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return <-errc
			}
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			if strings.EqualFold(line, exitCommand) {
				return nil
			}
			cli.WriteOutgoing(w, line)
			if _, err := session.SendCommand(ctx, line); err != nil {
				fmt.Fprintf(w, "! %v\n", err)
			}
		}
	}
}

func runChat() {
	fs := flag.NewFlagSet("chat", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	maxLen := fs.Int("max-len", 0, "truncate printed bot messages to this many characters (0 = no limit)")
	_ = fs.Parse(os.Args[2:])

	c := setup(*configPath, *debug, componentOptions{withIndex: true})
	defer c.Close()
	logger := c.Logger
	defer logger.Sync()
	if c.Outbox == nil {
		exitf("Bot username is not set; put %s=<bot> in .env or bot.username in config", config.EnvBot)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := &syncWriter{w: os.Stdout}
	inbox := newInbox(c.Config, echoHandler(out, c.Session, *maxLen), logger)
	if err := inbox.Start(ctx); err != nil {
		logger.Fatal("Failed to start inbox", zap.Error(err))
	}
	defer inbox.Stop()

	fmt.Fprintf(out, "Chatting with %s. Type %s to quit.\n", c.Config.Bot.Username, exitCommand)
	if err := chatLoop(ctx, os.Stdin, out, c.Session); err != nil {
		logger.Error("input failed", zap.Error(err))
	}
}
