// Package spool exchanges messages with the messaging bridge through directories:
// commands are written to an outbox, bot messages are picked up from an inbox.
package spool

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// Command is one outgoing message for the bridge to deliver.
type Command struct {
	ID        string    `json:"id"`
	Peer      string    `json:"peer"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// Outbox writes commands as JSON files. It implements relay.Sender.
type Outbox struct {
	dir  string
	peer string
	now  func() time.Time
}

// NewOutbox creates the outbox directory if needed. peer is the bot username.
func NewOutbox(dir, peer string) (*Outbox, error) {
	if peer == "" {
		return nil, fmt.Errorf("outbox: bot username is required")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create outbox: %w", err)
	}
	return &Outbox{dir: dir, peer: peer, now: time.Now}, nil
}

// Dir returns the outbox directory.
func (o *Outbox) Dir() string {
	return o.dir
}

// Send writes text as a new command file. The file appears atomically: it is written
// under a dot-prefixed name and renamed, so the bridge never reads a partial command.
func (o *Outbox) Send(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	cmd := Command{
		ID:        uuid.New().String(),
		Peer:      o.peer,
		Text:      text,
		CreatedAt: o.now().UTC(),
	}
	data, err := json.MarshalIndent(cmd, "", "  ")
	if err != nil {
		return err
	}
	name := cmd.CreatedAt.Format("20060102T150405.000000000") + "_" + cmd.ID + ".json"
	tmp := filepath.Join(o.dir, "."+name)
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write command: %w", err)
	}
	if err := os.Rename(tmp, filepath.Join(o.dir, name)); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to publish command: %w", err)
	}
	return nil
}
