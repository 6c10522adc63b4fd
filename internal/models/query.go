// Package models defines core data structures for bot queries, extracted registry fields, and stored results.
package models

import (
	"fmt"
	"strings"
	"time"
)

// QueryLogEntry is one outgoing command sent to the bot. Entries are append-only.
type QueryLogEntry struct {
	ID        int64     `json:"id" db:"id"`
	QueryText string    `json:"query_text" db:"query_text"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// CommandInput is the input for sending a command to the bot.
type CommandInput struct {
	Text string `json:"text"`
}

// Validate trims the command text and rejects empty commands.
func (c *CommandInput) Validate() error {
	c.Text = strings.TrimSpace(c.Text)
	if c.Text == "" {
		return fmt.Errorf("command text cannot be empty")
	}
	return nil
}
