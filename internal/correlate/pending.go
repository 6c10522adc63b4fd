// Package correlate pairs bot replies with the command that asked for them.
//
// The bot's reply does not reference the command message, so pairing is done by INN:
// when a "/inn <INN>" command is sent its query id is remembered, and the reply carrying
// that INN later resolves to it. The map lives for the process only.
package correlate

import (
	"regexp"
	"strings"
	"sync"
)

// DefaultPrefix is the bot command that carries an INN.
const DefaultPrefix = "/inn"

var reCommandArg = regexp.MustCompile(`^\s+(\d{12}|\d{10})(?:\s|$)`)

// Pending maps INN to the id of the most recent query that asked for it.
type Pending struct {
	mu      sync.Mutex
	queries map[string]int64
}

// NewPending creates an empty map.
func NewPending() *Pending {
	return &Pending{queries: make(map[string]int64)}
}

// RecordPending remembers queryID as the latest request for inn, replacing an earlier one.
func (p *Pending) RecordPending(inn string, queryID int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.queries[inn] = queryID
}

// Resolve returns the query id recorded for inn. The entry stays, so a bot that edits
// the same reply twice still resolves to the same query.
func (p *Pending) Resolve(inn string) (int64, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	id, ok := p.queries[inn]
	return id, ok
}

// Len returns the number of INNs awaiting or having received a reply.
func (p *Pending) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queries)
}

// CommandINN returns the INN argument when command is "<prefix> <10 or 12 digits>".
// The prefix is matched case-insensitively; an empty prefix means DefaultPrefix.
func CommandINN(command, prefix string) (string, bool) {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	s := strings.TrimSpace(command)
	if len(s) < len(prefix) || !strings.EqualFold(s[:len(prefix)], prefix) {
		return "", false
	}
	m := reCommandArg.FindStringSubmatch(s[len(prefix):])
	if m == nil {
		return "", false
	}
	return m[1], true
}
