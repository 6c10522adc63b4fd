package models

// EventKind distinguishes freshly sent bot messages from in-place edits.
type EventKind string

const (
	// EventNew is a new message from the bot.
	EventNew EventKind = "new"
	// EventEdited is an edit of an earlier bot message (the bot edits "searching..." into the result).
	EventEdited EventKind = "edited"
)

// ReplyEvent is one inbound message notification from the messaging bridge.
type ReplyEvent struct {
	ID      string     `json:"id,omitempty"`
	Kind    EventKind  `json:"kind"`
	Text    *string    `json:"text"`
	Buttons [][]string `json:"buttons,omitempty"`
}

// TextOrEmpty returns the payload text, or "" when the message carries none.
func (e *ReplyEvent) TextOrEmpty() string {
	if e.Text == nil {
		return ""
	}
	return *e.Text
}

// Outcome statuses reported by the relay for one inbound event.
const (
	OutcomeSkipped  = "skipped"
	OutcomeRejected = "rejected"
	OutcomeSaved    = "saved"
	OutcomeFailed   = "failed"
)

// Outcome describes what the relay did with an inbound event.
type Outcome struct {
	EventID       string   `json:"event_id,omitempty"`
	Status        string   `json:"status"`
	Reason        string   `json:"reason,omitempty"`
	INN           string   `json:"inn,omitempty"`
	SourceQueryID int64    `json:"source_query_id,omitempty"`
	Fallback      bool     `json:"fallback,omitempty"`
	Missing       []string `json:"missing,omitempty"`
}
