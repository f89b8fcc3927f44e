// Package queue defines audit payloads exchanged over the message broker and
// the consumer that persists them.
package queue

import "time"

// Event kinds.
const (
	KindResource = "resource"
	KindAuth     = "auth"
)

// AuditEvent is published after every successful resource write and every
// token lifecycle transition.  It carries enough context for downstream
// consumers to log or notify without querying the primary database.
type AuditEvent struct {
	Kind       string    `json:"kind"`
	Resource   string    `json:"resource"`
	Action     string    `json:"action"`
	RecordID   string    `json:"record_id,omitempty"`
	Actor      string    `json:"actor"`
	Outcome    string    `json:"outcome,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}
