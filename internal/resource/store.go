package resource

import (
	"context"

	"github.com/iliyamo/dms-api/internal/queue"
)

// Store persists records for any schema.  Implementations must honour the
// Condition operators and return ErrNotFound / ErrDuplicate (possibly
// wrapped) for missing rows and unique collisions.
type Store interface {
	Insert(ctx context.Context, s *Schema, rec Record) (Record, error)
	FindMany(ctx context.Context, s *Schema, q Query) ([]Record, error)
	Count(ctx context.Context, s *Schema, where []Condition) (int64, error)
	FindOne(ctx context.Context, s *Schema, where []Condition, fields []string) (Record, error)
	// Update sets the columns present in changes on the row with the given
	// numeric id and returns the row as stored afterwards.
	Update(ctx context.Context, s *Schema, id int64, changes Record) (Record, error)
	Delete(ctx context.Context, s *Schema, id int64) error
}

// EventSink receives audit events after successful writes.
type EventSink interface {
	Publish(ctx context.Context, ev queue.AuditEvent) error
}

// Action is the kind of write passed to hooks.
type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Caller identifies who issued the request.
type Caller struct {
	UserID   string
	RoleName string
}

// Actor is the value stamped into audit columns.
func (c Caller) Actor() string {
	if c.UserID == "" {
		return "system"
	}
	return c.UserID
}

// Hooks lets a resource transform payloads before a write and documents
// after it.
type Hooks interface {
	PreSave(ctx context.Context, payload Record, action Action, caller Caller) (Record, error)
	PostSave(ctx context.Context, rec Record, action Action, caller Caller) (Record, error)
}

// MergeHooks is an optional extension of Hooks.  PostMerge sees the stored
// record and the merged result of an update, so it can reshape fields that
// depend on values the payload omitted.
type MergeHooks interface {
	PostMerge(ctx context.Context, current, merged Record, caller Caller) (Record, error)
}

// NopHooks is the identity implementation.
type NopHooks struct{}

func (NopHooks) PreSave(_ context.Context, payload Record, _ Action, _ Caller) (Record, error) {
	return payload, nil
}

func (NopHooks) PostSave(_ context.Context, rec Record, _ Action, _ Caller) (Record, error) {
	return rec, nil
}
