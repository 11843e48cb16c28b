package publisher

import (
	"context"
	"time"
)

// Event types published for downstream consumers (notification fan-out,
// feed invalidation). Delivery of notifications themselves is external.
const (
	EventFollowCreated   = "follow.created"
	EventFollowRemoved   = "follow.removed"
	EventUserBlocked     = "user.blocked"
	EventUserUnblocked   = "user.unblocked"
	EventRequestCreated  = "follow_request.created"
	EventRequestApproved = "follow_request.approved"
	EventRequestRejected = "follow_request.rejected"
)

// Event is a relationship change notification.
type Event struct {
	Type      string    `json:"type"`
	ActorID   string    `json:"actor_id"`
	TargetID  string    `json:"target_id"`
	RequestID uint      `json:"request_id,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	At        time.Time `json:"at"`
}

// EventPublisher publishes relationship events. Publishing is best-effort:
// callers log failures but never roll back the mutation that produced the event.
type EventPublisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// Noop is an EventPublisher that drops everything. Used when no broker is
// configured.
type Noop struct{}

func (Noop) Publish(ctx context.Context, event Event) error { return nil }
func (Noop) Close() error                                   { return nil }

var _ EventPublisher = Noop{}
