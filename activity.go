package accounts

import (
	"context"
	"time"
)

// ActivityEventType names a lifecycle event published to the ActivitySink.
type ActivityEventType string

const (
	ActivityEventAccountConfirmed ActivityEventType = "account.confirmed"
	ActivityEventAccountFrozen    ActivityEventType = "account.frozen"
	ActivityEventAccountRestored  ActivityEventType = "account.restored"
	ActivityEventAccountDeleted   ActivityEventType = "account.deleted"
	ActivityEventPasswordRotated  ActivityEventType = "account.password_rotated"
)

// ActivityEvent captures who changed what, and when.
type ActivityEvent struct {
	EventType  ActivityEventType
	Actor      ActorRef
	AccountID  string
	FromStatus AccountStatus
	ToStatus   AccountStatus
	Metadata   map[string]any
	OccurredAt time.Time
}

// ActivitySink receives lifecycle events. Implementations must not block;
// failures are logged, never propagated to the caller.
type ActivitySink interface {
	Record(ctx context.Context, event ActivityEvent) error
}

type noopActivitySink struct{}

func (noopActivitySink) Record(context.Context, ActivityEvent) error { return nil }

func normalizeActivitySink(sink ActivitySink) ActivitySink {
	if sink == nil {
		return noopActivitySink{}
	}
	return sink
}

// LoggerActivitySink writes lifecycle events to the package logger.
type LoggerActivitySink struct {
	Logger Logger
}

func (s LoggerActivitySink) Record(_ context.Context, event ActivityEvent) error {
	logger := s.Logger
	if logger == nil {
		logger = defLogger{}
	}
	logger.Info("activity %s account=%s actor=%s from=%s to=%s",
		event.EventType, event.AccountID, event.Actor.ID, event.FromStatus, event.ToStatus)
	return nil
}
