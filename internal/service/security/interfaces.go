package security

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/classbridge/frontdesk-backend/internal/domain/security"
)

// Store is the durable side of the filter: alerts plus the fraud-log
// queries that feed the history checks. Failures here propagate into the
// fail-open path.
type Store interface {
	// SaveAlert stores a security alert
	SaveAlert(ctx context.Context, alert *security.Alert) error
	// CountSuspicious counts blocked/flagged log entries for a phone since a time
	CountSuspicious(ctx context.Context, phoneNumber string, since time.Time) (int, error)
	// HasBlockedEntry reports whether a phone has a blocked entry since a time
	HasBlockedEntry(ctx context.Context, phoneNumber string, since time.Time) (bool, error)
}

// AuditSink accepts fraud-log entries on a best-effort basis. Implementations
// capture and log their own failures; nothing propagates to the caller. The
// signature has no error on purpose, to keep the best-effort contract visible
// at every call site.
type AuditSink interface {
	Append(ctx context.Context, entry *security.LogEntry)
}

// Decision is the filter's verdict on a call.
type Decision struct {
	Allowed   bool
	Action    security.Action
	Reason    string
	AlertID   *uuid.UUID
	RiskScore float64
	Patterns  []security.PatternCategory
}
