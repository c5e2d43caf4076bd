package repository

import (
	"context"

	"go.uber.org/zap"

	"github.com/classbridge/frontdesk-backend/internal/domain/security"
)

// BestEffortFraudSink wraps the fraud log with fire-and-forget semantics:
// a failed append is logged and dropped. The operational record of what
// happened to a call must never be lost to an audit hiccup.
type BestEffortFraudSink struct {
	repo   *FraudRepository
	logger *zap.Logger
}

// NewBestEffortFraudSink creates the audit sink over a fraud repository.
func NewBestEffortFraudSink(repo *FraudRepository, logger *zap.Logger) *BestEffortFraudSink {
	return &BestEffortFraudSink{repo: repo, logger: logger}
}

// Append writes a fraud log entry, swallowing any storage failure.
func (s *BestEffortFraudSink) Append(ctx context.Context, entry *security.LogEntry) {
	if err := s.repo.AppendLog(ctx, entry); err != nil {
		s.logger.Error("fraud log append dropped",
			zap.String("call_id", entry.CallID.String()),
			zap.String("action", string(entry.ActionTaken)),
			zap.Error(err))
	}
}
