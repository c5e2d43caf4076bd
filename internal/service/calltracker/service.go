package calltracker

import (
	"context"
	"database/sql"
	"errors"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/classbridge/frontdesk-backend/internal/domain/call"
	domainerrors "github.com/classbridge/frontdesk-backend/internal/domain/errors"
	"github.com/classbridge/frontdesk-backend/internal/infrastructure/cache"
	"github.com/classbridge/frontdesk-backend/internal/infrastructure/metrics"
)

// Tracker owns the active-call index and the call lifecycle: creation,
// status transitions, callback scheduling, and the sweep that turns due
// callbacks into outgoing calls.
type Tracker struct {
	repo          CallRepository
	conversations Conversations
	cache         cache.Cache
	metrics       *metrics.Metrics
	logger        *zap.Logger

	mu     sync.RWMutex
	active map[uuid.UUID]*call.Call
}

// NewTracker creates a call lifecycle tracker.
func NewTracker(repo CallRepository, conversations Conversations, c cache.Cache, m *metrics.Metrics, logger *zap.Logger) *Tracker {
	return &Tracker{
		repo:          repo,
		conversations: conversations,
		cache:         c,
		metrics:       m,
		logger:        logger,
		active:        make(map[uuid.UUID]*call.Call),
	}
}

// StartIncoming registers an inbound call and starts its paired conversation.
func (t *Tracker) StartIncoming(ctx context.Context, caller call.CallerInfo, userQuery string) (*call.Call, error) {
	c, err := call.NewIncomingCall(caller, userQuery)
	if err != nil {
		return nil, domainerrors.NewValidationError("INVALID_CALL", "failed to create call").WithCause(err)
	}

	if err := t.repo.Create(ctx, c); err != nil {
		return nil, domainerrors.NewInternalError("failed to persist call").WithCause(err)
	}

	t.index(ctx, c)

	if _, err := t.conversations.Start(ctx, c.ID, caller); err != nil {
		return nil, err
	}

	return c, nil
}

// StartOutgoing registers an agent-initiated call. No conversation is
// started until the remote party answers.
func (t *Tracker) StartOutgoing(ctx context.Context, caller call.CallerInfo, userQuery string) (*call.Call, error) {
	c, err := call.NewOutgoingCall(caller, userQuery)
	if err != nil {
		return nil, domainerrors.NewValidationError("INVALID_CALL", "failed to create call").WithCause(err)
	}

	if err := t.repo.Create(ctx, c); err != nil {
		return nil, domainerrors.NewInternalError("failed to persist call").WithCause(err)
	}

	t.index(ctx, c)
	return c, nil
}

// Get returns a call, rehydrating from cache or the durable log when absent
// from the active index. Lookup failures return nil, not an error.
func (t *Tracker) Get(ctx context.Context, callID uuid.UUID) *call.Call {
	t.mu.RLock()
	c, ok := t.active[callID]
	t.mu.RUnlock()
	if ok {
		return c
	}

	var cached call.Call
	if err := t.cache.GetJSON(ctx, cache.CallPrefix+callID.String(), &cached); err == nil {
		t.indexOnly(&cached)
		return &cached
	}

	c, err := t.repo.GetByID(ctx, callID)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			t.logger.Warn("call lookup failed",
				zap.String("call_id", callID.String()), zap.Error(err))
		}
		return nil
	}
	t.indexOnly(c)
	return c
}

// UpdateStatus transitions a call. Terminal statuses evict the call from the
// active index and end its conversation.
func (t *Tracker) UpdateStatus(ctx context.Context, callID uuid.UUID, status call.Status, update StatusUpdate) error {
	c := t.Get(ctx, callID)
	if c == nil {
		return domainerrors.ErrCallNotFound
	}

	switch {
	case status == call.StatusCompleted && update.Duration != nil:
		recording := ""
		if update.RecordingURL != nil {
			recording = *update.RecordingURL
		}
		if err := c.Complete(*update.Duration, recording); err != nil {
			return domainerrors.NewValidationError("INVALID_UPDATE", "invalid completion data").WithCause(err)
		}
	case status == call.StatusFailed:
		c.Fail()
	default:
		c.UpdateStatus(status)
		if update.Duration != nil {
			c.Duration = update.Duration
		}
		if update.RecordingURL != nil {
			c.RecordingURL = update.RecordingURL
		}
	}

	if err := t.repo.Update(ctx, c); err != nil {
		return domainerrors.NewInternalError("failed to persist status change").WithCause(err)
	}

	if status.IsTerminal() {
		t.evict(ctx, callID)
		if err := t.conversations.End(ctx, callID); err != nil {
			t.logger.Warn("failed to end conversation for terminal call",
				zap.String("call_id", callID.String()), zap.Error(err))
		}
	} else {
		t.cacheSet(ctx, c)
	}

	return nil
}

// ScheduleCallback creates a scheduled call the sweep will pick up.
func (t *Tracker) ScheduleCallback(ctx context.Context, req CallbackRequest) (uuid.UUID, error) {
	if req.PhoneNumber == "" {
		return uuid.Nil, domainerrors.NewValidationError("MISSING_PHONE", "callback requires a phone number")
	}
	if req.Purpose == "" {
		return uuid.Nil, domainerrors.NewValidationError("MISSING_PURPOSE", "callback requires a purpose")
	}

	caller := call.CallerInfo{PhoneNumber: req.PhoneNumber, PreferredTime: &req.PreferredTime}
	c, err := call.NewScheduledCallback(caller, req.Purpose, req.PreferredTime)
	if err != nil {
		return uuid.Nil, domainerrors.NewValidationError("INVALID_CALLBACK", "failed to create callback").WithCause(err)
	}
	if req.Priority != "" {
		c.Metadata["priority"] = req.Priority
	}

	if err := t.repo.Create(ctx, c); err != nil {
		return uuid.Nil, domainerrors.NewInternalError("failed to persist callback").WithCause(err)
	}

	return c.ID, nil
}

// SweepDueCallbacks transitions every due scheduled callback to outgoing.
// Per-callback failures are logged and skipped so one bad record cannot
// abort the sweep.
func (t *Tracker) SweepDueCallbacks(ctx context.Context) (int, error) {
	due, err := t.repo.ListDueCallbacks(ctx)
	if err != nil {
		return 0, domainerrors.NewInternalError("failed to list due callbacks").WithCause(err)
	}

	executed := 0
	for _, c := range due {
		c.UpdateStatus(call.StatusOutgoing)
		if err := t.repo.Update(ctx, c); err != nil {
			t.logger.Error("callback execution failed",
				zap.String("call_id", c.ID.String()),
				zap.String("phone", c.Caller.PhoneNumber),
				zap.Error(err))
			continue
		}
		t.metrics.CallbacksSwept.Inc()
		t.logger.Info("callback executed",
			zap.String("call_id", c.ID.String()),
			zap.String("phone", c.Caller.PhoneNumber))
		executed++
	}

	return executed, nil
}

// GetHistory returns recent calls for a phone number, newest first. Read
// failures degrade to an empty result.
func (t *Tracker) GetHistory(ctx context.Context, phoneNumber string, limit int) []*call.Call {
	history, err := t.repo.GetHistory(ctx, phoneNumber, limit)
	if err != nil {
		t.logger.Warn("call history lookup failed",
			zap.String("phone", phoneNumber), zap.Error(err))
		return nil
	}
	return history
}

// ActiveCount reports how many calls are held in memory.
func (t *Tracker) ActiveCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.active)
}

func (t *Tracker) index(ctx context.Context, c *call.Call) {
	t.indexOnly(c)
	t.cacheSet(ctx, c)
}

func (t *Tracker) indexOnly(c *call.Call) {
	t.mu.Lock()
	t.active[c.ID] = c
	t.mu.Unlock()
}

func (t *Tracker) evict(ctx context.Context, callID uuid.UUID) {
	t.mu.Lock()
	delete(t.active, callID)
	t.mu.Unlock()

	if err := t.cache.Delete(ctx, cache.CallPrefix+callID.String()); err != nil {
		t.logger.Debug("call cache evict failed",
			zap.String("call_id", callID.String()), zap.Error(err))
	}
}

func (t *Tracker) cacheSet(ctx context.Context, c *call.Call) {
	if err := t.cache.SetJSON(ctx, cache.CallPrefix+c.ID.String(), c, cache.ActiveEntityTTL); err != nil {
		t.logger.Debug("call cache write failed",
			zap.String("call_id", c.ID.String()), zap.Error(err))
	}
}
