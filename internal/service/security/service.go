package security

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/classbridge/frontdesk-backend/internal/domain/call"
	"github.com/classbridge/frontdesk-backend/internal/domain/errors"
	"github.com/classbridge/frontdesk-backend/internal/domain/security"
	"github.com/classbridge/frontdesk-backend/internal/infrastructure/config"
	"github.com/classbridge/frontdesk-backend/internal/infrastructure/metrics"
)

const (
	patternWeight = 0.2
	offHoursBonus = 0.10
)

// Filter gates every call before the agent processes it.
type Filter struct {
	store   Store
	audit   AuditSink
	cfg     config.SecurityConfig
	metrics *metrics.Metrics
	logger  *zap.Logger
	now     func() time.Time
}

// NewFilter creates the security filter. The clock is injectable so the
// off-hours bonus is testable.
func NewFilter(store Store, audit AuditSink, cfg config.SecurityConfig, m *metrics.Metrics, logger *zap.Logger) *Filter {
	return &Filter{
		store:   store,
		audit:   audit,
		cfg:     cfg,
		metrics: m,
		logger:  logger,
		now:     time.Now,
	}
}

// SetClock overrides the filter's clock, for tests.
func (f *Filter) SetClock(now func() time.Time) {
	f.now = now
}

// Evaluate scores an inbound call and decides whether it may proceed.
//
// When evaluation itself fails (storage down, etc.) the filter fails OPEN:
// the call is allowed through. That is a deliberate availability-over-security
// tradeoff; it is logged at WARN under a dedicated message and counted in
// frontdesk_security_fail_open_total so a regression cannot hide.
func (f *Filter) Evaluate(ctx context.Context, c *call.Call) (*Decision, error) {
	if c == nil {
		return nil, errors.NewValidationError("INVALID_CALL", "call cannot be nil")
	}

	decision, err := f.evaluate(ctx, c)
	if err != nil {
		f.logger.Warn("security filter failed open",
			zap.String("call_id", c.ID.String()),
			zap.String("caller_phone", c.Caller.PhoneNumber),
			zap.Error(err))
		f.metrics.SecurityFailOpen.Inc()
		return &Decision{Allowed: true, Action: security.ActionAllowed, Reason: "evaluation failed, allowing by policy"}, nil
	}
	return decision, nil
}

func (f *Filter) evaluate(ctx context.Context, c *call.Call) (*Decision, error) {
	patterns := security.DetectPatterns(c.UserQuery)
	score := f.riskScore(c.UserQuery, patterns)

	// Repeat offenders are rejected regardless of the current utterance.
	since := f.now().Add(-f.cfg.SuspiciousWindow)
	suspicious, err := f.store.CountSuspicious(ctx, c.Caller.PhoneNumber, since)
	if err != nil {
		return nil, fmt.Errorf("suspicious-activity lookup: %w", err)
	}
	if suspicious > f.cfg.SuspiciousLimit {
		return f.reject(ctx, c, patterns, score,
			security.FraudSocialEngineering, security.LevelHigh,
			fmt.Sprintf("caller has %d suspicious events in the trailing window", suspicious))
	}

	switch {
	case score >= f.cfg.BlockThreshold:
		return f.reject(ctx, c, patterns, score,
			security.FraudTypeFor(patterns), security.LevelCritical,
			fmt.Sprintf("risk score %.2f exceeds block threshold", score))

	case score >= f.cfg.FlagThreshold:
		alert := security.NewAlert(security.FraudTypeFor(patterns), security.LevelHigh,
			fmt.Sprintf("risk score %.2f flagged for review", score),
			c.ID, c.Caller.PhoneNumber)
		alert.CallData = callSnapshot(c)
		if err := f.store.SaveAlert(ctx, alert); err != nil {
			return nil, fmt.Errorf("saving flag alert: %w", err)
		}

		f.appendLog(ctx, c, score, patterns, security.ActionFlagged)
		f.metrics.SecurityBlocks.WithLabelValues(string(security.ActionFlagged)).Inc()

		return &Decision{
			Allowed:   true,
			Action:    security.ActionFlagged,
			Reason:    alert.Description,
			AlertID:   &alert.ID,
			RiskScore: score,
			Patterns:  patterns,
		}, nil

	default:
		// Clean calls stay out of the fraud log; an allow is only worth
		// recording when something matched.
		if len(patterns) > 0 {
			f.appendLog(ctx, c, score, patterns, security.ActionAllowed)
		}
		f.metrics.SecurityBlocks.WithLabelValues(string(security.ActionAllowed)).Inc()
		return &Decision{
			Allowed:   true,
			Action:    security.ActionAllowed,
			RiskScore: score,
			Patterns:  patterns,
		}, nil
	}
}

func (f *Filter) reject(ctx context.Context, c *call.Call, patterns []security.PatternCategory, score float64, fraudType security.FraudType, level security.Level, reason string) (*Decision, error) {
	alert := security.NewAlert(fraudType, level, reason, c.ID, c.Caller.PhoneNumber)
	alert.CallData = callSnapshot(c)
	if err := f.store.SaveAlert(ctx, alert); err != nil {
		return nil, fmt.Errorf("saving block alert: %w", err)
	}

	f.appendLog(ctx, c, score, patterns, security.ActionBlocked)
	f.metrics.SecurityBlocks.WithLabelValues(string(security.ActionBlocked)).Inc()

	return &Decision{
		Allowed:   false,
		Action:    security.ActionBlocked,
		Reason:    reason,
		AlertID:   &alert.ID,
		RiskScore: score,
		Patterns:  patterns,
	}, nil
}

// ValidateOutgoing checks an outbound call request before dialing. Parameter
// validation runs first; the blocked-number lookup is only reached with a
// complete request.
func (f *Filter) ValidateOutgoing(ctx context.Context, phoneNumber, purpose string) error {
	if phoneNumber == "" {
		return errors.NewValidationError("MISSING_PHONE", "outgoing call requires a phone number")
	}
	if purpose == "" {
		return errors.NewValidationError("MISSING_PURPOSE", "outgoing call requires a purpose")
	}

	since := f.now().Add(-f.cfg.BlockedCallWindow)
	blocked, err := f.store.HasBlockedEntry(ctx, phoneNumber, since)
	if err != nil {
		// Fail-open applies to outbound validation too.
		f.logger.Warn("security filter failed open",
			zap.String("caller_phone", phoneNumber),
			zap.Error(err))
		f.metrics.SecurityFailOpen.Inc()
		return nil
	}
	if blocked {
		return errors.NewSecurityError("blocked_number",
			"phone number was blocked for fraud within the trailing window")
	}
	return nil
}

func (f *Filter) riskScore(query string, patterns []security.PatternCategory) float64 {
	score := patternWeight*float64(len(patterns)) + security.UrgencyBonus(query)

	hour := f.now().Hour()
	if hour < 8 || hour > 18 {
		score += offHoursBonus
	}

	if score > 1.0 {
		return 1.0
	}
	return score
}

func (f *Filter) appendLog(ctx context.Context, c *call.Call, score float64, patterns []security.PatternCategory, action security.Action) {
	f.audit.Append(ctx, &security.LogEntry{
		ID:               uuid.New(),
		CallID:           c.ID,
		CallerPhone:      c.Caller.PhoneNumber,
		RiskScore:        score,
		DetectedPatterns: patterns,
		ActionTaken:      action,
		Timestamp:        f.now(),
		Metadata:         map[string]string{"query": c.UserQuery},
	})
}

func callSnapshot(c *call.Call) map[string]string {
	return map[string]string{
		"call_id":    c.ID.String(),
		"phone":      c.Caller.PhoneNumber,
		"user_query": c.UserQuery,
		"status":     c.Status.String(),
	}
}
