package security

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/classbridge/frontdesk-backend/internal/domain/call"
	domainerrors "github.com/classbridge/frontdesk-backend/internal/domain/errors"
	"github.com/classbridge/frontdesk-backend/internal/domain/security"
	"github.com/classbridge/frontdesk-backend/internal/infrastructure/config"
	"github.com/classbridge/frontdesk-backend/internal/infrastructure/metrics"
)

type mockStore struct {
	mock.Mock
}

func (m *mockStore) SaveAlert(ctx context.Context, alert *security.Alert) error {
	args := m.Called(ctx, alert)
	return args.Error(0)
}

func (m *mockStore) CountSuspicious(ctx context.Context, phoneNumber string, since time.Time) (int, error) {
	args := m.Called(ctx, phoneNumber, since)
	return args.Int(0), args.Error(1)
}

func (m *mockStore) HasBlockedEntry(ctx context.Context, phoneNumber string, since time.Time) (bool, error) {
	args := m.Called(ctx, phoneNumber, since)
	return args.Bool(0), args.Error(1)
}

// captureSink records audit entries in memory.
type captureSink struct {
	entries []*security.LogEntry
}

func (s *captureSink) Append(_ context.Context, entry *security.LogEntry) {
	s.entries = append(s.entries, entry)
}

func testConfig() config.SecurityConfig {
	return config.SecurityConfig{
		BlockThreshold:    0.8,
		FlagThreshold:     0.5,
		SuspiciousWindow:  30 * 24 * time.Hour,
		SuspiciousLimit:   3,
		BlockedCallWindow: 7 * 24 * time.Hour,
	}
}

func newTestFilter(t *testing.T, store Store) (*Filter, *captureSink) {
	t.Helper()
	sink := &captureSink{}
	f := NewFilter(store, sink, testConfig(), metrics.NewNop(), zap.NewNop())
	// Fixed midday clock so the off-hours bonus stays out of most tests.
	f.SetClock(func() time.Time {
		return time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	})
	return f, sink
}

func newCall(t *testing.T, query string) *call.Call {
	t.Helper()
	c, err := call.NewIncomingCall(call.CallerInfo{PhoneNumber: "+15551234567"}, query)
	require.NoError(t, err)
	return c
}

func TestEvaluateAllowsBenignCall(t *testing.T) {
	store := &mockStore{}
	store.On("CountSuspicious", mock.Anything, "+15551234567", mock.Anything).Return(0, nil)
	f, sink := newTestFilter(t, store)

	decision, err := f.Evaluate(context.Background(), newCall(t, "what time does the school office open"))
	require.NoError(t, err)

	assert.True(t, decision.Allowed)
	assert.Equal(t, security.ActionAllowed, decision.Action)
	assert.Zero(t, decision.RiskScore)
	// nothing matched, so nothing lands in the fraud log
	assert.Empty(t, sink.entries)
	store.AssertNotCalled(t, "SaveAlert", mock.Anything, mock.Anything)
}

func TestEvaluateAllowsUrgentFeePayment(t *testing.T) {
	store := &mockStore{}
	store.On("CountSuspicious", mock.Anything, mock.Anything, mock.Anything).Return(0, nil)
	f, sink := newTestFilter(t, store)

	decision, err := f.Evaluate(context.Background(),
		newCall(t, "I want to pay my daughter's school fees urgently"))
	require.NoError(t, err)

	assert.True(t, decision.Allowed)
	assert.Equal(t, security.ActionAllowed, decision.Action)
	assert.InDelta(t, 0.30, decision.RiskScore, 1e-9)
	// allowed but with a matched pattern, so the allow is logged
	require.Len(t, sink.entries, 1)
	assert.Equal(t, security.ActionAllowed, sink.entries[0].ActionTaken)
}

func TestEvaluateBlocksCredentialHarvesting(t *testing.T) {
	store := &mockStore{}
	store.On("CountSuspicious", mock.Anything, mock.Anything, mock.Anything).Return(0, nil)
	store.On("SaveAlert", mock.Anything, mock.MatchedBy(func(a *security.Alert) bool {
		return a.Level == security.LevelCritical && a.Type == security.FraudPhishing
	})).Return(nil)
	f, sink := newTestFilter(t, store)

	decision, err := f.Evaluate(context.Background(),
		newCall(t, "Please verify my bank account information immediately, this is an emergency"))
	require.NoError(t, err)

	assert.False(t, decision.Allowed)
	assert.Equal(t, security.ActionBlocked, decision.Action)
	assert.GreaterOrEqual(t, decision.RiskScore, 0.8)
	require.NotNil(t, decision.AlertID)
	require.Len(t, sink.entries, 1)
	assert.Equal(t, security.ActionBlocked, sink.entries[0].ActionTaken)
	store.AssertExpectations(t)
}

func TestEvaluateFlagsMidBandRisk(t *testing.T) {
	store := &mockStore{}
	store.On("CountSuspicious", mock.Anything, mock.Anything, mock.Anything).Return(0, nil)
	store.On("SaveAlert", mock.Anything, mock.MatchedBy(func(a *security.Alert) bool {
		return a.Level == security.LevelHigh
	})).Return(nil)
	f, sink := newTestFilter(t, store)

	// payment urgency + social engineering + "urgent" lands exactly on the
	// flag threshold.
	decision, err := f.Evaluate(context.Background(),
		newCall(t, "urgent wire transfer needed before noon"))
	require.NoError(t, err)

	assert.True(t, decision.Allowed)
	assert.Equal(t, security.ActionFlagged, decision.Action)
	assert.InDelta(t, 0.50, decision.RiskScore, 1e-9)
	require.NotNil(t, decision.AlertID)
	require.Len(t, sink.entries, 1)
	assert.Equal(t, security.ActionFlagged, sink.entries[0].ActionTaken)
}

func TestEvaluateRejectsRepeatOffender(t *testing.T) {
	store := &mockStore{}
	store.On("CountSuspicious", mock.Anything, mock.Anything, mock.Anything).Return(4, nil)
	store.On("SaveAlert", mock.Anything, mock.MatchedBy(func(a *security.Alert) bool {
		return a.Level == security.LevelHigh && a.Type == security.FraudSocialEngineering
	})).Return(nil)
	f, _ := newTestFilter(t, store)

	decision, err := f.Evaluate(context.Background(), newCall(t, "hello, just checking in"))
	require.NoError(t, err)

	assert.False(t, decision.Allowed)
	assert.Equal(t, security.ActionBlocked, decision.Action)
	store.AssertExpectations(t)
}

func TestEvaluateToleratesHistoryAtLimit(t *testing.T) {
	store := &mockStore{}
	store.On("CountSuspicious", mock.Anything, mock.Anything, mock.Anything).Return(3, nil)
	f, _ := newTestFilter(t, store)

	decision, err := f.Evaluate(context.Background(), newCall(t, "hello, just checking in"))
	require.NoError(t, err)
	assert.True(t, decision.Allowed)
}

func TestEvaluateFailsOpenOnStoreError(t *testing.T) {
	store := &mockStore{}
	store.On("CountSuspicious", mock.Anything, mock.Anything, mock.Anything).
		Return(0, errors.New("connection refused"))
	f, _ := newTestFilter(t, store)

	decision, err := f.Evaluate(context.Background(), newCall(t, "hello"))
	require.NoError(t, err)

	assert.True(t, decision.Allowed)
	assert.Equal(t, security.ActionAllowed, decision.Action)
	assert.Equal(t, "evaluation failed, allowing by policy", decision.Reason)
	store.AssertNotCalled(t, "SaveAlert", mock.Anything, mock.Anything)
}

func TestEvaluateAddsOffHoursBonus(t *testing.T) {
	store := &mockStore{}
	store.On("CountSuspicious", mock.Anything, mock.Anything, mock.Anything).Return(0, nil)
	f, _ := newTestFilter(t, store)
	f.SetClock(func() time.Time {
		return time.Date(2025, 3, 10, 20, 0, 0, 0, time.UTC)
	})

	decision, err := f.Evaluate(context.Background(), newCall(t, "hello"))
	require.NoError(t, err)
	assert.InDelta(t, 0.10, decision.RiskScore, 1e-9)
}

func TestEvaluateCapsRiskScore(t *testing.T) {
	store := &mockStore{}
	store.On("CountSuspicious", mock.Anything, mock.Anything, mock.Anything).Return(0, nil)
	store.On("SaveAlert", mock.Anything, mock.Anything).Return(nil)
	f, _ := newTestFilter(t, store)

	decision, err := f.Evaluate(context.Background(),
		newCall(t, "urgent emergency: verify my bank account immediately"))
	require.NoError(t, err)
	assert.Equal(t, 1.0, decision.RiskScore)
}

func TestEvaluateRejectsNilCall(t *testing.T) {
	f, _ := newTestFilter(t, &mockStore{})

	_, err := f.Evaluate(context.Background(), nil)
	require.Error(t, err)
	assert.True(t, domainerrors.IsType(err, domainerrors.ErrorTypeValidation))
}

func TestValidateOutgoing(t *testing.T) {
	t.Run("missing phone fails before any lookup", func(t *testing.T) {
		store := &mockStore{}
		f, _ := newTestFilter(t, store)

		err := f.ValidateOutgoing(context.Background(), "", "fee reminder")
		require.Error(t, err)
		assert.True(t, domainerrors.IsType(err, domainerrors.ErrorTypeValidation))
		store.AssertNotCalled(t, "HasBlockedEntry", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("missing purpose fails before any lookup", func(t *testing.T) {
		store := &mockStore{}
		f, _ := newTestFilter(t, store)

		err := f.ValidateOutgoing(context.Background(), "+15551234567", "")
		require.Error(t, err)
		assert.True(t, domainerrors.IsType(err, domainerrors.ErrorTypeValidation))
		store.AssertNotCalled(t, "HasBlockedEntry", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("blocked number is refused", func(t *testing.T) {
		store := &mockStore{}
		store.On("HasBlockedEntry", mock.Anything, "+15551234567", mock.Anything).Return(true, nil)
		f, _ := newTestFilter(t, store)

		err := f.ValidateOutgoing(context.Background(), "+15551234567", "fee reminder")
		require.Error(t, err)
		assert.True(t, domainerrors.IsType(err, domainerrors.ErrorTypeSecurity))
	})

	t.Run("lookup failure fails open", func(t *testing.T) {
		store := &mockStore{}
		store.On("HasBlockedEntry", mock.Anything, mock.Anything, mock.Anything).
			Return(false, errors.New("connection refused"))
		f, _ := newTestFilter(t, store)

		assert.NoError(t, f.ValidateOutgoing(context.Background(), "+15551234567", "fee reminder"))
	})

	t.Run("clean number passes", func(t *testing.T) {
		store := &mockStore{}
		store.On("HasBlockedEntry", mock.Anything, mock.Anything, mock.Anything).Return(false, nil)
		f, _ := newTestFilter(t, store)

		assert.NoError(t, f.ValidateOutgoing(context.Background(), "+15551234567", "fee reminder"))
	})
}
