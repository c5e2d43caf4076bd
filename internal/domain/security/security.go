package security

import (
	"time"

	"github.com/google/uuid"
)

// FraudType categorizes what kind of abuse an alert describes.
type FraudType string

const (
	FraudPayment            FraudType = "payment_fraud"
	FraudIdentityTheft      FraudType = "identity_theft"
	FraudPhishing           FraudType = "phishing"
	FraudUnauthorizedAccess FraudType = "unauthorized_access"
	FraudSocialEngineering  FraudType = "social_engineering"
)

// Level is the severity attached to an alert.
type Level string

const (
	LevelMedium   Level = "medium"
	LevelHigh     Level = "high"
	LevelCritical Level = "critical"
)

// AlertStatus tracks an alert through triage. Alerts are never deleted.
type AlertStatus string

const (
	AlertOpen         AlertStatus = "open"
	AlertInvestigated AlertStatus = "investigated"
	AlertClosed       AlertStatus = "closed"
)

// Alert is raised whenever the security filter flags or blocks a call.
type Alert struct {
	ID          uuid.UUID         `json:"id"`
	Type        FraudType         `json:"type"`
	Level       Level             `json:"level"`
	Description string            `json:"description"`
	CallID      uuid.UUID         `json:"call_id"`
	CallerPhone string            `json:"caller_phone"`
	CallData    map[string]string `json:"call_data,omitempty"`
	Timestamp   time.Time         `json:"timestamp"`
	Status      AlertStatus       `json:"status"`
	AssignedTo  *string           `json:"assigned_to,omitempty"`
	Notes       *string           `json:"notes,omitempty"`
}

// NewAlert creates an open alert for a call.
func NewAlert(fraudType FraudType, level Level, description string, callID uuid.UUID, callerPhone string) *Alert {
	return &Alert{
		ID:          uuid.New(),
		Type:        fraudType,
		Level:       level,
		Description: description,
		CallID:      callID,
		CallerPhone: callerPhone,
		Timestamp:   time.Now(),
		Status:      AlertOpen,
	}
}

// Action records what the filter did with an evaluated call.
type Action string

const (
	ActionAllowed Action = "allowed"
	ActionFlagged Action = "flagged"
	ActionBlocked Action = "blocked"
)

// LogEntry is the append-only fraud audit record written for every call the
// filter evaluates. The rolling suspicious-activity count per phone number is
// derived from these.
type LogEntry struct {
	ID               uuid.UUID         `json:"id"`
	CallID           uuid.UUID         `json:"call_id"`
	CallerPhone      string            `json:"caller_phone"`
	RiskScore        float64           `json:"risk_score"`
	DetectedPatterns []PatternCategory `json:"detected_patterns"`
	ActionTaken      Action            `json:"action_taken"`
	Timestamp        time.Time         `json:"timestamp"`
	Metadata         map[string]string `json:"metadata,omitempty"`
}
