package call

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/classbridge/frontdesk-backend/internal/domain/validation"
)

type Call struct {
	ID        uuid.UUID `json:"id"`
	Status    Status    `json:"status"`
	Direction Direction `json:"direction"`

	Caller    CallerInfo `json:"caller"`
	UserQuery string     `json:"user_query"`

	Timestamp    time.Time  `json:"timestamp"`
	Duration     *int       `json:"duration,omitempty"`
	RecordingURL *string    `json:"recording_url,omitempty"`
	EndTime      *time.Time `json:"end_time,omitempty"`

	Metadata map[string]string `json:"metadata,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CallerInfo identifies the remote party on a call.
type CallerInfo struct {
	PhoneNumber   string     `json:"phone_number"`
	Locale        string     `json:"locale,omitempty"`
	PreferredTime *time.Time `json:"preferred_time,omitempty"`
}

type Status int

const (
	StatusIncoming Status = iota
	StatusOutgoing
	StatusInProgress
	StatusCompleted
	StatusFailed
	StatusScheduled
)

func (s Status) String() string {
	switch s {
	case StatusIncoming:
		return "incoming"
	case StatusOutgoing:
		return "outgoing"
	case StatusInProgress:
		return "in_progress"
	case StatusCompleted:
		return "completed"
	case StatusFailed:
		return "failed"
	case StatusScheduled:
		return "scheduled"
	default:
		return "unknown"
	}
}

// ParseStatus maps a stored status string back to its enum value.
func ParseStatus(s string) (Status, error) {
	switch s {
	case "incoming":
		return StatusIncoming, nil
	case "outgoing":
		return StatusOutgoing, nil
	case "in_progress":
		return StatusInProgress, nil
	case "completed":
		return StatusCompleted, nil
	case "failed":
		return StatusFailed, nil
	case "scheduled":
		return StatusScheduled, nil
	default:
		return StatusIncoming, fmt.Errorf("unknown call status %q", s)
	}
}

// IsTerminal reports whether the status ends a call's lifecycle.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

type Direction int

const (
	DirectionInbound Direction = iota
	DirectionOutbound
)

func (d Direction) String() string {
	switch d {
	case DirectionInbound:
		return "inbound"
	case DirectionOutbound:
		return "outbound"
	default:
		return "unknown"
	}
}

// NewIncomingCall creates a call record for an inbound webhook event.
func NewIncomingCall(caller CallerInfo, userQuery string) (*Call, error) {
	return newCall(caller, userQuery, StatusIncoming, DirectionInbound)
}

// NewOutgoingCall creates a call record for an agent-initiated call.
func NewOutgoingCall(caller CallerInfo, userQuery string) (*Call, error) {
	return newCall(caller, userQuery, StatusOutgoing, DirectionOutbound)
}

// NewScheduledCallback creates a call record that the callback sweep will
// later materialize into an outgoing call.
func NewScheduledCallback(caller CallerInfo, purpose string, scheduledAt time.Time) (*Call, error) {
	c, err := newCall(caller, purpose, StatusScheduled, DirectionOutbound)
	if err != nil {
		return nil, err
	}
	c.Metadata["type"] = "callback"
	c.Metadata["scheduled_time"] = scheduledAt.UTC().Format(time.RFC3339)
	return c, nil
}

func newCall(caller CallerInfo, userQuery string, status Status, direction Direction) (*Call, error) {
	if err := validation.ValidatePhoneNumber(caller.PhoneNumber); err != nil {
		return nil, fmt.Errorf("invalid caller phone: %w", err)
	}

	now := clock.Now()
	return &Call{
		ID:        uuid.New(),
		Status:    status,
		Direction: direction,
		Caller:    caller,
		UserQuery: userQuery,
		Timestamp: now,
		Metadata:  make(map[string]string),
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (c *Call) UpdateStatus(status Status) {
	now := clock.Now()
	c.Status = status
	// A terminal transition always closes the call, even when the webhook
	// carried no duration.
	if status.IsTerminal() && c.EndTime == nil {
		c.EndTime = &now
	}
	c.UpdatedAt = now
}

// Complete marks the call finished with its final duration and optional
// recording location.
func (c *Call) Complete(duration int, recordingURL string) error {
	if err := validation.ValidateDuration(duration); err != nil {
		return fmt.Errorf("invalid duration: %w", err)
	}

	now := clock.Now()
	c.Status = StatusCompleted
	c.EndTime = &now
	c.Duration = &duration
	if recordingURL != "" {
		c.RecordingURL = &recordingURL
	}
	c.UpdatedAt = now
	return nil
}

func (c *Call) Fail() {
	now := clock.Now()
	c.Status = StatusFailed
	c.EndTime = &now
	c.UpdatedAt = now
}

// ScheduledTime returns the callback due time for scheduled calls.
func (c *Call) ScheduledTime() (time.Time, bool) {
	raw, ok := c.Metadata["scheduled_time"]
	if !ok {
		return time.Time{}, false
	}
	ts, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, false
	}
	return ts, true
}
