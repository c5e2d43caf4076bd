package calltracker

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/classbridge/frontdesk-backend/internal/domain/call"
	"github.com/classbridge/frontdesk-backend/internal/domain/conversation"
)

// CallRepository is the durable call log.
type CallRepository interface {
	// Create inserts a new call record
	Create(ctx context.Context, c *call.Call) error
	// Update persists status and completion fields
	Update(ctx context.Context, c *call.Call) error
	// GetByID retrieves a call
	GetByID(ctx context.Context, id uuid.UUID) (*call.Call, error)
	// GetHistory returns recent calls for a phone number, newest first
	GetHistory(ctx context.Context, phoneNumber string, limit int) ([]*call.Call, error)
	// ListDueCallbacks returns scheduled callbacks past their due time
	ListDueCallbacks(ctx context.Context) ([]*call.Call, error)
}

// Conversations is the slice of the conversation manager the tracker needs:
// incoming calls start a paired conversation, terminal calls end it.
type Conversations interface {
	Start(ctx context.Context, callID uuid.UUID, caller call.CallerInfo) (*conversation.Conversation, error)
	End(ctx context.Context, callID uuid.UUID) error
}

// CallbackRequest schedules a future outgoing call.
type CallbackRequest struct {
	PhoneNumber   string    `json:"phone_number" validate:"required"`
	PreferredTime time.Time `json:"preferred_time" validate:"required"`
	Purpose       string    `json:"purpose" validate:"required"`
	Priority      string    `json:"priority,omitempty"`
}

// StatusUpdate carries the optional fields of a status-change webhook.
type StatusUpdate struct {
	Duration     *int
	RecordingURL *string
}
