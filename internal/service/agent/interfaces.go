package agent

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/classbridge/frontdesk-backend/internal/domain/call"
	"github.com/classbridge/frontdesk-backend/internal/domain/conversation"
	"github.com/classbridge/frontdesk-backend/internal/service/calltracker"
	securitysvc "github.com/classbridge/frontdesk-backend/internal/service/security"
)

// CallTracker is the lifecycle surface the agent drives.
type CallTracker interface {
	StartIncoming(ctx context.Context, caller call.CallerInfo, userQuery string) (*call.Call, error)
	StartOutgoing(ctx context.Context, caller call.CallerInfo, userQuery string) (*call.Call, error)
	Get(ctx context.Context, callID uuid.UUID) *call.Call
	UpdateStatus(ctx context.Context, callID uuid.UUID, status call.Status, update calltracker.StatusUpdate) error
	ScheduleCallback(ctx context.Context, req calltracker.CallbackRequest) (uuid.UUID, error)
}

// SecurityFilter gates calls before any processing.
type SecurityFilter interface {
	Evaluate(ctx context.Context, c *call.Call) (*securitysvc.Decision, error)
	ValidateOutgoing(ctx context.Context, phoneNumber, purpose string) error
}

// Conversations is the dialogue surface the agent advances per turn.
type Conversations interface {
	Get(ctx context.Context, callID uuid.UUID) (*conversation.Conversation, error)
	AddTurn(ctx context.Context, callID uuid.UUID, turn conversation.Turn) (*conversation.Conversation, error)
}

// Ticketing hands a call off to a human.
type Ticketing interface {
	// CreateTicket opens a support ticket and returns its id
	CreateTicket(ctx context.Context, req TicketRequest) (string, error)
}

// TicketRequest describes a handoff to support staff.
type TicketRequest struct {
	Issue    string
	Priority string
	Contact  string
}

// Notifier dispatches email/SMS. Fire-and-forget from the agent's
// perspective: failures are logged, never retried here.
type Notifier interface {
	Send(ctx context.Context, n Notification) error
}

// Notification is one outbound message.
type Notification struct {
	To      string
	Subject string
	Body    string
}

// Directory is the read-only student/school lookup collaborator.
type Directory interface {
	// FindSchool returns nil when no school matches
	FindSchool(ctx context.Context, name string) (*SchoolRecord, error)
	// FindStudent returns nil when no student matches
	FindStudent(ctx context.Context, name, className string) (*StudentRecord, error)
}

// SchoolRecord is the directory's view of a school.
type SchoolRecord struct {
	ID      uuid.UUID
	Name    string
	Address string
	Phone   string
}

// StudentRecord is the directory's view of a student.
type StudentRecord struct {
	ID              uuid.UUID
	Name            string
	ClassName       string
	ClassArm        string
	GuardianEmail   string
	OutstandingFees decimal.Decimal
}

// PaymentLinker generates hosted payment links for fee collection.
type PaymentLinker interface {
	GenerateLink(ctx context.Context, student *StudentRecord, amount decimal.Decimal) (string, error)
}

// Knowledge is the free-text content store behind general inquiries.
type Knowledge interface {
	// Search returns the best-matching answer, or "" when nothing matches
	Search(ctx context.Context, query string) (string, error)
}

// CallEvent is one telephony webhook delivery.
type CallEvent struct {
	CallID      uuid.UUID `json:"call_id,omitempty"`
	PhoneNumber string    `json:"phone_number" validate:"required"`
	Locale      string    `json:"locale,omitempty"`
	Utterance   string    `json:"utterance"`
	ReceivedAt  time.Time `json:"received_at,omitempty"`
}

// CallResult is what the webhook layer speaks back to the caller.
type CallResult struct {
	Success  bool              `json:"success"`
	Response string            `json:"response"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// OutgoingCallRequest asks the agent to dial out.
type OutgoingCallRequest struct {
	PhoneNumber string `json:"phone_number" validate:"required"`
	Purpose     string `json:"purpose" validate:"required"`
	Locale      string `json:"locale,omitempty"`
}
