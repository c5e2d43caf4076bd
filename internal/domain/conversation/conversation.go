package conversation

import (
	"time"

	"github.com/google/uuid"

	"github.com/classbridge/frontdesk-backend/internal/domain/call"
)

// Conversation is the per-call dialogue record: an ordered turn log plus the
// state the step machine derives from it.
type Conversation struct {
	ID        uuid.UUID       `json:"id"`
	CallID    uuid.UUID       `json:"call_id"`
	Caller    call.CallerInfo `json:"caller"`
	Turns     []Turn          `json:"turns"`
	State     State           `json:"state"`
	Completed bool            `json:"completed"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Speaker identifies which party produced a turn.
type Speaker string

const (
	SpeakerUser  Speaker = "user"
	SpeakerAgent Speaker = "agent"
)

// Turn is one utterance in a conversation. Turns are immutable once appended
// and ordered by timestamp ascending.
type Turn struct {
	Speaker    Speaker           `json:"speaker"`
	Message    string            `json:"message"`
	Timestamp  time.Time         `json:"timestamp"`
	Intent     string            `json:"intent,omitempty"`
	Entities   map[string]string `json:"entities,omitempty"`
	Confidence float64           `json:"confidence,omitempty"`
}

// New creates a conversation for a call, starting at the greeting step.
func New(callID uuid.UUID, caller call.CallerInfo) *Conversation {
	now := time.Now()
	return &Conversation{
		ID:     uuid.New(),
		CallID: callID,
		Caller: caller,
		State: State{
			CurrentStep:    StepGreeting,
			CompletedSteps: []Step{},
			PendingActions: []string{},
			Data:           map[string]string{},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Append records a turn and advances the state machine.
func (c *Conversation) Append(turn Turn) {
	if turn.Timestamp.IsZero() {
		turn.Timestamp = time.Now()
	}
	c.Turns = append(c.Turns, turn)
	c.State = Transition(c.State, turn)
	c.UpdatedAt = time.Now()
}

// End marks the conversation finished. Calling End on an already completed
// conversation is a no-op.
func (c *Conversation) End() {
	if c.Completed {
		return
	}
	c.Completed = true
	c.State.CurrentStep = StepCompleted
	c.State.UpdatedAt = time.Now()
	c.UpdatedAt = c.State.UpdatedAt
}
