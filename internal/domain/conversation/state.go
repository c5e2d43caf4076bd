package conversation

import (
	"strings"
	"time"
)

// Step is a position in the front-desk dialogue flow.
type Step string

const (
	StepGreeting              Step = "greeting"
	StepSchoolInquiry         Step = "school_inquiry"
	StepPaymentInquiry        Step = "payment_inquiry"
	StepCollectingStudentInfo Step = "collecting_student_info"
	StepVerifyingStudent      Step = "verifying_student"
	StepProcessingPayment     Step = "processing_payment"
	StepProvidingSchoolInfo   Step = "providing_school_info"
	StepSchoolNotFound        Step = "school_not_found"
	StepStudentNotFound       Step = "student_not_found"
	StepPaymentComplete       Step = "payment_complete"
	StepCompleted             Step = "completed"
)

// State tracks where a conversation is in the dialogue flow and what it has
// accumulated along the way.
type State struct {
	CurrentStep    Step              `json:"current_step"`
	CompletedSteps []Step            `json:"completed_steps"`
	PendingActions []string          `json:"pending_actions"`
	Data           map[string]string `json:"data"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

// ActionScheduleCallback is the pending-action tag carried by turns whose
// intent asks for a callback.
const ActionScheduleCallback = "schedule_callback"

// rule is one row of the transition table.
type rule struct {
	from     Step
	speaker  Speaker
	keywords []string
	to       Step
}

// Substring matching is deliberate: the flow is driven by the fixed phrasing
// of agent responses and a handful of caller keywords, not NLP.
var transitionTable = []rule{
	{StepGreeting, SpeakerUser, []string{"school"}, StepSchoolInquiry},
	{StepGreeting, SpeakerUser, []string{"pay", "fee"}, StepPaymentInquiry},
	{StepSchoolInquiry, SpeakerAgent, []string{"school found"}, StepProvidingSchoolInfo},
	{StepSchoolInquiry, SpeakerAgent, []string{"school not found"}, StepSchoolNotFound},
	{StepPaymentInquiry, SpeakerAgent, []string{"student details"}, StepCollectingStudentInfo},
	{StepCollectingStudentInfo, SpeakerUser, []string{"class", "grade"}, StepVerifyingStudent},
	{StepVerifyingStudent, SpeakerAgent, []string{"student found"}, StepProcessingPayment},
	{StepVerifyingStudent, SpeakerAgent, []string{"student not found"}, StepStudentNotFound},
	{StepProcessingPayment, SpeakerAgent, []string{"payment link"}, StepPaymentComplete},
}

// Transition applies one turn to a state. It is a pure function of
// (currentStep, speaker, message): only rules for the current step are
// considered, so a message matching several steps' triggers never jumps more
// than one step. Two side effects apply on every turn regardless of matching:
// a schedule_callback intent is queued as a pending action, and turn entities
// merge into State.Data with per-key last-write-wins.
func Transition(state State, turn Turn) State {
	next := cloneState(state)
	changed := false

	msg := strings.ToLower(turn.Message)
	for _, r := range transitionTable {
		if r.from != state.CurrentStep || r.speaker != turn.Speaker {
			continue
		}
		if !containsAny(msg, r.keywords) {
			continue
		}
		next.CompletedSteps = append(next.CompletedSteps, state.CurrentStep)
		next.CurrentStep = r.to
		changed = true
		break
	}

	if turn.Intent == ActionScheduleCallback {
		next.PendingActions = append(next.PendingActions, ActionScheduleCallback)
		changed = true
	}

	if len(turn.Entities) > 0 {
		for k, v := range turn.Entities {
			next.Data[k] = v
		}
		changed = true
	}

	if changed {
		next.UpdatedAt = time.Now()
	}
	return next
}

func containsAny(msg string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(msg, kw) {
			return true
		}
	}
	return false
}

func cloneState(s State) State {
	out := State{
		CurrentStep:    s.CurrentStep,
		CompletedSteps: make([]Step, len(s.CompletedSteps)),
		PendingActions: make([]string, len(s.PendingActions)),
		Data:           make(map[string]string, len(s.Data)),
		UpdatedAt:      s.UpdatedAt,
	}
	copy(out.CompletedSteps, s.CompletedSteps)
	copy(out.PendingActions, s.PendingActions)
	for k, v := range s.Data {
		out.Data[k] = v
	}
	return out
}
