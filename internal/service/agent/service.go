package agent

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/classbridge/frontdesk-backend/internal/domain/call"
	"github.com/classbridge/frontdesk-backend/internal/domain/conversation"
	domainerrors "github.com/classbridge/frontdesk-backend/internal/domain/errors"
	"github.com/classbridge/frontdesk-backend/internal/infrastructure/metrics"
	"github.com/classbridge/frontdesk-backend/internal/service/calltracker"
	"github.com/classbridge/frontdesk-backend/internal/service/intent"
)

// Classifier is the intent-classification surface the agent consumes.
type Classifier interface {
	Classify(ctx context.Context, utterance string) *intent.Classification
}

// Service is the front-desk orchestrator: one inbound call event flows
// through the security gate, the intent classifier, the conversation state
// machine, and a purpose-specific handler.
type Service struct {
	tracker       CallTracker
	filter        SecurityFilter
	classifier    Classifier
	conversations Conversations
	ticketing     Ticketing
	notifier      Notifier
	directory     Directory
	payments      PaymentLinker
	knowledge     Knowledge
	metrics       *metrics.Metrics
	logger        *zap.Logger
}

// New wires the orchestrator.
func New(
	tracker CallTracker,
	filter SecurityFilter,
	classifier Classifier,
	conversations Conversations,
	ticketing Ticketing,
	notifier Notifier,
	directory Directory,
	payments PaymentLinker,
	knowledge Knowledge,
	m *metrics.Metrics,
	logger *zap.Logger,
) *Service {
	return &Service{
		tracker:       tracker,
		filter:        filter,
		classifier:    classifier,
		conversations: conversations,
		ticketing:     ticketing,
		notifier:      notifier,
		directory:     directory,
		payments:      payments,
		knowledge:     knowledge,
		metrics:       m,
		logger:        logger,
	}
}

// HandleIncomingCall processes the first event of a new inbound call.
func (s *Service) HandleIncomingCall(ctx context.Context, event CallEvent) (*CallResult, error) {
	caller := call.CallerInfo{PhoneNumber: event.PhoneNumber, Locale: event.Locale}

	c, err := s.tracker.StartIncoming(ctx, caller, event.Utterance)
	if err != nil {
		return nil, err
	}

	decision, err := s.filter.Evaluate(ctx, c)
	if err != nil {
		return nil, err
	}
	if !decision.Allowed {
		s.metrics.CallsHandled.WithLabelValues("security_rejected").Inc()
		s.openTicket(ctx, TicketRequest{
			Issue:    fmt.Sprintf("call %s rejected by security filter: %s", c.ID, decision.Reason),
			Priority: intent.PriorityHigh,
			Contact:  event.PhoneNumber,
		})

		meta := map[string]string{"reason": decision.Reason}
		if decision.AlertID != nil {
			meta["security_alert"] = decision.AlertID.String()
		}
		return &CallResult{
			Success:  false,
			Response: "We are unable to continue this call. Please contact the school office directly.",
			Metadata: meta,
		}, nil
	}

	return s.processTurn(ctx, c, event.Utterance)
}

// HandleGatherInput processes a subsequent turn of an ongoing call.
func (s *Service) HandleGatherInput(ctx context.Context, event CallEvent) (*CallResult, error) {
	c := s.tracker.Get(ctx, event.CallID)
	if c == nil {
		return nil, domainerrors.ErrCallNotFound
	}
	return s.processTurn(ctx, c, event.Utterance)
}

// processTurn runs classification, the conversation state machine, and the
// purpose handler. Any failure past this point degrades to a ticket plus an
// apology; the caller never sees a raw error.
func (s *Service) processTurn(ctx context.Context, c *call.Call, utterance string) (result *CallResult, err error) {
	defer func() {
		if err != nil {
			s.logger.Error("call processing failed, degrading to ticket",
				zap.String("call_id", c.ID.String()), zap.Error(err))
			s.metrics.CallsHandled.WithLabelValues("degraded").Inc()

			ticketID := s.openTicket(ctx, TicketRequest{
				Issue:    fmt.Sprintf("agent failure on call %s: %v", c.ID, err),
				Priority: intent.PriorityHigh,
				Contact:  c.Caller.PhoneNumber,
			})
			result = &CallResult{
				Success:  true,
				Response: "I'm sorry, something went wrong on our side. A support ticket has been created and our staff will reach out shortly.",
				Metadata: map[string]string{"ticket_id": ticketID},
			}
			err = nil
		}
	}()

	classification := s.classifier.Classify(ctx, utterance)

	userTurn := conversation.Turn{
		Speaker:    conversation.SpeakerUser,
		Message:    utterance,
		Timestamp:  time.Now(),
		Intent:     turnIntent(classification),
		Entities:   classification.Entities,
		Confidence: classification.Confidence,
	}
	if _, err = s.conversations.AddTurn(ctx, c.ID, userTurn); err != nil {
		return nil, err
	}

	var response string
	meta := map[string]string{"purpose": string(classification.Purpose)}

	switch classification.Purpose {
	case intent.PurposeSchoolInquiry:
		response, err = s.handleSchoolInquiry(ctx, classification, utterance)
	case intent.PurposeFeePayment:
		response, err = s.handleFeePayment(ctx, c, classification, meta)
	case intent.PurposeSupportRequest:
		response, err = s.handleSupportRequest(ctx, c, utterance, meta)
	case intent.PurposeGeneralInquiry:
		response, err = s.handleGeneralInquiry(ctx, utterance)
	case intent.PurposeAppointment:
		response, err = s.handleAppointment(ctx, c, utterance, meta)
	case intent.PurposeStudentRecordAccess, intent.PurposePaymentVerification:
		response, err = s.handleStaffHandoff(ctx, c, classification, utterance, meta)
	default:
		response, err = s.handleGeneralInquiry(ctx, utterance)
	}
	if err != nil {
		return nil, err
	}

	agentTurn := conversation.Turn{
		Speaker:   conversation.SpeakerAgent,
		Message:   response,
		Timestamp: time.Now(),
	}
	if _, err = s.conversations.AddTurn(ctx, c.ID, agentTurn); err != nil {
		return nil, err
	}

	if err = s.tracker.UpdateStatus(ctx, c.ID, call.StatusInProgress, calltracker.StatusUpdate{}); err != nil {
		return nil, err
	}

	s.metrics.CallsHandled.WithLabelValues("handled").Inc()
	return &CallResult{Success: true, Response: response, Metadata: meta}, nil
}

// MakeOutgoingCall validates and registers an agent-initiated call.
func (s *Service) MakeOutgoingCall(ctx context.Context, req OutgoingCallRequest) (*call.Call, error) {
	if err := s.filter.ValidateOutgoing(ctx, req.PhoneNumber, req.Purpose); err != nil {
		return nil, err
	}

	caller := call.CallerInfo{PhoneNumber: req.PhoneNumber, Locale: req.Locale}
	return s.tracker.StartOutgoing(ctx, caller, req.Purpose)
}

// UpdateCallStatus applies an external call-status webhook.
func (s *Service) UpdateCallStatus(ctx context.Context, callID string, status call.Status, update calltracker.StatusUpdate) error {
	id, err := parseCallID(callID)
	if err != nil {
		return err
	}
	return s.tracker.UpdateStatus(ctx, id, status, update)
}

// ScheduleCallback registers a future outgoing call.
func (s *Service) ScheduleCallback(ctx context.Context, req calltracker.CallbackRequest) (string, error) {
	id, err := s.tracker.ScheduleCallback(ctx, req)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

func turnIntent(c *intent.Classification) string {
	if c.RequiresCallback {
		return conversation.ActionScheduleCallback
	}
	return string(c.Purpose)
}

// openTicket creates a ticket, best effort: a ticketing failure is logged
// and an empty id returned.
func (s *Service) openTicket(ctx context.Context, req TicketRequest) string {
	ticketID, err := s.ticketing.CreateTicket(ctx, req)
	if err != nil {
		s.logger.Error("ticket creation failed",
			zap.String("issue", req.Issue), zap.Error(err))
		return ""
	}
	return ticketID
}
