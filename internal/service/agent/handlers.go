package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/classbridge/frontdesk-backend/internal/domain/call"
	"github.com/classbridge/frontdesk-backend/internal/service/calltracker"
	"github.com/classbridge/frontdesk-backend/internal/service/intent"
)

// The response phrasing below is load-bearing: the conversation state
// machine keys on literals like "school found", "student details" and
// "payment link" in agent turns.

func (s *Service) handleSchoolInquiry(ctx context.Context, c *intent.Classification, utterance string) (string, error) {
	name := c.Entities["school_name"]
	if name == "" {
		name = utterance
	}

	school, err := s.directory.FindSchool(ctx, name)
	if err != nil {
		return "", fmt.Errorf("school lookup: %w", err)
	}
	if school == nil {
		return "I'm sorry, school not found in our records. Could you repeat the school's full name?", nil
	}

	return fmt.Sprintf("Good news, school found: %s is located at %s. You can reach the office on %s.",
		school.Name, school.Address, school.Phone), nil
}

func (s *Service) handleFeePayment(ctx context.Context, c *call.Call, cls *intent.Classification, meta map[string]string) (string, error) {
	studentName := cls.Entities["student_name"]
	className := cls.Entities["class_name"]

	if studentName == "" || className == "" {
		return "I can help with fee payment. Please share the student details: the student's full name and class.", nil
	}

	student, err := s.directory.FindStudent(ctx, studentName, className)
	if err != nil {
		return "", fmt.Errorf("student lookup: %w", err)
	}
	if student == nil {
		return fmt.Sprintf("I'm sorry, student not found: no record of %s in %s. Please check the name and class.",
			studentName, className), nil
	}

	if student.GuardianEmail == "" {
		ticketID := s.openTicket(ctx, TicketRequest{
			Issue:    fmt.Sprintf("fee payment requested for student %s but no guardian email is on file", student.ID),
			Priority: intent.PriorityHigh,
			Contact:  c.Caller.PhoneNumber,
		})
		meta["ticket_id"] = ticketID
		return "Student found, but we have no guardian email on file, so I cannot send a payment link. Our staff will contact you to complete the payment.", nil
	}

	amount := student.OutstandingFees
	if raw, ok := cls.Entities["amount"]; ok && raw != "" {
		if parsed, perr := parseAmount(raw); perr == nil {
			amount = parsed
		}
	}

	link, err := s.payments.GenerateLink(ctx, student, amount)
	if err != nil {
		return "", fmt.Errorf("payment link generation: %w", err)
	}
	meta["payment_link"] = link

	notification := Notification{
		To:      student.GuardianEmail,
		Subject: "School fee payment link",
		Body:    fmt.Sprintf("A payment of %s was requested for %s (%s). Pay securely here: %s", amount.StringFixed(2), student.Name, student.ClassName, link),
	}
	if err := s.notifier.Send(ctx, notification); err != nil {
		s.logger.Error("payment notification dispatch failed",
			zap.String("to", student.GuardianEmail), zap.Error(err))
	}

	return fmt.Sprintf("Student found. A payment link for %s has been sent to the guardian's email on file.",
		amount.StringFixed(2)), nil
}

func (s *Service) handleSupportRequest(ctx context.Context, c *call.Call, utterance string, meta map[string]string) (string, error) {
	ticketID, err := s.ticketing.CreateTicket(ctx, TicketRequest{
		Issue:    utterance,
		Priority: intent.PriorityMedium,
		Contact:  c.Caller.PhoneNumber,
	})
	if err != nil {
		return "", fmt.Errorf("support ticket: %w", err)
	}

	meta["ticket_id"] = ticketID
	return fmt.Sprintf("I've opened support ticket %s for you. Our team will call you back on this number.", ticketID), nil
}

func (s *Service) handleGeneralInquiry(ctx context.Context, utterance string) (string, error) {
	answer, err := s.knowledge.Search(ctx, utterance)
	if err != nil {
		return "", fmt.Errorf("knowledge search: %w", err)
	}
	if answer == "" {
		return "I'm not sure about that. Would you like me to connect you with the school office?", nil
	}
	return answer, nil
}

func (s *Service) handleAppointment(ctx context.Context, c *call.Call, utterance string, meta map[string]string) (string, error) {
	// Default to the next hour when the caller gave no preference.
	preferred := time.Now().Add(time.Hour)
	if c.Caller.PreferredTime != nil {
		preferred = *c.Caller.PreferredTime
	}

	callbackID, err := s.tracker.ScheduleCallback(ctx, calltracker.CallbackRequest{
		PhoneNumber:   c.Caller.PhoneNumber,
		PreferredTime: preferred,
		Purpose:       utterance,
		Priority:      intent.PriorityMedium,
	})
	if err != nil {
		return "", fmt.Errorf("scheduling callback: %w", err)
	}

	meta["callback_id"] = callbackID.String()
	return "I've scheduled a callback for you. A member of staff will call you at the preferred time.", nil
}

func (s *Service) handleStaffHandoff(ctx context.Context, c *call.Call, cls *intent.Classification, utterance string, meta map[string]string) (string, error) {
	// Record access and payment verification need a human with directory
	// permissions.
	ticketID, err := s.ticketing.CreateTicket(ctx, TicketRequest{
		Issue:    fmt.Sprintf("%s request: %s", cls.Purpose, utterance),
		Priority: cls.Priority,
		Contact:  c.Caller.PhoneNumber,
	})
	if err != nil {
		return "", fmt.Errorf("handoff ticket: %w", err)
	}

	meta["ticket_id"] = ticketID
	return fmt.Sprintf("That request needs a staff member. I've opened ticket %s and someone will follow up with you.", ticketID), nil
}

func parseCallID(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid call id %q: %w", raw, err)
	}
	return id, nil
}

func parseAmount(raw string) (decimal.Decimal, error) {
	cleaned := strings.TrimLeft(strings.TrimSpace(raw), "$₦£€")
	cleaned = strings.ReplaceAll(cleaned, ",", "")
	return decimal.NewFromString(cleaned)
}
