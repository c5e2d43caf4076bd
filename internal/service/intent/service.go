package intent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/classbridge/frontdesk-backend/internal/infrastructure/metrics"
)

// Classifier maps caller utterances to call purposes. The language model is
// the primary path; the heuristic fallback is always available and is the
// sole path when no model is configured.
type Classifier struct {
	textgen TextGenerator
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewClassifier creates an intent classifier. textgen may be nil.
func NewClassifier(textgen TextGenerator, m *metrics.Metrics, logger *zap.Logger) *Classifier {
	return &Classifier{textgen: textgen, metrics: m, logger: logger}
}

// Classify never fails: any model error or unparseable response falls
// through to the deterministic heuristic.
func (c *Classifier) Classify(ctx context.Context, utterance string) *Classification {
	if c.textgen != nil {
		if result, err := c.classifyWithModel(ctx, utterance); err == nil {
			return result
		} else {
			c.logger.Debug("model classification failed, using heuristic",
				zap.Error(err))
		}
	}

	c.metrics.IntentFallbacks.Inc()
	return ClassifyHeuristic(utterance)
}

func (c *Classifier) classifyWithModel(ctx context.Context, utterance string) (*Classification, error) {
	raw, err := c.textgen.Generate(ctx, buildPrompt(utterance))
	if err != nil {
		return nil, fmt.Errorf("text generation: %w", err)
	}

	var result Classification
	if err := json.Unmarshal([]byte(extractJSON(raw)), &result); err != nil {
		return nil, fmt.Errorf("parsing model response: %w", err)
	}
	if !validPurpose(result.Purpose) {
		return nil, fmt.Errorf("model returned unknown purpose %q", result.Purpose)
	}
	if result.Priority == "" {
		result.Priority = PriorityMedium
	}
	return &result, nil
}

func buildPrompt(utterance string) string {
	return fmt.Sprintf(`Classify the caller's purpose into exactly one of:
school_inquiry, fee_payment, general_inquiry, support_request,
appointment_scheduling, student_record_access, payment_verification.

Extract entities when present: school_name, student_name, class_name,
class_arm, amount, priority.

Respond with JSON only, shaped as:
{"type": "...", "confidence": 0.0, "entities": {}, "requires_callback": false, "priority": "low|medium|high"}

Caller said: %q`, utterance)
}

// extractJSON pulls the first JSON object out of model output that may be
// wrapped in prose or fencing.
func extractJSON(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end < start {
		return raw
	}
	return raw[start : end+1]
}

func validPurpose(p CallPurpose) bool {
	switch p {
	case PurposeSchoolInquiry, PurposeFeePayment, PurposeGeneralInquiry,
		PurposeSupportRequest, PurposeAppointment,
		PurposeStudentRecordAccess, PurposePaymentVerification:
		return true
	}
	return false
}

var schoolKeywords = []string{"school", "academy", "college"}

// ClassifyHeuristic is the deterministic fallback: pure substring matching in
// priority order, no I/O. It always returns one of four categories and never
// panics, including on empty input.
//
// Payment keywords are checked before school keywords: "pay my daughter's
// school fees" is a fee payment, not a school inquiry, and a school inquiry
// never carries a pay keyword.
func ClassifyHeuristic(utterance string) *Classification {
	lower := strings.ToLower(utterance)

	if strings.Contains(lower, "pay") || strings.Contains(lower, "fee") || strings.Contains(lower, "payment") {
		return &Classification{
			Purpose:    PurposeFeePayment,
			Confidence: 0.8,
			Priority:   PriorityHigh,
		}
	}

	for _, kw := range schoolKeywords {
		if strings.Contains(lower, kw) {
			return &Classification{
				Purpose:    PurposeSchoolInquiry,
				Confidence: 0.7,
				Entities:   map[string]string{"school_name": guessSchoolName(utterance, kw)},
				Priority:   PriorityMedium,
			}
		}
	}

	if strings.Contains(lower, "help") || strings.Contains(lower, "support") || strings.Contains(lower, "issue") {
		return &Classification{
			Purpose:          PurposeSupportRequest,
			Confidence:       0.7,
			RequiresCallback: true,
			Priority:         PriorityMedium,
		}
	}

	return &Classification{
		Purpose:    PurposeGeneralInquiry,
		Confidence: 0.6,
		Priority:   PriorityLow,
	}
}

// guessSchoolName slices tokens up to and including the first school keyword.
// Explicitly low confidence; it exists only as a safety net when the model is
// absent.
func guessSchoolName(utterance, keyword string) string {
	fields := strings.Fields(utterance)
	for i, f := range fields {
		if strings.Contains(strings.ToLower(f), keyword) {
			return strings.Join(fields[:i+1], " ")
		}
	}
	return ""
}
