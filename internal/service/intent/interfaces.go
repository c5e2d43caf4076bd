package intent

import "context"

// TextGenerator is the opaque language-model capability. It may be absent
// (nil) when no credentials are configured; every consumer must degrade to a
// deterministic path in that case.
type TextGenerator interface {
	// Generate returns model output for a prompt
	Generate(ctx context.Context, prompt string) (string, error)
}

// CallPurpose is the fixed set of categories a caller utterance maps to.
type CallPurpose string

const (
	PurposeSchoolInquiry       CallPurpose = "school_inquiry"
	PurposeFeePayment          CallPurpose = "fee_payment"
	PurposeGeneralInquiry      CallPurpose = "general_inquiry"
	PurposeSupportRequest      CallPurpose = "support_request"
	PurposeAppointment         CallPurpose = "appointment_scheduling"
	PurposeStudentRecordAccess CallPurpose = "student_record_access"
	PurposePaymentVerification CallPurpose = "payment_verification"
)

// Priority levels attached to a classification.
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
)

// Classification is the classifier's structured verdict on one utterance.
type Classification struct {
	Purpose          CallPurpose       `json:"type"`
	Confidence       float64           `json:"confidence"`
	Entities         map[string]string `json:"entities,omitempty"`
	RequiresCallback bool              `json:"requires_callback"`
	Priority         string            `json:"priority"`
}
