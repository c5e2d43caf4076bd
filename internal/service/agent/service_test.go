package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/classbridge/frontdesk-backend/internal/domain/call"
	"github.com/classbridge/frontdesk-backend/internal/domain/conversation"
	domainerrors "github.com/classbridge/frontdesk-backend/internal/domain/errors"
	"github.com/classbridge/frontdesk-backend/internal/infrastructure/metrics"
	"github.com/classbridge/frontdesk-backend/internal/service/calltracker"
	"github.com/classbridge/frontdesk-backend/internal/service/intent"
	securitysvc "github.com/classbridge/frontdesk-backend/internal/service/security"
)

type mockTracker struct{ mock.Mock }

func (m *mockTracker) StartIncoming(ctx context.Context, caller call.CallerInfo, userQuery string) (*call.Call, error) {
	args := m.Called(ctx, caller, userQuery)
	if c, ok := args.Get(0).(*call.Call); ok {
		return c, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockTracker) StartOutgoing(ctx context.Context, caller call.CallerInfo, userQuery string) (*call.Call, error) {
	args := m.Called(ctx, caller, userQuery)
	if c, ok := args.Get(0).(*call.Call); ok {
		return c, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockTracker) Get(ctx context.Context, callID uuid.UUID) *call.Call {
	args := m.Called(ctx, callID)
	if c, ok := args.Get(0).(*call.Call); ok {
		return c
	}
	return nil
}

func (m *mockTracker) UpdateStatus(ctx context.Context, callID uuid.UUID, status call.Status, update calltracker.StatusUpdate) error {
	return m.Called(ctx, callID, status, update).Error(0)
}

func (m *mockTracker) ScheduleCallback(ctx context.Context, req calltracker.CallbackRequest) (uuid.UUID, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(uuid.UUID), args.Error(1)
}

type mockFilter struct{ mock.Mock }

func (m *mockFilter) Evaluate(ctx context.Context, c *call.Call) (*securitysvc.Decision, error) {
	args := m.Called(ctx, c)
	if d, ok := args.Get(0).(*securitysvc.Decision); ok {
		return d, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockFilter) ValidateOutgoing(ctx context.Context, phoneNumber, purpose string) error {
	return m.Called(ctx, phoneNumber, purpose).Error(0)
}

type mockClassifier struct{ mock.Mock }

func (m *mockClassifier) Classify(ctx context.Context, utterance string) *intent.Classification {
	return m.Called(ctx, utterance).Get(0).(*intent.Classification)
}

type mockConversations struct{ mock.Mock }

func (m *mockConversations) Get(ctx context.Context, callID uuid.UUID) (*conversation.Conversation, error) {
	args := m.Called(ctx, callID)
	if c, ok := args.Get(0).(*conversation.Conversation); ok {
		return c, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockConversations) AddTurn(ctx context.Context, callID uuid.UUID, turn conversation.Turn) (*conversation.Conversation, error) {
	args := m.Called(ctx, callID, turn)
	if c, ok := args.Get(0).(*conversation.Conversation); ok {
		return c, args.Error(1)
	}
	return nil, args.Error(1)
}

type mockTicketing struct{ mock.Mock }

func (m *mockTicketing) CreateTicket(ctx context.Context, req TicketRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

type mockNotifier struct{ mock.Mock }

func (m *mockNotifier) Send(ctx context.Context, n Notification) error {
	return m.Called(ctx, n).Error(0)
}

type mockDirectory struct{ mock.Mock }

func (m *mockDirectory) FindSchool(ctx context.Context, name string) (*SchoolRecord, error) {
	args := m.Called(ctx, name)
	if s, ok := args.Get(0).(*SchoolRecord); ok {
		return s, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockDirectory) FindStudent(ctx context.Context, name, className string) (*StudentRecord, error) {
	args := m.Called(ctx, name, className)
	if s, ok := args.Get(0).(*StudentRecord); ok {
		return s, args.Error(1)
	}
	return nil, args.Error(1)
}

type mockPayments struct{ mock.Mock }

func (m *mockPayments) GenerateLink(ctx context.Context, student *StudentRecord, amount decimal.Decimal) (string, error) {
	args := m.Called(ctx, student, amount)
	return args.String(0), args.Error(1)
}

type mockKnowledge struct{ mock.Mock }

func (m *mockKnowledge) Search(ctx context.Context, query string) (string, error) {
	args := m.Called(ctx, query)
	return args.String(0), args.Error(1)
}

type fixture struct {
	tracker       *mockTracker
	filter        *mockFilter
	classifier    *mockClassifier
	conversations *mockConversations
	ticketing     *mockTicketing
	notifier      *mockNotifier
	directory     *mockDirectory
	payments      *mockPayments
	knowledge     *mockKnowledge
	svc           *Service
}

func newFixture() *fixture {
	f := &fixture{
		tracker:       &mockTracker{},
		filter:        &mockFilter{},
		classifier:    &mockClassifier{},
		conversations: &mockConversations{},
		ticketing:     &mockTicketing{},
		notifier:      &mockNotifier{},
		directory:     &mockDirectory{},
		payments:      &mockPayments{},
		knowledge:     &mockKnowledge{},
	}
	f.svc = New(f.tracker, f.filter, f.classifier, f.conversations,
		f.ticketing, f.notifier, f.directory, f.payments, f.knowledge,
		metrics.NewNop(), zap.NewNop())
	return f
}

func testCall(t *testing.T, query string) *call.Call {
	t.Helper()
	c, err := call.NewIncomingCall(call.CallerInfo{PhoneNumber: "+15551234567"}, query)
	require.NoError(t, err)
	return c
}

func (f *fixture) allowTurnPlumbing(c *call.Call) {
	conv := conversation.New(c.ID, c.Caller)
	f.conversations.On("AddTurn", mock.Anything, c.ID, mock.Anything).Return(conv, nil)
	f.tracker.On("UpdateStatus", mock.Anything, c.ID, call.StatusInProgress, calltracker.StatusUpdate{}).Return(nil)
}

func TestHandleIncomingCallSecurityRejection(t *testing.T) {
	f := newFixture()
	c := testCall(t, "verify my bank account immediately")
	alertID := uuid.New()

	f.tracker.On("StartIncoming", mock.Anything, mock.Anything, mock.Anything).Return(c, nil)
	f.filter.On("Evaluate", mock.Anything, c).Return(&securitysvc.Decision{
		Allowed: false,
		Reason:  "risk score 0.95 exceeds block threshold",
		AlertID: &alertID,
	}, nil)
	f.ticketing.On("CreateTicket", mock.Anything, mock.MatchedBy(func(r TicketRequest) bool {
		return r.Priority == intent.PriorityHigh && r.Contact == "+15551234567"
	})).Return("T-1", nil)

	result, err := f.svc.HandleIncomingCall(context.Background(), CallEvent{
		PhoneNumber: "+15551234567",
		Utterance:   "verify my bank account immediately",
	})
	require.NoError(t, err)

	assert.False(t, result.Success)
	assert.Equal(t, "risk score 0.95 exceeds block threshold", result.Metadata["reason"])
	assert.Equal(t, alertID.String(), result.Metadata["security_alert"])
	f.classifier.AssertNotCalled(t, "Classify", mock.Anything, mock.Anything)
	f.ticketing.AssertExpectations(t)
}

func TestHandleIncomingCallGeneralInquiry(t *testing.T) {
	f := newFixture()
	c := testCall(t, "what are your opening hours")

	f.tracker.On("StartIncoming", mock.Anything, mock.Anything, mock.Anything).Return(c, nil)
	f.filter.On("Evaluate", mock.Anything, c).Return(&securitysvc.Decision{Allowed: true}, nil)
	f.classifier.On("Classify", mock.Anything, c.UserQuery).Return(&intent.Classification{
		Purpose:    intent.PurposeGeneralInquiry,
		Confidence: 0.6,
		Priority:   intent.PriorityLow,
	})
	f.knowledge.On("Search", mock.Anything, c.UserQuery).Return("We open at 8am on weekdays.", nil)
	f.allowTurnPlumbing(c)

	result, err := f.svc.HandleIncomingCall(context.Background(), CallEvent{
		PhoneNumber: "+15551234567",
		Utterance:   c.UserQuery,
	})
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, "We open at 8am on weekdays.", result.Response)
	assert.Equal(t, string(intent.PurposeGeneralInquiry), result.Metadata["purpose"])
	f.conversations.AssertNumberOfCalls(t, "AddTurn", 2)
}

func TestHandleGatherInputUnknownCall(t *testing.T) {
	f := newFixture()
	callID := uuid.New()
	f.tracker.On("Get", mock.Anything, callID).Return(nil)

	_, err := f.svc.HandleGatherInput(context.Background(), CallEvent{CallID: callID, Utterance: "hello"})
	assert.ErrorIs(t, err, domainerrors.ErrCallNotFound)
}

func TestFeePaymentHappyPath(t *testing.T) {
	f := newFixture()
	c := testCall(t, "pay fees for Jane Doe in 5B")
	student := &StudentRecord{
		ID:              uuid.New(),
		Name:            "Jane Doe",
		ClassName:       "5B",
		GuardianEmail:   "guardian@example.com",
		OutstandingFees: decimal.RequireFromString("150.00"),
	}

	f.tracker.On("Get", mock.Anything, c.ID).Return(c)
	f.classifier.On("Classify", mock.Anything, mock.Anything).Return(&intent.Classification{
		Purpose:  intent.PurposeFeePayment,
		Entities: map[string]string{"student_name": "Jane Doe", "class_name": "5B"},
		Priority: intent.PriorityHigh,
	})
	f.directory.On("FindStudent", mock.Anything, "Jane Doe", "5B").Return(student, nil)
	f.payments.On("GenerateLink", mock.Anything, student, mock.MatchedBy(func(d decimal.Decimal) bool {
		return d.Equal(decimal.RequireFromString("150.00"))
	})).Return("https://pay.example/abc", nil)
	f.notifier.On("Send", mock.Anything, mock.MatchedBy(func(n Notification) bool {
		return n.To == "guardian@example.com"
	})).Return(nil)
	f.allowTurnPlumbing(c)

	result, err := f.svc.HandleGatherInput(context.Background(), CallEvent{CallID: c.ID, Utterance: c.UserQuery})
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Contains(t, result.Response, "payment link")
	assert.Equal(t, "https://pay.example/abc", result.Metadata["payment_link"])
	f.payments.AssertExpectations(t)
	f.notifier.AssertExpectations(t)
}

func TestFeePaymentUsesSpokenAmount(t *testing.T) {
	f := newFixture()
	c := testCall(t, "pay 200 for Jane")
	student := &StudentRecord{
		ID:              uuid.New(),
		Name:            "Jane Doe",
		ClassName:       "5B",
		GuardianEmail:   "guardian@example.com",
		OutstandingFees: decimal.RequireFromString("150.00"),
	}

	f.tracker.On("Get", mock.Anything, c.ID).Return(c)
	f.classifier.On("Classify", mock.Anything, mock.Anything).Return(&intent.Classification{
		Purpose: intent.PurposeFeePayment,
		Entities: map[string]string{
			"student_name": "Jane Doe",
			"class_name":   "5B",
			"amount":       "$200.00",
		},
	})
	f.directory.On("FindStudent", mock.Anything, mock.Anything, mock.Anything).Return(student, nil)
	f.payments.On("GenerateLink", mock.Anything, student, mock.MatchedBy(func(d decimal.Decimal) bool {
		return d.Equal(decimal.RequireFromString("200.00"))
	})).Return("https://pay.example/abc", nil)
	f.notifier.On("Send", mock.Anything, mock.Anything).Return(nil)
	f.allowTurnPlumbing(c)

	_, err := f.svc.HandleGatherInput(context.Background(), CallEvent{CallID: c.ID, Utterance: c.UserQuery})
	require.NoError(t, err)
	f.payments.AssertExpectations(t)
}

func TestFeePaymentAsksForMissingDetails(t *testing.T) {
	f := newFixture()
	c := testCall(t, "I want to pay fees")

	f.tracker.On("Get", mock.Anything, c.ID).Return(c)
	f.classifier.On("Classify", mock.Anything, mock.Anything).Return(&intent.Classification{
		Purpose: intent.PurposeFeePayment,
	})
	f.allowTurnPlumbing(c)

	result, err := f.svc.HandleGatherInput(context.Background(), CallEvent{CallID: c.ID, Utterance: c.UserQuery})
	require.NoError(t, err)

	assert.Contains(t, result.Response, "student details")
	f.directory.AssertNotCalled(t, "FindStudent", mock.Anything, mock.Anything, mock.Anything)
}

func TestFeePaymentStudentNotFound(t *testing.T) {
	f := newFixture()
	c := testCall(t, "pay for Nobody in 9Z")

	f.tracker.On("Get", mock.Anything, c.ID).Return(c)
	f.classifier.On("Classify", mock.Anything, mock.Anything).Return(&intent.Classification{
		Purpose:  intent.PurposeFeePayment,
		Entities: map[string]string{"student_name": "Nobody", "class_name": "9Z"},
	})
	f.directory.On("FindStudent", mock.Anything, "Nobody", "9Z").Return(nil, nil)
	f.allowTurnPlumbing(c)

	result, err := f.svc.HandleGatherInput(context.Background(), CallEvent{CallID: c.ID, Utterance: c.UserQuery})
	require.NoError(t, err)

	assert.Contains(t, result.Response, "student not found")
	f.payments.AssertNotCalled(t, "GenerateLink", mock.Anything, mock.Anything, mock.Anything)
}

func TestFeePaymentMissingGuardianEmail(t *testing.T) {
	f := newFixture()
	c := testCall(t, "pay for Jane in 5B")
	student := &StudentRecord{ID: uuid.New(), Name: "Jane Doe", ClassName: "5B"}

	f.tracker.On("Get", mock.Anything, c.ID).Return(c)
	f.classifier.On("Classify", mock.Anything, mock.Anything).Return(&intent.Classification{
		Purpose:  intent.PurposeFeePayment,
		Entities: map[string]string{"student_name": "Jane Doe", "class_name": "5B"},
	})
	f.directory.On("FindStudent", mock.Anything, mock.Anything, mock.Anything).Return(student, nil)
	f.ticketing.On("CreateTicket", mock.Anything, mock.Anything).Return("T-9", nil)
	f.allowTurnPlumbing(c)

	result, err := f.svc.HandleGatherInput(context.Background(), CallEvent{CallID: c.ID, Utterance: c.UserQuery})
	require.NoError(t, err)

	assert.Equal(t, "T-9", result.Metadata["ticket_id"])
	f.payments.AssertNotCalled(t, "GenerateLink", mock.Anything, mock.Anything, mock.Anything)
}

func TestSchoolInquiry(t *testing.T) {
	f := newFixture()
	c := testCall(t, "tell me about Hillcrest Academy")

	f.tracker.On("Get", mock.Anything, c.ID).Return(c)
	f.classifier.On("Classify", mock.Anything, mock.Anything).Return(&intent.Classification{
		Purpose:  intent.PurposeSchoolInquiry,
		Entities: map[string]string{"school_name": "Hillcrest Academy"},
	})
	f.directory.On("FindSchool", mock.Anything, "Hillcrest Academy").Return(&SchoolRecord{
		Name: "Hillcrest Academy", Address: "12 Hill Road", Phone: "+15550001111",
	}, nil)
	f.allowTurnPlumbing(c)

	result, err := f.svc.HandleGatherInput(context.Background(), CallEvent{CallID: c.ID, Utterance: c.UserQuery})
	require.NoError(t, err)

	assert.Contains(t, result.Response, "school found")
	assert.Contains(t, result.Response, "Hillcrest Academy")
}

func TestSchoolInquiryNotFound(t *testing.T) {
	f := newFixture()
	c := testCall(t, "tell me about Atlantis Academy")

	f.tracker.On("Get", mock.Anything, c.ID).Return(c)
	f.classifier.On("Classify", mock.Anything, mock.Anything).Return(&intent.Classification{
		Purpose:  intent.PurposeSchoolInquiry,
		Entities: map[string]string{"school_name": "Atlantis Academy"},
	})
	f.directory.On("FindSchool", mock.Anything, "Atlantis Academy").Return(nil, nil)
	f.allowTurnPlumbing(c)

	result, err := f.svc.HandleGatherInput(context.Background(), CallEvent{CallID: c.ID, Utterance: c.UserQuery})
	require.NoError(t, err)
	assert.Contains(t, result.Response, "school not found")
}

func TestSupportRequestOpensTicket(t *testing.T) {
	f := newFixture()
	c := testCall(t, "I need help with the portal")

	f.tracker.On("Get", mock.Anything, c.ID).Return(c)
	f.classifier.On("Classify", mock.Anything, mock.Anything).Return(&intent.Classification{
		Purpose:          intent.PurposeSupportRequest,
		RequiresCallback: true,
	})
	f.ticketing.On("CreateTicket", mock.Anything, mock.MatchedBy(func(r TicketRequest) bool {
		return r.Issue == c.UserQuery && r.Priority == intent.PriorityMedium
	})).Return("T-42", nil)
	f.allowTurnPlumbing(c)

	result, err := f.svc.HandleGatherInput(context.Background(), CallEvent{CallID: c.ID, Utterance: c.UserQuery})
	require.NoError(t, err)

	assert.Contains(t, result.Response, "T-42")
	assert.Equal(t, "T-42", result.Metadata["ticket_id"])
}

func TestAppointmentSchedulesCallback(t *testing.T) {
	f := newFixture()
	c := testCall(t, "can someone call me tomorrow")
	callbackID := uuid.New()

	f.tracker.On("Get", mock.Anything, c.ID).Return(c)
	f.classifier.On("Classify", mock.Anything, mock.Anything).Return(&intent.Classification{
		Purpose: intent.PurposeAppointment,
	})
	f.tracker.On("ScheduleCallback", mock.Anything, mock.MatchedBy(func(r calltracker.CallbackRequest) bool {
		return r.PhoneNumber == "+15551234567" && r.Purpose == c.UserQuery
	})).Return(callbackID, nil)
	f.allowTurnPlumbing(c)

	result, err := f.svc.HandleGatherInput(context.Background(), CallEvent{CallID: c.ID, Utterance: c.UserQuery})
	require.NoError(t, err)
	assert.Equal(t, callbackID.String(), result.Metadata["callback_id"])
}

func TestRecordAccessHandsOffToStaff(t *testing.T) {
	f := newFixture()
	c := testCall(t, "I need Jane's report card")

	f.tracker.On("Get", mock.Anything, c.ID).Return(c)
	f.classifier.On("Classify", mock.Anything, mock.Anything).Return(&intent.Classification{
		Purpose:  intent.PurposeStudentRecordAccess,
		Priority: intent.PriorityMedium,
	})
	f.ticketing.On("CreateTicket", mock.Anything, mock.Anything).Return("T-7", nil)
	f.allowTurnPlumbing(c)

	result, err := f.svc.HandleGatherInput(context.Background(), CallEvent{CallID: c.ID, Utterance: c.UserQuery})
	require.NoError(t, err)
	assert.Equal(t, "T-7", result.Metadata["ticket_id"])
}

func TestProcessTurnDegradesToTicketOnFailure(t *testing.T) {
	f := newFixture()
	c := testCall(t, "what are your opening hours")

	f.tracker.On("Get", mock.Anything, c.ID).Return(c)
	f.classifier.On("Classify", mock.Anything, mock.Anything).Return(&intent.Classification{
		Purpose: intent.PurposeGeneralInquiry,
	})
	f.conversations.On("AddTurn", mock.Anything, c.ID, mock.Anything).
		Return(conversation.New(c.ID, c.Caller), nil)
	f.knowledge.On("Search", mock.Anything, mock.Anything).Return("", errors.New("index offline"))
	f.ticketing.On("CreateTicket", mock.Anything, mock.MatchedBy(func(r TicketRequest) bool {
		return r.Priority == intent.PriorityHigh
	})).Return("T-500", nil)

	result, err := f.svc.HandleGatherInput(context.Background(), CallEvent{CallID: c.ID, Utterance: c.UserQuery})
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, "T-500", result.Metadata["ticket_id"])
	assert.Contains(t, result.Response, "support ticket")
}

func TestNotifierFailureDoesNotFailPayment(t *testing.T) {
	f := newFixture()
	c := testCall(t, "pay for Jane in 5B")
	student := &StudentRecord{
		ID:              uuid.New(),
		Name:            "Jane Doe",
		ClassName:       "5B",
		GuardianEmail:   "guardian@example.com",
		OutstandingFees: decimal.RequireFromString("80.00"),
	}

	f.tracker.On("Get", mock.Anything, c.ID).Return(c)
	f.classifier.On("Classify", mock.Anything, mock.Anything).Return(&intent.Classification{
		Purpose:  intent.PurposeFeePayment,
		Entities: map[string]string{"student_name": "Jane Doe", "class_name": "5B"},
	})
	f.directory.On("FindStudent", mock.Anything, mock.Anything, mock.Anything).Return(student, nil)
	f.payments.On("GenerateLink", mock.Anything, mock.Anything, mock.Anything).Return("https://pay.example/x", nil)
	f.notifier.On("Send", mock.Anything, mock.Anything).Return(errors.New("smtp down"))
	f.allowTurnPlumbing(c)

	result, err := f.svc.HandleGatherInput(context.Background(), CallEvent{CallID: c.ID, Utterance: c.UserQuery})
	require.NoError(t, err)
	assert.True(t, result.Success)
}

func TestMakeOutgoingCall(t *testing.T) {
	t.Run("validation failure short-circuits", func(t *testing.T) {
		f := newFixture()
		f.filter.On("ValidateOutgoing", mock.Anything, "+15551234567", "fee reminder").
			Return(domainerrors.NewSecurityError("blocked_number", "number is blocked"))

		_, err := f.svc.MakeOutgoingCall(context.Background(), OutgoingCallRequest{
			PhoneNumber: "+15551234567",
			Purpose:     "fee reminder",
		})
		require.Error(t, err)
		f.tracker.AssertNotCalled(t, "StartOutgoing", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("validated call is registered", func(t *testing.T) {
		f := newFixture()
		c, err := call.NewOutgoingCall(call.CallerInfo{PhoneNumber: "+15551234567"}, "fee reminder")
		require.NoError(t, err)

		f.filter.On("ValidateOutgoing", mock.Anything, "+15551234567", "fee reminder").Return(nil)
		f.tracker.On("StartOutgoing", mock.Anything, mock.Anything, "fee reminder").Return(c, nil)

		got, err := f.svc.MakeOutgoingCall(context.Background(), OutgoingCallRequest{
			PhoneNumber: "+15551234567",
			Purpose:     "fee reminder",
		})
		require.NoError(t, err)
		assert.Equal(t, call.StatusOutgoing, got.Status)
	})
}

func TestUpdateCallStatusRejectsBadID(t *testing.T) {
	f := newFixture()

	err := f.svc.UpdateCallStatus(context.Background(), "not-a-uuid", call.StatusCompleted, calltracker.StatusUpdate{})
	assert.Error(t, err)
}
