package payments

import (
	"context"
	"fmt"
	"net/url"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/classbridge/frontdesk-backend/internal/service/agent"
)

// LinkBuilder produces hosted checkout links for fee payments. Each link
// carries a fresh reference so the payment page can reconcile it.
type LinkBuilder struct {
	baseURL string
}

// NewLinkBuilder creates a link builder for the configured payment page.
func NewLinkBuilder(baseURL string) (*LinkBuilder, error) {
	if _, err := url.Parse(baseURL); err != nil || baseURL == "" {
		return nil, fmt.Errorf("invalid payment link base url %q", baseURL)
	}
	return &LinkBuilder{baseURL: baseURL}, nil
}

// GenerateLink returns a checkout URL for the student and amount.
func (b *LinkBuilder) GenerateLink(ctx context.Context, student *agent.StudentRecord, amount decimal.Decimal) (string, error) {
	if student == nil {
		return "", fmt.Errorf("student is required")
	}
	if amount.IsNegative() {
		return "", fmt.Errorf("amount must not be negative")
	}

	q := url.Values{}
	q.Set("student_id", student.ID.String())
	q.Set("amount", amount.StringFixed(2))
	q.Set("reference", uuid.New().String())

	return b.baseURL + "?" + q.Encode(), nil
}
