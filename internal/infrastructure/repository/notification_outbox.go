package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/classbridge/frontdesk-backend/internal/service/agent"
)

// NotificationOutbox stages outbound messages in the database. A separate
// delivery worker drains the outbox, so Send never blocks on a mail or SMS
// provider.
type NotificationOutbox struct {
	db querier
}

// NewNotificationOutbox creates an outbox on the shared pool.
func NewNotificationOutbox(db *sql.DB) *NotificationOutbox {
	return &NotificationOutbox{db: db}
}

// Send enqueues one notification for delivery.
func (o *NotificationOutbox) Send(ctx context.Context, n agent.Notification) error {
	query := `
		INSERT INTO notification_outbox (id, recipient, subject, body, status, created_at)
		VALUES ($1, $2, $3, $4, 'pending', $5)
	`

	_, err := o.db.ExecContext(ctx, query, uuid.New(), n.To, n.Subject, n.Body, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to enqueue notification: %w", err)
	}
	return nil
}
