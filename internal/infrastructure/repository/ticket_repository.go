package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/classbridge/frontdesk-backend/internal/service/agent"
)

// TicketRepository records support tickets the agent opens when a call needs
// a human.
type TicketRepository struct {
	db querier
}

// NewTicketRepository creates a ticket repository on the shared pool.
func NewTicketRepository(db *sql.DB) *TicketRepository {
	return &TicketRepository{db: db}
}

// CreateTicket inserts an open ticket and returns its id.
func (r *TicketRepository) CreateTicket(ctx context.Context, req agent.TicketRequest) (string, error) {
	id := uuid.New()
	query := `
		INSERT INTO support_tickets (id, issue, priority, contact, status, created_at)
		VALUES ($1, $2, $3, $4, 'open', $5)
	`

	_, err := r.db.ExecContext(ctx, query, id, req.Issue, req.Priority, req.Contact, time.Now().UTC())
	if err != nil {
		return "", fmt.Errorf("failed to create ticket: %w", err)
	}
	return id.String(), nil
}
