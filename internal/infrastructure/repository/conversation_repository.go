package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/classbridge/frontdesk-backend/internal/domain/conversation"
)

// ConversationRepository persists conversations with their turn logs. The
// turn sequence and state are stored as JSON documents; conversations are
// only ever looked up whole, by call id.
type ConversationRepository struct {
	db querier
}

// NewConversationRepository creates a conversation repository on the shared pool.
func NewConversationRepository(db *sql.DB) *ConversationRepository {
	return &ConversationRepository{db: db}
}

// Save upserts a conversation keyed by call id.
func (r *ConversationRepository) Save(ctx context.Context, conv *conversation.Conversation) error {
	turnsJSON, err := json.Marshal(conv.Turns)
	if err != nil {
		return fmt.Errorf("failed to marshal turns: %w", err)
	}
	stateJSON, err := json.Marshal(conv.State)
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}
	callerJSON, err := json.Marshal(conv.Caller)
	if err != nil {
		return fmt.Errorf("failed to marshal caller: %w", err)
	}

	query := `
		INSERT INTO conversations (
			id, call_id, caller, turns, state, completed, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (call_id) DO UPDATE SET
			turns = EXCLUDED.turns,
			state = EXCLUDED.state,
			completed = EXCLUDED.completed,
			updated_at = EXCLUDED.updated_at
	`

	_, err = r.db.ExecContext(ctx, query,
		conv.ID, conv.CallID, callerJSON, turnsJSON, stateJSON,
		conv.Completed, conv.CreatedAt, conv.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save conversation: %w", err)
	}
	return nil
}

// GetByCallID loads a conversation by its call id.
func (r *ConversationRepository) GetByCallID(ctx context.Context, callID uuid.UUID) (*conversation.Conversation, error) {
	query := `
		SELECT id, call_id, caller, turns, state, completed, created_at, updated_at
		FROM conversations
		WHERE call_id = $1
	`

	var conv conversation.Conversation
	var callerJSON, turnsJSON, stateJSON []byte

	err := r.db.QueryRowContext(ctx, query, callID).Scan(
		&conv.ID, &conv.CallID, &callerJSON, &turnsJSON, &stateJSON,
		&conv.Completed, &conv.CreatedAt, &conv.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(callerJSON, &conv.Caller); err != nil {
		return nil, fmt.Errorf("failed to parse caller: %w", err)
	}
	if err := json.Unmarshal(turnsJSON, &conv.Turns); err != nil {
		return nil, fmt.Errorf("failed to parse turns: %w", err)
	}
	if err := json.Unmarshal(stateJSON, &conv.State); err != nil {
		return nil, fmt.Errorf("failed to parse state: %w", err)
	}

	return &conv, nil
}
