package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/classbridge/frontdesk-backend/internal/domain/call"
)

// CallRepository is the durable log of call records.
type CallRepository struct {
	db querier
}

// NewCallRepository creates a call repository on the shared pool.
func NewCallRepository(db *sql.DB) *CallRepository {
	return &CallRepository{db: db}
}

// Create inserts a new call record.
func (r *CallRepository) Create(ctx context.Context, c *call.Call) error {
	if c.Caller.PhoneNumber == "" {
		return errors.New("caller phone cannot be empty")
	}

	metadataJSON, err := json.Marshal(c.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	query := `
		INSERT INTO calls (
			id, status, direction, caller_phone, caller_locale,
			preferred_time, user_query, started_at, ended_at,
			duration, recording_url, metadata, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9,
			$10, $11, $12, $13, $14
		)
	`

	_, err = r.db.ExecContext(ctx, query,
		c.ID, c.Status.String(), c.Direction.String(), c.Caller.PhoneNumber, c.Caller.Locale,
		c.Caller.PreferredTime, c.UserQuery, c.Timestamp, c.EndTime,
		c.Duration, c.RecordingURL, metadataJSON, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			return fmt.Errorf("duplicate key: call with ID %s already exists", c.ID)
		}
		return fmt.Errorf("failed to create call: %w", err)
	}

	return nil
}

// Update persists status and completion fields for an existing call.
func (r *CallRepository) Update(ctx context.Context, c *call.Call) error {
	metadataJSON, err := json.Marshal(c.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	query := `
		UPDATE calls SET
			status = $2, ended_at = $3, duration = $4,
			recording_url = $5, metadata = $6, updated_at = $7
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query,
		c.ID, c.Status.String(), c.EndTime, c.Duration,
		c.RecordingURL, metadataJSON, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update call: %w", err)
	}

	rows, err := result.RowsAffected()
	if err == nil && rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// GetByID retrieves a call by its ID.
func (r *CallRepository) GetByID(ctx context.Context, id uuid.UUID) (*call.Call, error) {
	query := `
		SELECT
			id, status, direction, caller_phone, caller_locale,
			preferred_time, user_query, started_at, ended_at,
			duration, recording_url, metadata, created_at, updated_at
		FROM calls
		WHERE id = $1
	`

	row := r.db.QueryRowContext(ctx, query, id)
	return scanCall(row)
}

// GetHistory returns the most recent calls for a phone number, newest first.
func (r *CallRepository) GetHistory(ctx context.Context, phoneNumber string, limit int) ([]*call.Call, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT
			id, status, direction, caller_phone, caller_locale,
			preferred_time, user_query, started_at, ended_at,
			duration, recording_url, metadata, created_at, updated_at
		FROM calls
		WHERE caller_phone = $1
		ORDER BY started_at DESC
		LIMIT $2
	`

	rows, err := r.db.QueryContext(ctx, query, phoneNumber, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query call history: %w", err)
	}
	defer rows.Close()

	return scanCalls(rows)
}

// ListDueCallbacks returns scheduled calls whose callback time has passed.
func (r *CallRepository) ListDueCallbacks(ctx context.Context) ([]*call.Call, error) {
	query := `
		SELECT
			id, status, direction, caller_phone, caller_locale,
			preferred_time, user_query, started_at, ended_at,
			duration, recording_url, metadata, created_at, updated_at
		FROM calls
		WHERE status = 'scheduled'
		  AND metadata->>'type' = 'callback'
		  AND (metadata->>'scheduled_time')::timestamptz <= now()
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query due callbacks: %w", err)
	}
	defer rows.Close()

	return scanCalls(rows)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanCall(row rowScanner) (*call.Call, error) {
	var c call.Call
	var statusStr, directionStr string
	var locale sql.NullString
	var preferredTime, endTime sql.NullTime
	var duration sql.NullInt32
	var recordingURL sql.NullString
	var metadata []byte

	err := row.Scan(
		&c.ID, &statusStr, &directionStr, &c.Caller.PhoneNumber, &locale,
		&preferredTime, &c.UserQuery, &c.Timestamp, &endTime,
		&duration, &recordingURL, &metadata, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	status, err := call.ParseStatus(statusStr)
	if err != nil {
		return nil, err
	}
	c.Status = status
	if directionStr == "outbound" {
		c.Direction = call.DirectionOutbound
	}

	if locale.Valid {
		c.Caller.Locale = locale.String
	}
	if preferredTime.Valid {
		t := preferredTime.Time
		c.Caller.PreferredTime = &t
	}
	if endTime.Valid {
		t := endTime.Time
		c.EndTime = &t
	}
	if duration.Valid {
		d := int(duration.Int32)
		c.Duration = &d
	}
	if recordingURL.Valid {
		u := recordingURL.String
		c.RecordingURL = &u
	}

	c.Metadata = make(map[string]string)
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &c.Metadata); err != nil {
			return nil, fmt.Errorf("failed to parse call metadata: %w", err)
		}
	}

	return &c, nil
}

func scanCalls(rows *sql.Rows) ([]*call.Call, error) {
	var calls []*call.Call
	for rows.Next() {
		c, err := scanCall(rows)
		if err != nil {
			return nil, err
		}
		calls = append(calls, c)
	}
	return calls, rows.Err()
}
