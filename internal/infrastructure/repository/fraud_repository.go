package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/classbridge/frontdesk-backend/internal/domain/security"
	"github.com/google/uuid"
)

// FraudRepository persists security alerts and the append-only fraud
// detection log.
type FraudRepository struct {
	db querier
}

// NewFraudRepository creates a fraud repository on the shared pool.
func NewFraudRepository(db *sql.DB) *FraudRepository {
	return &FraudRepository{db: db}
}

// SaveAlert inserts a security alert. Alerts are never deleted.
func (r *FraudRepository) SaveAlert(ctx context.Context, alert *security.Alert) error {
	callDataJSON, err := json.Marshal(alert.CallData)
	if err != nil {
		return fmt.Errorf("failed to marshal call data: %w", err)
	}

	query := `
		INSERT INTO security_alerts (
			id, type, level, description, call_id, caller_phone,
			call_data, timestamp, status, assigned_to, notes
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err = r.db.ExecContext(ctx, query,
		alert.ID, string(alert.Type), string(alert.Level), alert.Description,
		alert.CallID, alert.CallerPhone, callDataJSON, alert.Timestamp,
		string(alert.Status), alert.AssignedTo, alert.Notes,
	)
	if err != nil {
		return fmt.Errorf("failed to save alert: %w", err)
	}
	return nil
}

// UpdateAlertStatus moves an alert through triage.
func (r *FraudRepository) UpdateAlertStatus(ctx context.Context, alertID uuid.UUID, status security.AlertStatus, notes *string) error {
	query := `UPDATE security_alerts SET status = $2, notes = COALESCE($3, notes) WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, alertID, string(status), notes)
	if err != nil {
		return fmt.Errorf("failed to update alert: %w", err)
	}
	rows, err := result.RowsAffected()
	if err == nil && rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// AppendLog writes one fraud detection log entry.
func (r *FraudRepository) AppendLog(ctx context.Context, entry *security.LogEntry) error {
	patternsJSON, err := json.Marshal(entry.DetectedPatterns)
	if err != nil {
		return fmt.Errorf("failed to marshal patterns: %w", err)
	}
	metadataJSON, err := json.Marshal(entry.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	query := `
		INSERT INTO fraud_log (
			id, call_id, caller_phone, risk_score, detected_patterns,
			action_taken, timestamp, metadata
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err = r.db.ExecContext(ctx, query,
		entry.ID, entry.CallID, entry.CallerPhone, entry.RiskScore,
		patternsJSON, string(entry.ActionTaken), entry.Timestamp, metadataJSON,
	)
	if err != nil {
		return fmt.Errorf("failed to append fraud log: %w", err)
	}
	return nil
}

// CountSuspicious counts BLOCKED/FLAGGED log entries for a phone number
// since the given time.
func (r *FraudRepository) CountSuspicious(ctx context.Context, phoneNumber string, since time.Time) (int, error) {
	query := `
		SELECT count(*)
		FROM fraud_log
		WHERE caller_phone = $1
		  AND action_taken IN ('blocked', 'flagged')
		  AND timestamp >= $2
	`

	var count int
	if err := r.db.QueryRowContext(ctx, query, phoneNumber, since).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count suspicious activity: %w", err)
	}
	return count, nil
}

// HasBlockedEntry reports whether the phone number has a BLOCKED entry since
// the given time.
func (r *FraudRepository) HasBlockedEntry(ctx context.Context, phoneNumber string, since time.Time) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM fraud_log
			WHERE caller_phone = $1
			  AND action_taken = 'blocked'
			  AND timestamp >= $2
		)
	`

	var exists bool
	if err := r.db.QueryRowContext(ctx, query, phoneNumber, since).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check blocked entries: %w", err)
	}
	return exists, nil
}
