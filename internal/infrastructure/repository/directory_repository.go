package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/classbridge/frontdesk-backend/internal/service/agent"
)

// DirectoryRepository serves school and student lookups for the agent.
type DirectoryRepository struct {
	db querier
}

// NewDirectoryRepository creates a directory repository on the shared pool.
func NewDirectoryRepository(db *sql.DB) *DirectoryRepository {
	return &DirectoryRepository{db: db}
}

// FindSchool matches a school by name, case-insensitively. A miss returns
// (nil, nil).
func (r *DirectoryRepository) FindSchool(ctx context.Context, name string) (*agent.SchoolRecord, error) {
	query := `
		SELECT id, name, address, phone
		FROM schools
		WHERE name ILIKE '%' || $1 || '%'
		ORDER BY length(name)
		LIMIT 1
	`

	var s agent.SchoolRecord
	err := r.db.QueryRowContext(ctx, query, name).Scan(&s.ID, &s.Name, &s.Address, &s.Phone)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find school: %w", err)
	}
	return &s, nil
}

// FindStudent matches a student by name and class. A miss returns (nil, nil).
func (r *DirectoryRepository) FindStudent(ctx context.Context, name, className string) (*agent.StudentRecord, error) {
	query := `
		SELECT id, name, class_name, class_arm,
		       COALESCE(guardian_email, ''), COALESCE(outstanding_fees, 0)
		FROM students
		WHERE name ILIKE $1 AND class_name ILIKE $2
		LIMIT 1
	`

	var (
		st       agent.StudentRecord
		feesText string
	)
	err := r.db.QueryRowContext(ctx, query, name, className).Scan(
		&st.ID, &st.Name, &st.ClassName, &st.ClassArm, &st.GuardianEmail, &feesText,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find student: %w", err)
	}

	fees, err := decimal.NewFromString(feesText)
	if err != nil {
		return nil, fmt.Errorf("invalid outstanding fees for student %s: %w", st.ID, err)
	}
	st.OutstandingFees = fees

	return &st, nil
}
