package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// KnowledgeRepository answers general inquiries from the articles table using
// postgres full-text search.
type KnowledgeRepository struct {
	db querier
}

// NewKnowledgeRepository creates a knowledge repository on the shared pool.
func NewKnowledgeRepository(db *sql.DB) *KnowledgeRepository {
	return &KnowledgeRepository{db: db}
}

// Search returns the best-matching answer, or "" when nothing matches.
func (r *KnowledgeRepository) Search(ctx context.Context, query string) (string, error) {
	stmt := `
		SELECT answer
		FROM knowledge_articles
		WHERE search_vector @@ plainto_tsquery('english', $1)
		ORDER BY ts_rank(search_vector, plainto_tsquery('english', $1)) DESC
		LIMIT 1
	`

	var answer string
	err := r.db.QueryRowContext(ctx, stmt, query).Scan(&answer)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to search knowledge base: %w", err)
	}
	return answer, nil
}
