// internal/store/tokens.go
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"letter-service/internal/models"
	"letter-service/internal/workflow"
)

// ReviewTokens is the PostgreSQL-backed workflow.TokenStore.
type ReviewTokens struct {
	db *sql.DB
}

func NewReviewTokens(db *sql.DB) *ReviewTokens {
	return &ReviewTokens{db: db}
}

func (s *ReviewTokens) Create(ctx context.Context, token *models.ReviewToken) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO review_tokens (token, application_id, created_at, expires_at)
		VALUES ($1, $2, $3, $4)`,
		token.Token, token.ApplicationID, token.CreatedAt, token.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("insert review token: %w", err)
	}
	return nil
}

func (s *ReviewTokens) Get(ctx context.Context, token string) (*models.ReviewToken, error) {
	var (
		t          models.ReviewToken
		consumedAt sql.NullTime
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT token, application_id, created_at, expires_at, consumed_at
		FROM review_tokens
		WHERE token = $1`, token).Scan(
		&t.Token, &t.ApplicationID, &t.CreatedAt, &t.ExpiresAt, &consumedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, workflow.ErrNotFound
		}
		return nil, fmt.Errorf("select review token: %w", err)
	}
	if consumedAt.Valid {
		at := consumedAt.Time
		t.ConsumedAt = &at
	}
	return &t, nil
}

// Consume marks the token used, once. The conditional write is what makes
// two concurrent decision submissions settle to exactly one winner.
func (s *ReviewTokens) Consume(ctx context.Context, token string, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE review_tokens
		SET consumed_at = $2
		WHERE token = $1 AND consumed_at IS NULL`,
		token, at,
	)
	if err != nil {
		return fmt.Errorf("consume review token: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		var exists bool
		if err := s.db.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM review_tokens WHERE token = $1)`, token).Scan(&exists); err == nil && !exists {
			return workflow.ErrNotFound
		}
		return workflow.ErrTokenConflict
	}
	return nil
}
