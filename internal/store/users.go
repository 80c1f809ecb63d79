// internal/store/users.go
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"letter-service/internal/models"
	"letter-service/internal/workflow"

	"github.com/lib/pq"
)

// ErrDuplicateEmail is returned when registering an email that exists.
var ErrDuplicateEmail = errors.New("email already registered")

const uniqueViolation = "23505"

// Users is the PostgreSQL-backed account store.
type Users struct {
	db *sql.DB
}

func NewUsers(db *sql.DB) *Users {
	return &Users{db: db}
}

func (s *Users) Create(ctx context.Context, user *models.User) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, email, name, phone, role, password_hash, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		user.ID, user.Email, user.Name, user.Phone, user.Role, user.PasswordHash, user.CreatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return ErrDuplicateEmail
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *Users) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.get(ctx, `
		SELECT id, email, name, phone, role, password_hash, created_at
		FROM users
		WHERE email = $1`, email)
}

func (s *Users) GetByID(ctx context.Context, id string) (*models.User, error) {
	return s.get(ctx, `
		SELECT id, email, name, phone, role, password_hash, created_at
		FROM users
		WHERE id = $1`, id)
}

func (s *Users) get(ctx context.Context, query string, arg interface{}) (*models.User, error) {
	var (
		user  models.User
		phone sql.NullString
	)
	err := s.db.QueryRowContext(ctx, query, arg).Scan(
		&user.ID, &user.Email, &user.Name, &phone, &user.Role, &user.PasswordHash, &user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, workflow.ErrNotFound
		}
		return nil, fmt.Errorf("select user: %w", err)
	}
	user.Phone = phone.String
	return &user, nil
}
