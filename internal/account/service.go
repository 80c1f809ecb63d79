// internal/account/service.go
// Package account handles registration, login, and session lookup.
// Sessions are opaque random tokens stored in Redis with a TTL.
package account

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strings"
	"time"

	apperrors "letter-service/internal/common/errors"
	"letter-service/internal/common/logger"
	"letter-service/internal/models"
	"letter-service/internal/store"
	"letter-service/internal/workflow"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
)

const sessionKeyPrefix = "session:"

// UserStore is the persistence contract for accounts.
type UserStore interface {
	Create(ctx context.Context, user *models.User) error
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
}

// WelcomeNotifier greets new accounts, fire-and-forget.
type WelcomeNotifier interface {
	WelcomeAccount(user *models.User)
}

type Service struct {
	users      UserStore
	redis      *redis.Client
	notifier   WelcomeNotifier
	logger     logger.Logger
	sessionTTL time.Duration
	bcryptCost int
}

func New(users UserStore, rdb *redis.Client, notifier WelcomeNotifier, log logger.Logger, sessionTTL time.Duration, bcryptCost int) *Service {
	if sessionTTL == 0 {
		sessionTTL = 24 * time.Hour
	}
	if bcryptCost == 0 {
		bcryptCost = bcrypt.DefaultCost
	}
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &Service{
		users:      users,
		redis:      rdb,
		notifier:   notifier,
		logger:     log.WithFields(map[string]interface{}{"component": "account"}),
		sessionTTL: sessionTTL,
		bcryptCost: bcryptCost,
	}
}

// Register creates an applicant account and fires the welcome email.
func (s *Service) Register(ctx context.Context, email, name, phone, password string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, apperrors.NewValidationError("a valid email is required")
	}
	if len(password) < 8 {
		return nil, apperrors.NewValidationError("password must be at least 8 characters")
	}
	if strings.TrimSpace(name) == "" {
		return nil, apperrors.NewValidationError("name is required")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	user := &models.User{
		ID:           uuid.New().String(),
		Email:        email,
		Name:         name,
		Phone:        phone,
		Role:         models.RoleApplicant,
		PasswordHash: string(hash),
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, store.ErrDuplicateEmail) {
			return nil, apperrors.NewDuplicateEmailError(email)
		}
		return nil, apperrors.NewInternalError(err)
	}

	if s.notifier != nil {
		s.notifier.WelcomeAccount(user)
	}
	s.logger.Info("account registered", map[string]interface{}{
		"userId": user.ID,
	})
	return user, nil
}

// Login verifies credentials and opens a session.
func (s *Service) Login(ctx context.Context, email, password string) (*models.Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, workflow.ErrNotFound) {
			return nil, apperrors.NewUnauthorizedError("invalid credentials")
		}
		return nil, apperrors.NewInternalError(err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, apperrors.NewUnauthorizedError("invalid credentials")
	}

	now := time.Now().UTC()
	session := &models.Session{
		Token:     newSessionToken(),
		UserID:    user.ID,
		Role:      user.Role,
		CreatedAt: now,
		ExpiresAt: now.Add(s.sessionTTL),
	}
	payload, err := json.Marshal(session)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	if err := s.redis.Set(ctx, sessionKeyPrefix+session.Token, payload, s.sessionTTL).Err(); err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return session, nil
}

// Logout closes the session. Unknown tokens are a no-op.
func (s *Service) Logout(ctx context.Context, token string) error {
	if err := s.redis.Del(ctx, sessionKeyPrefix+token).Err(); err != nil {
		return apperrors.NewInternalError(err)
	}
	return nil
}

// Authenticate resolves a session token to its user.
func (s *Service) Authenticate(ctx context.Context, token string) (*models.User, error) {
	if token == "" {
		return nil, apperrors.NewUnauthorizedError("missing session token")
	}
	val, err := s.redis.Get(ctx, sessionKeyPrefix+token).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, apperrors.NewUnauthorizedError("session expired or unknown")
		}
		return nil, apperrors.NewInternalError(err)
	}

	var session models.Session
	if err := json.Unmarshal([]byte(val), &session); err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	if session.IsExpired() {
		return nil, apperrors.NewUnauthorizedError("session expired")
	}

	user, err := s.users.GetByID(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, workflow.ErrNotFound) {
			return nil, apperrors.NewUnauthorizedError("account no longer exists")
		}
		return nil, apperrors.NewInternalError(err)
	}
	return user, nil
}

func newSessionToken() string {
	b := make([]byte, 24)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return hex.EncodeToString(b)
}
