// internal/account/service_test.go
package account

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	apperrors "letter-service/internal/common/errors"
	"letter-service/internal/common/logger"
	"letter-service/internal/models"
	"letter-service/internal/store"
	"letter-service/internal/workflow"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

type memUsers struct {
	mu      sync.Mutex
	byID    map[string]*models.User
	byEmail map[string]*models.User
}

func newMemUsers() *memUsers {
	return &memUsers{byID: map[string]*models.User{}, byEmail: map[string]*models.User{}}
}

func (m *memUsers) Create(_ context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byEmail[user.Email]; ok {
		return store.ErrDuplicateEmail
	}
	cp := *user
	m.byID[user.ID] = &cp
	m.byEmail[user.Email] = &cp
	return nil
}

func (m *memUsers) GetByEmail(_ context.Context, email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byEmail[email]
	if !ok {
		return nil, workflow.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memUsers) GetByID(_ context.Context, id string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return nil, workflow.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

type welcomeRecorder struct {
	mu    sync.Mutex
	users []string
}

func (w *welcomeRecorder) WelcomeAccount(user *models.User) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.users = append(w.users, user.Email)
}

func newTestAccounts(t *testing.T) (*Service, *memUsers, *miniredis.Miniredis, *welcomeRecorder) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	users := newMemUsers()
	welcome := &welcomeRecorder{}
	// Low bcrypt cost keeps the test fast.
	svc := New(users, rdb, welcome, logger.NewTestLogger(t), time.Hour, 4)
	return svc, users, mr, welcome
}

// ==========================
// Register
// ==========================

func TestRegister_CreatesApplicantAndWelcomes(t *testing.T) {
	svc, _, _, welcome := newTestAccounts(t)

	user, err := svc.Register(context.Background(), "Jo@Example.com", "Jo Smith", "+15550001", "hunter2secret")

	require.NoError(t, err)
	assert.Equal(t, "jo@example.com", user.Email)
	assert.Equal(t, models.RoleApplicant, user.Role)
	assert.NotEmpty(t, user.ID)
	assert.NotEqual(t, "hunter2secret", user.PasswordHash)

	welcome.mu.Lock()
	defer welcome.mu.Unlock()
	assert.Equal(t, []string{"jo@example.com"}, welcome.users)
}

func TestRegister_DuplicateEmail(t *testing.T) {
	svc, _, _, _ := newTestAccounts(t)

	_, err := svc.Register(context.Background(), "jo@example.com", "Jo", "", "hunter2secret")
	require.NoError(t, err)

	_, err = svc.Register(context.Background(), "jo@example.com", "Jo Again", "", "hunter2secret")

	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeDuplicateEmail, apperrors.CodeOf(err))
}

func TestRegister_ValidatesInput(t *testing.T) {
	svc, _, _, _ := newTestAccounts(t)

	_, err := svc.Register(context.Background(), "not-an-email", "Jo", "", "hunter2secret")
	assert.Equal(t, apperrors.ErrCodeValidation, apperrors.CodeOf(err))

	_, err = svc.Register(context.Background(), "jo@example.com", "Jo", "", "short")
	assert.Equal(t, apperrors.ErrCodeValidation, apperrors.CodeOf(err))

	_, err = svc.Register(context.Background(), "jo@example.com", "   ", "", "hunter2secret")
	assert.Equal(t, apperrors.ErrCodeValidation, apperrors.CodeOf(err))
}

// ==========================
// Login / Authenticate / Logout
// ==========================

func TestLogin_RoundTrip(t *testing.T) {
	svc, _, _, _ := newTestAccounts(t)

	registered, err := svc.Register(context.Background(), "jo@example.com", "Jo", "", "hunter2secret")
	require.NoError(t, err)

	session, err := svc.Login(context.Background(), "jo@example.com", "hunter2secret")
	require.NoError(t, err)
	assert.NotEmpty(t, session.Token)
	assert.Equal(t, registered.ID, session.UserID)

	user, err := svc.Authenticate(context.Background(), session.Token)
	require.NoError(t, err)
	assert.Equal(t, registered.ID, user.ID)
}

func TestLogin_WrongPassword(t *testing.T) {
	svc, _, _, _ := newTestAccounts(t)

	_, err := svc.Register(context.Background(), "jo@example.com", "Jo", "", "hunter2secret")
	require.NoError(t, err)

	_, err = svc.Login(context.Background(), "jo@example.com", "wrong")

	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeUnauthorized, apperrors.CodeOf(err))
}

func TestLogin_UnknownEmailSameError(t *testing.T) {
	svc, _, _, _ := newTestAccounts(t)

	_, err := svc.Login(context.Background(), "nobody@example.com", "whatever")

	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeUnauthorized, apperrors.CodeOf(err))
}

func TestAuthenticate_SessionExpires(t *testing.T) {
	svc, _, mr, _ := newTestAccounts(t)

	_, err := svc.Register(context.Background(), "jo@example.com", "Jo", "", "hunter2secret")
	require.NoError(t, err)
	session, err := svc.Login(context.Background(), "jo@example.com", "hunter2secret")
	require.NoError(t, err)

	mr.FastForward(2 * time.Hour)

	_, err = svc.Authenticate(context.Background(), session.Token)

	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeUnauthorized, apperrors.CodeOf(err))
}

func TestLogout_InvalidatesSession(t *testing.T) {
	svc, _, _, _ := newTestAccounts(t)

	_, err := svc.Register(context.Background(), "jo@example.com", "Jo", "", "hunter2secret")
	require.NoError(t, err)
	session, err := svc.Login(context.Background(), "jo@example.com", "hunter2secret")
	require.NoError(t, err)

	require.NoError(t, svc.Logout(context.Background(), session.Token))

	_, err = svc.Authenticate(context.Background(), session.Token)
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeUnauthorized, apperrors.CodeOf(err))
}

func TestAuthenticate_MissingToken(t *testing.T) {
	svc, _, _, _ := newTestAccounts(t)

	_, err := svc.Authenticate(context.Background(), "")

	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeUnauthorized, apperrors.CodeOf(err))
}

// ==========================
// Redis Command Level
// ==========================

func TestAuthenticate_ReadsSessionKey(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	users := newMemUsers()
	users.byID["u1"] = &models.User{ID: "u1", Email: "jo@example.com", Role: models.RoleAgent}
	svc := New(users, rdb, nil, logger.NewTestLogger(t), time.Hour, 4)

	now := time.Now().UTC()
	payload, err := json.Marshal(&models.Session{
		Token:     "tok-1",
		UserID:    "u1",
		Role:      models.RoleAgent,
		CreatedAt: now,
		ExpiresAt: now.Add(time.Hour),
	})
	require.NoError(t, err)
	mock.ExpectGet("session:tok-1").SetVal(string(payload))

	user, err := svc.Authenticate(context.Background(), "tok-1")

	require.NoError(t, err)
	assert.Equal(t, "u1", user.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLogout_DeletesSessionKey(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	svc := New(newMemUsers(), rdb, nil, logger.NewTestLogger(t), time.Hour, 4)

	mock.ExpectDel("session:tok-1").SetVal(1)

	require.NoError(t, svc.Logout(context.Background(), "tok-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
