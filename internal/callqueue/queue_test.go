// internal/callqueue/queue_test.go
package callqueue

import (
	"context"
	"sync"
	"testing"

	apperrors "letter-service/internal/common/errors"
	"letter-service/internal/common/logger"
	"letter-service/internal/models"
	"letter-service/internal/store"
	"letter-service/internal/workflow"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

// memQueue is an in-memory Store with the production claim semantics.
type memQueue struct {
	mu      sync.Mutex
	entries map[string]*models.QueueEntry
	order   []string
}

func newMemQueue() *memQueue {
	return &memQueue{entries: map[string]*models.QueueEntry{}}
}

func (m *memQueue) Join(_ context.Context, entry *models.QueueEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.entries {
		if e.UserID == entry.UserID && e.Status.Active() {
			return store.ErrActiveEntry
		}
	}
	cp := *entry
	m.entries[entry.ID] = &cp
	m.order = append(m.order, entry.ID)
	return nil
}

func (m *memQueue) Get(_ context.Context, id string) (*models.QueueEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok {
		return nil, workflow.ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (m *memQueue) ActiveForUser(_ context.Context, userID string) (*models.QueueEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range m.order {
		e := m.entries[id]
		if e.UserID == userID && e.Status.Active() {
			cp := *e
			return &cp, nil
		}
	}
	return nil, workflow.ErrNotFound
}

func (m *memQueue) Transition(_ context.Context, id string, from, to models.QueueStatus, reviewerID *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok {
		return workflow.ErrNotFound
	}
	if e.Status != from {
		return workflow.ErrStatusConflict
	}
	e.Status = to
	if reviewerID != nil {
		e.ReviewerID = reviewerID
	}
	return nil
}

func (m *memQueue) ClaimOnly(_ context.Context, id, reviewerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok {
		return workflow.ErrNotFound
	}
	if e.Status != models.QueueWaiting || e.ReviewerID != nil {
		return workflow.ErrClaimConflict
	}
	e.Status = models.QueueClaimed
	e.ReviewerID = &reviewerID
	return nil
}

func (m *memQueue) Position(_ context.Context, id string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rank := 0
	for _, eid := range m.order {
		e := m.entries[eid]
		if e.Status != models.QueueWaiting {
			continue
		}
		rank++
		if eid == id {
			return rank, nil
		}
	}
	return 0, workflow.ErrNotFound
}

func (m *memQueue) ListWaiting(_ context.Context) ([]*models.QueueEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.QueueEntry
	for _, id := range m.order {
		if e := m.entries[id]; e.Status == models.QueueWaiting {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out, nil
}

type recordingNotifier struct {
	mu      sync.Mutex
	claimed []string
}

func (n *recordingNotifier) CallbackClaimed(entry *models.QueueEntry) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.claimed = append(n.claimed, entry.ID)
}

func reviewer(id string) *models.User {
	return &models.User{ID: id, Role: models.RoleReviewer}
}

func newTestService(t *testing.T, mq *memQueue, notifier *recordingNotifier) *Service {
	t.Helper()
	return New(mq, notifier, logger.NewTestLogger(t), 5)
}

// ==========================
// Join / Position / Leave
// ==========================

func TestJoin_FIFOPositionsAndETA(t *testing.T) {
	mq := newMemQueue()
	s := newTestService(t, mq, &recordingNotifier{})

	_, pos1, err := s.Join(context.Background(), "user-001", "+15550001")
	require.NoError(t, err)
	_, pos2, err := s.Join(context.Background(), "user-002", "+15550002")
	require.NoError(t, err)

	assert.Equal(t, 1, pos1.Position)
	assert.Equal(t, 2, pos2.Position)
	assert.Equal(t, 2*pos1.EstimatedWait, pos2.EstimatedWait)
}

func TestJoin_RequiresPhone(t *testing.T) {
	s := newTestService(t, newMemQueue(), &recordingNotifier{})

	_, _, err := s.Join(context.Background(), "user-001", "")

	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeValidation, apperrors.CodeOf(err))
}

func TestJoin_OneActiveEntryPerUser(t *testing.T) {
	s := newTestService(t, newMemQueue(), &recordingNotifier{})

	_, _, err := s.Join(context.Background(), "user-001", "+15550001")
	require.NoError(t, err)

	_, _, err = s.Join(context.Background(), "user-001", "+15550001")

	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeQueueEntryActive, apperrors.CodeOf(err))
}

func TestLeave_ReleasesSlotForRejoin(t *testing.T) {
	s := newTestService(t, newMemQueue(), &recordingNotifier{})

	_, _, err := s.Join(context.Background(), "user-001", "+15550001")
	require.NoError(t, err)

	require.NoError(t, s.Leave(context.Background(), "user-001"))

	_, pos, err := s.Join(context.Background(), "user-001", "+15550001")
	require.NoError(t, err)
	assert.Equal(t, 1, pos.Position)
}

func TestPosition_NonWaitingEntryReportsZero(t *testing.T) {
	mq := newMemQueue()
	notifier := &recordingNotifier{}
	s := newTestService(t, mq, notifier)

	entry, _, err := s.Join(context.Background(), "user-001", "+15550001")
	require.NoError(t, err)
	_, err = s.Claim(context.Background(), entry.ID, reviewer("rev-001"))
	require.NoError(t, err)

	pos, err := s.Position(context.Background(), "user-001")

	require.NoError(t, err)
	assert.Equal(t, 0, pos.Position)
}

// ==========================
// Claim / Call Flow
// ==========================

func TestClaim_ExclusiveAndNotifies(t *testing.T) {
	mq := newMemQueue()
	notifier := &recordingNotifier{}
	s := newTestService(t, mq, notifier)

	entry, _, err := s.Join(context.Background(), "user-001", "+15550001")
	require.NoError(t, err)

	claimed, err := s.Claim(context.Background(), entry.ID, reviewer("rev-001"))
	require.NoError(t, err)
	assert.Equal(t, models.QueueClaimed, claimed.Status)

	_, err = s.Claim(context.Background(), entry.ID, reviewer("rev-002"))
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeAlreadyClaimed, apperrors.CodeOf(err))

	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	assert.Equal(t, []string{entry.ID}, notifier.claimed)
}

func TestClaim_ApplicantForbidden(t *testing.T) {
	s := newTestService(t, newMemQueue(), &recordingNotifier{})

	_, err := s.Claim(context.Background(), "any", &models.User{ID: "u", Role: models.RoleApplicant})

	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeForbidden, apperrors.CodeOf(err))
}

func TestCallFlow_StartAndEnd(t *testing.T) {
	mq := newMemQueue()
	s := newTestService(t, mq, &recordingNotifier{})

	entry, _, err := s.Join(context.Background(), "user-001", "+15550001")
	require.NoError(t, err)

	rev := reviewer("rev-001")
	_, err = s.Claim(context.Background(), entry.ID, rev)
	require.NoError(t, err)

	inCall, err := s.StartCall(context.Background(), entry.ID, rev)
	require.NoError(t, err)
	assert.Equal(t, models.QueueInCall, inCall.Status)

	// In-call entries cannot abandon the queue.
	err = s.Leave(context.Background(), "user-001")
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeInvalidTransition, apperrors.CodeOf(err))

	done, err := s.EndCall(context.Background(), entry.ID, rev)
	require.NoError(t, err)
	assert.Equal(t, models.QueueDone, done.Status)
}

func TestCallFlow_OnlyClaimingReviewer(t *testing.T) {
	mq := newMemQueue()
	s := newTestService(t, mq, &recordingNotifier{})

	entry, _, err := s.Join(context.Background(), "user-001", "+15550001")
	require.NoError(t, err)

	_, err = s.Claim(context.Background(), entry.ID, reviewer("rev-001"))
	require.NoError(t, err)

	_, err = s.StartCall(context.Background(), entry.ID, reviewer("rev-002"))

	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeInvalidTransition, apperrors.CodeOf(err))
}

func TestWaiting_ReviewerBoard(t *testing.T) {
	mq := newMemQueue()
	s := newTestService(t, mq, &recordingNotifier{})

	_, _, err := s.Join(context.Background(), "user-001", "+15550001")
	require.NoError(t, err)
	_, _, err = s.Join(context.Background(), "user-002", "+15550002")
	require.NoError(t, err)

	entries, err := s.Waiting(context.Background(), reviewer("rev-001"))
	require.NoError(t, err)
	assert.Len(t, entries, 2)
	assert.Equal(t, "user-001", entries[0].UserID)

	_, err = s.Waiting(context.Background(), &models.User{ID: "u", Role: models.RoleApplicant})
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeForbidden, apperrors.CodeOf(err))
}
