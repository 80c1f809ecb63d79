// internal/callqueue/queue.go
// Package callqueue implements the reviewer callback queue: a small FIFO
// with the same claim semantics as the agent work queue.
package callqueue

import (
	"context"
	"errors"
	"time"

	apperrors "letter-service/internal/common/errors"
	"letter-service/internal/common/logger"
	"letter-service/internal/common/metrics"
	"letter-service/internal/models"
	"letter-service/internal/store"
	"letter-service/internal/workflow"

	"github.com/google/uuid"
)

// Store is the persistence contract for queue entries.
type Store interface {
	Join(ctx context.Context, entry *models.QueueEntry) error
	Get(ctx context.Context, id string) (*models.QueueEntry, error)
	ActiveForUser(ctx context.Context, userID string) (*models.QueueEntry, error)
	Transition(ctx context.Context, id string, from, to models.QueueStatus, reviewerID *string) error
	ClaimOnly(ctx context.Context, id, reviewerID string) error
	Position(ctx context.Context, id string) (int, error)
	ListWaiting(ctx context.Context) ([]*models.QueueEntry, error)
}

// Notifier sends the fire-and-forget "a reviewer will call you shortly"
// heads-up when an entry is claimed.
type Notifier interface {
	CallbackClaimed(entry *models.QueueEntry)
}

// Service coordinates the queue. Position and ETA are best-effort reads;
// they may shift between two queries and that is acceptable.
type Service struct {
	store    Store
	notifier Notifier
	logger   logger.Logger
	perItem  time.Duration
}

func New(st Store, notifier Notifier, log logger.Logger, perItemMinutes int) *Service {
	if perItemMinutes <= 0 {
		perItemMinutes = 5
	}
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &Service{
		store:    st,
		notifier: notifier,
		logger:   log.WithFields(map[string]interface{}{"component": "callqueue"}),
		perItem:  time.Duration(perItemMinutes) * time.Minute,
	}
}

// Join enqueues the user for a callback. A user may hold at most one
// active entry.
func (s *Service) Join(ctx context.Context, userID, phone string) (*models.QueueEntry, *models.QueuePosition, error) {
	if phone == "" {
		return nil, nil, apperrors.NewValidationError("phone number is required")
	}

	entry := &models.QueueEntry{
		ID:        uuid.New().String(),
		UserID:    userID,
		Phone:     phone,
		Status:    models.QueueWaiting,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.Join(ctx, entry); err != nil {
		if errors.Is(err, store.ErrActiveEntry) {
			return nil, nil, apperrors.NewQueueEntryActiveError(userID)
		}
		return nil, nil, apperrors.NewInternalError(err)
	}

	metrics.CallQueueJoins.Inc()
	pos, err := s.position(ctx, entry.ID)
	if err != nil {
		// Entry is in; the position hint is not worth failing the join over.
		pos = &models.QueuePosition{Position: 1, EstimatedWait: s.perItem}
	}
	return entry, pos, nil
}

// Leave removes the user's active entry before the call starts.
func (s *Service) Leave(ctx context.Context, userID string) error {
	entry, err := s.store.ActiveForUser(ctx, userID)
	if err != nil {
		if errors.Is(err, workflow.ErrNotFound) {
			return apperrors.NewNotFoundError("queue entry", userID)
		}
		return apperrors.NewInternalError(err)
	}
	if entry.Status == models.QueueInCall {
		return apperrors.NewInvalidTransitionError("leave", string(entry.Status))
	}
	if err := s.store.Transition(ctx, entry.ID, entry.Status, models.QueueDone, nil); err != nil {
		return s.mapErr("leave", entry.ID, err)
	}
	return nil
}

// Claim marks the entry as taken by the reviewer. Exclusive: a second
// concurrent claim loses with AlreadyClaimedError.
func (s *Service) Claim(ctx context.Context, entryID string, actor *models.User) (*models.QueueEntry, error) {
	if err := workflow.Require(actor.Role, workflow.CapCallQueueClaim); err != nil {
		return nil, err
	}
	if err := s.store.ClaimOnly(ctx, entryID, actor.ID); err != nil {
		if errors.Is(err, workflow.ErrClaimConflict) {
			metrics.ClaimRacesTotal.Inc()
			return nil, apperrors.NewAlreadyClaimedError(entryID)
		}
		return nil, s.mapErr("claim", entryID, err)
	}

	entry, err := s.store.Get(ctx, entryID)
	if err != nil {
		return nil, s.mapErr("claim", entryID, err)
	}
	if s.notifier != nil {
		s.notifier.CallbackClaimed(entry)
	}
	return entry, nil
}

// StartCall moves a claimed entry into the call. Only the claiming
// reviewer may start it.
func (s *Service) StartCall(ctx context.Context, entryID string, actor *models.User) (*models.QueueEntry, error) {
	return s.reviewerTransition(ctx, entryID, actor, models.QueueClaimed, models.QueueInCall, "startCall")
}

// EndCall finishes the call and releases the user's queue slot.
func (s *Service) EndCall(ctx context.Context, entryID string, actor *models.User) (*models.QueueEntry, error) {
	return s.reviewerTransition(ctx, entryID, actor, models.QueueInCall, models.QueueDone, "endCall")
}

// Position reports the user's place in line, waiting entries only.
func (s *Service) Position(ctx context.Context, userID string) (*models.QueuePosition, error) {
	entry, err := s.store.ActiveForUser(ctx, userID)
	if err != nil {
		if errors.Is(err, workflow.ErrNotFound) {
			return nil, apperrors.NewNotFoundError("queue entry", userID)
		}
		return nil, apperrors.NewInternalError(err)
	}
	if entry.Status != models.QueueWaiting {
		return &models.QueuePosition{Position: 0, EstimatedWait: 0}, nil
	}
	return s.position(ctx, entry.ID)
}

// Waiting lists the queue for the reviewer board.
func (s *Service) Waiting(ctx context.Context, actor *models.User) ([]*models.QueueEntry, error) {
	if err := workflow.Require(actor.Role, workflow.CapCallQueueClaim); err != nil {
		return nil, err
	}
	entries, err := s.store.ListWaiting(ctx)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return entries, nil
}

func (s *Service) reviewerTransition(ctx context.Context, entryID string, actor *models.User, from, to models.QueueStatus, op string) (*models.QueueEntry, error) {
	if err := workflow.Require(actor.Role, workflow.CapCallQueueClaim); err != nil {
		return nil, err
	}
	entry, err := s.store.Get(ctx, entryID)
	if err != nil {
		return nil, s.mapErr(op, entryID, err)
	}
	if entry.ReviewerID == nil || *entry.ReviewerID != actor.ID {
		return nil, apperrors.NewInvalidTransitionError(op, string(entry.Status))
	}
	if err := s.store.Transition(ctx, entryID, from, to, nil); err != nil {
		return nil, s.mapErr(op, entryID, err)
	}
	entry.Status = to
	return entry, nil
}

func (s *Service) position(ctx context.Context, entryID string) (*models.QueuePosition, error) {
	pos, err := s.store.Position(ctx, entryID)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return &models.QueuePosition{
		Position:      pos,
		EstimatedWait: time.Duration(pos) * s.perItem,
	}, nil
}

func (s *Service) mapErr(op, id string, err error) error {
	switch {
	case errors.Is(err, workflow.ErrNotFound):
		return apperrors.NewNotFoundError("queue entry", id)
	case errors.Is(err, workflow.ErrStatusConflict):
		return apperrors.NewInvalidTransitionError(op, "concurrently changed")
	default:
		return apperrors.NewInternalError(err)
	}
}
