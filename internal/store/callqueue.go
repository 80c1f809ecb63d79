// internal/store/callqueue.go
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"letter-service/internal/models"
	"letter-service/internal/workflow"
)

// ErrActiveEntry is returned when a user joins while already queued.
var ErrActiveEntry = errors.New("active queue entry exists")

const queueColumns = `id, user_id, phone, status, reviewer_id, created_at, claimed_at`

// CallQueue is the PostgreSQL-backed reviewer callback queue. Claims use
// the same conditional-update shape as the application claim coordinator.
type CallQueue struct {
	db *sql.DB
}

func NewCallQueue(db *sql.DB) *CallQueue {
	return &CallQueue{db: db}
}

// Join inserts a waiting entry unless the user already holds an active one.
// The guarded INSERT keeps the one-active-entry invariant under concurrent
// joins from the same user.
func (s *CallQueue) Join(ctx context.Context, entry *models.QueueEntry) error {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO call_queue (id, user_id, phone, status, created_at)
		SELECT $1, $2, $3, $4, $5
		WHERE NOT EXISTS (
			SELECT 1 FROM call_queue
			WHERE user_id = $2 AND status IN ('waiting', 'claimed', 'in_call')
		)`,
		entry.ID, entry.UserID, entry.Phone, entry.Status, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert queue entry: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrActiveEntry
	}
	return nil
}

func (s *CallQueue) Get(ctx context.Context, id string) (*models.QueueEntry, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+queueColumns+`
		FROM call_queue
		WHERE id = $1`, id)
	return scanQueueEntry(row)
}

// ActiveForUser returns the user's live entry, if any.
func (s *CallQueue) ActiveForUser(ctx context.Context, userID string) (*models.QueueEntry, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+queueColumns+`
		FROM call_queue
		WHERE user_id = $1 AND status IN ('waiting', 'claimed', 'in_call')`, userID)
	return scanQueueEntry(row)
}

// Transition moves an entry from one status to another, optionally
// recording the reviewer. Zero rows means the precondition was lost.
func (s *CallQueue) Transition(ctx context.Context, id string, from, to models.QueueStatus, reviewerID *string) error {
	var (
		res sql.Result
		err error
	)
	if reviewerID != nil {
		res, err = s.db.ExecContext(ctx, `
			UPDATE call_queue
			SET status = $3, reviewer_id = $4, claimed_at = NOW()
			WHERE id = $1 AND status = $2`,
			id, from, to, *reviewerID)
	} else {
		res, err = s.db.ExecContext(ctx, `
			UPDATE call_queue
			SET status = $3
			WHERE id = $1 AND status = $2`,
			id, from, to)
	}
	if err != nil {
		return fmt.Errorf("update queue entry: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		var exists bool
		if err := s.db.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM call_queue WHERE id = $1)`, id).Scan(&exists); err == nil && !exists {
			return workflow.ErrNotFound
		}
		return workflow.ErrStatusConflict
	}
	return nil
}

// ClaimOnly transitions waiting -> claimed for the reviewer, but only when
// no reviewer holds the entry yet.
func (s *CallQueue) ClaimOnly(ctx context.Context, id, reviewerID string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE call_queue
		SET status = 'claimed', reviewer_id = $2, claimed_at = NOW()
		WHERE id = $1 AND status = 'waiting' AND reviewer_id IS NULL`,
		id, reviewerID)
	if err != nil {
		return fmt.Errorf("claim queue entry: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		var exists bool
		if err := s.db.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM call_queue WHERE id = $1)`, id).Scan(&exists); err == nil && !exists {
			return workflow.ErrNotFound
		}
		return workflow.ErrClaimConflict
	}
	return nil
}

// Position returns the 1-based rank of a waiting entry among waiting
// entries ordered by creation time. Best-effort: the number can shift
// between two reads, which is fine for a UI hint.
func (s *CallQueue) Position(ctx context.Context, id string) (int, error) {
	var position int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM call_queue
		WHERE status = 'waiting'
		  AND created_at <= (SELECT created_at FROM call_queue WHERE id = $1)`,
		id).Scan(&position)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, workflow.ErrNotFound
		}
		return 0, fmt.Errorf("queue position: %w", err)
	}
	if position == 0 {
		return 0, workflow.ErrNotFound
	}
	return position, nil
}

// ListWaiting returns waiting entries in FIFO order for the reviewer board.
func (s *CallQueue) ListWaiting(ctx context.Context) ([]*models.QueueEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+queueColumns+`
		FROM call_queue
		WHERE status = 'waiting'
		ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("query queue: %w", err)
	}
	defer rows.Close()

	var entries []*models.QueueEntry
	for rows.Next() {
		entry, err := scanQueueEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func scanQueueEntry(row rowScanner) (*models.QueueEntry, error) {
	var (
		entry      models.QueueEntry
		reviewerID sql.NullString
		claimedAt  sql.NullTime
	)
	err := row.Scan(&entry.ID, &entry.UserID, &entry.Phone, &entry.Status, &reviewerID, &entry.CreatedAt, &claimedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, workflow.ErrNotFound
		}
		return nil, fmt.Errorf("scan queue entry: %w", err)
	}
	if reviewerID.Valid {
		entry.ReviewerID = &reviewerID.String
	}
	if claimedAt.Valid {
		at := claimedAt.Time
		entry.ClaimedAt = &at
	}
	return &entry, nil
}
