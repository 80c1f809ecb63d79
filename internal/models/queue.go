// internal/models/queue.go
package models

import "time"

// QueueStatus is the state of a call-queue entry.
type QueueStatus string

const (
	QueueWaiting QueueStatus = "waiting"
	QueueClaimed QueueStatus = "claimed"
	QueueInCall  QueueStatus = "in_call"
	QueueDone    QueueStatus = "done"
)

// Active reports whether the entry still occupies the user's single
// allowed slot in the queue.
func (s QueueStatus) Active() bool {
	return s == QueueWaiting || s == QueueClaimed || s == QueueInCall
}

// QueueEntry is a request to be called back by a reviewer.
type QueueEntry struct {
	ID         string      `json:"id" db:"id"`
	UserID     string      `json:"userId" db:"user_id"`
	Phone      string      `json:"phone" db:"phone"`
	Status     QueueStatus `json:"status" db:"status"`
	ReviewerID *string     `json:"reviewerId,omitempty" db:"reviewer_id"`
	CreatedAt  time.Time   `json:"createdAt" db:"created_at"`
	ClaimedAt  *time.Time  `json:"claimedAt,omitempty" db:"claimed_at"`
}

// QueuePosition is the best-effort UI hint returned to a waiting caller.
// Position is 1-based rank among waiting entries; EstimatedWait is a linear
// heuristic, not an SLA.
type QueuePosition struct {
	Position      int           `json:"position"`
	EstimatedWait time.Duration `json:"estimatedWaitSeconds"`
}
