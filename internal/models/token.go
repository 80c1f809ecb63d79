// internal/models/token.go
package models

import "time"

// ReviewToken is a single-use, time-boxed credential that lets an external
// doctor submit a decision without holding an account. The token value is
// random and unguessable; nothing beyond that is implied.
type ReviewToken struct {
	Token         string     `json:"token" db:"token"`
	ApplicationID string     `json:"applicationId" db:"application_id"`
	CreatedAt     time.Time  `json:"createdAt" db:"created_at"`
	ExpiresAt     time.Time  `json:"expiresAt" db:"expires_at"`
	ConsumedAt    *time.Time `json:"consumedAt,omitempty" db:"consumed_at"`
}

// Expired reports whether the token is past its validity window at now.
func (t *ReviewToken) Expired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}

// Consumed reports whether the token has already been used.
func (t *ReviewToken) Consumed() bool {
	return t.ConsumedAt != nil
}
