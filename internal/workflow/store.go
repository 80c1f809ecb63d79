// internal/workflow/store.go
package workflow

import (
	"context"
	"errors"
	"time"

	"letter-service/internal/models"
)

// Sentinel errors returned by store implementations. The authority maps
// them onto the user-facing taxonomy.
var (
	ErrNotFound       = errors.New("record not found")
	ErrStatusConflict = errors.New("status precondition failed")
	ErrClaimConflict  = errors.New("claim precondition failed")
	ErrTokenConflict  = errors.New("token already consumed")
)

// ApplicationStore is the persistence contract the authority runs against.
// Update and Claim must be conditional writes applied atomically at the
// storage layer; in-process locking is not enough in a multi-instance
// deployment.
type ApplicationStore interface {
	Create(ctx context.Context, app *models.Application) error
	Get(ctx context.Context, id string) (*models.Application, error)

	// Update persists app only while the stored row still has status expect
	// (and, when expectAgent is non-nil, that exact assigned agent).
	// Returns ErrStatusConflict when the precondition no longer holds.
	Update(ctx context.Context, app *models.Application, expect models.Status, expectAgent *string) error

	// Claim sets assigned_agent_id to agentID only if it is currently null
	// and the row is in the shared waiting state. Exactly one of two
	// concurrent claims can succeed; the loser gets ErrClaimConflict.
	Claim(ctx context.Context, id, agentID string) (*models.Application, error)

	ListWaiting(ctx context.Context) ([]*models.Application, error)
	ListAssigned(ctx context.Context, agentID string) ([]*models.Application, error)
	ListCompletedBy(ctx context.Context, agentID string) ([]*models.Application, error)
	ListPendingVerification(ctx context.Context) ([]*models.Application, error)
	ListByUser(ctx context.Context, userID string) ([]*models.Application, error)
}

// TokenStore persists single-use review tokens.
type TokenStore interface {
	Create(ctx context.Context, token *models.ReviewToken) error
	Get(ctx context.Context, token string) (*models.ReviewToken, error)

	// Consume marks the token used only if it has not been used before;
	// a second consumption returns ErrTokenConflict.
	Consume(ctx context.Context, token string, at time.Time) error
}

// PackageStore resolves the service tier an application was bought under.
type PackageStore interface {
	GetPackage(ctx context.Context, id string) (*models.Package, error)
}

// PaymentGateway is the external charge collaborator. The workflow reacts
// only to success or failure and never inspects gateway internals.
type PaymentGateway interface {
	Charge(ctx context.Context, amountCents int, paymentToken string) (transactionID string, err error)
}

// Notifier delivers fire-and-forget side effects. Implementations must not
// block and must never surface failures back into the transition.
type Notifier interface {
	ReviewLinkIssued(app *models.Application, doctorEmail, reviewURL string)
}

// Indexer mirrors application snapshots into the admin search index,
// also fire-and-forget.
type Indexer interface {
	ApplicationUpdated(app *models.Application)
}
