// internal/workflow/views.go
package workflow

import (
	"context"

	apperrors "letter-service/internal/common/errors"
	"letter-service/internal/models"
)

// Views are read-only projections over application state: recomputed on
// every query, never mutated directly, never stored.
type Views struct {
	apps ApplicationStore
}

func NewViews(apps ApplicationStore) *Views {
	return &Views{apps: apps}
}

// Waiting lists unclaimed applications in the shared work state.
func (v *Views) Waiting(ctx context.Context) ([]*models.Application, error) {
	apps, err := v.apps.ListWaiting(ctx)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return apps, nil
}

// InProgress lists applications currently held by the agent.
func (v *Views) InProgress(ctx context.Context, agentID string) ([]*models.Application, error) {
	apps, err := v.apps.ListAssigned(ctx, agentID)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return apps, nil
}

// Completed lists applications the agent finished, regardless of how
// verification turned out afterwards.
func (v *Views) Completed(ctx context.Context, agentID string) ([]*models.Application, error) {
	apps, err := v.apps.ListCompletedBy(ctx, agentID)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return apps, nil
}

// PendingVerification lists applications awaiting the admin gate.
func (v *Views) PendingVerification(ctx context.Context) ([]*models.Application, error) {
	apps, err := v.apps.ListPendingVerification(ctx)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return apps, nil
}

// ForUser lists the applicant's own orders.
func (v *Views) ForUser(ctx context.Context, userID string) ([]*models.Application, error) {
	apps, err := v.apps.ListByUser(ctx, userID)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return apps, nil
}
