// internal/store/applications.go
// Package store implements the persistence layer on PostgreSQL. The claim
// and status preconditions are enforced with conditional UPDATEs so the
// guarantees hold across multiple service instances, not just in-process.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"letter-service/internal/models"
	"letter-service/internal/workflow"
)

const applicationColumns = `id, user_id, package_id, status, form_data, assigned_agent_id,
	level2_notes, level3_notes, verify_notes, level2_approved_at, level3_completed_at,
	level3_completed_by, payment_status, transaction_id, rework_count, created_at, updated_at`

// Applications is the PostgreSQL-backed workflow.ApplicationStore.
type Applications struct {
	db *sql.DB
}

func NewApplications(db *sql.DB) *Applications {
	return &Applications{db: db}
}

func (s *Applications) Create(ctx context.Context, app *models.Application) error {
	formData, err := json.Marshal(app.FormData)
	if err != nil {
		return fmt.Errorf("marshal form data: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO applications (
			id, user_id, package_id, status, form_data, assigned_agent_id,
			level2_notes, level3_notes, verify_notes, level2_approved_at, level3_completed_at,
			level3_completed_by, payment_status, transaction_id, rework_count, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
		app.ID, app.UserID, app.PackageID, app.Status, formData, app.AssignedAgentID,
		app.Level2Notes, app.Level3Notes, app.VerifyNotes, app.Level2ApprovedAt, app.Level3CompletedAt,
		app.Level3CompletedBy, app.PaymentStatus, app.TransactionID, app.ReworkCount, app.CreatedAt, app.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert application: %w", err)
	}
	return nil
}

func (s *Applications) Get(ctx context.Context, id string) (*models.Application, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+applicationColumns+`
		FROM applications
		WHERE id = $1`, id)
	return scanApplication(row)
}

// Update persists the mutable fields only while the stored row still
// matches the expected status (and, when expectAgent is set, the expected
// claim holder). Zero rows affected means the precondition was lost.
func (s *Applications) Update(ctx context.Context, app *models.Application, expect models.Status, expectAgent *string) error {
	formData, err := json.Marshal(app.FormData)
	if err != nil {
		return fmt.Errorf("marshal form data: %w", err)
	}

	query := `
		UPDATE applications SET
			status = $2, form_data = $3, assigned_agent_id = $4,
			level2_notes = $5, level3_notes = $6, verify_notes = $7,
			level2_approved_at = $8, level3_completed_at = $9, level3_completed_by = $10,
			payment_status = $11, transaction_id = $12, rework_count = $13,
			updated_at = $14
		WHERE id = $1 AND status = $15`
	args := []interface{}{
		app.ID, app.Status, formData, app.AssignedAgentID,
		app.Level2Notes, app.Level3Notes, app.VerifyNotes,
		app.Level2ApprovedAt, app.Level3CompletedAt, app.Level3CompletedBy,
		app.PaymentStatus, app.TransactionID, app.ReworkCount,
		app.UpdatedAt, expect,
	}
	if expectAgent != nil {
		query += ` AND assigned_agent_id = $16`
		args = append(args, *expectAgent)
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update application: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		if exists, err := s.exists(ctx, app.ID); err == nil && !exists {
			return workflow.ErrNotFound
		}
		return workflow.ErrStatusConflict
	}
	return nil
}

// Claim is the row-level compare-and-swap behind the single-claimant
// invariant: set the agent only if the slot is currently empty and the
// application sits in the shared waiting state.
func (s *Applications) Claim(ctx context.Context, id, agentID string) (*models.Application, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE applications
		SET assigned_agent_id = $2, updated_at = $3
		WHERE id = $1 AND assigned_agent_id IS NULL AND status = $4
		RETURNING `+applicationColumns,
		id, agentID, time.Now().UTC(), models.StatusLevel3Work)

	app, err := scanApplication(row)
	if err == nil {
		return app, nil
	}
	if !errors.Is(err, workflow.ErrNotFound) {
		return nil, err
	}

	// No row updated: either the application is gone or someone else holds it.
	if exists, exErr := s.exists(ctx, id); exErr == nil && !exists {
		return nil, workflow.ErrNotFound
	}
	return nil, workflow.ErrClaimConflict
}

func (s *Applications) ListWaiting(ctx context.Context) ([]*models.Application, error) {
	return s.list(ctx, `
		SELECT `+applicationColumns+`
		FROM applications
		WHERE status = $1 AND assigned_agent_id IS NULL
		ORDER BY created_at`, models.StatusLevel3Work)
}

func (s *Applications) ListAssigned(ctx context.Context, agentID string) ([]*models.Application, error) {
	return s.list(ctx, `
		SELECT `+applicationColumns+`
		FROM applications
		WHERE assigned_agent_id = $1
		ORDER BY created_at`, agentID)
}

// ListCompletedBy returns applications the agent finished, keyed on the
// recorded completion rather than the (already cleared) claim.
func (s *Applications) ListCompletedBy(ctx context.Context, agentID string) ([]*models.Application, error) {
	return s.list(ctx, `
		SELECT `+applicationColumns+`
		FROM applications
		WHERE level3_completed_at IS NOT NULL AND level3_completed_by = $1
		ORDER BY level3_completed_at DESC`, agentID)
}

func (s *Applications) ListPendingVerification(ctx context.Context) ([]*models.Application, error) {
	return s.list(ctx, `
		SELECT `+applicationColumns+`
		FROM applications
		WHERE status = $1
		ORDER BY level3_completed_at`, models.StatusPendingVerification)
}

func (s *Applications) ListByUser(ctx context.Context, userID string) ([]*models.Application, error) {
	return s.list(ctx, `
		SELECT `+applicationColumns+`
		FROM applications
		WHERE user_id = $1
		ORDER BY created_at DESC`, userID)
}

func (s *Applications) exists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM applications WHERE id = $1)`, id).Scan(&exists)
	return exists, err
}

func (s *Applications) list(ctx context.Context, query string, args ...interface{}) ([]*models.Application, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query applications: %w", err)
	}
	defer rows.Close()

	var apps []*models.Application
	for rows.Next() {
		app, err := scanApplication(rows)
		if err != nil {
			return nil, err
		}
		apps = append(apps, app)
	}
	return apps, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanApplication(row rowScanner) (*models.Application, error) {
	var (
		app         models.Application
		formData    []byte
		agentID     sql.NullString
		completedBy sql.NullString
		txID        sql.NullString
		l2Notes     sql.NullString
		l3Notes     sql.NullString
		verifyNotes sql.NullString
		l2At        sql.NullTime
		l3At        sql.NullTime
	)

	err := row.Scan(
		&app.ID, &app.UserID, &app.PackageID, &app.Status, &formData, &agentID,
		&l2Notes, &l3Notes, &verifyNotes, &l2At, &l3At,
		&completedBy, &app.PaymentStatus, &txID, &app.ReworkCount, &app.CreatedAt, &app.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, workflow.ErrNotFound
		}
		return nil, fmt.Errorf("scan application: %w", err)
	}

	if len(formData) > 0 {
		if err := json.Unmarshal(formData, &app.FormData); err != nil {
			return nil, fmt.Errorf("unmarshal form data: %w", err)
		}
	}
	if agentID.Valid {
		app.AssignedAgentID = &agentID.String
	}
	if completedBy.Valid {
		app.Level3CompletedBy = &completedBy.String
	}
	app.Level2Notes = l2Notes.String
	app.Level3Notes = l3Notes.String
	app.VerifyNotes = verifyNotes.String
	app.TransactionID = txID.String
	if l2At.Valid {
		t := l2At.Time
		app.Level2ApprovedAt = &t
	}
	if l3At.Valid {
		t := l3At.Time
		app.Level3CompletedAt = &t
	}
	return &app, nil
}
