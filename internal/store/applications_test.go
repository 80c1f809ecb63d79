// internal/store/applications_test.go
package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"letter-service/internal/models"
	"letter-service/internal/workflow"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

var appColumns = []string{
	"id", "user_id", "package_id", "status", "form_data", "assigned_agent_id",
	"level2_notes", "level3_notes", "verify_notes", "level2_approved_at", "level3_completed_at",
	"level3_completed_by", "payment_status", "transaction_id", "rework_count", "created_at", "updated_at",
}

func appRow(id string, status models.Status, agentID interface{}) *sqlmock.Rows {
	now := time.Now().UTC()
	return sqlmock.NewRows(appColumns).AddRow(
		id, "user-001", "pkg-001", status, []byte(`{"petName":"Rex"}`), agentID,
		nil, nil, nil, nil, nil,
		nil, models.PaymentUnpaid, nil, 0, now, now,
	)
}

func testApplication(id string, status models.Status) *models.Application {
	now := time.Now().UTC()
	return &models.Application{
		ID:            id,
		UserID:        "user-001",
		PackageID:     "pkg-001",
		Status:        status,
		FormData:      map[string]interface{}{"petName": "Rex"},
		PaymentStatus: models.PaymentUnpaid,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// ==========================
// Get / Create
// ==========================

func TestApplications_Get(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`SELECT (.+) FROM applications`).
		WithArgs("app-001").
		WillReturnRows(appRow("app-001", models.StatusPending, nil))

	store := NewApplications(db)
	app, err := store.Get(context.Background(), "app-001")

	require.NoError(t, err)
	assert.Equal(t, "app-001", app.ID)
	assert.Equal(t, models.StatusPending, app.Status)
	assert.Equal(t, "Rex", app.FormData["petName"])
	assert.Nil(t, app.AssignedAgentID)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplications_GetNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`SELECT (.+) FROM applications`).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(appColumns))

	store := NewApplications(db)
	_, err = store.Get(context.Background(), "missing")

	assert.True(t, errors.Is(err, workflow.ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplications_Create(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`INSERT INTO applications`).
		WithArgs(
			"app-001", "user-001", "pkg-001", models.StatusPending, sqlmock.AnyArg(), nil,
			"", "", "", nil, nil,
			nil, models.PaymentUnpaid, "", 0, sqlmock.AnyArg(), sqlmock.AnyArg(),
		).
		WillReturnResult(sqlmock.NewResult(0, 1))

	store := NewApplications(db)
	err = store.Create(context.Background(), testApplication("app-001", models.StatusPending))

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ==========================
// Conditional Update
// ==========================

func TestApplications_UpdateStatusPreconditionLost(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	// Zero rows affected, but the row exists: a concurrent writer moved it.
	mock.ExpectExec(`UPDATE applications SET`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("app-001").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	store := NewApplications(db)
	app := testApplication("app-001", models.StatusDoctorReview)
	err = store.Update(context.Background(), app, models.StatusPending, nil)

	assert.True(t, errors.Is(err, workflow.ErrStatusConflict))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplications_UpdateRowGone(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`UPDATE applications SET`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("app-001").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	store := NewApplications(db)
	app := testApplication("app-001", models.StatusDoctorReview)
	err = store.Update(context.Background(), app, models.StatusPending, nil)

	assert.True(t, errors.Is(err, workflow.ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplications_UpdateWithAgentPrecondition(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`UPDATE applications SET (.+) AND assigned_agent_id = \$16`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	store := NewApplications(db)
	app := testApplication("app-001", models.StatusPendingVerification)
	holder := "agent-001"
	err = store.Update(context.Background(), app, models.StatusLevel3Work, &holder)

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ==========================
// Claim CAS
// ==========================

func TestApplications_ClaimWins(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`UPDATE applications`).
		WithArgs("app-001", "agent-001", sqlmock.AnyArg(), models.StatusLevel3Work).
		WillReturnRows(appRow("app-001", models.StatusLevel3Work, "agent-001"))

	store := NewApplications(db)
	app, err := store.Claim(context.Background(), "app-001", "agent-001")

	require.NoError(t, err)
	require.NotNil(t, app.AssignedAgentID)
	assert.Equal(t, "agent-001", *app.AssignedAgentID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplications_ClaimLosesToHolder(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	// The conditional update matches nothing; the row still exists, so the
	// caller lost the race rather than chasing a deleted record.
	mock.ExpectQuery(`UPDATE applications`).
		WithArgs("app-001", "agent-002", sqlmock.AnyArg(), models.StatusLevel3Work).
		WillReturnRows(sqlmock.NewRows(appColumns))
	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("app-001").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	store := NewApplications(db)
	_, err = store.Claim(context.Background(), "app-001", "agent-002")

	assert.True(t, errors.Is(err, workflow.ErrClaimConflict))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplications_ClaimUnknownApplication(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`UPDATE applications`).
		WithArgs("missing", "agent-001", sqlmock.AnyArg(), models.StatusLevel3Work).
		WillReturnRows(sqlmock.NewRows(appColumns))
	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	store := NewApplications(db)
	_, err = store.Claim(context.Background(), "missing", "agent-001")

	assert.True(t, errors.Is(err, workflow.ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ==========================
// Queue Views
// ==========================

func TestApplications_ListWaiting(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	rows := appRow("app-001", models.StatusLevel3Work, nil)
	mock.ExpectQuery(`SELECT (.+) FROM applications`).
		WithArgs(models.StatusLevel3Work).
		WillReturnRows(rows)

	store := NewApplications(db)
	apps, err := store.ListWaiting(context.Background())

	require.NoError(t, err)
	require.Len(t, apps, 1)
	assert.Equal(t, "app-001", apps[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplications_ListCompletedBy(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now().UTC()
	rows := sqlmock.NewRows(appColumns).AddRow(
		"app-001", "user-001", "pkg-001", models.StatusCompleted, []byte(`{}`), nil,
		nil, "letter drafted", nil, nil, now,
		"agent-001", models.PaymentPaid, "tx-001", 0, now, now,
	)
	mock.ExpectQuery(`SELECT (.+) FROM applications`).
		WithArgs("agent-001").
		WillReturnRows(rows)

	store := NewApplications(db)
	apps, err := store.ListCompletedBy(context.Background(), "agent-001")

	require.NoError(t, err)
	require.Len(t, apps, 1)
	require.NotNil(t, apps[0].Level3CompletedBy)
	assert.Equal(t, "agent-001", *apps[0].Level3CompletedBy)
	assert.Equal(t, "letter drafted", apps[0].Level3Notes)
	assert.NoError(t, mock.ExpectationsWereMet())
}
