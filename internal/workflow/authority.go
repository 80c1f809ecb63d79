// internal/workflow/authority.go
// Package workflow implements the status transition authority: the single
// gate through which an application's status may change. Every operation
// validates its source-state precondition and rejects out-of-order calls
// instead of coercing them; failed transitions leave the record untouched.
package workflow

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	apperrors "letter-service/internal/common/errors"
	"letter-service/internal/common/logger"
	"letter-service/internal/common/metrics"
	"letter-service/internal/common/validation"
	"letter-service/internal/models"

	"github.com/google/uuid"
)

// Deps bundles the collaborators the authority runs against.
type Deps struct {
	Applications ApplicationStore
	Tokens       TokenStore
	Packages     PackageStore
	Gateway      PaymentGateway
	Notifier     Notifier
	Indexer      Indexer
	Logger       logger.Logger
}

// Settings carries the tunables for review links.
type Settings struct {
	ReviewBaseURL string
	TokenTTL      time.Duration
}

// Authority applies and validates application status transitions.
type Authority struct {
	apps     ApplicationStore
	tokens   TokenStore
	packages PackageStore
	gateway  PaymentGateway
	notifier Notifier
	indexer  Indexer
	logger   logger.Logger

	reviewBaseURL string
	tokenTTL      time.Duration

	now func() time.Time
}

const reworkWarnThreshold = 3

func New(deps Deps, settings Settings) *Authority {
	ttl := settings.TokenTTL
	if ttl == 0 {
		ttl = 7 * 24 * time.Hour
	}
	log := deps.Logger
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &Authority{
		apps:          deps.Applications,
		tokens:        deps.Tokens,
		packages:      deps.Packages,
		gateway:       deps.Gateway,
		notifier:      deps.Notifier,
		indexer:       deps.Indexer,
		logger:        log.WithFields(map[string]interface{}{"component": "workflow"}),
		reviewBaseURL: strings.TrimRight(settings.ReviewBaseURL, "/"),
		tokenTTL:      ttl,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// Submit creates an application for userID under packageID. Paid packages
// start in awaiting_payment; free ones go straight to pending.
func (a *Authority) Submit(ctx context.Context, userID, packageID string, formData map[string]interface{}) (*models.Application, error) {
	defer a.observe("submit")()

	pkg, err := a.packages.GetPackage(ctx, packageID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, apperrors.NewNotFoundError("package", packageID)
		}
		return nil, apperrors.NewInternalError(err)
	}
	if !pkg.Active {
		return nil, apperrors.NewValidationError(fmt.Sprintf("package %s is not available", packageID))
	}

	result, err := validation.ValidateFormData(pkg.FieldSchema, formData)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	if !result.Valid {
		details := make([]string, 0, len(result.Errors))
		for _, fe := range result.Errors {
			details = append(details, fmt.Sprintf("%s: %s", fe.Field, fe.Message))
		}
		a.count("submit", "validation_failed")
		return nil, apperrors.NewValidationError(strings.Join(details, "; "))
	}

	now := a.now()
	status := models.StatusPending
	if !pkg.Free() {
		status = models.StatusAwaitingPayment
	}

	app := &models.Application{
		ID:            uuid.New().String(),
		UserID:        userID,
		PackageID:     packageID,
		Status:        status,
		FormData:      formData,
		PaymentStatus: models.PaymentUnpaid,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := a.apps.Create(ctx, app); err != nil {
		a.count("submit", "error")
		return nil, apperrors.NewInternalError(err)
	}

	a.logger.Info("application submitted", map[string]interface{}{
		"applicationId": app.ID,
		"packageId":     packageID,
		"status":        string(app.Status),
	})
	a.count("submit", "success")
	a.index(app)
	return app, nil
}

// SendToDoctor mints a single-use, time-boxed review token and moves the
// application into doctor_review. Allowed only from pending or level3_work.
// The review link email is a non-blocking side effect.
func (a *Authority) SendToDoctor(ctx context.Context, applicationID string, actor *models.User, doctorEmail string) (*models.Application, string, error) {
	defer a.observe("send_to_doctor")()

	if err := Require(actor.Role, CapSendToDoctor); err != nil {
		return nil, "", err
	}

	app, err := a.getApplication(ctx, applicationID)
	if err != nil {
		return nil, "", err
	}
	if app.Status != models.StatusPending && app.Status != models.StatusLevel3Work {
		a.count("send_to_doctor", "invalid_transition")
		return nil, "", apperrors.NewInvalidTransitionError("sendToDoctor", string(app.Status))
	}

	now := a.now()
	token := &models.ReviewToken{
		Token:         newReviewToken(),
		ApplicationID: app.ID,
		CreatedAt:     now,
		ExpiresAt:     now.Add(a.tokenTTL),
	}
	if err := a.tokens.Create(ctx, token); err != nil {
		return nil, "", apperrors.NewInternalError(err)
	}

	prev := app.Status
	app.Status = models.StatusDoctorReview
	app.AssignedAgentID = nil
	app.UpdatedAt = now
	if err := a.apps.Update(ctx, app, prev, nil); err != nil {
		return nil, "", a.mapStoreErr("sendToDoctor", app.ID, err)
	}

	reviewURL := fmt.Sprintf("%s/review/%s", a.reviewBaseURL, token.Token)
	if doctorEmail != "" && a.notifier != nil {
		a.notifier.ReviewLinkIssued(app, doctorEmail, reviewURL)
	}

	a.logger.Info("application sent to doctor", map[string]interface{}{
		"applicationId": app.ID,
		"expiresAt":     token.ExpiresAt,
	})
	a.count("send_to_doctor", "success")
	a.index(app)
	return app, reviewURL, nil
}

// DoctorDecision consumes the one-time review token and records the
// external doctor's approval or denial. The token can be consumed exactly
// once; reuse fails with TokenConsumedError regardless of the first outcome.
func (a *Authority) DoctorDecision(ctx context.Context, tokenValue string, approved bool, notes string) (*models.Application, error) {
	defer a.observe("doctor_decision")()

	token, err := a.tokens.Get(ctx, tokenValue)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, apperrors.NewNotFoundError("review token", tokenValue)
		}
		return nil, apperrors.NewInternalError(err)
	}

	now := a.now()
	if token.Consumed() {
		return nil, apperrors.NewTokenConsumedError()
	}
	if token.Expired(now) {
		return nil, apperrors.NewTokenExpiredError()
	}

	// Conditional write settles concurrent uses: exactly one wins.
	if err := a.tokens.Consume(ctx, tokenValue, now); err != nil {
		if errors.Is(err, ErrTokenConflict) {
			return nil, apperrors.NewTokenConsumedError()
		}
		return nil, apperrors.NewInternalError(err)
	}

	app, err := a.getApplication(ctx, token.ApplicationID)
	if err != nil {
		return nil, err
	}
	if app.Status != models.StatusDoctorReview {
		a.count("doctor_decision", "invalid_transition")
		return nil, apperrors.NewInvalidTransitionError("doctorDecision", string(app.Status))
	}

	decision := models.StatusDoctorDenied
	final := models.StatusRejected
	if approved {
		decision = models.StatusDoctorApproved
		final = models.StatusCompleted
	}

	app.Status = decision
	app.Level2Notes = notes
	if approved {
		app.Level2ApprovedAt = &now
	}
	app.UpdatedAt = now
	if err := a.apps.Update(ctx, app, models.StatusDoctorReview, nil); err != nil {
		return nil, a.mapStoreErr("doctorDecision", app.ID, err)
	}

	app.Status = final
	if err := a.apps.Update(ctx, app, decision, nil); err != nil {
		return nil, a.mapStoreErr("doctorDecision", app.ID, err)
	}

	a.logger.Info("doctor decision recorded", map[string]interface{}{
		"applicationId": app.ID,
		"approved":      approved,
	})
	a.count("doctor_decision", "success")
	a.index(app)
	return app, nil
}

// ProcessPayment charges the gateway and advances awaiting_payment to
// level3_work. A gateway failure surfaces as PaymentError and leaves the
// record in its prior state; the engine never retries.
func (a *Authority) ProcessPayment(ctx context.Context, applicationID, paymentToken string) (*models.Application, error) {
	defer a.observe("process_payment")()

	app, err := a.getApplication(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	if app.Status != models.StatusAwaitingPayment {
		a.count("process_payment", "invalid_transition")
		return nil, apperrors.NewInvalidTransitionError("processPayment", string(app.Status))
	}

	pkg, err := a.packages.GetPackage(ctx, app.PackageID)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	txID, err := a.gateway.Charge(ctx, pkg.PriceCents, paymentToken)
	if err != nil {
		metrics.PaymentCharges.WithLabelValues("declined").Inc()
		a.count("process_payment", "payment_failed")
		return nil, apperrors.NewPaymentError(err)
	}
	metrics.PaymentCharges.WithLabelValues("success").Inc()

	app.PaymentStatus = models.PaymentPaid
	app.TransactionID = txID
	app.Status = models.StatusLevel3Work
	app.UpdatedAt = a.now()
	if err := a.apps.Update(ctx, app, models.StatusAwaitingPayment, nil); err != nil {
		return nil, a.mapStoreErr("processPayment", app.ID, err)
	}

	a.logger.Info("payment processed", map[string]interface{}{
		"applicationId": app.ID,
		"transactionId": txID,
	})
	a.count("process_payment", "success")
	a.index(app)
	return app, nil
}

// Claim assigns the application exclusively to agentID. Relies on the
// store's compare-and-swap; two simultaneous claims yield exactly one
// success. Losing a claim race is routine, not log-worthy.
func (a *Authority) Claim(ctx context.Context, applicationID string, actor *models.User) (*models.Application, error) {
	defer a.observe("claim")()

	if err := Require(actor.Role, CapClaim); err != nil {
		return nil, err
	}

	app, err := a.apps.Claim(ctx, applicationID, actor.ID)
	if err == nil {
		a.count("claim", "success")
		a.index(app)
		return app, nil
	}
	if errors.Is(err, ErrNotFound) {
		return nil, apperrors.NewNotFoundError("application", applicationID)
	}
	if !errors.Is(err, ErrClaimConflict) {
		return nil, apperrors.NewInternalError(err)
	}

	// Conflict: distinguish a lost race from a wrong-state call.
	current, getErr := a.getApplication(ctx, applicationID)
	if getErr != nil {
		return nil, getErr
	}
	if current.Status != models.StatusLevel3Work {
		a.count("claim", "invalid_transition")
		return nil, apperrors.NewInvalidTransitionError("claim", string(current.Status))
	}
	metrics.ClaimRacesTotal.Inc()
	a.count("claim", "lost_race")
	return nil, apperrors.NewAlreadyClaimedError(applicationID)
}

// Unclaim releases the claim and returns the application to the shared
// level3_work pool. Only the claim holder may release it.
func (a *Authority) Unclaim(ctx context.Context, applicationID string, actor *models.User) (*models.Application, error) {
	defer a.observe("unclaim")()

	if err := Require(actor.Role, CapClaim); err != nil {
		return nil, err
	}

	app, err := a.getApplication(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	if app.Status != models.StatusLevel3Work || !app.Claimed() || *app.AssignedAgentID != actor.ID {
		a.count("unclaim", "invalid_transition")
		return nil, apperrors.NewInvalidTransitionError("unclaim", string(app.Status))
	}

	holder := actor.ID
	app.AssignedAgentID = nil
	app.UpdatedAt = a.now()
	if err := a.apps.Update(ctx, app, models.StatusLevel3Work, &holder); err != nil {
		return nil, a.mapStoreErr("unclaim", app.ID, err)
	}

	a.logger.Info("claim released", map[string]interface{}{
		"applicationId": app.ID,
		"agentId":       actor.ID,
	})
	a.count("unclaim", "success")
	a.index(app)
	return app, nil
}

// CompleteWork records the agent's notes and hands the application to
// admin verification. Only the claim holder may complete; notes are
// mandatory.
func (a *Authority) CompleteWork(ctx context.Context, applicationID string, actor *models.User, notes string) (*models.Application, error) {
	defer a.observe("complete_work")()

	if err := Require(actor.Role, CapCompleteWork); err != nil {
		return nil, err
	}
	if strings.TrimSpace(notes) == "" {
		return nil, apperrors.NewValidationError("completion notes must not be empty")
	}

	app, err := a.getApplication(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	if app.Status != models.StatusLevel3Work || !app.Claimed() || *app.AssignedAgentID != actor.ID {
		a.count("complete_work", "invalid_transition")
		return nil, apperrors.NewInvalidTransitionError("completeWork", string(app.Status))
	}

	now := a.now()
	holder := actor.ID
	app.AssignedAgentID = nil
	app.Level3Notes = notes
	app.Level3CompletedAt = &now
	app.Level3CompletedBy = &holder
	app.Status = models.StatusPendingVerification
	app.UpdatedAt = now
	if err := a.apps.Update(ctx, app, models.StatusLevel3Work, &holder); err != nil {
		return nil, a.mapStoreErr("completeWork", app.ID, err)
	}

	a.logger.Info("agent work completed", map[string]interface{}{
		"applicationId": app.ID,
		"agentId":       actor.ID,
	})
	a.count("complete_work", "success")
	a.index(app)
	return app, nil
}

// Verify is the admin gate after agent work. Approval completes the
// application; denial sends it back to level3_work with the claim cleared
// (rework loop, uncapped — counted so runaway loops are observable).
func (a *Authority) Verify(ctx context.Context, applicationID string, actor *models.User, approved bool, notes string) (*models.Application, error) {
	defer a.observe("verify")()

	if err := Require(actor.Role, CapVerify); err != nil {
		return nil, err
	}

	app, err := a.getApplication(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	if app.Status != models.StatusPendingVerification {
		a.count("verify", "invalid_transition")
		return nil, apperrors.NewInvalidTransitionError("verify", string(app.Status))
	}

	now := a.now()
	app.VerifyNotes = notes
	app.UpdatedAt = now
	if approved {
		app.Status = models.StatusCompleted
	} else {
		app.Status = models.StatusLevel3Work
		app.AssignedAgentID = nil
		app.ReworkCount++
		metrics.ReworkCyclesTotal.Inc()
		if app.ReworkCount > reworkWarnThreshold {
			a.logger.Warn("application in repeated rework", map[string]interface{}{
				"applicationId": app.ID,
				"reworkCount":   app.ReworkCount,
			})
		}
	}
	if err := a.apps.Update(ctx, app, models.StatusPendingVerification, nil); err != nil {
		return nil, a.mapStoreErr("verify", app.ID, err)
	}

	a.logger.Info("verification recorded", map[string]interface{}{
		"applicationId": app.ID,
		"approved":      approved,
	})
	a.count("verify", "success")
	a.index(app)
	return app, nil
}

// ReviewContext resolves a review token to its application without
// consuming it. Expired or used tokens fail the same way a decision would,
// so the doctor sees the real state before attempting one.
func (a *Authority) ReviewContext(ctx context.Context, tokenValue string) (*models.Application, *models.ReviewToken, error) {
	token, err := a.tokens.Get(ctx, tokenValue)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil, apperrors.NewNotFoundError("review token", tokenValue)
		}
		return nil, nil, apperrors.NewInternalError(err)
	}
	if token.Consumed() {
		return nil, nil, apperrors.NewTokenConsumedError()
	}
	if token.Expired(a.now()) {
		return nil, nil, apperrors.NewTokenExpiredError()
	}

	app, err := a.getApplication(ctx, token.ApplicationID)
	if err != nil {
		return nil, nil, err
	}
	return app, token, nil
}

// Get returns the application without touching it.
func (a *Authority) Get(ctx context.Context, applicationID string) (*models.Application, error) {
	return a.getApplication(ctx, applicationID)
}

func (a *Authority) getApplication(ctx context.Context, id string) (*models.Application, error) {
	app, err := a.apps.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, apperrors.NewNotFoundError("application", id)
		}
		return nil, apperrors.NewInternalError(err)
	}
	return app, nil
}

func (a *Authority) mapStoreErr(op, id string, err error) error {
	if errors.Is(err, ErrStatusConflict) {
		a.count(op, "conflict")
		return apperrors.NewInvalidTransitionError(op, "concurrently changed")
	}
	if errors.Is(err, ErrNotFound) {
		return apperrors.NewNotFoundError("application", id)
	}
	return apperrors.NewInternalError(err)
}

func (a *Authority) index(app *models.Application) {
	if a.indexer != nil {
		a.indexer.ApplicationUpdated(app)
	}
}

func (a *Authority) count(op, outcome string) {
	metrics.TransitionsTotal.WithLabelValues(op, outcome).Inc()
}

func (a *Authority) observe(op string) func() {
	start := time.Now()
	return func() {
		metrics.TransitionDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	}
}

func newReviewToken() string {
	b := make([]byte, 24)
	if _, err := rand.Read(b); err != nil {
		// crypto/rand failure means the process is in no shape to mint
		// credentials at all.
		panic(err)
	}
	return hex.EncodeToString(b)
}
