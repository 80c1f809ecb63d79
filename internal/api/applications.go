// internal/api/applications.go
package api

import (
	"net/http"

	apperrors "letter-service/internal/common/errors"
	"letter-service/internal/workflow"

	"github.com/go-chi/chi/v5"
)

type submitRequest struct {
	PackageID string                 `json:"packageId"`
	FormData  map[string]interface{} `json:"formData"`
}

type payRequest struct {
	PaymentToken string `json:"paymentToken"`
}

type notesRequest struct {
	Notes string `json:"notes"`
}

type decisionRequest struct {
	Approved bool   `json:"approved"`
	Notes    string `json:"notes"`
}

type sendToDoctorRequest struct {
	DoctorEmail string `json:"doctorEmail"`
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.PackageID == "" {
		writeError(w, apperrors.NewValidationError("packageId is required"))
		return
	}
	user := principal(r.Context())
	app, err := s.authority.Submit(r.Context(), user.ID, req.PackageID, req.FormData)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, app)
}

func (s *Server) handleGetApplication(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	user := principal(r.Context())

	app, err := s.authority.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if app.UserID != user.ID && !workflow.Allowed(user.Role, workflow.CapViewWorkQueue) {
		writeError(w, apperrors.NewForbiddenError(string(workflow.CapViewWorkQueue)))
		return
	}
	writeJSON(w, http.StatusOK, app)
}

func (s *Server) handleMyApplications(w http.ResponseWriter, r *http.Request) {
	user := principal(r.Context())
	apps, err := s.views.ForUser(r.Context(), user.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, apps)
}

func (s *Server) handlePay(w http.ResponseWriter, r *http.Request) {
	var req payRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.PaymentToken == "" {
		writeError(w, apperrors.NewValidationError("paymentToken is required"))
		return
	}
	id := chi.URLParam(r, "id")
	user := principal(r.Context())

	app, err := s.authority.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if app.UserID != user.ID {
		writeError(w, apperrors.NewForbiddenError("payment"))
		return
	}

	app, err = s.authority.ProcessPayment(r.Context(), id, req.PaymentToken)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, app)
}

func (s *Server) handleClaim(w http.ResponseWriter, r *http.Request) {
	app, err := s.authority.Claim(r.Context(), chi.URLParam(r, "id"), principal(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, app)
}

func (s *Server) handleUnclaim(w http.ResponseWriter, r *http.Request) {
	app, err := s.authority.Unclaim(r.Context(), chi.URLParam(r, "id"), principal(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, app)
}

func (s *Server) handleComplete(w http.ResponseWriter, r *http.Request) {
	var req notesRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	app, err := s.authority.CompleteWork(r.Context(), chi.URLParam(r, "id"), principal(r.Context()), req.Notes)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, app)
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	var req decisionRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	app, err := s.authority.Verify(r.Context(), chi.URLParam(r, "id"), principal(r.Context()), req.Approved, req.Notes)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, app)
}

func (s *Server) handleSendToDoctor(w http.ResponseWriter, r *http.Request) {
	var req sendToDoctorRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	app, reviewURL, err := s.authority.SendToDoctor(r.Context(), chi.URLParam(r, "id"), principal(r.Context()), req.DoctorEmail)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"application": app,
		"reviewUrl":   reviewURL,
	})
}

func (s *Server) handleQueueWaiting(w http.ResponseWriter, r *http.Request) {
	user := principal(r.Context())
	if err := workflow.Require(user.Role, workflow.CapViewWorkQueue); err != nil {
		writeError(w, err)
		return
	}
	apps, err := s.views.Waiting(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, apps)
}

func (s *Server) handleQueueMine(w http.ResponseWriter, r *http.Request) {
	user := principal(r.Context())
	if err := workflow.Require(user.Role, workflow.CapViewWorkQueue); err != nil {
		writeError(w, err)
		return
	}
	apps, err := s.views.InProgress(r.Context(), user.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, apps)
}

func (s *Server) handleQueueCompleted(w http.ResponseWriter, r *http.Request) {
	user := principal(r.Context())
	if err := workflow.Require(user.Role, workflow.CapViewWorkQueue); err != nil {
		writeError(w, err)
		return
	}
	apps, err := s.views.Completed(r.Context(), user.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, apps)
}

func (s *Server) handleQueuePendingVerification(w http.ResponseWriter, r *http.Request) {
	user := principal(r.Context())
	if err := workflow.Require(user.Role, workflow.CapVerify); err != nil {
		writeError(w, err)
		return
	}
	apps, err := s.views.PendingVerification(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, apps)
}
