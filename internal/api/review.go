// internal/api/review.go
package api

import (
	"net/http"
	"time"

	"letter-service/internal/models"

	"github.com/go-chi/chi/v5"
)

// reviewView is the redacted snapshot shown to the external doctor. Only
// the intake answers and status are exposed, never payment or assignment
// details.
type reviewView struct {
	ApplicationID string                 `json:"applicationId"`
	Status        models.Status          `json:"status"`
	FormData      map[string]interface{} `json:"formData"`
	ExpiresAt     time.Time              `json:"expiresAt"`
}

func (s *Server) handleReviewStatus(w http.ResponseWriter, r *http.Request) {
	app, token, err := s.authority.ReviewContext(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reviewView{
		ApplicationID: app.ID,
		Status:        app.Status,
		FormData:      app.FormData,
		ExpiresAt:     token.ExpiresAt,
	})
}

func (s *Server) handleReviewDecision(w http.ResponseWriter, r *http.Request) {
	var req decisionRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	app, err := s.authority.DoctorDecision(r.Context(), chi.URLParam(r, "token"), req.Approved, req.Notes)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"applicationId": app.ID,
		"status":        app.Status,
	})
}
