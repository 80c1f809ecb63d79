// internal/api/admin.go
package api

import (
	"net/http"
	"time"

	apperrors "letter-service/internal/common/errors"
	"letter-service/internal/models"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type packageRequest struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	PriceCents  int                    `json:"priceCents"`
	FieldSchema map[string]interface{} `json:"fieldSchema"`
	Active      *bool                  `json:"active"`
}

type settingRequest struct {
	Value string `json:"value"`
}

func (s *Server) handleListPackages(w http.ResponseWriter, r *http.Request) {
	pkgs, err := s.packages.ListActive(r.Context())
	if err != nil {
		writeError(w, apperrors.NewInternalError(err))
		return
	}
	writeJSON(w, http.StatusOK, pkgs)
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := s.settings.All(r.Context())
	if err != nil {
		writeError(w, apperrors.NewInternalError(err))
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func (s *Server) handleCreatePackage(w http.ResponseWriter, r *http.Request) {
	var req packageRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Name == "" {
		writeError(w, apperrors.NewValidationError("name is required"))
		return
	}
	if req.PriceCents < 0 {
		writeError(w, apperrors.NewValidationError("priceCents must not be negative"))
		return
	}

	now := time.Now().UTC()
	active := true
	if req.Active != nil {
		active = *req.Active
	}
	pkg := &models.Package{
		ID:          uuid.New().String(),
		Name:        req.Name,
		Description: req.Description,
		PriceCents:  req.PriceCents,
		FieldSchema: req.FieldSchema,
		Active:      active,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.packages.Create(r.Context(), pkg); err != nil {
		writeError(w, apperrors.NewInternalError(err))
		return
	}
	writeJSON(w, http.StatusCreated, pkg)
}

func (s *Server) handleUpdatePackage(w http.ResponseWriter, r *http.Request) {
	var req packageRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	id := chi.URLParam(r, "id")

	pkg, err := s.packages.GetPackage(r.Context(), id)
	if err != nil {
		writeError(w, apperrors.NewNotFoundError("package", id))
		return
	}

	if req.Name != "" {
		pkg.Name = req.Name
	}
	pkg.Description = req.Description
	if req.PriceCents >= 0 {
		pkg.PriceCents = req.PriceCents
	}
	if req.FieldSchema != nil {
		pkg.FieldSchema = req.FieldSchema
	}
	if req.Active != nil {
		pkg.Active = *req.Active
	}
	pkg.UpdatedAt = time.Now().UTC()

	if err := s.packages.Update(r.Context(), pkg); err != nil {
		writeError(w, apperrors.NewInternalError(err))
		return
	}
	writeJSON(w, http.StatusOK, pkg)
}

func (s *Server) handleSetSetting(w http.ResponseWriter, r *http.Request) {
	var req settingRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	user := principal(r.Context())
	setting := &models.SiteSetting{
		Key:       chi.URLParam(r, "key"),
		Value:     req.Value,
		UpdatedBy: user.ID,
		UpdatedAt: time.Now().UTC(),
	}
	if err := s.settings.Set(r.Context(), setting); err != nil {
		writeError(w, apperrors.NewInternalError(err))
		return
	}
	writeJSON(w, http.StatusOK, setting)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if s.search == nil {
		writeError(w, apperrors.NewValidationError("search is not enabled"))
		return
	}
	query := r.URL.Query().Get("q")
	status := r.URL.Query().Get("status")

	results, err := s.search.Search(r.Context(), query, status, 25)
	if err != nil {
		writeError(w, apperrors.NewInternalError(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"results": results,
		"count":   len(results),
	})
}
