// internal/api/respond.go
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	apperrors "letter-service/internal/common/errors"
)

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// writeError maps the domain error taxonomy onto HTTP statuses. Anything
// outside the taxonomy is reported as a 500 with a generic body so internal
// details never leak to clients.
func writeError(w http.ResponseWriter, err error) {
	status := apperrors.HTTPStatus(err)

	var domainErr *apperrors.DomainError
	if errors.As(err, &domainErr) {
		writeJSON(w, status, errorBody{
			Code:    string(domainErr.Code),
			Message: domainErr.Message,
			Details: domainErr.Details,
		})
		return
	}

	writeJSON(w, http.StatusInternalServerError, errorBody{
		Code:    string(apperrors.ErrCodeInternal),
		Message: "internal error",
	})
}

func decodeBody(r *http.Request, dst interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return apperrors.NewValidationError("invalid JSON body")
	}
	return nil
}
