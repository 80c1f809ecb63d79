// internal/api/callqueue.go
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

type joinRequest struct {
	Phone string `json:"phone"`
}

func (s *Server) handleCallQueueJoin(w http.ResponseWriter, r *http.Request) {
	var req joinRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	user := principal(r.Context())
	entry, pos, err := s.callQueue.Join(r.Context(), user.ID, req.Phone)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"entry":    entry,
		"position": pos,
	})
}

func (s *Server) handleCallQueueLeave(w http.ResponseWriter, r *http.Request) {
	user := principal(r.Context())
	if err := s.callQueue.Leave(r.Context(), user.ID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleCallQueuePosition(w http.ResponseWriter, r *http.Request) {
	user := principal(r.Context())
	pos, err := s.callQueue.Position(r.Context(), user.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pos)
}

func (s *Server) handleCallQueueWaiting(w http.ResponseWriter, r *http.Request) {
	entries, err := s.callQueue.Waiting(r.Context(), principal(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleCallQueueClaim(w http.ResponseWriter, r *http.Request) {
	entry, err := s.callQueue.Claim(r.Context(), chi.URLParam(r, "id"), principal(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (s *Server) handleCallQueueStart(w http.ResponseWriter, r *http.Request) {
	entry, err := s.callQueue.StartCall(r.Context(), chi.URLParam(r, "id"), principal(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (s *Server) handleCallQueueEnd(w http.ResponseWriter, r *http.Request) {
	entry, err := s.callQueue.EndCall(r.Context(), chi.URLParam(r, "id"), principal(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}
