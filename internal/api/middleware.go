// internal/api/middleware.go
package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	apperrors "letter-service/internal/common/errors"
	"letter-service/internal/models"

	"github.com/go-chi/chi/v5"
)

type contextKey string

const principalKey contextKey = "principal"

// principal returns the authenticated user placed on the context by
// requireSession, or nil on unauthenticated routes.
func principal(ctx context.Context) *models.User {
	user, _ := ctx.Value(principalKey).(*models.User)
	return user
}

// requireSession resolves the bearer token to a user and rejects the
// request when the session is missing or stale.
func (s *Server) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		user, err := s.accounts.Authenticate(r.Context(), token)
		if err != nil {
			writeError(w, err)
			return
		}
		ctx := context.WithValue(r.Context(), principalKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	if cookie, err := r.Cookie("session"); err == nil {
		return cookie.Value
	}
	return ""
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

// instrument logs every request and feeds the request metrics. The route
// pattern, not the raw path, is used as the metric label to keep
// cardinality bounded.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		route := chi.RouteContext(r.Context()).RoutePattern()
		if route == "" {
			route = "unmatched"
		}
		duration := time.Since(start)

		if s.obs != nil {
			s.obs.RecordRequest(r.Context(), r.Method, route, rec.status, duration)
		}
		s.logger.Info("request served", map[string]interface{}{
			"method":   r.Method,
			"route":    route,
			"status":   rec.status,
			"duration": duration.String(),
		})
	})
}

// requireRole gates a subtree on a static role check. Finer-grained
// authorization happens in the services through the capability table.
func (s *Server) requireRole(roles ...models.Role) func(http.Handler) http.Handler {
	allowed := make(map[models.Role]bool, len(roles))
	for _, role := range roles {
		allowed[role] = true
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := principal(r.Context())
			if user == nil || !allowed[user.Role] {
				writeError(w, apperrors.NewForbiddenError("route"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
