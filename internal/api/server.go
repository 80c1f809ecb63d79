// internal/api/server.go
// Package api exposes the service over HTTP. Handlers stay thin: decode,
// delegate to the domain services, map the error taxonomy onto statuses.
package api

import (
	"net/http"

	"letter-service/internal/account"
	"letter-service/internal/callqueue"
	"letter-service/internal/common/logger"
	"letter-service/internal/common/observability"
	"letter-service/internal/models"
	"letter-service/internal/search"
	"letter-service/internal/store"
	"letter-service/internal/workflow"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server holds the wired services behind the HTTP surface.
type Server struct {
	accounts  *account.Service
	authority *workflow.Authority
	views     *workflow.Views
	callQueue *callqueue.Service
	packages  *store.Packages
	settings  *store.Settings
	search    *search.Indexer
	obs       *observability.Observability
	logger    logger.Logger
}

// Deps bundles everything the HTTP layer needs.
type Deps struct {
	Accounts      *account.Service
	Authority     *workflow.Authority
	Views         *workflow.Views
	CallQueue     *callqueue.Service
	Packages      *store.Packages
	Settings      *store.Settings
	Search        *search.Indexer
	Observability *observability.Observability
	Logger        logger.Logger
}

func NewServer(deps Deps) *Server {
	log := deps.Logger
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &Server{
		accounts:  deps.Accounts,
		authority: deps.Authority,
		views:     deps.Views,
		callQueue: deps.CallQueue,
		packages:  deps.Packages,
		settings:  deps.Settings,
		search:    deps.Search,
		obs:       deps.Observability,
		logger:    log.WithFields(map[string]interface{}{"component": "api"}),
	}
}

// Router builds the route tree.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(s.instrument)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	// Doctor review links are accessed by external clinicians who have no
	// account; the single-use token is the only credential.
	r.Route("/review/{token}", func(r chi.Router) {
		r.Get("/", s.handleReviewStatus)
		r.Post("/", s.handleReviewDecision)
	})

	r.Route("/api", func(r chi.Router) {
		r.Post("/register", s.handleRegister)
		r.Post("/login", s.handleLogin)
		r.Get("/packages", s.handleListPackages)
		r.Get("/settings", s.handleGetSettings)

		r.Group(func(r chi.Router) {
			r.Use(s.requireSession)

			r.Post("/logout", s.handleLogout)

			r.Route("/applications", func(r chi.Router) {
				r.Post("/", s.handleSubmit)
				r.Get("/", s.handleMyApplications)
				r.Get("/{id}", s.handleGetApplication)
				r.Post("/{id}/pay", s.handlePay)
				r.Post("/{id}/claim", s.handleClaim)
				r.Post("/{id}/unclaim", s.handleUnclaim)
				r.Post("/{id}/complete", s.handleComplete)
				r.Post("/{id}/verify", s.handleVerify)
				r.Post("/{id}/send-to-doctor", s.handleSendToDoctor)
			})

			r.Route("/queue", func(r chi.Router) {
				r.Get("/waiting", s.handleQueueWaiting)
				r.Get("/mine", s.handleQueueMine)
				r.Get("/completed", s.handleQueueCompleted)
				r.Get("/pending-verification", s.handleQueuePendingVerification)
			})

			r.Route("/callqueue", func(r chi.Router) {
				r.Post("/join", s.handleCallQueueJoin)
				r.Post("/leave", s.handleCallQueueLeave)
				r.Get("/position", s.handleCallQueuePosition)
				r.Get("/waiting", s.handleCallQueueWaiting)
				r.Post("/{id}/claim", s.handleCallQueueClaim)
				r.Post("/{id}/start", s.handleCallQueueStart)
				r.Post("/{id}/end", s.handleCallQueueEnd)
			})

			r.Route("/admin", func(r chi.Router) {
				r.Use(s.requireRole(models.RoleAdmin))
				r.Post("/packages", s.handleCreatePackage)
				r.Put("/packages/{id}", s.handleUpdatePackage)
				r.Put("/settings/{key}", s.handleSetSetting)
				r.Get("/search", s.handleSearch)
			})
		})
	})

	return r
}
