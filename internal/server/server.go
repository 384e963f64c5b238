package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/me/labflow/internal/auth"
	"github.com/me/labflow/internal/catalog"
	"github.com/me/labflow/internal/config"
	"github.com/me/labflow/internal/formula"
	"github.com/me/labflow/internal/store"
	"github.com/me/labflow/internal/ui"
)

// Version is reported by the health endpoint.
const Version = "0.1.0"

// Server is the LabFlow REST API server. It also mounts the web UI.
type Server struct {
	router    chi.Router
	logger    *slog.Logger
	config    config.ServerConfig
	startTime time.Time
	catalog   *catalog.Catalog
	store     store.Store
	accounts  *auth.Accounts
	sessions  *auth.SessionManager
	evaluator *formula.Evaluator
	ui        *ui.UI // nil when the UI is disabled
}

// Option configures optional Server behaviour.
type Option func(*Server)

// WithoutUI serves only the JSON API.
func WithoutUI() Option {
	return func(s *Server) {
		s.ui = nil
	}
}

// New creates a new Server with all routes registered.
func New(cfg config.ServerConfig, cat *catalog.Catalog, acc *auth.Accounts, logger *slog.Logger, opts ...Option) *Server {
	s := &Server{
		router:    chi.NewRouter(),
		logger:    logger.With("component", "server"),
		config:    cfg,
		startTime: time.Now(),
		catalog:   cat,
		store:     cat.Store(),
		accounts:  acc,
		sessions:  acc.Sessions(),
		evaluator: formula.NewEvaluator(cfg.FormulaTimeout),
	}
	s.ui = ui.New(cat, acc, logger, ui.Config{
		Secure:         cfg.SecureCookies,
		FormulaTimeout: cfg.FormulaTimeout,
	})
	for _, opt := range opts {
		opt(s)
	}

	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Handler returns the http.Handler for this server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() {
	r := s.router

	// Global middleware
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(s.logger))

	// UI routes (HTML)
	if s.ui != nil {
		s.ui.RegisterRoutes(r)
	}

	// API routes (JSON)
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(sessionMiddleware(s.sessions, s.logger))

		r.Get("/", s.handleDiscovery)
		r.Get("/health", s.handleHealth)

		// Auth
		r.Route("/auth", func(r chi.Router) {
			r.Post("/signup", s.handleSignup)
			r.Post("/login", s.handleLogin)
			r.With(requireUser).Post("/logout", s.handleLogout)
			r.With(requireUser).Get("/me", s.handleMe)
		})

		// Formula preview is stateless.
		r.With(requireUser).Post("/formula/evaluate", s.handleEvaluateFormula)

		// Catalog reads are public; writes need an admin.
		r.Route("/projects", func(r chi.Router) {
			r.Get("/", s.handleListProjects)
			r.With(requireAdmin).Post("/", s.handleCreateProject)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetProject)
				r.With(requireAdmin).Put("/", s.handleUpdateProject)
			})
		})

		r.Route("/workflows", func(r chi.Router) {
			r.Get("/", s.handleListWorkflows)
			r.With(requireAdmin).Post("/", s.handleCreateWorkflow)
			r.With(requireAdmin).Post("/graph/validate", s.handleValidateGraph)
			r.With(requireAdmin).Post("/import", s.handleImportWorkflow)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetWorkflow)
				r.Get("/assays", s.handleListWorkflowAssays)
				r.Get("/graph", s.handleGetWorkflowGraph)
				r.With(requireAdmin).Put("/", s.handleUpdateWorkflow)
				r.With(requireAdmin).Delete("/", s.handleDeleteWorkflow)
			})
		})

		r.Route("/assays", func(r chi.Router) {
			r.Get("/", s.handleListAssays)
			r.With(requireAdmin).Post("/", s.handleCreateAssay)
			r.With(requireAdmin).Post("/import", s.handleImportAssay)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetAssay)
				r.With(requireAdmin).Put("/", s.handleUpdateAssay)
				r.With(requireAdmin).Delete("/", s.handleDeleteAssay)
				r.Get("/quantities", s.handleAssayQuantities)
				r.Route("/steps", func(r chi.Router) {
					r.Get("/", s.handleListSteps)
					r.With(requireAdmin).Post("/", s.handleCreateStep)
				})
			})
		})

		r.Route("/steps/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetStep)
			r.With(requireAdmin).Put("/", s.handleUpdateStep)
			r.With(requireAdmin).Delete("/", s.handleDeleteStep)
		})

		// Runs belong to the signed-in user.
		r.Route("/runs", func(r chi.Router) {
			r.Use(requireUser)
			r.Get("/", s.handleListRuns)
			r.Post("/", s.handleStartRun)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetRun)
				r.Put("/", s.handleUpdateRun)
				r.Post("/advance", s.handleAdvanceRun)
				r.Post("/complete", s.handleCompleteRun)
				r.Post("/abandon", s.handleAbandonRun)
			})
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(requireAdmin)
			r.Get("/users", s.handleListUsers)
			r.Put("/users/{id}/role", s.handleSetUserRole)
		})
	})
}
