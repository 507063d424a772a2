package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/m-mizutani/komainu/pkg/domain/interfaces"
	"github.com/m-mizutani/komainu/pkg/service/auth"
	"github.com/m-mizutani/komainu/pkg/utils/safe"
)

// Server exposes the call-safety pipeline over HTTP
type Server struct {
	router   *chi.Mux
	call     interfaces.CallUseCases
	registry interfaces.RegistryUseCases
	metrics  interfaces.MetricsUseCases
	tokens   *auth.TokenService
}

// Options is a functional option for Server
type Options func(*Server)

// WithCallUseCases sets the safe-call orchestrator
func WithCallUseCases(uc interfaces.CallUseCases) Options {
	return func(s *Server) {
		s.call = uc
	}
}

// WithRegistryUseCases sets the prompt registry use cases
func WithRegistryUseCases(uc interfaces.RegistryUseCases) Options {
	return func(s *Server) {
		s.registry = uc
	}
}

// WithMetricsUseCases sets the metrics use cases
func WithMetricsUseCases(uc interfaces.MetricsUseCases) Options {
	return func(s *Server) {
		s.metrics = uc
	}
}

// WithTokenService enables bearer token auth on /api routes
func WithTokenService(tokens *auth.TokenService) Options {
	return func(s *Server) {
		s.tokens = tokens
	}
}

// New creates a new HTTP server
func New(opts ...Options) *Server {
	r := chi.NewRouter()

	s := &Server{
		router: r,
	}
	for _, opt := range opts {
		opt(s)
	}

	// Apply middleware
	r.Use(loggingMiddleware)
	r.Use(panicRecoveryMiddleware)

	// Health check endpoint, open for probes
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		safe.Write(r.Context(), w, []byte("OK"))
	})

	r.Route("/api/v1", func(r chi.Router) {
		if s.tokens != nil {
			r.Use(bearerAuthMiddleware(s.tokens))
		}

		r.Post("/call", s.handleCall)

		r.Route("/prompts", func(r chi.Router) {
			r.Get("/", s.handleListPrompts)
			r.Post("/", s.handleRegisterPrompt)
			r.Get("/export", s.handleExportPrompts)
			r.Post("/import", s.handleImportPrompts)

			r.Route("/{promptID}", func(r chi.Router) {
				r.Get("/", s.handleGetPrompt)
				r.Get("/versions", s.handleListVersions)
				r.Post("/versions/{version}/deprecate", s.handleDeprecate)
				r.Delete("/versions/{version}", s.handleRetire)
			})
		})

		r.Route("/metrics", func(r chi.Router) {
			r.Get("/", s.handleGetMetrics)
			r.Get("/export", s.handleExportMetrics)
			r.Get("/health", s.handleCheckHealth)
			r.Get("/report", s.handleReport)
		})
	})

	return s
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
