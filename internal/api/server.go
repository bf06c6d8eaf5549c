// Package api serves the lending HTTP API.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/almogrr/projectTrainigLibary/internal/auth"
	"github.com/almogrr/projectTrainigLibary/internal/config"
	"github.com/almogrr/projectTrainigLibary/internal/http/response"
	"github.com/almogrr/projectTrainigLibary/internal/policy"
	"github.com/almogrr/projectTrainigLibary/internal/ratelimit"
	"github.com/almogrr/projectTrainigLibary/internal/service"
	"github.com/almogrr/projectTrainigLibary/internal/sse"
)

// Services groups the business services behind the API.
type Services struct {
	Instance *service.InstanceService
	Auth     *service.AuthService
	Book     *service.BookService
	Loan     *service.LoanService
	Policy   *policy.Table
}

// HealthCheck probes one dependency.
type HealthCheck func(ctx context.Context) error

// Options tunes the server.
type Options struct {
	Version            string
	CORSAllowedOrigins []string
	AuthLimiter        *ratelimit.KeyedRateLimiter // nil disables rate limiting on auth routes
	Upload             config.UploadConfig
	HealthChecks       map[string]HealthCheck
}

// Server holds dependencies for HTTP handlers.
type Server struct {
	services   *Services
	sseManager *sse.Manager
	opts       Options
	router     *chi.Mux
	api        huma.API
	logger     *slog.Logger
	limitAuth  func(http.Handler) http.Handler
}

// NewServer creates the HTTP server with all routes configured.
func NewServer(services *Services, sseManager *sse.Manager, opts Options, logger *slog.Logger) *Server {
	s := &Server{
		services:   services,
		sseManager: sseManager,
		opts:       opts,
		router:     chi.NewRouter(),
		logger:     logger,
	}
	if opts.AuthLimiter != nil {
		s.limitAuth = ratelimit.Middleware(opts.AuthLimiter, logger, response.TooManyRequests)
	}

	s.setupMiddleware()

	humaConfig := huma.DefaultConfig("Library Lending API", opts.Version)
	humaConfig.Info.Description = "Catalog, loans and overdue tracking for a lending library."
	humaConfig.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"bearer": {
			Type:         "http",
			Scheme:       "bearer",
			BearerFormat: "PASETO",
		},
	}
	humaConfig.Transformers = append(humaConfig.Transformers, EnvelopeTransformer)
	s.api = humachi.New(s.router, humaConfig)
	RegisterErrorHandler()

	s.registerRoutes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// API exposes the huma API, mainly for tests and OpenAPI export.
func (s *Server) API() huma.API {
	return s.api
}

func (s *Server) setupMiddleware() {
	s.router.Use(requestID)
	s.router.Use(requestLogger(s.logger))
	s.router.Use(middleware.Recoverer)

	origins := s.opts.CORSAllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", requestIDHeader},
		ExposedHeaders:   []string{requestIDHeader, "Retry-After", "ETag"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	s.router.Use(authMiddleware(s.services.Auth))
}

func (s *Server) registerRoutes() {
	s.registerHealthRoutes()
	s.registerInstanceRoutes()
	s.registerAuthRoutes()
	s.registerUserRoutes()
	s.registerBookRoutes()
	s.registerCoverRoutes()
	s.registerLoanRoutes()
	s.registerPolicyRoutes()
	s.registerSearchRoutes()

	if s.sseManager != nil {
		s.router.Get("/api/v1/events", sse.NewHandler(s.sseManager, s.streamIdentity, s.logger).ServeHTTP)
	}
}

// rateLimited applies the auth limiter to a huma operation.
func (s *Server) rateLimited(ctx huma.Context, next func(huma.Context)) {
	if s.limitAuth == nil {
		next(ctx)
		return
	}
	r, w := humachi.Unwrap(ctx)
	s.limitAuth(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		next(ctx)
	})).ServeHTTP(w, r)
}

// streamIdentity authenticates an event stream. Browsers cannot set headers on
// EventSource, so an access_token query parameter is accepted as well.
func (s *Server) streamIdentity(r *http.Request) (string, bool, bool) {
	if identity, ok := IdentityFrom(r.Context()); ok {
		return identity.User.ID, identity.User.IsLibrarian(), true
	}
	token := r.URL.Query().Get("access_token")
	if token == "" {
		if t, ok := auth.BearerToken(r.Header.Get("Authorization")); ok {
			token = t
		}
	}
	if token == "" {
		return "", false, false
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	identity, err := s.services.Auth.Authenticate(ctx, token)
	if err != nil {
		return "", false, false
	}
	return identity.User.ID, identity.User.IsLibrarian(), true
}
