package server

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/fittrack-server/admin"
	"github.com/jrsteele09/fittrack-server/auth"
	"github.com/jrsteele09/fittrack-server/internal/config"
	"github.com/jrsteele09/fittrack-server/store"
)

type Server struct {
	env      string // Environment (e.g., "DEV", "PROD")
	router   chi.Router
	routes   []string
	config   config.Config
	store    store.Store
	auth     *auth.Service
	admin    *admin.Service
	validate *validator.Validate
	limiter  *loginLimiter

	bootstrapOut io.Writer // where a generated admin password is printed
}

// Option adjusts how the server builds its services
type Option func(*options)

type options struct {
	authOptions  []auth.ServiceOption
	bootstrapOut io.Writer
}

// WithAuthOptions passes options through to the trust-layer service (e.g. auth.WithNowTime)
func WithAuthOptions(opts ...auth.ServiceOption) Option {
	return func(o *options) {
		o.authOptions = append(o.authOptions, opts...)
	}
}

// WithBootstrapOutput redirects the one-time admin credential printout (stdout by default)
func WithBootstrapOutput(out io.Writer) Option {
	return func(o *options) {
		o.bootstrapOut = out
	}
}

func New(cfg config.Config, st store.Store, opts ...Option) (*Server, error) {
	o := &options{bootstrapOut: os.Stdout}
	for _, opt := range opts {
		opt(o)
	}

	authService, err := auth.NewService(st, auth.SettingsFromConfig(cfg), o.authOptions...)
	if err != nil {
		return nil, fmt.Errorf("[Server New] failed to create auth service: %w", err)
	}
	adminService, err := admin.NewService(st, authService)
	if err != nil {
		return nil, fmt.Errorf("[Server New] failed to create admin service: %w", err)
	}

	s := &Server{
		env:      cfg.GetEnv(),
		router:   chi.NewRouter(),
		config:   cfg,
		store:    st,
		auth:     authService,
		admin:    adminService,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		limiter:  newLoginLimiter(cfg.GetLoginRatePerMinute()),

		bootstrapOut: o.bootstrapOut,
	}

	// Bootstrap: ensure the administrator account exists
	if err := s.InitialiseSystem(context.Background()); err != nil {
		return nil, fmt.Errorf("[Server New] Failed to initialise the system: %w", err)
	}

	s.initRoutes()
	s.logRoutes()

	return s, nil
}

// Auth exposes the trust-layer service, used by the binary for session maintenance
func (s *Server) Auth() *auth.Service {
	return s.auth
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// RegisterRouteHandler registers handler for a "METHOD /path" pattern
func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	method, path, _ := strings.Cut(pattern, " ")
	s.routes = append(s.routes, pattern)
	s.router.Method(method, path, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler http.HandlerFunc) {
	s.RegisterRouteHandler(pattern, handler)
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return // Skip logging in non-development environments
	}
	for _, route := range s.routes {
		method, path, _ := strings.Cut(route, " ")
		log.Debug().Str("method", method).Str("path", path).Msg("route registered")
	}
}
