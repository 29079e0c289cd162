package server

import (
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/jrsteele09/fittrack-server/csrf"
	"github.com/jrsteele09/fittrack-server/internal/metrics"
	"github.com/jrsteele09/fittrack-server/users"
)

func (s *Server) initRoutes() {
	s.router.Use(middleware.RequestID)
	// Forwarded client addresses are only honoured behind a trusted proxy
	if s.config.GetTrustProxyHeaders() {
		s.router.Use(middleware.RealIP)
	}
	s.router.Use(metrics.Middleware)
	// Cross-origin callers are only admitted when origins are configured
	if origins := s.config.GetAllowedOrigins().List(); len(origins) > 0 {
		s.router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   origins,
			AllowedMethods:   s.config.GetAllowedMethods(),
			AllowedHeaders:   s.config.GetAllowedHeaders(),
			ExposedHeaders:   []string{csrf.HeaderName},
			AllowCredentials: true,
			MaxAge:           86400,
		}))
	}
	s.router.NotFound(s.NotFoundHandler())

	// LOGIN
	s.RegisterRouteFunc("GET "+RouteLogin, ChainMiddleware(s.LoginPageHandler(), s.HTMLMiddleWare(s.EntryMiddleware()...)...))
	s.RegisterRouteFunc("GET "+RouteAdminLogin, ChainMiddleware(s.LoginPageHandler(), s.HTMLMiddleWare(s.EntryMiddleware()...)...))
	s.RegisterRouteFunc("POST "+RouteLogin, ChainMiddleware(s.LoginSubmissionHandler(false), s.HTMLMiddleWare(s.LoginMiddleware()...)...))
	s.RegisterRouteFunc("POST "+RouteAdminLogin, ChainMiddleware(s.LoginSubmissionHandler(true), s.HTMLMiddleWare(s.LoginMiddleware()...)...))
	s.RegisterRouteFunc("GET "+RouteRegister, ChainMiddleware(s.LoginPageHandler(), s.HTMLMiddleWare(s.EntryMiddleware()...)...))
	s.RegisterRouteFunc("POST "+RouteRegister, ChainMiddleware(s.RegisterHandler(), s.HTMLMiddleWare(s.LoginMiddleware()...)...))
	s.RegisterRouteFunc("POST "+RouteLogout, ChainMiddleware(s.LogoutHandler(), s.HTMLMiddleWare(s.EntryMiddleware()...)...))

	// Landing pages
	s.RegisterRouteFunc("GET "+RouteUserHome, ChainMiddleware(s.UserHomeHandler(), s.HTMLMiddleWare(s.TrustMiddleware(s.RequireRole(users.RoleUser))...)...))
	s.RegisterRouteFunc("GET "+RouteAdminHome, ChainMiddleware(s.AdminDataHandler(), s.HTMLMiddleWare(s.TrustMiddleware(s.RequireRole(users.RoleAdmin))...)...))

	// API routes
	s.RegisterRouteFunc("GET "+RouteAPISession, ChainMiddleware(s.SessionInfoHandler(), s.APIMiddleware(s.TrustMiddleware()...)...))

	// Admin routes
	adminOnly := s.HTMLMiddleWare(s.TrustMiddleware(s.RequireRole(users.RoleAdmin))...)
	s.RegisterRouteFunc("GET "+RouteAdminData, ChainMiddleware(s.AdminDataHandler(), adminOnly...))
	s.RegisterRouteFunc("POST "+RouteAdminArchiveUser, ChainMiddleware(s.AdminArchiveUserHandler(), adminOnly...))
	s.RegisterRouteFunc("POST "+RouteAdminRestoreUser, ChainMiddleware(s.AdminRestoreUserHandler(), adminOnly...))
	s.RegisterRouteFunc("POST "+RouteAdminDeleteUser, ChainMiddleware(s.AdminDeleteUserHandler(), adminOnly...))
	s.RegisterRouteFunc("POST "+RouteAdminChangeRole, ChainMiddleware(s.AdminChangeRoleHandler(), adminOnly...))

	// Operational routes
	s.RegisterRouteHandler("GET "+RouteMetrics, metrics.Handler())
	s.RegisterRouteFunc("GET "+RouteHealth, ChainMiddleware(s.HealthHandler(), s.APIMiddleware()...))
}

// TrustMiddleware is the per-request trust chain: load the session, enforce CSRF on state-changing
// methods, re-check the session against the account, then any route-specific checks.
func (s *Server) TrustMiddleware(mw ...func(http.HandlerFunc) http.HandlerFunc) []func(http.HandlerFunc) http.HandlerFunc {
	chain := []func(http.HandlerFunc) http.HandlerFunc{
		s.SessionMiddleware,
		s.CSRFMiddleware,
		s.GuardMiddleware,
	}
	return append(chain, mw...)
}

// EntryMiddleware is the trust chain for the pages a rejected caller lands on: a stale session is
// cleared but does not block the request.
func (s *Server) EntryMiddleware() []func(http.HandlerFunc) http.HandlerFunc {
	return []func(http.HandlerFunc) http.HandlerFunc{
		s.SessionMiddleware,
		s.SoftGuardMiddleware,
		s.CSRFMiddleware,
	}
}

// LoginMiddleware is the entry chain for credential submissions, throttled per client
func (s *Server) LoginMiddleware() []func(http.HandlerFunc) http.HandlerFunc {
	return append([]func(http.HandlerFunc) http.HandlerFunc{s.RateLimitMiddleware}, s.EntryMiddleware()...)
}
