package server

// Route path constants
// All application routes are defined here to ensure consistency and prevent typos
const (
	// Login, Logout & Registration
	RouteLogin      = "/login"
	RouteAdminLogin = "/admin-login"
	RouteLogout     = "/logout"
	RouteRegister   = "/register"

	// Landing pages after a successful login
	RouteUserHome  = "/user"
	RouteAdminHome = "/admin"

	// API Routes
	RouteAPISession = "/api/session"

	// Admin Routes
	RouteAdminData        = "/admin/data"
	RouteAdminArchiveUser = "/admin/users/{id}/archive"
	RouteAdminRestoreUser = "/admin/users/{id}/restore"
	RouteAdminDeleteUser  = "/admin/users/{id}/delete"
	RouteAdminChangeRole  = "/admin/users/{id}/role"

	// Operational Routes
	RouteMetrics = "/metrics"
	RouteHealth  = "/healthz"
)

const sessionCookieName = "session_id"
