package server

// Route path constants
const (
	// Account Routes
	RouteSignup             = "/auth/signup"
	RouteVerifyEmail        = "/auth/verify-email"
	RouteResendVerification = "/auth/verify-email/resend"
	RouteLogin              = "/auth/login"
	RouteLogout             = "/auth/logout"
	RouteLogoutAll          = "/auth/logout-all"

	// Session Routes
	RouteSession = "/session"
	RouteMe      = "/me"

	// Project Routes
	RouteProjects       = "/projects"
	RouteCurrentProject = "/projects/current"

	RouteHealth = "/healthz"
)
