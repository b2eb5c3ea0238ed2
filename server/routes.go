package server

import "github.com/jrsteele09/codeassist-auth/authchain"

func (s *Server) initRoutes() {
	// Account Routes
	s.RegisterRouteFunc("POST "+RouteSignup, ChainMiddleware(s.Signup(), s.APIMiddleware()...))
	s.RegisterRouteFunc("POST "+RouteVerifyEmail, ChainMiddleware(s.VerifyEmail(), s.APIMiddleware()...))
	s.RegisterRouteFunc("POST "+RouteResendVerification, ChainMiddleware(s.ResendVerification(), s.APIMiddleware()...))
	s.RegisterRouteFunc("POST "+RouteLogin, ChainMiddleware(s.Login(), s.APIMiddleware()...))
	s.RegisterRouteFunc("POST "+RouteLogout, ChainMiddleware(s.Logout(), s.APIMiddleware()...))
	s.RegisterRouteFunc("POST "+RouteLogoutAll, ChainMiddleware(s.LogoutAll(), s.APIMiddleware(s.RequireAuthToken())...))

	// Session Routes
	s.RegisterRouteFunc("GET "+RouteSession, ChainMiddleware(s.Session(), s.APIMiddleware(s.RequireSession(authchain.CreateSession()))...))
	s.RegisterRouteFunc("GET "+RouteMe, ChainMiddleware(s.Me(), s.APIMiddleware(s.RequireSession())...))

	// Project Routes
	s.RegisterRouteFunc("POST "+RouteProjects, ChainMiddleware(s.OpenProject(), s.APIMiddleware(s.RequireSession())...))
	s.RegisterRouteFunc("DELETE "+RouteProjects, ChainMiddleware(s.CloseProject(), s.APIMiddleware(s.RequireSession(authchain.RequireProject()))...))
	s.RegisterRouteFunc("GET "+RouteCurrentProject, ChainMiddleware(s.CurrentProject(), s.APIMiddleware(s.RequireSession(authchain.RequireProject()))...))

	// Preflight requests for every API route are answered by the CORS middleware
	s.RegisterRouteFunc("OPTIONS /", ChainMiddleware(s.NoContent(), s.APIMiddleware()...))

	s.RegisterRouteFunc("GET "+RouteHealth, ChainMiddleware(s.Health(), s.APIMiddleware()...))
}
