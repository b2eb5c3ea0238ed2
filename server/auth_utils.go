package server

import (
	"net/http"
	"strings"

	"github.com/jrsteele09/codeassist-auth/authchain"
)

const (
	authTokenCookieName    = "auth_token"
	sessionTokenCookieName = "session_token"
	projectTokenCookieName = "project_token"

	authTokenHeader    = "X-Auth-Token"
	sessionTokenHeader = "X-Session-Token"
	projectTokenHeader = "X-Project-Token"
)

// tokenFromRequest reads a token from its cookie, falling back to the header used by
// non-browser clients.
func tokenFromRequest(r *http.Request, cookieName, header string) string {
	if cookie, err := r.Cookie(cookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	return strings.TrimSpace(r.Header.Get(header))
}

func credentialsFromRequest(r *http.Request) authchain.Credentials {
	return authchain.Credentials{
		AuthToken:    tokenFromRequest(r, authTokenCookieName, authTokenHeader),
		SessionToken: tokenFromRequest(r, sessionTokenCookieName, sessionTokenHeader),
		ProjectToken: tokenFromRequest(r, projectTokenCookieName, projectTokenHeader),
	}
}

// setTokenCookie writes a token cookie. A maxAge of zero leaves it a browser session cookie.
func (s *Server) setTokenCookie(w http.ResponseWriter, name, value string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.config.GetSecureCookies(),
		SameSite: http.SameSiteLaxMode,
		MaxAge:   maxAge,
	})
}

func (s *Server) clearTokenCookie(w http.ResponseWriter, name string) {
	s.setTokenCookie(w, name, "", -1)
}

func (s *Server) SetAuthTokenCookie(w http.ResponseWriter, authToken string) {
	s.setTokenCookie(w, authTokenCookieName, authToken, int(s.config.GetAuthTokenTTL().Seconds()))
}

// SetSessionTokenCookie has no max age. The session slides server side.
func (s *Server) SetSessionTokenCookie(w http.ResponseWriter, sessionToken string) {
	s.setTokenCookie(w, sessionTokenCookieName, sessionToken, 0)
}

func (s *Server) SetProjectTokenCookie(w http.ResponseWriter, projectToken string) {
	s.setTokenCookie(w, projectTokenCookieName, projectToken, 0)
}

func (s *Server) clearAllTokenCookies(w http.ResponseWriter) {
	s.clearTokenCookie(w, authTokenCookieName)
	s.clearTokenCookie(w, sessionTokenCookieName)
	s.clearTokenCookie(w, projectTokenCookieName)
}
