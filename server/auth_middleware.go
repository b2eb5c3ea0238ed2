package server

import (
	"context"
	"net/http"

	"github.com/jrsteele09/codeassist-auth/authchain"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

const (
	// ContextKeyUserID stores the authenticated user ID
	ContextKeyUserID ContextKey = "user_id"
	// ContextKeyIdentity stores the validated *authchain.Identity
	ContextKeyIdentity ContextKey = "identity"
)

// UserIDFromContext returns the user id placed by RequireAuthToken or RequireSession.
func UserIDFromContext(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(ContextKeyUserID).(string)
	return userID, ok && userID != ""
}

// IdentityFromContext returns the identity placed by RequireSession.
func IdentityFromContext(ctx context.Context) (*authchain.Identity, bool) {
	identity, ok := ctx.Value(ContextKeyIdentity).(*authchain.Identity)
	return identity, ok && identity != nil
}

// RequireSession validates the request's credential chain with the given options. A session
// token that differs from the one presented, because it was just created or reused, is
// returned to the client in the session cookie, and a project cookie left from the previous
// session is cleared.
func (s *Server) RequireSession(options ...authchain.Option) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			creds := credentialsFromRequest(r)
			identity, err := s.chain.Validate(r.Context(), creds, options...)
			if err != nil {
				s.writeError(w, r, err)
				return
			}

			if identity.SessionToken != creds.SessionToken {
				s.SetSessionTokenCookie(w, identity.SessionToken)
				// a project token opened under the previous session can no longer be used
				if creds.ProjectToken != "" && identity.ProjectToken == "" {
					s.clearTokenCookie(w, projectTokenCookieName)
				}
			}

			ctx := context.WithValue(r.Context(), ContextKeyUserID, identity.UserID)
			ctx = context.WithValue(ctx, ContextKeyIdentity, identity)
			next(w, r.WithContext(ctx))
		}
	}
}

// RequireAuthToken validates only the auth token. Used for account wide operations that do
// not need a session.
func (s *Server) RequireAuthToken() func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			authToken := tokenFromRequest(r, authTokenCookieName, authTokenHeader)
			userID, err := s.sessions.GetUserIDByAuthToken(r.Context(), authToken)
			if err != nil {
				s.writeError(w, r, err)
				return
			}
			ctx := context.WithValue(r.Context(), ContextKeyUserID, userID)
			next(w, r.WithContext(ctx))
		}
	}
}
