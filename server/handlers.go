package server

import (
	"encoding/json"
	"net/http"
	"time"

	apperrors "github.com/jrsteele09/codeassist-auth/internal/errors"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type verifyEmailRequest struct {
	Token string `json:"token"`
}

type resendVerificationRequest struct {
	Email string `json:"email"`
}

type openProjectRequest struct {
	ProjectID string         `json:"project_id"`
	Data      map[string]any `json:"data"`
}

type userResponse struct {
	UserID      string     `json:"user_id"`
	Email       string     `json:"email"`
	DisplayName string     `json:"display_name,omitempty"`
	Verified    bool       `json:"verified"`
	LastLogin   *time.Time `json:"last_login,omitempty"`
}

type loginResponse struct {
	UserID    string `json:"user_id"`
	AuthToken string `json:"auth_token"`
}

type sessionResponse struct {
	UserID       string `json:"user_id"`
	SessionToken string `json:"session_token"`
	Created      bool   `json:"created"`
}

type projectResponse struct {
	ProjectID    string         `json:"project_id"`
	ProjectToken string         `json:"project_token"`
	Data         map[string]any `json:"data,omitempty"`
}

type logoutAllResponse struct {
	Sessions   int `json:"sessions"`
	AuthTokens int `json:"auth_tokens"`
}

func decodeBody(w http.ResponseWriter, r *http.Request, out any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(out); err != nil {
		writeMessage(w, http.StatusBadRequest, msgInvalidBody)
		return false
	}
	return true
}

// Signup registers a new, unverified user
func (s *Server) Signup() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req credentialsRequest
		if !decodeBody(w, r, &req) {
			return
		}

		user, _, err := s.accounts.Signup(r.Context(), req.Email, req.Password)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, userResponse{UserID: user.ID, Email: user.Email, Verified: user.Verified})
	}
}

// VerifyEmail consumes an email verification token
func (s *Server) VerifyEmail() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req verifyEmailRequest
		if !decodeBody(w, r, &req) {
			return
		}

		user, err := s.accounts.VerifyEmail(r.Context(), req.Token)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, userResponse{UserID: user.ID, Email: user.Email, Verified: user.Verified})
	}
}

// ResendVerification issues a fresh verification token. The response does not reveal whether
// the email is registered.
func (s *Server) ResendVerification() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req resendVerificationRequest
		if !decodeBody(w, r, &req) {
			return
		}

		_, err := s.accounts.ResendVerification(r.Context(), req.Email)
		switch {
		case err == nil,
			apperrors.Is(err, apperrors.ErrUserNotFound),
			apperrors.Is(err, apperrors.ErrInvalidInput):
			writeMessage(w, http.StatusAccepted, "if the account exists and is unverified a new email has been sent")
		default:
			s.writeError(w, r, err)
		}
	}
}

// Login exchanges credentials for an auth token, returned in the body and the auth cookie
func (s *Server) Login() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req credentialsRequest
		if !decodeBody(w, r, &req) {
			return
		}

		authToken, user, err := s.accounts.Login(r.Context(), req.Email, req.Password)
		if err != nil {
			s.writeError(w, r, err)
			return
		}

		s.SetAuthTokenCookie(w, authToken)
		writeJSON(w, http.StatusOK, loginResponse{UserID: user.ID, AuthToken: authToken})
	}
}

// Logout ends the presented auth token and its session. Logging out twice is not an error.
func (s *Server) Logout() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authToken := tokenFromRequest(r, authTokenCookieName, authTokenHeader)
		if err := s.accounts.Logout(r.Context(), authToken); err != nil {
			s.writeError(w, r, err)
			return
		}
		s.clearAllTokenCookies(w)
		w.WriteHeader(http.StatusNoContent)
	}
}

// LogoutAll invalidates every session and auth token of the authenticated user
func (s *Server) LogoutAll() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := UserIDFromContext(r.Context())
		if !ok {
			writeMessage(w, http.StatusInternalServerError, msgInternal)
			return
		}

		result, err := s.accounts.LogoutAll(r.Context(), userID)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		s.clearAllTokenCookies(w)
		writeJSON(w, http.StatusOK, logoutAllResponse{Sessions: result.Sessions, AuthTokens: result.AuthTokens})
	}
}

// Session returns the session bound to the auth token, opening one when needed
func (s *Server) Session() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity, ok := IdentityFromContext(r.Context())
		if !ok {
			writeMessage(w, http.StatusInternalServerError, msgInternal)
			return
		}
		writeJSON(w, http.StatusOK, sessionResponse{
			UserID:       identity.UserID,
			SessionToken: identity.SessionToken,
			Created:      identity.SessionCreated,
		})
	}
}

// Me returns the authorized user's profile
func (s *Server) Me() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := UserIDFromContext(r.Context())
		if !ok {
			writeMessage(w, http.StatusInternalServerError, msgInternal)
			return
		}

		user, err := s.accounts.User(r.Context(), userID)
		if err != nil {
			s.writeError(w, r, err)
			return
		}

		resp := userResponse{
			UserID:      user.ID,
			Email:       user.Email,
			DisplayName: user.DisplayName,
			Verified:    user.Verified,
		}
		if !user.LastLogin.IsZero() {
			resp.LastLogin = &user.LastLogin
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// OpenProject opens a project in the current session
func (s *Server) OpenProject() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity, ok := IdentityFromContext(r.Context())
		if !ok {
			writeMessage(w, http.StatusInternalServerError, msgInternal)
			return
		}

		var req openProjectRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if req.ProjectID == "" {
			writeMessage(w, http.StatusBadRequest, "project_id is required")
			return
		}

		projectToken, err := s.sessions.OpenProject(r.Context(), identity.SessionToken, req.ProjectID, req.Data)
		if err != nil {
			s.writeError(w, r, err)
			return
		}

		s.SetProjectTokenCookie(w, projectToken)
		writeJSON(w, http.StatusCreated, projectResponse{ProjectID: req.ProjectID, ProjectToken: projectToken, Data: req.Data})
	}
}

// CloseProject closes the project named by the request's project token
func (s *Server) CloseProject() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity, ok := IdentityFromContext(r.Context())
		if !ok {
			writeMessage(w, http.StatusInternalServerError, msgInternal)
			return
		}

		if err := s.sessions.CloseProject(r.Context(), identity.SessionToken, identity.ProjectToken); err != nil {
			s.writeError(w, r, err)
			return
		}
		s.clearTokenCookie(w, projectTokenCookieName)
		w.WriteHeader(http.StatusNoContent)
	}
}

// CurrentProject returns the project scoped to the request
func (s *Server) CurrentProject() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity, ok := IdentityFromContext(r.Context())
		if !ok || identity.Project == nil {
			writeMessage(w, http.StatusInternalServerError, msgInternal)
			return
		}
		writeJSON(w, http.StatusOK, projectResponse{
			ProjectID:    identity.Project.ProjectID,
			ProjectToken: identity.ProjectToken,
			Data:         identity.Project.Data,
		})
	}
}

// Health reports whether the token store is reachable
func (s *Server) Health() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.store.Ping(r.Context()); err != nil {
			s.log.Warn().Err(err).Msg("health check failed")
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

func (s *Server) NoContent() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}
}
