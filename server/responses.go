package server

import (
	"encoding/json"
	"net/http"

	"github.com/jrsteele09/codeassist-auth/authchain"
	apperrors "github.com/jrsteele09/codeassist-auth/internal/errors"
	"github.com/jrsteele09/codeassist-auth/kvstore"
)

const (
	contentTypeJSON = "application/json"

	msgInternal           = "internal server error"
	msgUnavailable        = "service temporarily unavailable"
	msgInvalidBody        = "invalid request body"
	msgInvalidCredentials = "invalid email or password"
)

type messageResponse struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, messageResponse{Message: message})
}

// statusFor maps an error onto the response status and the message safe to show the client.
// Rejected credentials never share a status with an unreachable store.
func statusFor(err error) (int, string) {
	if rejection, ok := authchain.AsRejection(err); ok {
		if rejection.Reason == authchain.InvalidOrExpiredProjectToken {
			return http.StatusForbidden, rejection.Error()
		}
		return http.StatusUnauthorized, rejection.Error()
	}

	switch {
	case apperrors.Is(err, kvstore.ErrUnavailable):
		return http.StatusServiceUnavailable, msgUnavailable
	case apperrors.Is(err, apperrors.ErrInvalidCredentials):
		return http.StatusUnauthorized, msgInvalidCredentials
	case apperrors.Is(err, apperrors.ErrAuthTokenNotFound):
		return http.StatusUnauthorized, (&authchain.Rejection{Reason: authchain.InvalidOrExpiredAuthToken}).Error()
	case apperrors.Is(err, apperrors.ErrSessionNotFound):
		return http.StatusUnauthorized, (&authchain.Rejection{Reason: authchain.InvalidOrExpiredSessionToken}).Error()
	case apperrors.Is(err, apperrors.ErrProjectNotFound):
		return http.StatusForbidden, (&authchain.Rejection{Reason: authchain.InvalidOrExpiredProjectToken}).Error()
	case apperrors.Is(err, apperrors.ErrUserBlocked):
		return http.StatusForbidden, "account is blocked"
	case apperrors.Is(err, apperrors.ErrUserNotVerified):
		return http.StatusForbidden, "email address is not verified"
	case apperrors.Is(err, apperrors.ErrUserExists):
		return http.StatusConflict, "an account with this email already exists"
	case apperrors.Is(err, apperrors.ErrInvalidVerificationToken):
		return http.StatusBadRequest, "invalid or expired verification token"
	case apperrors.Is(err, apperrors.ErrInvalidInput):
		return http.StatusBadRequest, "invalid input"
	}
	return http.StatusInternalServerError, msgInternal
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, message := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.log.Error().Err(err).Str("method", r.Method).Str("path", r.URL.Path).Msg("request failed")
	}
	writeMessage(w, status, message)
}
