// Package authchain authorizes a request by walking its credentials from the auth token to the
// session token and, for project scoped operations, to the project token.
package authchain

import (
	"context"

	apperrors "github.com/jrsteele09/codeassist-auth/internal/errors"
	"github.com/jrsteele09/codeassist-auth/sessions"
	"github.com/jrsteele09/codeassist-auth/token"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Credentials are the opaque token values presented with a request. Empty means absent.
type Credentials struct {
	AuthToken    string
	SessionToken string
	ProjectToken string
}

// Identity is the resolved principal of a fully validated chain.
type Identity struct {
	UserID         string
	AuthToken      string
	SessionToken   string
	ProjectToken   string                // empty unless the project stage ran
	Project        *token.ProjectPayload // nil unless the project stage ran
	SessionCreated bool                  // the session was opened by this validation
}

type validateOptions struct {
	requireProject bool
	createSession  bool
	strictAuthLink bool
}

// Option adjusts a single validation.
type Option func(*validateOptions)

// RequireProject marks the operation as project scoped and runs the project stage. Without it
// a presented project token is ignored.
func RequireProject() Option {
	return func(o *validateOptions) {
		o.requireProject = true
	}
}

// CreateSession opens a session bound to the auth token when the presented session token is
// empty or unknown, instead of rejecting the request.
func CreateSession() Option {
	return func(o *validateOptions) {
		o.createSession = true
	}
}

// StrictAuthLink requires the session to have been established with the exact auth token
// presented, not merely by the same user.
func StrictAuthLink() Option {
	return func(o *validateOptions) {
		o.strictAuthLink = true
	}
}

// Validator evaluates credential chains. It is stateless and safe for concurrent use.
type Validator struct {
	sessions *sessions.Manager
	log      zerolog.Logger
}

// ValidatorOption defines a function type to modify the Validator instance.
type ValidatorOption func(*Validator)

func WithLogger(logger zerolog.Logger) ValidatorOption {
	return func(v *Validator) {
		v.log = logger
	}
}

func NewValidator(manager *sessions.Manager, options ...ValidatorOption) (*Validator, error) {
	if manager == nil {
		return nil, errors.New("[NewValidator] session manager is required")
	}
	v := &Validator{
		sessions: manager,
		log:      zerolog.Nop(),
	}
	for _, opt := range options {
		opt(v)
	}
	return v, nil
}

// Validate resolves the chain, stopping at the first invalid link. A failed link returns a
// *Rejection; any other error is an infrastructure failure and must not be reported to the
// caller as a credential problem.
//
// The session lookup does not renew the session. Its sliding renewal is applied only once the
// whole chain has succeeded, so failed attempts never extend a session.
func (v *Validator) Validate(ctx context.Context, creds Credentials, options ...Option) (*Identity, error) {
	var opts validateOptions
	for _, opt := range options {
		opt(&opts)
	}

	auth, err := v.authStage(ctx, creds.AuthToken)
	if err != nil {
		return nil, err
	}

	identity := &Identity{UserID: auth.UserID, AuthToken: creds.AuthToken}
	session, err := v.sessionStage(ctx, creds, auth, opts, identity)
	if err != nil {
		return nil, err
	}

	if opts.requireProject {
		if err := v.projectStage(ctx, creds.ProjectToken, session, identity); err != nil {
			return nil, err
		}
	}

	if !identity.SessionCreated {
		if err := v.sessions.TouchSession(ctx, identity.SessionToken); err != nil {
			return nil, errors.Wrap(err, "[Validator.Validate] renew session")
		}
	}
	return identity, nil
}

func (v *Validator) authStage(ctx context.Context, authToken string) (*token.AuthPayload, error) {
	auth, err := v.sessions.GetAuthToken(ctx, authToken)
	switch {
	case errors.Is(err, apperrors.ErrAuthTokenNotFound):
		return nil, reject(InvalidOrExpiredAuthToken)
	case err != nil:
		return nil, errors.Wrap(err, "[Validator.authStage]")
	}
	return auth, nil
}

func (v *Validator) sessionStage(ctx context.Context, creds Credentials, auth *token.AuthPayload, opts validateOptions, identity *Identity) (*token.SessionPayload, error) {
	session, err := v.sessions.PeekSession(ctx, creds.SessionToken)
	switch {
	case errors.Is(err, apperrors.ErrSessionNotFound):
		if !opts.createSession {
			return nil, reject(InvalidOrExpiredSessionToken)
		}
		return v.establishSession(ctx, creds.AuthToken, auth, identity)
	case err != nil:
		return nil, errors.Wrap(err, "[Validator.sessionStage]")
	}

	if !v.sessionMatches(session, creds.AuthToken, auth, opts) {
		return nil, reject(InvalidOrExpiredSessionToken)
	}
	identity.SessionToken = creds.SessionToken
	return session, nil
}

// sessionMatches checks the session's recorded auth token. A session without one cannot be
// trusted. Otherwise the session must belong to the presenting principal.
func (v *Validator) sessionMatches(session *token.SessionPayload, authToken string, auth *token.AuthPayload, opts validateOptions) bool {
	if session.AuthToken == "" {
		return false
	}
	if session.AuthToken == authToken {
		return true
	}
	if opts.strictAuthLink {
		return false
	}
	return session.UserID != "" && session.UserID == auth.UserID
}

func (v *Validator) establishSession(ctx context.Context, authToken string, auth *token.AuthPayload, identity *Identity) (*token.SessionPayload, error) {
	sessionToken, session, created, err := v.sessions.EnsureSession(ctx, authToken, auth)
	switch {
	case errors.Is(err, apperrors.ErrAuthTokenNotFound):
		return nil, reject(InvalidOrExpiredAuthToken)
	case err != nil:
		return nil, errors.Wrap(err, "[Validator.establishSession]")
	}
	identity.SessionToken = sessionToken
	identity.SessionCreated = created
	return session, nil
}

func (v *Validator) projectStage(ctx context.Context, projectToken string, session *token.SessionPayload, identity *Identity) error {
	project, err := v.sessions.GetProject(ctx, projectToken)
	switch {
	case errors.Is(err, apperrors.ErrProjectNotFound):
		if session.HasProject(projectToken) {
			v.log.Warn().Msg("session lists a project token missing from the store")
		}
		return reject(InvalidOrExpiredProjectToken)
	case err != nil:
		return errors.Wrap(err, "[Validator.projectStage]")
	}

	if !session.HasProject(projectToken) {
		return reject(InvalidOrExpiredProjectToken)
	}
	identity.ProjectToken = projectToken
	identity.Project = project
	return nil
}
