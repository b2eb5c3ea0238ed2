// Package sessions binds users to auth tokens, auth tokens to sessions and sessions to the
// project tokens opened in them.
package sessions

import (
	"context"
	"encoding/json"
	"slices"

	apperrors "github.com/jrsteele09/codeassist-auth/internal/errors"
	"github.com/jrsteele09/codeassist-auth/token"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Manager is the session layer built on the token registry. It is safe for concurrent use;
// it keeps no state of its own.
type Manager struct {
	registry *token.Registry
	log      zerolog.Logger
}

// ManagerOption defines a function type to modify the Manager instance.
type ManagerOption func(*Manager)

func WithLogger(logger zerolog.Logger) ManagerOption {
	return func(m *Manager) {
		m.log = logger
	}
}

func NewManager(registry *token.Registry, options ...ManagerOption) (*Manager, error) {
	if registry == nil {
		return nil, errors.New("[NewManager] registry is required")
	}
	m := &Manager{
		registry: registry,
		log:      zerolog.Nop(),
	}
	for _, opt := range options {
		opt(m)
	}
	return m, nil
}

// Registry exposes the underlying token registry.
func (m *Manager) Registry() *token.Registry {
	return m.registry
}

// CreateAuthToken issues a new auth token for the user with the configured absolute lifetime.
func (m *Manager) CreateAuthToken(ctx context.Context, userID string) (string, error) {
	if userID == "" {
		return "", errors.Wrap(apperrors.ErrInvalidInput, "[Manager.CreateAuthToken] empty user id")
	}
	authToken := token.NewValue()
	if err := m.registry.Set(ctx, token.NamespaceAuth, authToken, token.AuthPayload{UserID: userID}, true); err != nil {
		return "", errors.Wrap(err, "[Manager.CreateAuthToken]")
	}
	return authToken, nil
}

// GetAuthToken resolves an auth token. Tokens without a user id are treated as absent.
func (m *Manager) GetAuthToken(ctx context.Context, authToken string) (*token.AuthPayload, error) {
	var auth token.AuthPayload
	found, err := m.registry.Get(ctx, token.NamespaceAuth, authToken, &auth)
	if err != nil {
		return nil, errors.Wrap(err, "[Manager.GetAuthToken]")
	}
	if !found || auth.UserID == "" {
		return nil, apperrors.ErrAuthTokenNotFound
	}
	return &auth, nil
}

func (m *Manager) GetUserIDByAuthToken(ctx context.Context, authToken string) (string, error) {
	auth, err := m.GetAuthToken(ctx, authToken)
	if err != nil {
		return "", err
	}
	return auth.UserID, nil
}

// DeleteAuthToken removes the auth token together with the session it links to.
func (m *Manager) DeleteAuthToken(ctx context.Context, authToken string) error {
	auth, err := m.GetAuthToken(ctx, authToken)
	switch {
	case errors.Is(err, apperrors.ErrAuthTokenNotFound):
		return nil
	case err != nil:
		return errors.Wrap(err, "[Manager.DeleteAuthToken]")
	}

	if auth.SessionToken != "" {
		if err := m.deleteSession(ctx, auth.SessionToken, false); err != nil {
			return errors.Wrap(err, "[Manager.DeleteAuthToken]")
		}
	}
	if err := m.registry.Delete(ctx, token.NamespaceAuth, authToken); err != nil {
		return errors.Wrap(err, "[Manager.DeleteAuthToken]")
	}
	return nil
}

// DeleteUserAuthTokens deletes every auth token held by the user, on any device. It scans the
// whole auth namespace and is meant for rare, user initiated invalidation only.
func (m *Manager) DeleteUserAuthTokens(ctx context.Context, userID string) (int, error) {
	owned, err := m.scanOwned(ctx, token.NamespaceAuth, userID, func(raw json.RawMessage) (string, error) {
		var auth token.AuthPayload
		err := json.Unmarshal(raw, &auth)
		return auth.UserID, err
	})
	if err != nil {
		return 0, errors.Wrap(err, "[Manager.DeleteUserAuthTokens]")
	}

	for _, authToken := range owned {
		if err := m.registry.Delete(ctx, token.NamespaceAuth, authToken); err != nil {
			return 0, errors.Wrap(err, "[Manager.DeleteUserAuthTokens]")
		}
	}
	return len(owned), nil
}

// CreateSession opens a session for the user, established with the given auth token.
func (m *Manager) CreateSession(ctx context.Context, userID, authToken string) (string, error) {
	if userID == "" || authToken == "" {
		return "", errors.Wrap(apperrors.ErrInvalidInput, "[Manager.CreateSession] user id and auth token are required")
	}
	sessionToken := token.NewValue()
	session := token.SessionPayload{
		UserID:        userID,
		AuthToken:     authToken,
		ProjectTokens: []string{},
	}
	if err := m.registry.Set(ctx, token.NamespaceSession, sessionToken, session, true); err != nil {
		return "", errors.Wrap(err, "[Manager.CreateSession]")
	}
	return sessionToken, nil
}

// GetSession looks the session up, sliding its expiration as the session namespace does on
// every successful read.
func (m *Manager) GetSession(ctx context.Context, sessionToken string) (*token.SessionPayload, error) {
	return m.lookupSession(ctx, sessionToken, m.registry.Get)
}

// PeekSession looks the session up without renewing it.
func (m *Manager) PeekSession(ctx context.Context, sessionToken string) (*token.SessionPayload, error) {
	return m.lookupSession(ctx, sessionToken, m.registry.Peek)
}

// ActivateSession looks the session up and unconditionally re-arms its expiration. Use it
// where an access must always count as activity.
func (m *Manager) ActivateSession(ctx context.Context, sessionToken string) (*token.SessionPayload, error) {
	session, err := m.PeekSession(ctx, sessionToken)
	if err != nil {
		return nil, err
	}
	if _, err := m.registry.Refresh(ctx, token.NamespaceSession, sessionToken); err != nil {
		return nil, errors.Wrap(err, "[Manager.ActivateSession]")
	}
	return session, nil
}

// TouchSession applies the session namespace's sliding renewal.
func (m *Manager) TouchSession(ctx context.Context, sessionToken string) error {
	return m.registry.Touch(ctx, token.NamespaceSession, sessionToken)
}

type lookupFunc func(ctx context.Context, ns token.Namespace, tok string, out any) (bool, error)

func (m *Manager) lookupSession(ctx context.Context, sessionToken string, lookup lookupFunc) (*token.SessionPayload, error) {
	var session token.SessionPayload
	found, err := lookup(ctx, token.NamespaceSession, sessionToken, &session)
	if err != nil {
		return nil, errors.Wrap(err, "[Manager.lookupSession]")
	}
	if !found {
		return nil, apperrors.ErrSessionNotFound
	}
	return &session, nil
}

// EnsureSession returns the live session linked to the auth token, creating and linking a new
// one when there is none. The auth token keeps its remaining lifetime when the link is updated.
func (m *Manager) EnsureSession(ctx context.Context, authToken string, auth *token.AuthPayload) (string, *token.SessionPayload, bool, error) {
	if auth.SessionToken != "" {
		session, err := m.PeekSession(ctx, auth.SessionToken)
		switch {
		case err == nil && session.AuthToken == authToken:
			return auth.SessionToken, session, false, nil
		case err != nil && !errors.Is(err, apperrors.ErrSessionNotFound):
			return "", nil, false, errors.Wrap(err, "[Manager.EnsureSession]")
		}
	}

	sessionToken, err := m.CreateSession(ctx, auth.UserID, authToken)
	if err != nil {
		return "", nil, false, errors.Wrap(err, "[Manager.EnsureSession]")
	}

	// The auth token may have been deleted or expired since it was read. The link is only
	// written onto a live auth token so a logged out token is never recreated.
	linked := token.AuthPayload{UserID: auth.UserID, SessionToken: sessionToken}
	updated, err := m.registry.Update(ctx, token.NamespaceAuth, authToken, linked)
	if err == nil && !updated {
		err = apperrors.ErrAuthTokenNotFound
	}
	if err != nil {
		if delErr := m.registry.Delete(ctx, token.NamespaceSession, sessionToken); delErr != nil {
			m.log.Warn().Err(delErr).Msg("failed to remove unlinked session")
		}
		if errors.Is(err, apperrors.ErrAuthTokenNotFound) {
			return "", nil, false, err
		}
		return "", nil, false, errors.Wrap(err, "[Manager.EnsureSession] link auth token")
	}
	*auth = linked

	m.log.Debug().Str("user_id", auth.UserID).Msg("session created")
	return sessionToken, &token.SessionPayload{UserID: auth.UserID, AuthToken: authToken, ProjectTokens: []string{}}, true, nil
}

// DeleteSession ends the session, deleting the project tokens opened in it and clearing the
// auth token's back-reference when it still points here. Deleting an absent session is a no-op.
func (m *Manager) DeleteSession(ctx context.Context, sessionToken string) error {
	return m.deleteSession(ctx, sessionToken, true)
}

func (m *Manager) deleteSession(ctx context.Context, sessionToken string, unlinkAuth bool) error {
	session, err := m.PeekSession(ctx, sessionToken)
	switch {
	case errors.Is(err, apperrors.ErrSessionNotFound):
		return m.registry.Delete(ctx, token.NamespaceSession, sessionToken)
	case err != nil:
		return errors.Wrap(err, "[Manager.DeleteSession]")
	}

	for _, projectToken := range session.ProjectTokens {
		if err := m.registry.Delete(ctx, token.NamespaceProject, projectToken); err != nil {
			return errors.Wrap(err, "[Manager.DeleteSession] project")
		}
	}

	if unlinkAuth && session.AuthToken != "" {
		if err := m.unlinkAuth(ctx, session.AuthToken, sessionToken); err != nil {
			return err
		}
	}

	if err := m.registry.Delete(ctx, token.NamespaceSession, sessionToken); err != nil {
		return errors.Wrap(err, "[Manager.DeleteSession]")
	}
	return nil
}

func (m *Manager) unlinkAuth(ctx context.Context, authToken, sessionToken string) error {
	var auth token.AuthPayload
	found, err := m.registry.Peek(ctx, token.NamespaceAuth, authToken, &auth)
	if err != nil {
		return errors.Wrap(err, "[Manager.DeleteSession] auth")
	}
	if !found || auth.SessionToken != sessionToken {
		return nil
	}
	auth.SessionToken = ""
	if _, err := m.registry.Update(ctx, token.NamespaceAuth, authToken, auth); err != nil {
		return errors.Wrap(err, "[Manager.DeleteSession] unlink auth")
	}
	return nil
}

// DeleteUserSessions deletes every session whose payload belongs to the user and returns how
// many were removed. Sessions of other users are untouched. It scans the whole session
// namespace: O(total sessions), for rare administrative use.
func (m *Manager) DeleteUserSessions(ctx context.Context, userID string) (int, error) {
	owned, err := m.scanOwned(ctx, token.NamespaceSession, userID, func(raw json.RawMessage) (string, error) {
		var session token.SessionPayload
		err := json.Unmarshal(raw, &session)
		return session.UserID, err
	})
	if err != nil {
		return 0, errors.Wrap(err, "[Manager.DeleteUserSessions]")
	}

	for _, sessionToken := range owned {
		if err := m.DeleteSession(ctx, sessionToken); err != nil {
			return 0, errors.Wrap(err, "[Manager.DeleteUserSessions]")
		}
	}
	return len(owned), nil
}

func (m *Manager) scanOwned(ctx context.Context, ns token.Namespace, userID string, owner func(json.RawMessage) (string, error)) ([]string, error) {
	if userID == "" {
		return nil, nil
	}
	var owned []string
	err := m.registry.Scan(ctx, ns, func(tok string, raw json.RawMessage) error {
		id, err := owner(raw)
		if err != nil {
			m.log.Warn().Err(err).Str("namespace", ns.String()).Msg("skipping malformed payload during scan")
			return nil
		}
		if id == userID {
			owned = append(owned, tok)
		}
		return nil
	})
	return owned, err
}

// OpenProject creates a project token, which never expires, and links it to the session. The
// session's clock is re-armed as the link is written.
func (m *Manager) OpenProject(ctx context.Context, sessionToken, projectID string, data map[string]any) (string, error) {
	session, err := m.PeekSession(ctx, sessionToken)
	if err != nil {
		return "", err
	}

	projectToken := token.NewValue()
	project := &token.ProjectPayload{ProjectID: projectID, SessionToken: sessionToken, Data: data}
	if err := m.registry.Set(ctx, token.NamespaceProject, projectToken, project, false); err != nil {
		return "", errors.Wrap(err, "[Manager.OpenProject]")
	}

	session.ProjectTokens = append(session.ProjectTokens, projectToken)
	if err := m.rewriteSession(ctx, sessionToken, session); err != nil {
		if delErr := m.registry.Delete(ctx, token.NamespaceProject, projectToken); delErr != nil {
			m.log.Warn().Err(delErr).Str("project_id", projectID).Msg("failed to roll back project token")
		}
		if errors.Is(err, apperrors.ErrSessionNotFound) {
			return "", err
		}
		return "", errors.Wrap(err, "[Manager.OpenProject] link session")
	}
	return projectToken, nil
}

// rewriteSession stores an updated payload for a session that is still live and re-arms its
// expiration. A session deleted or expired since it was read is reported as not found.
func (m *Manager) rewriteSession(ctx context.Context, sessionToken string, session *token.SessionPayload) error {
	updated, err := m.registry.Update(ctx, token.NamespaceSession, sessionToken, session)
	if err != nil {
		return err
	}
	if !updated {
		return apperrors.ErrSessionNotFound
	}
	if _, err := m.registry.Refresh(ctx, token.NamespaceSession, sessionToken); err != nil {
		return err
	}
	return nil
}

// GetProject resolves a project token.
func (m *Manager) GetProject(ctx context.Context, projectToken string) (*token.ProjectPayload, error) {
	var project token.ProjectPayload
	found, err := m.registry.Get(ctx, token.NamespaceProject, projectToken, &project)
	if err != nil {
		return nil, errors.Wrap(err, "[Manager.GetProject]")
	}
	if !found {
		return nil, apperrors.ErrProjectNotFound
	}
	return &project, nil
}

// CloseProject unlinks the project from the session and deletes its token.
func (m *Manager) CloseProject(ctx context.Context, sessionToken, projectToken string) error {
	session, err := m.PeekSession(ctx, sessionToken)
	if err != nil {
		return err
	}
	if !session.HasProject(projectToken) {
		return apperrors.ErrProjectNotFound
	}

	session.ProjectTokens = slices.DeleteFunc(session.ProjectTokens, func(t string) bool { return t == projectToken })
	if err := m.rewriteSession(ctx, sessionToken, session); err != nil {
		if errors.Is(err, apperrors.ErrSessionNotFound) {
			return err
		}
		return errors.Wrap(err, "[Manager.CloseProject]")
	}
	if err := m.registry.Delete(ctx, token.NamespaceProject, projectToken); err != nil {
		return errors.Wrap(err, "[Manager.CloseProject]")
	}
	return nil
}

// PruneProjects deletes project tokens whose session no longer exists, such as the projects of
// a session that expired instead of being closed. Projects that record no session are kept.
// It scans the whole project namespace and is meant for administrative runs only.
func (m *Manager) PruneProjects(ctx context.Context) (int, error) {
	var orphaned []string
	err := m.registry.Scan(ctx, token.NamespaceProject, func(projectToken string, raw json.RawMessage) error {
		var project token.ProjectPayload
		if err := json.Unmarshal(raw, &project); err != nil {
			m.log.Warn().Err(err).Msg("skipping malformed project payload during prune")
			return nil
		}
		if project.SessionToken == "" {
			return nil
		}
		_, err := m.PeekSession(ctx, project.SessionToken)
		switch {
		case errors.Is(err, apperrors.ErrSessionNotFound):
			orphaned = append(orphaned, projectToken)
		case err != nil:
			return err
		}
		return nil
	})
	if err != nil {
		return 0, errors.Wrap(err, "[Manager.PruneProjects]")
	}

	for _, projectToken := range orphaned {
		if err := m.registry.Delete(ctx, token.NamespaceProject, projectToken); err != nil {
			return 0, errors.Wrap(err, "[Manager.PruneProjects]")
		}
	}
	m.log.Info().Int("projects", len(orphaned)).Msg("pruned orphaned project tokens")
	return len(orphaned), nil
}

// LogoutResult counts what a bulk invalidation removed.
type LogoutResult struct {
	Sessions   int
	AuthTokens int
}

// LogoutAll invalidates every session and auth token of the user.
func (m *Manager) LogoutAll(ctx context.Context, userID string) (LogoutResult, error) {
	var result LogoutResult
	var err error

	if result.Sessions, err = m.DeleteUserSessions(ctx, userID); err != nil {
		return result, errors.Wrap(err, "[Manager.LogoutAll]")
	}
	if result.AuthTokens, err = m.DeleteUserAuthTokens(ctx, userID); err != nil {
		return result, errors.Wrap(err, "[Manager.LogoutAll]")
	}

	m.log.Info().
		Str("user_id", userID).
		Int("sessions", result.Sessions).
		Int("auth_tokens", result.AuthTokens).
		Msg("invalidated all user tokens")
	return result, nil
}
