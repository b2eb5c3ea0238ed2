package sessions_test

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	apperrors "github.com/jrsteele09/codeassist-auth/internal/errors"
	"github.com/jrsteele09/codeassist-auth/kvstore"
	"github.com/jrsteele09/codeassist-auth/kvstore/storefake"
	"github.com/jrsteele09/codeassist-auth/sessions"
	"github.com/jrsteele09/codeassist-auth/token"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

const (
	testAuthTTL    = 24 * time.Hour
	testSessionTTL = time.Hour
	testUserID     = "user-1"
	otherUserID    = "user-2"
)

type tokenConfig struct{}

func (tokenConfig) GetAuthTokenTTL() time.Duration    { return testAuthTTL }
func (tokenConfig) GetSessionTokenTTL() time.Duration { return testSessionTTL }

// testFixture holds all test dependencies
type testFixture struct {
	now      time.Time
	store    *storefake.FakeStore
	registry *token.Registry
	manager  *sessions.Manager
}

func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()

	f := &testFixture{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	f.store = storefake.NewFakeStore(storefake.WithNow(func() time.Time { return f.now }))

	registry, err := token.NewRegistry(f.store, tokenConfig{})
	require.NoError(t, err)
	f.registry = registry

	manager, err := sessions.NewManager(registry)
	require.NoError(t, err)
	f.manager = manager
	return f
}

func (f *testFixture) ttl(t *testing.T, ns token.Namespace, tok string) time.Duration {
	t.Helper()
	ttl, ok, err := f.registry.TTL(context.Background(), ns, tok)
	require.NoError(t, err)
	require.True(t, ok, "token should exist")
	return ttl
}

func (f *testFixture) exists(t *testing.T, ns token.Namespace, tok string) bool {
	t.Helper()
	_, ok, err := f.store.Get(context.Background(), ns.Key(tok))
	require.NoError(t, err)
	return ok
}

// login creates an auth token with a linked session
func (f *testFixture) login(t *testing.T, userID string) (string, string) {
	t.Helper()
	ctx := context.Background()

	authToken, err := f.manager.CreateAuthToken(ctx, userID)
	require.NoError(t, err)
	auth, err := f.manager.GetAuthToken(ctx, authToken)
	require.NoError(t, err)
	sessionToken, _, created, err := f.manager.EnsureSession(ctx, authToken, auth)
	require.NoError(t, err)
	require.True(t, created)
	return authToken, sessionToken
}

func TestNewManager_RequiresRegistry(t *testing.T) {
	_, err := sessions.NewManager(nil)
	require.Error(t, err)
}

func TestManager_AuthTokens(t *testing.T) {
	ctx := context.Background()
	f := setupTestFixture(t)

	authToken, err := f.manager.CreateAuthToken(ctx, testUserID)
	require.NoError(t, err)
	require.Equal(t, testAuthTTL, f.ttl(t, token.NamespaceAuth, authToken))

	userID, err := f.manager.GetUserIDByAuthToken(ctx, authToken)
	require.NoError(t, err)
	require.Equal(t, testUserID, userID)

	_, err = f.manager.GetUserIDByAuthToken(ctx, "unknown")
	require.ErrorIs(t, err, apperrors.ErrAuthTokenNotFound)

	_, err = f.manager.CreateAuthToken(ctx, "")
	require.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestManager_AuthTokenWithoutUserIsAbsent(t *testing.T) {
	ctx := context.Background()
	f := setupTestFixture(t)
	f.store.Raw(token.NamespaceAuth.Key("a1"), []byte(`{"session_token":""}`), time.Hour)

	_, err := f.manager.GetAuthToken(ctx, "a1")
	require.ErrorIs(t, err, apperrors.ErrAuthTokenNotFound)
}

func TestManager_CreateAndGetSession(t *testing.T) {
	ctx := context.Background()
	f := setupTestFixture(t)

	sessionToken, err := f.manager.CreateSession(ctx, testUserID, "a1")
	require.NoError(t, err)
	require.Equal(t, testSessionTTL, f.ttl(t, token.NamespaceSession, sessionToken))

	session, err := f.manager.GetSession(ctx, sessionToken)
	require.NoError(t, err)
	require.Equal(t, &token.SessionPayload{UserID: testUserID, AuthToken: "a1", ProjectTokens: []string{}}, session)

	_, err = f.manager.GetSession(ctx, "")
	require.ErrorIs(t, err, apperrors.ErrSessionNotFound)

	_, err = f.manager.CreateSession(ctx, testUserID, "")
	require.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestManager_ActivateVersusPeek(t *testing.T) {
	ctx := context.Background()
	f := setupTestFixture(t)
	sessionToken, err := f.manager.CreateSession(ctx, testUserID, "a1")
	require.NoError(t, err)

	f.now = f.now.Add(30 * time.Minute)
	_, err = f.manager.PeekSession(ctx, sessionToken)
	require.NoError(t, err)
	require.Equal(t, 30*time.Minute, f.ttl(t, token.NamespaceSession, sessionToken))

	_, err = f.manager.ActivateSession(ctx, sessionToken)
	require.NoError(t, err)
	require.Equal(t, testSessionTTL, f.ttl(t, token.NamespaceSession, sessionToken))

	_, err = f.manager.ActivateSession(ctx, "missing")
	require.ErrorIs(t, err, apperrors.ErrSessionNotFound)
	require.False(t, f.exists(t, token.NamespaceSession, "missing"))
}

func TestManager_EnsureSession(t *testing.T) {
	ctx := context.Background()
	f := setupTestFixture(t)
	authToken, err := f.manager.CreateAuthToken(ctx, testUserID)
	require.NoError(t, err)
	f.now = f.now.Add(time.Hour)

	auth, err := f.manager.GetAuthToken(ctx, authToken)
	require.NoError(t, err)

	t.Run("creates and links a session", func(t *testing.T) {
		sessionToken, session, created, err := f.manager.EnsureSession(ctx, authToken, auth)
		require.NoError(t, err)
		require.True(t, created)
		require.Equal(t, authToken, session.AuthToken)
		require.Equal(t, sessionToken, auth.SessionToken)

		stored, err := f.manager.GetAuthToken(ctx, authToken)
		require.NoError(t, err)
		require.Equal(t, sessionToken, stored.SessionToken)
		require.Equal(t, testAuthTTL-time.Hour, f.ttl(t, token.NamespaceAuth, authToken), "linking must not extend the auth token")
	})

	t.Run("reuses the live linked session", func(t *testing.T) {
		first := auth.SessionToken
		sessionToken, _, created, err := f.manager.EnsureSession(ctx, authToken, auth)
		require.NoError(t, err)
		require.False(t, created)
		require.Equal(t, first, sessionToken)
	})

	t.Run("replaces an expired linked session", func(t *testing.T) {
		first := auth.SessionToken
		f.now = f.now.Add(testSessionTTL)
		sessionToken, _, created, err := f.manager.EnsureSession(ctx, authToken, auth)
		require.NoError(t, err)
		require.True(t, created)
		require.NotEqual(t, first, sessionToken)
	})
}

func TestManager_EnsureSessionDoesNotRecreateAuthToken(t *testing.T) {
	ctx := context.Background()

	t.Run("logged out between check and link", func(t *testing.T) {
		f := setupTestFixture(t)
		authToken, err := f.manager.CreateAuthToken(ctx, testUserID)
		require.NoError(t, err)
		f.now = f.now.Add(23 * time.Hour)

		auth, err := f.manager.GetAuthToken(ctx, authToken)
		require.NoError(t, err)
		require.NoError(t, f.manager.DeleteAuthToken(ctx, authToken))

		_, _, _, err = f.manager.EnsureSession(ctx, authToken, auth)
		require.ErrorIs(t, err, apperrors.ErrAuthTokenNotFound)
		require.False(t, f.exists(t, token.NamespaceAuth, authToken))
		require.Zero(t, f.store.Len(), "the unlinked session must not be left behind")
	})

	t.Run("expired between check and link", func(t *testing.T) {
		f := setupTestFixture(t)
		authToken, err := f.manager.CreateAuthToken(ctx, testUserID)
		require.NoError(t, err)

		auth, err := f.manager.GetAuthToken(ctx, authToken)
		require.NoError(t, err)
		f.now = f.now.Add(testAuthTTL)

		_, _, _, err = f.manager.EnsureSession(ctx, authToken, auth)
		require.ErrorIs(t, err, apperrors.ErrAuthTokenNotFound)
		require.False(t, f.exists(t, token.NamespaceAuth, authToken))
	})
}

func TestManager_ProjectLinkDoesNotRecreateSession(t *testing.T) {
	ctx := context.Background()
	f := setupTestFixture(t)
	_, sessionToken := f.login(t, testUserID)
	projectToken, err := f.manager.OpenProject(ctx, sessionToken, "repo-1", nil)
	require.NoError(t, err)

	f.now = f.now.Add(testSessionTTL)
	require.ErrorIs(t, f.manager.CloseProject(ctx, sessionToken, projectToken), apperrors.ErrSessionNotFound)
	require.False(t, f.exists(t, token.NamespaceSession, sessionToken))
}

// linkHookStore runs beforeSessionUpdate ahead of every session rewrite
type linkHookStore struct {
	*storefake.FakeStore
	beforeSessionUpdate func(key string)
}

func (s *linkHookStore) Update(ctx context.Context, key string, value []byte) (bool, error) {
	if s.beforeSessionUpdate != nil && strings.HasPrefix(key, token.NamespaceSession.Key("")) {
		s.beforeSessionUpdate(key)
	}
	return s.FakeStore.Update(ctx, key, value)
}

func TestManager_OpenProjectRollsBackWhenLinkFails(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T) (*linkHookStore, *sessions.Manager, *bytes.Buffer, string) {
		store := &linkHookStore{FakeStore: storefake.NewFakeStore()}
		registry, err := token.NewRegistry(store, tokenConfig{})
		require.NoError(t, err)
		var logs bytes.Buffer
		manager, err := sessions.NewManager(registry, sessions.WithLogger(zerolog.New(&logs)))
		require.NoError(t, err)

		authToken, err := manager.CreateAuthToken(ctx, testUserID)
		require.NoError(t, err)
		auth, err := manager.GetAuthToken(ctx, authToken)
		require.NoError(t, err)
		sessionToken, _, _, err := manager.EnsureSession(ctx, authToken, auth)
		require.NoError(t, err)
		return store, manager, &logs, sessionToken
	}

	t.Run("session deleted before link", func(t *testing.T) {
		store, manager, logs, sessionToken := setup(t)
		store.beforeSessionUpdate = func(key string) {
			require.NoError(t, store.Delete(ctx, key))
		}

		_, err := manager.OpenProject(ctx, sessionToken, "repo-1", nil)
		require.ErrorIs(t, err, apperrors.ErrSessionNotFound)

		projects, err := store.Keys(ctx, token.NamespaceProject.Pattern())
		require.NoError(t, err)
		require.Empty(t, projects, "the unlinked project token is removed")
		require.NotContains(t, logs.String(), "failed to roll back project token")
	})

	t.Run("rollback failure is logged", func(t *testing.T) {
		store, manager, logs, sessionToken := setup(t)
		store.beforeSessionUpdate = func(string) {
			store.Fail(errors.New("connection reset"))
		}

		_, err := manager.OpenProject(ctx, sessionToken, "repo-1", nil)
		require.ErrorIs(t, err, kvstore.ErrUnavailable)
		require.Contains(t, logs.String(), `"level":"warn"`)
		require.Contains(t, logs.String(), "failed to roll back project token")
	})
}

func TestManager_PruneProjects(t *testing.T) {
	ctx := context.Background()
	f := setupTestFixture(t)

	authToken, expiring := f.login(t, testUserID)
	stale, err := f.manager.OpenProject(ctx, expiring, "repo-1", nil)
	require.NoError(t, err)
	require.NoError(t, f.registry.Set(ctx, token.NamespaceProject, "legacy", &token.ProjectPayload{ProjectID: "repo-0"}, false))

	f.now = f.now.Add(testSessionTTL)
	auth, err := f.manager.GetAuthToken(ctx, authToken)
	require.NoError(t, err)
	live, _, created, err := f.manager.EnsureSession(ctx, authToken, auth)
	require.NoError(t, err)
	require.True(t, created)
	kept, err := f.manager.OpenProject(ctx, live, "repo-2", nil)
	require.NoError(t, err)

	pruned, err := f.manager.PruneProjects(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, pruned)
	require.False(t, f.exists(t, token.NamespaceProject, stale))
	require.True(t, f.exists(t, token.NamespaceProject, kept))
	require.True(t, f.exists(t, token.NamespaceProject, "legacy"), "projects without a recorded session are kept")

	pruned, err = f.manager.PruneProjects(ctx)
	require.NoError(t, err)
	require.Zero(t, pruned)
}

func TestManager_Projects(t *testing.T) {
	ctx := context.Background()
	f := setupTestFixture(t)
	_, sessionToken := f.login(t, testUserID)

	projectToken, err := f.manager.OpenProject(ctx, sessionToken, "repo-1", map[string]any{"ide": "vscode"})
	require.NoError(t, err)
	require.Equal(t, kvstore.NoExpiration, f.ttl(t, token.NamespaceProject, projectToken))

	session, err := f.manager.PeekSession(ctx, sessionToken)
	require.NoError(t, err)
	require.Equal(t, []string{projectToken}, session.ProjectTokens)

	project, err := f.manager.GetProject(ctx, projectToken)
	require.NoError(t, err)
	require.Equal(t, "repo-1", project.ProjectID)
	require.Equal(t, sessionToken, project.SessionToken)
	require.Equal(t, "vscode", project.Data["ide"])

	require.ErrorIs(t, f.manager.CloseProject(ctx, sessionToken, "not-linked"), apperrors.ErrProjectNotFound)

	require.NoError(t, f.manager.CloseProject(ctx, sessionToken, projectToken))
	session, err = f.manager.PeekSession(ctx, sessionToken)
	require.NoError(t, err)
	require.Empty(t, session.ProjectTokens)
	_, err = f.manager.GetProject(ctx, projectToken)
	require.ErrorIs(t, err, apperrors.ErrProjectNotFound)

	_, err = f.manager.OpenProject(ctx, "missing", "repo-2", nil)
	require.ErrorIs(t, err, apperrors.ErrSessionNotFound)
}

func TestManager_DeleteSessionCascades(t *testing.T) {
	ctx := context.Background()
	f := setupTestFixture(t)
	authToken, sessionToken := f.login(t, testUserID)
	projectToken, err := f.manager.OpenProject(ctx, sessionToken, "repo-1", nil)
	require.NoError(t, err)

	require.NoError(t, f.manager.DeleteSession(ctx, sessionToken))
	require.False(t, f.exists(t, token.NamespaceSession, sessionToken))
	require.False(t, f.exists(t, token.NamespaceProject, projectToken))

	auth, err := f.manager.GetAuthToken(ctx, authToken)
	require.NoError(t, err)
	require.Empty(t, auth.SessionToken)

	require.NoError(t, f.manager.DeleteSession(ctx, sessionToken))
}

func TestManager_DeleteAuthTokenTearsDownSession(t *testing.T) {
	ctx := context.Background()
	f := setupTestFixture(t)
	authToken, sessionToken := f.login(t, testUserID)

	require.NoError(t, f.manager.DeleteAuthToken(ctx, authToken))
	require.False(t, f.exists(t, token.NamespaceAuth, authToken))
	require.False(t, f.exists(t, token.NamespaceSession, sessionToken))
	require.NoError(t, f.manager.DeleteAuthToken(ctx, authToken))
}

func TestManager_DeleteUserSessions(t *testing.T) {
	ctx := context.Background()
	f := setupTestFixture(t)
	_, s1 := f.login(t, testUserID)
	_, s2 := f.login(t, testUserID)
	_, other := f.login(t, otherUserID)
	f.store.Raw(token.NamespaceSession.Key("corrupt"), []byte("not json"), time.Hour)

	removed, err := f.manager.DeleteUserSessions(ctx, testUserID)
	require.NoError(t, err)
	require.Equal(t, 2, removed)

	require.False(t, f.exists(t, token.NamespaceSession, s1))
	require.False(t, f.exists(t, token.NamespaceSession, s2))
	require.True(t, f.exists(t, token.NamespaceSession, other))
	require.True(t, f.exists(t, token.NamespaceSession, "corrupt"))

	removed, err = f.manager.DeleteUserSessions(ctx, testUserID)
	require.NoError(t, err)
	require.Zero(t, removed)
}

func TestManager_LogoutAll(t *testing.T) {
	ctx := context.Background()
	f := setupTestFixture(t)
	a1, s1 := f.login(t, testUserID)
	a2, _ := f.login(t, testUserID)
	a3, s3 := f.login(t, otherUserID)
	p1, err := f.manager.OpenProject(ctx, s1, "repo-1", nil)
	require.NoError(t, err)

	result, err := f.manager.LogoutAll(ctx, testUserID)
	require.NoError(t, err)
	require.Equal(t, sessions.LogoutResult{Sessions: 2, AuthTokens: 2}, result)

	for _, tok := range []string{a1, a2} {
		require.False(t, f.exists(t, token.NamespaceAuth, tok))
	}
	require.False(t, f.exists(t, token.NamespaceProject, p1))
	require.True(t, f.exists(t, token.NamespaceAuth, a3))
	require.True(t, f.exists(t, token.NamespaceSession, s3))
}

func TestManager_VerificationTokensAreSingleUse(t *testing.T) {
	ctx := context.Background()
	f := setupTestFixture(t)

	verificationToken, err := f.manager.CreateVerificationToken(ctx, testUserID)
	require.NoError(t, err)
	require.Equal(t, 24*time.Hour, f.ttl(t, token.NamespaceEmailVerification, verificationToken))

	userID, err := f.manager.ConsumeVerificationToken(ctx, verificationToken)
	require.NoError(t, err)
	require.Equal(t, testUserID, userID)

	_, err = f.manager.ConsumeVerificationToken(ctx, verificationToken)
	require.ErrorIs(t, err, apperrors.ErrInvalidVerificationToken)
}

func TestManager_StoreFailuresAreNotMisses(t *testing.T) {
	ctx := context.Background()
	f := setupTestFixture(t)
	authToken, sessionToken := f.login(t, testUserID)
	f.store.Fail(errors.New("connection reset"))

	_, err := f.manager.GetAuthToken(ctx, authToken)
	require.ErrorIs(t, err, kvstore.ErrUnavailable)
	require.NotErrorIs(t, err, apperrors.ErrAuthTokenNotFound)

	_, err = f.manager.GetSession(ctx, sessionToken)
	require.ErrorIs(t, err, kvstore.ErrUnavailable)

	_, err = f.manager.DeleteUserSessions(ctx, testUserID)
	require.ErrorIs(t, err, kvstore.ErrUnavailable)
}
