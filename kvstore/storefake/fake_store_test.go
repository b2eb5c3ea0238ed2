package storefake_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jrsteele09/codeassist-auth/kvstore"
	"github.com/jrsteele09/codeassist-auth/kvstore/storefake"
	"github.com/stretchr/testify/require"
)

func TestFakeStore_ExpiresWithClock(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	store := storefake.NewFakeStore(storefake.WithNow(func() time.Time { return now }))

	require.NoError(t, store.Set(ctx, "k", []byte("v"), time.Minute))
	ttl, ok, err := store.TTL(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, time.Minute, ttl)

	now = now.Add(time.Minute)
	_, ok, err = store.Get(ctx, "k")
	require.NoError(t, err)
	require.False(t, ok)

	renewed, err := store.Expire(ctx, "k", time.Minute)
	require.NoError(t, err)
	require.False(t, renewed)
}

func TestFakeStore_KeysAndFailures(t *testing.T) {
	ctx := context.Background()
	store := storefake.NewFakeStore()

	require.NoError(t, store.Set(ctx, "session:b", []byte("{}"), 0))
	require.NoError(t, store.Set(ctx, "session:a", []byte("{}"), 0))
	require.NoError(t, store.Set(ctx, "auth:a", []byte("{}"), 0))

	keys, err := store.Keys(ctx, "session:*")
	require.NoError(t, err)
	require.Equal(t, []string{"session:a", "session:b"}, keys)

	store.Fail(errors.New("connection refused"))
	_, _, err = store.Get(ctx, "session:a")
	require.ErrorIs(t, err, kvstore.ErrUnavailable)

	store.Fail(nil)
	require.NoError(t, store.Ping(ctx))
	require.Equal(t, 3, store.Len())
}

func TestFakeStore_UpdateOnlyTouchesLiveKeys(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	store := storefake.NewFakeStore(storefake.WithNow(func() time.Time { return now }))

	updated, err := store.Update(ctx, "k", []byte("v"))
	require.NoError(t, err)
	require.False(t, updated)
	require.Zero(t, store.Len())

	require.NoError(t, store.Set(ctx, "k", []byte("v1"), time.Hour))
	now = now.Add(15 * time.Minute)

	updated, err = store.Update(ctx, "k", []byte("v2"))
	require.NoError(t, err)
	require.True(t, updated)

	value, _, err := store.Get(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, "v2", string(value))
	ttl, _, err := store.TTL(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, 45*time.Minute, ttl)

	now = now.Add(time.Hour)
	updated, err = store.Update(ctx, "k", []byte("v3"))
	require.NoError(t, err)
	require.False(t, updated)
}
