// Package token manages the token namespaces held in the key-value store: their expiration
// policies, sliding renewal and payload encoding.
package token

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/jrsteele09/codeassist-auth/internal/config"
	"github.com/jrsteele09/codeassist-auth/kvstore"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Registry reads and writes tokens of every namespace. It holds no in-process state beyond the
// store handle; all coordination between requests happens in the store.
type Registry struct {
	store      kvstore.Store
	authTTL    time.Duration
	sessionTTL time.Duration
	log        zerolog.Logger
}

// RegistryOption defines a function type to modify the Registry instance.
type RegistryOption func(*Registry)

// WithLogger sets the logger used to report corrupt payloads.
func WithLogger(logger zerolog.Logger) RegistryOption {
	return func(r *Registry) {
		r.log = logger
	}
}

// NewRegistry creates a Registry using the configured auth and session lifetimes.
func NewRegistry(store kvstore.Store, cfg config.TokenConfig, options ...RegistryOption) (*Registry, error) {
	if store == nil {
		return nil, errors.New("[NewRegistry] store is required")
	}
	if cfg == nil {
		return nil, errors.New("[NewRegistry] token config is required")
	}

	r := &Registry{
		store:      store,
		authTTL:    cfg.GetAuthTokenTTL(),
		sessionTTL: cfg.GetSessionTokenTTL(),
		log:        zerolog.Nop(),
	}
	for _, opt := range options {
		opt(r)
	}
	return r, nil
}

// Policy returns the expiration policy of a namespace. Unrecognised namespaces expire after
// an hour and never renew.
func (r *Registry) Policy(ns Namespace) Policy {
	switch ns {
	case NamespaceAuth:
		return Policy{TTL: r.authTTL, HasTTL: true}
	case NamespaceSession:
		return Policy{TTL: r.sessionTTL, RenewsOnAccess: true, HasTTL: true}
	case NamespaceProject:
		return Policy{}
	case NamespaceEmailVerification:
		return Policy{TTL: emailVerificationTTL, HasTTL: true}
	}
	return Policy{TTL: fallbackTTL, HasTTL: true}
}

// Get decodes the token's payload into out and applies the namespace's sliding renewal.
// A missing, empty or undecodable token reports found == false with a nil error; the error
// is reserved for store failures.
func (r *Registry) Get(ctx context.Context, ns Namespace, token string, out any) (bool, error) {
	found, err := r.Peek(ctx, ns, token, out)
	if err != nil || !found {
		return found, err
	}
	if err := r.Touch(ctx, ns, token); err != nil {
		return false, err
	}
	return true, nil
}

// Peek is Get without renewal.
func (r *Registry) Peek(ctx context.Context, ns Namespace, token string, out any) (bool, error) {
	if strings.TrimSpace(token) == "" {
		return false, nil
	}

	raw, ok, err := r.store.Get(ctx, ns.Key(token))
	if err != nil {
		return false, errors.Wrapf(err, "[Registry.Peek] %s", ns)
	}
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		r.log.Warn().Err(err).Str("namespace", ns.String()).Msg("malformed token payload")
		return false, nil
	}
	return true, nil
}

// Touch applies the namespace's renewal policy to a token that has just been read
// successfully. It is a no-op for namespaces that do not renew on access.
func (r *Registry) Touch(ctx context.Context, ns Namespace, token string) error {
	if !r.Policy(ns).RenewsOnAccess {
		return nil
	}
	_, err := r.Refresh(ctx, ns, token)
	return err
}

// Refresh resets the token's TTL to the namespace default regardless of the renewal policy.
// It never resurrects an absent key and reports whether the key existed.
func (r *Registry) Refresh(ctx context.Context, ns Namespace, token string) (bool, error) {
	policy := r.Policy(ns)
	if !policy.HasTTL || strings.TrimSpace(token) == "" {
		return false, nil
	}
	ok, err := r.store.Expire(ctx, ns.Key(token), policy.TTL)
	if err != nil {
		return false, errors.Wrapf(err, "[Registry.Refresh] %s", ns)
	}
	return ok, nil
}

// Set encodes and stores the payload. New keys receive the namespace's default TTL. An
// existing key keeps its remaining TTL unless forceResetExp re-arms it. Project tokens are
// always stored without expiration.
func (r *Registry) Set(ctx context.Context, ns Namespace, token string, payload any, forceResetExp bool) error {
	raw, err := r.encode(ns, token, payload)
	if err != nil {
		return errors.Wrap(err, "[Registry.Set]")
	}

	policy := r.Policy(ns)
	if policy.HasTTL && !forceResetExp {
		updated, err := r.store.Update(ctx, ns.Key(token), raw)
		if err != nil {
			return errors.Wrapf(err, "[Registry.Set] %s", ns)
		}
		if updated {
			return nil
		}
	}

	ttl := policy.TTL
	if !policy.HasTTL {
		ttl = kvstore.NoExpiration
	}
	if err := r.store.Set(ctx, ns.Key(token), raw, ttl); err != nil {
		return errors.Wrapf(err, "[Registry.Set] %s", ns)
	}
	return nil
}

// Update rewrites the payload of a live token and keeps its remaining lifetime. It reports
// false, writing nothing, when the token is absent or has expired, so a token deleted since it
// was read is never recreated.
func (r *Registry) Update(ctx context.Context, ns Namespace, token string, payload any) (bool, error) {
	raw, err := r.encode(ns, token, payload)
	if err != nil {
		return false, errors.Wrap(err, "[Registry.Update]")
	}
	updated, err := r.store.Update(ctx, ns.Key(token), raw)
	if err != nil {
		return false, errors.Wrapf(err, "[Registry.Update] %s", ns)
	}
	return updated, nil
}

func (r *Registry) encode(ns Namespace, token string, payload any) ([]byte, error) {
	if strings.TrimSpace(token) == "" {
		return nil, errors.Errorf("empty %s token", ns)
	}
	raw, err := json.Marshal(canonical(payload))
	if err != nil {
		return nil, errors.Wrapf(err, "encode %s payload", ns)
	}
	return raw, nil
}

// Delete removes the token. Deleting an absent or empty token is not an error.
func (r *Registry) Delete(ctx context.Context, ns Namespace, token string) error {
	if strings.TrimSpace(token) == "" {
		return nil
	}
	if err := r.store.Delete(ctx, ns.Key(token)); err != nil {
		return errors.Wrapf(err, "[Registry.Delete] %s", ns)
	}
	return nil
}

// TTL reports a token's remaining lifetime. Tokens without expiration report
// kvstore.NoExpiration.
func (r *Registry) TTL(ctx context.Context, ns Namespace, token string) (time.Duration, bool, error) {
	ttl, ok, err := r.store.TTL(ctx, ns.Key(token))
	if err != nil {
		return 0, false, errors.Wrapf(err, "[Registry.TTL] %s", ns)
	}
	return ttl, ok, nil
}

// Scan calls fn for every live token in the namespace with its raw payload, without renewal.
// The cost is linear in the size of the whole keyspace; it serves rare administrative actions
// such as bulk invalidation and must stay off the request path.
func (r *Registry) Scan(ctx context.Context, ns Namespace, fn func(token string, raw json.RawMessage) error) error {
	keys, err := r.store.Keys(ctx, ns.Pattern())
	if err != nil {
		return errors.Wrapf(err, "[Registry.Scan] %s", ns)
	}

	prefix := string(ns) + ":"
	for _, key := range keys {
		raw, ok, err := r.store.Get(ctx, key)
		if err != nil {
			return errors.Wrapf(err, "[Registry.Scan] %s", ns)
		}
		if !ok {
			continue // expired or deleted since the key listing
		}
		if err := fn(strings.TrimPrefix(key, prefix), raw); err != nil {
			return err
		}
	}
	return nil
}
