package storefake

import (
	"context"
	"fmt"
	"path"
	"sort"
	"sync"
	"time"

	"github.com/jrsteele09/codeassist-auth/kvstore"
)

var _ kvstore.Store = (*FakeStore)(nil)

type entry struct {
	value     []byte
	expiresAt time.Time // zero means no expiration
}

// FakeStore is an in-memory kvstore.Store with real TTL semantics driven by an
// injectable clock.
type FakeStore struct {
	entries map[string]entry
	now     func() time.Time
	failErr error
	lock    sync.RWMutex
}

type Option func(*FakeStore)

// WithNow sets the clock used for expiry decisions.
func WithNow(now func() time.Time) Option {
	return func(s *FakeStore) {
		s.now = now
	}
}

func NewFakeStore(options ...Option) *FakeStore {
	s := &FakeStore{
		entries: make(map[string]entry),
		now:     time.Now,
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

// Fail makes every subsequent call return err wrapped in kvstore.ErrUnavailable. Passing nil
// restores normal operation.
func (s *FakeStore) Fail(err error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.failErr = err
}

func (s *FakeStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	if err := s.failure(); err != nil {
		return nil, false, err
	}

	e, ok := s.live(key)
	if !ok {
		return nil, false, nil
	}
	value := make([]byte, len(e.value))
	copy(value, e.value)
	return value, true, nil
}

func (s *FakeStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	if err := s.failure(); err != nil {
		return err
	}

	e := entry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		e.expiresAt = s.now().Add(ttl)
	}
	s.entries[key] = e
	return nil
}

func (s *FakeStore) Update(_ context.Context, key string, value []byte) (bool, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	if err := s.failure(); err != nil {
		return false, err
	}

	e, ok := s.live(key)
	if !ok {
		return false, nil
	}
	e.value = append([]byte(nil), value...)
	s.entries[key] = e
	return true, nil
}

func (s *FakeStore) Delete(_ context.Context, key string) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	if err := s.failure(); err != nil {
		return err
	}

	delete(s.entries, key)
	return nil
}

func (s *FakeStore) Expire(_ context.Context, key string, ttl time.Duration) (bool, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	if err := s.failure(); err != nil {
		return false, err
	}

	e, ok := s.live(key)
	if !ok {
		return false, nil
	}
	e.expiresAt = s.now().Add(ttl)
	s.entries[key] = e
	return true, nil
}

func (s *FakeStore) TTL(_ context.Context, key string) (time.Duration, bool, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	if err := s.failure(); err != nil {
		return 0, false, err
	}

	e, ok := s.live(key)
	if !ok {
		return 0, false, nil
	}
	if e.expiresAt.IsZero() {
		return kvstore.NoExpiration, true, nil
	}
	return e.expiresAt.Sub(s.now()), true, nil
}

func (s *FakeStore) Keys(_ context.Context, pattern string) ([]string, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	if err := s.failure(); err != nil {
		return nil, err
	}

	keys := make([]string, 0)
	for key := range s.entries {
		if _, ok := s.live(key); !ok {
			continue
		}
		if matched, _ := path.Match(pattern, key); matched {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *FakeStore) Ping(context.Context) error {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.failure()
}

func (s *FakeStore) Close() error {
	return nil
}

// Len returns the number of live keys.
func (s *FakeStore) Len() int {
	s.lock.RLock()
	defer s.lock.RUnlock()

	n := 0
	for key := range s.entries {
		if _, ok := s.live(key); ok {
			n++
		}
	}
	return n
}

// Raw writes a value directly, bypassing any encoding. Used to plant corrupt payloads.
func (s *FakeStore) Raw(key string, value []byte, ttl time.Duration) {
	_ = s.Set(context.Background(), key, value, ttl)
}

func (s *FakeStore) live(key string) (entry, bool) {
	e, ok := s.entries[key]
	if !ok {
		return entry{}, false
	}
	if !e.expiresAt.IsZero() && !s.now().Before(e.expiresAt) {
		return entry{}, false
	}
	return e, true
}

func (s *FakeStore) failure() error {
	if s.failErr == nil {
		return nil
	}
	return fmt.Errorf("%w: %v", kvstore.ErrUnavailable, s.failErr)
}
