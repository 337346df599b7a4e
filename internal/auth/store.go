package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// ErrAuthFailed is returned when the authentication exchange fails. It is
// a run-ending condition: without a token no further work can proceed.
var ErrAuthFailed = errors.New("auth: authentication failed")

// AuthFunc performs one email/password exchange against the API and
// returns a fresh token.
type AuthFunc func(ctx context.Context) (Token, error)

// Options configures a Store.
type Options struct {
	// CachePath is where the token is persisted between runs.
	// Default: .token.json
	CachePath string

	// Authenticate performs the credential exchange (required).
	Authenticate AuthFunc

	// Logger receives token lifecycle events.
	// Default: slog.Default()
	Logger *slog.Logger

	// Now overrides the clock, for tests.
	Now func() time.Time
}

// Store owns the bearer token and its on-disk cache. Any number of
// workers may call Valid concurrently; at most one authentication
// exchange is ever in flight, and all callers waiting on it receive its
// result.
type Store struct {
	authenticate AuthFunc
	path         string
	log          *slog.Logger
	now          func() time.Time

	group singleflight.Group

	mu     sync.Mutex
	cur    *Token
	loaded bool // cache file consulted
	force  bool // next refresh must hit the API
}

// NewStore creates a token store. The cache file is read lazily on the
// first Valid call.
func NewStore(opts Options) *Store {
	if opts.CachePath == "" {
		opts.CachePath = ".token.json"
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Store{
		authenticate: opts.Authenticate,
		path:         opts.CachePath,
		log:          opts.Logger,
		now:          opts.Now,
	}
}

// Valid returns a usable token, refreshing it first if the cached one is
// missing or expired. Concurrent callers during a refresh share the
// single in-flight exchange.
func (s *Store) Valid(ctx context.Context) (Token, error) {
	if t, ok := s.cached(); ok {
		return t, nil
	}
	return s.refresh(ctx)
}

// ForceRefresh discards the current token and performs a fresh exchange.
// Used for forced re-auth runs and after the API rejects a token that the
// store still considered valid.
func (s *Store) ForceRefresh(ctx context.Context) (Token, error) {
	s.mu.Lock()
	s.force = true
	s.mu.Unlock()
	return s.refresh(ctx)
}

// ClearCache removes the persisted token, so the next run starts from a
// clean exchange.
func (s *Store) ClearCache() error {
	s.mu.Lock()
	s.cur = nil
	s.loaded = true
	s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove token cache: %w", err)
	}
	return nil
}

// cached returns the current token if it is valid and no forced refresh
// is pending. The cache file is consulted once, on first use.
func (s *Store) cached() (Token, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.force {
		return Token{}, false
	}
	if !s.loaded {
		s.loaded = true
		if t, err := loadToken(s.path); err == nil {
			if t.Valid(s.now()) {
				s.log.Info("using cached token", "expires_at", t.ExpiresAt)
				s.cur = &t
			} else {
				s.log.Warn("cached token expired", "expires_at", t.ExpiresAt)
			}
		} else if !os.IsNotExist(err) {
			s.log.Warn("token cache unreadable", "path", s.path, "err", err)
		}
	}
	if s.cur != nil && s.cur.Valid(s.now()) {
		return *s.cur, true
	}
	return Token{}, false
}

// refresh coalesces concurrent refresh requests into one exchange.
func (s *Store) refresh(ctx context.Context) (Token, error) {
	v, err, _ := s.group.Do("token", func() (any, error) {
		// A waiter queued behind a completed refresh must not trigger
		// another exchange.
		if t, ok := s.cached(); ok {
			return t, nil
		}

		s.log.Info("requesting new token")
		t, err := s.authenticate(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrAuthFailed, err)
		}

		// Persist before publishing, so a crash right after refresh does
		// not lose the token for the next run.
		if err := saveToken(s.path, t); err != nil {
			s.log.Warn("token cache not persisted", "err", err)
		}

		s.mu.Lock()
		s.cur = &t
		s.force = false
		s.mu.Unlock()

		s.log.Info("new token acquired", "expires_at", t.ExpiresAt)
		return t, nil
	})
	if err != nil {
		return Token{}, err
	}
	return v.(Token), nil
}
