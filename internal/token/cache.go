package token

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// DefaultRefreshSkew is how long before expiry a token is replaced.
const DefaultRefreshSkew = 5 * time.Minute

// Cache hands out a valid access token, refreshing it when it is close to
// expiry. Concurrent callers that find the token stale share one refresh.
type Cache struct {
	key     Key
	fetcher Fetcher
	store   Persister
	skew    time.Duration
	logger  *slog.Logger
	now     func() time.Time

	mu          sync.RWMutex
	current     Token
	currentSkew time.Duration
	bypassStore bool
	group       singleflight.Group
}

// CacheOption customizes a Cache.
type CacheOption func(*Cache)

// WithStore persists tokens so restarts reuse them until expiry.
func WithStore(p Persister) CacheOption {
	return func(c *Cache) { c.store = p }
}

// WithRefreshSkew overrides DefaultRefreshSkew.
func WithRefreshSkew(d time.Duration) CacheOption {
	return func(c *Cache) { c.skew = d }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) CacheOption {
	return func(c *Cache) { c.now = now }
}

// NewCache creates a cache for key backed by fetcher.
func NewCache(key Key, fetcher Fetcher, logger *slog.Logger, opts ...CacheOption) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Cache{
		key:     key,
		fetcher: fetcher,
		skew:    DefaultRefreshSkew,
		logger:  logger,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns a token that stays valid for at least the refresh skew, or half
// its lifetime when that is shorter.
func (c *Cache) Get(ctx context.Context) (string, error) {
	tok, err := c.Token(ctx)
	if err != nil {
		return "", err
	}
	return tok.Value, nil
}

// Token is like Get but also returns the expiry.
func (c *Cache) Token(ctx context.Context) (Token, error) {
	c.mu.RLock()
	tok, skew := c.current, c.currentSkew
	c.mu.RUnlock()
	if tok.Fresh(c.now(), skew) {
		return tok, nil
	}

	// The shared refresh outlives any single caller's cancellation.
	ch := c.group.DoChan(c.key.String(), func() (any, error) {
		return c.refresh(context.WithoutCancel(ctx))
	})
	select {
	case <-ctx.Done():
		return Token{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return Token{}, res.Err
		}
		return res.Val.(Token), nil
	}
}

// Invalidate drops the in-memory token, e.g. after the platform reports it
// expired early. The next Get fetches a new one.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.current = Token{}
	c.bypassStore = true
	c.mu.Unlock()
}

func (c *Cache) refresh(ctx context.Context) (Token, error) {
	c.mu.RLock()
	tok, skew, bypass := c.current, c.currentSkew, c.bypassStore
	c.mu.RUnlock()
	if tok.Fresh(c.now(), skew) {
		return tok, nil
	}

	if c.store != nil && !bypass {
		stored, ok, err := c.store.Load(ctx, c.key)
		if err != nil {
			c.logger.Warn("failed to load stored access token", "key", c.key.String(), "error", err)
		} else if ok && stored.Fresh(c.now(), c.skew) {
			c.set(stored, c.skew)
			c.logger.Debug("access token restored", "key", c.key.String(), "expires_at", stored.ExpiresAt)
			return stored, nil
		}
	}

	fresh, err := c.fetcher.Fetch(ctx)
	if err != nil {
		return Token{}, fmt.Errorf("refresh access token for %s: %w", c.key, err)
	}
	skew = c.skewFor(fresh)
	c.set(fresh, skew)
	c.logger.Info("access token refreshed", "key", c.key.String(), "expires_at", fresh.ExpiresAt)

	if c.store != nil {
		if err := c.store.Save(ctx, c.key, fresh); err != nil {
			c.logger.Warn("failed to persist access token", "key", c.key.String(), "error", err)
		}
	}
	return fresh, nil
}

// skewFor caps the refresh skew at half the token's remaining lifetime.
func (c *Cache) skewFor(tok Token) time.Duration {
	half := tok.ExpiresAt.Sub(c.now()) / 2
	if half < c.skew {
		c.logger.Debug("refresh skew exceeds token lifetime, capping", "key", c.key.String(), "skew", c.skew, "capped", half)
		return max(half, 0)
	}
	return c.skew
}

func (c *Cache) set(tok Token, skew time.Duration) {
	c.mu.Lock()
	c.current = tok
	c.currentSkew = skew
	c.bypassStore = false
	c.mu.Unlock()
}

// Run refreshes the token ahead of need until ctx is done, so request paths
// rarely wait on the control API.
func (c *Cache) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := c.Token(ctx); err != nil && ctx.Err() == nil {
			c.logger.Warn("access token refresh failed", "key", c.key.String(), "error", err)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
