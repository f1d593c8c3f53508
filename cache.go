package soar

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/BlastBlastBlast/soar-sub000/metrics"
)

const (
	// DefaultValidityWindow is the span of launch times sharing one cached profile.
	DefaultValidityWindow = time.Hour
	// DefaultCacheTTL is how long a cached profile is kept.
	DefaultCacheTTL = 30 * time.Minute
)

type cacheKey struct {
	loc    gridKey
	window int64 // unix start of the validity window
}

// cacheEntry is shared by all the callers of one key; profile and err are set before done closes.
type cacheEntry struct {
	done    chan struct{}
	profile *AtmosphericProfile
	err     error
	expires time.Time
}

// ProfileCache memoizes the profiles of a provider by rounded location and validity window.
// Concurrent requests of the same key trigger a single build. Failed builds are not cached.
type ProfileCache struct {
	provider ProfileProvider
	res      Resolution
	window   time.Duration
	ttl      time.Duration
	now      func() time.Time

	mu      sync.Mutex
	entries map[cacheKey]*cacheEntry
}

// NewProfileCache returns a cache in front of provider. Zero durations use the defaults.
func NewProfileCache(provider ProfileProvider, res Resolution, window, ttl time.Duration) *ProfileCache {
	if res.Lat <= 0 || res.Lon <= 0 {
		res = DefaultResolution
	}
	if window <= 0 {
		window = DefaultValidityWindow
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &ProfileCache{provider: provider, res: res, window: window, ttl: ttl, now: time.Now, entries: make(map[cacheKey]*cacheEntry)}
}

// BuildProfile implements the ProfileProvider interface. A caller waiting on a build that was
// cancelled builds the profile itself.
func (c *ProfileCache) BuildProfile(ctx context.Context, lat, lon float64, t time.Time) (*AtmosphericProfile, error) {
	slat, slon := c.res.Snap(lat, lon)
	key := cacheKey{keyOf(slat, slon), t.Truncate(c.window).Unix()}

	for {
		c.mu.Lock()
		now := c.now()
		c.evict(now)
		e, ok := c.entries[key]
		if !ok {
			e = &cacheEntry{done: make(chan struct{}), expires: now.Add(c.ttl)}
			c.entries[key] = e
			c.mu.Unlock()
			metrics.RecordCacheLookup(false)
			return c.build(ctx, key, e, lat, lon, t)
		}
		c.mu.Unlock()
		metrics.RecordCacheLookup(true)
		select {
		case <-e.done:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		if isCanceled(e.err) && ctx.Err() == nil {
			continue
		}
		return e.profile, e.err
	}
}

func (c *ProfileCache) build(ctx context.Context, key cacheKey, e *cacheEntry, lat, lon float64, t time.Time) (*AtmosphericProfile, error) {
	e.profile, e.err = c.provider.BuildProfile(ctx, lat, lon, t)
	if e.err != nil {
		// Removed before done closes so that retrying waiters start a new build.
		c.mu.Lock()
		if c.entries[key] == e {
			delete(c.entries, key)
		}
		c.mu.Unlock()
	}
	close(e.done)
	return e.profile, e.err
}

func isCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// Len returns the number of cached (or in flight) profiles.
func (c *ProfileCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// evict drops the expired entries, the lock must be held.
func (c *ProfileCache) evict(now time.Time) {
	for k, e := range c.entries {
		if now.After(e.expires) {
			delete(c.entries, k)
		}
	}
}
