package soar

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// countingProvider returns the standard profile after the gate opens.
type countingProvider struct {
	t     *testing.T
	calls int32
	gate  chan struct{}
	err   error
}

func (p *countingProvider) BuildProfile(ctx context.Context, lat, lon float64, at time.Time) (*AtmosphericProfile, error) {
	atomic.AddInt32(&p.calls, 1)
	if p.gate != nil {
		<-p.gate
	}
	if p.err != nil {
		return nil, p.err
	}
	return standardProfile(p.t, 0, 0), nil
}

func TestProfileCacheHit(t *testing.T) {
	provider := &countingProvider{t: t}
	c := NewProfileCache(provider, DefaultResolution, 0, 0)
	ctx := context.Background()
	p1, err := c.BuildProfile(ctx, 59.91, 10.74, testLaunch.Add(5*time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	// Same grid point, same hour.
	p2, err := c.BuildProfile(ctx, 59.95, 10.80, testLaunch.Add(50*time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	if p1 != p2 || provider.calls != 1 {
		t.Fatalf("expected a cache hit, got %d builds", provider.calls)
	}
	// Another hour and another grid point are misses.
	if _, err := c.BuildProfile(ctx, 59.91, 10.74, testLaunch.Add(90*time.Minute)); err != nil {
		t.Fatal(err)
	}
	if _, err := c.BuildProfile(ctx, 61, 10.74, testLaunch); err != nil {
		t.Fatal(err)
	}
	if provider.calls != 3 || c.Len() != 3 {
		t.Fatalf("expected 3 builds and entries, got %d and %d", provider.calls, c.Len())
	}
}

func TestProfileCacheSingleFlight(t *testing.T) {
	provider := &countingProvider{t: t, gate: make(chan struct{})}
	c := NewProfileCache(provider, DefaultResolution, 0, 0)
	var wg sync.WaitGroup
	profiles := make([]*AtmosphericProfile, 8)
	for i := range profiles {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p, err := c.BuildProfile(context.Background(), 60, 10.75, testLaunch)
			if err != nil {
				t.Error(err)
			}
			profiles[i] = p
		}(i)
	}
	// Let every goroutine reach the cache before the build completes.
	for atomic.LoadInt32(&provider.calls) == 0 {
		time.Sleep(time.Millisecond)
	}
	time.Sleep(10 * time.Millisecond)
	close(provider.gate)
	wg.Wait()
	if provider.calls != 1 {
		t.Fatalf("expected a single build, got %d", provider.calls)
	}
	for _, p := range profiles {
		if p != profiles[0] || p == nil {
			t.Fatal("callers did not share the profile")
		}
	}
}

func TestProfileCacheFailuresAndExpiry(t *testing.T) {
	provider := &countingProvider{t: t, err: Errorf(FetchError, "grid", "down")}
	c := NewProfileCache(provider, DefaultResolution, 0, time.Minute)
	now := testLaunch
	c.now = func() time.Time { return now }
	ctx := context.Background()
	if _, err := c.BuildProfile(ctx, 60, 10.75, testLaunch); !errors.Is(err, ErrFetch) {
		t.Fatalf("expected the fetch error, got %v", err)
	}
	if c.Len() != 0 {
		t.Fatal("failure was cached")
	}
	provider.err = nil
	if _, err := c.BuildProfile(ctx, 60, 10.75, testLaunch); err != nil {
		t.Fatal(err)
	}
	if _, err := c.BuildProfile(ctx, 60, 10.75, testLaunch); err != nil {
		t.Fatal(err)
	}
	if provider.calls != 2 {
		t.Fatalf("expected 2 builds, got %d", provider.calls)
	}
	now = now.Add(2 * time.Minute)
	if _, err := c.BuildProfile(ctx, 60, 10.75, testLaunch); err != nil {
		t.Fatal(err)
	}
	if provider.calls != 3 {
		t.Fatalf("expired entry was served, %d builds", provider.calls)
	}
}

// stallingProvider blocks its first build until the context is done.
type stallingProvider struct {
	t       *testing.T
	calls   int32
	started chan struct{}
}

func (p *stallingProvider) BuildProfile(ctx context.Context, lat, lon float64, at time.Time) (*AtmosphericProfile, error) {
	if atomic.AddInt32(&p.calls, 1) == 1 {
		close(p.started)
		<-ctx.Done()
		return nil, fmt.Errorf("fetching grid: %w", ctx.Err())
	}
	return standardProfile(p.t, 0, 0), nil
}

func TestProfileCacheCancelledBuild(t *testing.T) {
	provider := &stallingProvider{t: t, started: make(chan struct{})}
	c := NewProfileCache(provider, DefaultResolution, 0, 0)
	ctx, cancel := context.WithCancel(context.Background())
	leader := make(chan error, 1)
	go func() {
		_, err := c.BuildProfile(ctx, 60, 10.75, testLaunch)
		leader <- err
	}()
	<-provider.started
	waiter := make(chan error, 1)
	go func() {
		p, err := c.BuildProfile(context.Background(), 60, 10.75, testLaunch)
		if err == nil && p == nil {
			err = errors.New("no profile")
		}
		waiter <- err
	}()
	time.Sleep(10 * time.Millisecond)
	cancel()
	if err := <-leader; !errors.Is(err, context.Canceled) {
		t.Fatalf("leader: expected the cancellation, got %v", err)
	}
	if err := <-waiter; err != nil {
		t.Fatalf("a live caller got the cancellation of another: %s", err)
	}
	if provider.calls != 2 || c.Len() != 1 {
		t.Fatalf("expected a second build to be cached, got %d builds and %d entries", provider.calls, c.Len())
	}
}
