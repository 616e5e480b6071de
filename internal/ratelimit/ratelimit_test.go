package ratelimit

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newMemoryLimiter(t testing.TB) (*MemoryLimiter, *fakeClock) {
	t.Helper()

	clock := &fakeClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	l := NewMemoryLimiter()
	l.now = clock.Now

	return l, clock
}

func TestMemoryLimiter_Admit(t *testing.T) {
	t.Run("sixth call in window is refused", func(t *testing.T) {
		l, clock := newMemoryLimiter(t)

		for i := 0; i < 5; i++ {
			assert.True(t, l.Admit(context.Background(), "1.2.3.4", RouteContinue, 5, time.Minute), "call %d", i+1)
		}
		assert.False(t, l.Admit(context.Background(), "1.2.3.4", RouteContinue, 5, time.Minute))

		clock.Advance(59 * time.Second)
		assert.False(t, l.Admit(context.Background(), "1.2.3.4", RouteContinue, 5, time.Minute))

		clock.Advance(time.Second)
		assert.True(t, l.Admit(context.Background(), "1.2.3.4", RouteContinue, 5, time.Minute))
	})

	t.Run("route classes do not share quota", func(t *testing.T) {
		l, _ := newMemoryLimiter(t)

		for i := 0; i < 3; i++ {
			assert.True(t, l.Admit(context.Background(), "ip", RouteRedirect, 3, time.Minute))
		}
		assert.False(t, l.Admit(context.Background(), "ip", RouteRedirect, 3, time.Minute))
		assert.True(t, l.Admit(context.Background(), "ip", RouteContinue, 3, time.Minute))
		assert.True(t, l.Admit(context.Background(), "other-ip", RouteRedirect, 3, time.Minute))
	})

	t.Run("disabled limit admits", func(t *testing.T) {
		l, _ := newMemoryLimiter(t)

		for i := 0; i < 10; i++ {
			assert.True(t, l.Admit(context.Background(), "ip", RouteAPI, 0, time.Minute))
			assert.True(t, l.Admit(context.Background(), "ip", RouteAPI, 1, 0))
		}
	})

	t.Run("concurrent admissions respect the quota", func(t *testing.T) {
		l, _ := newMemoryLimiter(t)

		var admitted atomic.Int64
		var wg sync.WaitGroup
		for i := 0; i < 200; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if l.Admit(context.Background(), "ip", RouteRedirect, 50, time.Minute) {
					admitted.Add(1)
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, int64(50), admitted.Load())
	})

	t.Run("stale windows are pruned", func(t *testing.T) {
		l, clock := newMemoryLimiter(t)

		l.Admit(context.Background(), "stale", RouteRedirect, 5, time.Second)
		clock.Advance(2 * time.Second)

		for i := 0; i < pruneEvery; i++ {
			l.Admit(context.Background(), "fresh", RouteRedirect, 5, time.Minute)
		}

		l.mu.Lock()
		defer l.mu.Unlock()
		_, ok := l.windows[RouteRedirect+":stale"]
		assert.False(t, ok)
	})
}

func TestRedisLimiter_FailsOpen(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() {
		client.Close()
	})

	l := NewRedisLimiter(client, WithTimeout(200*time.Millisecond))

	for i := 0; i < 10; i++ {
		assert.True(t, l.Admit(context.Background(), "ip", RouteContinue, 1, time.Minute))
	}
}

func TestLimit_Enabled(t *testing.T) {
	assert.True(t, Limit{MaxRequests: 5, Window: time.Minute}.Enabled())
	assert.False(t, Limit{MaxRequests: 0, Window: time.Minute}.Enabled())
	assert.False(t, Limit{MaxRequests: 5}.Enabled())
}

func TestCounterKey(t *testing.T) {
	start := time.Unix(1700000040, 0)

	assert.Equal(t, "ratelimit:continue:1.2.3.4:1700000040", counterKey(defaultPrefix, RouteContinue, "1.2.3.4", start))
	assert.Equal(t, time.Unix(1700000040, 0).UTC(), windowStart(time.Unix(1700000059, 0), time.Minute).UTC())
}
