package ratelimit

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultPrefix  = "ratelimit:"
	defaultTimeout = 100 * time.Millisecond
)

type RedisOption func(*RedisLimiter)

func WithPrefix(prefix string) RedisOption {
	return func(l *RedisLimiter) {
		l.prefix = prefix
	}
}

func WithTimeout(d time.Duration) RedisOption {
	return func(l *RedisLimiter) {
		l.timeout = d
	}
}

func WithLogger(logger *slog.Logger) RedisOption {
	return func(l *RedisLimiter) {
		l.logger = logger
	}
}

// RedisLimiter shares counters between gateway replicas through Redis.
type RedisLimiter struct {
	client  redis.Cmdable
	prefix  string
	timeout time.Duration
	now     func() time.Time
	logger  *slog.Logger
}

func NewRedisLimiter(client redis.Cmdable, opts ...RedisOption) *RedisLimiter {
	l := &RedisLimiter{
		client:  client,
		prefix:  defaultPrefix,
		timeout: defaultTimeout,
		now:     time.Now,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// Admit increments the window counter and reports whether it is within maxRequests.
// Redis errors admit the request.
func (l *RedisLimiter) Admit(ctx context.Context, identity, routeClass string, maxRequests int, win time.Duration) bool {
	const op = "ratelimit.RedisLimiter.Admit"

	if maxRequests <= 0 || win <= 0 {
		return true
	}

	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	key := counterKey(l.prefix, routeClass, identity, windowStart(l.now(), win))

	var incr *redis.IntCmd
	_, err := l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		pipe.Expire(ctx, key, win)
		return nil
	})
	if err != nil {
		l.logger.Warn("rate limit counter unavailable, admitting request",
			slog.String("op", op),
			slog.String("route_class", routeClass),
			slog.Any("err", err),
		)
		return true
	}

	return incr.Val() <= int64(maxRequests)
}
