package limiter

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	redis "github.com/redis/go-redis/v9"
)

const defaultWindow = 24 * time.Hour

// RedisLimiter enforces a fixed-window usage quota per project and action,
// counted in Redis so every instance shares the same budget.
type RedisLimiter struct {
	client redis.UniversalClient
	quota  int64
	window time.Duration
}

// NewRedisLimiter creates a limiter from a redis URL. quota is the number of
// admitted units per project per window.
func NewRedisLimiter(url string, quota int64) (*RedisLimiter, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}

	return &RedisLimiter{
		client: redis.NewClient(opts),
		quota:  quota,
		window: defaultWindow,
	}, nil
}

// NewRedisLimiterWithClient creates a limiter over an existing client.
func NewRedisLimiterWithClient(client redis.UniversalClient, quota int64, window time.Duration) *RedisLimiter {
	if window <= 0 {
		window = defaultWindow
	}

	return &RedisLimiter{
		client: client,
		quota:  quota,
		window: window,
	}
}

func (l *RedisLimiter) key(req Request, windowStart int64) string {
	return fmt.Sprintf("lightning:usage:%s:%s:%d", req.ProjectID, req.Action, windowStart)
}

func (l *RedisLimiter) Check(ctx context.Context, req Request) error {
	if req.Amount <= 0 {
		return nil
	}

	windowStart := time.Now().UTC().Truncate(l.window).Unix()
	key := l.key(req, windowStart)

	used, err := l.client.IncrBy(ctx, key, int64(req.Amount)).Result()
	if err != nil {
		return fmt.Errorf("failed to record usage: %w", err)
	}

	// First writer in the window sets the expiry. A counter without a TTL
	// would deny forever once exhausted, so this failure is not recoverable.
	if used == int64(req.Amount) {
		err = l.client.Expire(ctx, key, l.window).Err()
		if err != nil {
			return fmt.Errorf("failed to set usage window expiry: %w", err)
		}
	}

	if used > l.quota {
		// Refund so a denied request does not consume budget.
		err = l.client.DecrBy(ctx, key, int64(req.Amount)).Err()
		if err != nil {
			slog.WarnContext(ctx, "failed to refund denied usage", "key", key, "error", err)
		}

		return &DeniedError{
			Action:    req.Action,
			ProjectID: req.ProjectID,
			Requested: req.Amount,
			Message:   fmt.Sprintf("quota of %d exceeded", l.quota),
		}
	}

	return nil
}
