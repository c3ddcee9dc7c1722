package cmd

import (
	"fmt"
	"strings"

	"github.com/BolajiAyodeji/lightning/pkg/limiter"
)

// NewLimiter selects an admission limiter from the limiter URL. redis://
// URLs get the Redis-backed rate limiter with the given per-project quota;
// an empty URL disables admission control.
func NewLimiter(limiterURL string, quota int64) (limiter.Limiter, error) {
	if strings.HasPrefix(limiterURL, "redis://") {
		redisLimiter, err := limiter.NewRedisLimiter(limiterURL, quota)
		if err != nil {
			return nil, fmt.Errorf("failed to create Redis limiter: %w", err)
		}

		return redisLimiter, nil
	}

	return limiter.Unlimited{}, nil
}
