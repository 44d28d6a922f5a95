package serverutils

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/patrickmn/go-cache"
)

// GuestRateLimiter enforces a fixed per-minute request window for
// unauthenticated traffic, keyed by client IP. Authenticated users pass
// through untouched.
type GuestRateLimiter struct {
	counters *cache.Cache
	limit    int
}

func NewGuestRateLimiter(perMinute int) *GuestRateLimiter {
	if perMinute <= 0 {
		perMinute = 10
	}
	return &GuestRateLimiter{
		counters: cache.New(time.Minute, 5*time.Minute),
		limit:    perMinute,
	}
}

func (rl *GuestRateLimiter) Middleware() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		if UserFromContext(ctx).IsAuthenticated() {
			return ctx.Next()
		}

		key := "rl:" + ctx.IP()
		count, err := rl.counters.IncrementInt(key, 1)
		if err != nil {
			rl.counters.Set(key, 1, cache.DefaultExpiration)
			count = 1
		}
		if count > rl.limit {
			return ctx.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"message": "Too many requests, please slow down",
			})
		}
		return ctx.Next()
	}
}
