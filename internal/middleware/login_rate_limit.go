package middleware

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/branchline/accounts/internal/identity"
)

// LoginRateLimit limits login attempts per email, or per IP when the body has
// no email. Redis counts attempts when available; otherwise an in-process
// token bucket per key is used. maxPerMin <= 0 disables the limiter.
func LoginRateLimit(cache *redis.Client, maxPerMin int, logger *slog.Logger) fiber.Handler {
	if maxPerMin <= 0 {
		return func(c *fiber.Ctx) error { return c.Next() }
	}
	local := newLocalLimiter(maxPerMin)
	return func(c *fiber.Ctx) error {
		var req struct {
			Email string `json:"email"`
		}
		_ = c.BodyParser(&req)
		key := identity.NormalizeEmail(req.Email)
		if key == "" {
			key = c.IP()
		}

		if cache == nil {
			if !local.allow(key) {
				return fiber.NewError(http.StatusTooManyRequests, "Too many login attempts, try again later")
			}
			return c.Next()
		}

		redisKey := "rl:login:" + key
		cnt, err := cache.Incr(c.UserContext(), redisKey).Result()
		if err != nil {
			logger.Warn("login limiter unavailable", slog.Any("error", err))
			return c.Next() // fail open
		}
		if cnt == 1 {
			cache.Expire(c.UserContext(), redisKey, time.Minute)
		}
		if cnt > int64(maxPerMin) {
			return fiber.NewError(http.StatusTooManyRequests, "Too many login attempts, try again later")
		}
		return c.Next()
	}
}

type localEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// localLimiter keeps one token bucket per key. A bucket idle for a full
// window has refilled and is dropped on the next insert.
type localLimiter struct {
	mu      sync.Mutex
	perMin  int
	entries map[string]*localEntry
	now     func() time.Time
}

func newLocalLimiter(perMin int) *localLimiter {
	return &localLimiter{perMin: perMin, entries: make(map[string]*localEntry), now: time.Now}
}

func (l *localLimiter) allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	entry, ok := l.entries[key]
	if !ok {
		for k, e := range l.entries {
			if now.Sub(e.lastSeen) >= time.Minute {
				delete(l.entries, k)
			}
		}
		entry = &localEntry{limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(l.perMin)), l.perMin)}
		l.entries[key] = entry
	}
	entry.lastSeen = now
	return entry.limiter.AllowN(now, 1)
}
