package middleware

import (
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strconv"
	"time"

	echo "github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
)

// RateLimitConfig config for Redis-based RPS limiter.
type RateLimitConfig struct {
	Redis          redis.UniversalClient
	RPS            int           // requests per window; <= 0 disables
	KeyPrefix      string        // e.g. "rl:api:"
	Window         time.Duration // usually 1s
	RetryAfterHint bool          // set Retry-After header when limited
	Now            func() time.Time
}

// RateLimitMiddleware applies a fixed-window limit per caller: the API key set
// by APIKeyMiddleware when present, the client IP otherwise. Redis errors fail open.
func RateLimitMiddleware(cfg RateLimitConfig) echo.MiddlewareFunc {
	if cfg.Window <= 0 {
		cfg.Window = time.Second
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "rl:api:"
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if cfg.RPS <= 0 || cfg.Redis == nil {
				// no limit configured or redis missing (dev): allow
				return next(c)
			}

			caller := "ip:" + c.RealIP()
			if key, ok := ClientKeyFromCtx(c); ok {
				sum := sha256.Sum256([]byte(key))
				caller = "key:" + hex.EncodeToString(sum[:8])
			}

			// fixed-window key: rl:api:{caller}:{window index}
			now := cfg.Now()
			slot := now.UnixNano() / int64(cfg.Window)
			key := cfg.KeyPrefix + caller + ":" + strconv.FormatInt(slot, 10)

			ctx := c.Request().Context()
			pipe := cfg.Redis.Pipeline()
			cnt := pipe.Incr(ctx, key)
			pipe.Expire(ctx, key, cfg.Window*2)
			if _, err := pipe.Exec(ctx); err != nil {
				return next(c)
			}

			if cnt.Val() > int64(cfg.RPS) {
				if cfg.RetryAfterHint {
					remain := cfg.Window - time.Duration(now.UnixNano()%int64(cfg.Window))
					secs := int((remain + time.Second - 1) / time.Second)
					c.Response().Header().Set("Retry-After", strconv.Itoa(secs))
				}
				return c.JSON(http.StatusTooManyRequests, map[string]any{"success": false, "error": "rate limited"})
			}
			return next(c)
		}
	}
}
