package middlewares

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// WindowCounter increments key and returns the hits seen in the current window.
// The window starts with the first hit.
type WindowCounter interface {
	Hit(ctx context.Context, key string, window time.Duration) (int64, error)
}

// incrWithExpiry sets the expiry in the same step as the first increment, so
// a key can never be left without a TTL.
var incrWithExpiry = redis.NewScript(`
local n = redis.call("INCR", KEYS[1])
if n == 1 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return n
`)

type redisCounter struct {
	client redis.Scripter
}

func (r redisCounter) Hit(ctx context.Context, key string, window time.Duration) (int64, error) {
	return incrWithExpiry.Run(ctx, r.client, []string{key}, window.Milliseconds()).Int64()
}

// RateLimiter is a fixed window request counter per client IP kept in redis.
type RateLimiter struct {
	counter WindowCounter
	limit   int64
	window  time.Duration
}

func NewRateLimiter(client *redis.Client, limit int64, window time.Duration) *RateLimiter {
	return NewRateLimiterWithCounter(redisCounter{client: client}, limit, window)
}

func NewRateLimiterWithCounter(counter WindowCounter, limit int64, window time.Duration) *RateLimiter {
	return &RateLimiter{
		counter: counter,
		limit:   limit,
		window:  window,
	}
}

func (rl *RateLimiter) key(c *gin.Context) string {
	return "ratelimit:" + c.ClientIP()
}

// Middleware lets requests through when redis cannot be reached.
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		count, err := rl.counter.Hit(c.Request.Context(), rl.key(c), rl.window)
		if err != nil {
			_ = c.Error(err)
			c.Next()
			return
		}

		if count > rl.limit {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": fmt.Sprintf("Rate limit exceeded. Try again in %d seconds", int(rl.window.Seconds())),
			})
			return
		}
		c.Next()
	}
}
