package middleware

import (
	"context"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"ai-tutor-api/internal/infrastructure/persistence/redis"
	apperrors "ai-tutor-api/pkg/errors"
	"ai-tutor-api/pkg/logger"
)

// RateLimitLimitHeader 窗口内允许的请求数
const RateLimitLimitHeader = "X-RateLimit-Limit"

// RateLimitConfig 限流配置
type RateLimitConfig struct {
	Enabled  bool
	Requests int
	Window   time.Duration
}

// RateLimiter 限流器接口
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// RateLimit 按账户与路由限流，用于会触发模型调用的接口
func RateLimit(cfg RateLimitConfig, limiter RateLimiter) gin.HandlerFunc {
	if !cfg.Enabled || limiter == nil {
		return func(c *gin.Context) {
			c.Next()
		}
	}
	if cfg.Requests <= 0 {
		cfg.Requests = 20
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}

	limitValue := strconv.Itoa(cfg.Requests)
	retryAfter := strconv.Itoa(int((cfg.Window + time.Second - 1) / time.Second))

	return func(c *gin.Context) {
		c.Header(RateLimitLimitHeader, limitValue)
		accountID := c.GetString("user_id")
		if accountID == "" {
			accountID = "anonymous"
		}
		key := redis.BuildAccountRateLimitKey(accountID, c.FullPath())

		allowed, err := limiter.Allow(c.Request.Context(), key, cfg.Requests, cfg.Window)
		if err != nil {
			// 限流器故障时放行
			logger.Warn(c.Request.Context(), "rate limiter unavailable", "error", err.Error())
			c.Next()
			return
		}
		if !allowed {
			c.Header("Retry-After", retryAfter)
			abortWithAppError(c, apperrors.ErrTooManyRequests)
			return
		}

		c.Next()
	}
}
