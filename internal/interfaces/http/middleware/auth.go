// Package middleware 提供 HTTP 中间件
package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"ai-tutor-api/internal/interfaces/http/dto"
	apperrors "ai-tutor-api/pkg/errors"
	"ai-tutor-api/pkg/logger"
	"ai-tutor-api/pkg/utils"
)

// AuthConfig 认证配置
type AuthConfig struct {
	Secret string
	Issuer string
	// SkipPaths 按前缀跳过认证的路径
	SkipPaths []string
}

// Auth JWT 认证中间件。令牌由外部认证服务签发，这里只校验并注入 user_id 与 role。
func Auth(cfg AuthConfig) gin.HandlerFunc {
	jwtManager := utils.NewJWTManager(cfg.Secret, cfg.Issuer)

	return func(c *gin.Context) {
		for _, path := range cfg.SkipPaths {
			if strings.HasPrefix(c.Request.URL.Path, path) {
				c.Next()
				return
			}
		}

		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abortWithAppError(c, apperrors.ErrTokenMissing)
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			abortWithAppError(c, apperrors.ErrTokenInvalid.WithDetail("invalid authorization format"))
			return
		}

		claims, err := jwtManager.ParseToken(parts[1])
		if err != nil {
			if errors.Is(err, utils.ErrExpiredToken) {
				abortWithAppError(c, apperrors.ErrTokenExpired)
				return
			}
			abortWithAppError(c, apperrors.ErrTokenInvalid)
			return
		}
		if claims.Type != "access" || claims.UserID == "" {
			abortWithAppError(c, apperrors.ErrTokenInvalid.WithDetail("invalid token type"))
			return
		}

		c.Set("user_id", claims.UserID)
		c.Set("role", claims.Role)

		ctx := logger.WithContext(c.Request.Context(), logger.UserIDKey, claims.UserID)
		ctx = logger.WithContext(ctx, logger.AccountIDKey, claims.UserID)
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

// abortWithAppError 以统一错误结构终止请求
func abortWithAppError(c *gin.Context, appErr *apperrors.AppError) {
	status := appErr.HTTPStatus
	if status == 0 {
		status = http.StatusInternalServerError
	}
	c.Set(dto.ErrorCodeKey, string(appErr.Code))
	c.AbortWithStatusJSON(status, gin.H{
		"code":    status,
		"message": appErr.Message,
		"error": gin.H{
			"error_code": string(appErr.Code),
			"details":    appErr.Detail,
		},
		"trace_id": c.GetString("trace_id"),
	})
}

// DefaultSkipPaths 默认跳过认证的路径
var DefaultSkipPaths = []string{
	"/health",
	"/ready",
	"/live",
	"/metrics",
	"/v1/payments/webhook",
}
