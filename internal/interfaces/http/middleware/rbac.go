package middleware

import (
	"github.com/gin-gonic/gin"

	"ai-tutor-api/internal/domain/entity"
	apperrors "ai-tutor-api/pkg/errors"
)

// RequireRole 角色检查中间件
// 检查当前用户是否为指定角色之一，否则返回 403
func RequireRole(roles ...entity.UserRole) gin.HandlerFunc {
	roleSet := make(map[entity.UserRole]bool, len(roles))
	for _, r := range roles {
		roleSet[r] = true
	}

	return func(c *gin.Context) {
		roleStr := c.GetString("role")
		if roleStr == "" {
			abortWithAppError(c, apperrors.ErrForbidden.WithDetail("missing role in context"))
			return
		}
		if !roleSet[entity.UserRole(roleStr)] {
			abortWithAppError(c, apperrors.ErrForbidden.WithDetail("role not allowed"))
			return
		}
		c.Next()
	}
}

// RequireAdmin 管理员权限检查中间件
func RequireAdmin() gin.HandlerFunc {
	return RequireRole(entity.UserRoleAdmin)
}
