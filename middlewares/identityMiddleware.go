package middlewares

import (
	"net/http"
	"strconv"

	"bitbucket.org/nrsdigital/fieldaudit_backend/utils"
	"github.com/gin-gonic/gin"
)

// IdentityMiddleware copies the authenticated actor's identity from the
// upstream gateway headers into the request context. Authentication itself
// happens upstream; this service only consumes the result.
//
// Headers:
//
//	X-Department-Id  tenant scope (required for /api routes)
//	X-Actor-Id       numeric user id
//	X-Actor-Name     display name for event attribution
//	X-Actor-Role     analyst | manager | admin
//	X-Timezone       optional IANA timezone override
func IdentityMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		departmentHeader := c.GetHeader("X-Department-Id")
		if departmentHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing department"})
			c.Abort()
			return
		}
		departmentId, err := strconv.Atoi(departmentHeader)
		if err != nil || departmentId <= 0 {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid department"})
			c.Abort()
			return
		}
		ctx = utils.SetDepartmentIdInContext(ctx, departmentId)

		if v := c.GetHeader("X-Actor-Id"); v != "" {
			if userId, err := strconv.Atoi(v); err == nil {
				ctx = utils.SetUserIdInContext(ctx, userId)
			}
		}
		if v := c.GetHeader("X-Actor-Name"); v != "" {
			ctx = utils.SetUserNameInContext(ctx, v)
		}
		if v := c.GetHeader("X-Actor-Role"); v != "" {
			ctx = utils.SetUserRoleInContext(ctx, v)
		}
		if v := c.GetHeader("X-Timezone"); v != "" {
			ctx = utils.SetTimezoneInContext(ctx, v)
		}

		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
