package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"echo-link-go/internal/model"
	"echo-link-go/internal/service"
)

// Gin 上下文中存放鉴权结果的键
const (
	ContextUserKey     = "auth_user"
	ContextIdentityKey = "auth_identity"
	ContextAccountKey  = "auth_account_id"
)

// AuthMiddleware 创建一个 Gin 中间件，用上传令牌完成认证。
// 认证通过后会解析出用户的 web 上传身份与所属账户，一并存入上下文。
func AuthMiddleware(userSvc service.UserService, identitySvc service.IdentityService) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, ok := bearerToken(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		user, err := userSvc.GetUserByUploadToken(tokenString)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		// web 身份的 external_id 是用户 ID，展示名用邮箱，
		// 这样新用户在第一次鉴权时就会获得身份与账户
		identity, err := identitySvc.Resolve(model.IdentityKindWeb, user.ID, user.Email, nil)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "identity_resolution_failed"})
			return
		}

		c.Set(ContextUserKey, user)
		c.Set(ContextIdentityKey, identity)
		c.Set(ContextAccountKey, identity.AccountID)
		c.Next()
	}
}

// bearerToken 从 Authorization 头中提取 Bearer 令牌。
func bearerToken(c *gin.Context) (string, bool) {
	authHeader := c.GetHeader("Authorization")
	const bearerPrefix = "Bearer "
	if !strings.HasPrefix(authHeader, bearerPrefix) {
		return "", false
	}
	tokenString := strings.TrimPrefix(authHeader, bearerPrefix)
	if tokenString == "" {
		return "", false
	}
	return tokenString, true
}

// CurrentUser 从上下文中取出已认证的用户。
func CurrentUser(c *gin.Context) *model.User {
	if v, ok := c.Get(ContextUserKey); ok {
		if user, ok := v.(*model.User); ok {
			return user
		}
	}
	return nil
}

// CurrentIdentity 从上下文中取出已认证用户的上传身份。
func CurrentIdentity(c *gin.Context) *model.UploadIdentity {
	if v, ok := c.Get(ContextIdentityKey); ok {
		if identity, ok := v.(*model.UploadIdentity); ok {
			return identity
		}
	}
	return nil
}

// CurrentAccountID 从上下文中取出已认证用户的账户 ID。
func CurrentAccountID(c *gin.Context) string {
	return c.GetString(ContextAccountKey)
}
