package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"echo-link-go/pkg/token"
)

// BotAuthMiddleware 校验 Discord 机器人携带的共享密钥。
// 机器人调用 /discord 下的接口时必须带 Bearer 形式的 bot token。
func BotAuthMiddleware(botToken string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if botToken == "" {
			// 未配置密钥时直接拒绝，避免意外开放机器人接口
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "bot_not_configured"})
			return
		}

		provided, ok := bearerToken(c)
		if !ok || !token.Equal(provided, botToken) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		c.Next()
	}
}
