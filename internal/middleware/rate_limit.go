package middleware

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"echo-link-go/pkg/database"
	"echo-link-go/pkg/log"
)

// EmailRateLimiter 基于 Redis 的固定窗口限流，按请求体中的邮箱计数。
// 用于防止魔法链接接口被用来轰炸某个邮箱。
func EmailRateLimiter(maxPerHour int) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body struct {
			Email string `json:"email"`
		}
		if err := c.ShouldBindBodyWithJSON(&body); err != nil || body.Email == "" {
			// 参数问题交给 handler 统一处理
			c.Next()
			return
		}

		email := strings.ToLower(strings.TrimSpace(body.Email))
		key := fmt.Sprintf("ratelimit:magiclink:%s", email)

		count, err := database.RDB.Incr(c.Request.Context(), key).Result()
		if err != nil {
			// Redis 不可用时放行，限流是保护措施而不是功能前提
			log.Warnf("[RateLimiter] Redis 计数失败, 跳过限流: %v", err)
			c.Next()
			return
		}
		if count == 1 {
			_ = database.RDB.Expire(c.Request.Context(), key, time.Hour).Err()
		}

		if count > int64(maxPerHour) {
			log.Warnf("[RateLimiter] 邮箱 %s 触发魔法链接限流 (%d/h)", email, count)
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":   "rate_limited",
				"message": "Trop de demandes de connexion. Réessaie dans une heure.",
			})
			return
		}

		c.Next()
	}
}
