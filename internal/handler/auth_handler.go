// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"errors"
	"fmt"
	"html"
	"net/http"
	"regexp"

	"echo-link-go/internal/service"
	"echo-link-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// AuthHandler 负责魔法链接登录相关的 API 请求。
type AuthHandler struct {
	userService service.UserService
}

// NewAuthHandler 创建一个新的 AuthHandler 实例。
func NewAuthHandler(userService service.UserService) *AuthHandler {
	return &AuthHandler{userService: userService}
}

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// MagicLinkRequest 定义了请求魔法链接 API 的请求体结构。
type MagicLinkRequest struct {
	Email string `json:"email"`
}

// RequestMagicLink 处理登录链接的发送请求。
// 用户不存在时自动注册，响应不区分新老用户。
func (h *AuthHandler) RequestMagicLink(c *gin.Context) {
	var req MagicLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Email == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email_required"})
		return
	}

	if !emailPattern.MatchString(req.Email) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_email"})
		return
	}

	normalized, err := h.userService.RequestMagicLink(req.Email)
	if err != nil {
		log.Errorf("RequestMagicLink: failed for '%s', error: %v", req.Email, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}

	log.Infof("Magic link requested for %s", normalized)
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "magic_link_sent",
		"email":   normalized,
	})
}

// VerifyMagicLink 消费魔法链接并以 HTML 页面返回结果。
// 成功页面内嵌新签发的上传令牌，由前端脚本取走。
func (h *AuthHandler) VerifyMagicLink(c *gin.Context) {
	magicToken := c.Query("token")
	if magicToken == "" {
		c.Data(http.StatusBadRequest, "text/html; charset=utf-8",
			[]byte(renderAuthErrorPage("Lien invalide", "Le lien de connexion est invalide.")))
		return
	}

	deviceInfo := c.GetHeader("User-Agent")
	if deviceInfo == "" {
		deviceInfo = "Unknown device"
	}

	uploadToken, user, err := h.userService.VerifyMagicLink(magicToken, deviceInfo)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrMagicLinkNotFound):
			c.Data(http.StatusNotFound, "text/html; charset=utf-8",
				[]byte(renderAuthErrorPage("Lien introuvable", "Le lien de connexion est invalide ou a expiré.")))
		case errors.Is(err, service.ErrMagicLinkUsed):
			c.Data(http.StatusBadRequest, "text/html; charset=utf-8",
				[]byte(renderAuthErrorPage("Lien invalide", "Ce lien a déjà été utilisé.")))
		case errors.Is(err, service.ErrMagicLinkExpired):
			c.Data(http.StatusBadRequest, "text/html; charset=utf-8",
				[]byte(renderAuthErrorPage("Lien invalide", "Ce lien a expiré.")))
		default:
			log.Errorf("VerifyMagicLink: verification failed, error: %v", err)
			c.Data(http.StatusInternalServerError, "text/html; charset=utf-8",
				[]byte(renderAuthErrorPage("Erreur serveur", "Une erreur est survenue lors de la connexion.")))
		}
		return
	}

	log.Infof("Magic link verified for user %s", user.ID)
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(renderAuthSuccessPage(uploadToken)))
}

// renderAuthSuccessPage 渲染登录成功页面，页面会把令牌写入 localStorage 并跳转。
func renderAuthSuccessPage(uploadToken string) string {
	return fmt.Sprintf(`<!DOCTYPE html>
<html lang="fr">
<head>
  <meta charset="UTF-8">
  <meta name="viewport" content="width=device-width, initial-scale=1.0">
  <title>Connexion réussie - Echo Link</title>
  <style>
    * { margin: 0; padding: 0; box-sizing: border-box; }
    body {
      font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif;
      background: linear-gradient(135deg, #667eea 0%%, #764ba2 100%%);
      min-height: 100vh;
      display: flex;
      align-items: center;
      justify-content: center;
      padding: 20px;
    }
    .container {
      background: white;
      border-radius: 12px;
      box-shadow: 0 20px 60px rgba(0,0,0,0.3);
      max-width: 500px;
      width: 100%%;
      padding: 40px;
      text-align: center;
    }
    .success-icon {
      width: 80px;
      height: 80px;
      background: #10b981;
      border-radius: 50%%;
      display: flex;
      align-items: center;
      justify-content: center;
      margin: 0 auto 24px;
    }
    .success-icon::after { content: '✓'; color: white; font-size: 48px; font-weight: bold; }
    h1 { font-size: 28px; color: #1a1a1a; margin-bottom: 12px; }
    p { font-size: 16px; color: #666; line-height: 1.6; margin-bottom: 24px; }
    .countdown { font-size: 14px; color: #999; margin-top: 16px; }
  </style>
</head>
<body>
  <div class="container">
    <div class="success-icon"></div>
    <h1>Connexion réussie !</h1>
    <p>Vous êtes maintenant connecté à Echo Link.</p>
    <p class="countdown">Redirection en cours...</p>
  </div>
  <script>
    localStorage.setItem('uploadToken', '%s');
    setTimeout(function () { window.location.href = '/app'; }, 1500);
  </script>
</body>
</html>`, uploadToken)
}

// renderAuthErrorPage 渲染登录失败页面。
func renderAuthErrorPage(title, message string) string {
	return fmt.Sprintf(`<!DOCTYPE html>
<html lang="fr">
<head>
  <meta charset="UTF-8">
  <meta name="viewport" content="width=device-width, initial-scale=1.0">
  <title>%s - Echo Link</title>
  <style>
    * { margin: 0; padding: 0; box-sizing: border-box; }
    body {
      font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif;
      background: linear-gradient(135deg, #667eea 0%%, #764ba2 100%%);
      min-height: 100vh;
      display: flex;
      align-items: center;
      justify-content: center;
      padding: 20px;
    }
    .container {
      background: white;
      border-radius: 12px;
      box-shadow: 0 20px 60px rgba(0,0,0,0.3);
      max-width: 500px;
      width: 100%%;
      padding: 40px;
      text-align: center;
    }
    .error-icon {
      width: 80px;
      height: 80px;
      background: #ef4444;
      border-radius: 50%%;
      display: flex;
      align-items: center;
      justify-content: center;
      margin: 0 auto 24px;
    }
    .error-icon::after { content: '✕'; color: white; font-size: 48px; font-weight: bold; }
    h1 { font-size: 28px; color: #1a1a1a; margin-bottom: 12px; }
    p { font-size: 16px; color: #666; line-height: 1.6; }
  </style>
</head>
<body>
  <div class="container">
    <div class="error-icon"></div>
    <h1>%s</h1>
    <p>%s</p>
  </div>
</body>
</html>`, html.EscapeString(title), html.EscapeString(title), html.EscapeString(message))
}
