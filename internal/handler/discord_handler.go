package handler

import (
	"errors"
	"io"
	"net/http"
	"time"

	"echo-link-go/internal/config"
	"echo-link-go/internal/service"
	"echo-link-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// DiscordHandler 负责 Discord 机器人调用的 API 与浏览器侧的会话上传。
type DiscordHandler struct {
	sessionService service.SessionService
	linkService    service.LinkService
	publicCfg      config.PublicConfig
}

// NewDiscordHandler 创建一个新的 DiscordHandler 实例。
func NewDiscordHandler(sessionService service.SessionService, linkService service.LinkService, publicCfg config.PublicConfig) *DiscordHandler {
	return &DiscordHandler{
		sessionService: sessionService,
		linkService:    linkService,
		publicCfg:      publicCfg,
	}
}

// CreateUploadSession 由机器人调用，为一个 Discord 用户创建上传会话。
// 身份信息通过 X-Discord-* 请求头传递。
func (h *DiscordHandler) CreateUploadSession(c *gin.Context) {
	userID := c.GetHeader("X-Discord-User-Id")
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing_header", "message": "X-Discord-User-Id required"})
		return
	}
	channelID := c.GetHeader("X-Discord-Channel-Id")
	if channelID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing_header", "message": "X-Discord-Channel-Id required"})
		return
	}

	session, uploadPath, err := h.sessionService.Create(service.CreateSessionParams{
		DiscordUserID:           userID,
		DiscordUserName:         c.GetHeader("X-Discord-User-Name"),
		DiscordChannelID:        channelID,
		DiscordGuildID:          c.GetHeader("X-Discord-Guild-Id"),
		DiscordInteractionToken: c.GetHeader("X-Discord-Interaction-Token"),
		DiscordApplicationID:    c.GetHeader("X-Discord-Application-Id"),
	})
	if err != nil {
		log.Errorf("CreateUploadSession: failed for discord user %s, error: %v", userID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "server_error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"sessionId": session.ID,
		"uploadUrl": h.publicCfg.BaseURL + uploadPath,
		"expiresAt": session.ExpiresAt.UTC().Format(time.RFC3339),
	})
}

// UploadRedirect 处理上传链接的浏览器访问，有效会话跳转到前端应用。
func (h *DiscordHandler) UploadRedirect(c *gin.Context) {
	sessionToken := c.Param("token")

	_, err := h.sessionService.GetValidByToken(sessionToken)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrSessionNotFound):
			c.Data(http.StatusNotFound, "text/html; charset=utf-8",
				[]byte(renderAuthErrorPage("Session introuvable", "Ce lien d'upload n'existe pas ou a expiré.")))
		case errors.Is(err, service.ErrSessionUsed), errors.Is(err, service.ErrSessionExpired):
			c.Data(http.StatusBadRequest, "text/html; charset=utf-8",
				[]byte(renderAuthErrorPage("Session invalide", "Cette session n'est plus valide.")))
		default:
			log.Errorf("UploadRedirect: session lookup failed, error: %v", err)
			c.Data(http.StatusInternalServerError, "text/html; charset=utf-8",
				[]byte(renderAuthErrorPage("Erreur serveur", "Un problème est survenu.")))
		}
		return
	}

	c.Redirect(http.StatusFound, "/app?discord_session="+sessionToken)
}

// GetSession 返回会话的展示信息，供前端确认身份。
func (h *DiscordHandler) GetSession(c *gin.Context) {
	session, err := h.sessionService.GetValidByToken(c.Param("token"))
	if err != nil {
		h.respondSessionError(c, err)
		return
	}

	userName := "Utilisateur Discord"
	if session.DiscordUserName != nil && *session.DiscordUserName != "" {
		userName = *session.DiscordUserName
	}

	c.JSON(http.StatusOK, gin.H{
		"valid":     true,
		"userName":  userName,
		"expiresAt": session.ExpiresAt.UTC().Format(time.RFC3339),
	})
}

// SessionUpload 处理会话内的文件上传，完成后通知 Discord。
func (h *DiscordHandler) SessionUpload(c *gin.Context) {
	sessionToken := c.Param("token")

	session, err := h.sessionService.GetValidByToken(sessionToken)
	if err != nil {
		h.respondSessionError(c, err)
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file_required"})
		return
	}

	src, err := fileHeader.Open()
	if err != nil {
		log.Errorf("SessionUpload: failed to open multipart file, error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "upload_failed"})
		return
	}
	defer src.Close()

	data, err := io.ReadAll(src)
	if err != nil {
		log.Errorf("SessionUpload: failed to read multipart file, error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "upload_failed"})
		return
	}

	result, err := h.sessionService.CompleteUpload(c.Request.Context(), sessionToken, fileHeader.Filename, data)
	if err != nil {
		var quotaErr *service.QuotaError
		switch {
		case errors.As(err, &quotaErr):
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "quota_exceeded", "message": quotaErr.Reason})
		case errors.Is(err, service.ErrEmptyFile):
			c.JSON(http.StatusBadRequest, gin.H{"error": "file_required"})
		case errors.Is(err, service.ErrFileTooLarge):
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file_too_large"})
		case errors.Is(err, service.ErrUnsupportedType):
			c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported_type", "message": err.Error()})
		case errors.Is(err, service.ErrSessionNotFound), errors.Is(err, service.ErrSessionUsed), errors.Is(err, service.ErrSessionExpired):
			h.respondSessionError(c, err)
		default:
			log.Errorf("SessionUpload: upload failed for session %s, error: %v", session.ID, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "upload_failed"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":               result.File.ID,
		"shareUrl":         result.ShareURL,
		"directUrl":        result.DirectURL,
		"discordChannelId": session.DiscordChannelID,
		"discordGuildId":   session.DiscordGuildID,
	})
}

// LinkAccount 由机器人调用，用绑定码把 Discord 用户绑定到账户。
func (h *DiscordHandler) LinkAccount(c *gin.Context) {
	userID := c.GetHeader("X-Discord-User-Id")
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing_header", "message": "X-Discord-User-Id required"})
		return
	}

	var req struct {
		Code string `json:"code"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Code == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "code_required"})
		return
	}

	result, err := h.linkService.Redeem(req.Code, userID, c.GetHeader("X-Discord-User-Name"), c.GetHeader("X-Discord-Guild-Id"))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidCode):
			c.JSON(http.StatusNotFound, gin.H{"error": "invalid_code", "message": "Ce code de liaison est invalide."})
		case errors.Is(err, service.ErrExpiredOrUsedCode):
			c.JSON(http.StatusBadRequest, gin.H{"error": "expired_code", "message": "Ce code de liaison a expiré ou a déjà été utilisé."})
		default:
			log.Errorf("LinkAccount: redeem failed for discord user %s, error: %v", userID, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "server_error"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":    result.Status,
		"accountId": result.AccountID,
		"message":   linkStatusMessage(result.Status),
	})
}

// respondSessionError 把会话校验错误映射成统一的 JSON 响应。
func (h *DiscordHandler) respondSessionError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrSessionNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "session_not_found"})
	case errors.Is(err, service.ErrSessionUsed):
		c.JSON(http.StatusBadRequest, gin.H{"error": "session_invalid", "message": "Session already used"})
	case errors.Is(err, service.ErrSessionExpired):
		c.JSON(http.StatusBadRequest, gin.H{"error": "session_invalid", "message": "Session expired"})
	default:
		log.Errorf("Discord session error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "server_error"})
	}
}

// linkStatusMessage 返回每个绑定结果对应的用户提示。
func linkStatusMessage(status service.LinkStatus) string {
	switch status {
	case service.LinkStatusMerged:
		return "Tes comptes ont été fusionnés : tous tes fichiers sont maintenant regroupés."
	case service.LinkStatusAlreadyLinked:
		return "Ce compte Discord est déjà lié à ton compte."
	default:
		return "Ton compte Discord est maintenant lié à Echo Link."
	}
}
