package handler

import (
	"errors"
	"net/http"
	"time"

	"echo-link-go/internal/middleware"
	"echo-link-go/internal/model"
	"echo-link-go/internal/service"
	"echo-link-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// MeHandler 负责当前账户的身份与 Discord 绑定管理。
type MeHandler struct {
	accountService  service.AccountService
	identityService service.IdentityService
	linkService     service.LinkService
}

// NewMeHandler 创建一个新的 MeHandler 实例。
func NewMeHandler(accountService service.AccountService, identityService service.IdentityService, linkService service.LinkService) *MeHandler {
	return &MeHandler{
		accountService:  accountService,
		identityService: identityService,
		linkService:     linkService,
	}
}

// StartDiscordLink 为当前账户生成一个新的 Discord 绑定码。
func (h *MeHandler) StartDiscordLink(c *gin.Context) {
	accountID := middleware.CurrentAccountID(c)
	if accountID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no_account", "message": "No account found for this user."})
		return
	}

	result, err := h.linkService.CreateRequest(accountID)
	if err != nil {
		log.Errorf("StartDiscordLink: failed for account %s, error: %v", accountID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "server_error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":         result.Code,
		"expiresAt":    result.ExpiresAt.UTC().Format(time.RFC3339),
		"instructions": "Sur Discord, exécute la commande: /link code:" + result.Code,
	})
}

// DiscordLinkStatus 返回当前账户的 Discord 绑定状态与待用的绑定码。
func (h *MeHandler) DiscordLinkStatus(c *gin.Context) {
	accountID := middleware.CurrentAccountID(c)
	if accountID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no_account", "message": "No account found for this user."})
		return
	}

	identities, err := h.accountService.GetIdentities(accountID)
	if err != nil {
		log.Errorf("DiscordLinkStatus: failed to list identities for %s, error: %v", accountID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "server_error"})
		return
	}

	discordIdentities := make([]gin.H, 0)
	for _, identity := range identities {
		if identity.Kind != model.IdentityKindDiscord {
			continue
		}
		discordIdentities = append(discordIdentities, gin.H{
			"id":          identity.ID,
			"displayName": identity.DisplayName,
			"externalId":  identity.ExternalID,
			"createdAt":   identity.CreatedAt,
		})
	}

	pending, err := h.linkService.ListPending(accountID)
	if err != nil {
		log.Errorf("DiscordLinkStatus: failed to list pending requests for %s, error: %v", accountID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "server_error"})
		return
	}

	pendingRequests := make([]gin.H, 0, len(pending))
	for _, request := range pending {
		pendingRequests = append(pendingRequests, gin.H{
			"code":      request.Code,
			"expiresAt": request.ExpiresAt,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"hasDiscordLinked":  len(discordIdentities) > 0,
		"discordIdentities": discordIdentities,
		"pendingRequests":   pendingRequests,
	})
}

// GetIdentities 返回当前账户及其所有上传身份。
func (h *MeHandler) GetIdentities(c *gin.Context) {
	accountID := middleware.CurrentAccountID(c)
	if accountID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no_account", "message": "No account found for this user."})
		return
	}

	account, err := h.accountService.GetByID(accountID)
	if err != nil && !errors.Is(err, service.ErrAccountNotFound) {
		log.Errorf("GetIdentities: failed to load account %s, error: %v", accountID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "server_error"})
		return
	}

	identities, err := h.accountService.GetIdentities(accountID)
	if err != nil {
		log.Errorf("GetIdentities: failed to list identities for %s, error: %v", accountID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "server_error"})
		return
	}

	var accountBody gin.H
	if account != nil {
		accountBody = gin.H{
			"id":           account.ID,
			"primaryEmail": account.PrimaryEmail,
			"createdAt":    account.CreatedAt,
		}
	}

	identityBodies := make([]gin.H, 0, len(identities))
	for _, identity := range identities {
		identityBodies = append(identityBodies, gin.H{
			"id":          identity.ID,
			"kind":        identity.Kind,
			"displayName": identity.DisplayName,
			"externalId":  identity.ExternalID,
			"createdAt":   identity.CreatedAt,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"account":    accountBody,
		"identities": identityBodies,
	})
}

// UnlinkDiscord 解绑当前账户下的一个 Discord 身份。
// 该身份上传过的文件仍然归属账户。
func (h *MeHandler) UnlinkDiscord(c *gin.Context) {
	accountID := middleware.CurrentAccountID(c)
	if accountID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no_account", "message": "No account found for this user."})
		return
	}

	identityID := c.Param("identityId")
	err := h.identityService.Unlink(accountID, identityID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrIdentityNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "message": "Identity not found."})
		case errors.Is(err, service.ErrForbidden):
			c.JSON(http.StatusForbidden, gin.H{"error": "forbidden", "message": "This identity does not belong to your account."})
		case errors.Is(err, service.ErrNotDiscordIdentity):
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_identity", "message": "Only Discord identities can be unlinked."})
		default:
			log.Errorf("UnlinkDiscord: failed for identity %s, error: %v", identityID, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "server_error"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Compte Discord délié avec succès.",
	})
}
