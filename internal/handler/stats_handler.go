package handler

import (
	"math"
	"net/http"

	"echo-link-go/internal/middleware"
	"echo-link-go/internal/model"
	"echo-link-go/internal/service"
	"echo-link-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// StatsHandler 负责账户与整站的统计查询。
type StatsHandler struct {
	userService    service.UserService
	accountService service.AccountService
	fileService    service.FileService
	limitsService  service.LimitsService
}

// NewStatsHandler 创建一个新的 StatsHandler 实例。
func NewStatsHandler(userService service.UserService, accountService service.AccountService, fileService service.FileService, limitsService service.LimitsService) *StatsHandler {
	return &StatsHandler{
		userService:    userService,
		accountService: accountService,
		fileService:    fileService,
		limitsService:  limitsService,
	}
}

// Me 返回当前用户的配额用量与最近上传的文件。
func (h *StatsHandler) Me(c *gin.Context) {
	user := middleware.CurrentUser(c)
	accountID := middleware.CurrentAccountID(c)
	if user == nil || accountID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	stats, err := h.accountService.GetStats(accountID)
	if err != nil {
		log.Errorf("Stats.Me: failed to load stats for account %s, error: %v", accountID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}

	recent, err := h.fileService.RecentByAccount(accountID, 10)
	if err != nil {
		log.Errorf("Stats.Me: failed to list recent files for account %s, error: %v", accountID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}

	limits := h.limitsService.Limits()

	c.JSON(http.StatusOK, gin.H{
		"user": gin.H{
			"id":          user.ID,
			"email":       user.Email,
			"createdAt":   user.CreatedAt,
			"lastLoginAt": user.LastLoginAt,
		},
		"quota": gin.H{
			"files": gin.H{
				"used":       stats.TotalFiles,
				"max":        limits.MaxTotalFiles,
				"percentage": percentage(stats.TotalFiles, limits.MaxTotalFiles),
			},
			"storage": gin.H{
				"usedBytes":  stats.TotalBytes,
				"maxBytes":   limits.MaxTotalBytes,
				"percentage": percentage(stats.TotalBytes, limits.MaxTotalBytes),
			},
		},
		"recentFiles": h.formatFiles(recent),
	})
}

// Account 返回当前账户的原始统计数据。
func (h *StatsHandler) Account(c *gin.Context) {
	accountID := middleware.CurrentAccountID(c)
	if accountID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	stats, err := h.accountService.GetStats(accountID)
	if err != nil {
		log.Errorf("Stats.Account: failed to load stats for account %s, error: %v", accountID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}

	c.JSON(http.StatusOK, stats)
}

// Global 返回整站统计与最近上传的文件。
func (h *StatsHandler) Global(c *gin.Context) {
	stats, err := h.userService.GetGlobalStats()
	if err != nil {
		log.Errorf("Stats.Global: failed to load global stats, error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}

	recent, err := h.fileService.RecentGlobal(10)
	if err != nil {
		log.Errorf("Stats.Global: failed to list recent files, error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"totals": gin.H{
			"users":        stats.TotalUsers,
			"files":        stats.TotalFiles,
			"storageBytes": stats.TotalBytes,
		},
		"today": gin.H{
			"files":        stats.FilesLast24h,
			"storageBytes": stats.BytesLast24h,
		},
		"thisWeek": gin.H{
			"files":        stats.FilesLast7d,
			"storageBytes": stats.BytesLast7d,
		},
		"thisMonth": gin.H{
			"files":        stats.FilesLast30d,
			"storageBytes": stats.BytesLast30d,
		},
		"recentFiles": h.formatFiles(recent),
	})
}

// formatFiles 把文件记录整理成前端需要的摘要结构。
func (h *StatsHandler) formatFiles(files []model.File) []gin.H {
	out := make([]gin.H, 0, len(files))
	for _, file := range files {
		out = append(out, gin.H{
			"id":        file.ID,
			"title":     file.Title,
			"mimeType":  file.MimeType,
			"sizeBytes": file.SizeBytes,
			"createdAt": file.CreatedAt,
			"shareUrl":  h.fileService.ShareURL(file.ID),
		})
	}
	return out
}

// percentage 计算用量百分比，四舍五入到整数。
func percentage(used, max int64) float64 {
	if max <= 0 {
		return 0
	}
	return math.Round(float64(used) / float64(max) * 100)
}
