package handler

import (
	"net/http"

	"echo-link-go/internal/config"
	"echo-link-go/pkg/log"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// HealthHandler 负责健康检查。
type HealthHandler struct {
	db       *gorm.DB
	minioCfg config.MinIOConfig
}

// NewHealthHandler 创建一个新的 HealthHandler 实例。
func NewHealthHandler(db *gorm.DB, minioCfg config.MinIOConfig) *HealthHandler {
	return &HealthHandler{db: db, minioCfg: minioCfg}
}

// Check 校验数据库连通性与对象存储配置的完整性。
func (h *HealthHandler) Check(c *gin.Context) {
	sqlDB, err := h.db.DB()
	if err == nil {
		err = sqlDB.Ping()
	}
	if err != nil {
		log.Errorf("Health check failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error"})
		return
	}

	if h.minioCfg.Endpoint == "" || h.minioCfg.BucketName == "" ||
		h.minioCfg.AccessKeyID == "" || h.minioCfg.SecretAccessKey == "" {
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "message": "storage configuration incomplete"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
