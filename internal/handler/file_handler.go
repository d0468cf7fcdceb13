package handler

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"echo-link-go/internal/config"
	"echo-link-go/internal/middleware"
	"echo-link-go/internal/service"
	"echo-link-go/pkg/log"
	"echo-link-go/pkg/storage"

	"github.com/gin-gonic/gin"
)

// FileHandler 负责文件的删除、直链下载与分享链接跳转。
type FileHandler struct {
	fileService service.FileService
	minioCfg    config.MinIOConfig
}

// NewFileHandler 创建一个新的 FileHandler 实例。
func NewFileHandler(fileService service.FileService, minioCfg config.MinIOConfig) *FileHandler {
	return &FileHandler{fileService: fileService, minioCfg: minioCfg}
}

// Delete 删除当前账户名下的一个文件。
func (h *FileHandler) Delete(c *gin.Context) {
	accountID := middleware.CurrentAccountID(c)
	if accountID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	fileID := c.Param("id")
	err := h.fileService.Delete(c.Request.Context(), fileID, accountID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrFileNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "file_not_found"})
		case errors.Is(err, service.ErrForbidden):
			c.JSON(http.StatusForbidden, gin.H{
				"error":   "forbidden",
				"message": "You can only delete your own files",
			})
		default:
			log.Errorf("Delete: failed to delete file %s, error: %v", fileID, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "delete_failed"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"deleted": fileID,
	})
}

// ServePreflight 处理直链下载的 CORS 预检请求。
func (h *FileHandler) ServePreflight(c *gin.Context) {
	h.setCORSHeaders(c)
	c.Status(http.StatusNoContent)
}

// Serve 按存储键直链输出文件内容。
// 媒体文件内联展示并通过 CSP sandbox 阻止脚本执行，其余类型强制下载。
func (h *FileHandler) Serve(c *gin.Context) {
	objectPath := strings.TrimPrefix(c.Param("path"), "/")

	// 存储键形如 videos/{uuid}.mp4，去掉目录与扩展名即文件 ID
	parts := strings.Split(objectPath, "/")
	filename := parts[len(parts)-1]
	fileID := strings.SplitN(filename, ".", 2)[0]

	file, err := h.fileService.GetByID(fileID)
	if err != nil {
		if errors.Is(err, service.ErrFileNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "file_not_found"})
			return
		}
		log.Errorf("Serve: failed to load file %s, error: %v", fileID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}

	if file.ExpiresAt != nil && time.Now().After(*file.ExpiresAt) {
		c.JSON(http.StatusGone, gin.H{"error": "file_expired"})
		return
	}

	// 允许访问缩略图对象，其余路径必须与记录的存储键一致
	objectName := file.S3Key
	if file.ThumbnailS3Key != nil && objectPath == *file.ThumbnailS3Key {
		objectName = *file.ThumbnailS3Key
	}

	stream, err := storage.GetStream(c.Request.Context(), h.minioCfg.BucketName, objectName)
	if err != nil {
		log.Errorf("Serve: failed to open object %s, error: %v", objectName, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "stream_error"})
		return
	}
	defer stream.Close()

	isMedia := strings.HasPrefix(file.MimeType, "image/") || strings.HasPrefix(file.MimeType, "video/")
	if objectName != file.S3Key {
		// 缩略图固定是 JPEG
		c.Header("Content-Type", "image/jpeg")
		c.Header("Content-Disposition", "inline")
		c.Header("Content-Security-Policy", "sandbox")
	} else if isMedia {
		c.Header("Content-Type", file.MimeType)
		c.Header("Content-Disposition", "inline")
		c.Header("Content-Security-Policy", "sandbox")
	} else {
		title := "download"
		if file.Title != nil && *file.Title != "" {
			title = *file.Title
		}
		c.Header("Content-Type", "application/octet-stream")
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", url.PathEscape(title)))
	}

	if objectName == file.S3Key {
		c.Header("Content-Length", strconv.FormatInt(file.SizeBytes, 10))
	}
	c.Header("Cache-Control", "public, max-age=31536000, immutable")
	c.Header("X-Content-Type-Options", "nosniff")
	h.setCORSHeaders(c)

	c.Status(http.StatusOK)
	if _, err := io.Copy(c.Writer, stream); err != nil {
		log.Warnf("Serve: stream interrupted for %s, error: %v", objectName, err)
	}
}

// ShareRedirect 把分享链接 /v/{id} 跳转到文件直链。
func (h *FileHandler) ShareRedirect(c *gin.Context) {
	fileID := c.Param("id")

	file, err := h.fileService.GetByID(fileID)
	if err != nil {
		if errors.Is(err, service.ErrFileNotFound) {
			c.String(http.StatusNotFound, "File not found")
			return
		}
		log.Errorf("ShareRedirect: failed to load file %s, error: %v", fileID, err)
		c.String(http.StatusInternalServerError, "Internal error")
		return
	}

	if file.ExpiresAt != nil && time.Now().After(*file.ExpiresAt) {
		c.String(http.StatusNotFound, "File expired")
		return
	}

	c.Redirect(http.StatusFound, h.fileService.DirectURL(file.S3Key))
}

func (h *FileHandler) setCORSHeaders(c *gin.Context) {
	c.Header("Access-Control-Allow-Origin", "*")
	c.Header("Access-Control-Allow-Methods", "GET, HEAD, OPTIONS")
	c.Header("Access-Control-Allow-Headers", "Range")
}
