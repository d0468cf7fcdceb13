package handler

import (
	"errors"
	"io"
	"net/http"

	"echo-link-go/internal/middleware"
	"echo-link-go/internal/service"
	"echo-link-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// UploadHandler 负责文件上传相关的 API 请求。
type UploadHandler struct {
	fileService service.FileService
}

// NewUploadHandler 创建一个新的 UploadHandler 实例。
func NewUploadHandler(fileService service.FileService) *UploadHandler {
	return &UploadHandler{fileService: fileService}
}

// Upload 处理 multipart 文件上传。
// 类型校验与配额检查由 service 层完成，这里只负责取文件和映射错误码。
func (h *UploadHandler) Upload(c *gin.Context) {
	identity := middleware.CurrentIdentity(c)
	if identity == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file_required"})
		return
	}

	src, err := fileHeader.Open()
	if err != nil {
		log.Errorf("Upload: failed to open multipart file, error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "upload_failed"})
		return
	}
	defer src.Close()

	data, err := io.ReadAll(src)
	if err != nil {
		log.Errorf("Upload: failed to read multipart file, error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "upload_failed"})
		return
	}

	result, err := h.fileService.Upload(c.Request.Context(), service.UploadParams{
		Identity: identity,
		FileName: fileHeader.Filename,
		Data:     data,
	})
	if err != nil {
		var quotaErr *service.QuotaError
		switch {
		case errors.As(err, &quotaErr):
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":   "quota_exceeded",
				"message": quotaErr.Reason,
			})
		case errors.Is(err, service.ErrEmptyFile):
			c.JSON(http.StatusBadRequest, gin.H{"error": "file_required"})
		case errors.Is(err, service.ErrFileTooLarge):
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file_too_large"})
		case errors.Is(err, service.ErrUnsupportedType):
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "unsupported_type",
				"message": err.Error(),
			})
		default:
			log.Errorf("Upload: upload failed for '%s', error: %v", fileHeader.Filename, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "upload_failed"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":        result.File.ID,
		"shareUrl":  result.ShareURL,
		"directUrl": result.DirectURL,
	})
}
