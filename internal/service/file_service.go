package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"path"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"echo-link-go/internal/config"
	"echo-link-go/internal/model"
	"echo-link-go/internal/repository"
	"echo-link-go/pkg/kafka"
	"echo-link-go/pkg/log"
	"echo-link-go/pkg/storage"
	"echo-link-go/pkg/tasks"
)

// 允许的真实 MIME 类型：以 / 结尾的按前缀匹配，否则精确匹配
var allowedMimePatterns = []string{
	"image/",
	"video/mp4",
	"video/webm",
	"video/quicktime",
	"audio/",
	"application/pdf",
}

// FileValidationResult 描述一次文件类型校验的结果。
type FileValidationResult struct {
	Allowed      bool
	DetectedMime string
	Reason       string
}

// UploadParams 描述一次上传请求。
type UploadParams struct {
	Identity *model.UploadIdentity
	FileName string
	Data     []byte
}

// UploadResult 描述上传成功后的文件与访问地址。
type UploadResult struct {
	File      *model.File `json:"file"`
	ShareURL  string      `json:"shareUrl"`
	DirectURL string      `json:"directUrl"`
}

// FileService 接口定义了文件上传、删除与查询的业务操作。
type FileService interface {
	// Upload 校验文件类型与账户配额，写入对象存储并落库。
	// 视频文件会异步生成缩略图。配额不足时返回 *QuotaError。
	Upload(ctx context.Context, params UploadParams) (*UploadResult, error)
	// Delete 删除文件及其存储对象。只有文件归属账户的持有者可以操作。
	Delete(ctx context.Context, fileID, accountID string) error
	GetByID(id string) (*model.File, error)
	RecentByAccount(accountID string, limit int) ([]model.File, error)
	RecentGlobal(limit int) ([]model.File, error)
	// CleanupExpired 删除所有已过期的文件与其存储对象，返回删除数量。
	CleanupExpired(ctx context.Context) (int, error)
	// ShareURL 返回文件的分享链接。
	ShareURL(fileID string) string
	// DirectURL 返回存储键对应的直链地址，优先走 CDN。
	DirectURL(s3Key string) string
}

// fileService 是 FileService 接口的实现。
type fileService struct {
	filesCfg  config.FilesConfig
	publicCfg config.PublicConfig
	minioCfg  config.MinIOConfig
	fileRepo  repository.FileRepository
	limitsSvc LimitsService
	// produceThumbnail 可在测试中替换，默认走 Kafka
	produceThumbnail func(task tasks.ThumbnailTask) error
}

// NewFileService 创建一个新的 FileService 实例。
func NewFileService(filesCfg config.FilesConfig, publicCfg config.PublicConfig, minioCfg config.MinIOConfig, fileRepo repository.FileRepository, limitsSvc LimitsService) FileService {
	return &fileService{
		filesCfg:         filesCfg,
		publicCfg:        publicCfg,
		minioCfg:         minioCfg,
		fileRepo:         fileRepo,
		limitsSvc:        limitsSvc,
		produceThumbnail: kafka.ProduceThumbnailTask,
	}
}

// validateFileType 通过魔数检测文件的真实类型并对照白名单。
// 无法识别的内容（文本、HTML、脚本等）一律拒绝。
func validateFileType(data []byte) *FileValidationResult {
	mtype := mimetype.Detect(data)
	detected := mtype.String()
	if idx := strings.Index(detected, ";"); idx > 0 {
		detected = detected[:idx]
	}

	if detected == "application/octet-stream" || strings.HasPrefix(detected, "text/") {
		return &FileValidationResult{
			Allowed:      false,
			DetectedMime: detected,
			Reason:       "File type could not be verified. Only images, videos, audio, and PDF files are allowed.",
		}
	}

	for _, pattern := range allowedMimePatterns {
		if strings.HasSuffix(pattern, "/") {
			if strings.HasPrefix(detected, pattern) {
				return &FileValidationResult{Allowed: true, DetectedMime: detected}
			}
		} else if detected == pattern {
			return &FileValidationResult{Allowed: true, DetectedMime: detected}
		}
	}

	return &FileValidationResult{
		Allowed:      false,
		DetectedMime: detected,
		Reason:       fmt.Sprintf("File type %q is not allowed. Only images, videos, audio, and PDF files are allowed.", detected),
	}
}

// Upload 执行一次完整的文件上传。
func (s *fileService) Upload(ctx context.Context, params UploadParams) (*UploadResult, error) {
	if len(params.Data) == 0 {
		return nil, ErrEmptyFile
	}
	if int64(len(params.Data)) > s.filesCfg.MaxSizeBytes {
		return nil, ErrFileTooLarge
	}

	validation := validateFileType(params.Data)
	if !validation.Allowed {
		log.Warnf("[FileService] 文件类型被拒绝: %s (%s)", validation.DetectedMime, params.FileName)
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, validation.Reason)
	}
	mimeType := validation.DetectedMime

	// 配额按账户聚合检查
	limitResult, err := s.limitsSvc.Authorize(params.Identity, int64(len(params.Data)))
	if err != nil {
		return nil, err
	}
	if !limitResult.Allowed {
		return nil, &QuotaError{Reason: limitResult.Reason}
	}

	id := uuid.NewString()
	isVideo := strings.HasPrefix(mimeType, "video/")
	folder := "files"
	if isVideo {
		folder = "videos"
	}
	key := fmt.Sprintf("%s/%s%s", folder, id, path.Ext(params.FileName))

	file := &model.File{
		ID:               id,
		AccountID:        params.Identity.AccountID,
		UploadIdentityID: params.Identity.ID,
		S3Key:            key,
		MimeType:         mimeType,
		SizeBytes:        int64(len(params.Data)),
	}
	if params.FileName != "" {
		title := params.FileName
		file.Title = &title
	}
	if strings.HasPrefix(mimeType, "image/") {
		if cfg, _, err := image.DecodeConfig(bytes.NewReader(params.Data)); err == nil {
			file.Width = &cfg.Width
			file.Height = &cfg.Height
		}
	}
	if s.filesCfg.ExpirationDays > 0 {
		expiresAt := time.Now().AddDate(0, 0, s.filesCfg.ExpirationDays)
		file.ExpiresAt = &expiresAt
	}

	if err := storage.PutBytes(ctx, s.minioCfg.BucketName, key, params.Data, mimeType); err != nil {
		return nil, err
	}

	if err := s.fileRepo.Create(file); err != nil {
		// 落库失败时回收已写入的对象
		if rmErr := storage.RemoveObject(ctx, s.minioCfg.BucketName, key); rmErr != nil {
			log.Errorf("[FileService] 回收存储对象失败: %s, error: %v", key, rmErr)
		}
		return nil, err
	}

	if isVideo {
		task := tasks.ThumbnailTask{FileID: id, S3Key: key, MimeType: mimeType}
		if err := s.produceThumbnail(task); err != nil {
			// 缩略图是尽力而为，失败不影响上传结果
			log.Errorf("[FileService] 发送缩略图任务失败, file: %s, error: %v", id, err)
		}
	}

	log.Infof("[FileService] 文件上传成功, id: %s, key: %s, size: %d, account: %s",
		id, key, file.SizeBytes, file.AccountID)

	return &UploadResult{
		File:      file,
		ShareURL:  s.ShareURL(id),
		DirectURL: s.DirectURL(key),
	}, nil
}

// Delete 删除文件及其存储对象。
func (s *fileService) Delete(ctx context.Context, fileID, accountID string) error {
	file, err := s.GetByID(fileID)
	if err != nil {
		return err
	}
	if file.AccountID != accountID {
		return ErrForbidden
	}

	deleted, err := s.fileRepo.Delete(fileID)
	if err != nil {
		return err
	}
	if deleted == 0 {
		return ErrFileNotFound
	}

	if err := storage.RemoveObject(ctx, s.minioCfg.BucketName, file.S3Key); err != nil {
		log.Errorf("[FileService] 删除存储对象失败: %s, error: %v", file.S3Key, err)
	}
	if file.ThumbnailS3Key != nil {
		if err := storage.RemoveObject(ctx, s.minioCfg.BucketName, *file.ThumbnailS3Key); err != nil {
			log.Errorf("[FileService] 删除缩略图失败: %s, error: %v", *file.ThumbnailS3Key, err)
		}
	}

	log.Infof("[FileService] 文件已删除, id: %s, account: %s", fileID, accountID)
	return nil
}

// GetByID 根据 ID 查找文件。
func (s *fileService) GetByID(id string) (*model.File, error) {
	file, err := s.fileRepo.FindByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrFileNotFound
		}
		return nil, err
	}
	return file, nil
}

// RecentByAccount 列出账户最近上传的文件。
func (s *fileService) RecentByAccount(accountID string, limit int) ([]model.File, error) {
	return s.fileRepo.RecentByAccount(accountID, limit)
}

// RecentGlobal 列出全站最近上传的文件。
func (s *fileService) RecentGlobal(limit int) ([]model.File, error) {
	return s.fileRepo.RecentGlobal(limit)
}

// CleanupExpired 删除所有已过期的文件。
// 存储对象删除失败不阻塞数据库清理，下一轮清理会重试。
func (s *fileService) CleanupExpired(ctx context.Context) (int, error) {
	expired, err := s.fileRepo.FindExpired(time.Now())
	if err != nil {
		return 0, err
	}

	count := 0
	for _, file := range expired {
		if err := storage.RemoveObject(ctx, s.minioCfg.BucketName, file.S3Key); err != nil {
			log.Errorf("[FileService] 清理存储对象失败: %s, error: %v", file.S3Key, err)
		}
		if file.ThumbnailS3Key != nil {
			if err := storage.RemoveObject(ctx, s.minioCfg.BucketName, *file.ThumbnailS3Key); err != nil {
				log.Errorf("[FileService] 清理缩略图失败: %s, error: %v", *file.ThumbnailS3Key, err)
			}
		}
		if _, err := s.fileRepo.Delete(file.ID); err != nil {
			log.Errorf("[FileService] 清理文件记录失败: %s, error: %v", file.ID, err)
			continue
		}
		count++
	}

	if count > 0 {
		log.Infof("[FileService] 清理过期文件完成, count: %d", count)
	}
	return count, nil
}

// ShareURL 返回文件的分享链接。
func (s *fileService) ShareURL(fileID string) string {
	return fmt.Sprintf("%s/v/%s", s.publicCfg.BaseURL, fileID)
}

// DirectURL 返回存储键对应的直链地址，优先走 CDN。
func (s *fileService) DirectURL(key string) string {
	base := s.publicCfg.CDNBaseURL
	if base == "" {
		base = s.publicCfg.BaseURL
	}
	return fmt.Sprintf("%s/files/%s", base, key)
}
