package service

import (
	"fmt"
	"time"

	"echo-link-go/internal/config"
	"echo-link-go/internal/model"
	"echo-link-go/internal/repository"
	"echo-link-go/pkg/log"
)

// LimitResult 描述一次配额检查的结果。
type LimitResult struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
}

// LimitsService 接口定义了按账户聚合的上传配额检查。
type LimitsService interface {
	// Authorize 检查一次上传是否超出身份所属账户的配额。
	// 检查顺序：24 小时文件数、24 小时字节数、总文件数、总字节数，
	// 命中第一条即拒绝。
	Authorize(identity *model.UploadIdentity, fileSizeBytes int64) (*LimitResult, error)
	// AuthorizeAccount 直接按账户检查配额。
	AuthorizeAccount(accountID string, fileSizeBytes int64) (*LimitResult, error)
	// Limits 返回当前生效的配额配置。
	Limits() config.LimitsConfig
}

// limitsService 是 LimitsService 接口的实现。
type limitsService struct {
	cfg         config.LimitsConfig
	accountRepo repository.AccountRepository
}

// NewLimitsService 创建一个新的 LimitsService 实例。
func NewLimitsService(cfg config.LimitsConfig, accountRepo repository.AccountRepository) LimitsService {
	return &limitsService{
		cfg:         cfg,
		accountRepo: accountRepo,
	}
}

// Authorize 检查一次上传是否超出账户配额。
func (s *limitsService) Authorize(identity *model.UploadIdentity, fileSizeBytes int64) (*LimitResult, error) {
	if identity.AccountID == "" {
		// 身份没有账户时放行但记录告警，不让配额检查挡住上传
		log.Warnf("[LimitsService] 身份 %s 没有关联账户，跳过配额检查", identity.ID)
		return &LimitResult{Allowed: true}, nil
	}
	return s.AuthorizeAccount(identity.AccountID, fileSizeBytes)
}

// AuthorizeAccount 直接按账户检查配额。
func (s *limitsService) AuthorizeAccount(accountID string, fileSizeBytes int64) (*LimitResult, error) {
	stats, err := s.accountRepo.GetStats(accountID, time.Now())
	if err != nil {
		return nil, err
	}

	if stats.FilesLast24h >= s.cfg.MaxFilesPerDay {
		return &LimitResult{
			Allowed: false,
			Reason:  fmt.Sprintf("Daily file limit reached (%d files per 24 hours). Try again later.", s.cfg.MaxFilesPerDay),
		}, nil
	}

	if stats.BytesLast24h+fileSizeBytes > s.cfg.MaxBytesPerDay {
		return &LimitResult{
			Allowed: false,
			Reason:  fmt.Sprintf("Daily upload limit reached (%s per 24 hours). Try again later.", formatBytes(s.cfg.MaxBytesPerDay)),
		}, nil
	}

	if stats.TotalFiles >= s.cfg.MaxTotalFiles {
		return &LimitResult{
			Allowed: false,
			Reason:  fmt.Sprintf("Total file limit reached (%d files). Please delete some files to continue uploading.", s.cfg.MaxTotalFiles),
		}, nil
	}

	if stats.TotalBytes+fileSizeBytes > s.cfg.MaxTotalBytes {
		return &LimitResult{
			Allowed: false,
			Reason:  fmt.Sprintf("Total storage limit reached (%s). Please delete some files to continue uploading.", formatBytes(s.cfg.MaxTotalBytes)),
		}, nil
	}

	return &LimitResult{Allowed: true}, nil
}

// Limits 返回当前生效的配额配置。
func (s *limitsService) Limits() config.LimitsConfig {
	return s.cfg
}

// formatBytes 将字节数格式化为可读的大小（1024 进制）。
func formatBytes(bytes int64) string {
	if bytes <= 0 {
		return "0 B"
	}
	units := []string{"B", "KB", "MB", "GB", "TB"}
	size := float64(bytes)
	i := 0
	for size >= 1024 && i < len(units)-1 {
		size /= 1024
		i++
	}
	if size == float64(int64(size)) {
		return fmt.Sprintf("%d %s", int64(size), units[i])
	}
	return fmt.Sprintf("%.2f %s", size, units[i])
}
