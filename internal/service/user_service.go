package service

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"echo-link-go/internal/config"
	"echo-link-go/internal/model"
	"echo-link-go/internal/repository"
	"echo-link-go/pkg/log"
	"echo-link-go/pkg/mail"
	"echo-link-go/pkg/token"
)

// UserService 接口定义了用户登录与令牌相关的业务操作。
type UserService interface {
	// RequestMagicLink 为邮箱创建一次性登录链接并发送邮件，返回规范化后的邮箱。
	// 用户不存在时自动注册。
	RequestMagicLink(email string) (string, error)
	// VerifyMagicLink 消费魔法链接，成功后签发长期上传令牌。
	VerifyMagicLink(magicToken, deviceInfo string) (uploadToken string, user *model.User, err error)
	// GetUserByUploadToken 根据上传令牌解析用户，并刷新令牌的最近使用时间。
	GetUserByUploadToken(uploadToken string) (*model.User, error)
	GetByID(id string) (*model.User, error)
	// GetGlobalStats 返回整站的用户数与文件统计。
	GetGlobalStats() (*model.GlobalStats, error)
}

// userService 是 UserService 接口的实现。
type userService struct {
	cfg       config.MagicLinkConfig
	publicCfg config.PublicConfig
	userRepo  repository.UserRepository
	fileRepo  repository.FileRepository
	sender    mail.Sender
}

// NewUserService 创建一个新的 UserService 实例。
func NewUserService(cfg config.MagicLinkConfig, publicCfg config.PublicConfig, userRepo repository.UserRepository, fileRepo repository.FileRepository, sender mail.Sender) UserService {
	return &userService{
		cfg:       cfg,
		publicCfg: publicCfg,
		userRepo:  userRepo,
		fileRepo:  fileRepo,
		sender:    sender,
	}
}

// RequestMagicLink 为邮箱创建一次性登录链接并发送邮件。
func (s *userService) RequestMagicLink(email string) (string, error) {
	normalized := strings.ToLower(strings.TrimSpace(email))
	if !emailPattern.MatchString(normalized) {
		return "", errors.New("invalid email address")
	}

	user, err := s.userRepo.FindByEmail(normalized)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		user = &model.User{
			ID:    uuid.NewString(),
			Email: normalized,
		}
		if createErr := s.userRepo.Create(user); createErr != nil {
			// 并发注册同一邮箱：唯一索引兜底，冲突方退化为查找
			if errors.Is(createErr, gorm.ErrDuplicatedKey) {
				user, err = s.userRepo.FindByEmail(normalized)
				if err != nil {
					return "", err
				}
			} else {
				return "", createErr
			}
		} else {
			log.Infof("[UserService] 新用户注册, email: %s", normalized)
		}
	} else if err != nil {
		return "", err
	}

	link := &model.MagicLink{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		Token:     token.NewMagicLinkToken(),
		ExpiresAt: time.Now().Add(time.Duration(s.cfg.ExpireMinutes) * time.Minute),
	}
	if err := s.userRepo.CreateMagicLink(link); err != nil {
		return "", err
	}

	magicLinkURL := fmt.Sprintf("%s/auth/verify?token=%s", s.publicCfg.BaseURL, link.Token)
	if err := s.sender.SendMagicLink(normalized, magicLinkURL, s.cfg.ExpireMinutes); err != nil {
		return "", err
	}

	log.Infof("[UserService] 魔法链接已发送, user: %s", user.ID)
	return normalized, nil
}

// VerifyMagicLink 消费魔法链接并签发上传令牌。
func (s *userService) VerifyMagicLink(magicToken, deviceInfo string) (string, *model.User, error) {
	link, err := s.userRepo.FindMagicLinkByToken(magicToken)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil, ErrMagicLinkNotFound
		}
		return "", nil, err
	}

	now := time.Now()
	if link.UsedAt != nil {
		return "", nil, ErrMagicLinkUsed
	}
	if now.After(link.ExpiresAt) {
		return "", nil, ErrMagicLinkExpired
	}

	// CAS 消费：并发点击同一链接时只有一方成功
	ok, err := s.userRepo.MarkMagicLinkUsed(link.ID, now)
	if err != nil {
		return "", nil, err
	}
	if !ok {
		return "", nil, ErrMagicLinkUsed
	}

	user, err := s.userRepo.FindByID(link.UserID)
	if err != nil {
		return "", nil, err
	}

	if err := s.userRepo.UpdateLastLogin(user.ID, now); err != nil {
		return "", nil, err
	}

	uploadToken := &model.UploadToken{
		ID:     uuid.NewString(),
		UserID: user.ID,
		Token:  token.NewUploadToken(),
	}
	if deviceInfo != "" {
		uploadToken.DeviceInfo = &deviceInfo
	}
	if err := s.userRepo.CreateUploadToken(uploadToken); err != nil {
		return "", nil, err
	}

	log.Infof("[UserService] 魔法链接验证成功, user: %s", user.ID)
	return uploadToken.Token, user, nil
}

// GetUserByUploadToken 根据上传令牌解析用户。
func (s *userService) GetUserByUploadToken(tokenString string) (*model.User, error) {
	uploadToken, err := s.userRepo.FindUploadTokenByToken(tokenString)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	user, err := s.userRepo.FindByID(uploadToken.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	// 令牌使用时间只做尽力记录，失败不影响鉴权
	if err := s.userRepo.TouchUploadToken(uploadToken.ID, time.Now()); err != nil {
		log.Warnf("[UserService] 刷新上传令牌使用时间失败: %v", err)
	}

	return user, nil
}

// GetByID 根据 ID 查找用户。
func (s *userService) GetByID(id string) (*model.User, error) {
	user, err := s.userRepo.FindByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

// GetGlobalStats 返回整站统计。
func (s *userService) GetGlobalStats() (*model.GlobalStats, error) {
	stats, err := s.fileRepo.GetGlobalStats(time.Now())
	if err != nil {
		return nil, err
	}
	userCount, err := s.userRepo.Count()
	if err != nil {
		return nil, err
	}
	stats.TotalUsers = userCount
	return stats, nil
}
