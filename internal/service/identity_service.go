package service

import (
	"errors"
	"regexp"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"echo-link-go/internal/model"
	"echo-link-go/internal/repository"
	"echo-link-go/pkg/log"
)

// 与网页端校验一致的宽松邮箱格式
var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// IdentityService 接口定义了上传身份解析相关的业务操作。
type IdentityService interface {
	// Resolve 查找或创建 (kind, externalID) 对应的上传身份。
	// displayName 与 metadata 非空时会刷新已有身份（last-write-wins）。
	// 新身份会被绑定到一个账户：web 身份的展示名形如邮箱时复用邮箱账户，
	// 否则创建匿名账户。
	Resolve(kind model.IdentityKind, externalID, displayName string, metadata model.IdentityMetadata) (*model.UploadIdentity, error)
	GetByID(id string) (*model.UploadIdentity, error)
	// Unlink 解绑一个 Discord 身份。只有身份归属账户的持有者可以操作，
	// 且 web 身份不允许解绑。
	Unlink(accountID, identityID string) error
}

// identityService 是 IdentityService 接口的实现。
type identityService struct {
	identityRepo repository.IdentityRepository
	accountSvc   AccountService
}

// NewIdentityService 创建一个新的 IdentityService 实例。
func NewIdentityService(identityRepo repository.IdentityRepository, accountSvc AccountService) IdentityService {
	return &identityService{
		identityRepo: identityRepo,
		accountSvc:   accountSvc,
	}
}

// Resolve 查找或创建上传身份。
func (s *identityService) Resolve(kind model.IdentityKind, externalID, displayName string, metadata model.IdentityMetadata) (*model.UploadIdentity, error) {
	existing, err := s.identityRepo.FindByKindAndExternalID(kind, externalID)
	if err == nil {
		return s.refresh(existing, displayName, metadata)
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	account, err := s.accountForNewIdentity(kind, displayName)
	if err != nil {
		return nil, err
	}

	identity := &model.UploadIdentity{
		ID:            uuid.NewString(),
		AccountID:     account.ID,
		Kind:          kind,
		ExternalID:    externalID,
		ExtraMetadata: metadata,
	}
	if displayName != "" {
		identity.DisplayName = &displayName
	}

	if err := s.identityRepo.Create(identity); err != nil {
		// 并发创建同一身份时唯一索引兜底，冲突方退化为查找
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			existing, findErr := s.identityRepo.FindByKindAndExternalID(kind, externalID)
			if findErr != nil {
				return nil, findErr
			}
			return s.refresh(existing, displayName, metadata)
		}
		return nil, err
	}

	log.Infof("[IdentityService] 创建上传身份, kind: %s, external_id: %s, account: %s",
		kind, externalID, account.ID)
	return identity, nil
}

// refresh 用新提供的展示名与元数据刷新身份。
func (s *identityService) refresh(identity *model.UploadIdentity, displayName string, metadata model.IdentityMetadata) (*model.UploadIdentity, error) {
	if displayName == "" && metadata == nil {
		return identity, nil
	}
	if displayName != "" {
		identity.DisplayName = &displayName
	}
	if metadata != nil {
		identity.ExtraMetadata = metadata
	}
	identity.UpdatedAt = time.Now()
	if err := s.identityRepo.Update(identity); err != nil {
		return nil, err
	}
	return identity, nil
}

// accountForNewIdentity 为新身份挑选账户。
func (s *identityService) accountForNewIdentity(kind model.IdentityKind, displayName string) (*model.Account, error) {
	if kind == model.IdentityKindWeb && emailPattern.MatchString(displayName) {
		return s.accountSvc.GetOrCreateForEmail(displayName)
	}
	return s.accountSvc.Create("")
}

// GetByID 根据 ID 查找上传身份。
func (s *identityService) GetByID(id string) (*model.UploadIdentity, error) {
	identity, err := s.identityRepo.FindByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrIdentityNotFound
		}
		return nil, err
	}
	return identity, nil
}

// Unlink 解绑一个 Discord 身份。
func (s *identityService) Unlink(accountID, identityID string) error {
	identity, err := s.GetByID(identityID)
	if err != nil {
		return err
	}
	if identity.AccountID != accountID {
		return ErrForbidden
	}
	if identity.Kind != model.IdentityKindDiscord {
		return ErrNotDiscordIdentity
	}

	deleted, err := s.identityRepo.Delete(identityID)
	if err != nil {
		return err
	}
	if deleted == 0 {
		return ErrIdentityNotFound
	}

	log.Infof("[IdentityService] 解绑 Discord 身份, identity: %s, account: %s", identityID, accountID)
	return nil
}
