package service

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"echo-link-go/internal/model"
	"echo-link-go/internal/repository"
	"echo-link-go/pkg/log"
)

// AccountService 接口定义了账户相关的业务操作。
type AccountService interface {
	// Create 创建一个新账户，email 为空表示暂无主邮箱。
	Create(primaryEmail string) (*model.Account, error)
	GetByID(id string) (*model.Account, error)
	// GetOrCreateForEmail 按邮箱查找账户，不存在则创建。
	GetOrCreateForEmail(email string) (*model.Account, error)
	UpdateEmail(accountID, email string) error
	GetStats(accountID string) (*model.AccountStats, error)
	GetIdentities(accountID string) ([]model.UploadIdentity, error)
	// Merge 将 source 账户的全部文件与身份并入 target，然后删除 source。
	// 整个过程在一个事务中完成。
	Merge(sourceAccountID, targetAccountID string) error
	// MergeInTx 在调用方提供的事务中执行合并，供绑定流程复用。
	MergeInTx(tx *gorm.DB, sourceAccountID, targetAccountID string) error
}

// accountService 是 AccountService 接口的实现。
type accountService struct {
	db           *gorm.DB
	accountRepo  repository.AccountRepository
	identityRepo repository.IdentityRepository
	fileRepo     repository.FileRepository
}

// NewAccountService 创建一个新的 AccountService 实例。
func NewAccountService(db *gorm.DB, accountRepo repository.AccountRepository, identityRepo repository.IdentityRepository, fileRepo repository.FileRepository) AccountService {
	return &accountService{
		db:           db,
		accountRepo:  accountRepo,
		identityRepo: identityRepo,
		fileRepo:     fileRepo,
	}
}

// Create 创建一个新账户。
func (s *accountService) Create(primaryEmail string) (*model.Account, error) {
	account := &model.Account{
		ID: uuid.NewString(),
	}
	if primaryEmail != "" {
		account.PrimaryEmail = &primaryEmail
	}
	if err := s.accountRepo.Create(account); err != nil {
		return nil, err
	}
	log.Infof("[AccountService] 创建账户成功, id: %s", account.ID)
	return account, nil
}

// GetByID 根据 ID 查找账户。
func (s *accountService) GetByID(id string) (*model.Account, error) {
	account, err := s.accountRepo.FindByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return account, nil
}

// GetOrCreateForEmail 按邮箱查找账户，不存在则创建。
// 并发创建同一邮箱时依靠唯一索引兜底，冲突方退化为查找。
func (s *accountService) GetOrCreateForEmail(email string) (*model.Account, error) {
	account, err := s.accountRepo.FindByEmail(email)
	if err == nil {
		return account, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	account, err = s.Create(email)
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return s.accountRepo.FindByEmail(email)
		}
		return nil, err
	}
	return account, nil
}

// UpdateEmail 更新账户主邮箱。
func (s *accountService) UpdateEmail(accountID, email string) error {
	if _, err := s.GetByID(accountID); err != nil {
		return err
	}
	return s.accountRepo.UpdateEmail(accountID, email)
}

// GetStats 返回账户的文件总量与近 24 小时用量。
// 账户不存在时返回 ErrAccountNotFound，而不是全零统计。
func (s *accountService) GetStats(accountID string) (*model.AccountStats, error) {
	if _, err := s.GetByID(accountID); err != nil {
		return nil, err
	}
	return s.accountRepo.GetStats(accountID, time.Now())
}

// GetIdentities 列出账户名下的所有上传身份。
func (s *accountService) GetIdentities(accountID string) ([]model.UploadIdentity, error) {
	if _, err := s.GetByID(accountID); err != nil {
		return nil, err
	}
	return s.identityRepo.ListByAccount(accountID)
}

// Merge 在独立事务中合并两个账户。
func (s *accountService) Merge(sourceAccountID, targetAccountID string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		return s.MergeInTx(tx, sourceAccountID, targetAccountID)
	})
}

// MergeInTx 执行账户合并的全部步骤：
// 先转移文件，再转移身份，刷新目标账户时间戳，最后删除源账户。
// 任何一步失败都会使整个事务回滚。
func (s *accountService) MergeInTx(tx *gorm.DB, sourceAccountID, targetAccountID string) error {
	if sourceAccountID == targetAccountID {
		return nil
	}
	now := time.Now()

	movedFiles, err := s.fileRepo.WithTx(tx).ReassignAccount(sourceAccountID, targetAccountID)
	if err != nil {
		return err
	}

	movedIdentities, err := s.identityRepo.WithTx(tx).ReassignAccount(sourceAccountID, targetAccountID, now)
	if err != nil {
		return err
	}

	affected, err := s.accountRepo.WithTx(tx).Touch(targetAccountID, now)
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrAccountNotFound
	}

	deleted, err := s.accountRepo.WithTx(tx).Delete(sourceAccountID)
	if err != nil {
		return err
	}
	if deleted == 0 {
		return ErrAccountNotFound
	}

	log.Infof("[AccountService] 账户合并完成, source: %s, target: %s, files: %d, identities: %d",
		sourceAccountID, targetAccountID, movedFiles, movedIdentities)
	return nil
}
