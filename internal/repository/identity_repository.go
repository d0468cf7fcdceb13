package repository

import (
	"time"

	"gorm.io/gorm"

	"echo-link-go/internal/model"
)

// IdentityRepository 接口定义了上传身份数据的持久化操作。
type IdentityRepository interface {
	// WithTx 返回一个绑定到指定事务的仓库实例。
	WithTx(tx *gorm.DB) IdentityRepository
	Create(identity *model.UploadIdentity) error
	FindByID(id string) (*model.UploadIdentity, error)
	FindByKindAndExternalID(kind model.IdentityKind, externalID string) (*model.UploadIdentity, error)
	Update(identity *model.UploadIdentity) error
	ListByAccount(accountID string) ([]model.UploadIdentity, error)
	// ReassignAccount 将一个账户名下的所有身份转移到另一个账户，
	// 同时刷新 updated_at，返回受影响的行数。
	ReassignAccount(fromAccountID, toAccountID string, now time.Time) (int64, error)
	Delete(id string) (int64, error)
}

// identityRepository 是 IdentityRepository 接口的 GORM 实现。
type identityRepository struct {
	db *gorm.DB
}

// NewIdentityRepository 创建一个新的 IdentityRepository 实例。
func NewIdentityRepository(db *gorm.DB) IdentityRepository {
	return &identityRepository{db: db}
}

func (r *identityRepository) WithTx(tx *gorm.DB) IdentityRepository {
	return &identityRepository{db: tx}
}

// Create 在数据库中创建一个新的上传身份记录。
func (r *identityRepository) Create(identity *model.UploadIdentity) error {
	return r.db.Create(identity).Error
}

// FindByID 根据 ID 查找上传身份。
func (r *identityRepository) FindByID(id string) (*model.UploadIdentity, error) {
	var identity model.UploadIdentity
	err := r.db.Where("id = ?", id).First(&identity).Error
	if err != nil {
		return nil, err
	}
	return &identity, nil
}

// FindByKindAndExternalID 根据平台和外部 ID 查找上传身份。
func (r *identityRepository) FindByKindAndExternalID(kind model.IdentityKind, externalID string) (*model.UploadIdentity, error) {
	var identity model.UploadIdentity
	err := r.db.Where("kind = ? AND external_id = ?", kind, externalID).First(&identity).Error
	if err != nil {
		return nil, err
	}
	return &identity, nil
}

// Update 更新数据库中一个已存在的上传身份记录。
func (r *identityRepository) Update(identity *model.UploadIdentity) error {
	return r.db.Save(identity).Error
}

// ListByAccount 列出一个账户名下的所有上传身份。
func (r *identityRepository) ListByAccount(accountID string) ([]model.UploadIdentity, error) {
	var identities []model.UploadIdentity
	err := r.db.Where("account_id = ?", accountID).
		Order("created_at ASC").Find(&identities).Error
	return identities, err
}

// ReassignAccount 批量转移账户下的身份归属。
func (r *identityRepository) ReassignAccount(fromAccountID, toAccountID string, now time.Time) (int64, error) {
	result := r.db.Model(&model.UploadIdentity{}).
		Where("account_id = ?", fromAccountID).
		Updates(map[string]interface{}{
			"account_id": toAccountID,
			"updated_at": now,
		})
	return result.RowsAffected, result.Error
}

// Delete 删除上传身份记录。
func (r *identityRepository) Delete(id string) (int64, error) {
	result := r.db.Where("id = ?", id).Delete(&model.UploadIdentity{})
	return result.RowsAffected, result.Error
}

