package repository

import (
	"time"

	"gorm.io/gorm"

	"echo-link-go/internal/model"
)

// UserRepository 接口定义了用户、魔法链接与上传令牌的持久化操作。
type UserRepository interface {
	Create(user *model.User) error
	FindByID(id string) (*model.User, error)
	FindByEmail(email string) (*model.User, error)
	UpdateLastLogin(id string, now time.Time) error
	Count() (int64, error)

	CreateMagicLink(link *model.MagicLink) error
	FindMagicLinkByToken(token string) (*model.MagicLink, error)
	// MarkMagicLinkUsed 以 CAS 方式消费魔法链接，返回 false 表示已被并发消费。
	MarkMagicLinkUsed(id string, now time.Time) (bool, error)
	DeleteExpiredMagicLinks(cutoff time.Time) (int64, error)

	CreateUploadToken(token *model.UploadToken) error
	FindUploadTokenByToken(token string) (*model.UploadToken, error)
	TouchUploadToken(id string, now time.Time) error
}

// userRepository 是 UserRepository 接口的 GORM 实现。
type userRepository struct {
	db *gorm.DB
}

// NewUserRepository 创建一个新的 UserRepository 实例。
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

// Create 在数据库中创建一个新的用户记录。
func (r *userRepository) Create(user *model.User) error {
	return r.db.Create(user).Error
}

// FindByID 根据 ID 查找用户。
func (r *userRepository) FindByID(id string) (*model.User, error) {
	var user model.User
	err := r.db.Where("id = ?", id).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// FindByEmail 根据邮箱查找用户。
func (r *userRepository) FindByEmail(email string) (*model.User, error) {
	var user model.User
	err := r.db.Where("email = ?", email).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// UpdateLastLogin 记录用户最近一次登录时间。
func (r *userRepository) UpdateLastLogin(id string, now time.Time) error {
	return r.db.Model(&model.User{}).Where("id = ?", id).
		Update("last_login_at", now).Error
}

// Count 统计用户总数。
func (r *userRepository) Count() (int64, error) {
	var count int64
	err := r.db.Model(&model.User{}).Count(&count).Error
	return count, err
}

// CreateMagicLink 创建一条魔法链接记录。
func (r *userRepository) CreateMagicLink(link *model.MagicLink) error {
	return r.db.Create(link).Error
}

// FindMagicLinkByToken 根据令牌查找魔法链接。
func (r *userRepository) FindMagicLinkByToken(token string) (*model.MagicLink, error) {
	var link model.MagicLink
	err := r.db.Where("token = ?", token).First(&link).Error
	if err != nil {
		return nil, err
	}
	return &link, nil
}

// MarkMagicLinkUsed 原子地消费一条魔法链接。
func (r *userRepository) MarkMagicLinkUsed(id string, now time.Time) (bool, error) {
	result := r.db.Model(&model.MagicLink{}).
		Where("id = ? AND used_at IS NULL", id).
		Update("used_at", now)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// DeleteExpiredMagicLinks 删除过期且未使用的魔法链接。
func (r *userRepository) DeleteExpiredMagicLinks(cutoff time.Time) (int64, error) {
	result := r.db.Where("used_at IS NULL AND expires_at < ?", cutoff).
		Delete(&model.MagicLink{})
	return result.RowsAffected, result.Error
}

// CreateUploadToken 创建一条上传令牌记录。
func (r *userRepository) CreateUploadToken(token *model.UploadToken) error {
	return r.db.Create(token).Error
}

// FindUploadTokenByToken 根据令牌字符串查找上传令牌。
func (r *userRepository) FindUploadTokenByToken(token string) (*model.UploadToken, error) {
	var uploadToken model.UploadToken
	err := r.db.Where("token = ?", token).First(&uploadToken).Error
	if err != nil {
		return nil, err
	}
	return &uploadToken, nil
}

// TouchUploadToken 记录上传令牌最近一次使用时间。
func (r *userRepository) TouchUploadToken(id string, now time.Time) error {
	return r.db.Model(&model.UploadToken{}).Where("id = ?", id).
		Update("last_used_at", now).Error
}
