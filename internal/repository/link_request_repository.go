package repository

import (
	"time"

	"gorm.io/gorm"

	"echo-link-go/internal/model"
)

// LinkRequestRepository 接口定义了 Discord 绑定请求的持久化操作。
type LinkRequestRepository interface {
	// WithTx 返回一个绑定到指定事务的仓库实例。
	WithTx(tx *gorm.DB) LinkRequestRepository
	Create(request *model.DiscordLinkRequest) error
	FindByCode(code string) (*model.DiscordLinkRequest, error)
	// InvalidateUnused 将账户名下所有未使用的请求标记为已使用（新码作废旧码）。
	InvalidateUnused(accountID string, now time.Time) (int64, error)
	// MarkUsed 以 CAS 方式消费请求：仅当 used_at 仍为 NULL 时写入。
	// 返回 false 表示请求已被并发消费。
	MarkUsed(id string, now time.Time) (bool, error)
	ListPending(accountID string, now time.Time) ([]model.DiscordLinkRequest, error)
	// DeleteExpiredBefore 清理 expires_at 早于 cutoff 的请求（无论是否已消费），
	// 返回删除的行数。code 带全表唯一索引，及时清理保持码空间稀疏。
	DeleteExpiredBefore(cutoff time.Time) (int64, error)
}

// linkRequestRepository 是 LinkRequestRepository 接口的 GORM 实现。
type linkRequestRepository struct {
	db *gorm.DB
}

// NewLinkRequestRepository 创建一个新的 LinkRequestRepository 实例。
func NewLinkRequestRepository(db *gorm.DB) LinkRequestRepository {
	return &linkRequestRepository{db: db}
}

func (r *linkRequestRepository) WithTx(tx *gorm.DB) LinkRequestRepository {
	return &linkRequestRepository{db: tx}
}

// Create 在数据库中创建一个新的绑定请求记录。
func (r *linkRequestRepository) Create(request *model.DiscordLinkRequest) error {
	return r.db.Create(request).Error
}

// FindByCode 根据绑定码查找请求。
func (r *linkRequestRepository) FindByCode(code string) (*model.DiscordLinkRequest, error) {
	var request model.DiscordLinkRequest
	err := r.db.Where("code = ?", code).First(&request).Error
	if err != nil {
		return nil, err
	}
	return &request, nil
}

// InvalidateUnused 作废账户名下所有未使用的绑定请求。
func (r *linkRequestRepository) InvalidateUnused(accountID string, now time.Time) (int64, error) {
	result := r.db.Model(&model.DiscordLinkRequest{}).
		Where("account_id = ? AND used_at IS NULL", accountID).
		Update("used_at", now)
	return result.RowsAffected, result.Error
}

// MarkUsed 原子地消费一条绑定请求。
func (r *linkRequestRepository) MarkUsed(id string, now time.Time) (bool, error) {
	result := r.db.Model(&model.DiscordLinkRequest{}).
		Where("id = ? AND used_at IS NULL", id).
		Update("used_at", now)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// ListPending 列出账户名下未使用且未过期的绑定请求。
func (r *linkRequestRepository) ListPending(accountID string, now time.Time) ([]model.DiscordLinkRequest, error) {
	var requests []model.DiscordLinkRequest
	err := r.db.Where("account_id = ? AND used_at IS NULL AND expires_at > ?", accountID, now).
		Order("created_at DESC").Find(&requests).Error
	return requests, err
}

// DeleteExpiredBefore 删除 expires_at 早于 cutoff 的绑定请求。
func (r *linkRequestRepository) DeleteExpiredBefore(cutoff time.Time) (int64, error) {
	result := r.db.Where("expires_at < ?", cutoff).
		Delete(&model.DiscordLinkRequest{})
	return result.RowsAffected, result.Error
}
