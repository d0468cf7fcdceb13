// Package repository 定义了与数据库进行数据交换的接口和实现。
package repository

import (
	"time"

	"gorm.io/gorm"

	"echo-link-go/internal/model"
)

// AccountRepository 接口定义了账户数据的持久化操作。
type AccountRepository interface {
	// WithTx 返回一个绑定到指定事务的仓库实例。
	WithTx(tx *gorm.DB) AccountRepository
	Create(account *model.Account) error
	FindByID(id string) (*model.Account, error)
	FindByEmail(email string) (*model.Account, error)
	UpdateEmail(id, email string) error
	// Touch 更新账户的 updated_at，返回受影响的行数。
	Touch(id string, now time.Time) (int64, error)
	// Delete 删除账户，返回受影响的行数。
	Delete(id string) (int64, error)
	// GetStats 聚合账户名下文件的总量与近 24 小时用量。
	GetStats(accountID string, now time.Time) (*model.AccountStats, error)
}

// accountRepository 是 AccountRepository 接口的 GORM 实现。
type accountRepository struct {
	db *gorm.DB
}

// NewAccountRepository 创建一个新的 AccountRepository 实例。
func NewAccountRepository(db *gorm.DB) AccountRepository {
	return &accountRepository{db: db}
}

func (r *accountRepository) WithTx(tx *gorm.DB) AccountRepository {
	return &accountRepository{db: tx}
}

// Create 在数据库中创建一个新的账户记录。
func (r *accountRepository) Create(account *model.Account) error {
	return r.db.Create(account).Error
}

// FindByID 根据 ID 查找账户。
func (r *accountRepository) FindByID(id string) (*model.Account, error) {
	var account model.Account
	err := r.db.Where("id = ?", id).First(&account).Error
	if err != nil {
		return nil, err
	}
	return &account, nil
}

// FindByEmail 根据主邮箱查找账户。
func (r *accountRepository) FindByEmail(email string) (*model.Account, error) {
	var account model.Account
	err := r.db.Where("primary_email = ?", email).First(&account).Error
	if err != nil {
		return nil, err
	}
	return &account, nil
}

// UpdateEmail 更新账户的主邮箱。
func (r *accountRepository) UpdateEmail(id, email string) error {
	return r.db.Model(&model.Account{}).Where("id = ?", id).
		Update("primary_email", email).Error
}

// Touch 更新账户的 updated_at。
func (r *accountRepository) Touch(id string, now time.Time) (int64, error) {
	result := r.db.Model(&model.Account{}).Where("id = ?", id).
		Update("updated_at", now)
	return result.RowsAffected, result.Error
}

// Delete 删除账户记录。
func (r *accountRepository) Delete(id string) (int64, error) {
	result := r.db.Where("id = ?", id).Delete(&model.Account{})
	return result.RowsAffected, result.Error
}

// GetStats 用单条聚合查询统计账户的文件总量与滚动 24 小时窗口内的用量。
// 窗口边界作为参数传入，保证 MySQL 与 SQLite 语义一致。
func (r *accountRepository) GetStats(accountID string, now time.Time) (*model.AccountStats, error) {
	cutoff := now.Add(-24 * time.Hour)

	stats := model.AccountStats{AccountID: accountID}
	err := r.db.Model(&model.File{}).
		Select(
			"COUNT(id) AS total_files, "+
				"COALESCE(SUM(size_bytes), 0) AS total_bytes, "+
				"COALESCE(SUM(CASE WHEN created_at >= ? THEN 1 ELSE 0 END), 0) AS files_last24h, "+
				"COALESCE(SUM(CASE WHEN created_at >= ? THEN size_bytes ELSE 0 END), 0) AS bytes_last24h",
			cutoff, cutoff).
		Where("account_id = ?", accountID).
		Scan(&stats).Error
	if err != nil {
		return nil, err
	}
	return &stats, nil
}
