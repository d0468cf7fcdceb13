package repository

import (
	"time"

	"gorm.io/gorm"

	"echo-link-go/internal/model"
)

// FileRepository 接口定义了文件元数据的持久化操作。
type FileRepository interface {
	// WithTx 返回一个绑定到指定事务的仓库实例。
	WithTx(tx *gorm.DB) FileRepository
	Create(file *model.File) error
	FindByID(id string) (*model.File, error)
	Delete(id string) (int64, error)
	// ReassignAccount 将一个账户名下的所有文件转移到另一个账户，返回受影响的行数。
	ReassignAccount(fromAccountID, toAccountID string) (int64, error)
	RecentByAccount(accountID string, limit int) ([]model.File, error)
	RecentGlobal(limit int) ([]model.File, error)
	SetThumbnailKey(id, thumbnailKey string) error
	// FindExpired 返回已过期的文件记录。
	FindExpired(now time.Time) ([]model.File, error)
	// GetGlobalStats 聚合整站的文件数、存储量与近 24 小时用量。
	GetGlobalStats(now time.Time) (*model.GlobalStats, error)
}

// fileRepository 是 FileRepository 接口的 GORM 实现。
type fileRepository struct {
	db *gorm.DB
}

// NewFileRepository 创建一个新的 FileRepository 实例。
func NewFileRepository(db *gorm.DB) FileRepository {
	return &fileRepository{db: db}
}

func (r *fileRepository) WithTx(tx *gorm.DB) FileRepository {
	return &fileRepository{db: tx}
}

// Create 在数据库中创建一个新的文件记录。
func (r *fileRepository) Create(file *model.File) error {
	return r.db.Create(file).Error
}

// FindByID 根据 ID 查找文件。
func (r *fileRepository) FindByID(id string) (*model.File, error) {
	var file model.File
	err := r.db.Where("id = ?", id).First(&file).Error
	if err != nil {
		return nil, err
	}
	return &file, nil
}

// Delete 删除文件记录。
func (r *fileRepository) Delete(id string) (int64, error) {
	result := r.db.Where("id = ?", id).Delete(&model.File{})
	return result.RowsAffected, result.Error
}

// ReassignAccount 批量转移账户下的文件归属。
func (r *fileRepository) ReassignAccount(fromAccountID, toAccountID string) (int64, error) {
	result := r.db.Model(&model.File{}).
		Where("account_id = ?", fromAccountID).
		Update("account_id", toAccountID)
	return result.RowsAffected, result.Error
}

// RecentByAccount 按时间倒序列出账户最近上传的文件。
func (r *fileRepository) RecentByAccount(accountID string, limit int) ([]model.File, error) {
	var files []model.File
	err := r.db.Where("account_id = ?", accountID).
		Order("created_at DESC").Limit(limit).Find(&files).Error
	return files, err
}

// RecentGlobal 按时间倒序列出全站最近上传的文件。
func (r *fileRepository) RecentGlobal(limit int) ([]model.File, error) {
	var files []model.File
	err := r.db.Order("created_at DESC").Limit(limit).Find(&files).Error
	return files, err
}

// SetThumbnailKey 记录文件缩略图的存储位置。
func (r *fileRepository) SetThumbnailKey(id, thumbnailKey string) error {
	return r.db.Model(&model.File{}).Where("id = ?", id).
		Update("thumbnail_s3_key", thumbnailKey).Error
}

// FindExpired 返回所有已过期的文件记录。
func (r *fileRepository) FindExpired(now time.Time) ([]model.File, error) {
	var files []model.File
	err := r.db.Where("expires_at IS NOT NULL AND expires_at < ?", now).Find(&files).Error
	return files, err
}

// GetGlobalStats 用单条聚合查询统计整站文件量与滚动 24 小时 / 7 天 / 30 天窗口内的用量。
func (r *fileRepository) GetGlobalStats(now time.Time) (*model.GlobalStats, error) {
	day := now.Add(-24 * time.Hour)
	week := now.Add(-7 * 24 * time.Hour)
	month := now.Add(-30 * 24 * time.Hour)

	var stats model.GlobalStats
	err := r.db.Model(&model.File{}).
		Select(
			"COUNT(id) AS total_files, "+
				"COALESCE(SUM(size_bytes), 0) AS total_bytes, "+
				"COALESCE(SUM(CASE WHEN created_at >= ? THEN 1 ELSE 0 END), 0) AS files_last24h, "+
				"COALESCE(SUM(CASE WHEN created_at >= ? THEN size_bytes ELSE 0 END), 0) AS bytes_last24h, "+
				"COALESCE(SUM(CASE WHEN created_at >= ? THEN 1 ELSE 0 END), 0) AS files_last7d, "+
				"COALESCE(SUM(CASE WHEN created_at >= ? THEN size_bytes ELSE 0 END), 0) AS bytes_last7d, "+
				"COALESCE(SUM(CASE WHEN created_at >= ? THEN 1 ELSE 0 END), 0) AS files_last30d, "+
				"COALESCE(SUM(CASE WHEN created_at >= ? THEN size_bytes ELSE 0 END), 0) AS bytes_last30d",
			day, day, week, week, month, month).
		Scan(&stats).Error
	if err != nil {
		return nil, err
	}
	return &stats, nil
}
