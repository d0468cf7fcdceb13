package repository

import (
	"time"

	"gorm.io/gorm"

	"echo-link-go/internal/model"
)

// SessionRepository 接口定义了 Discord 上传会话的持久化操作。
type SessionRepository interface {
	Create(session *model.DiscordUploadSession) error
	FindByToken(token string) (*model.DiscordUploadSession, error)
	FindByID(id string) (*model.DiscordUploadSession, error)
	// Complete 以 CAS 方式完成会话：仅当状态仍为 pending 时写入。
	// 返回 false 表示会话已被并发完成或已过期处理。
	Complete(id, fileID string, now time.Time) (bool, error)
	// ExpireStale 将超时的 pending 会话标记为 expired，返回受影响的行数。
	ExpireStale(now time.Time) (int64, error)
}

// sessionRepository 是 SessionRepository 接口的 GORM 实现。
type sessionRepository struct {
	db *gorm.DB
}

// NewSessionRepository 创建一个新的 SessionRepository 实例。
func NewSessionRepository(db *gorm.DB) SessionRepository {
	return &sessionRepository{db: db}
}

// Create 在数据库中创建一个新的上传会话记录。
func (r *sessionRepository) Create(session *model.DiscordUploadSession) error {
	return r.db.Create(session).Error
}

// FindByToken 根据会话令牌查找上传会话。
func (r *sessionRepository) FindByToken(token string) (*model.DiscordUploadSession, error) {
	var session model.DiscordUploadSession
	err := r.db.Where("token = ?", token).First(&session).Error
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// FindByID 根据 ID 查找上传会话。
func (r *sessionRepository) FindByID(id string) (*model.DiscordUploadSession, error) {
	var session model.DiscordUploadSession
	err := r.db.Where("id = ?", id).First(&session).Error
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// Complete 原子地完成一个上传会话。
func (r *sessionRepository) Complete(id, fileID string, now time.Time) (bool, error) {
	result := r.db.Model(&model.DiscordUploadSession{}).
		Where("id = ? AND status = ?", id, model.SessionStatusPending).
		Updates(map[string]interface{}{
			"status":       model.SessionStatusCompleted,
			"file_id":      fileID,
			"completed_at": now,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// ExpireStale 批量过期超时的 pending 会话。
func (r *sessionRepository) ExpireStale(now time.Time) (int64, error) {
	result := r.db.Model(&model.DiscordUploadSession{}).
		Where("status = ? AND expires_at < ?", model.SessionStatusPending, now).
		Update("status", model.SessionStatusExpired)
	return result.RowsAffected, result.Error
}
