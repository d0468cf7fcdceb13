package model

import "time"

// 上传会话的生命周期状态。
const (
	SessionStatusPending   = "pending"
	SessionStatusCompleted = "completed"
	SessionStatusExpired   = "expired"
)

// DiscordUploadSession 定义了 discord_upload_sessions 表的 ORM 模型。
// 机器人先创建会话，用户再通过会话令牌在浏览器完成上传。
type DiscordUploadSession struct {
	ID                      string     `gorm:"type:varchar(36);primaryKey" json:"id"`
	Token                   string     `gorm:"type:varchar(64);not null;uniqueIndex" json:"-"`
	UploadIdentityID        string     `gorm:"type:varchar(36);not null;index" json:"uploadIdentityId"`
	DiscordUserID           string     `gorm:"type:varchar(64);not null" json:"discordUserId"`
	DiscordUserName         *string    `gorm:"type:varchar(255)" json:"discordUserName"`
	DiscordChannelID        string     `gorm:"type:varchar(64);not null" json:"discordChannelId"`
	DiscordGuildID          *string    `gorm:"type:varchar(64)" json:"discordGuildId"`
	DiscordInteractionToken *string    `gorm:"type:varchar(255)" json:"-"`
	DiscordApplicationID    *string    `gorm:"type:varchar(64)" json:"-"`
	Status                  string     `gorm:"type:varchar(20);not null;default:pending" json:"status"`
	FileID                  *string    `gorm:"type:varchar(36)" json:"fileId"`
	CreatedAt               time.Time  `gorm:"autoCreateTime" json:"createdAt"`
	ExpiresAt               time.Time  `gorm:"not null;index" json:"expiresAt"`
	CompletedAt             *time.Time `gorm:"default:null" json:"completedAt"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (DiscordUploadSession) TableName() string {
	return "discord_upload_sessions"
}
