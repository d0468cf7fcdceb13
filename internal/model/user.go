package model

import "time"

// User 定义了 users 表的 ORM 模型。
// 用户是网页端的登录主体，通过魔法链接验证邮箱。
type User struct {
	ID          string     `gorm:"type:varchar(36);primaryKey" json:"id"`
	Email       string     `gorm:"type:varchar(255);not null;uniqueIndex" json:"email"`
	CreatedAt   time.Time  `gorm:"autoCreateTime" json:"createdAt"`
	LastLoginAt *time.Time `gorm:"default:null" json:"lastLoginAt"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (User) TableName() string {
	return "users"
}

// MagicLink 定义了 magic_links 表的 ORM 模型。
// 每条记录对应一个一次性登录令牌。
type MagicLink struct {
	ID        string     `gorm:"type:varchar(36);primaryKey" json:"id"`
	UserID    string     `gorm:"type:varchar(36);not null;index" json:"userId"`
	Token     string     `gorm:"type:varchar(64);not null;uniqueIndex" json:"-"`
	CreatedAt time.Time  `gorm:"autoCreateTime" json:"createdAt"`
	ExpiresAt time.Time  `gorm:"not null" json:"expiresAt"`
	UsedAt    *time.Time `gorm:"default:null" json:"usedAt"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (MagicLink) TableName() string {
	return "magic_links"
}

// UploadToken 定义了 upload_tokens 表的 ORM 模型。
// 上传令牌长期有效，绑定设备信息，用于 API 鉴权。
type UploadToken struct {
	ID         string     `gorm:"type:varchar(36);primaryKey" json:"id"`
	UserID     string     `gorm:"type:varchar(36);not null;index" json:"userId"`
	Token      string     `gorm:"type:varchar(96);not null;uniqueIndex" json:"-"`
	DeviceInfo *string    `gorm:"type:varchar(255)" json:"deviceInfo"`
	CreatedAt  time.Time  `gorm:"autoCreateTime" json:"createdAt"`
	LastUsedAt *time.Time `gorm:"default:null" json:"lastUsedAt"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (UploadToken) TableName() string {
	return "upload_tokens"
}
