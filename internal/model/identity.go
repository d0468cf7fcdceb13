package model

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// IdentityKind 表示上传身份所属的外部平台。
type IdentityKind string

const (
	// IdentityKindWeb 表示网页登录用户，external_id 为用户 ID。
	IdentityKindWeb IdentityKind = "web_user"
	// IdentityKindDiscord 表示 Discord 用户，external_id 为 Discord 用户 ID。
	IdentityKindDiscord IdentityKind = "discord_user"
)

// IdentityMetadata 存储身份的平台相关附加信息，以 JSON 形式入库。
// 已知键通过访问器读取，未知键原样保留。
type IdentityMetadata map[string]string

// GuildID 返回 Discord 服务器 ID（如果有）。
func (m IdentityMetadata) GuildID() string {
	if m == nil {
		return ""
	}
	return m["guild_id"]
}

// Value 实现 driver.Valuer，将元数据序列化为 JSON。
func (m IdentityMetadata) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}

// Scan 实现 sql.Scanner，从 JSON 反序列化元数据。
func (m *IdentityMetadata) Scan(value interface{}) error {
	if value == nil {
		*m = nil
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return errors.New("unsupported type for IdentityMetadata")
	}
	if len(data) == 0 {
		*m = nil
		return nil
	}
	return json.Unmarshal(data, m)
}

// UploadIdentity 定义了 upload_identities 表的 ORM 模型。
// (kind, external_id) 全局唯一，每个身份归属且仅归属一个账户。
type UploadIdentity struct {
	ID            string           `gorm:"type:varchar(36);primaryKey" json:"id"`
	AccountID     string           `gorm:"type:varchar(36);not null;index" json:"accountId"`
	Kind          IdentityKind     `gorm:"type:varchar(20);not null;uniqueIndex:uk_identity_surface" json:"kind"`
	ExternalID    string           `gorm:"type:varchar(64);not null;uniqueIndex:uk_identity_surface" json:"externalId"`
	DisplayName   *string          `gorm:"type:varchar(255)" json:"displayName"`
	ExtraMetadata IdentityMetadata `gorm:"type:json" json:"metadata"`
	CreatedAt     time.Time        `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt     time.Time        `gorm:"autoUpdateTime" json:"updatedAt"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (UploadIdentity) TableName() string {
	return "upload_identities"
}
