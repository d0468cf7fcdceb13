// Package model 定义了与数据库表对应的 Go 结构体。
package model

import "time"

// Account 定义了 accounts 表的 ORM 模型。
// 账户是配额与文件归属的聚合根，一个账户可以绑定多个上传身份。
type Account struct {
	ID           string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	PrimaryEmail *string   `gorm:"type:varchar(255);uniqueIndex" json:"primaryEmail"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (Account) TableName() string {
	return "accounts"
}

// AccountStats 聚合了一个账户名下文件的总量与近 24 小时用量。
// 它不是数据库表，由聚合查询填充。
type AccountStats struct {
	AccountID    string `json:"accountId"`
	TotalFiles   int64  `json:"totalFiles"`
	TotalBytes   int64  `json:"totalBytes"`
	FilesLast24h int64  `json:"filesLast24h"`
	BytesLast24h int64  `json:"bytesLast24h"`
}
