package model

import "time"

// File 定义了 files 表的 ORM 模型。
// 文件永远归属一个账户，account_id 由上传身份在上传时解析得出。
type File struct {
	ID               string     `gorm:"type:varchar(36);primaryKey" json:"id"`
	AccountID        string     `gorm:"type:varchar(36);not null;index" json:"accountId"`
	UploadIdentityID string     `gorm:"type:varchar(36);not null;index" json:"uploadIdentityId"`
	S3Key            string     `gorm:"type:varchar(255);not null" json:"s3Key"`
	MimeType         string     `gorm:"type:varchar(100);not null" json:"mimeType"`
	SizeBytes        int64      `gorm:"not null" json:"sizeBytes"`
	Title            *string    `gorm:"type:varchar(255)" json:"title"`
	ThumbnailS3Key   *string    `gorm:"type:varchar(255)" json:"thumbnailS3Key"`
	Width            *int       `json:"width"`
	Height           *int       `json:"height"`
	ExpiresAt        *time.Time `gorm:"default:null;index" json:"expiresAt"`
	CreatedAt        time.Time  `gorm:"autoCreateTime;index" json:"createdAt"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (File) TableName() string {
	return "files"
}

// GlobalStats 汇总了整站的用户数、文件数与存储量。
// 不是数据库表，由聚合查询填充。
type GlobalStats struct {
	TotalUsers   int64 `json:"totalUsers"`
	TotalFiles   int64 `json:"totalFiles"`
	TotalBytes   int64 `json:"totalBytes"`
	FilesLast24h int64 `json:"filesLast24h"`
	BytesLast24h int64 `json:"bytesLast24h"`
	FilesLast7d  int64 `json:"filesLast7d"`
	BytesLast7d  int64 `json:"bytesLast7d"`
	FilesLast30d int64 `json:"filesLast30d"`
	BytesLast30d int64 `json:"bytesLast30d"`
}
