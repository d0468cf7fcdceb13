package model

import "time"

// LinkRequestState 表示一条绑定请求的当前状态。
// 状态不入库，由 used_at / expires_at 推导。
type LinkRequestState int

const (
	LinkStatePending LinkRequestState = iota
	LinkStateUsed
	LinkStateExpired
)

// DiscordLinkRequest 定义了 discord_link_requests 表的 ORM 模型。
// 每条记录对应一个短期有效的绑定码，只能被消费一次。
type DiscordLinkRequest struct {
	ID        string     `gorm:"type:varchar(36);primaryKey" json:"id"`
	AccountID string     `gorm:"type:varchar(36);not null;index" json:"accountId"`
	Code      string     `gorm:"type:varchar(7);not null;uniqueIndex" json:"code"`
	CreatedAt time.Time  `gorm:"autoCreateTime" json:"createdAt"`
	ExpiresAt time.Time  `gorm:"not null" json:"expiresAt"`
	UsedAt    *time.Time `gorm:"default:null" json:"usedAt"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (DiscordLinkRequest) TableName() string {
	return "discord_link_requests"
}

// StateAt 返回请求在给定时刻的状态。已使用优先于已过期。
func (r *DiscordLinkRequest) StateAt(now time.Time) LinkRequestState {
	if r.UsedAt != nil {
		return LinkStateUsed
	}
	if now.After(r.ExpiresAt) {
		return LinkStateExpired
	}
	return LinkStatePending
}
