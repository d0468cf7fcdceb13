// Package service 实现了应用的业务逻辑层。
package service

import (
	"errors"
	"fmt"
)

// 业务层哨兵错误，handler 层据此映射 HTTP 状态码与用户提示。
var (
	ErrAccountNotFound  = errors.New("account not found")
	ErrIdentityNotFound = errors.New("identity not found")
	ErrUserNotFound     = errors.New("user not found")
	ErrFileNotFound     = errors.New("file not found")
	ErrForbidden        = errors.New("operation not allowed")

	// 绑定码错误
	ErrInvalidCode       = errors.New("invalid link code")
	ErrExpiredOrUsedCode = errors.New("link code expired or already used")

	// 魔法链接错误
	ErrMagicLinkNotFound = errors.New("magic link not found")
	ErrMagicLinkUsed     = errors.New("magic link already used")
	ErrMagicLinkExpired  = errors.New("magic link expired")

	// 上传会话错误
	ErrSessionNotFound = errors.New("upload session not found")
	ErrSessionUsed     = errors.New("upload session already used")
	ErrSessionExpired  = errors.New("upload session expired")

	// 只有 Discord 身份可以解绑
	ErrNotDiscordIdentity = errors.New("only discord identities can be unlinked")

	// 文件校验错误
	ErrFileTooLarge    = errors.New("file too large")
	ErrUnsupportedType = errors.New("unsupported file type")
	ErrEmptyFile       = errors.New("empty file")
)

// QuotaError 表示上传因账户配额被拒绝，Reason 为面向用户的提示文案。
type QuotaError struct {
	Reason string
}

func (e *QuotaError) Error() string {
	return fmt.Sprintf("upload quota exceeded: %s", e.Reason)
}
