// Package token 提供了生成和比较不透明令牌的功能。
// 登录链接、上传令牌和会话令牌都是随机十六进制字符串，有效性由数据库记录决定。
package token

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
)

// NewHex 生成 byteLen 个随机字节并编码为十六进制字符串（长度为 2*byteLen）。
func NewHex(byteLen int) string {
	bytes := make([]byte, byteLen)
	if _, err := rand.Read(bytes); err != nil {
		// crypto/rand 失败极罕见，退化为可预测令牌会破坏鉴权，直接 panic
		panic(err)
	}
	return hex.EncodeToString(bytes)
}

// NewMagicLinkToken 生成一个登录魔法链接令牌。
func NewMagicLinkToken() string {
	return NewHex(32)
}

// NewUploadToken 生成一个长期有效的上传令牌。
func NewUploadToken() string {
	return NewHex(48)
}

// NewSessionToken 生成一个 Discord 上传会话令牌。
func NewSessionToken() string {
	return NewHex(32)
}

// Equal 以恒定时间比较两个令牌，避免计时侧信道。
func Equal(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
