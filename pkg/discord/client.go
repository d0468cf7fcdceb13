// Package discord provides a minimal client for Discord's REST API,
// used to send followup messages after an upload session completes.
package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"echo-link-go/internal/config"
	"echo-link-go/pkg/log"
)

// Client 调用 Discord REST API 发送交互的后续消息。
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient 创建一个新的 Discord REST 客户端实例。
func NewClient(cfg config.DiscordConfig) *Client {
	return &Client{
		baseURL: cfg.APIBaseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// messageButton 对应 Discord 消息组件中的按钮 (type 2)。
type messageButton struct {
	Type     int               `json:"type"`
	Style    int               `json:"style"`
	Label    string            `json:"label"`
	CustomID string            `json:"custom_id,omitempty"`
	URL      string            `json:"url,omitempty"`
	Emoji    map[string]string `json:"emoji,omitempty"`
}

// actionRow 对应 Discord 消息组件中的操作行 (type 1)。
type actionRow struct {
	Type       int             `json:"type"`
	Components []messageButton `json:"components"`
}

type followupPayload struct {
	Content    string      `json:"content"`
	Components []actionRow `json:"components,omitempty"`
	Flags      int         `json:"flags"`
}

// 仅发起交互的用户可见
const flagEphemeral = 64

// SendEphemeralFollowup 通过交互 webhook 发送一条仅发起者可见的后续消息。
func (c *Client) SendEphemeralFollowup(ctx context.Context, applicationID, interactionToken, content string, components []actionRow) error {
	payload := followupPayload{
		Content:    content,
		Components: components,
		Flags:      flagEphemeral,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal followup payload: %w", err)
	}

	url := fmt.Sprintf("%s/webhooks/%s/%s", c.baseURL, applicationID, interactionToken)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create followup request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		log.Errorf("[DiscordClient] 发送后续消息失败, error: %v", err)
		return fmt.Errorf("failed to call discord api: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		log.Errorf("[DiscordClient] Discord API 返回错误 [%d]: %s", resp.StatusCode, string(respBody))
		return fmt.Errorf("discord api returned status %d", resp.StatusCode)
	}

	log.Info("[DiscordClient] 后续消息发送成功")
	return nil
}

// SendUploadCompletion 发送上传完成的通知消息，附带打开链接和分享到频道的按钮。
func (c *Client) SendUploadCompletion(ctx context.Context, applicationID, interactionToken, channelID, fileName string, fileSize int64, shareURL, fileID string) error {
	if applicationID == "" || interactionToken == "" {
		log.Warn("[DiscordClient] 缺少交互令牌，跳过上传完成通知")
		return nil
	}

	components := []actionRow{
		{
			Type: 1,
			Components: []messageButton{
				{
					Type:  2,
					Style: 5, // Link
					Label: "Ouvrir le lien",
					URL:   shareURL,
					Emoji: map[string]string{"name": "🔗"},
				},
				{
					Type:     2,
					Style:    1, // Primary
					Label:    "Envoyer dans le chat",
					CustomID: fmt.Sprintf("share_%s_%s", fileID, channelID),
					Emoji:    map[string]string{"name": "💬"},
				},
			},
		},
	}

	content := fmt.Sprintf("✅ **Upload réussi !**\n\n📁 **Fichier:** %s\n📦 **Taille:** %s\n🔗 **Lien:** %s",
		fileName, FormatBytes(fileSize), shareURL)

	return c.SendEphemeralFollowup(ctx, applicationID, interactionToken, content, components)
}

// FormatBytes 将字节数格式化为可读的大小（1024 进制）。
func FormatBytes(bytes int64) string {
	if bytes <= 0 {
		return "0 B"
	}
	units := []string{"B", "KB", "MB", "GB", "TB"}
	size := float64(bytes)
	i := 0
	for size >= 1024 && i < len(units)-1 {
		size /= 1024
		i++
	}
	return fmt.Sprintf("%.2f %s", size, units[i])
}
