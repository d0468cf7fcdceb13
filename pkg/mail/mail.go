// Package mail 负责通过 SMTP 发送服务邮件（目前只有登录魔法链接）。
package mail

import (
	"fmt"

	"gopkg.in/gomail.v2"

	"echo-link-go/internal/config"
	"echo-link-go/pkg/log"
)

// Sender defines the interface for sending magic link emails.
// 测试中可以注入一个记录调用的假实现。
type Sender interface {
	SendMagicLink(to, magicLinkURL string, expireMinutes int) error
}

type smtpSender struct {
	cfg    config.EmailConfig
	dialer *gomail.Dialer
}

// NewSender 创建一个基于 gomail 的 SMTP 发送器。
func NewSender(cfg config.EmailConfig) Sender {
	return &smtpSender{
		cfg:    cfg,
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
	}
}

// SendMagicLink 发送包含一次性登录链接的邮件。
func (s *smtpSender) SendMagicLink(to, magicLinkURL string, expireMinutes int) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.cfg.From)
	m.SetHeader("To", to)
	m.SetHeader("Subject", "Connexion à Echo Link")
	m.SetBody("text/plain", magicLinkText(magicLinkURL, expireMinutes))
	m.AddAlternative("text/html", magicLinkHTML(magicLinkURL, expireMinutes))

	if err := s.dialer.DialAndSend(m); err != nil {
		log.Errorf("[MailSender] 发送魔法链接邮件失败, to: %s, error: %v", to, err)
		return fmt.Errorf("failed to send magic link email: %w", err)
	}

	log.Infof("[MailSender] 魔法链接邮件已发送, to: %s", to)
	return nil
}

func magicLinkText(url string, expireMinutes int) string {
	return fmt.Sprintf(`Connexion à Echo Link

Bonjour,

Vous avez demandé à accéder à votre espace Echo Link. Cliquez sur le lien ci-dessous pour vous connecter :

%s

Ce lien est valide pendant %d minutes et ne peut être utilisé qu'une seule fois.

Si vous n'avez pas demandé cette connexion, vous pouvez ignorer cet email en toute sécurité.
`, url, expireMinutes)
}

func magicLinkHTML(url string, expireMinutes int) string {
	return fmt.Sprintf(`<!DOCTYPE html>
<html lang="fr">
<head>
  <meta charset="UTF-8">
  <title>Connexion à Echo Link</title>
</head>
<body style="margin: 0; padding: 0; font-family: -apple-system, 'Segoe UI', Roboto, Arial, sans-serif; background-color: #f5f5f5;">
  <table width="100%%" cellpadding="0" cellspacing="0" border="0" style="background-color: #f5f5f5; padding: 40px 20px;">
    <tr>
      <td align="center">
        <table width="600" cellpadding="0" cellspacing="0" border="0" style="background-color: #ffffff; border-radius: 8px;">
          <tr>
            <td style="padding: 40px 40px 20px; text-align: center;">
              <h1 style="margin: 0; font-size: 28px; font-weight: 600; color: #1a1a1a;">Echo Link</h1>
              <p style="margin: 10px 0 0; font-size: 16px; color: #666;">Partage de fichiers rapide et sécurisé</p>
            </td>
          </tr>
          <tr>
            <td style="padding: 20px 40px;">
              <p style="margin: 0 0 20px; font-size: 16px; line-height: 1.6; color: #333;">Bonjour,</p>
              <p style="margin: 0 0 20px; font-size: 16px; line-height: 1.6; color: #333;">
                Vous avez demandé à accéder à votre espace Echo Link. Cliquez sur le bouton ci-dessous pour vous connecter :
              </p>
              <table width="100%%" cellpadding="0" cellspacing="0" border="0" style="margin: 30px 0;">
                <tr>
                  <td align="center">
                    <a href="%s" style="display: inline-block; padding: 16px 32px; background-color: #3b82f6; color: #ffffff; text-decoration: none; border-radius: 6px; font-size: 16px; font-weight: 600;">
                      Se connecter à Echo Link
                    </a>
                  </td>
                </tr>
              </table>
              <p style="margin: 20px 0; font-size: 14px; line-height: 1.6; color: #666;">
                Ce lien est valide pendant <strong>%d minutes</strong> et ne peut être utilisé qu'une seule fois.
              </p>
              <p style="margin: 20px 0; font-size: 14px; line-height: 1.6; color: #666;">
                Si vous n'avez pas demandé cette connexion, vous pouvez ignorer cet email en toute sécurité.
              </p>
              <div style="margin: 30px 0; padding: 20px; background-color: #f9fafb; border-radius: 6px;">
                <p style="margin: 0 0 10px; font-size: 13px; color: #666;">
                  Si le bouton ne fonctionne pas, copiez et collez ce lien dans votre navigateur :
                </p>
                <p style="margin: 0; font-size: 13px; color: #3b82f6; word-break: break-all;">%s</p>
              </div>
            </td>
          </tr>
          <tr>
            <td style="padding: 20px 40px 40px; text-align: center; border-top: 1px solid #e5e7eb;">
              <p style="margin: 0; font-size: 13px; color: #999;">Echo Link - Service de partage de fichiers</p>
            </td>
          </tr>
        </table>
      </td>
    </tr>
  </table>
</body>
</html>
`, url, expireMinutes, url)
}
