// Package email, şifre sıfırlama email'lerinin gönderimini soyutlar.
//
// Service'ler Sender interface'ine bağımlıdır. Production'da Resend API,
// RESEND_* ayarları boşsa mesajı düşüren disabledSender kullanılır.
package email

import (
	"context"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/resend/resend-go/v3"
	"go.uber.org/zap"
)

// Sender, email gönderimi için interface.
type Sender interface {
	// SendPasswordReset, plaintext token'ı link'e gömüp toEmail'e gönderir.
	SendPasswordReset(ctx context.Context, toEmail, token string, ttl time.Duration) error
}

var resetTemplate = template.Must(template.New("reset").Parse(`<!DOCTYPE html>
<html>
<body style="margin:0;padding:24px;font-family:Arial,Helvetica,sans-serif;background:#f4f4f5;">
  <div style="max-width:480px;margin:0 auto;background:#ffffff;border-radius:8px;padding:32px;">
    <h2 style="margin:0 0 16px 0;color:#18181b;">Password reset</h2>
    <p style="color:#3f3f46;line-height:1.6;">
      Someone asked to reset the password for your account. Use the link below to choose a new one.
    </p>
    <p><a href="{{.Link}}" style="color:#4f46e5;font-weight:600;">Reset password</a></p>
    <p style="color:#71717a;font-size:13px;">
      The link expires in {{.Minutes}} minutes. If you did not ask for this, ignore this email.
    </p>
  </div>
</body>
</html>`))

type resendSender struct {
	client    *resend.Client
	fromEmail string
	appURL    string
}

// NewResendSender, Resend API client'ı ile Sender oluşturur.
// fromEmail Resend'de doğrulanmış bir domain altında olmalıdır.
func NewResendSender(apiKey, fromEmail, appURL string) Sender {
	return &resendSender{
		client:    resend.NewClient(apiKey),
		fromEmail: fromEmail,
		appURL:    strings.TrimRight(appURL, "/"),
	}
}

func (s *resendSender) SendPasswordReset(ctx context.Context, toEmail, token string, ttl time.Duration) error {
	html, err := renderReset(s.appURL, token, ttl)
	if err != nil {
		return err
	}

	params := &resend.SendEmailRequest{
		From:    fmt.Sprintf("custodian <%s>", s.fromEmail),
		To:      []string{toEmail},
		Subject: "Reset your password",
		Html:    html,
	}

	if _, err := s.client.Emails.SendWithContext(ctx, params); err != nil {
		return fmt.Errorf("failed to send password reset email: %w", err)
	}
	return nil
}

// ResetLink, email'deki link'in formatı: {appURL}/reset-password?token={token}
func ResetLink(appURL, token string) string {
	return fmt.Sprintf("%s/reset-password?token=%s", strings.TrimRight(appURL, "/"), token)
}

func renderReset(appURL, token string, ttl time.Duration) (string, error) {
	var b strings.Builder
	err := resetTemplate.Execute(&b, struct {
		Link    string
		Minutes int
	}{
		Link:    ResetLink(appURL, token),
		Minutes: int(ttl.Minutes()),
	})
	if err != nil {
		return "", fmt.Errorf("failed to render password reset email: %w", err)
	}
	return b.String(), nil
}

type disabledSender struct {
	log *zap.Logger
}

// NewDisabledSender, email ayarları yokken kullanılır. Gönderim yapmaz,
// sadece alıcıyı loglar; token asla loglanmaz.
func NewDisabledSender(log *zap.Logger) Sender {
	if log == nil {
		log = zap.NewNop()
	}
	return &disabledSender{log: log.Named("email")}
}

func (s *disabledSender) SendPasswordReset(_ context.Context, toEmail, _ string, _ time.Duration) error {
	s.log.Warn("email delivery disabled, password reset email dropped", zap.String("to", toEmail))
	return nil
}
