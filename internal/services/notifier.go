// notifier.go implements outbound notification email delivery. The only
// notification the backend currently sends is the password-reset email carrying
// the one-time token; the plaintext token exists nowhere else, so a lost email
// means the user simply requests another reset.
package services

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net"
	"net/smtp"
	"strings"

	"github.com/sentinel-dlp/sentinel-dlp/internal/config"
	"github.com/sentinel-dlp/sentinel-dlp/internal/telemetry"
)

// Notifier delivers outbound notification emails. Implementations must be safe
// for concurrent use; callers fire notifications from background goroutines.
type Notifier interface {
	// SendPasswordReset emails the raw one-time reset token to the user.
	SendPasswordReset(ctx context.Context, toEmail, fullName, rawToken string) error
}

// NoopNotifier discards all notifications. Used when notifications are
// disabled or SMTP is not configured.
type NoopNotifier struct{}

// SendPasswordReset implements Notifier.
func (NoopNotifier) SendPasswordReset(ctx context.Context, toEmail, fullName, rawToken string) error {
	return nil
}

// SMTPNotifier delivers notification emails over SMTP, with optional implicit
// TLS for port 465 deployments.
type SMTPNotifier struct {
	cfg       *config.NotificationsConfig
	publicURL string
	logger    *slog.Logger
}

// NewNotifier returns an SMTP-backed notifier when notifications are enabled
// and an SMTP host is configured, and a NoopNotifier otherwise. Either way the
// result is safe to wire in unconditionally.
func NewNotifier(cfg *config.NotificationsConfig, publicURL string, logger *slog.Logger) Notifier {
	if !cfg.Enabled || cfg.SMTP.Host == "" {
		logger.Info("notifications disabled, password reset emails will not be sent")
		return NoopNotifier{}
	}
	return &SMTPNotifier{cfg: cfg, publicURL: publicURL, logger: logger}
}

// SendPasswordReset implements Notifier.
func (n *SMTPNotifier) SendPasswordReset(ctx context.Context, toEmail, fullName, rawToken string) error {
	resetURL := n.resetURL(rawToken)

	subject := "Password reset requested"
	body := strings.Join([]string{
		fmt.Sprintf("Hello %s,", fullName),
		"",
		"A password reset was requested for your Sentinel DLP account.",
		"If you made this request, follow the link below to choose a new password:",
		"",
		"  " + resetURL,
		"",
		"The link expires shortly and can be used once. If you did not request a",
		"reset, no action is required and your password remains unchanged.",
		"",
		"— Sentinel DLP",
	}, "\r\n")

	if err := n.send(toEmail, subject, body); err != nil {
		n.logger.Error("failed to send password reset email", "to", toEmail, "error", err)
		return err
	}

	telemetry.NotificationEmailsSentTotal.Inc()
	n.logger.Info("password reset email sent", "to", toEmail)
	return nil
}

// resetURL builds the link embedded in the reset email. A configured template
// wins; otherwise the link points at the public frontend reset page.
func (n *SMTPNotifier) resetURL(rawToken string) string {
	if n.cfg.ResetURLTemplate != "" {
		return fmt.Sprintf(n.cfg.ResetURLTemplate, rawToken)
	}
	return fmt.Sprintf("%s/resetpassword/%s", strings.TrimRight(n.publicURL, "/"), rawToken)
}

// send composes headers and delivers one plain-text message.
func (n *SMTPNotifier) send(toEmail, subject, body string) error {
	smtpCfg := &n.cfg.SMTP
	headers := fmt.Sprintf(
		"From: %s\r\nTo: %s\r\nSubject: %s\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n",
		smtpCfg.From, toEmail, subject,
	)
	msg := []byte(headers + body + "\r\n")

	addr := fmt.Sprintf("%s:%d", smtpCfg.Host, smtpCfg.Port)
	auth := smtp.PlainAuth("", smtpCfg.Username, smtpCfg.Password, smtpCfg.Host)

	if smtpCfg.UseTLS {
		return sendMailTLS(addr, smtpCfg.Host, auth, smtpCfg.From, []string{toEmail}, msg)
	}
	return smtp.SendMail(addr, auth, smtpCfg.From, []string{toEmail}, msg)
}

// sendMailTLS connects via implicit TLS (port 465 / SMTPS) and sends a message.
// For port 587 STARTTLS, smtp.SendMail handles the upgrade automatically; this
// path exists so UseTLS=true always means an encrypted connection.
func sendMailTLS(addr, host string, auth smtp.Auth, from string, to []string, msg []byte) error {
	tlsConfig := &tls.Config{
		ServerName: host,
		MinVersion: tls.VersionTLS12,
	}

	conn, err := tls.Dial("tcp", addr, tlsConfig)
	if err != nil {
		// Fall back to STARTTLS via the standard smtp.SendMail path (port 587 pattern)
		return smtp.SendMail(addr, auth, from, to, msg)
	}
	defer conn.Close()

	hostname, _, _ := net.SplitHostPort(addr)
	c, err := smtp.NewClient(conn, hostname)
	if err != nil {
		return fmt.Errorf("smtp new client: %w", err)
	}
	defer c.Quit() //nolint:errcheck

	if auth != nil {
		if err := c.Auth(auth); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	}
	if err := c.Mail(from); err != nil {
		return fmt.Errorf("smtp MAIL FROM: %w", err)
	}
	for _, addr := range to {
		if err := c.Rcpt(addr); err != nil {
			return fmt.Errorf("smtp RCPT TO %s: %w", addr, err)
		}
	}
	w, err := c.Data()
	if err != nil {
		return fmt.Errorf("smtp DATA: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		return fmt.Errorf("smtp write: %w", err)
	}
	return w.Close()
}
