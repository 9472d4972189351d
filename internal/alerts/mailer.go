package alerts

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strings"

	"go.uber.org/zap"

	"github.com/sudo-init-do/skillbridge/internal/config"
)

// Mailer delivers one rendered email.
type Mailer interface {
	Send(ctx context.Context, env EmailEnvelope) error
}

// NewMailer picks the provider named by MAIL_PROVIDER.
func NewMailer(cfg config.Config, logger *zap.Logger) (Mailer, error) {
	switch cfg.MailProvider {
	case "smtp":
		s := cfg.SMTP
		if s.Host == "" || s.Port == "" || s.Username == "" || s.Password == "" || s.From == "" {
			return nil, fmt.Errorf("smtp not configured: set SMTP_HOST, SMTP_PORT, SMTP_USERNAME, SMTP_PASSWORD, SMTP_FROM (or set MAIL_PROVIDER=plunk)")
		}
		return &SMTPMailer{cfg: s}, nil
	case "plunk":
		if cfg.Plunk.APIKey == "" {
			return nil, fmt.Errorf("plunk not configured: set PLUNK_API_KEY")
		}
		return NewPlunkMailer(cfg.Plunk, cfg.SMTP.ReplyTo, nil), nil
	case "log", "":
		return &LogMailer{logger: logger.With(zap.String("component", "mailer"))}, nil
	}
	return nil, fmt.Errorf("unknown MAIL_PROVIDER %q", cfg.MailProvider)
}

// LogMailer writes emails to the log instead of sending them.
type LogMailer struct {
	logger *zap.Logger
}

func (m *LogMailer) Send(_ context.Context, env EmailEnvelope) error {
	m.logger.Info("email",
		zap.String("to", env.To),
		zap.String("subject", env.Subject),
		zap.Int("body_bytes", len(env.Body)))
	return nil
}

// SMTPMailer sends a plain text email using SMTP with implicit TLS.
type SMTPMailer struct {
	cfg config.SMTPConfig
}

func buildMessage(from, replyTo string, env EmailEnvelope) string {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", env.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", env.Subject)
	if replyTo != "" {
		fmt.Fprintf(&b, "Reply-To: %s\r\n", replyTo)
	}
	b.WriteString("MIME-Version: 1.0\r\n")
	contentType := "text/plain"
	lb := strings.ToLower(env.Body)
	if strings.Contains(lb, "<html") || strings.Contains(lb, "<body") || strings.Contains(lb, "<!doctype html") {
		contentType = "text/html"
	}
	fmt.Fprintf(&b, "Content-Type: %s; charset=\"utf-8\"\r\n", contentType)
	b.WriteString("\r\n" + env.Body + "\r\n")
	return b.String()
}

func (m *SMTPMailer) Send(ctx context.Context, env EmailEnvelope) error {
	addr := net.JoinHostPort(m.cfg.Host, m.cfg.Port)
	dialer := &tls.Dialer{Config: &tls.Config{ServerName: m.cfg.Host}}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("smtp dial: %w", err)
	}
	defer conn.Close()
	if dl, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(dl)
	}

	c, err := smtp.NewClient(conn, m.cfg.Host)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}
	defer c.Close()

	auth := smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	if err := c.Auth(auth); err != nil {
		return fmt.Errorf("smtp auth: %w", err)
	}
	if err := c.Mail(m.cfg.From); err != nil {
		return fmt.Errorf("smtp mail from: %w", err)
	}
	if err := c.Rcpt(env.To); err != nil {
		return fmt.Errorf("smtp rcpt to: %w", err)
	}
	wc, err := c.Data()
	if err != nil {
		return fmt.Errorf("smtp data: %w", err)
	}
	if _, err := wc.Write([]byte(buildMessage(m.cfg.From, m.cfg.ReplyTo, env))); err != nil {
		return fmt.Errorf("smtp write: %w", err)
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("smtp close: %w", err)
	}
	return c.Quit()
}
