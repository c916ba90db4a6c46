package mail

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/smtp"
	"strconv"
	"time"

	"talentlink/internal/config"
	"talentlink/internal/observability/logging"
)

const resetSubject = "Reset your TalentLink password"

// SMTPSender delivers password reset links through an SMTP relay.
type SMTPSender struct {
	cfg  config.SMTPConfig
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
	now  func() time.Time
}

func NewSMTPSender(cfg config.SMTPConfig) *SMTPSender {
	return &SMTPSender{cfg: cfg, send: smtp.SendMail, now: time.Now}
}

func (s *SMTPSender) SendPasswordReset(ctx context.Context, to, resetURL string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))

	var auth smtp.Auth
	if s.cfg.Username != "" {
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	}

	done := make(chan error, 1)
	go func() {
		done <- s.send(addr, auth, s.cfg.From, []string{to}, s.compose(to, resetURL))
	}()
	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("smtp send: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *SMTPSender) compose(to, resetURL string) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "From: %s\r\n", s.cfg.From)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", resetSubject)
	fmt.Fprintf(&b, "Date: %s\r\n", s.now().UTC().Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
	b.WriteString("Someone asked to reset the password for this account.\r\n\r\n")
	fmt.Fprintf(&b, "Open this link to choose a new password:\r\n%s\r\n\r\n", resetURL)
	b.WriteString("The link expires in 24 hours. If you did not ask for it, ignore this email.\r\n")
	return b.Bytes()
}

// LogSender stands in for SMTP in development. It records that a link was
// sent and to whom, never the link itself.
type LogSender struct{}

func (LogSender) SendPasswordReset(ctx context.Context, to, _ string) error {
	logging.FromContext(ctx).Info("password reset email suppressed", slog.String("to", to))
	return nil
}
