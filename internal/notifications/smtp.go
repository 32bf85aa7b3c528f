package notifications

import (
	"context"
	"fmt"
	"net/smtp"

	"github.com/sabanago/ride-sharing/pkg/config"
)

const fromName = "SabanaGo"

// SMTPSender delivers mail through a plain SMTP relay.
type SMTPSender struct {
	host     string
	port     string
	username string
	password string
	from     string
}

func NewSMTPSender(cfg config.MailConfig) *SMTPSender {
	return &SMTPSender{
		host:     cfg.Host,
		port:     cfg.Port,
		username: cfg.Username,
		password: cfg.Password,
		from:     cfg.From,
	}
}

// Send delivers an HTML email. smtp.SendMail has no context support, so the
// dial runs in its own goroutine and the call returns early when the context
// expires; the abandoned attempt finishes in the background.
func (s *SMTPSender) Send(ctx context.Context, to, subject, htmlBody string) error {
	done := make(chan error, 1)
	go func() {
		done <- s.send(to, subject, htmlBody)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return fmt.Errorf("email send aborted: %w", ctx.Err())
	}
}

func (s *SMTPSender) send(to, subject, htmlBody string) error {
	from := fmt.Sprintf("%s <%s>", fromName, s.from)

	msg := []byte(fmt.Sprintf("From: %s\r\n"+
		"To: %s\r\n"+
		"Subject: %s\r\n"+
		"MIME-Version: 1.0\r\n"+
		"Content-Type: text/html; charset=UTF-8\r\n"+
		"\r\n"+
		"%s\r\n", from, to, subject, htmlBody))

	auth := smtp.PlainAuth("", s.username, s.password, s.host)
	addr := fmt.Sprintf("%s:%s", s.host, s.port)

	if err := smtp.SendMail(addr, auth, s.from, []string{to}, msg); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}
