package notify

import (
	"context"
	"crypto/tls"
	"fmt"

	"gopkg.in/gomail.v2"

	"github.com/nerrad567/climate-core/internal/infrastructure/config"
)

// mailer is the part of gomail.Dialer the SMTP sender uses.
type mailer interface {
	DialAndSend(m ...*gomail.Message) error
}

// SMTPSender delivers messages as plain-text mail.
type SMTPSender struct {
	from   string
	dialer mailer
}

// NewSMTPSender creates a mail sender. UseSSL selects implicit TLS (port
// 465 style); UseTLS verifies the server name on STARTTLS.
func NewSMTPSender(cfg config.SMTPConfig) *SMTPSender {
	d := gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	d.SSL = cfg.UseSSL
	if cfg.UseTLS || cfg.UseSSL {
		d.TLSConfig = &tls.Config{ServerName: cfg.Host, MinVersion: tls.VersionTLS12}
	}
	return &SMTPSender{from: cfg.From, dialer: d}
}

// Send dials the server and delivers msg. gomail has no context support,
// so ctx is only checked before dialling.
func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrSendFailed, err)
	}
	if err := s.dialer.DialAndSend(s.message(msg)); err != nil {
		return fmt.Errorf("%w: mail to %s: %w", ErrSendFailed, msg.To, err)
	}
	return nil
}

func (s *SMTPSender) message(msg Message) *gomail.Message {
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/plain", msg.Body)
	return m
}
