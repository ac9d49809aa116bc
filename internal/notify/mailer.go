// Package notify delivers plain-text notification emails over SMTP. It is used
// for invitation emails and API token expiry warnings.
package notify

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"strings"

	"github.com/tenantry/tenantry/internal/config"
)

// ErrNotConfigured is returned by NewMailer when notifications are disabled or
// no SMTP host is set.
var ErrNotConfigured = errors.New("notifications are not configured")

// Mailer sends one email.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// SMTPMailer sends through the configured SMTP relay.
type SMTPMailer struct {
	cfg config.SMTPConfig
	// send is smtp.SendMail, replaced in tests
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewMailer returns an SMTP mailer, or ErrNotConfigured.
func NewMailer(cfg *config.NotificationsConfig) (*SMTPMailer, error) {
	if !cfg.Enabled || cfg.SMTP.Host == "" {
		return nil, ErrNotConfigured
	}
	return &SMTPMailer{cfg: cfg.SMTP, send: smtp.SendMail}, nil
}

// Message renders the RFC 5322 message for one recipient.
func Message(from, to, subject, body string) []byte {
	headers := fmt.Sprintf(
		"From: %s\r\nTo: %s\r\nSubject: %s\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n",
		from, to, subject,
	)
	body = strings.ReplaceAll(strings.ReplaceAll(body, "\r\n", "\n"), "\n", "\r\n")
	return []byte(headers + body + "\r\n")
}

// Send delivers the message. ctx is checked before dialing; net/smtp has no
// context support once the connection is open.
func (m *SMTPMailer) Send(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.ContainsAny(to, "\r\n") || strings.ContainsAny(subject, "\r\n") {
		return fmt.Errorf("invalid header value")
	}

	msg := Message(m.cfg.From, to, subject, body)
	addr := net.JoinHostPort(m.cfg.Host, fmt.Sprintf("%d", m.cfg.Port))

	var auth smtp.Auth
	if m.cfg.Username != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}

	if m.cfg.UseTLS {
		return m.sendTLS(addr, auth, []string{to}, msg)
	}
	return m.send(addr, auth, m.cfg.From, []string{to}, msg)
}

// sendTLS uses implicit TLS (port 465) and falls back to STARTTLS through
// smtp.SendMail when the TLS dial fails (port 587).
func (m *SMTPMailer) sendTLS(addr string, auth smtp.Auth, to []string, msg []byte) error {
	conn, err := tls.Dial("tcp", addr, &tls.Config{
		ServerName: m.cfg.Host,
		MinVersion: tls.VersionTLS12,
	})
	if err != nil {
		return m.send(addr, auth, m.cfg.From, to, msg)
	}
	defer conn.Close()

	c, err := smtp.NewClient(conn, m.cfg.Host)
	if err != nil {
		return fmt.Errorf("smtp new client: %w", err)
	}
	defer c.Quit() //nolint:errcheck

	if auth != nil {
		if err := c.Auth(auth); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	}
	if err := c.Mail(m.cfg.From); err != nil {
		return fmt.Errorf("smtp MAIL FROM: %w", err)
	}
	for _, rcpt := range to {
		if err := c.Rcpt(rcpt); err != nil {
			return fmt.Errorf("smtp RCPT TO %s: %w", rcpt, err)
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
