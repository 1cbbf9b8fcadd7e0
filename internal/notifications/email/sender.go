// Package email delivers notifications over SMTP.
package email

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net"
	"net/mail"
	"net/smtp"
	"strings"
	"time"

	"github.com/confhub-io/confhub/internal/notifications"
)

const dialTimeout = 10 * time.Second

// Config holds SMTP connection settings.
type Config struct {
	Enabled      bool
	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	FromAddress  string
}

// Sender speaks SMTP with optional STARTTLS and PLAIN auth.
type Sender struct {
	config Config
	auth   smtp.Auth
}

var _ notifications.Sender = (*Sender)(nil)

// NewSender validates the config and builds a sender. Host and from
// address are mandatory only when sending is enabled.
func NewSender(config Config) (*Sender, error) {
	if config.Enabled {
		if config.SMTPHost == "" {
			return nil, errors.New("email sender: SMTP host is required when enabled")
		}
		if config.FromAddress == "" {
			return nil, errors.New("email sender: from address is required when enabled")
		}
	}
	if config.SMTPPort == 0 {
		config.SMTPPort = 587
	}

	var auth smtp.Auth
	if config.SMTPUser != "" && config.SMTPPassword != "" {
		auth = smtp.PlainAuth("", config.SMTPUser, config.SMTPPassword, config.SMTPHost)
	}

	slog.Info("email sender configured",
		"enabled", config.Enabled,
		"smtp_host", config.SMTPHost,
		"smtp_port", config.SMTPPort,
		"from_address", config.FromAddress,
	)

	return &Sender{config: config, auth: auth}, nil
}

// Send delivers one notification. Failures come back wrapped with a
// retryability verdict for the queue worker; a disabled sender drops
// the mail and reports success.
func (s *Sender) Send(ctx context.Context, notification notifications.Notification) error {
	if !s.config.Enabled {
		slog.Warn("email sender disabled, skipping send", "recipient", notification.To)
		return nil
	}

	msg := s.compose(notification.To, notification.Subject, notification.Body)
	if err := s.exchange(ctx, notification.To, msg); err != nil {
		return &notifications.RetryableError{Err: err, Retryable: IsRetryable(err)}
	}
	return nil
}

// compose renders the RFC 5322 message. Subjects with non-ASCII
// content are Q-encoded; ASCII passes through untouched.
func (s *Sender) compose(to, subject, body string) []byte {
	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s\r\n", s.config.FromAddress)
	fmt.Fprintf(&msg, "To: %s\r\n", to)
	fmt.Fprintf(&msg, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", subject))
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(body)
	return []byte(msg.String())
}

// exchange runs the SMTP session for a single recipient, upgrading to
// TLS when the server offers STARTTLS.
func (s *Sender) exchange(ctx context.Context, to string, msg []byte) error {
	addr := fmt.Sprintf("%s:%d", s.config.SMTPHost, s.config.SMTPPort)
	dialer := &net.Dialer{Timeout: dialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("dial smtp: %w", err)
	}
	defer func() { _ = conn.Close() }()

	client, err := smtp.NewClient(conn, s.config.SMTPHost)
	if err != nil {
		return fmt.Errorf("create smtp client: %w", err)
	}
	defer func() { _ = client.Close() }()

	if ok, _ := client.Extension("STARTTLS"); ok {
		tlsConfig := &tls.Config{
			ServerName: s.config.SMTPHost,
			MinVersion: tls.VersionTLS12,
		}
		if err := client.StartTLS(tlsConfig); err != nil {
			return fmt.Errorf("starttls: %w", err)
		}
	}

	if s.auth != nil {
		if err := client.Auth(s.auth); err != nil {
			return fmt.Errorf("auth: %w", err)
		}
	}

	if err := client.Mail(addressOf(s.config.FromAddress)); err != nil {
		return fmt.Errorf("mail from: %w", err)
	}
	if err := client.Rcpt(addressOf(to)); err != nil {
		return fmt.Errorf("rcpt to: %w", err)
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("data: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		return fmt.Errorf("write message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close data: %w", err)
	}

	return client.Quit()
}

// addressOf strips a display name from "Name <box@host>" forms. The
// SMTP envelope wants the bare address; anything unparseable is passed
// through as-is.
func addressOf(s string) string {
	parsed, err := mail.ParseAddress(s)
	if err != nil {
		return s
	}
	return parsed.Address
}

// Temporary SMTP reply codes worth another attempt.
var transientSMTPCodes = []string{"421", "450", "451", "452", "552"}

// IsRetryable classifies a delivery error. Network-level failures and
// 4xx-style SMTP replies are transient; everything else is permanent.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}

	errStr := err.Error()
	for _, code := range transientSMTPCodes {
		if strings.Contains(errStr, code) {
			return true
		}
	}
	return false
}
