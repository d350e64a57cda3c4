// Package notify delivers escalation correspondence to carrier dispute
// contacts over SMTP.
package notify

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"mime"
	"net"
	"net/smtp"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Config is the SMTP client configuration.
type Config struct {
	Host     string        `yaml:"host"`
	Port     int           `yaml:"port"`
	Username string        `yaml:"username"`
	Password string        `yaml:"password"`
	From     string        `yaml:"from"`
	Timeout  time.Duration `yaml:"timeout"`
	// Recipients maps lowercase carrier keywords to dispute inbox addresses.
	Recipients map[string]string `yaml:"recipients"`
	// DefaultRecipient catches carriers with no dedicated entry.
	DefaultRecipient string `yaml:"default_recipient"`
}

// SMTPNotifier sends plain-text messages with optional file attachments.
type SMTPNotifier struct {
	cfg Config
	log *slog.Logger
}

func NewSMTPNotifier(cfg Config, log *slog.Logger) *SMTPNotifier {
	if log == nil {
		log = slog.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &SMTPNotifier{cfg: cfg, log: log}
}

// RecipientFor resolves the dispute inbox for a carrier display name by
// substring match, mirroring how connectors are resolved.
func (n *SMTPNotifier) RecipientFor(carrierName string) string {
	name := strings.ToLower(carrierName)
	for keyword, addr := range n.cfg.Recipients {
		if strings.Contains(name, strings.ToLower(keyword)) {
			return addr
		}
	}
	return n.cfg.DefaultRecipient
}

// Send delivers one message. Attachment paths are read at send time; a
// missing attachment fails the send, because a formal notice without its
// document is worse than a retried task.
func (n *SMTPNotifier) Send(ctx context.Context, recipient, subject, body string, attachments []string) error {
	if recipient == "" {
		return fmt.Errorf("no recipient configured")
	}

	msg, err := n.buildMessage(recipient, subject, body, attachments)
	if err != nil {
		return err
	}

	addr := net.JoinHostPort(n.cfg.Host, fmt.Sprintf("%d", n.cfg.Port))

	done := make(chan error, 1)
	go func() {
		done <- n.deliver(addr, recipient, msg)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		if err != nil {
			return fmt.Errorf("smtp send to %s: %w", recipient, err)
		}
	}

	n.log.Debug("message delivered", "recipient", recipient, "subject", subject)
	return nil
}

func (n *SMTPNotifier) deliver(addr, recipient string, msg []byte) error {
	conn, err := net.DialTimeout("tcp", addr, n.cfg.Timeout)
	if err != nil {
		return err
	}
	conn.SetDeadline(time.Now().Add(n.cfg.Timeout))

	client, err := smtp.NewClient(conn, n.cfg.Host)
	if err != nil {
		conn.Close()
		return err
	}
	defer client.Close()

	if n.cfg.Username != "" {
		auth := smtp.PlainAuth("", n.cfg.Username, n.cfg.Password, n.cfg.Host)
		if ok, _ := client.Extension("AUTH"); ok {
			if err := client.Auth(auth); err != nil {
				return err
			}
		}
	}

	if err := client.Mail(n.cfg.From); err != nil {
		return err
	}
	if err := client.Rcpt(recipient); err != nil {
		return err
	}
	w, err := client.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return client.Quit()
}

const boundary = "recourse-attachment-boundary"

func (n *SMTPNotifier) buildMessage(recipient, subject, body string, attachments []string) ([]byte, error) {
	var b strings.Builder

	fmt.Fprintf(&b, "From: %s\r\n", n.cfg.From)
	fmt.Fprintf(&b, "To: %s\r\n", recipient)
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", subject))
	b.WriteString("MIME-Version: 1.0\r\n")

	if len(attachments) == 0 {
		b.WriteString("Content-Type: text/plain; charset=utf-8\r\n\r\n")
		b.WriteString(body)
		return []byte(b.String()), nil
	}

	fmt.Fprintf(&b, "Content-Type: multipart/mixed; boundary=%s\r\n\r\n", boundary)

	fmt.Fprintf(&b, "--%s\r\n", boundary)
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n\r\n")
	b.WriteString(body)
	b.WriteString("\r\n")

	for _, path := range attachments {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read attachment %s: %w", path, err)
		}
		fmt.Fprintf(&b, "--%s\r\n", boundary)
		fmt.Fprintf(&b, "Content-Type: application/octet-stream; name=%q\r\n", filepath.Base(path))
		fmt.Fprintf(&b, "Content-Disposition: attachment; filename=%q\r\n", filepath.Base(path))
		b.WriteString("Content-Transfer-Encoding: base64\r\n\r\n")
		b.WriteString(base64.StdEncoding.EncodeToString(data))
		b.WriteString("\r\n")
	}
	fmt.Fprintf(&b, "--%s--\r\n", boundary)

	return []byte(b.String()), nil
}
