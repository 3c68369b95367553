package channel

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strings"
	"time"
)

const defaultSMTPTimeout = 15 * time.Second

// SMTPTransport delivers mail over SMTP with optional STARTTLS. It is the
// production MailTransport; the sender never talks to it directly without a
// bounded context.
type SMTPTransport struct {
	timeout time.Duration
}

func NewSMTPTransport() *SMTPTransport {
	return &SMTPTransport{timeout: defaultSMTPTimeout}
}

func (t *SMTPTransport) Send(ctx context.Context, cfg EmailConfig, mail Mail) error {
	if strings.TrimSpace(cfg.Server) == "" || cfg.Port <= 0 {
		return fmt.Errorf("mail server is not configured")
	}

	ctx, cancel := deadline(ctx, t.timeout)
	defer cancel()

	addr := fmt.Sprintf("%s:%d", cfg.Server, cfg.Port)
	dialer := &net.Dialer{}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", addr, err)
	}

	if dl, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(dl)
	}

	client, err := smtp.NewClient(conn, cfg.Server)
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("smtp handshake failed: %w", err)
	}
	defer client.Close()

	if cfg.UseTLS {
		if err := client.StartTLS(&tls.Config{ServerName: cfg.Server}); err != nil {
			return fmt.Errorf("starttls failed: %w", err)
		}
	}

	auth := smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Server)
	if err := client.Auth(auth); err != nil {
		return fmt.Errorf("smtp auth failed: %w", err)
	}

	if err := client.Mail(mail.From); err != nil {
		return fmt.Errorf("smtp mail from failed: %w", err)
	}
	if err := client.Rcpt(mail.To); err != nil {
		return fmt.Errorf("smtp rcpt to failed: %w", err)
	}

	writer, err := client.Data()
	if err != nil {
		return fmt.Errorf("smtp data failed: %w", err)
	}
	if _, err := writer.Write(encodeMail(mail)); err != nil {
		_ = writer.Close()
		return fmt.Errorf("failed to write message: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to finish message: %w", err)
	}

	return client.Quit()
}

func encodeMail(mail Mail) []byte {
	var b strings.Builder
	from := mail.From
	if strings.TrimSpace(mail.FromName) != "" {
		from = fmt.Sprintf("%s <%s>", mail.FromName, mail.From)
	}

	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", mail.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", mail.Subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(mail.HTMLBody)
	b.WriteString("\r\n")

	return []byte(b.String())
}
