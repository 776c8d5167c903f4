package notify

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strings"
	"time"

	"github.com/wonny/valuescope/internal/contracts"
	"github.com/wonny/valuescope/pkg/config"
)

// RecipientResolver maps a rule owner to an email address
type RecipientResolver func(owner string) (string, error)

// OwnerOrDefault uses the owner id when it is an address, otherwise fallback
func OwnerOrDefault(fallback string) RecipientResolver {
	return func(owner string) (string, error) {
		if strings.Contains(owner, "@") {
			return owner, nil
		}
		if fallback == "" {
			return "", fmt.Errorf("no email address for owner %q", owner)
		}
		return fallback, nil
	}
}

// sendFunc delivers one message; replaced in tests
type sendFunc func(ctx context.Context, to, subject, body string) error

// EmailSink sends notifications over SMTP with implicit TLS
type EmailSink struct {
	cfg     config.NotifyConfig
	resolve RecipientResolver
	send    sendFunc
}

// NewEmailSink creates an SMTP sink
func NewEmailSink(cfg config.NotifyConfig, resolve RecipientResolver) *EmailSink {
	s := &EmailSink{cfg: cfg, resolve: resolve}
	s.send = s.sendTLS
	return s
}

// Notify implements contracts.AlertSink
func (s *EmailSink) Notify(ctx context.Context, n contracts.Notification) error {
	to, err := s.resolve(n.Owner)
	if err != nil {
		return err
	}

	subject := fmt.Sprintf("[valuescope] %s %s", n.StockCode, n.Condition.String())
	body := fmt.Sprintf(
		"<p>Alert rule <b>%s</b> triggered for <b>%s</b>.</p><p>%s is now %g (condition %s).</p><p>%s</p>",
		n.RuleID, n.StockCode, n.Condition.Metric, n.TriggeredValue, n.Condition.String(),
		n.TriggeredAt.Format(time.RFC3339),
	)
	return s.send(ctx, to, subject, body)
}

func (s *EmailSink) sendTLS(ctx context.Context, to, subject, body string) error {
	if s.cfg.SMTPHost == "" || s.cfg.SMTPUser == "" {
		return fmt.Errorf("smtp not configured")
	}

	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nContent-Type: text/html; charset=UTF-8\r\n\r\n%s",
		s.cfg.SMTPUser, to, subject, body)

	addr := fmt.Sprintf("%s:%d", s.cfg.SMTPHost, s.cfg.SMTPPort)
	dialer := &tls.Dialer{
		NetDialer: &net.Dialer{},
		Config:    &tls.Config{ServerName: s.cfg.SMTPHost},
	}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("smtp dial: %w", err)
	}
	defer conn.Close()

	// the whole SMTP exchange shares the caller's deadline
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	client, err := smtp.NewClient(conn, s.cfg.SMTPHost)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}
	defer client.Close()

	auth := smtp.PlainAuth("", s.cfg.SMTPUser, s.cfg.SMTPPassword, s.cfg.SMTPHost)
	if err := client.Auth(auth); err != nil {
		return fmt.Errorf("smtp auth: %w", err)
	}
	if err := client.Mail(s.cfg.SMTPUser); err != nil {
		return fmt.Errorf("smtp mail from: %w", err)
	}
	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("smtp rcpt: %w", err)
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("smtp data: %w", err)
	}
	if _, err := w.Write([]byte(msg)); err != nil {
		return fmt.Errorf("smtp write: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("smtp close: %w", err)
	}

	return client.Quit()
}
