package email

import (
	"context"
	"fmt"
	"time"

	gomail "github.com/wneessen/go-mail"

	"solar_portal_backend/platform/config"
)

const smtpTimeout = 15 * time.Second

// SMTPSender dials the configured relay for every message. Mention emails
// are rare enough that a pooled connection is not worth keeping open.
type SMTPSender struct {
	host      string
	fromName  string
	fromEmail string
	options   []gomail.Option
}

// NewSender returns an SMTPSender when SMTP is configured and a NoopSender
// otherwise.
func NewSender(cfg config.SMTPConfig) Sender {
	if cfg == nil || !cfg.IsSMTPEnabled() {
		return NoopSender{}
	}
	return NewSMTPSender(cfg)
}

func NewSMTPSender(cfg config.SMTPConfig) *SMTPSender {
	options := []gomail.Option{
		gomail.WithPort(cfg.GetSMTPPort()),
		gomail.WithTLSPortPolicy(gomail.TLSOpportunistic),
		gomail.WithTimeout(smtpTimeout),
	}
	if user := cfg.GetSMTPUsername(); user != "" {
		options = append(options,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(user),
			gomail.WithPassword(cfg.GetSMTPPassword()),
		)
	}
	return &SMTPSender{
		host:      cfg.GetSMTPHost(),
		fromName:  cfg.GetSMTPFromName(),
		fromEmail: cfg.GetSMTPFromEmail(),
		options:   options,
	}
}

func (s *SMTPSender) SendMentionEmail(ctx context.Context, toEmail string, mention Mention) error {
	subject, body, err := renderMention(mention)
	if err != nil {
		return err
	}

	msg := gomail.NewMsg()
	if err := msg.FromFormat(s.fromName, s.fromEmail); err != nil {
		return fmt.Errorf("smtp from: %w", err)
	}
	if err := msg.To(toEmail); err != nil {
		return fmt.Errorf("smtp to: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(gomail.TypeTextHTML, body)

	client, err := gomail.NewClient(s.host, s.options...)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}
