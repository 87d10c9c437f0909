// Package mailer delivers outbound email over SMTP, or logs it in development.
package mailer

import (
	"context"
	"fmt"
	"log"

	"github.com/wneessen/go-mail"

	"github.com/dapursambal/storefront/internal/config"
	"github.com/dapursambal/storefront/internal/domain/ports"
)

// SMTPMailer sends mail through the configured relay
type SMTPMailer struct {
	settings config.MailSettings
	client   *mail.Client
}

var _ ports.Mailer = (*SMTPMailer)(nil)

// NewSMTPMailer builds a client from settings. No connection is made until Send.
func NewSMTPMailer(settings config.MailSettings) (*SMTPMailer, error) {
	policy := mail.TLSOpportunistic
	if settings.TLSRequired {
		policy = mail.TLSMandatory
	}

	opts := []mail.Option{
		mail.WithPort(settings.Port),
		mail.WithTLSPolicy(policy),
	}
	if settings.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(settings.Username),
			mail.WithPassword(settings.Password),
		)
	}

	client, err := mail.NewClient(settings.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create smtp client: %w", err)
	}
	return &SMTPMailer{settings: settings, client: client}, nil
}

// Send delivers msg, dialing the relay for each message
func (m *SMTPMailer) Send(ctx context.Context, msg ports.Message) error {
	out, err := m.build(msg)
	if err != nil {
		return err
	}
	if err := m.client.DialAndSendWithContext(ctx, out); err != nil {
		return fmt.Errorf("smtp send to %s failed: %w", msg.To, err)
	}
	log.Printf("📧 Sent %q to %s", msg.Subject, msg.To)
	return nil
}

func (m *SMTPMailer) build(msg ports.Message) (*mail.Msg, error) {
	out := mail.NewMsg()
	if err := out.From(m.settings.From); err != nil {
		return nil, fmt.Errorf("invalid from address: %w", err)
	}
	if msg.ToName != "" {
		if err := out.AddToFormat(msg.ToName, msg.To); err != nil {
			return nil, fmt.Errorf("invalid recipient: %w", err)
		}
	} else if err := out.To(msg.To); err != nil {
		return nil, fmt.Errorf("invalid recipient: %w", err)
	}
	if m.settings.ReplyTo != "" {
		if err := out.ReplyTo(m.settings.ReplyTo); err != nil {
			return nil, fmt.Errorf("invalid reply-to address: %w", err)
		}
	}
	out.Subject(msg.Subject)
	for k, v := range msg.Headers {
		out.SetGenHeader(mail.Header(k), v)
	}

	if msg.HTMLBody != "" {
		out.SetBodyString(mail.TypeTextHTML, msg.HTMLBody)
		if msg.TextBody != "" {
			out.AddAlternativeString(mail.TypeTextPlain, msg.TextBody)
		}
	} else {
		out.SetBodyString(mail.TypeTextPlain, msg.TextBody)
	}
	return out, nil
}

// LogMailer writes messages to the log instead of sending them
type LogMailer struct{}

var _ ports.Mailer = LogMailer{}

// Send logs the message
func (LogMailer) Send(_ context.Context, msg ports.Message) error {
	log.Printf("📧 [LogMailer] To: %s | Subject: %s | %d bytes html", msg.To, msg.Subject, len(msg.HTMLBody))
	return nil
}

// New picks the SMTP mailer when a host is configured, otherwise the log mailer
func New(settings config.MailSettings) (ports.Mailer, error) {
	if settings.Host == "" {
		log.Println("⚠️  SMTP_HOST not set, email will be logged instead of sent")
		return LogMailer{}, nil
	}
	return NewSMTPMailer(settings)
}
