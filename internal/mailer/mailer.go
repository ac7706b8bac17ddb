// Package mailer sends the transactional mails: invoice notifications and
// generated passwords.
package mailer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/wneessen/go-mail"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/everpower/backoffice/internal/invoices"
)

// Config for the SMTP transport.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// Mailer delivers mail over SMTP.
type Mailer struct {
	client  *mail.Client
	from    string
	logger  *slog.Logger
	printer *message.Printer
}

// New builds an SMTP mailer, or nil when no host is configured so callers
// can treat mail as disabled.
func New(cfg Config, logger *slog.Logger) (*Mailer, error) {
	if cfg.Host == "" {
		return nil, nil
	}
	if logger == nil {
		logger = slog.Default()
	}

	opts := []mail.Option{mail.WithPort(cfg.Port), mail.WithTLSPolicy(mail.TLSOpportunistic)}
	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}
	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("mailer: build client: %w", err)
	}
	return &Mailer{
		client:  client,
		from:    cfg.From,
		logger:  logger,
		printer: message.NewPrinter(language.English),
	}, nil
}

// InvoiceIssued mails the client that an invoice was raised, with the
// hosted payment link when one exists.
func (m *Mailer) InvoiceIssued(ctx context.Context, n invoices.Notice) error {
	body := fmt.Sprintf(
		"Invoice %s has been issued for an amount of %s.\n",
		n.InvoiceID, m.printer.Sprintf("%.2f", n.Amount))
	if n.PayURL != "" {
		body += fmt.Sprintf("\nYou can pay online at:\n%s\n", n.PayURL)
	}
	body += "\nThank you.\n"

	return m.send(ctx, n.To, fmt.Sprintf("Invoice %s", n.InvoiceID), body)
}

// NewPassword mails a freshly generated password.
func (m *Mailer) NewPassword(ctx context.Context, to, password string) error {
	body := fmt.Sprintf(
		"Your password has been reset.\n\nNew password: %s\n\nPlease change it after signing in.\n",
		password)
	return m.send(ctx, to, "Your new password", body)
}

func (m *Mailer) send(ctx context.Context, to, subject, body string) error {
	msg := mail.NewMsg()
	if err := msg.From(m.from); err != nil {
		return fmt.Errorf("mailer: from %s: %w", m.from, err)
	}
	if err := msg.To(to); err != nil {
		return fmt.Errorf("mailer: to %s: %w", to, err)
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextPlain, body)

	if err := m.client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("mailer: send to %s: %w", to, err)
	}
	m.logger.Debug("mail sent", slog.String("to", to), slog.String("subject", subject))
	return nil
}
