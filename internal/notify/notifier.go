// Package notify delivers report emails over SMTP.
package notify

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"
	"gopkg.in/gomail.v2"
)

// ErrNoRecipients is returned when a message has no addressees.
var ErrNoRecipients = errors.New("no recipients")

// Attachment is a named file carried by a message.
type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Message is one outgoing email.
type Message struct {
	To          []string
	Subject     string
	HTMLBody    string
	Attachments []Attachment
}

// Notifier sends messages; a nil error means the transport accepted it.
type Notifier interface {
	Send(ctx context.Context, msg Message) error
}

// Dialer is the part of gomail.Dialer used for delivery.
type Dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

// SMTPConfig configures the SMTP transport.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTPNotifier sends mail through an SMTP relay.
type SMTPNotifier struct {
	dialer Dialer
	from   string
	logger *zap.Logger
}

// NewSMTPNotifier creates a notifier using STARTTLS on cfg.Host:cfg.Port.
func NewSMTPNotifier(cfg SMTPConfig, logger *zap.Logger) *SMTPNotifier {
	return NewNotifierWithDialer(gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password), cfg.From, logger)
}

// NewNotifierWithDialer creates a notifier on an existing dialer.
func NewNotifierWithDialer(d Dialer, from string, logger *zap.Logger) *SMTPNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SMTPNotifier{dialer: d, from: from, logger: logger}
}

// Send composes msg and hands it to the relay. The SMTP exchange itself is
// not cancellable; ctx is checked before dialing.
func (n *SMTPNotifier) Send(ctx context.Context, msg Message) error {
	if len(msg.To) == 0 {
		return ErrNoRecipients
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	m := Compose(n.from, msg)
	if err := n.dialer.DialAndSend(m); err != nil {
		n.logger.Error("send email failed", zap.Strings("to", msg.To), zap.String("subject", msg.Subject), zap.Error(err))
		return fmt.Errorf("smtp send: %w", err)
	}
	n.logger.Info("email sent", zap.Strings("to", msg.To), zap.String("subject", msg.Subject), zap.Int("attachments", len(msg.Attachments)))
	return nil
}

// Compose builds the MIME message for msg.
func Compose(from string, msg Message) *gomail.Message {
	m := gomail.NewMessage()
	m.SetHeader("From", from)
	m.SetHeader("To", msg.To...)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/html", msg.HTMLBody)
	for _, a := range msg.Attachments {
		data := a.Data
		settings := []gomail.FileSetting{
			gomail.SetCopyFunc(func(w io.Writer) error {
				_, err := w.Write(data)
				return err
			}),
		}
		if a.ContentType != "" {
			settings = append(settings, gomail.SetHeader(map[string][]string{"Content-Type": {a.ContentType}}))
		}
		m.Attach(a.Filename, settings...)
	}
	return m
}
