package mail

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/testiflow-api/internal/config"
)

// Message is one outbound email. HTML is optional.
type Message struct {
	To      string
	ToName  string
	Subject string
	Text    string
	HTML    string
}

// Mailer delivers a single message. Implementations must be safe for concurrent use.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// New picks the transport named by cfg.Mail.Driver.
func New(cfg *config.Config, log *slog.Logger) (Mailer, error) {
	switch cfg.Mail.Driver {
	case "smtp":
		return NewSMTPMailer(cfg.Mail), nil
	case "mailersend":
		if cfg.Mail.MailerSendAPIKey == "" {
			return nil, fmt.Errorf("MAILERSEND_API_KEY is required for the mailersend driver")
		}
		return NewMailerSend(cfg.Mail.MailerSendAPIKey, cfg.Mail.FromName, cfg.Mail.From), nil
	case "log", "":
		return NewLogMailer(log), nil
	default:
		return nil, fmt.Errorf("unknown mail driver %q", cfg.Mail.Driver)
	}
}
