package mail

import (
	"context"
	"strings"

	"github.com/mailersend/mailersend-go"
)

// MailerSendMailer delivers through the MailerSend HTTP API.
type MailerSendMailer struct {
	client *mailersend.Mailersend
	from   mailersend.From
}

func NewMailerSend(apiKey, fromName, fromEmail string) *MailerSendMailer {
	return &MailerSendMailer{
		client: mailersend.NewMailersend(apiKey),
		from:   mailersend.From{Name: fromName, Email: fromEmail},
	}
}

func (m *MailerSendMailer) Send(ctx context.Context, msg Message) error {
	em := m.client.Email.NewMessage()
	em.SetFrom(m.from)
	em.SetRecipients([]mailersend.Recipient{{Name: msg.ToName, Email: msg.To}})
	em.SetSubject(msg.Subject)
	if strings.TrimSpace(msg.Text) != "" {
		em.SetText(msg.Text)
	}
	if strings.TrimSpace(msg.HTML) != "" {
		em.SetHTML(msg.HTML)
	}
	_, err := m.client.Email.Send(ctx, em)
	return err
}
