package mail

import (
	"context"
	"time"

	mg "github.com/mailgun/mailgun-go/v4"

	"github.com/jimiolaniyan/blockhub"
)

const sendTimeout = 10 * time.Second

// Mailgun delivers notifications through the Mailgun API.
type Mailgun struct {
	client *mg.MailgunImpl
	sender string
}

func NewMailgun(domain, apiKey, sender string) *Mailgun {
	return &Mailgun{client: mg.NewMailgun(domain, apiKey), sender: sender}
}

func (m *Mailgun) SendMail(ctx context.Context, msg blockhub.Mail) error {
	message := m.client.NewMessage(m.sender, msg.Subject, msg.Body, msg.To)

	ctx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	_, _, err := m.client.Send(ctx, message)
	return err
}
