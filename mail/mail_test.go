package mail

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"

	"github.com/jimiolaniyan/blockhub"
)

func TestLogger_SendMail(t *testing.T) {
	log, hook := test.NewNullLogger()
	var n blockhub.Notifier = NewLogger(log)

	err := n.SendMail(context.Background(), blockhub.Mail{To: "alice@example.com", Subject: "Welcome!", Body: "hi"})

	assert.NoError(t, err)
	entry := hook.LastEntry()
	if assert.NotNil(t, entry) {
		assert.Equal(t, logrus.InfoLevel, entry.Level)
		assert.Equal(t, "hi", entry.Message)
		assert.Equal(t, "alice@example.com", entry.Data["to"])
		assert.Equal(t, "Welcome!", entry.Data["subject"])
	}
}

func TestNewMailgun(t *testing.T) {
	var n blockhub.Notifier = NewMailgun("mg.example.com", "key", "noreply@example.com")

	m := n.(*Mailgun)
	assert.Equal(t, "noreply@example.com", m.sender)
	assert.Equal(t, "mg.example.com", m.client.Domain())
}
