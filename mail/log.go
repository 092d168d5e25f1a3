// Package mail provides Notifier implementations.
package mail

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/jimiolaniyan/blockhub"
)

// Logger writes notifications to the log instead of sending them. It is used
// in development when no mail provider is configured.
type Logger struct {
	log logrus.FieldLogger
}

func NewLogger(log logrus.FieldLogger) *Logger {
	return &Logger{log: log}
}

func (l *Logger) SendMail(ctx context.Context, msg blockhub.Mail) error {
	l.log.WithFields(logrus.Fields{
		"to":      msg.To,
		"subject": msg.Subject,
	}).Info(msg.Body)
	return nil
}
