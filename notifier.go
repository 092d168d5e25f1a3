package blockhub

import "context"

type Mail struct {
	To      string
	Subject string
	Body    string
}

// Notifier delivers email. Delivery may fail independently of the operation
// that triggered it.
type Notifier interface {
	SendMail(ctx context.Context, m Mail) error
}
