package ports

import "context"

// Message is a single outbound email
type Message struct {
	To       string
	ToName   string
	Subject  string
	HTMLBody string
	TextBody string
	// Headers are added verbatim, e.g. List-Unsubscribe on campaign mail
	Headers map[string]string
}

// Mailer delivers email
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}
