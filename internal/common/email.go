package common

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
)

// Message is one outgoing email.
type Message struct {
	To      string
	Subject string
	HTML    string
}

// Mailer delivers messages.
type Mailer interface {
	Send(ctx context.Context, m Message) error
}

// Outbox keeps sent messages in memory. Used by tests.
type Outbox struct {
	mu   sync.Mutex
	sent []Message
}

func (o *Outbox) Send(_ context.Context, m Message) error {
	o.mu.Lock()
	o.sent = append(o.sent, m)
	o.mu.Unlock()
	return nil
}

// Sent returns a copy of everything delivered so far.
func (o *Outbox) Sent() []Message {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]Message(nil), o.sent...)
}

// LogMailer writes messages to the structured log instead of a relay.
type LogMailer struct {
	Logger zerolog.Logger
	From   string
}

func (l LogMailer) Send(ctx context.Context, m Message) error {
	l.Logger.Info().
		Ctx(ctx).
		Str("from", l.From).
		Str("to", m.To).
		Str("subject", m.Subject).
		Int("body_bytes", len(m.HTML)).
		Msg("email_sent")
	return nil
}
