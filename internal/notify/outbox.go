package notify

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Outbox keeps sent messages in memory and logs them. It is used by the
// "log" mail driver and in tests.
type Outbox struct {
	mu   sync.Mutex
	msgs []Message
}

// NewOutbox returns an empty outbox.
func NewOutbox() *Outbox {
	return &Outbox{}
}

// Send records the messages.
func (o *Outbox) Send(_ context.Context, msgs ...Message) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, m := range msgs {
		zap.L().Info("email",
			zap.Strings("to", m.To),
			zap.String("subject", m.Subject),
			zap.Int("attachments", len(m.Attachments)),
		)
		o.msgs = append(o.msgs, m)
	}
	return nil
}

// Messages returns a copy of everything sent so far.
func (o *Outbox) Messages() []Message {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]Message, len(o.msgs))
	copy(out, o.msgs)
	return out
}

// Reset empties the outbox.
func (o *Outbox) Reset() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.msgs = nil
}
