package mailer

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// CaptureSender records messages instead of delivering them. It backs the
// smtp.dry_run mode and is the standard test double for the dispatch engine.
type CaptureSender struct {
	mu       sync.Mutex
	messages []Message
	logger   *slog.Logger

	// SendFunc, when set, decides the outcome of each send.
	SendFunc func(ctx context.Context, msg *Message) (string, error)
}

func NewCaptureSender(logger *slog.Logger) *CaptureSender {
	return &CaptureSender{logger: logger}
}

func (s *CaptureSender) Send(ctx context.Context, msg *Message) (string, error) {
	s.mu.Lock()
	s.messages = append(s.messages, *msg)
	s.mu.Unlock()

	if s.SendFunc != nil {
		return s.SendFunc(ctx, msg)
	}

	id := uuid.New().String()
	if s.logger != nil {
		s.logger.Info("dry run: message captured", "to", msg.To, "subject", msg.Subject, "message_id", id)
	}
	return id, nil
}

// Messages returns a copy of everything captured so far
func (s *CaptureSender) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, len(s.messages))
	copy(out, s.messages)
	return out
}
