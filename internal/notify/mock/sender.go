package mock

import (
	"context"
	"sync"

	"github.com/rentdesk/rentdesk/pkg/models"
)

// MockSender satisfies models.Sender for testing and records every message.
type MockSender struct {
	Channel_ string
	SendFunc func(ctx context.Context, msg models.OutboundMessage) error

	mu   sync.Mutex
	sent []models.OutboundMessage
}

func (m *MockSender) Channel() string  { return m.Channel_ }
func (m *MockSender) Provider() string { return "mock" }

func (m *MockSender) Send(ctx context.Context, msg models.OutboundMessage) error {
	m.mu.Lock()
	m.sent = append(m.sent, msg)
	m.mu.Unlock()
	if m.SendFunc != nil {
		return m.SendFunc(ctx, msg)
	}
	return nil
}

// Sent returns a copy of the messages passed to Send.
func (m *MockSender) Sent() []models.OutboundMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.OutboundMessage, len(m.sent))
	copy(out, m.sent)
	return out
}

// NewMockSender returns a MockSender for the channel that always succeeds.
func NewMockSender(channel string) *MockSender {
	return &MockSender{Channel_: channel}
}

// NewFailingSender returns a MockSender that always returns the given error.
func NewFailingSender(channel string, err error) *MockSender {
	return &MockSender{
		Channel_: channel,
		SendFunc: func(_ context.Context, _ models.OutboundMessage) error {
			return err
		},
	}
}

var _ models.Sender = (*MockSender)(nil)
