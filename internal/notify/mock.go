package notify

import (
	"context"
	"sync"
)

// MockNotifier implements Notifier for testing. It records sent messages
// and can be scripted to fail.
type MockNotifier struct {
	mu   sync.Mutex
	sent []Message

	// FailWith, when set, is returned for every Send call.
	FailWith error
	// FailSubjects fails only messages whose subject matches a key.
	FailSubjects map[string]error
}

// NewMockNotifier creates an empty MockNotifier.
func NewMockNotifier() *MockNotifier {
	return &MockNotifier{FailSubjects: make(map[string]error)}
}

// Send records the message, or fails if scripted to.
func (m *MockNotifier) Send(ctx context.Context, msg Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWith != nil {
		return m.FailWith
	}
	if err, ok := m.FailSubjects[msg.Subject]; ok {
		return err
	}
	m.sent = append(m.sent, msg)
	return nil
}

// Name identifies the platform.
func (m *MockNotifier) Name() string { return "mock" }

// Sent returns a copy of all recorded messages.
func (m *MockNotifier) Sent() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Message, len(m.sent))
	copy(out, m.sent)
	return out
}
