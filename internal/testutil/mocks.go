package testutil

import (
	"context"
	"sync"

	"github.com/quantumlife/contactbot/internal/core"
	"github.com/quantumlife/contactbot/internal/storage"
)

// SentEmail is one call to MockEmailTransport.Send
type SentEmail struct {
	Sender    core.Profile
	Recipient core.Contact
	To        []string
	Body      string
	Subject   string
}

// MockEmailTransport records emails. The zero value is supported.
type MockEmailTransport struct {
	Unsupported bool
	SendFunc    func(to []core.EmailAddress) error

	mu   sync.Mutex
	Sent []SentEmail
}

// IsSupported implements the email transport.
func (m *MockEmailTransport) IsSupported() bool { return !m.Unsupported }

// Send implements the email transport.
func (m *MockEmailTransport) Send(ctx context.Context, sender core.Profile, recipient core.Contact, to []core.EmailAddress, body, subject string) error {
	if m.SendFunc != nil {
		if err := m.SendFunc(to); err != nil {
			return err
		}
	}
	addrs := make([]string, len(to))
	for i, a := range to {
		addrs[i] = a.Address
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.Sent = append(m.Sent, SentEmail{Sender: sender, Recipient: recipient, To: addrs, Body: body, Subject: subject})
	return nil
}

// Emails returns a copy of the recorded emails
func (m *MockEmailTransport) Emails() []SentEmail {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]SentEmail(nil), m.Sent...)
}

// SentText is one call to MockTextTransport.Send
type SentText struct {
	From string
	To   string
	Body string
}

// MockTextTransport records text messages
type MockTextTransport struct {
	Unsupported bool
	SendFunc    func(to core.PhoneNumber) error

	mu   sync.Mutex
	Sent []SentText
}

// IsSupported implements the text transport.
func (m *MockTextTransport) IsSupported() bool { return !m.Unsupported }

// Send implements the text transport.
func (m *MockTextTransport) Send(ctx context.Context, from, to core.PhoneNumber, body string) error {
	if m.SendFunc != nil {
		if err := m.SendFunc(to); err != nil {
			return err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.Sent = append(m.Sent, SentText{From: from.Number, To: to.Number, Body: body})
	return nil
}

// Texts returns a copy of the recorded texts
func (m *MockTextTransport) Texts() []SentText {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]SentText(nil), m.Sent...)
}

// MockRecorder keeps deliveries in memory
type MockRecorder struct {
	mu         sync.Mutex
	Deliveries []storage.Delivery
}

// Record implements the delivery recorder.
func (m *MockRecorder) Record(d *storage.Delivery) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Deliveries = append(m.Deliveries, *d)
	return nil
}
