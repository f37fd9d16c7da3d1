package chathub_test

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"crmchat/backend/internal/chathub"
	"crmchat/backend/internal/models"

	"github.com/stretchr/testify/require"
)

// MockClient records every event queued for it.
type MockClient struct {
	ID     string
	Events chan models.OutboundEvent

	mu     sync.Mutex
	closed bool
}

var _ chathub.Client = (*MockClient)(nil)

func newMockClient(id string) *MockClient {
	return &MockClient{ID: id, Events: make(chan models.OutboundEvent, 64)}
}

func (c *MockClient) GetConnID() string { return c.ID }

func (c *MockClient) Send(ev models.OutboundEvent) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.Events <- ev:
		return true
	default:
		return false
	}
}

func (c *MockClient) Run() {}

func (c *MockClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

func (c *MockClient) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// expectEvent waits for the next event on c and checks its name.
func expectEvent(t *testing.T, c *MockClient, name string) models.OutboundEvent {
	t.Helper()
	select {
	case ev := <-c.Events:
		require.Equal(t, name, ev.Event, "client %s", c.ID)
		return ev
	case <-time.After(2 * time.Second):
		t.Fatalf("client %s: timed out waiting for %s", c.ID, name)
	}
	return models.OutboundEvent{}
}

func expectNoEvent(t *testing.T, c *MockClient) {
	t.Helper()
	select {
	case ev := <-c.Events:
		t.Fatalf("client %s: unexpected event %s", c.ID, ev.Event)
	case <-time.After(50 * time.Millisecond):
	}
}

// envelope builds an inbound frame with JSON-encoded positional args.
func envelope(t *testing.T, event string, args ...any) models.Envelope {
	t.Helper()
	env := models.Envelope{Event: event}
	for _, a := range args {
		raw, err := json.Marshal(a)
		require.NoError(t, err)
		env.Args = append(env.Args, raw)
	}
	return env
}
