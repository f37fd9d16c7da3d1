package chathub

import "crmchat/backend/internal/models"

// Client is one live connection. The hub only needs to address it and queue
// events for it; the transport behind it is the client's business.
type Client interface {
	// GetConnID returns the transport-level connection handle.
	GetConnID() string
	// Send queues ev without blocking. It returns false if the client is closed
	// or its queue is full, in which case the event is dropped.
	Send(ev models.OutboundEvent) bool
	// Run starts the client's read and write pumps.
	Run()
	// Close releases the connection. It is safe to call more than once.
	Close()
}
