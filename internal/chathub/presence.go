package chathub

import (
	"sort"
	"sync"
)

// PresenceRegistry maps an identity to the connection that last registered it.
type PresenceRegistry struct {
	mu      sync.Mutex
	entries map[string]string // identity -> connID
}

func NewPresenceRegistry() *PresenceRegistry {
	return &PresenceRegistry{entries: make(map[string]string)}
}

// Register points identity at connID, replacing any earlier connection.
func (p *PresenceRegistry) Register(identity, connID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.entries[identity] = connID
}

// Unregister removes the identity currently bound to connID. The lookup is a
// linear scan because identities can move between connections on reconnect.
func (p *PresenceRegistry) Unregister(connID string) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for identity, handle := range p.entries {
		if handle == connID {
			delete(p.entries, identity)
			return identity, true
		}
	}
	return "", false
}

// Lookup returns the connection registered for identity.
func (p *PresenceRegistry) Lookup(identity string) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	connID, ok := p.entries[identity]
	return connID, ok
}

// Identities returns the registered identities in sorted order.
func (p *PresenceRegistry) Identities() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.entries))
	for identity := range p.entries {
		out = append(out, identity)
	}
	sort.Strings(out)
	return out
}

func (p *PresenceRegistry) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entries)
}
