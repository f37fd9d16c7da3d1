package chathub

import "sync"

// channelHub tracks which connections are subscribed to which named delivery
// channels. Identity channels and group channels share one namespace.
type channelHub struct {
	mu       sync.RWMutex
	channels map[string]map[string]Client // channel -> connID -> client
	joined   map[string]map[string]struct{}
}

func newChannelHub() *channelHub {
	return &channelHub{
		channels: make(map[string]map[string]Client),
		joined:   make(map[string]map[string]struct{}),
	}
}

func (h *channelHub) join(c Client, channel string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	subs, ok := h.channels[channel]
	if !ok {
		subs = make(map[string]Client)
		h.channels[channel] = subs
	}
	subs[c.GetConnID()] = c

	set, ok := h.joined[c.GetConnID()]
	if !ok {
		set = make(map[string]struct{})
		h.joined[c.GetConnID()] = set
	}
	set[channel] = struct{}{}
}

func (h *channelHub) leaveAll(connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for channel := range h.joined[connID] {
		if subs, ok := h.channels[channel]; ok {
			delete(subs, connID)
			if len(subs) == 0 {
				delete(h.channels, channel)
			}
		}
	}
	delete(h.joined, connID)
}

// members returns the union of subscribers of the given channels, each once.
func (h *channelHub) members(channels ...string) []Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	seen := make(map[string]struct{})
	var out []Client
	for _, channel := range channels {
		for connID, c := range h.channels[channel] {
			if _, dup := seen[connID]; dup {
				continue
			}
			seen[connID] = struct{}{}
			out = append(out, c)
		}
	}
	return out
}
