package chathub

import (
	"sort"
	"sync"
	"time"
)

// GroupRegistry remembers who has joined each group channel in this process.
// Entries are never pruned: membership means "has joined", not "is connected".
// Notification fan-out uses the persisted participant list, not this registry.
type GroupRegistry struct {
	mu     sync.Mutex
	groups map[string]*groupEntry
	now    func() time.Time
}

type groupEntry struct {
	members   map[string]struct{}
	createdAt time.Time
}

func NewGroupRegistry() *GroupRegistry {
	return &GroupRegistry{groups: make(map[string]*groupEntry), now: time.Now}
}

// Join adds identity to groupID, creating the group on first use.
// It reports whether the group was created by this call.
func (g *GroupRegistry) Join(groupID, identity string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	entry, ok := g.groups[groupID]
	if !ok {
		entry = &groupEntry{members: make(map[string]struct{}), createdAt: g.now()}
		g.groups[groupID] = entry
	}
	entry.members[identity] = struct{}{}
	return !ok
}

// Members returns the sorted members of groupID, or nil for an unknown group.
func (g *GroupRegistry) Members(groupID string) []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	entry, ok := g.groups[groupID]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(entry.members))
	for m := range entry.members {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}

// CreatedAt returns when groupID was first joined.
func (g *GroupRegistry) CreatedAt(groupID string) (time.Time, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	entry, ok := g.groups[groupID]
	if !ok {
		return time.Time{}, false
	}
	return entry.createdAt, true
}
