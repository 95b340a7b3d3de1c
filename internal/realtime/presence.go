package realtime

import (
	"sync"
	"time"
)

// presenceEntry tracks one user's typing flag in one room
type presenceEntry struct {
	typing    bool
	updatedAt time.Time
}

// PresenceTracker holds ephemeral per-room typing state. Nothing here is
// persisted; state is cleared by an explicit stop, by leaving the room, or
// by the registry dropping the connection. Stale "typing" flags are never
// expired on a timer: a client that disconnects without typing_stop is
// cleaned up through the disconnect path instead.
type PresenceTracker struct {
	mu    sync.Mutex
	rooms map[string]map[string]presenceEntry // caseID -> userID -> entry
}

// NewPresenceTracker creates an empty tracker
func NewPresenceTracker() *PresenceTracker {
	return &PresenceTracker{
		rooms: make(map[string]map[string]presenceEntry),
	}
}

// SetTyping records the typing flag for a user in a room
func (p *PresenceTracker) SetTyping(caseID, userID string, typing bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	users, ok := p.rooms[caseID]
	if !ok {
		if !typing {
			return
		}
		users = make(map[string]presenceEntry)
		p.rooms[caseID] = users
	}

	if typing {
		users[userID] = presenceEntry{typing: true, updatedAt: time.Now()}
		return
	}

	delete(users, userID)
	if len(users) == 0 {
		delete(p.rooms, caseID)
	}
}

// Clear removes a user's entry from a room
func (p *PresenceTracker) Clear(caseID, userID string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if users, ok := p.rooms[caseID]; ok {
		delete(users, userID)
		if len(users) == 0 {
			delete(p.rooms, caseID)
		}
	}
}

// IsTyping reports whether a user is currently marked typing in a room
func (p *PresenceTracker) IsTyping(caseID, userID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	users, ok := p.rooms[caseID]
	if !ok {
		return false
	}
	return users[userID].typing
}

// TypingCount returns the number of active typing entries across all rooms
func (p *PresenceTracker) TypingCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := 0
	for _, users := range p.rooms {
		n += len(users)
	}
	return n
}
