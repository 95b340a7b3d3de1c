package realtime

import (
	"context"
	"fmt"
	"sync"

	"github.com/casewire/casewire/internal/authz"
	"github.com/casewire/casewire/internal/logger"
)

// RejectedError is the structured result of a refused room operation. It
// is reported to the offending connection and never unwinds shared state.
type RejectedError struct {
	Code   string
	Reason string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Reason)
}

// Registry owns the case-room membership map and the presence map. All
// mutation goes through its methods; the transport layer never touches
// room state directly.
type Registry struct {
	mu         sync.RWMutex
	rooms      map[string]map[string]*Client   // caseID -> connID -> client
	joined     map[string]map[string]struct{}  // connID -> set of caseIDs
	presence   *PresenceTracker
	authorizer authz.CaseAuthorizer
}

// NewRegistry creates a registry backed by the given authorizer
func NewRegistry(authorizer authz.CaseAuthorizer) *Registry {
	return &Registry{
		rooms:      make(map[string]map[string]*Client),
		joined:     make(map[string]map[string]struct{}),
		presence:   NewPresenceTracker(),
		authorizer: authorizer,
	}
}

// Join adds the connection to a case room. The connection must be
// authenticated and the identity must be authorized to view the case;
// joining a room the connection already belongs to is a no-op.
func (r *Registry) Join(ctx context.Context, c *Client, caseID string) error {
	identity := c.Identity()
	if identity == nil {
		return &RejectedError{Code: ErrorCodeAuthRequired, Reason: "connection is not authenticated"}
	}
	if caseID == "" {
		return &RejectedError{Code: ErrorCodeInvalidRequest, Reason: "case_id must not be empty"}
	}

	// The authorization lookup may block; room state is not touched until
	// it resolves.
	ok, err := r.authorizer.CanAccess(ctx, identity.ID, caseID)
	if err != nil {
		logger.Error("Authorization lookup failed for user %s case %s: %v", identity.ID, caseID, err)
		return &RejectedError{Code: ErrorCodeRoomUnavailable, Reason: "authorization check failed"}
	}
	if !ok {
		return &RejectedError{Code: ErrorCodeNotAuthorized, Reason: "not permitted to view this case"}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// The connection may have dropped while the authorization lookup was
	// in flight; committing now would leave a ghost membership behind the
	// already-finished cleanup.
	if c.Closed() {
		return &RejectedError{Code: ErrorCodeRoomUnavailable, Reason: "connection closed during join"}
	}

	members, ok := r.rooms[caseID]
	if !ok {
		members = make(map[string]*Client)
		r.rooms[caseID] = members
	}
	members[c.ID] = c

	cases, ok := r.joined[c.ID]
	if !ok {
		cases = make(map[string]struct{})
		r.joined[c.ID] = cases
	}
	cases[caseID] = struct{}{}

	logger.Info("Connection %s joined case %s (members: %d)", c.ID, caseID, len(members))
	return nil
}

// Leave removes the connection from a case room. Leaving a room the
// connection is not a member of is a no-op, never an error.
func (r *Registry) Leave(c *Client, caseID string) {
	r.mu.Lock()
	r.removeMember(c.ID, caseID)
	r.mu.Unlock()

	if identity := c.Identity(); identity != nil {
		r.presence.Clear(caseID, identity.ID)
	}

	logger.Debug("Connection %s left case %s", c.ID, caseID)
}

// DropConnection removes the connection from every room it belonged to
// and clears its presence entries. Safe to invoke more than once; the
// second call finds nothing to clean.
func (r *Registry) DropConnection(c *Client) {
	r.mu.Lock()
	cases := r.joined[c.ID]
	delete(r.joined, c.ID)
	for caseID := range cases {
		r.removeMember(c.ID, caseID)
	}
	r.mu.Unlock()

	if identity := c.Identity(); identity != nil {
		for caseID := range cases {
			r.presence.Clear(caseID, identity.ID)
		}
	}

	if len(cases) > 0 {
		logger.Info("Connection %s dropped from %d case(s)", c.ID, len(cases))
	}
}

// removeMember deletes one membership entry. Caller holds r.mu.
func (r *Registry) removeMember(connID, caseID string) {
	members, ok := r.rooms[caseID]
	if !ok {
		return
	}
	delete(members, connID)
	if len(members) == 0 {
		delete(r.rooms, caseID)
	}
	if cases, ok := r.joined[connID]; ok {
		delete(cases, caseID)
		if len(cases) == 0 {
			delete(r.joined, connID)
		}
	}
}

// IsMember reports whether the connection currently belongs to the room
func (r *Registry) IsMember(c *Client, caseID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members, ok := r.rooms[caseID]
	if !ok {
		return false
	}
	_, ok = members[c.ID]
	return ok
}

// JoinedCases returns the rooms the connection currently belongs to
func (r *Registry) JoinedCases(c *Client) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cases := make([]string, 0, len(r.joined[c.ID]))
	for caseID := range r.joined[c.ID] {
		cases = append(cases, caseID)
	}
	return cases
}

// BroadcastMessage fans a chat payload out to every current member of the
// room, the sender included, so all of the sender's sessions observe the
// same transcript order. An empty room delivers to nobody and returns
// zero. Calls from one connection are serialized by its read loop, which
// preserves per-sender FIFO ordering within a room.
func (r *Registry) BroadcastMessage(caseID string, sender *Client, payload interface{}) int {
	identity := sender.Identity()
	if identity == nil {
		return 0
	}

	out := NewMessage(MessageTypeMessage, map[string]interface{}{
		"case_id": caseID,
		"sender":  identity,
		"payload": payload,
	})

	r.mu.RLock()
	defer r.mu.RUnlock()

	delivered := 0
	for _, member := range r.rooms[caseID] {
		member.Send(out)
		delivered++
	}
	return delivered
}

// SetTyping updates the sender's typing flag for the room and fans the
// state change out to every other member. The sender never receives its
// own typing events.
func (r *Registry) SetTyping(caseID string, sender *Client, typing bool) int {
	identity := sender.Identity()
	if identity == nil {
		return 0
	}

	r.presence.SetTyping(caseID, identity.ID, typing)

	out := NewMessage(MessageTypeTyping, map[string]interface{}{
		"case_id": caseID,
		"user_id": identity.ID,
		"typing":  typing,
	})

	r.mu.RLock()
	defer r.mu.RUnlock()

	delivered := 0
	for connID, member := range r.rooms[caseID] {
		if connID == sender.ID {
			continue
		}
		member.Send(out)
		delivered++
	}
	return delivered
}

// Stats returns the current number of rooms, memberships, and typing
// entries
func (r *Registry) Stats() (rooms, members, typing int) {
	r.mu.RLock()
	rooms = len(r.rooms)
	for _, m := range r.rooms {
		members += len(m)
	}
	r.mu.RUnlock()

	typing = r.presence.TypingCount()
	return rooms, members, typing
}
