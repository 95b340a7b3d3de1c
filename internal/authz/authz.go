// Package authz answers whether an authenticated user may view a given
// case. The case-management application owns the membership data; this
// package only reads it (plus grant/revoke helpers for operating the store
// standalone).
package authz

import (
	"context"
	"sync"
)

// CaseAuthorizer is the collaborator the room registry consults before
// admitting a connection into a case room.
type CaseAuthorizer interface {
	// CanAccess reports whether userID may view caseID
	CanAccess(ctx context.Context, userID, caseID string) (bool, error)
}

// StaticStore is an in-memory CaseAuthorizer for development and tests
type StaticStore struct {
	mu       sync.RWMutex
	grants   map[string]map[string]struct{} // caseID -> userIDs
	allowAll bool
}

// NewStaticStore creates an empty in-memory authorizer. With allowAll set,
// every access check succeeds regardless of grants.
func NewStaticStore(allowAll bool) *StaticStore {
	return &StaticStore{
		grants:   make(map[string]map[string]struct{}),
		allowAll: allowAll,
	}
}

// Grant records that userID may access caseID
func (s *StaticStore) Grant(caseID, userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	users, ok := s.grants[caseID]
	if !ok {
		users = make(map[string]struct{})
		s.grants[caseID] = users
	}
	users[userID] = struct{}{}
}

// Revoke removes userID's access to caseID
func (s *StaticStore) Revoke(caseID, userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if users, ok := s.grants[caseID]; ok {
		delete(users, userID)
		if len(users) == 0 {
			delete(s.grants, caseID)
		}
	}
}

// CanAccess implements CaseAuthorizer
func (s *StaticStore) CanAccess(ctx context.Context, userID, caseID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.allowAll {
		return true, nil
	}
	users, ok := s.grants[caseID]
	if !ok {
		return false, nil
	}
	_, ok = users[userID]
	return ok, nil
}
