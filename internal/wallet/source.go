// Package wallet models the external wallet/session collaborator at its
// interface boundary. Authentication itself happens elsewhere; the gateway
// only consumes an opaque, possibly-changing current address signal.
package wallet

import (
	"sync"

	"github.com/zkrex/zkrex/internal/types"
)

// Session is the externally supplied wallet session snapshot.
type Session struct {
	Authenticated bool
	Address       string // empty when no wallet address is known
}

// Source holds the current wallet session and fans out address changes to
// subscribers. Change notifications carry the new (possibly empty) address.
type Source struct {
	mu      sync.RWMutex
	session Session
	subs    []chan string
}

// NewSource creates an empty, unauthenticated source.
func NewSource() *Source {
	return &Source{}
}

// Login records an authenticated session with the given address.
func (s *Source) Login(address string) {
	s.set(Session{Authenticated: true, Address: types.NormalizeAddress(address)})
}

// Logout clears the session.
func (s *Source) Logout() {
	s.set(Session{})
}

// SetAddress updates only the address of the current session.
func (s *Source) SetAddress(address string) {
	s.mu.RLock()
	session := s.session
	s.mu.RUnlock()
	session.Address = types.NormalizeAddress(address)
	s.set(session)
}

// Current returns the current session snapshot.
func (s *Source) Current() Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session
}

// Subscribe returns a channel that receives the new address on every change.
// The channel is buffered; a notification is dropped rather than blocking a
// slow subscriber, since subscribers re-read Current anyway.
func (s *Source) Subscribe() <-chan string {
	ch := make(chan string, 8)
	s.mu.Lock()
	s.subs = append(s.subs, ch)
	s.mu.Unlock()
	return ch
}

func (s *Source) set(session Session) {
	s.mu.Lock()
	changed := session.Address != s.session.Address
	s.session = session
	subs := s.subs
	s.mu.Unlock()

	if !changed {
		return
	}
	for _, ch := range subs {
		select {
		case ch <- session.Address:
		default:
		}
	}
}
