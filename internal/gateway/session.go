package gateway

import (
	"sync"
	"sync/atomic"

	"collabhub.io/realtime/internal/user"
)

// State is the lifecycle position of a session.
type State int32

const (
	StateConnecting State = iota
	StateAuthenticated
	StateActive
	StateDisconnected
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAuthenticated:
		return "authenticated"
	case StateActive:
		return "active"
	case StateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// Presence statuses accepted from set_status.
const (
	StatusOnline  = "online"
	StatusAway    = "away"
	StatusBusy    = "busy"
	StatusOffline = "offline"
)

func validStatus(s string) bool {
	switch s {
	case StatusOnline, StatusAway, StatusBusy, StatusOffline:
		return true
	}
	return false
}

// Transport carries frames to one client. Send must not block.
type Transport interface {
	Send(event string, payload any) error
	Close(code int, reason string)
}

// Session is one client connection moving through
// Connecting → Authenticated → Active → Disconnected.
// It satisfies realtime.Conn once active.
type Session struct {
	id        string
	transport Transport
	state     atomic.Int32

	mu       sync.RWMutex
	identity *user.Identity
	status   string
}

func newSession(id string, transport Transport) *Session {
	return &Session{id: id, transport: transport, status: StatusOnline}
}

// ID returns the connection id.
func (s *Session) ID() string { return s.id }

// UserID returns the authenticated user id, empty before authentication.
func (s *Session) UserID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.identity == nil {
		return ""
	}
	return s.identity.ID
}

// Identity returns the authenticated user projection.
func (s *Session) Identity() *user.Identity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.identity
}

// Status returns the last presence status set by the client.
func (s *Session) Status() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

func (s *Session) setStatus(status string) {
	s.mu.Lock()
	s.status = status
	s.mu.Unlock()
}

// State returns the current lifecycle state.
func (s *Session) State() State { return State(s.state.Load()) }

// advance moves from one state to the next and reports whether it happened.
func (s *Session) advance(from, to State) bool {
	return s.state.CompareAndSwap(int32(from), int32(to))
}

func (s *Session) authenticate(identity *user.Identity) bool {
	s.mu.Lock()
	s.identity = identity
	s.mu.Unlock()
	return s.advance(StateConnecting, StateAuthenticated)
}

// Send writes one event to the client.
func (s *Session) Send(event string, payload any) error {
	return s.transport.Send(event, payload)
}
