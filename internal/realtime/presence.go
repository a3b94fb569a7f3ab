package realtime

import (
	"sort"
	"sync"
	"time"
)

// Conn is one live client connection as seen by the registry.
// Send must not block; a full or closed connection returns an error.
type Conn interface {
	ID() string
	UserID() string
	Send(event string, payload any) error
}

type connEntry struct {
	conn     Conn
	rooms    map[string]struct{}
	lastSeen time.Time
}

// Registry tracks live connections per user and room membership per
// connection. A user is online while at least one connection is registered.
type Registry struct {
	mu    sync.RWMutex
	conns map[string]*connEntry          // connID -> entry
	users map[string]map[string]struct{} // userID -> connIDs
	rooms map[string]map[string]struct{} // room -> connIDs
	now   func() time.Time
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		conns: make(map[string]*connEntry),
		users: make(map[string]map[string]struct{}),
		rooms: make(map[string]map[string]struct{}),
		now:   time.Now,
	}
}

// Register adds conn and joins it to its user's personal room. It reports
// whether this is the user's first live connection. Registering the same
// connection twice is a no-op.
func (r *Registry) Register(conn Conn) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.conns[conn.ID()]; ok {
		return false
	}

	userID := conn.UserID()
	r.conns[conn.ID()] = &connEntry{
		conn:     conn,
		rooms:    make(map[string]struct{}),
		lastSeen: r.now(),
	}
	set, ok := r.users[userID]
	if !ok {
		set = make(map[string]struct{})
		r.users[userID] = set
	}
	set[conn.ID()] = struct{}{}
	r.joinLocked(conn.ID(), UserRoom(userID))

	return len(set) == 1
}

// Unregister removes conn from every room and from its user. It returns
// offline=true exactly once, when the user's last connection goes away, and
// the rooms the connection had joined.
func (r *Registry) Unregister(conn Conn) (offline bool, rooms []string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.conns[conn.ID()]
	if !ok {
		return false, nil
	}

	rooms = sortedKeys(entry.rooms)
	for _, room := range rooms {
		r.leaveLocked(conn.ID(), room)
	}
	delete(r.conns, conn.ID())

	userID := entry.conn.UserID()
	set := r.users[userID]
	delete(set, conn.ID())
	if len(set) == 0 {
		delete(r.users, userID)
		offline = true
	}
	return offline, rooms
}

// JoinRoom adds a registered connection to room. It reports whether the
// membership is new; joining twice or joining an unregistered connection is
// a no-op.
func (r *Registry) JoinRoom(conn Conn, room string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.conns[conn.ID()]; !ok {
		return false
	}
	return r.joinLocked(conn.ID(), room)
}

// LeaveRoom removes conn from room. It reports whether a membership was
// removed; leaving a room never joined is a no-op.
func (r *Registry) LeaveRoom(conn Conn, room string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.conns[conn.ID()]; !ok {
		return false
	}
	return r.leaveLocked(conn.ID(), room)
}

func (r *Registry) joinLocked(connID, room string) bool {
	entry := r.conns[connID]
	if _, ok := entry.rooms[room]; ok {
		return false
	}
	entry.rooms[room] = struct{}{}
	members, ok := r.rooms[room]
	if !ok {
		members = make(map[string]struct{})
		r.rooms[room] = members
	}
	members[connID] = struct{}{}
	return true
}

func (r *Registry) leaveLocked(connID, room string) bool {
	entry := r.conns[connID]
	if _, ok := entry.rooms[room]; !ok {
		return false
	}
	delete(entry.rooms, room)
	members := r.rooms[room]
	delete(members, connID)
	if len(members) == 0 {
		delete(r.rooms, room)
	}
	return true
}

// IsOnline reports whether userID holds at least one connection.
func (r *Registry) IsOnline(userID string) bool {
	return r.ConnectionCount(userID) > 0
}

// ConnectionCount returns the number of live connections of userID.
func (r *Registry) ConnectionCount(userID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users[userID])
}

// UserConns returns the live connections of userID.
func (r *Registry) UserConns(userID string) []Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.connsLocked(r.users[userID])
}

// Members returns the connections currently in room.
func (r *Registry) Members(room string) []Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.connsLocked(r.rooms[room])
}

// All returns every live connection.
func (r *Registry) All() []Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Conn, 0, len(r.conns))
	for _, entry := range r.conns {
		out = append(out, entry.conn)
	}
	return out
}

func (r *Registry) connsLocked(ids map[string]struct{}) []Conn {
	out := make([]Conn, 0, len(ids))
	for id := range ids {
		if entry, ok := r.conns[id]; ok {
			out = append(out, entry.conn)
		}
	}
	return out
}

// Rooms returns the rooms a connection has joined, sorted.
func (r *Registry) Rooms(connID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.conns[connID]
	if !ok {
		return nil
	}
	return sortedKeys(entry.rooms)
}

// UserRooms returns the union of rooms joined by any connection of userID, sorted.
func (r *Registry) UserRooms(userID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	union := make(map[string]struct{})
	for id := range r.users[userID] {
		for room := range r.conns[id].rooms {
			union[room] = struct{}{}
		}
	}
	return sortedKeys(union)
}

// OnlineUsers returns the ids of every user with a live connection.
func (r *Registry) OnlineUsers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedKeys(r.users)
}

// Touch records liveness for a connection.
func (r *Registry) Touch(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if entry, ok := r.conns[connID]; ok {
		entry.lastSeen = r.now()
	}
}

// LastSeen returns the last liveness timestamp of a connection.
func (r *Registry) LastSeen(connID string) (time.Time, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.conns[connID]
	if !ok {
		return time.Time{}, false
	}
	return entry.lastSeen, true
}

// Stats returns connection, user and room totals.
func (r *Registry) Stats() (connections, users, rooms int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns), len(r.users), len(r.rooms)
}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
