package realtime

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"collabhub.io/realtime/internal/pkg/logger"
)

// UnreadCounter computes the badge count pushed after a live notification.
type UnreadCounter interface {
	CountUnread(ctx context.Context, recipientID string) (int, error)
}

// Dispatcher decides per push whether an event goes out live or waits in
// the queue. Pushes to a user and that user's attach (register + flush) are
// serialized, so an event is never both missed by the flush and skipped by
// the live path.
type Dispatcher struct {
	registry *Registry
	queue    *Queue
	counter  UnreadCounter
	locks    keyedMutex
}

// NewDispatcher wires a dispatcher over registry and queue. counter may be
// nil, which disables the badge push.
func NewDispatcher(registry *Registry, queue *Queue, counter UnreadCounter) *Dispatcher {
	return &Dispatcher{
		registry: registry,
		queue:    queue,
		counter:  counter,
		locks:    keyedMutex{locks: make(map[string]*refMutex)},
	}
}

// Registry returns the presence registry.
func (d *Dispatcher) Registry() *Registry { return d.registry }

// Queue returns the pending delivery queue.
func (d *Dispatcher) Queue() *Queue { return d.queue }

// PushToUser sends event to every connection of userID. It returns true when
// at least one connection accepted it. When the user is offline, or every
// send fails, the event is queued and false is returned.
func (d *Dispatcher) PushToUser(userID, event string, payload any) bool {
	unlock := d.locks.lock(userID)
	defer unlock()

	conns := d.registry.UserConns(userID)
	if len(conns) == 0 {
		d.enqueue(userID, event, payload)
		return false
	}

	if d.sendAll(conns, event, payload) > 0 {
		return true
	}

	logger.Warn("live push failed on every connection, queueing",
		zap.String("user_id", userID),
		zap.String("event", event),
		zap.Int("connections", len(conns)),
	)
	d.enqueue(userID, event, payload)
	return false
}

// SendNotification pushes a new_notification event and, only when that push
// was live, a notification_count event with the current unread count.
func (d *Dispatcher) SendNotification(ctx context.Context, userID string, payload any) bool {
	live := d.PushToUser(userID, EventNewNotification, payload)
	if !live || d.counter == nil {
		return live
	}

	count, err := d.counter.CountUnread(ctx, userID)
	if err != nil {
		logger.Warn("unread count unavailable, skipping badge push",
			zap.String("user_id", userID),
			zap.Error(err),
		)
		return live
	}
	d.PushLive(userID, EventNotificationCount, CountPayload{Count: count})
	return live
}

// PushLive sends event to the user's live connections without queueing and
// returns how many accepted it.
func (d *Dispatcher) PushLive(userID, event string, payload any) int {
	return d.sendAll(d.registry.UserConns(userID), event, payload)
}

// BroadcastToAll sends event to every live connection except those of
// excludeUserIDs. Offline users are skipped, nothing is queued.
func (d *Dispatcher) BroadcastToAll(event string, payload any, excludeUserIDs ...string) int {
	conns := d.registry.All()
	if len(excludeUserIDs) > 0 {
		excluded := make(map[string]struct{}, len(excludeUserIDs))
		for _, id := range excludeUserIDs {
			excluded[id] = struct{}{}
		}
		kept := conns[:0]
		for _, c := range conns {
			if _, skip := excluded[c.UserID()]; !skip {
				kept = append(kept, c)
			}
		}
		conns = kept
	}
	return d.sendAll(conns, event, payload)
}

// EmitToRoom sends event to every connection in room except exceptConnID
// (empty for none). Nothing is queued.
func (d *Dispatcher) EmitToRoom(room, event string, payload any, exceptConnID string) int {
	conns := d.registry.Members(room)
	if exceptConnID != "" {
		kept := conns[:0]
		for _, c := range conns {
			if c.ID() != exceptConnID {
				kept = append(kept, c)
			}
		}
		conns = kept
	}
	return d.sendAll(conns, event, payload)
}

// Attach registers conn and flushes the user's queued events to it in
// enqueue order. If a send fails mid-flush the remaining events go back to
// the head of the queue. It returns how many queued events were delivered.
func (d *Dispatcher) Attach(conn Conn) int {
	userID := conn.UserID()
	unlock := d.locks.lock(userID)
	defer unlock()

	d.registry.Register(conn)

	pending := d.queue.Flush(userID)
	for i, item := range pending {
		if err := conn.Send(item.Event, item.Payload); err != nil {
			logger.Warn("queue flush interrupted, restoring remaining events",
				zap.String("user_id", userID),
				zap.String("conn_id", conn.ID()),
				zap.Int("remaining", len(pending)-i),
				zap.Error(err),
			)
			d.queue.Restore(userID, pending[i:])
			return i
		}
	}
	if len(pending) > 0 {
		logger.Debug("flushed queued events",
			zap.String("user_id", userID),
			zap.String("conn_id", conn.ID()),
			zap.Int("count", len(pending)),
		)
	}
	return len(pending)
}

// Detach unregisters conn. offline is true when it was the user's last
// connection; rooms lists what the connection had joined.
func (d *Dispatcher) Detach(conn Conn) (offline bool, rooms []string) {
	unlock := d.locks.lock(conn.UserID())
	defer unlock()
	return d.registry.Unregister(conn)
}

func (d *Dispatcher) enqueue(userID, event string, payload any) {
	if d.queue.Enqueue(userID, event, payload) {
		logger.Debug("pending queue full, dropped oldest event",
			zap.String("user_id", userID),
			zap.Int("capacity", d.queue.Capacity()),
		)
	}
}

func (d *Dispatcher) sendAll(conns []Conn, event string, payload any) int {
	sent := 0
	for _, c := range conns {
		if err := c.Send(event, payload); err != nil {
			logger.Warn("send to connection failed",
				zap.String("conn_id", c.ID()),
				zap.String("user_id", c.UserID()),
				zap.String("event", event),
				zap.Error(err),
			)
			continue
		}
		sent++
	}
	return sent
}

// keyedMutex hands out one mutex per key and forgets it once unused.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

func (k *keyedMutex) lock(key string) (unlock func()) {
	k.mu.Lock()
	m, ok := k.locks[key]
	if !ok {
		m = &refMutex{}
		k.locks[key] = m
	}
	m.refs++
	k.mu.Unlock()

	m.Lock()
	return func() {
		m.Unlock()
		k.mu.Lock()
		m.refs--
		if m.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
