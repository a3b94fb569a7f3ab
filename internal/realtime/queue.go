package realtime

import (
	"sync"
	"time"
)

// DefaultQueueCapacity bounds the pending events kept per user.
const DefaultQueueCapacity = 20

// QueuedEvent is one event waiting for its recipient to reconnect.
type QueuedEvent struct {
	Event      string
	Payload    any
	EnqueuedAt time.Time
}

// Queue is a bounded per-user FIFO of undelivered events. When a user's
// queue is full the oldest entry is dropped to make room.
type Queue struct {
	mu       sync.Mutex
	pending  map[string][]QueuedEvent
	capacity int
	now      func() time.Time
}

// NewQueue creates a queue holding at most capacity events per user.
// A non-positive capacity falls back to DefaultQueueCapacity.
func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = DefaultQueueCapacity
	}
	return &Queue{
		pending:  make(map[string][]QueuedEvent),
		capacity: capacity,
		now:      time.Now,
	}
}

// Capacity returns the per-user bound.
func (q *Queue) Capacity() int { return q.capacity }

// Enqueue appends an event for userID. It reports whether an older event was
// evicted to stay within capacity.
func (q *Queue) Enqueue(userID, event string, payload any) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	items := q.pending[userID]
	evicted := false
	if len(items) >= q.capacity {
		items = items[len(items)-q.capacity+1:]
		evicted = true
	}
	q.pending[userID] = append(items, QueuedEvent{
		Event:      event,
		Payload:    payload,
		EnqueuedAt: q.now(),
	})
	return evicted
}

// Flush returns every queued event of userID in enqueue order and clears
// the queue in the same critical section.
func (q *Queue) Flush(userID string) []QueuedEvent {
	q.mu.Lock()
	defer q.mu.Unlock()

	items := q.pending[userID]
	delete(q.pending, userID)
	return items
}

// Restore puts undelivered events back at the head of userID's queue, ahead
// of anything enqueued since they were flushed. Overflow drops the oldest.
func (q *Queue) Restore(userID string, events []QueuedEvent) {
	if len(events) == 0 {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()

	merged := make([]QueuedEvent, 0, len(events)+len(q.pending[userID]))
	merged = append(merged, events...)
	merged = append(merged, q.pending[userID]...)
	if len(merged) > q.capacity {
		merged = merged[len(merged)-q.capacity:]
	}
	q.pending[userID] = merged
}

// Len returns the number of events queued for userID.
func (q *Queue) Len(userID string) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending[userID])
}

// Users returns how many users have at least one queued event.
func (q *Queue) Users() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}
