package realtime

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubCounter struct {
	count int
	err   error
	calls int
}

func (s *stubCounter) CountUnread(context.Context, string) (int, error) {
	s.calls++
	return s.count, s.err
}

func newTestDispatcher(counter UnreadCounter) *Dispatcher {
	return NewDispatcher(NewRegistry(), NewQueue(DefaultQueueCapacity), counter)
}

func TestDispatcher_PushToUser_OfflineQueues(t *testing.T) {
	t.Parallel()

	d := newTestDispatcher(nil)
	assert.False(t, d.PushToUser("u1", EventNewNotification, "n1"))
	assert.Equal(t, 1, d.Queue().Len("u1"))
}

func TestDispatcher_PushToUser_ReachesEveryDevice(t *testing.T) {
	t.Parallel()

	d := newTestDispatcher(nil)
	phone := newFakeConn("phone", "u1")
	laptop := newFakeConn("laptop", "u1")
	other := newFakeConn("other", "u2")
	d.Attach(phone)
	d.Attach(laptop)
	d.Attach(other)

	assert.True(t, d.PushToUser("u1", EventNewNotification, "n1"))
	assert.Equal(t, []string{EventNewNotification}, phone.eventNames())
	assert.Equal(t, []string{EventNewNotification}, laptop.eventNames())
	assert.Empty(t, other.received())
	assert.Zero(t, d.Queue().Len("u1"))
}

func TestDispatcher_PushToUser_TransportFailureQueues(t *testing.T) {
	t.Parallel()

	d := newTestDispatcher(nil)
	stale := newFakeConn("stale", "u1")
	d.Attach(stale)
	stale.setFail(true)

	assert.False(t, d.PushToUser("u1", EventNewNotification, "n1"))
	assert.Equal(t, 1, d.Queue().Len("u1"))

	// A partial failure still counts as delivered.
	healthy := newFakeConn("healthy", "u1")
	d.Attach(healthy)
	assert.True(t, d.PushToUser("u1", EventNewNotification, "n2"))
}

func TestDispatcher_SendNotification(t *testing.T) {
	t.Parallel()

	t.Run("live push adds badge count", func(t *testing.T) {
		t.Parallel()
		counter := &stubCounter{count: 4}
		d := newTestDispatcher(counter)
		c := newFakeConn("c1", "u1")
		d.Attach(c)

		assert.True(t, d.SendNotification(context.Background(), "u1", "payload"))
		got := c.received()
		require.Len(t, got, 2)
		assert.Equal(t, EventNewNotification, got[0].event)
		assert.Equal(t, EventNotificationCount, got[1].event)
		assert.Equal(t, CountPayload{Count: 4}, got[1].payload)
	})

	t.Run("queued push skips badge count", func(t *testing.T) {
		t.Parallel()
		counter := &stubCounter{count: 4}
		d := newTestDispatcher(counter)

		assert.False(t, d.SendNotification(context.Background(), "u1", "payload"))
		assert.Zero(t, counter.calls)
		items := d.Queue().Flush("u1")
		require.Len(t, items, 1)
		assert.Equal(t, EventNewNotification, items[0].Event)
	})

	t.Run("count failure is swallowed", func(t *testing.T) {
		t.Parallel()
		d := newTestDispatcher(&stubCounter{err: errors.New("db down")})
		c := newFakeConn("c1", "u1")
		d.Attach(c)

		assert.True(t, d.SendNotification(context.Background(), "u1", "payload"))
		assert.Equal(t, []string{EventNewNotification}, c.eventNames())
	})
}

func TestDispatcher_AttachFlushesInOrder(t *testing.T) {
	t.Parallel()

	d := newTestDispatcher(nil)
	d.PushToUser("u1", "e1", 1)
	d.PushToUser("u1", "e2", 2)
	d.PushToUser("u1", "e3", 3)
	d.PushToUser("u2", "other", 4)

	c := newFakeConn("c1", "u1")
	assert.Equal(t, 3, d.Attach(c))
	assert.Equal(t, []string{"e1", "e2", "e3"}, c.eventNames())
	assert.Zero(t, d.Queue().Len("u1"))
	assert.Equal(t, 1, d.Queue().Len("u2"), "other user's queue untouched")
}

func TestDispatcher_AttachRestoresOnFlushFailure(t *testing.T) {
	t.Parallel()

	d := newTestDispatcher(nil)
	d.PushToUser("u1", "e1", nil)
	d.PushToUser("u1", "e2", nil)

	c := newFakeConn("c1", "u1")
	c.setFail(true)
	assert.Zero(t, d.Attach(c))

	items := d.Queue().Flush("u1")
	require.Len(t, items, 2)
	assert.Equal(t, "e1", items[0].Event)
	assert.Equal(t, "e2", items[1].Event)
}

func TestDispatcher_DetachReportsOffline(t *testing.T) {
	t.Parallel()

	d := newTestDispatcher(nil)
	a := newFakeConn("a", "u1")
	b := newFakeConn("b", "u1")
	d.Attach(a)
	d.Attach(b)
	d.Registry().JoinRoom(a, TeamRoom("t1"))

	offline, rooms := d.Detach(a)
	assert.False(t, offline)
	assert.Equal(t, []string{"team:t1", "user:u1"}, rooms)

	offline, _ = d.Detach(b)
	assert.True(t, offline)
	assert.False(t, d.PushToUser("u1", "late", nil))
}

func TestDispatcher_BroadcastAndRoom(t *testing.T) {
	t.Parallel()

	d := newTestDispatcher(nil)
	a := newFakeConn("a", "u1")
	b := newFakeConn("b", "u2")
	c := newFakeConn("c", "u3")
	d.Attach(a)
	d.Attach(b)
	d.Attach(c)
	d.Registry().JoinRoom(a, TeamRoom("t1"))
	d.Registry().JoinRoom(b, TeamRoom("t1"))

	assert.Equal(t, 2, d.BroadcastToAll(EventHeartbeat, nil, "u3"))
	assert.Empty(t, c.received())

	assert.Equal(t, 1, d.EmitToRoom(TeamRoom("t1"), EventUserTyping, nil, "a"))
	assert.Equal(t, []string{EventHeartbeat, EventUserTyping}, b.eventNames())
	assert.Equal(t, []string{EventHeartbeat}, a.eventNames())

	assert.Zero(t, d.EmitToRoom(TeamRoom("empty"), EventUserTyping, nil, ""))
	assert.Zero(t, d.Queue().Users(), "fan-out helpers never queue")
}

func TestDispatcher_ConcurrentPushAndAttachLosesNothing(t *testing.T) {
	t.Parallel()

	const pushes = 200
	d := NewDispatcher(NewRegistry(), NewQueue(pushes), nil)
	c := newFakeConn("c1", "u1")

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < pushes; i++ {
			d.PushToUser("u1", fmt.Sprintf("e%d", i), nil)
		}
	}()
	go func() {
		defer wg.Done()
		d.Attach(c)
	}()
	wg.Wait()
	d.Attach(c)

	names := c.eventNames()
	require.Len(t, names, pushes)
	for i, name := range names {
		assert.Equal(t, fmt.Sprintf("e%d", i), name)
	}
}

func TestKeyedMutex_ReleasesKeys(t *testing.T) {
	t.Parallel()

	k := keyedMutex{locks: make(map[string]*refMutex)}
	unlock := k.lock("u1")
	assert.Len(t, k.locks, 1)
	unlock()
	assert.Empty(t, k.locks)
}
