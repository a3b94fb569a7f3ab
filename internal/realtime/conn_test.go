package realtime

import (
	"errors"
	"sync"
)

type sent struct {
	event   string
	payload any
}

type fakeConn struct {
	id     string
	userID string

	mu     sync.Mutex
	events []sent
	fail   bool
}

func newFakeConn(id, userID string) *fakeConn {
	return &fakeConn{id: id, userID: userID}
}

func (c *fakeConn) ID() string     { return c.id }
func (c *fakeConn) UserID() string { return c.userID }

func (c *fakeConn) Send(event string, payload any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return errors.New("send buffer full")
	}
	c.events = append(c.events, sent{event: event, payload: payload})
	return nil
}

func (c *fakeConn) setFail(fail bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fail = fail
}

func (c *fakeConn) received() []sent {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]sent(nil), c.events...)
}

func (c *fakeConn) eventNames() []string {
	var names []string
	for _, e := range c.received() {
		names = append(names, e.event)
	}
	return names
}
