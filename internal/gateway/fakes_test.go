package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"collabhub.io/realtime/internal/auth"
	"collabhub.io/realtime/internal/notification"
	"collabhub.io/realtime/internal/realtime"
	"collabhub.io/realtime/internal/store/sqlite"
	"collabhub.io/realtime/internal/user"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type frame struct {
	event   string
	payload any
}

type fakeTransport struct {
	mu        sync.Mutex
	frames    []frame
	fail      bool
	closed    bool
	closeCode int
}

func (f *fakeTransport) Send(event string, payload any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail || f.closed {
		return errors.New("transport unavailable")
	}
	f.frames = append(f.frames, frame{event: event, payload: payload})
	return nil
}

func (f *fakeTransport) Close(code int, _ string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	f.closeCode = code
}

func (f *fakeTransport) events() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	names := make([]string, 0, len(f.frames))
	for _, fr := range f.frames {
		names = append(names, fr.event)
	}
	return names
}

// last returns the payload of the most recent frame named event.
func (f *fakeTransport) last(t *testing.T, event string) any {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.frames) - 1; i >= 0; i-- {
		if f.frames[i].event == event {
			return f.frames[i].payload
		}
	}
	t.Fatalf("no %q frame received; got %v", event, f.frames)
	return nil
}

func (f *fakeTransport) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.frames = nil
}

type testEnv struct {
	store      *sqlite.Store
	dispatcher *realtime.Dispatcher
	factory    *notification.Factory
	manager    *Manager
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	ctx := context.Background()
	for _, u := range []user.Record{
		{ID: "alice", Name: "Alice", Username: "alice", Email: "alice@example.com"},
		{ID: "bob", Name: "Bob", Username: "bob", Email: "bob@example.com"},
	} {
		require.NoError(t, store.UpsertUser(ctx, u))
	}

	dispatcher := realtime.NewDispatcher(realtime.NewRegistry(), realtime.NewQueue(realtime.DefaultQueueCapacity), store)
	return &testEnv{
		store:      store,
		dispatcher: dispatcher,
		factory:    notification.NewFactory(store, store, dispatcher),
		manager: NewManager(Config{}, auth.NewChain(testSecret, "", "collabhub"),
			store, store, dispatcher, nil),
	}
}

func (e *testEnv) open(t *testing.T, userID string) (*Session, *fakeTransport) {
	t.Helper()

	tr := &fakeTransport{}
	s, err := e.manager.Open(context.Background(), &auth.Claims{UserID: userID}, tr)
	require.NoError(t, err)
	return s, tr
}

func (e *testEnv) notify(t *testing.T, recipientID, title string) *notification.Notification {
	t.Helper()

	n, err := e.factory.Create(context.Background(), notification.Params{
		RecipientID: recipientID,
		Type:        notification.TypeTaskAssigned,
		Title:       title,
		SenderID:    "bob",
	})
	require.NoError(t, err)
	return n
}

func (e *testEnv) send(s *Session, event string, data any) {
	raw, _ := json.Marshal(map[string]any{"event": event, "data": data})
	e.manager.HandleMessage(context.Background(), s, raw)
}
