package notification

import (
	"context"
	"errors"
	"sync"
	"time"

	apperrors "collabhub.io/realtime/internal/pkg/errors"
	"collabhub.io/realtime/internal/user"
)

type memStore struct {
	mu        sync.Mutex
	items     []*Notification
	createErr error
}

func (s *memStore) Create(_ context.Context, n *Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return s.createErr
	}
	s.items = append(s.items, n)
	return nil
}

func (s *memStore) FindMany(_ context.Context, recipientID string, _ ListOptions) (ListResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Notification
	for _, n := range s.items {
		if n.RecipientID == recipientID {
			out = append(out, n)
		}
	}
	return ListResult{Items: out, Total: len(out)}, nil
}

func (s *memStore) CountUnread(_ context.Context, recipientID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, n := range s.items {
		if n.RecipientID == recipientID && !n.Read {
			count++
		}
	}
	return count, nil
}

func (s *memStore) MarkRead(context.Context, string, string) (*Notification, error) {
	return nil, apperrors.ErrNotificationNotFound()
}

func (s *memStore) MarkAllRead(context.Context, string) (int, error) { return 0, nil }

func (s *memStore) Delete(context.Context, string, string) error {
	return apperrors.ErrNotificationNotFound()
}

func (s *memStore) DeleteMany(context.Context, []string, string) (int, error) { return 0, nil }

func (s *memStore) DeleteExpired(context.Context, time.Time) (int, error) { return 0, nil }

func (s *memStore) all() []*Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Notification(nil), s.items...)
}

type pushCall struct {
	userID  string
	payload any
}

type recordingDeliverer struct {
	mu    sync.Mutex
	calls []pushCall
	live  bool
}

func (d *recordingDeliverer) SendNotification(_ context.Context, userID string, payload any) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, pushCall{userID: userID, payload: payload})
	return d.live
}

func (d *recordingDeliverer) pushes() []pushCall {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]pushCall(nil), d.calls...)
}

type stubDirectory struct {
	profiles map[string]*user.Profile
	err      error
}

func (d stubDirectory) FindMinimalProfile(_ context.Context, id string) (*user.Profile, error) {
	if d.err != nil {
		return nil, d.err
	}
	if p, ok := d.profiles[id]; ok {
		return p, nil
	}
	return nil, user.ErrNotFound
}

func (d stubDirectory) FindIdentity(_ context.Context, id string) (*user.Identity, error) {
	return nil, errors.New("not used")
}
