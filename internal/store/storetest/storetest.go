// Package storetest is a behavioural suite shared by every notification
// store implementation.
package storetest

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"collabhub.io/realtime/internal/notification"
	apperrors "collabhub.io/realtime/internal/pkg/errors"
	"collabhub.io/realtime/internal/user"
)

// Backend is what a store implementation must offer.
type Backend interface {
	notification.Store
	user.Directory
	UpsertUser(ctx context.Context, u user.Record) error
}

// Opener returns a fresh, empty backend for one test.
type Opener func(t *testing.T) Backend

var base = time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)

func seed(t *testing.T, s Backend, id, recipient string, typ notification.Type, prio notification.Priority, createdAt time.Time) *notification.Notification {
	t.Helper()
	n := &notification.Notification{
		ID:          id,
		RecipientID: recipient,
		SenderID:    "sender",
		Type:        typ,
		Priority:    prio,
		Title:       "title " + id,
		Content:     "content " + id,
		EntityType:  "task",
		EntityID:    "t-" + id,
		ActionURL:   "/tasks/t-" + id,
		MetaData:    map[string]any{"source": "test"},
		ExpiresAt:   createdAt.Add(notification.ExpiryFor(typ)),
		CreatedAt:   createdAt,
	}
	require.NoError(t, s.Create(context.Background(), n))
	return n
}

// Run executes the suite.
func Run(t *testing.T, open Opener) {
	t.Run("CreateAndFind", func(t *testing.T) { testCreateAndFind(t, open(t)) })
	t.Run("FindManyFiltersAndPaging", func(t *testing.T) { testFindMany(t, open(t)) })
	t.Run("Sorting", func(t *testing.T) { testSorting(t, open(t)) })
	t.Run("MarkRead", func(t *testing.T) { testMarkRead(t, open(t)) })
	t.Run("MarkAllRead", func(t *testing.T) { testMarkAllRead(t, open(t)) })
	t.Run("Delete", func(t *testing.T) { testDelete(t, open(t)) })
	t.Run("DeleteExpired", func(t *testing.T) { testDeleteExpired(t, open(t)) })
	t.Run("Users", func(t *testing.T) { testUsers(t, open(t)) })
}

func testCreateAndFind(t *testing.T, s Backend) {
	ctx := context.Background()
	want := seed(t, s, "n1", "u1", notification.TypeTaskAssigned, notification.PriorityHigh, base)

	res, err := s.FindMany(ctx, "u1", notification.ListOptions{})
	require.NoError(t, err)
	require.Equal(t, 1, res.Total)
	require.Len(t, res.Items, 1)

	got := res.Items[0]
	assert.Equal(t, want.ID, got.ID)
	assert.Equal(t, want.RecipientID, got.RecipientID)
	assert.Equal(t, want.SenderID, got.SenderID)
	assert.Equal(t, want.Type, got.Type)
	assert.Equal(t, want.Priority, got.Priority)
	assert.Equal(t, want.Title, got.Title)
	assert.Equal(t, want.Content, got.Content)
	assert.Equal(t, want.EntityType, got.EntityType)
	assert.Equal(t, want.EntityID, got.EntityID)
	assert.Equal(t, want.ActionURL, got.ActionURL)
	assert.Equal(t, "test", got.MetaData["source"])
	assert.False(t, got.Read)
	assert.Nil(t, got.ReadAt)
	assert.True(t, want.CreatedAt.Equal(got.CreatedAt))
	assert.True(t, want.ExpiresAt.Equal(got.ExpiresAt))

	count, err := s.CountUnread(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	other, err := s.FindMany(ctx, "u2", notification.ListOptions{})
	require.NoError(t, err)
	assert.Zero(t, other.Total)
	assert.Empty(t, other.Items)
}

func testFindMany(t *testing.T, s Backend) {
	ctx := context.Background()
	for i := 0; i < 25; i++ {
		typ := notification.TypeMessage
		if i%5 == 0 {
			typ = notification.TypeMention
		}
		seed(t, s, fmt.Sprintf("n%02d", i), "u1", typ, notification.PriorityFor(typ), base.Add(time.Duration(i)*time.Minute))
	}
	_, err := s.MarkRead(ctx, "n03", "u1")
	require.NoError(t, err)

	res, err := s.FindMany(ctx, "u1", notification.ListOptions{})
	require.NoError(t, err)
	assert.Equal(t, 25, res.Total)
	assert.Len(t, res.Items, notification.DefaultListLimit)

	res, err = s.FindMany(ctx, "u1", notification.ListOptions{Limit: 10, Skip: 20})
	require.NoError(t, err)
	assert.Len(t, res.Items, 5)

	unread := false
	res, err = s.FindMany(ctx, "u1", notification.ListOptions{Read: &unread, Limit: 100})
	require.NoError(t, err)
	assert.Equal(t, 24, res.Total)

	read := true
	res, err = s.FindMany(ctx, "u1", notification.ListOptions{Read: &read})
	require.NoError(t, err)
	require.Equal(t, 1, res.Total)
	assert.Equal(t, "n03", res.Items[0].ID)

	mention := notification.TypeMention
	res, err = s.FindMany(ctx, "u1", notification.ListOptions{Type: &mention})
	require.NoError(t, err)
	assert.Equal(t, 5, res.Total)

	high := notification.PriorityHigh
	res, err = s.FindMany(ctx, "u1", notification.ListOptions{Priority: &high})
	require.NoError(t, err)
	assert.Equal(t, 5, res.Total)
}

func testSorting(t *testing.T, s Backend) {
	ctx := context.Background()
	seed(t, s, "low-old", "u1", notification.TypeSystem, notification.PriorityLow, base)
	seed(t, s, "high-mid", "u1", notification.TypeMention, notification.PriorityHigh, base.Add(time.Minute))
	seed(t, s, "med-new", "u1", notification.TypeMessage, notification.PriorityMedium, base.Add(2*time.Minute))

	ids := func(opts notification.ListOptions) []string {
		res, err := s.FindMany(ctx, "u1", opts)
		require.NoError(t, err)
		out := make([]string, 0, len(res.Items))
		for _, n := range res.Items {
			out = append(out, n.ID)
		}
		return out
	}

	assert.Equal(t, []string{"med-new", "high-mid", "low-old"}, ids(notification.ListOptions{}))
	assert.Equal(t, []string{"low-old", "high-mid", "med-new"}, ids(notification.ListOptions{Sort: notification.SortOldest}))
	assert.Equal(t, []string{"high-mid", "med-new", "low-old"}, ids(notification.ListOptions{Sort: notification.SortPriority}))
}

func testMarkRead(t *testing.T, s Backend) {
	ctx := context.Background()
	seed(t, s, "past", "u1", notification.TypeMessage, notification.PriorityMedium, base)
	future := time.Now().UTC().Add(time.Hour).Truncate(time.Millisecond)
	seed(t, s, "future", "u1", notification.TypeMessage, notification.PriorityMedium, future)

	before := time.Now().UTC().Truncate(time.Millisecond)
	n, err := s.MarkRead(ctx, "past", "u1")
	require.NoError(t, err)
	require.True(t, n.Read)
	require.NotNil(t, n.ReadAt)
	assert.False(t, n.ReadAt.Before(before))
	assert.False(t, n.ReadAt.Before(n.CreatedAt))

	again, err := s.MarkRead(ctx, "past", "")
	require.NoError(t, err)
	assert.True(t, n.ReadAt.Equal(*again.ReadAt), "readAt is set once")

	n, err = s.MarkRead(ctx, "future", "u1")
	require.NoError(t, err)
	assert.True(t, n.ReadAt.Equal(future), "readAt never precedes createdAt")

	_, err = s.MarkRead(ctx, "past", "intruder")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	_, err = s.MarkRead(ctx, "missing", "u1")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	count, err := s.CountUnread(ctx, "u1")
	require.NoError(t, err)
	assert.Zero(t, count)
}

func testMarkAllRead(t *testing.T, s Backend) {
	ctx := context.Background()
	seed(t, s, "a", "u1", notification.TypeMessage, notification.PriorityMedium, base)
	seed(t, s, "b", "u1", notification.TypeMessage, notification.PriorityMedium, base.Add(time.Second))
	seed(t, s, "c", "u2", notification.TypeMessage, notification.PriorityMedium, base)
	_, err := s.MarkRead(ctx, "a", "u1")
	require.NoError(t, err)

	n, err := s.MarkAllRead(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	read := true
	res, err := s.FindMany(ctx, "u1", notification.ListOptions{Read: &read})
	require.NoError(t, err)
	require.Equal(t, 2, res.Total)
	for _, item := range res.Items {
		require.NotNil(t, item.ReadAt)
	}

	count, err := s.CountUnread(ctx, "u2")
	require.NoError(t, err)
	assert.Equal(t, 1, count, "other recipients untouched")
}

func testDelete(t *testing.T, s Backend) {
	ctx := context.Background()
	seed(t, s, "a", "u1", notification.TypeMessage, notification.PriorityMedium, base)
	seed(t, s, "b", "u1", notification.TypeMessage, notification.PriorityMedium, base)
	seed(t, s, "c", "u1", notification.TypeMessage, notification.PriorityMedium, base)
	seed(t, s, "d", "u2", notification.TypeMessage, notification.PriorityMedium, base)

	assert.ErrorIs(t, s.Delete(ctx, "a", "u2"), apperrors.ErrNotFound)
	require.NoError(t, s.Delete(ctx, "a", "u1"))
	assert.ErrorIs(t, s.Delete(ctx, "a", "u1"), apperrors.ErrNotFound)

	n, err := s.DeleteMany(ctx, []string{"b", "c", "d", "missing"}, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, n, "only the recipient's own notifications are removed")

	n, err = s.DeleteMany(ctx, nil, "u1")
	require.NoError(t, err)
	assert.Zero(t, n)

	require.NoError(t, s.Delete(ctx, "d", ""), "empty recipient skips ownership check")
}

func testDeleteExpired(t *testing.T, s Backend) {
	ctx := context.Background()
	seed(t, s, "old", "u1", notification.TypeSystem, notification.PriorityLow, base.Add(-10*24*time.Hour))
	seed(t, s, "fresh", "u1", notification.TypeSystem, notification.PriorityLow, base)

	n, err := s.DeleteExpired(ctx, base)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	res, err := s.FindMany(ctx, "u1", notification.ListOptions{})
	require.NoError(t, err)
	require.Len(t, res.Items, 1)
	assert.Equal(t, "fresh", res.Items[0].ID)
}

func testUsers(t *testing.T, s Backend) {
	ctx := context.Background()
	require.NoError(t, s.UpsertUser(ctx, user.Record{ID: "u1", Name: "Ana", Username: "ana", Email: "ana@example.com"}))
	require.NoError(t, s.UpsertUser(ctx, user.Record{ID: "u1", Name: "Ana Lima", Username: "ana", Email: "ana@example.com", Avatar: "a.png"}))

	p, err := s.FindMinimalProfile(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, &user.Profile{ID: "u1", Name: "Ana Lima", Username: "ana", Avatar: "a.png"}, p)

	id, err := s.FindIdentity(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, &user.Identity{ID: "u1", Name: "Ana Lima", Email: "ana@example.com", Avatar: "a.png"}, id)

	_, err = s.FindMinimalProfile(ctx, "ghost")
	assert.ErrorIs(t, err, user.ErrNotFound)
	_, err = s.FindIdentity(ctx, "ghost")
	assert.ErrorIs(t, err, user.ErrNotFound)
}
