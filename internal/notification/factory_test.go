package notification

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "collabhub.io/realtime/internal/pkg/errors"
	"collabhub.io/realtime/internal/user"
)

var fixedNow = time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)

func newTestFactory(store Store, dir user.Directory, d Deliverer) *Factory {
	return NewFactory(store, dir, d).WithClock(func() time.Time { return fixedNow })
}

func TestFactoryCreate_AppliesTypePolicy(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		typ          Type
		wantPriority Priority
		wantExpiry   time.Duration
	}{
		{"connection request", TypeConnectionRequest, PriorityHigh, 5 * day},
		{"connection accepted", TypeConnectionAccepted, PriorityMedium, 7 * day},
		{"team invite", TypeTeamInvite, PriorityHigh, 30 * day},
		{"team join", TypeTeamJoin, PriorityMedium, 7 * day},
		{"team leave", TypeTeamLeave, PriorityMedium, 7 * day},
		{"team role change", TypeTeamRoleChange, PriorityMedium, 7 * day},
		{"project invite", TypeProjectInvite, PriorityHigh, 30 * day},
		{"project update", TypeProjectUpdate, PriorityMedium, 5 * day},
		{"task assigned", TypeTaskAssigned, PriorityHigh, 7 * day},
		{"task completed", TypeTaskCompleted, PriorityLow, 5 * day},
		{"task deadline", TypeTaskDeadline, PriorityMedium, 5 * day},
		{"mention", TypeMention, PriorityHigh, 14 * day},
		{"message", TypeMessage, PriorityMedium, 14 * day},
		{"system", TypeSystem, PriorityLow, 5 * day},
		{"unknown type", Type("weekly_digest"), PriorityMedium, 5 * day},
	}

	// Every declared type must have a row above.
	covered := make(map[Type]bool, len(tests))
	for _, tt := range tests {
		covered[tt.typ] = true
	}
	require.Len(t, Types, 14)
	for _, typ := range Types {
		require.True(t, covered[typ], "no policy row for %s", typ)
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			store := &memStore{}
			f := newTestFactory(store, nil, &recordingDeliverer{})

			n, err := f.Create(context.Background(), Params{
				RecipientID: "u1",
				Type:        tt.typ,
				Title:       "hello",
			})
			require.NoError(t, err)
			assert.Equal(t, tt.wantPriority, n.Priority)
			assert.Equal(t, fixedNow.Add(tt.wantExpiry), n.ExpiresAt)
			assert.Equal(t, fixedNow, n.CreatedAt)
			assert.False(t, n.Read)
			assert.Nil(t, n.ReadAt)
			assert.NotEmpty(t, n.ID)
			assert.Len(t, store.all(), 1)
		})
	}
}

func TestFactoryCreate_PriorityOverride(t *testing.T) {
	t.Parallel()

	f := newTestFactory(&memStore{}, nil, nil)
	n, err := f.Create(context.Background(), Params{
		RecipientID: "u1",
		Type:        TypeSystem,
		Title:       "maintenance",
		Priority:    PriorityHigh,
	})
	require.NoError(t, err)
	assert.Equal(t, PriorityHigh, n.Priority)
	assert.Equal(t, fixedNow.Add(DefaultExpiry), n.ExpiresAt)
}

func TestFactoryCreate_Validation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		params Params
	}{
		{"missing recipient", Params{Type: TypeMessage, Title: "x"}},
		{"missing type", Params{RecipientID: "u1", Title: "x"}},
		{"entity type without id", Params{RecipientID: "u1", Type: TypeMessage, Title: "x", EntityType: "task"}},
		{"entity id without type", Params{RecipientID: "u1", Type: TypeMessage, Title: "x", EntityID: "t1"}},
		{"bad priority", Params{RecipientID: "u1", Type: TypeMessage, Title: "x", Priority: "urgent"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			store := &memStore{}
			deliverer := &recordingDeliverer{}
			f := newTestFactory(store, nil, deliverer)

			_, err := f.Create(context.Background(), tt.params)
			require.Error(t, err)
			assert.ErrorIs(t, err, apperrors.ErrBadRequest)
			assert.Empty(t, store.all())
			assert.Empty(t, deliverer.pushes())
		})
	}
}

func TestFactoryCreate_EmptyTitleAllowed(t *testing.T) {
	t.Parallel()

	store := &memStore{}
	f := newTestFactory(store, nil, &recordingDeliverer{})

	n, err := f.Create(context.Background(), Params{RecipientID: "u1", Type: TypeSystem})
	require.NoError(t, err)
	assert.Empty(t, n.Title)
	assert.Len(t, store.all(), 1)
}

func TestFactoryCreate_PersistenceFailureSkipsPush(t *testing.T) {
	t.Parallel()

	store := &memStore{createErr: errors.New("disk full")}
	deliverer := &recordingDeliverer{live: true}
	f := newTestFactory(store, nil, deliverer)

	n, err := f.Create(context.Background(), Params{RecipientID: "u1", Type: TypeMessage, Title: "hi"})
	require.Error(t, err)
	assert.Nil(t, n)
	assert.ErrorIs(t, err, apperrors.ErrPersistence)

	appErr, ok := apperrors.IsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.CodePersistenceFailed, appErr.Code)
	assert.Contains(t, err.Error(), "disk full")
	assert.Empty(t, deliverer.pushes())
}

func TestFactoryCreate_PushesWithSenderProfile(t *testing.T) {
	t.Parallel()

	dir := stubDirectory{profiles: map[string]*user.Profile{
		"u2": {ID: "u2", Name: "Bea", Username: "bea"},
	}}
	deliverer := &recordingDeliverer{live: true}
	f := newTestFactory(&memStore{}, dir, deliverer)

	n, err := f.Create(context.Background(), Params{
		RecipientID: "u1",
		SenderID:    "u2",
		Type:        TypeTaskAssigned,
		Title:       "New task",
		EntityType:  "task",
		EntityID:    "t-9",
	})
	require.NoError(t, err)

	pushes := deliverer.pushes()
	require.Len(t, pushes, 1)
	assert.Equal(t, "u1", pushes[0].userID)

	delivery, ok := pushes[0].payload.(Delivery)
	require.True(t, ok)
	assert.Same(t, n, delivery.Notification)
	require.NotNil(t, delivery.Sender)
	assert.Equal(t, "bea", delivery.Sender.Username)
}

func TestFactoryCreate_EnrichmentFailureIsNotFatal(t *testing.T) {
	t.Parallel()

	deliverer := &recordingDeliverer{}
	f := newTestFactory(&memStore{}, stubDirectory{err: errors.New("directory down")}, deliverer)

	n, err := f.Create(context.Background(), Params{
		RecipientID: "u1",
		SenderID:    "u2",
		Type:        TypeMention,
		Title:       "You were mentioned",
	})
	require.NoError(t, err)
	require.NotNil(t, n)

	pushes := deliverer.pushes()
	require.Len(t, pushes, 1)
	delivery := pushes[0].payload.(Delivery)
	assert.Nil(t, delivery.Sender)
}

func TestFactoryCreate_OfflineRecipientStillSucceeds(t *testing.T) {
	t.Parallel()

	store := &memStore{}
	deliverer := &recordingDeliverer{live: false}
	f := newTestFactory(store, nil, deliverer)

	n, err := f.Create(context.Background(), Params{RecipientID: "u1", Type: TypeMessage, Title: "hi"})
	require.NoError(t, err)
	require.NotNil(t, n)
	assert.Len(t, store.all(), 1)
	assert.Len(t, deliverer.pushes(), 1)
}
