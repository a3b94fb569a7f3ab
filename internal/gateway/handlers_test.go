package gateway

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"collabhub.io/realtime/internal/notification"
	apperrors "collabhub.io/realtime/internal/pkg/errors"
	"collabhub.io/realtime/internal/realtime"
)

func errorCode(t *testing.T, tr *fakeTransport) string {
	t.Helper()
	return tr.last(t, realtime.EventError).(realtime.ErrorPayload).Code
}

func TestHandleMessage_Rejections(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		code string
	}{
		{name: "not json", raw: "hello", code: apperrors.CodeValidationFailed},
		{name: "no event", raw: `{"data":{}}`, code: apperrors.CodeValidationFailed},
		{name: "unknown event", raw: `{"event":"launch_rockets"}`, code: apperrors.CodeUnknownEvent},
		{name: "bad payload", raw: `{"event":"mark_notification_read","data":"oops"}`, code: apperrors.CodeValidationFailed},
		{name: "missing notification id", raw: `{"event":"delete_notification","data":{}}`, code: apperrors.CodeValidationFailed},
		{name: "missing team id", raw: `{"event":"join_team","data":{"teamId":"  "}}`, code: apperrors.CodeValidationFailed},
		{name: "invalid status", raw: `{"event":"set_status","data":{"status":"asleep"}}`, code: apperrors.CodeValidationFailed},
		{name: "typing without room", raw: `{"event":"typing_start","data":{}}`, code: apperrors.CodeValidationFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			s, tr := env.open(t, "alice")
			tr.reset()

			env.manager.HandleMessage(context.Background(), s, []byte(tt.raw))

			assert.Equal(t, []string{realtime.EventError}, tr.events())
			assert.Equal(t, tt.code, errorCode(t, tr))
			assert.Equal(t, StateActive, s.State(), "errors never close the connection")
		})
	}
}

func TestHandleMessage_IgnoredUntilActive(t *testing.T) {
	env := newTestEnv(t)
	tr := &fakeTransport{}
	s := newSession("pending", tr)

	env.manager.HandleMessage(context.Background(), s, []byte(`{"event":"get_notification_count"}`))
	assert.Empty(t, tr.events())
}

func TestHandleMessage_RecoversPanics(t *testing.T) {
	env := newTestEnv(t)
	env.manager.handlers["explode"] = func(context.Context, *Session, json.RawMessage) error {
		panic("boom")
	}
	s, tr := env.open(t, "alice")
	tr.reset()

	env.manager.HandleMessage(context.Background(), s, []byte(`{"event":"explode"}`))

	payload := tr.last(t, realtime.EventError).(realtime.ErrorPayload)
	assert.Equal(t, apperrors.CodeInternal, payload.Code)
	assert.Equal(t, "explode", payload.Event)
	assert.Equal(t, StateActive, s.State())
}

func TestHandleMessage_Count(t *testing.T) {
	env := newTestEnv(t)
	env.notify(t, "alice", "one")
	s, tr := env.open(t, "alice")
	tr.reset()

	env.send(s, realtime.EventGetNotificationCount, nil)
	assert.Equal(t, realtime.CountPayload{Count: 1}, tr.last(t, realtime.EventNotificationCount))
}

func TestHandleMessage_Recent(t *testing.T) {
	env := newTestEnv(t)
	for _, title := range []string{"one", "two", "three"} {
		env.notify(t, "alice", title)
	}
	env.notify(t, "bob", "not yours")
	s, tr := env.open(t, "alice")
	tr.reset()

	env.send(s, realtime.EventGetRecentNotifications, map[string]any{"limit": 2})

	result := tr.last(t, realtime.EventRecentNotifications).(notification.ListResult)
	assert.Equal(t, 3, result.Total)
	require.Len(t, result.Items, 2)
	for _, n := range result.Items {
		assert.Equal(t, "alice", n.RecipientID)
	}
}

func TestHandleMessage_MarkRead(t *testing.T) {
	env := newTestEnv(t)
	n := env.notify(t, "alice", "read me")
	env.notify(t, "alice", "keep me")
	s, tr := env.open(t, "alice")
	_, otherTr := env.open(t, "alice")
	tr.reset()
	otherTr.reset()

	env.send(s, realtime.EventMarkNotificationRead, map[string]string{"notificationId": n.ID})

	assert.Equal(t, []string{realtime.EventNotificationMarkedRead, realtime.EventNotificationCount}, tr.events())
	ack := tr.last(t, realtime.EventNotificationMarkedRead).(map[string]any)
	assert.Equal(t, n.ID, ack["notificationId"])
	assert.NotNil(t, ack["readAt"])
	assert.Equal(t, realtime.CountPayload{Count: 1}, tr.last(t, realtime.EventNotificationCount))
	assert.Equal(t, realtime.CountPayload{Count: 1}, otherTr.last(t, realtime.EventNotificationCount),
		"every connection of the user gets the new badge")
}

func TestHandleMessage_MarkReadNotOwned(t *testing.T) {
	env := newTestEnv(t)
	n := env.notify(t, "bob", "private")
	s, tr := env.open(t, "alice")
	tr.reset()

	env.send(s, realtime.EventMarkNotificationRead, map[string]string{"notificationId": n.ID})

	assert.Equal(t, apperrors.CodeNotificationNotFound, errorCode(t, tr))
	count, err := env.store.CountUnread(context.Background(), "bob")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestHandleMessage_MarkAllRead(t *testing.T) {
	env := newTestEnv(t)
	env.notify(t, "alice", "one")
	env.notify(t, "alice", "two")
	s, tr := env.open(t, "alice")
	tr.reset()

	env.send(s, realtime.EventMarkAllRead, nil)

	assert.Equal(t, []string{realtime.EventAllReadSuccess, realtime.EventNotificationCount}, tr.events())
	assert.Equal(t, map[string]any{"count": 2}, tr.last(t, realtime.EventAllReadSuccess))
	assert.Equal(t, realtime.CountPayload{Count: 0}, tr.last(t, realtime.EventNotificationCount))
}

func TestHandleMessage_Delete(t *testing.T) {
	env := newTestEnv(t)
	n := env.notify(t, "alice", "bye")
	s, tr := env.open(t, "alice")
	tr.reset()

	env.send(s, realtime.EventDeleteNotification, map[string]string{"notificationId": n.ID})

	assert.Equal(t, []string{realtime.EventNotificationDeleted, realtime.EventNotificationCount}, tr.events())
	assert.Equal(t, notificationRef{NotificationID: n.ID}, tr.last(t, realtime.EventNotificationDeleted))
	assert.Equal(t, realtime.CountPayload{Count: 0}, tr.last(t, realtime.EventNotificationCount))

	tr.reset()
	env.send(s, realtime.EventDeleteNotification, map[string]string{"notificationId": n.ID})
	assert.Equal(t, apperrors.CodeNotificationNotFound, errorCode(t, tr))
}

func TestHandleMessage_SetStatus(t *testing.T) {
	env := newTestEnv(t)
	alice, aliceTr := env.open(t, "alice")
	bob, bobTr := env.open(t, "bob")
	env.send(alice, realtime.EventJoinTeam, map[string]string{"teamId": "t1"})
	env.send(bob, realtime.EventJoinTeam, map[string]string{"teamId": "t1"})
	aliceTr.reset()
	bobTr.reset()

	env.send(alice, realtime.EventSetStatus, map[string]string{"status": StatusAway})

	assert.Equal(t, StatusAway, alice.Status())
	assert.Empty(t, aliceTr.events())
	assert.Equal(t, map[string]any{"userId": "alice", "status": StatusAway},
		bobTr.last(t, realtime.EventUserPresenceChange))
}

func TestHandleMessage_Typing(t *testing.T) {
	env := newTestEnv(t)
	alice, aliceTr := env.open(t, "alice")
	bob, bobTr := env.open(t, "bob")
	env.send(alice, realtime.EventJoinTeam, map[string]string{"teamId": "t1"})
	env.send(bob, realtime.EventJoinTeam, map[string]string{"teamId": "t1"})
	aliceTr.reset()
	bobTr.reset()

	env.send(alice, realtime.EventTypingStart, map[string]string{"teamId": "t1"})
	env.send(alice, realtime.EventTypingEnd, map[string]string{"teamId": "t1"})

	assert.Empty(t, aliceTr.events())
	assert.Equal(t, []string{realtime.EventUserTyping, realtime.EventUserStoppedTyping}, bobTr.events())
	typing := bobTr.last(t, realtime.EventUserTyping).(map[string]any)
	assert.Equal(t, "alice", typing["userId"])
	assert.Equal(t, "Alice", typing["name"])
	assert.Equal(t, "t1", typing["teamId"])
}

func TestHandleMessage_JoinAndLeaveTeam(t *testing.T) {
	env := newTestEnv(t)
	alice, aliceTr := env.open(t, "alice")
	bob, bobTr := env.open(t, "bob")
	env.send(bob, realtime.EventJoinTeam, map[string]string{"teamId": "t1"})
	aliceTr.reset()
	bobTr.reset()

	env.send(alice, realtime.EventJoinTeam, map[string]string{"teamId": "t1"})
	assert.Equal(t, []string{realtime.EventJoinedTeam}, aliceTr.events())
	assert.Equal(t, teamRequest{TeamID: "t1"}, aliceTr.last(t, realtime.EventJoinedTeam))
	assert.Equal(t, []string{realtime.EventTeamMemberActive}, bobTr.events())

	bobTr.reset()
	env.send(alice, realtime.EventJoinTeam, map[string]string{"teamId": "t1"})
	assert.Empty(t, bobTr.events(), "rejoining is not announced again")

	aliceTr.reset()
	env.send(alice, realtime.EventLeaveTeam, map[string]string{"teamId": "t1"})
	assert.Equal(t, []string{realtime.EventLeftTeam}, aliceTr.events())
	assert.NotContains(t, env.dispatcher.Registry().Rooms(alice.ID()), realtime.TeamRoom("t1"))

	aliceTr.reset()
	env.send(bob, realtime.EventTypingStart, map[string]string{"teamId": "t1"})
	assert.Empty(t, aliceTr.events())
}
