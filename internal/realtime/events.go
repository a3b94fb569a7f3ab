// Package realtime holds the in-process delivery core: who is connected
// (Registry), what is waiting for users who are not (Queue), and the
// Dispatcher that chooses between the two for every push.
package realtime

import (
	"encoding/json"
	"strings"
)

// Server to client events.
const (
	EventConnectionEstablished  = "connection_established"
	EventNewNotification        = "new_notification"
	EventNotificationCount      = "notification_count"
	EventRecentNotifications    = "recent_notifications"
	EventNotificationMarkedRead = "notification_marked_read"
	EventAllReadSuccess         = "all_read_success"
	EventNotificationDeleted    = "notification_deleted"
	EventUserTyping             = "user_typing"
	EventUserStoppedTyping      = "user_stopped_typing"
	EventJoinedTeam             = "joined_team"
	EventLeftTeam               = "left_team"
	EventTeamMemberActive       = "team_member_active"
	EventTeamMemberOffline      = "team_member_offline"
	EventUserPresenceChange     = "user_presence_change"
	EventHeartbeat              = "heartbeat"
	EventError                  = "error"
)

// Client to server events.
const (
	EventGetNotificationCount   = "get_notification_count"
	EventGetRecentNotifications = "get_recent_notifications"
	EventMarkNotificationRead   = "mark_notification_read"
	EventMarkAllRead            = "mark_all_read"
	EventDeleteNotification     = "delete_notification"
	EventSetStatus              = "set_status"
	EventTypingStart            = "typing_start"
	EventTypingEnd              = "typing_end"
	EventJoinTeam               = "join_team"
	EventLeaveTeam              = "leave_team"
)

// Envelope is one outbound frame.
type Envelope struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// Inbound is one client frame; Data is decoded by the event's handler.
type Inbound struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// CountPayload is the body of a notification_count event.
type CountPayload struct {
	Count int `json:"count"`
}

// ErrorPayload is the body of an error event.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Event   string `json:"event,omitempty"`
}

// Room name prefixes.
const (
	roomUser         = "user:"
	roomTeam         = "team:"
	roomConversation = "conversation:"
)

// UserRoom is the personal room every connection of userID joins on register.
func UserRoom(userID string) string { return roomUser + userID }

// TeamRoom names the broadcast group of a team.
func TeamRoom(teamID string) string { return roomTeam + teamID }

// ConversationRoom names the broadcast group of a conversation.
func ConversationRoom(conversationID string) string { return roomConversation + conversationID }

// IsUserRoom reports whether room is a personal room.
func IsUserRoom(room string) bool { return strings.HasPrefix(room, roomUser) }

// IsTeamRoom reports whether room is a team room.
func IsTeamRoom(room string) bool { return strings.HasPrefix(room, roomTeam) }

// TeamID extracts the team id from a team room name.
func TeamID(room string) string {
	id, ok := strings.CutPrefix(room, roomTeam)
	if !ok {
		return ""
	}
	return id
}
