// Package notification owns the notification record, the per-type delivery
// policy and the factory that turns a domain request into a stored record
// handed to the realtime dispatcher.
package notification

import (
	"time"

	"collabhub.io/realtime/internal/user"
)

// Type is the closed set of notification kinds.
type Type string

const (
	TypeConnectionRequest  Type = "connection_request"
	TypeConnectionAccepted Type = "connection_accepted"
	TypeTeamInvite         Type = "team_invite"
	TypeTeamJoin           Type = "team_join"
	TypeTeamLeave          Type = "team_leave"
	TypeTeamRoleChange     Type = "team_role_change"
	TypeProjectInvite      Type = "project_invite"
	TypeProjectUpdate      Type = "project_update"
	TypeTaskAssigned       Type = "task_assigned"
	TypeTaskCompleted      Type = "task_completed"
	TypeTaskDeadline       Type = "task_deadline"
	TypeMention            Type = "mention"
	TypeMessage            Type = "message"
	TypeSystem             Type = "system"
)

// Types lists every known notification type.
var Types = []Type{
	TypeConnectionRequest, TypeConnectionAccepted,
	TypeTeamInvite, TypeTeamJoin, TypeTeamLeave, TypeTeamRoleChange,
	TypeProjectInvite, TypeProjectUpdate,
	TypeTaskAssigned, TypeTaskCompleted, TypeTaskDeadline,
	TypeMention, TypeMessage, TypeSystem,
}

// Known reports whether t is one of the declared types.
func (t Type) Known() bool {
	_, ok := priorityByType[t]
	return ok
}

// Priority ranks how urgently a notification should surface.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Valid reports whether p is one of the three priorities.
func (p Priority) Valid() bool {
	switch p {
	case PriorityHigh, PriorityMedium, PriorityLow:
		return true
	}
	return false
}

// Notification is the durable record.
// Read stays false until explicitly marked; ReadAt is set together with Read.
type Notification struct {
	ID          string         `json:"id"`
	RecipientID string         `json:"recipientId"`
	SenderID    string         `json:"senderId,omitempty"`
	Type        Type           `json:"type"`
	Priority    Priority       `json:"priority"`
	Title       string         `json:"title"`
	Content     string         `json:"content"`
	Read        bool           `json:"read"`
	ReadAt      *time.Time     `json:"readAt,omitempty"`
	EntityType  string         `json:"entityType,omitempty"`
	EntityID    string         `json:"entityId,omitempty"`
	ActionURL   string         `json:"actionUrl,omitempty"`
	MetaData    map[string]any `json:"metaData,omitempty"`
	ExpiresAt   time.Time      `json:"expiresAt"`
	CreatedAt   time.Time      `json:"createdAt"`
}

// Delivery is the live-push payload of a new_notification event: the record
// plus an optional sender projection.
type Delivery struct {
	*Notification
	Sender *user.Profile `json:"sender,omitempty"`
}
