package domain

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// EventType defines the type of domain event.
type EventType string

const (
	// Task events
	EventTaskAssigned  EventType = "TASK_ASSIGNED"
	EventTaskCompleted EventType = "TASK_COMPLETED"
	EventTaskDeadline  EventType = "TASK_DEADLINE"

	// Team events
	EventTeamInvite       EventType = "TEAM_INVITE"
	EventTeamMemberJoined EventType = "TEAM_MEMBER_JOINED"
	EventTeamMemberLeft   EventType = "TEAM_MEMBER_LEFT"
	EventTeamRoleChanged  EventType = "TEAM_ROLE_CHANGED"

	// Project events
	EventProjectInvite  EventType = "PROJECT_INVITE"
	EventProjectUpdated EventType = "PROJECT_UPDATED"

	// Connection (user-to-user) events
	EventConnectionRequested EventType = "CONNECTION_REQUESTED"
	EventConnectionAccepted  EventType = "CONNECTION_ACCEPTED"

	// Messaging events
	EventMentioned   EventType = "MENTIONED"
	EventMessageSent EventType = "MESSAGE_SENT"

	// System events
	EventSystemAnnouncement EventType = "SYSTEM_ANNOUNCEMENT"
)

// EventTypes lists every event type accepted by the dispatcher.
var EventTypes = []EventType{
	EventTaskAssigned, EventTaskCompleted, EventTaskDeadline,
	EventTeamInvite, EventTeamMemberJoined, EventTeamMemberLeft, EventTeamRoleChanged,
	EventProjectInvite, EventProjectUpdated,
	EventConnectionRequested, EventConnectionAccepted,
	EventMentioned, EventMessageSent,
	EventSystemAnnouncement,
}

// Known reports whether t is a declared event type.
func (t EventType) Known() bool {
	for _, known := range EventTypes {
		if t == known {
			return true
		}
	}
	return false
}

// Validation errors returned by DomainEvent.Validate.
var (
	ErrUnknownEventType = errors.New("unknown event type")
	ErrNoRecipients     = errors.New("event has no recipients")
	ErrIncompleteEntity = errors.New("entity type and entity id must be set together")
)

// DomainEvent is something that happened in the collaboration domain that
// may concern other users. It is a claim check: it names the entity, it does
// not carry its state.
type DomainEvent struct {
	EventID    string         `json:"eventId"`
	EventType  EventType      `json:"eventType"`
	ActorID    string         `json:"actorId"`
	Recipients []string       `json:"recipients"`
	EntityType string         `json:"entityType,omitempty"`
	EntityID   string         `json:"entityId,omitempty"`
	Subject    string         `json:"subject,omitempty"` // display name of the entity, e.g. the task title
	ActorName  string         `json:"actorName,omitempty"`
	Detail     string         `json:"detail,omitempty"` // free text such as a message excerpt or the new role
	MetaData   map[string]any `json:"metaData,omitempty"`
	CreatedAt  time.Time      `json:"createdAt"`
}

// NewEvent stamps a fresh event id and creation time.
func NewEvent(eventType EventType, actorID string, recipients ...string) *DomainEvent {
	return &DomainEvent{
		EventID:    uuid.NewString(),
		EventType:  eventType,
		ActorID:    actorID,
		Recipients: recipients,
		CreatedAt:  time.Now().UTC(),
	}
}

// WithEntity sets the entity reference and its display name.
func (e *DomainEvent) WithEntity(entityType, entityID, subject string) *DomainEvent {
	e.EntityType = entityType
	e.EntityID = entityID
	e.Subject = subject
	return e
}

// Validate checks the event before dispatch.
func (e *DomainEvent) Validate() error {
	if !e.EventType.Known() {
		return ErrUnknownEventType
	}
	hasRecipient := false
	for _, r := range e.Recipients {
		if strings.TrimSpace(r) != "" {
			hasRecipient = true
			break
		}
	}
	if !hasRecipient {
		return ErrNoRecipients
	}
	if (e.EntityType == "") != (e.EntityID == "") {
		return ErrIncompleteEntity
	}
	return nil
}

// Audience returns the distinct non-empty recipients, excluding the actor.
func (e *DomainEvent) Audience() []string {
	seen := make(map[string]struct{}, len(e.Recipients))
	out := make([]string, 0, len(e.Recipients))
	for _, r := range e.Recipients {
		r = strings.TrimSpace(r)
		if r == "" || r == e.ActorID {
			continue
		}
		if _, dup := seen[r]; dup {
			continue
		}
		seen[r] = struct{}{}
		out = append(out, r)
	}
	return out
}
