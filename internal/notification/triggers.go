package notification

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"collabhub.io/realtime/internal/domain"
	"collabhub.io/realtime/internal/pkg/logger"
)

// Creator is the part of the factory the triggers need.
type Creator interface {
	Create(ctx context.Context, p Params) (*Notification, error)
}

// rendering describes how one domain event becomes a notification.
type rendering struct {
	typ     Type
	title   string
	content func(e *domain.DomainEvent) string
}

var renderings = map[domain.EventType]rendering{
	domain.EventTaskAssigned: {
		typ:   TypeTaskAssigned,
		title: "New task assigned",
		content: func(e *domain.DomainEvent) string {
			return fmt.Sprintf("%s assigned you to %q", actorName(e), subject(e, "a task"))
		},
	},
	domain.EventTaskCompleted: {
		typ:   TypeTaskCompleted,
		title: "Task completed",
		content: func(e *domain.DomainEvent) string {
			return fmt.Sprintf("%s completed %q", actorName(e), subject(e, "a task"))
		},
	},
	domain.EventTaskDeadline: {
		typ:   TypeTaskDeadline,
		title: "Task deadline approaching",
		content: func(e *domain.DomainEvent) string {
			if e.Detail != "" {
				return fmt.Sprintf("%q is due %s", subject(e, "A task"), e.Detail)
			}
			return fmt.Sprintf("%q is due soon", subject(e, "A task"))
		},
	},
	domain.EventTeamInvite: {
		typ:   TypeTeamInvite,
		title: "Team invitation",
		content: func(e *domain.DomainEvent) string {
			return fmt.Sprintf("%s invited you to join %s", actorName(e), subject(e, "a team"))
		},
	},
	domain.EventTeamMemberJoined: {
		typ:   TypeTeamJoin,
		title: "New team member",
		content: func(e *domain.DomainEvent) string {
			return fmt.Sprintf("%s joined %s", actorName(e), subject(e, "your team"))
		},
	},
	domain.EventTeamMemberLeft: {
		typ:   TypeTeamLeave,
		title: "Team member left",
		content: func(e *domain.DomainEvent) string {
			return fmt.Sprintf("%s left %s", actorName(e), subject(e, "your team"))
		},
	},
	domain.EventTeamRoleChanged: {
		typ:   TypeTeamRoleChange,
		title: "Your team role changed",
		content: func(e *domain.DomainEvent) string {
			if e.Detail != "" {
				return fmt.Sprintf("%s made you %s in %s", actorName(e), e.Detail, subject(e, "your team"))
			}
			return fmt.Sprintf("%s changed your role in %s", actorName(e), subject(e, "your team"))
		},
	},
	domain.EventProjectInvite: {
		typ:   TypeProjectInvite,
		title: "Project invitation",
		content: func(e *domain.DomainEvent) string {
			return fmt.Sprintf("%s invited you to %s", actorName(e), subject(e, "a project"))
		},
	},
	domain.EventProjectUpdated: {
		typ:   TypeProjectUpdate,
		title: "Project updated",
		content: func(e *domain.DomainEvent) string {
			return fmt.Sprintf("%s updated %s", actorName(e), subject(e, "a project"))
		},
	},
	domain.EventConnectionRequested: {
		typ:   TypeConnectionRequest,
		title: "New connection request",
		content: func(e *domain.DomainEvent) string {
			return fmt.Sprintf("%s wants to connect with you", actorName(e))
		},
	},
	domain.EventConnectionAccepted: {
		typ:   TypeConnectionAccepted,
		title: "Connection accepted",
		content: func(e *domain.DomainEvent) string {
			return fmt.Sprintf("%s accepted your connection request", actorName(e))
		},
	},
	domain.EventMentioned: {
		typ:   TypeMention,
		title: "You were mentioned",
		content: func(e *domain.DomainEvent) string {
			if e.Detail != "" {
				return fmt.Sprintf("%s mentioned you: %s", actorName(e), e.Detail)
			}
			return fmt.Sprintf("%s mentioned you in %s", actorName(e), subject(e, "a conversation"))
		},
	},
	domain.EventMessageSent: {
		typ:   TypeMessage,
		title: "New message",
		content: func(e *domain.DomainEvent) string {
			if e.Detail != "" {
				return fmt.Sprintf("%s: %s", actorName(e), e.Detail)
			}
			return fmt.Sprintf("%s sent you a message", actorName(e))
		},
	},
	domain.EventSystemAnnouncement: {
		typ:   TypeSystem,
		title: "Announcement",
		content: func(e *domain.DomainEvent) string {
			return e.Detail
		},
	},
}

var actionPaths = map[string]string{
	"task":         "/tasks/",
	"team":         "/teams/",
	"project":      "/projects/",
	"user":         "/users/",
	"conversation": "/messages/",
}

// Triggers turns domain events into notifications for every recipient.
type Triggers struct {
	creator Creator
}

// NewTriggers creates the trigger set.
func NewTriggers(creator Creator) *Triggers {
	return &Triggers{creator: creator}
}

// Register subscribes one handler per supported event type.
func (t *Triggers) Register(d *domain.EventDispatcher) {
	for eventType := range renderings {
		d.Register(eventType, t.Handle)
	}
}

// Handle notifies each recipient of event except the actor. A failure for
// one recipient does not stop the others; all failures are returned joined.
func (t *Triggers) Handle(ctx context.Context, event *domain.DomainEvent) error {
	r, ok := renderings[event.EventType]
	if !ok {
		return fmt.Errorf("no notification rendering for %s", event.EventType)
	}

	recipients := event.Audience()
	if len(recipients) == 0 {
		logger.Debug("domain event has no audience besides the actor",
			zap.String("event_id", event.EventID),
			zap.String("event_type", string(event.EventType)),
		)
		return nil
	}

	title := r.title
	if event.EventType == domain.EventSystemAnnouncement && event.Subject != "" {
		title = event.Subject
	}

	params := Params{
		SenderID:   event.ActorID,
		Type:       r.typ,
		Title:      title,
		Content:    r.content(event),
		EntityType: event.EntityType,
		EntityID:   event.EntityID,
		ActionURL:  actionURL(event.EntityType, event.EntityID),
		MetaData:   metaData(event),
	}

	var errs []error
	for _, recipient := range recipients {
		p := params
		p.RecipientID = recipient
		if _, err := t.creator.Create(ctx, p); err != nil {
			logger.Error("failed to create notification from domain event",
				zap.String("event_id", event.EventID),
				zap.String("event_type", string(event.EventType)),
				zap.String("recipient", recipient),
				zap.Error(err),
			)
			errs = append(errs, fmt.Errorf("notify %s: %w", recipient, err))
		}
	}
	return errors.Join(errs...)
}

func actorName(e *domain.DomainEvent) string {
	if e.ActorName != "" {
		return e.ActorName
	}
	return "Someone"
}

func subject(e *domain.DomainEvent, fallback string) string {
	if e.Subject != "" {
		return e.Subject
	}
	return fallback
}

func actionURL(entityType, entityID string) string {
	prefix, ok := actionPaths[entityType]
	if !ok || entityID == "" {
		return ""
	}
	return prefix + entityID
}

func metaData(e *domain.DomainEvent) map[string]any {
	md := make(map[string]any, len(e.MetaData)+1)
	for k, v := range e.MetaData {
		md[k] = v
	}
	md["eventId"] = e.EventID
	return md
}
