package notification

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	apperrors "collabhub.io/realtime/internal/pkg/errors"
	"collabhub.io/realtime/internal/pkg/logger"
	"collabhub.io/realtime/internal/user"
)

// Deliverer pushes a freshly stored notification towards its recipient.
// It reports whether the push happened live; it never fails the caller.
type Deliverer interface {
	SendNotification(ctx context.Context, userID string, payload any) bool
}

// Params holds the fields for creating a notification.
type Params struct {
	RecipientID string         // required
	Type        Type           // required, drives priority and expiry defaults
	Title       string         // headline, may be empty
	Content     string         // body text
	SenderID    string         // optional; enriches the live push with a sender profile
	EntityType  string         // set together with EntityID, or neither
	EntityID    string         //
	ActionURL   string         // client navigation target
	MetaData    map[string]any // free-form
	Priority    Priority       // optional override of the type default
}

// Factory applies the type policy, persists the record and hands it to the
// dispatcher. Persistence failure is the only error it returns.
type Factory struct {
	store     Store
	users     user.Directory
	deliverer Deliverer
	now       func() time.Time
}

// NewFactory creates a notification factory. users may be nil, which disables
// sender enrichment.
func NewFactory(store Store, users user.Directory, deliverer Deliverer) *Factory {
	return &Factory{
		store:     store,
		users:     users,
		deliverer: deliverer,
		now:       time.Now,
	}
}

// WithClock overrides the creation clock.
func (f *Factory) WithClock(now func() time.Time) *Factory {
	f.now = now
	return f
}

// Create stores a notification and attempts delivery.
func (f *Factory) Create(ctx context.Context, p Params) (*Notification, error) {
	if err := validateParams(p); err != nil {
		return nil, err
	}

	priority := p.Priority
	if priority == "" {
		priority = PriorityFor(p.Type)
	}
	if !p.Type.Known() {
		logger.Debug("creating notification of unrecognized type", zap.String("type", string(p.Type)))
	}

	now := f.now().UTC()
	n := &Notification{
		ID:          uuid.NewString(),
		RecipientID: p.RecipientID,
		SenderID:    p.SenderID,
		Type:        p.Type,
		Priority:    priority,
		Title:       p.Title,
		Content:     p.Content,
		EntityType:  p.EntityType,
		EntityID:    p.EntityID,
		ActionURL:   p.ActionURL,
		MetaData:    p.MetaData,
		ExpiresAt:   now.Add(ExpiryFor(p.Type)),
		CreatedAt:   now,
	}

	if err := f.store.Create(ctx, n); err != nil {
		logger.Error("notification write failed",
			zap.String("recipient", p.RecipientID),
			zap.String("type", string(p.Type)),
			zap.Error(err),
		)
		return nil, apperrors.ErrPersistenceFailed(fmt.Errorf("create notification for user %s: %w", p.RecipientID, err))
	}

	f.deliver(ctx, n)
	return n, nil
}

func (f *Factory) deliver(ctx context.Context, n *Notification) {
	if f.deliverer == nil {
		return
	}

	payload := Delivery{Notification: n}
	if n.SenderID != "" && f.users != nil {
		profile, err := f.users.FindMinimalProfile(ctx, n.SenderID)
		if err != nil {
			logger.Warn("sender enrichment skipped",
				zap.String("notification_id", n.ID),
				zap.String("sender", n.SenderID),
				zap.Error(err),
			)
		} else {
			payload.Sender = profile
		}
	}

	live := f.deliverer.SendNotification(ctx, n.RecipientID, payload)
	logger.Debug("notification dispatched",
		zap.String("notification_id", n.ID),
		zap.String("recipient", n.RecipientID),
		zap.String("type", string(n.Type)),
		zap.Bool("live", live),
	)
}

func validateParams(p Params) error {
	if strings.TrimSpace(p.RecipientID) == "" {
		return apperrors.ErrValidation("recipient is required")
	}
	if strings.TrimSpace(string(p.Type)) == "" {
		return apperrors.ErrValidation("type is required")
	}
	if (p.EntityType == "") != (p.EntityID == "") {
		return apperrors.ErrValidation("entityType and entityId must be set together")
	}
	if p.Priority != "" && !p.Priority.Valid() {
		return apperrors.ErrValidation("priority must be one of high, medium, low")
	}
	return nil
}
