package notification

import (
	"context"
	"time"
)

// Sort orders list results.
type Sort string

const (
	SortNewest   Sort = "newest"
	SortOldest   Sort = "oldest"
	SortPriority Sort = "priority"
)

// List paging bounds.
const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// ListOptions filters and pages FindMany. Nil pointers mean "any".
type ListOptions struct {
	Limit    int
	Skip     int
	Read     *bool
	Type     *Type
	Priority *Priority
	Sort     Sort
}

// Normalize clamps paging and fills the default sort.
func (o ListOptions) Normalize() ListOptions {
	if o.Limit <= 0 {
		o.Limit = DefaultListLimit
	}
	if o.Limit > MaxListLimit {
		o.Limit = MaxListLimit
	}
	if o.Skip < 0 {
		o.Skip = 0
	}
	switch o.Sort {
	case SortOldest, SortPriority:
	default:
		o.Sort = SortNewest
	}
	return o
}

// ListResult is one page of notifications plus the unpaged total.
type ListResult struct {
	Items []*Notification `json:"items"`
	Total int             `json:"total"`
}

// Store is the durable notification collection.
//
// recipientID on MarkRead and Delete scopes the operation to an owner; an empty
// value disables the ownership check. Missing or foreign records yield an
// error matching apperrors.ErrNotFound.
type Store interface {
	Create(ctx context.Context, n *Notification) error
	FindMany(ctx context.Context, recipientID string, opts ListOptions) (ListResult, error)
	CountUnread(ctx context.Context, recipientID string) (int, error)
	MarkRead(ctx context.Context, id, recipientID string) (*Notification, error)
	MarkAllRead(ctx context.Context, recipientID string) (int, error)
	Delete(ctx context.Context, id, recipientID string) error
	DeleteMany(ctx context.Context, ids []string, recipientID string) (int, error)
	DeleteExpired(ctx context.Context, before time.Time) (int, error)
}
