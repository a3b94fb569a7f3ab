package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"collabhub.io/realtime/internal/notification"
	apperrors "collabhub.io/realtime/internal/pkg/errors"
)

const notificationColumns = `id, recipient_id, sender_id, type, priority, title, content,
	is_read, read_at, entity_type, entity_id, action_url, meta_data, expires_at, created_at`

type notificationRow struct {
	ID          string         `db:"id"`
	RecipientID string         `db:"recipient_id"`
	SenderID    string         `db:"sender_id"`
	Type        string         `db:"type"`
	Priority    string         `db:"priority"`
	Title       string         `db:"title"`
	Content     string         `db:"content"`
	IsRead      bool           `db:"is_read"`
	ReadAt      *time.Time     `db:"read_at"`
	EntityType  string         `db:"entity_type"`
	EntityID    string         `db:"entity_id"`
	ActionURL   string         `db:"action_url"`
	MetaData    map[string]any `db:"meta_data"`
	ExpiresAt   time.Time      `db:"expires_at"`
	CreatedAt   time.Time      `db:"created_at"`
}

func (r notificationRow) toModel() *notification.Notification {
	n := &notification.Notification{
		ID:          r.ID,
		RecipientID: r.RecipientID,
		SenderID:    r.SenderID,
		Type:        notification.Type(r.Type),
		Priority:    notification.Priority(r.Priority),
		Title:       r.Title,
		Content:     r.Content,
		Read:        r.IsRead,
		EntityType:  r.EntityType,
		EntityID:    r.EntityID,
		ActionURL:   r.ActionURL,
		ExpiresAt:   r.ExpiresAt.UTC(),
		CreatedAt:   r.CreatedAt.UTC(),
	}
	if r.ReadAt != nil {
		readAt := r.ReadAt.UTC()
		n.ReadAt = &readAt
	}
	if len(r.MetaData) > 0 {
		n.MetaData = r.MetaData
	}
	return n
}

func collect(rows pgx.Rows) ([]*notification.Notification, error) {
	list, err := pgx.CollectRows(rows, pgx.RowToStructByName[notificationRow])
	if err != nil {
		return nil, err
	}
	out := make([]*notification.Notification, 0, len(list))
	for _, r := range list {
		out = append(out, r.toModel())
	}
	return out, nil
}

// Create inserts n.
func (s *Store) Create(ctx context.Context, n *notification.Notification) error {
	meta := n.MetaData
	if meta == nil {
		meta = map[string]any{}
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO notifications (`+notificationColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		n.ID, n.RecipientID, n.SenderID, string(n.Type), string(n.Priority), n.Title, n.Content,
		n.Read, n.ReadAt, n.EntityType, n.EntityID, n.ActionURL, meta,
		n.ExpiresAt.UTC(), n.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert notification %s: %w", n.ID, err)
	}
	return nil
}

// FindMany lists a recipient's notifications.
func (s *Store) FindMany(ctx context.Context, recipientID string, opts notification.ListOptions) (notification.ListResult, error) {
	opts = opts.Normalize()

	args := []any{recipientID}
	conditions := []string{"recipient_id = $1"}
	add := func(column string, v any) {
		args = append(args, v)
		conditions = append(conditions, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if opts.Read != nil {
		add("is_read", *opts.Read)
	}
	if opts.Type != nil {
		add("type", string(*opts.Type))
	}
	if opts.Priority != nil {
		add("priority", string(*opts.Priority))
	}
	where := " WHERE " + strings.Join(conditions, " AND ")

	var total int
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM notifications"+where, args...).Scan(&total); err != nil {
		return notification.ListResult{}, fmt.Errorf("count notifications: %w", err)
	}

	query := fmt.Sprintf("SELECT %s FROM notifications%s ORDER BY %s LIMIT $%d OFFSET $%d",
		notificationColumns, where, orderBy(opts.Sort), len(args)+1, len(args)+2)
	rows, err := s.pool.Query(ctx, query, append(args, opts.Limit, opts.Skip)...)
	if err != nil {
		return notification.ListResult{}, fmt.Errorf("query notifications: %w", err)
	}
	items, err := collect(rows)
	if err != nil {
		return notification.ListResult{}, fmt.Errorf("scan notifications: %w", err)
	}
	return notification.ListResult{Items: items, Total: total}, nil
}

func orderBy(sort notification.Sort) string {
	switch sort {
	case notification.SortOldest:
		return "created_at ASC, id ASC"
	case notification.SortPriority:
		return "CASE priority WHEN 'high' THEN 0 WHEN 'medium' THEN 1 ELSE 2 END, created_at DESC, id DESC"
	default:
		return "created_at DESC, id DESC"
	}
}

// CountUnread counts the recipient's unread notifications.
func (s *Store) CountUnread(ctx context.Context, recipientID string) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx,
		"SELECT COUNT(*) FROM notifications WHERE recipient_id = $1 AND NOT is_read", recipientID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count unread notifications: %w", err)
	}
	return count, nil
}

// MarkRead marks one notification read. read_at is set on the first call
// only and never precedes created_at.
func (s *Store) MarkRead(ctx context.Context, id, recipientID string) (*notification.Notification, error) {
	rows, err := s.pool.Query(ctx, `
		UPDATE notifications
		SET is_read = TRUE, read_at = COALESCE(read_at, GREATEST($3::timestamptz, created_at))
		WHERE id = $1 AND ($2::text = '' OR recipient_id = $2::text)
		RETURNING `+notificationColumns,
		id, recipientID, s.now().UTC())
	if err != nil {
		return nil, fmt.Errorf("mark notification %s read: %w", id, err)
	}
	row, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByName[notificationRow])
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotificationNotFound()
		}
		return nil, fmt.Errorf("mark notification %s read: %w", id, err)
	}
	return row.toModel(), nil
}

// MarkAllRead marks every unread notification of the recipient read.
func (s *Store) MarkAllRead(ctx context.Context, recipientID string) (int, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE notifications
		SET is_read = TRUE, read_at = GREATEST($2::timestamptz, created_at)
		WHERE recipient_id = $1 AND NOT is_read`, recipientID, s.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("mark all notifications read: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// Delete removes one notification.
func (s *Store) Delete(ctx context.Context, id, recipientID string) error {
	tag, err := s.pool.Exec(ctx,
		"DELETE FROM notifications WHERE id = $1 AND ($2::text = '' OR recipient_id = $2::text)", id, recipientID)
	if err != nil {
		return fmt.Errorf("delete notification %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotificationNotFound()
	}
	return nil
}

// DeleteMany removes the recipient's notifications among ids.
func (s *Store) DeleteMany(ctx context.Context, ids []string, recipientID string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	tag, err := s.pool.Exec(ctx,
		"DELETE FROM notifications WHERE recipient_id = $1 AND id = ANY($2)", recipientID, ids)
	if err != nil {
		return 0, fmt.Errorf("delete notifications: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// DeleteExpired removes notifications whose expiry is at or before before.
func (s *Store) DeleteExpired(ctx context.Context, before time.Time) (int, error) {
	tag, err := s.pool.Exec(ctx, "DELETE FROM notifications WHERE expires_at <= $1", before.UTC())
	if err != nil {
		return 0, fmt.Errorf("delete expired notifications: %w", err)
	}
	return int(tag.RowsAffected()), nil
}
