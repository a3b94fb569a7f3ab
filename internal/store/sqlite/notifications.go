package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"collabhub.io/realtime/internal/notification"
	apperrors "collabhub.io/realtime/internal/pkg/errors"
)

const notificationColumns = `id, recipient_id, sender_id, type, priority, title, content,
	is_read, read_at, entity_type, entity_id, action_url, meta_data, expires_at, created_at`

type notificationRow struct {
	ID          string        `db:"id"`
	RecipientID string        `db:"recipient_id"`
	SenderID    string        `db:"sender_id"`
	Type        string        `db:"type"`
	Priority    string        `db:"priority"`
	Title       string        `db:"title"`
	Content     string        `db:"content"`
	IsRead      bool          `db:"is_read"`
	ReadAt      sql.NullInt64 `db:"read_at"`
	EntityType  string        `db:"entity_type"`
	EntityID    string        `db:"entity_id"`
	ActionURL   string        `db:"action_url"`
	MetaData    string        `db:"meta_data"`
	ExpiresAt   int64         `db:"expires_at"`
	CreatedAt   int64         `db:"created_at"`
}

func (r notificationRow) toModel() (*notification.Notification, error) {
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
		ExpiresAt:   fromMillis(r.ExpiresAt),
		CreatedAt:   fromMillis(r.CreatedAt),
	}
	if r.ReadAt.Valid {
		readAt := fromMillis(r.ReadAt.Int64)
		n.ReadAt = &readAt
	}
	if r.MetaData != "" && r.MetaData != "{}" {
		if err := json.Unmarshal([]byte(r.MetaData), &n.MetaData); err != nil {
			return nil, fmt.Errorf("decoding meta_data of %s: %w", r.ID, err)
		}
	}
	return n, nil
}

func toMillis(t time.Time) int64 { return t.UTC().UnixMilli() }
func fromMillis(ms int64) time.Time { return time.UnixMilli(ms).UTC() }

// Create inserts n.
func (s *Store) Create(ctx context.Context, n *notification.Notification) error {
	meta := "{}"
	if len(n.MetaData) > 0 {
		data, err := json.Marshal(n.MetaData)
		if err != nil {
			return fmt.Errorf("encoding meta_data: %w", err)
		}
		meta = string(data)
	}

	var readAt sql.NullInt64
	if n.ReadAt != nil {
		readAt = sql.NullInt64{Int64: toMillis(*n.ReadAt), Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO notifications (`+notificationColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		n.ID, n.RecipientID, n.SenderID, string(n.Type), string(n.Priority), n.Title, n.Content,
		n.Read, readAt, n.EntityType, n.EntityID, n.ActionURL, meta,
		toMillis(n.ExpiresAt), toMillis(n.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting notification %s: %w", n.ID, err)
	}
	return nil
}

// FindMany lists a recipient's notifications.
func (s *Store) FindMany(ctx context.Context, recipientID string, opts notification.ListOptions) (notification.ListResult, error) {
	opts = opts.Normalize()

	conditions := []string{"recipient_id = ?"}
	args := []any{recipientID}
	if opts.Read != nil {
		conditions = append(conditions, "is_read = ?")
		args = append(args, *opts.Read)
	}
	if opts.Type != nil {
		conditions = append(conditions, "type = ?")
		args = append(args, string(*opts.Type))
	}
	if opts.Priority != nil {
		conditions = append(conditions, "priority = ?")
		args = append(args, string(*opts.Priority))
	}
	where := " WHERE " + strings.Join(conditions, " AND ")

	var total int
	if err := s.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM notifications"+where, args...); err != nil {
		return notification.ListResult{}, fmt.Errorf("counting notifications: %w", err)
	}

	query := "SELECT " + notificationColumns + " FROM notifications" + where +
		" ORDER BY " + orderBy(opts.Sort) + " LIMIT ? OFFSET ?"
	var rows []notificationRow
	if err := s.db.SelectContext(ctx, &rows, query, append(args, opts.Limit, opts.Skip)...); err != nil {
		return notification.ListResult{}, fmt.Errorf("querying notifications: %w", err)
	}

	items := make([]*notification.Notification, 0, len(rows))
	for _, r := range rows {
		n, err := r.toModel()
		if err != nil {
			return notification.ListResult{}, err
		}
		items = append(items, n)
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
	err := s.db.GetContext(ctx, &count,
		"SELECT COUNT(*) FROM notifications WHERE recipient_id = ? AND is_read = 0", recipientID)
	if err != nil {
		return 0, fmt.Errorf("counting unread notifications: %w", err)
	}
	return count, nil
}

// MarkRead marks one notification read. The read timestamp is set on the
// first call only and never precedes the creation time.
func (s *Store) MarkRead(ctx context.Context, id, recipientID string) (*notification.Notification, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	row, err := getOwned(ctx, tx, id, recipientID)
	if err != nil {
		return nil, err
	}

	if !row.IsRead {
		readAt := max(toMillis(s.now()), row.CreatedAt)
		if _, err := tx.ExecContext(ctx,
			"UPDATE notifications SET is_read = 1, read_at = ? WHERE id = ?", readAt, id); err != nil {
			return nil, fmt.Errorf("marking notification %s read: %w", id, err)
		}
		row.IsRead = true
		row.ReadAt = sql.NullInt64{Int64: readAt, Valid: true}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing mark read: %w", err)
	}
	return row.toModel()
}

func getOwned(ctx context.Context, tx *sqlx.Tx, id, recipientID string) (notificationRow, error) {
	var row notificationRow
	query := "SELECT " + notificationColumns + " FROM notifications WHERE id = ?"
	args := []any{id}
	if recipientID != "" {
		query += " AND recipient_id = ?"
		args = append(args, recipientID)
	}
	if err := tx.GetContext(ctx, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return row, apperrors.ErrNotificationNotFound()
		}
		return row, fmt.Errorf("loading notification %s: %w", id, err)
	}
	return row, nil
}

// MarkAllRead marks every unread notification of the recipient read.
func (s *Store) MarkAllRead(ctx context.Context, recipientID string) (int, error) {
	now := toMillis(s.now())
	res, err := s.db.ExecContext(ctx, `
		UPDATE notifications
		SET is_read = 1, read_at = MAX(?, created_at)
		WHERE recipient_id = ? AND is_read = 0`, now, recipientID)
	if err != nil {
		return 0, fmt.Errorf("marking all notifications read: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// Delete removes one notification.
func (s *Store) Delete(ctx context.Context, id, recipientID string) error {
	query := "DELETE FROM notifications WHERE id = ?"
	args := []any{id}
	if recipientID != "" {
		query += " AND recipient_id = ?"
		args = append(args, recipientID)
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("deleting notification %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperrors.ErrNotificationNotFound()
	}
	return nil
}

// DeleteMany removes the recipient's notifications among ids.
func (s *Store) DeleteMany(ctx context.Context, ids []string, recipientID string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	query, args, err := sqlx.In("DELETE FROM notifications WHERE recipient_id = ? AND id IN (?)", recipientID, ids)
	if err != nil {
		return 0, fmt.Errorf("building delete query: %w", err)
	}
	res, err := s.db.ExecContext(ctx, s.db.Rebind(query), args...)
	if err != nil {
		return 0, fmt.Errorf("deleting notifications: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// DeleteExpired removes notifications whose expiry is at or before before.
func (s *Store) DeleteExpired(ctx context.Context, before time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM notifications WHERE expires_at <= ?", toMillis(before))
	if err != nil {
		return 0, fmt.Errorf("deleting expired notifications: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}
