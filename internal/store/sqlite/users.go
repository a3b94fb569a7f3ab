package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"collabhub.io/realtime/internal/user"
)

// UpsertUser inserts or replaces a user row.
func (s *Store) UpsertUser(ctx context.Context, u user.Record) error {
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO users (id, name, username, email, avatar)
		VALUES (:id, :name, :username, :email, :avatar)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			username = excluded.username,
			email = excluded.email,
			avatar = excluded.avatar`, u)
	if err != nil {
		return fmt.Errorf("upserting user %s: %w", u.ID, err)
	}
	return nil
}

// FindMinimalProfile returns the sender projection of a user.
func (s *Store) FindMinimalProfile(ctx context.Context, userID string) (*user.Profile, error) {
	var p user.Profile
	err := s.db.GetContext(ctx, &p, "SELECT id, name, username, avatar FROM users WHERE id = ?", userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, user.ErrNotFound
		}
		return nil, fmt.Errorf("loading profile %s: %w", userID, err)
	}
	return &p, nil
}

// FindIdentity returns the connection identity of a user.
func (s *Store) FindIdentity(ctx context.Context, userID string) (*user.Identity, error) {
	var id user.Identity
	err := s.db.GetContext(ctx, &id, "SELECT id, name, email, avatar FROM users WHERE id = ?", userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, user.ErrNotFound
		}
		return nil, fmt.Errorf("loading identity %s: %w", userID, err)
	}
	return &id, nil
}
