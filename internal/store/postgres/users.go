package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"collabhub.io/realtime/internal/user"
)

// UpsertUser inserts or replaces a user row.
func (s *Store) UpsertUser(ctx context.Context, u user.Record) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO users (id, name, username, email, avatar)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			username = EXCLUDED.username,
			email = EXCLUDED.email,
			avatar = EXCLUDED.avatar`,
		u.ID, u.Name, u.Username, u.Email, u.Avatar)
	if err != nil {
		return fmt.Errorf("upsert user %s: %w", u.ID, err)
	}
	return nil
}

// FindMinimalProfile returns the sender projection of a user.
func (s *Store) FindMinimalProfile(ctx context.Context, userID string) (*user.Profile, error) {
	rows, err := s.pool.Query(ctx, "SELECT id, name, username, avatar FROM users WHERE id = $1", userID)
	if err != nil {
		return nil, fmt.Errorf("load profile %s: %w", userID, err)
	}
	p, err := pgx.CollectExactlyOneRow(rows, pgx.RowToAddrOfStructByName[user.Profile])
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, user.ErrNotFound
		}
		return nil, fmt.Errorf("load profile %s: %w", userID, err)
	}
	return p, nil
}

// FindIdentity returns the connection identity of a user.
func (s *Store) FindIdentity(ctx context.Context, userID string) (*user.Identity, error) {
	rows, err := s.pool.Query(ctx, "SELECT id, name, email, avatar FROM users WHERE id = $1", userID)
	if err != nil {
		return nil, fmt.Errorf("load identity %s: %w", userID, err)
	}
	id, err := pgx.CollectExactlyOneRow(rows, pgx.RowToAddrOfStructByName[user.Identity])
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, user.ErrNotFound
		}
		return nil, fmt.Errorf("load identity %s: %w", userID, err)
	}
	return id, nil
}
