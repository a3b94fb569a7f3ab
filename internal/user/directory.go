// Package user defines the read-only view of the user collection the
// notification core consumes. User persistence itself lives elsewhere.
package user

import (
	"context"
	"errors"
)

// ErrNotFound is returned when no user exists for the given id.
var ErrNotFound = errors.New("user not found")

// Profile is the minimal sender projection attached to live pushes.
type Profile struct {
	ID       string `json:"id" db:"id"`
	Name     string `json:"name" db:"name"`
	Username string `json:"username" db:"username"`
	Avatar   string `json:"avatar,omitempty" db:"avatar"`
}

// Identity is the projection a connection is authenticated as.
type Identity struct {
	ID     string `json:"id" db:"id"`
	Name   string `json:"name" db:"name"`
	Email  string `json:"email" db:"email"`
	Avatar string `json:"avatar,omitempty" db:"avatar"`
}

// Directory looks up users by id.
type Directory interface {
	FindMinimalProfile(ctx context.Context, userID string) (*Profile, error)
	FindIdentity(ctx context.Context, userID string) (*Identity, error)
}

// Record is the full row written by operators through UpsertUser.
type Record struct {
	ID       string `db:"id"`
	Name     string `db:"name"`
	Username string `db:"username"`
	Email    string `db:"email"`
	Avatar   string `db:"avatar"`
}
