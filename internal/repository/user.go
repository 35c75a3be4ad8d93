package repository

import (
	"context"

	"ansifier-server/internal/dbx"
	"ansifier-server/internal/domain"
)

// UserRepository defines persistence operations for User rows.
type UserRepository interface {
	// Insert adds a user; a duplicate username yields ErrDuplicate and must
	// not mutate the existing row.
	Insert(ctx context.Context, h dbx.Handle, user *domain.User) error
	Get(ctx context.Context, h dbx.Handle, username string) (*domain.User, error)
	Delete(ctx context.Context, h dbx.Handle, username string) (deleted bool, err error)
}
