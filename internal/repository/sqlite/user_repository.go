package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"ansifier-server/internal/dbx"
	"ansifier-server/internal/domain"
	"ansifier-server/internal/repository"
)

type UserRepository struct{}

func NewUserRepository() repository.UserRepository {
	return &UserRepository{}
}

func (r *UserRepository) Insert(ctx context.Context, h dbx.Handle, user *domain.User) error {
	_, err := h.ExecContext(ctx, `
INSERT INTO users (username, password_hash, created_at)
VALUES (?, ?, ?)`,
		user.Username,
		user.PasswordHash,
		user.CreatedAt.Unix(),
	)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "unique") {
			return fmt.Errorf("insert user: %w", repository.ErrDuplicate)
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (r *UserRepository) Get(ctx context.Context, h dbx.Handle, username string) (*domain.User, error) {
	row := h.QueryRowContext(ctx, `
SELECT username, password_hash, created_at
FROM users
WHERE username = ?`,
		username,
	)

	var (
		user      domain.User
		createdAt int64
	)
	if err := row.Scan(&user.Username, &user.PasswordHash, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	user.CreatedAt = unixTime(createdAt)
	return &user, nil
}

func (r *UserRepository) Delete(ctx context.Context, h dbx.Handle, username string) (bool, error) {
	res, err := h.ExecContext(ctx, `DELETE FROM users WHERE username = ?`, username)
	if err != nil {
		return false, fmt.Errorf("delete user: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete user rows affected: %w", err)
	}
	return affected > 0, nil
}

func unixTime(ts int64) time.Time {
	return time.Unix(ts, 0).UTC()
}
