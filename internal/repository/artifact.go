package repository

import (
	"context"
	"errors"

	"ansifier-server/internal/dbx"
	"ansifier-server/internal/domain"
)

// ErrNotFound is returned by Get when no row matches. Callers use errors.Is
// so the HTTP layer can map it to a 404 regardless of engine.
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned when an insert collides with an existing key.
var ErrDuplicate = errors.New("already exists")

// ArtifactRepository exposes row-level operations for artifacts. The handle
// argument lets the session run mutations inside a transaction.
type ArtifactRepository interface {
	Insert(ctx context.Context, h dbx.Handle, artifact *domain.Artifact) error
	Get(ctx context.Context, h dbx.Handle, uid string) (*domain.Artifact, error)
	// ListRecent returns up to n public artifacts, newest first.
	ListRecent(ctx context.Context, h dbx.Handle, n int) ([]domain.Artifact, error)
	// ListByOwner returns up to n artifacts owned by owner, newest first.
	ListByOwner(ctx context.Context, h dbx.Handle, owner string, n int) ([]domain.Artifact, error)
	// Delete removes the row if present. Absence is not an error; deleted
	// reports whether a row went away.
	Delete(ctx context.Context, h dbx.Handle, uid string) (deleted bool, err error)
}
