package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"ansifier-server/internal/dbx"
	"ansifier-server/internal/domain"
	"ansifier-server/internal/repository"
)

type ArtifactRepository struct{}

func NewArtifactRepository() repository.ArtifactRepository {
	return &ArtifactRepository{}
}

func (r *ArtifactRepository) Insert(ctx context.Context, h dbx.Handle, artifact *domain.Artifact) error {
	_, err := h.ExecContext(ctx, `
INSERT INTO artifacts (uid, content, format, created_at, owner)
VALUES (?, ?, ?, ?, ?)`,
		artifact.UID,
		artifact.Content,
		string(artifact.Format),
		artifact.CreatedAt.Unix(),
		artifact.Owner,
	)
	if err != nil {
		return fmt.Errorf("insert artifact: %w", err)
	}
	return nil
}

func (r *ArtifactRepository) Get(ctx context.Context, h dbx.Handle, uid string) (*domain.Artifact, error) {
	row := h.QueryRowContext(ctx, `
SELECT uid, content, format, created_at, owner
FROM artifacts
WHERE uid = ?`,
		uid,
	)
	return scanArtifact(row)
}

func (r *ArtifactRepository) ListRecent(ctx context.Context, h dbx.Handle, n int) ([]domain.Artifact, error) {
	rows, err := h.QueryContext(ctx, `
SELECT uid, content, format, created_at, owner
FROM artifacts
WHERE owner IS NULL
ORDER BY created_at DESC
LIMIT ?`,
		n,
	)
	if err != nil {
		return nil, fmt.Errorf("list recent artifacts: %w", err)
	}
	defer rows.Close()
	return collectArtifacts(rows)
}

func (r *ArtifactRepository) ListByOwner(ctx context.Context, h dbx.Handle, owner string, n int) ([]domain.Artifact, error) {
	rows, err := h.QueryContext(ctx, `
SELECT uid, content, format, created_at, owner
FROM artifacts
WHERE owner = ?
ORDER BY created_at DESC
LIMIT ?`,
		owner,
		n,
	)
	if err != nil {
		return nil, fmt.Errorf("list artifacts by owner: %w", err)
	}
	defer rows.Close()
	return collectArtifacts(rows)
}

func (r *ArtifactRepository) Delete(ctx context.Context, h dbx.Handle, uid string) (bool, error) {
	res, err := h.ExecContext(ctx, `DELETE FROM artifacts WHERE uid = ?`, uid)
	if err != nil {
		return false, fmt.Errorf("delete artifact: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete artifact rows affected: %w", err)
	}
	return affected > 0, nil
}

func scanArtifact(row interface {
	Scan(dest ...any) error
}) (*domain.Artifact, error) {
	var (
		artifact  domain.Artifact
		format    string
		createdAt int64
	)
	if err := row.Scan(
		&artifact.UID,
		&artifact.Content,
		&format,
		&createdAt,
		&artifact.Owner,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan artifact: %w", err)
	}
	artifact.Format = domain.ArtifactFormat(format)
	artifact.CreatedAt = unixTime(createdAt)
	return &artifact, nil
}

func collectArtifacts(rows *sql.Rows) ([]domain.Artifact, error) {
	var artifacts []domain.Artifact
	for rows.Next() {
		var (
			artifact  domain.Artifact
			format    string
			createdAt int64
		)
		if err := rows.Scan(
			&artifact.UID,
			&artifact.Content,
			&format,
			&createdAt,
			&artifact.Owner,
		); err != nil {
			return nil, fmt.Errorf("scan artifact: %w", err)
		}
		artifact.Format = domain.ArtifactFormat(format)
		artifact.CreatedAt = unixTime(createdAt)
		artifacts = append(artifacts, artifact)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate artifacts: %w", err)
	}
	return artifacts, nil
}
