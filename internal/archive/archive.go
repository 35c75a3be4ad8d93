package archive

import (
	"context"

	"ansifier-server/internal/domain"
)

// Options conveys the upload destination.
type Options struct {
	Bucket    string
	KeyPrefix string
}

// Service mirrors persisted artifacts into remote object storage.
type Service interface {
	StoreArtifact(ctx context.Context, uid string, format domain.ArtifactFormat, content string) (string, error)
}
