// Package ansify defines the conversion boundary: the Converter contract the
// pipeline calls, plus a built-in renderer that turns a decoded image into
// character art.
package ansify

import (
	"context"

	"ansifier-server/internal/domain"
)

// DefaultCharacters orders the character set from densest to lightest; the
// renderer indexes it by luminance.
const DefaultCharacters = "█▓▒░ "

// Options carries the caller-supplied conversion knobs. The pipeline clamps
// and defaults them before the converter sees them.
type Options struct {
	Format     domain.ArtifactFormat
	Characters []rune
	Width      int
	Height     int
}

// Converter renders the image stored at path into character art. Undecodable
// bytes and unsupported options fail with conversion-kind errors.
type Converter interface {
	Convert(ctx context.Context, path string, opts Options) (string, error)
}
