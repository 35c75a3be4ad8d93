package domain

import "time"

type ArtifactFormat string

const (
	FormatANSIEscaped ArtifactFormat = "ansi-escaped"
	FormatHTMLCSS     ArtifactFormat = "html/css"
)

// Formats lists the output kinds the converter accepts, in display order.
var Formats = []ArtifactFormat{FormatANSIEscaped, FormatHTMLCSS}

// Valid reports whether f is one of the known output formats.
func (f ArtifactFormat) Valid() bool {
	for _, known := range Formats {
		if f == known {
			return true
		}
	}
	return false
}

// Artifact is one persisted conversion result. Content and Format are
// immutable after insert; there is no update operation.
type Artifact struct {
	UID       string
	Content   string
	Format    ArtifactFormat
	CreatedAt time.Time
	Owner     *string // nil means the artifact is public
}

// Public reports whether the artifact belongs to the public gallery.
func (a *Artifact) Public() bool {
	return a.Owner == nil
}
