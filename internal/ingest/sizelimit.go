package ingest

import "ansifier-server/internal/apperr"

// DefaultMaxBytes is the 5 MB payload ceiling.
const DefaultMaxBytes = 5_000_000

// SizeLimiter enforces the byte-size ceiling for both declared and actual
// content sizes. Declared sizes come from transfer headers and are checked
// before any payload moves; actual sizes are checked after materialization
// because uploads carry no trustworthy header.
type SizeLimiter struct {
	Max int64
}

func NewSizeLimiter(max int64) SizeLimiter {
	if max <= 0 {
		max = DefaultMaxBytes
	}
	return SizeLimiter{Max: max}
}

// CheckDeclared validates a header-declared size. Zero means the header was
// absent, which passes; the actual check still runs after transfer.
func (l SizeLimiter) CheckDeclared(n int64) error {
	if n > l.Max {
		return l.exceeded(n)
	}
	return nil
}

// CheckActual validates a materialized byte count.
func (l SizeLimiter) CheckActual(n int64) error {
	if n > l.Max {
		return l.exceeded(n)
	}
	return nil
}

func (l SizeLimiter) exceeded(n int64) error {
	return apperr.New(apperr.KindClientInput,
		"file is ~%.1f MB, must not exceed %.0f MB", float64(n)/1e6, float64(l.Max)/1e6)
}
