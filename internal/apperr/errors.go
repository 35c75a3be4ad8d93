// Package apperr defines the failure taxonomy shared by the ingestion
// pipeline and the storage layer. Every fallible stage returns an *Error
// carrying a Kind; the HTTP boundary maps kinds to status codes and decides
// whether the underlying message is safe to show the caller.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind int

const (
	// KindClientInput covers caller-fixable problems: bad URL, wrong scheme,
	// disallowed extension, oversized payload, missing file/URL, invalid
	// dimensions. Always reported with its specific message.
	KindClientInput Kind = iota
	// KindUpstream covers remote fetch failures: non-2xx probe, transport
	// error, timeout.
	KindUpstream
	// KindConversion covers undecodable images and unsupported converter
	// options. Caller-fixable, so the message stays specific.
	KindConversion
	// KindStorage covers schema drift and connection failures. Treated as a
	// server fault and redacted outside debug mode.
	KindStorage
	// KindModeration is a distinct refusal, never conflated with failure.
	KindModeration
	// KindNotFound marks retrieval of an absent artifact.
	KindNotFound
)

// RedactedMessage replaces storage and upstream detail outside debug mode.
const RedactedMessage = "unable to process your request"

// Error is a typed failure with an externally visible status category.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// New builds a typed failure with a caller-facing message.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind and message to an underlying cause.
func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf extracts the kind from err. Untyped errors are treated as storage
// faults: anything that escapes the pipeline without a classification is a
// server-side problem by definition.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindStorage
}

// HTTPStatus maps a failure to the response status the HTTP surface should use.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindClientInput:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindConversion, KindModeration:
		return http.StatusUnprocessableEntity
	case KindUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// UserMessage returns the message safe to surface to the caller. Validation,
// conversion and moderation failures keep their specific text; upstream and
// storage faults are downgraded to a generic message unless debug is set.
func UserMessage(err error, debug bool) string {
	switch KindOf(err) {
	case KindClientInput, KindConversion, KindModeration, KindNotFound:
		var e *Error
		if errors.As(err, &e) {
			return e.Message
		}
		return err.Error()
	default:
		if debug {
			return err.Error()
		}
		return RedactedMessage
	}
}
