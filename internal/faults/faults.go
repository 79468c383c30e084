// Package faults defines the adapter's error taxonomy. Every failure surfaced
// to the oracle maps to exactly one Kind, which in turn maps to one HTTP status
// and one user-visible failure mode.
package faults

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Kind identifies a failure class.
type Kind string

const (
	// BadRequest: malformed HTTP body or missing CID.
	BadRequest Kind = "BadRequest"
	// CIDNotFound: the IPFS gateway could not serve a CID after retries.
	CIDNotFound Kind = "CIDNotFound"
	// ArchiveCorrupt: extraction failed or the archive lacks a manifest.
	ArchiveCorrupt Kind = "ArchiveCorrupt"
	// ManifestInvalid: schema violation (primary XOR, name uniqueness,
	// bCID name mismatch).
	ManifestInvalid Kind = "ManifestInvalid"
	// AIServiceUnavailable: jury endpoint transport failure or 5xx after retry.
	AIServiceUnavailable Kind = "AIServiceUnavailable"
	// AIServiceRefused: jury endpoint rejected the request with a 4xx.
	AIServiceRefused Kind = "AIServiceRefused"
	// PublishFailed: pinning service failure after retry.
	PublishFailed Kind = "PublishFailed"
	// DeadlineExceeded: total request deadline hit.
	DeadlineExceeded Kind = "DeadlineExceeded"
	// RequestCanceled: the caller disconnected.
	RequestCanceled Kind = "RequestCanceled"
)

// Error is a typed adapter failure. It wraps an optional cause so call sites
// keep the full chain for errors.Is / errors.As.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// New creates a typed error with a formatted message.
func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind and message to an underlying cause.
func Wrap(err error, kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf extracts the Kind from an error chain. Context cancellation and
// deadline errors are mapped to their taxonomy entries; untyped errors
// report an empty Kind.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return DeadlineExceeded
	}
	if errors.Is(err, context.Canceled) {
		return RequestCanceled
	}
	return ""
}

// HTTPStatus maps a Kind to the status code the dispatcher returns.
func HTTPStatus(kind Kind) int {
	switch kind {
	case BadRequest:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Informative reports whether a failure carries enough context to publish an
// error justification. Publish failures and cancellations do not.
func Informative(kind Kind) bool {
	switch kind {
	case CIDNotFound, ArchiveCorrupt, ManifestInvalid, AIServiceUnavailable, AIServiceRefused:
		return true
	default:
		return false
	}
}
