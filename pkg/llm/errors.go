package llm

import (
	"context"
	"errors"
	"fmt"
)

// ErrorKind classifies failures so callers can branch without string
// matching.
type ErrorKind string

const (
	// ErrInvalidInput: the caller supplied a value rejected before any
	// network call.
	ErrInvalidInput ErrorKind = "invalid_input"
	// ErrUnsupported: a well-formed request asks for a capability the
	// provider cannot serve.
	ErrUnsupported ErrorKind = "unsupported"
	// ErrNotImplemented: the code path is intentionally unfinished.
	ErrNotImplemented ErrorKind = "not_implemented"
	// ErrProvider: the provider returned a non-2xx response.
	ErrProvider ErrorKind = "provider"
	// ErrRefusal: the provider returned 2xx with an explicit refusal.
	ErrRefusal ErrorKind = "refusal"
	// ErrInvariant: the provider returned something that violates its
	// own contract.
	ErrInvariant ErrorKind = "invariant"
	// ErrTransport: network, DNS, TLS or I/O failure.
	ErrTransport ErrorKind = "transport"
	// ErrCancelled: the caller cancelled the context.
	ErrCancelled ErrorKind = "cancelled"
)

// Error is the single error type surfaced by language models.
type Error struct {
	Kind    ErrorKind
	Message string
	// HTTP status for ErrProvider, zero otherwise.
	Status int
	// Raw response body for ErrProvider, nil otherwise.
	RawBody []byte
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e.Kind == ErrProvider && e.Status != 0:
		return fmt.Sprintf("%s: status %d: %s", e.Kind, e.Status, e.Message)
	case e.Message != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	case e.Message != "":
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewInvalidInputError reports a request rejected before transport.
func NewInvalidInputError(format string, args ...any) *Error {
	return &Error{Kind: ErrInvalidInput, Message: fmt.Sprintf(format, args...)}
}

// NewUnsupportedError reports a capability the provider cannot serve.
func NewUnsupportedError(provider, what string) *Error {
	return &Error{Kind: ErrUnsupported, Message: fmt.Sprintf("%s does not support %s", provider, what)}
}

// NewNotImplementedError marks a planned but unfinished provider feature.
func NewNotImplementedError(provider, what string) *Error {
	return &Error{Kind: ErrNotImplemented, Message: fmt.Sprintf("%s: %s is not implemented", provider, what)}
}

// NewProviderError wraps a non-2xx provider response.
func NewProviderError(status int, message string, rawBody []byte) *Error {
	return &Error{Kind: ErrProvider, Status: status, Message: message, RawBody: rawBody}
}

// NewRefusalError surfaces an explicit provider refusal.
func NewRefusalError(refusal string) *Error {
	return &Error{Kind: ErrRefusal, Message: refusal}
}

// NewInvariantError reports a structurally unusable 2xx response.
func NewInvariantError(format string, args ...any) *Error {
	return &Error{Kind: ErrInvariant, Message: fmt.Sprintf(format, args...)}
}

// NewTransportError wraps a network-level failure. Context cancellation
// is classified as ErrCancelled instead.
func NewTransportError(message string, err error) *Error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: ErrCancelled, Message: message, Err: err}
	}
	return &Error{Kind: ErrTransport, Message: message, Err: err}
}

// KindOf extracts the ErrorKind from err, or "" when err is not an
// *Error from this package.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
