// Package chibierr classifies the error kinds Chibi surfaces to callers, per
// the error handling design: tool failures become tool-result messages, but
// context-level failures (lock held, corrupt state, transport) must carry a
// stable kind so front-ends can map them to exit codes and the agentic loop
// can decide whether to retry.
package chibierr

import (
	"errors"
	"fmt"
)

// Kind is the closed set of error categories a caller can react to.
type Kind string

const (
	InvalidInput     Kind = "invalid_input"
	NotFound         Kind = "not_found"
	PermissionDenied Kind = "permission_denied"
	AlreadyExists    Kind = "already_exists"
	Transport        Kind = "transport"
	Timeout          Kind = "timeout"
	Corrupted        Kind = "corrupted"
	Capacity         Kind = "capacity"
	Fatal            Kind = "fatal"
)

// Error wraps an underlying cause with a Kind and the component that raised it.
type Error struct {
	Kind      Kind
	Component string
	Wrapped   error
}

func (e *Error) Error() string {
	if e.Wrapped == nil {
		return fmt.Sprintf("%s: %s", e.Component, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Component, e.Kind, e.Wrapped)
}

func (e *Error) Unwrap() error { return e.Wrapped }

// New builds a classified error.
func New(kind Kind, component, format string, args ...any) *Error {
	return &Error{Kind: kind, Component: component, Wrapped: fmt.Errorf(format, args...)}
}

// Wrap attaches a Kind and component to an existing error.
func Wrap(kind Kind, component string, err error) *Error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Component: component, Wrapped: err}
}

// Is reports whether err (or anything it wraps) carries the given Kind.
func Is(err error, kind Kind) bool {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind == kind
	}
	return false
}

// KindOf extracts the Kind from err, defaulting to Fatal when err is not a
// classified Error.
func KindOf(err error) Kind {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return Fatal
}
