// Package apperr holds the error values shared by the widget services and
// translated to HTTP statuses by the REST layer.
package apperr

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput marks a request rejected before reaching the backend.
	ErrInvalidInput = errors.New("invalid input")
	// ErrNotFound marks an id missing from the user's current view.
	ErrNotFound = errors.New("not found")
)

type invalid struct{ msg string }

func (e *invalid) Error() string { return e.msg }
func (e *invalid) Unwrap() error { return ErrInvalidInput }

// Invalid returns an ErrInvalidInput carrying a client-facing message.
func Invalid(format string, args ...any) error {
	return &invalid{msg: fmt.Sprintf(format, args...)}
}

// NotFound returns an ErrNotFound naming the missing kind and id.
func NotFound(kind, id string) error {
	return fmt.Errorf("%s %s: %w", kind, id, ErrNotFound)
}
