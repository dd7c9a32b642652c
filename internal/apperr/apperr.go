// Package apperr defines the error kinds surfaced by the services and their
// mapping onto HTTP status codes.
package apperr

import (
	"errors"
	"net/http"
)

// Kind classifies an application error.
type Kind int

const (
	// KindInternal is an unexpected failure.
	KindInternal Kind = iota
	// KindValidation is bad or missing input.
	KindValidation
	// KindNotFound is an unknown id or username.
	KindNotFound
	// KindAuth is a wrong password.
	KindAuth
	// KindAuthorization is a non-admin calling an admin route.
	KindAuthorization
	// KindUpload is a storage provider failure after the single retry.
	KindUpload
)

// Error is an application error with a client-facing message.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Validation returns a KindValidation error.
func Validation(msg string) error {
	return &Error{Kind: KindValidation, Message: msg}
}

// NotFound returns a KindNotFound error.
func NotFound(msg string) error {
	return &Error{Kind: KindNotFound, Message: msg}
}

// Auth returns a KindAuth error.
func Auth(msg string) error {
	return &Error{Kind: KindAuth, Message: msg}
}

// Authorization returns a KindAuthorization error.
func Authorization(msg string) error {
	return &Error{Kind: KindAuthorization, Message: msg}
}

// Upload wraps a provider failure.
func Upload(msg string, err error) error {
	return &Error{Kind: KindUpload, Message: msg, Err: err}
}

// Internal wraps an unexpected failure.
func Internal(msg string, err error) error {
	return &Error{Kind: KindInternal, Message: msg, Err: err}
}

// KindOf returns the kind of err; errors that are not *Error are internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// StatusCode maps err onto an HTTP status.
func StatusCode(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindAuth:
		return http.StatusUnauthorized
	case KindAuthorization:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage returns the message that may be shown to clients. Upload and
// internal failures never leak their cause.
func PublicMessage(err error) string {
	var e *Error
	if !errors.As(err, &e) {
		return "internal error"
	}
	return e.Message
}
