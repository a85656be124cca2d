// Package apperr defines the error kinds services return. Handlers never
// inspect messages; they map the Kind to a status through httpkit.
package apperr

import (
	"errors"
	"net/http"
)

// Kind classifies an error for the caller.
type Kind string

const (
	KindUnknown Kind = ""
	// KindNotFound covers records that do not exist and records the caller
	// may not see (soft-deleted leads, rooms they are not a member of).
	KindNotFound     Kind = "not_found"
	KindValidation   Kind = "validation"
	KindConflict     Kind = "conflict"
	KindForbidden    Kind = "forbidden"
	KindUnauthorized Kind = "unauthorized"
	KindBadRequest   Kind = "bad_request"
	KindInternal     Kind = "internal"
)

var statusByKind = map[Kind]int{
	KindNotFound:     http.StatusNotFound,
	KindValidation:   http.StatusBadRequest,
	KindBadRequest:   http.StatusBadRequest,
	KindConflict:     http.StatusConflict,
	KindForbidden:    http.StatusForbidden,
	KindUnauthorized: http.StatusUnauthorized,
}

func (k Kind) String() string {
	if k == KindUnknown {
		return "unknown"
	}
	return string(k)
}

// Error carries a Kind, a message safe to show to the caller and an
// optional cause that only reaches the logs.
type Error struct {
	Kind    Kind
	Message string
	Err     error
	Details interface{}
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// HTTPStatus maps the kind to a response status. Unknown kinds are 500.
func (e *Error) HTTPStatus() int {
	if status, ok := statusByKind[e.Kind]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// WithDetails attaches structured detail, such as per-field validation
// failures, to the response body.
func (e *Error) WithDetails(details interface{}) *Error {
	e.Details = details
	return e
}

// Wrap keeps err as the cause of a new error of kind.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func NotFound(message string) *Error     { return &Error{Kind: KindNotFound, Message: message} }
func Validation(message string) *Error   { return &Error{Kind: KindValidation, Message: message} }
func Conflict(message string) *Error     { return &Error{Kind: KindConflict, Message: message} }
func Forbidden(message string) *Error    { return &Error{Kind: KindForbidden, Message: message} }
func Unauthorized(message string) *Error { return &Error{Kind: KindUnauthorized, Message: message} }
func BadRequest(message string) *Error   { return &Error{Kind: KindBadRequest, Message: message} }
func Internal(message string) *Error     { return &Error{Kind: KindInternal, Message: message} }

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Is reports whether err's chain carries an *Error of kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
