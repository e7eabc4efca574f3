package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
)

// Kind classifies engine failures
type Kind string

const (
	// KindNotFound means a lead does not exist or is outside the caller's tenant
	KindNotFound Kind = "not_found"
	// KindInvalidArgument means the request itself was malformed
	KindInvalidArgument Kind = "invalid_argument"
	// KindConflict means a lead involved in a merge was concurrently modified or deleted
	KindConflict Kind = "conflict"
	// KindStorageFailure means the underlying store rejected the operation
	KindStorageFailure Kind = "storage_failure"
)

// StatusCode maps a kind to its HTTP status
func (k Kind) StatusCode() int {
	switch k {
	case KindNotFound:
		return http.StatusNotFound
	case KindInvalidArgument:
		return http.StatusBadRequest
	case KindConflict:
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

type Error struct {
	Kind    Kind
	Message string
	LeadID  string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if e.LeadID != "" {
		msg = fmt.Sprintf("%s (lead %s)", msg, e.LeadID)
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// WithLead attaches the offending lead id
func (e *Error) WithLead(leadID string) *Error {
	e.LeadID = leadID
	return e
}

// ToHTTPError converts the error for the API layer. Storage details are not exposed.
func (e *Error) ToHTTPError() *httperror.HTTPError {
	msg := e.Message
	if e.Kind != KindStorageFailure && e.Err != nil {
		msg = e.Error()
	}
	herr := httperror.NewHTTPError(e.Kind.StatusCode(), msg).AddMetaValue("kind", string(e.Kind))
	if e.LeadID != "" {
		herr = herr.AddMetaValue("lead_id", e.LeadID)
	}
	return herr
}

func newError(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func NotFound(format string, args ...any) *Error {
	return newError(KindNotFound, format, args...)
}

func InvalidArgument(format string, args ...any) *Error {
	return newError(KindInvalidArgument, format, args...)
}

func Conflict(format string, args ...any) *Error {
	return newError(KindConflict, format, args...)
}

// StorageFailure wraps a store error
func StorageFailure(err error, format string, args ...any) *Error {
	e := newError(KindStorageFailure, format, args...)
	e.Err = err
	return e
}

// LeadNotFound is the NotFound error for a single lead id
func LeadNotFound(leadID string) *Error {
	return NotFound("lead not found").WithLead(leadID)
}

// StaleLead is the Conflict error raised when re-validation of a lead fails
func StaleLead(leadID, reason string) *Error {
	return Conflict("stale duplicate: %s", reason).WithLead(leadID)
}

// As returns the engine error in err's chain, if any
func As(err error) (*Error, bool) {
	var e *Error
	if stderrors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf returns the kind of err. Errors from outside the engine are storage failures.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	if e, ok := As(err); ok {
		return e.Kind
	}
	return KindStorageFailure
}

func IsNotFound(err error) bool {
	return err != nil && KindOf(err) == KindNotFound
}

func IsInvalidArgument(err error) bool {
	return err != nil && KindOf(err) == KindInvalidArgument
}

func IsConflict(err error) bool {
	return err != nil && KindOf(err) == KindConflict
}

func IsStorageFailure(err error) bool {
	return err != nil && KindOf(err) == KindStorageFailure
}
