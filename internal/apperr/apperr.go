package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Error kinds surfaced by the core. Compare with errors.Is.
var (
	ErrNotFound          = errors.New("not found")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrInvalidTransition = errors.New("invalid transition")
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrStorage           = errors.New("storage failure")
	ErrDelivery          = errors.New("delivery failure")
)

type kindError struct {
	kind  error
	msg   string
	cause error
}

func (e *kindError) Error() string {
	switch {
	case e.msg != "" && e.cause != nil:
		return fmt.Sprintf("%s: %s: %v", e.kind, e.msg, e.cause)
	case e.msg != "":
		return fmt.Sprintf("%s: %s", e.kind, e.msg)
	case e.cause != nil:
		return fmt.Sprintf("%s: %v", e.kind, e.cause)
	}
	return e.kind.Error()
}

func (e *kindError) Is(target error) bool { return target == e.kind }

func (e *kindError) Unwrap() error { return e.cause }

func NotFound(msg string) error { return &kindError{kind: ErrNotFound, msg: msg} }

func Unauthorized(msg string) error { return &kindError{kind: ErrUnauthorized, msg: msg} }

func InvalidTransition(msg string) error { return &kindError{kind: ErrInvalidTransition, msg: msg} }

func InvalidArgument(msg string) error { return &kindError{kind: ErrInvalidArgument, msg: msg} }

// Storage wraps a persistence failure. A nil cause yields nil.
func Storage(msg string, cause error) error {
	if cause == nil {
		return nil
	}
	return &kindError{kind: ErrStorage, msg: msg, cause: cause}
}

// Delivery wraps a notification-channel failure. These are logged by the
// caller and never returned to the request that triggered them.
func Delivery(msg string, cause error) error {
	if cause == nil {
		return nil
	}
	return &kindError{kind: ErrDelivery, msg: msg, cause: cause}
}

// HTTPStatus maps an error kind onto a response status.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidArgument):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// PublicMessage is the text safe to return to a client. Storage and unknown
// failures collapse to a generic message so driver errors never leak.
func PublicMessage(err error) string {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, ErrUnauthorized),
		errors.Is(err, ErrInvalidTransition),
		errors.Is(err, ErrInvalidArgument):
		var ke *kindError
		if errors.As(err, &ke) && ke.msg != "" {
			return ke.msg
		}
		return err.Error()
	}
	return "internal error"
}
