package tokko

import (
	"errors"
	"fmt"
)

// Failure kinds. Use errors.Is against an *Error to classify it.
var (
	ErrNetwork   = errors.New("tokko: network failure")
	ErrStatus    = errors.New("tokko: unexpected status")
	ErrMalformed = errors.New("tokko: malformed payload")
)

// ErrMissingKey is returned by the mapper when a record has no provider id.
var ErrMissingKey = errors.New("record has no provider id")

// Error describes a failed provider call.
type Error struct {
	Kind       error
	Resource   string
	StatusCode int
	Body       string
	Err        error
}

func (e *Error) Error() string {
	switch {
	case e.StatusCode != 0 && e.Body != "":
		return fmt.Sprintf("%s %s: status %d: %s", e.Kind, e.Resource, e.StatusCode, e.Body)
	case e.StatusCode != 0:
		return fmt.Sprintf("%s %s: status %d", e.Kind, e.Resource, e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("%s %s: %v", e.Kind, e.Resource, e.Err)
	default:
		return fmt.Sprintf("%s %s", e.Kind, e.Resource)
	}
}

// Is matches the failure kind.
func (e *Error) Is(target error) bool {
	return target == e.Kind
}

func (e *Error) Unwrap() error {
	return e.Err
}

func networkError(resource string, err error) *Error {
	return &Error{Kind: ErrNetwork, Resource: resource, Err: err}
}

func statusError(resource string, code int, body string) *Error {
	return &Error{Kind: ErrStatus, Resource: resource, StatusCode: code, Body: body}
}

func malformedError(resource string, err error) *Error {
	return &Error{Kind: ErrMalformed, Resource: resource, Err: err}
}

// Kind returns a short label for the failure kind of err, for logs and
// metrics.
func Kind(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrNetwork):
		return "network"
	case errors.Is(err, ErrStatus):
		return "status"
	case errors.Is(err, ErrMalformed):
		return "malformed"
	default:
		return "other"
	}
}
