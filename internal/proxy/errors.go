package proxy

import (
	"fmt"
	"net/http"
)

// ErrorKind categorizes a proxy failure. Each kind maps to a fixed
// client-visible HTTP status.
type ErrorKind int

const (
	// KindNoTarget indicates a forward was attempted with no selected
	// device and no override. Precondition failure: no connection is
	// ever attempted.
	KindNoTarget ErrorKind = iota
	// KindUpstream indicates the device could not be reached
	// (connect failure, timeout, DNS)
	KindUpstream
	// KindInternal indicates an unexpected failure while constructing
	// or relaying the forwarded call
	KindInternal
)

// String returns a human-readable name for the error kind
func (k ErrorKind) String() string {
	switch k {
	case KindNoTarget:
		return "No Target Selected"
	case KindUpstream:
		return "Upstream Unreachable"
	case KindInternal:
		return "Proxy Error"
	default:
		return fmt.Sprintf("ErrorKind(%d)", k)
	}
}

// HTTPStatus returns the response status for the error kind
func (k ErrorKind) HTTPStatus() int {
	switch k {
	case KindNoTarget:
		return http.StatusPreconditionFailed
	case KindUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Error is a proxy failure surfaced to the HTTP caller
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying error for error chain inspection
func (e *Error) Unwrap() error {
	return e.Err
}

// NewNoTargetError reports a forward attempted with no resolvable
// device. Exposed for handlers (the event relay) that resolve targets
// themselves.
func NewNoTargetError() *Error {
	return &Error{
		Kind:    KindNoTarget,
		Message: "no device selected; run discovery and select a device first",
	}
}

func newUpstreamError(target string, err error) *Error {
	return &Error{
		Kind:    KindUpstream,
		Message: fmt.Sprintf("error connecting to SoundTouch at %s", target),
		Err:     err,
	}
}

func newInternalError(message string, err error) *Error {
	return &Error{
		Kind:    KindInternal,
		Message: message,
		Err:     err,
	}
}
