package workflow

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/noah-isme/sigpae-api/internal/models"
)

// ErrorKind enumerates the closed set of workflow failures.
type ErrorKind int

const (
	KindUnknownTransition ErrorKind = iota + 1
	KindForbidden
	KindGuardViolation
	KindConcurrentModification
	KindNotFound
)

// String returns the error code used in API responses.
func (k ErrorKind) String() string {
	switch k {
	case KindUnknownTransition:
		return "UNKNOWN_TRANSITION"
	case KindForbidden:
		return "FORBIDDEN"
	case KindGuardViolation:
		return "GUARD_VIOLATION"
	case KindConcurrentModification:
		return "CONCURRENT_MODIFICATION"
	case KindNotFound:
		return "NOT_FOUND"
	default:
		return "UNKNOWN"
	}
}

// HTTPStatus maps the kind onto a response status.
func (k ErrorKind) HTTPStatus() int {
	switch k {
	case KindUnknownTransition, KindGuardViolation:
		return http.StatusBadRequest
	case KindForbidden:
		return http.StatusForbidden
	case KindConcurrentModification:
		return http.StatusConflict
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// Error is returned by every business-level workflow failure.
type Error struct {
	Kind      ErrorKind
	RequestID string
	State     State
	Event     Event
	Role      models.UserRole
	Reason    string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	switch e.Kind {
	case KindUnknownTransition:
		return fmt.Sprintf("Transition '%s' isn't available from state '%s'.", e.Event, e.State)
	case KindForbidden:
		return fmt.Sprintf("role %s cannot apply '%s' from state '%s'", e.Role, e.Event, e.State)
	case KindGuardViolation:
		return e.Reason
	case KindConcurrentModification:
		return fmt.Sprintf("request %s was modified concurrently, reload and retry", e.RequestID)
	case KindNotFound:
		return fmt.Sprintf("request %s not found", e.RequestID)
	default:
		return e.Reason
	}
}

// Is lets errors.Is match on kind alone, e.g. errors.Is(err, ErrGuardViolation).
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind && t.RequestID == "" && t.Event == "" && t.Reason == ""
}

// Sentinels for errors.Is comparisons.
var (
	ErrUnknownTransition      = &Error{Kind: KindUnknownTransition}
	ErrForbidden              = &Error{Kind: KindForbidden}
	ErrGuardViolation         = &Error{Kind: KindGuardViolation}
	ErrConcurrentModification = &Error{Kind: KindConcurrentModification}
	ErrNotFound               = &Error{Kind: KindNotFound}
)

// ErrStaleVersion is returned by stores when the optimistic version check fails.
var ErrStaleVersion = errors.New("stale request version")

// ErrRequestNotFound is returned by stores for unknown request identities.
var ErrRequestNotFound = errors.New("request not found")

// KindOf extracts the workflow kind from err, or zero.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

func unknownTransition(state State, event Event) *Error {
	return &Error{Kind: KindUnknownTransition, State: state, Event: event}
}

func forbidden(state State, event Event, role models.UserRole) *Error {
	return &Error{Kind: KindForbidden, State: state, Event: event, Role: role}
}

func guardViolation(state State, event Event, reason string) *Error {
	return &Error{Kind: KindGuardViolation, State: state, Event: event, Reason: reason}
}

func concurrentModification(requestID string) *Error {
	return &Error{Kind: KindConcurrentModification, RequestID: requestID}
}

// NotFound builds the error for an unknown request identity.
func NotFound(requestID string) *Error {
	return &Error{Kind: KindNotFound, RequestID: requestID}
}
