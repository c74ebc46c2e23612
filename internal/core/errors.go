// Package core holds the cross-cutting error taxonomy and permission codes
// shared by every domain system.
package core

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Sentinels matched with errors.Is. Every typed error below reports Is for
// its sentinel so callers can branch on the kind without a type assertion.
var (
	ErrValidationInput   = errors.New("invalid input")
	ErrIllegalTransition = errors.New("illegal transition")
	ErrConflict          = errors.New("concurrent modification")
	ErrNoEngineAvailable = errors.New("no engine available")
	ErrExternalCall      = errors.New("external call failed")
	ErrAlreadyLinked     = errors.New("document already linked to a claim")
)

// ValidationInputError rejects malformed or missing mutation input before any state change.
type ValidationInputError struct {
	Field  string
	Reason string
}

func (e *ValidationInputError) Error() string {
	if e.Field == "" {
		return "invalid input: " + e.Reason
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationInputError) Is(target error) bool { return target == ErrValidationInput }
func (e *ValidationInputError) Kind() string         { return "validation_input" }

// Invalid returns a ValidationInputError for field.
func Invalid(field, format string, args ...any) error {
	return &ValidationInputError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// IllegalTransitionError reports an action that is not valid from the entity's current state.
type IllegalTransitionError struct {
	Entity string
	From   string
	Action string
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("%s: cannot %s from %s", e.Entity, e.Action, e.From)
}

func (e *IllegalTransitionError) Is(target error) bool { return target == ErrIllegalTransition }
func (e *IllegalTransitionError) Kind() string         { return "illegal_transition" }

// Illegal returns an IllegalTransitionError.
func Illegal(entity, from, action string) error {
	return &IllegalTransitionError{Entity: entity, From: from, Action: action}
}

// ConflictError reports that a concurrent writer won. The caller must re-read before retrying.
type ConflictError struct {
	Entity string
	ID     string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s %s was modified concurrently", e.Entity, e.ID)
}

func (e *ConflictError) Is(target error) bool { return target == ErrConflict }
func (e *ConflictError) Kind() string         { return "conflict" }

// Conflict returns a ConflictError for the entity with the given id.
func Conflict(entity string, id fmt.Stringer) error {
	return &ConflictError{Entity: entity, ID: id.String()}
}

// NoEngineAvailableError reports that routing exhausted rules, scores, and fallbacks.
type NoEngineAvailableError struct {
	Language string
}

func (e *NoEngineAvailableError) Error() string {
	return fmt.Sprintf("no engine available for language %q", e.Language)
}

func (e *NoEngineAvailableError) Is(target error) bool { return target == ErrNoEngineAvailable }
func (e *NoEngineAvailableError) Kind() string         { return "no_engine_available" }

// ExternalCallFailure wraps a failed or timed-out call to a collaborator.
type ExternalCallFailure struct {
	Target string
	Err    error
}

func (e *ExternalCallFailure) Error() string {
	return fmt.Sprintf("%s call failed: %v", e.Target, e.Err)
}

func (e *ExternalCallFailure) Unwrap() error        { return e.Err }
func (e *ExternalCallFailure) Is(target error) bool { return target == ErrExternalCall }
func (e *ExternalCallFailure) Kind() string         { return "external_call_failure" }

// TimedOut reports whether the call exceeded its deadline.
func (e *ExternalCallFailure) TimedOut() bool {
	return errors.Is(e.Err, context.DeadlineExceeded)
}

// External wraps err as an ExternalCallFailure against target. Nil stays nil.
func External(target string, err error) error {
	if err == nil {
		return nil
	}
	return &ExternalCallFailure{Target: target, Err: err}
}

// AlreadyLinkedError rejects a second claim link on a document.
type AlreadyLinkedError struct {
	DocumentID string
	ClaimID    string
}

func (e *AlreadyLinkedError) Error() string {
	return fmt.Sprintf("document %s already linked to claim %s", e.DocumentID, e.ClaimID)
}

func (e *AlreadyLinkedError) Is(target error) bool { return target == ErrAlreadyLinked }
func (e *AlreadyLinkedError) Kind() string         { return "already_linked" }

// MapHTTPStatus maps taxonomy errors to HTTP status codes. It returns 0
// when err is not part of the taxonomy so domain packages can fall through
// to their own sentinels.
func MapHTTPStatus(err error) int {
	var ext *ExternalCallFailure
	switch {
	case errors.Is(err, ErrValidationInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrIllegalTransition),
		errors.Is(err, ErrConflict),
		errors.Is(err, ErrAlreadyLinked):
		return http.StatusConflict
	case errors.Is(err, ErrNoEngineAvailable):
		return http.StatusUnprocessableEntity
	case errors.As(err, &ext):
		if ext.TimedOut() {
			return http.StatusGatewayTimeout
		}
		return http.StatusBadGateway
	}
	return 0
}
