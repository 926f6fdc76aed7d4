// Package apperr defines the error taxonomy shared by the lifecycle engine and
// the HTTP layer. Every concrete error wraps one of the sentinel kinds so
// callers can branch with errors.Is.
package apperr

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrPermissionDenied indicates the authorization guard failed.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrInvalidTransition indicates the state machine guard failed.
	ErrInvalidTransition = errors.New("invalid transition")
	// ErrValidation indicates a field, bounds or required-field violation.
	ErrValidation = errors.New("validation error")
	// ErrUnsupportedCategory indicates the category key is not registered.
	ErrUnsupportedCategory = errors.New("unsupported category")
	// ErrConflict indicates a concurrent transition already changed the entity.
	ErrConflict = errors.New("conflict")
	// ErrNotFound indicates the entity does not exist.
	ErrNotFound = errors.New("not found")
)

// ValidationError names the offending field.
type ValidationError struct {
	Field  string
	Reason string
}

// Validation builds a ValidationError for the given field.
func Validation(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// TransitionError reports the current and attempted status of a rejected transition.
type TransitionError struct {
	Entity    string
	From      string
	Attempted string
}

// InvalidTransition builds a TransitionError.
func InvalidTransition(entity, from, attempted string) *TransitionError {
	return &TransitionError{Entity: entity, From: from, Attempted: attempted}
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot %s %s in status %s", e.Attempted, e.Entity, e.From)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }

// PermissionError explains which capability was missing.
type PermissionError struct {
	Action string
	Need   string
}

// PermissionDenied builds a PermissionError.
func PermissionDenied(action, need string) *PermissionError {
	return &PermissionError{Action: action, Need: need}
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("permission denied: %s requires %s", e.Action, e.Need)
}

func (e *PermissionError) Unwrap() error { return ErrPermissionDenied }

// CategoryError carries the unknown category key.
type CategoryError struct {
	Category string
}

// UnsupportedCategory builds a CategoryError.
func UnsupportedCategory(category string) *CategoryError {
	return &CategoryError{Category: category}
}

func (e *CategoryError) Error() string {
	return fmt.Sprintf("unsupported category %q", e.Category)
}

func (e *CategoryError) Unwrap() error { return ErrUnsupportedCategory }

// ConflictError reports that the persisted status moved under the caller.
type ConflictError struct {
	Entity  string
	ID      uint
	Current string
	Reason  string
}

// Conflict builds a ConflictError.
func Conflict(entity string, id uint, current string) *ConflictError {
	return &ConflictError{Entity: entity, ID: id, Current: current}
}

// Duplicate builds a ConflictError for a uniqueness rule rather than a race.
func Duplicate(entity string, id uint, reason string) *ConflictError {
	return &ConflictError{Entity: entity, ID: id, Reason: reason}
}

func (e *ConflictError) Error() string {
	if e.Reason != "" {
		return e.Reason
	}
	if e.Current == "" {
		return fmt.Sprintf("%s %d was modified concurrently", e.Entity, e.ID)
	}
	return fmt.Sprintf("%s %d was modified concurrently (now %s)", e.Entity, e.ID, e.Current)
}

func (e *ConflictError) Unwrap() error { return ErrConflict }

// NotFoundError names the missing entity.
type NotFoundError struct {
	Entity string
	ID     uint
}

// NotFound builds a NotFoundError.
func NotFound(entity string, id uint) *NotFoundError {
	return &NotFoundError{Entity: entity, ID: id}
}

func (e *NotFoundError) Error() string {
	if e.ID == 0 {
		return e.Entity + " not found"
	}
	return fmt.Sprintf("%s %d not found", e.Entity, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// ItemFailure describes why a single id of a batch was refused.
type ItemFailure struct {
	UserID uint   `json:"user_id"`
	Reason string `json:"reason"`
}

// BatchError aggregates per-item failures of a batch ledger operation.
// Nothing from the batch is applied when a BatchError is returned.
type BatchError struct {
	Operation string
	Failures  []ItemFailure
	kind      error
}

// NewBatchError builds a BatchError. kind selects the sentinel it unwraps to.
func NewBatchError(operation string, kind error, failures []ItemFailure) *BatchError {
	if kind == nil {
		kind = ErrValidation
	}
	return &BatchError{Operation: operation, Failures: failures, kind: kind}
}

func (e *BatchError) Error() string {
	parts := make([]string, 0, len(e.Failures))
	for _, failure := range e.Failures {
		parts = append(parts, fmt.Sprintf("%d: %s", failure.UserID, failure.Reason))
	}
	return fmt.Sprintf("%s failed for %d item(s): %s", e.Operation, len(e.Failures), strings.Join(parts, "; "))
}

func (e *BatchError) Unwrap() error { return e.kind }
