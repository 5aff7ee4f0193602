package services

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/SAP-F-2025/examination-service/internal/authz"
	"github.com/SAP-F-2025/examination-service/internal/validator"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrConflict         = errors.New("conflict")
	ErrValidationFailed = errors.New("validation failed")
	ErrHasDependents    = errors.New("has dependents")
	ErrForbidden        = authz.ErrForbidden
	ErrUnauthorized     = errors.New("unauthorized")

	ErrAlreadyAttempted = errors.New("already attempted")
	ErrInvalidState     = errors.New("invalid state")
	ErrAttemptClosed    = errors.New("attempt closed")
	ErrUnknownQuestion  = errors.New("question is not part of the paper")
)

// ValidationErrors is the field error list produced by the validator
type ValidationErrors = validator.ValidationErrors

// IsValidationError reports field validation failures
func IsValidationError(err error) bool {
	var verrs validator.ValidationErrors
	return errors.As(err, &verrs) || errors.Is(err, ErrValidationFailed)
}

type NotFoundError struct {
	Resource string
	ID       uint
}

func NewNotFoundError(resource string, id uint) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: id}
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Resource, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// ConflictError reports a uniqueness violation on one field
type ConflictError struct {
	Resource string
	Field    string
	Value    interface{}
}

func NewConflictError(resource, field string, value interface{}) *ConflictError {
	return &ConflictError{Resource: resource, Field: field, Value: value}
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s with %s %v already exists", e.Resource, e.Field, e.Value)
}

func (e *ConflictError) Unwrap() error { return ErrConflict }

// DependentsError blocks a delete while live child rows exist
type DependentsError struct {
	Resource   string
	ID         uint
	Dependents map[string]int64
}

func (e *DependentsError) Error() string {
	names := make([]string, 0, len(e.Dependents))
	for name := range e.Dependents {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = fmt.Sprintf("%d %s", e.Dependents[name], name)
	}
	return fmt.Sprintf("cannot delete %s %d: it still has %s", e.Resource, e.ID, strings.Join(parts, ", "))
}

func (e *DependentsError) Unwrap() error { return ErrHasDependents }

// StateError wraps ErrInvalidState or ErrAttemptClosed with the attempt context
type StateError struct {
	AttemptID uint
	Status    string
	Operation string
	kind      error
}

func newStateError(kind error, attemptID uint, status, operation string) *StateError {
	return &StateError{AttemptID: attemptID, Status: status, Operation: operation, kind: kind}
}

func (e *StateError) Error() string {
	return fmt.Sprintf("cannot %s attempt %d in status %s: %v", e.Operation, e.AttemptID, e.Status, e.kind)
}

func (e *StateError) Unwrap() error { return e.kind }
