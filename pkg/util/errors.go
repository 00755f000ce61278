// Package util provides utility functions and common error types.
package util

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Sentinel errors
var (
	ErrNotReady          = errors.New("adaptor not ready")
	ErrNotConnected      = errors.New("switch not connected")
	ErrAlreadyExists     = errors.New("resource already exists")
	ErrNotFound          = errors.New("resource not found")
	ErrInvalidConfig     = errors.New("invalid configuration")
	ErrValidationFailed  = errors.New("validation failed")
	ErrDependencyMissing = errors.New("required dependency missing")
	ErrProtocolViolation = errors.New("protocol consistency violation")
)

// ProtocolError reports an upstream report that breaks the switch-control
// contract, e.g. a port-status "add" for a port number that is already
// tracked. These are not races; they mean the protocol layer is broken.
type ProtocolError struct {
	Switch       string
	Port         uint16
	Reason       string
	Precondition string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("protocol violation on %s port %d (%s): %s", e.Switch, e.Port, e.Reason, e.Precondition)
}

func (e *ProtocolError) Unwrap() error {
	return ErrProtocolViolation
}

// NewProtocolError creates a new protocol error
func NewProtocolError(sw string, port uint16, reason, precondition string) *ProtocolError {
	return &ProtocolError{
		Switch:       sw,
		Port:         port,
		Reason:       reason,
		Precondition: precondition,
	}
}

// ValidationError represents one or more validation failures
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	if len(e.Errors) == 1 {
		return "validation failed: " + e.Errors[0]
	}
	return fmt.Sprintf("validation failed:\n  - %s", strings.Join(e.Errors, "\n  - "))
}

func (e *ValidationError) Unwrap() error {
	return ErrValidationFailed
}

// NewValidationError creates a validation error from messages
func NewValidationError(messages ...string) *ValidationError {
	return &ValidationError{Errors: messages}
}

// ValidationBuilder helps accumulate validation errors
type ValidationBuilder struct {
	errors []string
}

// Add adds an error message if condition is false
func (v *ValidationBuilder) Add(condition bool, message string) *ValidationBuilder {
	if !condition {
		v.errors = append(v.errors, message)
	}
	return v
}

// AddErrorf adds a formatted error message
func (v *ValidationBuilder) AddErrorf(format string, args ...interface{}) *ValidationBuilder {
	v.errors = append(v.errors, fmt.Sprintf(format, args...))
	return v
}

// HasErrors returns true if there are validation errors
func (v *ValidationBuilder) HasErrors() bool {
	return len(v.errors) > 0
}

// Build returns the validation error or nil if no errors
func (v *ValidationBuilder) Build() error {
	if len(v.errors) == 0 {
		return nil
	}
	return &ValidationError{Errors: v.errors}
}

// DependencyError represents collaborators a component is still waiting for
type DependencyError struct {
	Resource string
	Missing  []string
}

func (e *DependencyError) Error() string {
	return fmt.Sprintf("%s requires components not yet registered: %s", e.Resource, strings.Join(e.Missing, ", "))
}

func (e *DependencyError) Unwrap() error {
	return ErrDependencyMissing
}

// NewDependencyError creates a dependency error. Missing names are sorted.
func NewDependencyError(resource string, missing ...string) *DependencyError {
	sorted := append([]string(nil), missing...)
	sort.Strings(sorted)
	return &DependencyError{
		Resource: resource,
		Missing:  sorted,
	}
}
