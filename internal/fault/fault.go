// Package fault holds the sentinel errors and error classification used across
// groundlink. Nothing on the telemetry hot path returns these to a caller that
// could crash; they exist for setup paths and for status reporting.
package fault

import (
	"context"
	"errors"
	"fmt"
)

// Class tells callers how an error should be handled.
type Class int

const (
	// Transient errors clear up on their own; retry.
	Transient Class = iota
	// Invalid errors come from bad input or configuration.
	Invalid
	// Fatal errors stop the component.
	Fatal
)

func (c Class) String() string {
	switch c {
	case Transient:
		return "transient"
	case Invalid:
		return "invalid"
	case Fatal:
		return "fatal"
	default:
		return "unknown"
	}
}

var (
	// Link errors
	ErrSocketMissing = errors.New("socket path does not exist")
	ErrNotConnected  = errors.New("not connected")
	ErrDisconnected  = errors.New("peer closed connection")

	// Component lifecycle
	ErrAlreadyStarted = errors.New("already started")
	ErrNotStarted     = errors.New("not started")
	ErrStopTimeout    = errors.New("timed out waiting for worker to stop")

	// Configuration
	ErrInvalidConfig = errors.New("invalid configuration")
)

// ClassifiedError wraps an error with its class and where it happened.
type ClassifiedError struct {
	Class     Class
	Err       error
	Component string
	Operation string
}

func (e *ClassifiedError) Error() string {
	if e.Component == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s.%s: %v", e.Component, e.Operation, e.Err)
}

func (e *ClassifiedError) Unwrap() error {
	return e.Err
}

func wrap(class Class, err error, component, operation string) error {
	if err == nil {
		return nil
	}
	return &ClassifiedError{Class: class, Err: err, Component: component, Operation: operation}
}

// WrapTransient marks err as retryable.
func WrapTransient(err error, component, operation string) error {
	return wrap(Transient, err, component, operation)
}

// WrapInvalid marks err as caused by bad input or configuration.
func WrapInvalid(err error, component, operation string) error {
	return wrap(Invalid, err, component, operation)
}

// WrapFatal marks err as unrecoverable.
func WrapFatal(err error, component, operation string) error {
	return wrap(Fatal, err, component, operation)
}

// IsTransient reports whether err should be retried. Unclassified link errors
// and context expiry count as transient.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Class == Transient
	}
	return errors.Is(err, ErrSocketMissing) ||
		errors.Is(err, ErrDisconnected) ||
		errors.Is(err, ErrNotConnected) ||
		errors.Is(err, context.DeadlineExceeded)
}

// IsInvalid reports whether err was classified as invalid input.
func IsInvalid(err error) bool {
	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Class == Invalid
	}
	return errors.Is(err, ErrInvalidConfig)
}

// IsFatal reports whether err was classified as fatal.
func IsFatal(err error) bool {
	var ce *ClassifiedError
	return errors.As(err, &ce) && ce.Class == Fatal
}
