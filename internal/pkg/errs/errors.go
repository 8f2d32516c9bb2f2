// Package errs defines the error taxonomy for calls that cross a trust
// boundary. Business-rule rejections are never errors; they are ordinary
// Decision outcomes.
package errs

import (
	"errors"
	"fmt"
)

// ErrCircuitOpen is the fast-fail returned while a circuit breaker is
// OPEN. Callers match it with errors.Is to distinguish a tripped breaker
// from a real downstream failure.
var ErrCircuitOpen = errors.New("circuit breaker open")

// ErrRateLimited is returned when the blocking rate-limit wait times out.
var ErrRateLimited = errors.New("rate limit wait timed out")

// ExternalServiceError wraps a failed market-data or oracle call.
type ExternalServiceError struct {
	Service string
	Op      string
	Err     error
}

func (e *ExternalServiceError) Error() string {
	return fmt.Sprintf("%s: %s failed: %v", e.Service, e.Op, e.Err)
}

func (e *ExternalServiceError) Unwrap() error { return e.Err }

// External builds an ExternalServiceError.
func External(service, op string, err error) error {
	if err == nil {
		return nil
	}
	return &ExternalServiceError{Service: service, Op: op, Err: err}
}

// ConfigurationError reports a missing or malformed operator parameter.
type ConfigurationError struct {
	Key    string
	Value  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("config %s=%q invalid: %s", e.Key, e.Value, e.Reason)
}

// Config builds a ConfigurationError.
func Config(key, value, reason string) error {
	return &ConfigurationError{Key: key, Value: value, Reason: reason}
}

// ValidationError reports malformed input to an evaluation or execution,
// e.g. a negative order size.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// InsufficientBalanceError is the hard failure for a paper BUY that
// exceeds the simulated balance.
type InsufficientBalanceError struct {
	Balance float64
	Cost    float64
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance: %.2f < %.2f", e.Balance, e.Cost)
}

// PersistenceError wraps a failed store read/write. Fatal to the single
// execution attempt it occurred in, never to the process.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("store: %s failed: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Persistence builds a PersistenceError.
func Persistence(op string, err error) error {
	if err == nil {
		return nil
	}
	return &PersistenceError{Op: op, Err: err}
}
