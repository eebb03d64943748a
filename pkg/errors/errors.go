// Copyright (c) 2025 Darren Soothill
// Licensed under the MIT License

// Package errors provides structured error types for the Wi-Fi TV remote.
//
// Handlers never surface these errors to callers of the control surface: a
// protocol handler converts every failure into a boolean result at its
// boundary. The types exist so that the failure can be logged with its
// operation, address and cause, and so tests can assert on the failure class.
//
// # Failure classes
//
//   - NetworkError: socket, connect or timeout failures (transport failure)
//   - ProtocolError: the device answered, but not as expected (non-2xx status,
//     malformed body)
//   - ErrUnmappedCommand: the button name has no native code for a brand
//   - DiscoveryError: one search target or probe failed during discovery
//   - ConfigError / ValidationError: bad configuration or device values
//
// # Example Usage
//
//	err := errors.NewProtocolError("send key", "192.168.1.20:8060", 503)
//	if errors.IsProtocolError(err) {
//	    logger.Warn().Err(err).Msg("TV rejected key press")
//	}
package errors

import (
	"errors"
	"fmt"
)

// DiscoveryError represents an error during device discovery operations.
type DiscoveryError struct {
	Op  string // Operation being performed (e.g., "M-SEARCH ssdp:all", "mDNS browse")
	Err error  // Underlying error
}

func (e *DiscoveryError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("discovery %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("discovery %s failed", e.Op)
}

func (e *DiscoveryError) Unwrap() error {
	return e.Err
}

// NewDiscoveryError creates a new discovery error.
func NewDiscoveryError(op string, err error) *DiscoveryError {
	return &DiscoveryError{Op: op, Err: err}
}

// IsDiscoveryError checks if an error is a DiscoveryError.
func IsDiscoveryError(err error) bool {
	var de *DiscoveryError
	return errors.As(err, &de)
}

// ProtocolError represents a device that answered a request with an
// unexpected status code or body.
type ProtocolError struct {
	Op         string // Operation being performed (e.g., "send key", "handshake")
	Addr       string // Device address
	StatusCode int    // HTTP status code, 0 when the body was the problem
	Err        error  // Underlying error (optional)
}

func (e *ProtocolError) Error() string {
	switch {
	case e.Err != nil && e.StatusCode != 0:
		return fmt.Sprintf("protocol %s (%s): status %d: %v", e.Op, e.Addr, e.StatusCode, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("protocol %s (%s): %v", e.Op, e.Addr, e.Err)
	default:
		return fmt.Sprintf("protocol %s (%s): unexpected status %d", e.Op, e.Addr, e.StatusCode)
	}
}

// Unwrap returns the underlying error, or ErrUnexpectedStatus when only a
// status code is known.
func (e *ProtocolError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrUnexpectedStatus
}

// NewProtocolError creates a protocol error for an unexpected status code.
func NewProtocolError(op, addr string, statusCode int) *ProtocolError {
	return &ProtocolError{Op: op, Addr: addr, StatusCode: statusCode}
}

// IsProtocolError checks if an error is a ProtocolError.
func IsProtocolError(err error) bool {
	var pe *ProtocolError
	return errors.As(err, &pe)
}

// ConfigError represents a configuration error.
type ConfigError struct {
	Field string // Configuration field that caused the error
	Value string // Invalid value (optional)
	Err   error  // Underlying error or description
}

func (e *ConfigError) Error() string {
	if e.Value != "" {
		return fmt.Sprintf("config error in field %q (value=%q): %v", e.Field, e.Value, e.Err)
	}
	if e.Err != nil {
		return fmt.Sprintf("config error in field %q: %v", e.Field, e.Err)
	}
	return fmt.Sprintf("config error in field %q", e.Field)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// NewConfigError creates a new configuration error.
func NewConfigError(field string, value string, err error) *ConfigError {
	return &ConfigError{Field: field, Value: value, Err: err}
}

// IsConfigError checks if an error is a ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

// ValidationError represents a data validation error.
type ValidationError struct {
	Field   string // Field that failed validation
	Value   any    // Invalid value
	Reason  string // Why validation failed
	Details error  // Additional details (optional)
}

func (e *ValidationError) Error() string {
	if e.Details != nil {
		return fmt.Sprintf("validation error: field %q with value %v: %s (%v)", e.Field, e.Value, e.Reason, e.Details)
	}
	return fmt.Sprintf("validation error: field %q with value %v: %s", e.Field, e.Value, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return e.Details
}

// NewValidationError creates a new validation error.
func NewValidationError(field string, value any, reason string) *ValidationError {
	return &ValidationError{Field: field, Value: value, Reason: reason}
}

// IsValidationError checks if an error is a ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// NetworkError represents a network-related error.
type NetworkError struct {
	Op   string // Operation being performed (e.g., "connect", "M-SEARCH")
	Addr string // Network address (if applicable)
	Err  error  // Underlying error
}

func (e *NetworkError) Error() string {
	if e.Addr != "" {
		return fmt.Sprintf("network %s (%s): %v", e.Op, e.Addr, e.Err)
	}
	if e.Err != nil {
		return fmt.Sprintf("network %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("network %s failed", e.Op)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// NewNetworkError creates a new network error.
func NewNetworkError(op string, addr string, err error) *NetworkError {
	return &NetworkError{Op: op, Addr: addr, Err: err}
}

// IsNetworkError checks if an error is a NetworkError.
func IsNetworkError(err error) bool {
	var ne *NetworkError
	return errors.As(err, &ne)
}

// Sentinel errors for common conditions
var (
	// ErrUnmappedCommand indicates a button name has no native key code
	ErrUnmappedCommand = errors.New("unmapped command")

	// ErrNotConnected indicates no device is connected
	ErrNotConnected = errors.New("not connected")

	// ErrUnexpectedStatus indicates a non-2xx response
	ErrUnexpectedStatus = errors.New("unexpected status")

	// ErrTimeout indicates an operation timed out
	ErrTimeout = errors.New("operation timeout")

	// ErrInvalidConfig indicates invalid configuration
	ErrInvalidConfig = errors.New("invalid configuration")
)

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target any) bool {
	return errors.As(err, target)
}
