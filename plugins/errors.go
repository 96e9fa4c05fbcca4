package plugins

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
)

// Error kinds shared by the widget runtime. Callers match them with errors.Is.
var (
	// ErrValidation is the base kind for manifests or configs that fail schema or shape checks.
	// It always blocks admission or commit.
	ErrValidation = errors.New("validation failed")

	// ErrManifestInvalid indicates a manifest rejected by the structural checks
	ErrManifestInvalid = fmt.Errorf("%w: invalid plugin manifest", ErrValidation)

	// ErrConfigValidation indicates an instance configuration rejected by the plugin's schema
	ErrConfigValidation = fmt.Errorf("%w: invalid widget configuration", ErrValidation)

	// ErrInvalidPluginID indicates an id outside the [A-Za-z0-9_-] charset
	ErrInvalidPluginID = fmt.Errorf("%w: invalid plugin ID", ErrValidation)

	// ErrInvalidPluginVersion indicates a version that is not a semantic version
	ErrInvalidPluginVersion = fmt.Errorf("%w: invalid plugin version", ErrValidation)

	// ErrNotFound is the base kind for unknown plugin or instance ids.
	// It is always a hard failure to the caller.
	ErrNotFound = errors.New("not found")

	// ErrPluginNotFound indicates that a requested plugin is not in the registry
	ErrPluginNotFound = fmt.Errorf("%w: plugin not found", ErrNotFound)

	// ErrPluginNotRegistered indicates an unregister call for an id that was never admitted
	ErrPluginNotRegistered = fmt.Errorf("%w: plugin not registered", ErrNotFound)

	// ErrInstanceNotFound indicates that a widget instance id is unknown
	ErrInstanceNotFound = fmt.Errorf("%w: widget instance not found", ErrNotFound)

	// ErrAlreadyExists indicates a duplicate plugin id. The registry only logs it.
	ErrAlreadyExists = errors.New("plugin already exists")

	// ErrProvider indicates a data fetch or refresh failure
	ErrProvider = errors.New("data provider failed")

	// ErrRecoveryExhausted indicates the bounded retry ceiling was reached for an instance
	ErrRecoveryExhausted = errors.New("recovery attempts exhausted")

	// ErrNotAllowed indicates an operation the plugin settings forbid
	ErrNotAllowed = errors.New("operation not allowed by plugin settings")
)

// Error names used for classification and reporting.
const (
	NameNetworkError       = "NetworkError"
	NameTimeoutError       = "TimeoutError"
	NameConfigurationError = "ConfigurationError"
	NameValidationError    = "ValidationError"
	NameNotFoundError      = "NotFoundError"
	NameProviderError      = "ProviderError"
	NamePanicError         = "PanicError"
	NameError              = "Error"
)

// PluginError represents a detailed error that occurred during plugin or instance operations
type PluginError struct {
	// PluginID identifies the plugin where the error occurred
	PluginID string

	// Operation describes the action that was being performed when the error occurred
	Operation string

	// Message provides a detailed description of the error
	Message string

	// Err is the underlying error that caused this PluginError
	Err error
}

func (e *PluginError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("plugin %s: %s failed: %s (%v)", e.PluginID, e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("plugin %s: %s failed: %s", e.PluginID, e.Operation, e.Message)
}

func (e *PluginError) Unwrap() error {
	return e.Err
}

// NewPluginError creates a new PluginError with the given details
func NewPluginError(pluginID, operation, message string, err error) *PluginError {
	return &PluginError{
		PluginID:  pluginID,
		Operation: operation,
		Message:   message,
		Err:       err,
	}
}

// NamedError is implemented by errors that carry their own classification name,
// e.g. a provider returning a NetworkError from a remote API.
type NamedError interface {
	error
	ErrorName() string
}

type namedError struct {
	name string
	err  error
}

func (e *namedError) Error() string     { return e.name + ": " + e.err.Error() }
func (e *namedError) Unwrap() error     { return e.err }
func (e *namedError) ErrorName() string { return e.name }

// WithName tags err with a classification name.
func WithName(name string, err error) error {
	if err == nil {
		return nil
	}
	return &namedError{name: name, err: err}
}

// PanicError wraps a value recovered from a panicking hook, renderer, provider or handler.
type PanicError struct {
	Value any
	Stack string
}

func (e *PanicError) Error() string     { return fmt.Sprintf("panic: %v", e.Value) }
func (e *PanicError) ErrorName() string { return NamePanicError }

// ErrorName returns the classification name of err.
func ErrorName(err error) string {
	if err == nil {
		return ""
	}
	var named NamedError
	if errors.As(err, &named) {
		return named.ErrorName()
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return NameTimeoutError
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return NameTimeoutError
		}
		return NameNetworkError
	}
	switch {
	case errors.Is(err, ErrConfigValidation):
		return NameConfigurationError
	case errors.Is(err, ErrValidation):
		return NameValidationError
	case errors.Is(err, ErrNotFound):
		return NameNotFoundError
	case errors.Is(err, ErrProvider):
		return NameProviderError
	}
	return NameError
}
