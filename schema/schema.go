package schema

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalid is returned, wrapped in a *ValidationError, when a config is rejected
var ErrInvalid = errors.New("schema validation failed")

// Schema validates a configuration
type Schema interface {
	Validate(cfg Config) error
}

// Func adapts a plain function to the Schema interface
type Func func(cfg Config) error

// Validate calls f(cfg)
func (f Func) Validate(cfg Config) error { return f(cfg) }

// Any accepts every configuration
var Any Schema = Func(func(Config) error { return nil })

// Issue describes one rejected field
type Issue struct {
	Field   string
	Message string
}

func (i Issue) String() string {
	if i.Field == "" {
		return i.Message
	}
	return i.Field + ": " + i.Message
}

// ValidationError aggregates every issue found in one validation pass
type ValidationError struct {
	Issues []Issue
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Issues))
	for i, is := range e.Issues {
		parts[i] = is.String()
	}
	return fmt.Sprintf("%s: %s", ErrInvalid, strings.Join(parts, "; "))
}

func (e *ValidationError) Unwrap() error { return ErrInvalid }
