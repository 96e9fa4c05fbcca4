package plugins

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeNetErr struct{ timeout bool }

func (e fakeNetErr) Error() string   { return "dial tcp: connection refused" }
func (e fakeNetErr) Timeout() bool   { return e.timeout }
func (e fakeNetErr) Temporary() bool { return false }

var _ net.Error = fakeNetErr{}

func TestErrorName(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"deadline", fmt.Errorf("fetch: %w", context.DeadlineExceeded), NameTimeoutError},
		{"net timeout", fakeNetErr{timeout: true}, NameTimeoutError},
		{"net refused", fakeNetErr{}, NameNetworkError},
		{"config", fmt.Errorf("%w: minWidth", ErrConfigValidation), NameConfigurationError},
		{"manifest", ErrManifestInvalid, NameValidationError},
		{"instance", ErrInstanceNotFound, NameNotFoundError},
		{"provider", fmt.Errorf("%w: weather api", ErrProvider), NameProviderError},
		{"named", WithName(NameNetworkError, errors.New("boom")), NameNetworkError},
		{"panic", &PanicError{Value: "x"}, NamePanicError},
		{"plain", errors.New("boom"), NameError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ErrorName(tt.err))
		})
	}
}

func TestErrorKinds(t *testing.T) {
	assert.ErrorIs(t, ErrPluginNotFound, ErrNotFound)
	assert.ErrorIs(t, ErrPluginNotRegistered, ErrNotFound)
	assert.ErrorIs(t, ErrInstanceNotFound, ErrNotFound)
	assert.ErrorIs(t, ErrConfigValidation, ErrValidation)
	assert.ErrorIs(t, ErrInvalidPluginID, ErrValidation)
	assert.NotErrorIs(t, ErrConfigValidation, ErrNotFound)

	pe := NewPluginError("clock", "update", "config rejected", ErrConfigValidation)
	assert.ErrorIs(t, pe, ErrConfigValidation)
	assert.Contains(t, pe.Error(), "plugin clock: update failed")
}

func TestValidatePluginID(t *testing.T) {
	for _, id := range []string{"clock", "home_automation", "weather-v2", "A1"} {
		assert.NoError(t, ValidatePluginID(id), id)
	}
	for _, id := range []string{"", "with space", "dots.are.bad", "slash/x", "ü"} {
		assert.ErrorIs(t, ValidatePluginID(id), ErrInvalidPluginID, id)
	}
}
