package plugins

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseVersion(t *testing.T) {
	v, err := ParseVersion("1.2.3-beta.1+build.7")
	require.NoError(t, err)
	assert.Equal(t, 1, v.Major)
	assert.Equal(t, 2, v.Minor)
	assert.Equal(t, 3, v.Patch)
	assert.Equal(t, "beta.1", v.PreRelease)
	assert.Equal(t, "build.7", v.Build)
	assert.Equal(t, "1.2.3-beta.1+build.7", v.String())

	for _, bad := range []string{"", "1", "1.0", "v1.0.0", "1.0.0.0", "a.b.c"} {
		_, err := ParseVersion(bad)
		assert.ErrorIs(t, err, ErrInvalidPluginVersion, bad)
	}
}

func TestVersionShapes(t *testing.T) {
	assert.True(t, IsSemver("1.0.0"))
	assert.True(t, IsSemver("1.0.0-rc.1"))
	assert.False(t, IsSemver("1.0"))

	assert.True(t, IsStandardVersion("10.2.0"))
	assert.False(t, IsStandardVersion("1.0.0-rc.1"))
}

func TestVersionCompare(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"1.0.0", "1.0.0", 0},
		{"1.0.0", "2.0.0", -1},
		{"1.10.0", "1.9.0", 1},
		{"1.0.0-alpha", "1.0.0", -1},
		{"1.0.0-alpha.2", "1.0.0-alpha.10", -1},
		{"1.0.0-beta", "1.0.0-alpha", 1},
		{"1.0.0+a", "1.0.0+b", 0},
	}
	for _, tt := range tests {
		a, err := ParseVersion(tt.a)
		require.NoError(t, err)
		b, err := ParseVersion(tt.b)
		require.NoError(t, err)
		assert.Equal(t, tt.want, a.Compare(b), "%s vs %s", tt.a, tt.b)
	}
}
