package factory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-lynx/widget/plugins"
	"github.com/go-lynx/widget/schema"
)

func noteManifest() *plugins.Manifest {
	return &plugins.Manifest{ID: "notes", Name: "Notes", Version: "1.0.0", Category: "productivity"}
}

func TestCatalogResolvesNames(t *testing.T) {
	c := NewCatalog()

	comp, err := c.Component("headless")
	require.NoError(t, err)
	assert.Equal(t, plugins.HeadlessComponent{}, comp)

	require.NoError(t, c.RegisterProvider("static", func(cfg schema.Config) (plugins.DataProvider, error) {
		return nil, nil
	}))
	_, err = c.Provider("static")
	assert.NoError(t, err)

	require.NoError(t, c.RegisterHooks("audit", HookSet{
		plugins.HookOnMount: func(ctx context.Context, hc plugins.HookContext) error { return nil },
	}))
	hs, err := c.Hooks("audit")
	require.NoError(t, err)
	delete(hs, plugins.HookOnMount)
	again, _ := c.Hooks("audit")
	assert.Len(t, again, 1, "hook sets are copied")

	_, err = c.Component("canvas")
	assert.ErrorIs(t, err, ErrUnknownName)
	_, err = c.Provider("missing")
	assert.ErrorIs(t, err, ErrUnknownName)
	_, err = c.Hooks("missing")
	assert.ErrorIs(t, err, ErrUnknownName)
}

func TestCatalogRejectsDuplicates(t *testing.T) {
	c := NewCatalog()
	assert.ErrorIs(t, c.RegisterComponent("headless", plugins.HeadlessComponent{}), ErrDuplicateName)

	require.NoError(t, c.RegisterBuiltin(noteManifest))
	assert.ErrorIs(t, c.RegisterBuiltin(noteManifest), ErrDuplicateName)
	assert.Panics(t, func() { c.MustRegisterBuiltin(noteManifest) })
}

func TestCatalogBuiltins(t *testing.T) {
	c := NewCatalog()
	c.MustRegisterBuiltin(noteManifest)

	assert.True(t, c.HasBuiltin("notes"))
	assert.Equal(t, []string{"notes"}, c.Builtins())
	assert.Equal(t, map[string][]string{"productivity": {"notes"}}, c.BuiltinCategories())

	m1, err := c.Builtin("notes")
	require.NoError(t, err)
	m2, _ := c.Builtin("notes")
	assert.NotSame(t, m1, m2, "every call builds a fresh manifest")
	assert.Equal(t, "builtin:notes", m1.Source)

	_, err = c.Builtin("weather")
	assert.ErrorIs(t, err, ErrUnknownName)
}
