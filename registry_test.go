package widget

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-lynx/widget/events"
	"github.com/go-lynx/widget/plugins"
	"github.com/go-lynx/widget/schema"
)

func TestRegisterAndLookup(t *testing.T) {
	h := newHarness(t)

	var registered []any
	h.bus.On(events.PluginRegistered, func(args ...any) { registered = append(registered, args[0]) })

	m := weatherManifest("weather")
	require.NoError(t, h.registry.Register(m))

	got, ok := h.registry.GetPlugin("weather")
	require.True(t, ok)
	assert.Same(t, m, got)
	assert.Equal(t, 1, h.registry.Count())
	assert.Equal(t, []string{"information"}, h.registry.Categories())
	assert.Len(t, h.registry.GetPluginsByCategory("information"), 1)
	assert.Equal(t, []any{"weather"}, registered)
}

func TestRegisterDuplicateKeepsOriginal(t *testing.T) {
	h := newHarness(t)

	first := weatherManifest("weather")
	second := weatherManifest("weather")
	second.Name = "Other Weather"

	require.NoError(t, h.registry.Register(first))
	assert.NoError(t, h.registry.Register(second), "duplicates are a logged no-op")

	got, _ := h.registry.GetPlugin("weather")
	assert.Same(t, first, got)
	assert.Equal(t, 1, h.registry.Count())
}

func TestRegisterRejectsInvalidManifest(t *testing.T) {
	h := newHarness(t)

	bad := weatherManifest("bad id!")
	err := h.registry.Register(bad)
	assert.ErrorIs(t, err, plugins.ErrManifestInvalid)
	assert.ErrorIs(t, err, plugins.ErrValidation)

	rejected := weatherManifest("weather")
	rejected.DefaultConfig = schema.Config{"units": "kelvin"}
	assert.ErrorIs(t, h.registry.Register(rejected), plugins.ErrValidation)
	assert.Zero(t, h.registry.Count())
	assert.Empty(t, h.registry.Categories())
}

func TestUnregisterDestroysInstancesAndIndex(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.registry.Register(weatherManifest("weather")))

	id1, err := h.im.CreateInstance(t.Context(), "weather", nil, nil)
	require.NoError(t, err)
	id2, err := h.im.CreateInstance(t.Context(), "weather", nil, nil)
	require.NoError(t, err)

	var destroyed []any
	h.bus.On(events.InstanceDestroyed, func(args ...any) { destroyed = append(destroyed, args[0]) })

	require.NoError(t, h.registry.Unregister("weather"))
	assert.ElementsMatch(t, []any{id1, id2}, destroyed)
	assert.Zero(t, h.im.Count())
	_, ok := h.registry.GetPlugin("weather")
	assert.False(t, ok)
	assert.NotContains(t, h.registry.Categories(), "information")

	assert.ErrorIs(t, h.registry.Unregister("weather"), plugins.ErrPluginNotRegistered)
	assert.ErrorIs(t, h.registry.Unregister("weather"), plugins.ErrNotFound)
}

func TestCategoryIndexKeepsSharedCategories(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.registry.Register(weatherManifest("a")))
	require.NoError(t, h.registry.Register(weatherManifest("b")))

	require.NoError(t, h.registry.Unregister("a"))
	assert.Equal(t, []string{"information"}, h.registry.Categories())
	require.NoError(t, h.registry.Unregister("b"))
	assert.Empty(t, h.registry.Categories())
}

func TestSearchPlugins(t *testing.T) {
	h := newHarness(t)
	w := weatherManifest("weather")
	c := weatherManifest("clock")
	c.Name = "Clock"
	c.Description = "Shows the time"
	c.Category = "time"
	c.Tags = []string{"Timezone"}
	require.NoError(t, h.registry.Register(w))
	require.NoError(t, h.registry.Register(c))

	ids := func(ms []*plugins.Manifest) []string {
		out := make([]string, 0, len(ms))
		for _, m := range ms {
			out = append(out, m.ID)
		}
		return out
	}

	assert.Equal(t, []string{"weather"}, ids(h.registry.SearchPlugins("CONDITIONS")))
	assert.Equal(t, []string{"clock"}, ids(h.registry.SearchPlugins("timez")))
	assert.Equal(t, []string{"weather"}, ids(h.registry.SearchPlugins("outdoor")))
	assert.Equal(t, []string{"clock", "weather"}, ids(h.registry.SearchPlugins("")))
	assert.Empty(t, h.registry.SearchPlugins("nothing matches"))
	assert.Equal(t, []string{"clock", "weather"}, ids(h.registry.GetAllPlugins()))
}
