package widget

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-lynx/widget/plugins"
	"github.com/go-lynx/widget/schema"
)

func TestConfigManagerMergesOverDefaults(t *testing.T) {
	cm, err := NewConfigManager(weatherManifest("weather"), schema.Config{"city": "Oslo"})
	require.NoError(t, err)
	assert.Equal(t, schema.Config{"city": "Oslo", "units": "metric"}, cm.Config())
}

func TestConfigManagerRejectsInvalidConstruction(t *testing.T) {
	_, err := NewConfigManager(weatherManifest("weather"), schema.Config{"units": "kelvin"})
	assert.ErrorIs(t, err, plugins.ErrConfigValidation)
	assert.Equal(t, plugins.NameConfigurationError, plugins.ErrorName(err))
}

func TestConfigManagerRejectsMistypedValues(t *testing.T) {
	for _, partial := range []schema.Config{
		{"city": 42},
		{"refreshInterval": "50"},
		{"city": "Oslo", "refreshInterval": true},
	} {
		_, err := NewConfigManager(weatherManifest("weather"), partial)
		assert.ErrorIs(t, err, plugins.ErrConfigValidation, "%v", partial)
	}

	cm, err := NewConfigManager(weatherManifest("weather"), schema.Config{"refreshInterval": 60000})
	require.NoError(t, err)
	_, err = cm.Update(schema.Config{"refreshInterval": "50"})
	assert.ErrorIs(t, err, plugins.ErrConfigValidation)
	v, _ := cm.GetProperty("refreshInterval")
	assert.Equal(t, 60000, v, "the committed value keeps its type")
}

func TestConfigManagerUpdateKeepsPreviousOnFailure(t *testing.T) {
	cm, err := NewConfigManager(weatherManifest("weather"), nil)
	require.NoError(t, err)

	_, err = cm.Update(schema.Config{"units": "kelvin", "city": "Rome"})
	assert.ErrorIs(t, err, plugins.ErrConfigValidation)
	assert.Equal(t, schema.Config{"city": "Berlin", "units": "metric"}, cm.Config())

	next, err := cm.Update(schema.Config{"units": "imperial"})
	require.NoError(t, err)
	assert.Equal(t, "imperial", next["units"])
	assert.Equal(t, "Berlin", next["city"])
}

func TestConfigManagerProperties(t *testing.T) {
	cm, err := NewConfigManager(weatherManifest("weather"), nil)
	require.NoError(t, err)

	require.NoError(t, cm.SetProperty("city", "Lisbon"))
	v, ok := cm.GetProperty("city")
	require.True(t, ok)
	assert.Equal(t, "Lisbon", v)

	assert.ErrorIs(t, cm.SetProperty("refreshInterval", -5), plugins.ErrConfigValidation)
	_, ok = cm.GetProperty("refreshInterval")
	assert.False(t, ok)

	assert.Equal(t, schema.Config{"units": "imperial"},
		cm.Diff(schema.Config{"city": "Lisbon", "units": "imperial"}))

	require.NoError(t, cm.Reset())
	v, _ = cm.GetProperty("city")
	assert.Equal(t, "Berlin", v)
}

func TestConfigManagerReturnsCopies(t *testing.T) {
	cm, err := NewConfigManager(weatherManifest("weather"), nil)
	require.NoError(t, err)

	cfg := cm.Config()
	cfg["city"] = "mutated"
	v, _ := cm.GetProperty("city")
	assert.Equal(t, "Berlin", v)
}
