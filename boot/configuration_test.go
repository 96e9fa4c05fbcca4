package boot

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadSampleConfig(t *testing.T) {
	cfg, c, err := LoadConfig(filepath.Join("..", "configs", "widget.yaml"))
	require.NoError(t, err)
	defer cfg.Close()

	assert.Equal(t, "widgetd", c.Application.Name)
	assert.Equal(t, []string{"configs/plugins"}, c.Loader.Dirs)
	assert.True(t, c.Loader.Watch)
	assert.True(t, c.Cache.Enabled)
	assert.Equal(t, int64(1000), c.Cache.MaxItems)
	assert.Equal(t, ":9090", c.Metrics.Addr)
	assert.Equal(t, 64, c.Events.History)
}

func TestScanConfKeepsDefaultsForMissingKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "widget.yaml")
	require.NoError(t, os.WriteFile(path, []byte("widget:\n  recovery:\n    max_attempts: 5\n"), 0o644))
	cfg, c, err := LoadConfig(path)
	require.NoError(t, err)
	defer cfg.Close()

	def := DefaultConf()
	assert.Equal(t, 5, c.Recovery.MaxAttempts)
	assert.Equal(t, def.Recovery.Delay, c.Recovery.Delay)
	assert.Equal(t, def.Application.Name, c.Application.Name)
	assert.Equal(t, def.Loader, c.Loader)
}

func TestScanConfWithoutWidgetSection(t *testing.T) {
	path := filepath.Join(t.TempDir(), "other.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 8080\n"), 0o644))
	cfg, c, err := LoadConfig(path)
	require.NoError(t, err)
	defer cfg.Close()
	assert.Equal(t, DefaultConf(), c)
}

func TestLoadConfigErrors(t *testing.T) {
	_, _, err := LoadConfig("")
	assert.ErrorContains(t, err, ConfigPathEnv)

	path := filepath.Join(t.TempDir(), "widget.yaml")
	require.NoError(t, os.WriteFile(path, []byte("widget:\n  cache:\n    ttl: soon\n"), 0o644))
	_, _, err = LoadConfig(path)
	assert.ErrorContains(t, err, "widget.cache.ttl")
}

func TestResolveConfigPath(t *testing.T) {
	cm := &ConfigManager{}
	assert.Empty(t, cm.Path())

	t.Setenv(ConfigPathEnv, "/etc/widgetd")
	assert.Equal(t, "/etc/widgetd", cm.Resolve(""))
	assert.Equal(t, "conf.yaml", cm.Resolve("conf.yaml"), "an explicit path wins over the environment")
	assert.Equal(t, "conf.yaml", cm.Path())

	t.Setenv(ConfigPathEnv, "")
	assert.Equal(t, DefaultConfigDir, cm.Resolve(""))
	assert.Same(t, GetConfigManager(), GetConfigManager())
}
