package boot

import (
	"os"
	"sync"
)

// ConfigPathEnv overrides the default configuration path
const ConfigPathEnv = "WIDGET_CONFIG_PATH"

// DefaultConfigDir is used when neither a flag nor ConfigPathEnv names a path
const DefaultConfigDir = "./configs"

// ConfigManager remembers which configuration path the process resolved, so
// reloads and diagnostics read the same file the runtime started from.
type ConfigManager struct {
	mu   sync.RWMutex
	path string
}

var (
	configManager     *ConfigManager
	configManagerOnce sync.Once
)

// GetConfigManager returns the process-wide path manager
func GetConfigManager() *ConfigManager {
	configManagerOnce.Do(func() { configManager = &ConfigManager{} })
	return configManager
}

// Resolve picks explicit, then ConfigPathEnv, then DefaultConfigDir, and remembers the choice.
func (cm *ConfigManager) Resolve(explicit string) string {
	path := explicit
	if path == "" {
		path = cm.DefaultPath()
	}
	cm.mu.Lock()
	cm.path = path
	cm.mu.Unlock()
	return path
}

// Path returns the resolved path, or "" before Resolve
func (cm *ConfigManager) Path() string {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.path
}

// DefaultPath is ConfigPathEnv when set, else DefaultConfigDir
func (cm *ConfigManager) DefaultPath() string {
	if p := os.Getenv(ConfigPathEnv); p != "" {
		return p
	}
	return DefaultConfigDir
}
