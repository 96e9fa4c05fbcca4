package widget

import (
	"fmt"
	"sync"

	"github.com/go-lynx/widget/plugins"
	"github.com/go-lynx/widget/schema"
)

// ConfigManager owns the committed configuration of one instance.
// Every commit is validated first; a rejected change leaves the previous config in place.
type ConfigManager struct {
	mu       sync.RWMutex
	pluginID string
	defaults schema.Config
	schema   schema.Schema
	current  schema.Config
}

// NewConfigManager merges partial over the manifest defaults and validates the result.
func NewConfigManager(m *plugins.Manifest, partial schema.Config) (*ConfigManager, error) {
	if m == nil {
		return nil, plugins.ErrPluginNotFound
	}
	cm := &ConfigManager{
		pluginID: m.ID,
		defaults: m.DefaultConfig.Clone(),
		schema:   m.ConfigSchema,
	}
	merged := cm.defaults.Merge(partial)
	if err := cm.validate("create", merged); err != nil {
		return nil, err
	}
	cm.current = merged
	return cm, nil
}

func (cm *ConfigManager) validate(op string, cfg schema.Config) error {
	if cm.schema == nil {
		return nil
	}
	if err := cm.schema.Validate(cfg); err != nil {
		return plugins.NewPluginError(cm.pluginID, op, "configuration rejected",
			fmt.Errorf("%w: %w", plugins.ErrConfigValidation, err))
	}
	return nil
}

// Config returns a copy of the committed configuration
func (cm *ConfigManager) Config() schema.Config {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.current.Clone()
}

// Update merges partial over the committed config and commits it if it validates.
// It returns the new committed config.
func (cm *ConfigManager) Update(partial schema.Config) (schema.Config, error) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	next := cm.current.Merge(partial)
	if err := cm.validate("update", next); err != nil {
		return nil, err
	}
	cm.current = next
	return next.Clone(), nil
}

// SetProperty commits a single field
func (cm *ConfigManager) SetProperty(key string, value any) error {
	_, err := cm.Update(schema.Config{key: value})
	return err
}

// GetProperty returns a single committed field
func (cm *ConfigManager) GetProperty(key string) (any, bool) {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	v, ok := cm.current[key]
	if !ok {
		return nil, false
	}
	return schema.Config{key: v}.Clone()[key], true
}

// Diff returns the fields of other that differ from the committed config
func (cm *ConfigManager) Diff(other schema.Config) schema.Config {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.current.Diff(other)
}

// Reset restores the manifest defaults
func (cm *ConfigManager) Reset() error {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	defaults := cm.defaults.Clone()
	if err := cm.validate("reset", defaults); err != nil {
		return err
	}
	cm.current = defaults
	return nil
}
