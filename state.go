package widget

import (
	"context"
	"time"

	"github.com/go-lynx/widget/plugins"
	"github.com/go-lynx/widget/schema"
)

// InstanceState is the observable state of one live widget instance
type InstanceState struct {
	ID          string
	PluginID    string
	IsLoading   bool
	HasError    bool
	Err         error
	Data        any
	LastUpdated time.Time
	IsVisible   bool
	IsFocused   bool
	Position    plugins.Position
	Size        plugins.Size
	CreatedAt   time.Time
}

// instance is the manager's record. Fields are guarded by InstanceManager.mu.
type instance struct {
	state InstanceState

	// requested is the partial configuration the instance was created with
	requested schema.Config
	config    *ConfigManager
	renderer  plugins.Renderer
	provider  plugins.DataProvider

	unsubscribe func()
	stopRefresh context.CancelFunc
	interval    time.Duration
}

// PluginSource resolves plugin ids to admitted manifests
type PluginSource interface {
	GetPlugin(id string) (*plugins.Manifest, bool)
}

// ConfigRefreshInterval is the instance config field, in milliseconds, that
// turns on periodic data refresh
const ConfigRefreshInterval = "refreshInterval"

func refreshIntervalOf(cfg schema.Config) time.Duration {
	switch v := cfg[ConfigRefreshInterval].(type) {
	case int:
		return time.Duration(v) * time.Millisecond
	case int64:
		return time.Duration(v) * time.Millisecond
	case float64:
		return time.Duration(v * float64(time.Millisecond))
	}
	return 0
}
