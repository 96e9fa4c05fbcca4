// Package plugins defines the widget plugin contracts: the immutable manifest a plugin
// describes itself with, the renderable component handle, the data-provider contract and
// the lifecycle hooks the runtime invokes.
package plugins

import (
	"context"

	"github.com/go-lynx/widget/schema"
)

// Manifest is a plugin's self-description. It is treated as immutable once the
// registry has admitted it; the registry hands out the same pointer it was given.
type Manifest struct {
	// ID uniquely identifies the plugin. Restricted to [A-Za-z0-9_-].
	ID string `json:"id"`

	// Name is the human-readable plugin name
	Name string `json:"name"`

	// Description is a short explanation of what the widget shows
	Description string `json:"description"`

	// Version is a semantic version string
	Version string `json:"version"`

	// Author is optional attribution metadata
	Author string `json:"author,omitempty"`

	// Category groups plugins in the registry index
	Category string `json:"category"`

	// Tags are free-form search keywords
	Tags []string `json:"tags,omitempty"`

	// DefaultConfig is merged under every instance configuration.
	// ConfigSchema must accept it or the manifest is rejected.
	DefaultConfig schema.Config `json:"defaultConfig"`

	// ConfigSchema validates instance configurations
	ConfigSchema schema.Schema `json:"-"`

	// Component is the renderable reference mounted once per instance
	Component Component `json:"-"`

	// DataProviderFactory is optional; nil means the widget has no data
	DataProviderFactory ProviderFactory `json:"-"`

	// Lifecycle maps hook names (see HookOnMount etc.) to their implementation.
	// A declared name with a nil hook is kept so validation can report unknown names.
	Lifecycle map[string]Hook `json:"-"`

	// Permissions are capability tokens such as "network" or "filesystem".
	// They are only consumed by the advisory security check.
	Permissions []string `json:"permissions,omitempty"`

	// Settings holds the allowResize/allowMove/allowDelete/allowConfigure flags.
	// Values must be booleans.
	Settings map[string]any `json:"settings,omitempty"`

	// Source records where the manifest came from ("builtin:<id>" or a file path)
	Source string `json:"source,omitempty"`
}

// Setting names understood by the runtime
const (
	SettingAllowResize    = "allowResize"
	SettingAllowMove      = "allowMove"
	SettingAllowDelete    = "allowDelete"
	SettingAllowConfigure = "allowConfigure"
)

// KnownSettings lists the setting flags a manifest may declare
var KnownSettings = []string{SettingAllowResize, SettingAllowMove, SettingAllowDelete, SettingAllowConfigure}

// Allows reports whether a setting flag permits an operation.
// Undeclared flags default to true.
func (m *Manifest) Allows(setting string) bool {
	v, ok := m.Settings[setting]
	if !ok {
		return true
	}
	b, ok := v.(bool)
	return !ok || b
}

// Hook returns the lifecycle hook registered under name, or nil.
func (m *Manifest) Hook(name string) Hook {
	if m.Lifecycle == nil {
		return nil
	}
	return m.Lifecycle[name]
}

// HasPermission reports whether the manifest requests the given capability
func (m *Manifest) HasPermission(p string) bool {
	for _, have := range m.Permissions {
		if have == p {
			return true
		}
	}
	return false
}

// Component is the renderable reference of a plugin. The runtime never inspects the
// renderer it returns; the host UI owns the surface behind it.
type Component interface {
	// Mount binds a new renderer to an instance and its validated configuration
	Mount(instanceID string, cfg schema.Config) (Renderer, error)
}

// ComponentFunc adapts a function to the Component interface
type ComponentFunc func(instanceID string, cfg schema.Config) (Renderer, error)

// Mount calls f(instanceID, cfg)
func (f ComponentFunc) Mount(instanceID string, cfg schema.Config) (Renderer, error) {
	return f(instanceID, cfg)
}

// Renderer is the opaque handle of a mounted instance surface
type Renderer interface {
	// Update pushes a newly committed configuration to the surface
	Update(cfg schema.Config) error

	// Unmount releases the surface. It is called exactly once, on destroy.
	Unmount() error
}

// Resizer is an optional Renderer capability for size changes
type Resizer interface {
	Resize(size Size) error
}

// Size is a widget footprint in grid cells
type Size struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Position places a widget on the host grid
type Position struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// DataProvider is the widget-specific contract for fetching data
type DataProvider interface {
	// Fetch returns the current payload. The initial fetch is awaited during creation.
	Fetch(ctx context.Context) (any, error)

	// Refresh forces a fresh payload, bypassing any provider-side cache
	Refresh(ctx context.Context) (any, error)
}

// Subscriber is the optional push capability of a DataProvider.
// Subscribe returns a function that cancels the subscription.
type Subscriber interface {
	Subscribe(fn func(data any)) (unsubscribe func())
}

// DataValidator is the optional payload check of a DataProvider.
// Payloads it rejects are dropped instead of stored.
type DataValidator interface {
	Validate(data any) bool
}

// ProviderFactory constructs a provider for one instance from its validated configuration
type ProviderFactory func(cfg schema.Config) (DataProvider, error)

// PushSource returns the provider's push capability, if any.
func PushSource(p DataProvider) (Subscriber, bool) {
	s, ok := p.(Subscriber)
	return s, ok
}
