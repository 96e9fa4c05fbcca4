package plugins

import (
	"context"

	"github.com/go-lynx/widget/schema"
)

// Lifecycle hook names
const (
	HookOnMount        = "onMount"
	HookOnUnmount      = "onUnmount"
	HookOnConfigChange = "onConfigChange"
	HookOnResize       = "onResize"
	HookOnError        = "onError"
)

// KnownHooks lists the hook names the runtime invokes
var KnownHooks = []string{HookOnMount, HookOnUnmount, HookOnConfigChange, HookOnResize, HookOnError}

// IsKnownHook reports whether name is one of KnownHooks
func IsKnownHook(name string) bool {
	for _, h := range KnownHooks {
		if h == name {
			return true
		}
	}
	return false
}

// HookContext carries what a lifecycle hook may need. Fields unrelated to the
// hook being invoked are zero.
type HookContext struct {
	InstanceID string
	PluginID   string

	// Config is the committed configuration
	Config schema.Config
	// Previous is the configuration replaced by an update (onConfigChange)
	Previous schema.Config
	// Size is the new footprint (onResize)
	Size Size
	// Err is the routed failure (onError)
	Err error
}

// Hook is a lifecycle callback. The runtime awaits it before the next step.
type Hook func(ctx context.Context, hc HookContext) error
