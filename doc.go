// Package widget is a plugin runtime for dashboard widgets.
//
// Plugins describe themselves with a manifest (see package plugins). The runtime
// admits manifests into a Registry, creates live instances of them through the
// InstanceManager, keeps each instance's configuration valid with a ConfigManager
// and absorbs failures in an ErrorBoundary that retries recovery a bounded number
// of times. Lifecycle and interaction notifications travel on the events.Bus.
//
// # File Organization
//
//   - registry.go: plugin admission, lookup, search and the category index
//   - config_manager.go: per-instance merge-then-validate configuration
//   - recovery.go: error boundary, classification and bounded auto-recovery
//   - state.go: instance state and the internal instance record
//   - lifecycle.go: instance creation, destruction and hook invocation
//   - ops.go: updates, data refresh, flags, resize, accessors and host recovery
//
// # Quick Start
//
//	bus := events.NewBus()
//	boundary := widget.NewErrorBoundary()
//	reg := widget.NewRegistry(widget.WithRegistryBus(bus))
//	im := widget.NewInstanceManager(reg, boundary, widget.WithInstanceBus(bus))
//	reg.SetTeardown(im)
//
//	if err := reg.Register(clock.Manifest()); err != nil {
//	    return err
//	}
//	id, err := im.CreateInstance(ctx, "clock", schema.Config{"format": "24h"}, nil)
//
// The boot package wires the same services from a configuration file.
package widget
