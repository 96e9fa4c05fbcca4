// Instance operations on live widgets:
//   - UpdateInstance: validated config commit, renderer update, onConfigChange
//   - RefreshInstanceData: provider refresh with failures routed to the boundary
//   - SetInstanceVisibility / SetInstanceFocus / ResizeInstance
//   - Read accessors and the periodic refresh loop
//   - recoverInstance: the recovery function the error boundary calls back into

package widget

import (
	"context"
	"fmt"
	"time"

	"github.com/go-lynx/widget/cache"
	"github.com/go-lynx/widget/events"
	"github.com/go-lynx/widget/plugins"
	"github.com/go-lynx/widget/schema"
)

// lookup returns the record and manifest of id
func (im *InstanceManager) lookup(id string) (*instance, *plugins.Manifest, error) {
	im.mu.RLock()
	inst, ok := im.instances[id]
	var pluginID string
	if ok {
		pluginID = inst.state.PluginID
	}
	im.mu.RUnlock()
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", plugins.ErrInstanceNotFound, id)
	}
	m, ok := im.plugins.GetPlugin(pluginID)
	if !ok {
		return inst, nil, fmt.Errorf("%w: %s (instance %s)", plugins.ErrPluginNotFound, pluginID, id)
	}
	return inst, m, nil
}

// UpdateInstance merges partial over the committed configuration. Failures are
// routed to the error boundary and returned; a rejected config is not committed.
func (im *InstanceManager) UpdateInstance(ctx context.Context, id string, partial schema.Config) error {
	im.mu.RLock()
	inst, ok := im.instances[id]
	var cm *ConfigManager
	if ok {
		cm = inst.config
	}
	im.mu.RUnlock()
	if !ok || cm == nil {
		err := fmt.Errorf("%w: %s", plugins.ErrInstanceNotFound, id)
		im.metrics.InstanceOp("update", err)
		return err
	}
	_, m, err := im.lookup(id)
	if err != nil {
		im.metrics.InstanceOp("update", err)
		return err
	}

	previous := cm.Config()
	next, err := cm.Update(partial)
	if err != nil {
		im.routeError(ctx, m, id, err)
		im.metrics.InstanceOp("update", err)
		return err
	}

	im.mu.RLock()
	renderer, provider := inst.renderer, inst.provider
	im.mu.RUnlock()

	if renderer != nil {
		if err := updateRenderer(m, renderer, next); err != nil {
			im.routeError(ctx, m, id, err)
			im.metrics.InstanceOp("update", err)
			return err
		}
	}
	if inv, ok := provider.(cache.Invalidator); ok {
		inv.Invalidate()
	}

	if err := im.callHook(ctx, m, plugins.HookOnConfigChange, plugins.HookContext{
		InstanceID: id, PluginID: m.ID, Config: next, Previous: previous,
	}); err != nil {
		im.routeError(ctx, m, id, err)
		im.metrics.InstanceOp("update", err)
		return err
	}

	im.startRefresh(id, next)
	im.mu.Lock()
	inst.state.LastUpdated = time.Now()
	im.mu.Unlock()

	im.metrics.InstanceOp("update", nil)
	im.emit(events.InstanceUpdated, id, previous.Diff(next))
	return nil
}

func updateRenderer(m *plugins.Manifest, r plugins.Renderer, cfg schema.Config) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = plugins.NewPluginError(m.ID, "update", "renderer panicked", &plugins.PanicError{Value: p})
		}
	}()
	if err := r.Update(cfg); err != nil {
		return plugins.NewPluginError(m.ID, "update", "renderer rejected configuration", err)
	}
	return nil
}

// RefreshInstanceData asks the provider for a fresh payload. Provider failures
// are routed to the error boundary, never returned; only an unknown id is.
func (im *InstanceManager) RefreshInstanceData(ctx context.Context, id string) error {
	im.mu.Lock()
	inst, ok := im.instances[id]
	if !ok {
		im.mu.Unlock()
		return fmt.Errorf("%w: %s", plugins.ErrInstanceNotFound, id)
	}
	p, pluginID := inst.provider, inst.state.PluginID
	if p != nil {
		inst.state.IsLoading = true
	}
	im.mu.Unlock()
	if p == nil {
		return nil
	}

	start := time.Now()
	data, err := callProvider(ctx, p.Refresh)
	im.metrics.ObserveProvider(pluginID, "refresh", start)
	if err != nil {
		m, ok := im.plugins.GetPlugin(pluginID)
		if !ok {
			// stale reference, no hooks to run
			m = &plugins.Manifest{ID: pluginID}
		}
		im.routeError(ctx, m, id, err)
		return nil
	}
	im.storeData(id, p, data)
	return nil
}

// SetInstanceVisibility flips the visible flag
func (im *InstanceManager) SetInstanceVisibility(id string, visible bool) error {
	return im.mutate(id, func(s *InstanceState) { s.IsVisible = visible })
}

// SetInstanceFocus flips the focused flag
func (im *InstanceManager) SetInstanceFocus(id string, focused bool) error {
	return im.mutate(id, func(s *InstanceState) { s.IsFocused = focused })
}

func (im *InstanceManager) mutate(id string, fn func(*InstanceState)) error {
	im.mu.Lock()
	defer im.mu.Unlock()
	inst, ok := im.instances[id]
	if !ok {
		return fmt.Errorf("%w: %s", plugins.ErrInstanceNotFound, id)
	}
	fn(&inst.state)
	return nil
}

// ResizeInstance changes the instance footprint when the plugin allows it
func (im *InstanceManager) ResizeInstance(ctx context.Context, id string, size plugins.Size) error {
	inst, m, err := im.lookup(id)
	if err != nil {
		return err
	}
	if !m.Allows(plugins.SettingAllowResize) {
		return plugins.NewPluginError(m.ID, "resize", "resizing is disabled", plugins.ErrNotAllowed)
	}

	im.mu.RLock()
	renderer := inst.renderer
	var cfg schema.Config
	if inst.config != nil {
		cfg = inst.config.Config()
	}
	im.mu.RUnlock()

	if rs, ok := renderer.(plugins.Resizer); ok {
		if err := rs.Resize(size); err != nil {
			err = plugins.NewPluginError(m.ID, "resize", "renderer rejected size", err)
			im.routeError(ctx, m, id, err)
			return err
		}
	}
	if err := im.callHook(ctx, m, plugins.HookOnResize, plugins.HookContext{
		InstanceID: id, PluginID: m.ID, Config: cfg, Size: size,
	}); err != nil {
		im.routeError(ctx, m, id, err)
		return err
	}

	return im.mutate(id, func(s *InstanceState) {
		s.Size = size
		s.Position.Width = size.Width
		s.Position.Height = size.Height
		s.LastUpdated = time.Now()
	})
}

// GetInstance returns a snapshot of the instance state
func (im *InstanceManager) GetInstance(id string) (InstanceState, bool) {
	im.mu.RLock()
	defer im.mu.RUnlock()
	inst, ok := im.instances[id]
	if !ok {
		return InstanceState{}, false
	}
	return inst.state, true
}

// GetAllInstances returns snapshots of every instance in creation order
func (im *InstanceManager) GetAllInstances() []InstanceState {
	im.mu.RLock()
	out := make([]InstanceState, 0, len(im.instances))
	for _, inst := range im.instances {
		out = append(out, inst.state)
	}
	im.mu.RUnlock()
	sortStates(out)
	return out
}

// GetInstancesByPlugin returns snapshots of pluginID's instances in creation order
func (im *InstanceManager) GetInstancesByPlugin(pluginID string) []InstanceState {
	im.mu.RLock()
	var out []InstanceState
	for _, inst := range im.instances {
		if inst.state.PluginID == pluginID {
			out = append(out, inst.state)
		}
	}
	im.mu.RUnlock()
	sortStates(out)
	return out
}

// InstanceConfig returns the committed configuration of id
func (im *InstanceManager) InstanceConfig(id string) (schema.Config, error) {
	im.mu.RLock()
	inst, ok := im.instances[id]
	var cm *ConfigManager
	if ok {
		cm = inst.config
	}
	im.mu.RUnlock()
	if cm == nil {
		return nil, fmt.Errorf("%w: %s", plugins.ErrInstanceNotFound, id)
	}
	return cm.Config(), nil
}

// Count returns the number of live instances
func (im *InstanceManager) Count() int {
	im.mu.RLock()
	defer im.mu.RUnlock()
	return len(im.instances)
}

// startRefresh (re)starts the periodic refresh of id when cfg sets refreshInterval.
func (im *InstanceManager) startRefresh(id string, cfg schema.Config) {
	interval := refreshIntervalOf(cfg)

	im.mu.Lock()
	inst, ok := im.instances[id]
	if !ok {
		im.mu.Unlock()
		return
	}
	if inst.stopRefresh != nil && inst.interval == interval {
		im.mu.Unlock()
		return
	}
	if inst.stopRefresh != nil {
		inst.stopRefresh()
		inst.stopRefresh = nil
	}
	inst.interval = interval
	if interval <= 0 || inst.provider == nil {
		im.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(im.ctx)
	inst.stopRefresh = cancel
	im.mu.Unlock()

	go im.refreshLoop(ctx, id, interval)
}

func (im *InstanceManager) refreshLoop(ctx context.Context, id string, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := im.RefreshInstanceData(ctx, id); err != nil {
				return
			}
		}
	}
}

// recoverInstance is the error boundary's recoverer: it remounts a missing
// renderer, refreshes the provider and clears the instance's error flag.
func (im *InstanceManager) recoverInstance(ctx context.Context, id string, _ ErrorInfo) error {
	inst, m, err := im.lookup(id)
	if err != nil {
		return err
	}

	im.mu.RLock()
	cm, renderer, provider := inst.config, inst.renderer, inst.provider
	requested := inst.requested
	im.mu.RUnlock()

	if cm == nil {
		if cm, err = NewConfigManager(m, requested); err != nil {
			return err
		}
	}
	cfg := cm.Config()
	if renderer == nil {
		if renderer, err = mount(m, id, cfg); err != nil {
			return err
		}
	}
	im.mu.Lock()
	inst.config = cm
	inst.renderer = renderer
	im.mu.Unlock()

	if provider == nil && m.DataProviderFactory != nil {
		if err := im.attachProvider(ctx, m, id, cfg); err != nil {
			return err
		}
		im.startRefresh(id, cfg)
	} else if provider != nil {
		data, err := callProvider(ctx, provider.Refresh)
		if err != nil {
			return err
		}
		im.storeData(id, provider, data)
	}

	if err := im.mutate(id, func(s *InstanceState) {
		s.HasError = false
		s.Err = nil
		s.IsLoading = false
		s.LastUpdated = time.Now()
	}); err != nil {
		return err
	}
	im.emit(events.InstanceRecovered, id)
	return nil
}
