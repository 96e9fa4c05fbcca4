package widget

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime/debug"
	"sort"
	"sync"
	"time"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/uuid"

	"github.com/go-lynx/widget/cache"
	"github.com/go-lynx/widget/events"
	wlog "github.com/go-lynx/widget/log"
	"github.com/go-lynx/widget/observability/metrics"
	"github.com/go-lynx/widget/plugins"
	"github.com/go-lynx/widget/schema"
)

// DefaultHookTimeout bounds a single lifecycle hook call
const DefaultHookTimeout = 5 * time.Second

// InstanceManager creates, mutates and destroys widget instances.
type InstanceManager struct {
	mu        sync.RWMutex
	instances map[string]*instance

	plugins  PluginSource
	boundary *ErrorBoundary
	bus      *events.Bus
	cache    *cache.Cache
	cacheTTL time.Duration
	metrics  *metrics.Metrics
	log      *log.Helper

	hookTimeout time.Duration

	// ctx parents the background refresh loops
	ctx    context.Context
	cancel context.CancelFunc
}

// InstanceOption configures an InstanceManager
type InstanceOption func(*InstanceManager)

// WithInstanceBus emits instance:* events on b
func WithInstanceBus(b *events.Bus) InstanceOption {
	return func(im *InstanceManager) { im.bus = b }
}

// WithProviderCache wraps every data provider with c
func WithProviderCache(c *cache.Cache, ttl time.Duration) InstanceOption {
	return func(im *InstanceManager) {
		im.cache = c
		im.cacheTTL = ttl
	}
}

// WithInstanceMetrics records instance metrics
func WithInstanceMetrics(m *metrics.Metrics) InstanceOption {
	return func(im *InstanceManager) { im.metrics = m }
}

// WithInstanceLogger sets the logger
func WithInstanceLogger(l log.Logger) InstanceOption {
	return func(im *InstanceManager) { im.log = log.NewHelper(l) }
}

// WithHookTimeout bounds every lifecycle hook call
func WithHookTimeout(d time.Duration) InstanceOption {
	return func(im *InstanceManager) {
		if d > 0 {
			im.hookTimeout = d
		}
	}
}

// NewInstanceManager creates a manager resolving plugins through src and routing
// failures to boundary. It installs itself as the boundary's recoverer.
func NewInstanceManager(src PluginSource, boundary *ErrorBoundary, opts ...InstanceOption) *InstanceManager {
	ctx, cancel := context.WithCancel(context.Background())
	im := &InstanceManager{
		instances:   make(map[string]*instance),
		plugins:     src,
		boundary:    boundary,
		log:         wlog.NewHelper(nil),
		hookTimeout: DefaultHookTimeout,
		ctx:         ctx,
		cancel:      cancel,
	}
	for _, opt := range opts {
		opt(im)
	}
	if im.boundary == nil {
		im.boundary = NewErrorBoundary()
	}
	im.boundary.SetRecoverer(im.recoverInstance)
	return im
}

// CreateInstance mounts a new instance of pluginID. cfg is merged over the plugin
// defaults; pos may be nil.
//
// A rejected configuration or a failed mount leaves the record in place with
// HasError set and returns the instance id together with the error. Provider and
// onMount failures are routed to the error boundary and do not fail creation.
func (im *InstanceManager) CreateInstance(ctx context.Context, pluginID string, cfg schema.Config, pos *plugins.Position) (string, error) {
	m, ok := im.plugins.GetPlugin(pluginID)
	if !ok {
		err := fmt.Errorf("%w: %s", plugins.ErrPluginNotFound, pluginID)
		im.metrics.InstanceOp("create", err)
		return "", err
	}

	id := uuid.NewString()
	now := time.Now()
	inst := &instance{
		requested: cfg.Clone(),
		state: InstanceState{
			ID:          id,
			PluginID:    pluginID,
			IsLoading:   true,
			IsVisible:   true,
			CreatedAt:   now,
			LastUpdated: now,
		},
	}
	if pos != nil {
		inst.state.Position = *pos
		inst.state.Size = plugins.Size{Width: pos.Width, Height: pos.Height}
	}
	size := inst.state.Size

	im.mu.Lock()
	im.instances[id] = inst
	active := len(im.instances)
	im.mu.Unlock()
	im.metrics.SetInstancesActive(active)

	cm, err := NewConfigManager(m, cfg)
	if err != nil {
		im.routeError(ctx, m, id, err)
		im.metrics.InstanceOp("create", err)
		return id, err
	}
	committed := cm.Config()

	renderer, err := mount(m, id, committed)
	if err != nil {
		im.routeError(ctx, m, id, err)
		im.metrics.InstanceOp("create", err)
		return id, err
	}

	im.mu.Lock()
	inst.config = cm
	inst.renderer = renderer
	im.mu.Unlock()

	if m.DataProviderFactory != nil {
		if err := im.attachProvider(ctx, m, id, committed); err != nil {
			im.log.Warnf("widget data unavailable: id=%s plugin=%s err=%v", id, pluginID, err)
			im.routeError(ctx, m, id, err)
		}
	}
	im.startRefresh(id, committed)

	if err := im.callHook(ctx, m, plugins.HookOnMount, plugins.HookContext{
		InstanceID: id, PluginID: pluginID, Config: committed, Size: size,
	}); err != nil {
		im.routeError(ctx, m, id, err)
	}

	im.mu.Lock()
	inst.state.IsLoading = false
	inst.state.LastUpdated = time.Now()
	im.mu.Unlock()

	im.metrics.InstanceOp("create", nil)
	im.log.Infof("widget instance created: id=%s plugin=%s", id, pluginID)
	im.emit(events.InstanceCreated, id, pluginID)
	return id, nil
}

func mount(m *plugins.Manifest, id string, cfg schema.Config) (r plugins.Renderer, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = plugins.NewPluginError(m.ID, "mount", "component panicked",
				&plugins.PanicError{Value: p, Stack: string(debug.Stack())})
		}
	}()
	r, err = m.Component.Mount(id, cfg)
	if err != nil {
		return nil, plugins.NewPluginError(m.ID, "mount", "component failed to mount", err)
	}
	if r == nil {
		return nil, plugins.NewPluginError(m.ID, "mount", "component returned no renderer", nil)
	}
	return r, nil
}

// attachProvider builds, subscribes and initially fetches the instance's data
// provider. A provider whose initial fetch failed stays attached.
func (im *InstanceManager) attachProvider(ctx context.Context, m *plugins.Manifest, id string, cfg schema.Config) error {
	p, err := newProvider(m, cfg)
	if err != nil {
		return err
	}
	if im.cache != nil {
		p = cache.WrapProvider(p, im.cache, id, im.cacheTTL)
	}

	var unsubscribe func()
	if sub, ok := plugins.PushSource(p); ok {
		unsubscribe = sub.Subscribe(func(data any) { im.storeData(id, p, data) })
	}

	im.mu.Lock()
	inst, ok := im.instances[id]
	if ok {
		inst.provider = p
		inst.unsubscribe = unsubscribe
	}
	im.mu.Unlock()
	if !ok {
		// destroyed while the provider was being built
		releaseProvider(p, unsubscribe)
		return fmt.Errorf("%w: %s", plugins.ErrInstanceNotFound, id)
	}

	start := time.Now()
	data, err := callProvider(ctx, p.Fetch)
	im.metrics.ObserveProvider(m.ID, "fetch", start)
	if err != nil {
		return err
	}
	im.storeData(id, p, data)
	return nil
}

func newProvider(m *plugins.Manifest, cfg schema.Config) (p plugins.DataProvider, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %w", plugins.ErrProvider,
				&plugins.PanicError{Value: r, Stack: string(debug.Stack())})
		}
	}()
	p, err = m.DataProviderFactory(cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", plugins.ErrProvider, err)
	}
	if p == nil {
		return nil, fmt.Errorf("%w: factory returned no provider", plugins.ErrProvider)
	}
	return p, nil
}

func callProvider(ctx context.Context, fn func(context.Context) (any, error)) (data any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %w", plugins.ErrProvider,
				&plugins.PanicError{Value: r, Stack: string(debug.Stack())})
		}
	}()
	data, err = fn(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", plugins.ErrProvider, err)
	}
	return data, nil
}

func releaseProvider(p plugins.DataProvider, unsubscribe func()) {
	if unsubscribe != nil {
		unsubscribe()
	}
	if inv, ok := p.(cache.Invalidator); ok {
		inv.Invalidate()
	}
	if c, ok := p.(io.Closer); ok {
		_ = c.Close()
	}
}

// storeData commits a payload unless the provider's validator rejects it.
// Late payloads for destroyed instances are dropped.
func (im *InstanceManager) storeData(id string, p plugins.DataProvider, data any) {
	if v, ok := p.(plugins.DataValidator); ok && !v.Validate(data) {
		im.log.Warnf("widget payload rejected by provider validator: id=%s", id)
		return
	}
	im.mu.Lock()
	inst, ok := im.instances[id]
	if ok {
		inst.state.Data = data
		inst.state.IsLoading = false
		inst.state.LastUpdated = time.Now()
	}
	im.mu.Unlock()
	if ok {
		im.emit(events.InstanceData, id, data)
	}
}

// DestroyInstance runs onUnmount, removes the instance and releases its renderer,
// provider, refresh loop and pending recovery.
func (im *InstanceManager) DestroyInstance(ctx context.Context, id string) error {
	im.mu.RLock()
	inst, ok := im.instances[id]
	var pluginID string
	var cfg schema.Config
	if ok {
		pluginID = inst.state.PluginID
		if inst.config != nil {
			cfg = inst.config.Config()
		}
	}
	im.mu.RUnlock()
	if !ok {
		err := fmt.Errorf("%w: %s", plugins.ErrInstanceNotFound, id)
		im.metrics.InstanceOp("destroy", err)
		return err
	}

	if m, ok := im.plugins.GetPlugin(pluginID); ok {
		if err := im.callHook(ctx, m, plugins.HookOnUnmount, plugins.HookContext{
			InstanceID: id, PluginID: pluginID, Config: cfg,
		}); err != nil {
			im.log.Warnf("widget onUnmount failed: id=%s plugin=%s err=%v", id, pluginID, err)
		}
	}

	im.mu.Lock()
	inst, ok = im.instances[id]
	if !ok {
		im.mu.Unlock()
		return fmt.Errorf("%w: %s", plugins.ErrInstanceNotFound, id)
	}
	delete(im.instances, id)
	active := len(im.instances)
	renderer, provider := inst.renderer, inst.provider
	unsubscribe, stop := inst.unsubscribe, inst.stopRefresh
	im.mu.Unlock()

	if renderer != nil {
		if err := safeUnmount(renderer); err != nil {
			im.log.Warnf("widget unmount failed: id=%s err=%v", id, err)
		}
	}
	if stop != nil {
		stop()
	}
	if provider != nil || unsubscribe != nil {
		releaseProvider(provider, unsubscribe)
	}
	im.boundary.ClearError(id)

	im.metrics.SetInstancesActive(active)
	im.metrics.InstanceOp("destroy", nil)
	im.log.Infof("widget instance destroyed: id=%s plugin=%s", id, pluginID)
	im.emit(events.InstanceDestroyed, id, pluginID)
	return nil
}

func safeUnmount(r plugins.Renderer) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = &plugins.PanicError{Value: p, Stack: string(debug.Stack())}
		}
	}()
	return r.Unmount()
}

// DestroyInstancesOf destroys every instance of pluginID
func (im *InstanceManager) DestroyInstancesOf(pluginID string) error {
	var errs []error
	for _, s := range im.GetInstancesByPlugin(pluginID) {
		if err := im.DestroyInstance(context.Background(), s.ID); err != nil && !errors.Is(err, plugins.ErrInstanceNotFound) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close destroys every instance and stops the background refresh loops
func (im *InstanceManager) Close() error {
	var errs []error
	for _, s := range im.GetAllInstances() {
		if err := im.DestroyInstance(context.Background(), s.ID); err != nil && !errors.Is(err, plugins.ErrInstanceNotFound) {
			errs = append(errs, err)
		}
	}
	im.cancel()
	return errors.Join(errs...)
}

// routeError marks the instance failed, hands err to the boundary and runs onError
func (im *InstanceManager) routeError(ctx context.Context, m *plugins.Manifest, id string, err error) {
	im.mu.Lock()
	inst, ok := im.instances[id]
	if ok {
		inst.state.HasError = true
		inst.state.Err = err
		inst.state.IsLoading = false
	}
	im.mu.Unlock()
	if !ok {
		return
	}

	im.boundary.HandleError(err, id)
	im.metrics.InstanceError(m.ID, plugins.ErrorName(err))
	if hookErr := im.callHook(ctx, m, plugins.HookOnError, plugins.HookContext{
		InstanceID: id, PluginID: m.ID, Err: err,
	}); hookErr != nil {
		im.log.Warnf("widget onError failed: id=%s plugin=%s err=%v", id, m.ID, hookErr)
	}
	im.emit(events.InstanceError, id, err)
}

// callHook runs a lifecycle hook with panic protection, bounded by the hook timeout
func (im *InstanceManager) callHook(ctx context.Context, m *plugins.Manifest, name string, hc plugins.HookContext) error {
	hook := m.Hook(name)
	if hook == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, im.hookTimeout)
	defer cancel()

	// buffered so a hook finishing after the timeout does not block
	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				stack := string(debug.Stack())
				im.log.Errorf("panic in %s of %s: %v\n%s", name, m.ID, r, stack)
				done <- plugins.NewPluginError(m.ID, name, "hook panicked", &plugins.PanicError{Value: r, Stack: stack})
			}
		}()
		if err := hook(ctx, hc); err != nil {
			done <- plugins.NewPluginError(m.ID, name, "hook failed", err)
			return
		}
		done <- nil
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return plugins.NewPluginError(m.ID, name, "hook did not finish", ctx.Err())
	}
}

func (im *InstanceManager) emit(name events.Name, args ...any) {
	if im.bus == nil {
		return
	}
	if err := im.bus.Emit(name, args...); err != nil {
		im.log.Warnf("instance event %s not delivered: %v", name, err)
	}
}

func sortStates(states []InstanceState) {
	sort.Slice(states, func(i, j int) bool {
		if !states[i].CreatedAt.Equal(states[j].CreatedAt) {
			return states[i].CreatedAt.Before(states[j].CreatedAt)
		}
		return states[i].ID < states[j].ID
	})
}
