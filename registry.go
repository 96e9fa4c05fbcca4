package widget

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/go-kratos/kratos/v2/log"

	"github.com/go-lynx/widget/events"
	wlog "github.com/go-lynx/widget/log"
	"github.com/go-lynx/widget/observability/metrics"
	"github.com/go-lynx/widget/plugins"
	"github.com/go-lynx/widget/validation"
)

// InstanceTeardown destroys the live instances of a plugin before it leaves the registry
type InstanceTeardown interface {
	DestroyInstancesOf(pluginID string) error
}

// Registry is the catalog of admitted plugin manifests with a category index.
type Registry struct {
	mu         sync.RWMutex
	plugins    map[string]*plugins.Manifest
	categories map[string]map[string]struct{}

	validator *validation.Validator
	teardown  InstanceTeardown
	bus       *events.Bus
	metrics   *metrics.Metrics
	log       *log.Helper
}

// RegistryOption configures a Registry
type RegistryOption func(*Registry)

// WithValidator replaces the default validator
func WithValidator(v *validation.Validator) RegistryOption {
	return func(r *Registry) { r.validator = v }
}

// WithTeardown sets the instance teardown used by Unregister
func WithTeardown(t InstanceTeardown) RegistryOption {
	return func(r *Registry) { r.teardown = t }
}

// WithRegistryBus emits plugin:registered and plugin:unregistered
func WithRegistryBus(b *events.Bus) RegistryOption {
	return func(r *Registry) { r.bus = b }
}

// WithRegistryMetrics keeps the registered-plugins gauge current
func WithRegistryMetrics(m *metrics.Metrics) RegistryOption {
	return func(r *Registry) { r.metrics = m }
}

// WithRegistryLogger sets the logger
func WithRegistryLogger(l log.Logger) RegistryOption {
	return func(r *Registry) { r.log = log.NewHelper(l) }
}

// NewRegistry creates an empty registry
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		plugins:    make(map[string]*plugins.Manifest),
		categories: make(map[string]map[string]struct{}),
		validator:  validation.New(validation.DefaultOptions()),
		log:        wlog.NewHelper(nil),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// SetTeardown sets the instance teardown after construction, for the
// registry/instance-manager cycle at the composition root.
func (r *Registry) SetTeardown(t InstanceTeardown) {
	r.mu.Lock()
	r.teardown = t
	r.mu.Unlock()
}

// Register validates and admits m. A duplicate id is logged and ignored;
// the first manifest is retained.
func (r *Registry) Register(m *plugins.Manifest) error {
	report := r.validator.Validate(m)
	if !report.Valid() {
		err := fmt.Errorf("%w: %v", plugins.ErrManifestInvalid, report.Structure.Err())
		r.metrics.PluginAdmission(err)
		r.log.Errorf("plugin rejected: id=%s err=%v", report.PluginID, err)
		return err
	}
	for _, w := range report.Structure.Warnings {
		r.log.Warnf("plugin manifest warning: id=%s %s", m.ID, w)
	}
	for _, risk := range report.Security.Risks {
		r.log.Warnw("msg", "plugin security risk",
			"plugin_id", m.ID,
			"code", risk.Code,
			"severity", string(risk.Severity),
			"detail", risk.Message)
	}
	for _, s := range report.Performance.Suggestions {
		r.log.Infof("plugin performance suggestion: id=%s score=%d %s", m.ID, report.Performance.Score, s)
	}

	r.mu.Lock()
	if _, exists := r.plugins[m.ID]; exists {
		r.mu.Unlock()
		r.log.Warnf("plugin %s: %v, keeping the registered manifest", m.ID, plugins.ErrAlreadyExists)
		return nil
	}
	r.plugins[m.ID] = m
	idx, ok := r.categories[m.Category]
	if !ok {
		idx = make(map[string]struct{})
		r.categories[m.Category] = idx
	}
	idx[m.ID] = struct{}{}
	count := len(r.plugins)
	r.mu.Unlock()

	r.metrics.PluginAdmission(nil)
	r.metrics.SetPluginsRegistered(count)
	r.log.Infof("plugin registered: id=%s version=%s category=%s", m.ID, m.Version, m.Category)
	r.emit(events.PluginRegistered, m.ID, m.Version)
	return nil
}

// Unregister destroys the plugin's live instances, then removes it.
func (r *Registry) Unregister(id string) error {
	r.mu.RLock()
	_, ok := r.plugins[id]
	teardown := r.teardown
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", plugins.ErrPluginNotRegistered, id)
	}

	if teardown != nil {
		if err := teardown.DestroyInstancesOf(id); err != nil {
			r.log.Warnf("plugin %s: instance teardown incomplete: %v", id, err)
		}
	}

	r.mu.Lock()
	m, ok := r.plugins[id]
	if ok {
		delete(r.plugins, id)
		if idx := r.categories[m.Category]; idx != nil {
			delete(idx, id)
			if len(idx) == 0 {
				delete(r.categories, m.Category)
			}
		}
	}
	count := len(r.plugins)
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", plugins.ErrPluginNotRegistered, id)
	}

	r.metrics.SetPluginsRegistered(count)
	r.log.Infof("plugin unregistered: id=%s", id)
	r.emit(events.PluginUnregistered, id)
	return nil
}

func (r *Registry) emit(name events.Name, args ...any) {
	if r.bus == nil {
		return
	}
	if err := r.bus.Emit(name, args...); err != nil {
		r.log.Warnf("registry event %s not delivered: %v", name, err)
	}
}

// GetPlugin returns the admitted manifest with id
func (r *Registry) GetPlugin(id string) (*plugins.Manifest, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.plugins[id]
	return m, ok
}

// GetAllPlugins returns every admitted manifest sorted by id
func (r *Registry) GetAllPlugins() []*plugins.Manifest {
	r.mu.RLock()
	out := make([]*plugins.Manifest, 0, len(r.plugins))
	for _, m := range r.plugins {
		out = append(out, m)
	}
	r.mu.RUnlock()
	sortByID(out)
	return out
}

// GetPluginsByCategory returns the manifests of category sorted by id
func (r *Registry) GetPluginsByCategory(category string) []*plugins.Manifest {
	r.mu.RLock()
	idx := r.categories[category]
	out := make([]*plugins.Manifest, 0, len(idx))
	for id := range idx {
		out = append(out, r.plugins[id])
	}
	r.mu.RUnlock()
	sortByID(out)
	return out
}

// SearchPlugins matches query case-insensitively against name, description, tags and category
func (r *Registry) SearchPlugins(query string) []*plugins.Manifest {
	q := strings.ToLower(query)
	var out []*plugins.Manifest
	for _, m := range r.GetAllPlugins() {
		if matches(m, q) {
			out = append(out, m)
		}
	}
	return out
}

func matches(m *plugins.Manifest, q string) bool {
	if strings.Contains(strings.ToLower(m.Name), q) ||
		strings.Contains(strings.ToLower(m.Description), q) ||
		strings.Contains(strings.ToLower(m.Category), q) {
		return true
	}
	for _, tag := range m.Tags {
		if strings.Contains(strings.ToLower(tag), q) {
			return true
		}
	}
	return false
}

// Categories returns the indexed categories, sorted
func (r *Registry) Categories() []string {
	r.mu.RLock()
	out := make([]string, 0, len(r.categories))
	for c := range r.categories {
		out = append(out, c)
	}
	r.mu.RUnlock()
	sort.Strings(out)
	return out
}

// Count returns the number of admitted plugins
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.plugins)
}

func sortByID(ms []*plugins.Manifest) {
	sort.Slice(ms, func(i, j int) bool { return ms[i].ID < ms[j].ID })
}
