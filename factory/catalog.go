// Package factory resolves the names used in manifest files to Go implementations:
// components, data-provider factories, lifecycle hook sets and built-in manifests.
package factory

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/go-lynx/widget/plugins"
)

var (
	// ErrUnknownName indicates a name that nothing was registered under
	ErrUnknownName = errors.New("factory: unknown name")
	// ErrDuplicateName indicates a second registration under the same name
	ErrDuplicateName = errors.New("factory: name already registered")
)

// HookSet is a named group of lifecycle hooks a manifest file can reference
type HookSet map[string]plugins.Hook

// ManifestFunc builds a fresh built-in manifest
type ManifestFunc func() *plugins.Manifest

// Catalog maps names to implementations. It is safe for concurrent use.
type Catalog struct {
	mu         sync.RWMutex
	components map[string]plugins.Component
	providers  map[string]plugins.ProviderFactory
	hooks      map[string]HookSet
	builtins   map[string]ManifestFunc

	// categories maps a category to the built-in ids that declare it
	categories map[string][]string
}

// NewCatalog creates an empty catalog. The headless component is always
// available under the name "headless".
func NewCatalog() *Catalog {
	c := &Catalog{
		components: make(map[string]plugins.Component),
		providers:  make(map[string]plugins.ProviderFactory),
		hooks:      make(map[string]HookSet),
		builtins:   make(map[string]ManifestFunc),
		categories: make(map[string][]string),
	}
	c.components["headless"] = plugins.HeadlessComponent{}
	return c
}

// RegisterComponent names a component
func (c *Catalog) RegisterComponent(name string, comp plugins.Component) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.components[name]; exists {
		return fmt.Errorf("%w: component %s", ErrDuplicateName, name)
	}
	c.components[name] = comp
	return nil
}

// RegisterProvider names a data-provider factory
func (c *Catalog) RegisterProvider(name string, f plugins.ProviderFactory) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.providers[name]; exists {
		return fmt.Errorf("%w: provider %s", ErrDuplicateName, name)
	}
	c.providers[name] = f
	return nil
}

// RegisterHooks names a hook set
func (c *Catalog) RegisterHooks(name string, hs HookSet) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.hooks[name]; exists {
		return fmt.Errorf("%w: hooks %s", ErrDuplicateName, name)
	}
	c.hooks[name] = hs
	return nil
}

// RegisterBuiltin adds a built-in manifest. The manifest is built once to index its category.
func (c *Catalog) RegisterBuiltin(fn ManifestFunc) error {
	m := fn()
	if m == nil {
		return fmt.Errorf("%w: builtin returned no manifest", ErrUnknownName)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.builtins[m.ID]; exists {
		return fmt.Errorf("%w: builtin %s", ErrDuplicateName, m.ID)
	}
	c.builtins[m.ID] = fn
	c.categories[m.Category] = append(c.categories[m.Category], m.ID)
	return nil
}

// MustRegisterBuiltin is RegisterBuiltin for package init code. It panics on a duplicate.
func (c *Catalog) MustRegisterBuiltin(fn ManifestFunc) {
	if err := c.RegisterBuiltin(fn); err != nil {
		panic(err)
	}
}

// Component resolves a component name
func (c *Catalog) Component(name string) (plugins.Component, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	comp, ok := c.components[name]
	if !ok {
		return nil, fmt.Errorf("%w: component %s", ErrUnknownName, name)
	}
	return comp, nil
}

// Provider resolves a provider name
func (c *Catalog) Provider(name string) (plugins.ProviderFactory, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	f, ok := c.providers[name]
	if !ok {
		return nil, fmt.Errorf("%w: provider %s", ErrUnknownName, name)
	}
	return f, nil
}

// Hooks resolves a hook-set name. The returned set is a copy.
func (c *Catalog) Hooks(name string) (HookSet, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	hs, ok := c.hooks[name]
	if !ok {
		return nil, fmt.Errorf("%w: hooks %s", ErrUnknownName, name)
	}
	out := make(HookSet, len(hs))
	for k, v := range hs {
		out[k] = v
	}
	return out, nil
}

// Builtin builds a fresh copy of the built-in manifest id
func (c *Catalog) Builtin(id string) (*plugins.Manifest, error) {
	c.mu.RLock()
	fn, ok := c.builtins[id]
	c.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: builtin %s", ErrUnknownName, id)
	}
	m := fn()
	m.Source = "builtin:" + id
	return m, nil
}

// HasBuiltin reports whether id names a built-in manifest
func (c *Catalog) HasBuiltin(id string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.builtins[id]
	return ok
}

// Builtins returns the built-in ids, sorted
func (c *Catalog) Builtins() []string {
	c.mu.RLock()
	out := make([]string, 0, len(c.builtins))
	for id := range c.builtins {
		out = append(out, id)
	}
	c.mu.RUnlock()
	sort.Strings(out)
	return out
}

// BuiltinCategories maps each category to the built-in ids declaring it
func (c *Catalog) BuiltinCategories() map[string][]string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string][]string, len(c.categories))
	for k, v := range c.categories {
		ids := append([]string(nil), v...)
		sort.Strings(ids)
		out[k] = ids
	}
	return out
}
