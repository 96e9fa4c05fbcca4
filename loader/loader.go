// Package loader turns manifest files and built-in manifests into registry
// admissions, and keeps them current through hot reload.
package loader

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/go-kratos/kratos/v2/log"

	"github.com/go-lynx/widget/factory"
	wlog "github.com/go-lynx/widget/log"
	"github.com/go-lynx/widget/plugins"
)

// BuiltinPrefix marks a path that names a built-in manifest instead of a file
const BuiltinPrefix = "builtin:"

// ErrInvalidPath indicates a path rejected by ValidatePluginStructure
var ErrInvalidPath = fmt.Errorf("%w: invalid plugin path", plugins.ErrValidation)

// Registrar admits and removes manifests
type Registrar interface {
	Register(m *plugins.Manifest) error
	Unregister(id string) error
}

// Loader caches parsed manifests by path and tracks which plugin came from where.
type Loader struct {
	mu     sync.Mutex
	cache  map[string]*plugins.Manifest
	loaded map[string]string // plugin id -> path

	catalog   *factory.Catalog
	registrar Registrar
	workers   int
	log       *log.Helper
}

// Option configures a Loader
type Option func(*Loader)

// WithLogger sets the logger
func WithLogger(l log.Logger) Option {
	return func(ld *Loader) { ld.log = log.NewHelper(l) }
}

// WithWorkers sets the Discover pool size
func WithWorkers(n int) Option {
	return func(ld *Loader) {
		if n > 0 {
			ld.workers = n
		}
	}
}

// New creates a loader resolving names through catalog and admitting through registrar
func New(catalog *factory.Catalog, registrar Registrar, opts ...Option) *Loader {
	ld := &Loader{
		cache:     make(map[string]*plugins.Manifest),
		loaded:    make(map[string]string),
		catalog:   catalog,
		registrar: registrar,
		workers:   4,
		log:       wlog.NewHelper(nil),
	}
	for _, opt := range opts {
		opt(ld)
	}
	return ld
}

// ValidatePluginStructure rejects paths before any load is attempted.
func ValidatePluginStructure(path string) error {
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("%w: empty path", ErrInvalidPath)
	}
	if strings.ContainsRune(path, 0) {
		return fmt.Errorf("%w: NUL byte in path", ErrInvalidPath)
	}
	if id, ok := strings.CutPrefix(path, BuiltinPrefix); ok {
		if err := plugins.ValidatePluginID(id); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidPath, err)
		}
		return nil
	}
	for _, seg := range strings.FieldsFunc(path, func(r rune) bool { return r == '/' || r == '\\' }) {
		if seg == ".." {
			return fmt.Errorf("%w: %q traverses upwards", ErrInvalidPath, path)
		}
	}
	if _, ok := FormatOf(path); !ok {
		return fmt.Errorf("%w: unsupported extension %q", ErrInvalidPath, filepath.Ext(path))
	}
	return nil
}

// LoadPlugin parses the manifest at path. A path loaded before is served from
// the cache without parsing. A second path declaring an id that is already
// loaded fails with ErrAlreadyExists and is not cached.
func (ld *Loader) LoadPlugin(path string) (*plugins.Manifest, error) {
	m, err := ld.read(path)
	if err != nil {
		return nil, err
	}
	return ld.remember(path, m)
}

// read returns the cached manifest of path or parses it, without caching
func (ld *Loader) read(path string) (*plugins.Manifest, error) {
	if err := ValidatePluginStructure(path); err != nil {
		return nil, err
	}
	ld.mu.Lock()
	m, ok := ld.cache[path]
	ld.mu.Unlock()
	if ok {
		return m, nil
	}
	m, err := ld.parse(path)
	if err != nil {
		return nil, err
	}
	if m.Source == "" {
		m.Source = path
	}
	return m, nil
}

// remember caches m as the manifest of path and records where its id came from
func (ld *Loader) remember(path string, m *plugins.Manifest) (*plugins.Manifest, error) {
	ld.mu.Lock()
	defer ld.mu.Unlock()
	if cached, ok := ld.cache[path]; ok {
		return cached, nil
	}
	if other, ok := ld.loaded[m.ID]; ok && other != path {
		return nil, fmt.Errorf("%w: plugin %s in %s is already loaded from %s", plugins.ErrAlreadyExists, m.ID, path, other)
	}
	ld.cache[path] = m
	ld.loaded[m.ID] = path
	return m, nil
}

func (ld *Loader) parse(path string) (*plugins.Manifest, error) {
	if id, ok := strings.CutPrefix(path, BuiltinPrefix); ok {
		m, err := ld.catalog.Builtin(id)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", plugins.ErrPluginNotFound, err)
		}
		return m, nil
	}
	format, _ := FormatOf(path)
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read plugin manifest %s: %w", path, err)
	}
	return Decode(ld.catalog, format, path, src)
}

// UnloadPlugin forgets the cached manifest of id. The registry is not touched.
func (ld *Loader) UnloadPlugin(id string) bool {
	ld.mu.Lock()
	defer ld.mu.Unlock()
	path, ok := ld.loaded[id]
	if !ok {
		return false
	}
	delete(ld.loaded, id)
	delete(ld.cache, path)
	return true
}

// PathOf returns the path id was loaded from
func (ld *Loader) PathOf(id string) (string, bool) {
	ld.mu.Lock()
	defer ld.mu.Unlock()
	p, ok := ld.loaded[id]
	return p, ok
}

// Loaded returns the ids of loaded plugins, sorted
func (ld *Loader) Loaded() []string {
	ld.mu.Lock()
	out := make([]string, 0, len(ld.loaded))
	for id := range ld.loaded {
		out = append(out, id)
	}
	ld.mu.Unlock()
	sort.Strings(out)
	return out
}

// Install loads path and registers the manifest
func (ld *Loader) Install(path string) (*plugins.Manifest, error) {
	m, err := ld.LoadPlugin(path)
	if err != nil {
		return nil, err
	}
	if err := ld.registrar.Register(m); err != nil {
		ld.UnloadPlugin(m.ID)
		return nil, err
	}
	ld.log.Infof("plugin installed: id=%s source=%s", m.ID, m.Source)
	return m, nil
}

// InstallBuiltin installs the built-in manifest id
func (ld *Loader) InstallBuiltin(id string) (*plugins.Manifest, error) {
	return ld.Install(BuiltinPrefix + id)
}

// InstallBuiltins installs every built-in the catalog knows, continuing past failures
func (ld *Loader) InstallBuiltins() error {
	var errs []error
	for _, id := range ld.catalog.Builtins() {
		if _, err := ld.InstallBuiltin(id); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Uninstall unregisters id and forgets its manifest
func (ld *Loader) Uninstall(id string) error {
	err := ld.registrar.Unregister(id)
	ld.UnloadPlugin(id)
	if err != nil {
		return err
	}
	ld.log.Infof("plugin uninstalled: id=%s", id)
	return nil
}

// HotReload re-reads id from its original path: unload, unregister, reload,
// register. A failure at any step leaves the plugin unregistered.
func (ld *Loader) HotReload(id string) error {
	path, ok := ld.PathOf(id)
	if !ok {
		return fmt.Errorf("%w: %s was not loaded", plugins.ErrPluginNotFound, id)
	}
	ld.mu.Lock()
	prev := ld.cache[path]
	ld.mu.Unlock()
	ld.UnloadPlugin(id)
	if err := ld.registrar.Unregister(id); err != nil && !errors.Is(err, plugins.ErrPluginNotRegistered) {
		return fmt.Errorf("hot reload %s: unregister: %w", id, err)
	}
	m, err := ld.LoadPlugin(path)
	if err != nil {
		ld.log.Errorf("hot reload failed, plugin %s stays unregistered: %v", id, err)
		return fmt.Errorf("hot reload %s: load: %w", id, err)
	}
	if m.ID != id {
		ld.UnloadPlugin(m.ID)
		return fmt.Errorf("%w: hot reload %s: %s now declares id %s", plugins.ErrManifestInvalid, id, path, m.ID)
	}
	if err := ld.registrar.Register(m); err != nil {
		ld.UnloadPlugin(id)
		ld.log.Errorf("hot reload failed, plugin %s stays unregistered: %v", id, err)
		return fmt.Errorf("hot reload %s: register: %w", id, err)
	}
	if prev != nil {
		ld.warnDowngrade(id, prev.Version, m.Version)
	}
	ld.log.Infof("plugin hot reloaded: id=%s version=%s", id, m.Version)
	return nil
}

func (ld *Loader) warnDowngrade(id, from, to string) {
	old, err := plugins.ParseVersion(from)
	if err != nil {
		return
	}
	cur, err := plugins.ParseVersion(to)
	if err != nil {
		return
	}
	if cur.Compare(old) < 0 {
		ld.log.Warnf("plugin %s was downgraded by hot reload: %s -> %s", id, old, cur)
	}
}
