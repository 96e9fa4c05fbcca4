package plugins

import (
	"sync"

	"github.com/go-lynx/widget/schema"
)

// HeadlessComponent mounts renderers that only remember their configuration.
// Hosts without a UI surface, and tests, use it as the component reference.
type HeadlessComponent struct{}

// Mount returns a HeadlessRenderer bound to cfg
func (HeadlessComponent) Mount(instanceID string, cfg schema.Config) (Renderer, error) {
	return &HeadlessRenderer{InstanceID: instanceID, cfg: cfg.Clone(), mounted: true}, nil
}

// HeadlessRenderer records the state a real surface would display
type HeadlessRenderer struct {
	InstanceID string

	mu      sync.Mutex
	cfg     schema.Config
	size    Size
	mounted bool
	updates int
}

func (r *HeadlessRenderer) Update(cfg schema.Config) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cfg = cfg.Clone()
	r.updates++
	return nil
}

func (r *HeadlessRenderer) Resize(size Size) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.size = size
	return nil
}

func (r *HeadlessRenderer) Unmount() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mounted = false
	return nil
}

// Config returns the last configuration pushed to the renderer
func (r *HeadlessRenderer) Config() schema.Config {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cfg.Clone()
}

// Mounted reports whether Unmount has not been called yet
func (r *HeadlessRenderer) Mounted() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.mounted
}

// Updates returns how many configuration updates were received
func (r *HeadlessRenderer) Updates() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.updates
}
