package widget

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/zclconf/go-cty/cty"

	"github.com/go-lynx/widget/events"
	"github.com/go-lynx/widget/plugins"
	"github.com/go-lynx/widget/schema"
)

func weatherManifest(id string) *plugins.Manifest {
	return &plugins.Manifest{
		ID:          id,
		Name:        "Weather",
		Description: "Current conditions for a city",
		Version:     "1.2.0",
		Category:    "information",
		Tags:        []string{"forecast", "outdoor"},
		DefaultConfig: schema.Config{
			"city":  "Berlin",
			"units": "metric",
		},
		ConfigSchema: &schema.Object{
			Fields: map[string]schema.Field{
				"city":            {Type: cty.String, Required: true},
				"units":           {Type: cty.String, Enum: []string{"metric", "imperial"}},
				"refreshInterval": {Type: cty.Number, Min: schema.Float(0)},
			},
		},
		Component: plugins.HeadlessComponent{},
		Settings:  map[string]any{plugins.SettingAllowResize: true},
	}
}

// fakeProvider serves a fixed payload and counts calls
type fakeProvider struct {
	mu        sync.Mutex
	value     any
	err       error
	fetches   int
	refreshes int
	closed    bool
	listeners []func(any)
}

func (p *fakeProvider) Fetch(ctx context.Context) (any, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fetches++
	return p.value, p.err
}

func (p *fakeProvider) Refresh(ctx context.Context) (any, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.refreshes++
	return p.value, p.err
}

func (p *fakeProvider) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	return nil
}

func (p *fakeProvider) set(value any, err error) {
	p.mu.Lock()
	p.value, p.err = value, err
	p.mu.Unlock()
}

func (p *fakeProvider) counts() (fetches, refreshes int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.fetches, p.refreshes
}

// pushingProvider adds the push capability
type pushingProvider struct {
	fakeProvider
	unsubscribed bool
}

func (p *pushingProvider) Subscribe(fn func(any)) func() {
	p.mu.Lock()
	p.listeners = append(p.listeners, fn)
	p.mu.Unlock()
	return func() {
		p.mu.Lock()
		p.unsubscribed = true
		p.listeners = nil
		p.mu.Unlock()
	}
}

func (p *pushingProvider) push(v any) {
	p.mu.Lock()
	ls := append([]func(any){}, p.listeners...)
	p.mu.Unlock()
	for _, fn := range ls {
		fn(v)
	}
}

// netErr is a non-timeout network failure
type netErr struct{}

func (netErr) Error() string   { return "connection refused" }
func (netErr) Timeout() bool   { return false }
func (netErr) Temporary() bool { return true }

var errBoom = errors.New("boom")

type harness struct {
	bus      *events.Bus
	boundary *ErrorBoundary
	registry *Registry
	im       *InstanceManager
}

func newHarness(t *testing.T, opts ...BoundaryOption) *harness {
	t.Helper()
	bus := events.NewBus()
	boundary := NewErrorBoundary(append([]BoundaryOption{WithRecoveryDelay(0)}, opts...)...)
	reg := NewRegistry(WithRegistryBus(bus))
	im := NewInstanceManager(reg, boundary, WithInstanceBus(bus))
	reg.SetTeardown(im)
	t.Cleanup(func() {
		_ = im.Close()
		boundary.Close()
		_ = bus.Close()
	})
	return &harness{bus: bus, boundary: boundary, registry: reg, im: im}
}
