package boot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-lynx/widget/builtin"
	"github.com/go-lynx/widget/events"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func testConf() Conf {
	c := DefaultConf()
	c.Application.Name = "widgetd-test"
	c.Log.Console = false
	c.Recovery.Delay = "1h"
	return c
}

func newTestApp(t *testing.T, c Conf, opts ...Option) *Application {
	t.Helper()
	opts = append([]Option{WithLogWriter(io.Discard)}, opts...)
	app, err := New(c, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close() })
	return app
}

func TestNewRejectsInvalidConf(t *testing.T) {
	c := testConf()
	c.Application.Name = " "
	c.Cache.TTL = "soon"
	c.Events.RateLimit = -1
	_, err := New(c)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "widget.application.name")
	assert.Contains(t, err.Error(), "widget.cache.ttl")
	assert.Contains(t, err.Error(), "widget.events.rate_limit")
}

func TestStartInstallsBuiltinsAndDiscoveredPlugins(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "todo.yaml"), []byte(
		"id: todo\nname: Todo\nversion: 1.0.0\ncategory: productivity\nhooks: notes\n"), 0o644))

	c := testConf()
	c.Loader.Dirs = []string{dir}
	app := newTestApp(t, c)
	require.NoError(t, app.Start())

	for _, id := range []string{"calendar", "clock", "notes", "timer", "weather", "todo"} {
		_, ok := app.Registry.GetPlugin(id)
		assert.True(t, ok, id)
	}
	assert.Equal(t, 6, app.Registry.Count())
}

func TestBuiltinWidgetEndToEnd(t *testing.T) {
	c := testConf()
	c.Cache.Enabled = true
	sources := builtin.Sources{
		Tick: 10 * time.Millisecond,
		Weather: func(ctx context.Context, city, units string) (builtin.Weather, error) {
			return builtin.Weather{City: city, Units: units, Temperature: 4}, nil
		},
	}
	app := newTestApp(t, c, WithSources(sources))
	require.NoError(t, app.Start())

	var mu sync.Mutex
	var created []string
	app.Bus.On(events.InstanceCreated, func(args ...any) {
		mu.Lock()
		created = append(created, args[0].(string))
		mu.Unlock()
	})

	ctx := t.Context()
	weatherID, err := app.Instances.CreateInstance(ctx, "weather", map[string]any{"city": "Oslo"}, nil)
	require.NoError(t, err)
	st, ok := app.Instances.GetInstance(weatherID)
	require.True(t, ok)
	assert.False(t, st.HasError)
	assert.Equal(t, "Oslo", st.Data.(builtin.Weather).City)

	clockID, err := app.Instances.CreateInstance(ctx, "clock", map[string]any{"timezone": "UTC"}, nil)
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		st, _ := app.Instances.GetInstance(clockID)
		_, ok := st.Data.(builtin.ClockData)
		return ok
	}, time.Second, 10*time.Millisecond)

	calendarID, err := app.Instances.CreateInstance(ctx, "calendar", nil, nil)
	require.NoError(t, err, "a missing source fails the provider, not the instance")
	st, _ = app.Instances.GetInstance(calendarID)
	assert.True(t, st.HasError)
	assert.True(t, app.Boundary.HasError(calendarID))

	mu.Lock()
	assert.ElementsMatch(t, []string{weatherID, clockID, calendarID}, created)
	mu.Unlock()

	require.NoError(t, app.Loader.Uninstall("clock"))
	_, ok = app.Instances.GetInstance(clockID)
	assert.False(t, ok, "uninstall tears down live instances")
}

func TestHealthReportsExhaustedInstances(t *testing.T) {
	c := testConf()
	c.Recovery.MaxAttempts = 1
	c.Recovery.Delay = "0s"
	app := newTestApp(t, c)
	require.NoError(t, app.Start())

	h := app.health.Check()
	assert.True(t, h.Healthy)
	assert.Equal(t, 5, h.Plugins)

	id, err := app.Instances.CreateInstance(t.Context(), "calendar", nil, nil)
	require.NoError(t, err)
	assert.False(t, app.Boundary.RecoverInstance(t.Context(), id), "recovery fails without a source")
	assert.False(t, app.Boundary.RecoverInstance(t.Context(), id))

	h = app.health.Check()
	assert.False(t, h.Healthy)
	assert.Equal(t, []string{id}, h.Exhausted)
	require.NotEmpty(t, h.RecentErrors)
	assert.Equal(t, id, h.RecentErrors[0].Instance)
	assert.Contains(t, h.RecentErrors[0].Error, builtin.ErrNoSource.Error())
	assert.Equal(t, h, app.Health())
}

func TestMetricsAndHealthEndpoints(t *testing.T) {
	c := testConf()
	c.Metrics.Enabled = true
	c.Metrics.Addr = "127.0.0.1:0"
	app := newTestApp(t, c)
	require.NoError(t, app.Start())
	require.NotNil(t, app.MetricsAddr())
	base := fmt.Sprintf("http://%s", app.MetricsAddr())

	resp, err := http.Get(base + "/healthz")
	require.NoError(t, err)
	var h Health
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&h))
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, h.Healthy)

	resp, err = http.Get(base + "/metrics")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Contains(t, string(body), "widget_plugins_registered 5")

	require.NoError(t, app.Close())
	require.NoError(t, app.Close())
	_, err = http.Get(base + "/healthz")
	assert.Error(t, err)
}

func TestRunStopsOnCancel(t *testing.T) {
	app := newTestApp(t, testConf())
	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()

	require.Eventually(t, func() bool { return app.Registry.Count() == 5 }, time.Second, 10*time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestApplyRecovery(t *testing.T) {
	app := newTestApp(t, testConf())
	app.applyRecovery(RecoveryConf{MaxAttempts: 7, Delay: "250ms"})
	assert.Equal(t, 7, app.Boundary.MaxRecoveryAttempts())
	assert.Equal(t, 250*time.Millisecond, app.Boundary.RecoveryDelay())

	app.applyRecovery(RecoveryConf{MaxAttempts: 7, Delay: "forever"})
	assert.Equal(t, time.Second, app.Boundary.RecoveryDelay(), "invalid durations fall back to the default")
}

func TestLogWriterReceivesRecords(t *testing.T) {
	var buf syncBuffer
	app := newTestApp(t, testConf(), WithLogWriter(&buf))
	require.NoError(t, app.Start())
	out := buf.String()
	assert.Contains(t, out, "widget runtime is starting up")
	assert.Contains(t, out, "widgetd-test")
}
