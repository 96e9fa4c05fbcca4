package events

import (
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBus(opts ...Option) *Bus {
	b := NewBus(append([]Option{WithLogger(log.DefaultLogger)}, opts...)...)
	return b
}

func TestEmitInvokesHandlersInOrder(t *testing.T) {
	b := newTestBus()
	defer b.Close()

	var got []string
	b.On(ThemeChanged, func(args ...any) { got = append(got, "first:"+args[0].(string)) })
	b.On(ThemeChanged, func(args ...any) { got = append(got, "second:"+args[0].(string)) })

	require.NoError(t, b.Emit(ThemeChanged, "dark"))
	assert.Equal(t, []string{"first:dark", "second:dark"}, got)
}

func TestHandlerPanicIsIsolated(t *testing.T) {
	b := newTestBus()
	defer b.Close()

	ran := false
	b.On(WidgetClicked, func(args ...any) { panic("handler exploded") })
	b.On(WidgetClicked, func(args ...any) { ran = true })

	assert.NotPanics(t, func() {
		assert.NoError(t, b.Emit(WidgetClicked, 7))
	})
	assert.True(t, ran)
}

func TestUnsubscribeRemovesEntry(t *testing.T) {
	b := newTestBus()
	defer b.Close()

	calls := 0
	off1 := b.On(ThemeChanged, func(args ...any) { calls++ })
	sub := b.Subscribe(ThemeChanged, func(args ...any) { calls++ })
	assert.Equal(t, 2, b.ListenerCount(ThemeChanged))

	off1()
	assert.Equal(t, 1, b.ListenerCount(ThemeChanged))
	b.Off(sub)
	assert.False(t, b.HasListeners(ThemeChanged))
	assert.NotContains(t, b.EventNames(), ThemeChanged)

	require.NoError(t, b.Emit(ThemeChanged, "light"))
	assert.Zero(t, calls)
}

func TestOnce(t *testing.T) {
	b := newTestBus()
	defer b.Close()

	calls := 0
	b.Once(EditModeToggled, func(args ...any) { calls++ })
	require.NoError(t, b.Emit(EditModeToggled, true))
	require.NoError(t, b.Emit(EditModeToggled, false))
	assert.Equal(t, 1, calls)
	assert.False(t, b.HasListeners(EditModeToggled))
}

func TestMiddlewareVetoStopsChain(t *testing.T) {
	b := newTestBus()
	defer b.Close()

	var order []string
	b.Use(func(name Name, args []any) bool { order = append(order, "a"); return true })
	b.Use(func(name Name, args []any) bool { order = append(order, "b"); return false })
	b.Use(func(name Name, args []any) bool { order = append(order, "c"); return true })

	called := false
	b.On(ThemeChanged, func(args ...any) { called = true })

	assert.NoError(t, b.Emit(ThemeChanged, "dark"), "vetoes are silent")
	assert.Equal(t, []string{"a", "b"}, order)
	assert.False(t, called)
}

func TestPanickingMiddlewareVetoes(t *testing.T) {
	b := newTestBus(WithMiddleware(func(Name, []any) bool { panic("bad middleware") }))
	defer b.Close()

	called := false
	b.On(ThemeChanged, func(args ...any) { called = true })
	assert.NoError(t, b.Emit(ThemeChanged, "dark"))
	assert.False(t, called)
}

func TestLenientValidationNeverFails(t *testing.T) {
	b := newTestBus(WithDevelopment(true))
	defer b.Close()

	var got []any
	b.On(ThemeChanged, func(args ...any) { got = args })

	// wrong arity and wrong kind
	assert.NoError(t, b.Emit(ThemeChanged, 42, "extra"))
	assert.Equal(t, []any{42, "extra"}, got, "lenient mode dispatches the original arguments")

	assert.NoError(t, b.Emit(Name("not:cataloged")))
}

func TestStrictValidationFails(t *testing.T) {
	b := newTestBus(WithStrictValidation(true))
	defer b.Close()

	called := false
	b.On(ThemeChanged, func(args ...any) { called = true })

	err := b.Emit(ThemeChanged, 42)
	assert.ErrorIs(t, err, ErrPayloadInvalid)
	assert.False(t, called)

	err = b.Emit(Name("not:cataloged"))
	assert.ErrorIs(t, err, ErrUnknownEvent)

	assert.NoError(t, b.Emit(ThemeChanged, "dark"))
	assert.True(t, called)
}

func TestWildcardCoversOnlyKnownNames(t *testing.T) {
	b := newTestBus()
	defer b.Close()

	b.On(ThemeChanged, func(args ...any) {})
	b.On(EditModeToggled, func(args ...any) {})

	var seen []Name
	off := b.Wildcard(func(name Name, args ...any) { seen = append(seen, name) })

	// first subscriber arrives after the wildcard call
	b.On(GridSnapChanged, func(args ...any) {})

	require.NoError(t, b.Emit(ThemeChanged, "dark"))
	require.NoError(t, b.Emit(EditModeToggled, true))
	require.NoError(t, b.Emit(GridSnapChanged, true))
	assert.Equal(t, []Name{ThemeChanged, EditModeToggled}, seen)

	off()
	assert.Equal(t, 1, b.ListenerCount(ThemeChanged))
}

func TestRateLimitCapsPerWindow(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	clock := func() time.Time { return now }
	rl := NewRateLimiter(0, 0).WithClock(clock)

	b := newTestBus(WithMiddleware(rl.Middleware(log.DefaultLogger)))
	defer b.Close()

	calls := 0
	b.On(WidgetData, func(args ...any) { calls++ })
	others := 0
	b.On(ThemeChanged, func(args ...any) { others++ })

	for i := 0; i < 150; i++ {
		now = now.Add(time.Millisecond)
		require.NoError(t, b.Emit(WidgetData, 1, i))
	}
	assert.Equal(t, 100, calls)

	// limits are per name
	require.NoError(t, b.Emit(ThemeChanged, "dark"))
	assert.Equal(t, 1, others)

	// the window opened at the first emission (t0+1ms) and closes 1000ms later
	now = time.Unix(1_700_000_000, 0).Add(1000 * time.Millisecond)
	require.NoError(t, b.Emit(WidgetData, 1, "still limited"))
	assert.Equal(t, 100, calls)

	now = now.Add(time.Millisecond)
	require.NoError(t, b.Emit(WidgetData, 1, "new window"))
	assert.Equal(t, 101, calls)
}

func TestSchemaShapeMiddleware(t *testing.T) {
	b := newTestBus(WithValidator(nil), WithMiddleware(SchemaShapeMiddleware(log.DefaultLogger)))
	defer b.Close()

	calls := 0
	b.On(WidgetFocused, func(args ...any) { calls++ })
	b.On(PageSwitched, func(args ...any) { calls++ })
	b.On(ThemeChanged, func(args ...any) { calls++ })

	for _, bad := range []any{0, -3, "7", 1.5, nil} {
		require.NoError(t, b.Emit(WidgetFocused, bad))
	}
	require.NoError(t, b.Emit(PageSwitched))
	assert.Zero(t, calls)

	require.NoError(t, b.Emit(WidgetFocused, 3))
	require.NoError(t, b.Emit(PageSwitched, float64(2)))
	require.NoError(t, b.Emit(ThemeChanged, "no id rule"))
	assert.Equal(t, 3, calls)
}

func TestErrorPayloadMiddleware(t *testing.T) {
	b := newTestBus(WithMiddleware(ErrorPayloadMiddleware(log.DefaultLogger)))
	defer b.Close()

	var got []error
	b.On(WidgetError, func(args ...any) { got = append(got, args[1].(error)) })

	require.NoError(t, b.Emit(WidgetError, 1, "just a string"))
	require.NoError(t, b.Emit(WidgetError, 1))
	require.NoError(t, b.Emit(WidgetError, 1, errors.New("boom")))
	require.Len(t, got, 1)
	assert.EqualError(t, got[0], "boom")
}

func TestLoggingMiddlewareNeverVetoes(t *testing.T) {
	mw := LoggingMiddleware(log.DefaultLogger, true)
	assert.True(t, mw(ThemeChanged, []any{"dark"}))
	assert.True(t, LoggingMiddleware(log.DefaultLogger, false)(ThemeChanged, nil))
}

func TestEmitAsyncPreservesOrder(t *testing.T) {
	b := newTestBus()

	var mu sync.Mutex
	var got []int
	b.On(WidgetData, func(args ...any) {
		mu.Lock()
		got = append(got, args[1].(int))
		mu.Unlock()
	})

	for i := 0; i < 50; i++ {
		require.NoError(t, b.EmitAsync(WidgetData, 1, i))
	}
	require.NoError(t, b.Close(), "close drains the queue")

	require.Len(t, got, 50)
	for i, v := range got {
		assert.Equal(t, i, v)
	}
	assert.ErrorIs(t, b.EmitAsync(WidgetData, 1, 0), ErrBusClosed)
	assert.ErrorIs(t, b.Emit(WidgetData, 1, 0), ErrBusClosed)
}

func TestBridgeForwardsDispatchedEmissions(t *testing.T) {
	br := NewBridge()
	b := newTestBus(WithBridge(br), WithMiddleware(SchemaShapeMiddleware(log.DefaultLogger)))
	defer b.Close()

	all := make(chan Envelope, 4)
	themes := make(chan Envelope, 4)
	cancelAll := br.SubscribeAll(func(e Envelope) { all <- e })
	defer cancelAll()
	cancelTheme := br.SubscribeTo(ThemeChanged, func(e Envelope) { themes <- e })
	defer cancelTheme()

	require.NoError(t, b.Emit(WidgetFocused, 0)) // vetoed, never forwarded
	require.NoError(t, b.Emit(ThemeChanged, "dark"))

	select {
	case e := <-themes:
		assert.Equal(t, ThemeChanged, e.Name)
		assert.Equal(t, []any{"dark"}, e.Args)
	case <-time.After(2 * time.Second):
		t.Fatal("theme envelope not delivered")
	}
	select {
	case e := <-all:
		assert.Equal(t, ThemeChanged, e.Name)
	case <-time.After(2 * time.Second):
		t.Fatal("catch-all envelope not delivered")
	}
}

func TestCatalogValidator(t *testing.T) {
	v := NewCatalogValidator(nil)
	tests := []struct {
		name    string
		event   Name
		args    []any
		wantErr bool
	}{
		{"widget added", WidgetAdded, []any{1, "clock"}, false},
		{"widget added with position", WidgetAdded, []any{1, "clock", map[string]any{"x": 0}}, false},
		{"too few", WidgetAdded, []any{1}, true},
		{"too many", WidgetRemoved, []any{1, 2}, true},
		{"id kind", WidgetRemoved, []any{"1"}, true},
		{"float id", WidgetRemoved, []any{float64(3)}, false},
		{"fractional id", WidgetRemoved, []any{2.5}, true},
		{"infinite float32 id", WidgetRemoved, []any{float32(math.Inf(1))}, true},
		{"infinite float64 id", WidgetRemoved, []any{math.Inf(1)}, true},
		{"error kind", WidgetError, []any{1, "boom"}, true},
		{"struct object", WidgetMoved, []any{1, struct{ X int }{1}}, false},
		{"instance ids are strings", InstanceCreated, []any{"abc", "clock"}, false},
		{"unknown", Name("widget:exploded"), nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(tt.event, tt.args)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrPayloadInvalid)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCatalogIsComplete(t *testing.T) {
	for _, n := range Names() {
		spec, ok := Lookup(n)
		require.True(t, ok)
		assert.Equal(t, n, spec.Name)
		assert.NotEmpty(t, n.Namespace())
	}
	assert.True(t, WidgetError.IsErrorEvent())
	assert.False(t, WidgetData.IsErrorEvent())
}
