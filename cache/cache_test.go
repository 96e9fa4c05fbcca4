package cache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-lynx/widget/observability/metrics"
	"github.com/go-lynx/widget/plugins"
)

type countingProvider struct {
	mu        sync.Mutex
	fetches   int
	refreshes int
	value     any
	err       error
	listeners []func(any)
}

func (p *countingProvider) Fetch(ctx context.Context) (any, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fetches++
	return p.value, p.err
}

func (p *countingProvider) Refresh(ctx context.Context) (any, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.refreshes++
	return p.value, p.err
}

type pushProvider struct {
	countingProvider
}

func (p *pushProvider) Subscribe(fn func(any)) func() {
	p.mu.Lock()
	p.listeners = append(p.listeners, fn)
	p.mu.Unlock()
	return func() {}
}

func (p *pushProvider) push(v any) {
	p.mu.Lock()
	ls := append([]func(any){}, p.listeners...)
	p.mu.Unlock()
	for _, fn := range ls {
		fn(v)
	}
}

func newCache(t *testing.T) *Cache {
	t.Helper()
	c, err := New("test", Options{}, metrics.New(nil))
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c
}

func TestCacheSetGet(t *testing.T) {
	c := newCache(t)

	_, err := c.Get("missing")
	assert.ErrorIs(t, err, ErrCacheMiss)

	require.NoError(t, c.Set("k", 42, 0))
	v, err := c.Get("k")
	require.NoError(t, err)
	assert.Equal(t, 42, v)

	c.Delete("k")
	_, err = c.Get("k")
	assert.ErrorIs(t, err, ErrCacheMiss)

	assert.ErrorIs(t, c.Set("k", 1, -time.Second), ErrInvalidTTL)
	assert.Equal(t, "test", c.Name())
}

func TestParseTTL(t *testing.T) {
	d, err := Options{TTL: "5s"}.ParseTTL()
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, d)

	d, err = Options{}.ParseTTL()
	require.NoError(t, err)
	assert.Zero(t, d)

	_, err = Options{TTL: "soon"}.ParseTTL()
	assert.ErrorIs(t, err, ErrInvalidTTL)
}

func TestWrapProviderCachesFetch(t *testing.T) {
	c := newCache(t)
	inner := &countingProvider{value: "sunny"}
	p := WrapProvider(inner, c, "inst-1", time.Minute)

	for i := 0; i < 3; i++ {
		v, err := p.Fetch(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "sunny", v)
	}
	assert.Equal(t, 1, inner.fetches)

	_, err := p.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, inner.refreshes, "refresh always reaches the provider")

	p.(Invalidator).Invalidate()
	_, err = p.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, inner.fetches)

	_, isPush := plugins.PushSource(p)
	assert.False(t, isPush)
}

func TestWrapProviderDoesNotCacheFailures(t *testing.T) {
	c := newCache(t)
	inner := &countingProvider{err: errors.New("offline")}
	p := WrapProvider(inner, c, "inst-2", 0)

	_, err := p.Fetch(context.Background())
	assert.Error(t, err)
	_, err = p.Fetch(context.Background())
	assert.Error(t, err)
	assert.Equal(t, 2, inner.fetches)
}

func TestWrapProviderKeepsPushCapability(t *testing.T) {
	c := newCache(t)
	inner := &pushProvider{countingProvider{value: 1}}
	p := WrapProvider(inner, c, "inst-3", 0)

	sub, ok := plugins.PushSource(p)
	require.True(t, ok)

	var got []any
	sub.Subscribe(func(v any) { got = append(got, v) })
	inner.push(7)
	assert.Equal(t, []any{7}, got)

	v, err := p.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, v, "pushed payloads refresh the cache")
	assert.Zero(t, inner.fetches)
}

func TestWrapProviderNilCache(t *testing.T) {
	inner := &countingProvider{}
	assert.Same(t, plugins.DataProvider(inner), WrapProvider(inner, nil, "x", 0))
}
