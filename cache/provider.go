package cache

import (
	"context"
	"io"
	"time"

	"github.com/go-lynx/widget/plugins"
)

// CachedProvider serves Fetch from the cache and stores what the wrapped
// provider returns. Refresh always reaches the wrapped provider.
type CachedProvider struct {
	inner plugins.DataProvider
	cache *Cache
	key   string
	ttl   time.Duration
}

// pushCachedProvider keeps the push capability of the wrapped provider
type pushCachedProvider struct {
	*CachedProvider
	sub plugins.Subscriber
}

// Invalidator is implemented by every provider WrapProvider returns
type Invalidator interface {
	Invalidate()
}

// WrapProvider caches p's payloads under key. A push-capable p stays push-capable
// and pushed payloads refresh the cached entry.
func WrapProvider(p plugins.DataProvider, c *Cache, key string, ttl time.Duration) plugins.DataProvider {
	if p == nil || c == nil {
		return p
	}
	cp := &CachedProvider{inner: p, cache: c, key: "provider:" + key, ttl: ttl}
	if sub, ok := plugins.PushSource(p); ok {
		return &pushCachedProvider{CachedProvider: cp, sub: sub}
	}
	return cp
}

// Fetch returns the cached payload or fetches and stores it
func (p *CachedProvider) Fetch(ctx context.Context) (any, error) {
	if v, err := p.cache.Get(p.key); err == nil {
		return v, nil
	}
	v, err := p.inner.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	p.store(v)
	return v, nil
}

// Refresh bypasses the cache and stores the fresh payload
func (p *CachedProvider) Refresh(ctx context.Context) (any, error) {
	v, err := p.inner.Refresh(ctx)
	if err != nil {
		return nil, err
	}
	p.store(v)
	return v, nil
}

func (p *CachedProvider) store(v any) {
	if v == nil {
		return
	}
	// a dropped set only costs a later miss
	_ = p.cache.Set(p.key, v, p.ttl)
}

// Invalidate drops the cached payload
func (p *CachedProvider) Invalidate() {
	p.cache.Delete(p.key)
}

// Validate defers to the wrapped provider's check, accepting everything when it has none
func (p *CachedProvider) Validate(data any) bool {
	if v, ok := p.inner.(plugins.DataValidator); ok {
		return v.Validate(data)
	}
	return true
}

// Close closes the wrapped provider when it holds resources
func (p *CachedProvider) Close() error {
	p.Invalidate()
	if c, ok := p.inner.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// Unwrap returns the wrapped provider
func (p *CachedProvider) Unwrap() plugins.DataProvider {
	return p.inner
}

// Subscribe forwards to the wrapped provider and caches every pushed payload
func (p *pushCachedProvider) Subscribe(fn func(data any)) func() {
	return p.sub.Subscribe(func(data any) {
		p.store(data)
		fn(data)
	})
}
