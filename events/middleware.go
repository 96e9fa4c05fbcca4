package events

import (
	"strings"
	"sync"
	"time"

	"github.com/go-kratos/kratos/v2/log"
)

// Middleware runs before dispatch. Returning false vetoes the emission:
// no further middleware and no handler runs.
type Middleware func(name Name, args []any) bool

// LoggingMiddleware logs every emission at debug level in development builds.
// It never vetoes.
func LoggingMiddleware(logger log.Logger, development bool) Middleware {
	h := log.NewHelper(logger)
	return func(name Name, args []any) bool {
		if development {
			h.Debugf("event emitted: name=%s args=%v", name, args)
		}
		return true
	}
}

// RateLimiter caps emissions per event name inside a window that opens with
// the first emission and closes exactly one window length later.
type RateLimiter struct {
	limit  int
	window time.Duration
	now    func() time.Time

	mu      sync.Mutex
	windows map[Name]*rateWindow
}

type rateWindow struct {
	opened time.Time
	count  int
}

// Defaults for RateLimiter
const (
	DefaultRateLimit  = 100
	DefaultRateWindow = time.Second
)

// NewRateLimiter creates a limiter. Non-positive values use the defaults.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	if limit <= 0 {
		limit = DefaultRateLimit
	}
	if window <= 0 {
		window = DefaultRateWindow
	}
	return &RateLimiter{
		limit:   limit,
		window:  window,
		now:     time.Now,
		windows: make(map[Name]*rateWindow),
	}
}

// WithClock replaces the time source
func (r *RateLimiter) WithClock(now func() time.Time) *RateLimiter {
	r.now = now
	return r
}

// Allow records one emission of name and reports whether it is within the cap.
func (r *RateLimiter) Allow(name Name) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	w, ok := r.windows[name]
	if !ok || now.Sub(w.opened) >= r.window {
		r.windows[name] = &rateWindow{opened: now, count: 1}
		return true
	}
	if w.count >= r.limit {
		return false
	}
	w.count++
	return true
}

// Reset forgets every open window
func (r *RateLimiter) Reset() {
	r.mu.Lock()
	r.windows = make(map[Name]*rateWindow)
	r.mu.Unlock()
}

// Middleware returns the limiter as a bus middleware that logs its vetoes
func (r *RateLimiter) Middleware(logger log.Logger) Middleware {
	h := log.NewHelper(logger)
	return func(name Name, _ []any) bool {
		if r.Allow(name) {
			return true
		}
		h.Warnf("event rate limited: name=%s limit=%d window=%s", name, r.limit, r.window)
		return false
	}
}

// SchemaShapeMiddleware vetoes widget: and page: events whose first argument is
// not a positive integer id.
func SchemaShapeMiddleware(logger log.Logger) Middleware {
	h := log.NewHelper(logger)
	return func(name Name, args []any) bool {
		if !strings.HasPrefix(string(name), "widget:") && !strings.HasPrefix(string(name), "page:") {
			return true
		}
		if len(args) == 0 || !IsPositiveInt(args[0]) {
			var got any
			if len(args) > 0 {
				got = args[0]
			}
			h.Errorf("event vetoed: name=%s requires a positive integer id, got %v (%T)", name, got, got)
			return false
		}
		return true
	}
}

// ErrorPayloadMiddleware vetoes error-reporting events whose second argument
// is not an error value.
func ErrorPayloadMiddleware(logger log.Logger) Middleware {
	h := log.NewHelper(logger)
	return func(name Name, args []any) bool {
		if !name.IsErrorEvent() {
			return true
		}
		if len(args) < 2 {
			h.Errorf("event vetoed: name=%s requires an error argument", name)
			return false
		}
		if _, ok := args[1].(error); !ok {
			h.Errorf("event vetoed: name=%s second argument must be an error, got %T", name, args[1])
			return false
		}
		return true
	}
}
