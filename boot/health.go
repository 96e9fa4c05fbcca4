package boot

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-lynx/widget/events"
	wlog "github.com/go-lynx/widget/log"
)

// Health is the result of one health check
type Health struct {
	Healthy      bool      `json:"healthy"`
	CheckedAt    time.Time `json:"checkedAt"`
	Plugins      int       `json:"plugins"`
	Instances    int       `json:"instances"`
	ActiveErrors int       `json:"activeErrors"`
	// Exhausted lists instances whose recovery attempts ran out
	Exhausted []string `json:"exhausted,omitempty"`
	// RecentErrors come from the event history, newest last
	RecentErrors []RecentError `json:"recentErrors,omitempty"`
}

// RecentError is one instance:error emission
type RecentError struct {
	Instance string    `json:"instance"`
	Error    string    `json:"error"`
	At       time.Time `json:"at"`
}

// HealthChecker periodically summarises the runtime. The runtime is unhealthy
// while any instance has exhausted its recovery attempts.
type HealthChecker struct {
	mu       sync.RWMutex
	last     Health
	interval time.Duration
	app      *Application
}

func newHealthChecker(app *Application, interval time.Duration) *HealthChecker {
	return &HealthChecker{app: app, interval: interval, last: Health{Healthy: true}}
}

// Run checks on every interval until ctx is done
func (hc *HealthChecker) Run(ctx context.Context) {
	hc.Check()
	ticker := time.NewTicker(hc.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			hc.Check()
		case <-ctx.Done():
			return
		}
	}
}

// Check runs one health check and stores its result
func (hc *HealthChecker) Check() (h Health) {
	defer func() {
		if r := recover(); r != nil {
			wlog.Errorf("panic in health check: %v", r)
			h = Health{Healthy: false, CheckedAt: time.Now()}
			hc.store(h)
		}
	}()

	report := hc.app.Boundary.GenerateErrorReport()
	h = Health{
		CheckedAt:    report.GeneratedAt,
		Plugins:      hc.app.Registry.Count(),
		Instances:    hc.app.Instances.Count(),
		ActiveErrors: report.ActiveErrors,
		Exhausted:    report.Exhausted,
	}
	h.Healthy = len(h.Exhausted) == 0
	if hist := hc.app.Bus.History(); hist != nil {
		for _, r := range hist.Query(events.NewFilter().WithName(events.InstanceError)) {
			re := RecentError{Instance: r.Subject, At: r.At}
			if len(r.Args) > 1 {
				re.Error = fmt.Sprint(r.Args[1])
			}
			h.RecentErrors = append(h.RecentErrors, re)
		}
	}
	if !h.Healthy {
		wlog.Warnf("health check: %d widget instances exhausted their recovery attempts: %v", len(h.Exhausted), h.Exhausted)
	}
	hc.store(h)
	return h
}

func (hc *HealthChecker) store(h Health) {
	hc.mu.Lock()
	hc.last = h
	hc.mu.Unlock()
}

// Last returns the most recent check result
func (hc *HealthChecker) Last() Health {
	hc.mu.RLock()
	defer hc.mu.RUnlock()
	return hc.last
}

// ServeHTTP runs a fresh check; unhealthy answers 503
func (hc *HealthChecker) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	h := hc.Check()
	w.Header().Set("Content-Type", "application/json")
	if !h.Healthy {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(h)
}
