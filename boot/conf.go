package boot

import (
	"time"

	"github.com/go-lynx/widget/cache"
	wlog "github.com/go-lynx/widget/log"
)

// Conf is the widget section of the runtime configuration
type Conf struct {
	Application ApplicationConf `json:"application"`
	Log         wlog.Conf       `json:"log"`
	Recovery    RecoveryConf    `json:"recovery"`
	Events      EventsConf      `json:"events"`
	Loader      LoaderConf      `json:"loader"`
	Cache       cache.Options   `json:"cache"`
	Metrics     MetricsConf     `json:"metrics"`
	// Development turns on event payload diagnostics
	Development bool `json:"development"`
}

type ApplicationConf struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	// ShutdownTimeout bounds Close, e.g. "30s"
	ShutdownTimeout string `json:"shutdown_timeout"`
	CloseBanner     bool   `json:"close_banner"`
}

type RecoveryConf struct {
	MaxAttempts int `json:"max_attempts"`
	// Delay before each recovery attempt, e.g. "1s"
	Delay string `json:"delay"`
	// HookTimeout bounds every lifecycle hook, e.g. "5s"
	HookTimeout string `json:"hook_timeout"`
}

type EventsConf struct {
	// Strict blocks emissions whose payload does not match the catalog
	Strict bool `json:"strict"`
	// RateLimit caps emissions per event name and window; 0 disables it
	RateLimit  int    `json:"rate_limit"`
	RateWindow string `json:"rate_window"`
	AsyncQueue int    `json:"async_queue"`
	// History keeps the last n dispatched emissions for /healthz; 0 disables it
	History int `json:"history"`
}

type LoaderConf struct {
	// Builtins installs every built-in widget at start
	Builtins bool `json:"builtins"`
	// Dirs are scanned for manifest files at start
	Dirs []string `json:"dirs"`
	// Watch follows Dirs and hot reloads changed manifests
	Watch   bool `json:"watch"`
	Workers int  `json:"workers"`
}

type MetricsConf struct {
	Enabled bool `json:"enabled"`
	// Addr serves /metrics and /healthz, e.g. ":9090"
	Addr string `json:"addr"`
	// HealthInterval is the period of the background health check
	HealthInterval string `json:"health_interval"`
}

// DefaultConf is used for every key the configuration leaves out
func DefaultConf() Conf {
	return Conf{
		Application: ApplicationConf{Name: "widgetd", Version: "dev", ShutdownTimeout: "30s"},
		Log:         wlog.DefaultConf(),
		Recovery:    RecoveryConf{MaxAttempts: 3, Delay: "1s", HookTimeout: "5s"},
		Events:      EventsConf{RateWindow: "1s", AsyncQueue: 1024, History: 64},
		Loader:      LoaderConf{Builtins: true, Workers: 4},
		Cache:       cache.DefaultOptions(),
		Metrics:     MetricsConf{Addr: ":9090", HealthInterval: "30s"},
	}
}

// duration parses s and clamps it into [lo, hi]. Unparsable or empty values
// fall back to def.
func duration(key, s string, def, lo, hi time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		wlog.Warnf("%s: invalid duration %q, using %v", key, s, def)
		return def
	}
	if d < lo {
		wlog.Warnf("%s too short (%v), using minimum %v", key, d, lo)
		return lo
	}
	if d > hi {
		wlog.Warnf("%s too long (%v), using maximum %v", key, d, hi)
		return hi
	}
	return d
}

func (c RecoveryConf) delay() time.Duration {
	return duration("widget.recovery.delay", c.Delay, time.Second, 0, 10*time.Minute)
}

func (c RecoveryConf) hookTimeout() time.Duration {
	return duration("widget.recovery.hook_timeout", c.HookTimeout, 5*time.Second, 100*time.Millisecond, time.Minute)
}

func (c EventsConf) rateWindow() time.Duration {
	return duration("widget.events.rate_window", c.RateWindow, time.Second, 10*time.Millisecond, time.Hour)
}

func (c ApplicationConf) shutdownTimeout() time.Duration {
	return duration("widget.application.shutdown_timeout", c.ShutdownTimeout, 30*time.Second, time.Second, 5*time.Minute)
}

func (c MetricsConf) healthInterval() time.Duration {
	return duration("widget.metrics.health_interval", c.HealthInterval, 30*time.Second, time.Second, time.Hour)
}
