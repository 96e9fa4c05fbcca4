// Package metrics exposes the widget runtime's Prometheus metrics.
// Every method is safe on a nil *Metrics so components can run without metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the runtime collectors
type Metrics struct {
	// Registry metrics
	pluginsRegistered prometheus.Gauge
	pluginAdmissions  *prometheus.CounterVec

	// Instance metrics
	instancesActive prometheus.Gauge
	instanceOps     *prometheus.CounterVec
	instanceErrors  *prometheus.CounterVec
	providerLatency *prometheus.HistogramVec

	// Error boundary metrics
	recoveryAttempts *prometheus.CounterVec

	// Event bus metrics
	eventsEmitted *prometheus.CounterVec
	eventsVetoed  *prometheus.CounterVec
	eventsInvalid *prometheus.CounterVec
	handlerPanics *prometheus.CounterVec

	// Provider cache metrics
	cacheHits   prometheus.Counter
	cacheMisses prometheus.Counter

	gatherer prometheus.Gatherer
}

// New registers the collectors on reg. A nil reg creates a private registry.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)
	return &Metrics{
		gatherer: reg,
		pluginsRegistered: f.NewGauge(prometheus.GaugeOpts{
			Name: "widget_plugins_registered",
			Help: "Number of admitted plugin manifests",
		}),
		pluginAdmissions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "widget_plugin_admissions_total",
			Help: "Plugin registration attempts by result",
		}, []string{"result"}),
		instancesActive: f.NewGauge(prometheus.GaugeOpts{
			Name: "widget_instances_active",
			Help: "Number of live widget instances",
		}),
		instanceOps: f.NewCounterVec(prometheus.CounterOpts{
			Name: "widget_instance_operations_total",
			Help: "Instance manager operations by result",
		}, []string{"operation", "result"}),
		instanceErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "widget_instance_errors_total",
			Help: "Errors routed to the error boundary",
		}, []string{"plugin_id", "error_type"}),
		providerLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "widget_provider_duration_seconds",
			Help:    "Data provider fetch and refresh latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"plugin_id", "operation"}),
		recoveryAttempts: f.NewCounterVec(prometheus.CounterOpts{
			Name: "widget_recovery_attempts_total",
			Help: "Instance recovery attempts by result",
		}, []string{"result"}),
		eventsEmitted: f.NewCounterVec(prometheus.CounterOpts{
			Name: "widget_events_emitted_total",
			Help: "Events dispatched to handlers",
		}, []string{"event"}),
		eventsVetoed: f.NewCounterVec(prometheus.CounterOpts{
			Name: "widget_events_vetoed_total",
			Help: "Events vetoed by middleware",
		}, []string{"event"}),
		eventsInvalid: f.NewCounterVec(prometheus.CounterOpts{
			Name: "widget_events_invalid_total",
			Help: "Events whose payload failed validation",
		}, []string{"event", "mode"}),
		handlerPanics: f.NewCounterVec(prometheus.CounterOpts{
			Name: "widget_event_handler_panics_total",
			Help: "Event handlers that panicked",
		}, []string{"event"}),
		cacheHits: f.NewCounter(prometheus.CounterOpts{
			Name: "widget_provider_cache_hits_total",
			Help: "Provider cache hits",
		}),
		cacheMisses: f.NewCounter(prometheus.CounterOpts{
			Name: "widget_provider_cache_misses_total",
			Help: "Provider cache misses",
		}),
	}
}

// Handler serves the collectors in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func (m *Metrics) SetPluginsRegistered(n int) {
	if m == nil {
		return
	}
	m.pluginsRegistered.Set(float64(n))
}

func (m *Metrics) PluginAdmission(err error) {
	if m == nil {
		return
	}
	m.pluginAdmissions.WithLabelValues(result(err)).Inc()
}

func (m *Metrics) SetInstancesActive(n int) {
	if m == nil {
		return
	}
	m.instancesActive.Set(float64(n))
}

func (m *Metrics) InstanceOp(op string, err error) {
	if m == nil {
		return
	}
	m.instanceOps.WithLabelValues(op, result(err)).Inc()
}

func (m *Metrics) InstanceError(pluginID, errorType string) {
	if m == nil {
		return
	}
	m.instanceErrors.WithLabelValues(pluginID, errorType).Inc()
}

func (m *Metrics) ObserveProvider(pluginID, op string, start time.Time) {
	if m == nil {
		return
	}
	m.providerLatency.WithLabelValues(pluginID, op).Observe(time.Since(start).Seconds())
}

func (m *Metrics) RecoveryAttempt(ok bool) {
	if m == nil {
		return
	}
	res := "failure"
	if ok {
		res = "success"
	}
	m.recoveryAttempts.WithLabelValues(res).Inc()
}

func (m *Metrics) EventEmitted(event string) {
	if m == nil {
		return
	}
	m.eventsEmitted.WithLabelValues(event).Inc()
}

func (m *Metrics) EventVetoed(event string) {
	if m == nil {
		return
	}
	m.eventsVetoed.WithLabelValues(event).Inc()
}

func (m *Metrics) EventInvalid(event string, strict bool) {
	if m == nil {
		return
	}
	mode := "lenient"
	if strict {
		mode = "strict"
	}
	m.eventsInvalid.WithLabelValues(event, mode).Inc()
}

func (m *Metrics) HandlerPanic(event string) {
	if m == nil {
		return
	}
	m.handlerPanics.WithLabelValues(event).Inc()
}

func (m *Metrics) CacheHit() {
	if m == nil {
		return
	}
	m.cacheHits.Inc()
}

func (m *Metrics) CacheMiss() {
	if m == nil {
		return
	}
	m.cacheMisses.Inc()
}
