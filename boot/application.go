// Package boot assembles the widget runtime from configuration: logging,
// metrics, the event bus, the error boundary, the registry, the instance
// manager, the provider cache and the plugin loader.
package boot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-kratos/kratos/v2/config"
	"github.com/prometheus/client_golang/prometheus"

	widget "github.com/go-lynx/widget"
	"github.com/go-lynx/widget/builtin"
	"github.com/go-lynx/widget/cache"
	"github.com/go-lynx/widget/events"
	"github.com/go-lynx/widget/factory"
	"github.com/go-lynx/widget/loader"
	wlog "github.com/go-lynx/widget/log"
	"github.com/go-lynx/widget/observability/metrics"
)

// Application owns every runtime service and tears them down in reverse order.
type Application struct {
	conf Conf
	cfg  config.Config // nil when built from a Conf value

	Metrics   *metrics.Metrics
	Bridge    *events.Bridge
	Bus       *events.Bus
	Boundary  *widget.ErrorBoundary
	Registry  *widget.Registry
	Instances *widget.InstanceManager
	Cache     *cache.Cache
	Catalog   *factory.Catalog
	Loader    *loader.Loader

	health    *HealthChecker
	server    *http.Server
	addr      net.Addr
	logCloser io.Closer

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
	closeErr  error
}

type options struct {
	sources    builtin.Sources
	registry   *prometheus.Registry
	logWriters []io.Writer
	catalog    *factory.Catalog
}

// Option customises New
type Option func(*options)

// WithSources supplies the data behind the built-in weather and calendar widgets
func WithSources(s builtin.Sources) Option {
	return func(o *options) { o.sources = s }
}

// WithPrometheusRegistry registers the collectors on reg instead of a private registry
func WithPrometheusRegistry(reg *prometheus.Registry) Option {
	return func(o *options) { o.registry = reg }
}

// WithLogWriter adds an extra log destination
func WithLogWriter(w io.Writer) Option {
	return func(o *options) { o.logWriters = append(o.logWriters, w) }
}

// WithCatalog starts from a catalog the host already filled with its own
// components, providers and hook sets
func WithCatalog(c *factory.Catalog) Option {
	return func(o *options) { o.catalog = c }
}

// NewFromConfig builds the runtime from a loaded configuration and follows
// its widget.log and widget.recovery sections for hot updates.
func NewFromConfig(cfg config.Config, opts ...Option) (*Application, error) {
	c, err := ScanConf(cfg)
	if err != nil {
		return nil, err
	}
	app, err := New(c, opts...)
	if err != nil {
		return nil, err
	}
	app.cfg = cfg
	app.watchConfig()
	return app, nil
}

// New builds the runtime described by c
func New(c Conf, opts ...Option) (*Application, error) {
	if err := validateConf(c); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	closer, err := wlog.Init(c.Log, c.Application.Name, c.Application.Version, o.logWriters...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger := wlog.GetLogger()

	app := &Application{conf: c, logCloser: closer}
	app.ctx, app.cancel = context.WithCancel(context.Background())

	if c.Metrics.Enabled {
		app.Metrics = metrics.New(o.registry)
	}

	app.Bridge = events.NewBridge()
	busOpts := []events.Option{
		events.WithLogger(logger),
		events.WithStrictValidation(c.Events.Strict),
		events.WithDevelopment(c.Development),
		events.WithMetrics(app.Metrics),
		events.WithBridge(app.Bridge),
		events.WithAsyncQueue(c.Events.AsyncQueue),
		events.WithMiddleware(
			events.LoggingMiddleware(logger, c.Development),
			events.SchemaShapeMiddleware(logger),
			events.ErrorPayloadMiddleware(logger),
		),
	}
	if c.Events.RateLimit > 0 {
		limiter := events.NewRateLimiter(c.Events.RateLimit, c.Events.rateWindow())
		busOpts = append(busOpts, events.WithMiddleware(limiter.Middleware(logger)))
	}
	if c.Events.History > 0 {
		busOpts = append(busOpts, events.WithHistory(events.NewHistory(c.Events.History)))
	}
	app.Bus = events.NewBus(busOpts...)

	app.Boundary = widget.NewErrorBoundary(
		widget.WithBoundaryLogger(logger),
		widget.WithBoundaryMetrics(app.Metrics),
		widget.WithMaxRecoveryAttempts(c.Recovery.MaxAttempts),
		widget.WithRecoveryDelay(c.Recovery.delay()),
	)
	app.Registry = widget.NewRegistry(
		widget.WithRegistryBus(app.Bus),
		widget.WithRegistryMetrics(app.Metrics),
		widget.WithRegistryLogger(logger),
	)

	instOpts := []widget.InstanceOption{
		widget.WithInstanceBus(app.Bus),
		widget.WithInstanceMetrics(app.Metrics),
		widget.WithInstanceLogger(logger),
		widget.WithHookTimeout(c.Recovery.hookTimeout()),
	}
	if c.Cache.Enabled {
		ttl, _ := c.Cache.ParseTTL()
		app.Cache, err = cache.New("providers", c.Cache, app.Metrics)
		if err != nil {
			app.abort()
			return nil, fmt.Errorf("failed to create provider cache: %w", err)
		}
		instOpts = append(instOpts, widget.WithProviderCache(app.Cache, ttl))
	}
	app.Instances = widget.NewInstanceManager(app.Registry, app.Boundary, instOpts...)
	app.Registry.SetTeardown(app.Instances)

	app.Catalog = o.catalog
	if app.Catalog == nil {
		app.Catalog = factory.NewCatalog()
	}
	if o.sources.Logger == nil {
		o.sources.Logger = logger
	}
	if err := builtin.Register(app.Catalog, o.sources); err != nil {
		app.abort()
		return nil, err
	}
	app.Loader = loader.New(app.Catalog, app.Registry,
		loader.WithLogger(logger),
		loader.WithWorkers(c.Loader.Workers))

	app.health = newHealthChecker(app, c.Metrics.healthInterval())
	return app, nil
}

// abort releases what New built before failing
func (app *Application) abort() {
	app.cancel()
	if app.Instances != nil {
		_ = app.Instances.Close()
	}
	if app.Boundary != nil {
		app.Boundary.Close()
	}
	if app.Bus != nil {
		_ = app.Bus.Close()
	}
	if app.Bridge != nil {
		_ = app.Bridge.Close()
	}
	_ = app.logCloser.Close()
}

// Conf returns the configuration the application was built with
func (app *Application) Conf() Conf { return app.conf }

// MetricsAddr is the bound metrics address, or nil before Start or when metrics are off
func (app *Application) MetricsAddr() net.Addr { return app.addr }

// Health returns the latest health check result
func (app *Application) Health() Health { return app.health.Last() }

// Start installs plugins, starts watching plugin directories and serves
// metrics. Plugin failures are logged; only infrastructure errors are returned.
func (app *Application) Start() error {
	st := time.Now()
	wlog.Infof("widget runtime is starting up: name=%s version=%s", app.conf.Application.Name, app.conf.Application.Version)

	if app.conf.Loader.Builtins {
		if err := app.Loader.InstallBuiltins(); err != nil {
			wlog.Warnf("some built-in widgets were not installed: %v", err)
		}
	}
	for _, dir := range app.conf.Loader.Dirs {
		installed, err := app.Loader.Discover(app.ctx, dir)
		if err != nil {
			wlog.Warnf("plugin discovery in %s: %v", dir, err)
		}
		wlog.Infof("installed %d plugins from %s", len(installed), dir)
	}
	if app.conf.Loader.Watch && len(app.conf.Loader.Dirs) > 0 {
		if err := app.Loader.Watch(app.ctx, app.conf.Loader.Dirs...); err != nil {
			return fmt.Errorf("failed to watch plugin directories: %w", err)
		}
	}

	if app.conf.Metrics.Enabled {
		if err := app.serve(); err != nil {
			return err
		}
	}
	go app.health.Run(app.ctx)

	wlog.Infof("widget runtime started: plugins=%d elapsed=%s", app.Registry.Count(), elapsed(time.Since(st)))
	return nil
}

func elapsed(d time.Duration) string {
	ms := d.Milliseconds()
	switch {
	case ms < 1000:
		return fmt.Sprintf("%d ms", ms)
	case ms < 60_000:
		return fmt.Sprintf("%.2f s", float64(ms)/1000)
	default:
		return fmt.Sprintf("%.2f m", float64(ms)/1000/60)
	}
}

func (app *Application) serve() error {
	ln, err := net.Listen("tcp", app.conf.Metrics.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", app.conf.Metrics.Addr, err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", app.Metrics.Handler())
	mux.Handle("/healthz", app.health)
	app.server = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	app.addr = ln.Addr()
	go func() {
		if err := app.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			wlog.Errorf("metrics server stopped: %v", err)
		}
	}()
	wlog.Infof("serving metrics and health on %s", ln.Addr())
	return nil
}

// Run starts the application and blocks until ctx is done, then closes it
func (app *Application) Run(ctx context.Context) error {
	if err := app.Start(); err != nil {
		return errors.Join(err, app.Close())
	}
	<-ctx.Done()
	wlog.Info("shutdown requested")
	return app.Close()
}

// watchConfig applies log level and recovery changes without a restart
func (app *Application) watchConfig() {
	if err := app.cfg.Watch(ConfigKey+".log", func(_ string, v config.Value) {
		var lc wlog.Conf
		if err := v.Scan(&lc); err != nil {
			return
		}
		wlog.SetLevel(wlog.ParseLevel(lc.Level))
		wlog.Infof("log level changed to %s", lc.Level)
	}); err != nil {
		wlog.Warnf("log configuration is not watchable: %v", err)
	}
	if err := app.cfg.Watch(ConfigKey+".recovery", func(_ string, v config.Value) {
		rc := app.conf.Recovery
		if err := v.Scan(&rc); err != nil {
			return
		}
		app.applyRecovery(rc)
	}); err != nil {
		wlog.Warnf("recovery configuration is not watchable: %v", err)
	}
}

func (app *Application) applyRecovery(rc RecoveryConf) {
	if rc.MaxAttempts >= 0 {
		app.Boundary.SetMaxRecoveryAttempts(rc.MaxAttempts)
	}
	app.Boundary.SetRecoveryDelay(rc.delay())
	wlog.Infof("recovery tunables changed: max_attempts=%d delay=%s",
		app.Boundary.MaxRecoveryAttempts(), app.Boundary.RecoveryDelay())
}

// Close shuts down in reverse construction order: watchers and the health
// check, the metrics server, instances, recovery, the bus, the cache, the
// configuration and finally the log writers.
func (app *Application) Close() error {
	app.closeOnce.Do(func() {
		defer func() {
			if r := recover(); r != nil {
				app.closeErr = errors.Join(app.closeErr, fmt.Errorf("panic during shutdown: %v", r))
			}
		}()
		wlog.Info("starting graceful shutdown")
		app.cancel()

		var errs []error
		if app.server != nil {
			ctx, cancel := context.WithTimeout(context.Background(), app.conf.Application.shutdownTimeout())
			if err := app.server.Shutdown(ctx); err != nil {
				errs = append(errs, fmt.Errorf("metrics server: %w", err))
			}
			cancel()
		}
		if err := app.Instances.Close(); err != nil {
			errs = append(errs, fmt.Errorf("instances: %w", err))
		}
		app.Boundary.Close()
		if err := app.Bus.Close(); err != nil {
			errs = append(errs, fmt.Errorf("event bus: %w", err))
		}
		if err := app.Bridge.Close(); err != nil {
			errs = append(errs, fmt.Errorf("event bridge: %w", err))
		}
		if app.Cache != nil {
			app.Cache.Close()
		}
		if app.cfg != nil {
			if err := app.cfg.Close(); err != nil {
				errs = append(errs, fmt.Errorf("configuration: %w", err))
			}
		}
		wlog.Info("graceful shutdown completed")
		if err := app.logCloser.Close(); err != nil {
			errs = append(errs, fmt.Errorf("log writer: %w", err))
		}
		app.closeErr = errors.Join(errs...)
	})
	return app.closeErr
}
