// Package builtin ships the widgets every host gets without plugin files:
// clock, notes, timer, weather and calendar.
//
// Register adds their components, providers, hook sets and manifests to a
// factory.Catalog. Manifest files may reference the same names, e.g. a
// custom clock variant declaring data_provider = "clock".
package builtin

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-kratos/kratos/v2/log"

	"github.com/go-lynx/widget/factory"
	wlog "github.com/go-lynx/widget/log"
)

// Catalog names
const (
	ProviderClock    = "clock"
	ProviderTimer    = "timer"
	ProviderWeather  = "weather"
	ProviderCalendar = "calendar"
	HooksNotes       = "notes"
)

// ErrNoSource indicates a widget whose host data source was not supplied
var ErrNoSource = errors.New("builtin: no data source configured")

// Sources supplies the data the weather and calendar widgets display.
// Nil functions make the matching provider fail at construction.
type Sources struct {
	Weather  func(ctx context.Context, city, units string) (Weather, error)
	Calendar func(ctx context.Context, from time.Time, days int) ([]Event, error)

	// Now defaults to time.Now
	Now func() time.Time
	// Tick is the push period of clock and timer; defaults to one second
	Tick time.Duration

	Logger log.Logger
}

func (s Sources) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s Sources) tick() time.Duration {
	if s.Tick > 0 {
		return s.Tick
	}
	return time.Second
}

func (s Sources) helper() *log.Helper {
	if s.Logger != nil {
		return log.NewHelper(s.Logger)
	}
	return wlog.NewHelper(nil)
}

// Register adds every built-in implementation and manifest to c
func Register(c *factory.Catalog, src Sources) error {
	steps := []func() error{
		func() error { return c.RegisterProvider(ProviderClock, src.clockProvider) },
		func() error { return c.RegisterProvider(ProviderTimer, src.timerProvider) },
		func() error { return c.RegisterProvider(ProviderWeather, src.weatherProvider) },
		func() error { return c.RegisterProvider(ProviderCalendar, src.calendarProvider) },
		func() error { return c.RegisterHooks(HooksNotes, src.notesHooks()) },
		func() error { return c.RegisterBuiltin(src.ClockManifest) },
		func() error { return c.RegisterBuiltin(src.NotesManifest) },
		func() error { return c.RegisterBuiltin(src.TimerManifest) },
		func() error { return c.RegisterBuiltin(src.WeatherManifest) },
		func() error { return c.RegisterBuiltin(src.CalendarManifest) },
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return fmt.Errorf("register builtin widgets: %w", err)
		}
	}
	return nil
}

func boolSetting(resize, move, del, configure bool) map[string]any {
	return map[string]any{
		"allowResize":    resize,
		"allowMove":      move,
		"allowDelete":    del,
		"allowConfigure": configure,
	}
}

// number reads a numeric config value the way JSON, YAML and TOML decode it
func number(v any, def float64) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	}
	return def
}

func str(v any, def string) string {
	if s, ok := v.(string); ok && s != "" {
		return s
	}
	return def
}
