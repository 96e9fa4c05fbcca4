package builtin

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/zclconf/go-cty/cty"

	"github.com/go-lynx/widget/plugins"
	"github.com/go-lynx/widget/schema"
)

// Weather is the weather widget payload
type Weather struct {
	City        string    `json:"city"`
	Temperature float64   `json:"temperature"`
	Units       string    `json:"units"`
	Condition   string    `json:"condition"`
	ObservedAt  time.Time `json:"observedAt"`
}

// Event is one calendar entry
type Event struct {
	Title string    `json:"title"`
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// WeatherManifest describes the weather widget
func (s Sources) WeatherManifest() *plugins.Manifest {
	return &plugins.Manifest{
		ID:          "weather",
		Name:        "Weather",
		Description: "Current conditions for a city",
		Version:     "1.0.0",
		Author:      "lynx",
		Category:    "information",
		Tags:        []string{"weather", "forecast"},
		DefaultConfig: schema.Config{
			"city":            "London",
			"units":           "metric",
			"refreshInterval": 600000,
		},
		ConfigSchema: &schema.Object{Fields: map[string]schema.Field{
			"city":            {Type: cty.String, Required: true},
			"units":           {Type: cty.String, Enum: []string{"metric", "imperial"}},
			"refreshInterval": {Type: cty.Number, Min: schema.Float(60000)},
		}},
		Component:           plugins.HeadlessComponent{},
		DataProviderFactory: s.weatherProvider,
		Permissions:         []string{"network"},
		Settings:            boolSetting(true, true, true, true),
	}
}

// CalendarManifest describes the agenda widget
func (s Sources) CalendarManifest() *plugins.Manifest {
	return &plugins.Manifest{
		ID:          "calendar",
		Name:        "Calendar",
		Description: "Upcoming events for the next few days",
		Version:     "1.0.0",
		Author:      "lynx",
		Category:    "productivity",
		Tags:        []string{"calendar", "agenda", "events"},
		DefaultConfig: schema.Config{
			"days":            7,
			"refreshInterval": 300000,
		},
		ConfigSchema: &schema.Object{Fields: map[string]schema.Field{
			"days":            {Type: cty.Number, Min: schema.Float(1), Max: schema.Float(31)},
			"refreshInterval": {Type: cty.Number, Min: schema.Float(60000)},
		}},
		Component:           plugins.HeadlessComponent{},
		DataProviderFactory: s.calendarProvider,
		Settings:            boolSetting(true, true, true, true),
	}
}

type weatherProvider struct {
	fetch func(ctx context.Context, city, units string) (Weather, error)
	city  string
	units string
}

func (s Sources) weatherProvider(cfg schema.Config) (plugins.DataProvider, error) {
	if s.Weather == nil {
		return nil, fmt.Errorf("weather: %w", ErrNoSource)
	}
	return &weatherProvider{fetch: s.Weather, city: str(cfg["city"], "London"), units: str(cfg["units"], "metric")}, nil
}

func (p *weatherProvider) Fetch(ctx context.Context) (any, error) {
	w, err := p.fetch(ctx, p.city, p.units)
	if err != nil {
		return nil, err
	}
	return w, nil
}

func (p *weatherProvider) Refresh(ctx context.Context) (any, error) { return p.Fetch(ctx) }

// Validate drops reports for another city
func (p *weatherProvider) Validate(data any) bool {
	w, ok := data.(Weather)
	return ok && w.City == p.city
}

type calendarProvider struct {
	list func(ctx context.Context, from time.Time, days int) ([]Event, error)
	now  func() time.Time
	days int
}

func (s Sources) calendarProvider(cfg schema.Config) (plugins.DataProvider, error) {
	if s.Calendar == nil {
		return nil, fmt.Errorf("calendar: %w", ErrNoSource)
	}
	return &calendarProvider{list: s.Calendar, now: s.now, days: int(number(cfg["days"], 7))}, nil
}

// Fetch returns the events overlapping the window, ordered by start
func (p *calendarProvider) Fetch(ctx context.Context) (any, error) {
	from := p.now()
	to := from.AddDate(0, 0, p.days)
	events, err := p.list(ctx, from, p.days)
	if err != nil {
		return nil, err
	}
	out := make([]Event, 0, len(events))
	for _, e := range events {
		if e.End.Before(from) || !e.Start.Before(to) {
			continue
		}
		out = append(out, e)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out, nil
}

func (p *calendarProvider) Refresh(ctx context.Context) (any, error) { return p.Fetch(ctx) }
