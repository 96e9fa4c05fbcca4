package builtin

import (
	"context"
	"fmt"
	"time"

	"github.com/zclconf/go-cty/cty"

	"github.com/go-lynx/widget/plugins"
	"github.com/go-lynx/widget/schema"
)

// ClockData is the clock widget payload
type ClockData struct {
	Time      time.Time `json:"time"`
	Formatted string    `json:"formatted"`
	Timezone  string    `json:"timezone"`
}

// ClockManifest describes the clock widget
func (s Sources) ClockManifest() *plugins.Manifest {
	return &plugins.Manifest{
		ID:          "clock",
		Name:        "Clock",
		Description: "Shows the current time in a chosen timezone",
		Version:     "1.0.0",
		Author:      "lynx",
		Category:    "time",
		Tags:        []string{"time", "clock"},
		DefaultConfig: schema.Config{
			"format":      "24h",
			"timezone":    "Local",
			"showSeconds": false,
		},
		ConfigSchema: &schema.Object{Strict: true, Fields: map[string]schema.Field{
			"format":      {Type: cty.String, Enum: []string{"12h", "24h"}},
			"timezone":    {Type: cty.String},
			"showSeconds": {Type: cty.Bool},
		}},
		Component:           plugins.HeadlessComponent{},
		DataProviderFactory: s.clockProvider,
		Settings:            boolSetting(true, true, true, true),
	}
}

type clockProvider struct {
	*pusher
	now    func() time.Time
	loc    *time.Location
	layout string
	zone   string
}

func (s Sources) clockProvider(cfg schema.Config) (plugins.DataProvider, error) {
	zone := str(cfg["timezone"], "Local")
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return nil, fmt.Errorf("clock: timezone %q: %w", zone, err)
	}
	seconds, _ := cfg["showSeconds"].(bool)
	layout := "15:04"
	if str(cfg["format"], "24h") == "12h" {
		layout = "3:04 PM"
		if seconds {
			layout = "3:04:05 PM"
		}
	} else if seconds {
		layout = "15:04:05"
	}
	p := &clockProvider{now: s.now, loc: loc, layout: layout, zone: zone}
	p.pusher = newPusher(s.tick(), func() any { return p.read() })
	return p, nil
}

func (p *clockProvider) read() ClockData {
	t := p.now().In(p.loc)
	return ClockData{Time: t, Formatted: t.Format(p.layout), Timezone: p.zone}
}

func (p *clockProvider) Fetch(context.Context) (any, error)   { return p.read(), nil }
func (p *clockProvider) Refresh(context.Context) (any, error) { return p.read(), nil }
