package builtin

import (
	"context"
	"time"

	"github.com/zclconf/go-cty/cty"

	"github.com/go-lynx/widget/plugins"
	"github.com/go-lynx/widget/schema"
)

// TimerData is the countdown payload
type TimerData struct {
	Label     string        `json:"label"`
	Remaining time.Duration `json:"remaining"`
	Done      bool          `json:"done"`
}

// TimerManifest describes the countdown timer widget
func (s Sources) TimerManifest() *plugins.Manifest {
	return &plugins.Manifest{
		ID:          "timer",
		Name:        "Timer",
		Description: "Counts down from a configured number of minutes",
		Version:     "1.0.0",
		Author:      "lynx",
		Category:    "productivity",
		Tags:        []string{"timer", "countdown", "pomodoro"},
		DefaultConfig: schema.Config{
			"minutes": 25,
			"label":   "Focus",
		},
		ConfigSchema: &schema.Object{Fields: map[string]schema.Field{
			"minutes": {Type: cty.Number, Required: true, Min: schema.Float(0), Max: schema.Float(24 * 60)},
			"label":   {Type: cty.String},
		}},
		Component:           plugins.HeadlessComponent{},
		DataProviderFactory: s.timerProvider,
		Permissions:         []string{"notifications"},
		Settings:            boolSetting(false, true, true, true),
	}
}

type timerProvider struct {
	*pusher
	now      func() time.Time
	label    string
	deadline time.Time
}

// The countdown starts when the provider is built, so a config change restarts it.
func (s Sources) timerProvider(cfg schema.Config) (plugins.DataProvider, error) {
	d := time.Duration(number(cfg["minutes"], 25) * float64(time.Minute))
	p := &timerProvider{now: s.now, label: str(cfg["label"], "Timer"), deadline: s.now().Add(d)}
	p.pusher = newPusher(s.tick(), func() any { return p.read() })
	return p, nil
}

func (p *timerProvider) read() TimerData {
	left := p.deadline.Sub(p.now())
	if left <= 0 {
		return TimerData{Label: p.label, Done: true}
	}
	return TimerData{Label: p.label, Remaining: left.Round(time.Second)}
}

func (p *timerProvider) Fetch(context.Context) (any, error)   { return p.read(), nil }
func (p *timerProvider) Refresh(context.Context) (any, error) { return p.read(), nil }
