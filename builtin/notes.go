package builtin

import (
	"context"

	"github.com/zclconf/go-cty/cty"

	"github.com/go-lynx/widget/factory"
	"github.com/go-lynx/widget/plugins"
	"github.com/go-lynx/widget/schema"
)

// NotesManifest describes the sticky-note widget. It has no data provider;
// the note text lives in the instance configuration.
func (s Sources) NotesManifest() *plugins.Manifest {
	return &plugins.Manifest{
		ID:          "notes",
		Name:        "Notes",
		Description: "A sticky note kept in the widget configuration",
		Version:     "1.0.0",
		Author:      "lynx",
		Category:    "productivity",
		Tags:        []string{"notes", "text"},
		DefaultConfig: schema.Config{
			"text":  "",
			"color": "yellow",
		},
		ConfigSchema: &schema.Object{Strict: true, Fields: map[string]schema.Field{
			"text":  {Type: cty.String},
			"color": {Type: cty.String, Enum: []string{"yellow", "blue", "green", "pink"}},
		}},
		Component: plugins.HeadlessComponent{},
		Lifecycle: s.notesHooks(),
		Settings:  boolSetting(true, true, true, true),
	}
}

func (s Sources) notesHooks() factory.HookSet {
	return factory.HookSet{
		plugins.HookOnConfigChange: func(_ context.Context, hc plugins.HookContext) error {
			if hc.Previous["text"] != hc.Config["text"] {
				s.helper().Debugf("note edited: instance=%s length=%d", hc.InstanceID, len(str(hc.Config["text"], "")))
			}
			return nil
		},
	}
}
