package loader

import (
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/ext/typeexpr"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"

	"github.com/go-lynx/widget/schema"
)

// hclManifest is the HCL form of a manifest:
//
//	id       = "weather"
//	version  = "1.0.0"
//	category = "information"
//	default_config = { city = "Berlin" }
//
//	config_schema "city" {
//	  type     = string
//	  required = true
//	}
type hclManifest struct {
	ID           string   `hcl:"id"`
	Name         string   `hcl:"name"`
	Description  string   `hcl:"description,optional"`
	Version      string   `hcl:"version"`
	Author       string   `hcl:"author,optional"`
	Category     string   `hcl:"category"`
	Tags         []string `hcl:"tags,optional"`
	Component    string   `hcl:"component,optional"`
	DataProvider string   `hcl:"data_provider,optional"`
	Hooks        string   `hcl:"hooks,optional"`
	Lifecycle    []string `hcl:"lifecycle,optional"`
	Permissions  []string `hcl:"permissions,optional"`
	Strict       bool     `hcl:"strict,optional"`

	Settings      cty.Value `hcl:"settings,optional"`
	DefaultConfig cty.Value `hcl:"default_config,optional"`

	Fields []hclField `hcl:"config_schema,block"`
}

type hclField struct {
	Name        string         `hcl:"name,label"`
	Type        hcl.Expression `hcl:"type,optional"`
	Required    bool           `hcl:"required,optional"`
	Min         *float64       `hcl:"min,optional"`
	Max         *float64       `hcl:"max,optional"`
	Enum        []string       `hcl:"enum,optional"`
	Description string         `hcl:"description,optional"`
}

func decodeHCL(filename string, src []byte) (manifestFile, error) {
	f, diags := hclparse.NewParser().ParseHCL(src, filename)
	if diags.HasErrors() {
		return manifestFile{}, diags
	}
	var hm hclManifest
	if diags := gohcl.DecodeBody(f.Body, nil, &hm); diags.HasErrors() {
		return manifestFile{}, diags
	}

	mf := manifestFile{
		ID:           hm.ID,
		Name:         hm.Name,
		Description:  hm.Description,
		Version:      hm.Version,
		Author:       hm.Author,
		Category:     hm.Category,
		Tags:         hm.Tags,
		Component:    hm.Component,
		DataProvider: hm.DataProvider,
		Hooks:        hm.Hooks,
		Lifecycle:    hm.Lifecycle,
		Permissions:  hm.Permissions,
		Strict:       hm.Strict,
	}

	settings, err := schema.ConfigFromCty(hm.Settings)
	if err != nil {
		return manifestFile{}, fmt.Errorf("settings: %w", err)
	}
	if len(settings) > 0 {
		mf.Settings = settings
	}
	defaults, err := schema.ConfigFromCty(hm.DefaultConfig)
	if err != nil {
		return manifestFile{}, fmt.Errorf("default_config: %w", err)
	}
	mf.DefaultConfig = defaults

	if len(hm.Fields) > 0 {
		mf.ConfigSchema = make(map[string]schema.FieldSpec, len(hm.Fields))
	}
	for _, fld := range hm.Fields {
		if _, dup := mf.ConfigSchema[fld.Name]; dup {
			return manifestFile{}, fmt.Errorf("config_schema %q declared twice", fld.Name)
		}
		typ, err := fieldType(fld.Type)
		if err != nil {
			return manifestFile{}, fmt.Errorf("config_schema %q: %w", fld.Name, err)
		}
		mf.ConfigSchema[fld.Name] = schema.FieldSpec{
			Type:        typ,
			Required:    fld.Required,
			Min:         fld.Min,
			Max:         fld.Max,
			Enum:        fld.Enum,
			Description: fld.Description,
		}
	}
	return mf, nil
}

// fieldType accepts a bare type expression (list(string)) or a quoted one
// ("list(string)"). A missing type means any.
func fieldType(expr hcl.Expression) (string, error) {
	if expr == nil {
		return "any", nil
	}
	if v, diags := expr.Value(nil); !diags.HasErrors() {
		switch {
		case v.IsNull():
			return "any", nil
		case v.Type() == cty.String:
			return v.AsString(), nil
		}
	}
	ty, diags := typeexpr.TypeConstraint(expr)
	if diags.HasErrors() {
		return "", diags
	}
	return typeexpr.TypeString(ty), nil
}
