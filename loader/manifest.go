package loader

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/go-lynx/widget/factory"
	"github.com/go-lynx/widget/plugins"
	"github.com/go-lynx/widget/schema"
)

// manifestFile is the on-disk form of a manifest. Code-backed parts
// (component, provider, hooks) are referenced by catalog name.
type manifestFile struct {
	ID          string   `json:"id" yaml:"id" toml:"id"`
	Name        string   `json:"name" yaml:"name" toml:"name"`
	Description string   `json:"description" yaml:"description" toml:"description"`
	Version     string   `json:"version" yaml:"version" toml:"version"`
	Author      string   `json:"author,omitempty" yaml:"author,omitempty" toml:"author,omitempty"`
	Category    string   `json:"category" yaml:"category" toml:"category"`
	Tags        []string `json:"tags,omitempty" yaml:"tags,omitempty" toml:"tags,omitempty"`

	// Component defaults to "headless"
	Component    string `json:"component,omitempty" yaml:"component,omitempty" toml:"component,omitempty"`
	DataProvider string `json:"data_provider,omitempty" yaml:"data_provider,omitempty" toml:"data_provider,omitempty"`
	Hooks        string `json:"hooks,omitempty" yaml:"hooks,omitempty" toml:"hooks,omitempty"`
	// Lifecycle declares hook names. Names missing from the hook set are kept
	// without an implementation so validation can report them.
	Lifecycle []string `json:"lifecycle,omitempty" yaml:"lifecycle,omitempty" toml:"lifecycle,omitempty"`

	Permissions   []string                    `json:"permissions,omitempty" yaml:"permissions,omitempty" toml:"permissions,omitempty"`
	Settings      map[string]any              `json:"settings,omitempty" yaml:"settings,omitempty" toml:"settings,omitempty"`
	DefaultConfig map[string]any              `json:"default_config,omitempty" yaml:"default_config,omitempty" toml:"default_config,omitempty"`
	ConfigSchema  map[string]schema.FieldSpec `json:"config_schema,omitempty" yaml:"config_schema,omitempty" toml:"config_schema,omitempty"`
	Strict        bool                        `json:"strict,omitempty" yaml:"strict,omitempty" toml:"strict,omitempty"`
}

// Format is a manifest file encoding
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
	FormatHCL  Format = "hcl"
)

// FormatOf maps a file extension to its format
func FormatOf(path string) (Format, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, true
	case ".yaml", ".yml":
		return FormatYAML, true
	case ".toml":
		return FormatTOML, true
	case ".hcl":
		return FormatHCL, true
	}
	return "", false
}

// Decode parses src in the given format and resolves its names through catalog.
func Decode(catalog *factory.Catalog, format Format, filename string, src []byte) (*plugins.Manifest, error) {
	var (
		mf  manifestFile
		err error
	)
	switch format {
	case FormatJSON:
		dec := json.NewDecoder(bytes.NewReader(src))
		dec.DisallowUnknownFields()
		err = dec.Decode(&mf)
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(src))
		dec.KnownFields(true)
		err = dec.Decode(&mf)
	case FormatTOML:
		dec := toml.NewDecoder(bytes.NewReader(src))
		dec.DisallowUnknownFields()
		err = dec.Decode(&mf)
	case FormatHCL:
		mf, err = decodeHCL(filename, src)
	default:
		err = fmt.Errorf("unsupported format %q", format)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", plugins.ErrManifestInvalid, filename, err)
	}
	return mf.build(catalog)
}

// build turns the file form into a manifest
func (mf manifestFile) build(catalog *factory.Catalog) (*plugins.Manifest, error) {
	m := &plugins.Manifest{
		ID:            mf.ID,
		Name:          mf.Name,
		Description:   mf.Description,
		Version:       mf.Version,
		Author:        mf.Author,
		Category:      mf.Category,
		Tags:          mf.Tags,
		Permissions:   mf.Permissions,
		Settings:      mf.Settings,
		DefaultConfig: schema.Config(mf.DefaultConfig).Clone(),
	}

	obj, err := schema.FromSpec(mf.ConfigSchema, mf.Strict)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: config_schema: %v", plugins.ErrManifestInvalid, mf.ID, err)
	}
	m.ConfigSchema = obj

	name := mf.Component
	if name == "" {
		name = "headless"
	}
	if m.Component, err = catalog.Component(name); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", plugins.ErrManifestInvalid, mf.ID, err)
	}
	if mf.DataProvider != "" {
		if m.DataProviderFactory, err = catalog.Provider(mf.DataProvider); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", plugins.ErrManifestInvalid, mf.ID, err)
		}
	}

	if mf.Hooks != "" || len(mf.Lifecycle) > 0 {
		m.Lifecycle = make(map[string]plugins.Hook)
	}
	if mf.Hooks != "" {
		hs, err := catalog.Hooks(mf.Hooks)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", plugins.ErrManifestInvalid, mf.ID, err)
		}
		for k, h := range hs {
			m.Lifecycle[k] = h
		}
	}
	for _, name := range mf.Lifecycle {
		if _, ok := m.Lifecycle[name]; !ok {
			m.Lifecycle[name] = nil
		}
	}
	return m, nil
}
