// Package schema holds widget configuration values and the validators that
// check them. Field types are go-cty types so manifests written in HCL, YAML,
// TOML or JSON share one type system.
package schema

import (
	"reflect"
	"sort"
)

// Config is an instance or default configuration. Values are JSON-compatible.
type Config map[string]any

// Clone returns a deep copy of c. Nested maps and slices are copied.
func (c Config) Clone() Config {
	if c == nil {
		return Config{}
	}
	out := make(Config, len(c))
	for k, v := range c {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case Config:
		return t.Clone()
	case map[string]any:
		return map[string]any(Config(t).Clone())
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	case []string:
		return append([]string(nil), t...)
	}
	return v
}

// Merge returns a copy of c with every field of partial written over it.
// The overwrite is shallow: a nested map in partial replaces the whole field.
func (c Config) Merge(partial Config) Config {
	out := c.Clone()
	for k, v := range partial {
		out[k] = cloneValue(v)
	}
	return out
}

// Diff returns the fields whose values differ between c and other, keyed by
// field name and holding other's value. Fields missing from other map to nil.
func (c Config) Diff(other Config) Config {
	out := Config{}
	for k, v := range other {
		if old, ok := c[k]; !ok || !reflect.DeepEqual(old, v) {
			out[k] = v
		}
	}
	for k := range c {
		if _, ok := other[k]; !ok {
			out[k] = nil
		}
	}
	return out
}

// Keys returns the field names in sorted order
func (c Config) Keys() []string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
