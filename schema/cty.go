package schema

import (
	"encoding/json"
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/ext/typeexpr"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/zclconf/go-cty/cty"
	ctyjson "github.com/zclconf/go-cty/cty/json"
)

// ToCty converts a JSON-compatible Go value to a cty value of its implied type.
func ToCty(v any) (cty.Value, error) {
	if v == nil {
		return cty.NullVal(cty.DynamicPseudoType), nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return cty.NilVal, fmt.Errorf("value is not serializable: %w", err)
	}
	ty, err := ctyjson.ImpliedType(b)
	if err != nil {
		return cty.NilVal, fmt.Errorf("cannot infer type: %w", err)
	}
	return ctyjson.Unmarshal(b, ty)
}

// FromCty converts a known cty value back to plain Go values
// (map[string]any, []any, float64, string, bool).
func FromCty(v cty.Value) (any, error) {
	if v.IsNull() {
		return nil, nil
	}
	if !v.IsWhollyKnown() {
		return nil, fmt.Errorf("value is not fully known")
	}
	b, err := ctyjson.Marshal(v, v.Type())
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ConfigFromCty converts an object or map value to a Config
func ConfigFromCty(v cty.Value) (Config, error) {
	if v.IsNull() {
		return Config{}, nil
	}
	out, err := FromCty(v)
	if err != nil {
		return nil, err
	}
	m, ok := out.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("expected an object, got %s", v.Type().FriendlyName())
	}
	return Config(m), nil
}

// ParseType parses a type expression such as "number", "list(string)" or
// "object({lat=number, lon=number})". "any" yields cty.DynamicPseudoType.
func ParseType(expr string) (cty.Type, error) {
	e, diags := hclsyntax.ParseExpression([]byte(expr), "type", hcl.Pos{Line: 1, Column: 1})
	if diags.HasErrors() {
		return cty.NilType, fmt.Errorf("parse type %q: %s", expr, diags.Error())
	}
	ty, diags := typeexpr.TypeConstraint(e)
	if diags.HasErrors() {
		return cty.NilType, fmt.Errorf("invalid type %q: %s", expr, diags.Error())
	}
	return ty, nil
}
