package schema

import (
	"fmt"
	"sort"

	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
)

// Field declares one configuration field
type Field struct {
	// Type is the cty type values must have. Primitives are never converted
	// into one another: "50" is not a number. cty.DynamicPseudoType accepts anything.
	Type cty.Type
	// Required fields must be present and non-null
	Required bool
	// Min and Max bound numeric fields, inclusive
	Min *float64
	Max *float64
	// Enum restricts string fields to the listed values
	Enum        []string
	Description string
}

// Object is a declarative schema over the top-level fields of a Config
type Object struct {
	Fields map[string]Field
	// Strict rejects fields that are not declared
	Strict bool
}

// NewObject builds an Object schema from fields
func NewObject(fields map[string]Field) *Object {
	return &Object{Fields: fields}
}

// Float returns a pointer to v, for Field bounds.
func Float(v float64) *float64 { return &v }

// Validate converts every declared field to its cty type and checks the
// constraints. All issues are reported together.
func (o *Object) Validate(cfg Config) error {
	var issues []Issue
	names := make([]string, 0, len(o.Fields))
	for name := range o.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		f := o.Fields[name]
		raw, ok := cfg[name]
		if !ok || raw == nil {
			if f.Required {
				issues = append(issues, Issue{Field: name, Message: "is required"})
			}
			continue
		}
		if msg := f.check(raw); msg != "" {
			issues = append(issues, Issue{Field: name, Message: msg})
		}
	}

	if o.Strict {
		for _, k := range cfg.Keys() {
			if _, ok := o.Fields[k]; !ok {
				issues = append(issues, Issue{Field: k, Message: "is not a known field"})
			}
		}
	}

	if len(issues) > 0 {
		return &ValidationError{Issues: issues}
	}
	return nil
}

func (f Field) check(raw any) string {
	val, err := ToCty(raw)
	if err != nil {
		return err.Error()
	}
	ty := f.Type
	if ty == cty.NilType {
		ty = cty.DynamicPseudoType
	}
	if msg := conforms(val, ty); msg != "" {
		return fmt.Sprintf("must be %s: %s", ty.FriendlyName(), msg)
	}
	conv, err := convert.Convert(val, ty)
	if err != nil {
		return fmt.Sprintf("must be %s: %s", ty.FriendlyName(), err)
	}
	if conv.IsNull() {
		if f.Required {
			return "is required"
		}
		return ""
	}
	if conv.Type() == cty.Number && (f.Min != nil || f.Max != nil) {
		n, _ := conv.AsBigFloat().Float64()
		if f.Min != nil && n < *f.Min {
			return fmt.Sprintf("must be >= %g, got %g", *f.Min, n)
		}
		if f.Max != nil && n > *f.Max {
			return fmt.Sprintf("must be <= %g, got %g", *f.Max, n)
		}
	}
	if conv.Type() == cty.String && len(f.Enum) > 0 {
		s := conv.AsString()
		for _, e := range f.Enum {
			if e == s {
				return ""
			}
		}
		return fmt.Sprintf("must be one of %v, got %q", f.Enum, s)
	}
	return ""
}

// conforms reports why val cannot be used as ty without converting between
// string, number and bool, or "" when it can. Collections are checked element-wise.
func conforms(val cty.Value, ty cty.Type) string {
	if val.IsNull() || ty == cty.DynamicPseudoType {
		return ""
	}
	vt := val.Type()
	switch {
	case ty.IsPrimitiveType():
		if !vt.Equals(ty) {
			return fmt.Sprintf("got %s", vt.FriendlyName())
		}
	case ty.IsListType() || ty.IsSetType():
		if !vt.IsListType() && !vt.IsSetType() && !vt.IsTupleType() {
			return fmt.Sprintf("got %s", vt.FriendlyName())
		}
		for it := val.ElementIterator(); it.Next(); {
			k, v := it.Element()
			if msg := conforms(v, ty.ElementType()); msg != "" {
				return fmt.Sprintf("element %s: %s", k.GoString(), msg)
			}
		}
	case ty.IsMapType():
		if !vt.IsMapType() && !vt.IsObjectType() {
			return fmt.Sprintf("got %s", vt.FriendlyName())
		}
		for it := val.ElementIterator(); it.Next(); {
			k, v := it.Element()
			if msg := conforms(v, ty.ElementType()); msg != "" {
				return fmt.Sprintf("key %q: %s", k.AsString(), msg)
			}
		}
	case ty.IsObjectType():
		if !vt.IsMapType() && !vt.IsObjectType() {
			return fmt.Sprintf("got %s", vt.FriendlyName())
		}
		for name, at := range ty.AttributeTypes() {
			av, ok := attr(val, name)
			if !ok {
				continue
			}
			if msg := conforms(av, at); msg != "" {
				return fmt.Sprintf("attribute %q: %s", name, msg)
			}
		}
	}
	return ""
}

func attr(val cty.Value, name string) (cty.Value, bool) {
	if val.Type().IsObjectType() {
		if !val.Type().HasAttribute(name) {
			return cty.NilVal, false
		}
		return val.GetAttr(name), true
	}
	key := cty.StringVal(name)
	if !val.HasIndex(key).True() {
		return cty.NilVal, false
	}
	return val.Index(key), true
}
