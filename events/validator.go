package events

import (
	"errors"
	"fmt"
	"math"
	"reflect"
)

var (
	// ErrPayloadInvalid is returned by strict-mode Emit when arguments do not match the catalog
	ErrPayloadInvalid = errors.New("invalid event payload")
	// ErrUnknownEvent indicates a name outside the catalog
	ErrUnknownEvent = fmt.Errorf("%w: unknown event", ErrPayloadInvalid)
	// ErrBusClosed is returned after Close
	ErrBusClosed = errors.New("event bus closed")
)

// PayloadValidator checks emission arguments against an event's declared shape
type PayloadValidator interface {
	Validate(name Name, args []any) error
}

// CatalogValidator validates against a Spec table, by default Catalog
type CatalogValidator struct {
	specs map[Name]Spec
}

// NewCatalogValidator validates against specs, or Catalog when specs is nil
func NewCatalogValidator(specs map[Name]Spec) *CatalogValidator {
	if specs == nil {
		specs = Catalog
	}
	return &CatalogValidator{specs: specs}
}

func (v *CatalogValidator) Validate(name Name, args []any) error {
	spec, ok := v.specs[name]
	if !ok {
		return fmt.Errorf("%w %q", ErrUnknownEvent, name)
	}
	required := 0
	for _, a := range spec.Args {
		if !a.Optional {
			required++
		}
	}
	if len(args) < required || len(args) > len(spec.Args) {
		return fmt.Errorf("%w: %s expects %d..%d arguments, got %d", ErrPayloadInvalid, name, required, len(spec.Args), len(args))
	}
	for i, arg := range args {
		want := spec.Args[i]
		if arg == nil && want.Optional {
			continue
		}
		if !matches(want.Kind, arg) {
			return fmt.Errorf("%w: %s argument %d (%s) must be %s, got %T", ErrPayloadInvalid, name, i, want.Name, want.Kind, arg)
		}
	}
	return nil
}

func matches(k Kind, v any) bool {
	switch k {
	case KindAny:
		return true
	case KindID:
		return IsPositiveInt(v)
	case KindString:
		_, ok := v.(string)
		return ok
	case KindBool:
		_, ok := v.(bool)
		return ok
	case KindError:
		_, ok := v.(error)
		return ok
	case KindNumber:
		_, ok := toFloat(v)
		return ok
	case KindObject:
		if v == nil {
			return false
		}
		t := reflect.TypeOf(v)
		if t.Kind() == reflect.Pointer {
			t = t.Elem()
		}
		return t.Kind() == reflect.Struct || (t.Kind() == reflect.Map && t.Key().Kind() == reflect.String)
	}
	return false
}

// IsPositiveInt reports whether v is an integer value greater than zero.
// Whole floats count, since ids decoded from JSON arrive as float64.
func IsPositiveInt(v any) bool {
	switch n := v.(type) {
	case int:
		return n > 0
	case int8:
		return n > 0
	case int16:
		return n > 0
	case int32:
		return n > 0
	case int64:
		return n > 0
	case uint:
		return n > 0
	case uint8:
		return n > 0
	case uint16:
		return n > 0
	case uint32:
		return n > 0
	case uint64:
		return n > 0
	case float32:
		f := float64(n)
		return f > 0 && f == math.Trunc(f) && !math.IsInf(f, 0)
	case float64:
		return n > 0 && n == math.Trunc(n) && !math.IsInf(n, 0)
	}
	return false
}

func toFloat(v any) (float64, bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	}
	return 0, false
}
