package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"
)

func clockSchema() *Object {
	return NewObject(map[string]Field{
		"minWidth":  {Type: cty.Number, Required: true, Min: Float(1)},
		"minHeight": {Type: cty.Number, Required: true, Min: Float(1)},
		"format":    {Type: cty.String, Enum: []string{"12h", "24h"}},
		"zones":     {Type: cty.List(cty.String)},
	})
}

func TestObjectValidate(t *testing.T) {
	s := clockSchema()
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
		field   string
	}{
		{name: "defaults", cfg: Config{"minWidth": 1, "minHeight": 1}},
		{name: "with optional", cfg: Config{"minWidth": 2.5, "minHeight": 1, "format": "24h", "zones": []any{"UTC"}}},
		{name: "missing required", cfg: Config{"minWidth": 1}, wantErr: true, field: "minHeight"},
		{name: "null required", cfg: Config{"minWidth": 1, "minHeight": nil}, wantErr: true, field: "minHeight"},
		{name: "wrong type", cfg: Config{"minWidth": "wide", "minHeight": 1}, wantErr: true, field: "minWidth"},
		{name: "below min", cfg: Config{"minWidth": 0, "minHeight": 1}, wantErr: true, field: "minWidth"},
		{name: "enum", cfg: Config{"minWidth": 1, "minHeight": 1, "format": "36h"}, wantErr: true, field: "format"},
		{name: "list of objects", cfg: Config{"minWidth": 1, "minHeight": 1, "zones": []any{map[string]any{"a": 1}}}, wantErr: true, field: "zones"},
		{name: "numeric string is not a number", cfg: Config{"minWidth": "50", "minHeight": 1}, wantErr: true, field: "minWidth"},
		{name: "number is not a string", cfg: Config{"minWidth": 1, "minHeight": 1, "format": 24}, wantErr: true, field: "format"},
		{name: "bool is not a number", cfg: Config{"minWidth": true, "minHeight": 1}, wantErr: true, field: "minWidth"},
		{name: "list element type", cfg: Config{"minWidth": 1, "minHeight": 1, "zones": []any{"UTC", 2}}, wantErr: true, field: "zones"},
		{name: "unknown field tolerated", cfg: Config{"minWidth": 1, "minHeight": 1, "extra": true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.Validate(tt.cfg)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalid)
			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.field, ve.Issues[0].Field)
		})
	}
}

func TestObjectStrict(t *testing.T) {
	s := clockSchema()
	s.Strict = true
	err := s.Validate(Config{"minWidth": 1, "minHeight": 1, "extra": true})
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "extra", ve.Issues[0].Field)
}

func TestObjectReportsAllIssues(t *testing.T) {
	err := clockSchema().Validate(Config{})
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Len(t, ve.Issues, 2)
}

func TestConfigMergeAndDiff(t *testing.T) {
	defaults := Config{"minWidth": 1, "minHeight": 1, "style": map[string]any{"color": "red"}}
	merged := defaults.Merge(Config{"minWidth": 3})

	assert.Equal(t, 3, merged["minWidth"])
	assert.Equal(t, 1, defaults["minWidth"], "merge must not mutate the receiver")

	merged["style"].(map[string]any)["color"] = "blue"
	assert.Equal(t, "red", defaults["style"].(map[string]any)["color"], "clone must be deep")

	diff := defaults.Diff(Config{"minWidth": 1, "minHeight": 2, "title": "x"})
	assert.Equal(t, Config{"minHeight": 2, "title": "x", "style": nil}, diff)
	assert.Empty(t, defaults.Diff(defaults.Clone()))
}

func TestParseType(t *testing.T) {
	tests := []struct {
		expr string
		want cty.Type
	}{
		{"number", cty.Number},
		{"string", cty.String},
		{"bool", cty.Bool},
		{"list(string)", cty.List(cty.String)},
		{"map(number)", cty.Map(cty.Number)},
		{"any", cty.DynamicPseudoType},
	}
	for _, tt := range tests {
		got, err := ParseType(tt.expr)
		require.NoError(t, err, tt.expr)
		assert.True(t, tt.want.Equals(got), "%s: got %s", tt.expr, got.FriendlyName())
	}

	_, err := ParseType("nope(")
	assert.Error(t, err)
	_, err = ParseType("widget")
	assert.Error(t, err)
}

func TestFromSpec(t *testing.T) {
	s, err := FromSpec(map[string]FieldSpec{
		"units":   {Type: "string", Enum: []string{"metric", "imperial"}},
		"refresh": {Type: "number", Min: Float(1000)},
		"city":    {Type: "string", Required: true},
	}, false)
	require.NoError(t, err)
	assert.NoError(t, s.Validate(Config{"city": "Oslo", "units": "metric", "refresh": 60000}))
	assert.Error(t, s.Validate(Config{"city": "Oslo", "refresh": 5}))

	_, err = FromSpec(map[string]FieldSpec{"x": {Type: "number", Min: Float(2), Max: Float(1)}}, false)
	assert.Error(t, err)
}

func TestCtyRoundTrip(t *testing.T) {
	v, err := ToCty(map[string]any{"lat": 59.9, "tags": []any{"a", "b"}})
	require.NoError(t, err)
	cfg, err := ConfigFromCty(v)
	require.NoError(t, err)
	assert.Equal(t, 59.9, cfg["lat"])
	assert.Equal(t, []any{"a", "b"}, cfg["tags"])
}
