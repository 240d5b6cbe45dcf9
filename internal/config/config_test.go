package config

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sample() *Config {
	return New("sample",
		Field{Name: "name", Types: []Type{String}, Required: true},
		Field{Name: "retries", Types: []Type{Int}, Default: 3},
		Field{Name: "ratio", Types: []Type{Float}},
		Field{Name: "wait", Types: []Type{Int, Float}},
		Field{Name: "tags", Types: []Type{List}},
		Field{Name: "enabled", Types: []Type{Bool}},
		Field{Name: "extra", Types: []Type{Map}},
	)
}

func TestSetCoercion(t *testing.T) {
	tests := []struct {
		field string
		in    any
		want  any
	}{
		{"retries", 5, 5},
		{"retries", int64(7), 7},
		{"retries", float64(4), 4},
		{"ratio", 2, float64(2)},
		{"ratio", 0.5, 0.5},
		{"wait", 1.5, 1.5},
		{"wait", 2, 2},
		{"tags", []string{"a", "b"}, []any{"a", "b"}},
		{"tags", []any{"a", 1}, []any{"a", 1}},
		{"enabled", true, true},
		{"extra", map[string]any{"k": "v"}, map[string]any{"k": "v"}},
	}
	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			c := sample()
			require.NoError(t, c.Set(tt.field, tt.in))
			got, err := c.Get(tt.field)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.True(t, c.Has(tt.field))
		})
	}
}

func TestSetRejectsWrongType(t *testing.T) {
	tests := []struct {
		field string
		in    any
	}{
		{"name", 12},
		{"retries", 1.5},
		{"retries", "3"},
		{"enabled", "yes"},
		{"tags", "a,b"},
		{"ratio", nil},
		{"extra", []any{}},
	}
	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			c := sample()
			require.NoError(t, c.Load(map[string]any{"name": "x"}))
			before, _ := c.Get(tt.field)

			err := c.Set(tt.field, tt.in)
			var te *TypeError
			require.ErrorAs(t, err, &te)
			assert.Equal(t, tt.field, te.Name)

			after, _ := c.Get(tt.field)
			assert.Equal(t, before, after, "failed Set must not change the value")
		})
	}
}

func TestUnknownKey(t *testing.T) {
	c := sample()
	var ke *KeyError

	_, err := c.Get("missing")
	require.ErrorAs(t, err, &ke)
	assert.Equal(t, "missing", ke.Name)

	require.ErrorAs(t, c.Set("missing", 1), &ke)
	assert.Panics(t, func() { c.String("missing") })
}

func TestLoad(t *testing.T) {
	c := sample()
	err := c.Load(map[string]any{
		"name":    "plado",
		"ratio":   0.25,
		"ignored": "unknown keys are skipped",
	})
	require.NoError(t, err)

	assert.Equal(t, "plado", c.String("name"))
	assert.Equal(t, 3, c.Int("retries"), "default applies")
	assert.Equal(t, 0.25, c.Float("ratio"))
	assert.False(t, c.Has("wait"))
	assert.Nil(t, c.List("tags"))
	assert.Equal(t, map[string]any{"name": "plado", "retries": 3, "ratio": 0.25}, c.Map())
}

func TestLoadReportsEveryProblem(t *testing.T) {
	c := sample()
	err := c.Load(map[string]any{"retries": "many", "enabled": 1})
	require.Error(t, err)

	var missing *MissingFieldError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "name", missing.Name)

	var te *TypeError
	require.ErrorAs(t, err, &te)
	assert.Contains(t, err.Error(), `"retries"`)
	assert.Contains(t, err.Error(), `"enabled"`)
}

func TestLoadNullUsesDefault(t *testing.T) {
	c := sample()
	require.NoError(t, c.Load(map[string]any{"name": "x", "retries": nil}))
	assert.Equal(t, 3, c.Int("retries"))
}

func TestReloadClearsOptional(t *testing.T) {
	c := sample()
	require.NoError(t, c.Load(map[string]any{"name": "x", "wait": 2}))
	require.NoError(t, c.Load(map[string]any{"name": "x"}))
	assert.False(t, c.Has("wait"))
}

func TestAccessors(t *testing.T) {
	c := sample()
	require.NoError(t, c.Load(map[string]any{
		"name": "x", "wait": 1.5, "tags": []any{"a", 2}, "enabled": true,
	}))
	assert.Equal(t, 1500*time.Millisecond, c.Seconds("wait"))
	assert.Equal(t, []string{"a", "2"}, c.Strings("tags"))
	assert.True(t, c.Bool("enabled"))
	assert.Equal(t, 1, c.Int("wait"))
}

func TestDuplicateFieldPanics(t *testing.T) {
	assert.Panics(t, func() {
		New("dup", Field{Name: "a", Types: []Type{String}}, Field{Name: "a", Types: []Type{Int}})
	})
}

func TestRegistry(t *testing.T) {
	names := make([]string, 0)
	for _, s := range Schemas() {
		names = append(names, s.Name)
		assert.NotEmpty(t, s.Description)
		// Every schema must construct without duplicate names.
		assert.NotPanics(t, func() { NewFromSchema(s.Name) })
	}
	assert.Equal(t, []string{SchemaGlobal, SchemaEvent, SchemaJob, SchemaPR,
		SchemaWorkItem, SchemaBranch, SchemaPipeline}, names)

	_, ok := Lookup("nope")
	assert.False(t, ok)
	assert.Panics(t, func() { NewFromSchema("nope") })

	pr := NewFromSchema(SchemaPR)
	err := pr.Load(map[string]any{"kind": "pr", "subkind": "create"})
	var missing *MissingFieldError
	require.True(t, errors.As(err, &missing))
	assert.Contains(t, err.Error(), "project")
	assert.Contains(t, err.Error(), "repository")
}
