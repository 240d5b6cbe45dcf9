package job

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender(t *testing.T) {
	fields := map[string]any{
		"entity_id": "42",
		"count":     float64(3),
		"ratio":     0.5,
		"draft":     false,
		"reviewers": []any{"alice", "bob"},
		"votes":     map[string]any{"alice": 10},
		"prev":      nil,
	}
	cases := []struct {
		name string
		args []string
		want []string
	}{
		{"plain", []string{"/bin/echo", "hello"}, []string{"/bin/echo", "hello"}},
		{"whole arg", []string{"{entity_id}"}, []string{"42"}},
		{"embedded", []string{"--id={entity_id}"}, []string{"--id=42"}},
		{"several", []string{"{entity_id}-{count}"}, []string{"42-3"}},
		{"spaces in braces", []string{"{ entity_id }"}, []string{"42"}},
		{"float", []string{"{ratio}"}, []string{"0.5"}},
		{"bool", []string{"{draft}"}, []string{"false"}},
		{"list", []string{"{reviewers}"}, []string{"alice,bob"}},
		{"map", []string{"{votes}"}, []string{`{"alice":10}`}},
		{"nil", []string{"[{prev}]"}, []string{"[]"}},
		{"escaped", []string{"{{entity_id}}"}, []string{"{entity_id}"}},
		{"escaped json", []string{`{{"id": "{entity_id}"}}`}, []string{`{"id": "42"}`}},
		{"lone close", []string{"a}b"}, []string{"a}b"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Render("j", tc.args, fields)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestRenderMissing(t *testing.T) {
	_, err := Render("notify", []string{"/bin/echo", "{nonexistent_field}", "{entity_id}", "{other} {nonexistent_field}"},
		map[string]any{"entity_id": "42"})
	var te *TemplateError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "notify", te.Job)
	assert.Equal(t, []string{"nonexistent_field", "other"}, te.Missing)
	assert.Contains(t, err.Error(), "{nonexistent_field}")
}

func TestRenderMalformed(t *testing.T) {
	for _, arg := range []string{"{entity_id", "{}", "{a{b}"} {
		t.Run(arg, func(t *testing.T) {
			_, err := Render("j", []string{arg}, map[string]any{"entity_id": "1"})
			var te *TemplateError
			require.True(t, errors.As(err, &te), "got %v", err)
			assert.Error(t, te.Err)
		})
	}
}

func TestFormatValue(t *testing.T) {
	assert.Equal(t, "7", FormatValue(7))
	assert.Equal(t, "42", FormatValue(float64(42)))
	assert.Equal(t, "a,b", FormatValue([]string{"a", "b"}))
	assert.Equal(t, "1,x,", FormatValue([]any{float64(1), "x", nil}))
}
