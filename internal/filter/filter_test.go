package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fields(kv ...any) map[string]any {
	m := make(map[string]any)
	for i := 0; i < len(kv)-1; i += 2 {
		m[kv[i].(string)] = kv[i+1]
	}
	return m
}

type matchCase struct {
	name    string
	expr    string
	fields  map[string]any
	want    bool
	wantErr bool
}

func TestMatch(t *testing.T) {
	cases := []matchCase{
		// Numeric comparisons
		{name: "gt true", expr: "comment_count > 3", fields: fields("comment_count", 5), want: true},
		{name: "gt false", expr: "comment_count > 3", fields: fields("comment_count", 2), want: false},
		{name: "gte equal", expr: "comment_count >= 3", fields: fields("comment_count", float64(3)), want: true},
		{name: "lt", expr: "priority < 2", fields: fields("priority", 1), want: true},
		{name: "lte", expr: "priority <= 2", fields: fields("priority", 3), want: false},
		{name: "negative literal", expr: "delta > -1", fields: fields("delta", 0), want: true},
		{name: "int equals float literal", expr: "id == 42", fields: fields("id", 42), want: true},

		// Strings
		{name: "string eq", expr: `status == "active"`, fields: fields("status", "active"), want: true},
		{name: "string neq", expr: `status != 'active'`, fields: fields("status", "completed"), want: true},
		{name: "escaped quote", expr: `title == "say \"hi\""`, fields: fields("title", `say "hi"`), want: true},
		{name: "substring", expr: `title contains "WIP"`, fields: fields("title", "WIP: fix"), want: true},
		{name: "matches", expr: `title matches "^\\[release\\]"`, fields: fields("title", "[release] 1.2"), want: true},
		{name: "matches miss", expr: `title matches "^release"`, fields: fields("title", "hotfix"), want: false},

		// Lists
		{name: "list contains", expr: `reviewers contains "alice"`, fields: fields("reviewers", []any{"bob", "alice"}), want: true},
		{name: "list missing", expr: `reviewers contains "carol"`, fields: fields("reviewers", []any{"bob"}), want: false},
		{name: "string list", expr: `labels contains "bug"`, fields: fields("labels", []string{"bug"}), want: true},

		// Booleans
		{name: "bare bool", expr: "is_draft", fields: fields("is_draft", true), want: true},
		{name: "not bool", expr: "NOT is_draft", fields: fields("is_draft", true), want: false},
		{name: "bool literal", expr: "is_draft == false", fields: fields("is_draft", false), want: true},
		{name: "bool vs string", expr: `is_draft == "true"`, fields: fields("is_draft", true), want: false},

		// Logic
		{name: "and", expr: `status == "active" AND NOT is_draft`, fields: fields("status", "active", "is_draft", false), want: true},
		{name: "or short circuit", expr: `status == "active" OR missing > 1`, fields: fields("status", "active"), want: true},
		{name: "and short circuit", expr: `status == "closed" AND missing > 1`, fields: fields("status", "active"), want: false},
		{name: "parens", expr: `(a == 1 OR b == 1) AND c == 1`, fields: fields("a", 0, "b", 1, "c", 1), want: true},
		{name: "lowercase keywords", expr: `a == 1 and not b`, fields: fields("a", 1, "b", false), want: true},

		// Nested fields
		{name: "dotted path", expr: `votes.alice == 10`, fields: fields("votes", map[string]any{"alice": 10}), want: true},

		// Errors
		{name: "missing field", expr: `nope == 1`, fields: fields("x", 1), wantErr: true},
		{name: "bare non-bool", expr: `status`, fields: fields("status", "active"), wantErr: true},
		{name: "ordering on strings", expr: `status > 1`, fields: fields("status", "active"), wantErr: true},
		{name: "contains on number", expr: `n contains 1`, fields: fields("n", 5), wantErr: true},
		{name: "path through scalar", expr: `a.b == 1`, fields: fields("a", 1), wantErr: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f, err := Compile(tc.expr)
			require.NoError(t, err)
			got, err := f.Match(tc.fields)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestCompileErrors(t *testing.T) {
	cases := []string{
		"",
		"a ==",
		"a = 1",
		"(a == 1",
		`a == "unterminated`,
		"a == 1 b",
		`a matches "("`,
		`a matches 1`,
		"AND == 1",
		"1",
		"a == 1 $",
	}
	for _, src := range cases {
		t.Run(src, func(t *testing.T) {
			_, err := Compile(src)
			assert.Error(t, err)
		})
	}
}

func TestFilterString(t *testing.T) {
	f, err := Compile(`status == "active"`)
	require.NoError(t, err)
	assert.Equal(t, `status == "active"`, f.String())
}
