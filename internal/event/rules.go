package event

import (
	"reflect"
	"sort"
	"strings"
)

// match is what a rule reports when a transition qualifies: the attributes
// that changed plus any derived fields.
type match struct {
	changed []string
	extra   map[string]any
}

// rule is a pure detection function. watch is the definition's configured
// attribute list and is only consulted by rules that watch arbitrary attributes.
type rule func(prev *Snapshot, curr Snapshot, watch []string) (match, bool)

// created fires only on the first observation of an entity.
func created(prev *Snapshot, _ Snapshot, _ []string) (match, bool) {
	return match{}, prev == nil
}

// changedWatched fires when any watched attribute differs. With no watch
// list every attribute of either snapshot is watched.
func changedWatched(prev *Snapshot, curr Snapshot, watch []string) (match, bool) {
	if prev == nil {
		return match{}, false
	}
	attrs := watch
	if len(attrs) == 0 {
		attrs = unionKeys(prev.Attributes, curr.Attributes)
	}
	return diff(prev, curr, attrs)
}

// changed fires when any of attrs differs.
func changed(attrs ...string) rule {
	return func(prev *Snapshot, curr Snapshot, _ []string) (match, bool) {
		if prev == nil {
			return match{}, false
		}
		return diff(prev, curr, attrs)
	}
}

// foldChanged compares a string attribute ignoring case and surrounding space.
func foldChanged(attr string) rule {
	return func(prev *Snapshot, curr Snapshot, _ []string) (match, bool) {
		if prev == nil {
			return match{}, false
		}
		a, _ := prev.Attributes[attr].(string)
		b, _ := curr.Attributes[attr].(string)
		if strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b)) {
			return match{}, false
		}
		return match{changed: []string{attr}}, true
	}
}

// toggled fires when a bool attribute flips to want. Absent counts as false.
func toggled(attr string, want bool) rule {
	return func(prev *Snapshot, curr Snapshot, _ []string) (match, bool) {
		if prev == nil {
			return match{}, false
		}
		was, _ := prev.Attributes[attr].(bool)
		is, _ := curr.Attributes[attr].(bool)
		if was == want || is != want {
			return match{}, false
		}
		return match{changed: []string{attr}}, true
	}
}

// increased fires when a numeric attribute grows.
func increased(attr string) rule {
	return func(prev *Snapshot, curr Snapshot, _ []string) (match, bool) {
		if prev == nil {
			return match{}, false
		}
		was, _ := number(prev.Attributes[attr])
		is, ok := number(curr.Attributes[attr])
		if !ok || is <= was {
			return match{}, false
		}
		return match{
			changed: []string{attr},
			extra:   map[string]any{"new_" + attr: is - was},
		}, true
	}
}

// gained fires when a list attribute gains members. The new members are
// reported as added_<attr>.
func gained(attr string) rule {
	return func(prev *Snapshot, curr Snapshot, _ []string) (match, bool) {
		if prev == nil {
			return match{}, false
		}
		before := list(prev.Attributes[attr])
		var added []any
		for _, v := range list(curr.Attributes[attr]) {
			if !containsValue(before, v) {
				added = append(added, v)
			}
		}
		if len(added) == 0 {
			return match{}, false
		}
		return match{
			changed: []string{attr},
			extra:   map[string]any{"added_" + attr: added},
		}, true
	}
}

func diff(prev *Snapshot, curr Snapshot, attrs []string) (match, bool) {
	var out []string
	for _, a := range attrs {
		pv, pok := prev.Attributes[a]
		cv, cok := curr.Attributes[a]
		if pok != cok || !Equal(pv, cv) {
			out = append(out, a)
		}
	}
	if len(out) == 0 {
		return match{}, false
	}
	return match{changed: out}, true
}

func unionKeys(a, b map[string]any) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	for k := range a {
		seen[k] = struct{}{}
	}
	for k := range b {
		seen[k] = struct{}{}
	}
	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Equal compares two attribute values. Numbers compare by value regardless
// of their Go type, so a snapshot decoded from JSON equals one built in code.
func Equal(a, b any) bool {
	return reflect.DeepEqual(normalize(a), normalize(b))
}

func normalize(v any) any {
	if n, ok := number(v); ok {
		return n
	}
	switch t := v.(type) {
	case []string:
		out := make([]any, len(t))
		for i, s := range t {
			out[i] = s
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, x := range t {
			out[i] = normalize(x)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, x := range t {
			out[k] = normalize(x)
		}
		return out
	}
	return v
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

func list(v any) []any {
	switch t := v.(type) {
	case []any:
		return t
	case []string:
		return normalize(t).([]any)
	}
	return nil
}

func containsValue(l []any, v any) bool {
	for _, x := range l {
		if Equal(x, v) {
			return true
		}
	}
	return false
}
