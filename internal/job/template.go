package job

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// TemplateError reports a job command that could not be rendered. Missing
// lists every placeholder with no matching event field.
type TemplateError struct {
	Job     string
	Missing []string
	Err     error
}

func (e *TemplateError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("job %s: template: %v", e.Job, e.Err)
	}
	return fmt.Sprintf("job %s: unresolved placeholders {%s}", e.Job, strings.Join(e.Missing, "}, {"))
}

func (e *TemplateError) Unwrap() error { return e.Err }

// Render substitutes {name} placeholders in every argument with the
// matching field. "{{" and "}}" produce literal braces. Nothing is returned
// unless every placeholder resolves.
func Render(job string, args []string, fields map[string]any) ([]string, error) {
	out := make([]string, len(args))
	missing := map[string]struct{}{}
	for i, arg := range args {
		s, err := renderArg(arg, fields, missing)
		if err != nil {
			return nil, &TemplateError{Job: job, Err: fmt.Errorf("argument %d %q: %w", i, arg, err)}
		}
		out[i] = s
	}
	if len(missing) > 0 {
		names := make([]string, 0, len(missing))
		for n := range missing {
			names = append(names, n)
		}
		sort.Strings(names)
		return nil, &TemplateError{Job: job, Missing: names}
	}
	return out, nil
}

func renderArg(arg string, fields map[string]any, missing map[string]struct{}) (string, error) {
	var b strings.Builder
	for i := 0; i < len(arg); i++ {
		switch c := arg[i]; c {
		case '{':
			if i+1 < len(arg) && arg[i+1] == '{' {
				b.WriteByte('{')
				i++
				continue
			}
			end := strings.IndexByte(arg[i+1:], '}')
			if end < 0 {
				return "", fmt.Errorf("unclosed '{' at offset %d", i)
			}
			name := strings.TrimSpace(arg[i+1 : i+1+end])
			if name == "" || strings.ContainsRune(name, '{') {
				return "", fmt.Errorf("invalid placeholder at offset %d", i)
			}
			v, ok := fields[name]
			if !ok {
				missing[name] = struct{}{}
			} else {
				b.WriteString(FormatValue(v))
			}
			i += end + 1
		case '}':
			if i+1 < len(arg) && arg[i+1] == '}' {
				i++
			}
			b.WriteByte('}')
		default:
			b.WriteByte(c)
		}
	}
	return b.String(), nil
}

// FormatValue renders a field for a command line or environment variable.
// Lists are comma-joined, maps become JSON and nil is empty.
func FormatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case []any:
		parts := make([]string, len(t))
		for i, x := range t {
			parts[i] = FormatValue(x)
		}
		return strings.Join(parts, ",")
	case []string:
		return strings.Join(t, ",")
	case map[string]any:
		data, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(data)
	}
	return fmt.Sprint(v)
}
