package filter

import (
	"fmt"
	"math"
	"regexp"
	"strings"
)

// Operator is a comparison operator.
type Operator string

const (
	OpEq       Operator = "=="
	OpNeq      Operator = "!="
	OpGt       Operator = ">"
	OpGte      Operator = ">="
	OpLt       Operator = "<"
	OpLte      Operator = "<="
	OpContains Operator = "contains"
	OpMatches  Operator = "matches"
)

func toFloat64(v any) (float64, bool) {
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

func compare(op Operator, left, right any, re *regexp.Regexp) (bool, error) {
	switch op {
	case OpEq:
		return equal(left, right), nil
	case OpNeq:
		return !equal(left, right), nil
	case OpGt, OpGte, OpLt, OpLte:
		return ordered(op, left, right)
	case OpContains:
		return contains(left, right)
	case OpMatches:
		return matches(left, right, re)
	}
	return false, fmt.Errorf("unknown operator %q", op)
}

// equal compares numbers by value, bools strictly, and everything else by
// its printed form.
func equal(left, right any) bool {
	lf, lok := toFloat64(left)
	rf, rok := toFloat64(right)
	if lok && rok {
		return math.Abs(lf-rf) < 1e-9
	}
	lb, lok := left.(bool)
	rb, rok := right.(bool)
	if lok || rok {
		return lok && rok && lb == rb
	}
	return fmt.Sprint(left) == fmt.Sprint(right)
}

func ordered(op Operator, left, right any) (bool, error) {
	lf, lok := toFloat64(left)
	rf, rok := toFloat64(right)
	if !lok || !rok {
		return false, fmt.Errorf("operator %s needs numeric operands, got %T and %T", op, left, right)
	}
	switch op {
	case OpGt:
		return lf > rf, nil
	case OpGte:
		return lf >= rf, nil
	case OpLt:
		return lf < rf, nil
	default:
		return lf <= rf, nil
	}
}

// contains is substring search on strings and membership on lists.
func contains(left, right any) (bool, error) {
	switch l := left.(type) {
	case string:
		return strings.Contains(l, fmt.Sprint(right)), nil
	case []any:
		for _, item := range l {
			if equal(item, right) {
				return true, nil
			}
		}
		return false, nil
	case []string:
		for _, item := range l {
			if item == fmt.Sprint(right) {
				return true, nil
			}
		}
		return false, nil
	}
	return false, fmt.Errorf("contains: left operand must be a string or list, got %T", left)
}

func matches(left, right any, re *regexp.Regexp) (bool, error) {
	s, ok := left.(string)
	if !ok {
		return false, fmt.Errorf("matches: left operand must be a string, got %T", left)
	}
	if re == nil {
		pattern, ok := right.(string)
		if !ok {
			return false, fmt.Errorf("matches: pattern must be a string, got %T", right)
		}
		var err error
		if re, err = regexp.Compile(pattern); err != nil {
			return false, fmt.Errorf("matches: invalid pattern %q: %w", pattern, err)
		}
	}
	return re.MatchString(s), nil
}
