package filter

import (
	"fmt"
	"strings"
)

// Filter is a compiled expression together with its source text.
type Filter struct {
	src  string
	expr Expr
}

// Compile parses src once; Match never re-parses.
func Compile(src string) (*Filter, error) {
	e, err := Parse(src)
	if err != nil {
		return nil, fmt.Errorf("filter %q: %w", src, err)
	}
	return &Filter{src: src, expr: e}, nil
}

func (f *Filter) String() string { return f.src }

// Match evaluates the filter against event fields. Referencing a field the
// event does not carry is an error.
func (f *Filter) Match(fields map[string]any) (bool, error) {
	ok, err := Evaluate(f.expr, fields)
	if err != nil {
		return false, fmt.Errorf("filter %q: %w", f.src, err)
	}
	return ok, nil
}

// Evaluate walks e against fields.
func Evaluate(e Expr, fields map[string]any) (bool, error) {
	switch n := e.(type) {
	case *BinaryExpr:
		left, err := Evaluate(n.Left, fields)
		if err != nil {
			return false, err
		}
		if n.Op == "AND" {
			if !left {
				return false, nil
			}
			return Evaluate(n.Right, fields)
		}
		if left {
			return true, nil
		}
		return Evaluate(n.Right, fields)
	case *NotExpr:
		v, err := Evaluate(n.Expr, fields)
		return !v, err
	case *TruthExpr:
		v, err := resolve(n.Field, fields)
		if err != nil {
			return false, err
		}
		b, ok := v.(bool)
		if !ok {
			return false, fmt.Errorf("field %q is %T, not a bool", strings.Join(n.Field.Path, "."), v)
		}
		return b, nil
	case *ComparisonExpr:
		left, err := resolve(n.Left, fields)
		if err != nil {
			return false, err
		}
		right, err := resolve(n.Right, fields)
		if err != nil {
			return false, err
		}
		return compare(n.Op, left, right, n.re)
	}
	return false, fmt.Errorf("unknown expression %T", e)
}

func resolve(op Operand, fields map[string]any) (any, error) {
	switch o := op.(type) {
	case *LiteralOperand:
		return o.Value, nil
	case *FieldOperand:
		var cur any = fields
		for _, part := range o.Path {
			m, ok := cur.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("field %q not found", strings.Join(o.Path, "."))
			}
			if cur, ok = m[part]; !ok {
				return nil, fmt.Errorf("field %q not found", strings.Join(o.Path, "."))
			}
		}
		return cur, nil
	}
	return nil, fmt.Errorf("unknown operand %T", op)
}
