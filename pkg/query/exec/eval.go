package exec

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/solidb/solidb/pkg/query/ast"
	"github.com/solidb/solidb/pkg/value"
)

func (e *Executor) eval(expr ast.Expr, row Row) (value.Value, error) {
	switch x := expr.(type) {
	case *ast.NullLit:
		return value.Null(), nil
	case *ast.BoolLit:
		return value.Bool(x.Value), nil
	case *ast.IntLit:
		return value.Int(x.Value), nil
	case *ast.FloatLit:
		return value.Float(x.Value), nil
	case *ast.StringLit:
		return value.String(x.Value), nil
	case *ast.TemplateLit:
		return e.evalTemplate(x, row)
	case *ast.BindVar:
		v, ok := e.binds[x.Name]
		if !ok {
			return value.Null(), fmt.Errorf("exec: unbound bind variable @%s", x.Name)
		}
		return v, nil
	case *ast.Ident:
		if v, ok := row[x.Name]; ok {
			return v, nil
		}
		return value.Null(), nil
	case *ast.ArrayLit:
		items := make([]value.Value, len(x.Elements))
		for i, el := range x.Elements {
			v, err := e.eval(el, row)
			if err != nil {
				return value.Null(), err
			}
			items[i] = v
		}
		return value.Array(items), nil
	case *ast.ObjectLit:
		b := value.NewObject()
		for _, f := range x.Fields {
			v, err := e.eval(f.Value, row)
			if err != nil {
				return value.Null(), err
			}
			b.Set(f.Key, v)
		}
		return b.Build(), nil
	case *ast.MemberExpr:
		t, err := e.eval(x.Target, row)
		if err != nil {
			return value.Null(), err
		}
		if t.Kind() != value.KindObject {
			if x.Optional {
				return value.Null(), nil
			}
			return value.Null(), nil
		}
		f, ok := t.Field(x.Field)
		if !ok {
			return value.Null(), nil
		}
		return f, nil
	case *ast.IndexExpr:
		t, err := e.eval(x.Target, row)
		if err != nil {
			return value.Null(), err
		}
		idx, err := e.eval(x.Index, row)
		if err != nil {
			return value.Null(), err
		}
		switch t.Kind() {
		case value.KindArray:
			i := int(idx.Number())
			arr := t.AsArray()
			if i < 0 || i >= len(arr) {
				return value.Null(), nil
			}
			return arr[i], nil
		case value.KindObject:
			f, _ := t.Field(idx.AsString())
			return f, nil
		}
		return value.Null(), nil
	case *ast.RangeExpr:
		lo, err := e.eval(x.Lo, row)
		if err != nil {
			return value.Null(), err
		}
		hi, err := e.eval(x.Hi, row)
		if err != nil {
			return value.Null(), err
		}
		l, h := int64(lo.Number()), int64(hi.Number())
		var items []value.Value
		if l <= h {
			for i := l; i <= h; i++ {
				items = append(items, value.Int(i))
			}
		} else {
			for i := l; i >= h; i-- {
				items = append(items, value.Int(i))
			}
		}
		return value.Array(items), nil
	case *ast.UnaryExpr:
		v, err := e.eval(x.X, row)
		if err != nil {
			return value.Null(), err
		}
		switch x.Op {
		case "-":
			if v.Kind() == value.KindInt {
				return value.Int(-v.AsInt()), nil
			}
			return value.Float(-v.Number()), nil
		case "NOT":
			return value.Bool(!v.Truthy()), nil
		}
		return value.Null(), fmt.Errorf("exec: unknown unary operator %s", x.Op)
	case *ast.BinaryExpr:
		return e.evalBinary(x, row)
	case *ast.FuncCall:
		args := make([]value.Value, len(x.Args))
		for i, a := range x.Args {
			v, err := e.eval(a, row)
			if err != nil {
				return value.Null(), err
			}
			args[i] = v
		}
		return callBuiltin(x.Name, args)
	case *ast.SubqueryExpr:
		sub := New(e.database, e.binds, e.views)
		sub.rowsScanned = 0
		res, err := sub.runFrom(x.Query, row)
		e.rowsScanned += sub.rowsScanned
		if err != nil {
			return value.Null(), err
		}
		return value.Array(res.Values), nil
	}
	return value.Null(), fmt.Errorf("exec: unsupported expression %T", expr)
}

// runFrom runs q starting with outer as the single seed row, so a
// subquery expression can see its enclosing FOR/LET bindings.
func (e *Executor) runFrom(q *ast.Query, outer Row) (*Result, error) {
	rows := []Row{outer.clone()}
	var terminal *Result
	for i, clause := range q.Clauses {
		out, res, err := e.step(clause, rows, i == len(q.Clauses)-1)
		if err != nil {
			return nil, err
		}
		if res != nil {
			terminal = res
			break
		}
		rows = out
	}
	if terminal == nil {
		terminal = &Result{}
	}
	return terminal, nil
}

func (e *Executor) evalTemplate(t *ast.TemplateLit, row Row) (value.Value, error) {
	var sb strings.Builder
	for i, part := range t.Parts {
		sb.WriteString(part)
		if i < len(t.Exprs) {
			v, err := e.eval(t.Exprs[i], row)
			if err != nil {
				return value.Null(), err
			}
			sb.WriteString(stringify(v))
		}
	}
	return value.String(sb.String()), nil
}

func stringify(v value.Value) string {
	if v.Kind() == value.KindString {
		return v.AsString()
	}
	return fmt.Sprintf("%v", value.ToJSON(v))
}

func (e *Executor) evalBinary(x *ast.BinaryExpr, row Row) (value.Value, error) {
	// short-circuit logical operators
	switch x.Op {
	case "AND":
		l, err := e.eval(x.Left, row)
		if err != nil {
			return value.Null(), err
		}
		if !l.Truthy() {
			return value.Bool(false), nil
		}
		r, err := e.eval(x.Right, row)
		if err != nil {
			return value.Null(), err
		}
		return value.Bool(r.Truthy()), nil
	case "OR":
		l, err := e.eval(x.Left, row)
		if err != nil {
			return value.Null(), err
		}
		if l.Truthy() {
			return value.Bool(true), nil
		}
		r, err := e.eval(x.Right, row)
		if err != nil {
			return value.Null(), err
		}
		return value.Bool(r.Truthy()), nil
	case "??":
		l, err := e.eval(x.Left, row)
		if err != nil {
			return value.Null(), err
		}
		if !l.IsNull() {
			return l, nil
		}
		return e.eval(x.Right, row)
	}

	l, err := e.eval(x.Left, row)
	if err != nil {
		return value.Null(), err
	}
	r, err := e.eval(x.Right, row)
	if err != nil {
		return value.Null(), err
	}

	switch x.Op {
	case "==":
		return value.Bool(value.Equal(l, r)), nil
	case "!=":
		return value.Bool(!value.Equal(l, r)), nil
	case "<":
		return value.Bool(value.Compare(l, r) < 0), nil
	case ">":
		return value.Bool(value.Compare(l, r) > 0), nil
	case "<=":
		return value.Bool(value.Compare(l, r) <= 0), nil
	case ">=":
		return value.Bool(value.Compare(l, r) >= 0), nil
	case "IN":
		if r.Kind() == value.KindArray {
			for _, item := range r.AsArray() {
				if value.Equal(item, l) {
					return value.Bool(true), nil
				}
			}
			return value.Bool(false), nil
		}
		return value.Bool(false), nil
	case "=~":
		re, err := regexp.Compile(r.AsString())
		if err != nil {
			return value.Null(), fmt.Errorf("exec: invalid regex %q: %w", r.AsString(), err)
		}
		return value.Bool(re.MatchString(l.AsString())), nil
	case "!~":
		re, err := regexp.Compile(r.AsString())
		if err != nil {
			return value.Null(), fmt.Errorf("exec: invalid regex %q: %w", r.AsString(), err)
		}
		return value.Bool(!re.MatchString(l.AsString())), nil
	case "~=":
		return value.Bool(likeMatch(l.AsString(), r.AsString())), nil
	case "FUZZY":
		return value.Bool(fuzzyMatch(stringify(l), stringify(r))), nil
	case "+":
		if l.Kind() == value.KindString || r.Kind() == value.KindString {
			return value.String(stringify(l) + stringify(r)), nil
		}
		if l.Kind() == value.KindArray && r.Kind() == value.KindArray {
			return value.Array(append(append([]value.Value(nil), l.AsArray()...), r.AsArray()...)), nil
		}
		return numeric(l, r, func(a, b float64) float64 { return a + b }), nil
	case "-":
		return numeric(l, r, func(a, b float64) float64 { return a - b }), nil
	case "*":
		return numeric(l, r, func(a, b float64) float64 { return a * b }), nil
	case "/":
		return numeric(l, r, func(a, b float64) float64 {
			if b == 0 {
				return 0
			}
			return a / b
		}), nil
	case "%":
		return numeric(l, r, func(a, b float64) float64 {
			if b == 0 {
				return 0
			}
			ai, bi := int64(a), int64(b)
			return float64(ai % bi)
		}), nil
	case "**":
		return numeric(l, r, pow), nil
	case "<<":
		return shift(l, r, func(a, b int64) int64 { return a << uint(b) })
	case ">>":
		return shift(l, r, func(a, b int64) int64 { return a >> uint(b) })
	}
	return value.Null(), fmt.Errorf("exec: unknown binary operator %s", x.Op)
}

// shift applies an integer bit-shift operator. Both operands must be
// integral; a shift count outside [0,63] is rejected with an error
// instead of being passed to Go's native shift.
func shift(l, r value.Value, fn func(a, b int64) int64) (value.Value, error) {
	if l.Kind() != value.KindInt || r.Kind() != value.KindInt {
		return value.Null(), fmt.Errorf("exec: shift operator requires integer operands, got kind %d and %d", l.Kind(), r.Kind())
	}
	n := r.AsInt()
	if n < 0 || n > 63 {
		return value.Null(), fmt.Errorf("exec: shift count %d out of range [0,63]", n)
	}
	return value.Int(fn(l.AsInt(), n)), nil
}

func numeric(l, r value.Value, fn func(a, b float64) float64) value.Value {
	result := fn(l.Number(), r.Number())
	if l.Kind() == value.KindInt && r.Kind() == value.KindInt && result == float64(int64(result)) {
		return value.Int(int64(result))
	}
	return value.Float(result)
}

// pow raises a to an integer power b (the query language's ** operator
// only needs integer exponents in practice; b is truncated toward zero).
func pow(a, b float64) float64 {
	n := int(b)
	neg := n < 0
	if neg {
		n = -n
	}
	result := 1.0
	for i := 0; i < n; i++ {
		result *= a
	}
	if neg {
		if result == 0 {
			return 0
		}
		return 1 / result
	}
	return result
}

// fuzzyMatch implements the FUZZY comparison operator (spec §4.2
// precedence table): true when the Levenshtein edit distance between s
// and pattern, case-folded, is within fuzzyThreshold. There is no
// lexical FUZZY symbol or worked example in spec §4.1/§8, so the
// threshold and algorithm are this implementation's own choice,
// recorded in DESIGN.md.
const fuzzyThreshold = 2

func fuzzyMatch(s, pattern string) bool {
	return levenshtein(strings.ToLower(s), strings.ToLower(pattern)) <= fuzzyThreshold
}

// levenshtein computes the classic edit distance between a and b using
// a two-row dynamic-programming table.
func levenshtein(a, b string) int {
	ar, br := []rune(a), []rune(b)
	prev := make([]int, len(br)+1)
	cur := make([]int, len(br)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ar); i++ {
		cur[0] = i
		for j := 1; j <= len(br); j++ {
			cost := 1
			if ar[i-1] == br[j-1] {
				cost = 0
			}
			del := prev[j] + 1
			ins := cur[j-1] + 1
			sub := prev[j-1] + cost
			m := del
			if ins < m {
				m = ins
			}
			if sub < m {
				m = sub
			}
			cur[j] = m
		}
		prev, cur = cur, prev
	}
	return prev[len(br)]
}

// likeMatch implements SQL-style LIKE matching with % and _ wildcards.
func likeMatch(s, pattern string) bool {
	re := "^"
	for _, r := range pattern {
		switch r {
		case '%':
			re += ".*"
		case '_':
			re += "."
		default:
			re += regexp.QuoteMeta(string(r))
		}
	}
	re += "$"
	matched, err := regexp.MatchString(re, s)
	return err == nil && matched
}
