package exec

import (
	"math"

	"github.com/solidb/solidb/pkg/document"
	"github.com/solidb/solidb/pkg/index"
	"github.com/solidb/solidb/pkg/query/ast"
	"github.com/solidb/solidb/pkg/value"
)

// tryIndexedScan implements spec §4.3 optimization 1: substitute a
// persistent index lookup for a leading `FOR var IN coll FILTER
// var.field <op> literal` pair when coll has a single-field persistent
// index on field. It only fires for a lone comparison (==, <, >, <=,
// >=) as the entire FILTER condition — a compound AND/OR condition
// falls back to the full scan, since extractComparison only matches a
// bare comparison at the top of the FILTER. Returns ok=false whenever
// the shape doesn't apply, in which case callers run the unmodified
// pipeline.
func (e *Executor) tryIndexedScan(clauses []ast.Clause) ([]Row, int, bool, error) {
	if len(clauses) < 2 {
		return nil, 0, false, nil
	}
	forCl, ok := clauses[0].(*ast.ForClause)
	if !ok {
		return nil, 0, false, nil
	}
	ident, ok := forCl.Source.(*ast.Ident)
	if !ok {
		return nil, 0, false, nil
	}
	if _, isBind := e.binds[ident.Name]; isBind {
		return nil, 0, false, nil
	}
	filterCl, ok := clauses[1].(*ast.FilterClause)
	if !ok {
		return nil, 0, false, nil
	}
	coll, err := e.database.Collection(ident.Name)
	if err != nil {
		return nil, 0, false, nil
	}

	cmp, ok := extractComparison(filterCl.Cond, forCl.Var)
	if !ok {
		return nil, 0, false, nil
	}
	ix := findPersistentIndex(coll, cmp.field)
	if ix == nil {
		return nil, 0, false, nil
	}

	litVal, err := e.eval(cmp.literal, Row{})
	if err != nil {
		return nil, 0, false, err
	}
	litVal = value.NormalizeNumber(litVal)

	var keys []string
	switch cmp.op {
	case "==":
		keys, err = ix.Equals([]value.Value{litVal})
	case "<", "<=", ">", ">=":
		if !litVal.IsNumber() {
			return nil, 0, false, nil
		}
		lo, hi := value.Float(math.Inf(-1)), value.Float(math.Inf(1))
		includeLow, includeHigh := true, true
		switch cmp.op {
		case "<":
			hi, includeHigh = litVal, false
		case "<=":
			hi = litVal
		case ">":
			lo, includeLow = litVal, false
		case ">=":
			lo = litVal
		}
		keys, err = ix.Range(lo, hi, includeLow, includeHigh)
	default:
		return nil, 0, false, nil
	}
	if err != nil {
		return nil, 0, false, err
	}

	out := make([]Row, 0, len(keys))
	for _, k := range keys {
		doc, found, err := coll.Get(k)
		if err != nil {
			return nil, 0, false, err
		}
		if !found {
			continue
		}
		e.rowsScanned++
		out = append(out, Row{forCl.Var: doc})
	}
	return out, 2, true, nil
}

// fieldCmp is one `var.field <op> literal` comparison extracted from a
// FILTER condition.
type fieldCmp struct {
	field   string
	op      string
	literal ast.Expr
}

// extractComparison recognizes cond as exactly `var.field <op> literal`
// or `literal <op> var.field` (flipping the operator in the latter
// case), for ops in {==, <, >, <=, >=}. Anything else, including a
// compound AND/OR condition, is reported as not-extractable.
func extractComparison(cond ast.Expr, varName string) (fieldCmp, bool) {
	bin, ok := cond.(*ast.BinaryExpr)
	if !ok {
		return fieldCmp{}, false
	}
	switch bin.Op {
	case "==", "<", ">", "<=", ">=":
	default:
		return fieldCmp{}, false
	}
	if mem, ok := bin.Left.(*ast.MemberExpr); ok {
		if id, ok := mem.Target.(*ast.Ident); ok && id.Name == varName && isLiteralish(bin.Right) {
			return fieldCmp{field: mem.Field, op: bin.Op, literal: bin.Right}, true
		}
	}
	if mem, ok := bin.Right.(*ast.MemberExpr); ok {
		if id, ok := mem.Target.(*ast.Ident); ok && id.Name == varName && isLiteralish(bin.Left) {
			return fieldCmp{field: mem.Field, op: flipOp(bin.Op), literal: bin.Left}, true
		}
	}
	return fieldCmp{}, false
}

func isLiteralish(e ast.Expr) bool {
	switch e.(type) {
	case *ast.IntLit, *ast.FloatLit, *ast.StringLit, *ast.BoolLit, *ast.BindVar:
		return true
	}
	return false
}

func flipOp(op string) string {
	switch op {
	case "<":
		return ">"
	case ">":
		return "<"
	case "<=":
		return ">="
	case ">=":
		return "<="
	default:
		return op
	}
}

// findPersistentIndex returns coll's single-field persistent index over
// field, if one is bound.
func findPersistentIndex(coll *document.Collection, field string) *index.Persistent {
	for _, ix := range coll.Indexes() {
		p, ok := ix.(*index.Persistent)
		if !ok {
			continue
		}
		fields := p.Fields()
		if len(fields) == 1 && fields[0] == field {
			return p
		}
	}
	return nil
}
