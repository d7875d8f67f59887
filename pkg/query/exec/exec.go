/*
Package exec evaluates a pkg/query/ast.Query against a document.Database:
a small dataflow pipeline that threads a slice of row environments
through each clause in turn (spec §4.3 execution model), finishing at a
terminal RETURN or mutation clause.
*/
package exec

import (
	"fmt"
	"sort"
	"time"

	"github.com/solidb/solidb/pkg/dberr"
	"github.com/solidb/solidb/pkg/document"
	"github.com/solidb/solidb/pkg/query/ast"
	"github.com/solidb/solidb/pkg/value"
)

// Row is one in-flight variable environment as the pipeline executes.
type Row map[string]value.Value

func (r Row) clone() Row {
	out := make(Row, len(r)+1)
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Sink is the mutation surface a query writes through: either directly
// against a document.Database (auto-commit) or staged into a running
// transaction (pkg/txn).
type Sink interface {
	Insert(db, coll string, doc value.Value) (value.Value, error)
	Update(db, coll, key string, patch value.Value, replace bool) (value.Value, error)
	Remove(db, coll, key string) error
}

// directSink applies mutations straight to the collection, outside any
// explicit transaction (each call is its own atomic operation).
type directSink struct{ database *document.Database }

func (s *directSink) Insert(db, coll string, doc value.Value) (value.Value, error) {
	c, err := s.database.Collection(coll)
	if err != nil {
		return value.Null(), err
	}
	return c.Insert(db, doc)
}

func (s *directSink) Update(db, coll, key string, patch value.Value, replace bool) (value.Value, error) {
	c, err := s.database.Collection(coll)
	if err != nil {
		return value.Null(), err
	}
	return c.Update(db, key, patch, replace)
}

func (s *directSink) Remove(db, coll, key string) error {
	c, err := s.database.Collection(coll)
	if err != nil {
		return err
	}
	return c.Delete(db, key)
}

// Stats accompanies a query result the way spec §4.6 Explain/profiling
// describes: rows scanned/produced and wall-clock duration, used by
// the slow-query log and the HTTP cursor's "extra" field.
type Stats struct {
	RowsScanned  int
	RowsReturned int
	Duration     time.Duration
	Inserted     int
	Updated      int
	Deleted      int
}

// Result is the outcome of a fully executed query.
type Result struct {
	Values []value.Value
	Stats  Stats
}

// Executor runs one query's clause pipeline against a single
// database's collections.
type Executor struct {
	database *document.Database
	sink     Sink
	binds    map[string]value.Value
	views    *ViewRegistry

	rowsScanned   int
	insertedCount int
	updatedCount  int
	deletedCount  int
}

// New creates an auto-commit Executor (every INSERT/UPDATE/UPSERT/REMOVE
// clause commits immediately against database).
func New(database *document.Database, binds map[string]value.Value, views *ViewRegistry) *Executor {
	return &Executor{database: database, sink: &directSink{database: database}, binds: binds, views: views}
}

// NewWithSink creates an Executor that routes mutations through an
// arbitrary Sink, used to run a query inside an explicit transaction
// (pkg/txn.Manager satisfies Sink via a thin adapter in pkg/txn).
func NewWithSink(database *document.Database, sink Sink, binds map[string]value.Value, views *ViewRegistry) *Executor {
	return &Executor{database: database, sink: sink, binds: binds, views: views}
}

// Run executes q's clause pipeline and returns its terminal result.
func (e *Executor) Run(q *ast.Query) (*Result, error) {
	start := time.Now()
	clauses := q.Clauses
	rows := []Row{{}}
	var terminal *Result

	startIdx := 0
	seeded, consumed, ok, err := e.tryIndexedScan(clauses)
	if err != nil {
		return nil, err
	}
	if ok {
		rows, startIdx = seeded, consumed
	}

	for i := startIdx; i < len(clauses); i++ {
		clause := clauses[i]
		isLast := i == len(clauses)-1
		next, result, err := e.step(clause, rows, isLast)
		if err != nil {
			return nil, err
		}
		if result != nil {
			terminal = result
			break
		}
		rows = next
	}

	if terminal == nil {
		// a pipeline with no terminal RETURN/mutation clause returns
		// an empty result (no values), as for a bare FOR/FILTER query
		// run for side effects only.
		terminal = &Result{}
	}
	terminal.Stats.Duration = time.Since(start)
	terminal.Stats.RowsScanned = e.rowsScanned
	terminal.Stats.RowsReturned = len(terminal.Values)
	terminal.Stats.Inserted = e.insertedCount
	terminal.Stats.Updated = e.updatedCount
	terminal.Stats.Deleted = e.deletedCount
	return terminal, nil
}

// step applies one clause to rows. Non-terminal clauses return the
// transformed row slice; terminal clauses (RETURN, mutations lacking a
// following RETURN, CREATE/REFRESH) return a *Result and stop the pipeline.
func (e *Executor) step(c ast.Clause, rows []Row, isLast bool) ([]Row, *Result, error) {
	switch cl := c.(type) {
	case *ast.ForClause:
		out, err := e.evalFor(cl, rows)
		return out, nil, err
	case *ast.JoinClause:
		out, err := e.evalJoin(cl, rows)
		return out, nil, err
	case *ast.LetClause:
		out, err := e.evalLet(cl, rows)
		return out, nil, err
	case *ast.FilterClause:
		out, err := e.evalFilter(cl, rows)
		return out, nil, err
	case *ast.SortClause:
		out, err := e.evalSort(cl, rows)
		return out, nil, err
	case *ast.LimitClause:
		out, err := e.evalLimit(cl, rows)
		return out, nil, err
	case *ast.CollectClause:
		out, err := e.evalCollect(cl, rows)
		return out, nil, err
	case *ast.WindowClause:
		out, err := e.evalWindow(cl, rows)
		return out, nil, err
	case *ast.ShortestPathClause:
		out, err := e.evalShortestPath(cl, rows)
		return out, nil, err
	case *ast.GraphClause:
		out, err := e.evalGraph(cl, rows)
		return out, nil, err
	case *ast.ReturnClause:
		res, err := e.evalReturn(cl, rows)
		return nil, res, err
	case *ast.InsertClause:
		return e.evalInsert(cl, rows, isLast)
	case *ast.UpdateClause:
		return e.evalUpdate(cl, rows, isLast)
	case *ast.UpsertClause:
		return e.evalUpsert(cl, rows, isLast)
	case *ast.RemoveClause:
		return e.evalRemove(cl, rows, isLast)
	case *ast.CreateStreamClause:
		res, err := e.evalCreateStream(cl)
		return nil, res, err
	case *ast.CreateMaterializedViewClause:
		res, err := e.evalCreateView(cl)
		return nil, res, err
	case *ast.RefreshMaterializedViewClause:
		res, err := e.evalRefreshView(cl)
		return nil, res, err
	default:
		return nil, nil, fmt.Errorf("exec: unsupported clause %T", c)
	}
}

// collectSource resolves one FOR/JOIN source expression against row:
// a bare, unbound identifier naming a collection is scanned directly;
// anything else (a bound variable, a range, an array literal, a
// subquery) is evaluated and must yield an array (spec §4.2 "FOR
// accepts three sources: a collection name, a variable binding, or an
// expression").
func (e *Executor) collectSource(src ast.Expr, row Row) ([]value.Value, error) {
	if ident, ok := src.(*ast.Ident); ok {
		if _, bound := row[ident.Name]; !bound {
			if _, isBind := e.binds[ident.Name]; !isBind {
				if coll, err := e.database.Collection(ident.Name); err == nil {
					var items []value.Value
					if scanErr := coll.Scan(0, func(_ string, doc value.Value) bool {
						items = append(items, doc)
						return true
					}); scanErr != nil {
						return nil, scanErr
					}
					return items, nil
				}
			}
		}
	}
	val, err := e.eval(src, row)
	if err != nil {
		return nil, err
	}
	if val.Kind() != value.KindArray {
		return nil, nil
	}
	return val.AsArray(), nil
}

func (e *Executor) evalFor(cl *ast.ForClause, rows []Row) ([]Row, error) {
	var out []Row
	for _, row := range rows {
		items, err := e.collectSource(cl.Source, row)
		if err != nil {
			return nil, err
		}
		for _, item := range items {
			e.rowsScanned++
			nr := row.clone()
			nr[cl.Var] = item
			out = append(out, nr)
		}
	}
	return out, nil
}

// evalJoin fuses the left FOR (cl.Var over cl.Source) with a join
// against cl.Other, per spec §4.3's four JOIN kinds:
//
//   - INNER: keep only left rows with >=1 match; JoinVar = array of matches.
//   - LEFT: always emit the left row; JoinVar = array of matches (maybe empty).
//   - RIGHT: iterate the right side, merging in any matching left row
//     (one output row per match, Var bound to that left row).
//   - FULL: LEFT's output, plus one row per unmatched right document
//     with Var bound to null.
func (e *Executor) evalJoin(cl *ast.JoinClause, rows []Row) ([]Row, error) {
	var out []Row
	for _, row := range rows {
		lefts, err := e.collectSource(cl.Source, row)
		if err != nil {
			return nil, err
		}
		rights, err := e.collectSource(cl.Other, row)
		if err != nil {
			return nil, err
		}
		e.rowsScanned += len(lefts) + len(rights)

		switch cl.Kind {
		case "RIGHT":
			for _, r := range rights {
				for _, l := range lefts {
					nr := row.clone()
					nr[cl.Var] = l
					nr[cl.JoinVar] = r
					keep, err := e.eval(cl.On, nr)
					if err != nil {
						return nil, err
					}
					if keep.Truthy() {
						out = append(out, nr)
					}
				}
			}
		case "FULL":
			rightMatched := make([]bool, len(rights))
			for _, l := range lefts {
				var matches []value.Value
				for ri, r := range rights {
					nr := row.clone()
					nr[cl.Var] = l
					nr[cl.JoinVar] = r
					keep, err := e.eval(cl.On, nr)
					if err != nil {
						return nil, err
					}
					if keep.Truthy() {
						matches = append(matches, r)
						rightMatched[ri] = true
					}
				}
				nr := row.clone()
				nr[cl.Var] = l
				nr[cl.JoinVar] = value.Array(matches)
				out = append(out, nr)
			}
			for ri, r := range rights {
				if rightMatched[ri] {
					continue
				}
				nr := row.clone()
				nr[cl.Var] = value.Null()
				nr[cl.JoinVar] = value.Array([]value.Value{r})
				out = append(out, nr)
			}
		default: // INNER, LEFT
			for _, l := range lefts {
				var matches []value.Value
				for _, r := range rights {
					nr := row.clone()
					nr[cl.Var] = l
					nr[cl.JoinVar] = r
					keep, err := e.eval(cl.On, nr)
					if err != nil {
						return nil, err
					}
					if keep.Truthy() {
						matches = append(matches, r)
					}
				}
				if cl.Kind != "LEFT" && len(matches) == 0 {
					continue
				}
				nr := row.clone()
				nr[cl.Var] = l
				nr[cl.JoinVar] = value.Array(matches)
				out = append(out, nr)
			}
		}
	}
	return out, nil
}

func (e *Executor) evalLet(cl *ast.LetClause, rows []Row) ([]Row, error) {
	out := make([]Row, 0, len(rows))
	for _, row := range rows {
		val, err := e.eval(cl.Value, row)
		if err != nil {
			return nil, err
		}
		nr := row.clone()
		nr[cl.Var] = val
		out = append(out, nr)
	}
	return out, nil
}

func (e *Executor) evalFilter(cl *ast.FilterClause, rows []Row) ([]Row, error) {
	out := make([]Row, 0, len(rows))
	for _, row := range rows {
		v, err := e.eval(cl.Cond, row)
		if err != nil {
			return nil, err
		}
		if v.Truthy() {
			out = append(out, row)
		}
	}
	return out, nil
}

func (e *Executor) evalSort(cl *ast.SortClause, rows []Row) ([]Row, error) {
	out := append([]Row(nil), rows...)
	var evalErr error
	sort.SliceStable(out, func(i, j int) bool {
		for _, k := range cl.Keys {
			vi, err := e.eval(k.Expr, out[i])
			if err != nil {
				evalErr = err
				return false
			}
			vj, err := e.eval(k.Expr, out[j])
			if err != nil {
				evalErr = err
				return false
			}
			c := value.Compare(vi, vj)
			if c == 0 {
				continue
			}
			if k.Descending {
				return c > 0
			}
			return c < 0
		}
		return false
	})
	return out, evalErr
}

func (e *Executor) evalLimit(cl *ast.LimitClause, rows []Row) ([]Row, error) {
	offset := 0
	if cl.Offset != nil {
		v, err := e.eval(cl.Offset, Row{})
		if err != nil {
			return nil, err
		}
		offset = int(v.Number())
	}
	countV, err := e.eval(cl.Count, Row{})
	if err != nil {
		return nil, err
	}
	count := int(countV.Number())
	if offset >= len(rows) {
		return nil, nil
	}
	end := offset + count
	if end > len(rows) || count < 0 {
		end = len(rows)
	}
	return rows[offset:end], nil
}

func (e *Executor) evalReturn(cl *ast.ReturnClause, rows []Row) (*Result, error) {
	vals := make([]value.Value, 0, len(rows))
	seen := map[string]bool{}
	for _, row := range rows {
		v, err := e.eval(cl.Value, row)
		if err != nil {
			return nil, err
		}
		if cl.Distinct {
			key := fmt.Sprintf("%v", value.ToJSON(v))
			if seen[key] {
				continue
			}
			seen[key] = true
		}
		vals = append(vals, v)
	}
	return &Result{Values: vals}, nil
}

func (e *Executor) evalInsert(cl *ast.InsertClause, rows []Row, isLast bool) ([]Row, *Result, error) {
	var out []value.Value
	var next []Row
	for _, row := range rows {
		doc, err := e.eval(cl.Doc, row)
		if err != nil {
			return nil, nil, err
		}
		res, err := e.sink.Insert(e.database.Name, cl.Collection, doc)
		if err != nil {
			return nil, nil, err
		}
		e.insertedCount++
		out = append(out, res)
		if !isLast {
			nr := row.clone()
			nr["NEW"] = res
			next = append(next, nr)
		}
	}
	if !isLast {
		return next, nil, nil
	}
	return nil, &Result{Values: out}, nil
}

func (e *Executor) evalUpdate(cl *ast.UpdateClause, rows []Row, isLast bool) ([]Row, *Result, error) {
	var out []value.Value
	var next []Row
	for _, row := range rows {
		keyV, err := e.eval(cl.KeyExpr, row)
		if err != nil {
			return nil, nil, err
		}
		patch, err := e.eval(cl.Patch, row)
		if err != nil {
			return nil, nil, err
		}
		res, err := e.sink.Update(e.database.Name, cl.Collection, docKeyOf(keyV), patch, cl.Replace)
		if err != nil {
			return nil, nil, err
		}
		e.updatedCount++
		out = append(out, res)
		if !isLast {
			nr := row.clone()
			nr["NEW"] = res
			next = append(next, nr)
		}
	}
	if !isLast {
		return next, nil, nil
	}
	return nil, &Result{Values: out}, nil
}

func (e *Executor) evalUpsert(cl *ast.UpsertClause, rows []Row, isLast bool) ([]Row, *Result, error) {
	var out []value.Value
	var next []Row
	for _, row := range rows {
		search, err := e.eval(cl.Search, row)
		if err != nil {
			return nil, nil, err
		}
		coll, err := e.database.Collection(cl.Collection)
		if err != nil {
			return nil, nil, err
		}
		var found value.Value
		var foundKey string
		matched := false
		_ = coll.Scan(0, func(key string, doc value.Value) bool {
			if matchesSearch(doc, search) {
				found, foundKey, matched = doc, key, true
				return false
			}
			return true
		})
		var res value.Value
		if matched {
			patch, err := e.eval(cl.UpdateDoc, row)
			if err != nil {
				return nil, nil, err
			}
			res, err = e.sink.Update(e.database.Name, cl.Collection, foundKey, patch, false)
			if err != nil {
				return nil, nil, err
			}
			e.updatedCount++
			_ = found
		} else {
			insDoc, err := e.eval(cl.InsertDoc, row)
			if err != nil {
				return nil, nil, err
			}
			res, err = e.sink.Insert(e.database.Name, cl.Collection, insDoc)
			if err != nil {
				return nil, nil, err
			}
			e.insertedCount++
		}
		out = append(out, res)
		if !isLast {
			nr := row.clone()
			nr["NEW"] = res
			next = append(next, nr)
		}
	}
	if !isLast {
		return next, nil, nil
	}
	return nil, &Result{Values: out}, nil
}

func matchesSearch(doc, search value.Value) bool {
	if search.Kind() != value.KindObject {
		return false
	}
	for _, k := range search.Keys() {
		sv, _ := search.Field(k)
		dv, ok := doc.Field(k)
		if !ok || !value.Equal(sv, dv) {
			return false
		}
	}
	return true
}

func (e *Executor) evalRemove(cl *ast.RemoveClause, rows []Row, isLast bool) ([]Row, *Result, error) {
	var out []value.Value
	var next []Row
	for _, row := range rows {
		keyV, err := e.eval(cl.KeyExpr, row)
		if err != nil {
			return nil, nil, err
		}
		key := docKeyOf(keyV)
		if err := e.sink.Remove(e.database.Name, cl.Collection, key); err != nil {
			return nil, nil, err
		}
		e.deletedCount++
		out = append(out, value.String(key))
		if !isLast {
			nr := row.clone()
			nr["OLD"] = value.String(key)
			next = append(next, nr)
		}
	}
	if !isLast {
		return next, nil, nil
	}
	return nil, &Result{Values: out}, nil
}

// docKeyOf accepts either a bare "_key" string or a "_id" of the form
// "collection/key".
func docKeyOf(v value.Value) string {
	if v.Kind() == value.KindObject {
		if key, ok := v.Field("_key"); ok {
			return docKeyOf(key)
		}
		return ""
	}
	if v.Kind() != value.KindString {
		return ""
	}
	if _, key, ok := document.SplitID(v.AsString()); ok {
		return key
	}
	return v.AsString()
}

func (e *Executor) evalCreateStream(cl *ast.CreateStreamClause) (*Result, error) {
	if e.views == nil {
		return nil, dberr.New(dberr.CodeOperationNotSupported, "streams unavailable in this context")
	}
	e.views.RegisterStream(cl.Name, cl.Query)
	return &Result{}, nil
}

func (e *Executor) evalCreateView(cl *ast.CreateMaterializedViewClause) (*Result, error) {
	if e.views == nil {
		return nil, dberr.New(dberr.CodeOperationNotSupported, "materialized views unavailable in this context")
	}
	sub := New(e.database, e.binds, e.views)
	res, err := sub.Run(cl.Query)
	if err != nil {
		return nil, err
	}
	e.views.PutMaterialized(cl.Name, cl.Query, res.Values)
	return &Result{Values: res.Values}, nil
}

func (e *Executor) evalRefreshView(cl *ast.RefreshMaterializedViewClause) (*Result, error) {
	if e.views == nil {
		return nil, dberr.New(dberr.CodeOperationNotSupported, "materialized views unavailable in this context")
	}
	q, ok := e.views.Query(cl.Name)
	if !ok {
		return nil, dberr.New(dberr.CodeExecutionError, "materialized view %s not found", cl.Name)
	}
	sub := New(e.database, e.binds, e.views)
	res, err := sub.Run(q)
	if err != nil {
		return nil, err
	}
	e.views.PutMaterialized(cl.Name, q, res.Values)
	return &Result{Values: res.Values}, nil
}
