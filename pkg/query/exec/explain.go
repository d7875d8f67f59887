package exec

import (
	"fmt"
	"time"

	"github.com/solidb/solidb/pkg/query/ast"
)

// PlanStep describes one clause's contribution to a query's execution
// plan: its kind, a human-readable description, the row count flowing
// out of it, and how long it took. Mirrors the per-phase timing
// breakdown of an EXPLAIN. A leading FOR+FILTER pair that tryIndexedScan
// can substitute with a persistent index lookup appears as a single
// synthetic "IndexScan" step instead of the usual FOR/FILTER pair; any
// other FOR still runs as a full collection/array scan.
type PlanStep struct {
	Clause      string
	Description string
	RowsOut     int
	Duration    time.Duration
}

// Plan is the full output of Explain: a per-clause breakdown plus the
// query's total wall-clock time.
type Plan struct {
	Steps []PlanStep
	Total time.Duration
}

// Explain runs q exactly as Run would, except it records per-clause
// timing and row counts instead of discarding everything but the
// terminal result. Mutation clauses still execute — there is no
// dry-run mode — so Explain on INSERT/UPDATE/REMOVE applies them.
func (e *Executor) Explain(q *ast.Query) (*Plan, error) {
	start := time.Now()
	clauses := q.Clauses
	rows := []Row{{}}
	plan := &Plan{}

	startIdx := 0
	seedStart := time.Now()
	seeded, consumed, ok, err := e.tryIndexedScan(clauses)
	if err != nil {
		plan.Total = time.Since(start)
		return plan, err
	}
	if ok {
		rows, startIdx = seeded, consumed
		plan.Steps = append(plan.Steps, PlanStep{
			Clause:      "IndexScan",
			Description: fmt.Sprintf("persistent index lookup substituted for FOR+FILTER binding %q", clauses[0].(*ast.ForClause).Var),
			RowsOut:     len(rows),
			Duration:    time.Since(seedStart),
		})
	}

	for i := startIdx; i < len(clauses); i++ {
		clause := clauses[i]
		isLast := i == len(clauses)-1
		stepStart := time.Now()
		next, result, err := e.step(clause, rows, isLast)
		elapsed := time.Since(stepStart)

		rowsOut := len(next)
		if result != nil {
			rowsOut = len(result.Values)
		}
		plan.Steps = append(plan.Steps, PlanStep{
			Clause:      fmt.Sprintf("%T", clause),
			Description: describeClause(clause),
			RowsOut:     rowsOut,
			Duration:    elapsed,
		})
		if err != nil {
			plan.Total = time.Since(start)
			return plan, err
		}
		if result != nil {
			break
		}
		rows = next
	}

	plan.Total = time.Since(start)
	return plan, nil
}

func describeClause(c ast.Clause) string {
	switch cl := c.(type) {
	case *ast.ForClause:
		return fmt.Sprintf("full collection/array scan binding %q", cl.Var)
	case *ast.JoinClause:
		return fmt.Sprintf("nested-loop %s join binding %q to matches in %q", cl.Kind, cl.JoinVar, cl.Var)
	case *ast.FilterClause:
		return "row filter"
	case *ast.SortClause:
		return fmt.Sprintf("stable sort on %d key(s)", len(cl.Keys))
	case *ast.LimitClause:
		return "offset/count slice"
	case *ast.CollectClause:
		return fmt.Sprintf("group by %d key(s), %d aggregate(s)", len(cl.Groups), len(cl.Aggs))
	case *ast.WindowClause:
		return fmt.Sprintf("running %s window", cl.Func)
	case *ast.ShortestPathClause:
		return "unweighted BFS over edge collection " + cl.EdgeCollection
	case *ast.GraphClause:
		return "bounded-depth BFS over edge collection " + cl.EdgeCollection
	case *ast.ReturnClause:
		return "terminal projection"
	case *ast.InsertClause:
		return "insert into " + cl.Collection
	case *ast.UpdateClause:
		return "update in " + cl.Collection
	case *ast.UpsertClause:
		return "upsert in " + cl.Collection
	case *ast.RemoveClause:
		return "remove from " + cl.Collection
	default:
		return "unrecognized clause"
	}
}
