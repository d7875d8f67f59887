package exec

import (
	"fmt"

	"github.com/solidb/solidb/pkg/query/ast"
	"github.com/solidb/solidb/pkg/value"
)

type groupBucket struct {
	key  string
	vals Row
	rows []Row
}

// evalCollect groups rows by their key expressions, computes any
// AGGREGATE accumulators, and produces one output row per group (spec
// §4.3 COLLECT, modeled directly on SQL GROUP BY semantics).
func (e *Executor) evalCollect(cl *ast.CollectClause, rows []Row) ([]Row, error) {
	order := []string{}
	buckets := map[string]*groupBucket{}

	for _, row := range rows {
		keyVals := Row{}
		keyStr := ""
		for _, g := range cl.Groups {
			v, err := e.eval(g.Value, row)
			if err != nil {
				return nil, err
			}
			keyVals[g.Var] = v
			keyStr += fmt.Sprintf("%v|", value.ToJSON(v))
		}
		b, ok := buckets[keyStr]
		if !ok {
			b = &groupBucket{key: keyStr, vals: keyVals}
			buckets[keyStr] = b
			order = append(order, keyStr)
		}
		b.rows = append(b.rows, row)
	}

	if len(cl.Groups) == 0 && len(rows) > 0 {
		// COLLECT AGGREGATE with no grouping key reduces the whole set.
		order = []string{""}
		buckets[""] = &groupBucket{rows: rows}
	}
	if len(rows) == 0 && len(cl.Aggs) > 0 {
		order = []string{""}
		buckets[""] = &groupBucket{rows: nil}
	}

	out := make([]Row, 0, len(order))
	for _, k := range order {
		b := buckets[k]
		nr := Row{}
		for gv, v := range b.vals {
			nr[gv] = v
		}
		for _, agg := range cl.Aggs {
			v, err := e.reduceAgg(agg, b.rows)
			if err != nil {
				return nil, err
			}
			nr[agg.Var] = v
		}
		if cl.Into != "" {
			items := make([]value.Value, len(b.rows))
			for i, r := range b.rows {
				o := value.NewObject()
				for k, v := range r {
					o.Set(k, v)
				}
				items[i] = o.Build()
			}
			nr[cl.Into] = value.Array(items)
		}
		out = append(out, nr)
	}
	return out, nil
}

func (e *Executor) reduceAgg(agg ast.CollectAgg, rows []Row) (value.Value, error) {
	switch agg.Func {
	case "COUNT":
		return value.Int(int64(len(rows))), nil
	}
	var nums []float64
	for _, row := range rows {
		v, err := e.eval(agg.Arg, row)
		if err != nil {
			return value.Null(), err
		}
		if v.IsNumber() {
			nums = append(nums, v.Number())
		}
	}
	switch agg.Func {
	case "SUM":
		var s float64
		for _, n := range nums {
			s += n
		}
		return value.Float(s), nil
	case "AVG":
		if len(nums) == 0 {
			return value.Null(), nil
		}
		var s float64
		for _, n := range nums {
			s += n
		}
		return value.Float(s / float64(len(nums))), nil
	case "MIN":
		if len(nums) == 0 {
			return value.Null(), nil
		}
		m := nums[0]
		for _, n := range nums[1:] {
			if n < m {
				m = n
			}
		}
		return value.Float(m), nil
	case "MAX":
		if len(nums) == 0 {
			return value.Null(), nil
		}
		m := nums[0]
		for _, n := range nums[1:] {
			if n > m {
				m = n
			}
		}
		return value.Float(m), nil
	}
	return value.Null(), fmt.Errorf("exec: unknown aggregate function %s", agg.Func)
}
