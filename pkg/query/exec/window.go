package exec

import (
	"fmt"
	"sort"

	"github.com/solidb/solidb/pkg/query/ast"
	"github.com/solidb/solidb/pkg/value"
)

// evalWindow computes a PARTITION BY / ORDER BY window function (spec
// §4.3 opt 6): rows are grouped by cl.Partition, ordered within each
// partition by cl.Order (stable; original arrival order when Order is
// empty), and cl.Func is evaluated along that per-partition sequence
// under the default UNBOUNDED PRECEDING .. CURRENT ROW frame. RANK
// leaves gaps on ties; DENSE_RANK does not.
func (e *Executor) evalWindow(cl *ast.WindowClause, rows []Row) ([]Row, error) {
	var arg0, arg1, arg2 ast.Expr
	switch len(cl.Args) {
	case 0:
	case 1:
		arg0 = cl.Args[0]
	case 2:
		arg0, arg1 = cl.Args[0], cl.Args[1]
	default:
		arg0, arg1, arg2 = cl.Args[0], cl.Args[1], cl.Args[2]
	}

	groups, groupOrder, err := e.partitionRows(cl.Partition, rows)
	if err != nil {
		return nil, err
	}

	out := make([]Row, len(rows))
	for _, key := range groupOrder {
		idxs, err := e.orderPartition(cl.Order, rows, groups[key])
		if err != nil {
			return nil, err
		}

		argVals := make([]value.Value, len(idxs))
		orderKeys := make([]string, len(idxs))
		for pos, idx := range idxs {
			if arg0 != nil {
				v, err := e.eval(arg0, rows[idx])
				if err != nil {
					return nil, err
				}
				argVals[pos] = v
			} else {
				argVals[pos] = value.Null()
			}
			k, err := e.partitionKey(exprsOf(cl.Order), rows[idx])
			if err != nil {
				return nil, err
			}
			orderKeys[pos] = k
		}

		var sum float64
		var cnt int
		var minV, maxV value.Value
		haveMinMax := false
		rank, denseRank := 1, 1
		for pos, idx := range idxs {
			if pos > 0 {
				if orderKeys[pos] != orderKeys[pos-1] {
					rank = pos + 1
					denseRank++
				}
			}

			if argVals[pos].IsNumber() {
				sum += argVals[pos].Number()
			}
			cnt++
			if argVals[pos].Kind() != value.KindNull {
				if !haveMinMax {
					minV, maxV = argVals[pos], argVals[pos]
					haveMinMax = true
				} else {
					if value.Compare(argVals[pos], minV) < 0 {
						minV = argVals[pos]
					}
					if value.Compare(argVals[pos], maxV) > 0 {
						maxV = argVals[pos]
					}
				}
			}

			var result value.Value
			switch cl.Func {
			case "ROW_NUMBER":
				result = value.Int(int64(pos + 1))
			case "RANK":
				result = value.Int(int64(rank))
			case "DENSE_RANK":
				result = value.Int(int64(denseRank))
			case "SUM":
				result = value.Float(sum)
			case "COUNT":
				result = value.Int(int64(cnt))
			case "AVG":
				result = value.Float(sum / float64(cnt))
			case "MIN":
				result = minV
			case "MAX":
				result = maxV
			case "FIRST_VALUE":
				result = argVals[0]
			case "LAST_VALUE":
				result = argVals[pos]
			case "LAG":
				result, err = e.windowOffset(argVals, pos, -1, arg1, arg2, rows[idx])
				if err != nil {
					return nil, err
				}
			case "LEAD":
				result, err = e.windowOffset(argVals, pos, 1, arg1, arg2, rows[idx])
				if err != nil {
					return nil, err
				}
			default:
				return nil, fmt.Errorf("exec: unknown window function %s", cl.Func)
			}

			nr := rows[idx].clone()
			nr[cl.Var] = result
			out[idx] = nr
		}
	}
	return out, nil
}

// windowOffset resolves LAG/LEAD: dir is -1 for LAG, +1 for LEAD.
// offsetExpr defaults to 1, defaultExpr defaults to null; both are
// evaluated against the current row, matching the (expr, offset,
// default) call signature.
func (e *Executor) windowOffset(vals []value.Value, pos, dir int, offsetExpr, defaultExpr ast.Expr, row Row) (value.Value, error) {
	offset := 1
	if offsetExpr != nil {
		v, err := e.eval(offsetExpr, row)
		if err != nil {
			return value.Null(), err
		}
		offset = int(v.Number())
	}
	target := pos + dir*offset
	if target < 0 || target >= len(vals) {
		if defaultExpr != nil {
			return e.eval(defaultExpr, row)
		}
		return value.Null(), nil
	}
	return vals[target], nil
}

// partitionRows groups row indices by cl.Partition's key, preserving
// first-seen partition order.
func (e *Executor) partitionRows(partition []ast.Expr, rows []Row) (map[string][]int, []string, error) {
	groups := map[string][]int{}
	var order []string
	for i, row := range rows {
		key, err := e.partitionKey(partition, row)
		if err != nil {
			return nil, nil, err
		}
		if _, seen := groups[key]; !seen {
			order = append(order, key)
		}
		groups[key] = append(groups[key], i)
	}
	return groups, order, nil
}

// orderPartition returns idxs stably sorted by keys (arrival order
// preserved when keys is empty).
func (e *Executor) orderPartition(keys []ast.SortKey, rows []Row, idxs []int) ([]int, error) {
	sorted := append([]int(nil), idxs...)
	if len(keys) == 0 {
		return sorted, nil
	}
	var sortErr error
	sort.SliceStable(sorted, func(a, b int) bool {
		for _, k := range keys {
			va, err := e.eval(k.Expr, rows[sorted[a]])
			if err != nil {
				sortErr = err
				return false
			}
			vb, err := e.eval(k.Expr, rows[sorted[b]])
			if err != nil {
				sortErr = err
				return false
			}
			c := value.Compare(va, vb)
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
	return sorted, sortErr
}

func exprsOf(keys []ast.SortKey) []ast.Expr {
	exprs := make([]ast.Expr, len(keys))
	for i, k := range keys {
		exprs[i] = k.Expr
	}
	return exprs
}

func (e *Executor) partitionKey(exprs []ast.Expr, row Row) (string, error) {
	if len(exprs) == 0 {
		return "", nil
	}
	key := ""
	for _, ex := range exprs {
		v, err := e.eval(ex, row)
		if err != nil {
			return "", err
		}
		key += fmt.Sprintf("%v|", value.ToJSON(v))
	}
	return key, nil
}
