/*
Package ast defines the abstract syntax tree produced by pkg/query/parser
for SoliDB's query language (spec §4.2).
*/
package ast

// Node is implemented by every AST node.
type Node interface{ node() }

// Expr is implemented by every expression node.
type Expr interface {
	Node
	exprNode()
}

// Clause is implemented by every top-level query clause.
type Clause interface {
	Node
	clauseNode()
}

// Query is a full parsed statement: a sequence of clauses ending in a
// terminal clause (RETURN, or a bare mutation).
type Query struct {
	Clauses []Clause
}

func (*Query) node() {}

// ---- Expressions ----

type NullLit struct{}
type BoolLit struct{ Value bool }
type IntLit struct{ Value int64 }
type FloatLit struct{ Value float64 }
type StringLit struct{ Value string }
type TemplateLit struct {
	Parts []string // literal text segments, len(Parts) == len(Exprs)+1
	Exprs []Expr
}
type BindVar struct{ Name string }
type Ident struct{ Name string }

// ArrayLit is a `[e1, e2, ...]` literal.
type ArrayLit struct{ Elements []Expr }

// ObjectField is one `key: value` pair of an ObjectLit.
type ObjectField struct {
	Key   string
	Value Expr
}
type ObjectLit struct{ Fields []ObjectField }

// MemberExpr is `target.field` or `target?.field`.
type MemberExpr struct {
	Target   Expr
	Field    string
	Optional bool
}

// IndexExpr is `target[index]`.
type IndexExpr struct {
	Target Expr
	Index  Expr
}

// BinaryExpr is a two-operand operator expression; Op is the token
// literal ("==", "+", "AND", "IN", ...).
type BinaryExpr struct {
	Op          string
	Left, Right Expr
}

// UnaryExpr is a one-operand prefix operator expression ("-", "NOT").
type UnaryExpr struct {
	Op string
	X  Expr
}

// RangeExpr is `lo..hi`.
type RangeExpr struct{ Lo, Hi Expr }

// FuncCall is `name(args...)`.
type FuncCall struct {
	Name string
	Args []Expr
}

// SubqueryExpr embeds a nested Query used as an expression (e.g. the
// value of a LET binding or a RETURN projection).
type SubqueryExpr struct{ Query *Query }

func (*NullLit) node()      {}
func (*BoolLit) node()      {}
func (*IntLit) node()       {}
func (*FloatLit) node()     {}
func (*StringLit) node()    {}
func (*TemplateLit) node()  {}
func (*BindVar) node()      {}
func (*Ident) node()        {}
func (*ArrayLit) node()     {}
func (*ObjectLit) node()    {}
func (*MemberExpr) node()   {}
func (*IndexExpr) node()    {}
func (*BinaryExpr) node()   {}
func (*UnaryExpr) node()    {}
func (*RangeExpr) node()    {}
func (*FuncCall) node()     {}
func (*SubqueryExpr) node() {}

func (*NullLit) exprNode()      {}
func (*BoolLit) exprNode()      {}
func (*IntLit) exprNode()       {}
func (*FloatLit) exprNode()     {}
func (*StringLit) exprNode()    {}
func (*TemplateLit) exprNode()  {}
func (*BindVar) exprNode()      {}
func (*Ident) exprNode()        {}
func (*ArrayLit) exprNode()     {}
func (*ObjectLit) exprNode()    {}
func (*MemberExpr) exprNode()   {}
func (*IndexExpr) exprNode()    {}
func (*BinaryExpr) exprNode()   {}
func (*UnaryExpr) exprNode()    {}
func (*RangeExpr) exprNode()    {}
func (*FuncCall) exprNode()     {}
func (*SubqueryExpr) exprNode() {}

// ---- Clauses ----

// ForClause is `FOR var IN source`.
type ForClause struct {
	Var    string
	Source Expr
}

// LetClause is `LET var = expr`.
type LetClause struct {
	Var   string
	Value Expr
}

// FilterClause is `FILTER expr`.
type FilterClause struct{ Cond Expr }

// SortKey is one `expr ASC|DESC` entry of a SORT clause.
type SortKey struct {
	Expr       Expr
	Descending bool
}
type SortClause struct{ Keys []SortKey }

// LimitClause is `LIMIT [offset,] count`.
type LimitClause struct {
	Offset Expr
	Count  Expr
}

// CollectGroup is one `key = expr` grouping key of a COLLECT clause.
type CollectGroup struct {
	Var   string
	Value Expr
}

// CollectAgg is one `var = AGGREGATE(...)` accumulator.
type CollectAgg struct {
	Var  string
	Func string
	Arg  Expr
}

// CollectClause is `COLLECT key = expr [, ...] [AGGREGATE acc = fn(x) ...] [INTO out]`.
type CollectClause struct {
	Groups []CollectGroup
	Aggs   []CollectAgg
	Into   string
}

// ReturnClause is `RETURN [DISTINCT] expr`.
type ReturnClause struct {
	Distinct bool
	Value    Expr
}

// JoinClause is `FOR var IN source JOIN {INNER|LEFT|RIGHT|FULL} joinVar
// IN other ON cond` (modeled as a qualifier that replaces the preceding
// ForClause in the parser's clause list, fusing the left FOR with the
// join so both Var and JoinVar are in scope for cond and for every
// later clause). Kind is one of "INNER" (default), "LEFT", "RIGHT",
// "FULL".
type JoinClause struct {
	Kind    string
	Var     string
	Source  Expr
	JoinVar string
	Other   Expr
	On      Expr
}

// InsertClause is `INSERT doc INTO coll`.
type InsertClause struct {
	Doc        Expr
	Collection string
}

// UpdateClause is `UPDATE key WITH patch IN coll` (replace when Replace is true).
type UpdateClause struct {
	KeyExpr    Expr
	Patch      Expr
	Collection string
	Replace    bool
}

// UpsertClause is `UPSERT search INSERT insertDoc UPDATE updateDoc IN coll`.
type UpsertClause struct {
	Search     Expr
	InsertDoc  Expr
	UpdateDoc  Expr
	Collection string
}

// RemoveClause is `REMOVE key IN coll`.
type RemoveClause struct {
	KeyExpr    Expr
	Collection string
}

// WindowClause is `WINDOW spec OVER (PARTITION BY ... ORDER BY ...)`
// producing a running aggregate/ranking bound to Var. Args holds every
// argument inside Func(...) (LAG/LEAD take an expr plus optional offset
// and default; FIRST_VALUE/LAST_VALUE/MIN/MAX/SUM/COUNT/AVG take one).
// Order sequences rows within a partition before RANK/DENSE_RANK/
// ROW_NUMBER/LAG/LEAD are computed (spec §4.3 opt 6).
type WindowClause struct {
	Var       string
	Func      string
	Args      []Expr
	Partition []Expr
	Order     []SortKey
}

// ShortestPathClause is `FOR v IN SHORTEST_PATH from TO to
// OUTBOUND|INBOUND|ANY edgeColl`, yielding one row per vertex on the
// reconstructed path (spec §4.3, §8 scenario 6).
type ShortestPathClause struct {
	Var            string
	Direction      string
	From, To       Expr
	EdgeCollection string
}

// GraphClause is `FOR v IN [min..max] OUTBOUND|INBOUND|ANY start_vertex
// edge_collection`, a variable-depth BFS traversal distinct from
// SHORTEST_PATH: it yields one row per visited (vertex, edge) pair at
// each depth within [min,max] (spec §4.3).
type GraphClause struct {
	Var            string
	MinDepth       Expr
	MaxDepth       Expr
	Direction      string
	Start          Expr
	EdgeCollection string
}

// CreateStreamClause is `CREATE STREAM name AS query`.
type CreateStreamClause struct {
	Name  string
	Query *Query
}

// CreateMaterializedViewClause is `CREATE MATERIALIZED VIEW name AS query`.
type CreateMaterializedViewClause struct {
	Name  string
	Query *Query
}

// RefreshMaterializedViewClause is `REFRESH MATERIALIZED VIEW name`.
type RefreshMaterializedViewClause struct{ Name string }

func (*ForClause) node()                       {}
func (*LetClause) node()                       {}
func (*FilterClause) node()                    {}
func (*SortClause) node()                      {}
func (*LimitClause) node()                     {}
func (*CollectClause) node()                   {}
func (*ReturnClause) node()                    {}
func (*JoinClause) node()                      {}
func (*InsertClause) node()                    {}
func (*UpdateClause) node()                    {}
func (*UpsertClause) node()                    {}
func (*RemoveClause) node()                    {}
func (*WindowClause) node()                    {}
func (*ShortestPathClause) node()              {}
func (*GraphClause) node()                     {}
func (*CreateStreamClause) node()              {}
func (*CreateMaterializedViewClause) node()    {}
func (*RefreshMaterializedViewClause) node()   {}

func (*ForClause) clauseNode()                     {}
func (*LetClause) clauseNode()                     {}
func (*FilterClause) clauseNode()                  {}
func (*SortClause) clauseNode()                    {}
func (*LimitClause) clauseNode()                   {}
func (*CollectClause) clauseNode()                 {}
func (*ReturnClause) clauseNode()                  {}
func (*JoinClause) clauseNode()                    {}
func (*InsertClause) clauseNode()                  {}
func (*UpdateClause) clauseNode()                  {}
func (*UpsertClause) clauseNode()                  {}
func (*RemoveClause) clauseNode()                  {}
func (*WindowClause) clauseNode()                  {}
func (*ShortestPathClause) clauseNode()            {}
func (*GraphClause) clauseNode()                   {}
func (*CreateStreamClause) clauseNode()            {}
func (*CreateMaterializedViewClause) clauseNode()  {}
func (*RefreshMaterializedViewClause) clauseNode() {}
