/*
Package parser turns a token stream from pkg/query/lexer into the
pkg/query/ast tree, using Pratt (precedence-climbing) expression
parsing (spec §4.2 precedence table, low to high):

	OR
	AND
	== != < > <= >= =~ !~ ~= IN FUZZY
	??
	..
	<< >>
	+ -
	* / %
	**  (right-assoc)
	unary - NOT
	postfix . ?. [] ()
*/
package parser

import (
	"fmt"

	"github.com/solidb/solidb/pkg/query/ast"
	"github.com/solidb/solidb/pkg/query/lexer"
	"github.com/solidb/solidb/pkg/query/token"
)

// Parser consumes a pre-scanned token slice and builds an ast.Query.
type Parser struct {
	toks []token.Token
	pos  int
}

// Parse tokenizes and parses src into a Query.
func Parse(src string) (*ast.Query, error) {
	toks, err := lexer.Tokenize(src)
	if err != nil {
		return nil, fmt.Errorf("parser: %w", err)
	}
	p := &Parser{toks: toks}
	return p.parseQuery()
}

func (p *Parser) cur() token.Token  { return p.toks[p.pos] }
func (p *Parser) peek() token.Token {
	if p.pos+1 < len(p.toks) {
		return p.toks[p.pos+1]
	}
	return p.toks[len(p.toks)-1]
}
func (p *Parser) advance() token.Token {
	t := p.cur()
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

func (p *Parser) expect(k token.Kind) (token.Token, error) {
	if p.cur().Kind != k {
		return token.Token{}, fmt.Errorf("parser: expected %s, got %s %q at %d:%d", k, p.cur().Kind, p.cur().Lit, p.cur().Pos.Line, p.cur().Pos.Column)
	}
	return p.advance(), nil
}

func (p *Parser) at(k token.Kind) bool { return p.cur().Kind == k }

// parseQuery parses a sequence of clauses up to EOF.
func (p *Parser) parseQuery() (*ast.Query, error) {
	q := &ast.Query{}
	for !p.at(token.EOF) {
		c, err := p.parseClause()
		if err != nil {
			return nil, err
		}
		q.Clauses = append(q.Clauses, c)
	}
	if len(q.Clauses) == 0 {
		return nil, fmt.Errorf("parser: empty query")
	}
	return q, nil
}

func (p *Parser) parseClause() (ast.Clause, error) {
	switch p.cur().Kind {
	case token.FOR:
		return p.parseFor()
	case token.LET:
		return p.parseLet()
	case token.FILTER:
		return p.parseFilter()
	case token.SORT:
		return p.parseSort()
	case token.LIMIT:
		return p.parseLimit()
	case token.COLLECT:
		return p.parseCollect()
	case token.RETURN:
		return p.parseReturn()
	case token.INSERT:
		return p.parseInsert()
	case token.UPDATE:
		return p.parseUpdate(false)
	case token.REPLACE:
		return p.parseUpdate(true)
	case token.UPSERT:
		return p.parseUpsert()
	case token.REMOVE:
		return p.parseRemove()
	case token.WINDOW:
		return p.parseWindow()
	case token.CREATE:
		return p.parseCreate()
	case token.REFRESH:
		return p.parseRefresh()
	default:
		return nil, fmt.Errorf("parser: unexpected token %s %q at %d:%d", p.cur().Kind, p.cur().Lit, p.cur().Pos.Line, p.cur().Pos.Column)
	}
}

func (p *Parser) parseFor() (ast.Clause, error) {
	p.advance() // FOR

	varName, err := p.expect(token.IDENT)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.IN_KW); err != nil {
		return nil, err
	}

	if p.at(token.SHORTEST_PATH) {
		return p.parseShortestPath(varName.Lit)
	}
	if p.at(token.LBRACKET) {
		return p.parseGraph(varName.Lit)
	}

	src, err := p.parseExpr(0)
	if err != nil {
		return nil, err
	}
	if p.at(token.JOIN) {
		p.advance()
		kind := "INNER"
		switch p.cur().Kind {
		case token.INNER:
			p.advance()
			kind = "INNER"
		case token.LEFT:
			p.advance()
			kind = "LEFT"
		case token.RIGHT:
			p.advance()
			kind = "RIGHT"
		case token.FULL:
			p.advance()
			kind = "FULL"
		}
		joinVar, err := p.expect(token.IDENT)
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.IN_KW); err != nil {
			return nil, err
		}
		other, err := p.parseExpr(0)
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.ON); err != nil {
			return nil, err
		}
		on, err := p.parseExpr(0)
		if err != nil {
			return nil, err
		}
		return &ast.JoinClause{Kind: kind, Var: varName.Lit, Source: src, JoinVar: joinVar.Lit, Other: other, On: on}, nil
	}
	return &ast.ForClause{Var: varName.Lit, Source: src}, nil
}

// parseShortestPath parses `SHORTEST_PATH from TO to
// OUTBOUND|INBOUND|ANY edgeColl`, already past `FOR var IN` (spec §8
// scenario 6: `FOR v IN SHORTEST_PATH "people/a" TO "people/c" OUTBOUND knows`).
func (p *Parser) parseShortestPath(varName string) (ast.Clause, error) {
	p.advance() // SHORTEST_PATH
	from, err := p.parseExpr(0)
	if err != nil {
		return nil, err
	}
	if err := p.expectLit("TO"); err != nil {
		return nil, err
	}
	to, err := p.parseExpr(0)
	if err != nil {
		return nil, err
	}
	var dir string
	switch p.cur().Kind {
	case token.OUTBOUND, token.INBOUND, token.ANY:
		dir = p.advance().Lit
	default:
		return nil, fmt.Errorf("parser: expected OUTBOUND, INBOUND, or ANY at %d:%d", p.cur().Pos.Line, p.cur().Pos.Column)
	}
	edgeColl, err := p.expect(token.IDENT)
	if err != nil {
		return nil, err
	}
	return &ast.ShortestPathClause{Var: varName, Direction: dir, From: from, To: to, EdgeCollection: edgeColl.Lit}, nil
}

// parseGraph parses `[min..max] OUTBOUND|INBOUND|ANY start_vertex
// edge_collection`, already past `FOR var IN` (spec §4.2 grammar: "Graph
// FOR is distinguished by [min..max] (OUTBOUND|INBOUND|ANY) start_vertex
// edge_collection").
func (p *Parser) parseGraph(varName string) (ast.Clause, error) {
	p.advance() // [
	depth, err := p.parseExpr(0)
	if err != nil {
		return nil, err
	}
	rng, ok := depth.(*ast.RangeExpr)
	if !ok {
		return nil, fmt.Errorf("parser: expected min..max depth range at %d:%d", p.cur().Pos.Line, p.cur().Pos.Column)
	}
	if _, err := p.expect(token.RBRACKET); err != nil {
		return nil, err
	}
	var dir string
	switch p.cur().Kind {
	case token.OUTBOUND, token.INBOUND, token.ANY:
		dir = p.advance().Lit
	default:
		return nil, fmt.Errorf("parser: expected OUTBOUND, INBOUND, or ANY at %d:%d", p.cur().Pos.Line, p.cur().Pos.Column)
	}
	start, err := p.parseExpr(0)
	if err != nil {
		return nil, err
	}
	edgeColl, err := p.expect(token.IDENT)
	if err != nil {
		return nil, err
	}
	return &ast.GraphClause{Var: varName, MinDepth: rng.Lo, MaxDepth: rng.Hi, Direction: dir, Start: start, EdgeCollection: edgeColl.Lit}, nil
}

func (p *Parser) parseLet() (ast.Clause, error) {
	p.advance()
	name, err := p.expect(token.IDENT)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.ASSIGN); err != nil {
		return nil, err
	}
	val, err := p.parseExpr(0)
	if err != nil {
		return nil, err
	}
	return &ast.LetClause{Var: name.Lit, Value: val}, nil
}

func (p *Parser) parseFilter() (ast.Clause, error) {
	p.advance()
	cond, err := p.parseExpr(0)
	if err != nil {
		return nil, err
	}
	return &ast.FilterClause{Cond: cond}, nil
}

func (p *Parser) parseSort() (ast.Clause, error) {
	p.advance()
	var keys []ast.SortKey
	for {
		e, err := p.parseExpr(0)
		if err != nil {
			return nil, err
		}
		desc := false
		if p.at(token.ASC) {
			p.advance()
		} else if p.at(token.DESC) {
			p.advance()
			desc = true
		}
		keys = append(keys, ast.SortKey{Expr: e, Descending: desc})
		if p.at(token.COMMA) {
			p.advance()
			continue
		}
		break
	}
	return &ast.SortClause{Keys: keys}, nil
}

func (p *Parser) parseLimit() (ast.Clause, error) {
	p.advance()
	first, err := p.parseExpr(0)
	if err != nil {
		return nil, err
	}
	if p.at(token.COMMA) {
		p.advance()
		count, err := p.parseExpr(0)
		if err != nil {
			return nil, err
		}
		return &ast.LimitClause{Offset: first, Count: count}, nil
	}
	return &ast.LimitClause{Count: first}, nil
}

func (p *Parser) parseCollect() (ast.Clause, error) {
	p.advance()
	c := &ast.CollectClause{}
	if p.at(token.IDENT) {
		for {
			name, err := p.expect(token.IDENT)
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(token.ASSIGN); err != nil {
				return nil, err
			}
			val, err := p.parseExpr(0)
			if err != nil {
				return nil, err
			}
			c.Groups = append(c.Groups, ast.CollectGroup{Var: name.Lit, Value: val})
			if p.at(token.COMMA) {
				p.advance()
				continue
			}
			break
		}
	}
	if p.at(token.AGGREGATE) {
		p.advance()
		for {
			name, err := p.expect(token.IDENT)
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(token.ASSIGN); err != nil {
				return nil, err
			}
			fn, err := p.expect(token.IDENT)
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(token.LPAREN); err != nil {
				return nil, err
			}
			var arg ast.Expr
			if !p.at(token.RPAREN) {
				arg, err = p.parseExpr(0)
				if err != nil {
					return nil, err
				}
			}
			if _, err := p.expect(token.RPAREN); err != nil {
				return nil, err
			}
			c.Aggs = append(c.Aggs, ast.CollectAgg{Var: name.Lit, Func: fn.Lit, Arg: arg})
			if p.at(token.COMMA) {
				p.advance()
				continue
			}
			break
		}
	}
	if p.at(token.INTO) {
		p.advance()
		name, err := p.expect(token.IDENT)
		if err != nil {
			return nil, err
		}
		c.Into = name.Lit
	}
	return c, nil
}

func (p *Parser) parseReturn() (ast.Clause, error) {
	p.advance()
	distinct := false
	if p.at(token.IDENT) && p.cur().Lit == "DISTINCT" {
		p.advance()
		distinct = true
	}
	val, err := p.parseExpr(0)
	if err != nil {
		return nil, err
	}
	return &ast.ReturnClause{Distinct: distinct, Value: val}, nil
}

func (p *Parser) parseInsert() (ast.Clause, error) {
	p.advance()
	doc, err := p.parseExpr(0)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.INTO); err != nil {
		return nil, err
	}
	coll, err := p.expect(token.IDENT)
	if err != nil {
		return nil, err
	}
	return &ast.InsertClause{Doc: doc, Collection: coll.Lit}, nil
}

func (p *Parser) parseUpdate(replace bool) (ast.Clause, error) {
	p.advance()
	key, err := p.parseExpr(0)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.WITH); err != nil {
		return nil, err
	}
	patch, err := p.parseExpr(0)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.IN_KW); err != nil {
		return nil, err
	}
	coll, err := p.expect(token.IDENT)
	if err != nil {
		return nil, err
	}
	return &ast.UpdateClause{KeyExpr: key, Patch: patch, Collection: coll.Lit, Replace: replace}, nil
}

func (p *Parser) parseUpsert() (ast.Clause, error) {
	p.advance()
	search, err := p.parseExpr(0)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.INSERT); err != nil {
		return nil, err
	}
	insDoc, err := p.parseExpr(0)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.UPDATE); err != nil {
		return nil, err
	}
	updDoc, err := p.parseExpr(0)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.IN_KW); err != nil {
		return nil, err
	}
	coll, err := p.expect(token.IDENT)
	if err != nil {
		return nil, err
	}
	return &ast.UpsertClause{Search: search, InsertDoc: insDoc, UpdateDoc: updDoc, Collection: coll.Lit}, nil
}

func (p *Parser) parseRemove() (ast.Clause, error) {
	p.advance()
	key, err := p.parseExpr(0)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.IN_KW); err != nil {
		return nil, err
	}
	coll, err := p.expect(token.IDENT)
	if err != nil {
		return nil, err
	}
	return &ast.RemoveClause{KeyExpr: key, Collection: coll.Lit}, nil
}

func (p *Parser) parseWindow() (ast.Clause, error) {
	p.advance()
	name, err := p.expect(token.IDENT)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.ASSIGN); err != nil {
		return nil, err
	}
	fn, err := p.expect(token.IDENT)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.LPAREN); err != nil {
		return nil, err
	}
	var args []ast.Expr
	if !p.at(token.RPAREN) {
		for {
			a, err := p.parseExpr(0)
			if err != nil {
				return nil, err
			}
			args = append(args, a)
			if p.at(token.COMMA) {
				p.advance()
				continue
			}
			break
		}
	}
	if _, err := p.expect(token.RPAREN); err != nil {
		return nil, err
	}
	w := &ast.WindowClause{Var: name.Lit, Func: fn.Lit, Args: args}
	if p.at(token.OVER) {
		p.advance()
		if _, err := p.expect(token.LPAREN); err != nil {
			return nil, err
		}
		if p.at(token.PARTITION) {
			p.advance()
			if _, err := p.expect(token.BY); err != nil {
				return nil, err
			}
			for {
				e, err := p.parseExpr(0)
				if err != nil {
					return nil, err
				}
				w.Partition = append(w.Partition, e)
				if p.at(token.COMMA) {
					p.advance()
					continue
				}
				break
			}
		}
		if p.at(token.ORDER) {
			p.advance()
			if _, err := p.expect(token.BY); err != nil {
				return nil, err
			}
			for {
				e, err := p.parseExpr(0)
				if err != nil {
					return nil, err
				}
				desc := false
				if p.at(token.ASC) {
					p.advance()
				} else if p.at(token.DESC) {
					p.advance()
					desc = true
				}
				w.Order = append(w.Order, ast.SortKey{Expr: e, Descending: desc})
				if p.at(token.COMMA) {
					p.advance()
					continue
				}
				break
			}
		}
		if _, err := p.expect(token.RPAREN); err != nil {
			return nil, err
		}
	}
	return w, nil
}

func (p *Parser) parseCreate() (ast.Clause, error) {
	p.advance()
	if p.at(token.STREAM) {
		p.advance()
		name, err := p.expect(token.IDENT)
		if err != nil {
			return nil, err
		}
		if err := p.expectAs(); err != nil {
			return nil, err
		}
		q, err := p.parseQuery()
		if err != nil {
			return nil, err
		}
		return &ast.CreateStreamClause{Name: name.Lit, Query: q}, nil
	}
	if p.at(token.MATERIALIZED) {
		p.advance()
		if _, err := p.expect(token.VIEW); err != nil {
			return nil, err
		}
		name, err := p.expect(token.IDENT)
		if err != nil {
			return nil, err
		}
		if err := p.expectAs(); err != nil {
			return nil, err
		}
		q, err := p.parseQuery()
		if err != nil {
			return nil, err
		}
		return &ast.CreateMaterializedViewClause{Name: name.Lit, Query: q}, nil
	}
	return nil, fmt.Errorf("parser: expected STREAM or MATERIALIZED VIEW after CREATE at %d:%d", p.cur().Pos.Line, p.cur().Pos.Column)
}

// expectAs consumes the identifier-spelled "AS" keyword (not a
// reserved word in the token set, so it is matched by literal text).
func (p *Parser) expectAs() error { return p.expectLit("AS") }

// expectLit consumes an identifier token whose literal text equals lit
// (case-sensitive), for contextual keywords ("AS", "TO") that aren't
// worth reserving as their own token kind.
func (p *Parser) expectLit(lit string) error {
	if p.at(token.IDENT) && p.cur().Lit == lit {
		p.advance()
		return nil
	}
	return fmt.Errorf("parser: expected %s at %d:%d", lit, p.cur().Pos.Line, p.cur().Pos.Column)
}

func (p *Parser) parseRefresh() (ast.Clause, error) {
	p.advance()
	if _, err := p.expect(token.MATERIALIZED); err != nil {
		return nil, err
	}
	if _, err := p.expect(token.VIEW); err != nil {
		return nil, err
	}
	name, err := p.expect(token.IDENT)
	if err != nil {
		return nil, err
	}
	return &ast.RefreshMaterializedViewClause{Name: name.Lit}, nil
}
