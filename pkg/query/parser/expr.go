package parser

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/solidb/solidb/pkg/query/ast"
	"github.com/solidb/solidb/pkg/query/token"
)

// precedence returns the binding power of a binary operator token, or
// 0 if the token does not continue a binary expression.
func precedence(k token.Kind) int {
	switch k {
	case token.OR:
		return 1
	case token.AND:
		return 2
	case token.EQ, token.NEQ, token.LT, token.GT, token.LTE, token.GTE,
		token.REMATCH, token.RENMATCH, token.LIKEOP, token.IN_KW, token.FUZZY:
		return 3
	case token.COALESCE:
		return 4
	case token.RANGE:
		return 5
	case token.SHL, token.SHR:
		return 6
	case token.PLUS, token.MINUS:
		return 7
	case token.STAR, token.SLASH, token.PERCENT:
		return 8
	case token.POW:
		return 9
	}
	return 0
}

const rightAssocPow = 9

// parseExpr parses an expression using precedence climbing; minPrec is
// the minimum binding power required to continue consuming operators.
func (p *Parser) parseExpr(minPrec int) (ast.Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		prec := precedence(p.cur().Kind)
		if prec == 0 || prec < minPrec {
			break
		}
		opTok := p.advance()
		nextMin := prec + 1
		if prec == rightAssocPow {
			nextMin = prec
		}
		if opTok.Kind == token.RANGE {
			right, err := p.parseExpr(nextMin)
			if err != nil {
				return nil, err
			}
			left = &ast.RangeExpr{Lo: left, Hi: right}
			continue
		}
		right, err := p.parseExpr(nextMin)
		if err != nil {
			return nil, err
		}
		left = &ast.BinaryExpr{Op: opTok.Kind.String(), Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseUnary() (ast.Expr, error) {
	switch p.cur().Kind {
	case token.MINUS:
		p.advance()
		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &ast.UnaryExpr{Op: "-", X: x}, nil
	case token.NOT:
		p.advance()
		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &ast.UnaryExpr{Op: "NOT", X: x}, nil
	}
	return p.parsePostfix()
}

func (p *Parser) parsePostfix() (ast.Expr, error) {
	expr, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for {
		switch p.cur().Kind {
		case token.DOT:
			p.advance()
			name, err := p.expect(token.IDENT)
			if err != nil {
				return nil, err
			}
			expr = &ast.MemberExpr{Target: expr, Field: name.Lit}
		case token.OPTCHAIN:
			p.advance()
			name, err := p.expect(token.IDENT)
			if err != nil {
				return nil, err
			}
			expr = &ast.MemberExpr{Target: expr, Field: name.Lit, Optional: true}
		case token.LBRACKET:
			p.advance()
			idx, err := p.parseExpr(0)
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(token.RBRACKET); err != nil {
				return nil, err
			}
			expr = &ast.IndexExpr{Target: expr, Index: idx}
		default:
			return expr, nil
		}
	}
}

func (p *Parser) parsePrimary() (ast.Expr, error) {
	tok := p.cur()
	switch tok.Kind {
	case token.INT:
		p.advance()
		n, err := strconv.ParseInt(tok.Lit, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parser: invalid integer %q: %w", tok.Lit, err)
		}
		return &ast.IntLit{Value: n}, nil
	case token.FLOAT:
		p.advance()
		f, err := strconv.ParseFloat(tok.Lit, 64)
		if err != nil {
			return nil, fmt.Errorf("parser: invalid float %q: %w", tok.Lit, err)
		}
		return &ast.FloatLit{Value: f}, nil
	case token.STRING:
		p.advance()
		return &ast.StringLit{Value: tok.Lit}, nil
	case token.TEMPLATE:
		p.advance()
		return p.parseTemplateLit(tok.Lit)
	case token.BINDVAR:
		p.advance()
		return &ast.BindVar{Name: tok.Lit}, nil
	case token.TRUE:
		p.advance()
		return &ast.BoolLit{Value: true}, nil
	case token.FALSE:
		p.advance()
		return &ast.BoolLit{Value: false}, nil
	case token.NULL:
		p.advance()
		return &ast.NullLit{}, nil
	case token.LPAREN:
		p.advance()
		if isClauseStart(p.cur().Kind) {
			q, err := p.parseSubquery()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(token.RPAREN); err != nil {
				return nil, err
			}
			return &ast.SubqueryExpr{Query: q}, nil
		}
		e, err := p.parseExpr(0)
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.RPAREN); err != nil {
			return nil, err
		}
		return e, nil
	case token.LBRACKET:
		return p.parseArrayLit()
	case token.LBRACE:
		return p.parseObjectLit()
	case token.IDENT:
		p.advance()
		if p.at(token.LPAREN) {
			return p.parseFuncCall(tok.Lit)
		}
		return &ast.Ident{Name: tok.Lit}, nil
	}
	return nil, fmt.Errorf("parser: unexpected token %s %q at %d:%d in expression", tok.Kind, tok.Lit, tok.Pos.Line, tok.Pos.Column)
}

func isClauseStart(k token.Kind) bool {
	switch k {
	case token.FOR, token.LET, token.FILTER, token.RETURN, token.COLLECT, token.SORT, token.LIMIT:
		return true
	}
	return false
}

func (p *Parser) parseSubquery() (*ast.Query, error) {
	q := &ast.Query{}
	for isClauseStart(p.cur().Kind) {
		c, err := p.parseClause()
		if err != nil {
			return nil, err
		}
		q.Clauses = append(q.Clauses, c)
	}
	return q, nil
}

func (p *Parser) parseFuncCall(name string) (ast.Expr, error) {
	p.advance() // (
	call := &ast.FuncCall{Name: name}
	if !p.at(token.RPAREN) {
		for {
			arg, err := p.parseExpr(0)
			if err != nil {
				return nil, err
			}
			call.Args = append(call.Args, arg)
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
	return call, nil
}

func (p *Parser) parseArrayLit() (ast.Expr, error) {
	p.advance() // [
	lit := &ast.ArrayLit{}
	if !p.at(token.RBRACKET) {
		for {
			e, err := p.parseExpr(0)
			if err != nil {
				return nil, err
			}
			lit.Elements = append(lit.Elements, e)
			if p.at(token.COMMA) {
				p.advance()
				continue
			}
			break
		}
	}
	if _, err := p.expect(token.RBRACKET); err != nil {
		return nil, err
	}
	return lit, nil
}

func (p *Parser) parseObjectLit() (ast.Expr, error) {
	p.advance() // {
	lit := &ast.ObjectLit{}
	if !p.at(token.RBRACE) {
		for {
			var key string
			switch p.cur().Kind {
			case token.IDENT:
				key = p.advance().Lit
			case token.STRING:
				key = p.advance().Lit
			default:
				return nil, fmt.Errorf("parser: expected object key at %d:%d", p.cur().Pos.Line, p.cur().Pos.Column)
			}
			if _, err := p.expect(token.COLON); err != nil {
				return nil, err
			}
			val, err := p.parseExpr(0)
			if err != nil {
				return nil, err
			}
			lit.Fields = append(lit.Fields, ast.ObjectField{Key: key, Value: val})
			if p.at(token.COMMA) {
				p.advance()
				continue
			}
			break
		}
	}
	if _, err := p.expect(token.RBRACE); err != nil {
		return nil, err
	}
	return lit, nil
}

// parseTemplateLit splits a raw $"...${expr}..." body (as captured
// verbatim by the lexer) into literal text segments and sub-expressions.
func (p *Parser) parseTemplateLit(raw string) (ast.Expr, error) {
	lit := &ast.TemplateLit{}
	var text strings.Builder
	i := 0
	for i < len(raw) {
		if raw[i] == '$' && i+1 < len(raw) && raw[i+1] == '{' {
			lit.Parts = append(lit.Parts, text.String())
			text.Reset()
			depth := 1
			j := i + 2
			for j < len(raw) && depth > 0 {
				switch raw[j] {
				case '{':
					depth++
				case '}':
					depth--
					if depth == 0 {
						continue
					}
				}
				j++
			}
			inner := raw[i+2 : j]
			sub, err := Parse("RETURN " + inner)
			if err != nil {
				return nil, fmt.Errorf("parser: invalid template expression %q: %w", inner, err)
			}
			ret := sub.Clauses[len(sub.Clauses)-1].(*ast.ReturnClause)
			lit.Exprs = append(lit.Exprs, ret.Value)
			i = j + 1
			continue
		}
		text.WriteByte(raw[i])
		i++
	}
	lit.Parts = append(lit.Parts, text.String())
	return lit, nil
}
