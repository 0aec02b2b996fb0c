package parser

import (
	"github.com/pyvm/pyvm/internal/ast"
	"github.com/pyvm/pyvm/internal/token"
)

func (p *Parser) matchStmt() (ast.Stmt, error) {
	tok := p.advance() // "match"
	subject, err := p.testlistExpr()
	if err != nil {
		return nil, err
	}
	if err := p.expectColon(); err != nil {
		return nil, err
	}
	if _, err := p.consumeKind(token.NEWLINE, "expected newline after match subject"); err != nil {
		return nil, err
	}
	if _, err := p.consumeKind(token.INDENT, "expected an indented block of case clauses"); err != nil {
		return nil, err
	}
	m := &ast.Match{Pos: pos(tok), Subject: subject}
	for p.checkKW("case") {
		c, err := p.caseClause()
		if err != nil {
			return nil, err
		}
		m.Cases = append(m.Cases, c)
	}
	if _, err := p.consumeKind(token.DEDENT, "expected dedent to close match block"); err != nil {
		return nil, err
	}
	return m, nil
}

func (p *Parser) caseClause() (ast.Case, error) {
	p.advance() // "case"
	pat, err := p.orPattern()
	if err != nil {
		return ast.Case{}, err
	}
	var guard ast.Expr
	if p.matchKW("if") {
		g, err := p.expression()
		if err != nil {
			return ast.Case{}, err
		}
		guard = g
	}
	if err := p.expectColon(); err != nil {
		return ast.Case{}, err
	}
	body, err := p.block()
	if err != nil {
		return ast.Case{}, err
	}
	return ast.Case{Pattern: pat, Guard: guard, Body: body}, nil
}

// orPattern parses `pat | pat | ...` and, one level below, bare
// comma-separated sequence patterns (`case a, b:`).
func (p *Parser) orPattern() (ast.Pattern, error) {
	first, err := p.sequencePattern()
	if err != nil {
		return nil, err
	}
	if !p.checkOp("|") {
		return first, nil
	}
	opts := []ast.Pattern{first}
	for p.matchOp("|") {
		next, err := p.sequencePattern()
		if err != nil {
			return nil, err
		}
		opts = append(opts, next)
	}
	return ast.MatchOr{Options: opts}, nil
}

func (p *Parser) sequencePattern() (ast.Pattern, error) {
	first, err := p.closedPattern()
	if err != nil {
		return nil, err
	}
	if !p.checkKind(token.COMMA) {
		return first, nil
	}
	elts := []ast.Pattern{first}
	for p.matchKind(token.COMMA) {
		if p.checkKind(token.COLON) || p.checkKW("if") {
			break
		}
		e, err := p.closedPattern()
		if err != nil {
			return nil, err
		}
		elts = append(elts, e)
	}
	return ast.MatchSequence{Elts: elts}, nil
}

func (p *Parser) closedPattern() (ast.Pattern, error) {
	tok := p.peek()
	switch {
	case tok.Kind == token.IDENT && tok.Lexeme == "_":
		p.advance()
		return ast.MatchWildcard{}, nil
	case tok.Kind == token.LBRACKET || tok.Kind == token.LPAREN:
		closeKind := token.RBRACKET
		if tok.Kind == token.LPAREN {
			closeKind = token.RPAREN
		}
		p.advance()
		var elts []ast.Pattern
		for !p.checkKind(closeKind) {
			e, err := p.closedPattern()
			if err != nil {
				return nil, err
			}
			if p.checkOp("|") {
				opts := []ast.Pattern{e}
				for p.matchOp("|") {
					o, err := p.closedPattern()
					if err != nil {
						return nil, err
					}
					opts = append(opts, o)
				}
				e = ast.MatchOr{Options: opts}
			}
			elts = append(elts, e)
			if !p.matchKind(token.COMMA) {
				break
			}
		}
		if _, err := p.consumeKind(closeKind, "expected closing bracket in pattern"); err != nil {
			return nil, err
		}
		return ast.MatchSequence{Elts: elts}, nil
	case tok.Kind == token.IDENT:
		p.advance()
		name := tok.Lexeme
		if p.checkKind(token.DOT) {
			expr := ast.Expr(&ast.Ident{Pos: pos(tok), Name: name})
			for p.checkKind(token.DOT) {
				p.advance()
				attr, err := p.consumeKind(token.IDENT, "expected attribute name")
				if err != nil {
					return nil, err
				}
				expr = &ast.Attribute{Pos: pos(tok), Value: expr, Attr: attr.Lexeme}
			}
			if p.checkKind(token.LPAREN) {
				return p.classPattern(expr)
			}
			return ast.MatchValue{Value: expr}, nil
		}
		if p.checkKind(token.LPAREN) {
			return p.classPattern(&ast.Ident{Pos: pos(tok), Name: name})
		}
		return ast.MatchCapture{Name: name}, nil
	default:
		e, err := p.orTest()
		if err != nil {
			return nil, err
		}
		return ast.MatchValue{Value: e}, nil
	}
}

func (p *Parser) classPattern(cls ast.Expr) (ast.Pattern, error) {
	p.advance() // '('
	var attrs []ast.Pattern
	for !p.checkKind(token.RPAREN) {
		a, err := p.closedPattern()
		if err != nil {
			return nil, err
		}
		if p.checkOp("|") {
			opts := []ast.Pattern{a}
			for p.matchOp("|") {
				o, err := p.closedPattern()
				if err != nil {
					return nil, err
				}
				opts = append(opts, o)
			}
			a = ast.MatchOr{Options: opts}
		}
		attrs = append(attrs, a)
		if !p.matchKind(token.COMMA) {
			break
		}
	}
	if err := p.consumeParen(); err != nil {
		return nil, err
	}
	return ast.MatchClass{Class: cls, Attrs: attrs}, nil
}
