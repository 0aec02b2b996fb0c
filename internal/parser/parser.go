// Package parser implements a recursive-descent parser with a
// Pratt-style expression precedence ladder, turning a token stream
// into an ast.Program.
package parser

import (
	"fmt"

	"github.com/pyvm/pyvm/internal/ast"
	"github.com/pyvm/pyvm/internal/token"
)

// SyntaxError is a fatal (tier-1) parse failure: the expected token
// kind plus the offending token's position.
type SyntaxError struct {
	Line, Column int
	Message      string
}

func (e SyntaxError) Error() string {
	return fmt.Sprintf("SyntaxError: %s (line %d, column %d)", e.Message, e.Line, e.Column)
}

func newSyntaxError(t token.Token, msg string) SyntaxError {
	return SyntaxError{Line: t.Line, Column: t.Column, Message: msg}
}

// Parser consumes a token slice produced by the lexer and builds an
// ast.Program. It halts (no error recovery) on the first unexpected
// token.
type Parser struct {
	tokens []token.Token
	pos    int
}

func New(tokens []token.Token) *Parser {
	return &Parser{tokens: tokens}
}

func (p *Parser) peek() token.Token  { return p.tokens[p.pos] }
func (p *Parser) previous() token.Token {
	if p.pos == 0 {
		return p.tokens[0]
	}
	return p.tokens[p.pos-1]
}

func (p *Parser) isAtEnd() bool { return p.peek().Kind == token.EOF }

func (p *Parser) advance() token.Token {
	if !p.isAtEnd() {
		p.pos++
	}
	return p.previous()
}

func (p *Parser) checkKind(k token.Kind) bool {
	return !p.isAtEnd() && p.peek().Kind == k
}

func (p *Parser) checkKW(word string) bool {
	t := p.peek()
	return t.Kind == token.KEYWORD && t.Lexeme == word
}

func (p *Parser) checkOp(lexeme string) bool {
	t := p.peek()
	return (t.Kind == token.OP || t.Kind == token.ASSIGN) && t.Lexeme == lexeme
}

func (p *Parser) matchKind(k token.Kind) bool {
	if p.checkKind(k) {
		p.advance()
		return true
	}
	return false
}

func (p *Parser) matchKW(words ...string) bool {
	for _, w := range words {
		if p.checkKW(w) {
			p.advance()
			return true
		}
	}
	return false
}

func (p *Parser) matchOp(ops ...string) bool {
	for _, op := range ops {
		if p.checkOp(op) {
			p.advance()
			return true
		}
	}
	return false
}

func (p *Parser) consumeKind(k token.Kind, msg string) (token.Token, error) {
	if p.checkKind(k) {
		return p.advance(), nil
	}
	return token.Token{}, newSyntaxError(p.peek(), msg)
}

func (p *Parser) consumeKW(word string) error {
	if p.checkKW(word) {
		p.advance()
		return nil
	}
	return newSyntaxError(p.peek(), fmt.Sprintf("expected '%s'", word))
}

func (p *Parser) consumeOp(op string) error {
	if p.checkOp(op) {
		p.advance()
		return nil
	}
	return newSyntaxError(p.peek(), fmt.Sprintf("expected '%s'", op))
}

func pos(t token.Token) ast.Pos { return ast.TokenPos(t) }

// Parse parses the whole token stream into a Program. It stops at the
// first error rather than attempting error recovery.
func (p *Parser) Parse() (*ast.Program, error) {
	prog := &ast.Program{}
	for !p.isAtEnd() {
		for p.matchKind(token.NEWLINE) {
		}
		if p.isAtEnd() {
			break
		}
		stmt, err := p.statement()
		if err != nil {
			return nil, err
		}
		prog.Stmts = append(prog.Stmts, stmt...)
	}
	return prog, nil
}

// block parses an indented suite: NEWLINE INDENT stmt+ DEDENT, or (for
// simple one-liners like `if x: y`) a single simple-statement list on
// the same line.
func (p *Parser) block() ([]ast.Stmt, error) {
	if p.matchKind(token.NEWLINE) {
		if _, err := p.consumeKind(token.INDENT, "expected an indented block"); err != nil {
			return nil, err
		}
		var stmts []ast.Stmt
		for !p.checkKind(token.DEDENT) && !p.isAtEnd() {
			for p.matchKind(token.NEWLINE) {
			}
			if p.checkKind(token.DEDENT) {
				break
			}
			s, err := p.statement()
			if err != nil {
				return nil, err
			}
			stmts = append(stmts, s...)
		}
		if _, err := p.consumeKind(token.DEDENT, "expected a dedent to close block"); err != nil {
			return nil, err
		}
		return stmts, nil
	}
	return p.simpleStmtLine()
}

// simpleStmtLine parses one or more semicolon-separated simple
// statements terminated by NEWLINE, used for both top-level simple
// statements and single-line compound-statement suites.
func (p *Parser) simpleStmtLine() ([]ast.Stmt, error) {
	var stmts []ast.Stmt
	for {
		s, err := p.simpleStmt()
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, s)
		if p.matchKind(token.SEMICOLON) {
			if p.checkKind(token.NEWLINE) || p.isAtEnd() {
				break
			}
			continue
		}
		break
	}
	p.matchKind(token.NEWLINE)
	return stmts, nil
}

// statement parses one logical statement, returning possibly several
// ast.Stmt for a semicolon-separated simple-statement line.
func (p *Parser) statement() ([]ast.Stmt, error) {
	switch {
	case p.checkKW("if"):
		s, err := p.ifStmt()
		return wrap(s, err)
	case p.checkKW("while"):
		s, err := p.whileStmt()
		return wrap(s, err)
	case p.checkKW("for"):
		s, err := p.forStmt()
		return wrap(s, err)
	case p.checkKW("try"):
		s, err := p.tryStmt()
		return wrap(s, err)
	case p.checkKW("with"):
		s, err := p.withStmt()
		return wrap(s, err)
	case p.checkKW("def"):
		s, err := p.funcDef(nil)
		return wrap(s, err)
	case p.checkKW("class"):
		s, err := p.classDef(nil)
		return wrap(s, err)
	case p.checkKW("match"):
		s, err := p.matchStmt()
		return wrap(s, err)
	case p.checkKind(token.AT):
		s, err := p.decorated()
		return wrap(s, err)
	case p.checkKW("async"):
		return p.asyncStmt()
	}
	return p.simpleStmtLine()
}

func wrap(s ast.Stmt, err error) ([]ast.Stmt, error) {
	if err != nil {
		return nil, err
	}
	return []ast.Stmt{s}, nil
}

func (p *Parser) asyncStmt() ([]ast.Stmt, error) {
	p.advance() // "async"
	if !p.checkKW("def") {
		return nil, newSyntaxError(p.peek(), "expected 'def' after 'async'")
	}
	fd, err := p.funcDef(nil)
	if err != nil {
		return nil, err
	}
	fd.(*ast.FunctionDef).IsAsync = true
	return []ast.Stmt{fd}, nil
}

func (p *Parser) decorated() (ast.Stmt, error) {
	var decos []ast.Decorator
	for p.checkKind(token.AT) {
		p.advance()
		e, err := p.expression()
		if err != nil {
			return nil, err
		}
		decos = append(decos, ast.Decorator{Expr: e})
		if !p.matchKind(token.NEWLINE) {
			return nil, newSyntaxError(p.peek(), "expected newline after decorator")
		}
	}
	if p.checkKW("def") {
		return p.funcDef(decos)
	}
	if p.checkKW("class") {
		return p.classDef(decos)
	}
	if p.checkKW("async") {
		p.advance()
		return p.funcDef(decos)
	}
	return nil, newSyntaxError(p.peek(), "expected function or class definition after decorator")
}

// simpleStmt parses a single simple (non-block) statement.
func (p *Parser) simpleStmt() (ast.Stmt, error) {
	tok := p.peek()
	switch {
	case p.checkKW("pass"):
		p.advance()
		return &ast.Pass{Pos: pos(tok)}, nil
	case p.checkKW("break"):
		p.advance()
		return &ast.Break{Pos: pos(tok)}, nil
	case p.checkKW("continue"):
		p.advance()
		return &ast.Continue{Pos: pos(tok)}, nil
	case p.checkKW("return"):
		return p.returnStmt()
	case p.checkKW("raise"):
		return p.raiseStmt()
	case p.checkKW("assert"):
		return p.assertStmt()
	case p.checkKW("global"):
		return p.globalStmt()
	case p.checkKW("nonlocal"):
		return p.nonlocalStmt()
	case p.checkKW("del"):
		return p.delStmt()
	case p.checkKW("import"):
		return p.importStmt()
	case p.checkKW("from"):
		return p.fromImportStmt()
	}
	return p.exprOrAssignStmt()
}

func (p *Parser) returnStmt() (ast.Stmt, error) {
	tok := p.advance()
	if p.checkKind(token.NEWLINE) || p.checkKind(token.SEMICOLON) || p.isAtEnd() {
		return &ast.Return{Pos: pos(tok)}, nil
	}
	v, err := p.testlistExpr()
	if err != nil {
		return nil, err
	}
	return &ast.Return{Pos: pos(tok), Value: v}, nil
}

func (p *Parser) raiseStmt() (ast.Stmt, error) {
	tok := p.advance()
	r := &ast.Raise{Pos: pos(tok)}
	if p.checkKind(token.NEWLINE) || p.checkKind(token.SEMICOLON) || p.isAtEnd() {
		return r, nil
	}
	exc, err := p.expression()
	if err != nil {
		return nil, err
	}
	r.Exc = exc
	if p.matchKW("from") {
		from, err := p.expression()
		if err != nil {
			return nil, err
		}
		r.From = from
	}
	return r, nil
}

func (p *Parser) assertStmt() (ast.Stmt, error) {
	tok := p.advance()
	cond, err := p.expression()
	if err != nil {
		return nil, err
	}
	a := &ast.Assert{Pos: pos(tok), Cond: cond}
	if p.matchKind(token.COMMA) {
		msg, err := p.expression()
		if err != nil {
			return nil, err
		}
		a.Msg = msg
	}
	return a, nil
}

func (p *Parser) nameList() ([]string, error) {
	var names []string
	for {
		id, err := p.consumeKind(token.IDENT, "expected a name")
		if err != nil {
			return nil, err
		}
		names = append(names, id.Lexeme)
		if !p.matchKind(token.COMMA) {
			break
		}
	}
	return names, nil
}

func (p *Parser) globalStmt() (ast.Stmt, error) {
	tok := p.advance()
	names, err := p.nameList()
	if err != nil {
		return nil, err
	}
	return &ast.Global{Pos: pos(tok), Names: names}, nil
}

func (p *Parser) nonlocalStmt() (ast.Stmt, error) {
	tok := p.advance()
	names, err := p.nameList()
	if err != nil {
		return nil, err
	}
	return &ast.Nonlocal{Pos: pos(tok), Names: names}, nil
}

func (p *Parser) delStmt() (ast.Stmt, error) {
	tok := p.advance()
	var targets []ast.Expr
	for {
		e, err := p.expression()
		if err != nil {
			return nil, err
		}
		targets = append(targets, e)
		if !p.matchKind(token.COMMA) {
			break
		}
	}
	return &ast.Delete{Pos: pos(tok), Targets: targets}, nil
}

func (p *Parser) dottedName() (string, error) {
	id, err := p.consumeKind(token.IDENT, "expected a module name")
	if err != nil {
		return "", err
	}
	name := id.Lexeme
	for p.checkKind(token.DOT) {
		p.advance()
		part, err := p.consumeKind(token.IDENT, "expected a name after '.'")
		if err != nil {
			return "", err
		}
		name += "." + part.Lexeme
	}
	return name, nil
}

func (p *Parser) importStmt() (ast.Stmt, error) {
	tok := p.advance()
	imp := &ast.Import{Pos: pos(tok)}
	for {
		name, err := p.dottedName()
		if err != nil {
			return nil, err
		}
		alias := ""
		if p.matchKW("as") {
			id, err := p.consumeKind(token.IDENT, "expected name after 'as'")
			if err != nil {
				return nil, err
			}
			alias = id.Lexeme
		}
		imp.Names = append(imp.Names, ast.ImportAlias{Name: name, Alias: alias})
		if !p.matchKind(token.COMMA) {
			break
		}
	}
	return imp, nil
}

func (p *Parser) fromImportStmt() (ast.Stmt, error) {
	tok := p.advance()
	module, err := p.dottedName()
	if err != nil {
		return nil, err
	}
	if err := p.consumeKW("import"); err != nil {
		return nil, err
	}
	imf := &ast.ImportFrom{Pos: pos(tok), Module: module}
	if p.checkOp("*") {
		p.advance()
		imf.Star = true
		return imf, nil
	}
	paren := p.matchKind(token.LPAREN)
	for {
		id, err := p.consumeKind(token.IDENT, "expected an imported name")
		if err != nil {
			return nil, err
		}
		alias := ""
		if p.matchKW("as") {
			a, err := p.consumeKind(token.IDENT, "expected name after 'as'")
			if err != nil {
				return nil, err
			}
			alias = a.Lexeme
		}
		imf.Names = append(imf.Names, ast.ImportAlias{Name: id.Lexeme, Alias: alias})
		if !p.matchKind(token.COMMA) {
			break
		}
	}
	if paren {
		if _, err := p.consumeKind(token.RPAREN, "expected ')'"); err != nil {
			return nil, err
		}
	}
	return imf, nil
}

var augOps = map[string]string{
	"+=": "+", "-=": "-", "*=": "*", "/=": "/", "//=": "//", "%=": "%",
	"**=": "**", "&=": "&", "|=": "|", "^=": "^", "<<=": "<<", ">>=": ">>",
}

// exprOrAssignStmt parses an expression statement, a plain/chained
// assignment, or an augmented assignment; disambiguated the same way
// the grammar does — parse the left side as an expression list first.
func (p *Parser) exprOrAssignStmt() (ast.Stmt, error) {
	tok := p.peek()
	first, err := p.testlistExpr()
	if err != nil {
		return nil, err
	}

	if aug, ok := augOps[p.peek().Lexeme]; ok && p.peek().Kind == token.OP {
		p.advance()
		value, err := p.testlistExpr()
		if err != nil {
			return nil, err
		}
		return &ast.AugAssign{Pos: pos(tok), Target: first, Op: aug, Value: value}, nil
	}

	if p.checkKind(token.ASSIGN) {
		targets := []ast.Expr{first}
		for p.checkKind(token.ASSIGN) {
			p.advance()
			next, err := p.testlistExpr()
			if err != nil {
				return nil, err
			}
			if p.checkKind(token.ASSIGN) {
				targets = append(targets, next)
				continue
			}
			return &ast.Assign{Pos: pos(tok), Targets: targets, Value: next}, nil
		}
	}

	return &ast.ExprStmt{Pos: pos(tok), X: first}, nil
}

func (p *Parser) ifStmt() (ast.Stmt, error) {
	tok := p.advance()
	cond, err := p.expression()
	if err != nil {
		return nil, err
	}
	if err := p.expectColon(); err != nil {
		return nil, err
	}
	thenBody, err := p.block()
	if err != nil {
		return nil, err
	}
	ifNode := &ast.If{Pos: pos(tok), Cond: cond, Then: thenBody}

	if p.checkKW("elif") {
		elifStmt, err := p.ifStmt()
		if err != nil {
			return nil, err
		}
		ifNode.Else = []ast.Stmt{elifStmt}
		return ifNode, nil
	}
	if p.matchKW("else") {
		if err := p.expectColon(); err != nil {
			return nil, err
		}
		elseBody, err := p.block()
		if err != nil {
			return nil, err
		}
		ifNode.Else = elseBody
	}
	return ifNode, nil
}

func (p *Parser) expectColon() error {
	if p.checkKind(token.COLON) {
		p.advance()
		return nil
	}
	return newSyntaxError(p.peek(), "expected ':'")
}

func (p *Parser) whileStmt() (ast.Stmt, error) {
	tok := p.advance()
	cond, err := p.expression()
	if err != nil {
		return nil, err
	}
	if err := p.expectColon(); err != nil {
		return nil, err
	}
	body, err := p.block()
	if err != nil {
		return nil, err
	}
	w := &ast.While{Pos: pos(tok), Cond: cond, Body: body}
	if p.matchKW("else") {
		if err := p.expectColon(); err != nil {
			return nil, err
		}
		elseBody, err := p.block()
		if err != nil {
			return nil, err
		}
		w.Else = elseBody
	}
	return w, nil
}

func (p *Parser) forStmt() (ast.Stmt, error) {
	tok := p.advance()
	target, err := p.targetList()
	if err != nil {
		return nil, err
	}
	if err := p.consumeKW("in"); err != nil {
		return nil, err
	}
	iter, err := p.testlistExpr()
	if err != nil {
		return nil, err
	}
	if err := p.expectColon(); err != nil {
		return nil, err
	}
	body, err := p.block()
	if err != nil {
		return nil, err
	}
	f := &ast.For{Pos: pos(tok), Target: target, Iter: iter, Body: body}
	if p.matchKW("else") {
		if err := p.expectColon(); err != nil {
			return nil, err
		}
		elseBody, err := p.block()
		if err != nil {
			return nil, err
		}
		f.Else = elseBody
	}
	return f, nil
}

// targetList parses a for-loop or assignment target, which may be a
// bare name, a starred name, or a comma-separated tuple of such.
func (p *Parser) targetList() (ast.Expr, error) {
	first, err := p.targetAtom()
	if err != nil {
		return nil, err
	}
	if !p.checkKind(token.COMMA) {
		return first, nil
	}
	elts := []ast.Expr{first}
	for p.matchKind(token.COMMA) {
		if p.checkKW("in") || p.checkKind(token.ASSIGN) {
			break
		}
		e, err := p.targetAtom()
		if err != nil {
			return nil, err
		}
		elts = append(elts, e)
	}
	return &ast.TupleLit{Elts: elts}, nil
}

func (p *Parser) targetAtom() (ast.Expr, error) {
	if p.checkOp("*") {
		tok := p.advance()
		e, err := p.postfix()
		if err != nil {
			return nil, err
		}
		return &ast.Starred{Pos: pos(tok), Value: e}, nil
	}
	return p.postfix()
}

func (p *Parser) tryStmt() (ast.Stmt, error) {
	tok := p.advance()
	if err := p.expectColon(); err != nil {
		return nil, err
	}
	body, err := p.block()
	if err != nil {
		return nil, err
	}
	t := &ast.Try{Pos: pos(tok), Body: body}
	for p.checkKW("except") {
		p.advance()
		var clause ast.ExceptClause
		if !p.checkKind(token.COLON) {
			typ, err := p.expression()
			if err != nil {
				return nil, err
			}
			clause.Type = typ
			if p.matchKW("as") {
				id, err := p.consumeKind(token.IDENT, "expected name after 'as'")
				if err != nil {
					return nil, err
				}
				clause.Name = id.Lexeme
			}
		}
		if err := p.expectColon(); err != nil {
			return nil, err
		}
		handlerBody, err := p.block()
		if err != nil {
			return nil, err
		}
		clause.Body = handlerBody
		t.Handlers = append(t.Handlers, clause)
	}
	if p.matchKW("else") {
		if err := p.expectColon(); err != nil {
			return nil, err
		}
		elseBody, err := p.block()
		if err != nil {
			return nil, err
		}
		t.Else = elseBody
	}
	if p.matchKW("finally") {
		if err := p.expectColon(); err != nil {
			return nil, err
		}
		finallyBody, err := p.block()
		if err != nil {
			return nil, err
		}
		t.Finally = finallyBody
	}
	return t, nil
}

func (p *Parser) withStmt() (ast.Stmt, error) {
	tok := p.advance()
	w := &ast.With{Pos: pos(tok)}
	for {
		ctx, err := p.expression()
		if err != nil {
			return nil, err
		}
		item := ast.WithItem{Ctx: ctx}
		if p.matchKW("as") {
			target, err := p.targetAtom()
			if err != nil {
				return nil, err
			}
			item.As = target
		}
		w.Items = append(w.Items, item)
		if !p.matchKind(token.COMMA) {
			break
		}
	}
	if err := p.expectColon(); err != nil {
		return nil, err
	}
	body, err := p.block()
	if err != nil {
		return nil, err
	}
	w.Body = body
	return w, nil
}

func (p *Parser) paramList() ([]ast.Param, error) {
	if err := consumeLParen(p); err != nil {
		return nil, err
	}
	var params []ast.Param
	for !p.checkKind(token.RPAREN) {
		var param ast.Param
		if p.checkOp("*") {
			p.advance()
			param.Star = true
		} else if p.checkOp("**") {
			p.advance()
			param.DoubleStar = true
		}
		id, err := p.consumeKind(token.IDENT, "expected a parameter name")
		if err != nil {
			return nil, err
		}
		param.Name = id.Lexeme
		if p.checkKind(token.COLON) {
			p.advance()
			if _, err := p.annotation(); err != nil {
				return nil, err
			}
		}
		if p.checkKind(token.ASSIGN) {
			p.advance()
			def, err := p.expression()
			if err != nil {
				return nil, err
			}
			param.Default = def
		}
		params = append(params, param)
		if !p.matchKind(token.COMMA) {
			break
		}
	}
	if err := p.consumeParen(); err != nil {
		return nil, err
	}
	return params, nil
}

func consumeLParen(p *Parser) error {
	if p.checkKind(token.LPAREN) {
		p.advance()
		return nil
	}
	return newSyntaxError(p.peek(), "expected '('")
}

func (p *Parser) consumeParen() error {
	if p.checkKind(token.RPAREN) {
		p.advance()
		return nil
	}
	return newSyntaxError(p.peek(), "expected ')'")
}

// annotation parses and discards a type annotation expression — type
// checking is out of scope, but the tokens must still be consumed.
func (p *Parser) annotation() (ast.Expr, error) {
	return p.expression()
}

func (p *Parser) funcDef(decos []ast.Decorator) (ast.Stmt, error) {
	tok := p.advance() // "def"
	name, err := p.consumeKind(token.IDENT, "expected function name")
	if err != nil {
		return nil, err
	}
	params, err := p.paramList()
	if err != nil {
		return nil, err
	}
	if p.checkKind(token.ARROW) {
		p.advance()
		if _, err := p.annotation(); err != nil {
			return nil, err
		}
	}
	if err := p.expectColon(); err != nil {
		return nil, err
	}
	body, err := p.block()
	if err != nil {
		return nil, err
	}
	return &ast.FunctionDef{Pos: pos(tok), Name: name.Lexeme, Params: params, Body: body, Decorators: decos}, nil
}

func (p *Parser) classDef(decos []ast.Decorator) (ast.Stmt, error) {
	tok := p.advance() // "class"
	name, err := p.consumeKind(token.IDENT, "expected class name")
	if err != nil {
		return nil, err
	}
	var bases []ast.Expr
	if p.matchKind(token.LPAREN) {
		for !p.checkKind(token.RPAREN) {
			b, err := p.expression()
			if err != nil {
				return nil, err
			}
			bases = append(bases, b)
			if !p.matchKind(token.COMMA) {
				break
			}
		}
		if err := p.consumeParen(); err != nil {
			return nil, err
		}
	}
	if err := p.expectColon(); err != nil {
		return nil, err
	}
	body, err := p.block()
	if err != nil {
		return nil, err
	}
	return &ast.ClassDef{Pos: pos(tok), Name: name.Lexeme, Bases: bases, Body: body, Decorators: decos}, nil
}
