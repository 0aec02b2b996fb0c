package parser

import (
	"strings"

	"github.com/pyvm/pyvm/internal/ast"
	"github.com/pyvm/pyvm/internal/lexer"
	"github.com/pyvm/pyvm/internal/token"
)

// testlistExpr parses a comma-separated expression list, producing a
// bare expression when there is exactly one element and no trailing
// comma, or a TupleLit otherwise — the rule Python uses to turn
// `a, b = 1, 2` and `return 1,` into tuples.
func (p *Parser) testlistExpr() (ast.Expr, error) {
	first, err := p.expression()
	if err != nil {
		return nil, err
	}
	if !p.checkKind(token.COMMA) {
		return first, nil
	}
	elts := []ast.Expr{first}
	trailingComma := false
	for p.matchKind(token.COMMA) {
		trailingComma = true
		if p.atExprListEnd() {
			break
		}
		e, err := p.expression()
		if err != nil {
			return nil, err
		}
		elts = append(elts, e)
		trailingComma = false
	}
	_ = trailingComma
	return &ast.TupleLit{Pos: first.Position(), Elts: elts}, nil
}

func (p *Parser) atExprListEnd() bool {
	t := p.peek()
	switch t.Kind {
	case token.NEWLINE, token.SEMICOLON, token.RPAREN, token.RBRACKET, token.RBRACE,
		token.COLON, token.EOF, token.ASSIGN:
		return true
	}
	return t.Kind == token.KEYWORD && (t.Lexeme == "in")
}

func (p *Parser) expression() (ast.Expr, error) {
	if p.checkKW("lambda") {
		return p.lambdaExpr()
	}
	if p.checkKW("yield") {
		return p.yieldExpr()
	}
	return p.namedExpr()
}

func (p *Parser) yieldExpr() (ast.Expr, error) {
	tok := p.advance()
	y := &ast.YieldExpr{Pos: pos(tok)}
	if p.matchKW("from") {
		y.From = true
		v, err := p.expression()
		if err != nil {
			return nil, err
		}
		y.Value = v
		return y, nil
	}
	if p.atExprListEnd() {
		return y, nil
	}
	v, err := p.testlistExpr()
	if err != nil {
		return nil, err
	}
	y.Value = v
	return y, nil
}

// namedExpr handles the walrus operator `name := expr`, which can
// appear nested inside larger expressions (if conditions, comprehension
// filters); the lookahead here only covers the common top-level case.
func (p *Parser) namedExpr() (ast.Expr, error) {
	if p.checkKind(token.IDENT) {
		save := p.pos
		id := p.advance()
		if p.checkOp(":=") {
			p.advance()
			val, err := p.expression()
			if err != nil {
				return nil, err
			}
			return &ast.NamedExpr{Pos: pos(id), Name: id.Lexeme, Value: val}, nil
		}
		p.pos = save
	}
	return p.ternary()
}

func (p *Parser) lambdaExpr() (ast.Expr, error) {
	tok := p.advance()
	var params []ast.Param
	for !p.checkKind(token.COLON) {
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
	if err := p.expectColon(); err != nil {
		return nil, err
	}
	body, err := p.expression()
	if err != nil {
		return nil, err
	}
	return &ast.Lambda{Pos: pos(tok), Params: params, Body: body}, nil
}

func (p *Parser) ternary() (ast.Expr, error) {
	cond, err := p.orTest()
	if err != nil {
		return nil, err
	}
	if p.checkKW("if") {
		p.advance()
		elseCond, err := p.orTest()
		if err != nil {
			return nil, err
		}
		if err := p.consumeKW("else"); err != nil {
			return nil, err
		}
		elseVal, err := p.expression()
		if err != nil {
			return nil, err
		}
		return &ast.Ternary{Pos: cond.Position(), Cond: elseCond, Then: cond, Else: elseVal}, nil
	}
	return cond, nil
}

func (p *Parser) orTest() (ast.Expr, error) {
	first, err := p.andTest()
	if err != nil {
		return nil, err
	}
	if !p.checkKW("or") {
		return first, nil
	}
	values := []ast.Expr{first}
	for p.matchKW("or") {
		next, err := p.andTest()
		if err != nil {
			return nil, err
		}
		values = append(values, next)
	}
	return &ast.BoolOp{Pos: first.Position(), Op: "or", Values: values}, nil
}

func (p *Parser) andTest() (ast.Expr, error) {
	first, err := p.notTest()
	if err != nil {
		return nil, err
	}
	if !p.checkKW("and") {
		return first, nil
	}
	values := []ast.Expr{first}
	for p.matchKW("and") {
		next, err := p.notTest()
		if err != nil {
			return nil, err
		}
		values = append(values, next)
	}
	return &ast.BoolOp{Pos: first.Position(), Op: "and", Values: values}, nil
}

func (p *Parser) notTest() (ast.Expr, error) {
	if p.checkKW("not") {
		tok := p.advance()
		operand, err := p.notTest()
		if err != nil {
			return nil, err
		}
		return &ast.Unary{Pos: pos(tok), Op: "not", Operand: operand}, nil
	}
	return p.comparison()
}

var compareOps = map[string]bool{
	"<": true, "<=": true, ">": true, ">=": true, "==": true, "!=": true,
}

func (p *Parser) comparison() (ast.Expr, error) {
	left, err := p.bitOr()
	if err != nil {
		return nil, err
	}
	var ops []string
	var comps []ast.Expr
	for {
		if t := p.peek(); t.Kind == token.OP && compareOps[t.Lexeme] {
			p.advance()
			right, err := p.bitOr()
			if err != nil {
				return nil, err
			}
			ops = append(ops, t.Lexeme)
			comps = append(comps, right)
			continue
		}
		if p.checkKW("in") {
			p.advance()
			right, err := p.bitOr()
			if err != nil {
				return nil, err
			}
			ops = append(ops, "in")
			comps = append(comps, right)
			continue
		}
		if p.checkKW("not") {
			save := p.pos
			p.advance()
			if p.checkKW("in") {
				p.advance()
				right, err := p.bitOr()
				if err != nil {
					return nil, err
				}
				ops = append(ops, "not in")
				comps = append(comps, right)
				continue
			}
			p.pos = save
		}
		if p.checkKW("is") {
			p.advance()
			op := "is"
			if p.checkKW("not") {
				p.advance()
				op = "is not"
			}
			right, err := p.bitOr()
			if err != nil {
				return nil, err
			}
			ops = append(ops, op)
			comps = append(comps, right)
			continue
		}
		break
	}
	if len(ops) == 0 {
		return left, nil
	}
	return &ast.Compare{Pos: left.Position(), Left: left, Ops: ops, Comparators: comps}, nil
}

func (p *Parser) bitOr() (ast.Expr, error) {
	left, err := p.bitXor()
	if err != nil {
		return nil, err
	}
	for p.checkOp("|") {
		tok := p.advance()
		right, err := p.bitXor()
		if err != nil {
			return nil, err
		}
		left = &ast.Binary{Pos: pos(tok), Left: left, Op: "|", Right: right}
	}
	return left, nil
}

func (p *Parser) bitXor() (ast.Expr, error) {
	left, err := p.bitAnd()
	if err != nil {
		return nil, err
	}
	for p.checkOp("^") {
		tok := p.advance()
		right, err := p.bitAnd()
		if err != nil {
			return nil, err
		}
		left = &ast.Binary{Pos: pos(tok), Left: left, Op: "^", Right: right}
	}
	return left, nil
}

func (p *Parser) bitAnd() (ast.Expr, error) {
	left, err := p.shift()
	if err != nil {
		return nil, err
	}
	for p.checkOp("&") {
		tok := p.advance()
		right, err := p.shift()
		if err != nil {
			return nil, err
		}
		left = &ast.Binary{Pos: pos(tok), Left: left, Op: "&", Right: right}
	}
	return left, nil
}

func (p *Parser) shift() (ast.Expr, error) {
	left, err := p.arith()
	if err != nil {
		return nil, err
	}
	for p.checkOp("<<") || p.checkOp(">>") {
		tok := p.advance()
		right, err := p.arith()
		if err != nil {
			return nil, err
		}
		left = &ast.Binary{Pos: pos(tok), Left: left, Op: tok.Lexeme, Right: right}
	}
	return left, nil
}

func (p *Parser) arith() (ast.Expr, error) {
	left, err := p.term()
	if err != nil {
		return nil, err
	}
	for p.checkOp("+") || p.checkOp("-") {
		tok := p.advance()
		right, err := p.term()
		if err != nil {
			return nil, err
		}
		left = &ast.Binary{Pos: pos(tok), Left: left, Op: tok.Lexeme, Right: right}
	}
	return left, nil
}

func (p *Parser) term() (ast.Expr, error) {
	left, err := p.factor()
	if err != nil {
		return nil, err
	}
	for p.checkOp("*") || p.checkOp("/") || p.checkOp("//") || p.checkOp("%") || p.checkOp("@") {
		tok := p.advance()
		right, err := p.factor()
		if err != nil {
			return nil, err
		}
		left = &ast.Binary{Pos: pos(tok), Left: left, Op: tok.Lexeme, Right: right}
	}
	return left, nil
}

func (p *Parser) factor() (ast.Expr, error) {
	if p.checkOp("+") || p.checkOp("-") || p.checkOp("~") {
		tok := p.advance()
		operand, err := p.factor()
		if err != nil {
			return nil, err
		}
		return &ast.Unary{Pos: pos(tok), Op: tok.Lexeme, Operand: operand}, nil
	}
	return p.power()
}

func (p *Parser) power() (ast.Expr, error) {
	base, err := p.postfix()
	if err != nil {
		return nil, err
	}
	if p.checkOp("**") {
		tok := p.advance()
		exp, err := p.factor()
		if err != nil {
			return nil, err
		}
		return &ast.Binary{Pos: pos(tok), Left: base, Op: "**", Right: exp}, nil
	}
	return base, nil
}

func (p *Parser) postfix() (ast.Expr, error) {
	expr, err := p.atom()
	if err != nil {
		return nil, err
	}
	for {
		switch {
		case p.checkKind(token.DOT):
			tok := p.advance()
			name, err := p.consumeKind(token.IDENT, "expected attribute name after '.'")
			if err != nil {
				return nil, err
			}
			expr = &ast.Attribute{Pos: pos(tok), Value: expr, Attr: name.Lexeme}
		case p.checkKind(token.LPAREN):
			args, err := p.callArgs()
			if err != nil {
				return nil, err
			}
			expr = &ast.Call{Pos: expr.Position(), Func: expr, Args: args}
		case p.checkKind(token.LBRACKET):
			tok := p.advance()
			sub, err := p.subscriptBody(tok)
			if err != nil {
				return nil, err
			}
			if _, err := p.consumeKind(token.RBRACKET, "expected ']'"); err != nil {
				return nil, err
			}
			expr = &ast.Subscript{Pos: pos(tok), Value: expr, Index: sub}
		default:
			return expr, nil
		}
	}
}

// subscriptBody parses the contents of `[...]`: either a plain index
// expression, a slice (any of start/end/step may be omitted), or a
// tuple of indices (for multi-dimensional subscripts).
func (p *Parser) subscriptBody(tok token.Token) (ast.Expr, error) {
	var start, end, step ast.Expr
	var err error
	isSlice := false
	if !p.checkKind(token.COLON) && !p.checkKind(token.RBRACKET) {
		start, err = p.expression()
		if err != nil {
			return nil, err
		}
	}
	if p.checkKind(token.COLON) {
		isSlice = true
		p.advance()
		if !p.checkKind(token.COLON) && !p.checkKind(token.RBRACKET) {
			end, err = p.expression()
			if err != nil {
				return nil, err
			}
		}
		if p.checkKind(token.COLON) {
			p.advance()
			if !p.checkKind(token.RBRACKET) {
				step, err = p.expression()
				if err != nil {
					return nil, err
				}
			}
		}
	}
	if isSlice {
		return &ast.Slice{Pos: pos(tok), Start: start, End: end, Step: step}, nil
	}
	if p.checkKind(token.COMMA) {
		elts := []ast.Expr{start}
		for p.matchKind(token.COMMA) {
			if p.checkKind(token.RBRACKET) {
				break
			}
			e, err := p.expression()
			if err != nil {
				return nil, err
			}
			elts = append(elts, e)
		}
		return &ast.TupleLit{Pos: pos(tok), Elts: elts}, nil
	}
	return start, nil
}

func (p *Parser) callArgs() ([]ast.Arg, error) {
	if err := consumeLParen(p); err != nil {
		return nil, err
	}
	var args []ast.Arg
	for !p.checkKind(token.RPAREN) {
		var arg ast.Arg
		if p.checkOp("*") {
			p.advance()
			v, err := p.expression()
			if err != nil {
				return nil, err
			}
			arg.Star = true
			arg.Value = v
		} else if p.checkOp("**") {
			p.advance()
			v, err := p.expression()
			if err != nil {
				return nil, err
			}
			arg.DoubleStar = true
			arg.Value = v
		} else if p.checkKind(token.IDENT) && p.peekAhead(1).Kind == token.ASSIGN {
			name := p.advance()
			p.advance() // '='
			v, err := p.expression()
			if err != nil {
				return nil, err
			}
			arg.Name = name.Lexeme
			arg.Value = v
		} else {
			v, err := p.expression()
			if err != nil {
				return nil, err
			}
			if p.checkKW("for") {
				gen, err := p.comprehensionTail(v)
				if err != nil {
					return nil, err
				}
				v = gen
			}
			arg.Value = v
		}
		args = append(args, arg)
		if !p.matchKind(token.COMMA) {
			break
		}
	}
	if err := p.consumeParen(); err != nil {
		return nil, err
	}
	return args, nil
}

func (p *Parser) peekAhead(n int) token.Token {
	idx := p.pos + n
	if idx >= len(p.tokens) {
		return p.tokens[len(p.tokens)-1]
	}
	return p.tokens[idx]
}

func (p *Parser) atom() (ast.Expr, error) {
	tok := p.peek()
	switch {
	case tok.Kind == token.NUMBER:
		p.advance()
		return &ast.NumberLit{Pos: pos(tok), Value: tok.Literal}, nil
	case tok.Kind == token.STRING:
		p.advance()
		lit := tok.Literal.(string)
		for p.checkKind(token.STRING) {
			lit += p.advance().Literal.(string)
		}
		return &ast.StringLit{Pos: pos(tok), Value: lit}, nil
	case tok.Kind == token.FSTRING_START:
		p.advance()
		return p.parseFString(tok)
	case tok.Kind == token.BOOLEAN:
		p.advance()
		return &ast.BoolLit{Pos: pos(tok), Value: tok.Lexeme == "True"}, nil
	case tok.Kind == token.NONE:
		p.advance()
		return &ast.NoneLit{Pos: pos(tok)}, nil
	case tok.Kind == token.IDENT:
		p.advance()
		return &ast.Ident{Pos: pos(tok), Name: tok.Lexeme}, nil
	case tok.Kind == token.LPAREN:
		return p.parenAtom()
	case tok.Kind == token.LBRACKET:
		return p.listAtom()
	case tok.Kind == token.LBRACE:
		return p.braceAtom()
	case tok.Kind == token.OP && tok.Lexeme == "*":
		p.advance()
		v, err := p.orTest()
		if err != nil {
			return nil, err
		}
		return &ast.Starred{Pos: pos(tok), Value: v}, nil
	}
	return nil, newSyntaxError(tok, "expected an expression")
}

func (p *Parser) parenAtom() (ast.Expr, error) {
	tok := p.advance()
	if p.checkKind(token.RPAREN) {
		p.advance()
		return &ast.TupleLit{Pos: pos(tok)}, nil
	}
	first, err := p.expression()
	if err != nil {
		return nil, err
	}
	if p.checkKW("for") {
		gen, err := p.comprehensionTail(first)
		if err != nil {
			return nil, err
		}
		if _, err := p.consumeKind(token.RPAREN, "expected ')'"); err != nil {
			return nil, err
		}
		return gen, nil
	}
	if p.checkKind(token.COMMA) {
		elts := []ast.Expr{first}
		for p.matchKind(token.COMMA) {
			if p.checkKind(token.RPAREN) {
				break
			}
			e, err := p.expression()
			if err != nil {
				return nil, err
			}
			elts = append(elts, e)
		}
		if _, err := p.consumeKind(token.RPAREN, "expected ')'"); err != nil {
			return nil, err
		}
		return &ast.TupleLit{Pos: pos(tok), Elts: elts}, nil
	}
	if _, err := p.consumeKind(token.RPAREN, "expected ')'"); err != nil {
		return nil, err
	}
	return first, nil
}

func (p *Parser) listAtom() (ast.Expr, error) {
	tok := p.advance()
	if p.checkKind(token.RBRACKET) {
		p.advance()
		return &ast.ListLit{Pos: pos(tok)}, nil
	}
	first, err := p.expression()
	if err != nil {
		return nil, err
	}
	if p.checkKW("for") {
		gens, err := p.comprehensionClauses()
		if err != nil {
			return nil, err
		}
		if _, err := p.consumeKind(token.RBRACKET, "expected ']'"); err != nil {
			return nil, err
		}
		return &ast.ListComp{Pos: pos(tok), Elt: first, Generators: gens}, nil
	}
	elts := []ast.Expr{first}
	for p.matchKind(token.COMMA) {
		if p.checkKind(token.RBRACKET) {
			break
		}
		e, err := p.expression()
		if err != nil {
			return nil, err
		}
		elts = append(elts, e)
	}
	if _, err := p.consumeKind(token.RBRACKET, "expected ']'"); err != nil {
		return nil, err
	}
	return &ast.ListLit{Pos: pos(tok), Elts: elts}, nil
}

// braceAtom parses `{...}`: an empty dict, a dict/dict-comprehension,
// or a set/set-comprehension, disambiguated by whether a `:` follows
// the first element.
func (p *Parser) braceAtom() (ast.Expr, error) {
	tok := p.advance()
	if p.checkKind(token.RBRACE) {
		p.advance()
		return &ast.DictLit{Pos: pos(tok)}, nil
	}
	if p.checkOp("**") {
		return p.dictLitBody(tok, nil)
	}
	first, err := p.expression()
	if err != nil {
		return nil, err
	}
	if p.checkKind(token.COLON) {
		p.advance()
		value, err := p.expression()
		if err != nil {
			return nil, err
		}
		if p.checkKW("for") {
			gens, err := p.comprehensionClauses()
			if err != nil {
				return nil, err
			}
			if _, err := p.consumeKind(token.RBRACE, "expected '}'"); err != nil {
				return nil, err
			}
			return &ast.DictComp{Pos: pos(tok), Key: first, Value: value, Generators: gens}, nil
		}
		return p.dictLitBody(tok, &ast.DictEntry{Key: first, Value: value})
	}
	if p.checkKW("for") {
		gens, err := p.comprehensionClauses()
		if err != nil {
			return nil, err
		}
		if _, err := p.consumeKind(token.RBRACE, "expected '}'"); err != nil {
			return nil, err
		}
		return &ast.SetComp{Pos: pos(tok), Elt: first, Generators: gens}, nil
	}
	elts := []ast.Expr{first}
	for p.matchKind(token.COMMA) {
		if p.checkKind(token.RBRACE) {
			break
		}
		e, err := p.expression()
		if err != nil {
			return nil, err
		}
		elts = append(elts, e)
	}
	if _, err := p.consumeKind(token.RBRACE, "expected '}'"); err != nil {
		return nil, err
	}
	return &ast.SetLit{Pos: pos(tok), Elts: elts}, nil
}

func (p *Parser) dictLitBody(tok token.Token, first *ast.DictEntry) (ast.Expr, error) {
	var entries []ast.DictEntry
	if first != nil {
		entries = append(entries, *first)
		if !p.matchKind(token.COMMA) {
			if _, err := p.consumeKind(token.RBRACE, "expected '}'"); err != nil {
				return nil, err
			}
			return &ast.DictLit{Pos: pos(tok), Entries: entries}, nil
		}
	}
	for !p.checkKind(token.RBRACE) {
		if p.checkOp("**") {
			p.advance()
			v, err := p.orTest()
			if err != nil {
				return nil, err
			}
			entries = append(entries, ast.DictEntry{Key: nil, Value: v})
		} else {
			k, err := p.expression()
			if err != nil {
				return nil, err
			}
			if err := p.expectColon(); err != nil {
				return nil, err
			}
			v, err := p.expression()
			if err != nil {
				return nil, err
			}
			entries = append(entries, ast.DictEntry{Key: k, Value: v})
		}
		if !p.matchKind(token.COMMA) {
			break
		}
	}
	if _, err := p.consumeKind(token.RBRACE, "expected '}'"); err != nil {
		return nil, err
	}
	return &ast.DictLit{Pos: pos(tok), Entries: entries}, nil
}

// comprehensionTail wraps an already-parsed element expression into a
// GeneratorExp once a trailing `for` clause is seen, used for bare
// generator expressions inside call parens or grouping parens.
func (p *Parser) comprehensionTail(elt ast.Expr) (ast.Expr, error) {
	gens, err := p.comprehensionClauses()
	if err != nil {
		return nil, err
	}
	return &ast.GeneratorExp{Pos: elt.Position(), Elt: elt, Generators: gens}, nil
}

func (p *Parser) comprehensionClauses() ([]ast.Comprehension, error) {
	var gens []ast.Comprehension
	for p.checkKW("for") || p.checkKW("async") {
		p.matchKW("async")
		if err := p.consumeKW("for"); err != nil {
			return nil, err
		}
		target, err := p.targetList()
		if err != nil {
			return nil, err
		}
		if err := p.consumeKW("in"); err != nil {
			return nil, err
		}
		iter, err := p.orTest()
		if err != nil {
			return nil, err
		}
		comp := ast.Comprehension{Target: target, Iter: iter}
		for p.checkKW("if") {
			p.advance()
			cond, err := p.orTest()
			if err != nil {
				return nil, err
			}
			comp.Ifs = append(comp.Ifs, cond)
		}
		gens = append(gens, comp)
	}
	return gens, nil
}

// parseFString splits the raw f-string payload into literal text and
// `{expr[!conv][:spec]}` parts, recursively lexing/parsing each
// expression part with a fresh Parser the same way the top-level
// source is parsed.
func (p *Parser) parseFString(tok token.Token) (ast.Expr, error) {
	raw := tok.Literal.(string)
	f := &ast.FString{Pos: pos(tok)}
	var text strings.Builder
	i := 0
	for i < len(raw) {
		c := raw[i]
		if c == '{' && i+1 < len(raw) && raw[i+1] == '{' {
			text.WriteByte('{')
			i += 2
			continue
		}
		if c == '}' && i+1 < len(raw) && raw[i+1] == '}' {
			text.WriteByte('}')
			i += 2
			continue
		}
		if c == '{' {
			if text.Len() > 0 {
				f.Parts = append(f.Parts, ast.FStringPart{Text: text.String()})
				text.Reset()
			}
			depth := 1
			j := i + 1
			for j < len(raw) && depth > 0 {
				switch raw[j] {
				case '{':
					depth++
				case '}':
					depth--
					if depth == 0 {
						goto found
					}
				}
				j++
			}
		found:
			body := raw[i+1 : j]
			spec := ""
			if idx := strings.LastIndex(body, ":"); idx >= 0 && !strings.ContainsAny(body[idx+1:], "{}") {
				spec = body[idx+1:]
				body = body[:idx]
			}
			exprSrc := strings.TrimSuffix(body, "!r")
			exprSrc = strings.TrimSuffix(exprSrc, "!s")
			exprSrc = strings.TrimSuffix(exprSrc, "!a")
			lx := lexer.New(exprSrc)
			toks, errs := lx.Scan()
			if len(errs) > 0 {
				return nil, newSyntaxError(tok, "invalid f-string expression")
			}
			sub := New(toks)
			e, err := sub.expression()
			if err != nil {
				return nil, err
			}
			f.Parts = append(f.Parts, ast.FStringPart{Expr: e, Spec: spec})
			i = j + 1
			continue
		}
		text.WriteByte(c)
		i++
	}
	if text.Len() > 0 {
		f.Parts = append(f.Parts, ast.FStringPart{Text: text.String()})
	}
	return f, nil
}
