package compiler

import (
	"github.com/pyvm/pyvm/internal/ast"
)

func (c *Compiler) compileStmts(s *scope, stmts []ast.Stmt) error {
	for _, st := range stmts {
		if err := c.compileStmt(s, st); err != nil {
			return err
		}
	}
	return nil
}

func (c *Compiler) compileStmt(s *scope, stmt ast.Stmt) error {
	s.b.emitLine(stmt.Position().Line)
	switch n := stmt.(type) {
	case *ast.ExprStmt:
		if err := c.compileExpr(s, n.X); err != nil {
			return err
		}
		s.b.emit(OP_POP)
	case *ast.Assign:
		if err := c.compileExpr(s, n.Value); err != nil {
			return err
		}
		for i, t := range n.Targets {
			if i < len(n.Targets)-1 {
				s.b.emit(OP_DUP)
			}
			if err := c.compileAssignTarget(s, t); err != nil {
				return err
			}
		}
	case *ast.AugAssign:
		return c.compileAugAssign(s, n)
	case *ast.Assert:
		return c.compileAssert(s, n)
	case *ast.Raise:
		return c.compileRaise(s, n)
	case *ast.Return:
		if s.isModule || s.isClass {
			return CompileError{Line: n.Line, Message: "'return' outside function"}
		}
		if n.Value != nil {
			if err := c.compileExpr(s, n.Value); err != nil {
				return err
			}
		} else {
			s.b.emit(OP_LOAD_CONST_NONE)
		}
		s.b.emit(OP_RETURN_VALUE)
	case *ast.Pass:
	case *ast.Break:
		if len(s.loops) == 0 {
			return CompileError{Line: n.Line, Message: "'break' outside loop"}
		}
		s.b.emitJump(OP_JUMP, s.loops[len(s.loops)-1].breakTarget)
		s.b.setCurrent(s.b.newBlock())
	case *ast.Continue:
		if len(s.loops) == 0 {
			return CompileError{Line: n.Line, Message: "'continue' not properly in loop"}
		}
		s.b.emitJump(OP_JUMP, s.loops[len(s.loops)-1].continueTarget)
		s.b.setCurrent(s.b.newBlock())
	case *ast.Global:
		for _, name := range n.Names {
			s.globals[name] = true
		}
	case *ast.Nonlocal:
		// Force resolution now so the owning ancestor scope is
		// promoted to a cell even if this body never reads the name.
		for _, name := range n.Names {
			if !s.enclosingBinds(name) {
				return CompileError{Line: n.Line, Message: "no binding for nonlocal '" + name + "' found"}
			}
			s.resolveFreeFromParent(name)
		}
	case *ast.Delete:
		for _, t := range n.Targets {
			if err := c.compileDelete(s, t); err != nil {
				return err
			}
		}
	case *ast.Import:
		for _, alias := range n.Names {
			s.b.emit(OP_IMPORT_NAME, s.nameConst(alias.Name))
			name := alias.Alias
			if name == "" {
				name = firstDotted(alias.Name)
			}
			c.emitStoreName(s, name)
		}
	case *ast.ImportFrom:
		s.b.emit(OP_IMPORT_NAME, s.nameConst(n.Module))
		if n.Star {
			s.b.emit(OP_IMPORT_STAR)
			s.b.emit(OP_POP)
			return nil
		}
		for _, alias := range n.Names {
			s.b.emit(OP_DUP)
			s.b.emit(OP_IMPORT_FROM, s.nameConst(alias.Name))
			name := alias.Alias
			if name == "" {
				name = alias.Name
			}
			c.emitStoreName(s, name)
		}
		s.b.emit(OP_POP)
	case *ast.If:
		return c.compileIf(s, n)
	case *ast.While:
		return c.compileWhile(s, n)
	case *ast.For:
		return c.compileFor(s, n)
	case *ast.Try:
		return c.compileTry(s, n)
	case *ast.With:
		return c.compileWith(s, n)
	case *ast.Match:
		return c.compileMatch(s, n)
	case *ast.FunctionDef:
		return c.compileFunctionDefStmt(s, n)
	case *ast.ClassDef:
		return c.compileClassDef(s, n)
	default:
		return CompileError{Line: stmt.Position().Line, Message: "unsupported statement"}
	}
	return nil
}

// compileAssignTarget emits the store sequence for one assignment
// target, given the value already on the stack (consuming it).
func (c *Compiler) compileAssignTarget(s *scope, target ast.Expr) error {
	switch t := target.(type) {
	case *ast.Ident:
		c.emitStoreName(s, t.Name)
	case *ast.Attribute:
		if err := c.compileExpr(s, t.Value); err != nil {
			return err
		}
		s.b.emit(OP_ROT_TWO)
		s.b.emit(OP_STORE_ATTR, s.nameConst(t.Attr))
	case *ast.Subscript:
		if err := c.compileExpr(s, t.Value); err != nil {
			return err
		}
		if err := c.compileExpr(s, t.Index); err != nil {
			return err
		}
		s.b.emit(OP_ROT_THREE)
		s.b.emit(OP_STORE_SUBSCR)
	case *ast.TupleLit:
		return c.compileUnpack(s, t.Elts)
	case *ast.ListLit:
		return c.compileUnpack(s, t.Elts)
	case *ast.Starred:
		return c.compileAssignTarget(s, t.Value)
	default:
		return CompileError{Line: target.Position().Line, Message: "invalid assignment target"}
	}
	return nil
}

func (c *Compiler) compileUnpack(s *scope, elts []ast.Expr) error {
	starIdx := -1
	for i, el := range elts {
		if _, ok := el.(*ast.Starred); ok {
			starIdx = i
		}
	}
	operand := len(elts)
	if starIdx >= 0 {
		operand = starIdx | (1 << 15) // high bit flags "has a starred catch-all"; low bits: index of the starred target
	}
	s.b.emit(OP_UNPACK_SEQUENCE, operand)
	for _, el := range elts {
		if err := c.compileAssignTarget(s, el); err != nil {
			return err
		}
	}
	return nil
}

func (c *Compiler) compileAugAssign(s *scope, n *ast.AugAssign) error {
	op := binOpSymbols[n.Op]
	switch t := n.Target.(type) {
	case *ast.Ident:
		c.emitLoadName(s, t.Name)
		if err := c.compileExpr(s, n.Value); err != nil {
			return err
		}
		s.b.emit(OP_INPLACE_OP, int(op))
		c.emitStoreName(s, t.Name)
	case *ast.Attribute:
		if err := c.compileExpr(s, t.Value); err != nil {
			return err
		}
		s.b.emit(OP_DUP)
		s.b.emit(OP_LOAD_ATTR, s.nameConst(t.Attr))
		if err := c.compileExpr(s, n.Value); err != nil {
			return err
		}
		s.b.emit(OP_INPLACE_OP, int(op))
		s.b.emit(OP_ROT_TWO)
		s.b.emit(OP_STORE_ATTR, s.nameConst(t.Attr))
	case *ast.Subscript:
		if err := c.compileExpr(s, t.Value); err != nil {
			return err
		}
		if err := c.compileExpr(s, t.Index); err != nil {
			return err
		}
		s.b.emit(OP_DUP)
		s.b.emit(OP_ROT_THREE)
		s.b.emit(OP_DUP)
		s.b.emit(OP_ROT_THREE)
		s.b.emit(OP_BINARY_SUBSCR)
		if err := c.compileExpr(s, n.Value); err != nil {
			return err
		}
		s.b.emit(OP_INPLACE_OP, int(op))
		s.b.emit(OP_ROT_THREE)
		s.b.emit(OP_STORE_SUBSCR)
	default:
		return CompileError{Line: n.Line, Message: "invalid augmented assignment target"}
	}
	return nil
}

func (c *Compiler) compileAssert(s *scope, n *ast.Assert) error {
	if err := c.compileExpr(s, n.Cond); err != nil {
		return err
	}
	// OP_JUMP_IF_TRUE always consumes the tested value, whichever way
	// it branches, so no explicit POP is needed on either path.
	okBlk := s.b.newBlock()
	s.b.emitJump(OP_JUMP_IF_TRUE, okBlk)
	s.b.emit(OP_LOAD_BUILTIN, s.nameConst("AssertionError"))
	argc := 0
	if n.Msg != nil {
		if err := c.compileExpr(s, n.Msg); err != nil {
			return err
		}
		argc = 1
	}
	s.b.emit(OP_CALL, argc)
	s.b.emit(OP_RAISE, 1)
	s.b.setCurrent(okBlk)
	return nil
}

func (c *Compiler) compileRaise(s *scope, n *ast.Raise) error {
	if n.Exc == nil {
		s.b.emit(OP_RAISE, 0)
		return nil
	}
	if err := c.compileExpr(s, n.Exc); err != nil {
		return err
	}
	if n.From != nil {
		if err := c.compileExpr(s, n.From); err != nil {
			return err
		}
		s.b.emit(OP_RAISE, 2)
		return nil
	}
	s.b.emit(OP_RAISE, 1)
	return nil
}

func (c *Compiler) compileDelete(s *scope, target ast.Expr) error {
	switch t := target.(type) {
	case *ast.Ident:
		s.b.emit(OP_DELETE_NAME, s.nameConst(t.Name))
	case *ast.Attribute:
		if err := c.compileExpr(s, t.Value); err != nil {
			return err
		}
		s.b.emit(OP_DELETE_ATTR, s.nameConst(t.Attr))
	case *ast.Subscript:
		if err := c.compileExpr(s, t.Value); err != nil {
			return err
		}
		if err := c.compileExpr(s, t.Index); err != nil {
			return err
		}
		s.b.emit(OP_DELETE_SUBSCR)
	default:
		return CompileError{Line: target.Position().Line, Message: "invalid delete target"}
	}
	return nil
}

func (c *Compiler) compileIf(s *scope, n *ast.If) error {
	if err := c.compileExpr(s, n.Cond); err != nil {
		return err
	}
	thenBlk := s.b.newBlock()
	elseBlk := s.b.newBlock()
	s.b.emitJump(OP_POP_JUMP_IF_FALSE, elseBlk)
	s.b.fallTo(thenBlk)
	s.b.setCurrent(thenBlk)
	if err := c.compileStmts(s, n.Then); err != nil {
		return err
	}
	end := s.b.newBlock()
	s.b.emitJump(OP_JUMP, end)
	s.b.setCurrent(elseBlk)
	if err := c.compileStmts(s, n.Else); err != nil {
		return err
	}
	s.b.fallTo(end)
	s.b.setCurrent(end)
	return nil
}

func (c *Compiler) compileWhile(s *scope, n *ast.While) error {
	condBlk := s.b.newBlock()
	bodyBlk := s.b.newBlock()
	elseBlk := s.b.newBlock()
	end := s.b.newBlock()
	s.b.fallTo(condBlk)
	s.b.setCurrent(condBlk)
	if err := c.compileExpr(s, n.Cond); err != nil {
		return err
	}
	s.b.emitJump(OP_POP_JUMP_IF_FALSE, elseBlk)
	s.b.fallTo(bodyBlk)
	s.b.setCurrent(bodyBlk)
	s.loops = append(s.loops, loopCtx{breakTarget: end, continueTarget: condBlk})
	if err := c.compileStmts(s, n.Body); err != nil {
		return err
	}
	s.loops = s.loops[:len(s.loops)-1]
	s.b.emitJump(OP_JUMP, condBlk)
	s.b.setCurrent(elseBlk)
	if err := c.compileStmts(s, n.Else); err != nil {
		return err
	}
	s.b.fallTo(end)
	s.b.setCurrent(end)
	return nil
}

func (c *Compiler) compileFor(s *scope, n *ast.For) error {
	if err := c.compileExpr(s, n.Iter); err != nil {
		return err
	}
	s.b.emit(OP_GET_ITER)
	loopBlk := s.b.newBlock()
	bodyBlk := s.b.newBlock()
	elseBlk := s.b.newBlock()
	end := s.b.newBlock()
	s.b.fallTo(loopBlk)
	s.b.setCurrent(loopBlk)
	s.b.emitJump(OP_FOR_ITER, elseBlk)
	s.b.fallTo(bodyBlk)
	s.b.setCurrent(bodyBlk)
	if err := c.compileAssignTarget(s, n.Target); err != nil {
		return err
	}
	s.loops = append(s.loops, loopCtx{breakTarget: end, continueTarget: loopBlk})
	if err := c.compileStmts(s, n.Body); err != nil {
		return err
	}
	s.loops = s.loops[:len(s.loops)-1]
	s.b.emitJump(OP_JUMP, loopBlk)
	s.b.setCurrent(elseBlk)
	if err := c.compileStmts(s, n.Else); err != nil {
		return err
	}
	s.b.fallTo(end)
	s.b.setCurrent(end)
	return nil
}

// compileTry lowers try/except/else/finally using SETUP_FINALLY to
// register a handler offset on the VM's block stack; the handler
// block receives the raised exception on the stack and dispatches to
// the matching `except` clause with CHECK_EXC_MATCH.
func (c *Compiler) compileTry(s *scope, n *ast.Try) error {
	handlerBlk := s.b.newBlock()
	bodyBlk := s.b.newBlock()
	s.b.emitJump(OP_SETUP_FINALLY, handlerBlk)
	s.b.fallTo(bodyBlk)
	s.b.setCurrent(bodyBlk)
	if err := c.compileStmts(s, n.Body); err != nil {
		return err
	}
	s.b.emit(OP_POP_BLOCK)
	if err := c.compileStmts(s, n.Else); err != nil {
		return err
	}
	end := s.b.newBlock()
	if len(n.Finally) > 0 {
		if err := c.compileStmts(s, n.Finally); err != nil {
			return err
		}
	}
	s.b.emitJump(OP_JUMP, end)

	s.b.setCurrent(handlerBlk)
	for _, h := range n.Handlers {
		nextBlk := s.b.newBlock()
		if h.Type != nil {
			if err := c.compileExpr(s, h.Type); err != nil {
				return err
			}
			s.b.emit(OP_CHECK_EXC_MATCH)
			s.b.emitJump(OP_POP_JUMP_IF_FALSE, nextBlk)
		}
		matchBlk := s.b.newBlock()
		s.b.fallTo(matchBlk)
		s.b.setCurrent(matchBlk)
		if h.Name != "" {
			c.emitStoreName(s, h.Name)
		} else {
			s.b.emit(OP_POP)
		}
		if err := c.compileStmts(s, h.Body); err != nil {
			return err
		}
		s.b.emit(OP_POP_EXCEPT)
		if len(n.Finally) > 0 {
			if err := c.compileStmts(s, n.Finally); err != nil {
				return err
			}
		}
		s.b.emitJump(OP_JUMP, end)
		s.b.setCurrent(nextBlk)
	}
	// No handler matched: run finally (if any), then re-raise.
	if len(n.Finally) > 0 {
		if err := c.compileStmts(s, n.Finally); err != nil {
			return err
		}
	}
	s.b.emit(OP_RERAISE)

	s.b.setCurrent(end)
	return nil
}

func (c *Compiler) compileWith(s *scope, n *ast.With) error {
	return c.compileWithItems(s, n.Items, n.Body)
}

func (c *Compiler) compileWithItems(s *scope, items []ast.WithItem, body []ast.Stmt) error {
	if len(items) == 0 {
		return c.compileStmts(s, body)
	}
	item := items[0]
	if err := c.compileExpr(s, item.Ctx); err != nil {
		return err
	}
	handlerBlk := s.b.newBlock()
	bodyBlk := s.b.newBlock()
	s.b.emitJump(OP_SETUP_WITH, handlerBlk)
	s.b.fallTo(bodyBlk)
	s.b.setCurrent(bodyBlk)
	if item.As != nil {
		s.b.emit(OP_DUP)
		if err := c.compileAssignTarget(s, item.As); err != nil {
			return err
		}
	}
	if err := c.compileWithItems(s, items[1:], body); err != nil {
		return err
	}
	s.b.emit(OP_POP_BLOCK)
	s.b.emit(OP_WITH_EXIT, 0)
	end := s.b.newBlock()
	s.b.emitJump(OP_JUMP, end)
	s.b.setCurrent(handlerBlk)
	s.b.emit(OP_WITH_EXIT, 1)
	s.b.emit(OP_RERAISE)
	s.b.emitJump(OP_JUMP, end)
	s.b.setCurrent(end)
	return nil
}

func (c *Compiler) compileFunctionDefStmt(s *scope, n *ast.FunctionDef) error {
	if err := c.compileFunctionValue(s, n); err != nil {
		return err
	}
	for _, d := range n.Decorators {
		if err := c.compileExpr(s, d.Expr); err != nil {
			return err
		}
		s.b.emit(OP_ROT_TWO)
		s.b.emit(OP_CALL, 1)
	}
	c.emitStoreName(s, n.Name)
	return nil
}

// compileFunctionValue compiles a function body into its own
// CodeObject and emits the instructions that build a closure value
// from it, leaving the resulting function on the stack.
func (c *Compiler) compileFunctionValue(parent *scope, n *ast.FunctionDef) error {
	child := newScope(parent, n.Name, false, false)
	info := scanScope(n.Body)
	for name := range info.globals {
		child.globals[name] = true
		child.code.Globals = append(child.code.Globals, name)
	}
	for _, p := range n.Params {
		child.declareLocal(p.Name)
	}
	nested := nestedReferences(n.Body)
	for name := range info.assigned {
		if info.globals[name] || info.nonlocals[name] {
			continue
		}
		if nested[name] {
			child.declareCell(name)
		} else {
			child.declareLocal(name)
		}
	}

	if err := c.compileStmts(child, n.Body); err != nil {
		return err
	}
	child.b.emit(OP_LOAD_CONST_NONE)
	child.b.emit(OP_RETURN_VALUE)
	ins, lines := child.b.linearize()
	child.code.Instructions = ins
	child.code.Lines = lines
	child.code.NumLocals = len(child.localOrd)

	for _, p := range n.Params {
		child.code.Params = append(child.code.Params, ParamSpec{
			Name: p.Name, HasDefault: p.Default != nil, Star: p.Star, DoubleStar: p.DoubleStar,
		})
	}

	for _, p := range n.Params {
		if p.Default != nil {
			if err := c.compileExpr(parent, p.Default); err != nil {
				return err
			}
		}
	}
	ndefaults := 0
	for _, p := range n.Params {
		if p.Default != nil {
			ndefaults++
		}
	}
	parent.b.emit(OP_BUILD_TUPLE, ndefaults)

	for _, freeName := range child.code.FreeNames {
		parent.emitLoadCellRef(freeName)
	}
	parent.b.emit(OP_BUILD_TUPLE, len(child.code.FreeNames))

	parent.b.emit(OP_CONSTANT, parent.addObjConstant(child.code))
	parent.b.emit(OP_MAKE_FUNCTION, parent.nameConst(n.Name))
	return nil
}

// emitLoadCellRef pushes the *values.Cell this scope (or an ancestor)
// already owns for name, used to assemble a closure's captured-cell
// tuple — the name is guaranteed to already resolve to a cell or free
// slot because the child scope declared it as a free variable.
func (s *scope) emitLoadCellRef(name string) {
	if idx, ok := s.cellIndex[name]; ok {
		s.b.emit(OP_LOAD_DEREF, idx)
		return
	}
	if idx, ok := s.freeIndex[name]; ok {
		s.b.emit(OP_LOAD_DEREF, len(s.code.CellNames)+idx)
		return
	}
	// Not yet referenced in this scope: resolve it, which promotes the
	// right ancestor to own the cell and threads a free reference here.
	idx := s.resolveFreeFromParent(name)
	s.b.emit(OP_LOAD_DEREF, len(s.code.CellNames)+idx)
}

func (c *Compiler) compileClassDef(s *scope, n *ast.ClassDef) error {
	child := newScope(s, n.Name, false, true)
	if err := c.compileStmts(child, n.Body); err != nil {
		return err
	}
	child.b.emit(OP_LOAD_CONST_NONE)
	child.b.emit(OP_RETURN_VALUE)
	ins, lines := child.b.linearize()
	child.code.Instructions = ins
	child.code.Lines = lines

	s.b.emit(OP_CONSTANT, s.addObjConstant(child.code))
	for _, base := range n.Bases {
		if err := c.compileExpr(s, base); err != nil {
			return err
		}
	}
	s.b.emit(OP_BUILD_TUPLE, len(n.Bases))
	s.b.emit(OP_MAKE_CLASS, s.nameConst(n.Name))
	for _, d := range n.Decorators {
		if err := c.compileExpr(s, d.Expr); err != nil {
			return err
		}
		s.b.emit(OP_ROT_TWO)
		s.b.emit(OP_CALL, 1)
	}
	c.emitStoreName(s, n.Name)
	return nil
}
