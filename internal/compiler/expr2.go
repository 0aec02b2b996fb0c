package compiler

import (
	"github.com/pyvm/pyvm/internal/ast"
	"github.com/pyvm/pyvm/internal/values"
)

func (c *Compiler) compileBinary(s *scope, n *ast.Binary) error {
	if err := c.compileExpr(s, n.Left); err != nil {
		return err
	}
	if err := c.compileExpr(s, n.Right); err != nil {
		return err
	}
	op, ok := binOpSymbols[n.Op]
	if !ok {
		return CompileError{Line: n.Line, Message: "unknown binary operator " + n.Op}
	}
	s.b.emit(OP_BINARY_OP, int(op))
	return nil
}

func (c *Compiler) compileUnary(s *scope, n *ast.Unary) error {
	if n.Op == "not" {
		if err := c.compileExpr(s, n.Operand); err != nil {
			return err
		}
		s.b.emit(OP_UNARY_OP, int(UNARY_NOT))
		return nil
	}
	if err := c.compileExpr(s, n.Operand); err != nil {
		return err
	}
	var op UnaryOp
	switch n.Op {
	case "-":
		op = UNARY_NEG
	case "+":
		op = UNARY_POS
	case "~":
		op = UNARY_INVERT
	}
	s.b.emit(OP_UNARY_OP, int(op))
	return nil
}

// compileBoolOp lowers `and`/`or` chains to short-circuiting jumps:
// each intermediate value is duped and tested, popped only when the
// chain continues past it.
func (c *Compiler) compileBoolOp(s *scope, n *ast.BoolOp) error {
	end := s.b.newBlock()
	for i, v := range n.Values {
		if err := c.compileExpr(s, v); err != nil {
			return err
		}
		if i == len(n.Values)-1 {
			break
		}
		s.b.emit(OP_DUP)
		if n.Op == "or" {
			s.b.emitJump(OP_JUMP_IF_TRUE, end)
		} else {
			s.b.emitJump(OP_JUMP_IF_FALSE, end)
		}
		s.b.emit(OP_POP)
	}
	next := s.b.newBlock()
	s.b.fallTo(next)
	s.b.setCurrent(end)
	s.b.fallTo(next)
	s.b.setCurrent(next)
	return nil
}

func (c *Compiler) compileCompare(s *scope, n *ast.Compare) error {
	if len(n.Ops) == 1 {
		if err := c.compileExpr(s, n.Left); err != nil {
			return err
		}
		if err := c.compileExpr(s, n.Comparators[0]); err != nil {
			return err
		}
		s.b.emit(OP_COMPARE_OP, int(compareOpSymbols[n.Ops[0]]))
		return nil
	}
	// Chained comparison a < b < c evaluates each operand exactly once
	// and short-circuits to False as soon as one link fails, without
	// evaluating the remaining operands — mirrored here by keeping the
	// shared middle operand on the stack (DUP + ROT_THREE) across
	// links and using JUMP_IF_FALSE_OR_POP to bail out early.
	if err := c.compileExpr(s, n.Left); err != nil {
		return err
	}
	cleanup := s.b.newBlock() // lands here with [danglingDup, False] on an early exit
	for i, rhs := range n.Comparators {
		if err := c.compileExpr(s, rhs); err != nil {
			return err
		}
		last := i == len(n.Comparators)-1
		if !last {
			s.b.emit(OP_DUP)
			s.b.emit(OP_ROT_THREE)
		}
		s.b.emit(OP_COMPARE_OP, int(compareOpSymbols[n.Ops[i]]))
		if !last {
			s.b.emitJump(OP_JUMP_IF_FALSE_OR_POP, cleanup)
		}
	}
	next := s.b.newBlock()
	s.b.fallTo(next)
	s.b.setCurrent(cleanup)
	s.b.emit(OP_ROT_TWO)
	s.b.emit(OP_POP)
	s.b.emitJump(OP_JUMP, next)
	s.b.setCurrent(next)
	return nil
}

func (c *Compiler) compileTernary(s *scope, n *ast.Ternary) error {
	if err := c.compileExpr(s, n.Cond); err != nil {
		return err
	}
	elseBlk := s.b.newBlock()
	s.b.emitJump(OP_POP_JUMP_IF_FALSE, elseBlk)
	if err := c.compileExpr(s, n.Then); err != nil {
		return err
	}
	end := s.b.newBlock()
	s.b.emitJump(OP_JUMP, end)
	s.b.fallTo(elseBlk)
	s.b.setCurrent(elseBlk)
	if err := c.compileExpr(s, n.Else); err != nil {
		return err
	}
	s.b.fallTo(end)
	s.b.setCurrent(end)
	return nil
}

func (c *Compiler) compileCall(s *scope, n *ast.Call) error {
	if err := c.compileExpr(s, n.Func); err != nil {
		return err
	}
	posCount := 0
	hasKw := false
	for _, a := range n.Args {
		if a.Name != "" || a.DoubleStar || a.Star {
			hasKw = true
			continue
		}
	}
	if !hasKw {
		for _, a := range n.Args {
			if err := c.compileExpr(s, a.Value); err != nil {
				return err
			}
			if a.Star {
				s.b.emit(OP_LIST_EXTEND)
			}
			posCount++
		}
		s.b.emit(OP_CALL, posCount)
		return nil
	}
	// keyword/star-arg call: build (name, value) pairs for keyword
	// args into a map literal, and positional/star args into a list,
	// then let OP_CALL_KW assemble the final argument set at runtime.
	var positional []ast.Arg
	var keyword []ast.Arg
	for _, a := range n.Args {
		if a.Name != "" || a.DoubleStar {
			keyword = append(keyword, a)
		} else {
			positional = append(positional, a)
		}
	}
	s.b.emit(OP_BUILD_LIST, 0)
	for _, a := range positional {
		if err := c.compileExpr(s, a.Value); err != nil {
			return err
		}
		if a.Star {
			s.b.emit(OP_LIST_EXTEND)
		} else {
			s.b.emit(OP_LIST_APPEND, 1)
		}
	}
	s.b.emit(OP_BUILD_MAP, 0)
	for _, a := range keyword {
		if a.DoubleStar {
			if err := c.compileExpr(s, a.Value); err != nil {
				return err
			}
			s.b.emit(OP_DICT_MERGE)
			continue
		}
		s.b.emit(OP_CONSTANT, s.addObjConstant(values.NewStr(a.Name)))
		if err := c.compileExpr(s, a.Value); err != nil {
			return err
		}
		s.b.emit(OP_MAP_ADD, 1)
	}
	s.b.emit(OP_CALL_KW, 0)
	return nil
}

func (c *Compiler) compileDictLit(s *scope, n *ast.DictLit) error {
	s.b.emit(OP_BUILD_MAP, 0)
	for _, entry := range n.Entries {
		if entry.Key == nil {
			if err := c.compileExpr(s, entry.Value); err != nil {
				return err
			}
			s.b.emit(OP_DICT_MERGE)
			continue
		}
		if err := c.compileExpr(s, entry.Key); err != nil {
			return err
		}
		if err := c.compileExpr(s, entry.Value); err != nil {
			return err
		}
		s.b.emit(OP_MAP_ADD, 1)
	}
	return nil
}

type compKind int

const (
	compList compKind = iota
	compSet
	compDict
)

// compileComprehension lowers list/set/dict comprehensions and
// generator expressions into an explicit accumulator loop, compiled
// inline in the enclosing scope rather than as a separate function
// object (a deliberate simplification from CPython's own-frame
// comprehensions).
func (c *Compiler) compileComprehension(s *scope, kind compKind, elt, value ast.Expr, gens []ast.Comprehension) error {
	switch kind {
	case compList:
		s.b.emit(OP_BUILD_LIST, 0)
	case compSet:
		s.b.emit(OP_BUILD_SET, 0)
	case compDict:
		s.b.emit(OP_BUILD_MAP, 0)
	}
	return c.compileCompClause(s, kind, elt, value, gens, 0)
}

func (c *Compiler) compileCompClause(s *scope, kind compKind, elt, value ast.Expr, gens []ast.Comprehension, depth int) error {
	if depth == len(gens) {
		switch kind {
		case compList:
			if err := c.compileExpr(s, elt); err != nil {
				return err
			}
			s.b.emit(OP_LIST_APPEND, 1)
		case compSet:
			if err := c.compileExpr(s, elt); err != nil {
				return err
			}
			s.b.emit(OP_SET_ADD, 1)
		case compDict:
			if err := c.compileExpr(s, elt); err != nil {
				return err
			}
			if err := c.compileExpr(s, value); err != nil {
				return err
			}
			s.b.emit(OP_MAP_ADD, 1)
		}
		return nil
	}
	gen := gens[depth]
	if err := c.compileExpr(s, gen.Iter); err != nil {
		return err
	}
	s.b.emit(OP_GET_ITER)
	loopStart := s.b.newBlock()
	bodyBlk := s.b.newBlock()
	endBlk := s.b.newBlock()
	s.b.fallTo(loopStart)
	s.b.setCurrent(loopStart)
	s.b.emitJump(OP_FOR_ITER, endBlk)
	s.b.fallTo(bodyBlk)
	s.b.setCurrent(bodyBlk)
	if err := c.compileAssignTarget(s, gen.Target); err != nil {
		return err
	}
	skip := loopStart
	for _, cond := range gen.Ifs {
		if err := c.compileExpr(s, cond); err != nil {
			return err
		}
		s.b.emitJump(OP_POP_JUMP_IF_FALSE, skip)
	}
	if err := c.compileCompClause(s, kind, elt, value, gens, depth+1); err != nil {
		return err
	}
	s.b.emitJump(OP_JUMP, loopStart)
	next := s.b.newBlock()
	s.b.fallTo(next)
	s.b.setCurrent(endBlk)
	s.b.fallTo(next)
	s.b.setCurrent(next)
	return nil
}

func (c *Compiler) compileLambda(s *scope, n *ast.Lambda) error {
	fd := &ast.FunctionDef{Pos: n.Pos, Name: "<lambda>", Params: n.Params, Body: []ast.Stmt{&ast.Return{Pos: n.Pos, Value: n.Body}}}
	return c.compileFunctionValue(s, fd)
}

func (c *Compiler) compileFString(s *scope, n *ast.FString) error {
	count := 0
	for _, part := range n.Parts {
		if part.Expr == nil {
			s.b.emit(OP_CONSTANT, s.addObjConstant(values.NewStr(part.Text)))
			count++
			continue
		}
		if err := c.compileExpr(s, part.Expr); err != nil {
			return err
		}
		s.b.emit(OP_FORMAT_VALUE, s.addObjConstant(values.NewStr(part.Spec)))
		count++
	}
	if count == 0 {
		s.b.emit(OP_CONSTANT, s.addObjConstant(values.NewStr("")))
		count = 1
	}
	s.b.emit(OP_BUILD_STRING, count)
	return nil
}

func (c *Compiler) compileYield(s *scope, n *ast.YieldExpr) error {
	s.code.IsGenerator = true
	if n.From {
		if err := c.compileExpr(s, n.Value); err != nil {
			return err
		}
		s.b.emit(OP_GET_ITER)
		s.b.emit(OP_YIELD_FROM)
		return nil
	}
	if err := c.compileOptional(s, n.Value); err != nil {
		return err
	}
	s.b.emit(OP_YIELD_VALUE)
	return nil
}
