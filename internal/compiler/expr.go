package compiler

import (
	"math/big"

	"github.com/pyvm/pyvm/internal/ast"
	"github.com/pyvm/pyvm/internal/values"
)

func (c *Compiler) compileExpr(s *scope, e ast.Expr) error {
	switch n := e.(type) {
	case *ast.NumberLit:
		var v values.Value
		switch lit := n.Value.(type) {
		case float64:
			v = values.NewFloat(lit)
		case *big.Int:
			v = values.NewBigInt(lit)
		}
		s.b.emit(OP_CONSTANT, s.addObjConstant(v))
	case *ast.StringLit:
		s.b.emit(OP_CONSTANT, s.addObjConstant(values.NewStr(n.Value)))
	case *ast.BoolLit:
		s.b.emit(OP_CONSTANT, s.addObjConstant(values.NewBool(n.Value)))
	case *ast.NoneLit:
		s.b.emit(OP_LOAD_CONST_NONE)
	case *ast.Ident:
		c.emitLoadName(s, n.Name)
	case *ast.Binary:
		return c.compileBinary(s, n)
	case *ast.Unary:
		return c.compileUnary(s, n)
	case *ast.BoolOp:
		return c.compileBoolOp(s, n)
	case *ast.Compare:
		return c.compileCompare(s, n)
	case *ast.Ternary:
		return c.compileTernary(s, n)
	case *ast.Call:
		return c.compileCall(s, n)
	case *ast.Attribute:
		if err := c.compileExpr(s, n.Value); err != nil {
			return err
		}
		s.b.emit(OP_LOAD_ATTR, s.nameConst(n.Attr))
	case *ast.Subscript:
		if err := c.compileExpr(s, n.Value); err != nil {
			return err
		}
		if err := c.compileExpr(s, n.Index); err != nil {
			return err
		}
		s.b.emit(OP_BINARY_SUBSCR)
	case *ast.Slice:
		if err := c.compileOptional(s, n.Start); err != nil {
			return err
		}
		if err := c.compileOptional(s, n.End); err != nil {
			return err
		}
		if err := c.compileOptional(s, n.Step); err != nil {
			return err
		}
		s.b.emit(OP_BUILD_SLICE)
	case *ast.ListLit:
		for _, el := range n.Elts {
			if err := c.compileExpr(s, el); err != nil {
				return err
			}
		}
		s.b.emit(OP_BUILD_LIST, len(n.Elts))
	case *ast.TupleLit:
		for _, el := range n.Elts {
			if err := c.compileExpr(s, el); err != nil {
				return err
			}
		}
		s.b.emit(OP_BUILD_TUPLE, len(n.Elts))
	case *ast.SetLit:
		for _, el := range n.Elts {
			if err := c.compileExpr(s, el); err != nil {
				return err
			}
		}
		s.b.emit(OP_BUILD_SET, len(n.Elts))
	case *ast.DictLit:
		return c.compileDictLit(s, n)
	case *ast.ListComp:
		return c.compileComprehension(s, compList, n.Elt, nil, n.Generators)
	case *ast.SetComp:
		return c.compileComprehension(s, compSet, n.Elt, nil, n.Generators)
	case *ast.DictComp:
		return c.compileComprehension(s, compDict, n.Key, n.Value, n.Generators)
	case *ast.GeneratorExp:
		return c.compileComprehension(s, compList, n.Elt, nil, n.Generators)
	case *ast.Lambda:
		return c.compileLambda(s, n)
	case *ast.Starred:
		return c.compileExpr(s, n.Value)
	case *ast.FString:
		return c.compileFString(s, n)
	case *ast.NamedExpr:
		if err := c.compileExpr(s, n.Value); err != nil {
			return err
		}
		s.b.emit(OP_DUP)
		c.emitStoreName(s, n.Name)
	case *ast.YieldExpr:
		return c.compileYield(s, n)
	default:
		return CompileError{Line: e.Position().Line, Message: "unsupported expression"}
	}
	return nil
}

func (c *Compiler) compileOptional(s *scope, e ast.Expr) error {
	if e == nil {
		s.b.emit(OP_LOAD_CONST_NONE)
		return nil
	}
	return c.compileExpr(s, e)
}

func (c *Compiler) emitLoadName(s *scope, name string) {
	kind, idx := s.resolve(name, false, false)
	switch kind {
	case nameLocal:
		s.b.emit(OP_LOAD_FAST, idx)
	case nameCell, nameFree:
		s.b.emit(OP_LOAD_DEREF, derefOperand(s, kind, idx))
	default:
		s.b.emit(OP_LOAD_NAME, idx)
	}
}

func (c *Compiler) emitStoreName(s *scope, name string) {
	kind, idx := s.resolveForStore(name)
	switch kind {
	case nameLocal:
		s.b.emit(OP_STORE_FAST, idx)
	case nameCell, nameFree:
		s.b.emit(OP_STORE_DEREF, derefOperand(s, kind, idx))
	default:
		s.b.emit(OP_STORE_NAME, idx)
	}
}

// resolveForStore is like resolve but treats an unseen name as a new
// local (module scope: a global) rather than an implicit closure read,
// matching Python's "assignment makes it local unless declared
// otherwise" rule.
func (s *scope) resolveForStore(name string) (nameKind, int) {
	if s.globals[name] || s.isModule || s.isClass {
		return nameGlobal, s.nameConst(name)
	}
	if idx, ok := s.cellIndex[name]; ok {
		return nameCell, idx
	}
	if idx, ok := s.freeIndex[name]; ok {
		return nameFree, idx
	}
	if idx, ok := s.locals[name]; ok {
		return nameLocal, idx
	}
	idx := s.declareLocal(name)
	return nameLocal, idx
}

// derefOperand encodes a cell/free index into OP_LOAD_DEREF/
// OP_STORE_DEREF's single operand space: cell vars occupy
// [0, len(CellNames)) and free vars are shifted past them.
func derefOperand(s *scope, kind nameKind, idx int) int {
	if kind == nameCell {
		return idx
	}
	return len(s.code.CellNames) + idx
}
