package compiler

import (
	"fmt"

	"github.com/pyvm/pyvm/internal/ast"
)

// CompileError is a static (tier-1) compilation failure: an undeclared
// nonlocal target, `return` outside a function, and similar checks
// that the compiler, not the parser, is positioned to catch.
type CompileError struct {
	Line    int
	Message string
}

func (e CompileError) Error() string {
	return fmt.Sprintf("SyntaxError: %s (line %d)", e.Message, e.Line)
}

// loopCtx records the jump targets `break`/`continue` resolve to
// inside the innermost enclosing loop.
type loopCtx struct {
	breakTarget    int
	continueTarget int
}

// scope is one function's (or the module's, or a class body's)
// compilation context: its basic-block builder, its name tables, and
// a pointer to the lexically enclosing scope for free-variable
// resolution.
type scope struct {
	parent    *scope
	b         *builder
	code      *CodeObject
	isModule  bool
	isClass   bool
	locals    map[string]int // name -> fast-local slot
	localOrd  []string
	cellIndex map[string]int // name -> index in CodeObject.CellNames
	freeIndex map[string]int // name -> index in CodeObject.FreeNames
	globals   map[string]bool
	constIdx  map[any]int
	nameIdx   map[string]int
	loops     []loopCtx
}

func newScope(parent *scope, name string, isModule, isClass bool) *scope {
	return &scope{
		parent:    parent,
		b:         newBuilder(),
		code:      &CodeObject{Name: name},
		isModule:  isModule,
		isClass:   isClass,
		locals:    map[string]int{},
		cellIndex: map[string]int{},
		freeIndex: map[string]int{},
		globals:   map[string]bool{},
		constIdx:  map[any]int{},
		nameIdx:   map[string]int{},
	}
}

func (s *scope) addConstant(v any) int {
	if idx, ok := s.constIdx[v]; ok {
		return idx
	}
	idx := len(s.code.ConstantsPool)
	s.code.ConstantsPool = append(s.code.ConstantsPool, v)
	s.constIdx[v] = idx
	return idx
}

// addObjConstant appends a constant that can't be used as a Go map
// key (e.g. a *CodeObject), skipping dedup.
func (s *scope) addObjConstant(v any) int {
	idx := len(s.code.ConstantsPool)
	s.code.ConstantsPool = append(s.code.ConstantsPool, v)
	return idx
}

func (s *scope) nameConst(name string) int {
	if idx, ok := s.nameIdx[name]; ok {
		return idx
	}
	idx := len(s.code.NameConstants)
	s.code.NameConstants = append(s.code.NameConstants, name)
	s.nameIdx[name] = idx
	return idx
}

func (s *scope) declareLocal(name string) int {
	if idx, ok := s.locals[name]; ok {
		return idx
	}
	idx := len(s.localOrd)
	s.locals[name] = idx
	s.localOrd = append(s.localOrd, name)
	return idx
}

func (s *scope) declareCell(name string) int {
	if idx, ok := s.cellIndex[name]; ok {
		return idx
	}
	idx := len(s.code.CellNames)
	s.code.CellNames = append(s.code.CellNames, name)
	s.cellIndex[name] = idx
	return idx
}

func (s *scope) declareFree(name string) int {
	if idx, ok := s.freeIndex[name]; ok {
		return idx
	}
	idx := len(s.code.FreeNames)
	s.code.FreeNames = append(s.code.FreeNames, name)
	s.freeIndex[name] = idx
	return idx
}

// Compiler drives AST-to-bytecode compilation for a whole module.
type Compiler struct {
	top *scope
}

func New() *Compiler { return &Compiler{} }

// Compile lowers a parsed module into its top-level CodeObject.
func (c *Compiler) Compile(prog *ast.Program, filename string) (*CodeObject, error) {
	s := newScope(nil, "<module>", true, false)
	s.code.Filename = filename
	c.top = s

	info := scanScope(prog.Stmts)
	nested := nestedReferences(prog.Stmts)
	for name := range info.assigned {
		if nested[name] {
			s.declareCell(name)
		}
	}

	// A trailing expression statement is left on the stack as the
	// module's return value instead of being popped.
	stmts := prog.Stmts
	var tail *ast.ExprStmt
	if n := len(stmts); n > 0 {
		if es, ok := stmts[n-1].(*ast.ExprStmt); ok {
			tail, stmts = es, stmts[:n-1]
		}
	}
	if err := c.compileStmts(s, stmts); err != nil {
		return nil, err
	}
	if tail != nil {
		s.b.emitLine(tail.Position().Line)
		if err := c.compileExpr(s, tail.X); err != nil {
			return nil, err
		}
	} else {
		s.b.emit(OP_LOAD_CONST_NONE)
	}
	s.b.emit(OP_RETURN_VALUE)
	ins, lines := s.b.linearize()
	s.code.Instructions = ins
	s.code.Lines = lines
	s.code.NumLocals = len(s.localOrd)
	return s.code, nil
}

// resolveName decides how an identifier load/store should be emitted:
// fast-local, cell, free (closure), global, or builtin fallback.
type nameKind int

const (
	nameLocal nameKind = iota
	nameCell
	nameFree
	nameGlobal
)

func (s *scope) resolve(name string, declaredGlobal, declaredNonlocal bool) (nameKind, int) {
	if declaredGlobal || s.isModule {
		return nameGlobal, s.nameConst(name)
	}
	if idx, ok := s.cellIndex[name]; ok {
		return nameCell, idx
	}
	if idx, ok := s.locals[name]; ok {
		return nameLocal, idx
	}
	if declaredNonlocal {
		idx := s.resolveFreeFromParent(name)
		return nameFree, idx
	}
	if idx, ok := s.freeIndex[name]; ok {
		return nameFree, idx
	}
	// Not locally bound at all: if an enclosing function scope binds
	// it, it's an (implicit, read-only) closure reference.
	if s.parent != nil && s.enclosingBinds(name) {
		idx := s.resolveFreeFromParent(name)
		return nameFree, idx
	}
	return nameGlobal, s.nameConst(name)
}

func (s *scope) enclosingBinds(name string) bool {
	for p := s.parent; p != nil && !p.isModule; p = p.parent {
		if _, ok := p.locals[name]; ok {
			return true
		}
		if _, ok := p.cellIndex[name]; ok {
			return true
		}
	}
	return false
}

// resolveFreeFromParent walks up to the nearest enclosing function
// scope that owns `name` as a local, promotes it to a cell there, and
// threads a free-variable reference down through every intermediate
// scope so each frame can pass the cell along at call time.
func (s *scope) resolveFreeFromParent(name string) int {
	owner := s.parent
	for owner != nil && !owner.isModule {
		if _, ok := owner.locals[name]; ok {
			owner.declareCell(name)
			break
		}
		if _, ok := owner.cellIndex[name]; ok {
			break
		}
		owner = owner.parent
	}
	return s.declareFree(name)
}
