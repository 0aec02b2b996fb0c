package vm

import (
	"github.com/pyvm/pyvm/internal/compiler"
	"github.com/pyvm/pyvm/internal/scope"
	"github.com/pyvm/pyvm/internal/values"
)

// codeConst is how a nested function's compiled body rides the
// constant pool and the operand stack between OP_CONSTANT and
// OP_MAKE_FUNCTION/OP_MAKE_CLASS: compiler.CodeObject itself doesn't
// implement values.Value (it has no Python-visible identity), so it's
// boxed here only for the trip across the stack.
type codeConst struct{ Code *compiler.CodeObject }

func (*codeConst) Type() values.Type       { return values.Type("code") }
func (c *codeConst) String() string        { return "<code object " + c.Code.Name + ">" }
func (*codeConst) Truthy() bool            { return true }
func (*codeConst) Hash() (uint64, bool)    { return 0, false }

// loadConstant pushes ConstantsPool[idx], wrapping a raw *CodeObject
// entry in codeConst since the pool is untyped (it also holds nested
// function bodies, not just Python values).
func loadConstant(code *compiler.CodeObject, idx int) values.Value {
	switch c := code.ConstantsPool[idx].(type) {
	case values.Value:
		return c
	case *compiler.CodeObject:
		return &codeConst{Code: c}
	default:
		return values.None
	}
}

func posParamCount(params []values.Param) int {
	n := 0
	for _, p := range params {
		if !p.Star && !p.DoubleStar {
			n++
		}
	}
	return n
}

func makeFunction(name string, code *compiler.CodeObject, closure, defaults values.Tuple, home *scope.Scope) *values.Function {
	params := make([]values.Param, len(code.Params))
	defaultIdx := 0
	for i, ps := range code.Params {
		p := values.Param{Name: ps.Name, Star: ps.Star, DoubleStar: ps.DoubleStar}
		if ps.HasDefault {
			p.Default = defaults.Elems[defaultIdx]
			defaultIdx++
		}
		params[i] = p
	}
	freevars := make([]*values.Cell, len(closure.Elems))
	for i, v := range closure.Elems {
		if c, ok := any(v).(*values.Cell); ok {
			freevars[i] = c
		} else {
			freevars[i] = &values.Cell{V: v}
		}
	}
	return &values.Function{
		Name:      name,
		Params:    params,
		Code:      code,
		Freevars:  freevars,
		IsGen:     code.IsGenerator,
		HomeScope: home,
	}
}

// callFunction binds args/kwargs to fn's parameters and runs its body
// to completion (or, for a generator function, wraps it in a
// goroutine-backed Generator instead of running it immediately).
func (it *Interp) callFunction(fn *values.Function, args []values.Value, kwargs map[string]values.Value) (values.Value, *PyError) {
	code, ok := fn.Code.(*compiler.CodeObject)
	if !ok {
		return nil, raise("TypeError", "object is not a callable code")
	}

	bound, err := bindParams(fn, args, kwargs)
	if err != nil {
		return nil, err
	}

	home, _ := fn.HomeScope.(*scope.Scope)
	if home == nil {
		home = it.modScope
	}
	fnScope := scope.New(home, false)
	for _, g := range code.Globals {
		fnScope.Globals[g] = true
	}

	frame := newFrame(code, fnScope)
	cellSet := make(map[string]int, len(code.CellNames))
	for i, n := range code.CellNames {
		cellSet[n] = i
	}
	frame.Cells = make([]*values.Cell, len(code.CellNames)+len(code.FreeNames))
	for i := range code.CellNames {
		frame.Cells[i] = &values.Cell{}
	}
	for i, fc := range fn.Freevars {
		if i < len(code.FreeNames) {
			frame.Cells[len(code.CellNames)+i] = fc
		}
	}

	for i, p := range fn.Params {
		if ci, isCell := cellSet[p.Name]; isCell {
			frame.Cells[ci].V = bound[i]
		} else if i < len(frame.Locals) {
			frame.Locals[i] = bound[i]
		}
	}

	if code.IsGenerator {
		return it.makeGenerator(frame, fn.Name), nil
	}
	return it.run(frame)
}

// bindParams implements Python's positional-then-keyword argument
// binding: required params, then defaulted ones, then *args/**kwargs
// collection, missing/extra/duplicate arguments all raising TypeError.
func bindParams(fn *values.Function, args []values.Value, kwargs map[string]values.Value) ([]values.Value, *PyError) {
	params := fn.Params
	bound := make([]values.Value, len(params))
	filled := make([]bool, len(params))

	starIdx, doubleStarIdx := -1, -1
	for i, p := range params {
		if p.Star {
			starIdx = i
		}
		if p.DoubleStar {
			doubleStarIdx = i
		}
	}

	argi := 0
	for i, p := range params {
		if p.Star || p.DoubleStar {
			continue
		}
		if starIdx >= 0 && i > starIdx {
			break
		}
		if argi < len(args) {
			bound[i] = args[argi]
			filled[i] = true
			argi++
		}
	}
	if starIdx >= 0 {
		rest := append([]values.Value{}, args[argi:]...)
		bound[starIdx] = values.NewTuple(rest...)
		filled[starIdx] = true
		argi = len(args)
	} else if argi < len(args) {
		return nil, raise("TypeError", "%s() takes %d positional arguments but %d were given", fn.Name, posParamCount(params), len(args))
	}

	usedKw := make(map[string]bool, len(kwargs))
	for name, v := range kwargs {
		matched := false
		for i, p := range params {
			if p.Name == name && !p.Star && !p.DoubleStar {
				if filled[i] {
					return nil, raise("TypeError", "%s() got multiple values for argument '%s'", fn.Name, name)
				}
				bound[i] = v
				filled[i] = true
				matched = true
				usedKw[name] = true
				break
			}
		}
		if !matched && doubleStarIdx < 0 {
			return nil, raise("TypeError", "%s() got an unexpected keyword argument '%s'", fn.Name, name)
		}
	}
	if doubleStarIdx >= 0 {
		rest := values.NewDict()
		for name, v := range kwargs {
			if !usedKw[name] {
				rest.Set(values.NewStr(name), v)
			}
		}
		bound[doubleStarIdx] = rest
		filled[doubleStarIdx] = true
	}

	for i, p := range params {
		if filled[i] {
			continue
		}
		switch {
		case p.Star:
			bound[i] = values.NewTuple()
		case p.DoubleStar:
			bound[i] = values.NewDict()
		case p.Default != nil:
			bound[i] = p.Default
		default:
			return nil, raise("TypeError", "%s() missing required positional argument: '%s'", fn.Name, p.Name)
		}
		filled[i] = true
	}
	return bound, nil
}

// makeClass runs a class body's code object to completion in a fresh
// class-flavored Scope, then harvests its bindings into a Class: any
// bound *values.Function becomes a method, everything else a class
// attribute — mirroring how CPython turns a class body's namespace
// into a type's __dict__.
func (it *Interp) makeClass(name string, code *compiler.CodeObject, bases values.Tuple, home *scope.Scope) (values.Value, *PyError) {
	baseClasses := make([]*values.Class, 0, len(bases.Elems))
	for _, b := range bases.Elems {
		bc, ok := b.(*values.Class)
		if !ok {
			return nil, raise("TypeError", "bases must be classes")
		}
		baseClasses = append(baseClasses, bc)
	}
	classScope := scope.New(home, true)
	frame := newFrame(code, classScope)
	if _, err := it.run(frame); err != nil {
		return nil, err
	}

	class := values.NewClass(name, baseClasses...)
	for _, n := range classScope.Names() {
		v, _ := classScope.Lookup(n)
		if fn, ok := v.(*values.Function); ok {
			class.Methods[n] = fn
		} else {
			class.Attrs.Set(values.NewStr(n), v)
		}
	}
	return class, nil
}
