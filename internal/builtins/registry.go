// Package builtins implements the fixed namespace every pyvm program
// starts with: the built-in functions, the built-in exception class
// hierarchy, and the method tables for types that carry no class of
// their own (str, list, dict, set, file, generator).
package builtins

import (
	"io"
	"os"

	"github.com/pyvm/pyvm/internal/values"
)

// CallFunc is how a higher-order built-in (map, filter, sorted's key=,
// list.sort's key=) invokes a Python-level callable without this
// package importing internal/vm — vm already depends on builtins
// through the BuiltinLookup interface, so the reverse import would
// cycle.
type CallFunc func(fn values.Value, args []values.Value) (values.Value, error)

// Registry is the concrete value internal/vm's BuiltinLookup interface
// is satisfied by.
type Registry struct {
	call       CallFunc
	out        io.Writer
	functions  map[string]*values.Builtin
	exceptions map[string]*values.Class
}

// New builds the registry, wiring call back in for every built-in that
// needs to invoke user code and out as print's sink (nil defaults to
// os.Stdout — pass the same writer given to vm.Interp.Stdout so both
// halves of a program's output interleave correctly).
func New(call CallFunc, out io.Writer) *Registry {
	if out == nil {
		out = os.Stdout
	}
	r := &Registry{
		call:       call,
		out:        out,
		functions:  make(map[string]*values.Builtin),
		exceptions: make(map[string]*values.Class),
	}
	r.registerExceptions()
	r.registerFunctions()
	return r
}

func (r *Registry) def(name string, fn func(args []values.Value, kwargs map[string]values.Value) (values.Value, error)) {
	r.functions[name] = &values.Builtin{Name: name, Fn: fn}
}

// Lookup resolves a bare name against the built-in namespace: first
// functions, then exception classes (both LOAD_BUILTIN and LOAD_NAME's
// final fallback tier go through this).
func (r *Registry) Lookup(name string) (values.Value, bool) {
	if b, ok := r.functions[name]; ok {
		return b, true
	}
	if c, ok := r.exceptions[name]; ok {
		return c, true
	}
	return nil, false
}

func (r *Registry) ExceptionClass(name string) (*values.Class, bool) {
	c, ok := r.exceptions[name]
	return c, ok
}

// MethodLookup resolves a method on a receiver with no attribute table
// of its own, binding the receiver into the returned BoundMethod.
func (r *Registry) MethodLookup(receiver values.Value, name string) (values.Value, bool) {
	fn, ok := r.lookupMethod(receiver, name)
	if !ok {
		return nil, false
	}
	return &values.BoundMethod{Receiver: receiver, Func: &values.Builtin{Name: name, Fn: fn}}, true
}

type methodFn = func(args []values.Value, kwargs map[string]values.Value) (values.Value, error)

func (r *Registry) lookupMethod(receiver values.Value, name string) (methodFn, bool) {
	switch receiver.(type) {
	case values.Str:
		return r.strMethod(name)
	case *values.List:
		return r.listMethod(name)
	case *values.Dict:
		return r.dictMethod(name)
	case *values.Set:
		return r.setMethod(name)
	case *values.File:
		return r.fileMethod(name)
	case *values.Generator:
		return r.generatorMethod(name)
	}
	return nil, false
}
