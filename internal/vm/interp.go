package vm

import (
	"io"
	"os"

	"github.com/pyvm/pyvm/internal/compiler"
	"github.com/pyvm/pyvm/internal/scope"
	"github.com/pyvm/pyvm/internal/values"
)

// BuiltinLookup is the surface internal/builtins exposes back to the
// VM: a name->value table consulted by LOAD_BUILTIN and by LOAD_NAME's
// final fallback tier. Kept as an interface so vm never imports
// builtins directly (builtins imports vm's Call signature instead,
// via the constructor callback, to avoid a cycle).
type BuiltinLookup interface {
	Lookup(name string) (values.Value, bool)
	ExceptionClass(name string) (*values.Class, bool)
	// MethodLookup resolves a bound method on a receiver that has no
	// attribute table of its own (str/list/dict/set/file/generator),
	// binding the receiver into the returned callable.
	MethodLookup(receiver values.Value, name string) (values.Value, bool)
}

// Importer resolves a dotted module path to a loaded Module, with
// whatever search order and caching internal/runtime implements.
type Importer interface {
	Import(name string) (*values.Module, error)
}

// Interp is the shared state one program run threads through every
// frame: the builtin namespace, the module importer, output sink, and
// a monotonic identity counter (kept separate from the diagnostic
// uuid stamps on Instance/Generator/Module).
type Interp struct {
	Builtins BuiltinLookup
	Importer Importer
	Stdout   io.Writer
	Trace    bool

	idCounter int64
	modScope  *scope.Scope
}

func New(builtins BuiltinLookup, importer Importer) *Interp {
	return &Interp{
		Builtins: builtins,
		Importer: importer,
		Stdout:   os.Stdout,
	}
}

// NextID hands out the next process-local identity number; the id()
// built-in does not use it. Unrelated to the uuid stamps on Instance/Module,
// which exist only for dump/fault diagnostics.
func (it *Interp) NextID() int64 {
	it.idCounter++
	return it.idCounter
}

// RunModule executes a freshly compiled module-level code object in
// its own root Scope and returns the value of its last top-level
// expression statement plus that Scope itself, so a caller running
// more than one module through the same Interp (internal/runtime,
// resolving an import) can snapshot the finished module's globals
// into a *values.Module without disturbing any other module already
// loaded. Every function/class value created while running code holds
// its own defining Scope via HomeScope, so a later module's run here
// never affects an earlier module's already-returned closures.
func (it *Interp) RunModule(code *compiler.CodeObject) (values.Value, *scope.Scope, error) {
	modScope := scope.New(nil, false)
	it.modScope = modScope
	f := newFrame(code, modScope)
	v, err := it.run(f)
	if err != nil {
		return nil, modScope, err
	}
	return v, modScope, nil
}

// Call dispatches a call to any callable Value: a compiled Function,
// a native Builtin, a BoundMethod, or a Class (constructing an
// Instance and running __init__). This is the same method injected
// into internal/builtins as its call-back, so map()/filter()/sorted()
// can invoke user code without builtins importing vm.
func (it *Interp) Call(callee values.Value, args []values.Value, kwargs map[string]values.Value) (values.Value, *PyError) {
	switch fn := callee.(type) {
	case *values.Builtin:
		v, err := fn.Fn(args, kwargs)
		if err != nil {
			if pe, ok := err.(*PyError); ok {
				return nil, pe
			}
			if exc, ok := err.(*values.Exception); ok {
				return nil, raiseValue(exc)
			}
			return nil, raise("Exception", "%s", err.Error())
		}
		return v, nil
	case *values.BoundMethod:
		full := append([]values.Value{fn.Receiver}, args...)
		return it.Call(fn.Func, full, kwargs)
	case *values.Function:
		return it.callFunction(fn, args, kwargs)
	case *values.Class:
		return it.instantiate(fn, args, kwargs)
	default:
		return nil, raise("TypeError", "'%s' object is not callable", values.TypeName(callee))
	}
}

func (it *Interp) instantiate(class *values.Class, args []values.Value, kwargs map[string]values.Value) (values.Value, *PyError) {
	if isExceptionClass(class) {
		exc := values.NewException(class.Name, args...)
		exc.Class = class
		if init, _ := class.ResolveMethod("__init__"); init != nil {
			bound := &values.BoundMethod{Receiver: exc, Func: init}
			if _, err := it.Call(bound, args, kwargs); err != nil {
				return nil, err
			}
		}
		return exc, nil
	}
	inst := values.NewInstance(class)
	if init, owner := class.ResolveMethod("__init__"); init != nil {
		_ = owner
		bound := &values.BoundMethod{Receiver: inst, Func: init}
		if _, err := it.Call(bound, args, kwargs); err != nil {
			return nil, err
		}
	}
	return inst, nil
}

// isExceptionClass reports whether c is, or descends from, the root
// Exception class — the test that decides whether calling c produces
// a *values.Exception (catchable by except, flows through unwind) or a
// plain *values.Instance.
func isExceptionClass(c *values.Class) bool {
	if c.Name == "Exception" {
		return true
	}
	for _, b := range c.Bases {
		if isExceptionClass(b) {
			return true
		}
	}
	return false
}
