package values

import (
	"strings"

	"github.com/google/uuid"
)

// Param mirrors ast.Param but with an already-evaluated default value
// (evaluated once, at def-time, per Python semantics) instead of an
// unevaluated expression.
type Param struct {
	Name       string
	Default    Value // nil if required
	Star       bool
	DoubleStar bool
}

// Cell boxes a single variable so that a closure and its enclosing
// function can share mutations to it (the classic "cell variable"
// scheme: captured names are indirected through a Cell instead of
// copied by value).
type Cell struct{ V Value }

// Function is a compiled, closure-capturing callable. Code is opaque
// here (an *compiler.CodeObject in practice) to avoid an import cycle
// between values and compiler; the vm package knows how to run it.
type Function struct {
	Name      string
	Params    []Param
	Code      any
	Freevars  []*Cell // captured enclosing-scope cells, in the order compiler.CodeObject.FreeNames lists them
	Doc       string
	IsGen     bool
	HomeScope any // *scope.Scope the function was defined in — its call frame's Parent
}

func (*Function) Type() Type           { return TypeFunction }
func (f *Function) String() string     { return "<function " + f.Name + ">" }
func (f *Function) Truthy() bool       { return true }
func (f *Function) Hash() (uint64, bool) { return 0, false }

// BoundMethod binds a receiver to an unbound Function or Builtin.
type BoundMethod struct {
	Receiver Value
	Func     Value // *Function or *Builtin
}

func (*BoundMethod) Type() Type       { return TypeMethod }
func (m *BoundMethod) String() string { return "<bound method>" }
func (m *BoundMethod) Truthy() bool   { return true }
func (m *BoundMethod) Hash() (uint64, bool) { return 0, false }

// Builtin wraps a native Go function exposed as a Python callable.
type Builtin struct {
	Name string
	Fn   func(args []Value, kwargs map[string]Value) (Value, error)
}

func (*Builtin) Type() Type       { return TypeBuiltin }
func (b *Builtin) String() string { return "<built-in function " + b.Name + ">" }
func (b *Builtin) Truthy() bool   { return true }
func (b *Builtin) Hash() (uint64, bool) { return 0, false }

// Class is a user-defined (or built-in exception) class object.
type Class struct {
	Name    string
	Bases   []*Class
	Methods map[string]*Function
	Attrs   *Dict
}

func NewClass(name string, bases ...*Class) *Class {
	return &Class{Name: name, Bases: bases, Methods: make(map[string]*Function), Attrs: NewDict()}
}

func (*Class) Type() Type       { return TypeClass }
func (c *Class) String() string { return "<class '" + c.Name + "'>" }
func (c *Class) Truthy() bool   { return true }
func (c *Class) Hash() (uint64, bool) { return 0, false }

// ResolveMethod looks up a method by name through the MRO (depth-first,
// left-to-right over Bases, matching Python's classic resolution for
// the single/simple-multiple-inheritance subset this VM supports).
func (c *Class) ResolveMethod(name string) (*Function, *Class) {
	if m, ok := c.Methods[name]; ok {
		return m, c
	}
	for _, base := range c.Bases {
		if m, owner := base.ResolveMethod(name); m != nil {
			return m, owner
		}
	}
	return nil, nil
}

// IsSubclassOf reports whether c is cls or inherits from it, used by
// isinstance() and except-clause matching.
func (c *Class) IsSubclassOf(cls *Class) bool {
	if c == cls || c.Name == cls.Name {
		return true
	}
	for _, base := range c.Bases {
		if base.IsSubclassOf(cls) {
			return true
		}
	}
	return false
}

// Instance is an object created via Class.__call__ (i.e. Class(...)).
type Instance struct {
	Class *Class
	Attrs *Dict
	ID    uuid.UUID // diagnostic only; never observable from id()
}

func NewInstance(class *Class) *Instance {
	return &Instance{Class: class, Attrs: NewDict(), ID: uuid.New()}
}

func (*Instance) Type() Type { return TypeInstance }
func (i *Instance) String() string {
	if m, _ := i.Class.ResolveMethod("__str__"); m != nil {
		return "<" + i.Class.Name + " instance>"
	}
	return "<" + i.Class.Name + " object>"
}
func (i *Instance) Truthy() bool         { return true }
func (i *Instance) Hash() (uint64, bool) { return 0, false }

func (i *Instance) GetAttr(name string) (Value, bool) {
	return i.Attrs.Get(NewStr(name))
}

func (i *Instance) SetAttr(name string, v Value) {
	i.Attrs.Set(NewStr(name), v)
}

// Module is a namespace produced by import.
type Module struct {
	Name    string
	Path    string
	Globals *Dict
	ID      uuid.UUID // diagnostic only, see Instance.ID
}

func NewModule(name, path string) *Module {
	return &Module{Name: name, Path: path, Globals: NewDict(), ID: uuid.New()}
}

func (*Module) Type() Type       { return TypeModule }
func (m *Module) String() string { return "<module '" + m.Name + "'>" }
func (m *Module) Truthy() bool   { return true }
func (m *Module) Hash() (uint64, bool) { return 0, false }

// SuperProxy is what the two-argument super(Cls, obj) built-in
// returns: attribute lookups on it resolve through obj's class MRO
// starting just past Cls, the same skip-self-and-below-it rule
// Python's super() applies. The bare zero-argument form used inside a
// method body (relying on an implicit __class__ cell) isn't supported.
type SuperProxy struct {
	Obj   Value
	Start *Class // first base searched; lookups skip everything before it
}

func (*SuperProxy) Type() Type       { return TypeInstance }
func (s *SuperProxy) String() string { return "<super: " + s.Start.Name + ", " + TypeName(s.Obj) + ">" }
func (s *SuperProxy) Truthy() bool   { return true }
func (s *SuperProxy) Hash() (uint64, bool) { return 0, false }

// File is the handle returned by the `open()` built-in.
type File struct {
	Name   string
	Mode   string
	Lines  []string
	Pos    int
	Closed bool
}

func (*File) Type() Type { return TypeFile }
func (f *File) String() string {
	return "<file '" + f.Name + "' mode '" + f.Mode + "'>"
}
func (f *File) Truthy() bool         { return true }
func (f *File) Hash() (uint64, bool) { return 0, false }

// TypeName returns the runtime type name used by type()/isinstance()
// error messages, resolving Instance/Class to their declared names
// rather than the generic "instance"/"type" tags.
func TypeName(v Value) string {
	switch t := v.(type) {
	case *Instance:
		return t.Class.Name
	case *Class:
		return t.Name
	case *Exception:
		return t.ClassName
	default:
		return string(v.Type())
	}
}

func joinTypeNames(vs []Value) string {
	names := make([]string, len(vs))
	for i, v := range vs {
		names[i] = TypeName(v)
	}
	return strings.Join(names, ", ")
}
