// Package scope implements the runtime name-lookup environment the VM
// consults for LOAD_NAME/STORE_NAME/DELETE_NAME and for building a
// class's attribute map once its body finishes executing. It is
// distinct from the compiler's scope.go, which only classifies names
// into fast-local slots at compile time; this is the live chain backing
// globals, closures, and class namespaces at run time.
package scope

import "github.com/pyvm/pyvm/internal/values"

// Scope is a linked name->value environment: the module scope sits at
// the root, each call pushes a fresh function (or class-body) scope
// whose Parent is the scope active at its definition.
type Scope struct {
	Parent    *Scope
	Values    map[string]values.Value
	order     []string
	Globals   map[string]bool
	Nonlocals map[string]bool
	IsClass   bool
}

func New(parent *Scope, isClass bool) *Scope {
	return &Scope{
		Parent:    parent,
		Values:    map[string]values.Value{},
		Globals:   map[string]bool{},
		Nonlocals: map[string]bool{},
		IsClass:   isClass,
	}
}

// Root walks to the module scope at the top of the chain.
func (s *Scope) Root() *Scope {
	cur := s
	for cur.Parent != nil {
		cur = cur.Parent
	}
	return cur
}

// Lookup searches this scope, then ancestors, skipping class scopes
// other than the one the search started in — a class body's own
// namespace is visible to the code running directly inside it, but
// not to anything nested further inside (matching CPython: class
// scopes never participate in closure resolution).
func (s *Scope) Lookup(name string) (values.Value, bool) {
	for cur, first := s, true; cur != nil; cur, first = cur.Parent, false {
		if !first && cur.IsClass {
			continue
		}
		if v, ok := cur.Values[name]; ok {
			return v, true
		}
	}
	return nil, false
}

// Store binds name in the scope selected by its global/nonlocal flags:
// global reaches the chain root (skipping class scopes on the way
// there is unnecessary since only the root itself receives the
// write); nonlocal reaches the nearest enclosing non-class scope;
// otherwise the name binds right here.
func (s *Scope) Store(name string, v values.Value) {
	switch {
	case s.Globals[name]:
		s.Root().setLocal(name, v)
	case s.Nonlocals[name]:
		if owner := s.nearestNonClassAncestor(); owner != nil {
			owner.setLocal(name, v)
			return
		}
		s.setLocal(name, v)
	default:
		s.setLocal(name, v)
	}
}

// Delete removes name from wherever Store would have placed it,
// reporting whether it was actually bound there.
func (s *Scope) Delete(name string) bool {
	target := s
	switch {
	case s.Globals[name]:
		target = s.Root()
	case s.Nonlocals[name]:
		if owner := s.nearestNonClassAncestor(); owner != nil {
			target = owner
		}
	}
	if _, ok := target.Values[name]; !ok {
		return false
	}
	delete(target.Values, name)
	for i, n := range target.order {
		if n == name {
			target.order = append(target.order[:i], target.order[i+1:]...)
			break
		}
	}
	return true
}

func (s *Scope) setLocal(name string, v values.Value) {
	if _, ok := s.Values[name]; !ok {
		s.order = append(s.order, name)
	}
	s.Values[name] = v
}

func (s *Scope) nearestNonClassAncestor() *Scope {
	for cur := s.Parent; cur != nil; cur = cur.Parent {
		if !cur.IsClass {
			return cur
		}
	}
	return nil
}

// StoreGlobalDirect writes straight to the module scope's own
// namespace, bypassing the global/nonlocal flag checks Store applies —
// what OP_STORE_GLOBAL needs, since by construction it only ever
// targets the module scope regardless of the current frame's Globals
// set.
func (s *Scope) StoreGlobalDirect(name string, v values.Value) {
	s.Root().setLocal(name, v)
}

// LookupGlobalDirect reads straight from the module scope, what
// OP_LOAD_GLOBAL needs.
func (s *Scope) LookupGlobalDirect(name string) (values.Value, bool) {
	v, ok := s.Root().Values[name]
	return v, ok
}

// Names returns this scope's own bindings in insertion order, used to
// materialize a finished class body into a Class's attribute/method
// tables and by the `dir()`/`vars()` built-ins.
func (s *Scope) Names() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}
