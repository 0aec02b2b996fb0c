package scope_test

import (
	"testing"

	"github.com/pyvm/pyvm/internal/scope"
	"github.com/pyvm/pyvm/internal/values"
)

func TestLookupWalksAncestorChain(t *testing.T) {
	root := scope.New(nil, false)
	root.Store("x", values.NewInt(1))
	child := scope.New(root, false)
	v, ok := child.Lookup("x")
	if !ok {
		t.Fatal("expected to find 'x' via ancestor chain")
	}
	i := v.(values.Int)
	if i.V.Int64() != 1 {
		t.Errorf("got %v, want 1", v)
	}
}

func TestLookupSkipsClassScopesExceptTheStartingOne(t *testing.T) {
	root := scope.New(nil, false)
	root.Store("x", values.NewInt(1))
	classScope := scope.New(root, true)
	classScope.Store("x", values.NewInt(2))
	methodScope := scope.New(classScope, false)

	// Looking up directly in the class scope sees its own binding.
	v, ok := classScope.Lookup("x")
	if !ok || v.(values.Int).V.Int64() != 2 {
		t.Errorf("class scope's own lookup got %v, want 2", v)
	}

	// A scope nested inside the class body must skip the class scope's
	// namespace and see the module-level binding instead.
	v, ok = methodScope.Lookup("x")
	if !ok || v.(values.Int).V.Int64() != 1 {
		t.Errorf("nested scope's lookup got %v, want 1 (module value, not class)", v)
	}
}

func TestStoreGlobalWritesToRoot(t *testing.T) {
	root := scope.New(nil, false)
	fnScope := scope.New(root, false)
	fnScope.Globals["x"] = true
	fnScope.Store("x", values.NewInt(5))

	if _, ok := fnScope.Values["x"]; ok {
		t.Error("global-flagged store should not bind locally")
	}
	v, ok := root.Lookup("x")
	if !ok || v.(values.Int).V.Int64() != 5 {
		t.Errorf("root got %v, want 5", v)
	}
}

func TestStoreNonlocalWritesToNearestNonClassAncestor(t *testing.T) {
	root := scope.New(nil, false)
	outer := scope.New(root, false)
	outer.Store("x", values.NewInt(1))
	classScope := scope.New(outer, true)
	inner := scope.New(classScope, false)
	inner.Nonlocals["x"] = true
	inner.Store("x", values.NewInt(9))

	v, ok := outer.Lookup("x")
	if !ok || v.(values.Int).V.Int64() != 9 {
		t.Errorf("outer got %v, want 9", v)
	}
	if _, ok := classScope.Values["x"]; ok {
		t.Error("nonlocal store should skip the intervening class scope")
	}
}

func TestDeleteRemovesBindingAndOrderEntry(t *testing.T) {
	s := scope.New(nil, false)
	s.Store("a", values.NewInt(1))
	s.Store("b", values.NewInt(2))
	if !s.Delete("a") {
		t.Fatal("expected Delete('a') to report success")
	}
	if _, ok := s.Lookup("a"); ok {
		t.Error("'a' should no longer be bound")
	}
	names := s.Names()
	if len(names) != 1 || names[0] != "b" {
		t.Errorf("Names() = %v, want [b]", names)
	}
}

func TestDeleteUnboundNameReportsFalse(t *testing.T) {
	s := scope.New(nil, false)
	if s.Delete("missing") {
		t.Error("expected Delete of an unbound name to report false")
	}
}

func TestNamesPreservesInsertionOrder(t *testing.T) {
	s := scope.New(nil, false)
	s.Store("z", values.NewInt(1))
	s.Store("a", values.NewInt(2))
	s.Store("m", values.NewInt(3))
	got := s.Names()
	want := []string{"z", "a", "m"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("index %d: got %q, want %q", i, got[i], want[i])
		}
	}
}

func TestRootWalksToModuleScope(t *testing.T) {
	root := scope.New(nil, false)
	a := scope.New(root, false)
	b := scope.New(a, true)
	if b.Root() != root {
		t.Error("Root() did not return the top-level module scope")
	}
}
