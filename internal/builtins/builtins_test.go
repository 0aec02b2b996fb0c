package builtins_test

import (
	"bytes"
	"testing"

	"github.com/pyvm/pyvm/internal/builtins"
	"github.com/pyvm/pyvm/internal/values"
)

// noCall is the CallFunc for these tests: it invokes a native
// *values.Builtin callback directly and returns (nil, nil) for any
// other callable.
func noCall(fn values.Value, args []values.Value) (values.Value, error) {
	b, ok := fn.(*values.Builtin)
	if !ok {
		return nil, nil
	}
	return b.Fn(args, nil)
}

func lookupFn(t *testing.T, reg *builtins.Registry, name string) *values.Builtin {
	t.Helper()
	v, ok := reg.Lookup(name)
	if !ok {
		t.Fatalf("builtin %q not registered", name)
	}
	b, ok := v.(*values.Builtin)
	if !ok {
		t.Fatalf("builtin %q is not callable, got %T", name, v)
	}
	return b
}

func callMethod(t *testing.T, reg *builtins.Registry, receiver values.Value, name string, extra ...values.Value) values.Value {
	t.Helper()
	v, ok := reg.MethodLookup(receiver, name)
	if !ok {
		t.Fatalf("method %q not found on %T", name, receiver)
	}
	bound := v.(*values.BoundMethod)
	fn := bound.Func.(*values.Builtin)
	args := append([]values.Value{receiver}, extra...)
	result, err := fn.Fn(args, nil)
	if err != nil {
		t.Fatalf("calling %q: %v", name, err)
	}
	return result
}

func TestLenAcrossContainerKinds(t *testing.T) {
	reg := builtins.New(noCall, nil)
	lenFn := lookupFn(t, reg, "len")

	cases := []struct {
		name string
		v    values.Value
		want int64
	}{
		{"str", values.NewStr("hello"), 5},
		{"list", values.NewList(values.NewInt(1), values.NewInt(2)), 2},
		{"tuple", values.NewTuple(values.NewInt(1)), 1},
		{"range", values.NewRange(0, 10, 2), 5},
	}
	for _, c := range cases {
		got, err := lenFn.Fn([]values.Value{c.v}, nil)
		if err != nil {
			t.Fatalf("%s: %v", c.name, err)
		}
		i, ok := got.(values.Int)
		if !ok || i.V.Int64() != c.want {
			t.Errorf("%s: got %v, want %d", c.name, got, c.want)
		}
	}
}

func TestLenRejectsUnsizedValue(t *testing.T) {
	reg := builtins.New(noCall, nil)
	lenFn := lookupFn(t, reg, "len")
	if _, err := lenFn.Fn([]values.Value{values.NewInt(5)}, nil); err == nil {
		t.Error("expected TypeError for len() of an int")
	}
}

func TestSumWithStartValue(t *testing.T) {
	reg := builtins.New(noCall, nil)
	sumFn := lookupFn(t, reg, "sum")
	lst := values.NewList(values.NewInt(1), values.NewInt(2), values.NewInt(3))
	got, err := sumFn.Fn([]values.Value{lst, values.NewInt(10)}, nil)
	if err != nil {
		t.Fatal(err)
	}
	i, ok := got.(values.Int)
	if !ok || i.V.Int64() != 16 {
		t.Errorf("got %v, want 16", got)
	}
}

func TestSumPromotesToFloat(t *testing.T) {
	reg := builtins.New(noCall, nil)
	sumFn := lookupFn(t, reg, "sum")
	lst := values.NewList(values.NewInt(1), values.NewFloat(1.5))
	got, err := sumFn.Fn([]values.Value{lst}, nil)
	if err != nil {
		t.Fatal(err)
	}
	f, ok := got.(values.Float)
	if !ok || f.V != 2.5 {
		t.Errorf("got %v, want 2.5", got)
	}
}

func TestRangeConstructsHalfOpenInterval(t *testing.T) {
	reg := builtins.New(noCall, nil)
	rangeFn := lookupFn(t, reg, "range")
	got, err := rangeFn.Fn([]values.Value{values.NewInt(2), values.NewInt(10), values.NewInt(3)}, nil)
	if err != nil {
		t.Fatal(err)
	}
	r, ok := got.(values.Range)
	if !ok {
		t.Fatalf("got %T, want Range", got)
	}
	if r.Len() != 3 { // 2, 5, 8
		t.Errorf("len %d, want 3", r.Len())
	}
}

func TestRangeRejectsZeroStep(t *testing.T) {
	reg := builtins.New(noCall, nil)
	rangeFn := lookupFn(t, reg, "range")
	if _, err := rangeFn.Fn([]values.Value{values.NewInt(0), values.NewInt(5), values.NewInt(0)}, nil); err == nil {
		t.Error("expected ValueError for step=0")
	}
}

func TestMapAppliesFunctionAcrossIterable(t *testing.T) {
	double := &values.Builtin{Name: "double", Fn: func(args []values.Value, kwargs map[string]values.Value) (values.Value, error) {
		n, _ := args[0].(values.Int)
		return values.NewInt(n.V.Int64() * 2), nil
	}}
	reg := builtins.New(noCall, nil)
	mapFn := lookupFn(t, reg, "map")
	lst := values.NewList(values.NewInt(1), values.NewInt(2), values.NewInt(3))
	got, err := mapFn.Fn([]values.Value{double, lst}, nil)
	if err != nil {
		t.Fatal(err)
	}
	iter, ok := got.(*values.IterState)
	if !ok {
		t.Fatalf("got %T, want *IterState", got)
	}
	var results []int64
	for {
		v, ok := iter.Next()
		if !ok {
			break
		}
		i := v.(values.Int)
		results = append(results, i.V.Int64())
	}
	want := []int64{2, 4, 6}
	if len(results) != len(want) {
		t.Fatalf("got %v, want %v", results, want)
	}
	for i := range want {
		if results[i] != want[i] {
			t.Errorf("got %v, want %v", results, want)
		}
	}
}

func TestSortedWithReverse(t *testing.T) {
	reg := builtins.New(noCall, nil)
	sortedFn := lookupFn(t, reg, "sorted")
	lst := values.NewList(values.NewInt(3), values.NewInt(1), values.NewInt(2))
	got, err := sortedFn.Fn([]values.Value{lst}, map[string]values.Value{"reverse": values.NewBool(true)})
	if err != nil {
		t.Fatal(err)
	}
	out, ok := got.(*values.List)
	if !ok || len(out.Elems) != 3 {
		t.Fatalf("got %v", got)
	}
	want := []int64{3, 2, 1}
	for i, w := range want {
		n := out.Elems[i].(values.Int)
		if n.V.Int64() != w {
			t.Errorf("index %d: got %v, want %d", i, n, w)
		}
	}
}

func TestMinMaxWithDefaultOnEmptyIterable(t *testing.T) {
	reg := builtins.New(noCall, nil)
	minFn := lookupFn(t, reg, "min")
	empty := values.NewList()
	got, err := minFn.Fn([]values.Value{empty}, map[string]values.Value{"default": values.NewInt(-1)})
	if err != nil {
		t.Fatal(err)
	}
	i, ok := got.(values.Int)
	if !ok || i.V.Int64() != -1 {
		t.Errorf("got %v, want -1", got)
	}
}

func TestListAppendMutatesInPlace(t *testing.T) {
	reg := builtins.New(noCall, nil)
	l := values.NewList(values.NewInt(1))
	callMethod(t, reg, l, "append", values.NewInt(2))
	if len(l.Elems) != 2 {
		t.Fatalf("got %d elems, want 2", len(l.Elems))
	}
	second := l.Elems[1].(values.Int)
	if second.V.Int64() != 2 {
		t.Errorf("got %v, want 2", second)
	}
}

func TestListPopRemovesAndReturnsLastByDefault(t *testing.T) {
	reg := builtins.New(noCall, nil)
	l := values.NewList(values.NewInt(1), values.NewInt(2), values.NewInt(3))
	got := callMethod(t, reg, l, "pop")
	i := got.(values.Int)
	if i.V.Int64() != 3 {
		t.Errorf("got %v, want 3", got)
	}
	if len(l.Elems) != 2 {
		t.Errorf("got %d elems left, want 2", len(l.Elems))
	}
}

func TestListPopFromEmptyRaisesIndexError(t *testing.T) {
	reg := builtins.New(noCall, nil)
	l := values.NewList()
	v, ok := reg.MethodLookup(l, "pop")
	if !ok {
		t.Fatal("pop not found")
	}
	bound := v.(*values.BoundMethod)
	fn := bound.Func.(*values.Builtin)
	if _, err := fn.Fn([]values.Value{l}, nil); err == nil {
		t.Error("expected IndexError popping an empty list")
	}
}

func TestStrSplit(t *testing.T) {
	reg := builtins.New(noCall, nil)
	s := values.NewStr("a,b,c")
	got := callMethod(t, reg, s, "split", values.NewStr(","))
	lst, ok := got.(*values.List)
	if !ok || len(lst.Elems) != 3 {
		t.Fatalf("got %v", got)
	}
	for i, want := range []string{"a", "b", "c"} {
		s := lst.Elems[i].(values.Str)
		if s.V != want {
			t.Errorf("index %d: got %q, want %q", i, s.V, want)
		}
	}
}

func TestDictGetWithDefault(t *testing.T) {
	reg := builtins.New(noCall, nil)
	d := values.NewDict()
	d.Set(values.NewStr("x"), values.NewInt(1))
	got := callMethod(t, reg, d, "get", values.NewStr("missing"), values.NewInt(-1))
	i := got.(values.Int)
	if i.V.Int64() != -1 {
		t.Errorf("got %v, want -1", got)
	}
}

func TestExceptionClassHierarchyRootsAtException(t *testing.T) {
	reg := builtins.New(noCall, nil)
	for _, name := range []string{"ValueError", "TypeError", "KeyError", "IndexError"} {
		c, ok := reg.ExceptionClass(name)
		if !ok {
			t.Fatalf("%s not registered", name)
		}
		if len(c.Bases) != 1 || c.Bases[0].Name != "Exception" {
			t.Errorf("%s bases = %v, want [Exception]", name, c.Bases)
		}
	}
	root, ok := reg.ExceptionClass("Exception")
	if !ok || len(root.Bases) != 0 {
		t.Errorf("Exception should have no bases, got %v", root)
	}
}

func TestUnboundLocalErrorDescendsFromNameError(t *testing.T) {
	reg := builtins.New(noCall, nil)
	c, ok := reg.ExceptionClass("UnboundLocalError")
	if !ok {
		t.Fatal("UnboundLocalError not registered")
	}
	if len(c.Bases) != 1 || c.Bases[0].Name != "NameError" {
		t.Errorf("bases = %v, want [NameError]", c.Bases)
	}
}

func TestPrintWritesToConfiguredOutWithSepAndEnd(t *testing.T) {
	var out bytes.Buffer
	reg := builtins.New(noCall, &out)
	printFn := lookupFn(t, reg, "print")
	_, err := printFn.Fn([]values.Value{values.NewStr("a"), values.NewStr("b")}, map[string]values.Value{
		"sep": values.NewStr("-"),
		"end": values.NewStr("!"),
	})
	if err != nil {
		t.Fatal(err)
	}
	if out.String() != "a-b!" {
		t.Errorf("got %q, want %q", out.String(), "a-b!")
	}
}
