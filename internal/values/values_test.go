package values_test

import (
	"testing"

	"github.com/pyvm/pyvm/internal/values"
)

func TestEqualAcrossIntFloatBool(t *testing.T) {
	cases := []struct {
		a, b values.Value
		want bool
	}{
		{values.NewInt(1), values.NewBool(true), true},
		{values.NewInt(0), values.NewBool(false), true},
		{values.NewInt(2), values.NewFloat(2.0), true},
		{values.NewInt(2), values.NewFloat(2.5), false},
		{values.NewBool(true), values.NewFloat(1.0), true},
	}
	for _, c := range cases {
		if got := values.Equal(c.a, c.b); got != c.want {
			t.Errorf("Equal(%v, %v) = %v, want %v", c.a, c.b, got, c.want)
		}
	}
}

func TestNaNIsNeverEqualToAnything(t *testing.T) {
	nan := values.NewFloat(0)
	nan.V = nan.V / nan.V // compile-time-safe way to build NaN without math import games
	if values.Equal(nan, nan) {
		t.Error("NaN should not equal itself under ==")
	}
	if values.Equal(nan, values.NewInt(0)) {
		t.Error("NaN should not equal any int")
	}
}

func TestListEqualityIsStructural(t *testing.T) {
	a := values.NewList(values.NewInt(1), values.NewInt(2))
	b := values.NewList(values.NewInt(1), values.NewInt(2))
	if !values.Equal(a, b) {
		t.Error("lists with equal elements should compare equal")
	}
	c := values.NewList(values.NewInt(1), values.NewInt(3))
	if values.Equal(a, c) {
		t.Error("lists with different elements should not compare equal")
	}
}

func TestListAliasMutationIsVisibleThroughBothReferences(t *testing.T) {
	a := values.NewList(values.NewInt(1))
	b := a // Python `b = a` aliases the same underlying list.
	b.Elems = append(b.Elems, values.NewInt(2))
	if len(a.Elems) != 2 {
		t.Errorf("mutation through alias not visible: got %d elems, want 2", len(a.Elems))
	}
}

func TestCompareOrdersIntsAndStrings(t *testing.T) {
	cmp, ok := values.Compare(values.NewInt(1), values.NewInt(2))
	if !ok || cmp != -1 {
		t.Errorf("Compare(1, 2) = (%d, %v), want (-1, true)", cmp, ok)
	}
	cmp, ok = values.Compare(values.NewStr("a"), values.NewStr("b"))
	if !ok || cmp != -1 {
		t.Errorf("Compare(\"a\", \"b\") = (%d, %v), want (-1, true)", cmp, ok)
	}
}

func TestCompareUnorderedTypesReportsNotOk(t *testing.T) {
	_, ok := values.Compare(values.NewInt(1), values.NewStr("x"))
	if ok {
		t.Error("expected Compare(int, str) to report ok=false")
	}
}

func TestHashConsistentAcrossIntBoolFloat(t *testing.T) {
	hi, oki := values.NewInt(1).Hash()
	hb, okb := values.NewBool(true).Hash()
	hf, okf := values.NewFloat(1.0).Hash()
	if !oki || !okb || !okf {
		t.Fatal("expected all three to be hashable")
	}
	if hi != hb || hi != hf {
		t.Errorf("equal values hashed differently: int=%d bool=%d float=%d", hi, hb, hf)
	}
}

func TestDictLookupUsesEqualNotIdentity(t *testing.T) {
	d := values.NewDict()
	d.Set(values.NewInt(1), values.NewStr("one"))
	v, ok := d.Get(values.NewBool(true))
	if !ok {
		t.Fatal("expected dict[True] to find the entry stored under 1")
	}
	s := v.(values.Str)
	if s.V != "one" {
		t.Errorf("got %q, want \"one\"", s.V)
	}
}

func TestTupleEqualityIsStructural(t *testing.T) {
	a := values.NewTuple(values.NewInt(1), values.NewStr("x"))
	b := values.NewTuple(values.NewInt(1), values.NewStr("x"))
	if !values.Equal(a, b) {
		t.Error("tuples with equal elements should compare equal")
	}
}

func TestReprQuotesStringsButStrDoesNot(t *testing.T) {
	s := values.NewStr("hi")
	if s.String() != "hi" {
		t.Errorf("String() = %q, want %q", s.String(), "hi")
	}
	if got := values.Repr(s); got != `'hi'` {
		t.Errorf("Repr() = %q, want %q", got, `'hi'`)
	}
}
