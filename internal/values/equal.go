package values

import "math/big"

// Equal implements Python's `==` semantics across the numeric tower
// (int/float/bool compare by mathematical value, NaN never equals
// anything including itself) and structural equality for containers.
func Equal(a, b Value) bool {
	an, aIsNum := asNumber(a)
	bn, bIsNum := asNumber(b)
	if aIsNum && bIsNum {
		return numEqual(an, bn)
	}

	switch av := a.(type) {
	case Str:
		bv, ok := b.(Str)
		return ok && av.V == bv.V
	case NoneType:
		_, ok := b.(NoneType)
		return ok
	case *List:
		bv, ok := b.(*List)
		return ok && elemsEqual(av.Elems, bv.Elems)
	case Tuple:
		bv, ok := b.(Tuple)
		return ok && elemsEqual(av.Elems, bv.Elems)
	case *Dict:
		bv, ok := b.(*Dict)
		if !ok || av.Len() != bv.Len() {
			return false
		}
		for _, e := range av.order {
			other, found := bv.Get(e.key)
			if !found || !Equal(e.value, other) {
				return false
			}
		}
		return true
	case *Set:
		bv, ok := b.(*Set)
		if !ok || av.Len() != bv.Len() {
			return false
		}
		for _, e := range av.elems {
			if !bv.Contains(e) {
				return false
			}
		}
		return true
	}
	return a == b
}

func elemsEqual(a, b []Value) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !Equal(a[i], b[i]) {
			return false
		}
	}
	return true
}

// numVal distinguishes how a numeric value is represented internally
// so numEqual can compare across int/float/bool without converting
// arbitrary-precision integers down to float64 and losing precision
// when both sides are integral.
type numVal struct {
	isFloat bool
	i       *big.Int
	f       float64
}

func asNumber(v Value) (numVal, bool) {
	switch t := v.(type) {
	case Int:
		return numVal{i: t.V}, true
	case Bool:
		n := int64(0)
		if t.V {
			n = 1
		}
		return numVal{i: big.NewInt(n)}, true
	case Float:
		return numVal{isFloat: true, f: t.V}, true
	}
	return numVal{}, false
}

func numEqual(a, b numVal) bool {
	if a.isFloat && b.isFloat {
		return a.f == b.f
	}
	if !a.isFloat && !b.isFloat {
		return a.i.Cmp(b.i) == 0
	}
	// one float, one int/bool: NaN never matches; otherwise compare
	// exactly by lifting the integer to a big.Float, so no precision
	// is lost.
	var fv float64
	var iv *big.Int
	if a.isFloat {
		fv, iv = a.f, b.i
	} else {
		fv, iv = b.f, a.i
	}
	if fv != fv { // NaN
		return false
	}
	bf := new(big.Float).SetInt(iv)
	return bf.Cmp(big.NewFloat(fv)) == 0
}

// Compare implements ordering for `<`, `<=`, `>`, `>=` across numbers
// and strings. Returns (cmp, ok): cmp is -1/0/1, ok is false when the
// types are not ordered against each other.
func Compare(a, b Value) (int, bool) {
	an, aIsNum := asNumber(a)
	bn, bIsNum := asNumber(b)
	if aIsNum && bIsNum {
		return numCompare(an, bn), true
	}
	as, aIsStr := a.(Str)
	bs, bIsStr := b.(Str)
	if aIsStr && bIsStr {
		switch {
		case as.V < bs.V:
			return -1, true
		case as.V > bs.V:
			return 1, true
		default:
			return 0, true
		}
	}
	return 0, false
}

func numCompare(a, b numVal) int {
	if a.isFloat || b.isFloat {
		af, bf := a.f, b.f
		if !a.isFloat {
			af, _ = new(big.Float).SetInt(a.i).Float64()
		}
		if !b.isFloat {
			bf, _ = new(big.Float).SetInt(b.i).Float64()
		}
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		default:
			return 0
		}
	}
	return a.i.Cmp(b.i)
}
