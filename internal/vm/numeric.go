package vm

import (
	"math"
	"math/big"
	"strings"

	"github.com/pyvm/pyvm/internal/compiler"
	"github.com/pyvm/pyvm/internal/values"
)

// asNum extracts an int/bool value as a big.Int and a float otherwise,
// mirroring the numeric tower values.Equal/Compare already use.
func asNum(v values.Value) (isFloat bool, i *big.Int, f float64, ok bool) {
	switch t := v.(type) {
	case values.Int:
		return false, t.V, 0, true
	case values.Bool:
		n := int64(0)
		if t.V {
			n = 1
		}
		return false, big.NewInt(n), 0, true
	case values.Float:
		return true, nil, t.V, true
	}
	return false, nil, 0, false
}

func toFloat(isFloat bool, i *big.Int, f float64) float64 {
	if isFloat {
		return f
	}
	bf, _ := new(big.Float).SetInt(i).Float64()
	return bf
}

func binaryOp(op compiler.BinOp, a, b values.Value) (values.Value, *PyError) {
	// string/list/tuple concatenation and repetition take priority over
	// the numeric path since neither operand is part of the tower.
	if op == compiler.BIN_ADD {
		if v, ok, err := addNonNumeric(a, b); ok {
			return v, err
		}
	}
	if op == compiler.BIN_MUL {
		if v, ok, err := mulNonNumeric(a, b); ok {
			return v, err
		}
	}
	if isSet(a) && isSet(b) {
		if v, ok := setOp(op, a.(*values.Set), b.(*values.Set)); ok {
			return v, nil
		}
	}

	aFloat, ai, af, aOk := asNum(a)
	bFloat, bi, bf, bOk := asNum(b)
	if !aOk || !bOk {
		return nil, raise("TypeError", "unsupported operand type(s) for %s: '%s' and '%s'", op.String(), values.TypeName(a), values.TypeName(b))
	}

	useFloat := aFloat || bFloat
	switch op {
	case compiler.BIN_DIV:
		fb := toFloat(bFloat, bi, bf)
		if fb == 0 {
			return nil, raise("ZeroDivisionError", "division by zero")
		}
		return values.NewFloat(toFloat(aFloat, ai, af) / fb), nil
	case compiler.BIN_POW:
		return powOp(aFloat, ai, af, bFloat, bi, bf)
	case compiler.BIN_MATMUL:
		return nil, raise("TypeError", "unsupported operand type(s) for @: '%s' and '%s'", values.TypeName(a), values.TypeName(b))
	}

	if !useFloat {
		res := new(big.Int)
		switch op {
		case compiler.BIN_ADD:
			res.Add(ai, bi)
		case compiler.BIN_SUB:
			res.Sub(ai, bi)
		case compiler.BIN_MUL:
			res.Mul(ai, bi)
		case compiler.BIN_FLOORDIV:
			if bi.Sign() == 0 {
				return nil, raise("ZeroDivisionError", "integer division or modulo by zero")
			}
			res.Div(ai, bi) // big.Int.Div is Euclidean/floor for positive divisor; see pyFloorDivInt
			return values.NewBigInt(pyFloorDivInt(ai, bi)), nil
		case compiler.BIN_MOD:
			if bi.Sign() == 0 {
				return nil, raise("ZeroDivisionError", "integer division or modulo by zero")
			}
			return values.NewBigInt(pyModInt(ai, bi)), nil
		case compiler.BIN_AND:
			res.And(ai, bi)
		case compiler.BIN_OR:
			res.Or(ai, bi)
		case compiler.BIN_XOR:
			res.Xor(ai, bi)
		case compiler.BIN_LSHIFT:
			if bi.Sign() < 0 {
				return nil, raise("ValueError", "negative shift count")
			}
			res.Lsh(ai, uint(bi.Int64()))
		case compiler.BIN_RSHIFT:
			if bi.Sign() < 0 {
				return nil, raise("ValueError", "negative shift count")
			}
			res.Rsh(ai, uint(bi.Int64()))
		default:
			return nil, raise("TypeError", "bad binary op")
		}
		return values.NewBigInt(res), nil
	}

	fa, fb := toFloat(aFloat, ai, af), toFloat(bFloat, bi, bf)
	switch op {
	case compiler.BIN_ADD:
		return values.NewFloat(fa + fb), nil
	case compiler.BIN_SUB:
		return values.NewFloat(fa - fb), nil
	case compiler.BIN_MUL:
		return values.NewFloat(fa * fb), nil
	case compiler.BIN_FLOORDIV:
		if fb == 0 {
			return nil, raise("ZeroDivisionError", "float floor division by zero")
		}
		return values.NewFloat(math.Floor(fa / fb)), nil
	case compiler.BIN_MOD:
		if fb == 0 {
			return nil, raise("ZeroDivisionError", "float modulo")
		}
		m := math.Mod(fa, fb)
		if m != 0 && (m < 0) != (fb < 0) {
			m += fb
		}
		return values.NewFloat(m), nil
	}
	return nil, raise("TypeError", "unsupported operand type(s) for %s: '%s' and '%s'", op.String(), values.TypeName(a), values.TypeName(b))
}

// pyFloorDivInt implements Python's floor (toward -infinity) integer
// division, distinct from big.Int.Quo's truncating semantics.
func pyFloorDivInt(a, b *big.Int) *big.Int {
	q, r := new(big.Int), new(big.Int)
	q.QuoRem(a, b, r)
	if r.Sign() != 0 && (r.Sign() < 0) != (b.Sign() < 0) {
		q.Sub(q, big.NewInt(1))
	}
	return q
}

// pyModInt implements Python's modulo, whose result always carries the
// sign of the divisor.
func pyModInt(a, b *big.Int) *big.Int {
	r := new(big.Int).Mod(a, b)
	if r.Sign() != 0 && b.Sign() < 0 {
		r.Add(r, b)
	}
	return r
}

// powOp implements `**`: int**non-negative-int stays int; everything
// else (negative or non-integer exponent, any float operand) returns
// float, matching CPython.
func powOp(aFloat bool, ai *big.Int, af float64, bFloat bool, bi *big.Int, bf float64) (values.Value, *PyError) {
	if !aFloat && !bFloat && bi.Sign() >= 0 {
		if !bi.IsInt64() {
			return nil, raise("OverflowError", "exponent too large")
		}
		res := new(big.Int).Exp(ai, bi, nil)
		return values.NewBigInt(res), nil
	}
	fa, fb := toFloat(aFloat, ai, af), toFloat(bFloat, bi, bf)
	return values.NewFloat(math.Pow(fa, fb)), nil
}

func addNonNumeric(a, b values.Value) (values.Value, bool, *PyError) {
	switch av := a.(type) {
	case values.Str:
		if bv, ok := b.(values.Str); ok {
			return values.NewStr(av.V + bv.V), true, nil
		}
		return nil, true, raise("TypeError", "can only concatenate str (not \"%s\") to str", values.TypeName(b))
	case *values.List:
		if bv, ok := b.(*values.List); ok {
			out := append(append([]values.Value{}, av.Elems...), bv.Elems...)
			return values.NewList(out...), true, nil
		}
		return nil, true, raise("TypeError", "can only concatenate list (not \"%s\") to list", values.TypeName(b))
	case values.Tuple:
		if bv, ok := b.(values.Tuple); ok {
			out := append(append([]values.Value{}, av.Elems...), bv.Elems...)
			return values.NewTuple(out...), true, nil
		}
		return nil, true, raise("TypeError", "can only concatenate tuple (not \"%s\") to tuple", values.TypeName(b))
	}
	return nil, false, nil
}

func mulNonNumeric(a, b values.Value) (values.Value, bool, *PyError) {
	if s, ok := a.(values.Str); ok {
		if n, ok := asInt(b); ok {
			return values.NewStr(strings.Repeat(s.V, maxInt(n, 0))), true, nil
		}
	}
	if n, ok := asInt(a); ok {
		if s, ok := b.(values.Str); ok {
			return values.NewStr(strings.Repeat(s.V, maxInt(n, 0))), true, nil
		}
	}
	if l, ok := a.(*values.List); ok {
		if n, ok := asInt(b); ok {
			return values.NewList(repeatElems(l.Elems, n)...), true, nil
		}
	}
	if n, ok := asInt(a); ok {
		if l, ok := b.(*values.List); ok {
			return values.NewList(repeatElems(l.Elems, n)...), true, nil
		}
	}
	if t, ok := a.(values.Tuple); ok {
		if n, ok := asInt(b); ok {
			return values.NewTuple(repeatElems(t.Elems, n)...), true, nil
		}
	}
	return nil, false, nil
}

func repeatElems(elems []values.Value, n int) []values.Value {
	if n <= 0 {
		return nil
	}
	out := make([]values.Value, 0, len(elems)*n)
	for i := 0; i < n; i++ {
		out = append(out, elems...)
	}
	return out
}

func asInt(v values.Value) (int, bool) {
	switch t := v.(type) {
	case values.Int:
		return int(t.V.Int64()), true
	case values.Bool:
		if t.V {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func isSet(v values.Value) bool { _, ok := v.(*values.Set); return ok }

func setOp(op compiler.BinOp, a, b *values.Set) (values.Value, bool) {
	switch op {
	case compiler.BIN_OR:
		out := values.NewSet()
		for _, e := range a.Elems() {
			out.Add(e)
		}
		for _, e := range b.Elems() {
			out.Add(e)
		}
		return out, true
	case compiler.BIN_AND:
		out := values.NewSet()
		for _, e := range a.Elems() {
			if b.Contains(e) {
				out.Add(e)
			}
		}
		return out, true
	case compiler.BIN_SUB:
		out := values.NewSet()
		for _, e := range a.Elems() {
			if !b.Contains(e) {
				out.Add(e)
			}
		}
		return out, true
	case compiler.BIN_XOR:
		out := values.NewSet()
		for _, e := range a.Elems() {
			if !b.Contains(e) {
				out.Add(e)
			}
		}
		for _, e := range b.Elems() {
			if !a.Contains(e) {
				out.Add(e)
			}
		}
		return out, true
	}
	return nil, false
}

func unaryOp(op compiler.UnaryOp, v values.Value) (values.Value, *PyError) {
	switch op {
	case compiler.UNARY_NOT:
		return values.NewBool(!v.Truthy()), nil
	}
	isFloat, i, f, ok := asNum(v)
	if !ok {
		return nil, raise("TypeError", "bad operand type for unary op: '%s'", values.TypeName(v))
	}
	switch op {
	case compiler.UNARY_NEG:
		if isFloat {
			return values.NewFloat(-f), nil
		}
		return values.NewBigInt(new(big.Int).Neg(i)), nil
	case compiler.UNARY_POS:
		if isFloat {
			return values.NewFloat(f), nil
		}
		return values.NewBigInt(new(big.Int).Set(i)), nil
	case compiler.UNARY_INVERT:
		if isFloat {
			return nil, raise("TypeError", "bad operand type for unary ~: 'float'")
		}
		return values.NewBigInt(new(big.Int).Not(i)), nil
	}
	return nil, raise("TypeError", "bad unary op")
}

func compareOp(op compiler.CompareOp, a, b values.Value) (values.Value, *PyError) {
	switch op {
	case compiler.CMP_IS:
		return values.NewBool(sameIdentity(a, b)), nil
	case compiler.CMP_IS_NOT:
		return values.NewBool(!sameIdentity(a, b)), nil
	case compiler.CMP_EQ:
		return values.NewBool(values.Equal(a, b)), nil
	case compiler.CMP_NE:
		return values.NewBool(!values.Equal(a, b)), nil
	case compiler.CMP_IN, compiler.CMP_NOT_IN:
		found, err := containsOp(a, b)
		if err != nil {
			return nil, err
		}
		if op == compiler.CMP_NOT_IN {
			found = !found
		}
		return values.NewBool(found), nil
	}
	cmp, ok := values.Compare(a, b)
	if !ok {
		return nil, raise("TypeError", "'%s' not supported between instances of '%s' and '%s'", op.String(), values.TypeName(a), values.TypeName(b))
	}
	switch op {
	case compiler.CMP_LT:
		return values.NewBool(cmp < 0), nil
	case compiler.CMP_LE:
		return values.NewBool(cmp <= 0), nil
	case compiler.CMP_GT:
		return values.NewBool(cmp > 0), nil
	case compiler.CMP_GE:
		return values.NewBool(cmp >= 0), nil
	}
	return nil, raise("TypeError", "bad compare op")
}

func sameIdentity(a, b values.Value) bool {
	switch av := a.(type) {
	case values.NoneType:
		_, ok := b.(values.NoneType)
		return ok
	case values.Bool:
		bv, ok := b.(values.Bool)
		return ok && av.V == bv.V
	}
	return a == b
}

// containsOp implements `in` for the container kinds the VM needs to
// support: str substring, list/tuple/set membership, dict key
// membership.
func containsOp(item, container values.Value) (bool, *PyError) {
	switch c := container.(type) {
	case values.Str:
		s, ok := item.(values.Str)
		if !ok {
			return false, raise("TypeError", "'in <string>' requires string as left operand, not %s", values.TypeName(item))
		}
		return strings.Contains(c.V, s.V), nil
	case *values.List:
		for _, e := range c.Elems {
			if values.Equal(e, item) {
				return true, nil
			}
		}
		return false, nil
	case values.Tuple:
		for _, e := range c.Elems {
			if values.Equal(e, item) {
				return true, nil
			}
		}
		return false, nil
	case *values.Set:
		return c.Contains(item), nil
	case *values.Dict:
		_, ok := c.Get(item)
		return ok, nil
	}
	return false, raise("TypeError", "argument of type '%s' is not iterable", values.TypeName(container))
}

func inplaceOp(op compiler.BinOp, a, b values.Value) (values.Value, *PyError) {
	if l, ok := a.(*values.List); ok && op == compiler.BIN_ADD {
		items, err := materialize(b)
		if err != nil {
			return nil, err
		}
		l.Elems = append(l.Elems, items...)
		return l, nil
	}
	return binaryOp(op, a, b)
}
