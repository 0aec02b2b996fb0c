package vm

import "github.com/pyvm/pyvm/internal/values"

// getIter wraps any iterable Value into the pull-based cursor FOR_ITER
// advances, the single place every container kind's iteration order is
// defined.
func getIter(v values.Value) (*values.IterState, *PyError) {
	switch c := v.(type) {
	case *values.IterState:
		return c, nil
	case *values.List:
		i := 0
		return &values.IterState{Next: func() (values.Value, bool) {
			if i >= len(c.Elems) {
				return nil, false
			}
			e := c.Elems[i]
			i++
			return e, true
		}}, nil
	case values.Tuple:
		i := 0
		return &values.IterState{Next: func() (values.Value, bool) {
			if i >= len(c.Elems) {
				return nil, false
			}
			e := c.Elems[i]
			i++
			return e, true
		}}, nil
	case values.Str:
		runes := []rune(c.V)
		i := 0
		return &values.IterState{Next: func() (values.Value, bool) {
			if i >= len(runes) {
				return nil, false
			}
			r := runes[i]
			i++
			return values.NewStr(string(r)), true
		}}, nil
	case *values.Set:
		elems := c.Elems()
		i := 0
		return &values.IterState{Next: func() (values.Value, bool) {
			if i >= len(elems) {
				return nil, false
			}
			e := elems[i]
			i++
			return e, true
		}}, nil
	case *values.Dict:
		keys := c.Keys()
		i := 0
		return &values.IterState{Next: func() (values.Value, bool) {
			if i >= len(keys) {
				return nil, false
			}
			k := keys[i]
			i++
			return k, true
		}}, nil
	case values.Range:
		i := 0
		n := c.Len()
		return &values.IterState{Next: func() (values.Value, bool) {
			if i >= n {
				return nil, false
			}
			v := c.At(i)
			i++
			return values.NewInt(v), true
		}}, nil
	case *values.Generator:
		return &values.IterState{Next: func() (values.Value, bool) {
			v, done, err := c.Advance(values.None, nil, false)
			if err != nil || done {
				return nil, false
			}
			return v, true
		}}, nil
	}
	return nil, raise("TypeError", "'%s' object is not iterable", values.TypeName(v))
}

// materialize fully expands an iterable into a slice, for
// UNPACK_SEQUENCE and any built-in that needs every element at once.
func materialize(v values.Value) ([]values.Value, *PyError) {
	it, err := getIter(v)
	if err != nil {
		return nil, err
	}
	var out []values.Value
	for {
		val, ok := it.Next()
		if !ok {
			return out, nil
		}
		out = append(out, val)
	}
}
