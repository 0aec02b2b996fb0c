package builtins

import "github.com/pyvm/pyvm/internal/values"

// cursor is a minimal pull iterator over any of the container kinds
// this package's functions accept, independent of internal/vm's own
// getIter (duplicating the handful of cases needed here keeps this
// package free of a vm import).
type cursor struct{ next func() (values.Value, bool) }

func iterOf(v values.Value) (*cursor, error) {
	switch c := v.(type) {
	case *values.IterState:
		return &cursor{next: c.Next}, nil
	case *values.List:
		i := 0
		return &cursor{next: func() (values.Value, bool) {
			if i >= len(c.Elems) {
				return nil, false
			}
			e := c.Elems[i]
			i++
			return e, true
		}}, nil
	case values.Tuple:
		i := 0
		return &cursor{next: func() (values.Value, bool) {
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
		return &cursor{next: func() (values.Value, bool) {
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
		return &cursor{next: func() (values.Value, bool) {
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
		return &cursor{next: func() (values.Value, bool) {
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
		return &cursor{next: func() (values.Value, bool) {
			if i >= n {
				return nil, false
			}
			val := c.At(i)
			i++
			return values.NewInt(val), true
		}}, nil
	case *values.Generator:
		return &cursor{next: func() (values.Value, bool) {
			val, done, err := c.Advance(values.None, nil, false)
			if err != nil || done {
				return nil, false
			}
			return val, true
		}}, nil
	}
	return nil, values.NewException("TypeError", values.NewStr("'"+values.TypeName(v)+"' object is not iterable"))
}

func materialize(v values.Value) ([]values.Value, error) {
	c, err := iterOf(v)
	if err != nil {
		return nil, err
	}
	var out []values.Value
	for {
		val, ok := c.next()
		if !ok {
			return out, nil
		}
		out = append(out, val)
	}
}
