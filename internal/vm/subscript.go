package vm

import "github.com/pyvm/pyvm/internal/values"

// sliceBounds resolves a Slice's possibly-None start/stop/step against
// a sequence of length n, applying Python's negative-index and
// clamping rules.
func sliceBounds(s values.Slice, n int) (start, stop, step int, err *PyError) {
	step = 1
	if iv, ok := s.Step.(values.Int); ok {
		step = int(iv.V.Int64())
	}
	if step == 0 {
		return 0, 0, 0, raise("ValueError", "slice step cannot be zero")
	}
	if step > 0 {
		start, stop = 0, n
	} else {
		start, stop = n-1, -n-1
	}
	if iv, ok := s.Start.(values.Int); ok {
		start = normalizeIndex(int(iv.V.Int64()), n, step > 0)
	}
	if iv, ok := s.Stop.(values.Int); ok {
		stop = normalizeIndex(int(iv.V.Int64()), n, step > 0)
	}
	return start, stop, step, nil
}

func normalizeIndex(i, n int, forward bool) int {
	if i < 0 {
		i += n
	}
	if forward {
		if i < 0 {
			return 0
		}
		if i > n {
			return n
		}
	} else {
		if i < -1 {
			return -1
		}
		if i >= n {
			return n - 1
		}
	}
	return i
}

func sliceIndices(start, stop, step int) []int {
	var out []int
	if step > 0 {
		for i := start; i < stop; i += step {
			out = append(out, i)
		}
	} else {
		for i := start; i > stop; i += step {
			out = append(out, i)
		}
	}
	return out
}

func resolveIndex(idx values.Value, n int) (int, *PyError) {
	iv, ok := idx.(values.Int)
	if !ok {
		if bv, ok := idx.(values.Bool); ok {
			i := 0
			if bv.V {
				i = 1
			}
			return resolveIndex(values.NewInt(int64(i)), n)
		}
		return 0, raise("TypeError", "indices must be integers, not %s", values.TypeName(idx))
	}
	i := int(iv.V.Int64())
	if i < 0 {
		i += n
	}
	if i < 0 || i >= n {
		return 0, raise("IndexError", "index out of range")
	}
	return i, nil
}

func (it *Interp) subscriptGet(container, index values.Value) (values.Value, *PyError) {
	switch c := container.(type) {
	case *values.List:
		if s, ok := index.(values.Slice); ok {
			start, stop, step, err := sliceBounds(s, len(c.Elems))
			if err != nil {
				return nil, err
			}
			var out []values.Value
			for _, i := range sliceIndices(start, stop, step) {
				out = append(out, c.Elems[i])
			}
			return values.NewList(out...), nil
		}
		i, err := resolveIndex(index, len(c.Elems))
		if err != nil {
			return nil, err
		}
		return c.Elems[i], nil
	case values.Tuple:
		if s, ok := index.(values.Slice); ok {
			start, stop, step, err := sliceBounds(s, len(c.Elems))
			if err != nil {
				return nil, err
			}
			var out []values.Value
			for _, i := range sliceIndices(start, stop, step) {
				out = append(out, c.Elems[i])
			}
			return values.NewTuple(out...), nil
		}
		i, err := resolveIndex(index, len(c.Elems))
		if err != nil {
			return nil, err
		}
		return c.Elems[i], nil
	case values.Str:
		runes := []rune(c.V)
		if s, ok := index.(values.Slice); ok {
			start, stop, step, err := sliceBounds(s, len(runes))
			if err != nil {
				return nil, err
			}
			var out []rune
			for _, i := range sliceIndices(start, stop, step) {
				out = append(out, runes[i])
			}
			return values.NewStr(string(out)), nil
		}
		i, err := resolveIndex(index, len(runes))
		if err != nil {
			return nil, err
		}
		return values.NewStr(string(runes[i])), nil
	case *values.Dict:
		v, ok := c.Get(index)
		if !ok {
			return nil, raise("KeyError", "%s", values.Repr(index))
		}
		return v, nil
	case values.Range:
		i, err := resolveIndex(index, c.Len())
		if err != nil {
			return nil, err
		}
		return values.NewInt(c.At(i)), nil
	}
	return nil, raise("TypeError", "'%s' object is not subscriptable", values.TypeName(container))
}

func (it *Interp) subscriptSet(container, index, v values.Value) *PyError {
	switch c := container.(type) {
	case *values.List:
		i, err := resolveIndex(index, len(c.Elems))
		if err != nil {
			return err
		}
		c.Elems[i] = v
		return nil
	case *values.Dict:
		c.Set(index, v)
		return nil
	}
	return raise("TypeError", "'%s' object does not support item assignment", values.TypeName(container))
}

func (it *Interp) subscriptDelete(container, index values.Value) *PyError {
	switch c := container.(type) {
	case *values.List:
		i, err := resolveIndex(index, len(c.Elems))
		if err != nil {
			return err
		}
		c.Elems = append(c.Elems[:i], c.Elems[i+1:]...)
		return nil
	case *values.Dict:
		if !c.Delete(index) {
			return raise("KeyError", "%s", values.Repr(index))
		}
		return nil
	}
	return raise("TypeError", "'%s' object doesn't support item deletion", values.TypeName(container))
}
