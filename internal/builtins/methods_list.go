package builtins

import (
	"sort"

	"github.com/pyvm/pyvm/internal/values"
)

func (r *Registry) listMethod(name string) (methodFn, bool) {
	switch name {
	case "append":
		return func(args []values.Value, kwargs map[string]values.Value) (values.Value, error) {
			l := args[0].(*values.List)
			l.Elems = append(l.Elems, args[1])
			return values.None, nil
		}, true
	case "pop":
		return func(args []values.Value, kwargs map[string]values.Value) (values.Value, error) {
			l := args[0].(*values.List)
			if len(l.Elems) == 0 {
				return nil, pyErr("IndexError", "pop from empty list")
			}
			idx := len(l.Elems) - 1
			if len(args) > 1 {
				bi, _ := asBigInt(args[1])
				idx = int(bi.Int64())
				if idx < 0 {
					idx += len(l.Elems)
				}
			}
			if idx < 0 || idx >= len(l.Elems) {
				return nil, pyErr("IndexError", "pop index out of range")
			}
			v := l.Elems[idx]
			l.Elems = append(l.Elems[:idx], l.Elems[idx+1:]...)
			return v, nil
		}, true
	case "extend":
		return func(args []values.Value, kwargs map[string]values.Value) (values.Value, error) {
			l := args[0].(*values.List)
			more, err := materialize(args[1])
			if err != nil {
				return nil, err
			}
			l.Elems = append(l.Elems, more...)
			return values.None, nil
		}, true
	case "count":
		return func(args []values.Value, kwargs map[string]values.Value) (values.Value, error) {
			l := args[0].(*values.List)
			n := 0
			for _, e := range l.Elems {
				if values.Equal(e, args[1]) {
					n++
				}
			}
			return values.NewInt(int64(n)), nil
		}, true
	case "index":
		return func(args []values.Value, kwargs map[string]values.Value) (values.Value, error) {
			l := args[0].(*values.List)
			for i, e := range l.Elems {
				if values.Equal(e, args[1]) {
					return values.NewInt(int64(i)), nil
				}
			}
			return nil, valueErr("%s is not in list", values.Repr(args[1]))
		}, true
	case "reverse":
		return func(args []values.Value, kwargs map[string]values.Value) (values.Value, error) {
			l := args[0].(*values.List)
			for i, j := 0, len(l.Elems)-1; i < j; i, j = i+1, j-1 {
				l.Elems[i], l.Elems[j] = l.Elems[j], l.Elems[i]
			}
			return values.None, nil
		}, true
	case "sort":
		return func(args []values.Value, kwargs map[string]values.Value) (values.Value, error) {
			l := args[0].(*values.List)
			keyFn, hasKey := kwargs["key"]
			reverse := false
			if rv, ok := kwargs["reverse"]; ok {
				reverse = rv.Truthy()
			}
			keys := l.Elems
			if hasKey {
				keys = make([]values.Value, len(l.Elems))
				for i, v := range l.Elems {
					k, err := r.call(keyFn, []values.Value{v})
					if err != nil {
						return nil, err
					}
					keys[i] = k
				}
			}
			idx := make([]int, len(l.Elems))
			for i := range idx {
				idx[i] = i
			}
			var sortErr error
			sort.SliceStable(idx, func(a, b int) bool {
				cmp, ok := values.Compare(keys[idx[a]], keys[idx[b]])
				if !ok {
					sortErr = typeErr("'<' not supported between instances of '%s' and '%s'",
						values.TypeName(keys[idx[a]]), values.TypeName(keys[idx[b]]))
					return false
				}
				if reverse {
					return cmp > 0
				}
				return cmp < 0
			})
			if sortErr != nil {
				return nil, sortErr
			}
			sorted := make([]values.Value, len(l.Elems))
			for i, j := range idx {
				sorted[i] = l.Elems[j]
			}
			l.Elems = sorted
			return values.None, nil
		}, true
	}
	return nil, false
}
