package builtins

import "github.com/pyvm/pyvm/internal/values"

func (r *Registry) dictMethod(name string) (methodFn, bool) {
	switch name {
	case "items":
		return func(args []values.Value, kwargs map[string]values.Value) (values.Value, error) {
			d := args[0].(*values.Dict)
			items := d.Items()
			elems := make([]values.Value, len(items))
			for i, t := range items {
				elems[i] = t
			}
			return &values.List{Elems: elems}, nil
		}, true
	case "keys":
		return func(args []values.Value, kwargs map[string]values.Value) (values.Value, error) {
			d := args[0].(*values.Dict)
			return &values.List{Elems: d.Keys()}, nil
		}, true
	case "values":
		return func(args []values.Value, kwargs map[string]values.Value) (values.Value, error) {
			d := args[0].(*values.Dict)
			return &values.List{Elems: d.Values()}, nil
		}, true
	case "get":
		return func(args []values.Value, kwargs map[string]values.Value) (values.Value, error) {
			d := args[0].(*values.Dict)
			v, ok := d.Get(args[1])
			if ok {
				return v, nil
			}
			if len(args) > 2 {
				return args[2], nil
			}
			return values.None, nil
		}, true
	case "__contains__":
		return func(args []values.Value, kwargs map[string]values.Value) (values.Value, error) {
			d := args[0].(*values.Dict)
			_, ok := d.Get(args[1])
			return values.NewBool(ok), nil
		}, true
	case "pop":
		return func(args []values.Value, kwargs map[string]values.Value) (values.Value, error) {
			d := args[0].(*values.Dict)
			v, ok := d.Get(args[1])
			if !ok {
				if len(args) > 2 {
					return args[2], nil
				}
				return nil, pyErr("KeyError", "%s", values.Repr(args[1]))
			}
			d.Delete(args[1])
			return v, nil
		}, true
	case "setdefault":
		return func(args []values.Value, kwargs map[string]values.Value) (values.Value, error) {
			d := args[0].(*values.Dict)
			if v, ok := d.Get(args[1]); ok {
				return v, nil
			}
			def := values.Value(values.None)
			if len(args) > 2 {
				def = args[2]
			}
			d.Set(args[1], def)
			return def, nil
		}, true
	case "update":
		return func(args []values.Value, kwargs map[string]values.Value) (values.Value, error) {
			d := args[0].(*values.Dict)
			if len(args) > 1 {
				other, ok := args[1].(*values.Dict)
				if !ok {
					return nil, typeErr("'%s' object is not a mapping", values.TypeName(args[1]))
				}
				for _, k := range other.Keys() {
					v, _ := other.Get(k)
					d.Set(k, v)
				}
			}
			for k, v := range kwargs {
				d.Set(values.NewStr(k), v)
			}
			return values.None, nil
		}, true
	}
	return nil, false
}
