package vm

import "github.com/pyvm/pyvm/internal/values"

// getAttr implements LOAD_ATTR across every receiver kind that carries
// attributes: instances walk their class's MRO (binding methods to
// self), classes expose their own methods/attrs unbound, modules
// expose their globals, and everything else defers to the builtin
// method table (str.upper, list.append, and so on).
func (it *Interp) getAttr(receiver values.Value, name string) (values.Value, *PyError) {
	switch r := receiver.(type) {
	case *values.Instance:
		if v, ok := r.GetAttr(name); ok {
			return v, nil
		}
		if m, _ := r.Class.ResolveMethod(name); m != nil {
			return &values.BoundMethod{Receiver: r, Func: m}, nil
		}
		return nil, raise("AttributeError", "'%s' object has no attribute '%s'", r.Class.Name, name)
	case *values.Class:
		if m, ok := r.Methods[name]; ok {
			return m, nil
		}
		if v, ok := r.Attrs.Get(values.NewStr(name)); ok {
			return v, nil
		}
		for _, base := range r.Bases {
			if v, err := it.getAttr(base, name); err == nil {
				return v, nil
			}
		}
		return nil, raise("AttributeError", "type object '%s' has no attribute '%s'", r.Name, name)
	case *values.Module:
		if v, ok := r.Globals.Get(values.NewStr(name)); ok {
			return v, nil
		}
		return nil, raise("AttributeError", "module '%s' has no attribute '%s'", r.Name, name)
	case *values.SuperProxy:
		if m, _ := r.Start.ResolveMethod(name); m != nil {
			return &values.BoundMethod{Receiver: r.Obj, Func: m}, nil
		}
		return nil, raise("AttributeError", "'super' object has no attribute '%s'", name)
	case *values.Exception:
		if v, ok := r.Attrs.Get(values.NewStr(name)); ok {
			return v, nil
		}
		switch name {
		case "args":
			return values.NewTuple(r.Args...), nil
		case "message":
			if len(r.Args) > 0 {
				return r.Args[0], nil
			}
			return values.NewStr(""), nil
		}
		return nil, raise("AttributeError", "'%s' object has no attribute '%s'", r.ClassName, name)
	}
	if it.Builtins != nil {
		if v, ok := it.Builtins.MethodLookup(receiver, name); ok {
			return v, nil
		}
	}
	return nil, raise("AttributeError", "'%s' object has no attribute '%s'", values.TypeName(receiver), name)
}

func (it *Interp) setAttr(receiver values.Value, name string, v values.Value) *PyError {
	switch r := receiver.(type) {
	case *values.Instance:
		r.SetAttr(name, v)
		return nil
	case *values.Class:
		r.Attrs.Set(values.NewStr(name), v)
		return nil
	case *values.Module:
		r.Globals.Set(values.NewStr(name), v)
		return nil
	case *values.Exception:
		r.Attrs.Set(values.NewStr(name), v)
		return nil
	}
	return raise("AttributeError", "'%s' object attributes are read-only", values.TypeName(receiver))
}

func (it *Interp) deleteAttr(receiver values.Value, name string) *PyError {
	switch r := receiver.(type) {
	case *values.Instance:
		if r.Attrs.Delete(values.NewStr(name)) {
			return nil
		}
	case *values.Class:
		if r.Attrs.Delete(values.NewStr(name)) {
			return nil
		}
	case *values.Exception:
		if r.Attrs.Delete(values.NewStr(name)) {
			return nil
		}
	}
	return raise("AttributeError", "'%s' object has no attribute '%s'", values.TypeName(receiver), name)
}
