package builtins

import "github.com/pyvm/pyvm/internal/values"

func (r *Registry) setMethod(name string) (methodFn, bool) {
	switch name {
	case "add":
		return func(args []values.Value, kwargs map[string]values.Value) (values.Value, error) {
			args[0].(*values.Set).Add(args[1])
			return values.None, nil
		}, true
	case "update":
		return func(args []values.Value, kwargs map[string]values.Value) (values.Value, error) {
			s := args[0].(*values.Set)
			more, err := materialize(args[1])
			if err != nil {
				return nil, err
			}
			for _, v := range more {
				s.Add(v)
			}
			return values.None, nil
		}, true
	case "remove":
		return func(args []values.Value, kwargs map[string]values.Value) (values.Value, error) {
			s := args[0].(*values.Set)
			if !s.Remove(args[1]) {
				return nil, pyErr("KeyError", "%s", values.Repr(args[1]))
			}
			return values.None, nil
		}, true
	case "discard":
		return func(args []values.Value, kwargs map[string]values.Value) (values.Value, error) {
			args[0].(*values.Set).Remove(args[1])
			return values.None, nil
		}, true
	case "union":
		return func(args []values.Value, kwargs map[string]values.Value) (values.Value, error) {
			return setCombine(args[0].(*values.Set), args[1:], func(a, b bool) bool { return a || b })
		}, true
	case "intersection":
		return func(args []values.Value, kwargs map[string]values.Value) (values.Value, error) {
			return setCombine(args[0].(*values.Set), args[1:], func(a, b bool) bool { return a && b })
		}, true
	case "difference":
		return func(args []values.Value, kwargs map[string]values.Value) (values.Value, error) {
			return setCombine(args[0].(*values.Set), args[1:], func(a, b bool) bool { return a && !b })
		}, true
	case "symmetric_difference":
		return func(args []values.Value, kwargs map[string]values.Value) (values.Value, error) {
			return setCombine(args[0].(*values.Set), args[1:], func(a, b bool) bool { return a != b })
		}, true
	}
	return nil, false
}

// setCombine underlies union/intersection/difference/symmetric_difference,
// which all reduce to "keep elements present in self and/or each other
// operand" with a different membership predicate.
func setCombine(self *values.Set, others []values.Value, keep func(inSelf, inOther bool) bool) (values.Value, error) {
	out := values.NewSet()
	other, ok := others[0].(*values.Set)
	if !ok {
		elems, err := materialize(others[0])
		if err != nil {
			return nil, err
		}
		other = values.NewSet()
		for _, e := range elems {
			other.Add(e)
		}
	}
	for _, e := range self.Elems() {
		if keep(true, other.Contains(e)) {
			out.Add(e)
		}
	}
	for _, e := range other.Elems() {
		if !self.Contains(e) && keep(false, true) {
			out.Add(e)
		}
	}
	return out, nil
}
