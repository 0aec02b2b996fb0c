package builtins

import (
	"math"
	"math/big"
	"reflect"
	"sort"

	"github.com/pyvm/pyvm/internal/values"
)

func (r *Registry) registerNumeric() {
	r.def("abs", func(args []values.Value, kwargs map[string]values.Value) (values.Value, error) {
		v := arg(args, 0)
		switch t := v.(type) {
		case values.Int:
			return values.NewBigInt(new(big.Int).Abs(t.V)), nil
		case values.Float:
			if t.V < 0 {
				return values.NewFloat(-t.V), nil
			}
			return t, nil
		case values.Bool:
			if t.V {
				return values.NewInt(1), nil
			}
			return values.NewInt(0), nil
		}
		return nil, typeErr("bad operand type for abs(): '%s'", values.TypeName(v))
	})

	r.def("round", func(args []values.Value, kwargs map[string]values.Value) (values.Value, error) {
		v := arg(args, 0)
		f, ok := asFloat64(v)
		if !ok {
			return nil, typeErr("type '%s' doesn't define __round__ method", values.TypeName(v))
		}
		if len(args) > 1 {
			ndigits, _ := asBigInt(args[1])
			n := float64(1)
			for i := int64(0); i < ndigits.Int64(); i++ {
				n *= 10
			}
			scaled := f * n
			rounded := float64(bankersRound(scaled)) / n
			return values.NewFloat(rounded), nil
		}
		return values.NewInt(bankersRound(f)), nil
	})

	r.def("divmod", func(args []values.Value, kwargs map[string]values.Value) (values.Value, error) {
		if len(args) != 2 {
			return nil, typeErr("divmod() takes 2 arguments")
		}
		a, b := args[0], args[1]
		ai, aok := asBigInt(a)
		bi, bok := asBigInt(b)
		if aok && bok {
			if bi.Sign() == 0 {
				return nil, pyErr("ZeroDivisionError", "integer division or modulo by zero")
			}
			q, m := pyDivMod(ai, bi)
			return values.NewTuple(values.NewBigInt(q), values.NewBigInt(m)), nil
		}
		af, aok2 := asFloat64(a)
		bf, bok2 := asFloat64(b)
		if aok2 && bok2 {
			if bf == 0 {
				return nil, pyErr("ZeroDivisionError", "float divmod()")
			}
			q := float64(int64(af / bf))
			m := af - q*bf
			return values.NewTuple(values.NewFloat(q), values.NewFloat(m)), nil
		}
		return nil, typeErr("unsupported operand type(s) for divmod()")
	})

	r.def("pow", func(args []values.Value, kwargs map[string]values.Value) (values.Value, error) {
		if len(args) < 2 {
			return nil, typeErr("pow() requires 2 or 3 arguments")
		}
		base, exp := args[0], args[1]
		bi, bok := asBigInt(base)
		ei, eok := asBigInt(exp)
		if bok && eok && ei.Sign() >= 0 {
			if len(args) == 3 {
				mi, _ := asBigInt(args[2])
				return values.NewBigInt(new(big.Int).Exp(bi, ei, mi)), nil
			}
			return values.NewBigInt(new(big.Int).Exp(bi, ei, nil)), nil
		}
		bf, _ := asFloat64(base)
		ef, _ := asFloat64(exp)
		return values.NewFloat(math.Pow(bf, ef)), nil
	})

	r.def("hex", func(args []values.Value, kwargs map[string]values.Value) (values.Value, error) {
		bi, ok := asBigInt(arg(args, 0))
		if !ok {
			return nil, typeErr("'%s' object cannot be interpreted as an integer", values.TypeName(arg(args, 0)))
		}
		return values.NewStr(formatIntBase(bi, "0x", 16)), nil
	})
	r.def("oct", func(args []values.Value, kwargs map[string]values.Value) (values.Value, error) {
		bi, ok := asBigInt(arg(args, 0))
		if !ok {
			return nil, typeErr("'%s' object cannot be interpreted as an integer", values.TypeName(arg(args, 0)))
		}
		return values.NewStr(formatIntBase(bi, "0o", 8)), nil
	})
	r.def("bin", func(args []values.Value, kwargs map[string]values.Value) (values.Value, error) {
		bi, ok := asBigInt(arg(args, 0))
		if !ok {
			return nil, typeErr("'%s' object cannot be interpreted as an integer", values.TypeName(arg(args, 0)))
		}
		return values.NewStr(formatIntBase(bi, "0b", 2)), nil
	})

	r.def("id", func(args []values.Value, kwargs map[string]values.Value) (values.Value, error) {
		return values.NewInt(identityOf(arg(args, 0))), nil
	})

	r.def("hash", func(args []values.Value, kwargs map[string]values.Value) (values.Value, error) {
		h, ok := arg(args, 0).Hash()
		if !ok {
			return nil, typeErr("unhashable type: '%s'", values.TypeName(arg(args, 0)))
		}
		return values.NewInt(int64(h)), nil
	})
}

// identityOf backs id(): the Go pointer value for heap-allocated
// container/object kinds, and the value's hash for the small
// immutables CPython interns — not a real memory address.
func identityOf(v values.Value) int64 {
	switch v.(type) {
	case *values.List, *values.Dict, *values.Set, *values.Instance,
		*values.Class, *values.Generator, *values.Module, *values.Exception,
		*values.Function, *values.BoundMethod, *values.Builtin, *values.File:
		return int64(reflect.ValueOf(v).Pointer())
	}
	h, _ := v.Hash()
	return int64(h)
}

func (r *Registry) registerIntrospection() {
	r.def("repr", func(args []values.Value, kwargs map[string]values.Value) (values.Value, error) {
		return values.NewStr(values.Repr(arg(args, 0))), nil
	})

	r.def("ord", func(args []values.Value, kwargs map[string]values.Value) (values.Value, error) {
		s, ok := arg(args, 0).(values.Str)
		runes := []rune(s.V)
		if !ok || len(runes) != 1 {
			return nil, typeErr("ord() expected a character")
		}
		return values.NewInt(int64(runes[0])), nil
	})
	r.def("chr", func(args []values.Value, kwargs map[string]values.Value) (values.Value, error) {
		bi, ok := asBigInt(arg(args, 0))
		if !ok {
			return nil, typeErr("an integer is required")
		}
		return values.NewStr(string(rune(bi.Int64()))), nil
	})

	r.def("callable", func(args []values.Value, kwargs map[string]values.Value) (values.Value, error) {
		switch arg(args, 0).(type) {
		case *values.Function, *values.Builtin, *values.BoundMethod, *values.Class:
			return values.NewBool(true), nil
		}
		return values.NewBool(false), nil
	})

	r.def("vars", func(args []values.Value, kwargs map[string]values.Value) (values.Value, error) {
		switch t := arg(args, 0).(type) {
		case *values.Instance:
			return t.Attrs, nil
		case *values.Module:
			return t.Globals, nil
		}
		return nil, typeErr("vars() argument must have a __dict__")
	})

	r.def("dir", func(args []values.Value, kwargs map[string]values.Value) (values.Value, error) {
		var names []string
		switch t := arg(args, 0).(type) {
		case *values.Instance:
			for _, k := range t.Attrs.Keys() {
				names = append(names, k.String())
			}
			collectMethodNames(t.Class, &names)
		case *values.Class:
			collectMethodNames(t, &names)
		case *values.Module:
			for _, k := range t.Globals.Keys() {
				names = append(names, k.String())
			}
		}
		sort.Strings(names)
		elems := make([]values.Value, len(names))
		for i, n := range names {
			elems[i] = values.NewStr(n)
		}
		return &values.List{Elems: elems}, nil
	})

	// super(Cls, obj) — the two-argument form; zero-argument super()
	// inside a method body is not supported (no compiler-side __class__
	// cell capture).
	r.def("super", func(args []values.Value, kwargs map[string]values.Value) (values.Value, error) {
		if len(args) != 2 {
			return nil, typeErr("super() requires the two-argument form super(Class, obj) in this interpreter")
		}
		cls, ok := args[0].(*values.Class)
		if !ok {
			return nil, typeErr("super() argument 1 must be a type")
		}
		if len(cls.Bases) == 0 {
			return nil, typeErr("super(): %s has no base class", cls.Name)
		}
		return &values.SuperProxy{Obj: args[1], Start: cls.Bases[0]}, nil
	})
}

func collectMethodNames(c *values.Class, out *[]string) {
	for name := range c.Methods {
		*out = append(*out, name)
	}
	for _, base := range c.Bases {
		collectMethodNames(base, out)
	}
}
