package builtins

import (
	"fmt"
	"math/big"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/pyvm/pyvm/internal/values"
)

func arg(args []values.Value, i int) values.Value {
	if i < len(args) {
		return args[i]
	}
	return nil
}

func (r *Registry) registerFunctions() {
	r.registerIO()
	r.registerConversions()
	r.registerIterHelpers()
	r.registerNumeric()
	r.registerIntrospection()
}

// ---- print, open ----

func (r *Registry) registerIO() {
	r.def("print", func(args []values.Value, kwargs map[string]values.Value) (values.Value, error) {
		sep, end := " ", "\n"
		if s, ok := kwargs["sep"]; ok {
			sep = s.String()
		}
		if e, ok := kwargs["end"]; ok {
			end = e.String()
		}
		parts := make([]string, len(args))
		for i, a := range args {
			parts[i] = a.String()
		}
		fmt.Fprint(r.out, strings.Join(parts, sep)+end)
		return values.None, nil
	})

	r.def("open", func(args []values.Value, kwargs map[string]values.Value) (values.Value, error) {
		if len(args) < 1 {
			return nil, typeErr("open() missing required argument: 'file'")
		}
		name := args[0].String()
		mode := "r"
		if len(args) > 1 {
			mode = args[1].String()
		}
		if m, ok := kwargs["mode"]; ok {
			mode = m.String()
		}
		if strings.Contains(mode, "r") {
			data, err := os.ReadFile(name)
			if err != nil {
				return nil, pyErr("FileNotFoundError", "[Errno 2] No such file or directory: '%s'", name)
			}
			return &values.File{Name: name, Mode: mode, Lines: splitLines(string(data))}, nil
		}
		return &values.File{Name: name, Mode: mode}, nil
	})
}

func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	lines := strings.SplitAfter(s, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

// ---- type constructors / conversions ----

func (r *Registry) registerConversions() {
	r.def("len", func(args []values.Value, kwargs map[string]values.Value) (values.Value, error) {
		v := arg(args, 0)
		switch t := v.(type) {
		case values.Str:
			return values.NewInt(int64(len([]rune(t.V)))), nil
		case *values.List:
			return values.NewInt(int64(len(t.Elems))), nil
		case values.Tuple:
			return values.NewInt(int64(len(t.Elems))), nil
		case *values.Dict:
			return values.NewInt(int64(t.Len())), nil
		case *values.Set:
			return values.NewInt(int64(t.Len())), nil
		case values.Range:
			return values.NewInt(int64(t.Len())), nil
		}
		return nil, typeErr("object of type '%s' has no len()", values.TypeName(v))
	})

	r.def("range", func(args []values.Value, kwargs map[string]values.Value) (values.Value, error) {
		var start, stop, step int64 = 0, 0, 1
		ints := make([]int64, 0, len(args))
		for _, a := range args {
			bi, ok := asBigInt(a)
			if !ok {
				return nil, typeErr("'%s' object cannot be interpreted as an integer", values.TypeName(a))
			}
			ints = append(ints, bi.Int64())
		}
		switch len(ints) {
		case 1:
			stop = ints[0]
		case 2:
			start, stop = ints[0], ints[1]
		case 3:
			start, stop, step = ints[0], ints[1], ints[2]
		default:
			return nil, typeErr("range expected 1 to 3 arguments, got %d", len(args))
		}
		if step == 0 {
			return nil, valueErr("range() arg 3 must not be zero")
		}
		return values.NewRange(start, stop, step), nil
	})

	r.def("list", func(args []values.Value, kwargs map[string]values.Value) (values.Value, error) {
		if len(args) == 0 {
			return values.NewList(), nil
		}
		elems, err := materialize(args[0])
		if err != nil {
			return nil, err
		}
		return &values.List{Elems: elems}, nil
	})

	r.def("tuple", func(args []values.Value, kwargs map[string]values.Value) (values.Value, error) {
		if len(args) == 0 {
			return values.NewTuple(), nil
		}
		elems, err := materialize(args[0])
		if err != nil {
			return nil, err
		}
		return values.NewTuple(elems...), nil
	})

	r.def("set", func(args []values.Value, kwargs map[string]values.Value) (values.Value, error) {
		s := values.NewSet()
		if len(args) == 0 {
			return s, nil
		}
		elems, err := materialize(args[0])
		if err != nil {
			return nil, err
		}
		for _, e := range elems {
			s.Add(e)
		}
		return s, nil
	})

	r.def("dict", func(args []values.Value, kwargs map[string]values.Value) (values.Value, error) {
		d := values.NewDict()
		if len(args) > 0 {
			pairs, err := materialize(args[0])
			if err != nil {
				return nil, err
			}
			for _, p := range pairs {
				t, ok := p.(values.Tuple)
				if !ok || len(t.Elems) != 2 {
					return nil, valueErr("dictionary update sequence element is not a 2-item sequence")
				}
				d.Set(t.Elems[0], t.Elems[1])
			}
		}
		for k, v := range kwargs {
			d.Set(values.NewStr(k), v)
		}
		return d, nil
	})

	r.def("str", func(args []values.Value, kwargs map[string]values.Value) (values.Value, error) {
		if len(args) == 0 {
			return values.NewStr(""), nil
		}
		return values.NewStr(args[0].String()), nil
	})

	r.def("int", func(args []values.Value, kwargs map[string]values.Value) (values.Value, error) {
		if len(args) == 0 {
			return values.NewInt(0), nil
		}
		base := 10
		if len(args) > 1 {
			bi, _ := asBigInt(args[1])
			if bi != nil {
				base = int(bi.Int64())
			}
		}
		switch t := args[0].(type) {
		case values.Str:
			bi, ok := parseIntLiteral(t.V, base)
			if !ok {
				return nil, valueErr("invalid literal for int() with base %d: %s", base, t.Repr())
			}
			return values.NewBigInt(bi), nil
		default:
			bi, ok := asBigInt(args[0])
			if !ok {
				return nil, typeErr("int() argument must be a string or a number, not '%s'", values.TypeName(args[0]))
			}
			return values.NewBigInt(bi), nil
		}
	})

	r.def("float", func(args []values.Value, kwargs map[string]values.Value) (values.Value, error) {
		if len(args) == 0 {
			return values.NewFloat(0), nil
		}
		if s, ok := args[0].(values.Str); ok {
			f, err := strconv.ParseFloat(strings.TrimSpace(s.V), 64)
			if err != nil {
				return nil, valueErr("could not convert string to float: %s", s.Repr())
			}
			return values.NewFloat(f), nil
		}
		f, ok := asFloat64(args[0])
		if !ok {
			return nil, typeErr("float() argument must be a string or a number, not '%s'", values.TypeName(args[0]))
		}
		return values.NewFloat(f), nil
	})

	r.def("bool", func(args []values.Value, kwargs map[string]values.Value) (values.Value, error) {
		if len(args) == 0 {
			return values.NewBool(false), nil
		}
		return values.NewBool(args[0].Truthy()), nil
	})

	r.def("type", func(args []values.Value, kwargs map[string]values.Value) (values.Value, error) {
		if len(args) != 1 {
			return nil, typeErr("type() takes 1 argument")
		}
		if inst, ok := args[0].(*values.Instance); ok {
			return inst.Class, nil
		}
		return values.NewStr(values.TypeName(args[0])), nil
	})

	r.def("isinstance", func(args []values.Value, kwargs map[string]values.Value) (values.Value, error) {
		if len(args) != 2 {
			return nil, typeErr("isinstance() takes 2 arguments")
		}
		return values.NewBool(isInstance(args[0], args[1])), nil
	})
}

func isInstance(v, typ values.Value) bool {
	candidates := []values.Value{typ}
	if t, ok := typ.(values.Tuple); ok {
		candidates = t.Elems
	}
	for _, c := range candidates {
		cls, ok := c.(*values.Class)
		if !ok {
			continue
		}
		switch t := v.(type) {
		case *values.Instance:
			if t.Class.IsSubclassOf(cls) {
				return true
			}
		case *values.Exception:
			if t.Class != nil && t.Class.IsSubclassOf(cls) {
				return true
			}
			if t.ClassName == cls.Name {
				return true
			}
		default:
			if string(v.Type()) == cls.Name {
				return true
			}
		}
	}
	return false
}

// ---- higher-order / iteration built-ins ----

func (r *Registry) registerIterHelpers() {
	r.def("enumerate", func(args []values.Value, kwargs map[string]values.Value) (values.Value, error) {
		if len(args) == 0 {
			return nil, typeErr("enumerate() missing required argument: 'iterable'")
		}
		var start int64
		if len(args) > 1 {
			bi, _ := asBigInt(args[1])
			if bi != nil {
				start = bi.Int64()
			}
		}
		c, err := iterOf(args[0])
		if err != nil {
			return nil, err
		}
		i := start
		return &values.IterState{Next: func() (values.Value, bool) {
			v, ok := c.next()
			if !ok {
				return nil, false
			}
			idx := values.NewInt(i)
			i++
			return values.NewTuple(idx, v), true
		}}, nil
	})

	r.def("zip", func(args []values.Value, kwargs map[string]values.Value) (values.Value, error) {
		cursors := make([]*cursor, len(args))
		for i, a := range args {
			c, err := iterOf(a)
			if err != nil {
				return nil, err
			}
			cursors[i] = c
		}
		return &values.IterState{Next: func() (values.Value, bool) {
			row := make([]values.Value, len(cursors))
			for i, c := range cursors {
				v, ok := c.next()
				if !ok {
					return nil, false
				}
				row[i] = v
			}
			return values.NewTuple(row...), true
		}}, nil
	})

	r.def("map", func(args []values.Value, kwargs map[string]values.Value) (values.Value, error) {
		if len(args) < 2 {
			return nil, typeErr("map() requires a function and at least one iterable")
		}
		fn := args[0]
		cursors := make([]*cursor, len(args)-1)
		for i, a := range args[1:] {
			c, err := iterOf(a)
			if err != nil {
				return nil, err
			}
			cursors[i] = c
		}
		return &values.IterState{Next: func() (values.Value, bool) {
			row := make([]values.Value, len(cursors))
			for i, c := range cursors {
				v, ok := c.next()
				if !ok {
					return nil, false
				}
				row[i] = v
			}
			v, err := r.call(fn, row)
			if err != nil {
				return nil, false
			}
			return v, true
		}}, nil
	})

	r.def("filter", func(args []values.Value, kwargs map[string]values.Value) (values.Value, error) {
		if len(args) != 2 {
			return nil, typeErr("filter() takes 2 arguments")
		}
		fn := args[0]
		c, err := iterOf(args[1])
		if err != nil {
			return nil, err
		}
		return &values.IterState{Next: func() (values.Value, bool) {
			for {
				v, ok := c.next()
				if !ok {
					return nil, false
				}
				keep := v.Truthy()
				if _, isNone := fn.(values.NoneType); !isNone {
					res, err := r.call(fn, []values.Value{v})
					if err != nil {
						return nil, false
					}
					keep = res.Truthy()
				}
				if keep {
					return v, true
				}
			}
		}}, nil
	})

	r.def("next", func(args []values.Value, kwargs map[string]values.Value) (values.Value, error) {
		if len(args) == 0 {
			return nil, typeErr("next() missing required argument: 'iterator'")
		}
		gen, ok := args[0].(*values.Generator)
		if ok {
			v, done, err := gen.Advance(values.None, nil, false)
			if err != nil {
				return nil, err
			}
			if done {
				if len(args) > 1 {
					return args[1], nil
				}
				return nil, pyErr("StopIteration", "")
			}
			return v, nil
		}
		it, ok := args[0].(*values.IterState)
		if !ok {
			return nil, typeErr("'%s' object is not an iterator", values.TypeName(args[0]))
		}
		v, ok := it.Next()
		if ok {
			return v, nil
		}
		if len(args) > 1 {
			return args[1], nil
		}
		return nil, pyErr("StopIteration", "")
	})

	r.def("iter", func(args []values.Value, kwargs map[string]values.Value) (values.Value, error) {
		if len(args) != 1 {
			return nil, typeErr("iter() takes 1 argument")
		}
		c, err := iterOf(args[0])
		if err != nil {
			return nil, err
		}
		return &values.IterState{Next: c.next}, nil
	})

	r.def("sorted", func(args []values.Value, kwargs map[string]values.Value) (values.Value, error) {
		if len(args) == 0 {
			return nil, typeErr("sorted() missing required argument: 'iterable'")
		}
		elems, err := materialize(args[0])
		if err != nil {
			return nil, err
		}
		out := append([]values.Value{}, elems...)
		keyFn, hasKey := kwargs["key"]
		reverse := false
		if rv, ok := kwargs["reverse"]; ok {
			reverse = rv.Truthy()
		}
		var sortErr error
		keys := out
		if hasKey {
			keys = make([]values.Value, len(out))
			for i, v := range out {
				k, err := r.call(keyFn, []values.Value{v})
				if err != nil {
					return nil, err
				}
				keys[i] = k
			}
		}
		idx := make([]int, len(out))
		for i := range idx {
			idx[i] = i
		}
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
		sorted := make([]values.Value, len(out))
		for i, j := range idx {
			sorted[i] = out[j]
		}
		return &values.List{Elems: sorted}, nil
	})

	r.def("reversed", func(args []values.Value, kwargs map[string]values.Value) (values.Value, error) {
		if len(args) != 1 {
			return nil, typeErr("reversed() takes 1 argument")
		}
		elems, err := materialize(args[0])
		if err != nil {
			return nil, err
		}
		i := len(elems) - 1
		return &values.IterState{Next: func() (values.Value, bool) {
			if i < 0 {
				return nil, false
			}
			v := elems[i]
			i--
			return v, true
		}}, nil
	})

	r.def("all", func(args []values.Value, kwargs map[string]values.Value) (values.Value, error) {
		elems, err := materialize(args[0])
		if err != nil {
			return nil, err
		}
		for _, v := range elems {
			if !v.Truthy() {
				return values.NewBool(false), nil
			}
		}
		return values.NewBool(true), nil
	})

	r.def("any", func(args []values.Value, kwargs map[string]values.Value) (values.Value, error) {
		elems, err := materialize(args[0])
		if err != nil {
			return nil, err
		}
		for _, v := range elems {
			if v.Truthy() {
				return values.NewBool(true), nil
			}
		}
		return values.NewBool(false), nil
	})

	r.def("sum", func(args []values.Value, kwargs map[string]values.Value) (values.Value, error) {
		elems, err := materialize(args[0])
		if err != nil {
			return nil, err
		}
		total := big.NewInt(0)
		isFloat := false
		var ftotal float64
		if len(args) > 1 {
			if f, ok := asFloat64(args[1]); ok {
				if _, isInt := asBigInt(args[1]); !isInt {
					isFloat = true
				}
				ftotal = f
			}
			if bi, ok := asBigInt(args[1]); ok && !isFloat {
				total.Set(bi)
			}
		}
		for _, v := range elems {
			if f, ok := v.(values.Float); ok {
				if !isFloat {
					ft, _ := new(big.Float).SetInt(total).Float64()
					ftotal = ft
					isFloat = true
				}
				ftotal += f.V
				continue
			}
			bi, ok := asBigInt(v)
			if !ok {
				return nil, typeErr("unsupported operand type(s) for +: 'int' and '%s'", values.TypeName(v))
			}
			if isFloat {
				f, _ := new(big.Float).SetInt(bi).Float64()
				ftotal += f
			} else {
				total.Add(total, bi)
			}
		}
		if isFloat {
			return values.NewFloat(ftotal), nil
		}
		return values.NewBigInt(total), nil
	})

	r.def("min", func(args []values.Value, kwargs map[string]values.Value) (values.Value, error) {
		return r.extremum(args, kwargs, -1)
	})
	r.def("max", func(args []values.Value, kwargs map[string]values.Value) (values.Value, error) {
		return r.extremum(args, kwargs, 1)
	})
}

// extremum implements min/max: want is -1 for min, 1 for max.
func (r *Registry) extremum(args []values.Value, kwargs map[string]values.Value, want int) (values.Value, error) {
	var elems []values.Value
	if len(args) == 1 {
		var err error
		elems, err = materialize(args[0])
		if err != nil {
			return nil, err
		}
	} else {
		elems = args
	}
	if len(elems) == 0 {
		if d, ok := kwargs["default"]; ok {
			return d, nil
		}
		return nil, valueErr("arg is an empty sequence")
	}
	keyFn, hasKey := kwargs["key"]
	best := elems[0]
	bestKey := best
	if hasKey {
		k, err := r.call(keyFn, []values.Value{best})
		if err != nil {
			return nil, err
		}
		bestKey = k
	}
	for _, v := range elems[1:] {
		k := v
		if hasKey {
			kv, err := r.call(keyFn, []values.Value{v})
			if err != nil {
				return nil, err
			}
			k = kv
		}
		cmp, ok := values.Compare(k, bestKey)
		if !ok {
			return nil, typeErr("'>' not supported between instances of '%s' and '%s'", values.TypeName(k), values.TypeName(bestKey))
		}
		if cmp*want > 0 {
			best, bestKey = v, k
		}
	}
	return best, nil
}
