package builtins

import (
	"strconv"
	"strings"

	"github.com/pyvm/pyvm/internal/values"
)

func (r *Registry) strMethod(name string) (methodFn, bool) {
	switch name {
	case "upper":
		return strFn(strings.ToUpper), true
	case "lower":
		return strFn(strings.ToLower), true
	case "strip":
		return func(args []values.Value, kwargs map[string]values.Value) (values.Value, error) {
			s := args[0].(values.Str).V
			if len(args) > 1 {
				cut := args[1].(values.Str).V
				return values.NewStr(strings.Trim(s, cut)), nil
			}
			return values.NewStr(strings.TrimSpace(s)), nil
		}, true
	case "startswith":
		return func(args []values.Value, kwargs map[string]values.Value) (values.Value, error) {
			s := args[0].(values.Str).V
			prefix := args[1].(values.Str).V
			return values.NewBool(strings.HasPrefix(s, prefix)), nil
		}, true
	case "endswith":
		return func(args []values.Value, kwargs map[string]values.Value) (values.Value, error) {
			s := args[0].(values.Str).V
			suffix := args[1].(values.Str).V
			return values.NewBool(strings.HasSuffix(s, suffix)), nil
		}, true
	case "split":
		return func(args []values.Value, kwargs map[string]values.Value) (values.Value, error) {
			s := args[0].(values.Str).V
			var parts []string
			if len(args) > 1 {
				parts = strings.Split(s, args[1].(values.Str).V)
			} else {
				parts = strings.Fields(s)
			}
			elems := make([]values.Value, len(parts))
			for i, p := range parts {
				elems[i] = values.NewStr(p)
			}
			return &values.List{Elems: elems}, nil
		}, true
	case "count":
		return func(args []values.Value, kwargs map[string]values.Value) (values.Value, error) {
			s := args[0].(values.Str).V
			sub := args[1].(values.Str).V
			return values.NewInt(int64(strings.Count(s, sub))), nil
		}, true
	case "join":
		return func(args []values.Value, kwargs map[string]values.Value) (values.Value, error) {
			sep := args[0].(values.Str).V
			elems, err := materialize(args[1])
			if err != nil {
				return nil, err
			}
			parts := make([]string, len(elems))
			for i, e := range elems {
				s, ok := e.(values.Str)
				if !ok {
					return nil, typeErr("sequence item %d: expected str instance, %s found", i, values.TypeName(e))
				}
				parts[i] = s.V
			}
			return values.NewStr(strings.Join(parts, sep)), nil
		}, true
	case "replace":
		return func(args []values.Value, kwargs map[string]values.Value) (values.Value, error) {
			s := args[0].(values.Str).V
			old := args[1].(values.Str).V
			new_ := args[2].(values.Str).V
			return values.NewStr(strings.ReplaceAll(s, old, new_)), nil
		}, true
	case "format":
		return func(args []values.Value, kwargs map[string]values.Value) (values.Value, error) {
			return values.NewStr(formatString(args[0].(values.Str).V, args[1:], kwargs)), nil
		}, true
	}
	return nil, false
}

func strFn(f func(string) string) methodFn {
	return func(args []values.Value, kwargs map[string]values.Value) (values.Value, error) {
		return values.NewStr(f(args[0].(values.Str).V)), nil
	}
}

// formatString implements str.format's positional `{}`/`{0}` and
// keyword `{name}` placeholders.
func formatString(tmpl string, positional []values.Value, named map[string]values.Value) string {
	var b strings.Builder
	auto := 0
	i := 0
	for i < len(tmpl) {
		c := tmpl[i]
		if c == '{' && i+1 < len(tmpl) && tmpl[i+1] == '{' {
			b.WriteByte('{')
			i += 2
			continue
		}
		if c == '}' && i+1 < len(tmpl) && tmpl[i+1] == '}' {
			b.WriteByte('}')
			i += 2
			continue
		}
		if c == '{' {
			end := strings.IndexByte(tmpl[i:], '}')
			if end < 0 {
				b.WriteString(tmpl[i:])
				break
			}
			field := tmpl[i+1 : i+end]
			i += end + 1
			if field == "" {
				if auto < len(positional) {
					b.WriteString(positional[auto].String())
				}
				auto++
				continue
			}
			if n, err := strconv.Atoi(field); err == nil && n < len(positional) {
				b.WriteString(positional[n].String())
				continue
			}
			if v, ok := named[field]; ok {
				b.WriteString(v.String())
				continue
			}
			continue
		}
		b.WriteByte(c)
		i++
	}
	return b.String()
}
