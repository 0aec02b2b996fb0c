package builtins

import (
	"os"
	"strings"

	"github.com/pyvm/pyvm/internal/values"
)

func (r *Registry) fileMethod(name string) (methodFn, bool) {
	switch name {
	case "read":
		return func(args []values.Value, kwargs map[string]values.Value) (values.Value, error) {
			f := args[0].(*values.File)
			rest := strings.Join(f.Lines[f.Pos:], "")
			f.Pos = len(f.Lines)
			return values.NewStr(rest), nil
		}, true
	case "readline":
		return func(args []values.Value, kwargs map[string]values.Value) (values.Value, error) {
			f := args[0].(*values.File)
			if f.Pos >= len(f.Lines) {
				return values.NewStr(""), nil
			}
			line := f.Lines[f.Pos]
			f.Pos++
			return values.NewStr(line), nil
		}, true
	case "readlines":
		return func(args []values.Value, kwargs map[string]values.Value) (values.Value, error) {
			f := args[0].(*values.File)
			elems := make([]values.Value, 0, len(f.Lines)-f.Pos)
			for ; f.Pos < len(f.Lines); f.Pos++ {
				elems = append(elems, values.NewStr(f.Lines[f.Pos]))
			}
			return &values.List{Elems: elems}, nil
		}, true
	case "write":
		return func(args []values.Value, kwargs map[string]values.Value) (values.Value, error) {
			f := args[0].(*values.File)
			s := args[1].(values.Str).V
			out, err := os.OpenFile(f.Name, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
			if err != nil {
				return nil, pyErr("FileNotFoundError", "[Errno 2] No such file or directory: '%s'", f.Name)
			}
			defer out.Close()
			n, _ := out.WriteString(s)
			return values.NewInt(int64(n)), nil
		}, true
	case "close":
		return func(args []values.Value, kwargs map[string]values.Value) (values.Value, error) {
			args[0].(*values.File).Closed = true
			return values.None, nil
		}, true
	case "__enter__":
		return func(args []values.Value, kwargs map[string]values.Value) (values.Value, error) {
			return args[0], nil
		}, true
	case "__exit__":
		return func(args []values.Value, kwargs map[string]values.Value) (values.Value, error) {
			args[0].(*values.File).Closed = true
			return values.NewBool(false), nil
		}, true
	}
	return nil, false
}

func (r *Registry) generatorMethod(name string) (methodFn, bool) {
	switch name {
	case "send":
		return func(args []values.Value, kwargs map[string]values.Value) (values.Value, error) {
			g := args[0].(*values.Generator)
			var send values.Value = values.None
			if len(args) > 1 {
				send = args[1]
			}
			v, done, err := g.Advance(send, nil, false)
			if err != nil {
				return nil, err
			}
			if done {
				return nil, pyErr("StopIteration", "")
			}
			return v, nil
		}, true
	case "throw":
		return func(args []values.Value, kwargs map[string]values.Value) (values.Value, error) {
			g := args[0].(*values.Generator)
			className := "Exception"
			var msg values.Value = values.NewStr("")
			if len(args) > 1 {
				if s, ok := args[1].(values.Str); ok {
					className = s.V
				} else if c, ok := args[1].(*values.Class); ok {
					className = c.Name
				}
			}
			if len(args) > 2 {
				msg = args[2]
			}
			exc := values.NewException(className, msg)
			v, done, err := g.Advance(values.None, exc, false)
			if err != nil {
				return nil, err
			}
			if done {
				return nil, pyErr("StopIteration", "")
			}
			return v, nil
		}, true
	case "close":
		return func(args []values.Value, kwargs map[string]values.Value) (values.Value, error) {
			g := args[0].(*values.Generator)
			_, _, err := g.Advance(values.None, nil, true)
			if err != nil {
				return nil, err
			}
			return values.None, nil
		}, true
	}
	return nil, false
}
