package builtins

import (
	"fmt"

	"github.com/pyvm/pyvm/internal/values"
)

// pyErr builds a *values.Exception for the named class — it implements
// error itself, so a built-in's Fn can return one directly and
// internal/vm's Call unwraps it by type assertion, preserving the
// exception's class instead of collapsing to a generic Exception.
func pyErr(class, format string, args ...any) error {
	return values.NewException(class, values.NewStr(fmt.Sprintf(format, args...)))
}

func typeErr(format string, args ...any) error  { return pyErr("TypeError", format, args...) }
func valueErr(format string, args ...any) error { return pyErr("ValueError", format, args...) }
