package vm

import (
	"fmt"

	"github.com/pyvm/pyvm/internal/values"
)

// PyError carries a catchable Python-level exception up through Go's
// own call stack. Every opcode handler that can fail returns one
// instead of panicking, the explicit Ok/Err(ExcValue) discriminant the
// design favors over recover()-based control flow.
type PyError struct {
	Exc *values.Exception
}

func (e *PyError) Error() string {
	return e.Exc.ClassName + ": " + excMessage(e.Exc)
}

func raise(className, format string, args ...any) *PyError {
	return &PyError{Exc: values.NewException(className, values.NewStr(fmt.Sprintf(format, args...)))}
}

func raiseValue(exc *values.Exception) *PyError { return &PyError{Exc: exc} }

func excMessage(e *values.Exception) string {
	if len(e.Args) == 0 {
		return ""
	}
	return e.Args[0].String()
}
