package builtins

import "github.com/pyvm/pyvm/internal/values"

// registerExceptions builds the mandatory exception hierarchy plus the
// handful the VM itself raises internally (GeneratorExit on
// generator.close(), OverflowError on a ** overflow, KeyError/IndexError
// for container lookups) — all descend directly from Exception except
// UnboundLocalError, which descends from NameError.
func (r *Registry) registerExceptions() {
	exc := values.NewClass("Exception")
	r.exceptions["Exception"] = exc

	flat := []string{
		"AttributeError", "NameError", "ZeroDivisionError", "ValueError",
		"TypeError", "FileNotFoundError", "StopIteration", "ImportError",
		"RuntimeError", "AssertionError", "GeneratorExit", "OverflowError",
		"KeyError", "IndexError", "NotImplementedError", "StopAsyncIteration",
	}
	for _, name := range flat {
		r.exceptions[name] = values.NewClass(name, exc)
	}
	// UnboundLocalError is a NameError in CPython's own hierarchy.
	r.exceptions["UnboundLocalError"] = values.NewClass("UnboundLocalError", r.exceptions["NameError"])
}
