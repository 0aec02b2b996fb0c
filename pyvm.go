// Package pyvm is the public entry point: Run and RunFile compile and
// execute a Python-subset program, re-exporting internal/runtime's
// Interpreter so callers never need to reach into internal/ themselves.
package pyvm

import (
	"io"

	"github.com/pyvm/pyvm/internal/config"
	"github.com/pyvm/pyvm/internal/runtime"
	"github.com/pyvm/pyvm/internal/values"
)

// Run compiles and executes source as a standalone program, writing
// its output to stdout, and returns the value of its final top-level
// statement when that statement is an expression, None otherwise.
func Run(source string) (values.Value, error) {
	return New(nil).Run(source)
}

// RunFile compiles and executes the program at path.
func RunFile(path string) (values.Value, error) {
	return New(nil).RunFile(path)
}

// Interpreter is a reusable program runner: construct one with New to
// control where output goes or to load pyvm.yaml from a specific
// directory, then call Run/RunFile any number of times.
type Interpreter = runtime.Interpreter

// New builds an Interpreter writing to out (nil defaults to os.Stdout)
// configured by an optional WithConfig (none means no pyvm.yaml overrides).
func New(out io.Writer, opts ...Option) *Interpreter {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	return runtime.New(o.config, out)
}

type options struct {
	config *config.Config
}

// Option configures an Interpreter built with New.
type Option func(*options)

// WithConfig attaches a pyvm.yaml already loaded via internal/config.
func WithConfig(cfg *config.Config) Option {
	return func(o *options) { o.config = cfg }
}
