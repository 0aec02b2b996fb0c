// Package runtime wires the lexer/parser/compiler/vm pipeline into the
// public Run/RunFile API: it owns the built-in registry, the module
// cache, and import resolution, the three things that only make sense
// once per program rather than once per compiled code object.
package runtime

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-multierror"

	"github.com/pyvm/pyvm/internal/builtins"
	"github.com/pyvm/pyvm/internal/compiler"
	"github.com/pyvm/pyvm/internal/config"
	"github.com/pyvm/pyvm/internal/lexer"
	"github.com/pyvm/pyvm/internal/parser"
	"github.com/pyvm/pyvm/internal/values"
	"github.com/pyvm/pyvm/internal/vm"
)

// Interpreter is one program run: a VM instance, its built-in
// registry, and the module cache/search path an import statement
// resolves against. Not safe for concurrent use by multiple goroutines
// running different top-level programs — the VM itself is single
// threaded and cooperative (generators yield control explicitly; there
// is no preemption).
type Interpreter struct {
	vm       *vm.Interp
	builtins *builtins.Registry

	entryDir   string
	searchPath []string // extra directories, from pyvm.yaml, searched after entryDir and cwd

	cache map[string]*values.Module // keyed by resolved absolute source path
}

// New builds an Interpreter writing program output to out (nil
// defaults to os.Stdout) and consulting cfg for additional module
// search directories and the trace flag. A nil cfg behaves like an
// empty one.
func New(cfg *config.Config, out io.Writer) *Interpreter {
	if cfg == nil {
		cfg = &config.Config{}
	}
	if out == nil {
		out = os.Stdout
	}
	it := &Interpreter{
		searchPath: cfg.SearchPath,
		cache:      make(map[string]*values.Module),
	}

	var vmInterp *vm.Interp
	call := func(fn values.Value, args []values.Value) (values.Value, error) {
		v, err := vmInterp.Call(fn, args, nil)
		if err != nil {
			return nil, err
		}
		return v, nil
	}
	it.builtins = builtins.New(call, out)
	vmInterp = vm.New(it.builtins, it)
	vmInterp.Stdout = out
	vmInterp.Trace = cfg.Trace
	it.vm = vmInterp
	return it
}

// Run compiles and executes source as an anonymous module, resolving
// any imports it contains against the process working directory.
func (it *Interpreter) Run(source string) (values.Value, error) {
	wd, err := os.Getwd()
	if err != nil {
		wd = "."
	}
	it.entryDir = wd
	return it.execute(source, "<string>")
}

// RunFile compiles and executes the source at path, resolving its
// imports against path's own directory first, then the process working
// directory, then any configured extra search directories.
func (it *Interpreter) RunFile(path string) (values.Value, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	it.entryDir = filepath.Dir(abs)
	return it.execute(string(data), abs)
}

func (it *Interpreter) execute(source, filename string) (values.Value, error) {
	code, err := compileSource(source, filename)
	if err != nil {
		return nil, err
	}
	v, _, perr := it.vm.RunModule(code)
	if perr != nil {
		return nil, perr
	}
	return v, nil
}

// compileSource runs the full lexer -> parser -> compiler pipeline,
// aggregating every lexer error (the lexer, unlike the parser, keeps
// scanning past a bad token) into one reportable error.
func compileSource(source, filename string) (*compiler.CodeObject, error) {
	lex := lexer.New(source)
	tokens, lexErrs := lex.Scan()
	if len(lexErrs) > 0 {
		var merr *multierror.Error
		for _, e := range lexErrs {
			merr = multierror.Append(merr, e)
		}
		return nil, merr
	}

	p := parser.New(tokens)
	prog, err := p.Parse()
	if err != nil {
		return nil, err
	}

	cmp := compiler.New()
	code, err := cmp.Compile(prog, filename)
	if err != nil {
		return nil, err
	}
	return code, nil
}

// Import satisfies vm.Importer: it resolves a (possibly dotted) module
// name to name.py or name/__init__.py, searching the entry file's
// directory, then the process working directory, then any configured
// extra search directories, compiling and running the module exactly
// once and caching the result by resolved path thereafter.
func (it *Interpreter) Import(name string) (*values.Module, error) {
	path, err := it.resolveModule(name)
	if err != nil {
		return nil, err
	}
	if mod, ok := it.cache[path]; ok {
		return mod, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	code, err := compileSource(string(data), path)
	if err != nil {
		return nil, err
	}
	_, modScope, perr := it.vm.RunModule(code)
	if perr != nil {
		return nil, perr
	}

	mod := &values.Module{Name: name, Path: path, Globals: values.NewDict()}
	for _, n := range modScope.Names() {
		v, _ := modScope.Lookup(n)
		mod.Globals.Set(values.NewStr(n), v)
	}
	it.cache[path] = mod
	return mod, nil
}

func (it *Interpreter) resolveModule(name string) (string, error) {
	rel := filepath.Join(strings.Split(name, ".")...)

	dirs := make([]string, 0, 2+len(it.searchPath))
	if it.entryDir != "" {
		dirs = append(dirs, it.entryDir)
	}
	if wd, err := os.Getwd(); err == nil {
		dirs = append(dirs, wd)
	}
	dirs = append(dirs, it.searchPath...)

	for _, dir := range dirs {
		asFile := filepath.Join(dir, rel+".py")
		if fi, err := os.Stat(asFile); err == nil && !fi.IsDir() {
			return filepath.Abs(asFile)
		}
		asPkg := filepath.Join(dir, rel, "__init__.py")
		if fi, err := os.Stat(asPkg); err == nil && !fi.IsDir() {
			return filepath.Abs(asPkg)
		}
	}
	return "", fmt.Errorf("no module named '%s'", name)
}
