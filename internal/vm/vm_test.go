package vm_test

import (
	"bytes"
	"testing"

	"github.com/pyvm/pyvm/internal/builtins"
	"github.com/pyvm/pyvm/internal/compiler"
	"github.com/pyvm/pyvm/internal/lexer"
	"github.com/pyvm/pyvm/internal/parser"
	"github.com/pyvm/pyvm/internal/values"
	"github.com/pyvm/pyvm/internal/vm"
)

// runSource compiles and executes src against a fresh Interp, with no
// Importer configured (these tests never use import), returning
// whatever landed on stdout.
func runSource(t *testing.T, src string) string {
	t.Helper()

	lex := lexer.New(src)
	tokens, errs := lex.Scan()
	if len(errs) > 0 {
		t.Fatalf("lex errors: %v", errs)
	}
	prog, err := parser.New(tokens).Parse()
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	code, err := compiler.New().Compile(prog, "<test>")
	if err != nil {
		t.Fatalf("compile error: %v", err)
	}

	var out bytes.Buffer
	var interp *vm.Interp
	call := func(fn values.Value, args []values.Value) (values.Value, error) {
		v, perr := interp.Call(fn, args, nil)
		if perr != nil {
			return nil, perr
		}
		return v, nil
	}
	reg := builtins.New(call, &out)
	interp = vm.New(reg, nil)
	interp.Stdout = &out

	if _, _, perr := interp.RunModule(code); perr != nil {
		t.Fatalf("run error: %v", perr)
	}
	return out.String()
}

func TestRaiseBuiltinExceptionCarriesMessage(t *testing.T) {
	got := runSource(t, `
try:
    raise ValueError("bad input")
except ValueError as e:
    print(e.message)
`)
	if got != "bad input\n" {
		t.Errorf("got %q", got)
	}
}

func TestUserExceptionSubclassMatchesExcept(t *testing.T) {
	got := runSource(t, `
class MyError(Exception):
    pass

try:
    raise MyError("oops")
except Exception as e:
    print(type(e))
`)
	if got != "MyError\n" {
		t.Errorf("got %q", got)
	}
}

func TestUserExceptionInitSetsCustomAttribute(t *testing.T) {
	got := runSource(t, `
class CodedError(Exception):
    def __init__(self, code):
        self.code = code

try:
    raise CodedError(404)
except CodedError as e:
    print(e.code)
`)
	if got != "404\n" {
		t.Errorf("got %q", got)
	}
}

func TestAssertFailureRaisesAssertionError(t *testing.T) {
	got := runSource(t, `
try:
    assert 1 == 2, "nope"
except AssertionError as e:
    print(e.message)
`)
	if got != "nope\n" {
		t.Errorf("got %q", got)
	}
}

func TestWithStatementCallsEnterAndExit(t *testing.T) {
	got := runSource(t, `
class Ctx:
    def __enter__(self):
        print("enter")
        return 42
    def __exit__(self, exc_type, exc_value, tb):
        print("exit")
        return False

with Ctx() as x:
    print(x)
`)
	want := "enter\n42\nexit\n"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestWithStatementExitSuppressesException(t *testing.T) {
	got := runSource(t, `
class Swallow:
    def __enter__(self):
        return None
    def __exit__(self, *args):
        return True

with Swallow():
    raise ValueError("boom")
print("after")
`)
	if got != "after\n" {
		t.Errorf("got %q", got)
	}
}

func TestFunctionClosureSurvivesSecondModuleRun(t *testing.T) {
	lex := lexer.New("x = 1\ndef f():\n    return x\n")
	tokens, _ := lex.Scan()
	prog, _ := parser.New(tokens).Parse()
	code, err := compiler.New().Compile(prog, "<mod1>")
	if err != nil {
		t.Fatalf("compile: %v", err)
	}

	var out bytes.Buffer
	var interp *vm.Interp
	call := func(fn values.Value, args []values.Value) (values.Value, error) {
		v, perr := interp.Call(fn, args, nil)
		if perr != nil {
			return nil, perr
		}
		return v, nil
	}
	reg := builtins.New(call, &out)
	interp = vm.New(reg, nil)
	interp.Stdout = &out

	_, modScope, perr := interp.RunModule(code)
	if perr != nil {
		t.Fatalf("run mod1: %v", perr)
	}
	fn, ok := modScope.Lookup("f")
	if !ok {
		t.Fatal("f not found in module scope")
	}

	// Simulate an import: run a second, unrelated module through the
	// same Interp, which used to overwrite the shared modScope field
	// that every callFunction read its parent scope from.
	lex2 := lexer.New("y = 99\n")
	tokens2, _ := lex2.Scan()
	prog2, _ := parser.New(tokens2).Parse()
	code2, err := compiler.New().Compile(prog2, "<mod2>")
	if err != nil {
		t.Fatalf("compile mod2: %v", err)
	}
	if _, _, perr := interp.RunModule(code2); perr != nil {
		t.Fatalf("run mod2: %v", perr)
	}

	result, callErr := interp.Call(fn, nil, nil)
	if callErr != nil {
		t.Fatalf("calling f after mod2 ran: %v", callErr)
	}
	i, ok := result.(values.Int)
	if !ok || i.V.Int64() != 1 {
		t.Errorf("f() returned %v, want 1 (mod1's own x, not mod2's scope)", result)
	}
}
