package compiler_test

import (
	"testing"

	"github.com/pyvm/pyvm/internal/compiler"
	"github.com/pyvm/pyvm/internal/lexer"
	"github.com/pyvm/pyvm/internal/parser"
	"github.com/pyvm/pyvm/internal/values"
)

func mustCompile(t *testing.T, src string) *compiler.CodeObject {
	t.Helper()
	toks, errs := lexer.New(src).Scan()
	if len(errs) != 0 {
		t.Fatalf("lex errors: %v", errs)
	}
	prog, err := parser.New(toks).Parse()
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	code, err := compiler.New().Compile(prog, "<test>")
	if err != nil {
		t.Fatalf("compile error: %v", err)
	}
	return code
}

func countOp(ins compiler.Instructions, op compiler.Opcode) int {
	n := 0
	offset := 0
	for offset < len(ins) {
		if compiler.Opcode(ins[offset]) == op {
			n++
		}
		offset += compiler.InstructionWidth(compiler.Opcode(ins[offset]))
	}
	return n
}

func TestIfStatementEmitsConditionalAndUnconditionalJumps(t *testing.T) {
	code := mustCompile(t, "if x:\n    y = 1\nelse:\n    y = 2\n")
	if n := countOp(code.Instructions, compiler.OP_POP_JUMP_IF_FALSE); n != 1 {
		t.Errorf("got %d POP_JUMP_IF_FALSE, want 1", n)
	}
	if n := countOp(code.Instructions, compiler.OP_JUMP); n != 1 {
		t.Errorf("got %d JUMP, want 1", n)
	}
}

func TestWhileLoopIsBackwardsJump(t *testing.T) {
	code := mustCompile(t, "while x:\n    y = 1\n")
	if n := countOp(code.Instructions, compiler.OP_JUMP); n == 0 {
		t.Errorf("expected at least one JUMP closing the loop body")
	}
}

func TestIntegerConstantFoldedIntoConstantsPool(t *testing.T) {
	code := mustCompile(t, "x = 42\n")
	found := false
	for _, c := range code.ConstantsPool {
		if i, ok := c.(values.Int); ok && i.V.Int64() == 42 {
			found = true
		}
	}
	if !found {
		t.Errorf("expected 42 in constants pool, got %v", code.ConstantsPool)
	}
}

func TestFunctionCallEmitsOneCall(t *testing.T) {
	code := mustCompile(t, "f(1, 2, 3)\n")
	if n := countOp(code.Instructions, compiler.OP_CALL); n != 1 {
		t.Fatalf("got %d OP_CALL, want 1", n)
	}
}

func TestGeneratorFunctionDetectedFromYield(t *testing.T) {
	code := mustCompile(t, "def gen():\n    yield 1\n    yield 2\n")
	var inner *compiler.CodeObject
	for _, c := range code.ConstantsPool {
		if co, ok := c.(*compiler.CodeObject); ok && co.Name == "gen" {
			inner = co
		}
	}
	if inner == nil {
		t.Fatal("nested code object for 'gen' not found in constants pool")
	}
	if !inner.IsGenerator {
		t.Error("gen's code object should be marked IsGenerator")
	}
}

func TestNestedFunctionCapturesFreeVariable(t *testing.T) {
	code := mustCompile(t, "def outer():\n    x = 1\n    def inner():\n        return x\n    return inner\n")
	var outerCode *compiler.CodeObject
	for _, c := range code.ConstantsPool {
		if co, ok := c.(*compiler.CodeObject); ok && co.Name == "outer" {
			outerCode = co
		}
	}
	if outerCode == nil {
		t.Fatal("outer's code object not found")
	}
	var innerCode *compiler.CodeObject
	for _, c := range outerCode.ConstantsPool {
		if co, ok := c.(*compiler.CodeObject); ok && co.Name == "inner" {
			innerCode = co
		}
	}
	if innerCode == nil {
		t.Fatal("inner's code object not found")
	}
	found := false
	for _, n := range innerCode.FreeNames {
		if n == "x" {
			found = true
		}
	}
	if !found {
		t.Errorf("inner's FreeNames = %v, want to contain 'x'", innerCode.FreeNames)
	}
	foundCell := false
	for _, n := range outerCode.CellNames {
		if n == "x" {
			foundCell = true
		}
	}
	if !foundCell {
		t.Errorf("outer's CellNames = %v, want to contain 'x'", outerCode.CellNames)
	}
}

func TestDisassembleAllProducesOutput(t *testing.T) {
	code := mustCompile(t, "x = 1\ny = 2\n")
	text := compiler.DisassembleAll(code.Instructions)
	if text == "" {
		t.Fatal("expected non-empty disassembly")
	}
}
