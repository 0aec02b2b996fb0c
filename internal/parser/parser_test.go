package parser_test

import (
	"testing"

	"github.com/pyvm/pyvm/internal/ast"
	"github.com/pyvm/pyvm/internal/lexer"
	"github.com/pyvm/pyvm/internal/parser"
)

func mustParse(t *testing.T, src string) *ast.Program {
	t.Helper()
	toks, errs := lexer.New(src).Scan()
	if len(errs) != 0 {
		t.Fatalf("lex errors: %v", errs)
	}
	prog, err := parser.New(toks).Parse()
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	return prog
}

func TestBinaryOperatorPrecedence(t *testing.T) {
	// 1 + 2 * 3 must bind as 1 + (2 * 3), not (1 + 2) * 3.
	prog := mustParse(t, "1 + 2 * 3\n")
	stmt := prog.Stmts[0].(*ast.ExprStmt)
	bin, ok := stmt.X.(*ast.Binary)
	if !ok {
		t.Fatalf("got %T, want *ast.Binary", stmt.X)
	}
	if bin.Op != "+" {
		t.Fatalf("top-level op = %q, want +", bin.Op)
	}
	rhs, ok := bin.Right.(*ast.Binary)
	if !ok || rhs.Op != "*" {
		t.Fatalf("right operand = %#v, want a '*' Binary", bin.Right)
	}
}

func TestUnaryMinusBindsLooserThanPower(t *testing.T) {
	prog := mustParse(t, "-1 ** 2\n")
	stmt := prog.Stmts[0].(*ast.ExprStmt)
	// Python: -1 ** 2 == -(1 ** 2) == -1, i.e. unary minus binds looser
	// than **, so the outermost node is the Unary.
	un, ok := stmt.X.(*ast.Unary)
	if !ok {
		t.Fatalf("got %T, want *ast.Unary", stmt.X)
	}
	if _, ok := un.Operand.(*ast.Binary); !ok {
		t.Fatalf("operand = %#v, want a Binary ('**')", un.Operand)
	}
}

func TestIfStatementThenElseBranches(t *testing.T) {
	prog := mustParse(t, "if x:\n    y = 1\nelse:\n    y = 2\n")
	ifs, ok := prog.Stmts[0].(*ast.If)
	if !ok {
		t.Fatalf("got %T, want *ast.If", prog.Stmts[0])
	}
	if len(ifs.Then) != 1 || len(ifs.Else) != 1 {
		t.Fatalf("then=%d else=%d, want 1 and 1", len(ifs.Then), len(ifs.Else))
	}
}

func TestAssignmentToMultipleTargetsChaining(t *testing.T) {
	prog := mustParse(t, "a = b = 1\n")
	assign, ok := prog.Stmts[0].(*ast.Assign)
	if !ok {
		t.Fatalf("got %T, want *ast.Assign", prog.Stmts[0])
	}
	if len(assign.Targets) != 2 {
		t.Fatalf("got %d targets, want 2", len(assign.Targets))
	}
}

func TestFunctionDefWithDefaultParams(t *testing.T) {
	prog := mustParse(t, "def f(a, b=1):\n    return a + b\n")
	fn, ok := prog.Stmts[0].(*ast.FunctionDef)
	if !ok {
		t.Fatalf("got %T, want *ast.FunctionDef", prog.Stmts[0])
	}
	if fn.Name != "f" || len(fn.Params) != 2 {
		t.Fatalf("got name=%q params=%d", fn.Name, len(fn.Params))
	}
}

func TestTryExceptFinallyStructure(t *testing.T) {
	prog := mustParse(t, "try:\n    x = 1\nexcept ValueError as e:\n    x = 2\nfinally:\n    x = 3\n")
	tr, ok := prog.Stmts[0].(*ast.Try)
	if !ok {
		t.Fatalf("got %T, want *ast.Try", prog.Stmts[0])
	}
	if len(tr.Handlers) != 1 {
		t.Fatalf("got %d handlers, want 1", len(tr.Handlers))
	}
	if len(tr.Finally) != 1 {
		t.Fatalf("got %d finally stmts, want 1", len(tr.Finally))
	}
}

func TestListComprehensionWithCondition(t *testing.T) {
	prog := mustParse(t, "[x for x in y if x > 0]\n")
	stmt := prog.Stmts[0].(*ast.ExprStmt)
	comp, ok := stmt.X.(*ast.ListComp)
	if !ok {
		t.Fatalf("got %T, want *ast.ListComp", stmt.X)
	}
	if len(comp.Generators) == 0 {
		t.Fatalf("expected at least one generator clause")
	}
}

func TestUnexpectedTokenReturnsSyntaxError(t *testing.T) {
	toks, errs := lexer.New("x = \n").Scan()
	if len(errs) != 0 {
		t.Fatalf("unexpected lex errors: %v", errs)
	}
	_, err := parser.New(toks).Parse()
	if err == nil {
		t.Fatal("expected a syntax error for a dangling '='")
	}
	if _, ok := err.(parser.SyntaxError); !ok {
		t.Fatalf("got %T, want parser.SyntaxError", err)
	}
}

func TestMatchStatementSequencePattern(t *testing.T) {
	prog := mustParse(t, "match p:\n    case [a, b]:\n        x = 1\n    case _:\n        x = 2\n")
	m, ok := prog.Stmts[0].(*ast.Match)
	if !ok {
		t.Fatalf("got %T, want *ast.Match", prog.Stmts[0])
	}
	if len(m.Cases) != 2 {
		t.Fatalf("got %d cases, want 2", len(m.Cases))
	}
	if _, ok := m.Cases[0].Pattern.(ast.MatchSequence); !ok {
		t.Fatalf("first case pattern = %T, want ast.MatchSequence", m.Cases[0].Pattern)
	}
	if _, ok := m.Cases[1].Pattern.(ast.MatchWildcard); !ok {
		t.Fatalf("second case pattern = %T, want ast.MatchWildcard", m.Cases[1].Pattern)
	}
}
