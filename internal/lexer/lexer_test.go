package lexer_test

import (
	"math/big"
	"testing"

	"github.com/pyvm/pyvm/internal/lexer"
	"github.com/pyvm/pyvm/internal/token"
)

func kinds(toks []token.Token) []token.Kind {
	ks := make([]token.Kind, len(toks))
	for i, t := range toks {
		ks[i] = t.Kind
	}
	return ks
}

func assertKinds(t *testing.T, toks []token.Token, want []token.Kind) {
	t.Helper()
	got := kinds(toks)
	if len(got) != len(want) {
		t.Fatalf("got %d tokens %v, want %d %v", len(got), got, len(want), want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("token %d: got %v, want %v", i, got[i], want[i])
		}
	}
}

func TestIndentDedentBracketsSiblingBlocks(t *testing.T) {
	src := "if x:\n    y = 1\n    z = 2\nw = 3\n"
	toks, errs := lexer.New(src).Scan()
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	// if x : NEWLINE INDENT y = 1 NEWLINE z = 2 NEWLINE DEDENT w = 3 NEWLINE EOF
	var indents, dedents int
	for _, tk := range toks {
		switch tk.Kind {
		case token.INDENT:
			indents++
		case token.DEDENT:
			dedents++
		}
	}
	if indents != 1 {
		t.Errorf("got %d INDENT tokens, want 1", indents)
	}
	if dedents != 1 {
		t.Errorf("got %d DEDENT tokens, want 1", dedents)
	}
	if toks[len(toks)-1].Kind != token.EOF {
		t.Errorf("last token kind = %v, want EOF", toks[len(toks)-1].Kind)
	}
}

func TestEOFSynthesizesTrailingDedents(t *testing.T) {
	// No trailing blank line or explicit dedent before EOF: the lexer
	// must still unwind every open indent level.
	src := "if x:\n    if y:\n        z = 1\n"
	toks, errs := lexer.New(src).Scan()
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	var dedents int
	for _, tk := range toks {
		if tk.Kind == token.DEDENT {
			dedents++
		}
	}
	if dedents != 2 {
		t.Errorf("got %d DEDENT tokens at EOF, want 2", dedents)
	}
	if toks[len(toks)-1].Kind != token.EOF {
		t.Errorf("last token kind = %v, want EOF", toks[len(toks)-1].Kind)
	}
}

func TestBracketsSuppressNewlineAndIndent(t *testing.T) {
	src := "x = [\n    1,\n    2,\n]\n"
	toks, errs := lexer.New(src).Scan()
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	for _, tk := range toks {
		if tk.Kind == token.INDENT || tk.Kind == token.DEDENT {
			t.Errorf("got %v token inside brackets, want none", tk.Kind)
		}
	}
}

func TestIntegerLiteralParsesAsBigInt(t *testing.T) {
	toks, errs := lexer.New("123456789012345678901234\n").Scan()
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if toks[0].Kind != token.NUMBER {
		t.Fatalf("got %v, want NUMBER", toks[0].Kind)
	}
	bi, ok := toks[0].Literal.(*big.Int)
	if !ok {
		t.Fatalf("literal is %T, want *big.Int", toks[0].Literal)
	}
	want, _ := new(big.Int).SetString("123456789012345678901234", 10)
	if bi.Cmp(want) != 0 {
		t.Errorf("got %s, want %s", bi.String(), want.String())
	}
}

func TestFloatLiteralParsesAsFloat64(t *testing.T) {
	toks, errs := lexer.New("3.14\n").Scan()
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	f, ok := toks[0].Literal.(float64)
	if !ok || f != 3.14 {
		t.Errorf("got %v (%T), want 3.14", toks[0].Literal, toks[0].Literal)
	}
}

func TestHexOctBinaryIntegerLiterals(t *testing.T) {
	cases := map[string]int64{
		"0xFF\n":  255,
		"0o17\n":  15,
		"0b101\n": 5,
	}
	for src, want := range cases {
		toks, errs := lexer.New(src).Scan()
		if len(errs) != 0 {
			t.Fatalf("%s: unexpected errors: %v", src, errs)
		}
		bi, ok := toks[0].Literal.(*big.Int)
		if !ok || bi.Int64() != want {
			t.Errorf("%s: got %v, want %d", src, toks[0].Literal, want)
		}
	}
}

func TestIdentifierVsKeywordClassification(t *testing.T) {
	toks, errs := lexer.New("def foo\n").Scan()
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if toks[0].Kind != token.KEYWORD {
		t.Errorf("'def' classified as %v, want KEYWORD", toks[0].Kind)
	}
	if toks[1].Kind != token.IDENT {
		t.Errorf("'foo' classified as %v, want IDENT", toks[1].Kind)
	}
}

func TestInvalidTokenRecordsErrorAndContinues(t *testing.T) {
	toks, errs := lexer.New("x = 1 $ y = 2\n").Scan()
	if len(errs) == 0 {
		t.Fatal("expected a lex error for '$'")
	}
	if toks[len(toks)-1].Kind != token.EOF {
		t.Errorf("scanning should still reach EOF after an illegal character")
	}
}
