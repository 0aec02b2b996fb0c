package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/davecgh/go-spew/spew"
	"github.com/dustin/go-humanize"
	"github.com/google/subcommands"

	"github.com/pyvm/pyvm/internal/compiler"
	"github.com/pyvm/pyvm/internal/lexer"
	"github.com/pyvm/pyvm/internal/parser"
)

// dumpCmd implements the `dump` command: print a source file's AST and
// disassembled bytecode, for debugging. Never invoked by the test
// suite, only by a human.
type dumpCmd struct {
	ast  bool
	code bool
}

func (*dumpCmd) Name() string     { return "dump" }
func (*dumpCmd) Synopsis() string { return "Dump a file's AST and bytecode" }
func (*dumpCmd) Usage() string {
	return `dump <file.py>:
  Print the parsed AST and the disassembled bytecode for a source file.
`
}

func (cmd *dumpCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&cmd.ast, "ast", true, "print the parsed AST")
	f.BoolVar(&cmd.code, "bytecode", true, "print disassembled bytecode")
}

func (cmd *dumpCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	args := f.Args()
	if len(args) < 1 {
		fmt.Fprintf(os.Stderr, "💥 File not provided\n")
		return subcommands.ExitUsageError
	}
	filename := args[0]

	data, err := os.ReadFile(filename)
	if err != nil {
		fmt.Fprintf(os.Stderr, "💥 Failed to read file: %v\n", err)
		return subcommands.ExitFailure
	}
	fmt.Printf("%s (%s)\n\n", filename, humanize.Bytes(uint64(len(data))))

	lex := lexer.New(string(data))
	tokens, errs := lex.Scan()
	if len(errs) > 0 {
		for _, e := range errs {
			fmt.Fprintln(os.Stderr, e)
		}
		return subcommands.ExitFailure
	}

	p := parser.New(tokens)
	prog, err := p.Parse()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}

	if cmd.ast {
		fmt.Println("=== AST ===")
		spew.Dump(prog)
		fmt.Println()
	}

	if cmd.code {
		code, err := compiler.New().Compile(prog, filename)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return subcommands.ExitFailure
		}
		fmt.Println("=== bytecode ===")
		dumpCode(code, "")
	}

	return subcommands.ExitSuccess
}

// dumpCode prints one code object's disassembly, then recurses into
// every nested *compiler.CodeObject in its constant pool so closures
// and class bodies get their own listing too.
func dumpCode(code *compiler.CodeObject, indent string) {
	fmt.Printf("%s%s (%s):\n", indent, code.Name, humanize.Comma(int64(len(code.Instructions))))
	fmt.Print(indentLines(compiler.DisassembleAll(code.Instructions), indent+"  "))
	for _, c := range code.ConstantsPool {
		if nested, ok := c.(*compiler.CodeObject); ok {
			dumpCode(nested, indent+"  ")
		}
	}
}

func indentLines(s, prefix string) string {
	out := ""
	line := ""
	for _, r := range s {
		line += string(r)
		if r == '\n' {
			out += prefix + line
			line = ""
		}
	}
	if line != "" {
		out += prefix + line
	}
	return out
}
