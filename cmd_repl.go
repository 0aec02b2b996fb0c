package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/chzyer/readline"
	"github.com/google/subcommands"
	"github.com/mattn/go-isatty"

	"github.com/pyvm/pyvm/internal/config"
	"github.com/pyvm/pyvm/internal/lexer"
	"github.com/pyvm/pyvm/internal/runtime"
	"github.com/pyvm/pyvm/internal/token"
	"github.com/pyvm/pyvm/internal/values"
	"github.com/pyvm/pyvm/internal/vmpanic"
)

// replCmd implements the `repl` command: a readline-backed
// read-eval-print loop accumulating lines until a compound statement's
// indentation and bracket state is balanced, then compiling and
// running the buffered block against one persistent module scope.
type replCmd struct{}

func (*replCmd) Name() string     { return "repl" }
func (*replCmd) Synopsis() string { return "Start an interactive session" }
func (*replCmd) Usage() string {
	return `repl:
  Start an interactive read-eval-print loop.
`
}
func (r *replCmd) SetFlags(f *flag.FlagSet) {}

func (r *replCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	interactive := isatty.IsTerminal(os.Stdin.Fd())

	if interactive {
		fmt.Println("\nWelcome to pyvm!")
	}

	rl, err := readline.New(prompt(interactive, false))
	if err != nil {
		fmt.Fprintf(os.Stderr, "💥 %s\n", err)
		return subcommands.ExitFailure
	}
	defer rl.Close()

	cfg, err := config.Load(".")
	if err != nil {
		fmt.Fprintf(os.Stderr, "💥 Failed to read pyvm.yaml: %v\n", err)
		return subcommands.ExitFailure
	}
	interp := runtime.New(cfg, os.Stdout)

	var buffer strings.Builder
	for {
		rl.SetPrompt(prompt(interactive, buffer.Len() > 0))
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			buffer.Reset()
			continue
		}
		if errors.Is(err, io.EOF) {
			return subcommands.ExitSuccess
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "💥 %s\n", err)
			return subcommands.ExitFailure
		}

		if strings.TrimSpace(line) == "exit" && buffer.Len() == 0 {
			return subcommands.ExitSuccess
		}

		if buffer.Len() > 0 {
			buffer.WriteString("\n")
		}
		buffer.WriteString(line)

		if !blockReady(buffer.String(), line == "") {
			continue
		}

		runSnippet(interp, buffer.String())
		buffer.Reset()
	}
}

// runSnippet executes one buffered block, recovering a *vmpanic.Fault
// the same way cmd_run.go does so a malformed-bytecode bug in the REPL
// never takes the whole session down.
func runSnippet(interp *runtime.Interpreter, source string) {
	defer func() {
		if rec := recover(); rec != nil {
			if fault, ok := rec.(*vmpanic.Fault); ok {
				fmt.Fprintf(os.Stderr, "💥 internal fault: %s\n", fault.Error())
				return
			}
			panic(rec)
		}
	}()
	v, err := interp.Run(source)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return
	}
	if v != nil && v != values.None {
		fmt.Println(v.String())
	}
}

func prompt(interactive, continuation bool) string {
	if !interactive {
		return ""
	}
	if continuation {
		return "... "
	}
	return ">>> "
}

// blockReady reports whether source's bracket nesting and indentation
// are both back to zero, the signal a REPL needs to stop accumulating
// lines and run what it has. blankLine is whether the line just
// appended was empty, Python's own "end a block" signal.
func blockReady(source string, blankLine bool) bool {
	lex := lexer.New(source)
	tokens, errs := lex.Scan()
	if len(errs) > 0 {
		return true // surface the lexer error rather than waiting forever
	}

	depth := 0
	var last token.Token
	for _, t := range tokens {
		switch t.Kind {
		case token.LPAREN, token.LBRACKET, token.LBRACE:
			depth++
		case token.RPAREN, token.RBRACKET, token.RBRACE:
			depth--
		}
		if t.Kind != token.EOF {
			last = t
		}
	}
	if depth > 0 {
		return false
	}
	if last.Kind == token.COLON {
		return false
	}
	// The lexer synthesizes trailing DEDENTs down to column 0 at EOF
	// regardless of whether the user meant to close the block, so
	// indentation has to be read off the raw text instead of tokens: a
	// block stays open as long as its last non-empty physical line is
	// still indented, until a blank line (Python's own "end it" signal).
	if indentedTail(source) && !blankLine {
		return false
	}
	return true
}

// indentedTail reports whether the last non-blank physical line of
// source starts with leading whitespace.
func indentedTail(source string) bool {
	lines := strings.Split(source, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := lines[i]
		if strings.TrimSpace(line) == "" {
			continue
		}
		return line[0] == ' ' || line[0] == '\t'
	}
	return false
}
