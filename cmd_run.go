package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"

	"github.com/pyvm/pyvm/internal/config"
	"github.com/pyvm/pyvm/internal/runtime"
	"github.com/pyvm/pyvm/internal/vmpanic"
)

// runCmd implements the `run` command: compile and execute a source
// file to completion.
type runCmd struct{}

func (*runCmd) Name() string     { return "run" }
func (*runCmd) Synopsis() string { return "Execute a pyvm source file" }
func (*runCmd) Usage() string {
	return `run <file.py>:
  Compile and execute a Python-subset source file.
`
}
func (r *runCmd) SetFlags(f *flag.FlagSet) {}

func (r *runCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) (status subcommands.ExitStatus) {
	args := f.Args()
	if len(args) < 1 {
		fmt.Fprintf(os.Stderr, "💥 File not provided\n")
		return subcommands.ExitUsageError
	}
	filename := args[0]

	cfg, err := config.Load(".")
	if err != nil {
		fmt.Fprintf(os.Stderr, "💥 Failed to read pyvm.yaml: %v\n", err)
		return subcommands.ExitFailure
	}

	defer func() {
		if rec := recover(); rec != nil {
			if fault, ok := rec.(*vmpanic.Fault); ok {
				fmt.Fprintf(os.Stderr, "💥 internal fault: %s\n", fault.Error())
				status = subcommands.ExitFailure
				return
			}
			panic(rec)
		}
	}()

	interp := runtime.New(cfg, os.Stdout)
	if _, err := interp.RunFile(filename); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err.Error())
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}
