// Package vmpanic carries tier-3 internal invariant violations —
// unknown opcode, stack underflow, a jump past the end of the
// instruction stream — as a distinct type instead of a bare Go panic,
// so a CLI command can recover() it once at the top and report it
// separately from an ordinary uncaught Python exception.
package vmpanic

import "fmt"

// Fault is what gets panic()'d when the VM detects its own bytecode is
// malformed rather than the program it's running being buggy.
type Fault struct {
	CodeName string
	PC       int
	Message  string
}

func New(codeName string, pc int, format string, args ...any) *Fault {
	return &Fault{CodeName: codeName, PC: pc, Message: fmt.Sprintf(format, args...)}
}

func (f *Fault) Error() string {
	return fmt.Sprintf("internal fault in %s at pc=%d: %s", f.CodeName, f.PC, f.Message)
}
