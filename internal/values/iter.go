package values

import (
	"strconv"

	"github.com/google/uuid"
)

// Range is the lazy arithmetic sequence produced by the range()
// built-in. Like CPython's it never materializes its elements.
type Range struct {
	Start, Stop, Step int64
}

func NewRange(start, stop, step int64) Range { return Range{Start: start, Stop: stop, Step: step} }

func (Range) Type() Type { return TypeRange }
func (r Range) String() string {
	if r.Step == 1 {
		return "range(" + strconv.FormatInt(r.Start, 10) + ", " + strconv.FormatInt(r.Stop, 10) + ")"
	}
	return "range(" + strconv.FormatInt(r.Start, 10) + ", " + strconv.FormatInt(r.Stop, 10) + ", " + strconv.FormatInt(r.Step, 10) + ")"
}
func (r Range) Truthy() bool             { return r.Len() > 0 }
func (r Range) Hash() (uint64, bool)     { return 0, false }

func (r Range) Len() int {
	if r.Step == 0 {
		return 0
	}
	if r.Step > 0 {
		if r.Stop <= r.Start {
			return 0
		}
		return int((r.Stop - r.Start + r.Step - 1) / r.Step)
	}
	if r.Stop >= r.Start {
		return 0
	}
	return int((r.Start - r.Stop - r.Step - 1) / -r.Step)
}

// At returns the i'th element without materializing the sequence.
func (r Range) At(i int) int64 { return r.Start + int64(i)*r.Step }

// Slice is the value BUILD_SLICE produces; each bound is either an Int
// or None, left for the subscript opcode to interpret against the
// length of whatever it's applied to.
type Slice struct {
	Start, Stop, Step Value
}

func (Slice) Type() Type       { return TypeSlice }
func (s Slice) String() string { return "slice(" + Repr(s.Start) + ", " + Repr(s.Stop) + ", " + Repr(s.Step) + ")" }
func (s Slice) Truthy() bool   { return true }
func (s Slice) Hash() (uint64, bool) { return 0, false }

// IterState is the transient value GET_ITER produces: a pull-based
// cursor over whatever was iterated, sitting on the operand stack like
// any other value so FOR_ITER can advance it without a side table.
type IterState struct {
	Next func() (Value, bool)
}

func (*IterState) Type() Type       { return TypeIterator }
func (*IterState) String() string   { return "<iterator>" }
func (*IterState) Truthy() bool     { return true }
func (*IterState) Hash() (uint64, bool) { return 0, false }

// GeneratorState tracks a generator's position in its state machine,
// per the suspended-coroutine lifecycle.
type GeneratorState int

const (
	GenSuspendedInitial GeneratorState = iota
	GenSuspendedYielded
	GenRunning
	GenClosed
)

// Generator is the object a generator-function call returns. Advance
// is supplied by the vm package (the only place that knows how to
// drive a suspended frame) so this package stays free of a dependency
// on frames, block stacks, or goroutines.
type Generator struct {
	Name    string
	ID      uuid.UUID
	State   GeneratorState
	Advance func(send Value, throwExc *Exception, doClose bool) (value Value, done bool, err error)
}

func NewGenerator(name string, advance func(Value, *Exception, bool) (Value, bool, error)) *Generator {
	return &Generator{Name: name, ID: uuid.New(), State: GenSuspendedInitial, Advance: advance}
}

func (*Generator) Type() Type       { return TypeGenerator }
func (g *Generator) String() string { return "<generator object " + g.Name + ">" }
func (g *Generator) Truthy() bool   { return true }
func (g *Generator) Hash() (uint64, bool) { return 0, false }
