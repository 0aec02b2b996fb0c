package vm

import "github.com/pyvm/pyvm/internal/values"

// execYield suspends the generator goroutine running f: it hands the
// yielded value to whichever of next()/send()/throw()/close() is
// waiting, then blocks until that caller resumes it, which is what
// makes the YIELD_VALUE bytecode a true suspension point rather than
// an ordinary call.
func (it *Interp) execYield(f *Frame, v values.Value) (values.Value, *PyError) {
	if f.Gen == nil {
		return nil, raise("RuntimeError", "yield outside generator")
	}
	f.Gen.yielded <- yieldMsg{value: v, done: false}
	rm := <-f.Gen.resume
	if rm.close {
		return nil, raise("GeneratorExit", "")
	}
	if rm.throw != nil {
		return nil, raiseValue(rm.throw)
	}
	return rm.send, nil
}

// execYieldFrom drains an inner iterable (typically another
// generator) through this generator's own suspension points, one
// value at a time, without forwarding send()/throw() into the inner
// iterator — a deliberate simplification of `yield from`'s full
// two-way delegation protocol.
func (it *Interp) execYieldFrom(f *Frame) (values.Value, *PyError) {
	src := f.pop()
	iter, err := getIter(src)
	if err != nil {
		return nil, err
	}
	for {
		v, ok := iter.Next()
		if !ok {
			return values.None, nil
		}
		if _, err := it.execYield(f, v); err != nil {
			return nil, err
		}
	}
}
