package vm

import "github.com/pyvm/pyvm/internal/values"

// genControl is the baton a generator's dedicated goroutine and its
// caller pass back and forth: exactly one side is ever runnable, so
// both channels are unbuffered — a send blocks until the other side is
// ready to receive, which is what makes this a handoff rather than
// real concurrency.
type genControl struct {
	resume  chan resumeMsg
	yielded chan yieldMsg
}

type resumeMsg struct {
	send  values.Value
	throw *values.Exception
	close bool
}

type yieldMsg struct {
	value values.Value
	done  bool
	err   *PyError
}

// makeGenerator wraps a not-yet-running frame in a Generator whose
// Advance closure starts the backing goroutine lazily, on the first
// call, matching CPython's suspended-until-first-next() generators.
func (it *Interp) makeGenerator(f *Frame, name string) *values.Generator {
	gc := &genControl{resume: make(chan resumeMsg), yielded: make(chan yieldMsg)}
	f.Gen = gc
	started := false

	advance := func(send values.Value, throwExc *values.Exception, doClose bool) (values.Value, bool, error) {
		if !started {
			started = true
			if throwExc != nil || doClose {
				return values.None, true, nil
			}
			go it.runGenerator(f, gc)
		} else {
			gc.resume <- resumeMsg{send: send, throw: throwExc, close: doClose}
		}
		ym := <-gc.yielded
		if ym.err != nil {
			return nil, true, ym.err
		}
		return ym.value, ym.done, nil
	}
	return values.NewGenerator(name, advance)
}

// runGenerator drives f's bytecode loop on its own goroutine. Every
// YIELD_VALUE inside run() blocks on gc.resume instead of returning,
// so from this function's point of view a generator's body runs
// straight through to its eventual return/exception, just suspended
// mid-flight at each yield point.
func (it *Interp) runGenerator(f *Frame, gc *genControl) {
	v, err := it.run(f)
	if err != nil {
		gc.yielded <- yieldMsg{err: err, done: true}
		return
	}
	gc.yielded <- yieldMsg{value: v, done: true}
}
