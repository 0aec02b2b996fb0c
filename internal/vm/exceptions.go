package vm

import "github.com/pyvm/pyvm/internal/values"

// unwind searches f's block stack (innermost first) for a handler,
// truncating the operand stack to the block's recorded height and
// pushing the exception for the handler code at HandlerPC to pick up.
// try/except/finally and with all register blocks the same way: a
// with's bound __exit__ callable rides the stack itself below the
// block's recorded height, so the compiled handler code (WITH_EXIT,
// RERAISE) finds it there without any special casing here.
func (it *Interp) unwind(f *Frame, exc *values.Exception) bool {
	if len(f.BlockStack) == 0 {
		return false
	}
	blk := f.BlockStack[len(f.BlockStack)-1]
	f.BlockStack = f.BlockStack[:len(f.BlockStack)-1]
	f.truncate(blk.StackHeight)
	f.push(exc)
	f.PC = blk.HandlerPC
	return true
}

// excMatches implements an except clause's class test: typ may be a
// single class or (for `except (A, B):`) a tuple of classes: matches
// if exc's runtime class is or subclasses any of them. The bare name
// "Exception" catches everything, matching its role as the root of the
// built-in hierarchy.
func (it *Interp) excMatches(exc *values.Exception, typ values.Value) bool {
	candidates := []values.Value{typ}
	if t, ok := typ.(values.Tuple); ok {
		candidates = t.Elems
	}
	for _, c := range candidates {
		cls, ok := c.(*values.Class)
		if !ok {
			continue
		}
		if cls.Name == exc.ClassName || cls.Name == "Exception" {
			return true
		}
		if exc.Class != nil && exc.Class.IsSubclassOf(cls) {
			return true
		}
		if it.Builtins != nil {
			if excCls, ok := it.Builtins.ExceptionClass(exc.ClassName); ok && excCls.IsSubclassOf(cls) {
				return true
			}
		}
	}
	return false
}
