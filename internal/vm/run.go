package vm

import (
	"github.com/pyvm/pyvm/internal/compiler"
	"github.com/pyvm/pyvm/internal/values"
	"github.com/pyvm/pyvm/internal/vmpanic"
)

const unpackStarBit = 1 << 15

// run is the opcode dispatch loop every frame — module level, a plain
// call, or a generator's goroutine — executes through. It returns
// normally with the function's return value, or with a *PyError once
// every block on f's block stack has failed to catch the exception.
func (it *Interp) run(f *Frame) (values.Value, *PyError) {
	code := f.Code
	ins := code.Instructions

	defer func() {
		if r := recover(); r != nil {
			if _, ok := r.(*vmpanic.Fault); ok {
				panic(r)
			}
			panic(vmpanic.New(code.Name, f.PC, "%v", r))
		}
	}()

	for {
		if f.PC >= len(ins) {
			return values.None, nil
		}
		op := compiler.Opcode(ins[f.PC])
		def, defErr := compiler.Get(op)
		if defErr != nil {
			panic(vmpanic.New(code.Name, f.PC, "%v", defErr))
		}
		var operand, operand2 int
		pos := f.PC + 1
		switch len(def.OperandWidths) {
		case 1:
			operand = readOperand(ins, pos, def.OperandWidths[0])
		case 2:
			operand = readOperand(ins, pos, def.OperandWidths[0])
			operand2 = readOperand(ins, pos+def.OperandWidths[0], def.OperandWidths[1])
		}
		width := compiler.InstructionWidth(op)
		nextPC := f.PC + width
		f.PC = nextPC

		var perr *PyError
		switch op {
		case compiler.OP_NOP:

		case compiler.OP_CONSTANT:
			f.push(loadConstant(code, operand))
		case compiler.OP_POP:
			f.pop()
		case compiler.OP_DUP:
			f.push(f.peek())
		case compiler.OP_ROT_TWO:
			n := len(f.Stack)
			f.Stack[n-1], f.Stack[n-2] = f.Stack[n-2], f.Stack[n-1]
		case compiler.OP_ROT_THREE:
			n := len(f.Stack)
			f.Stack[n-1], f.Stack[n-2], f.Stack[n-3] = f.Stack[n-2], f.Stack[n-3], f.Stack[n-1]

		case compiler.OP_LOAD_FAST:
			f.push(f.Locals[operand])
		case compiler.OP_STORE_FAST:
			f.Locals[operand] = f.pop()

		case compiler.OP_LOAD_GLOBAL:
			name := code.NameConstants[operand]
			v, ok := f.Scope.LookupGlobalDirect(name)
			if !ok {
				perr = raise("NameError", "name '%s' is not defined", name)
				break
			}
			f.push(v)
		case compiler.OP_STORE_GLOBAL:
			f.Scope.StoreGlobalDirect(code.NameConstants[operand], f.pop())

		case compiler.OP_LOAD_NAME:
			name := code.NameConstants[operand]
			if v, ok := f.Scope.Lookup(name); ok {
				f.push(v)
				break
			}
			if it.Builtins != nil {
				if v, ok := it.Builtins.Lookup(name); ok {
					f.push(v)
					break
				}
			}
			perr = raise("NameError", "name '%s' is not defined", name)
		case compiler.OP_STORE_NAME:
			f.Scope.Store(code.NameConstants[operand], f.pop())
		case compiler.OP_DELETE_NAME:
			name := code.NameConstants[operand]
			if !f.Scope.Delete(name) {
				perr = raise("NameError", "name '%s' is not defined", name)
			}

		case compiler.OP_LOAD_DEREF:
			f.push(f.Cells[operand].V)
		case compiler.OP_STORE_DEREF:
			f.Cells[operand].V = f.pop()

		case compiler.OP_LOAD_BUILTIN:
			name := code.NameConstants[operand]
			if it.Builtins != nil {
				if v, ok := it.Builtins.Lookup(name); ok {
					f.push(v)
					break
				}
			}
			perr = raise("NameError", "name '%s' is not defined", name)

		case compiler.OP_BINARY_OP:
			b, a := f.pop(), f.pop()
			v, e := binaryOp(compiler.BinOp(operand), a, b)
			perr = e
			if e == nil {
				f.push(v)
			}
		case compiler.OP_INPLACE_OP:
			b, a := f.pop(), f.pop()
			v, e := inplaceOp(compiler.BinOp(operand), a, b)
			perr = e
			if e == nil {
				f.push(v)
			}
		case compiler.OP_UNARY_OP:
			v, e := unaryOp(compiler.UnaryOp(operand), f.pop())
			perr = e
			if e == nil {
				f.push(v)
			}
		case compiler.OP_COMPARE_OP:
			b, a := f.pop(), f.pop()
			v, e := compareOp(compiler.CompareOp(operand), a, b)
			perr = e
			if e == nil {
				f.push(v)
			}

		case compiler.OP_BUILD_LIST:
			f.push(values.NewList(f.popN(operand)...))
		case compiler.OP_BUILD_TUPLE:
			f.push(values.NewTuple(f.popN(operand)...))
		case compiler.OP_BUILD_SET:
			s := values.NewSet()
			for _, v := range f.popN(operand) {
				s.Add(v)
			}
			f.push(s)
		case compiler.OP_BUILD_MAP:
			pairs := f.popN(operand * 2)
			d := values.NewDict()
			for i := 0; i+1 < len(pairs); i += 2 {
				d.Set(pairs[i], pairs[i+1])
			}
			f.push(d)
		case compiler.OP_DICT_MERGE:
			src := f.pop()
			dst, ok := f.peek().(*values.Dict)
			if !ok {
				perr = raise("TypeError", "argument after ** must be a mapping")
				break
			}
			srcDict, ok := src.(*values.Dict)
			if !ok {
				perr = raise("TypeError", "argument after ** must be a mapping")
				break
			}
			for _, k := range srcDict.Keys() {
				v, _ := srcDict.Get(k)
				dst.Set(k, v)
			}
		case compiler.OP_LIST_APPEND:
			v := f.pop()
			lst := f.Stack[len(f.Stack)-operand].(*values.List)
			lst.Elems = append(lst.Elems, v)
		case compiler.OP_SET_ADD:
			v := f.pop()
			s := f.Stack[len(f.Stack)-operand].(*values.Set)
			s.Add(v)
		case compiler.OP_MAP_ADD:
			v := f.pop()
			k := f.pop()
			d := f.Stack[len(f.Stack)-operand].(*values.Dict)
			d.Set(k, v)
		case compiler.OP_LIST_EXTEND:
			src := f.pop()
			elems, e := materialize(src)
			if e != nil {
				perr = e
				break
			}
			lst := f.peek().(*values.List)
			lst.Elems = append(lst.Elems, elems...)
		case compiler.OP_UNPACK_SEQUENCE:
			perr = it.execUnpack(f, operand)

		case compiler.OP_BUILD_SLICE:
			step, end, start := f.pop(), f.pop(), f.pop()
			f.push(values.Slice{Start: start, Stop: end, Step: step})
		case compiler.OP_BINARY_SUBSCR:
			idx, container := f.pop(), f.pop()
			v, e := it.subscriptGet(container, idx)
			perr = e
			if e == nil {
				f.push(v)
			}
		case compiler.OP_STORE_SUBSCR:
			v, idx, container := f.pop(), f.pop(), f.pop()
			perr = it.subscriptSet(container, idx, v)
		case compiler.OP_DELETE_SUBSCR:
			idx, container := f.pop(), f.pop()
			perr = it.subscriptDelete(container, idx)

		case compiler.OP_LOAD_ATTR:
			recv := f.pop()
			v, e := it.getAttr(recv, code.NameConstants[operand])
			perr = e
			if e == nil {
				f.push(v)
			}
		case compiler.OP_STORE_ATTR:
			v, recv := f.pop(), f.pop()
			perr = it.setAttr(recv, code.NameConstants[operand], v)
		case compiler.OP_DELETE_ATTR:
			recv := f.pop()
			perr = it.deleteAttr(recv, code.NameConstants[operand])

		case compiler.OP_JUMP:
			f.PC = operand
		case compiler.OP_JUMP_IF_FALSE:
			if !f.pop().Truthy() {
				f.PC = operand
			}
		case compiler.OP_JUMP_IF_TRUE:
			if f.pop().Truthy() {
				f.PC = operand
			}
		case compiler.OP_JUMP_IF_FALSE_OR_POP:
			if !f.peek().Truthy() {
				f.PC = operand
			} else {
				f.pop()
			}
		case compiler.OP_JUMP_IF_TRUE_OR_POP:
			if f.peek().Truthy() {
				f.PC = operand
			} else {
				f.pop()
			}
		case compiler.OP_POP_JUMP_IF_FALSE:
			if !f.pop().Truthy() {
				f.PC = operand
			}

		case compiler.OP_CALL:
			args := f.popN(operand)
			callee := f.pop()
			v, e := it.Call(callee, args, nil)
			perr = e
			if e == nil {
				f.push(v)
			}
		case compiler.OP_CALL_KW:
			kwDict, _ := f.pop().(*values.Dict)
			argList, _ := f.pop().(*values.List)
			callee := f.pop()
			kwargs := map[string]values.Value{}
			if kwDict != nil {
				for _, k := range kwDict.Keys() {
					v, _ := kwDict.Get(k)
					if ks, ok := k.(values.Str); ok {
						kwargs[ks.V] = v
					}
				}
			}
			var args []values.Value
			if argList != nil {
				args = argList.Elems
			}
			v, e := it.Call(callee, args, kwargs)
			perr = e
			if e == nil {
				f.push(v)
			}
		case compiler.OP_RETURN_VALUE:
			return f.pop(), nil
		case compiler.OP_MAKE_FUNCTION:
			codeVal := f.pop().(*codeConst)
			closureVal, _ := f.pop().(values.Tuple)
			defaultsVal, _ := f.pop().(values.Tuple)
			f.push(makeFunction(code.NameConstants[operand], codeVal.Code, closureVal, defaultsVal, f.Scope.Root()))
		case compiler.OP_MAKE_CLASS:
			basesVal, _ := f.pop().(values.Tuple)
			codeVal := f.pop().(*codeConst)
			v, e := it.makeClass(code.NameConstants[operand], codeVal.Code, basesVal, f.Scope.Root())
			perr = e
			if e == nil {
				f.push(v)
			}

		case compiler.OP_SETUP_FINALLY:
			f.BlockStack = append(f.BlockStack, Block{HandlerPC: operand, StackHeight: len(f.Stack)})
		case compiler.OP_SETUP_WITH:
			cm := f.pop()
			enterFn, e1 := it.getAttr(cm, "__enter__")
			if e1 != nil {
				perr = e1
				break
			}
			exitFn, e2 := it.getAttr(cm, "__exit__")
			if e2 != nil {
				perr = e2
				break
			}
			// __exit__ is recorded below the block's StackHeight mark so
			// it survives an unwind()-triggered truncation untouched;
			// __enter__()'s result goes on top, where the compiled
			// DUP+store (or nothing, if `as` was omitted) expects it.
			f.push(exitFn)
			f.BlockStack = append(f.BlockStack, Block{HandlerPC: operand, StackHeight: len(f.Stack)})
			enterResult, e3 := it.Call(enterFn, nil, nil)
			if e3 != nil {
				perr = e3
				break
			}
			f.push(enterResult)
		case compiler.OP_POP_BLOCK:
			f.BlockStack = f.BlockStack[:len(f.BlockStack)-1]
		case compiler.OP_POP_EXCEPT:
		case compiler.OP_RAISE:
			perr = it.execRaise(f, operand)
		case compiler.OP_RERAISE:
			v := f.pop()
			if exc, ok := v.(*values.Exception); ok {
				perr = raiseValue(exc)
			}
		case compiler.OP_END_FINALLY:
		case compiler.OP_CHECK_EXC_MATCH:
			typ := f.pop()
			exc, ok := f.peek().(*values.Exception)
			if !ok {
				perr = raise("RuntimeError", "no active exception to match")
				break
			}
			f.push(values.NewBool(it.excMatches(exc, typ)))

		case compiler.OP_WITH_EXIT:
			perr = it.execWithExit(f, operand)

		case compiler.OP_GET_ITER:
			v, e := getIter(f.pop())
			perr = e
			if e == nil {
				f.push(v)
			}
		case compiler.OP_FOR_ITER:
			cur := f.peek().(*values.IterState)
			v, ok := cur.Next()
			if !ok {
				f.pop()
				f.PC = operand
				break
			}
			f.push(v)
		case compiler.OP_YIELD_VALUE:
			v, e := it.execYield(f, f.pop())
			perr = e
			if e == nil {
				f.push(v)
			}
		case compiler.OP_YIELD_FROM:
			v, e := it.execYieldFrom(f)
			perr = e
			if e == nil {
				f.push(v)
			}

		case compiler.OP_IMPORT_NAME:
			name := code.NameConstants[operand]
			if it.Importer == nil {
				perr = raise("ImportError", "no module named '%s'", name)
				break
			}
			mod, err := it.Importer.Import(name)
			if err != nil {
				perr = raise("ImportError", "%s", err.Error())
				break
			}
			f.push(mod)
		case compiler.OP_IMPORT_FROM:
			name := code.NameConstants[operand]
			mod, ok := f.peek().(*values.Module)
			if !ok {
				perr = raise("ImportError", "cannot import name '%s'", name)
				break
			}
			v, ok := mod.Globals.Get(values.NewStr(name))
			if !ok {
				perr = raise("ImportError", "cannot import name '%s' from '%s'", name, mod.Name)
				break
			}
			f.push(v)
		case compiler.OP_IMPORT_STAR:
			mod, ok := f.pop().(*values.Module)
			if !ok {
				perr = raise("ImportError", "import * requires a module")
				break
			}
			for _, k := range mod.Globals.Keys() {
				if ks, ok := k.(values.Str); ok {
					v, _ := mod.Globals.Get(k)
					f.Scope.Store(ks.V, v)
				}
			}

		case compiler.OP_BUILD_STRING:
			parts := f.popN(operand)
			s := ""
			for _, p := range parts {
				s += p.String()
			}
			f.push(values.NewStr(s))
		case compiler.OP_FORMAT_VALUE:
			spec := ""
			if s, ok := loadConstant(code, operand).(values.Str); ok {
				spec = s.V
			}
			v := f.pop()
			f.push(values.NewStr(formatValue(v, spec)))

		case compiler.OP_MATCH_SEQUENCE:
			perr = it.execMatchSequence(f, operand)
		case compiler.OP_MATCH_CLASS:
			perr = it.execMatchClass(f, operand, operand2)

		case compiler.OP_PRINT_EXPR:
			v := f.pop()
			if _, isNone := v.(values.NoneType); !isNone {
				it.Stdout.Write([]byte(values.Repr(v) + "\n"))
			}
		case compiler.OP_LOAD_CONST_NONE:
			f.push(values.None)

		default:
			panic(vmpanic.New(code.Name, f.PC, "unimplemented opcode %s", op.String()))
		}

		if perr != nil {
			if f.Gen != nil && perr.Exc.ClassName == "GeneratorExit" {
				return values.None, nil
			}
			if !it.unwind(f, perr.Exc) {
				return nil, perr
			}
		}
	}
}

func readOperand(ins compiler.Instructions, pos, width int) int {
	switch width {
	case 1:
		return int(ins[pos])
	case 2:
		return int(compiler.ReadUint16(ins, pos))
	case 4:
		return int(compiler.ReadUint32(ins, pos))
	}
	return 0
}

func (it *Interp) execUnpack(f *Frame, operand int) *PyError {
	elems, err := materialize(f.pop())
	if err != nil {
		return err
	}
	if operand&unpackStarBit != 0 {
		starIdx := operand &^ unpackStarBit
		if len(elems) < starIdx {
			return raise("ValueError", "not enough values to unpack")
		}
		rest := append([]values.Value{}, elems[starIdx:]...)
		f.push(values.NewList(rest...))
		for i := starIdx - 1; i >= 0; i-- {
			f.push(elems[i])
		}
		return nil
	}
	if len(elems) != operand {
		return raise("ValueError", "not enough values to unpack (expected %d, got %d)", operand, len(elems))
	}
	for i := len(elems) - 1; i >= 0; i-- {
		f.push(elems[i])
	}
	return nil
}

func (it *Interp) execRaise(f *Frame, form int) *PyError {
	switch form {
	case 0:
		return raise("RuntimeError", "No active exception to re-raise")
	case 1:
		v := f.pop()
		exc, ok := v.(*values.Exception)
		if !ok {
			return raise("TypeError", "exceptions must derive from Exception")
		}
		return raiseValue(exc)
	case 2:
		cause := f.pop()
		v := f.pop()
		exc, ok := v.(*values.Exception)
		if !ok {
			return raise("TypeError", "exceptions must derive from Exception")
		}
		if causeExc, ok := cause.(*values.Exception); ok {
			exc.Cause = causeExc
		}
		return raiseValue(exc)
	}
	return raise("RuntimeError", "bad raise form")
}

// execWithExit implements the bytecode half of a with statement's
// exit: operand 0 is the normal-completion path (stack: exit_callable,
// enter_result), operand 1 is the exception path (stack:
// exit_callable, exc_value) reached via SETUP_WITH's handler. It
// leaves either values.None (suppressed) or the exception (to be
// re-raised by the OP_RERAISE that always follows it in that path).
func (it *Interp) execWithExit(f *Frame, operand int) *PyError {
	if operand == 0 {
		f.pop() // enter_result, unused on the normal path
		exitFn := f.pop()
		_, err := it.Call(exitFn, []values.Value{values.None, values.None, values.None}, nil)
		return err
	}
	excVal := f.pop()
	exitFn := f.pop()
	exc, _ := excVal.(*values.Exception)
	result, err := it.Call(exitFn, []values.Value{excVal}, nil)
	if err != nil {
		return err
	}
	if result.Truthy() {
		f.push(values.None)
	} else if exc != nil {
		f.push(exc)
	} else {
		f.push(values.None)
	}
	return nil
}

func (it *Interp) execMatchSequence(f *Frame, expected int) *PyError {
	subject := f.pop()
	var elems []values.Value
	ok := false
	switch s := subject.(type) {
	case *values.List:
		elems, ok = s.Elems, true
	case values.Tuple:
		elems, ok = s.Elems, true
	}
	matched := ok && len(elems) == expected
	if matched {
		for _, e := range elems {
			f.push(e)
		}
	}
	f.push(values.NewBool(matched))
	return nil
}

func (it *Interp) execMatchClass(f *Frame, nameIdx, attrCount int) *PyError {
	name := f.Code.NameConstants[nameIdx]
	subject := f.pop()
	inst, ok := subject.(*values.Instance)
	if !ok {
		f.push(values.NewBool(false))
		return nil
	}
	var cls *values.Class
	if v, ok := f.Scope.Lookup(name); ok {
		cls, _ = v.(*values.Class)
	}
	if cls == nil && it.Builtins != nil {
		if v, ok := it.Builtins.Lookup(name); ok {
			cls, _ = v.(*values.Class)
		}
	}
	if cls == nil || !inst.Class.IsSubclassOf(cls) {
		f.push(values.NewBool(false))
		return nil
	}
	if attrCount == 0 {
		f.push(values.NewBool(true))
		return nil
	}
	matchArgs, ok := cls.Attrs.Get(values.NewStr("__match_args__"))
	if !ok {
		f.push(values.NewBool(false))
		return nil
	}
	names, ok := matchArgs.(values.Tuple)
	if !ok || len(names.Elems) < attrCount {
		f.push(values.NewBool(false))
		return nil
	}
	vals := make([]values.Value, attrCount)
	for i := 0; i < attrCount; i++ {
		attrName, ok := names.Elems[i].(values.Str)
		if !ok {
			f.push(values.NewBool(false))
			return nil
		}
		v, ok := inst.GetAttr(attrName.V)
		if !ok {
			f.push(values.NewBool(false))
			return nil
		}
		vals[i] = v
	}
	for _, v := range vals {
		f.push(v)
	}
	f.push(values.NewBool(true))
	return nil
}
