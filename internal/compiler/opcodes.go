// Package compiler lowers an ast.Program into a linear Bytecode
// sequence by first building a control-flow graph of basic blocks and
// then linearizing it with a depth-first walk, patching jump operands
// to absolute byte offsets once every block has been placed.
package compiler

import (
	"encoding/binary"
	"fmt"
)

type Opcode byte

// Instructions is a flat encoded instruction stream: one byte of
// opcode followed by zero or more operand bytes, encoded by
// MakeInstruction and generalized to every opcode this VM needs.
type Instructions []byte

const (
	OP_NOP Opcode = iota

	// stack / constants
	OP_CONSTANT    // operand: uint16 index into ConstantsPool
	OP_POP
	OP_DUP
	OP_ROT_TWO
	OP_ROT_THREE

	// names
	OP_LOAD_FAST    // operand: uint16 local slot
	OP_STORE_FAST   // operand: uint16 local slot
	OP_LOAD_GLOBAL  // operand: uint16 index into NameConstants
	OP_STORE_GLOBAL // operand: uint16 index into NameConstants
	OP_LOAD_NAME    // dynamic lookup: local -> enclosing -> global -> builtin
	OP_STORE_NAME
	OP_DELETE_NAME
	OP_LOAD_DEREF   // operand: uint16 index into the frame's cells (CellNames first, then FreeNames)
	OP_STORE_DEREF
	OP_LOAD_BUILTIN // operand: uint16 index into NameConstants

	// binary / unary / comparison ops; operand: uint8 selecting the op
	OP_BINARY_OP
	OP_UNARY_OP
	OP_COMPARE_OP
	OP_INPLACE_OP

	OP_BUILD_LIST   // operand: uint16 element count
	OP_BUILD_TUPLE
	OP_BUILD_SET
	OP_BUILD_MAP    // operand: uint16 entry count (pops 2*count key/value values); dict literals and keyword calls start from an empty map filled by OP_MAP_ADD / OP_DICT_MERGE
	OP_DICT_MERGE
	OP_LIST_APPEND  // append TOS to the list `operand` slots below TOS, used by comprehensions
	OP_SET_ADD
	OP_MAP_ADD
	OP_LIST_EXTEND  // extend TOS1 list with iterable TOS (for `[*a, *b]`)
	OP_UNPACK_SEQUENCE // operand: uint16 expected element count, or with bit 15 set, the index of the starred catch-all target in the low bits

	OP_BUILD_SLICE  // pops step,end,start (any may be NONE sentinel) -> Slice value
	OP_BINARY_SUBSCR
	OP_STORE_SUBSCR
	OP_DELETE_SUBSCR
	OP_LOAD_ATTR    // operand: uint16 index into NameConstants
	OP_STORE_ATTR
	OP_DELETE_ATTR

	OP_JUMP             // operand: uint32 absolute byte offset
	OP_JUMP_IF_FALSE
	OP_JUMP_IF_TRUE
	OP_JUMP_IF_FALSE_OR_POP
	OP_JUMP_IF_TRUE_OR_POP
	OP_POP_JUMP_IF_FALSE

	OP_CALL           // operand: uint16 positional arg count (calls with keyword, * or ** arguments use OP_CALL_KW)
	OP_CALL_KW        // operand unused; stack (bottom to top): callee, list of positional args, dict of keyword args
	OP_RETURN_VALUE
	OP_MAKE_FUNCTION  // operand: uint16 index into NameConstants for the function name; stack (bottom to top): defaultsTuple, closureTuple, code-object
	OP_MAKE_CLASS     // operand: uint16 index into NameConstants for the class name; pops basesTuple then a code object

	OP_SETUP_FINALLY  // operand: uint32 absolute offset of the handler
	OP_POP_BLOCK
	OP_POP_EXCEPT
	OP_RAISE          // operand: uint8 form (0 = re-raise, 1 = raise exc, 2 = raise exc from cause)
	OP_RERAISE
	OP_END_FINALLY
	OP_CHECK_EXC_MATCH // pops exception-type, peeks exception, pushes bool

	OP_SETUP_WITH
	OP_WITH_EXIT      // operand: uint8, non-zero means an exception is pending

	OP_GET_ITER
	OP_FOR_ITER       // operand: uint32 absolute offset to jump to when the iterator is exhausted
	OP_YIELD_VALUE
	OP_YIELD_FROM

	OP_IMPORT_NAME    // operand: uint16 index into NameConstants (dotted module path)
	OP_IMPORT_FROM    // operand: uint16 index into NameConstants (imported name)
	OP_IMPORT_STAR

	OP_BUILD_STRING   // operand: uint16 part count, concatenates TOS-n..TOS
	OP_FORMAT_VALUE   // operand: uint16 index into ConstantsPool for the format spec ("" if none)

	OP_MATCH_SEQUENCE // operand: uint16 expected length; pops subject, pushes (only on a match) its elements in order, then a bool
	OP_MATCH_CLASS    // operands: uint16 NameConstants index for class name, uint16 positional-attr count; pops subject, pushes (only on a match) the attr values in order, then a bool

	OP_PRINT_EXPR     // REPL-only: pop and print repr() if not None
	OP_LOAD_CONST_NONE

	OP_END Opcode = 0xFF
)

var names = map[Opcode]string{
	OP_NOP: "NOP", OP_CONSTANT: "CONSTANT", OP_POP: "POP", OP_DUP: "DUP", OP_ROT_TWO: "ROT_TWO", OP_ROT_THREE: "ROT_THREE",
	OP_LOAD_FAST: "LOAD_FAST", OP_STORE_FAST: "STORE_FAST",
	OP_LOAD_GLOBAL: "LOAD_GLOBAL", OP_STORE_GLOBAL: "STORE_GLOBAL",
	OP_LOAD_NAME: "LOAD_NAME", OP_STORE_NAME: "STORE_NAME", OP_DELETE_NAME: "DELETE_NAME",
	OP_LOAD_DEREF: "LOAD_DEREF", OP_STORE_DEREF: "STORE_DEREF", OP_LOAD_BUILTIN: "LOAD_BUILTIN",
	OP_BINARY_OP: "BINARY_OP", OP_UNARY_OP: "UNARY_OP", OP_COMPARE_OP: "COMPARE_OP", OP_INPLACE_OP: "INPLACE_OP",
	OP_BUILD_LIST: "BUILD_LIST", OP_BUILD_TUPLE: "BUILD_TUPLE", OP_BUILD_SET: "BUILD_SET", OP_BUILD_MAP: "BUILD_MAP",
	OP_DICT_MERGE: "DICT_MERGE", OP_LIST_APPEND: "LIST_APPEND", OP_SET_ADD: "SET_ADD", OP_MAP_ADD: "MAP_ADD",
	OP_LIST_EXTEND: "LIST_EXTEND", OP_UNPACK_SEQUENCE: "UNPACK_SEQUENCE",
	OP_BUILD_SLICE: "BUILD_SLICE", OP_BINARY_SUBSCR: "BINARY_SUBSCR", OP_STORE_SUBSCR: "STORE_SUBSCR", OP_DELETE_SUBSCR: "DELETE_SUBSCR",
	OP_LOAD_ATTR: "LOAD_ATTR", OP_STORE_ATTR: "STORE_ATTR", OP_DELETE_ATTR: "DELETE_ATTR",
	OP_JUMP: "JUMP", OP_JUMP_IF_FALSE: "JUMP_IF_FALSE", OP_JUMP_IF_TRUE: "JUMP_IF_TRUE",
	OP_JUMP_IF_FALSE_OR_POP: "JUMP_IF_FALSE_OR_POP", OP_JUMP_IF_TRUE_OR_POP: "JUMP_IF_TRUE_OR_POP",
	OP_POP_JUMP_IF_FALSE: "POP_JUMP_IF_FALSE",
	OP_CALL: "CALL", OP_CALL_KW: "CALL_KW", OP_RETURN_VALUE: "RETURN_VALUE",
	OP_MAKE_FUNCTION: "MAKE_FUNCTION", OP_MAKE_CLASS: "MAKE_CLASS",
	OP_SETUP_FINALLY: "SETUP_FINALLY", OP_POP_BLOCK: "POP_BLOCK", OP_POP_EXCEPT: "POP_EXCEPT",
	OP_RAISE: "RAISE", OP_RERAISE: "RERAISE", OP_END_FINALLY: "END_FINALLY", OP_CHECK_EXC_MATCH: "CHECK_EXC_MATCH",
	OP_SETUP_WITH: "SETUP_WITH", OP_WITH_EXIT: "WITH_EXIT",
	OP_GET_ITER: "GET_ITER", OP_FOR_ITER: "FOR_ITER", OP_YIELD_VALUE: "YIELD_VALUE", OP_YIELD_FROM: "YIELD_FROM",
	OP_IMPORT_NAME: "IMPORT_NAME", OP_IMPORT_FROM: "IMPORT_FROM", OP_IMPORT_STAR: "IMPORT_STAR",
	OP_BUILD_STRING: "BUILD_STRING", OP_FORMAT_VALUE: "FORMAT_VALUE",
	OP_MATCH_SEQUENCE: "MATCH_SEQUENCE", OP_MATCH_CLASS: "MATCH_CLASS",
	OP_PRINT_EXPR: "PRINT_EXPR", OP_LOAD_CONST_NONE: "LOAD_CONST_NONE",
}

// OpCodeDefinition names an opcode and the byte width of each operand
// it takes.
type OpCodeDefinition struct {
	Name          string
	OperandWidths []int
}

var definitions = map[Opcode]*OpCodeDefinition{
	OP_NOP:       {"NOP", nil},
	OP_CONSTANT:  {"CONSTANT", []int{2}},
	OP_POP:       {"POP", nil},
	OP_DUP:       {"DUP", nil},
	OP_ROT_TWO:   {"ROT_TWO", nil},
	OP_ROT_THREE: {"ROT_THREE", nil},

	OP_LOAD_FAST: {"LOAD_FAST", []int{2}}, OP_STORE_FAST: {"STORE_FAST", []int{2}},
	OP_LOAD_GLOBAL: {"LOAD_GLOBAL", []int{2}}, OP_STORE_GLOBAL: {"STORE_GLOBAL", []int{2}},
	OP_LOAD_NAME: {"LOAD_NAME", []int{2}}, OP_STORE_NAME: {"STORE_NAME", []int{2}}, OP_DELETE_NAME: {"DELETE_NAME", []int{2}},
	OP_LOAD_DEREF: {"LOAD_DEREF", []int{2}}, OP_STORE_DEREF: {"STORE_DEREF", []int{2}},
	OP_LOAD_BUILTIN: {"LOAD_BUILTIN", []int{2}},

	OP_BINARY_OP: {"BINARY_OP", []int{1}}, OP_UNARY_OP: {"UNARY_OP", []int{1}},
	OP_COMPARE_OP: {"COMPARE_OP", []int{1}}, OP_INPLACE_OP: {"INPLACE_OP", []int{1}},

	OP_BUILD_LIST: {"BUILD_LIST", []int{2}}, OP_BUILD_TUPLE: {"BUILD_TUPLE", []int{2}},
	OP_BUILD_SET: {"BUILD_SET", []int{2}}, OP_BUILD_MAP: {"BUILD_MAP", []int{2}},
	OP_DICT_MERGE: {"DICT_MERGE", nil}, OP_LIST_APPEND: {"LIST_APPEND", []int{2}},
	OP_SET_ADD: {"SET_ADD", []int{2}}, OP_MAP_ADD: {"MAP_ADD", []int{2}},
	OP_LIST_EXTEND: {"LIST_EXTEND", nil}, OP_UNPACK_SEQUENCE: {"UNPACK_SEQUENCE", []int{2}},

	OP_BUILD_SLICE: {"BUILD_SLICE", nil}, OP_BINARY_SUBSCR: {"BINARY_SUBSCR", nil},
	OP_STORE_SUBSCR: {"STORE_SUBSCR", nil}, OP_DELETE_SUBSCR: {"DELETE_SUBSCR", nil},
	OP_LOAD_ATTR: {"LOAD_ATTR", []int{2}}, OP_STORE_ATTR: {"STORE_ATTR", []int{2}}, OP_DELETE_ATTR: {"DELETE_ATTR", []int{2}},

	OP_JUMP: {"JUMP", []int{4}}, OP_JUMP_IF_FALSE: {"JUMP_IF_FALSE", []int{4}}, OP_JUMP_IF_TRUE: {"JUMP_IF_TRUE", []int{4}},
	OP_JUMP_IF_FALSE_OR_POP: {"JUMP_IF_FALSE_OR_POP", []int{4}}, OP_JUMP_IF_TRUE_OR_POP: {"JUMP_IF_TRUE_OR_POP", []int{4}},
	OP_POP_JUMP_IF_FALSE: {"POP_JUMP_IF_FALSE", []int{4}},

	OP_CALL: {"CALL", []int{2}}, OP_CALL_KW: {"CALL_KW", []int{2}}, OP_RETURN_VALUE: {"RETURN_VALUE", nil},
	OP_MAKE_FUNCTION: {"MAKE_FUNCTION", []int{2}}, OP_MAKE_CLASS: {"MAKE_CLASS", []int{2}},

	OP_SETUP_FINALLY: {"SETUP_FINALLY", []int{4}}, OP_POP_BLOCK: {"POP_BLOCK", nil}, OP_POP_EXCEPT: {"POP_EXCEPT", nil},
	OP_RAISE: {"RAISE", []int{1}}, OP_RERAISE: {"RERAISE", nil}, OP_END_FINALLY: {"END_FINALLY", nil},
	OP_CHECK_EXC_MATCH: {"CHECK_EXC_MATCH", nil},

	OP_SETUP_WITH: {"SETUP_WITH", []int{4}}, OP_WITH_EXIT: {"WITH_EXIT", []int{1}},

	OP_GET_ITER: {"GET_ITER", nil}, OP_FOR_ITER: {"FOR_ITER", []int{4}},
	OP_YIELD_VALUE: {"YIELD_VALUE", nil}, OP_YIELD_FROM: {"YIELD_FROM", nil},

	OP_IMPORT_NAME: {"IMPORT_NAME", []int{2}}, OP_IMPORT_FROM: {"IMPORT_FROM", []int{2}}, OP_IMPORT_STAR: {"IMPORT_STAR", nil},

	OP_BUILD_STRING: {"BUILD_STRING", []int{2}}, OP_FORMAT_VALUE: {"FORMAT_VALUE", []int{2}},

	OP_MATCH_SEQUENCE: {"MATCH_SEQUENCE", []int{2}}, OP_MATCH_CLASS: {"MATCH_CLASS", []int{2, 2}},

	OP_PRINT_EXPR: {"PRINT_EXPR", nil}, OP_LOAD_CONST_NONE: {"LOAD_CONST_NONE", nil},
}

func (op Opcode) String() string {
	if n, ok := names[op]; ok {
		return n
	}
	return fmt.Sprintf("OP(%d)", op)
}

func Get(op Opcode) (*OpCodeDefinition, error) {
	def, ok := definitions[op]
	if !ok {
		return nil, fmt.Errorf("compiler: undefined opcode %d", op)
	}
	return def, nil
}

// MakeInstruction encodes op and its operands big-endian, supporting
// 1/2/4-byte operand widths.
func MakeInstruction(op Opcode, operands ...int) []byte {
	def, err := Get(op)
	if err != nil {
		return []byte{byte(op)}
	}
	length := 1
	for _, w := range def.OperandWidths {
		length += w
	}
	instr := make([]byte, length)
	instr[0] = byte(op)
	offset := 1
	for i, operand := range operands {
		width := def.OperandWidths[i]
		switch width {
		case 1:
			instr[offset] = byte(operand)
		case 2:
			binary.BigEndian.PutUint16(instr[offset:], uint16(operand))
		case 4:
			binary.BigEndian.PutUint32(instr[offset:], uint32(operand))
		}
		offset += width
	}
	return instr
}

func ReadUint16(ins Instructions, offset int) uint16 {
	return binary.BigEndian.Uint16(ins[offset:])
}

func ReadUint32(ins Instructions, offset int) uint32 {
	return binary.BigEndian.Uint32(ins[offset:])
}

// InstructionWidth returns the total byte length of the instruction at
// offset, used both by the linearizer's jump patching and the VM's
// dispatch loop advance.
func InstructionWidth(op Opcode) int {
	def, err := Get(op)
	if err != nil {
		return 1
	}
	total := 1
	for _, w := range def.OperandWidths {
		total += w
	}
	return total
}

// Disassemble renders a single instruction at offset as text.
func Disassemble(ins Instructions, offset int) (string, int) {
	op := Opcode(ins[offset])
	def, err := Get(op)
	if err != nil {
		return fmt.Sprintf("%04d ERROR: %s", offset, err), 1
	}
	width := InstructionWidth(op)
	var operandStr string
	pos := offset + 1
	for _, w := range def.OperandWidths {
		switch w {
		case 1:
			operandStr += fmt.Sprintf(" %d", ins[pos])
		case 2:
			operandStr += fmt.Sprintf(" %d", ReadUint16(ins, pos))
		case 4:
			operandStr += fmt.Sprintf(" %d", ReadUint32(ins, pos))
		}
		pos += w
	}
	return fmt.Sprintf("%04d %s%s", offset, def.Name, operandStr), width
}

// DisassembleAll renders an entire instruction stream.
func DisassembleAll(ins Instructions) string {
	out := ""
	ip := 0
	for ip < len(ins) {
		line, width := Disassemble(ins, ip)
		out += line + "\n"
		ip += width
	}
	return out
}
