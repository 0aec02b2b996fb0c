// Package values implements the tagged runtime value model shared by
// the compiler's constant pool and the VM: every Python value the
// interpreter manipulates is a values.Value.
package values

import (
	"math"
	"math/big"
	"sort"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// Type names the concrete kind of a Value, used by type(), isinstance()
// and error messages.
type Type string

const (
	TypeInt      Type = "int"
	TypeFloat    Type = "float"
	TypeBool     Type = "bool"
	TypeStr      Type = "str"
	TypeNone     Type = "NoneType"
	TypeList     Type = "list"
	TypeTuple    Type = "tuple"
	TypeDict     Type = "dict"
	TypeSet      Type = "set"
	TypeFunction Type = "function"
	TypeMethod   Type = "method"
	TypeClass    Type = "type"
	TypeInstance Type = "instance"
	TypeGenerator Type = "generator"
	TypeFile     Type = "file"
	TypeModule   Type = "module"
	TypeBuiltin  Type = "builtin_function_or_method"
	TypeRange    Type = "range"
	TypeSlice    Type = "slice"
	TypeIterator Type = "iterator"
)

// Value is implemented by every runtime object. Hash's second return
// reports whether the value is hashable at all (NaN reports
// ok=false, since it never compares equal to anything, even itself).
type Value interface {
	Type() Type
	String() string
	Truthy() bool
	Hash() (uint64, bool)
}

// ---- Int (arbitrary precision) ----

type Int struct{ V *big.Int }

func NewInt(i int64) Int    { return Int{V: big.NewInt(i)} }
func NewBigInt(b *big.Int) Int { return Int{V: b} }

func (Int) Type() Type       { return TypeInt }
func (i Int) String() string { return i.V.String() }
func (i Int) Truthy() bool   { return i.V.Sign() != 0 }
func (i Int) Hash() (uint64, bool) {
	return hashBytes(byte(TypeInt[0]), i.V.Bytes(), i.V.Sign() < 0), true
}

// ---- Float ----

type Float struct{ V float64 }

func NewFloat(f float64) Float { return Float{V: f} }

func (Float) Type() Type       { return TypeFloat }
func (f Float) String() string { return formatFloat(f.V) }
func (f Float) Truthy() bool   { return f.V != 0 }
func (f Float) Hash() (uint64, bool) {
	if f.V != f.V { // NaN
		return 0, false
	}
	// An integral float hashes the same as the equal Int, since 1 == 1.0
	// == True must imply equal hashes for dict/set lookup to treat them
	// as the same key.
	if f.V == float64(int64(f.V)) {
		return NewInt(int64(f.V)).Hash()
	}
	bits := mathFloatBits(f.V)
	return hashBytes('f', bits, false), true
}

func formatFloat(f float64) string {
	if f == float64(int64(f)) && f < 1e16 && f > -1e16 {
		return strconv.FormatFloat(f, 'f', 1, 64)
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// ---- Bool ----

type Bool struct{ V bool }

func NewBool(b bool) Bool { return Bool{V: b} }

func (Bool) Type() Type { return TypeBool }
func (b Bool) String() string {
	if b.V {
		return "True"
	}
	return "False"
}
func (b Bool) Truthy() bool { return b.V }
func (b Bool) Hash() (uint64, bool) {
	if b.V {
		return NewInt(1).Hash()
	}
	return NewInt(0).Hash()
}

// ---- NoneType ----

type NoneType struct{}

var None = NoneType{}

func (NoneType) Type() Type       { return TypeNone }
func (NoneType) String() string   { return "None" }
func (NoneType) Truthy() bool     { return false }
func (NoneType) Hash() (uint64, bool) { return hashBytes('n', nil, false), true }

// ---- Str ----

type Str struct{ V string }

func NewStr(s string) Str { return Str{V: s} }

func (Str) Type() Type       { return TypeStr }
func (s Str) String() string { return s.V }
func (s Str) Truthy() bool   { return len(s.V) > 0 }
func (s Str) Hash() (uint64, bool) {
	return hashBytes('s', []byte(s.V), false), true
}

func (s Str) Repr() string {
	var b strings.Builder
	b.WriteByte('\'')
	for _, r := range s.V {
		switch r {
		case '\'':
			b.WriteString("\\'")
		case '\\':
			b.WriteString("\\\\")
		case '\n':
			b.WriteString("\\n")
		case '\t':
			b.WriteString("\\t")
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('\'')
	return b.String()
}

// ---- List (mutable sequence) ----

type List struct{ Elems []Value }

func NewList(elems ...Value) *List { return &List{Elems: elems} }

func (*List) Type() Type { return TypeList }
func (l *List) String() string {
	return "[" + joinRepr(l.Elems) + "]"
}
func (l *List) Truthy() bool             { return len(l.Elems) > 0 }
func (l *List) Hash() (uint64, bool)     { return 0, false }

// ---- Tuple (immutable sequence) ----

type Tuple struct{ Elems []Value }

func NewTuple(elems ...Value) Tuple { return Tuple{Elems: elems} }

func (Tuple) Type() Type { return TypeTuple }
func (t Tuple) String() string {
	if len(t.Elems) == 1 {
		return "(" + Repr(t.Elems[0]) + ",)"
	}
	return "(" + joinRepr(t.Elems) + ")"
}
func (t Tuple) Truthy() bool { return len(t.Elems) > 0 }
func (t Tuple) Hash() (uint64, bool) {
	h := xxhash.New()
	h.Write([]byte{'t'})
	for _, e := range t.Elems {
		eh, ok := e.Hash()
		if !ok {
			return 0, false
		}
		var buf [8]byte
		putUint64(buf[:], eh)
		h.Write(buf[:])
	}
	return h.Sum64(), true
}

// ---- Dict (insertion-ordered mapping) ----

// dictEntry pairs a hashable key with its value; Keys preserves
// insertion order independent of the hash index.
type dictEntry struct {
	key   Value
	value Value
}

type Dict struct {
	index map[uint64][]int // hash -> entry indices (collision chain)
	order []dictEntry
}

func NewDict() *Dict {
	return &Dict{index: make(map[uint64][]int)}
}

func (*Dict) Type() Type { return TypeDict }
func (d *Dict) String() string {
	var parts []string
	for _, e := range d.order {
		parts = append(parts, Repr(e.key)+": "+Repr(e.value))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
func (d *Dict) Truthy() bool         { return len(d.order) > 0 }
func (d *Dict) Hash() (uint64, bool) { return 0, false }
func (d *Dict) Len() int             { return len(d.order) }

func (d *Dict) findIndex(key Value) (int, bool) {
	h, ok := key.Hash()
	if !ok {
		return -1, false
	}
	for _, idx := range d.index[h] {
		if Equal(d.order[idx].key, key) {
			return idx, true
		}
	}
	return -1, false
}

func (d *Dict) Get(key Value) (Value, bool) {
	idx, ok := d.findIndex(key)
	if !ok {
		return nil, false
	}
	return d.order[idx].value, true
}

func (d *Dict) Set(key, value Value) {
	if idx, ok := d.findIndex(key); ok {
		d.order[idx].value = value
		return
	}
	h, ok := key.Hash()
	if !ok {
		return
	}
	d.order = append(d.order, dictEntry{key: key, value: value})
	d.index[h] = append(d.index[h], len(d.order)-1)
}

func (d *Dict) Delete(key Value) bool {
	idx, ok := d.findIndex(key)
	if !ok {
		return false
	}
	d.order = append(d.order[:idx], d.order[idx+1:]...)
	d.index = make(map[uint64][]int)
	for i, e := range d.order {
		h, _ := e.key.Hash()
		d.index[h] = append(d.index[h], i)
	}
	return true
}

func (d *Dict) Keys() []Value {
	keys := make([]Value, len(d.order))
	for i, e := range d.order {
		keys[i] = e.key
	}
	return keys
}

func (d *Dict) Values() []Value {
	vals := make([]Value, len(d.order))
	for i, e := range d.order {
		vals[i] = e.value
	}
	return vals
}

func (d *Dict) Items() []Tuple {
	items := make([]Tuple, len(d.order))
	for i, e := range d.order {
		items[i] = NewTuple(e.key, e.value)
	}
	return items
}

// ---- Set ----

type Set struct {
	index map[uint64][]int
	elems []Value
}

func NewSet() *Set { return &Set{index: make(map[uint64][]int)} }

func (*Set) Type() Type { return TypeSet }
func (s *Set) String() string {
	if len(s.elems) == 0 {
		return "set()"
	}
	return "{" + joinRepr(s.elems) + "}"
}
func (s *Set) Truthy() bool         { return len(s.elems) > 0 }
func (s *Set) Hash() (uint64, bool) { return 0, false }
func (s *Set) Len() int             { return len(s.elems) }

func (s *Set) Contains(v Value) bool {
	h, ok := v.Hash()
	if !ok {
		return false
	}
	for _, idx := range s.index[h] {
		if Equal(s.elems[idx], v) {
			return true
		}
	}
	return false
}

func (s *Set) Add(v Value) {
	if s.Contains(v) {
		return
	}
	h, ok := v.Hash()
	if !ok {
		return
	}
	s.elems = append(s.elems, v)
	s.index[h] = append(s.index[h], len(s.elems)-1)
}

func (s *Set) Remove(v Value) bool {
	h, ok := v.Hash()
	if !ok {
		return false
	}
	for i, idx := range s.index[h] {
		if Equal(s.elems[idx], v) {
			s.elems = append(s.elems[:idx], s.elems[idx+1:]...)
			s.index = make(map[uint64][]int)
			for j, e := range s.elems {
				eh, _ := e.Hash()
				s.index[eh] = append(s.index[eh], j)
			}
			_ = i
			return true
		}
	}
	return false
}

func (s *Set) Elems() []Value { return s.elems }

// ---- Exception instance ----

// Exception is the runtime representation of a raised/caught error —
// every built-in and user-defined exception class produces one of
// these, keyed by ClassName for isinstance/except-clause matching.
type Exception struct {
	ClassName string
	Class     *Class // nil for exceptions the VM raises internally rather than constructs by calling a Class
	Args      []Value
	Traceback []string
	Cause     *Exception
	Attrs     *Dict // extra attributes a user __init__ sets on self
}

func NewException(className string, args ...Value) *Exception {
	return &Exception{ClassName: className, Args: args, Attrs: NewDict()}
}

func (*Exception) Type() Type { return TypeInstance }
func (e *Exception) String() string {
	if len(e.Args) == 0 {
		return e.ClassName
	}
	parts := make([]string, len(e.Args))
	for i, a := range e.Args {
		parts[i] = a.String()
	}
	return e.ClassName + "(" + strings.Join(parts, ", ") + ")"
}
func (e *Exception) Truthy() bool         { return true }
func (e *Exception) Hash() (uint64, bool) { return 0, false }

func (e *Exception) Error() string { return e.String() }

// ---- helpers ----

func joinRepr(vs []Value) string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = Repr(v)
	}
	return strings.Join(parts, ", ")
}

// Repr renders the `repr()` form of a value — strings are quoted,
// containers render their elements with Repr recursively.
func Repr(v Value) string {
	if s, ok := v.(Str); ok {
		return s.Repr()
	}
	return v.String()
}

func hashBytes(tag byte, data []byte, negative bool) uint64 {
	h := xxhash.New()
	h.Write([]byte{tag})
	if negative {
		h.Write([]byte{1})
	}
	h.Write(data)
	return h.Sum64()
}

func putUint64(buf []byte, v uint64) {
	for i := 0; i < 8; i++ {
		buf[i] = byte(v >> (8 * (7 - i)))
	}
}

func mathFloatBits(f float64) []byte {
	buf := make([]byte, 8)
	putUint64(buf, math.Float64bits(f))
	return buf
}

// SortableKeys returns v's dict keys sorted by their string form, used
// only by debug-dump tooling (iteration order elsewhere always follows
// insertion order, never this).
func SortableKeys(d *Dict) []Value {
	keys := d.Keys()
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
	return keys
}
