package compiler

import "encoding/binary"

// jumpSite marks a 4-byte operand inside a block's instruction buffer
// that must be rewritten, once every block's final offset is known,
// to the absolute start offset of the named target block.
type jumpSite struct {
	pos    int
	target int
}

// block is one basic block of the CFG the AST compiler builds: a
// straight-line run of instructions ending in a fallthrough edge
// (next), a jump edge (recorded in jumpSites), or both for
// conditional jumps.
type block struct {
	id        int
	instrs    []byte
	jumpSites []jumpSite
	next      int // id of the fallthrough successor, or -1 if this block always exits via jump/return/raise
	lines     []LineEntry
}

// builder accumulates basic blocks for one CodeObject (one function
// body, or the module top level) during AST compilation.
type builder struct {
	blocks  []*block
	current int
}

func newBuilder() *builder {
	b := &builder{}
	b.blocks = append(b.blocks, &block{id: 0, next: -1})
	return b
}

func (b *builder) cur() *block { return b.blocks[b.current] }

// newBlock allocates a fresh block not yet linked to any other.
func (b *builder) newBlock() int {
	id := len(b.blocks)
	b.blocks = append(b.blocks, &block{id: id, next: -1})
	return id
}

// setCurrent switches emission to the named block.
func (b *builder) setCurrent(id int) { b.current = id }

// fallTo records that, absent an explicit jump, control flows from
// the current block into target — set once, when the current block
// is done being built.
func (b *builder) fallTo(target int) { b.cur().next = target }

func (b *builder) emit(op Opcode, operands ...int) int {
	pos := len(b.cur().instrs)
	b.cur().instrs = append(b.cur().instrs, MakeInstruction(op, operands...)...)
	return pos
}

func (b *builder) emitLine(line int) {
	cur := b.cur()
	cur.lines = append(cur.lines, LineEntry{Offset: len(cur.instrs), Line: line})
}

// emitJump appends a jump instruction whose operand is a placeholder,
// recording a jumpSite so the linearizer can patch it once the target
// block's final offset is known.
func (b *builder) emitJump(op Opcode, target int) {
	cur := b.cur()
	pos := len(cur.instrs) + 1 // operand starts right after the opcode byte
	cur.instrs = append(cur.instrs, MakeInstruction(op, 0)...)
	cur.jumpSites = append(cur.jumpSites, jumpSite{pos: pos, target: target})
}

// linearize performs a depth-first walk of the block graph starting
// at block 0 (preferring fallthrough edges before jump edges, so
// straight-line code stays contiguous), concatenates the visited
// blocks' instructions, and patches every jumpSite to the target
// block's resulting absolute offset.
func (b *builder) linearize() (Instructions, []LineEntry) {
	visited := make([]bool, len(b.blocks))
	var order []int
	var dfs func(id int)
	dfs = func(id int) {
		if id < 0 || id >= len(b.blocks) || visited[id] {
			return
		}
		visited[id] = true
		order = append(order, id)
		blk := b.blocks[id]
		dfs(blk.next)
		for _, js := range blk.jumpSites {
			dfs(js.target)
		}
	}
	dfs(0)
	for i := range b.blocks {
		dfs(i) // pick up any block unreachable from block 0 (defensive; shouldn't normally occur)
	}

	offsets := make([]int, len(b.blocks))
	var out Instructions
	var lines []LineEntry
	for _, id := range order {
		blk := b.blocks[id]
		offsets[id] = len(out)
		for _, le := range blk.lines {
			lines = append(lines, LineEntry{Offset: len(out) + le.Offset, Line: le.Line})
		}
		out = append(out, blk.instrs...)
	}
	for _, id := range order {
		blk := b.blocks[id]
		for _, js := range blk.jumpSites {
			target := offsets[js.target]
			binary.BigEndian.PutUint32(out[offsets[id]+js.pos:], uint32(target))
		}
	}
	return out, lines
}
