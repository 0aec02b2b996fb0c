package compiler

import "github.com/pyvm/pyvm/internal/ast"

// compileMatch lowers a match/case statement. The subject is kept on
// the stack across case attempts (duped for each try); a failed
// pattern test always consumes its own copy, so the next case sees
// the original value untouched.
func (c *Compiler) compileMatch(s *scope, n *ast.Match) error {
	if err := c.compileExpr(s, n.Subject); err != nil {
		return err
	}
	end := s.b.newBlock()
	for _, cs := range n.Cases {
		failBlk := s.b.newBlock()
		s.b.emit(OP_DUP)
		if err := c.compilePatternTest(s, cs.Pattern, failBlk); err != nil {
			return err
		}
		if cs.Guard != nil {
			if err := c.compileExpr(s, cs.Guard); err != nil {
				return err
			}
			s.b.emitJump(OP_POP_JUMP_IF_FALSE, failBlk)
		}
		s.b.emit(OP_POP) // discard the original subject before running the body
		if err := c.compileStmts(s, cs.Body); err != nil {
			return err
		}
		s.b.emitJump(OP_JUMP, end)
		s.b.setCurrent(failBlk)
	}
	s.b.emit(OP_POP) // no case matched
	s.b.fallTo(end)
	s.b.setCurrent(end)
	return nil
}

// compilePatternTest consumes the value on TOS, binding any captures
// as it goes. On success it falls through having consumed exactly
// that one value. On failure it consumes the value anyway and jumps
// to failBlk, so the caller's stack depth is unaffected either way.
func (c *Compiler) compilePatternTest(s *scope, pat ast.Pattern, failBlk int) error {
	switch p := pat.(type) {
	case ast.MatchWildcard:
		s.b.emit(OP_POP)
	case ast.MatchCapture:
		c.emitStoreName(s, p.Name)
	case ast.MatchValue:
		if err := c.compileExpr(s, p.Value); err != nil {
			return err
		}
		s.b.emit(OP_COMPARE_OP, int(CMP_EQ))
		s.b.emitJump(OP_POP_JUMP_IF_FALSE, failBlk)
	case ast.MatchOr:
		return c.compileMatchOr(s, p, failBlk)
	case ast.MatchSequence:
		return c.compileMatchSequence(s, p, failBlk)
	case ast.MatchClass:
		return c.compileMatchClass(s, p, failBlk)
	default:
		return CompileError{Message: "unsupported match pattern"}
	}
	return nil
}

func (c *Compiler) compileMatchOr(s *scope, p ast.MatchOr, failBlk int) error {
	done := s.b.newBlock()
	for i, opt := range p.Options {
		last := i == len(p.Options)-1
		target := failBlk
		if !last {
			target = s.b.newBlock()
			s.b.emit(OP_DUP)
		}
		if err := c.compilePatternTest(s, opt, target); err != nil {
			return err
		}
		if !last {
			s.b.emitJump(OP_JUMP, done)
			s.b.setCurrent(target)
		}
	}
	s.b.fallTo(done)
	s.b.setCurrent(done)
	return nil
}

// unwindChain builds a chain of blocks that pop n stray values (the
// not-yet-matched leading elements of a sequence/class pattern) before
// falling through to failBlk, so a sub-pattern failing partway through
// can discard everything already pushed in one jump.
func (s *scope) unwindChain(n int, failBlk int) []int {
	chain := make([]int, n+1)
	chain[0] = failBlk
	for i := 1; i <= n; i++ {
		blk := s.b.newBlock()
		chain[i] = blk
	}
	for i := 1; i <= n; i++ {
		s.b.setCurrent(chain[i])
		s.b.emit(OP_POP)
		s.b.fallTo(chain[i-1])
	}
	return chain
}

func (c *Compiler) compileMatchSequence(s *scope, p ast.MatchSequence, failBlk int) error {
	cont := s.b.newBlock()
	s.b.emit(OP_MATCH_SEQUENCE, len(p.Elts))
	s.b.emitJump(OP_POP_JUMP_IF_FALSE, failBlk)
	s.b.fallTo(cont)
	s.b.setCurrent(cont)
	chain := s.unwindChain(len(p.Elts), failBlk)
	s.b.setCurrent(cont)
	for i := len(p.Elts) - 1; i >= 0; i-- {
		if err := c.compilePatternTest(s, p.Elts[i], chain[i]); err != nil {
			return err
		}
	}
	return nil
}

func (c *Compiler) compileMatchClass(s *scope, p ast.MatchClass, failBlk int) error {
	classExpr, ok := p.Class.(*ast.Ident)
	var nameIdx int
	if ok {
		nameIdx = s.nameConst(classExpr.Name)
	} else if attr, ok := p.Class.(*ast.Attribute); ok {
		nameIdx = s.nameConst(attr.Attr)
	}
	cont := s.b.newBlock()
	s.b.emit(OP_MATCH_CLASS, nameIdx, len(p.Attrs))
	s.b.emitJump(OP_POP_JUMP_IF_FALSE, failBlk)
	s.b.fallTo(cont)
	s.b.setCurrent(cont)
	chain := s.unwindChain(len(p.Attrs), failBlk)
	s.b.setCurrent(cont)
	for i := len(p.Attrs) - 1; i >= 0; i-- {
		if err := c.compilePatternTest(s, p.Attrs[i], chain[i]); err != nil {
			return err
		}
	}
	return nil
}
