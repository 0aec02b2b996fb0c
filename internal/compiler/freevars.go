package compiler

import "github.com/pyvm/pyvm/internal/ast"

// nestedReferences collects every bare name touched — read, written,
// or for-target-bound — anywhere inside a function body, recursing
// into further nested function/class bodies so multi-level closures
// still surface at the top. It deliberately does not try to subtract
// names a deeper nested scope rebinds locally; over-including a name
// as "free" only costs an unnecessary cell allocation; it never
// changes program semantics.
func nestedReferences(stmts []ast.Stmt) map[string]bool {
	out := map[string]bool{}
	var walkStmts func([]ast.Stmt)
	var walkStmt func(ast.Stmt)
	var walkExpr func(ast.Expr)

	walkExpr = func(e ast.Expr) {
		if e == nil {
			return
		}
		switch n := e.(type) {
		case *ast.Ident:
			out[n.Name] = true
		case *ast.Binary:
			walkExpr(n.Left)
			walkExpr(n.Right)
		case *ast.Unary:
			walkExpr(n.Operand)
		case *ast.BoolOp:
			for _, v := range n.Values {
				walkExpr(v)
			}
		case *ast.Compare:
			walkExpr(n.Left)
			for _, c := range n.Comparators {
				walkExpr(c)
			}
		case *ast.Ternary:
			walkExpr(n.Cond)
			walkExpr(n.Then)
			walkExpr(n.Else)
		case *ast.Call:
			walkExpr(n.Func)
			for _, a := range n.Args {
				walkExpr(a.Value)
			}
		case *ast.Attribute:
			walkExpr(n.Value)
		case *ast.Subscript:
			walkExpr(n.Value)
			walkExpr(n.Index)
		case *ast.Slice:
			walkExpr(n.Start)
			walkExpr(n.End)
			walkExpr(n.Step)
		case *ast.ListLit:
			for _, el := range n.Elts {
				walkExpr(el)
			}
		case *ast.TupleLit:
			for _, el := range n.Elts {
				walkExpr(el)
			}
		case *ast.SetLit:
			for _, el := range n.Elts {
				walkExpr(el)
			}
		case *ast.DictLit:
			for _, entry := range n.Entries {
				walkExpr(entry.Key)
				walkExpr(entry.Value)
			}
		case *ast.ListComp:
			walkExpr(n.Elt)
			walkComp(n.Generators, walkExpr)
		case *ast.SetComp:
			walkExpr(n.Elt)
			walkComp(n.Generators, walkExpr)
		case *ast.DictComp:
			walkExpr(n.Key)
			walkExpr(n.Value)
			walkComp(n.Generators, walkExpr)
		case *ast.GeneratorExp:
			walkExpr(n.Elt)
			walkComp(n.Generators, walkExpr)
		case *ast.Lambda:
			walkExpr(n.Body)
		case *ast.Starred:
			walkExpr(n.Value)
		case *ast.FString:
			for _, part := range n.Parts {
				walkExpr(part.Expr)
			}
		case *ast.NamedExpr:
			out[n.Name] = true
			walkExpr(n.Value)
		case *ast.YieldExpr:
			walkExpr(n.Value)
		}
	}

	walkStmts = func(ss []ast.Stmt) {
		for _, s := range ss {
			walkStmt(s)
		}
	}

	walkStmt = func(s ast.Stmt) {
		switch n := s.(type) {
		case *ast.ExprStmt:
			walkExpr(n.X)
		case *ast.Assign:
			for _, t := range n.Targets {
				walkExpr(t)
			}
			walkExpr(n.Value)
		case *ast.AugAssign:
			walkExpr(n.Target)
			walkExpr(n.Value)
		case *ast.Assert:
			walkExpr(n.Cond)
			walkExpr(n.Msg)
		case *ast.Raise:
			walkExpr(n.Exc)
			walkExpr(n.From)
		case *ast.Return:
			walkExpr(n.Value)
		case *ast.Delete:
			for _, t := range n.Targets {
				walkExpr(t)
			}
		case *ast.If:
			walkExpr(n.Cond)
			walkStmts(n.Then)
			walkStmts(n.Else)
		case *ast.While:
			walkExpr(n.Cond)
			walkStmts(n.Body)
			walkStmts(n.Else)
		case *ast.For:
			walkExpr(n.Target)
			walkExpr(n.Iter)
			walkStmts(n.Body)
			walkStmts(n.Else)
		case *ast.Try:
			walkStmts(n.Body)
			for _, h := range n.Handlers {
				walkExpr(h.Type)
				walkStmts(h.Body)
			}
			walkStmts(n.Else)
			walkStmts(n.Finally)
		case *ast.With:
			for _, item := range n.Items {
				walkExpr(item.Ctx)
				walkExpr(item.As)
			}
			walkStmts(n.Body)
		case *ast.Match:
			walkExpr(n.Subject)
			for _, c := range n.Cases {
				walkExpr(c.Guard)
				walkStmts(c.Body)
			}
		case *ast.FunctionDef:
			for _, d := range n.Decorators {
				walkExpr(d.Expr)
			}
			for _, param := range n.Params {
				walkExpr(param.Default)
			}
			walkStmts(n.Body)
		case *ast.ClassDef:
			for _, d := range n.Decorators {
				walkExpr(d.Expr)
			}
			for _, b := range n.Bases {
				walkExpr(b)
			}
			walkStmts(n.Body)
		}
	}

	walkStmts(stmts)
	return out
}

func walkComp(gens []ast.Comprehension, walkExpr func(ast.Expr)) {
	for _, g := range gens {
		walkExpr(g.Target)
		walkExpr(g.Iter)
		for _, cond := range g.Ifs {
			walkExpr(cond)
		}
	}
}
