package compiler

import "github.com/pyvm/pyvm/internal/ast"

// scanScope walks a function (or module) body's statements — without
// descending into nested function/class/lambda bodies — and reports
// every name that is bound somewhere in it plus every name declared
// global or nonlocal. The CFG builder uses this to decide, once and
// for all before emitting any code, which names resolve to a fast
// local slot versus a dynamic global/enclosing lookup.
type scopeInfo struct {
	assigned  map[string]bool
	globals   map[string]bool
	nonlocals map[string]bool
}

func scanScope(body []ast.Stmt) *scopeInfo {
	info := &scopeInfo{assigned: map[string]bool{}, globals: map[string]bool{}, nonlocals: map[string]bool{}}
	scanStmts(body, info)
	return info
}

func scanStmts(stmts []ast.Stmt, info *scopeInfo) {
	for _, s := range stmts {
		scanStmt(s, info)
	}
}

func scanStmt(s ast.Stmt, info *scopeInfo) {
	switch n := s.(type) {
	case *ast.Assign:
		for _, t := range n.Targets {
			collectTargetNames(t, info.assigned)
		}
	case *ast.AugAssign:
		collectTargetNames(n.Target, info.assigned)
	case *ast.Global:
		for _, name := range n.Names {
			info.globals[name] = true
		}
	case *ast.Nonlocal:
		for _, name := range n.Names {
			info.nonlocals[name] = true
		}
	case *ast.FunctionDef:
		info.assigned[n.Name] = true
	case *ast.ClassDef:
		info.assigned[n.Name] = true
	case *ast.Import:
		for _, alias := range n.Names {
			name := alias.Alias
			if name == "" {
				name = firstDotted(alias.Name)
			}
			info.assigned[name] = true
		}
	case *ast.ImportFrom:
		for _, alias := range n.Names {
			name := alias.Alias
			if name == "" {
				name = alias.Name
			}
			info.assigned[name] = true
		}
	case *ast.For:
		collectTargetNames(n.Target, info.assigned)
		scanStmts(n.Body, info)
		scanStmts(n.Else, info)
	case *ast.While:
		scanStmts(n.Body, info)
		scanStmts(n.Else, info)
	case *ast.If:
		scanStmts(n.Then, info)
		scanStmts(n.Else, info)
	case *ast.Try:
		scanStmts(n.Body, info)
		for _, h := range n.Handlers {
			if h.Name != "" {
				info.assigned[h.Name] = true
			}
			scanStmts(h.Body, info)
		}
		scanStmts(n.Else, info)
		scanStmts(n.Finally, info)
	case *ast.With:
		for _, item := range n.Items {
			if item.As != nil {
				collectTargetNames(item.As, info.assigned)
			}
		}
		scanStmts(n.Body, info)
	case *ast.Match:
		for _, c := range n.Cases {
			collectPatternNames(c.Pattern, info.assigned)
			scanStmts(c.Body, info)
		}
	case *ast.ExprStmt:
		collectExprBoundNames(n.X, info.assigned)
	}
}

func firstDotted(name string) string {
	for i, r := range name {
		if r == '.' {
			return name[:i]
		}
	}
	return name
}

// collectTargetNames gathers every name an assignment target binds —
// handling plain names, tuple/list unpacking, and starred targets —
// but not attribute or subscript targets, which don't bind a name.
func collectTargetNames(e ast.Expr, out map[string]bool) {
	switch t := e.(type) {
	case *ast.Ident:
		out[t.Name] = true
	case *ast.TupleLit:
		for _, el := range t.Elts {
			collectTargetNames(el, out)
		}
	case *ast.ListLit:
		for _, el := range t.Elts {
			collectTargetNames(el, out)
		}
	case *ast.Starred:
		collectTargetNames(t.Value, out)
	}
}

func collectPatternNames(p ast.Pattern, out map[string]bool) {
	switch pat := p.(type) {
	case ast.MatchCapture:
		out[pat.Name] = true
	case ast.MatchSequence:
		for _, el := range pat.Elts {
			collectPatternNames(el, out)
		}
	case ast.MatchOr:
		for _, el := range pat.Options {
			collectPatternNames(el, out)
		}
	case ast.MatchClass:
		for _, el := range pat.Attrs {
			collectPatternNames(el, out)
		}
	}
}

// collectExprBoundNames finds walrus assignments nested inside a bare
// expression statement (e.g. `(x := f())` used for its side effect).
func collectExprBoundNames(e ast.Expr, out map[string]bool) {
	switch n := e.(type) {
	case *ast.NamedExpr:
		out[n.Name] = true
		collectExprBoundNames(n.Value, out)
	case *ast.BoolOp:
		for _, v := range n.Values {
			collectExprBoundNames(v, out)
		}
	case *ast.Ternary:
		collectExprBoundNames(n.Cond, out)
		collectExprBoundNames(n.Then, out)
		collectExprBoundNames(n.Else, out)
	case *ast.Call:
		collectExprBoundNames(n.Func, out)
		for _, a := range n.Args {
			collectExprBoundNames(a.Value, out)
		}
	}
}
