package reduce

import (
	"github.com/2b45/zeek/internal/ast"
	"github.com/2b45/zeek/internal/val"
)

// DefaultMaxInlineDepth caps nested expansion. Recursion is excluded
// up front, but chains of distinct callees can still nest.
const DefaultMaxInlineDepth = 8

// InlineFunc is the slice of a function the inliner needs: identity,
// parameter names, and the reduced body.
type InlineFunc struct {
	Func   *val.FuncVal
	Params []*ast.NameExpr
	Body   ast.Stmt
}

// Inliner performs whole-program inlining: it is built over every
// function at once, since expansion decisions depend on the global
// call graph.
type Inliner struct {
	funcs    map[*val.FuncVal]*InlineFunc
	reducer  *Reducer
	maxDepth int
	depth    int

	// nonRecursive holds functions proven cycle-free in the call
	// graph. Functions are assumed recursive unless proven otherwise,
	// so an empty set (analysis skipped) is the safe default.
	nonRecursive map[*val.FuncVal]bool
}

// NewInliner builds an inliner over the program's functions and runs
// recursion analysis. The Reducer is used to canonicalize the glue
// statements expansion fabricates.
func NewInliner(funcs []*InlineFunc, r *Reducer) *Inliner {
	inl := &Inliner{
		funcs:        make(map[*val.FuncVal]*InlineFunc, len(funcs)),
		reducer:      r,
		maxDepth:     DefaultMaxInlineDepth,
		nonRecursive: make(map[*val.FuncVal]bool),
	}
	for _, f := range funcs {
		inl.funcs[f.Func] = f
	}
	inl.analyzeRecursion()
	return inl
}

// SetMaxDepth overrides the expansion depth cap. Values below one
// keep the default.
func (inl *Inliner) SetMaxDepth(n int) {
	if n > 0 {
		inl.maxDepth = n
	}
}

// IsNonRecursive reports that f was proven non-recursive. Absence
// means "possibly recursive".
func (inl *Inliner) IsNonRecursive(f *val.FuncVal) bool {
	return inl.nonRecursive[f]
}

// NonRecursive exposes the proven-non-recursive set.
func (inl *Inliner) NonRecursive() map[*val.FuncVal]bool { return inl.nonRecursive }

// Inline runs call-site expansion over a function body.
func (inl *Inliner) Inline(body ast.Stmt) {
	body.Inline(inl)
}

// ExpandCall implements ast.Inliner. A call is applicable when the
// callee is known, proven non-recursive, its body is in canonical
// form with at most one return in tail position, and the expansion
// depth cap holds.
func (inl *Inliner) ExpandCall(call *ast.CallExpr, target *ast.NameExpr) ast.Stmt {
	callee, ok := inl.funcs[call.Func]
	if !ok || !inl.nonRecursive[call.Func] {
		return nil
	}
	if inl.depth >= inl.maxDepth {
		return nil
	}
	// Expansion splices copies of the callee's statements, and the
	// splice is marked canonical wholesale. A callee that never went
	// through reduction (single-function restriction skipped it) would
	// smuggle non-canonical statements past that mark, so its calls
	// stay put.
	if !callee.Body.IsReduced() {
		return nil
	}
	body, ok := tailReturnBody(callee.Body)
	if !ok {
		return nil
	}

	var stmts []ast.Stmt
	if len(callee.Params) > 0 {
		params := make([]*ast.NameExpr, len(callee.Params))
		for i, p := range callee.Params {
			params[i] = p.Duplicate().(*ast.NameExpr)
		}
		init := ast.NewInit(params...)
		init.Reduce(inl.reducer)
		stmts = append(stmts, init)
		for i, p := range params {
			a := ast.NewAssign(p.Duplicate(), call.Args[i].Duplicate())
			a.Reduce(inl.reducer)
			stmts = append(stmts, a)
		}
	}

	for _, c := range body.Stmts {
		stmts = append(stmts, rewriteReturns(c.Duplicate(), target))
	}

	expansion := ast.NewList(stmts...)
	ast.MarkReduced(expansion)

	// Expand calls inside the spliced copy too, one level deeper.
	inl.depth++
	expansion.Inline(inl)
	inl.depth--
	return expansion
}

// tailReturnBody accepts bodies whose only return, if any, is the
// final statement of the top-level list. Early returns would need
// control-flow surgery, so those calls stay.
func tailReturnBody(body ast.Stmt) (*ast.StmtList, bool) {
	list, ok := body.(*ast.StmtList)
	if !ok {
		list = ast.NewList(body)
		ast.MarkReduced(list)
	}
	for i, s := range list.Stmts {
		if countReturns(s) > 0 {
			if i != len(list.Stmts)-1 {
				return nil, false
			}
			if _, isRet := s.(*ast.ReturnStmt); !isRet {
				return nil, false
			}
		}
	}
	return list, true
}

func countReturns(s ast.Stmt) int {
	n := 0
	switch v := s.(type) {
	case *ast.ReturnStmt:
		n++
	case *ast.StmtList:
		for _, c := range v.Stmts {
			n += countReturns(c)
		}
	case *ast.IfStmt:
		if v.Then != nil {
			n += countReturns(v.Then)
		}
		if v.Else != nil {
			n += countReturns(v.Else)
		}
	case *ast.WhileStmt:
		n += countReturns(v.Body)
		for _, c := range v.CondStmts {
			n += countReturns(c)
		}
	}
	return n
}

// rewriteReturns turns the tail return of an expansion into an
// assignment to the call's target (or a no-op when the result is
// discarded).
func rewriteReturns(s ast.Stmt, target *ast.NameExpr) ast.Stmt {
	ret, ok := s.(*ast.ReturnStmt)
	if !ok {
		return s
	}
	if target == nil || ret.E == nil {
		if ret.E != nil && !ret.E.IsPure() {
			es := ast.NewExprStmt(ret.E.Duplicate())
			ast.MarkReduced(es)
			return es
		}
		n := ast.NewNull()
		ast.MarkReduced(n)
		return n
	}
	a := ast.NewAssign(target.Duplicate(), ret.E.Duplicate())
	ast.MarkReduced(a)
	return a
}

// analyzeRecursion marks every function not on a call-graph cycle as
// non-recursive. The check is a DFS from each function looking for a
// path back to itself; anything unknown stays out of the set.
func (inl *Inliner) analyzeRecursion() {
	calls := make(map[*val.FuncVal][]*val.FuncVal, len(inl.funcs))
	for f, info := range inl.funcs {
		calls[f] = collectCallees(info.Body, nil)
	}
	for f := range inl.funcs {
		if !reaches(calls, f, f, make(map[*val.FuncVal]bool)) {
			inl.nonRecursive[f] = true
		}
	}
}

func reaches(calls map[*val.FuncVal][]*val.FuncVal, from, to *val.FuncVal, seen map[*val.FuncVal]bool) bool {
	for _, c := range calls[from] {
		if c == to {
			return true
		}
		if seen[c] {
			continue
		}
		seen[c] = true
		if reaches(calls, c, to, seen) {
			return true
		}
	}
	return false
}

func collectCallees(s ast.Stmt, out []*val.FuncVal) []*val.FuncVal {
	switch v := s.(type) {
	case *ast.StmtList:
		for _, c := range v.Stmts {
			out = collectCallees(c, out)
		}
	case *ast.IfStmt:
		out = exprCallees(v.Cond, out)
		if v.Then != nil {
			out = collectCallees(v.Then, out)
		}
		if v.Else != nil {
			out = collectCallees(v.Else, out)
		}
	case *ast.WhileStmt:
		out = exprCallees(v.Cond, out)
		for _, c := range v.CondStmts {
			out = collectCallees(c, out)
		}
		out = collectCallees(v.Body, out)
	case *ast.ExprStmt:
		out = exprCallees(v.E, out)
	case *ast.AssignStmt:
		out = exprCallees(v.LHS, out)
		out = exprCallees(v.RHS, out)
	case *ast.ReturnStmt:
		if v.E != nil {
			out = exprCallees(v.E, out)
		}
	case *ast.PrintStmt:
		for _, a := range v.Args {
			out = exprCallees(a, out)
		}
	}
	return out
}

func exprCallees(e ast.Expr, out []*val.FuncVal) []*val.FuncVal {
	switch v := e.(type) {
	case *ast.CallExpr:
		out = append(out, v.Func)
		for _, a := range v.Args {
			out = exprCallees(a, out)
		}
	case *ast.BinaryExpr:
		out = exprCallees(v.L, out)
		out = exprCallees(v.R, out)
	case *ast.FieldExpr:
		out = exprCallees(v.Rec, out)
	case *ast.IndexExpr:
		out = exprCallees(v.Vec, out)
		out = exprCallees(v.Index, out)
	}
	return out
}
