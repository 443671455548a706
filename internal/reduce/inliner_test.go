package reduce

import (
	"strings"
	"testing"

	"github.com/2b45/zeek/internal/ast"
	"github.com/2b45/zeek/internal/types"
	"github.com/2b45/zeek/internal/val"
)

func reduced(t *testing.T, s ast.Stmt) ast.Stmt {
	t.Helper()
	return s.Reduce(NewReducer())
}

// makeFunc builds a function record with a reduced body.
func makeFunc(t *testing.T, name string, params []string, body ast.Stmt) *InlineFunc {
	t.Helper()
	fv := val.NewFunc(name, params).AsFunc()
	var ps []*ast.NameExpr
	for _, p := range params {
		ps = append(ps, ast.NewName(p, types.Int))
	}
	return &InlineFunc{Func: fv, Params: ps, Body: reduced(t, body)}
}

func TestRecursionAnalysis(t *testing.T) {
	leaf := makeFunc(t, "leaf", nil, ast.NewList(ast.NewReturn(ast.NewConst(val.NewInt(1)))))

	selfRec := val.NewFunc("selfRec", nil).AsFunc()
	selfBody := reduced(t, ast.NewList(ast.NewExprStmt(ast.NewCall(selfRec, nil, types.Void))))
	rec := &InlineFunc{Func: selfRec, Body: selfBody}

	// Mutual recursion through two functions.
	aFn := val.NewFunc("a", nil).AsFunc()
	bFn := val.NewFunc("b", nil).AsFunc()
	aBody := reduced(t, ast.NewList(ast.NewExprStmt(ast.NewCall(bFn, nil, types.Void))))
	bBody := reduced(t, ast.NewList(ast.NewExprStmt(ast.NewCall(aFn, nil, types.Void))))
	a := &InlineFunc{Func: aFn, Body: aBody}
	b := &InlineFunc{Func: bFn, Body: bBody}

	inl := NewInliner([]*InlineFunc{leaf, rec, a, b}, NewReducer())

	if !inl.IsNonRecursive(leaf.Func) {
		t.Error("leaf must be proven non-recursive")
	}
	if inl.IsNonRecursive(selfRec) {
		t.Error("directly recursive function must stay out of the set")
	}
	if inl.IsNonRecursive(aFn) || inl.IsNonRecursive(bFn) {
		t.Error("mutually recursive functions must stay out of the set")
	}
}

func TestConservativeWhenAnalysisSkipped(t *testing.T) {
	// An inliner built over no functions knows nothing: everything is
	// possibly recursive.
	inl := NewInliner(nil, NewReducer())
	f := val.NewFunc("unknown", nil).AsFunc()
	if inl.IsNonRecursive(f) {
		t.Error("unanalyzed functions must be assumed recursive")
	}
	if len(inl.NonRecursive()) != 0 {
		t.Error("skipped analysis must leave the proven set empty")
	}
}

func TestExpandCallSplicesBody(t *testing.T) {
	// callee: func add1(n) { return n + 1 }
	n := ast.NewName("n", types.Int)
	body := ast.NewList(ast.NewReturn(
		ast.NewBinary(ast.OpAdd, n, ast.NewConst(val.NewInt(1)), types.Int)))
	callee := makeFunc(t, "add1", []string{"n"}, body)

	// caller: x = add1(5)
	r := NewReducer()
	x := ast.NewName("x", types.Int)
	call := ast.NewCall(callee.Func, []ast.Expr{ast.NewConst(val.NewInt(5))}, types.Int)
	caller := reduced(t, ast.NewList(ast.NewAssign(x, call)))

	inl := NewInliner([]*InlineFunc{callee}, r)
	inl.Inline(caller)

	list := caller.(*ast.StmtList)
	if len(list.Stmts) != 1 {
		t.Fatalf("caller body has %d statements, want 1", len(list.Stmts))
	}
	expansion, ok := list.Stmts[0].(*ast.StmtList)
	if !ok {
		t.Fatalf("call site not expanded: %T %s", list.Stmts[0], list.Stmts[0])
	}
	if !expansion.IsReduced() {
		t.Error("expansion must be in reduced form")
	}

	rendered := expansion.String()
	for _, want := range []string{"local n", "n = 5", "x = "} {
		if !strings.Contains(rendered, want) {
			t.Errorf("expansion missing %q: %s", want, rendered)
		}
	}
	if strings.Contains(rendered, "add1(") {
		t.Errorf("expansion still contains the call: %s", rendered)
	}
}

func TestInlineDoesNotMutateCalleeBody(t *testing.T) {
	n := ast.NewName("n", types.Int)
	body := ast.NewList(ast.NewReturn(
		ast.NewBinary(ast.OpAdd, n, ast.NewConst(val.NewInt(1)), types.Int)))
	callee := makeFunc(t, "add1", []string{"n"}, body)
	before := callee.Body.String()

	r := NewReducer()
	call := ast.NewCall(callee.Func, []ast.Expr{ast.NewConst(val.NewInt(5))}, types.Int)
	caller := reduced(t, ast.NewList(ast.NewAssign(ast.NewName("x", types.Int), call)))

	inl := NewInliner([]*InlineFunc{callee}, r)
	inl.Inline(caller)
	inl.Inline(caller.Duplicate()) // a second site gets its own copy

	if got := callee.Body.String(); got != before {
		t.Errorf("inlining mutated the callee body:\n before %s\n after %s", before, got)
	}
}

func TestEarlyReturnBlocksExpansion(t *testing.T) {
	// func f(n) { if (n < 0) { return 0 } return n } has an early
	// return; the call must stay.
	n := ast.NewName("n", types.Int)
	body := ast.NewList(
		ast.NewIf(ast.NewBinary(ast.OpLt, n, ast.NewConst(val.NewInt(0)), types.Bool),
			ast.NewList(ast.NewReturn(ast.NewConst(val.NewInt(0)))), nil),
		ast.NewReturn(n.Duplicate()),
	)
	callee := makeFunc(t, "clamp", []string{"n"}, body)

	r := NewReducer()
	call := ast.NewCall(callee.Func, []ast.Expr{ast.NewConst(val.NewInt(5))}, types.Int)
	caller := reduced(t, ast.NewList(ast.NewAssign(ast.NewName("x", types.Int), call)))

	inl := NewInliner([]*InlineFunc{callee}, r)
	inl.Inline(caller)

	if _, ok := caller.(*ast.StmtList).Stmts[0].(*ast.AssignStmt); !ok {
		t.Error("call with early-return callee must not be expanded")
	}
}

func TestRawCalleeBodyBlocksExpansion(t *testing.T) {
	// A callee that never went through reduction must not be spliced:
	// expansion marks the splice canonical, and raw statements would
	// ride along.
	n := ast.NewName("n", types.Int)
	rawBody := ast.NewList(
		ast.NewReturn(ast.NewBinary(ast.OpMul,
			ast.NewBinary(ast.OpAdd, n, ast.NewConst(val.NewInt(1)), types.Int),
			ast.NewConst(val.NewInt(2)), types.Int)),
	)
	fv := val.NewFunc("helper", []string{"n"}).AsFunc()
	callee := &InlineFunc{Func: fv, Params: []*ast.NameExpr{n}, Body: rawBody}

	r := NewReducer()
	call := ast.NewCall(fv, []ast.Expr{ast.NewConst(val.NewInt(5))}, types.Int)
	caller := reduced(t, ast.NewList(ast.NewAssign(ast.NewName("x", types.Int), call)))

	inl := NewInliner([]*InlineFunc{callee}, r)
	inl.Inline(caller)

	if !strings.Contains(caller.String(), "helper(") {
		t.Fatalf("raw-bodied callee was expanded:\n%s", caller)
	}
	if !caller.IsReduced() {
		t.Error("caller lost its canonical form")
	}
}
