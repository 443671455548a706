package reduce

import (
	"strings"
	"testing"

	"github.com/2b45/zeek/internal/ast"
	"github.com/2b45/zeek/internal/types"
	"github.com/2b45/zeek/internal/val"
)

func TestReduceHoistsNestedOperations(t *testing.T) {
	// x = (a + b) * c  becomes  #0 = a + b; x = #0 * c
	a := ast.NewName("a", types.Int)
	b := ast.NewName("b", types.Int)
	c := ast.NewName("c", types.Int)
	x := ast.NewName("x", types.Int)
	inner := ast.NewBinary(ast.OpAdd, a, b, types.Int)
	outer := ast.NewBinary(ast.OpMul, inner, c, types.Int)
	s := ast.NewAssign(x, outer)

	red := s.Reduce(NewReducer())
	list, ok := red.(*ast.StmtList)
	if !ok {
		t.Fatalf("reduction of nested assign got %T, want StmtList", red)
	}
	if len(list.Stmts) != 2 {
		t.Fatalf("got %d statements, want 2: %s", len(list.Stmts), list)
	}

	hoist, ok := list.Stmts[0].(*ast.AssignStmt)
	if !ok {
		t.Fatalf("first statement %T, want hoisting assign", list.Stmts[0])
	}
	tmp, ok := hoist.LHS.(*ast.NameExpr)
	if !ok || !tmp.IsTemp {
		t.Errorf("hoist target %s must be a temporary", hoist.LHS)
	}
	if !hoist.RHS.IsReduced() {
		t.Errorf("hoisted operation %s must be flat", hoist.RHS)
	}

	final, ok := list.Stmts[1].(*ast.AssignStmt)
	if !ok || !final.RHS.IsReduced() {
		t.Fatalf("final assign not canonical: %s", list.Stmts[1])
	}
	if !red.IsReduced() {
		t.Error("result must be marked reduced")
	}
}

func TestReduceSetsOriginal(t *testing.T) {
	cond := ast.NewBinary(ast.OpLt,
		ast.NewBinary(ast.OpAdd, ast.NewName("a", types.Int), ast.NewName("b", types.Int), types.Int),
		ast.NewConst(val.NewInt(10)), types.Bool)
	s := ast.NewIf(cond, ast.NewReturn(nil), nil)

	red := s.Reduce(NewReducer())
	if red == ast.Stmt(s) {
		t.Fatal("hoisting must produce a wrapping node")
	}
	if got := red.Original(); got != ast.Stmt(s) {
		t.Errorf("Original of the reduction must be the input, got %v", got)
	}
}

func TestReduceIdempotentOnCanonicalInput(t *testing.T) {
	s := ast.NewAssign(ast.NewName("x", types.Int),
		ast.NewBinary(ast.OpAdd, ast.NewName("a", types.Int), ast.NewName("b", types.Int), types.Int))
	r := NewReducer()
	first := s.Reduce(r)
	if first != ast.Stmt(s) {
		t.Fatalf("canonical input must reduce to itself, got %T", first)
	}
	if second := first.Reduce(r); second != first {
		t.Error("second reduction must return the same node")
	}
}

func TestWhileCondHoistsRerunPerIteration(t *testing.T) {
	// while (a + b < 10) { ... }: the addition must land in
	// CondStmts, not ahead of the loop.
	cond := ast.NewBinary(ast.OpLt,
		ast.NewBinary(ast.OpAdd, ast.NewName("a", types.Int), ast.NewName("b", types.Int), types.Int),
		ast.NewConst(val.NewInt(10)), types.Bool)
	loop := ast.NewWhile(cond, ast.NewList(ast.NewBreak()))

	red := loop.Reduce(NewReducer())
	w, ok := red.(*ast.WhileStmt)
	if !ok {
		t.Fatalf("got %T, want WhileStmt", red)
	}
	if len(w.CondStmts) == 0 {
		t.Fatal("condition evaluation must be hoisted into the loop head")
	}
	if !w.Cond.IsSingleton() {
		t.Errorf("loop condition %s must be a singleton", w.Cond)
	}
}

func TestPrintArgsBecomeSingletons(t *testing.T) {
	p := ast.NewPrint(ast.NewBinary(ast.OpAdd,
		ast.NewConst(val.NewInt(1)), ast.NewConst(val.NewInt(2)), types.Int))
	red := p.Reduce(NewReducer())
	rendered := red.String()
	if !strings.Contains(rendered, "#0") {
		t.Errorf("argument must be hoisted through a temporary: %s", rendered)
	}
}
