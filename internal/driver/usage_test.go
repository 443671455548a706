package driver

import (
	"testing"

	"github.com/2b45/zeek/internal/ast"
	"github.com/2b45/zeek/internal/types"
	"github.com/2b45/zeek/internal/val"
)

func TestUsageLevelZeroIsOff(t *testing.T) {
	x := ast.NewName("x", types.Int)
	body := ast.NewAssign(x, ast.NewConst(val.NewInt(1)))
	fi := NewFuncInfo(&val.FuncVal{Name: "f"}, nil, body)
	if issues := FindUsageIssues(fi, 0); issues != nil {
		t.Errorf("level 0 produced issues: %v", issues)
	}
}

func TestSetButUnusedLocal(t *testing.T) {
	// f() { unused = 1; kept = 2; return kept; }
	unused := ast.NewName("unused", types.Int)
	kept := ast.NewName("kept", types.Int)
	body := ast.NewList(
		ast.NewAssign(unused, ast.NewConst(val.NewInt(1))),
		ast.NewAssign(kept, ast.NewConst(val.NewInt(2))),
		ast.NewReturn(kept.Duplicate()),
	)
	fi := NewFuncInfo(&val.FuncVal{Name: "f"}, nil, body)

	issues := FindUsageIssues(fi, 1)
	if len(issues) != 1 {
		t.Fatalf("got %d issues, want 1: %v", len(issues), issues)
	}
	if issues[0].Name != "unused" {
		t.Errorf("flagged %q, want %q", issues[0].Name, "unused")
	}
}

func TestReducerTempsNotFlagged(t *testing.T) {
	tmp := ast.NewName("#0", types.Int)
	body := ast.NewAssign(tmp, ast.NewConst(val.NewInt(1)))
	fi := NewFuncInfo(&val.FuncVal{Name: "f"}, nil, body)
	if issues := FindUsageIssues(fi, 1); len(issues) != 0 {
		t.Errorf("temporary flagged: %v", issues)
	}
}

func TestUninitializedRecordField(t *testing.T) {
	rt := types.NewRecord("r", []types.Field{
		{Name: "set", Type: types.Int, Optional: true},
		{Name: "never", Type: types.Int, Optional: true},
	})
	// f() { r$set = 1; x = r$set; y = r$never; }
	r := ast.NewName("r", rt)
	body := ast.NewList(
		ast.NewAssign(ast.NewField(r, 0, types.Int), ast.NewConst(val.NewInt(1))),
		ast.NewAssign(ast.NewName("x", types.Int), ast.NewField(r.Duplicate(), 0, types.Int)),
		ast.NewAssign(ast.NewName("y", types.Int), ast.NewField(r.Duplicate(), 1, types.Int)),
	)
	fi := NewFuncInfo(&val.FuncVal{Name: "f"},
		&Scope{Locals: []*ast.NameExpr{r}}, body)

	issues := FindUsageIssues(fi, 2)
	var found bool
	for _, is := range issues {
		if is.Name == "r" {
			found = true
			if is.Message != "field $never read but never initialized" {
				t.Errorf("message = %q", is.Message)
			}
		}
	}
	if !found {
		t.Errorf("uninitialized field not flagged: %v", issues)
	}
}

func TestDefaultedFieldNotFlagged(t *testing.T) {
	rt := types.NewRecord("r", []types.Field{
		{Name: "d", Type: types.Int, Optional: true, Default: val.NewInt(7)},
	})
	r := ast.NewName("r", rt)
	body := ast.NewAssign(ast.NewName("x", types.Int), ast.NewField(r, 0, types.Int))
	fi := NewFuncInfo(&val.FuncVal{Name: "f"},
		&Scope{Locals: []*ast.NameExpr{r}}, body)

	for _, is := range FindUsageIssues(fi, 2) {
		if is.Name == "r" {
			t.Errorf("defaulted field flagged: %v", is)
		}
	}
}

func TestLevelOneSkipsRecordAnalysis(t *testing.T) {
	rt := types.NewRecord("r", []types.Field{
		{Name: "never", Type: types.Int, Optional: true},
	})
	r := ast.NewName("r", rt)
	body := ast.NewAssign(ast.NewName("x", types.Int), ast.NewField(r, 0, types.Int))
	fi := NewFuncInfo(&val.FuncVal{Name: "f"},
		&Scope{Locals: []*ast.NameExpr{r}}, body)

	for _, is := range FindUsageIssues(fi, 1) {
		if is.Name == "r" {
			t.Errorf("level 1 ran record analysis: %v", is)
		}
	}
}
