package driver

import (
	"github.com/2b45/zeek/internal/ast"
	"github.com/2b45/zeek/internal/val"
	"github.com/2b45/zeek/internal/zam"
)

// Scope is a function's parameter and local bindings, in declaration
// order. Parameters come first.
type Scope struct {
	Params []*ast.NameExpr
	Locals []*ast.NameExpr
}

// Profile is derived execution metadata for one analyzed function.
// A FuncInfo owns its profile exclusively.
type Profile struct {
	NumStmts    int
	NumExprs    int
	MaxDepth    int
	AccessCount map[string]int
}

// FuncInfo is one analyzed function instance: its handle, scope, body
// tree, and analysis products. The driver creates one per registered
// function and tears it down with Done.
type FuncInfo struct {
	Func  *val.FuncVal
	Scope *Scope
	Body  ast.Stmt

	// Profile is nil until profiling runs.
	Profile *Profile

	// SaveFile names the body's save file, empty when the function
	// opted out of persistence.
	SaveFile string

	// Chunk is set once lowering (or a cache hit) produces bytecode.
	Chunk *zam.Chunk

	// NonRecursive records the recursion analysis verdict. Functions
	// are assumed recursive until proven otherwise.
	NonRecursive bool

	skip bool
}

func NewFuncInfo(fn *val.FuncVal, scope *Scope, body ast.Stmt) *FuncInfo {
	if scope == nil {
		scope = &Scope{}
	}
	return &FuncInfo{Func: fn, Scope: scope, Body: body}
}

// ShouldAnalyze honors a single-function restriction. Inlining ignores
// this; everything else respects it.
func (fi *FuncInfo) ShouldAnalyze(onlyFunc string) bool {
	if fi.skip {
		return false
	}
	return onlyFunc == "" || fi.Func.Name == onlyFunc
}

// Skip withdraws the function from further analysis passes.
func (fi *FuncInfo) Skip() { fi.skip = true }

// Done tears the instance down, releasing the profile.
func (fi *FuncInfo) Done() {
	fi.Profile = nil
	fi.Body = nil
	fi.Chunk = nil
}

// BuildProfile derives statement statistics from the body tree.
func (fi *FuncInfo) BuildProfile() *Profile {
	p := &Profile{AccessCount: make(map[string]int)}
	if fi.Body != nil {
		profileStmt(fi.Body, 1, p)
	}
	fi.Profile = p
	return p
}

func profileStmt(s ast.Stmt, depth int, p *Profile) {
	p.NumStmts++
	if depth > p.MaxDepth {
		p.MaxDepth = depth
	}
	if n := s.AccessCount(); n > 0 {
		p.AccessCount[s.Tag().String()] += int(n)
	}
	switch v := s.(type) {
	case *ast.StmtList:
		for _, c := range v.Stmts {
			profileStmt(c, depth+1, p)
		}
	case *ast.ExprStmt:
		p.NumExprs += countExprs(v.E)
	case *ast.AssignStmt:
		p.NumExprs += countExprs(v.LHS) + countExprs(v.RHS)
	case *ast.IfStmt:
		p.NumExprs += countExprs(v.Cond)
		if v.Then != nil {
			profileStmt(v.Then, depth+1, p)
		}
		if v.Else != nil {
			profileStmt(v.Else, depth+1, p)
		}
	case *ast.WhileStmt:
		p.NumExprs += countExprs(v.Cond)
		for _, c := range v.CondStmts {
			profileStmt(c, depth+1, p)
		}
		profileStmt(v.Body, depth+1, p)
	case *ast.ReturnStmt:
		if v.E != nil {
			p.NumExprs += countExprs(v.E)
		}
	case *ast.PrintStmt:
		for _, a := range v.Args {
			p.NumExprs += countExprs(a)
		}
	}
}

func countExprs(e ast.Expr) int {
	switch v := e.(type) {
	case *ast.BinaryExpr:
		return 1 + countExprs(v.L) + countExprs(v.R)
	case *ast.CallExpr:
		n := 1
		for _, a := range v.Args {
			n += countExprs(a)
		}
		return n
	case *ast.FieldExpr:
		return 1 + countExprs(v.Rec)
	case *ast.IndexExpr:
		return 1 + countExprs(v.Vec) + countExprs(v.Index)
	default:
		return 1
	}
}
