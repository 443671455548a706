// Package reduce implements the canonicalization and inlining passes
// of the compilation pipeline. Reduction rewrites each statement so
// every sub-effect is evaluated in an explicit, ordered step through a
// named temporary; inlining expands applicable call sites with copies
// of provably non-recursive callee bodies.
package reduce

import (
	"fmt"

	"github.com/2b45/zeek/internal/ast"
)

// Reducer mints temporaries and rewrites expressions into canonical
// form. One Reducer serves one function body; temporary names are
// unique within it.
type Reducer struct {
	tempCount int

	// Temps accumulates every temporary minted while reducing, so the
	// compiler can size the frame and usage analysis can skip them.
	Temps []*ast.NameExpr
}

func NewReducer() *Reducer { return &Reducer{} }

// NewTemp mints a fresh temporary of the given expression's type.
func (r *Reducer) NewTemp(e ast.Expr) *ast.NameExpr {
	name := &ast.NameExpr{
		ID:     fmt.Sprintf("#%d", r.tempCount),
		T:      e.TypeOf(),
		IsTemp: true,
	}
	r.tempCount++
	r.Temps = append(r.Temps, name)
	return name
}

// ReduceExpr rewrites e into a flat operation over singletons,
// appending hoisting statements to out in evaluation order.
func (r *Reducer) ReduceExpr(e ast.Expr, out *[]ast.Stmt) ast.Expr {
	switch v := e.(type) {
	case *ast.ConstExpr, *ast.NameExpr:
		return e
	case *ast.BinaryExpr:
		v.L = r.ReduceToSingleton(v.L, out)
		v.R = r.ReduceToSingleton(v.R, out)
		return v
	case *ast.CallExpr:
		for i, a := range v.Args {
			v.Args[i] = r.ReduceToSingleton(a, out)
		}
		return v
	case *ast.FieldExpr:
		v.Rec = r.ReduceToSingleton(v.Rec, out)
		return v
	case *ast.IndexExpr:
		v.Vec = r.ReduceToSingleton(v.Vec, out)
		v.Index = r.ReduceToSingleton(v.Index, out)
		return v
	default:
		panic(fmt.Sprintf("reduce: unknown expression %T", e))
	}
}

// ReduceToSingleton is ReduceExpr followed by hoisting any remaining
// flat operation into a temporary, leaving a bare name or constant.
func (r *Reducer) ReduceToSingleton(e ast.Expr, out *[]ast.Stmt) ast.Expr {
	e = r.ReduceExpr(e, out)
	if e.IsSingleton() {
		return e
	}
	tmp := r.NewTemp(e)
	hoist := ast.NewAssign(tmp, e)
	hoist.Reduce(r) // already canonical; marks it so
	*out = append(*out, hoist)
	return tmp.Duplicate()
}
