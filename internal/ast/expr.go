package ast

import (
	"fmt"
	"strings"

	"github.com/2b45/zeek/internal/types"
	"github.com/2b45/zeek/internal/val"
)

// ConstExpr is a literal value.
type ConstExpr struct {
	V *val.Val
}

func NewConst(v *val.Val) *ConstExpr { return &ConstExpr{V: v} }

func (e *ConstExpr) TypeOf() *types.Type { return e.V.TypeOf() }
func (e *ConstExpr) Duplicate() Expr     { return &ConstExpr{V: e.V} }
func (e *ConstExpr) IsPure() bool        { return true }
func (e *ConstExpr) HasCalls() bool      { return false }
func (e *ConstExpr) IsSingleton() bool   { return true }
func (e *ConstExpr) IsReduced() bool     { return true }
func (e *ConstExpr) String() string      { return e.V.String() }

// NameExpr is a reference to a local or parameter. Temporaries minted
// during reduction are flagged so dumps and usage analysis can tell
// them from script-declared names.
type NameExpr struct {
	ID     string
	T      *types.Type
	IsTemp bool
}

func NewName(id string, t *types.Type) *NameExpr { return &NameExpr{ID: id, T: t} }

func (e *NameExpr) TypeOf() *types.Type { return e.T }
func (e *NameExpr) Duplicate() Expr {
	return &NameExpr{ID: e.ID, T: e.T, IsTemp: e.IsTemp}
}
func (e *NameExpr) IsPure() bool      { return true }
func (e *NameExpr) HasCalls() bool    { return false }
func (e *NameExpr) IsSingleton() bool { return true }
func (e *NameExpr) IsReduced() bool   { return true }
func (e *NameExpr) String() string    { return e.ID }

// BinOp enumerates the flat operations canonical form allows.
type BinOp int

const (
	OpAdd BinOp = iota
	OpSub
	OpMul
	OpDiv
	OpMod
	OpEq
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe
)

var binOpNames = map[BinOp]string{
	OpAdd: "+", OpSub: "-", OpMul: "*", OpDiv: "/", OpMod: "%",
	OpEq: "==", OpNe: "!=", OpLt: "<", OpLe: "<=", OpGt: ">", OpGe: ">=",
}

func (op BinOp) String() string { return binOpNames[op] }

// BinaryExpr is a binary operation. In reduced form both operands are
// singletons, making the expression directly lowerable to one
// three-register instruction.
type BinaryExpr struct {
	Op   BinOp
	L, R Expr
	T    *types.Type
}

func NewBinary(op BinOp, l, r Expr, t *types.Type) *BinaryExpr {
	return &BinaryExpr{Op: op, L: l, R: r, T: t}
}

func (e *BinaryExpr) TypeOf() *types.Type { return e.T }
func (e *BinaryExpr) Duplicate() Expr {
	return &BinaryExpr{Op: e.Op, L: e.L.Duplicate(), R: e.R.Duplicate(), T: e.T}
}
func (e *BinaryExpr) IsPure() bool      { return e.L.IsPure() && e.R.IsPure() }
func (e *BinaryExpr) HasCalls() bool    { return e.L.HasCalls() || e.R.HasCalls() }
func (e *BinaryExpr) IsSingleton() bool { return false }
func (e *BinaryExpr) IsReduced() bool   { return e.L.IsSingleton() && e.R.IsSingleton() }
func (e *BinaryExpr) String() string {
	return fmt.Sprintf("%s %s %s", e.L, e.Op, e.R)
}

// CallExpr invokes a script function. Calls are never pure: the callee
// may have arbitrary effects.
type CallExpr struct {
	Func *val.FuncVal
	Args []Expr
	T    *types.Type
}

func NewCall(fn *val.FuncVal, args []Expr, t *types.Type) *CallExpr {
	return &CallExpr{Func: fn, Args: args, T: t}
}

func (e *CallExpr) TypeOf() *types.Type { return e.T }
func (e *CallExpr) Duplicate() Expr {
	args := make([]Expr, len(e.Args))
	for i, a := range e.Args {
		args[i] = a.Duplicate()
	}
	return &CallExpr{Func: e.Func, Args: args, T: e.T}
}
func (e *CallExpr) IsPure() bool      { return false }
func (e *CallExpr) HasCalls() bool    { return true }
func (e *CallExpr) IsSingleton() bool { return false }
func (e *CallExpr) IsReduced() bool {
	for _, a := range e.Args {
		if !a.IsSingleton() {
			return false
		}
	}
	return true
}
func (e *CallExpr) String() string {
	parts := make([]string, len(e.Args))
	for i, a := range e.Args {
		parts[i] = a.String()
	}
	return fmt.Sprintf("%s(%s)", e.Func.Name, strings.Join(parts, ", "))
}

// FieldExpr reads a record field by offset.
type FieldExpr struct {
	Rec   Expr
	Field int
	T     *types.Type
}

func NewField(rec Expr, field int, t *types.Type) *FieldExpr {
	return &FieldExpr{Rec: rec, Field: field, T: t}
}

func (e *FieldExpr) TypeOf() *types.Type { return e.T }
func (e *FieldExpr) Duplicate() Expr {
	return &FieldExpr{Rec: e.Rec.Duplicate(), Field: e.Field, T: e.T}
}
func (e *FieldExpr) IsPure() bool {
	// Reading a field can materialize a default or raise the
	// absent-field error, so it is not removable.
	return false
}
func (e *FieldExpr) HasCalls() bool    { return e.Rec.HasCalls() }
func (e *FieldExpr) IsSingleton() bool { return false }
func (e *FieldExpr) IsReduced() bool   { return e.Rec.IsSingleton() }
func (e *FieldExpr) String() string {
	return fmt.Sprintf("%s$%d", e.Rec, e.Field)
}

// IndexExpr reads a vector element.
type IndexExpr struct {
	Vec   Expr
	Index Expr
	T     *types.Type
}

func NewIndex(vec, index Expr, t *types.Type) *IndexExpr {
	return &IndexExpr{Vec: vec, Index: index, T: t}
}

func (e *IndexExpr) TypeOf() *types.Type { return e.T }
func (e *IndexExpr) Duplicate() Expr {
	return &IndexExpr{Vec: e.Vec.Duplicate(), Index: e.Index.Duplicate(), T: e.T}
}
func (e *IndexExpr) IsPure() bool      { return false }
func (e *IndexExpr) HasCalls() bool    { return e.Vec.HasCalls() || e.Index.HasCalls() }
func (e *IndexExpr) IsSingleton() bool { return false }
func (e *IndexExpr) IsReduced() bool   { return e.Vec.IsSingleton() && e.Index.IsSingleton() }
func (e *IndexExpr) String() string {
	return fmt.Sprintf("%s[%s]", e.Vec, e.Index)
}
