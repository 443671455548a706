// Package ast defines the statement and expression nodes the
// transformation pipeline operates over, together with the contract
// every statement satisfies: duplication, reduction to canonical form,
// inlining, lowering to bytecode, purity and control-flow queries, and
// the provenance link back to the pre-transformation original.
package ast

import (
	"time"

	"github.com/2b45/zeek/internal/types"
)

// StmtTag identifies a statement variant, for diagnostics and dumps.
// Dispatch itself goes through the Stmt interface, not the tag.
type StmtTag int

const (
	StmtTagNull StmtTag = iota
	StmtTagList
	StmtTagExpr
	StmtTagAssign
	StmtTagIf
	StmtTagWhile
	StmtTagReturn
	StmtTagPrint
	StmtTagInit
	StmtTagBreak
	StmtTagNext
)

var stmtTagNames = map[StmtTag]string{
	StmtTagNull:   "null",
	StmtTagList:   "list",
	StmtTagExpr:   "expr",
	StmtTagAssign: "assign",
	StmtTagIf:     "if",
	StmtTagWhile:  "while",
	StmtTagReturn: "return",
	StmtTagPrint:  "print",
	StmtTagInit:   "init",
	StmtTagBreak:  "break",
	StmtTagNext:   "next",
}

func (t StmtTag) String() string { return stmtTagNames[t] }

// Reducer is the canonicalization service statements reduce through;
// implemented by the reduce package.
type Reducer interface {
	// ReduceExpr rewrites e so that every subexpression with
	// observable effects or nested evaluation is hoisted into a fresh
	// temporary, appending the hoisting statements to out in
	// evaluation order. The result is a flat operation over
	// singletons, or a singleton itself.
	ReduceExpr(e Expr, out *[]Stmt) Expr

	// ReduceToSingleton is ReduceExpr followed by hoisting even a flat
	// top-level operation, leaving only a name or constant.
	ReduceToSingleton(e Expr, out *[]Stmt) Expr
}

// Inliner decides and builds call-site expansions; implemented by the
// reduce package.
type Inliner interface {
	// ExpandCall returns the statement replacing an applicable call,
	// assigning the call's result to target when target is non-nil.
	// A nil return leaves the call in place.
	ExpandCall(call *CallExpr, target *NameExpr) Stmt
}

// Compiler lowers reduced statements; implemented by the zam package.
type Compiler interface {
	CompileStmt(s Stmt) (CompiledStmt, error)
	// MergeStmts aggregates children's handles in evaluation order
	// into a compound handle.
	MergeStmts(handles []CompiledStmt) CompiledStmt
}

// CompiledStmt is the opaque handle of a lowered statement.
type CompiledStmt interface{}

// Node is anything renderable in transform dumps.
type Node interface {
	String() string
}

// Stmt is the contract every statement variant implements.
type Stmt interface {
	Node

	Tag() StmtTag

	// Duplicate produces an independent copy so that transforming one
	// call site's copy of a body never mutates another's. Per-node
	// analysis metadata is intrinsic to the node, so even textually
	// identical statements are not shareable.
	Duplicate() Stmt

	// Reduce returns the statement in canonical form. An
	// already-reduced statement returns itself; reduction is
	// idempotent and free of side effects, so that one sharing is
	// safe. A returned node that differs from the input carries the
	// input as its original.
	Reduce(r Reducer) Stmt

	// IsReduced reports whether the node is already in canonical form.
	IsReduced() bool

	// Inline replaces applicable call sites in place. No-op for nodes
	// that never contain calls.
	Inline(inl Inliner)

	// Compile lowers the statement to bytecode. Calling it on a
	// non-reduced node is a pipeline-ordering violation and panics.
	Compile(c Compiler) (CompiledStmt, error)

	// IsPure reports that executing the statement has no observable
	// side effects.
	IsPure() bool

	// NoFlowAfter reports that control provably never reaches past
	// this statement. ignoreBreak distinguishes "break exits a
	// loop/switch" from "break still lets flow reach the textual end
	// of the enclosing construct".
	NoFlowAfter(ignoreBreak bool) bool

	// Original follows the provenance chain to the ultimate
	// pre-transformation node.
	Original() Stmt

	// Access statistics: mutable metadata independent of the
	// statement's semantic identity.
	RegisterAccess()
	AccessCount() uint32
	LastAccess() time.Time

	setOriginal(o Stmt)
	markReduced()
}

// baseStmt carries the pieces every variant shares. self points at the
// enclosing variant so Original can terminate the chain.
type baseStmt struct {
	self     Stmt
	tag      StmtTag
	original Stmt
	reduced  bool

	lastAccess  time.Time
	accessCount uint32
}

func (b *baseStmt) init(tag StmtTag, self Stmt) {
	b.tag = tag
	b.self = self
}

func (b *baseStmt) Tag() StmtTag { return b.tag }

func (b *baseStmt) IsReduced() bool { return b.reduced }

func (b *baseStmt) markReduced() { b.reduced = true }

func (b *baseStmt) setOriginal(o Stmt) {
	// Keep the first link; the chain below it already leads to the
	// ultimate original.
	if b.original == nil && o != b.self {
		b.original = o
	}
}

func (b *baseStmt) Original() Stmt {
	if b.original == nil {
		return b.self
	}
	return b.original.Original()
}

func (b *baseStmt) RegisterAccess() {
	b.lastAccess = time.Now()
	b.accessCount++
}

func (b *baseStmt) AccessCount() uint32 { return b.accessCount }

func (b *baseStmt) LastAccess() time.Time { return b.lastAccess }

// Defaults overridden by variants as needed.

func (b *baseStmt) IsPure() bool { return false }

func (b *baseStmt) NoFlowAfter(ignoreBreak bool) bool { return false }

func (b *baseStmt) Inline(inl Inliner) {}

// finishReduce marks to reduced and links it to from when reduction
// produced a different node.
func finishReduce(to, from Stmt) Stmt {
	if to != from {
		to.setOriginal(from)
	}
	to.markReduced()
	return to
}

// MarkReduced records that a node fabricated directly in canonical
// form (inlining glue, optimizer rewrites) needs no reduction pass.
func MarkReduced(s Stmt) { s.markReduced() }

// checkCompilable panics on pipeline-ordering violations: the driver
// guarantees reduction runs before lowering, so a non-reduced node
// here is a programming error, not a recoverable condition.
func checkCompilable(s Stmt) {
	if !s.IsReduced() {
		panic("ast: compiling non-reduced " + s.Tag().String() + " statement")
	}
}

// Expr is the (closed) expression surface the pipeline needs.
type Expr interface {
	Node

	TypeOf() *types.Type
	Duplicate() Expr

	// IsPure reports evaluation has no observable side effects.
	IsPure() bool

	// HasCalls reports whether any subexpression is a call.
	HasCalls() bool

	// IsSingleton reports the expression is a bare name or constant.
	IsSingleton() bool

	// IsReduced reports the expression is a singleton or a flat
	// operation over singletons.
	IsReduced() bool
}
