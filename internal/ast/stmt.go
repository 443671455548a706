package ast

import (
	"fmt"
	"strings"
)

// NullStmt does nothing. Reduction of other statements can leave these
// behind; the list reduction splices them out.
type NullStmt struct {
	baseStmt
}

func NewNull() *NullStmt {
	s := &NullStmt{}
	s.init(StmtTagNull, s)
	return s
}

func (s *NullStmt) Duplicate() Stmt {
	d := NewNull()
	d.reduced = s.reduced
	return d
}

func (s *NullStmt) Reduce(r Reducer) Stmt {
	if s.reduced {
		return s
	}
	return finishReduce(s, s)
}

func (s *NullStmt) Compile(c Compiler) (CompiledStmt, error) {
	checkCompilable(s)
	return c.CompileStmt(s)
}

func (s *NullStmt) IsPure() bool   { return true }
func (s *NullStmt) String() string { return ";" }

// StmtList is a statement sequence. Its compiled handle aggregates the
// children's handles in evaluation order.
type StmtList struct {
	baseStmt
	Stmts []Stmt
}

func NewList(stmts ...Stmt) *StmtList {
	s := &StmtList{Stmts: stmts}
	s.init(StmtTagList, s)
	return s
}

func (s *StmtList) Duplicate() Stmt {
	stmts := make([]Stmt, len(s.Stmts))
	for i, c := range s.Stmts {
		stmts[i] = c.Duplicate()
	}
	d := NewList(stmts...)
	d.reduced = s.reduced
	return d
}

func (s *StmtList) Reduce(r Reducer) Stmt {
	if s.reduced {
		return s
	}
	var out []Stmt
	for _, c := range s.Stmts {
		rc := c.Reduce(r)
		switch v := rc.(type) {
		case *NullStmt:
			// spliced out
		case *StmtList:
			out = append(out, v.Stmts...)
		default:
			out = append(out, rc)
		}
	}
	s.Stmts = out
	return finishReduce(s, s)
}

func (s *StmtList) Inline(inl Inliner) {
	for i := range s.Stmts {
		s.Stmts[i] = inlineStmt(s.Stmts[i], inl)
	}
}

func (s *StmtList) Compile(c Compiler) (CompiledStmt, error) {
	checkCompilable(s)
	handles := make([]CompiledStmt, 0, len(s.Stmts))
	for _, c2 := range s.Stmts {
		h, err := c2.Compile(c)
		if err != nil {
			return nil, err
		}
		handles = append(handles, h)
	}
	return c.MergeStmts(handles), nil
}

func (s *StmtList) IsPure() bool {
	for _, c := range s.Stmts {
		if !c.IsPure() {
			return false
		}
	}
	return true
}

func (s *StmtList) NoFlowAfter(ignoreBreak bool) bool {
	for _, c := range s.Stmts {
		if c.NoFlowAfter(ignoreBreak) {
			return true
		}
	}
	return false
}

func (s *StmtList) String() string {
	parts := make([]string, len(s.Stmts))
	for i, c := range s.Stmts {
		parts[i] = c.String()
	}
	return "{ " + strings.Join(parts, " ") + " }"
}

// ExprStmt evaluates an expression for its effects.
type ExprStmt struct {
	baseStmt
	E Expr
}

func NewExprStmt(e Expr) *ExprStmt {
	s := &ExprStmt{E: e}
	s.init(StmtTagExpr, s)
	return s
}

func (s *ExprStmt) Duplicate() Stmt {
	d := NewExprStmt(s.E.Duplicate())
	d.reduced = s.reduced
	return d
}

func (s *ExprStmt) Reduce(r Reducer) Stmt {
	if s.reduced {
		return s
	}
	var hoisted []Stmt
	s.E = r.ReduceExpr(s.E, &hoisted)
	if len(hoisted) == 0 {
		return finishReduce(s, s)
	}
	list := NewList(append(hoisted, s)...)
	s.markReduced()
	return finishReduce(list, s)
}

func (s *ExprStmt) Compile(c Compiler) (CompiledStmt, error) {
	checkCompilable(s)
	return c.CompileStmt(s)
}

func (s *ExprStmt) IsPure() bool   { return s.E.IsPure() }
func (s *ExprStmt) String() string { return s.E.String() + ";" }

// AssignStmt stores the value of RHS into LHS. Canonical form keeps
// the RHS a flat operation and the LHS a name, field of a name, or
// index of a name.
type AssignStmt struct {
	baseStmt
	LHS Expr
	RHS Expr
}

func NewAssign(lhs, rhs Expr) *AssignStmt {
	s := &AssignStmt{LHS: lhs, RHS: rhs}
	s.init(StmtTagAssign, s)
	return s
}

func (s *AssignStmt) Duplicate() Stmt {
	d := NewAssign(s.LHS.Duplicate(), s.RHS.Duplicate())
	d.reduced = s.reduced
	return d
}

func (s *AssignStmt) Reduce(r Reducer) Stmt {
	if s.reduced {
		return s
	}
	var hoisted []Stmt
	switch lhs := s.LHS.(type) {
	case *NameExpr:
		// already canonical
	case *FieldExpr:
		lhs.Rec = r.ReduceToSingleton(lhs.Rec, &hoisted)
	case *IndexExpr:
		lhs.Vec = r.ReduceToSingleton(lhs.Vec, &hoisted)
		lhs.Index = r.ReduceToSingleton(lhs.Index, &hoisted)
	default:
		panic(fmt.Sprintf("ast: unassignable target %T", s.LHS))
	}
	s.RHS = r.ReduceExpr(s.RHS, &hoisted)
	if len(hoisted) == 0 {
		return finishReduce(s, s)
	}
	list := NewList(append(hoisted, s)...)
	s.markReduced()
	return finishReduce(list, s)
}

func (s *AssignStmt) Compile(c Compiler) (CompiledStmt, error) {
	checkCompilable(s)
	return c.CompileStmt(s)
}

func (s *AssignStmt) String() string {
	return fmt.Sprintf("%s = %s;", s.LHS, s.RHS)
}

// IfStmt branches on a condition; either branch may be nil.
type IfStmt struct {
	baseStmt
	Cond Expr
	Then Stmt
	Else Stmt
}

func NewIf(cond Expr, then, els Stmt) *IfStmt {
	s := &IfStmt{Cond: cond, Then: then, Else: els}
	s.init(StmtTagIf, s)
	return s
}

func (s *IfStmt) Duplicate() Stmt {
	var then, els Stmt
	if s.Then != nil {
		then = s.Then.Duplicate()
	}
	if s.Else != nil {
		els = s.Else.Duplicate()
	}
	d := NewIf(s.Cond.Duplicate(), then, els)
	d.reduced = s.reduced
	return d
}

func (s *IfStmt) Reduce(r Reducer) Stmt {
	if s.reduced {
		return s
	}
	var hoisted []Stmt
	s.Cond = r.ReduceToSingleton(s.Cond, &hoisted)
	if s.Then != nil {
		s.Then = s.Then.Reduce(r)
	}
	if s.Else != nil {
		s.Else = s.Else.Reduce(r)
	}
	if len(hoisted) == 0 {
		return finishReduce(s, s)
	}
	list := NewList(append(hoisted, s)...)
	s.markReduced()
	return finishReduce(list, s)
}

func (s *IfStmt) Inline(inl Inliner) {
	if s.Then != nil {
		s.Then = inlineStmt(s.Then, inl)
	}
	if s.Else != nil {
		s.Else = inlineStmt(s.Else, inl)
	}
}

func (s *IfStmt) Compile(c Compiler) (CompiledStmt, error) {
	checkCompilable(s)
	return c.CompileStmt(s)
}

func (s *IfStmt) IsPure() bool {
	if !s.Cond.IsPure() {
		return false
	}
	if s.Then != nil && !s.Then.IsPure() {
		return false
	}
	if s.Else != nil && !s.Else.IsPure() {
		return false
	}
	return true
}

func (s *IfStmt) NoFlowAfter(ignoreBreak bool) bool {
	return s.Then != nil && s.Else != nil &&
		s.Then.NoFlowAfter(ignoreBreak) && s.Else.NoFlowAfter(ignoreBreak)
}

func (s *IfStmt) String() string {
	out := fmt.Sprintf("if ( %s ) %s", s.Cond, stmtOrEmpty(s.Then))
	if s.Else != nil {
		out += " else " + s.Else.String()
	}
	return out
}

// WhileStmt loops while the condition holds. Reduction hoists the
// condition's evaluation into CondStmts, re-run on every iteration
// ahead of the singleton condition test.
type WhileStmt struct {
	baseStmt
	Cond      Expr
	CondStmts []Stmt
	Body      Stmt
}

func NewWhile(cond Expr, body Stmt) *WhileStmt {
	s := &WhileStmt{Cond: cond, Body: body}
	s.init(StmtTagWhile, s)
	return s
}

func (s *WhileStmt) Duplicate() Stmt {
	d := NewWhile(s.Cond.Duplicate(), s.Body.Duplicate())
	d.CondStmts = make([]Stmt, len(s.CondStmts))
	for i, c := range s.CondStmts {
		d.CondStmts[i] = c.Duplicate()
	}
	d.reduced = s.reduced
	return d
}

func (s *WhileStmt) Reduce(r Reducer) Stmt {
	if s.reduced {
		return s
	}
	var hoisted []Stmt
	s.Cond = r.ReduceToSingleton(s.Cond, &hoisted)
	s.CondStmts = hoisted
	s.Body = s.Body.Reduce(r)
	return finishReduce(s, s)
}

func (s *WhileStmt) Inline(inl Inliner) {
	for i := range s.CondStmts {
		s.CondStmts[i] = inlineStmt(s.CondStmts[i], inl)
	}
	s.Body = inlineStmt(s.Body, inl)
}

func (s *WhileStmt) Compile(c Compiler) (CompiledStmt, error) {
	checkCompilable(s)
	return c.CompileStmt(s)
}

func (s *WhileStmt) IsPure() bool {
	if !s.Cond.IsPure() || !s.Body.IsPure() {
		return false
	}
	for _, c := range s.CondStmts {
		if !c.IsPure() {
			return false
		}
	}
	return true
}

func (s *WhileStmt) String() string {
	return fmt.Sprintf("while ( %s ) %s", s.Cond, s.Body)
}

// ReturnStmt leaves the function, optionally yielding a value.
type ReturnStmt struct {
	baseStmt
	E Expr
}

func NewReturn(e Expr) *ReturnStmt {
	s := &ReturnStmt{E: e}
	s.init(StmtTagReturn, s)
	return s
}

func (s *ReturnStmt) Duplicate() Stmt {
	var e Expr
	if s.E != nil {
		e = s.E.Duplicate()
	}
	d := NewReturn(e)
	d.reduced = s.reduced
	return d
}

func (s *ReturnStmt) Reduce(r Reducer) Stmt {
	if s.reduced {
		return s
	}
	if s.E == nil {
		return finishReduce(s, s)
	}
	var hoisted []Stmt
	s.E = r.ReduceToSingleton(s.E, &hoisted)
	if len(hoisted) == 0 {
		return finishReduce(s, s)
	}
	list := NewList(append(hoisted, s)...)
	s.markReduced()
	return finishReduce(list, s)
}

func (s *ReturnStmt) Compile(c Compiler) (CompiledStmt, error) {
	checkCompilable(s)
	return c.CompileStmt(s)
}

func (s *ReturnStmt) NoFlowAfter(ignoreBreak bool) bool { return true }

func (s *ReturnStmt) String() string {
	if s.E == nil {
		return "return;"
	}
	return fmt.Sprintf("return %s;", s.E)
}

// PrintStmt writes its arguments to the engine's output.
type PrintStmt struct {
	baseStmt
	Args []Expr
}

func NewPrint(args ...Expr) *PrintStmt {
	s := &PrintStmt{Args: args}
	s.init(StmtTagPrint, s)
	return s
}

func (s *PrintStmt) Duplicate() Stmt {
	args := make([]Expr, len(s.Args))
	for i, a := range s.Args {
		args[i] = a.Duplicate()
	}
	d := NewPrint(args...)
	d.reduced = s.reduced
	return d
}

func (s *PrintStmt) Reduce(r Reducer) Stmt {
	if s.reduced {
		return s
	}
	var hoisted []Stmt
	for i, a := range s.Args {
		s.Args[i] = r.ReduceToSingleton(a, &hoisted)
	}
	if len(hoisted) == 0 {
		return finishReduce(s, s)
	}
	list := NewList(append(hoisted, s)...)
	s.markReduced()
	return finishReduce(list, s)
}

func (s *PrintStmt) Compile(c Compiler) (CompiledStmt, error) {
	checkCompilable(s)
	return c.CompileStmt(s)
}

func (s *PrintStmt) String() string {
	parts := make([]string, len(s.Args))
	for i, a := range s.Args {
		parts[i] = a.String()
	}
	return "print " + strings.Join(parts, ", ") + ";"
}

// InitStmt declares locals at the top of a (possibly inlined) body.
type InitStmt struct {
	baseStmt
	Vars []*NameExpr
}

func NewInit(vars ...*NameExpr) *InitStmt {
	s := &InitStmt{Vars: vars}
	s.init(StmtTagInit, s)
	return s
}

func (s *InitStmt) Duplicate() Stmt {
	vars := make([]*NameExpr, len(s.Vars))
	for i, v := range s.Vars {
		vars[i] = v.Duplicate().(*NameExpr)
	}
	d := NewInit(vars...)
	d.reduced = s.reduced
	return d
}

func (s *InitStmt) Reduce(r Reducer) Stmt {
	if s.reduced {
		return s
	}
	return finishReduce(s, s)
}

func (s *InitStmt) Compile(c Compiler) (CompiledStmt, error) {
	checkCompilable(s)
	return c.CompileStmt(s)
}

func (s *InitStmt) IsPure() bool { return true }

func (s *InitStmt) String() string {
	parts := make([]string, len(s.Vars))
	for i, v := range s.Vars {
		parts[i] = v.ID
	}
	return "local " + strings.Join(parts, ", ") + ";"
}

// BreakStmt exits the innermost loop.
type BreakStmt struct {
	baseStmt
}

func NewBreak() *BreakStmt {
	s := &BreakStmt{}
	s.init(StmtTagBreak, s)
	return s
}

func (s *BreakStmt) Duplicate() Stmt {
	d := NewBreak()
	d.reduced = s.reduced
	return d
}

func (s *BreakStmt) Reduce(r Reducer) Stmt {
	if s.reduced {
		return s
	}
	return finishReduce(s, s)
}

func (s *BreakStmt) Compile(c Compiler) (CompiledStmt, error) {
	checkCompilable(s)
	return c.CompileStmt(s)
}

// A break ends flow out of a loop, but when the question is whether
// flow reaches the end of the enclosing construct itself, it does.
func (s *BreakStmt) NoFlowAfter(ignoreBreak bool) bool { return !ignoreBreak }

func (s *BreakStmt) String() string { return "break;" }

// NextStmt jumps to the next loop iteration.
type NextStmt struct {
	baseStmt
}

func NewNext() *NextStmt {
	s := &NextStmt{}
	s.init(StmtTagNext, s)
	return s
}

func (s *NextStmt) Duplicate() Stmt {
	d := NewNext()
	d.reduced = s.reduced
	return d
}

func (s *NextStmt) Reduce(r Reducer) Stmt {
	if s.reduced {
		return s
	}
	return finishReduce(s, s)
}

func (s *NextStmt) Compile(c Compiler) (CompiledStmt, error) {
	checkCompilable(s)
	return c.CompileStmt(s)
}

func (s *NextStmt) NoFlowAfter(ignoreBreak bool) bool { return true }

func (s *NextStmt) String() string { return "next;" }

// inlineStmt runs inlining inside s, then replaces s itself when it is
// an applicable call site.
func inlineStmt(s Stmt, inl Inliner) Stmt {
	s.Inline(inl)
	switch v := s.(type) {
	case *ExprStmt:
		if call, ok := v.E.(*CallExpr); ok {
			if repl := inl.ExpandCall(call, nil); repl != nil {
				repl.setOriginal(s.Original())
				return repl
			}
		}
	case *AssignStmt:
		if call, ok := v.RHS.(*CallExpr); ok {
			if target, ok2 := v.LHS.(*NameExpr); ok2 {
				if repl := inl.ExpandCall(call, target); repl != nil {
					repl.setOriginal(s.Original())
					return repl
				}
			}
		}
	}
	return s
}

func stmtOrEmpty(s Stmt) string {
	if s == nil {
		return "{ }"
	}
	return s.String()
}
