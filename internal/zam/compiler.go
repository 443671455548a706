package zam

import (
	"fmt"

	"github.com/2b45/zeek/internal/ast"
	"github.com/2b45/zeek/internal/types"
	"github.com/2b45/zeek/internal/val"
)

// InstrRange is the opaque handle of one lowered statement: the span
// of instructions it produced. A compound statement's handle spans its
// children's handles in evaluation order.
type InstrRange struct {
	Start, End int
}

type loopCtx struct {
	head   int
	breaks []int
}

// Compiler lowers one reduced function body to a chunk. Register
// allocation is a straight per-name assignment: parameters first, then
// locals and temporaries as they appear. No re-use analysis is done.
type Compiler struct {
	chunk *Chunk
	regs  map[string]int
	loops []loopCtx
}

// NewCompiler prepares lowering for a function with the given
// parameters, which take the leading frame slots.
func NewCompiler(name string, params []*ast.NameExpr) *Compiler {
	c := &Compiler{
		chunk: NewChunk(name),
		regs:  make(map[string]int),
	}
	for _, p := range params {
		c.allocReg(p.ID, p.TypeOf())
	}
	c.chunk.NParams = len(params)
	return c
}

// CompileBody lowers the body and finishes the chunk. The body must be
// reduced; Compile panics otherwise (pipeline-ordering violation).
func (c *Compiler) CompileBody(body ast.Stmt) (*Chunk, error) {
	if _, err := body.Compile(c); err != nil {
		return nil, err
	}
	// Fall-off-the-end returns nothing.
	c.chunk.Emit(Instr{Op: OpRet}, 0)
	return c.chunk, nil
}

// MergeStmts implements ast.Compiler.
func (c *Compiler) MergeStmts(handles []ast.CompiledStmt) ast.CompiledStmt {
	merged := InstrRange{Start: c.chunk.Len(), End: c.chunk.Len() - 1}
	for _, h := range handles {
		r := h.(InstrRange)
		if r.Start < merged.Start {
			merged.Start = r.Start
		}
		if r.End > merged.End {
			merged.End = r.End
		}
	}
	return merged
}

// CompileStmt implements ast.Compiler: per-variant lowering.
func (c *Compiler) CompileStmt(s ast.Stmt) (ast.CompiledStmt, error) {
	start := c.chunk.Len()
	var err error
	switch v := s.(type) {
	case *ast.NullStmt:
		// nothing
	case *ast.InitStmt:
		for _, n := range v.Vars {
			c.allocReg(n.ID, n.TypeOf())
		}
	case *ast.ExprStmt:
		err = c.compileExprStmt(v)
	case *ast.AssignStmt:
		err = c.compileAssign(v)
	case *ast.IfStmt:
		err = c.compileIf(v)
	case *ast.WhileStmt:
		err = c.compileWhile(v)
	case *ast.ReturnStmt:
		err = c.compileReturn(v)
	case *ast.PrintStmt:
		err = c.compilePrint(v)
	case *ast.BreakStmt:
		if len(c.loops) == 0 {
			return nil, fmt.Errorf("zam: break outside loop in %s", c.chunk.Name)
		}
		j := c.chunk.Emit(Instr{Op: OpJump}, 0)
		top := &c.loops[len(c.loops)-1]
		top.breaks = append(top.breaks, j)
	case *ast.NextStmt:
		if len(c.loops) == 0 {
			return nil, fmt.Errorf("zam: next outside loop in %s", c.chunk.Name)
		}
		c.chunk.Emit(Instr{Op: OpJump, A: int32(c.loops[len(c.loops)-1].head)}, 0)
	case *ast.StmtList:
		// Lists lower themselves through their children's Compile.
		return v.Compile(c)
	default:
		err = fmt.Errorf("zam: cannot lower %T", s)
	}
	if err != nil {
		return nil, err
	}
	return InstrRange{Start: start, End: c.chunk.Len() - 1}, nil
}

func (c *Compiler) compileExprStmt(s *ast.ExprStmt) error {
	if s.E.IsPure() {
		// Value is discarded and evaluation has no effects.
		return nil
	}
	_, err := c.compileExprTo(-1, s.E)
	return err
}

func (c *Compiler) compileAssign(s *ast.AssignStmt) error {
	switch lhs := s.LHS.(type) {
	case *ast.NameExpr:
		dest := c.allocReg(lhs.ID, lhs.TypeOf())
		_, err := c.compileExprTo(dest, s.RHS)
		return err
	case *ast.FieldExpr:
		rec, err := c.operand(lhs.Rec)
		if err != nil {
			return err
		}
		src, err := c.compileExprTo(-1, s.RHS)
		if err != nil {
			return err
		}
		c.chunk.Emit(Instr{Op: OpRecStore, A: int32(rec), B: int32(lhs.Field), C: int32(src)}, 0)
		return nil
	case *ast.IndexExpr:
		vec, err := c.operand(lhs.Vec)
		if err != nil {
			return err
		}
		idx, err := c.operand(lhs.Index)
		if err != nil {
			return err
		}
		src, err := c.compileExprTo(-1, s.RHS)
		if err != nil {
			return err
		}
		c.chunk.Emit(Instr{Op: OpVecStore, A: int32(vec), B: int32(idx), C: int32(src)}, 0)
		return nil
	default:
		return fmt.Errorf("zam: unassignable target %T", s.LHS)
	}
}

func (c *Compiler) compileIf(s *ast.IfStmt) error {
	cond, err := c.operand(s.Cond)
	if err != nil {
		return err
	}
	jumpFalse := c.chunk.Emit(Instr{Op: OpJumpFalse, A: int32(cond)}, 0)
	if s.Then != nil {
		if _, err := s.Then.Compile(c); err != nil {
			return err
		}
	}
	if s.Else == nil {
		c.patchTarget(jumpFalse, c.chunk.Len())
		return nil
	}
	jumpEnd := c.chunk.Emit(Instr{Op: OpJump}, 0)
	c.patchTarget(jumpFalse, c.chunk.Len())
	if _, err := s.Else.Compile(c); err != nil {
		return err
	}
	c.chunk.Instrs[jumpEnd].A = int32(c.chunk.Len())
	return nil
}

func (c *Compiler) compileWhile(s *ast.WhileStmt) error {
	head := c.chunk.Len()
	c.loops = append(c.loops, loopCtx{head: head})
	for _, cs := range s.CondStmts {
		if _, err := cs.Compile(c); err != nil {
			return err
		}
	}
	cond, err := c.operand(s.Cond)
	if err != nil {
		return err
	}
	exitJump := c.chunk.Emit(Instr{Op: OpJumpFalse, A: int32(cond)}, 0)
	if _, err := s.Body.Compile(c); err != nil {
		return err
	}
	c.chunk.Emit(Instr{Op: OpJump, A: int32(head)}, 0)

	exit := c.chunk.Len()
	c.patchTarget(exitJump, exit)
	for _, b := range c.loops[len(c.loops)-1].breaks {
		c.chunk.Instrs[b].A = int32(exit)
	}
	c.loops = c.loops[:len(c.loops)-1]
	return nil
}

func (c *Compiler) compileReturn(s *ast.ReturnStmt) error {
	if s.E == nil {
		c.chunk.Emit(Instr{Op: OpRet}, 0)
		return nil
	}
	src, err := c.operand(s.E)
	if err != nil {
		return err
	}
	c.chunk.Emit(Instr{Op: OpRetVal, A: int32(src)}, 0)
	return nil
}

func (c *Compiler) compilePrint(s *ast.PrintStmt) error {
	// Arguments go to a fresh contiguous block.
	base := len(c.chunk.RegTypes)
	for _, a := range s.Args {
		c.newReg(a.TypeOf())
	}
	for i, a := range s.Args {
		if _, err := c.compileExprTo(base+i, a); err != nil {
			return err
		}
	}
	c.chunk.Emit(Instr{Op: OpPrint, A: int32(base), B: int32(len(s.Args))}, 0)
	return nil
}

// compileExprTo lowers e into dest. A dest of -1 allocates a scratch
// register (or resolves to the source register for singletons). The
// register holding the result is returned.
func (c *Compiler) compileExprTo(dest int, e ast.Expr) (int, error) {
	switch v := e.(type) {
	case *ast.NameExpr:
		src, err := c.regOf(v)
		if err != nil {
			return -1, err
		}
		if dest < 0 || dest == src {
			return src, nil
		}
		c.chunk.Emit(Instr{Op: OpMove, A: int32(dest), B: int32(src)}, 0)
		return dest, nil
	case *ast.ConstExpr:
		if dest < 0 {
			dest = c.newReg(v.TypeOf())
		}
		idx := c.chunk.AddConst(v.V)
		c.chunk.Emit(Instr{Op: OpConst, A: int32(dest), B: int32(idx)}, 0)
		return dest, nil
	case *ast.BinaryExpr:
		return c.compileBinary(dest, v)
	case *ast.CallExpr:
		return c.compileCall(dest, v)
	case *ast.FieldExpr:
		rec, err := c.operand(v.Rec)
		if err != nil {
			return -1, err
		}
		if dest < 0 {
			dest = c.newReg(v.TypeOf())
		}
		c.chunk.Emit(Instr{Op: OpRecLoad, A: int32(dest), B: int32(rec), C: int32(v.Field)}, 0)
		return dest, nil
	case *ast.IndexExpr:
		vec, err := c.operand(v.Vec)
		if err != nil {
			return -1, err
		}
		idx, err := c.operand(v.Index)
		if err != nil {
			return -1, err
		}
		if dest < 0 {
			dest = c.newReg(v.TypeOf())
		}
		c.chunk.Emit(Instr{Op: OpVecLoad, A: int32(dest), B: int32(vec), C: int32(idx)}, 0)
		return dest, nil
	default:
		return -1, fmt.Errorf("zam: cannot lower expression %T", e)
	}
}

func (c *Compiler) compileBinary(dest int, e *ast.BinaryExpr) (int, error) {
	l, err := c.operand(e.L)
	if err != nil {
		return -1, err
	}
	r, err := c.operand(e.R)
	if err != nil {
		return -1, err
	}
	op, swap, err := selectOp(e.Op, e.L.TypeOf())
	if err != nil {
		return -1, fmt.Errorf("%w in %s", err, c.chunk.Name)
	}
	if swap {
		l, r = r, l
	}
	if dest < 0 {
		dest = c.newReg(e.TypeOf())
	}
	c.chunk.Emit(Instr{Op: op, A: int32(dest), B: int32(l), C: int32(r)}, 0)
	return dest, nil
}

func (c *Compiler) compileCall(dest int, e *ast.CallExpr) (int, error) {
	base := len(c.chunk.RegTypes)
	for _, a := range e.Args {
		c.newReg(a.TypeOf())
	}
	for i, a := range e.Args {
		if _, err := c.compileExprTo(base+i, a); err != nil {
			return -1, err
		}
	}
	if dest < 0 && e.TypeOf() != nil && e.TypeOf().Tag() != types.TagVoid {
		dest = c.newReg(e.TypeOf())
	}
	fn := c.chunk.AddConst(val.FromManaged(e.Func, types.Func))
	c.chunk.Emit(Instr{Op: OpCall, A: int32(dest), B: int32(fn), C: int32(base)}, 0)
	return dest, nil
}

// operand resolves a singleton expression to a register, loading
// constants into scratch slots.
func (c *Compiler) operand(e ast.Expr) (int, error) {
	switch v := e.(type) {
	case *ast.NameExpr:
		return c.regOf(v)
	case *ast.ConstExpr:
		return c.compileExprTo(-1, v)
	default:
		return -1, fmt.Errorf("zam: operand %T is not a singleton; body not in canonical form", e)
	}
}

func (c *Compiler) regOf(n *ast.NameExpr) (int, error) {
	if reg, ok := c.regs[n.ID]; ok {
		return reg, nil
	}
	return -1, fmt.Errorf("zam: undeclared name %q in %s", n.ID, c.chunk.Name)
}

// allocReg binds a name to a register, allocating on first sight.
func (c *Compiler) allocReg(name string, t *types.Type) int {
	if reg, ok := c.regs[name]; ok {
		return reg
	}
	reg := c.newReg(t)
	c.regs[name] = reg
	return reg
}

func (c *Compiler) newReg(t *types.Type) int {
	if t == nil {
		t = types.Any
	}
	c.chunk.RegTypes = append(c.chunk.RegTypes, t)
	c.chunk.ManagedRegs = append(c.chunk.ManagedRegs, t.IsManaged())
	return len(c.chunk.RegTypes) - 1
}

func (c *Compiler) patchTarget(jumpFalse, target int) {
	c.chunk.Instrs[jumpFalse].B = int32(target)
}

// selectOp picks the typed opcode for a flat operation; swap indicates
// the operands trade places (greater-than forms reuse less-than).
func selectOp(op ast.BinOp, t *types.Type) (Op, bool, error) {
	kind := opKind(t)
	type key struct {
		op   ast.BinOp
		kind byte
	}
	table := map[key]Op{
		{ast.OpAdd, 'i'}: OpAddI, {ast.OpSub, 'i'}: OpSubI,
		{ast.OpMul, 'i'}: OpMulI, {ast.OpDiv, 'i'}: OpDivI, {ast.OpMod, 'i'}: OpModI,
		{ast.OpAdd, 'u'}: OpAddU, {ast.OpSub, 'u'}: OpSubU,
		{ast.OpMul, 'u'}: OpMulU, {ast.OpDiv, 'u'}: OpDivU, {ast.OpMod, 'u'}: OpModU,
		{ast.OpAdd, 'd'}: OpAddD, {ast.OpSub, 'd'}: OpSubD,
		{ast.OpMul, 'd'}: OpMulD, {ast.OpDiv, 'd'}: OpDivD,
		{ast.OpEq, 'i'}: OpEqI, {ast.OpNe, 'i'}: OpNeI,
		{ast.OpLt, 'i'}: OpLtI, {ast.OpLe, 'i'}: OpLeI,
		{ast.OpEq, 'u'}: OpEqI, {ast.OpNe, 'u'}: OpNeI,
		{ast.OpLt, 'u'}: OpLtU, {ast.OpLe, 'u'}: OpLeU,
		{ast.OpEq, 'd'}: OpEqD, {ast.OpNe, 'd'}: OpNeD,
		{ast.OpLt, 'd'}: OpLtD, {ast.OpLe, 'd'}: OpLeD,
		{ast.OpEq, 's'}: OpEqS, {ast.OpNe, 's'}: OpNeS,
	}
	gt := map[ast.BinOp]ast.BinOp{ast.OpGt: ast.OpLt, ast.OpGe: ast.OpLe}
	swap := false
	if lt, ok := gt[op]; ok {
		op = lt
		swap = true
	}
	if z, ok := table[key{op, kind}]; ok {
		return z, swap, nil
	}
	return OpNop, false, fmt.Errorf("zam: no %s for operands of type %s", op, t)
}

func opKind(t *types.Type) byte {
	switch t.Tag() {
	case types.TagBool, types.TagInt, types.TagEnum:
		return 'i'
	case types.TagCount, types.TagPort:
		return 'u'
	case types.TagDouble, types.TagTime, types.TagInterval:
		return 'd'
	case types.TagString:
		return 's'
	default:
		return '?'
	}
}
