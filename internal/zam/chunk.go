package zam

import (
	"github.com/2b45/zeek/internal/types"
	"github.com/2b45/zeek/internal/val"
)

// Instr is one fixed-width instruction. Operand meaning is per-opcode;
// unused operands are zero.
type Instr struct {
	Op      Op
	A, B, C int32
}

// Chunk is one function's lowered form: the instruction sequence, its
// constant pool, and the frame layout the executor allocates. The
// frame layout doubles as the type context that interprets every
// register's cells.
type Chunk struct {
	// Name is the function's name, for dumps and errors.
	Name string

	Instrs []Instr

	// Consts holds pool values referenced by OpConst/OpCall.
	Consts []*val.Val

	// RegTypes fixes each frame slot's static type; its length is the
	// frame size.
	RegTypes []*types.Type

	// ManagedRegs marks slots whose cells hold owned references and
	// need release when the frame winds down.
	ManagedRegs []bool

	// NParams is how many leading slots the caller populates.
	NParams int

	// Lines maps instruction index to source line, zero when unknown.
	Lines []int
}

// NewChunk creates an empty chunk for the named function.
func NewChunk(name string) *Chunk {
	return &Chunk{Name: name, Instrs: make([]Instr, 0, 32)}
}

// Emit appends an instruction and returns its index.
func (c *Chunk) Emit(in Instr, line int) int {
	c.Instrs = append(c.Instrs, in)
	c.Lines = append(c.Lines, line)
	return len(c.Instrs) - 1
}

// AddConst adds v to the pool and returns its index, reusing an
// existing equal entry.
func (c *Chunk) AddConst(v *val.Val) int {
	for i, have := range c.Consts {
		if have.Equal(v) {
			return i
		}
	}
	c.Consts = append(c.Consts, v)
	return len(c.Consts) - 1
}

// FrameSize is the number of registers the executor allocates.
func (c *Chunk) FrameSize() int { return len(c.RegTypes) }

// Len is the instruction count.
func (c *Chunk) Len() int { return len(c.Instrs) }
