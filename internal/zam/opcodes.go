// Package zam implements the register-machine bytecode form: the
// instruction set, the lowering compiler, a disassembler, and the
// executor that runs lowered bodies over frames of zval cells.
package zam

// Op is a single instruction opcode. Operand registers are frame slot
// indices; interpretation of each slot is fixed at compile time by the
// chunk's frame layout, so instructions carry no value tags.
type Op byte

const (
	OpNop Op = iota

	// Data movement. A=dest B=const-index / source register.
	OpConst
	OpMove

	// Signed arithmetic (int/bool/enum bits). A=dest B=lhs C=rhs.
	OpAddI
	OpSubI
	OpMulI
	OpDivI
	OpModI

	// Unsigned arithmetic (count/port bits).
	OpAddU
	OpSubU
	OpMulU
	OpDivU
	OpModU

	// Double arithmetic (double/time/interval bits).
	OpAddD
	OpSubD
	OpMulD
	OpDivD

	// Comparisons; A=dest(bool) B=lhs C=rhs. Greater-than forms are
	// compiled as swapped less-than.
	OpEqI
	OpNeI
	OpLtI
	OpLeI
	OpLtU
	OpLeU
	OpEqD
	OpNeD
	OpLtD
	OpLeD
	OpEqS
	OpNeS

	OpNot // A=dest B=src

	// Control flow. Targets are absolute instruction indices.
	OpJump      // A=target
	OpJumpFalse // A=cond B=target

	// Calls. A=dest (-1 to discard) B=callee const index C=arg base
	// register; the arg count is the callee's parameter count.
	OpCall

	OpRet    // return with no value
	OpRetVal // A=src

	OpPrint // A=arg base register B=arg count

	// Record field access through the record's field storage.
	OpRecLoad  // A=dest B=record C=field offset
	OpRecStore // A=record B=field offset C=src

	// Vector element access through the vector's element storage.
	OpVecLoad  // A=dest B=vector C=index
	OpVecStore // A=vector B=index C=src
)

var opNames = map[Op]string{
	OpNop:       "nop",
	OpConst:     "const",
	OpMove:      "move",
	OpAddI:      "add.i",
	OpSubI:      "sub.i",
	OpMulI:      "mul.i",
	OpDivI:      "div.i",
	OpModI:      "mod.i",
	OpAddU:      "add.u",
	OpSubU:      "sub.u",
	OpMulU:      "mul.u",
	OpDivU:      "div.u",
	OpModU:      "mod.u",
	OpAddD:      "add.d",
	OpSubD:      "sub.d",
	OpMulD:      "mul.d",
	OpDivD:      "div.d",
	OpEqI:       "eq.i",
	OpNeI:       "ne.i",
	OpLtI:       "lt.i",
	OpLeI:       "le.i",
	OpLtU:       "lt.u",
	OpLeU:       "le.u",
	OpEqD:       "eq.d",
	OpNeD:       "ne.d",
	OpLtD:       "lt.d",
	OpLeD:       "le.d",
	OpEqS:       "eq.s",
	OpNeS:       "ne.s",
	OpNot:       "not",
	OpJump:      "jump",
	OpJumpFalse: "jump.false",
	OpCall:      "call",
	OpRet:       "ret",
	OpRetVal:    "ret.val",
	OpPrint:     "print",
	OpRecLoad:   "rec.load",
	OpRecStore:  "rec.store",
	OpVecLoad:   "vec.load",
	OpVecStore:  "vec.store",
}

func (op Op) String() string {
	if n, ok := opNames[op]; ok {
		return n
	}
	return "op?"
}
