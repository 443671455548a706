package zam

import (
	"fmt"
	"strings"
)

// Disassemble returns a human-readable listing of a chunk.
func Disassemble(chunk *Chunk) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("== %s (%d regs, %d params) ==\n",
		chunk.Name, chunk.FrameSize(), chunk.NParams))

	for pc, in := range chunk.Instrs {
		disassembleInstruction(&sb, chunk, pc, in)
	}
	return sb.String()
}

func disassembleInstruction(sb *strings.Builder, chunk *Chunk, pc int, in Instr) {
	sb.WriteString(fmt.Sprintf("%04d %-10s", pc, in.Op))

	switch in.Op {
	case OpNop, OpRet:
	case OpConst:
		sb.WriteString(fmt.Sprintf("r%d <- %s", in.A, chunk.Consts[in.B]))
	case OpMove:
		sb.WriteString(fmt.Sprintf("r%d <- r%d", in.A, in.B))
	case OpJump:
		sb.WriteString(fmt.Sprintf("-> %04d", in.A))
	case OpJumpFalse:
		sb.WriteString(fmt.Sprintf("r%d ? -> %04d", in.A, in.B))
	case OpCall:
		fn := chunk.Consts[in.B].AsFunc()
		if in.A < 0 {
			sb.WriteString(fmt.Sprintf("%s(base r%d)", fn.Name, in.C))
		} else {
			sb.WriteString(fmt.Sprintf("r%d <- %s(base r%d)", in.A, fn.Name, in.C))
		}
	case OpRetVal:
		sb.WriteString(fmt.Sprintf("r%d", in.A))
	case OpPrint:
		sb.WriteString(fmt.Sprintf("r%d x%d", in.A, in.B))
	case OpRecLoad:
		sb.WriteString(fmt.Sprintf("r%d <- r%d.$%d", in.A, in.B, in.C))
	case OpRecStore:
		sb.WriteString(fmt.Sprintf("r%d.$%d <- r%d", in.A, in.B, in.C))
	case OpVecLoad:
		sb.WriteString(fmt.Sprintf("r%d <- r%d[r%d]", in.A, in.B, in.C))
	case OpVecStore:
		sb.WriteString(fmt.Sprintf("r%d[r%d] <- r%d", in.A, in.B, in.C))
	default:
		// Three-address arithmetic and comparisons.
		sb.WriteString(fmt.Sprintf("r%d <- r%d, r%d", in.A, in.B, in.C))
	}
	sb.WriteByte('\n')
}
