package zam

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/2b45/zeek/internal/val"
	"github.com/2b45/zeek/internal/zval"
)

// FuncTable resolves call targets to their lowered chunks. The driver
// fills it in after compiling every body, so calls between compiled
// functions need no fixups.
type FuncTable map[*val.FuncVal]*Chunk

// ZBody is an executable lowered function body.
type ZBody struct {
	chunk *Chunk
	funcs FuncTable
	out   io.Writer
}

func NewZBody(chunk *Chunk, funcs FuncTable) *ZBody {
	return &ZBody{chunk: chunk, funcs: funcs, out: os.Stdout}
}

// SetOutput redirects print output, primarily for tests.
func (b *ZBody) SetOutput(w io.Writer) { b.out = w }

func (b *ZBody) Chunk() *Chunk { return b.chunk }

// Run executes the body with the given arguments. Managed argument
// values get an extra reference for the frame's slot; every managed
// slot still live when the frame unwinds is released, so callers keep
// their own references across the call.
func (b *ZBody) Run(args []*val.Val) (*val.Val, error) {
	if len(args) != b.chunk.NParams {
		return nil, fmt.Errorf("zam: %s takes %d arguments, got %d",
			b.chunk.Name, b.chunk.NParams, len(args))
	}
	frame := make([]zval.ZVal, b.chunk.FrameSize())
	for i, a := range args {
		frame[i] = zval.FromVal(a, b.chunk.RegTypes[i])
	}
	defer b.releaseFrame(frame)
	return b.run(frame)
}

func (b *ZBody) releaseFrame(frame []zval.ZVal) {
	for i := range frame {
		if b.chunk.ManagedRegs[i] {
			zval.DeleteManaged(&frame[i])
		}
	}
}

// store writes a value into a frame slot, releasing the slot's prior
// managed occupant. Ownership of v's reference transfers to the frame.
func (b *ZBody) store(frame []zval.ZVal, slot int32, v zval.ZVal) {
	if b.chunk.ManagedRegs[slot] {
		zval.DeleteManaged(&frame[slot])
	}
	frame[slot] = v
}

func (b *ZBody) run(frame []zval.ZVal) (*val.Val, error) {
	ch := b.chunk
	pc := 0
	for pc < len(ch.Instrs) {
		in := ch.Instrs[pc]
		pc++
		switch in.Op {
		case OpNop:
		case OpConst:
			cv := ch.Consts[in.B]
			b.store(frame, in.A, zval.FromVal(cv, cv.TypeOf()))
		case OpMove:
			v := frame[in.B]
			if o := v.AsManaged(); o != nil {
				o.Ref()
			}
			b.store(frame, in.A, v)

		case OpAddI:
			frame[in.A] = zval.Int(frame[in.B].AsInt() + frame[in.C].AsInt())
		case OpSubI:
			frame[in.A] = zval.Int(frame[in.B].AsInt() - frame[in.C].AsInt())
		case OpMulI:
			frame[in.A] = zval.Int(frame[in.B].AsInt() * frame[in.C].AsInt())
		case OpDivI:
			d := frame[in.C].AsInt()
			if d == 0 {
				return nil, b.runtimeErr(pc-1, "division by zero")
			}
			frame[in.A] = zval.Int(frame[in.B].AsInt() / d)
		case OpModI:
			d := frame[in.C].AsInt()
			if d == 0 {
				return nil, b.runtimeErr(pc-1, "modulo by zero")
			}
			frame[in.A] = zval.Int(frame[in.B].AsInt() % d)

		case OpAddU:
			frame[in.A] = zval.Count(frame[in.B].AsCount() + frame[in.C].AsCount())
		case OpSubU:
			frame[in.A] = zval.Count(frame[in.B].AsCount() - frame[in.C].AsCount())
		case OpMulU:
			frame[in.A] = zval.Count(frame[in.B].AsCount() * frame[in.C].AsCount())
		case OpDivU:
			d := frame[in.C].AsCount()
			if d == 0 {
				return nil, b.runtimeErr(pc-1, "division by zero")
			}
			frame[in.A] = zval.Count(frame[in.B].AsCount() / d)
		case OpModU:
			d := frame[in.C].AsCount()
			if d == 0 {
				return nil, b.runtimeErr(pc-1, "modulo by zero")
			}
			frame[in.A] = zval.Count(frame[in.B].AsCount() % d)

		case OpAddD:
			frame[in.A] = zval.Double(frame[in.B].AsDouble() + frame[in.C].AsDouble())
		case OpSubD:
			frame[in.A] = zval.Double(frame[in.B].AsDouble() - frame[in.C].AsDouble())
		case OpMulD:
			frame[in.A] = zval.Double(frame[in.B].AsDouble() * frame[in.C].AsDouble())
		case OpDivD:
			d := frame[in.C].AsDouble()
			if d == 0 {
				return nil, b.runtimeErr(pc-1, "division by zero")
			}
			frame[in.A] = zval.Double(frame[in.B].AsDouble() / d)

		case OpEqI:
			frame[in.A] = zval.Bool(frame[in.B].AsInt() == frame[in.C].AsInt())
		case OpNeI:
			frame[in.A] = zval.Bool(frame[in.B].AsInt() != frame[in.C].AsInt())
		case OpLtI:
			frame[in.A] = zval.Bool(frame[in.B].AsInt() < frame[in.C].AsInt())
		case OpLeI:
			frame[in.A] = zval.Bool(frame[in.B].AsInt() <= frame[in.C].AsInt())
		case OpLtU:
			frame[in.A] = zval.Bool(frame[in.B].AsCount() < frame[in.C].AsCount())
		case OpLeU:
			frame[in.A] = zval.Bool(frame[in.B].AsCount() <= frame[in.C].AsCount())
		case OpEqD:
			frame[in.A] = zval.Bool(frame[in.B].AsDouble() == frame[in.C].AsDouble())
		case OpNeD:
			frame[in.A] = zval.Bool(frame[in.B].AsDouble() != frame[in.C].AsDouble())
		case OpLtD:
			frame[in.A] = zval.Bool(frame[in.B].AsDouble() < frame[in.C].AsDouble())
		case OpLeD:
			frame[in.A] = zval.Bool(frame[in.B].AsDouble() <= frame[in.C].AsDouble())
		case OpEqS:
			frame[in.A] = zval.Bool(b.stringAt(frame, in.B) == b.stringAt(frame, in.C))
		case OpNeS:
			frame[in.A] = zval.Bool(b.stringAt(frame, in.B) != b.stringAt(frame, in.C))
		case OpNot:
			frame[in.A] = zval.Bool(!frame[in.B].AsBool())

		case OpJump:
			pc = int(in.A)
		case OpJumpFalse:
			if !frame[in.A].AsBool() {
				pc = int(in.B)
			}

		case OpCall:
			if err := b.call(frame, in, pc-1); err != nil {
				return nil, err
			}

		case OpRet:
			return nil, nil
		case OpRetVal:
			return frame[in.A].ToVal(ch.RegTypes[in.A]), nil

		case OpPrint:
			parts := make([]string, in.B)
			for i := int32(0); i < in.B; i++ {
				slot := in.A + i
				v := frame[slot].ToVal(ch.RegTypes[slot])
				if v == nil {
					parts[i] = "<nil>"
					continue
				}
				parts[i] = v.String()
				// ToVal acquired a reference just for rendering.
				v.Release()
			}
			fmt.Fprintln(b.out, strings.Join(parts, ", "))

		case OpRecLoad:
			zr, err := b.recordAt(frame, in.B, pc-1)
			if err != nil {
				return nil, err
			}
			fv, err := zr.Lookup(int(in.C))
			if err != nil {
				return nil, b.runtimeErr(pc-1, "%v", err)
			}
			if b.chunk.ManagedRegs[in.A] {
				if o := fv.AsManaged(); o != nil {
					o.Ref()
				}
			}
			b.store(frame, in.A, fv)
		case OpRecStore:
			zr, err := b.recordAt(frame, in.A, pc-1)
			if err != nil {
				return nil, err
			}
			v := frame[in.C]
			if o := v.AsManaged(); o != nil {
				o.Ref()
			}
			zr.Assign(int(in.B), v)

		case OpVecLoad:
			zv, err := b.vectorAt(frame, in.B, pc-1)
			if err != nil {
				return nil, err
			}
			idx := int(frame[in.C].AsInt())
			if idx < 0 || idx >= zv.Size() {
				return nil, b.runtimeErr(pc-1, "index %d out of range [0, %d)", idx, zv.Size())
			}
			ev := zv.Lookup(idx)
			if b.chunk.ManagedRegs[in.A] {
				if o := ev.AsManaged(); o != nil {
					o.Ref()
				}
			}
			b.store(frame, in.A, ev)
		case OpVecStore:
			zv, err := b.vectorAt(frame, in.A, pc-1)
			if err != nil {
				return nil, err
			}
			idx := int(frame[in.B].AsInt())
			if idx < 0 {
				return nil, b.runtimeErr(pc-1, "negative index %d", idx)
			}
			v := frame[in.C]
			if o := v.AsManaged(); o != nil {
				o.Ref()
			}
			zv.SetElement(idx, v)

		default:
			return nil, b.runtimeErr(pc-1, "bad opcode %d", in.Op)
		}
	}
	return nil, nil
}

func (b *ZBody) call(frame []zval.ZVal, in Instr, at int) error {
	fv := b.chunk.Consts[in.B].AsFunc()
	callee, ok := b.funcs[fv]
	if !ok {
		return b.runtimeErr(at, "call to unknown function %s", fv.Name)
	}
	args := make([]*val.Val, callee.NParams)
	for i := 0; i < callee.NParams; i++ {
		slot := in.C + int32(i)
		args[i] = frame[slot].ToVal(b.chunk.RegTypes[slot])
	}
	sub := &ZBody{chunk: callee, funcs: b.funcs, out: b.out}
	ret, err := sub.Run(args)
	for _, a := range args {
		if a != nil && a.Managed() != nil {
			a.Release()
		}
	}
	if err != nil {
		return err
	}
	if in.A >= 0 {
		if ret == nil {
			return b.runtimeErr(at, "%s returned no value", fv.Name)
		}
		b.store(frame, in.A, zval.FromVal(ret, b.chunk.RegTypes[in.A]))
		if ret.Managed() != nil {
			ret.Release()
		}
	} else if ret != nil && ret.Managed() != nil {
		ret.Release()
	}
	return nil
}

func (b *ZBody) stringAt(frame []zval.ZVal, slot int32) string {
	s, ok := frame[slot].AsManaged().(*val.StringVal)
	if !ok {
		return ""
	}
	return s.S
}

func (b *ZBody) recordAt(frame []zval.ZVal, slot int32, at int) (*zval.ZValRecord, error) {
	rv, ok := frame[slot].AsManaged().(*val.RecordVal)
	if !ok || rv == nil {
		return nil, b.runtimeErr(at, "uninitialized record")
	}
	zr, ok := rv.Container.(*zval.ZValRecord)
	if !ok {
		return nil, b.runtimeErr(at, "record has no element storage")
	}
	return zr, nil
}

func (b *ZBody) vectorAt(frame []zval.ZVal, slot int32, at int) (*zval.ZValVector, error) {
	vv, ok := frame[slot].AsManaged().(*val.VectorVal)
	if !ok || vv == nil {
		return nil, b.runtimeErr(at, "uninitialized vector")
	}
	zv, ok := vv.Container.(*zval.ZValVector)
	if !ok {
		return nil, b.runtimeErr(at, "vector has no element storage")
	}
	return zv, nil
}

func (b *ZBody) runtimeErr(pc int, format string, args ...any) error {
	return fmt.Errorf("zam: %s at %d: %s", b.chunk.Name, pc, fmt.Sprintf(format, args...))
}
