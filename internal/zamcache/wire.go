// Package zamcache persists lowered function bodies between runs.
// Bodies are written one file per function, with an SQLite index
// keeping the per-function metadata.
package zamcache

import (
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/2b45/zeek/internal/types"
	"github.com/2b45/zeek/internal/val"
	"github.com/2b45/zeek/internal/zam"
)

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("zamcache: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// ErrUnsupported marks a chunk the wire format cannot carry. The
// driver skips saving such bodies; they just get recompiled next run.
var ErrUnsupported = errors.New("zamcache: chunk not serializable")

const (
	constScalar = 0
	constString = 1
)

type wireConst struct {
	Kind uint8  `cbor:"k"`
	Tag  uint8  `cbor:"t"`
	Bits uint64 `cbor:"b,omitempty"`
	Str  string `cbor:"s,omitempty"`
}

type wireInstr struct {
	Op uint8 `cbor:"o"`
	A  int32 `cbor:"a"`
	B  int32 `cbor:"b"`
	C  int32 `cbor:"c"`
}

type wireChunk struct {
	Name    string      `cbor:"n"`
	NParams int         `cbor:"p"`
	Instrs  []wireInstr `cbor:"i"`
	Consts  []wireConst `cbor:"c"`
	Regs    []uint8     `cbor:"r"`
	Lines   []int       `cbor:"l"`
}

// MarshalChunk serializes a chunk to CBOR bytes. Only chunks whose
// constants are scalars or strings and whose registers hold base types
// serialize; anything else reports ErrUnsupported.
func MarshalChunk(c *zam.Chunk) ([]byte, error) {
	w := wireChunk{
		Name:    c.Name,
		NParams: c.NParams,
		Lines:   c.Lines,
	}
	for _, in := range c.Instrs {
		w.Instrs = append(w.Instrs, wireInstr{Op: uint8(in.Op), A: in.A, B: in.B, C: in.C})
	}
	for _, cv := range c.Consts {
		wc, err := marshalConst(cv)
		if err != nil {
			return nil, err
		}
		w.Consts = append(w.Consts, wc)
	}
	for _, t := range c.RegTypes {
		if !isBaseType(t) {
			return nil, fmt.Errorf("%w: register of type %s", ErrUnsupported, t)
		}
		w.Regs = append(w.Regs, uint8(t.Tag()))
	}
	return cborEncMode.Marshal(&w)
}

// UnmarshalChunk deserializes a chunk from CBOR bytes.
func UnmarshalChunk(data []byte) (*zam.Chunk, error) {
	var w wireChunk
	if err := cbor.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("zamcache: unmarshal chunk: %w", err)
	}
	c := zam.NewChunk(w.Name)
	c.NParams = w.NParams
	c.Lines = w.Lines
	for _, in := range w.Instrs {
		c.Instrs = append(c.Instrs, zam.Instr{Op: zam.Op(in.Op), A: in.A, B: in.B, C: in.C})
	}
	for _, wc := range w.Consts {
		cv, err := unmarshalConst(wc)
		if err != nil {
			return nil, err
		}
		c.Consts = append(c.Consts, cv)
	}
	for _, tag := range w.Regs {
		t, err := baseType(types.Tag(tag))
		if err != nil {
			return nil, err
		}
		c.RegTypes = append(c.RegTypes, t)
		c.ManagedRegs = append(c.ManagedRegs, t.IsManaged())
	}
	return c, nil
}

func marshalConst(cv *val.Val) (wireConst, error) {
	t := cv.TypeOf()
	if t.Tag() == types.TagString {
		return wireConst{Kind: constString, Tag: uint8(t.Tag()), Str: cv.AsString()}, nil
	}
	if !t.IsManaged() {
		return wireConst{Kind: constScalar, Tag: uint8(t.Tag()), Bits: cv.ScalarBits()}, nil
	}
	return wireConst{}, fmt.Errorf("%w: constant of type %s", ErrUnsupported, t)
}

func unmarshalConst(wc wireConst) (*val.Val, error) {
	t, err := baseType(types.Tag(wc.Tag))
	if err != nil {
		return nil, err
	}
	switch wc.Kind {
	case constString:
		return val.NewString(wc.Str), nil
	case constScalar:
		return val.FromScalarBits(wc.Bits, t), nil
	default:
		return nil, fmt.Errorf("zamcache: bad constant kind %d", wc.Kind)
	}
}

func isBaseType(t *types.Type) bool {
	switch t.Tag() {
	case types.TagBool, types.TagInt, types.TagEnum, types.TagCount, types.TagPort,
		types.TagDouble, types.TagTime, types.TagInterval, types.TagString:
		return true
	}
	return false
}

func baseType(tag types.Tag) (*types.Type, error) {
	switch tag {
	case types.TagBool:
		return types.Bool, nil
	case types.TagInt:
		return types.Int, nil
	case types.TagEnum:
		return types.Enum, nil
	case types.TagCount:
		return types.Count, nil
	case types.TagPort:
		return types.Port, nil
	case types.TagDouble:
		return types.Double, nil
	case types.TagTime:
		return types.Time, nil
	case types.TagInterval:
		return types.Interval, nil
	case types.TagString:
		return types.String, nil
	default:
		return nil, fmt.Errorf("zamcache: cannot restore type tag %d", tag)
	}
}
