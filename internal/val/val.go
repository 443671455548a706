// Package val implements the dynamically-typed value representation the
// interpreter and the bytecode executor share. Heap values carry an
// explicit, non-atomic reference count; the engine is single-threaded
// and all acquire/release points are driven by the surrounding code,
// never by a collector.
package val

import (
	"fmt"
	"math"
	"net/netip"
	"regexp"
	"strconv"

	"github.com/2b45/zeek/internal/types"
)

// Managed is the interface of every reference-counted heap value.
type Managed interface {
	// Ref acquires one reference.
	Ref()
	// Unref releases one reference. Panics on underflow.
	Unref()
	// RefCount reports the current share count.
	RefCount() int
}

// Obj is the embedded reference-count base of every managed value.
// Counts are not atomic: the execution model is single-threaded.
type Obj struct {
	refs int
}

func (o *Obj) Ref() { o.refs++ }

func (o *Obj) Unref() {
	o.refs--
	if o.refs < 0 {
		panic("val: reference count underflow")
	}
}

func (o *Obj) RefCount() int { return o.refs }

// Container is the element storage a record or vector value owns.
// Done releases the container's managed members and severs the
// owner back-reference; the cycle between owner and container is
// broken only by this explicit call, never by count decay.
type Container interface {
	Done()
}

// Heap value kinds. Each starts life with one reference held by
// whoever constructed it.

type StringVal struct {
	Obj
	S string
}

type PatternVal struct {
	Obj
	Re *regexp.Regexp
}

type AddrVal struct {
	Obj
	A netip.Addr
}

type SubnetVal struct {
	Obj
	P netip.Prefix
}

type FileVal struct {
	Obj
	Name string
}

// FuncVal is the function handle: identity plus the parameter surface
// the pipeline needs. The body lives with the function's record in the
// driver, not here.
type FuncVal struct {
	Obj
	Name   string
	Params []string
}

type ListVal struct {
	Obj
	Vals []*Val
}

type OpaqueVal struct {
	Obj
	Kind string
	Data any
}

type TableVal struct {
	Obj
	Entries map[string]*Val
}

// RecordVal owns its field container exclusively; the container holds a
// non-owning back-reference used for navigation only.
type RecordVal struct {
	Obj
	RT        *types.Type
	Container Container
}

// Done tears the record down: the container releases its managed
// fields, then the cycle is severed.
func (r *RecordVal) Done() {
	if r.Container != nil {
		r.Container.Done()
		r.Container = nil
	}
}

// VectorVal owns its element container exclusively, same scheme as
// RecordVal.
type VectorVal struct {
	Obj
	VT        *types.Type
	Container Container
}

func (v *VectorVal) Done() {
	if v.Container != nil {
		v.Container.Done()
		v.Container = nil
	}
}

// TypeVal is a first-class type value.
type TypeVal struct {
	Obj
	T *types.Type
}

// Val is the boxed dynamically-typed value: a type descriptor plus
// either an inline scalar payload or a shared managed payload. Val
// itself is a cheap wrapper; the reference count lives on the payload.
type Val struct {
	t    *types.Type
	bits uint64
	obj  Managed
}

func (v *Val) TypeOf() *types.Type { return v.t }

// Managed returns the heap payload, nil for scalars.
func (v *Val) Managed() Managed { return v.obj }

// Ref acquires one reference on the payload of a managed value and
// returns v for chaining. No-op for scalars.
func (v *Val) Ref() *Val {
	if v.obj != nil {
		v.obj.Ref()
	}
	return v
}

// Release drops one reference on the payload of a managed value.
// No-op for scalars.
func (v *Val) Release() {
	if v.obj != nil {
		v.obj.Unref()
	}
}

// RefCount reports the payload's share count, 0 for scalars.
func (v *Val) RefCount() int {
	if v.obj == nil {
		return 0
	}
	return v.obj.RefCount()
}

// Scalar constructors.

func NewBool(b bool) *Val {
	var bits uint64
	if b {
		bits = 1
	}
	return &Val{t: types.Bool, bits: bits}
}

func NewInt(i int64) *Val { return &Val{t: types.Int, bits: uint64(i)} }

func NewEnum(i int64) *Val { return &Val{t: types.Enum, bits: uint64(i)} }

func NewCount(c uint64) *Val { return &Val{t: types.Count, bits: c} }

func NewPort(p uint64) *Val { return &Val{t: types.Port, bits: p} }

func NewDouble(d float64) *Val { return &Val{t: types.Double, bits: math.Float64bits(d)} }

func NewTime(d float64) *Val { return &Val{t: types.Time, bits: math.Float64bits(d)} }

func NewInterval(d float64) *Val { return &Val{t: types.Interval, bits: math.Float64bits(d)} }

// Managed constructors. Each returns a value holding the sole initial
// reference.

func NewString(s string) *Val {
	return &Val{t: types.String, obj: &StringVal{Obj: Obj{refs: 1}, S: s}}
}

func NewPattern(re *regexp.Regexp) *Val {
	return &Val{t: types.Pattern, obj: &PatternVal{Obj: Obj{refs: 1}, Re: re}}
}

func NewAddr(a netip.Addr) *Val {
	return &Val{t: types.Addr, obj: &AddrVal{Obj: Obj{refs: 1}, A: a}}
}

func NewSubnet(p netip.Prefix) *Val {
	return &Val{t: types.Subnet, obj: &SubnetVal{Obj: Obj{refs: 1}, P: p}}
}

func NewFile(name string) *Val {
	return &Val{t: types.File, obj: &FileVal{Obj: Obj{refs: 1}, Name: name}}
}

func NewFunc(name string, params []string) *Val {
	return &Val{t: types.Func, obj: &FuncVal{Obj: Obj{refs: 1}, Name: name, Params: params}}
}

func NewList(vals []*Val) *Val {
	return &Val{t: types.List, obj: &ListVal{Obj: Obj{refs: 1}, Vals: vals}}
}

func NewOpaque(kind string, data any) *Val {
	return &Val{t: types.Opaque, obj: &OpaqueVal{Obj: Obj{refs: 1}, Kind: kind, Data: data}}
}

func NewTable() *Val {
	return &Val{t: types.Table, obj: &TableVal{Obj: Obj{refs: 1}, Entries: map[string]*Val{}}}
}

func NewType(t *types.Type) *Val {
	return &Val{t: types.TypeType, obj: &TypeVal{Obj: Obj{refs: 1}, T: t}}
}

// FromManaged wraps an existing heap payload into a value of the given
// type without touching the reference count; the caller accounts for
// the reference it is handing over or sharing.
func FromManaged(o Managed, t *types.Type) *Val {
	return &Val{t: t, obj: o}
}

// FromScalarBits builds a scalar value of the given type from its raw
// bit pattern.
func FromScalarBits(bits uint64, t *types.Type) *Val {
	if t.IsManaged() {
		panic("val: FromScalarBits on managed type " + t.Name())
	}
	return &Val{t: t, bits: bits}
}

// Scalar accessors. Interpretation follows the value's own type; these
// do not re-check it.

func (v *Val) AsBool() bool { return v.bits != 0 }

func (v *Val) AsInt() int64 { return int64(v.bits) }

func (v *Val) AsCount() uint64 { return v.bits }

func (v *Val) AsDouble() float64 { return math.Float64frombits(v.bits) }

// ScalarBits returns the raw scalar payload.
func (v *Val) ScalarBits() uint64 { return v.bits }

func (v *Val) AsString() string { return v.obj.(*StringVal).S }

func (v *Val) AsFunc() *FuncVal { return v.obj.(*FuncVal) }

func (v *Val) AsRecord() *RecordVal { return v.obj.(*RecordVal) }

func (v *Val) AsVector() *VectorVal { return v.obj.(*VectorVal) }

// Equal compares two values. Managed values compare by payload
// identity except strings, which compare by content.
func (v *Val) Equal(o *Val) bool {
	if v == nil || o == nil {
		return v == o
	}
	if v.t.Tag() != o.t.Tag() {
		return false
	}
	if s, ok := v.obj.(*StringVal); ok {
		os, ok2 := o.obj.(*StringVal)
		return ok2 && s.S == os.S
	}
	if v.obj != nil || o.obj != nil {
		return v.obj == o.obj
	}
	return v.bits == o.bits
}

func (v *Val) String() string {
	if v == nil {
		return "<nil>"
	}
	switch v.t.Tag() {
	case types.TagBool:
		if v.bits != 0 {
			return "T"
		}
		return "F"
	case types.TagInt, types.TagEnum:
		return strconv.FormatInt(int64(v.bits), 10)
	case types.TagCount, types.TagPort:
		return strconv.FormatUint(v.bits, 10)
	case types.TagDouble, types.TagTime, types.TagInterval:
		return strconv.FormatFloat(math.Float64frombits(v.bits), 'g', -1, 64)
	case types.TagString:
		return v.AsString()
	case types.TagPattern:
		return "/" + v.obj.(*PatternVal).Re.String() + "/"
	case types.TagAddr:
		return v.obj.(*AddrVal).A.String()
	case types.TagSubnet:
		return v.obj.(*SubnetVal).P.String()
	case types.TagFile:
		return "file " + v.obj.(*FileVal).Name
	case types.TagFunc:
		return v.obj.(*FuncVal).Name
	case types.TagRecord:
		return "record " + v.t.Name()
	case types.TagVector:
		return v.t.String()
	default:
		return fmt.Sprintf("<%s>", v.t.Name())
	}
}
