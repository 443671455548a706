// Package zval implements the compact register-machine value cell and
// the two container types (vector and record storage) built on it.
// These back dynamically-typed vector and record values during both
// interpretation and bytecode execution.
package zval

import (
	"math"

	"github.com/2b45/zeek/internal/types"
	"github.com/2b45/zeek/internal/val"
)

// ZVal is a single value cell. It carries no discriminant: scalars
// live in bits, managed references in obj, and the surrounding context
// (a known static type, or an explicit type argument) supplies the
// interpretation on every access. Omitting the tag keeps cells small
// and bulk copies cheap; in exchange, every caller owes the cell a
// correct type.
//
// A cell interpreted as a managed kind either holds a live owned
// reference or is nil, the managed "absent" sentinel. Cells cannot
// release themselves; DeleteManaged must be driven by code that knows
// the cell's type.
type ZVal struct {
	bits uint64
	obj  val.Managed

	// aux is for internal use only: a *ValVec bulk buffer or an
	// *IterCursor, both owned by the compiler/executor with explicit
	// lifetimes.
	aux any
}

// ValVec is the transient bulk-value buffer the compiler threads
// through cells when marshaling argument lists.
type ValVec []*val.Val

// errFlag, when set, is flipped to true whenever a run-time error
// involving a cell occurs. The clunky coupling keeps this package free
// of compiler specifics while still letting the executor observe
// failures.
var errFlag *bool

// SetErrorFlag installs the executor's error sink. Pass nil to detach.
func SetErrorFlag(b *bool) { errFlag = b }

func reportError() {
	if errFlag != nil {
		*errFlag = true
	}
}

// Scalar constructors.

func Bool(b bool) ZVal {
	if b {
		return ZVal{bits: 1}
	}
	return ZVal{}
}

func Int(i int64) ZVal { return ZVal{bits: uint64(i)} }

func Count(c uint64) ZVal { return ZVal{bits: c} }

func Double(d float64) ZVal { return ZVal{bits: math.Float64bits(d)} }

// Ref builds a cell holding o and acquires one reference. A nil o
// yields the managed nil sentinel.
func Ref(o val.Managed) ZVal {
	if o != nil {
		o.Ref()
	}
	return ZVal{obj: o}
}

// Hold builds a cell holding o without acquiring a reference: the
// caller transfers its own reference into the cell.
func Hold(o val.Managed) ZVal { return ZVal{obj: o} }

// AuxVal builds a compiler-internal cell around an aux payload.
func AuxVal(aux any) ZVal { return ZVal{aux: aux} }

// Scalar accessors; interpretation is the caller's contract.

func (z ZVal) AsBool() bool { return z.bits != 0 }

func (z ZVal) AsInt() int64 { return int64(z.bits) }

func (z ZVal) AsCount() uint64 { return z.bits }

func (z ZVal) AsDouble() float64 { return math.Float64frombits(z.bits) }

// AsManaged returns the held reference, nil if the cell is the managed
// nil sentinel.
func (z ZVal) AsManaged() val.Managed { return z.obj }

// Aux returns the internal-use payload.
func (z ZVal) Aux() any { return z.aux }

// IsNil reports, for a managed type, whether the cell is the nil
// sentinel. Meaningless for scalar types.
func (z ZVal) IsNil(t *types.Type) bool {
	return t.IsManaged() && z.obj == nil
}

// FromVal constructs a cell from a dynamically-typed value interpreted
// under type t, acquiring one reference for managed types. A nil input
// of a managed type silently becomes the nil sentinel; a nil scalar
// input is a caller bug.
func FromVal(v *val.Val, t *types.Type) ZVal {
	if t.IsManaged() {
		if v == nil {
			return ZVal{}
		}
		return Ref(v.Managed())
	}
	if v == nil {
		panic("zval: nil scalar value for type " + t.Name())
	}
	return ZVal{bits: v.ScalarBits()}
}

// ToVal converts the cell back to a dynamically-typed value under type
// t. For managed types this acquires a fresh reference on the payload,
// or returns nil for the nil sentinel. The two reference acquisitions
// (FromVal's and ToVal's) are the balancing points callers release
// against.
func (z ZVal) ToVal(t *types.Type) *val.Val {
	if t.IsManaged() {
		if z.obj == nil {
			reportError()
			return nil
		}
		z.obj.Ref()
		return val.FromManaged(z.obj, t)
	}
	return val.FromScalarBits(z.bits, t)
}

// DeleteManaged releases the cell's reference. Safe on the nil
// sentinel; callers invoke it only for cells of managed type.
func DeleteManaged(z *ZVal) {
	if z.obj != nil {
		z.obj.Unref()
		z.obj = nil
	}
}
