package zval

import (
	"github.com/2b45/zeek/internal/types"
	"github.com/2b45/zeek/internal/val"
)

// ZValVector is the element storage behind a vector value. It keeps
// two yield handles: the general yield (whatever the vector was
// declared or inferred to hold) and the managed yield, non-nil only
// when elements require explicit release. Every release decision runs
// off the managed yield alone.
//
// The back-reference to the owning VectorVal is non-owning navigation;
// the owner holds the container exclusively and tears it down through
// Done.
type ZValVector struct {
	elems []ZVal

	vv *val.VectorVal

	// managedYield is non-nil iff the yield is a managed type.
	managedYield *types.Type

	// generalYield is the yield whether or not it is managed. Kept
	// separate so the two are never confused.
	generalYield *types.Type
}

// NewVector creates element storage for vv with n zero-filled slots.
// A nil yield means the yield is not yet known.
func NewVector(vv *val.VectorVal, yield *types.Type, n int) *ZValVector {
	zv := &ZValVector{elems: make([]ZVal, n), vv: vv}
	if yield != nil {
		if yield.IsManaged() {
			zv.managedYield = yield
		}
		zv.generalYield = yield
	}
	return zv
}

// NewVectorVal builds a vector value together with its storage and
// wires the two: the value owns the container, the container points
// back for navigation only. The returned value holds the sole initial
// reference.
func NewVectorVal(vt *types.Type, n int) *val.Val {
	vv := &val.VectorVal{VT: vt}
	vv.Ref()
	var yield *types.Type
	if vt != nil && vt.Tag() == types.TagVector {
		yield = vt.Yield()
	}
	vv.Container = NewVector(vv, yield, n)
	return val.FromManaged(vv, vt)
}

// VectorOf returns the element storage behind a vector value.
func VectorOf(v *val.Val) *ZValVector {
	return v.AsVector().Container.(*ZValVector)
}

// YieldType returns the general yield, nil if still unknown.
func (zv *ZValVector) YieldType() *types.Type { return zv.generalYield }

// IsManagedYieldType reports whether elements need explicit release.
func (zv *ZValVector) IsManagedYieldType() bool { return zv.managedYield != nil }

// SetYieldType fixes the yield once it becomes known. Only an upgrade
// away from unknown/any/void takes effect; a concrete yield never
// changes. This models late inference while building a vector from a
// heterogeneous literal.
func (zv *ZValVector) SetYieldType(yield *types.Type) {
	if zv.generalYield == nil || zv.generalYield.Tag() == types.TagAny ||
		zv.generalYield.Tag() == types.TagVoid {
		if yield.IsManaged() {
			zv.managedYield = yield
		} else {
			zv.managedYield = nil
		}
		zv.generalYield = yield
	}
}

// Size returns the current element count.
func (zv *ZValVector) Size() int { return len(zv.elems) }

// Lookup returns the raw cell at n. The caller supplies the correct
// interpretation and must have validated n against Size.
func (zv *ZValVector) Lookup(n int) ZVal { return zv.elems[n] }

// SetElement stores v at n, growing (zero-filled) as needed and
// releasing the previous occupant of a managed slot. Ownership of v's
// reference transfers to the container; no new reference is acquired.
func (zv *ZValVector) SetElement(n int, v ZVal) {
	if n >= len(zv.elems) {
		zv.grow(n + 1)
	}
	if zv.managedYield != nil {
		DeleteManaged(&zv.elems[n])
	}
	zv.elems[n] = v
}

// CopyElement stores a copy of v at n: for a managed yield it acquires
// a fresh reference, for duplicating an existing value rather than
// transferring a newly constructed one. Returns false if v was never
// populated, observable only for managed types via the nil sentinel.
func (zv *ZValVector) CopyElement(n int, v ZVal) bool {
	if n >= len(zv.elems) {
		zv.grow(n + 1)
	}
	if zv.managedYield == nil {
		zv.elems[n] = v
		return true
	}
	// Acquire before releasing the old occupant in case both are the
	// same payload.
	if v.obj != nil {
		v.obj.Ref()
	}
	DeleteManaged(&zv.elems[n])
	zv.elems[n] = v
	return v.obj != nil
}

// Insert places v at index, shifting later elements up. An index at or
// past the end appends. Ownership of v's reference transfers in.
func (zv *ZValVector) Insert(index int, v ZVal) {
	if index >= len(zv.elems) {
		zv.elems = append(zv.elems, v)
		return
	}
	zv.elems = append(zv.elems, ZVal{})
	copy(zv.elems[index+1:], zv.elems[index:])
	zv.elems[index] = v
}

// Remove deletes the element at index, releasing it for a managed
// yield, and shifts later elements down.
func (zv *ZValVector) Remove(index int) {
	if zv.managedYield != nil {
		DeleteManaged(&zv.elems[index])
	}
	copy(zv.elems[index:], zv.elems[index+1:])
	zv.elems[len(zv.elems)-1] = ZVal{}
	zv.elems = zv.elems[:len(zv.elems)-1]
}

// Resize grows (zero-filling) or shrinks the storage. Shrinking
// releases every truncated managed element; the evicted slots are
// zeroed first so a release can never run twice.
func (zv *ZValVector) Resize(n int) {
	if n >= len(zv.elems) {
		zv.grow(n)
		return
	}
	if zv.managedYield != nil {
		for i := n; i < len(zv.elems); i++ {
			DeleteManaged(&zv.elems[i])
		}
	}
	zv.elems = zv.elems[:n]
}

// InitVec resets the storage to size zero-filled slots for bulk
// initialization and returns it for direct population. Existing
// managed elements are released first.
func (zv *ZValVector) InitVec(size int) []ZVal {
	if zv.managedYield != nil {
		for i := range zv.elems {
			DeleteManaged(&zv.elems[i])
		}
	}
	zv.elems = make([]ZVal, size)
	return zv.elems
}

// Done releases every still-held managed element and severs the owner
// link. The owner calls this exactly once during teardown.
func (zv *ZValVector) Done() {
	if zv.managedYield != nil {
		for i := range zv.elems {
			DeleteManaged(&zv.elems[i])
		}
	}
	zv.elems = nil
	zv.vv = nil
}

func (zv *ZValVector) grow(n int) {
	for len(zv.elems) < n {
		zv.elems = append(zv.elems, ZVal{})
	}
}
