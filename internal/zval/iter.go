package zval

import "github.com/2b45/zeek/internal/types"

// IterCursor is the opaque loop cursor the executor threads through a
// frame slot while iterating a vector. Its lifetime is managed by the
// loop instructions that create and clear it, not by the cell.
type IterCursor struct {
	vec  *ZValVector
	next int
}

// NewIterCursor starts iteration over vec.
func NewIterCursor(vec *ZValVector) *IterCursor {
	return &IterCursor{vec: vec}
}

// Next yields the next element cell, false when exhausted. The cell is
// borrowed from the vector; the caller copies (with CopyElement
// semantics) if it needs to keep it.
func (it *IterCursor) Next() (ZVal, bool) {
	if it.next >= it.vec.Size() {
		return ZVal{}, false
	}
	z := it.vec.Lookup(it.next)
	it.next++
	return z, true
}

// YieldType reports the element type being iterated.
func (it *IterCursor) YieldType() *types.Type { return it.vec.YieldType() }
