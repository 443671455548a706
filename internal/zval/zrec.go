package zval

import (
	"fmt"

	"github.com/2b45/zeek/internal/types"
	"github.com/2b45/zeek/internal/val"
)

// ErrFieldAbsent reports a lookup of an absent field with no default:
// a recoverable, script-visible error, distinct from a field that is
// present but nil.
var ErrFieldAbsent = fmt.Errorf("field missing and no default available")

// ZValRecord is the field storage behind a record value: one cell per
// field, a presence bitmap (optional fields may be absent), and the
// manage bitmap supplied by the record type and shared, never owned.
// A field is released only when both bitmaps say yes for its index.
//
// The back-reference to the owning RecordVal mirrors ZValVector's:
// navigation only, cycle broken by an explicit Done.
type ZValRecord struct {
	fields []ZVal

	rv *val.RecordVal
	rt *types.Type

	// inRecord tracks which fields currently hold a value.
	inRecord []bool

	// isManaged is the type's per-field manage bitmap, shared with the
	// descriptor.
	isManaged []bool
}

// NewRecord creates field storage for rv with rt's layout; all fields
// start absent.
func NewRecord(rv *val.RecordVal, rt *types.Type) *ZValRecord {
	n := rt.NumFields()
	return &ZValRecord{
		fields:    make([]ZVal, n),
		rv:        rv,
		rt:        rt,
		inRecord:  make([]bool, n),
		isManaged: rt.ManagedFields(),
	}
}

// NewRecordVal builds a record value together with its field storage,
// wired the same way as NewVectorVal. The returned value holds the
// sole initial reference.
func NewRecordVal(rt *types.Type) *val.Val {
	rv := &val.RecordVal{RT: rt}
	rv.Ref()
	rv.Container = NewRecord(rv, rt)
	return val.FromManaged(rv, rt)
}

// RecordOf returns the field storage behind a record value.
func RecordOf(v *val.Val) *ZValRecord {
	return v.AsRecord().Container.(*ZValRecord)
}

// Size returns the field count the storage currently covers.
func (zr *ZValRecord) Size() int { return len(zr.fields) }

// Type returns the record's type descriptor.
func (zr *ZValRecord) Type() *types.Type { return zr.rt }

// HasField reports whether the field currently holds a value.
func (zr *ZValRecord) HasField(field int) bool { return zr.inRecord[field] }

// IsManaged reports whether the field's static type requires release.
func (zr *ZValRecord) IsManaged(field int) bool { return zr.isManaged[field] }

// Assign stores v into the field, releasing the prior occupant if it
// was present and managed, and marks the field present. Ownership of
// v's reference transfers to the record.
func (zr *ZValRecord) Assign(field int, v ZVal) {
	if zr.inRecord[field] && zr.isManaged[field] {
		DeleteManaged(&zr.fields[field])
	}
	zr.fields[field] = v
	zr.inRecord[field] = true
}

// SetField marks the field present and returns its cell for direct
// assignment. The caller deals with memory management.
func (zr *ZValRecord) SetField(field int) *ZVal {
	zr.inRecord[field] = true
	return &zr.fields[field]
}

// RefField acquires a reference on the field's payload, for callers
// that populated the cell directly.
func (zr *ZValRecord) RefField(field int) {
	if o := zr.fields[field].obj; o != nil {
		o.Ref()
	}
}

// Lookup returns the field's cell. An absent field is first set to the
// type's default; absence with no default is the explicit error case,
// never a crash.
func (zr *ZValRecord) Lookup(field int) (ZVal, error) {
	if !zr.inRecord[field] && !zr.setToDefault(field) {
		return ZVal{}, fmt.Errorf("%w: $%s", ErrFieldAbsent, zr.rt.FieldName(field))
	}
	return zr.fields[field], nil
}

// NthField converts the field to a dynamically-typed value, acquiring
// a reference per ToVal's contract.
func (zr *ZValRecord) NthField(field int) (*val.Val, error) {
	z, err := zr.Lookup(field)
	if err != nil {
		return nil, err
	}
	return z.ToVal(zr.rt.FieldType(field)), nil
}

// DeleteField releases the field if present and managed, then marks it
// absent. Absence is a first-class state distinct from present-but-nil.
func (zr *ZValRecord) DeleteField(field int) {
	if zr.inRecord[field] && zr.isManaged[field] {
		DeleteManaged(&zr.fields[field])
	}
	zr.inRecord[field] = false
}

// Grow extends the storage when the record's type gained fields after
// creation. New fields start absent.
func (zr *ZValRecord) Grow(newSize int) {
	for len(zr.fields) < newSize {
		zr.fields = append(zr.fields, ZVal{})
		zr.inRecord = append(zr.inRecord, false)
	}
	// Refresh the shared manage bitmap, which grew with the type.
	zr.isManaged = zr.rt.ManagedFields()
}

// Done releases every present-and-managed field and severs the owner
// link.
func (zr *ZValRecord) Done() {
	for i := range zr.fields {
		if zr.inRecord[i] && zr.isManaged[i] {
			DeleteManaged(&zr.fields[i])
		}
	}
	zr.fields = nil
	zr.inRecord = nil
	zr.rv = nil
}

// setToDefault materializes the type's default for an absent field,
// reporting whether one existed.
func (zr *ZValRecord) setToDefault(field int) bool {
	def := zr.rt.FieldDefault(field)
	if def == nil {
		return false
	}
	dv, ok := def.(*val.Val)
	if !ok {
		return false
	}
	zr.Assign(field, FromVal(dv, zr.rt.FieldType(field)))
	return true
}
