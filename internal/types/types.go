// Package types holds the type descriptors the value layer and the
// compilation pipeline interrogate: scalar tags, record field layouts,
// vector yields, and the managed-ness predicate that drives explicit
// reference management.
package types

import "fmt"

// Tag identifies a value kind.
type Tag int

const (
	TagBool Tag = iota
	TagInt
	TagEnum
	TagCount
	TagPort
	TagDouble
	TagTime
	TagInterval
	TagString
	TagPattern
	TagAddr
	TagSubnet
	TagFile
	TagFunc
	TagList
	TagOpaque
	TagTable
	TagRecord
	TagVector
	TagType
	TagAny
	TagVoid
)

var tagNames = map[Tag]string{
	TagBool:     "bool",
	TagInt:      "int",
	TagEnum:     "enum",
	TagCount:    "count",
	TagPort:     "port",
	TagDouble:   "double",
	TagTime:     "time",
	TagInterval: "interval",
	TagString:   "string",
	TagPattern:  "pattern",
	TagAddr:     "addr",
	TagSubnet:   "subnet",
	TagFile:     "file",
	TagFunc:     "func",
	TagList:     "list",
	TagOpaque:   "opaque",
	TagTable:    "table",
	TagRecord:   "record",
	TagVector:   "vector",
	TagType:     "type",
	TagAny:      "any",
	TagVoid:     "void",
}

func (t Tag) String() string {
	if n, ok := tagNames[t]; ok {
		return n
	}
	return fmt.Sprintf("tag(%d)", int(t))
}

// Value is the slice of the dynamically-typed value surface this
// package needs: enough to hand record field defaults back to the
// containers without depending on the value package.
type Value interface {
	TypeOf() *Type
}

// Field describes one record field.
type Field struct {
	Name     string
	Type     *Type
	Optional bool
	// Default, when non-nil, is materialized into the record when an
	// absent field is looked up.
	Default Value
}

// Type is a type descriptor. Base types are shared singletons; record
// and vector types are constructed per declaration and compared by
// identity.
type Type struct {
	tag     Tag
	yield   *Type
	fields  []Field
	managed []bool
	name    string
}

// Base type singletons.
var (
	Bool     = &Type{tag: TagBool}
	Int      = &Type{tag: TagInt}
	Enum     = &Type{tag: TagEnum}
	Count    = &Type{tag: TagCount}
	Port     = &Type{tag: TagPort}
	Double   = &Type{tag: TagDouble}
	Time     = &Type{tag: TagTime}
	Interval = &Type{tag: TagInterval}
	String   = &Type{tag: TagString}
	Pattern  = &Type{tag: TagPattern}
	Addr     = &Type{tag: TagAddr}
	Subnet   = &Type{tag: TagSubnet}
	File     = &Type{tag: TagFile}
	Func     = &Type{tag: TagFunc}
	List     = &Type{tag: TagList}
	Opaque   = &Type{tag: TagOpaque}
	Table    = &Type{tag: TagTable}
	TypeType = &Type{tag: TagType}
	Any      = &Type{tag: TagAny}
	Void     = &Type{tag: TagVoid}
)

// NewRecord builds a record type from its field layout.
func NewRecord(name string, fields []Field) *Type {
	return &Type{tag: TagRecord, name: name, fields: fields}
}

// NewVector builds a vector type with the given yield. A nil yield
// means the yield is not yet known (heterogeneous literal under
// construction).
func NewVector(yield *Type) *Type {
	return &Type{tag: TagVector, yield: yield}
}

func (t *Type) Tag() Tag { return t.tag }

func (t *Type) Name() string {
	if t.name != "" {
		return t.name
	}
	return t.tag.String()
}

// IsManaged reports whether values of this type live on the heap under
// explicit reference counting. Scalars (and void) are not managed.
func (t *Type) IsManaged() bool {
	switch t.tag {
	case TagString, TagPattern, TagAddr, TagSubnet, TagFile, TagFunc,
		TagList, TagOpaque, TagTable, TagRecord, TagVector, TagType, TagAny:
		return true
	}
	return false
}

// Yield returns the element type of a vector type, nil if unknown.
func (t *Type) Yield() *Type {
	if t.tag != TagVector {
		panic("types: Yield on non-vector type " + t.Name())
	}
	return t.yield
}

// NumFields returns the field count of a record type.
func (t *Type) NumFields() int {
	if t.tag != TagRecord {
		panic("types: NumFields on non-record type " + t.Name())
	}
	return len(t.fields)
}

// FieldOffset returns the index of the named field, -1 if absent.
func (t *Type) FieldOffset(name string) int {
	for i := range t.fields {
		if t.fields[i].Name == name {
			return i
		}
	}
	return -1
}

func (t *Type) checkField(field int) {
	if t.tag != TagRecord {
		panic("types: field access on non-record type " + t.Name())
	}
	if field < 0 || field >= len(t.fields) {
		panic(fmt.Sprintf("types: field %d out of range for %s", field, t.Name()))
	}
}

// FieldType returns the static type of the given field.
func (t *Type) FieldType(field int) *Type {
	t.checkField(field)
	return t.fields[field].Type
}

// FieldName returns the name of the given field.
func (t *Type) FieldName(field int) string {
	t.checkField(field)
	return t.fields[field].Name
}

// FieldOptional reports whether the given field may be absent.
func (t *Type) FieldOptional(field int) bool {
	t.checkField(field)
	return t.fields[field].Optional
}

// FieldDefault returns the field's default value, nil if it has none.
func (t *Type) FieldDefault(field int) Value {
	t.checkField(field)
	return t.fields[field].Default
}

// AddField appends a field to a record type. Containers created against
// the old layout grow on demand; new fields start absent.
func (t *Type) AddField(f Field) {
	if t.tag != TagRecord {
		panic("types: AddField on non-record type " + t.Name())
	}
	t.fields = append(t.fields, f)
	if t.managed != nil {
		t.managed = append(t.managed, f.Type.IsManaged())
	}
}

// ManagedFields returns the per-field managed-ness bitmap of a record
// type. The slice is owned by the descriptor and shared with every
// container of this type; callers must not mutate it.
func (t *Type) ManagedFields() []bool {
	if t.tag != TagRecord {
		panic("types: ManagedFields on non-record type " + t.Name())
	}
	if t.managed == nil {
		t.managed = make([]bool, len(t.fields))
		for i := range t.fields {
			t.managed[i] = t.fields[i].Type.IsManaged()
		}
	}
	return t.managed
}

func (t *Type) String() string {
	switch t.tag {
	case TagVector:
		if t.yield == nil {
			return "vector of ?"
		}
		return "vector of " + t.yield.String()
	case TagRecord:
		return "record " + t.Name()
	default:
		return t.tag.String()
	}
}
