package zval

import (
	"errors"
	"testing"

	"github.com/2b45/zeek/internal/types"
	"github.com/2b45/zeek/internal/val"
)

func TestFieldLifecycle(t *testing.T) {
	rt := types.NewRecord("conn", []types.Field{
		{Name: "uid", Type: types.String, Optional: true},
	})
	rv := NewRecordVal(rt)
	zr := RecordOf(rv)

	if zr.HasField(0) {
		t.Fatal("optional field must start absent")
	}

	s := val.NewString("C1")
	zr.Assign(0, FromVal(s, types.String))
	if !zr.HasField(0) {
		t.Fatal("assigned field must be present")
	}
	if got := s.RefCount(); got != 2 {
		t.Fatalf("refcount=%d, want 2", got)
	}

	zr.DeleteField(0)
	if zr.HasField(0) {
		t.Error("deleted field must be absent")
	}
	if got := s.RefCount(); got != 1 {
		t.Errorf("delete must release exactly once: refcount=%d, want 1", got)
	}

	// Deleting again must not release again.
	zr.DeleteField(0)
	if got := s.RefCount(); got != 1 {
		t.Errorf("double delete released again: refcount=%d", got)
	}
}

func TestLookupDefault(t *testing.T) {
	rt := types.NewRecord("svc", []types.Field{
		{Name: "port", Type: types.Count, Optional: true, Default: val.NewCount(443)},
		{Name: "name", Type: types.String, Optional: true},
	})
	zr := RecordOf(NewRecordVal(rt))

	z, err := zr.Lookup(0)
	if err != nil {
		t.Fatalf("lookup with default errored: %v", err)
	}
	if got := z.AsCount(); got != 443 {
		t.Errorf("default got %d, want 443", got)
	}
	if !zr.HasField(0) {
		t.Error("default materialization must mark the field present")
	}

	if _, err := zr.Lookup(1); !errors.Is(err, ErrFieldAbsent) {
		t.Errorf("absent-no-default got %v, want ErrFieldAbsent", err)
	}
}

func TestRecordGrow(t *testing.T) {
	rt := types.NewRecord("evolving", []types.Field{
		{Name: "a", Type: types.Int},
	})
	zr := RecordOf(NewRecordVal(rt))
	zr.Assign(0, Int(1))

	rt.AddField(types.Field{Name: "tag", Type: types.String, Optional: true})
	zr.Grow(rt.NumFields())

	if got := zr.Size(); got != 2 {
		t.Fatalf("size=%d, want 2", got)
	}
	if zr.HasField(1) {
		t.Error("new field must start absent")
	}
	if !zr.IsManaged(1) {
		t.Error("grown manage bitmap must cover the new field")
	}
	if z, err := zr.Lookup(0); err != nil || z.AsInt() != 1 {
		t.Errorf("existing field disturbed: %v %v", z.AsInt(), err)
	}
}

// The end-to-end container scenario: optional int field plus a managed
// string field, exercised through assign/lookup/delete and teardown.
func TestRecordEndToEnd(t *testing.T) {
	rt := types.NewRecord("r", []types.Field{
		{Name: "a", Type: types.Int, Optional: true},
		{Name: "b", Type: types.String},
	})
	rv := NewRecordVal(rt)
	zr := RecordOf(rv)

	if _, err := zr.Lookup(0); !errors.Is(err, ErrFieldAbsent) {
		t.Fatalf("initial lookup got %v, want ErrFieldAbsent", err)
	}

	zr.Assign(0, Int(5))
	z, err := zr.Lookup(0)
	if err != nil {
		t.Fatalf("lookup after assign errored: %v", err)
	}
	if got := z.AsInt(); got != 5 {
		t.Errorf("got %d, want 5", got)
	}

	zr.DeleteField(0)
	if _, err := zr.Lookup(0); !errors.Is(err, ErrFieldAbsent) {
		t.Errorf("lookup after delete got %v, want ErrFieldAbsent", err)
	}

	s := val.NewString("payload")
	zr.Assign(1, FromVal(s, types.String))
	if got := s.RefCount(); got != 2 {
		t.Fatalf("refcount=%d, want 2", got)
	}

	rv.AsRecord().Done()
	if got := s.RefCount(); got != 1 {
		t.Errorf("teardown must release the string exactly once: refcount=%d", got)
	}
}

func TestNthField(t *testing.T) {
	rt := types.NewRecord("r", []types.Field{
		{Name: "msg", Type: types.String},
	})
	zr := RecordOf(NewRecordVal(rt))
	s := val.NewString("hi")
	zr.Assign(0, FromVal(s, types.String))

	v, err := zr.NthField(0)
	if err != nil {
		t.Fatalf("NthField errored: %v", err)
	}
	if !v.Equal(s) {
		t.Errorf("got %s, want %s", v, s)
	}
	if got := s.RefCount(); got != 3 {
		t.Errorf("NthField must acquire: refcount=%d, want 3", got)
	}
}
