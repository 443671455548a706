package zval

import (
	"testing"

	"github.com/2b45/zeek/internal/types"
	"github.com/2b45/zeek/internal/val"
)

func newStringVector(t *testing.T, n int) (*val.Val, *ZValVector) {
	t.Helper()
	v := NewVectorVal(types.NewVector(types.String), n)
	return v, VectorOf(v)
}

func TestSetElementGrowsAndPreserves(t *testing.T) {
	_, zv := newStringVector(t, 2)
	a := val.NewString("a")
	b := val.NewString("b")
	zv.SetElement(0, FromVal(a, types.String))
	zv.SetElement(1, FromVal(b, types.String))

	x := val.NewString("x")
	zv.SetElement(5, FromVal(x, types.String))

	if got := zv.Size(); got != 6 {
		t.Fatalf("size=%d, want 6", got)
	}
	if got := zv.Lookup(0).ToVal(types.String); !got.Equal(a) {
		t.Errorf("element 0 changed: got %s", got)
	}
	if got := zv.Lookup(1).ToVal(types.String); !got.Equal(b) {
		t.Errorf("element 1 changed: got %s", got)
	}
	for i := 2; i < 5; i++ {
		if !zv.Lookup(i).IsNil(types.String) {
			t.Errorf("element %d: want managed nil sentinel", i)
		}
	}
	if got := zv.Lookup(5).ToVal(types.String); !got.Equal(x) {
		t.Errorf("element 5: got %s", got)
	}
}

func TestSetElementTransfersOwnership(t *testing.T) {
	_, zv := newStringVector(t, 1)
	s := val.NewString("owned")
	zv.SetElement(0, FromVal(s, types.String)) // +1 for the cell
	if got := s.RefCount(); got != 2 {
		t.Fatalf("after set refcount=%d, want 2", got)
	}

	// Overwriting releases the previous occupant.
	zv.SetElement(0, FromVal(val.NewString("other"), types.String))
	if got := s.RefCount(); got != 1 {
		t.Errorf("after overwrite refcount=%d, want 1", got)
	}
}

func TestCopyElementAcquires(t *testing.T) {
	_, zv := newStringVector(t, 2)
	s := val.NewString("shared")
	zv.SetElement(0, FromVal(s, types.String))
	base := s.RefCount()

	if !zv.CopyElement(1, zv.Lookup(0)) {
		t.Fatal("CopyElement of populated cell must succeed")
	}
	if got := s.RefCount(); got != base+1 {
		t.Errorf("copy must acquire a fresh reference: refcount=%d, want %d", got, base+1)
	}

	// A never-populated managed cell is observable via the sentinel.
	if zv.CopyElement(0, ZVal{}) {
		t.Error("CopyElement of never-populated cell must report false")
	}
}

func TestResizeShrinkReleases(t *testing.T) {
	_, zv := newStringVector(t, 0)
	s := val.NewString("tail")
	zv.SetElement(3, FromVal(s, types.String))
	if got := s.RefCount(); got != 2 {
		t.Fatalf("refcount=%d, want 2", got)
	}

	zv.Resize(2)
	if got := zv.Size(); got != 2 {
		t.Errorf("size=%d, want 2", got)
	}
	if got := s.RefCount(); got != 1 {
		t.Errorf("shrink must release truncated elements: refcount=%d, want 1", got)
	}

	zv.Resize(4)
	if !zv.Lookup(3).IsNil(types.String) {
		t.Error("regrown slots must be the nil sentinel")
	}
}

func TestInsertRemove(t *testing.T) {
	_, zv := newStringVector(t, 0)
	a := val.NewString("a")
	c := val.NewString("c")
	zv.SetElement(0, FromVal(a, types.String))
	zv.SetElement(1, FromVal(c, types.String))

	b := val.NewString("b")
	zv.Insert(1, FromVal(b, types.String))
	if got := zv.Size(); got != 3 {
		t.Fatalf("size=%d, want 3", got)
	}
	at1 := zv.Lookup(1).ToVal(types.String)
	if !at1.Equal(b) {
		t.Errorf("insert misplaced: got %s at 1", at1)
	}
	at1.Release()
	at2 := zv.Lookup(2).ToVal(types.String)
	if !at2.Equal(c) {
		t.Errorf("insert lost tail: got %s at 2", at2)
	}
	at2.Release()

	zv.Remove(1)
	if got := b.RefCount(); got != 1 {
		t.Errorf("remove must release the evicted element: refcount=%d, want 1", got)
	}
	at1 = zv.Lookup(1).ToVal(types.String)
	if !at1.Equal(c) {
		t.Errorf("remove misaligned: got %s at 1", at1)
	}
	at1.Release()
}

func TestSetYieldTypeUpgradeOnly(t *testing.T) {
	v := NewVectorVal(types.NewVector(types.Any), 0)
	zv := VectorOf(v)
	if zv.IsManagedYieldType() != true {
		t.Fatal("any yield is managed")
	}

	zv.SetYieldType(types.Int)
	if got := zv.YieldType(); got != types.Int {
		t.Fatalf("upgrade from any failed: yield=%s", got)
	}
	if zv.IsManagedYieldType() {
		t.Error("int yield must not be managed")
	}

	// Once concrete, the yield is fixed.
	zv.SetYieldType(types.String)
	if got := zv.YieldType(); got != types.Int {
		t.Errorf("concrete yield changed to %s", got)
	}
}

func TestVectorDoneReleasesAll(t *testing.T) {
	v, zv := newStringVector(t, 0)
	s := val.NewString("member")
	zv.SetElement(0, FromVal(s, types.String))
	zv.SetElement(1, FromVal(s, types.String))
	if got := s.RefCount(); got != 3 {
		t.Fatalf("refcount=%d, want 3", got)
	}

	v.AsVector().Done()
	if got := s.RefCount(); got != 1 {
		t.Errorf("teardown must release every held element: refcount=%d, want 1", got)
	}
	if v.AsVector().Container != nil {
		t.Error("teardown must sever the owner/container cycle")
	}
}

func TestIterCursor(t *testing.T) {
	_, zv := newStringVector(t, 0)
	for i, s := range []string{"x", "y", "z"} {
		zv.SetElement(i, FromVal(val.NewString(s), types.String))
	}
	it := NewIterCursor(zv)
	var got []string
	for {
		z, ok := it.Next()
		if !ok {
			break
		}
		got = append(got, z.AsManaged().(*val.StringVal).S)
	}
	if len(got) != 3 || got[0] != "x" || got[2] != "z" {
		t.Errorf("iteration got %v", got)
	}
}
