package zval

import (
	"testing"

	"github.com/2b45/zeek/internal/types"
	"github.com/2b45/zeek/internal/val"
)

func TestScalarRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		v    *val.Val
		typ  *types.Type
	}{
		{"int", val.NewInt(-42), types.Int},
		{"bool", val.NewBool(true), types.Bool},
		{"count", val.NewCount(7), types.Count},
		{"double", val.NewDouble(2.5), types.Double},
		{"time", val.NewTime(1600000000.25), types.Time},
	}
	for _, tt := range tests {
		z := FromVal(tt.v, tt.typ)
		back := z.ToVal(tt.typ)
		if !back.Equal(tt.v) {
			t.Errorf("%s: round trip got %s, want %s", tt.name, back, tt.v)
		}
	}
}

func TestManagedRoundTripBalancesRefs(t *testing.T) {
	s := val.NewString("hello")
	if got := s.RefCount(); got != 1 {
		t.Fatalf("fresh string refcount=%d, want 1", got)
	}

	z := FromVal(s, types.String) // +1
	if got := s.RefCount(); got != 2 {
		t.Errorf("after FromVal refcount=%d, want 2", got)
	}

	back := z.ToVal(types.String) // +1
	if got := s.RefCount(); got != 3 {
		t.Errorf("after ToVal refcount=%d, want 3", got)
	}
	if !back.Equal(s) {
		t.Errorf("round trip got %q, want %q", back, s)
	}

	// Balance the two acquisitions; net count is unchanged.
	back.Release()
	DeleteManaged(&z)
	if got := s.RefCount(); got != 1 {
		t.Errorf("after balancing releases refcount=%d, want 1", got)
	}
}

func TestNilSentinel(t *testing.T) {
	z := FromVal(nil, types.String)
	if !z.IsNil(types.String) {
		t.Error("nil managed input must become the nil sentinel")
	}
	if z.IsNil(types.Int) {
		t.Error("IsNil must be false for scalar interpretation")
	}

	var errFlag bool
	SetErrorFlag(&errFlag)
	defer SetErrorFlag(nil)
	if got := z.ToVal(types.String); got != nil {
		t.Errorf("ToVal of nil sentinel got %v, want nil", got)
	}
	if !errFlag {
		t.Error("ToVal of nil sentinel must raise the error flag")
	}
}

func TestNilScalarPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("FromVal(nil, int) must panic; nil scalars are caller bugs")
		}
	}()
	FromVal(nil, types.Int)
}

func TestDeleteManagedIsNilSafe(t *testing.T) {
	var z ZVal
	DeleteManaged(&z) // must not panic
}
