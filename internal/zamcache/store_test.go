package zamcache

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/2b45/zeek/internal/types"
	"github.com/2b45/zeek/internal/val"
	"github.com/2b45/zeek/internal/zam"
)

func sampleChunk() *zam.Chunk {
	c := zam.NewChunk("sample")
	c.NParams = 1
	c.RegTypes = []*types.Type{types.Int, types.Int}
	c.ManagedRegs = []bool{false, false}
	k := c.AddConst(val.NewInt(2))
	c.Emit(zam.Instr{Op: zam.OpConst, A: 1, B: int32(k)}, 1)
	c.Emit(zam.Instr{Op: zam.OpMulI, A: 0, B: 0, C: 1}, 1)
	c.Emit(zam.Instr{Op: zam.OpRetVal, A: 0}, 2)
	return c
}

func TestSaveLoadRoundTrip(t *testing.T) {
	st, err := NewStore(t.TempDir(), "")
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	orig := sampleChunk()
	if err := st.Save("sample", orig); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := st.Load("sample")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Name != orig.Name || got.NParams != orig.NParams {
		t.Errorf("header mismatch: got %s/%d, want %s/%d",
			got.Name, got.NParams, orig.Name, orig.NParams)
	}
	if got.Len() != orig.Len() {
		t.Fatalf("got %d instructions, want %d", got.Len(), orig.Len())
	}
	for i := range orig.Instrs {
		if got.Instrs[i] != orig.Instrs[i] {
			t.Errorf("instr %d: got %+v, want %+v", i, got.Instrs[i], orig.Instrs[i])
		}
	}
	if got.Consts[0].AsInt() != 2 {
		t.Errorf("const 0 = %d, want 2", got.Consts[0].AsInt())
	}

	// The restored body must run.
	ret, err := zam.NewZBody(got, nil).Run([]*val.Val{val.NewInt(21)})
	if err != nil {
		t.Fatalf("run restored: %v", err)
	}
	if got, want := ret.AsInt(), int64(42); got != want {
		t.Errorf("restored body returned %d, want %d", got, want)
	}
}

func TestLoadMissingIsMiss(t *testing.T) {
	st, err := NewStore(t.TempDir(), "")
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	if _, err := st.Load("nothing"); !errors.Is(err, ErrMiss) {
		t.Errorf("Load missing = %v, want ErrMiss", err)
	}
}

func TestCorruptFileIsMiss(t *testing.T) {
	dir := t.TempDir()
	st, err := NewStore(dir, "")
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	if err := st.Save("f", sampleChunk()); err != nil {
		t.Fatalf("Save: %v", err)
	}

	path := st.Path("f")
	cases := map[string]func([]byte) []byte{
		"truncated":   func(b []byte) []byte { return b[:10] },
		"bad magic":   func(b []byte) []byte { b[0] = 'X'; return b },
		"bad version": func(b []byte) []byte { b[4] = 0xFF; return b },
		"mangled body": func(b []byte) []byte {
			b[len(b)-1] ^= 0xFF
			return append(b, 0x00)
		},
	}
	good, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read saved file: %v", err)
	}
	for name, mangle := range cases {
		data := append([]byte(nil), good...)
		if err := os.WriteFile(path, mangle(data), 0o644); err != nil {
			t.Fatalf("%s: rewrite: %v", name, err)
		}
		if _, err := st.Load("f"); !errors.Is(err, ErrMiss) {
			t.Errorf("%s: Load = %v, want ErrMiss", name, err)
		}
	}
}

func TestStaleTokenIsMiss(t *testing.T) {
	dir := t.TempDir()
	st1, err := NewStore(dir, "")
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	if err := st1.Save("f", sampleChunk()); err != nil {
		t.Fatalf("Save: %v", err)
	}

	// A fresh token means a new toolchain build; old files must miss.
	st2, err := NewStore(dir, "")
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	if _, err := st2.Load("f"); !errors.Is(err, ErrMiss) {
		t.Errorf("Load under new token = %v, want ErrMiss", err)
	}

	// The same token still hits.
	st3, err := NewStore(dir, st1.Token())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	if _, err := st3.Load("f"); err != nil {
		t.Errorf("Load under same token = %v, want hit", err)
	}
}

func TestDeleteIdempotent(t *testing.T) {
	st, err := NewStore(t.TempDir(), "")
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	if err := st.Save("f", sampleChunk()); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := st.Delete("f"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if st.Has("f") {
		t.Error("file survived Delete")
	}
	if err := st.Delete("f"); err != nil {
		t.Errorf("second Delete: %v", err)
	}
}

func TestUnsupportedConstSkipsSave(t *testing.T) {
	c := zam.NewChunk("f")
	rt := types.NewRecord("r", nil)
	rec := val.FromManaged(&val.RecordVal{RT: rt}, rt)
	c.AddConst(rec)
	if _, err := MarshalChunk(c); !errors.Is(err, ErrUnsupported) {
		t.Errorf("marshal with record const = %v, want ErrUnsupported", err)
	}
}

func TestUnsupportedRegTypeSkipsSave(t *testing.T) {
	c := zam.NewChunk("f")
	c.RegTypes = []*types.Type{types.NewVector(types.Int)}
	c.ManagedRegs = []bool{true}
	if _, err := MarshalChunk(c); !errors.Is(err, ErrUnsupported) {
		t.Errorf("marshal with vector register = %v, want ErrUnsupported", err)
	}
}

func TestIndexPutGetDelete(t *testing.T) {
	ix, err := OpenIndex(filepath.Join(t.TempDir(), "index.db"))
	if err != nil {
		t.Fatalf("OpenIndex: %v", err)
	}
	defer ix.Close()

	e := Entry{
		Func:      "f",
		File:      "f.zamc",
		Digest:    "abc",
		Token:     "tok-1",
		WrittenAt: time.Unix(1700000000, 0),
	}
	if err := ix.Put(e); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, err := ix.Get("f")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Digest != e.Digest || got.Token != e.Token || !got.WrittenAt.Equal(e.WrittenAt) {
		t.Errorf("Get = %+v, want %+v", got, e)
	}

	// Replacement updates in place.
	e.Digest = "def"
	if err := ix.Put(e); err != nil {
		t.Fatalf("Put replace: %v", err)
	}
	got, err = ix.Get("f")
	if err != nil {
		t.Fatalf("Get after replace: %v", err)
	}
	if got.Digest != "def" {
		t.Errorf("digest after replace = %q, want %q", got.Digest, "def")
	}

	if err := ix.Delete("f"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := ix.Get("f"); !errors.Is(err, ErrMiss) {
		t.Errorf("Get after delete = %v, want ErrMiss", err)
	}
}

func TestIndexStale(t *testing.T) {
	ix, err := OpenIndex(filepath.Join(t.TempDir(), "index.db"))
	if err != nil {
		t.Fatalf("OpenIndex: %v", err)
	}
	defer ix.Close()

	now := time.Now()
	ix.Put(Entry{Func: "old1", File: "old1.zamc", Digest: "a", Token: "tok-old", WrittenAt: now})
	ix.Put(Entry{Func: "old2", File: "old2.zamc", Digest: "b", Token: "tok-old", WrittenAt: now})
	ix.Put(Entry{Func: "new1", File: "new1.zamc", Digest: "c", Token: "tok-new", WrittenAt: now})

	stale, err := ix.Stale("tok-new")
	if err != nil {
		t.Fatalf("Stale: %v", err)
	}
	if len(stale) != 2 {
		t.Fatalf("got %d stale entries, want 2", len(stale))
	}
	for _, e := range stale {
		if e.Token != "tok-old" {
			t.Errorf("stale entry %s has token %q", e.Func, e.Token)
		}
	}
}

func TestDigestStable(t *testing.T) {
	d1, err := Digest(sampleChunk())
	if err != nil {
		t.Fatalf("Digest: %v", err)
	}
	d2, err := Digest(sampleChunk())
	if err != nil {
		t.Fatalf("Digest: %v", err)
	}
	if d1 != d2 {
		t.Errorf("identical chunks digest to %q and %q", d1, d2)
	}

	other := sampleChunk()
	other.Emit(zam.Instr{Op: zam.OpNop}, 3)
	d3, err := Digest(other)
	if err != nil {
		t.Fatalf("Digest: %v", err)
	}
	if d3 == d1 {
		t.Error("different chunks share a digest")
	}
}
