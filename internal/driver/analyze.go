package driver

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/tliron/commonlog"

	"github.com/2b45/zeek/internal/reduce"
	"github.com/2b45/zeek/internal/val"
	"github.com/2b45/zeek/internal/zam"
	"github.com/2b45/zeek/internal/zamcache"
)

var log = commonlog.GetLogger("zeek.driver")

// Driver runs the analysis pipeline over every registered function.
// Pass order is fixed: reduce, then inline, then optimize, then lower.
// Each pass assumes the invariants the prior one established.
type Driver struct {
	opts  Options
	funcs []*FuncInfo

	store *zamcache.Store
	index *zamcache.Index

	// FuncTable resolves calls between lowered bodies at execution.
	Funcs zam.FuncTable
}

func New(opts Options) (*Driver, error) {
	if err := opts.Normalize(); err != nil {
		return nil, err
	}
	d := &Driver{opts: opts, Funcs: make(zam.FuncTable)}
	if opts.Compile && opts.CacheDir != "" {
		store, err := zamcache.NewStore(opts.CacheDir, opts.BuildToken)
		if err != nil {
			return nil, err
		}
		index, err := zamcache.OpenIndex(filepath.Join(opts.CacheDir, "index.db"))
		if err != nil {
			return nil, err
		}
		d.store = store
		d.index = index
		if err := d.pruneStale(); err != nil {
			index.Close()
			return nil, err
		}
	}
	return d, nil
}

// pruneStale drops save files written under other build tokens. The
// per-file token check would reject them at load anyway; pruning keeps
// the cache directory from accumulating dead files.
func (d *Driver) pruneStale() error {
	stale, err := d.index.Stale(d.store.Token())
	if err != nil {
		return err
	}
	for _, e := range stale {
		if err := os.Remove(e.File); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("driver: prune %s: %w", e.Func, err)
		}
		if err := d.index.Delete(e.Func); err != nil {
			return err
		}
		log.Debugf("%s: pruned stale save file", e.Func)
	}
	return nil
}

// Close releases every function instance and the cache index.
func (d *Driver) Close() error {
	for _, fi := range d.funcs {
		fi.Done()
	}
	d.funcs = nil
	if d.index != nil {
		return d.index.Close()
	}
	return nil
}

// Register adds a function for analysis. Script loading calls this
// once per function instance.
func (d *Driver) Register(fi *FuncInfo) {
	d.funcs = append(d.funcs, fi)
}

func (d *Driver) Functions() []*FuncInfo { return d.funcs }

// Lookup finds the registered instance for a function handle.
func (d *Driver) Lookup(fn *val.FuncVal) *FuncInfo {
	for _, fi := range d.funcs {
		if fi.Func == fn {
			return fi
		}
	}
	return nil
}

// AnalyzeScripts runs the whole pipeline. With Activate off it is a
// no-op: every body stays raw for interpretation.
func (d *Driver) AnalyzeScripts() error {
	if !d.opts.Activate {
		return nil
	}

	r := reduce.NewReducer()
	d.reduceAll(r)

	if d.opts.UsageIssues > 0 {
		d.reportUsageIssues()
	}

	// Inlining runs over the whole program even under only_func:
	// expanding one call site changes what other bodies contain.
	if d.opts.Inliner {
		d.inlineAll(r)
	}

	if d.opts.Optimize {
		d.optimizeAll()
	}

	if d.opts.Compile {
		if err := d.compileAll(); err != nil {
			return err
		}
	}

	if d.opts.ReportProfile {
		d.reportProfiles()
	}
	return nil
}

func (d *Driver) reduceAll(r *reduce.Reducer) {
	for _, fi := range d.funcs {
		if !fi.ShouldAnalyze(d.opts.OnlyFunc) {
			continue
		}
		fi.Body = fi.Body.Reduce(r)
		if d.opts.DumpXform {
			d.dumpTransformed(fi)
		}
	}
}

func (d *Driver) inlineAll(r *reduce.Reducer) {
	var candidates []*reduce.InlineFunc
	for _, fi := range d.funcs {
		candidates = append(candidates, &reduce.InlineFunc{
			Func:   fi.Func,
			Params: fi.Scope.Params,
			Body:   fi.Body,
		})
	}
	inl := reduce.NewInliner(candidates, r)
	inl.SetMaxDepth(d.opts.MaxInlineDepth)
	for _, fi := range d.funcs {
		fi.NonRecursive = inl.IsNonRecursive(fi.Func)
		if d.opts.ReportRecursive {
			verdict := "recursive"
			if fi.NonRecursive {
				verdict = "non-recursive"
			}
			log.Infof("%s: %s", fi.Func.Name, verdict)
		}
	}
	for _, fi := range d.funcs {
		inl.Inline(fi.Body)
		if d.opts.DumpXform {
			d.dumpTransformed(fi)
		}
	}
}

func (d *Driver) optimizeAll() {
	for _, fi := range d.funcs {
		if !fi.ShouldAnalyze(d.opts.OnlyFunc) {
			continue
		}
		fi.Body = OptimizeStmt(fi.Body)
		if d.opts.DumpXform {
			d.dumpTransformed(fi)
		}
	}
}

func (d *Driver) compileAll() error {
	for _, fi := range d.funcs {
		if !fi.ShouldAnalyze(d.opts.OnlyFunc) {
			continue
		}
		chunk, err := d.compileOne(fi)
		if err != nil {
			return err
		}
		fi.Chunk = chunk
		d.Funcs[fi.Func] = chunk
		if d.opts.DumpCode {
			d.dumpCode(fi)
		}
	}
	return nil
}

// compileOne lowers one body, consulting the save-file cache per the
// configured policy.
func (d *Driver) compileOne(fi *FuncInfo) (*zam.Chunk, error) {
	name := fi.Func.Name

	if d.store != nil && d.opts.DeleteSaveFiles {
		if err := d.store.Delete(name); err != nil {
			return nil, err
		}
		if err := d.index.Delete(name); err != nil {
			return nil, err
		}
	}

	canLoad := d.store != nil && !d.opts.NoLoad &&
		!d.opts.DeleteSaveFiles && !d.opts.OverwriteSaveFiles
	if canLoad {
		if chunk, err := d.store.Load(name); err == nil {
			log.Debugf("%s: loaded save file", name)
			fi.SaveFile = d.store.Path(name)
			return chunk, nil
		}
		// Any miss, corruption included, falls back to compiling.
	}

	c := zam.NewCompiler(name, fi.Scope.Params)
	chunk, err := c.CompileBody(fi.Body)
	if err != nil {
		return nil, fmt.Errorf("driver: compile %s: %w", name, err)
	}

	canSave := d.store != nil && !d.opts.NoSave && !d.opts.DeleteSaveFiles
	if canSave {
		if err := d.saveOne(fi, chunk); err != nil {
			return nil, err
		}
	}
	return chunk, nil
}

func (d *Driver) saveOne(fi *FuncInfo, chunk *zam.Chunk) error {
	name := fi.Func.Name
	err := d.store.Save(name, chunk)
	if errors.Is(err, zamcache.ErrUnsupported) {
		// Not every body serializes; it just recompiles next run.
		log.Debugf("%s: body not serializable, skipping save", name)
		return nil
	}
	if err != nil {
		return err
	}
	digest, err := zamcache.Digest(chunk)
	if err != nil {
		return err
	}
	fi.SaveFile = d.store.Path(name)
	return d.index.Put(zamcache.Entry{
		Func:      name,
		File:      fi.SaveFile,
		Digest:    digest,
		Token:     d.store.Token(),
		WrittenAt: time.Now(),
	})
}

func (d *Driver) reportProfiles() {
	for _, fi := range d.funcs {
		if !fi.ShouldAnalyze(d.opts.OnlyFunc) {
			continue
		}
		p := fi.BuildProfile()
		log.Infof("%s: %d statements, %d expressions, depth %d",
			fi.Func.Name, p.NumStmts, p.NumExprs, p.MaxDepth)
	}
}

// Body returns an executable for a lowered function.
func (d *Driver) Body(fn *val.FuncVal) (*zam.ZBody, error) {
	chunk, ok := d.Funcs[fn]
	if !ok {
		return nil, fmt.Errorf("driver: %s has no compiled body", fn.Name)
	}
	return zam.NewZBody(chunk, d.Funcs), nil
}
