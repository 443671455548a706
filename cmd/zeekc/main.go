// zeekc runs the script analysis pipeline over a built-in demo
// program: reduction, inlining, optimization, and lowering to
// bytecode with a persistent save-file cache.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/tliron/commonlog"
	"github.com/xyproto/env/v2"

	_ "github.com/tliron/commonlog/simple"

	"github.com/2b45/zeek/internal/ast"
	"github.com/2b45/zeek/internal/driver"
	"github.com/2b45/zeek/internal/types"
	"github.com/2b45/zeek/internal/val"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "zeekc:", err)
		os.Exit(1)
	}
}

func run() error {
	// Environment supplies defaults; the options file and flags
	// refine them in that order.
	optionsPath := flag.String("options", env.Str("ZEEKC_OPTIONS", ""), "yaml options file")
	cacheDir := flag.String("cache", env.Str("ZEEKC_CACHE_DIR", ""), "save-file cache directory")
	verbose := flag.Bool("v", env.Bool("ZEEKC_VERBOSE"), "debug logging")
	onlyFunc := flag.String("only", "", "restrict analysis to one function")
	dumpCode := flag.Bool("dump-code", false, "print lowered bytecode")
	dumpXform := flag.Bool("dump-xform", false, "print transformed statement trees")
	flag.Parse()

	verbosity := 0
	if *verbose {
		verbosity = 2
	}
	commonlog.Configure(verbosity, nil)

	opts, err := driver.LoadOptions(*optionsPath)
	if err != nil {
		return err
	}
	opts.Activate = true
	opts.Inliner = true
	opts.Optimize = true
	opts.Compile = true
	if *cacheDir != "" {
		opts.CacheDir = *cacheDir
	}
	if *onlyFunc != "" {
		opts.OnlyFunc = *onlyFunc
	}
	opts.DumpCode = opts.DumpCode || *dumpCode
	opts.DumpXform = opts.DumpXform || *dumpXform

	d, err := driver.New(opts)
	if err != nil {
		return err
	}
	defer d.Close()

	entry := registerDemo(d)

	if err := d.AnalyzeScripts(); err != nil {
		return err
	}

	body, err := d.Body(entry)
	if err != nil {
		return err
	}
	_, err = body.Run(nil)
	return err
}

// registerDemo builds a small program exercising the whole pipeline
// and returns its entry point.
//
//	function add1(n: int): int { return n + 1; }
//	function sum_to(limit: int): int {
//	    i = 0; total = 0;
//	    while ( i < limit ) {
//	        total = total + i;
//	        i = add1(i);
//	    }
//	    return total;
//	}
//	function zeek_main() { print "sum", sum_to(10); }
func registerDemo(d *driver.Driver) *val.FuncVal {
	n := ast.NewName("n", types.Int)
	add1 := &val.FuncVal{Name: "add1", Params: []string{"n"}}
	d.Register(driver.NewFuncInfo(add1,
		&driver.Scope{Params: []*ast.NameExpr{n}},
		ast.NewReturn(ast.NewBinary(ast.OpAdd, n, ast.NewConst(val.NewInt(1)), types.Int))))

	limit := ast.NewName("limit", types.Int)
	i := ast.NewName("i", types.Int)
	total := ast.NewName("total", types.Int)
	sumTo := &val.FuncVal{Name: "sum_to", Params: []string{"limit"}}
	d.Register(driver.NewFuncInfo(sumTo,
		&driver.Scope{Params: []*ast.NameExpr{limit}, Locals: []*ast.NameExpr{i, total}},
		ast.NewList(
			ast.NewAssign(i, ast.NewConst(val.NewInt(0))),
			ast.NewAssign(total, ast.NewConst(val.NewInt(0))),
			ast.NewWhile(
				ast.NewBinary(ast.OpLt, i.Duplicate(), limit.Duplicate(), types.Bool),
				ast.NewList(
					ast.NewAssign(total.Duplicate(),
						ast.NewBinary(ast.OpAdd, total.Duplicate(), i.Duplicate(), types.Int)),
					ast.NewAssign(i.Duplicate(),
						ast.NewCall(add1, []ast.Expr{i.Duplicate()}, types.Int)),
				),
			),
			ast.NewReturn(total.Duplicate()),
		)))

	mainFn := &val.FuncVal{Name: "zeek_main"}
	d.Register(driver.NewFuncInfo(mainFn, nil,
		ast.NewPrint(
			ast.NewConst(val.NewString("sum")),
			ast.NewCall(sumTo, []ast.Expr{ast.NewConst(val.NewInt(10))}, types.Int),
		)))
	return mainFn
}
