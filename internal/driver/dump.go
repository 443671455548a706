package driver

import (
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"

	"github.com/2b45/zeek/internal/zam"
)

// Dump output goes to stdout; headers are colored iff stdout is a tty.
var dumpOut io.Writer = os.Stdout

const (
	ansiBold  = "\033[1m"
	ansiCyan  = "\033[36m"
	ansiReset = "\033[0m"
)

func dumpColored() bool {
	f, ok := dumpOut.(*os.File)
	return ok && isatty.IsTerminal(f.Fd())
}

func dumpHeader(kind, name string) {
	if dumpColored() {
		fmt.Fprintf(dumpOut, "%s%s%s %s%s%s\n", ansiBold, kind, ansiReset, ansiCyan, name, ansiReset)
		return
	}
	fmt.Fprintf(dumpOut, "%s %s\n", kind, name)
}

// dumpTransformed prints a function's current statement tree. Called
// after each transformation pass under dump_xform, so the same
// function can appear several times as it moves through the pipeline.
func (d *Driver) dumpTransformed(fi *FuncInfo) {
	if !fi.ShouldAnalyze(d.opts.OnlyFunc) {
		return
	}
	dumpHeader("xform", fi.Func.Name)
	fmt.Fprintln(dumpOut, fi.Body.String())
}

// dumpCode prints a function's lowered bytecode listing.
func (d *Driver) dumpCode(fi *FuncInfo) {
	dumpHeader("code", fi.Func.Name)
	fmt.Fprint(dumpOut, zam.Disassemble(fi.Chunk))
}
