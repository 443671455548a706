// Package driver orchestrates per-function script analysis: reduction,
// whole-program inlining, optimization, and lowering to bytecode with
// a persistent save-file cache.
package driver

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/2b45/zeek/internal/reduce"
)

// Options is the analysis configuration surface. Everything defaults
// off; Activate gates the whole pipeline.
type Options struct {
	// Activate enables analysis at all. When false every function
	// stays in raw form for pure interpretation.
	Activate bool `yaml:"activate"`

	// OnlyFunc restricts reduction, optimization, and dump output to
	// one named function. Inlining ignores it: call graphs are global.
	OnlyFunc string `yaml:"only_func"`

	// UsageIssues selects usage analysis depth: 0 off, 1 flags
	// set-but-unused locals, 2 adds nested-record field checks.
	UsageIssues int `yaml:"usage_issues"`

	Inliner  bool `yaml:"inliner"`
	Optimize bool `yaml:"optimize"`
	Compile  bool `yaml:"compile"`

	// Cache interaction policy, mutually refining.
	NoLoad             bool `yaml:"no_load"`
	NoSave             bool `yaml:"no_save"`
	DeleteSaveFiles    bool `yaml:"delete_save_files"`
	OverwriteSaveFiles bool `yaml:"overwrite_save_files"`

	DumpCode  bool `yaml:"dump_code"`
	DumpXform bool `yaml:"dump_xform"`

	// ReportRecursive logs the recursion analysis verdict per function.
	ReportRecursive bool `yaml:"report_recursive"`
	// ReportProfile logs statement access statistics after execution.
	ReportProfile bool `yaml:"report_profile"`

	// CacheDir holds save files and their index; empty disables
	// persistence even when Compile is on.
	CacheDir string `yaml:"cache_dir"`

	// BuildToken ties save files to one toolchain build. Empty mints
	// a fresh token, invalidating prior files.
	BuildToken string `yaml:"build_token"`

	// MaxInlineDepth caps nested expansion; zero means the default.
	MaxInlineDepth int `yaml:"max_inline_depth"`
}

// LoadOptions reads an options file. A missing path yields zero-value
// options rather than an error, so running without a config works.
func LoadOptions(path string) (Options, error) {
	var o Options
	if path == "" {
		return o, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return o, nil
		}
		return o, fmt.Errorf("driver: read options: %w", err)
	}
	if err := yaml.Unmarshal(data, &o); err != nil {
		return o, fmt.Errorf("driver: parse options %s: %w", path, err)
	}
	return o, nil
}

// Normalize resolves defaults and rejects contradictory settings.
func (o *Options) Normalize() error {
	if o.MaxInlineDepth <= 0 {
		o.MaxInlineDepth = reduce.DefaultMaxInlineDepth
	}
	// Singling out one function is a request to inspect it, so the
	// dumps come on with it.
	if o.OnlyFunc != "" {
		o.DumpCode = true
		o.DumpXform = true
	}
	if o.UsageIssues < 0 {
		return fmt.Errorf("driver: usage_issues must be >= 0, got %d", o.UsageIssues)
	}
	if o.DeleteSaveFiles && o.OverwriteSaveFiles {
		return fmt.Errorf("driver: delete_save_files and overwrite_save_files are mutually exclusive")
	}
	if !o.Activate && (o.Inliner || o.Optimize || o.Compile) {
		return fmt.Errorf("driver: inliner/optimize/compile require activate")
	}
	return nil
}
