// Package pipeline compiles sketches into flashable firmware by
// driving the vendor cross-compilers directly. Each toolchain family
// shares the same skeleton: fingerprint the flag set, compile every
// source in parallel with incremental caching, join, then link.
package pipeline

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/buckleypaul/kiln/internal/board"
	"github.com/buckleypaul/kiln/internal/cache"
	"github.com/buckleypaul/kiln/internal/config"
	"github.com/buckleypaul/kiln/internal/sdk"
	"github.com/buckleypaul/kiln/internal/toolchain"
)

// Request holds the inputs for one compile run.
type Request struct {
	// SketchDir contains the user's .c/.cpp/.ino sources.
	SketchDir string
	// BuildDir receives objects, the linked image, and final artifacts.
	BuildDir string
	// ProjectName is the artifact file stem.
	ProjectName string
	// CPPStd is the C++ dialect string, e.g. "c++11".
	CPPStd string
	// IncludeDirs are extra -I directories (installed libraries).
	IncludeDirs []string
	// Verbose prints every compiler invocation.
	Verbose bool
}

// Result holds the produced artifact paths. Any of them may be empty
// when the family does not produce that artifact.
type Result struct {
	HexPath  string
	BinPath  string
	ElfPath  string
	SizeInfo string
}

// CompileError aggregates every failing translation unit from one
// parallel batch, each block tagged with its source path.
type CompileError struct {
	Output string
}

func (e *CompileError) Error() string {
	return "compilation failed:\n" + e.Output
}

// LinkError carries the linker's raw diagnostic text.
type LinkError struct {
	Output string
}

func (e *LinkError) Error() string {
	return "link failed:\n" + e.Output
}

// NoSourcesError reports a sketch directory with nothing to compile.
type NoSourcesError struct {
	Dir string
}

func (e *NoSourcesError) Error() string {
	return fmt.Sprintf("no .c/.cpp/.ino sources found in %s", e.Dir)
}

// UnsupportedError marks a board family the pipeline cannot build yet.
type UnsupportedError struct {
	Arch string
	Hint string
}

func (e *UnsupportedError) Error() string {
	return fmt.Sprintf("%s compile not supported — %s", e.Arch, e.Hint)
}

// Pipeline builds firmware for any cataloged board.
type Pipeline struct {
	Cfg      config.Config
	Log      *slog.Logger
	Resolver sdk.Resolver
}

// New wires a pipeline with a resolver over the same config.
func New(cfg config.Config, log *slog.Logger) *Pipeline {
	return &Pipeline{
		Cfg:      cfg,
		Log:      log,
		Resolver: sdk.Resolver{Cfg: cfg, Log: log},
	}
}

// Compile resolves the SDK for the board and runs the family pipeline.
func (p *Pipeline) Compile(req Request, profile *board.Profile) (Result, error) {
	paths, err := p.Resolver.Resolve(profile.Arch(), profile.Variant)
	if err != nil {
		return Result{}, err
	}

	req = p.augmentIncludes(req)

	switch profile.Chip.(type) {
	case board.AVR:
		return p.compileAVR(req, profile, paths)
	case board.ESP32, board.ESP8266:
		return p.compileESP(req, profile, paths)
	case board.SAM:
		return Result{}, &UnsupportedError{Arch: "SAM (Due)", Hint: "use arduino-cli for now"}
	case board.RP2040:
		return Result{}, &UnsupportedError{Arch: "RP2040", Hint: "use arduino-cli for now"}
	}
	return Result{}, &UnsupportedError{Arch: profile.Arch(), Hint: "unknown toolchain family"}
}

// augmentIncludes appends the kiln library root to the include set so
// registry-installed libraries are found without explicit flags.
func (p *Pipeline) augmentIncludes(req Request) Request {
	root := p.Cfg.LibsRoot
	if root == "" {
		return req
	}
	if info, err := os.Stat(root); err != nil || !info.IsDir() {
		return req
	}
	for _, d := range req.IncludeDirs {
		if d == root {
			return req
		}
	}
	req.IncludeDirs = append(req.IncludeDirs, root)
	return req
}

// jobs returns the fan-out bound for parallel compilation.
func (p *Pipeline) jobs() int {
	if p.Cfg.Jobs > 0 {
		return p.Cfg.Jobs
	}
	return runtime.NumCPU()
}

// compileUnit is one source file scheduled into the parallel batch.
type compileUnit struct {
	src string
	obj string
}

// compileBatch fans out one compiler invocation per unit across a
// bounded worker pool. Failures are collected, never short-circuited:
// the caller gets every failing file's diagnostic in one pass. Cached
// units are skipped via the manifest, which is only read here; the
// write-back happens after the join.
func (p *Pipeline) compileBatch(units []compileUnit, manifest *cache.Manifest, flagsHash string,
	invoke func(u compileUnit) toolchain.Result, verbose bool) []string {

	var (
		mu     sync.Mutex
		errs   []string
		wg     sync.WaitGroup
		tokens = make(chan struct{}, p.jobs())
	)

	for _, u := range units {
		if manifest.IsFresh(u.src, u.obj, flagsHash) {
			if verbose {
				fmt.Fprintf(os.Stderr, "  [cache] %s\n", u.src)
			}
			continue
		}

		wg.Add(1)
		go func(u compileUnit) {
			defer wg.Done()
			tokens <- struct{}{}
			defer func() { <-tokens }()

			if verbose {
				fmt.Fprintf(os.Stderr, "  [compile] %s\n", u.src)
			}
			res := invoke(u)
			if !res.OK() {
				mu.Lock()
				errs = append(errs, fmt.Sprintf("In %s:\n%s", u.src, res.Output))
				mu.Unlock()
			}
		}(u)
	}

	wg.Wait()
	return errs
}

// recordCompiled writes fresh content hashes for every source whose
// object now exists, then persists the manifest. Persistence failure
// only costs a future rebuild, so it is ignored.
func recordCompiled(manifest *cache.Manifest, units []compileUnit, flagsHash, dir string) {
	for _, u := range units {
		if _, err := os.Stat(u.obj); err == nil {
			manifest.Record(u.src, flagsHash)
		}
	}
	_ = manifest.Save(dir)
}

// sketchExts are the source extensions collected from a sketch tree.
var sketchExts = map[string]bool{".c": true, ".cpp": true, ".ino": true}

// collectSketchSources walks the sketch tree up to maxDepth levels and
// gathers source files by extension.
func collectSketchSources(dir string, maxDepth int) ([]string, error) {
	root, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}

	var sources []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			rel, relErr := filepath.Rel(root, path)
			if relErr == nil && rel != "." && strings.Count(rel, string(filepath.Separator))+1 >= maxDepth {
				return filepath.SkipDir
			}
			return nil
		}
		if sketchExts[filepath.Ext(path)] {
			sources = append(sources, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sources, nil
}

// isC reports whether the source compiles as a C translation unit.
// Everything else (.cpp, .ino) goes through the C++ front end.
func isC(src string) bool {
	return filepath.Ext(src) == ".c"
}
