package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/buckleypaul/kiln/internal/board"
	"github.com/buckleypaul/kiln/internal/cache"
	"github.com/buckleypaul/kiln/internal/sdk"
	"github.com/buckleypaul/kiln/internal/toolchain"
)

// arduinoVersion is the ARDUINO define most libraries expect (1.8.19).
const arduinoVersion = "10819"

// coreSentinel records the fingerprint core.a was built from. A match
// plus an existing archive skips the whole core stage.
const coreSentinel = ".core_sig"

// compileAVR runs the four-stage AVR pipeline: core archive, sketch
// objects, link, Intel-HEX conversion.
func (p *Pipeline) compileAVR(req Request, profile *board.Profile, paths sdk.Paths) (Result, error) {
	mcu := profile.AVRMCU()
	if mcu == "" {
		return Result{}, fmt.Errorf("board %q is not an AVR board", profile.ID)
	}

	if err := os.MkdirAll(req.BuildDir, 0o755); err != nil {
		return Result{}, err
	}

	cc := toolchain.ResolveTool(paths.ToolchainBin, "avr-gcc")
	cxx := toolchain.ResolveTool(paths.ToolchainBin, "avr-g++")
	ar := toolchain.ResolveTool(paths.ToolchainBin, "avr-ar")
	runner := toolchain.ExecRunner{BinDir: paths.ToolchainBin, Log: p.Log}

	boardDefine := "ARDUINO_AVR_UNO"
	for _, d := range profile.Defines {
		if strings.HasPrefix(d, "ARDUINO_") {
			boardDefine = d
			break
		}
	}

	common := []string{
		"-mmcu=" + mcu,
		fmt.Sprintf("-DF_CPU=%dL", profile.FCPU()),
		"-DARDUINO=" + arduinoVersion,
		"-D" + boardDefine,
		"-DARDUINO_ARCH_AVR",
		"-Os", "-w",
		"-ffunction-sections", "-fdata-sections",
		"-flto",
		"-MMD",
		"-I" + paths.CoreDir,
		"-I" + paths.VariantDir,
	}
	for _, dir := range req.IncludeDirs {
		common = append(common, "-I"+dir)
	}
	if paths.LibrariesDir != "" {
		common = append(common, "-I"+paths.LibrariesDir)
	}

	cflags := []string{"-x", "c", "-std=gnu11"}
	cxxflags := []string{
		"-x", "c++",
		"-std=gnu++" + strings.TrimPrefix(req.CPPStd, "c++"),
		"-fpermissive", "-fno-exceptions",
		"-fno-threadsafe-statics",
		"-Wno-error=narrowing",
	}

	flagsSig := cache.HashString(strings.Join(common, " ") + strings.Join(cflags, " ") + strings.Join(cxxflags, " "))
	coreSig := cache.HashString("core" + mcu + paths.Version)

	// Stage 1: core.a
	coreObjDir := filepath.Join(req.BuildDir, "core")
	if err := os.MkdirAll(coreObjDir, 0o755); err != nil {
		return Result{}, err
	}
	coreA := filepath.Join(req.BuildDir, "core.a")
	if err := p.buildCore(runner, cc, cxx, ar, paths.CoreDir, coreObjDir, coreA,
		common, cflags, cxxflags, coreSig, req.Verbose); err != nil {
		return Result{}, err
	}

	// Stage 2: sketch objects
	sketchObjDir := filepath.Join(req.BuildDir, "sketch")
	if err := os.MkdirAll(sketchObjDir, 0o755); err != nil {
		return Result{}, err
	}

	sources, err := collectSketchSources(req.SketchDir, 3)
	if err != nil {
		return Result{}, err
	}
	if len(sources) == 0 {
		return Result{}, &NoSourcesError{Dir: req.SketchDir}
	}

	units := make([]compileUnit, len(sources))
	for i, src := range sources {
		units[i] = compileUnit{src: src, obj: cache.ObjPath(sketchObjDir, src)}
	}

	manifest := cache.Load(sketchObjDir)
	errs := p.compileBatch(units, manifest, flagsSig, func(u compileUnit) toolchain.Result {
		args := append([]string{}, common...)
		if isC(u.src) {
			args = append(args, cflags...)
		} else {
			args = append(args, cxxflags...)
		}
		args = append(args, "-c", u.src, "-o", u.obj)
		if isC(u.src) {
			return runner.Run(cc, args...)
		}
		return runner.Run(cxx, args...)
	}, req.Verbose)

	recordCompiled(manifest, units, flagsSig, sketchObjDir)

	if len(errs) > 0 {
		return Result{}, &CompileError{Output: strings.Join(errs, "\n\n")}
	}

	// Stage 3: link
	elfPath := filepath.Join(req.BuildDir, req.ProjectName+".elf")
	linkArgs := []string{
		"-w", "-Os", "-g", "-flto",
		"-fuse-linker-plugin", "-Wl,--gc-sections",
		"-mmcu=" + mcu,
	}
	for _, u := range units {
		linkArgs = append(linkArgs, u.obj)
	}
	linkArgs = append(linkArgs, coreA, "-L", req.BuildDir, "-lm", "-o", elfPath)

	if res := runner.Run(cc, linkArgs...); !res.OK() {
		return Result{}, &LinkError{Output: res.Output}
	}

	// Stage 4: objcopy to Intel HEX
	hexPath := filepath.Join(req.BuildDir, req.ProjectName+".hex")
	withBL := filepath.Join(req.BuildDir, req.ProjectName+".with_bootloader.hex")

	objcopy := toolchain.ResolveTool(paths.ToolchainBin, "avr-objcopy")
	if res := runner.Run(objcopy, "-O", "ihex", "-R", ".eeprom", elfPath, hexPath); !res.OK() {
		return Result{}, &CompileError{Output: res.Output}
	}

	// Standard upload flow uses the same image either way; keep both
	// files present and byte-identical.
	if err := copyFile(hexPath, withBL); err != nil {
		return Result{}, err
	}

	return Result{
		HexPath:  hexPath,
		ElfPath:  elfPath,
		SizeInfo: p.firmwareSize(runner, paths.ToolchainBin, elfPath, mcu),
	}, nil
}

// buildCore compiles the vendor core sources and archives them into
// core.a. The stage is skipped wholesale when the sentinel matches the
// current fingerprint and the archive still exists.
func (p *Pipeline) buildCore(runner toolchain.ExecRunner, cc, cxx, ar, coreSrc, coreObjDir, coreA string,
	common, cflags, cxxflags []string, coreSig string, verbose bool) error {

	sentinel := filepath.Join(coreObjDir, coreSentinel)
	if cached, err := os.ReadFile(sentinel); err == nil {
		if strings.TrimSpace(string(cached)) == coreSig {
			if _, err := os.Stat(coreA); err == nil {
				return nil
			}
		}
	}

	if verbose {
		fmt.Fprintln(os.Stderr, "  [core] building vendor core…")
	}

	sources, err := collectCoreSources(coreSrc)
	if err != nil {
		return err
	}

	units := make([]compileUnit, len(sources))
	for i, src := range sources {
		units[i] = compileUnit{src: src, obj: cache.ObjPath(coreObjDir, src)}
	}

	// No manifest here: the sentinel caches the whole stage in one
	// token, so a per-file cache would never be consulted.
	errs := p.compileBatch(units, cache.Load(coreObjDir), "", func(u compileUnit) toolchain.Result {
		args := append([]string{}, common...)
		switch filepath.Ext(u.src) {
		case ".S":
			args = append(args, "-x", "assembler-with-cpp")
		case ".c":
			args = append(args, cflags...)
		default:
			args = append(args, cxxflags...)
		}
		args = append(args, "-c", u.src, "-o", u.obj)
		if filepath.Ext(u.src) == ".cpp" {
			return runner.Run(cxx, args...)
		}
		return runner.Run(cc, args...)
	}, verbose)

	if len(errs) > 0 {
		return &CompileError{Output: strings.Join(errs, "\n")}
	}

	arArgs := []string{"rcs", coreA}
	for _, u := range units {
		if _, err := os.Stat(u.obj); err == nil {
			arArgs = append(arArgs, u.obj)
		}
	}
	if res := runner.Run(ar, arArgs...); !res.OK() {
		return &CompileError{Output: res.Output}
	}

	_ = os.WriteFile(sentinel, []byte(coreSig), 0o644)
	return nil
}

// collectCoreSources gathers the top-level C, C++, and assembly files
// of the vendor core directory (depth 1, no recursion).
func collectCoreSources(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var sources []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch filepath.Ext(e.Name()) {
		case ".c", ".cpp", ".S":
			sources = append(sources, filepath.Join(dir, e.Name()))
		}
	}
	return sources, nil
}

// firmwareSize reports flash/RAM usage via avr-size. Best effort: a
// failing or missing tool yields "(size unknown)".
func (p *Pipeline) firmwareSize(runner toolchain.ExecRunner, binDir, elf, mcu string) string {
	avrSize := toolchain.ResolveTool(binDir, "avr-size")

	res := runner.Run(avrSize, "--format=avr", "--mcu="+mcu, elf)
	if res.OK() {
		return strings.TrimSpace(res.Output)
	}
	res = runner.Run(avrSize, elf)
	if res.OK() {
		return strings.TrimSpace(res.Output)
	}
	return "(size unknown)"
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	info, err := os.Stat(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, info.Mode().Perm())
}
