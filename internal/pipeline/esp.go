package pipeline

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/buckleypaul/kiln/internal/board"
	"github.com/buckleypaul/kiln/internal/cache"
	"github.com/buckleypaul/kiln/internal/sdk"
	"github.com/buckleypaul/kiln/internal/toolchain"
)

// compileESP runs the Xtensa pipeline for ESP32 and ESP8266 boards.
// There is no core-archive stage; sketch objects link directly against
// the family linker script, and esptool converts the ELF to a
// flashable .bin when available.
func (p *Pipeline) compileESP(req Request, profile *board.Profile, paths sdk.Paths) (Result, error) {
	if err := os.MkdirAll(req.BuildDir, 0o755); err != nil {
		return Result{}, err
	}

	var (
		ccName, cxxName string
		archFlags       []string
		linkScript      string
		chip            string
	)
	switch c := profile.Chip.(type) {
	case board.ESP32:
		ccName, cxxName = "xtensa-esp32-elf-gcc", "xtensa-esp32-elf-g++"
		archFlags = []string{"-mlongcalls", "-mtext-section-literals"}
		linkScript = "esp32.ld"
		chip = c.Variant
	case board.ESP8266:
		ccName, cxxName = "xtensa-lx106-elf-gcc", "xtensa-lx106-elf-g++"
		archFlags = []string{"-mlongcalls", "-mtext-section-literals", "-falign-functions=4"}
		linkScript = "eagle.app.v6.common.ld"
		chip = "esp8266"
	default:
		return Result{}, fmt.Errorf("board %q is not an ESP board", profile.ID)
	}

	cc := toolchain.ResolveTool(paths.ToolchainBin, ccName)
	cxx := toolchain.ResolveTool(paths.ToolchainBin, cxxName)
	runner := toolchain.ExecRunner{BinDir: paths.ToolchainBin, Log: p.Log}

	common := []string{
		fmt.Sprintf("-DF_CPU=%dL", profile.FCPU()),
		"-DARDUINO=" + arduinoVersion,
		"-Os", "-w",
		"-ffunction-sections", "-fdata-sections",
		"-Wno-error=narrowing",
		"-MMD",
		"-I" + paths.CoreDir,
		"-I" + paths.VariantDir,
	}
	for _, d := range profile.Defines {
		common = append(common, "-D"+d)
	}
	for _, dir := range req.IncludeDirs {
		common = append(common, "-I"+dir)
	}
	common = append(common, archFlags...)

	cxxflags := []string{
		"-fpermissive", "-fno-exceptions", "-fno-threadsafe-statics",
		"-std=gnu++" + strings.TrimPrefix(req.CPPStd, "c++"),
	}

	flagsSig := cache.HashString(strings.Join(common, " ") + strings.Join(cxxflags, " "))

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
		if !isC(u.src) {
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

	// Link
	elfPath := filepath.Join(req.BuildDir, req.ProjectName+".elf")
	linkArgs := append([]string{}, common...)
	linkArgs = append(linkArgs,
		"-Wl,-T"+linkScript,
		"-Wl,--gc-sections",
		"-Wl,-Map,/dev/null",
	)
	for _, u := range units {
		linkArgs = append(linkArgs, u.obj)
	}
	linkArgs = append(linkArgs, "-lm", "-o", elfPath)

	if res := runner.Run(cc, linkArgs...); !res.OK() {
		return Result{}, &LinkError{Output: res.Output}
	}

	// Image conversion via esptool, best effort. Absent tool or a
	// failed conversion just omits the .bin artifact.
	binPath := filepath.Join(req.BuildDir, req.ProjectName+".bin")
	if tool, ok := findEsptool(); ok {
		runner.Run(tool, "--chip", chip, "elf2image", "--output", binPath, elfPath)
	}
	if _, err := os.Stat(binPath); err != nil {
		binPath = ""
	}

	return Result{
		BinPath: binPath,
		ElfPath: elfPath,
	}, nil
}

// findEsptool probes for esptool on PATH under either of its names.
func findEsptool() (string, bool) {
	for _, candidate := range []string{"esptool.py", "esptool"} {
		if _, err := exec.LookPath(candidate); err == nil {
			return candidate, true
		}
	}
	return "", false
}
