package cli

import (
	"errors"
	"flag"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/buckleypaul/kiln/internal/board"
	"github.com/buckleypaul/kiln/internal/flash"
	"github.com/buckleypaul/kiln/internal/libreg"
	"github.com/buckleypaul/kiln/internal/pipeline"
	"github.com/buckleypaul/kiln/internal/sdk"
	"github.com/buckleypaul/kiln/internal/serialport"
	"github.com/buckleypaul/kiln/internal/store"
	"github.com/buckleypaul/kiln/internal/ui"
)

// includeList collects repeated --include flags.
type includeList []string

func (l *includeList) String() string { return strings.Join(*l, ",") }

func (l *includeList) Set(v string) error {
	for _, part := range strings.Split(v, ",") {
		if part != "" {
			*l = append(*l, part)
		}
	}
	return nil
}

func (a *app) cmdCompile(args []string) error {
	fs := a.newFlagSet("compile")
	boardID := fs.String("board", a.cfg.DefaultBoard, "target board ID (e.g. uno, nano, esp32)")
	fs.StringVar(boardID, "b", a.cfg.DefaultBoard, "target board ID (shorthand)")
	sketch := fs.String("sketch", "", "directory containing sketch sources")
	buildDir := fs.String("build-dir", "build/.cache", "output directory for objects and firmware")
	name := fs.String("name", "", "project name (default: sketch dir name)")
	cppStd := fs.String("cpp-std", a.cfg.CPPStd, "C++ standard")
	var includes includeList
	fs.Var(&includes, "include", "extra include directory (repeatable, comma-separated)")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if *sketch == "" {
		return &ExitError{Code: 2, Message: "compile: --sketch is required"}
	}

	profile, err := board.Find(requireBoard(*boardID))
	if err != nil {
		return err
	}
	projectName := *name
	if projectName == "" {
		projectName = dirName(*sketch)
	}

	if !a.quiet {
		fmt.Fprintf(a.out, "%s %s %s\n",
			ui.BoldStyle.Render("Compiling"),
			ui.DimStyle.Render("[board: "+profile.ID+"]"),
			ui.DimStyle.Render("[sdk: "+profile.Arch()+"]"))
		fmt.Fprintln(a.out, ui.DimStyle.Render(strings.Repeat("─", 60)))
	}

	_, err = a.compile(profile, *sketch, *buildDir, projectName, *cppStd, includes)
	return err
}

// compile runs the pipeline once and records the build in history.
func (a *app) compile(profile *board.Profile, sketch, buildDir, name, cppStd string,
	includes []string) (pipeline.Result, error) {

	reg := libreg.New(a.cfg, a.log)
	req := pipeline.Request{
		SketchDir:   sketch,
		BuildDir:    buildDir,
		ProjectName: name,
		CPPStd:      cppStd,
		IncludeDirs: append(includes, reg.IncludeDirs()...),
		Verbose:     a.verbose,
	}

	t0 := time.Now()
	result, err := pipeline.New(a.cfg, a.log).Compile(req, profile)
	elapsed := time.Since(t0)

	a.recordBuild(profile.ID, sketch, result, err == nil, elapsed)

	if err != nil {
		a.renderCompileError(err)
		return result, &ExitError{Code: 1, Message: "compilation failed"}
	}

	if !a.quiet {
		fmt.Fprintf(a.out, "%s compiled in %.2fs\n", ui.SuccessStyle.Render("✓"), elapsed.Seconds())
		if result.HexPath != "" {
			fmt.Fprintf(a.out, "  %s %s\n", ui.DimStyle.Render("hex:"), result.HexPath)
		}
		if result.BinPath != "" {
			fmt.Fprintf(a.out, "  %s %s\n", ui.DimStyle.Render("bin:"), result.BinPath)
		}
		if result.SizeInfo != "" {
			fmt.Fprintf(a.out, "\n%s\n", ui.DimStyle.Render(result.SizeInfo))
		}
	}
	return result, nil
}

func (a *app) cmdUpload(args []string) error {
	fs := a.newFlagSet("upload")
	boardID := fs.String("board", a.cfg.DefaultBoard, "target board ID")
	fs.StringVar(boardID, "b", a.cfg.DefaultBoard, "target board ID (shorthand)")
	port := fs.String("port", a.cfg.SerialPort, "serial port (auto-detect if omitted)")
	fs.StringVar(port, "p", a.cfg.SerialPort, "serial port (shorthand)")
	buildDir := fs.String("build-dir", "build/.cache", "directory containing compiled firmware")
	name := fs.String("name", "firmware", "project name used to find <name>.hex")
	baud := fs.Int("baud", 0, "override programming baud rate (0 = board default)")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	profile, err := board.Find(requireBoard(*boardID))
	if err != nil {
		return err
	}
	resolved, err := a.resolvePort(*port)
	if err != nil {
		return err
	}

	if !a.quiet {
		fmt.Fprintf(a.out, "%s %s %s\n",
			ui.BoldStyle.Render("Uploading"),
			ui.DimStyle.Render("[board: "+profile.ID+"]"),
			ui.DimStyle.Render("[port: "+resolved+"]"))
		fmt.Fprintln(a.out, ui.DimStyle.Render(strings.Repeat("─", 60)))
	}

	return a.upload(profile, *buildDir, *name, resolved, *baud)
}

// upload flashes the firmware and records the attempt in history.
func (a *app) upload(profile *board.Profile, buildDir, name, port string, baud int) error {
	req := flash.Request{
		BuildDir:     buildDir,
		ProjectName:  name,
		Port:         port,
		BaudOverride: baud,
		Verbose:      a.verbose,
	}

	t0 := time.Now()
	err := flash.New(a.cfg, a.log).Flash(req, profile)
	elapsed := time.Since(t0)

	a.recordFlash(profile.ID, port, err == nil, elapsed)

	if err != nil {
		a.renderFlashError(err, port)
		return &ExitError{Code: 1, Message: "upload failed"}
	}
	if !a.quiet {
		fmt.Fprintf(a.out, "%s firmware uploaded to %s\n",
			ui.SuccessStyle.Render("✓"), ui.BoldStyle.Render(port))
	}
	return nil
}

func (a *app) cmdRun(args []string) error {
	fs := a.newFlagSet("run")
	boardID := fs.String("board", a.cfg.DefaultBoard, "target board ID")
	fs.StringVar(boardID, "b", a.cfg.DefaultBoard, "target board ID (shorthand)")
	port := fs.String("port", a.cfg.SerialPort, "serial port (auto-detect if omitted)")
	fs.StringVar(port, "p", a.cfg.SerialPort, "serial port (shorthand)")
	sketch := fs.String("sketch", "", "directory containing sketch sources")
	buildDir := fs.String("build-dir", "build/.cache", "build/output directory")
	name := fs.String("name", "", "project name (default: sketch dir name)")
	cppStd := fs.String("cpp-std", a.cfg.CPPStd, "C++ standard")
	baud := fs.Int("baud", 0, "override programming baud rate")
	var includes includeList
	fs.Var(&includes, "include", "extra include directory (repeatable)")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if *sketch == "" {
		return &ExitError{Code: 2, Message: "run: --sketch is required"}
	}

	profile, err := board.Find(requireBoard(*boardID))
	if err != nil {
		return err
	}
	projectName := *name
	if projectName == "" {
		projectName = dirName(*sketch)
	}

	if !a.quiet {
		fmt.Fprintf(a.out, "%s %s\n",
			ui.BoldStyle.Render("Compiling"), ui.DimStyle.Render("[board: "+profile.ID+"]"))
		fmt.Fprintln(a.out, ui.DimStyle.Render(strings.Repeat("─", 60)))
	}
	if _, err := a.compile(profile, *sketch, *buildDir, projectName, *cppStd, includes); err != nil {
		return err
	}

	resolved, err := a.resolvePort(*port)
	if err != nil {
		return err
	}
	if !a.quiet {
		fmt.Fprintf(a.out, "\n%s %s\n",
			ui.BoldStyle.Render("Uploading"), ui.DimStyle.Render("[port: "+resolved+"]"))
		fmt.Fprintln(a.out, ui.DimStyle.Render(strings.Repeat("─", 60)))
	}
	return a.upload(profile, *buildDir, projectName, resolved, *baud)
}

// resolvePort returns the explicit port or auto-detects the most
// likely one.
func (a *app) resolvePort(explicit string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	if !a.quiet {
		fmt.Fprintf(a.out, "%s auto-detecting board… ", ui.DimStyle.Render("→"))
	}
	port, ok := serialport.BestPort()
	if !ok {
		if !a.quiet {
			fmt.Fprintln(a.out)
		}
		return "", &ExitError{Code: 1, Message: "no board detected on any serial port — connect the board or pass --port"}
	}
	if !a.quiet {
		fmt.Fprintln(a.out, ui.BoldStyle.Render(port))
	}
	return port, nil
}

// requireBoard substitutes an obvious sentinel so board.Find produces
// its catalog hint for an empty ID.
func requireBoard(id string) string {
	if id == "" {
		return "(none)"
	}
	return id
}

func dirName(path string) string {
	base := filepath.Base(filepath.Clean(path))
	if base == "." || base == string(filepath.Separator) {
		return "firmware"
	}
	return base
}

func (a *app) recordBuild(boardID, sketch string, result pipeline.Result, success bool, elapsed time.Duration) {
	st := a.history()
	if st == nil {
		return
	}
	var artifacts []string
	for _, p := range []string{result.HexPath, result.BinPath, result.ElfPath} {
		if p != "" {
			artifacts = append(artifacts, p)
		}
	}
	st.AddBuild(store.BuildRecord{
		Board:     boardID,
		Sketch:    sketch,
		Timestamp: time.Now(),
		Success:   success,
		Duration:  elapsed.Round(time.Millisecond).String(),
		Artifacts: artifacts,
		SizeInfo:  result.SizeInfo,
	})
}

func (a *app) recordFlash(boardID, port string, success bool, elapsed time.Duration) {
	st := a.history()
	if st == nil {
		return
	}
	st.AddFlash(store.FlashRecord{
		Board:     boardID,
		Port:      port,
		Timestamp: time.Now(),
		Success:   success,
		Duration:  elapsed.Round(time.Millisecond).String(),
	})
}

func (a *app) history() *store.Store {
	root := a.cfg.StateDir()
	if root == "" {
		return nil
	}
	return store.New(root)
}

func (a *app) renderCompileError(err error) {
	fmt.Fprintf(a.out, "\n%s\n", ui.ErrorStyle.Render("✗ compilation failed"))
	fmt.Fprintln(a.out, ui.DimStyle.Render(strings.Repeat("─", 60)))

	var ce *pipeline.CompileError
	var le *pipeline.LinkError
	var nf *sdk.NotFoundError
	switch {
	case errors.As(err, &ce):
		fmt.Fprintln(a.out, ui.RenderDiagnostics(ce.Output))
	case errors.As(err, &le):
		fmt.Fprintln(a.out, ui.RenderDiagnostics(le.Output))
	case errors.As(err, &nf):
		fmt.Fprintf(a.out, "  SDK not found for arch %q\n", nf.Arch)
		fmt.Fprintf(a.out, "  Expected at: %s\n", nf.Expected)
		fmt.Fprintf(a.out, "  %s\n", nf.InstallHint())
		fmt.Fprintln(a.out, "  Or point KILN_SDK_ROOT at an existing SDK install.")
	default:
		fmt.Fprintf(a.out, "  %v\n", err)
	}

	fmt.Fprintln(a.out, ui.DimStyle.Render(strings.Repeat("─", 60)))
}

func (a *app) renderFlashError(err error, port string) {
	fmt.Fprintf(a.out, "\n%s\n", ui.ErrorStyle.Render("✗ upload to "+port+" failed"))
	fmt.Fprintln(a.out, ui.DimStyle.Render(strings.Repeat("─", 60)))

	var fe *flash.FlashError
	if errors.As(err, &fe) {
		fmt.Fprintln(a.out, ui.RenderDiagnostics(fe.Output))
		fmt.Fprintln(a.out)
		fmt.Fprintln(a.out, "  "+ui.BoldStyle.Render("Hints:"))
		fmt.Fprintln(a.out, "  • Ensure the board is in bootloader mode")
		fmt.Fprintln(a.out, "  • Try a different USB cable / port")
		fmt.Fprintln(a.out, "  • Pass --port explicitly: kiln upload --port /dev/ttyUSB0 …")
	} else {
		fmt.Fprintf(a.out, "  %v\n", err)
	}

	fmt.Fprintln(a.out, ui.DimStyle.Render(strings.Repeat("─", 60)))
}

// parseFlags normalizes flag.Parse errors into exit codes. An -h/-help
// request becomes a clean zero-code exit after the usage print.
func parseFlags(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return &ExitError{Code: 0}
		}
		return &ExitError{Code: 2, Message: err.Error()}
	}
	return nil
}
