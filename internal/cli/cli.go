// Package cli wires the kiln subcommands: compile, upload, run,
// detect, boards, sdk-info, modules, lib, and monitor.
package cli

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/buckleypaul/kiln/internal/config"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// app carries the global state every subcommand shares.
type app struct {
	cfg     config.Config
	log     *slog.Logger
	out     io.Writer
	quiet   bool
	verbose bool
}

const usageText = `kiln - microcontroller compile & flash toolchain

Usage:
  kiln <command> [options]

Commands:
  compile    Compile a sketch to firmware (.hex / .bin)
  upload     Upload compiled firmware to a connected board
  run        Compile then immediately upload
  detect     Detect connected boards / serial ports
  boards     List all supported boards
  sdk-info   Print SDK discovery paths for a board
  modules    Manage kiln-installed SDK cores (install / list / update)
  lib        Manage Arduino libraries (install / search / list / info / update)
  monitor    Open an interactive serial monitor

Global options (before the command):
  -v, --verbose    Print every tool invocation
  -q, --quiet      Suppress progress output
  --no-color       Disable colored output
  --log-level      debug, info, warn, or error (default warn)

Run "kiln <command> -h" for command-specific options.
`

// Run parses global flags, loads config, and dispatches to the
// subcommand. It is the testable core behind main.
func Run(out io.Writer, args []string) error {
	global := flag.NewFlagSet("kiln", flag.ContinueOnError)
	global.SetOutput(out)
	global.Usage = func() { fmt.Fprint(out, usageText) }

	verbose := global.Bool("verbose", false, "print every tool invocation")
	global.BoolVar(verbose, "v", false, "print every tool invocation (shorthand)")
	quiet := global.Bool("quiet", false, "suppress progress output")
	global.BoolVar(quiet, "q", false, "suppress progress output (shorthand)")
	noColor := global.Bool("no-color", false, "disable colored output")
	logLevel := global.String("log-level", "warn", "debug, info, warn, or error")

	if err := global.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil
		}
		return &ExitError{Code: 2, Message: err.Error()}
	}

	if *noColor || os.Getenv("NO_COLOR") != "" {
		lipgloss.SetColorProfile(termenv.Ascii)
	}

	rest := global.Args()
	if len(rest) == 0 {
		global.Usage()
		return nil
	}

	log := newLogger(*logLevel, *verbose)
	a := &app{cfg: config.Load(), log: log, out: out, quiet: *quiet, verbose: *verbose}

	cmd, cmdArgs := rest[0], rest[1:]
	switch cmd {
	case "compile":
		return a.cmdCompile(cmdArgs)
	case "upload":
		return a.cmdUpload(cmdArgs)
	case "run":
		return a.cmdRun(cmdArgs)
	case "detect":
		return a.cmdDetect(cmdArgs)
	case "boards":
		return a.cmdBoards(cmdArgs)
	case "sdk-info":
		return a.cmdSDKInfo(cmdArgs)
	case "modules":
		return a.cmdModules(cmdArgs)
	case "lib":
		return a.cmdLib(cmdArgs)
	case "monitor":
		return a.cmdMonitor(cmdArgs)
	case "help", "-h", "--help":
		global.Usage()
		return nil
	}
	return &ExitError{Code: 2, Message: fmt.Sprintf("unknown command %q — run \"kiln help\"", cmd)}
}

// newLogger builds the structured logger all components share.
// --verbose forces debug level regardless of --log-level.
func newLogger(level string, verbose bool) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "info":
		lvl = slog.LevelInfo
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelWarn
	}
	if verbose {
		lvl = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

// newFlagSet builds a subcommand flag set with consistent error
// handling.
func (a *app) newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet("kiln "+name, flag.ContinueOnError)
	fs.SetOutput(a.out)
	return fs
}
