// Package toolchain runs external compiler, archiver, and programmer
// binaries and captures their output.
package toolchain

import (
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// Result bundles everything captured from one tool invocation.
type Result struct {
	Output   string // combined stdout+stderr
	ExitCode int
	Duration time.Duration
}

// OK reports whether the tool exited zero.
func (r Result) OK() bool { return r.ExitCode == 0 }

// Runner executes external tool binaries.
type Runner interface {
	Run(name string, args ...string) Result
}

// ExecRunner invokes tools as real processes. When BinDir is set it is
// prepended to PATH for the child, so a cross-compiler finds its own
// binutils (as, ld, lto-wrapper) before any system ones.
type ExecRunner struct {
	BinDir string
	Log    *slog.Logger
}

func (r ExecRunner) Run(name string, args ...string) Result {
	if r.Log != nil {
		r.Log.Debug("exec", "tool", name, "args", strings.Join(args, " "))
	}

	start := time.Now()
	cmd := exec.Command(name, args...)
	if r.BinDir != "" {
		cmd.Env = buildEnvWithPath(r.BinDir)
	}

	output, err := cmd.CombinedOutput()
	duration := time.Since(start)

	exitCode := 0
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else {
			// Spawn failure (tool not found, permission). Surface the
			// error text as output so callers have something to show.
			return Result{
				Output:   string(output) + err.Error(),
				ExitCode: -1,
				Duration: duration,
			}
		}
	}

	return Result{
		Output:   string(output),
		ExitCode: exitCode,
		Duration: duration,
	}
}

// ResolveTool maps a bare tool name to <binDir>/<name> when that file
// exists. An empty binDir, or a missing file, returns the bare name so
// the process search path applies instead.
func ResolveTool(binDir, name string) string {
	if binDir == "" {
		return name
	}
	p := filepath.Join(binDir, name)
	if _, err := os.Stat(p); err == nil {
		return p
	}
	return name
}

// buildEnvWithPath creates a copy of the current environment with
// binDir prepended to PATH.
func buildEnvWithPath(binDir string) []string {
	env := os.Environ()
	result := make([]string, 0, len(env))
	pathSet := false

	for _, e := range env {
		if strings.HasPrefix(e, "PATH=") {
			result = append(result, "PATH="+binDir+string(os.PathListSeparator)+e[5:])
			pathSet = true
		} else {
			result = append(result, e)
		}
	}

	if !pathSet {
		result = append(result, "PATH="+binDir)
	}

	return result
}
