package toolchain

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

func TestRunCapturesOutputAndExitCode(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("test uses sh")
	}

	r := ExecRunner{}
	res := r.Run("sh", "-c", "echo hello; echo oops >&2; exit 3")

	if res.ExitCode != 3 {
		t.Errorf("expected exit code 3, got %d", res.ExitCode)
	}
	if !strings.Contains(res.Output, "hello") || !strings.Contains(res.Output, "oops") {
		t.Errorf("expected combined stdout+stderr, got %q", res.Output)
	}
	if res.Duration <= 0 {
		t.Error("expected positive duration")
	}
	if res.OK() {
		t.Error("exit 3 must not report OK")
	}
}

func TestRunMissingBinary(t *testing.T) {
	r := ExecRunner{}
	res := r.Run("kiln-definitely-not-a-real-tool")

	if res.ExitCode != -1 {
		t.Errorf("expected exit code -1 for spawn failure, got %d", res.ExitCode)
	}
	if res.Output == "" {
		t.Error("expected spawn error text in output")
	}
}

func TestResolveTool(t *testing.T) {
	tmp := t.TempDir()
	bin := filepath.Join(tmp, "avr-gcc")
	if err := os.WriteFile(bin, []byte("#!/bin/sh\n"), 0o755); err != nil {
		t.Fatalf("write fake tool: %v", err)
	}

	if got := ResolveTool(tmp, "avr-gcc"); got != bin {
		t.Errorf("expected %s, got %s", bin, got)
	}
	if got := ResolveTool(tmp, "avr-g++"); got != "avr-g++" {
		t.Errorf("missing tool should fall back to bare name, got %s", got)
	}
	if got := ResolveTool("", "avr-gcc"); got != "avr-gcc" {
		t.Errorf("empty bin dir should return bare name, got %s", got)
	}
}

func TestBuildEnvWithPathPrepends(t *testing.T) {
	t.Setenv("PATH", "/usr/bin")

	env := buildEnvWithPath("/toolchain/bin")
	var pathVar string
	for _, e := range env {
		if strings.HasPrefix(e, "PATH=") {
			pathVar = e
		}
	}
	want := "PATH=/toolchain/bin" + string(os.PathListSeparator) + "/usr/bin"
	if pathVar != want {
		t.Errorf("expected %q, got %q", want, pathVar)
	}
}
