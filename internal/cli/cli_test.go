package cli

import (
	"errors"
	"strings"
	"testing"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("NO_COLOR", "1")
	var buf strings.Builder
	err := Run(&buf, args)
	return buf.String(), err
}

func TestRunNoArgsPrintsUsage(t *testing.T) {
	out, err := run(t)
	if err != nil {
		t.Fatalf("Run() = %v, want nil", err)
	}
	if !strings.Contains(out, "kiln <command>") {
		t.Errorf("usage missing synopsis:\n%s", out)
	}
	for _, cmd := range []string{"compile", "upload", "detect", "boards", "modules", "lib", "monitor"} {
		if !strings.Contains(out, cmd) {
			t.Errorf("usage missing command %q", cmd)
		}
	}
}

func TestRunUnknownCommand(t *testing.T) {
	_, err := run(t, "frobnicate")
	var exitErr *ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("Run() = %v, want *ExitError", err)
	}
	if exitErr.Code != 2 {
		t.Errorf("Code = %d, want 2", exitErr.Code)
	}
	if !strings.Contains(exitErr.Message, "frobnicate") {
		t.Errorf("Message = %q, want command name included", exitErr.Message)
	}
}

func TestRunHelpCommand(t *testing.T) {
	out, err := run(t, "help")
	if err != nil {
		t.Fatalf("Run(help) = %v, want nil", err)
	}
	if !strings.Contains(out, "microcontroller compile & flash toolchain") {
		t.Errorf("help output missing banner:\n%s", out)
	}
}

func TestBoardsListsCatalog(t *testing.T) {
	out, err := run(t, "boards")
	if err != nil {
		t.Fatalf("Run(boards) = %v, want nil", err)
	}
	for _, want := range []string{"uno", "Arduino Uno", "atmega328p", "esp32", "pico", "FQBN"} {
		if !strings.Contains(out, want) {
			t.Errorf("boards output missing %q:\n%s", want, out)
		}
	}
}

func TestCompileRequiresSketch(t *testing.T) {
	_, err := run(t, "compile", "--board", "uno")
	var exitErr *ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("Run(compile) = %v, want *ExitError", err)
	}
	if exitErr.Code != 2 {
		t.Errorf("Code = %d, want 2", exitErr.Code)
	}
	if !strings.Contains(exitErr.Message, "--sketch") {
		t.Errorf("Message = %q, want --sketch hint", exitErr.Message)
	}
}

func TestCompileUnknownBoard(t *testing.T) {
	_, err := run(t, "compile", "--board", "zx81", "--sketch", t.TempDir())
	if err == nil {
		t.Fatal("Run(compile --board zx81) = nil, want error")
	}
	if !strings.Contains(err.Error(), "zx81") {
		t.Errorf("error = %v, want board ID included", err)
	}
}

func TestSubcommandHelpExitsClean(t *testing.T) {
	_, err := run(t, "compile", "-h")
	var exitErr *ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("Run(compile -h) = %v, want *ExitError", err)
	}
	if exitErr.Code != 0 {
		t.Errorf("Code = %d, want 0", exitErr.Code)
	}
	if exitErr.Message != "" {
		t.Errorf("Message = %q, want empty", exitErr.Message)
	}
}

func TestModulesUsageWithoutSubcommand(t *testing.T) {
	out, err := run(t, "modules")
	if err != nil {
		t.Fatalf("Run(modules) = %v, want nil", err)
	}
	for _, want := range []string{"install", "list", "update"} {
		if !strings.Contains(out, want) {
			t.Errorf("modules usage missing %q:\n%s", want, out)
		}
	}
}

func TestModulesInstallArity(t *testing.T) {
	_, err := run(t, "modules", "install")
	var exitErr *ExitError
	if !errors.As(err, &exitErr) || exitErr.Code != 2 {
		t.Fatalf("Run(modules install) = %v, want *ExitError code 2", err)
	}
}

func TestLibUsageWithoutSubcommand(t *testing.T) {
	out, err := run(t, "lib")
	if err != nil {
		t.Fatalf("Run(lib) = %v, want nil", err)
	}
	for _, want := range []string{"install", "search", "info"} {
		if !strings.Contains(out, want) {
			t.Errorf("lib usage missing %q:\n%s", want, out)
		}
	}
}

func TestLibUnknownSubcommand(t *testing.T) {
	_, err := run(t, "lib", "explode")
	var exitErr *ExitError
	if !errors.As(err, &exitErr) || exitErr.Code != 2 {
		t.Fatalf("Run(lib explode) = %v, want *ExitError code 2", err)
	}
}

func TestDirName(t *testing.T) {
	cases := map[string]string{
		"sketches/blink":  "blink",
		"blink/":          "blink",
		".":               "firmware",
		"/abs/path/radar": "radar",
	}
	for in, want := range cases {
		if got := dirName(in); got != want {
			t.Errorf("dirName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestRequireBoard(t *testing.T) {
	if got := requireBoard(""); got != "(none)" {
		t.Errorf("requireBoard(\"\") = %q", got)
	}
	if got := requireBoard("uno"); got != "uno" {
		t.Errorf("requireBoard(uno) = %q", got)
	}
}
