package pipeline

import (
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/buckleypaul/kiln/internal/board"
	"github.com/buckleypaul/kiln/internal/config"
	"github.com/buckleypaul/kiln/internal/sdk"
)

// fakeCompiler is a shell script standing in for gcc/g++: it logs the
// source it was handed, fails with a diagnostic when the source
// contains the KILN_FAIL marker, and otherwise touches the -o output.
const fakeCompiler = `#!/bin/sh
out=""; src=""; prev=""
for a in "$@"; do
  [ "$prev" = "-o" ] && out="$a"
  [ "$prev" = "-c" ] && src="$a"
  prev="$a"
done
[ -n "$KILN_TEST_LOG" ] && echo "compile $src" >> "$KILN_TEST_LOG"
if [ -n "$src" ] && grep -q KILN_FAIL "$src"; then
  echo "$src:3:1: error: expected ';' before '}' token" >&2
  exit 1
fi
[ -n "$out" ] && : > "$out"
exit 0
`

// fakeAr mimics "ar rcs archive obj..." by creating the archive file.
const fakeAr = `#!/bin/sh
: > "$2"
`

// fakeObjcopy creates its last argument (the output image).
const fakeObjcopy = `#!/bin/sh
for a in "$@"; do last="$a"; done
: > "$last"
`

const fakeSize = `#!/bin/sh
echo "Program: 1024 bytes"
`

func requireSh(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake tools use sh")
	}
}

func writeTool(t *testing.T, dir, name, script string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(script), 0o755); err != nil {
		t.Fatalf("write tool %s: %v", name, err)
	}
}

// fakeToolchain installs fake AVR and Xtensa tools and puts them
// first on PATH.
func fakeToolchain(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	for _, name := range []string{
		"avr-gcc", "avr-g++",
		"xtensa-esp32-elf-gcc", "xtensa-esp32-elf-g++",
		"xtensa-lx106-elf-gcc", "xtensa-lx106-elf-g++",
	} {
		writeTool(t, dir, name, fakeCompiler)
	}
	writeTool(t, dir, "avr-ar", fakeAr)
	writeTool(t, dir, "avr-objcopy", fakeObjcopy)
	writeTool(t, dir, "avr-size", fakeSize)
	t.Setenv("PATH", dir+string(os.PathListSeparator)+os.Getenv("PATH"))
	return dir
}

// fakeSDK builds an explicit SDK root with one core source file.
func fakeSDK(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	coreDir := filepath.Join(root, "cores", "arduino")
	if err := os.MkdirAll(coreDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(root, "variants", "standard"), 0o755); err != nil {
		t.Fatal(err)
	}
	mustWrite(t, filepath.Join(coreDir, "wiring.c"), "void init(void) {}\n")
	mustWrite(t, filepath.Join(coreDir, "main.cpp"), "int main() { return 0; }\n")
	return root
}

func mustWrite(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func newTestPipeline(t *testing.T, sdkRoot string) *Pipeline {
	t.Helper()
	cfg := config.Config{Home: t.TempDir(), SDKRoot: sdkRoot, Jobs: 2}
	return &Pipeline{Cfg: cfg, Resolver: sdk.Resolver{Cfg: cfg}}
}

func TestAVRBuildProducesHexPair(t *testing.T) {
	requireSh(t)
	fakeToolchain(t)

	sketch := t.TempDir()
	mustWrite(t, filepath.Join(sketch, "blink.cpp"), "void loop() {}\n")
	build := t.TempDir()

	p := newTestPipeline(t, fakeSDK(t))
	profile, _ := board.Find("uno")

	res, err := p.Compile(Request{
		SketchDir: sketch, BuildDir: build, ProjectName: "blink", CPPStd: "c++11",
	}, profile)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}

	if res.HexPath == "" {
		t.Fatal("expected a hex path")
	}
	hex, err := os.ReadFile(res.HexPath)
	if err != nil {
		t.Fatalf("read hex: %v", err)
	}
	withBL, err := os.ReadFile(filepath.Join(build, "blink.with_bootloader.hex"))
	if err != nil {
		t.Fatalf("read with_bootloader hex: %v", err)
	}
	if string(hex) != string(withBL) {
		t.Error("with_bootloader hex must be byte-identical to the plain hex")
	}
	if res.SizeInfo == "" || res.SizeInfo == "(size unknown)" {
		t.Errorf("expected size report from fake avr-size, got %q", res.SizeInfo)
	}
}

func TestCompileFailureAggregatesAllFiles(t *testing.T) {
	requireSh(t)
	fakeToolchain(t)

	sketch := t.TempDir()
	mustWrite(t, filepath.Join(sketch, "good1.cpp"), "void a() {}\n")
	mustWrite(t, filepath.Join(sketch, "good2.cpp"), "void b() {}\n")
	mustWrite(t, filepath.Join(sketch, "good3.cpp"), "void c() {}\n")
	mustWrite(t, filepath.Join(sketch, "bad1.cpp"), "KILN_FAIL\n")
	mustWrite(t, filepath.Join(sketch, "bad2.cpp"), "KILN_FAIL\n")
	build := t.TempDir()

	p := newTestPipeline(t, fakeSDK(t))
	profile, _ := board.Find("uno")

	_, err := p.Compile(Request{
		SketchDir: sketch, BuildDir: build, ProjectName: "broken", CPPStd: "c++11",
	}, profile)
	if err == nil {
		t.Fatal("expected compile failure")
	}

	var ce *CompileError
	if !errors.As(err, &ce) {
		t.Fatalf("expected CompileError, got %T: %v", err, err)
	}
	if !strings.Contains(ce.Output, "bad1.cpp") || !strings.Contains(ce.Output, "bad2.cpp") {
		t.Errorf("aggregated output must name both failing files, got:\n%s", ce.Output)
	}
	if !strings.Contains(ce.Output, "error: expected ';'") {
		t.Errorf("aggregated output must carry the diagnostic text, got:\n%s", ce.Output)
	}
	if _, statErr := os.Stat(filepath.Join(build, "broken.elf")); statErr == nil {
		t.Error("link must not run after compile failures")
	}
	if _, statErr := os.Stat(filepath.Join(build, "broken.hex")); statErr == nil {
		t.Error("no hex may exist after a failed build")
	}
}

func TestSecondBuildHitsCache(t *testing.T) {
	requireSh(t)
	fakeToolchain(t)

	sketch := t.TempDir()
	src := filepath.Join(sketch, "app.cpp")
	mustWrite(t, src, "void loop() {}\n")
	build := t.TempDir()

	log := filepath.Join(t.TempDir(), "invocations.log")
	t.Setenv("KILN_TEST_LOG", log)

	p := newTestPipeline(t, fakeSDK(t))
	profile, _ := board.Find("uno")
	req := Request{SketchDir: sketch, BuildDir: build, ProjectName: "app", CPPStd: "c++11"}

	if _, err := p.Compile(req, profile); err != nil {
		t.Fatalf("first build: %v", err)
	}
	if _, err := p.Compile(req, profile); err != nil {
		t.Fatalf("second build: %v", err)
	}

	data, err := os.ReadFile(log)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if n := strings.Count(string(data), src); n != 1 {
		t.Errorf("unchanged sketch source compiled %d times, want 1", n)
	}
}

func TestChangedFileRecompiles(t *testing.T) {
	requireSh(t)
	fakeToolchain(t)

	sketch := t.TempDir()
	changing := filepath.Join(sketch, "app.cpp")
	stable := filepath.Join(sketch, "util.cpp")
	mustWrite(t, changing, "void loop() {}\n")
	mustWrite(t, stable, "void util() {}\n")
	build := t.TempDir()

	log := filepath.Join(t.TempDir(), "invocations.log")
	t.Setenv("KILN_TEST_LOG", log)

	p := newTestPipeline(t, fakeSDK(t))
	profile, _ := board.Find("uno")
	req := Request{SketchDir: sketch, BuildDir: build, ProjectName: "app", CPPStd: "c++11"}

	if _, err := p.Compile(req, profile); err != nil {
		t.Fatalf("first build: %v", err)
	}
	mustWrite(t, changing, "void loop() { /* edit */ }\n")
	if _, err := p.Compile(req, profile); err != nil {
		t.Fatalf("second build: %v", err)
	}

	data, _ := os.ReadFile(log)
	if n := strings.Count(string(data), changing); n != 2 {
		t.Errorf("changed file compiled %d times, want 2", n)
	}
	if n := strings.Count(string(data), stable); n != 1 {
		t.Errorf("unchanged sibling compiled %d times, want 1", n)
	}
}

func TestESP32BuildWithoutEsptool(t *testing.T) {
	requireSh(t)
	tools := fakeToolchain(t)
	// PATH contains only our fake dir plus the system dirs; esptool is
	// absent, so the .bin artifact must simply be omitted.
	_ = tools

	sketch := t.TempDir()
	mustWrite(t, filepath.Join(sketch, "main.cpp"), "void setup() {}\n")
	mustWrite(t, filepath.Join(sketch, "net.cpp"), "void net() {}\n")
	build := t.TempDir()

	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "cores", "arduino"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(root, "variants", "standard"), 0o755); err != nil {
		t.Fatal(err)
	}

	p := newTestPipeline(t, root)
	profile, _ := board.Find("esp32")

	res, err := p.Compile(Request{
		SketchDir: sketch, BuildDir: build, ProjectName: "fw", CPPStd: "c++11",
	}, profile)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if res.ElfPath == "" {
		t.Fatal("expected a linked elf")
	}
	if _, statErr := os.Stat(res.ElfPath); statErr != nil {
		t.Fatalf("elf missing on disk: %v", statErr)
	}
	if res.BinPath != "" {
		if _, err := exec.LookPath("esptool"); err != nil {
			t.Errorf("bin path reported without esptool available: %s", res.BinPath)
		}
	}
}

func TestNoSources(t *testing.T) {
	requireSh(t)
	fakeToolchain(t)

	p := newTestPipeline(t, fakeSDK(t))
	profile, _ := board.Find("uno")

	_, err := p.Compile(Request{
		SketchDir: t.TempDir(), BuildDir: t.TempDir(), ProjectName: "empty", CPPStd: "c++11",
	}, profile)

	var ns *NoSourcesError
	if !errors.As(err, &ns) {
		t.Fatalf("expected NoSourcesError, got %T: %v", err, err)
	}
}

func TestUnsupportedFamilies(t *testing.T) {
	requireSh(t)
	fakeToolchain(t)

	p := newTestPipeline(t, fakeSDK(t))
	for _, id := range []string{"due", "pico"} {
		profile, _ := board.Find(id)
		_, err := p.Compile(Request{
			SketchDir: t.TempDir(), BuildDir: t.TempDir(), ProjectName: "x", CPPStd: "c++11",
		}, profile)
		var ue *UnsupportedError
		if !errors.As(err, &ue) {
			t.Errorf("%s: expected UnsupportedError, got %T: %v", id, err, err)
		}
	}
}

func TestCollectSketchSourcesDepthBound(t *testing.T) {
	dir := t.TempDir()
	mustWrite(t, filepath.Join(dir, "top.cpp"), "")
	deep := filepath.Join(dir, "a", "b", "c", "d")
	if err := os.MkdirAll(deep, 0o755); err != nil {
		t.Fatal(err)
	}
	mustWrite(t, filepath.Join(dir, "a", "one.c"), "")
	mustWrite(t, filepath.Join(dir, "a", "b", "two.ino"), "")
	mustWrite(t, filepath.Join(deep, "toodeep.cpp"), "")
	mustWrite(t, filepath.Join(dir, "notes.txt"), "")

	sources, err := collectSketchSources(dir, 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(sources) != 3 {
		t.Fatalf("expected 3 sources within depth bound, got %d: %v", len(sources), sources)
	}
	for _, s := range sources {
		if strings.Contains(s, "toodeep") {
			t.Errorf("source beyond depth bound collected: %s", s)
		}
	}
}
