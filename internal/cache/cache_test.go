package cache

import (
	"os"
	"path/filepath"
	"testing"
)

func writeSrc(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestFreshAfterRecord(t *testing.T) {
	tmp := t.TempDir()
	src := writeSrc(t, tmp, "main.cpp", "int main() {}\n")
	obj := ObjPath(tmp, src)
	writeSrc(t, tmp, filepath.Base(obj), "obj")

	m := Load(tmp)
	if m.IsFresh(src, obj, "flags-a") {
		t.Error("empty manifest must not report fresh")
	}

	m.Record(src, "flags-a")
	if !m.IsFresh(src, obj, "flags-a") {
		t.Error("recorded file with existing object should be fresh")
	}
}

func TestContentChangeInvalidatesOneFile(t *testing.T) {
	tmp := t.TempDir()
	a := writeSrc(t, tmp, "a.cpp", "void a() {}\n")
	b := writeSrc(t, tmp, "b.cpp", "void b() {}\n")
	objA := ObjPath(tmp, a)
	objB := ObjPath(tmp, b)
	writeSrc(t, tmp, filepath.Base(objA), "obj")
	writeSrc(t, tmp, filepath.Base(objB), "obj")

	m := Load(tmp)
	m.Record(a, "flags")
	m.Record(b, "flags")

	writeSrc(t, tmp, "a.cpp", "void a() { /* changed */ }\n")

	if m.IsFresh(a, objA, "flags") {
		t.Error("changed file must be stale")
	}
	if !m.IsFresh(b, objB, "flags") {
		t.Error("untouched sibling must stay fresh")
	}
}

func TestFlagsChangeInvalidatesEverything(t *testing.T) {
	tmp := t.TempDir()
	src := writeSrc(t, tmp, "main.cpp", "int main() {}\n")
	obj := ObjPath(tmp, src)
	writeSrc(t, tmp, filepath.Base(obj), "obj")

	m := Load(tmp)
	m.Record(src, "flags-a")

	if m.IsFresh(src, obj, "flags-b") {
		t.Error("new flags fingerprint must invalidate every entry")
	}
}

func TestMissingObjectIsStale(t *testing.T) {
	tmp := t.TempDir()
	src := writeSrc(t, tmp, "main.cpp", "int main() {}\n")

	m := Load(tmp)
	m.Record(src, "flags")

	if m.IsFresh(src, ObjPath(tmp, src), "flags") {
		t.Error("entry without an object file on disk must be stale")
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	tmp := t.TempDir()
	src := writeSrc(t, tmp, "main.cpp", "int main() {}\n")

	m := Load(tmp)
	m.Record(src, "flags")
	if err := m.Save(tmp); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded := Load(tmp)
	if loaded.FlagsHash != "flags" {
		t.Errorf("expected flags hash to survive reload, got %q", loaded.FlagsHash)
	}
	if _, ok := loaded.Entries[src]; !ok {
		t.Error("expected entry to survive reload")
	}
}

func TestLoadCorruptManifest(t *testing.T) {
	tmp := t.TempDir()
	writeSrc(t, tmp, ".kiln-cache.json", "{not json")

	m := Load(tmp)
	if m == nil || len(m.Entries) != 0 || m.FlagsHash != "" {
		t.Error("corrupt manifest must load as empty")
	}
}

func TestObjPathCollisionSafe(t *testing.T) {
	tmp := t.TempDir()
	a := ObjPath(tmp, "/project/one/main.cpp")
	b := ObjPath(tmp, "/project/two/main.cpp")
	if a == b {
		t.Fatalf("same-basename sources must not alias: %s", a)
	}
	if filepath.Dir(a) != tmp {
		t.Errorf("object must land in dir, got %s", a)
	}
}
