// Package cache tracks per-file content fingerprints so unchanged
// translation units are never recompiled. The manifest lives next to
// the object files it describes; losing it only costs a rebuild.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

const manifestFile = ".kiln-cache.json"

// Manifest maps each source file's absolute path to a hex-encoded
// SHA-256 of its content, plus one fingerprint of the compiler flag
// set. A flags change invalidates every entry at once.
type Manifest struct {
	Entries   map[string]string `json:"entries"`
	FlagsHash string            `json:"flags_hash"`
}

// Load reads the manifest from dir. A missing or corrupt file yields
// an empty manifest, never an error.
func Load(dir string) *Manifest {
	m := &Manifest{Entries: map[string]string{}}

	data, err := os.ReadFile(filepath.Join(dir, manifestFile))
	if err != nil {
		return m
	}
	if err := json.Unmarshal(data, m); err != nil {
		return &Manifest{Entries: map[string]string{}}
	}
	if m.Entries == nil {
		m.Entries = map[string]string{}
	}
	return m
}

// Save persists the manifest to dir.
func (m *Manifest) Save(dir string) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, manifestFile), data, 0o644)
}

// IsFresh reports whether src can skip recompilation: the flag set is
// unchanged, the object file still exists, and the source content
// still hashes to the recorded value.
func (m *Manifest) IsFresh(src, obj, flagsHash string) bool {
	if m.FlagsHash != flagsHash {
		return false
	}
	if _, err := os.Stat(obj); err != nil {
		return false
	}
	cached, ok := m.Entries[src]
	if !ok {
		return false
	}
	current, err := HashFile(src)
	if err != nil {
		return false
	}
	return current == cached
}

// Record stores a fresh content hash for a successfully compiled
// source file under the given flags fingerprint.
func (m *Manifest) Record(src, flagsHash string) {
	if hash, err := HashFile(src); err == nil {
		m.Entries[src] = hash
	}
	m.FlagsHash = flagsHash
}

// HashFile returns the hex-encoded SHA-256 of the file's content.
func HashFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// HashString returns the hex-encoded SHA-256 of s. Used for the
// compiler-flags fingerprint and the core-archive sentinel.
func HashString(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// ObjPath maps a source file to its object path inside dir. The name
// embeds a short hash of the full source path so two files with the
// same base name in different directories never collide.
func ObjPath(dir, src string) string {
	sum := sha256.Sum256([]byte(src))
	short := hex.EncodeToString(sum[:])[:8]
	return filepath.Join(dir, fmt.Sprintf("%s_%s.o", short, filepath.Base(src)))
}
