// Package libreg installs Arduino libraries from the official library
// registry into the kiln libraries root, where the compile pipeline
// picks them up automatically.
package libreg

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/buckleypaul/kiln/internal/config"
	"github.com/buckleypaul/kiln/internal/modstore"
)

const registryURL = "https://downloads.arduino.cc/libraries/library_index.json"

const (
	indexCacheFile = ".kiln_lib_index.json"
	manifestFile   = ".kiln_lib.json"
	indexTTL       = 24 * time.Hour
)

// LibraryEntry is one registry release. A library appears once per
// published version; the newest wins unless the caller pins one.
type LibraryEntry struct {
	Name          string       `json:"name"`
	Version       string       `json:"version"`
	URL           string       `json:"url"`
	Checksum      string       `json:"checksum"`
	Sentence      string       `json:"sentence"`
	Paragraph     string       `json:"paragraph"`
	Category      string       `json:"category"`
	Website       string       `json:"website"`
	Maintainer    string       `json:"maintainer"`
	Architectures []string     `json:"architectures"`
	Dependencies  []LibraryDep `json:"dependencies"`
}

// LibraryDep is one declared dependency; an empty version means
// "latest".
type LibraryDep struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type libraryIndex struct {
	Libraries []LibraryEntry `json:"libraries"`
}

// InstalledLib is the manifest written next to each installed library.
type InstalledLib struct {
	Name        string    `json:"name"`
	Version     string    `json:"version"`
	URL         string    `json:"url"`
	InstalledAt time.Time `json:"installed_at"`
}

// NotFoundError reports an unknown library name with close matches
// from the registry.
type NotFoundError struct {
	Name        string
	Suggestions []string
}

func (e *NotFoundError) Error() string {
	msg := fmt.Sprintf("library %q not found in the registry", e.Name)
	if len(e.Suggestions) > 0 {
		msg += "\n  did you mean: " + strings.Join(e.Suggestions, ", ")
	}
	return msg
}

// InstallStep records what happened to one library during an install,
// including transitively pulled dependencies.
type InstallStep struct {
	Name    string
	Version string
	// Action is "installed", "upgraded", or "present".
	Action string
	Depth  int
}

// Registry resolves and installs libraries under cfg.LibsRoot.
type Registry struct {
	Cfg config.Config
	Log *slog.Logger

	// IndexURL overrides the registry location (tests).
	IndexURL string
}

// New returns a registry client over the configured libraries root.
func New(cfg config.Config, log *slog.Logger) *Registry {
	return &Registry{Cfg: cfg, Log: log, IndexURL: registryURL}
}

func (r *Registry) root() string { return r.Cfg.LibsRoot }

// Install resolves a library (pinned version or latest), downloads and
// extracts it, then recurses into its declared dependencies. Already
// present versions are skipped; a version change replaces the tree.
func (r *Registry) Install(name, pin string) ([]InstallStep, error) {
	index, err := r.loadIndex()
	if err != nil {
		return nil, err
	}
	var steps []InstallStep
	seen := map[string]bool{}
	if err := r.installOne(index, name, pin, 0, seen, &steps); err != nil {
		return steps, err
	}
	return steps, nil
}

func (r *Registry) installOne(index *libraryIndex, name, pin string, depth int,
	seen map[string]bool, steps *[]InstallStep) error {

	entry, err := resolveEntry(index, name, pin)
	if err != nil {
		return err
	}
	if seen[entry.Name] {
		return nil
	}
	seen[entry.Name] = true

	installDir := filepath.Join(r.root(), entry.Name)
	action := "installed"
	if installed, ok := readManifest(installDir); ok {
		if installed.Version == entry.Version {
			*steps = append(*steps, InstallStep{Name: entry.Name, Version: entry.Version, Action: "present", Depth: depth})
			return r.installDeps(index, entry, depth, seen, steps)
		}
		action = "upgraded"
	}

	if r.Log != nil {
		r.Log.Info("downloading library", "name", entry.Name, "version", entry.Version)
	}
	body, err := modstore.Download(entry.URL, entry.Checksum)
	if err != nil {
		return fmt.Errorf("download %s: %w", entry.Name, err)
	}

	// Replace any previous version wholesale so stale files cannot
	// shadow the new release.
	if action == "upgraded" {
		if err := os.RemoveAll(installDir); err != nil {
			return err
		}
	}
	if err := os.MkdirAll(installDir, 0o755); err != nil {
		return err
	}
	if err := modstore.ExtractZip(body, installDir); err != nil {
		return fmt.Errorf("extract %s: %w", entry.Name, err)
	}
	if err := writeManifest(installDir, entry); err != nil {
		return err
	}

	*steps = append(*steps, InstallStep{Name: entry.Name, Version: entry.Version, Action: action, Depth: depth})
	return r.installDeps(index, entry, depth, seen, steps)
}

func (r *Registry) installDeps(index *libraryIndex, entry *LibraryEntry, depth int,
	seen map[string]bool, steps *[]InstallStep) error {

	for _, dep := range entry.Dependencies {
		if err := r.installOne(index, dep.Name, dep.Version, depth+1, seen, steps); err != nil {
			return err
		}
	}
	return nil
}

// Resolve finds the registry entry for a name, latest version unless
// pinned.
func (r *Registry) Resolve(name, pin string) (*LibraryEntry, error) {
	index, err := r.loadIndex()
	if err != nil {
		return nil, err
	}
	return resolveEntry(index, name, pin)
}

// Search returns the latest release of every library whose name,
// sentence, or category contains the query, case-insensitively.
func (r *Registry) Search(query string) ([]LibraryEntry, error) {
	index, err := r.loadIndex()
	if err != nil {
		return nil, err
	}

	q := strings.ToLower(query)
	seen := map[string]bool{}
	var hits []LibraryEntry
	// Registry entries are newest-first per name, so the first
	// occurrence is already the latest version.
	for _, lib := range index.Libraries {
		if seen[lib.Name] {
			continue
		}
		if strings.Contains(strings.ToLower(lib.Name), q) ||
			strings.Contains(strings.ToLower(lib.Sentence), q) ||
			strings.Contains(strings.ToLower(lib.Category), q) {
			hits = append(hits, lib)
			seen[lib.Name] = true
		}
	}
	return hits, nil
}

// List scans the libraries root for installed libraries, sorted by
// name. Directories without a manifest are reported with an unknown
// version rather than hidden.
func (r *Registry) List() ([]InstalledLib, error) {
	entries, err := os.ReadDir(r.root())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var libs []InstalledLib
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		dir := filepath.Join(r.root(), e.Name())
		if m, ok := readManifest(dir); ok {
			libs = append(libs, m)
		} else {
			libs = append(libs, InstalledLib{Name: e.Name(), Version: "?"})
		}
	}

	sort.Slice(libs, func(i, j int) bool { return libs[i].Name < libs[j].Name })
	return libs, nil
}

// Installed returns the manifest for one library when present.
func (r *Registry) Installed(name string) (InstalledLib, bool) {
	return readManifest(filepath.Join(r.root(), name))
}

// IncludeDirs returns the -I directories for every installed library:
// the library directory itself, plus its src/ subdirectory when the
// library uses the 1.5+ layout.
func (r *Registry) IncludeDirs() []string {
	entries, err := os.ReadDir(r.root())
	if err != nil {
		return nil
	}
	var dirs []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		dir := filepath.Join(r.root(), e.Name())
		dirs = append(dirs, dir)
		if src := filepath.Join(dir, "src"); isDir(src) {
			dirs = append(dirs, src)
		}
	}
	sort.Strings(dirs)
	return dirs
}

// loadIndex returns the registry index, re-fetching when the disk
// cache is missing or stale.
func (r *Registry) loadIndex() (*libraryIndex, error) {
	cache := filepath.Join(r.root(), indexCacheFile)

	if info, err := os.Stat(cache); err == nil && time.Since(info.ModTime()) < indexTTL {
		if data, err := os.ReadFile(cache); err == nil {
			var index libraryIndex
			if json.Unmarshal(data, &index) == nil {
				return &index, nil
			}
		}
	}

	if r.Log != nil {
		r.Log.Info("fetching library index", "url", r.IndexURL)
	}
	body, err := modstore.Download(r.IndexURL, "")
	if err != nil {
		return nil, fmt.Errorf("download library index: %w", err)
	}
	if err := os.MkdirAll(r.root(), 0o755); err == nil {
		_ = os.WriteFile(cache, body, 0o644)
	}

	var index libraryIndex
	if err := json.Unmarshal(body, &index); err != nil {
		return nil, fmt.Errorf("parse library index: %w", err)
	}
	return &index, nil
}

// Update discards the cached index and fetches a fresh copy.
func (r *Registry) Update() error {
	cache := filepath.Join(r.root(), indexCacheFile)
	if _, err := os.Stat(cache); err == nil {
		if err := os.Remove(cache); err != nil {
			return err
		}
	}
	_, err := r.loadIndex()
	return err
}

// resolveEntry picks the registry entry for a name: the exact pinned
// version, or the highest published one.
func resolveEntry(index *libraryIndex, name, pin string) (*LibraryEntry, error) {
	lower := strings.ToLower(name)

	var candidates []*LibraryEntry
	for i := range index.Libraries {
		if strings.ToLower(index.Libraries[i].Name) == lower {
			candidates = append(candidates, &index.Libraries[i])
		}
	}
	if len(candidates) == 0 {
		var suggestions []string
		for i := range index.Libraries {
			if strings.Contains(strings.ToLower(index.Libraries[i].Name), lower) {
				suggestions = append(suggestions, index.Libraries[i].Name)
				if len(suggestions) == 5 {
					break
				}
			}
		}
		return nil, &NotFoundError{Name: name, Suggestions: suggestions}
	}

	if pin != "" {
		for _, c := range candidates {
			if c.Version == pin {
				return c, nil
			}
		}
		return nil, fmt.Errorf("library %q version %q not found in the registry", name, pin)
	}

	sort.Slice(candidates, func(i, j int) bool {
		return compareSemver(candidates[i].Version, candidates[j].Version) > 0
	})
	return candidates[0], nil
}

// compareSemver orders dotted versions numerically; non-numeric
// components compare as zero.
func compareSemver(a, b string) int {
	as := strings.Split(a, ".")
	bs := strings.Split(b, ".")
	n := len(as)
	if len(bs) > n {
		n = len(bs)
	}
	for i := 0; i < n; i++ {
		var av, bv int
		if i < len(as) {
			fmt.Sscanf(as[i], "%d", &av)
		}
		if i < len(bs) {
			fmt.Sscanf(bs[i], "%d", &bv)
		}
		if av != bv {
			return av - bv
		}
	}
	return 0
}

func writeManifest(installDir string, entry *LibraryEntry) error {
	m := InstalledLib{
		Name:        entry.Name,
		Version:     entry.Version,
		URL:         entry.URL,
		InstalledAt: time.Now().UTC(),
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(installDir, manifestFile), data, 0o644)
}

func readManifest(installDir string) (InstalledLib, bool) {
	data, err := os.ReadFile(filepath.Join(installDir, manifestFile))
	if err != nil {
		return InstalledLib{}, false
	}
	var m InstalledLib
	if json.Unmarshal(data, &m) != nil {
		return InstalledLib{}, false
	}
	return m, true
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
