// Package modstore is kiln's self-managed SDK source: it downloads
// core and toolchain archives from the Arduino package index, verifies
// their checksums, and extracts them into a directory tree that
// mirrors the arduino15 layout — so the sdk resolver addresses it with
// no special cases.
//
// Layout under the store root (~/.kiln/modules):
//
//	packages/<vendor>/hardware/<arch>/<version>/   core headers
//	packages/<vendor>/tools/<tool>/<version>/      compiler binaries
//	.kiln_pkg_index.json                           cached package index
//	installed/<arch>.json                          installed-core records
package modstore

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/buckleypaul/kiln/internal/config"
	"github.com/buckleypaul/kiln/internal/sdk"
)

// InstalledCore is the per-architecture record written after a clean
// install.
type InstalledCore struct {
	Arch        string    `json:"arch"`
	Version     string    `json:"version"`
	InstalledAt time.Time `json:"installed_at"`
}

// Store manages the kiln module store rooted at cfg.ModulesRoot.
type Store struct {
	Cfg config.Config
	Log *slog.Logger

	// IndexURL overrides the package index location (tests).
	IndexURL string
}

// New returns a store over the configured root.
func New(cfg config.Config, log *slog.Logger) *Store {
	return &Store{Cfg: cfg, Log: log, IndexURL: packageIndexURL}
}

func (s *Store) root() string { return s.Cfg.ModulesRoot }

// IsInstalled reports whether a core for arch has been installed. A
// single file-existence check; no I/O errors are possible.
func (s *Store) IsInstalled(arch string) bool {
	_, err := os.Stat(s.installedPath(arch))
	return err == nil
}

func (s *Store) installedPath(arch string) string {
	return filepath.Join(s.root(), "installed", arch+".json")
}

// Ensure installs the SDK for arch when absent, then resolves paths
// through the same resolver contract every other SDK source uses.
func (s *Store) Ensure(arch, variant string) (sdk.Paths, error) {
	if !s.IsInstalled(arch) {
		if err := s.Install(arch); err != nil {
			return sdk.Paths{}, err
		}
	}
	r := sdk.Resolver{Cfg: s.Cfg, Log: s.Log}
	return r.Resolve(arch, variant)
}

// List returns the installed-core records, sorted by architecture.
func (s *Store) List() ([]InstalledCore, error) {
	dir := filepath.Join(s.root(), "installed")
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var cores []InstalledCore
	for _, e := range entries {
		if filepath.Ext(e.Name()) != ".json" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			continue
		}
		var c InstalledCore
		if json.Unmarshal(data, &c) == nil {
			cores = append(cores, c)
		}
	}

	sort.Slice(cores, func(i, j int) bool { return cores[i].Arch < cores[j].Arch })
	return cores, nil
}

// workItem is one archive to download, verify, and extract.
type workItem struct {
	url      string
	checksum string
	dest     string
	label    string
}

// Install downloads and installs the core plus every missing tool
// dependency for arch. Downloads run in parallel; individual failures
// are collected and reported together after the whole batch joins.
// Already-present versioned directories are skipped with a single
// existence check, so repeated installs are near-instant.
func (s *Store) Install(arch string) error {
	root := s.root()
	if root == "" {
		return fmt.Errorf("module store root not configured")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return err
	}

	index, err := s.loadIndex()
	if err != nil {
		return err
	}

	vendor, hwArch, pkgName, err := archToPackage(arch)
	if err != nil {
		return err
	}
	platform, err := findLatestPlatform(index, pkgName, hwArch)
	if err != nil {
		return err
	}

	platformDir := filepath.Join(root, "packages", vendor, "hardware", hwArch, platform.Version)
	host := currentHost()

	var work []workItem
	if _, err := os.Stat(platformDir); err != nil {
		work = append(work, workItem{
			url:      platform.URL,
			checksum: platform.Checksum,
			dest:     platformDir,
			label:    fmt.Sprintf("core %s %s", pkgName, platform.Version),
		})
	}
	for _, dep := range platform.ToolsDependencies {
		toolDir := filepath.Join(root, "packages", dep.Packager, "tools", dep.Name, dep.Version)
		if _, err := os.Stat(toolDir); err == nil {
			continue
		}
		system, ok := findToolSystem(index, dep.Packager, dep.Name, dep.Version, host)
		if !ok {
			continue
		}
		work = append(work, workItem{
			url:      system.URL,
			checksum: system.Checksum,
			dest:     toolDir,
			label:    "toolchain " + dep.Name,
		})
	}

	if len(work) == 0 {
		if s.Log != nil {
			s.Log.Debug("module store up to date", "arch", arch, "version", platform.Version)
		}
		return s.writeInstalled(arch, platform.Version)
	}

	var (
		mu     sync.Mutex
		errs   []string
		wg     sync.WaitGroup
		tokens = make(chan struct{}, s.jobs())
	)
	for _, item := range work {
		wg.Add(1)
		go func(item workItem) {
			defer wg.Done()
			tokens <- struct{}{}
			defer func() { <-tokens }()

			if s.Log != nil {
				s.Log.Info("downloading", "item", item.label, "url", item.url)
			}
			if err := s.downloadAndExtract(item.url, item.checksum, item.dest); err != nil {
				mu.Lock()
				errs = append(errs, fmt.Sprintf("%s: %v", item.label, err))
				mu.Unlock()
			}
		}(item)
	}
	wg.Wait()

	if len(errs) > 0 {
		msg := errs[0]
		for _, e := range errs[1:] {
			msg += "\n  " + e
		}
		return fmt.Errorf("install %s failed:\n  %s", arch, msg)
	}

	return s.writeInstalled(arch, platform.Version)
}

func (s *Store) jobs() int {
	if s.Cfg.Jobs > 0 {
		return s.Cfg.Jobs
	}
	return runtime.NumCPU()
}

func (s *Store) writeInstalled(arch, version string) error {
	dir := filepath.Join(s.root(), "installed")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	record := InstalledCore{Arch: arch, Version: version, InstalledAt: time.Now().UTC()}
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.installedPath(arch), data, 0o644)
}

// archToPackage maps an architecture tag to its (vendor, hardware
// arch, index package name) triple.
func archToPackage(arch string) (vendor, hwArch, pkgName string, err error) {
	switch arch {
	case "avr":
		return "arduino", "avr", "arduino", nil
	case "sam":
		return "arduino", "sam", "arduino", nil
	case "esp32":
		return "esp32", "esp32", "esp32", nil
	case "esp8266":
		return "esp8266", "esp8266", "esp8266", nil
	case "rp2040":
		return "rp2040", "rp2040", "rp2040", nil
	}
	return "", "", "", fmt.Errorf("unknown architecture %q (supported: avr, sam, esp32, esp8266, rp2040)", arch)
}

// currentHost returns the toolchain host triple for this machine.
func currentHost() string {
	switch runtime.GOOS {
	case "linux":
		if runtime.GOARCH == "arm64" {
			return "aarch64-linux-gnu"
		}
		return "x86_64-linux-gnu"
	case "darwin":
		if runtime.GOARCH == "arm64" {
			return "arm64-apple-darwin"
		}
		return "x86_64-apple-darwin"
	case "windows":
		return "i686-mingw32"
	}
	return "unknown"
}

// hostMatches accepts fuzzy host-triple matches: any linux-gnu triple
// serves any linux host, and likewise for apple and mingw.
func hostMatches(systemHost, current string) bool {
	switch {
	case strings.Contains(systemHost, "linux-gnu") && strings.Contains(current, "linux-gnu"),
		strings.Contains(systemHost, "apple") && strings.Contains(current, "apple"),
		strings.Contains(systemHost, "mingw") && strings.Contains(current, "mingw"):
		return true
	}
	return systemHost == current
}
