package modstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const packageIndexURL = "https://downloads.arduino.cc/packages/package_index.json"

const indexCacheFile = ".kiln_pkg_index.json"

// indexTTL is how long a cached package index stays trusted.
const indexTTL = 24 * time.Hour

// Subset of the Arduino package_index.json schema kiln needs.

type packageIndex struct {
	Packages []indexPackage `json:"packages"`
}

type indexPackage struct {
	Name      string      `json:"name"`
	Platforms []platform  `json:"platforms"`
	Tools     []toolEntry `json:"tools"`
}

type platform struct {
	Architecture      string    `json:"architecture"`
	Version           string    `json:"version"`
	URL               string    `json:"url"`
	Checksum          string    `json:"checksum"`
	ToolsDependencies []toolDep `json:"toolsDependencies"`
}

type toolDep struct {
	Packager string `json:"packager"`
	Name     string `json:"name"`
	Version  string `json:"version"`
}

type toolEntry struct {
	Name    string       `json:"name"`
	Version string       `json:"version"`
	Systems []toolSystem `json:"systems"`
}

type toolSystem struct {
	Host     string `json:"host"`
	URL      string `json:"url"`
	Checksum string `json:"checksum"`
}

func (s *Store) indexCachePath() string {
	return filepath.Join(s.root(), indexCacheFile)
}

// loadIndex returns the package index, re-fetching when the disk cache
// is missing or older than the TTL.
func (s *Store) loadIndex() (*packageIndex, error) {
	cache := s.indexCachePath()

	if info, err := os.Stat(cache); err == nil {
		if time.Since(info.ModTime()) < indexTTL {
			data, err := os.ReadFile(cache)
			if err == nil {
				var index packageIndex
				if jsonErr := json.Unmarshal(data, &index); jsonErr == nil {
					return &index, nil
				}
				// Corrupt cache falls through to a re-fetch.
			}
		}
	}

	if s.Log != nil {
		s.Log.Info("fetching package index", "url", s.IndexURL)
	}
	body, err := fetch(s.IndexURL)
	if err != nil {
		return nil, fmt.Errorf("download package index: %w", err)
	}

	if err := os.MkdirAll(s.root(), 0o755); err == nil {
		_ = os.WriteFile(cache, body, 0o644)
	}

	var index packageIndex
	if err := json.Unmarshal(body, &index); err != nil {
		return nil, fmt.Errorf("parse package index: %w", err)
	}
	return &index, nil
}

// Update discards the cached index and fetches a fresh copy.
func (s *Store) Update() error {
	cache := s.indexCachePath()
	if _, err := os.Stat(cache); err == nil {
		if err := os.Remove(cache); err != nil {
			return err
		}
	}
	_, err := s.loadIndex()
	return err
}

// findLatestPlatform picks the newest platform release for the given
// package and hardware architecture.
func findLatestPlatform(index *packageIndex, pkgName, hwArch string) (*platform, error) {
	var pkg *indexPackage
	for i := range index.Packages {
		if strings.EqualFold(index.Packages[i].Name, pkgName) {
			pkg = &index.Packages[i]
			break
		}
	}
	if pkg == nil {
		return nil, fmt.Errorf("package %q not found in index", pkgName)
	}

	var platforms []*platform
	for i := range pkg.Platforms {
		if pkg.Platforms[i].Architecture == hwArch {
			platforms = append(platforms, &pkg.Platforms[i])
		}
	}
	if len(platforms) == 0 {
		return nil, fmt.Errorf("no platform for arch %q in package %q", hwArch, pkgName)
	}

	sort.Slice(platforms, func(i, j int) bool {
		return compareVersions(platforms[i].Version, platforms[j].Version) > 0
	})
	return platforms[0], nil
}

// compareVersions orders dotted version strings numerically, component
// by component. Non-numeric components compare as zero.
func compareVersions(a, b string) int {
	as := strings.Split(a, ".")
	bs := strings.Split(b, ".")
	n := len(as)
	if len(bs) > n {
		n = len(bs)
	}
	for i := 0; i < n; i++ {
		var av, bv int
		if i < len(as) {
			av = numericPrefix(as[i])
		}
		if i < len(bs) {
			bv = numericPrefix(bs[i])
		}
		if av != bv {
			return av - bv
		}
	}
	return 0
}

func numericPrefix(s string) int {
	v := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			break
		}
		v = v*10 + int(r-'0')
	}
	return v
}

// findToolSystem locates the host-matching download for one declared
// tool dependency.
func findToolSystem(index *packageIndex, packager, name, version, host string) (*toolSystem, bool) {
	for i := range index.Packages {
		if index.Packages[i].Name != packager {
			continue
		}
		for j := range index.Packages[i].Tools {
			tool := &index.Packages[i].Tools[j]
			if tool.Name != name || tool.Version != version {
				continue
			}
			for k := range tool.Systems {
				if hostMatches(tool.Systems[k].Host, host) {
					return &tool.Systems[k], true
				}
			}
		}
	}
	return nil, false
}
