// Package sdk locates vendor SDK installations on disk: core headers,
// the board variant directory, and the cross-compiler binaries.
//
// Candidate roots are tried in priority order until one passes a
// structural check:
//
//  1. cfg.SDKRoot (KILN_SDK_ROOT override), validated like a vendor root
//  2. arduino-cli package caches (~/.arduino15 and friends), plus the
//     kiln module store, which mirrors the same layout
//  3. Arduino IDE 1.x system installs (AVR only)
//  4. macOS app-bundle resources, scanned like a package cache
package sdk

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"

	"github.com/buckleypaul/kiln/internal/config"
)

// Paths is the resolved filesystem bundle one build needs.
type Paths struct {
	// CoreDir holds Arduino.h and the rest of the core sources.
	CoreDir string
	// VariantDir holds pins_arduino.h for the selected board variant.
	VariantDir string
	// ToolchainBin holds the cross compilers. Empty means "resolve
	// from PATH" — a degrade, not an error.
	ToolchainBin string
	// LibrariesDir is the installed-libraries root, or "" when absent.
	LibrariesDir string
	// Version is informational ("1.8.6", "1.x", "custom").
	Version string
}

// NotFoundError reports that no candidate root held an SDK for arch.
type NotFoundError struct {
	Arch     string
	Expected string // first path we looked at
	Pkg      string // arduino-cli package spec for the install hint
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("SDK not found for arch %q (expected at %s)", e.Arch, e.Expected)
}

// InstallHint returns a command the user can run to fix the failure.
func (e *NotFoundError) InstallHint() string {
	return fmt.Sprintf("kiln modules install %s  (or: arduino-cli core install %s)", e.Arch, e.Pkg)
}

// Resolver finds SDK paths for an architecture using the roots in cfg.
type Resolver struct {
	Cfg config.Config
	Log *slog.Logger
}

// candidate is one pure root-probing strategy: it either yields a
// complete Paths value or declines.
type candidate func() (Paths, bool)

// Resolve walks the candidate chain and returns the first hit.
func (r Resolver) Resolve(arch, variant string) (Paths, error) {
	vendorRoots := r.vendorCacheRoots()

	var chain []candidate

	if r.Cfg.SDKRoot != "" {
		root := r.Cfg.SDKRoot
		chain = append(chain, func() (Paths, bool) {
			return tryExplicitRoot(root, variant)
		})
	}
	for _, root := range vendorRoots {
		root := root
		chain = append(chain, func() (Paths, bool) {
			return scanVendorCache(root, arch, variant)
		})
	}
	for _, root := range []string{"/usr/share/arduino", "/usr/local/share/arduino", "/opt/arduino"} {
		root := root
		chain = append(chain, func() (Paths, bool) {
			return tryLegacyInstall(root, arch, variant)
		})
	}
	if runtime.GOOS == "darwin" {
		chain = append(chain, func() (Paths, bool) {
			return scanVendorCache("/Applications/Arduino.app/Contents/Java", arch, variant)
		})
	}

	for _, try := range chain {
		if paths, ok := try(); ok {
			if r.Log != nil {
				r.Log.Debug("sdk resolved",
					"arch", arch, "version", paths.Version, "core", paths.CoreDir)
			}
			return paths, nil
		}
	}

	expected := filepath.Join(r.Cfg.Home, ".arduino15")
	if len(vendorRoots) > 0 {
		expected = vendorRoots[0]
	}
	vendor, hwArch, ok := archPackage(arch)
	pkg := arch
	if ok {
		pkg = vendor + ":" + hwArch
	}
	return Paths{}, &NotFoundError{Arch: arch, Expected: expected, Pkg: pkg}
}

// vendorCacheRoots returns every package-cache base directory worth
// scanning on this host, highest priority first. The kiln module store
// mirrors the arduino15 layout, so it joins the list.
func (r Resolver) vendorCacheRoots() []string {
	var roots []string
	home := r.Cfg.Home

	if home != "" {
		roots = append(roots,
			filepath.Join(home, ".arduino15"),
			filepath.Join(home, "snap", "arduino", "current", ".arduino15"),
		)
	}
	if r.Cfg.XDGDataHome != "" {
		roots = append(roots, filepath.Join(r.Cfg.XDGDataHome, "arduino15"))
	}
	if runtime.GOOS == "darwin" && home != "" {
		roots = append(roots, filepath.Join(home, "Library", "Arduino15"))
	}
	if runtime.GOOS == "windows" && r.Cfg.LocalAppData != "" {
		roots = append(roots, filepath.Join(r.Cfg.LocalAppData, "Arduino15"))
	}
	if r.Cfg.ModulesRoot != "" {
		roots = append(roots, r.Cfg.ModulesRoot)
	}
	return roots
}

// archPackage maps an architecture tag to its package cache
// (vendor, hardware-arch) pair.
func archPackage(arch string) (vendor, hwArch string, ok bool) {
	switch arch {
	case "avr":
		return "arduino", "avr", true
	case "sam":
		return "arduino", "sam", true
	case "esp32":
		return "esp32", "esp32", true
	case "esp8266":
		return "esp8266", "esp8266", true
	case "rp2040":
		return "rp2040", "rp2040", true
	}
	return "", "", false
}

// toolchainPackage maps an architecture to the (vendor, tool) pair its
// compiler ships under in the package cache.
func toolchainPackage(arch string) (vendor, tool string, ok bool) {
	switch arch {
	case "avr":
		return "arduino", "avr-gcc", true
	case "sam":
		return "arduino", "arm-none-eabi-gcc", true
	case "rp2040":
		return "rp2040", "pqt-gcc-arm-none-eabi", true
	case "esp32":
		return "esp32", "xtensa-esp32-elf-gcc", true
	case "esp8266":
		return "esp8266", "xtensa-lx106-elf-gcc", true
	}
	return "", "", false
}

// scanVendorCache probes one packages/<vendor>/hardware/<arch> tree.
func scanVendorCache(base, arch, variant string) (Paths, bool) {
	packages := filepath.Join(base, "packages")
	if !isDir(packages) {
		return Paths{}, false
	}

	vendor, hwArch, ok := archPackage(arch)
	if !ok {
		return Paths{}, false
	}

	hwBase := filepath.Join(packages, vendor, "hardware", hwArch)
	version, ok := latestVersionDir(hwBase)
	if !ok {
		return Paths{}, false
	}
	sdkDir := filepath.Join(hwBase, version)

	coreDir := filepath.Join(sdkDir, "cores", "arduino")
	if !isDir(coreDir) {
		return Paths{}, false
	}

	return Paths{
		CoreDir:      coreDir,
		VariantDir:   variantOrStandard(sdkDir, variant),
		ToolchainBin: findToolchainBin(base, arch),
		LibrariesDir: optionalDir(filepath.Join(base, "libraries")),
		Version:      version,
	}, true
}

// findToolchainBin locates the compiler bin dir within a package
// cache. Returns "" (use PATH) when the tool package is absent.
func findToolchainBin(base, arch string) string {
	vendor, tool, ok := toolchainPackage(arch)
	if !ok {
		return ""
	}
	tcBase := filepath.Join(base, "packages", vendor, "tools", tool)
	version, ok := latestVersionDir(tcBase)
	if !ok {
		return ""
	}
	bin := filepath.Join(tcBase, version, "bin")
	if !isDir(bin) {
		return ""
	}
	return bin
}

// tryLegacyInstall probes an Arduino IDE 1.x single-version layout.
// Only AVR shipped with the 1.x IDE.
func tryLegacyInstall(base, arch, variant string) (Paths, bool) {
	if arch != "avr" {
		return Paths{}, false
	}
	hw := filepath.Join(base, "hardware", "arduino", "avr")
	coreDir := filepath.Join(hw, "cores", "arduino")
	if !isDir(coreDir) {
		return Paths{}, false
	}

	tcBin := filepath.Join(base, "hardware", "tools", "avr", "bin")
	if !isDir(tcBin) {
		tcBin = ""
	}

	return Paths{
		CoreDir:      coreDir,
		VariantDir:   variantOrStandard(hw, variant),
		ToolchainBin: tcBin,
		LibrariesDir: optionalDir(filepath.Join(base, "libraries")),
		Version:      "1.x",
	}, true
}

// tryExplicitRoot validates a user-supplied SDK root (KILN_SDK_ROOT).
func tryExplicitRoot(base, variant string) (Paths, bool) {
	coreDir := filepath.Join(base, "cores", "arduino")
	if !isDir(coreDir) {
		return Paths{}, false
	}

	tcBin := filepath.Join(base, "bin")
	if !isDir(tcBin) {
		tcBin = ""
	}

	return Paths{
		CoreDir:      coreDir,
		VariantDir:   variantOrStandard(base, variant),
		ToolchainBin: tcBin,
		Version:      "custom",
	}, true
}

// variantOrStandard returns variants/<name> under sdkDir, falling back
// to variants/standard when the named directory does not exist.
func variantOrStandard(sdkDir, variant string) string {
	v := filepath.Join(sdkDir, "variants", variant)
	if isDir(v) {
		return v
	}
	return filepath.Join(sdkDir, "variants", "standard")
}

// latestVersionDir picks the highest-versioned subdirectory of base by
// numeric-component descending sort. Non-numeric components count as
// zero.
func latestVersionDir(base string) (string, bool) {
	entries, err := os.ReadDir(base)
	if err != nil {
		return "", false
	}

	var versions []string
	for _, e := range entries {
		if e.IsDir() {
			versions = append(versions, e.Name())
		}
	}
	if len(versions) == 0 {
		return "", false
	}

	sort.Slice(versions, func(i, j int) bool {
		return compareVersions(versions[i], versions[j]) > 0
	})
	return versions[0], true
}

// compareVersions orders dotted version strings numerically; returns
// >0 when a is newer than b.
func compareVersions(a, b string) int {
	pa := strings.Split(a, ".")
	pb := strings.Split(b, ".")
	n := len(pa)
	if len(pb) > n {
		n = len(pb)
	}
	for i := 0; i < n; i++ {
		var va, vb int
		if i < len(pa) {
			va, _ = strconv.Atoi(pa[i])
		}
		if i < len(pb) {
			vb, _ = strconv.Atoi(pb[i])
		}
		if va != vb {
			return va - vb
		}
	}
	return 0
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func optionalDir(path string) string {
	if isDir(path) {
		return path
	}
	return ""
}
