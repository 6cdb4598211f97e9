package flash

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/buckleypaul/kiln/internal/board"
	"github.com/buckleypaul/kiln/internal/toolchain"
)

// flashAVR writes a hex image through avrdude using the board's
// programmer protocol and baud from the catalog.
func (f *Flasher) flashAVR(firmware string, req Request, profile *board.Profile) error {
	programmer, baud, ok := profile.Programmer()
	if !ok {
		return fmt.Errorf("board %q has no avrdude programmer", profile.ID)
	}
	mcu := profile.AVRMCU()
	if mcu == "" {
		return fmt.Errorf("board %q has no AVR MCU", profile.ID)
	}
	if req.BaudOverride > 0 {
		baud = req.BaudOverride
	}

	avrdude := f.findAvrdude()

	args := []string{
		"-C", avrdudeConf(avrdude),
		"-p", mcu,
		"-c", programmer,
		"-P", req.Port,
		"-b", strconv.Itoa(baud),
		"-D",
		"-U", fmt.Sprintf("flash:w:%s:i", firmware),
	}
	if req.Verbose {
		args = append(args, "-v")
	} else {
		args = append(args, "-q", "-q")
	}

	runner := toolchain.ExecRunner{Log: f.Log}
	if res := runner.Run(avrdude, args...); !res.OK() {
		return &FlashError{Port: req.Port, Output: res.Output}
	}
	return nil
}

// Verify reads the flash back through avrdude and compares it against
// the image that was just written.
func (f *Flasher) Verify(firmware string, req Request, profile *board.Profile) error {
	programmer, baud, ok := profile.Programmer()
	if !ok {
		return fmt.Errorf("board %q has no avrdude programmer", profile.ID)
	}
	avrdude := f.findAvrdude()

	runner := toolchain.ExecRunner{Log: f.Log}
	res := runner.Run(avrdude,
		"-C", avrdudeConf(avrdude),
		"-p", profile.AVRMCU(),
		"-c", programmer,
		"-P", req.Port,
		"-b", strconv.Itoa(baud),
		"-U", fmt.Sprintf("flash:v:%s:i", firmware),
		"-q", "-q",
	)
	if !res.OK() {
		return &FlashError{Port: req.Port, Output: res.Output}
	}
	return nil
}

// findAvrdude locates the programmer binary. The kiln module store is
// checked first, then the arduino15 cache, then the usual system
// paths, falling back to PATH lookup.
func (f *Flasher) findAvrdude() string {
	var toolRoots []string
	if f.Cfg.ModulesRoot != "" {
		toolRoots = append(toolRoots, filepath.Join(f.Cfg.ModulesRoot, "packages", "arduino", "tools", "avrdude"))
	}
	if f.Cfg.Home != "" {
		toolRoots = append(toolRoots, filepath.Join(f.Cfg.Home, ".arduino15", "packages", "arduino", "tools", "avrdude"))
	}
	for _, root := range toolRoots {
		if bin, ok := latestToolBin(root, "avrdude"); ok {
			return bin
		}
	}

	for _, c := range []string{"/usr/bin/avrdude", "/usr/local/bin/avrdude"} {
		if fileExists(c) {
			return c
		}
	}
	return "avrdude"
}

// latestToolBin picks the highest versioned bin/<tool> under a
// versioned tool directory.
func latestToolBin(toolDir, tool string) (string, bool) {
	entries, err := os.ReadDir(toolDir)
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
	sort.Strings(versions)
	bin := filepath.Join(toolDir, versions[len(versions)-1], "bin", tool)
	if fileExists(bin) {
		return bin, true
	}
	return "", false
}

// avrdudeConf finds the config file that matches the chosen binary,
// preferring the one shipped alongside it.
func avrdudeConf(avrdudeBin string) string {
	parent := filepath.Dir(avrdudeBin)
	for _, c := range []string{
		filepath.Join(parent, "..", "etc", "avrdude.conf"),
		filepath.Join(parent, "avrdude.conf"),
	} {
		if fileExists(c) {
			return c
		}
	}
	for _, c := range []string{"/etc/avrdude.conf", "/usr/share/avrdude/avrdude.conf"} {
		if fileExists(c) {
			return c
		}
	}
	return "/etc/avrdude.conf"
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
