// Package flash programs compiled firmware onto a connected board by
// driving the family's programmer tool (avrdude for AVR, esptool for
// the ESP chips).
package flash

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/buckleypaul/kiln/internal/board"
	"github.com/buckleypaul/kiln/internal/config"
)

// Request holds the inputs for one flash run.
type Request struct {
	// BuildDir contains the compiled firmware (.hex / .bin / .elf).
	BuildDir string
	// ProjectName is the artifact file stem.
	ProjectName string
	// Port is the serial device, e.g. "/dev/ttyUSB0" or "COM3".
	Port string
	// BaudOverride replaces the board's programming baud when > 0.
	BaudOverride int
	// Verbose passes the programmer's own verbose flag through.
	Verbose bool
}

// FlashError carries the programmer's diagnostic output.
type FlashError struct {
	Port   string
	Output string
}

func (e *FlashError) Error() string {
	return fmt.Sprintf("flashing %s failed:\n%s", e.Port, e.Output)
}

// NoFirmwareError reports a build directory with nothing flashable.
type NoFirmwareError struct {
	Dir string
}

func (e *NoFirmwareError) Error() string {
	return fmt.Sprintf("no firmware found in %s — compile first", e.Dir)
}

// ToolNotFoundError names a missing programmer and how to get it.
type ToolNotFoundError struct {
	Tool string
	Hint string
}

func (e *ToolNotFoundError) Error() string {
	return fmt.Sprintf("%s not found — %s", e.Tool, e.Hint)
}

// UnsupportedError marks a board family the flasher cannot program.
type UnsupportedError struct {
	Arch string
	Hint string
}

func (e *UnsupportedError) Error() string {
	return fmt.Sprintf("%s flash not supported — %s", e.Arch, e.Hint)
}

// Flasher programs boards over serial.
type Flasher struct {
	Cfg config.Config
	Log *slog.Logger
}

// New returns a flasher over the given config.
func New(cfg config.Config, log *slog.Logger) *Flasher {
	return &Flasher{Cfg: cfg, Log: log}
}

// Flash locates the firmware for the request and dispatches to the
// board family's programmer.
func (f *Flasher) Flash(req Request, profile *board.Profile) error {
	firmware, err := findFirmware(req.BuildDir, req.ProjectName, profile)
	if err != nil {
		return err
	}
	if f.Log != nil {
		f.Log.Info("flashing", "firmware", firmware, "port", req.Port, "board", profile.ID)
	}

	switch c := profile.Chip.(type) {
	case board.AVR:
		return f.flashAVR(firmware, req, profile)
	case board.ESP32:
		return f.flashESP(firmware, req, c.Variant)
	case board.ESP8266:
		return f.flashESP(firmware, req, "esp8266")
	case board.SAM:
		return &UnsupportedError{Arch: "SAM (Due)", Hint: "use arduino-cli for now"}
	case board.RP2040:
		return &UnsupportedError{Arch: "RP2040", Hint: "copy the .uf2 file to the Pico USB drive, or use picotool"}
	}
	return &UnsupportedError{Arch: profile.Arch(), Hint: "unknown programmer family"}
}

// findFirmware picks the flashable artifact inside the build dir. AVR
// prefers the bootloader image, then plain hex; ESP prefers the bin.
// A .cache/ subdirectory is probed as a fallback.
func findFirmware(buildDir, name string, profile *board.Profile) (string, error) {
	var candidates []string
	if _, isAVR := profile.Chip.(board.AVR); isAVR {
		candidates = []string{
			name + ".with_bootloader.hex",
			name + ".hex",
			name + ".bin",
		}
	} else {
		candidates = []string{
			name + ".bin",
			name + ".hex",
		}
	}

	for _, dir := range []string{buildDir, filepath.Join(buildDir, ".cache")} {
		for _, c := range candidates {
			path := filepath.Join(dir, c)
			if fileExists(path) {
				return path, nil
			}
		}
	}
	return "", &NoFirmwareError{Dir: buildDir}
}
