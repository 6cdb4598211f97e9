package flash

import (
	"os/exec"
	"path/filepath"
	"strconv"

	"github.com/buckleypaul/kiln/internal/toolchain"
)

// espDefaultBaud is the programming baud when the caller gives none.
const espDefaultBaud = 921600

// flashESP writes firmware through esptool. A .bin image flashes at
// the bootloader offset; anything else starts at zero.
func (f *Flasher) flashESP(firmware string, req Request, chip string) error {
	esptool, ok := findEsptool()
	if !ok {
		return &ToolNotFoundError{Tool: "esptool", Hint: "install with: pip install esptool"}
	}

	baud := espDefaultBaud
	if req.BaudOverride > 0 {
		baud = req.BaudOverride
	}

	offset := "0x0000"
	if filepath.Ext(firmware) == ".bin" {
		offset = "0x1000"
	}

	args := []string{
		"--chip", chip,
		"--port", req.Port,
		"--baud", strconv.Itoa(baud),
		"--before", "default_reset",
		"--after", "hard_reset",
		"write_flash",
		"-z",
		"--flash_mode", "dio",
		"--flash_freq", "80m",
		"--flash_size", "detect",
		offset,
		firmware,
	}
	if req.Verbose {
		args = append(args, "--trace")
	}

	runner := toolchain.ExecRunner{Log: f.Log}
	if res := runner.Run(esptool, args...); !res.OK() {
		return &FlashError{Port: req.Port, Output: res.Output}
	}
	return nil
}

// findEsptool probes PATH for esptool under either of its names.
func findEsptool() (string, bool) {
	for _, candidate := range []string{"esptool.py", "esptool"} {
		if _, err := exec.LookPath(candidate); err == nil {
			return candidate, true
		}
	}
	return "", false
}
