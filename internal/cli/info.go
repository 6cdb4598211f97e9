package cli

import (
	"fmt"

	"github.com/buckleypaul/kiln/internal/board"
	"github.com/buckleypaul/kiln/internal/sdk"
	"github.com/buckleypaul/kiln/internal/serialport"
	"github.com/buckleypaul/kiln/internal/ui"
)

func (a *app) cmdDetect(args []string) error {
	fs := a.newFlagSet("detect")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	ports, err := serialport.DetectAll()
	if err != nil {
		return &ExitError{Code: 1, Message: fmt.Sprintf("enumerate serial ports: %v", err)}
	}
	if len(ports) == 0 {
		fmt.Fprintln(a.out, ui.WarningStyle.Render("!")+" No serial ports found")
		return nil
	}

	rows := make([][]string, 0, len(ports))
	for _, p := range ports {
		boardID, name, vidpid := "unknown", "—", "—"
		if p.Recognized() {
			boardID, name = p.BoardID, p.BoardName
		}
		if p.VID != "" && p.PID != "" {
			vidpid = p.VID + ":" + p.PID
		}
		rows = append(rows, []string{p.Port, boardID, vidpid, name})
	}
	fmt.Fprintln(a.out, ui.Table([]string{"PORT", "BOARD", "VID:PID", "NAME"}, rows))
	return nil
}

func (a *app) cmdBoards(args []string) error {
	fs := a.newFlagSet("boards")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	var rows [][]string
	for _, b := range board.Catalog() {
		cpu := chipCPU(&b)
		rows = append(rows, []string{
			b.ID,
			b.Name,
			fmt.Sprintf("%s (%s)", cpu, b.Arch()),
			fmt.Sprintf("%dK", b.FlashKB),
			fmt.Sprintf("%dK", b.RAMKB),
			b.FQBN,
		})
	}
	fmt.Fprintln(a.out, ui.Table([]string{"ID", "NAME", "CPU / ARCH", "FLASH", "RAM", "FQBN"}, rows))
	return nil
}

// chipCPU names the CPU for the boards table.
func chipCPU(p *board.Profile) string {
	switch c := p.Chip.(type) {
	case board.AVR:
		return c.MCU
	case board.SAM:
		return c.MCU
	case board.RP2040:
		return "cortex-m0+"
	case board.ESP32:
		return c.Variant
	case board.ESP8266:
		return "lx106"
	}
	return "?"
}

func (a *app) cmdSDKInfo(args []string) error {
	fs := a.newFlagSet("sdk-info")
	boardID := fs.String("board", "uno", "board ID to resolve the SDK for")
	fs.StringVar(boardID, "b", "uno", "board ID (shorthand)")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if fs.NArg() > 0 {
		*boardID = fs.Arg(0)
	}

	profile, err := board.Find(*boardID)
	if err != nil {
		return err
	}

	resolver := sdk.Resolver{Cfg: a.cfg, Log: a.log}
	paths, err := resolver.Resolve(profile.Arch(), profile.Variant)
	if err != nil {
		return &ExitError{Code: 1, Message: err.Error()}
	}

	fmt.Fprintf(a.out, "%s SDK found  (%s)\n", ui.SuccessStyle.Render("✓"), paths.Version)
	fmt.Fprintf(a.out, "  core:      %s\n", paths.CoreDir)
	fmt.Fprintf(a.out, "  variant:   %s\n", paths.VariantDir)
	toolchain := paths.ToolchainBin
	if toolchain == "" {
		toolchain = "(PATH)"
	}
	fmt.Fprintf(a.out, "  toolchain: %s\n", toolchain)
	if paths.LibrariesDir != "" {
		fmt.Fprintf(a.out, "  libraries: %s\n", paths.LibrariesDir)
	}
	return nil
}
