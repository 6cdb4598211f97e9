package cli

import (
	"fmt"

	"github.com/buckleypaul/kiln/internal/modstore"
	"github.com/buckleypaul/kiln/internal/ui"
)

const modulesUsage = `Usage:
  kiln modules install <arch>   Install an SDK core (avr, esp32, esp8266, ...)
  kiln modules list             List installed cores
  kiln modules update           Refresh the package index cache
`

func (a *app) cmdModules(args []string) error {
	if len(args) == 0 {
		fmt.Fprint(a.out, modulesUsage)
		return nil
	}

	s := modstore.New(a.cfg, a.log)

	sub, subArgs := args[0], args[1:]
	switch sub {
	case "install":
		if len(subArgs) != 1 {
			return &ExitError{Code: 2, Message: "modules install: exactly one architecture expected"}
		}
		arch := subArgs[0]
		if !a.quiet {
			fmt.Fprintf(a.out, "%s Installing %s core into %s…\n",
				ui.DimStyle.Render("→"), ui.BoldStyle.Render(arch), a.cfg.ModulesRoot)
		}
		if err := s.Install(arch); err != nil {
			return &ExitError{Code: 1, Message: err.Error()}
		}
		if !a.quiet {
			fmt.Fprintf(a.out, "%s %s core installed\n", ui.SuccessStyle.Render("✓"), arch)
		}
		return nil

	case "list":
		cores, err := s.List()
		if err != nil {
			return &ExitError{Code: 1, Message: err.Error()}
		}
		if len(cores) == 0 {
			fmt.Fprintln(a.out, ui.WarningStyle.Render("!")+" No cores installed yet.")
			fmt.Fprintln(a.out, "  Install one with: "+ui.BoldStyle.Render("kiln modules install avr"))
			return nil
		}
		rows := make([][]string, 0, len(cores))
		for _, c := range cores {
			rows = append(rows, []string{c.Arch, c.Version, c.InstalledAt.Format("2006-01-02 15:04")})
		}
		fmt.Fprintln(a.out, ui.Table([]string{"ARCH", "VERSION", "INSTALLED"}, rows))
		return nil

	case "update":
		if !a.quiet {
			fmt.Fprintf(a.out, "%s Refreshing package index…\n", ui.DimStyle.Render("→"))
		}
		if err := s.Update(); err != nil {
			return &ExitError{Code: 1, Message: err.Error()}
		}
		if !a.quiet {
			fmt.Fprintf(a.out, "%s Package index updated.\n", ui.SuccessStyle.Render("✓"))
		}
		return nil
	}
	return &ExitError{Code: 2, Message: fmt.Sprintf("unknown modules subcommand %q", sub)}
}
