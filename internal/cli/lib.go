package cli

import (
	"fmt"
	"strings"

	"github.com/buckleypaul/kiln/internal/libreg"
	"github.com/buckleypaul/kiln/internal/ui"
)

const libUsage = `Usage:
  kiln lib install <name> [--version x.y.z]   Install a library and its dependencies
  kiln lib search <query>                     Search the Arduino library registry
  kiln lib list                               List installed libraries
  kiln lib info <name>                        Show details about a library
  kiln lib update                             Refresh the library index cache
`

func (a *app) cmdLib(args []string) error {
	if len(args) == 0 {
		fmt.Fprint(a.out, libUsage)
		return nil
	}

	reg := libreg.New(a.cfg, a.log)

	sub, subArgs := args[0], args[1:]
	switch sub {
	case "install":
		return a.libInstall(reg, subArgs)
	case "search":
		return a.libSearch(reg, subArgs)
	case "list":
		return a.libList(reg)
	case "info":
		return a.libInfo(reg, subArgs)
	case "update":
		if !a.quiet {
			fmt.Fprintf(a.out, "%s Refreshing library index…\n", ui.DimStyle.Render("→"))
		}
		if err := reg.Update(); err != nil {
			return &ExitError{Code: 1, Message: err.Error()}
		}
		if !a.quiet {
			fmt.Fprintf(a.out, "%s Library index updated.\n", ui.SuccessStyle.Render("✓"))
		}
		return nil
	}
	return &ExitError{Code: 2, Message: fmt.Sprintf("unknown lib subcommand %q", sub)}
}

func (a *app) libInstall(reg *libreg.Registry, args []string) error {
	fs := a.newFlagSet("lib install")
	version := fs.String("version", "", "pin a specific version, e.g. 1.4.4")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return &ExitError{Code: 2, Message: "lib install: exactly one library name expected"}
	}
	name := fs.Arg(0)

	steps, err := reg.Install(name, *version)
	a.printInstallSteps(steps)
	if err != nil {
		return &ExitError{Code: 1, Message: err.Error()}
	}
	return nil
}

func (a *app) printInstallSteps(steps []libreg.InstallStep) {
	if a.quiet {
		return
	}
	for _, s := range steps {
		indent := strings.Repeat("  ", s.Depth)
		switch s.Action {
		case "present":
			fmt.Fprintf(a.out, "%s%s %s %s already installed\n",
				indent, ui.DimStyle.Render("•"), ui.BoldStyle.Render(s.Name), ui.DimStyle.Render(s.Version))
		case "upgraded":
			fmt.Fprintf(a.out, "%s%s %s upgraded to %s\n",
				indent, ui.SuccessStyle.Render("✓"), ui.BoldStyle.Render(s.Name), s.Version)
		default:
			fmt.Fprintf(a.out, "%s%s %s %s\n",
				indent, ui.SuccessStyle.Render("✓"), ui.BoldStyle.Render(s.Name), ui.DimStyle.Render(s.Version))
		}
	}
}

func (a *app) libSearch(reg *libreg.Registry, args []string) error {
	if len(args) != 1 {
		return &ExitError{Code: 2, Message: "lib search: exactly one query expected"}
	}
	hits, err := reg.Search(args[0])
	if err != nil {
		return &ExitError{Code: 1, Message: err.Error()}
	}
	if len(hits) == 0 {
		fmt.Fprintf(a.out, "%s No libraries found matching %q\n", ui.WarningStyle.Render("!"), args[0])
		return nil
	}

	rows := make([][]string, 0, len(hits))
	for _, h := range hits {
		desc := h.Sentence
		if len(desc) > 60 {
			desc = desc[:57] + "…"
		}
		rows = append(rows, []string{h.Name, h.Version, desc})
	}
	fmt.Fprintln(a.out, ui.Table([]string{"NAME", "VERSION", "DESCRIPTION"}, rows))
	fmt.Fprintf(a.out, "\n  %d libraries found\n", len(hits))
	return nil
}

func (a *app) libList(reg *libreg.Registry) error {
	libs, err := reg.List()
	if err != nil {
		return &ExitError{Code: 1, Message: err.Error()}
	}
	if len(libs) == 0 {
		fmt.Fprintln(a.out, ui.WarningStyle.Render("!")+" No libraries installed yet.")
		fmt.Fprintln(a.out, "  Install one with: "+ui.BoldStyle.Render("kiln lib install <name>"))
		return nil
	}

	rows := make([][]string, 0, len(libs))
	for _, l := range libs {
		rows = append(rows, []string{l.Name, l.Version})
	}
	fmt.Fprintln(a.out, ui.Table([]string{"LIBRARY", "VERSION"}, rows))
	fmt.Fprintf(a.out, "\n  %d installed\n", len(libs))
	fmt.Fprintf(a.out, "  path: %s\n", ui.DimStyle.Render(a.cfg.LibsRoot))
	return nil
}

func (a *app) libInfo(reg *libreg.Registry, args []string) error {
	if len(args) != 1 {
		return &ExitError{Code: 2, Message: "lib info: exactly one library name expected"}
	}
	entry, err := reg.Resolve(args[0], "")
	if err != nil {
		return &ExitError{Code: 1, Message: err.Error()}
	}

	fmt.Fprintf(a.out, "\n  %s  %s\n\n",
		ui.BoldStyle.Render(entry.Name), ui.DimStyle.Render(entry.Version))
	if entry.Sentence != "" {
		fmt.Fprintf(a.out, "  %s\n", entry.Sentence)
	}
	if entry.Paragraph != "" {
		fmt.Fprintf(a.out, "  %s\n", ui.DimStyle.Render(entry.Paragraph))
	}
	fmt.Fprintln(a.out)

	keyVal := func(k, v string) {
		if v == "" {
			v = "—"
		}
		fmt.Fprintf(a.out, "  %-15s %s\n", ui.DimStyle.Render(k+":"), v)
	}
	keyVal("category", entry.Category)
	keyVal("maintainer", entry.Maintainer)
	keyVal("website", entry.Website)
	if len(entry.Architectures) > 0 {
		keyVal("architectures", strings.Join(entry.Architectures, ", "))
	}
	if len(entry.Dependencies) > 0 {
		var deps []string
		for _, d := range entry.Dependencies {
			if d.Version != "" {
				deps = append(deps, d.Name+"@"+d.Version)
			} else {
				deps = append(deps, d.Name)
			}
		}
		keyVal("dependencies", strings.Join(deps, ", "))
	}
	fmt.Fprintln(a.out)

	if m, ok := reg.Installed(entry.Name); ok {
		fmt.Fprintf(a.out, "  %s installed at %s\n\n",
			ui.SuccessStyle.Render("✓"), ui.BoldStyle.Render(m.Version))
	} else {
		fmt.Fprintf(a.out, "  %s not installed  →  %s\n\n",
			ui.DimStyle.Render("○"), ui.BoldStyle.Render(fmt.Sprintf("kiln lib install %q", entry.Name)))
	}
	return nil
}
