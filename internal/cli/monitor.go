package cli

import (
	"github.com/buckleypaul/kiln/internal/monitor"
)

func (a *app) cmdMonitor(args []string) error {
	fs := a.newFlagSet("monitor")
	port := fs.String("port", a.cfg.SerialPort, "serial port to open")
	fs.StringVar(port, "p", a.cfg.SerialPort, "serial port (shorthand)")
	baud := fs.Int("baud", a.cfg.SerialBaudRate, "baud rate")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	resolved, err := a.resolvePort(*port)
	if err != nil {
		return err
	}

	if err := monitor.Run(resolved, *baud, a.history()); err != nil {
		return &ExitError{Code: 1, Message: err.Error()}
	}
	return nil
}
