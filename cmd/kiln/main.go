package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/buckleypaul/kiln/internal/cli"
)

func main() {
	if err := cli.Run(os.Stdout, os.Args[1:]); err != nil {
		var exitErr *cli.ExitError
		if errors.As(err, &exitErr) {
			if exitErr.Message != "" {
				fmt.Fprintln(os.Stderr, "kiln: "+exitErr.Message)
			}
			os.Exit(exitErr.Code)
		}
		fmt.Fprintln(os.Stderr, "kiln: "+err.Error())
		os.Exit(1)
	}
}
