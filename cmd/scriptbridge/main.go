package main

import (
	"os"

	"github.com/andrei-cloud/go_scriptbridge/cmd/scriptbridge/cmd"
)

// main runs the scriptbridge command line.
func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
