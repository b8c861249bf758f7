// Package main is the entrypoint for the mef command.
package main

import (
	"os"

	"github.com/PascalRepond/rero-mef/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
