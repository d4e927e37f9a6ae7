package main

import (
	"os"

	"github.com/input-output-hk/catalyst-forge-release/cmd/forge-release/commands"
)

func main() {
	os.Exit(commands.Execute())
}
