package main

import (
	"os"

	"github.com/mattjoyce/wxgate/cmd/wxgate/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
