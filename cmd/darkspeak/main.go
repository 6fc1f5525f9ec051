package main

import (
	"os"

	"darkspeak/cmd/darkspeak/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
