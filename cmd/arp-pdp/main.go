package main

import (
	"os"

	"github.com/upb/arp-template-pdp/cmd/arp-pdp/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
