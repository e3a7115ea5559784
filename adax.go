package main

import (
	"github.com/clambin/adax-monitor/internal/cmd"
	"os"
)

var version = "change-me"

func main() {
	cmd.RootCmd.Version = version
	if err := cmd.RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
