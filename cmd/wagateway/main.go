// Package main provides the entry point for the wagateway binary.
package main

import (
	"os"

	"github.com/genialityco/wa-multi-session-backend/cmd/wagateway/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
