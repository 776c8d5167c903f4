package main

import (
	"os"

	"github.com/wonny/valuescope/cmd/valuescope/commands"
)

// main is the entry point for the valuescope CLI
// ⭐ 통합 CLI 진입점: go run ./cmd/valuescope [command]
func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
