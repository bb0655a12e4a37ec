// Package main provides the doubaotts CLI tool.
//
// Usage:
//
//	doubaotts [flags] <command> [args]
//
// Commands:
//
//	speak   - Synthesize text over the bidirectional streaming API
//	config  - Configuration management
//
// Configuration:
//
//	The CLI stores configuration in ~/.config/doubaotts/
//	Use 'doubaotts config' commands to manage contexts.
package main

import (
	"fmt"
	"os"

	"github.com/haivivi/doubaotts/cmd/doubaotts/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
