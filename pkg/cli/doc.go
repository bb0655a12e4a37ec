// Package cli provides common CLI utilities for the doubaotts command.
//
// This package includes:
//   - Configuration management (named contexts holding credentials and voice defaults)
//   - Output formatting (JSON, YAML)
//   - Request file and text-line loading
//   - A lipgloss summary box for finished runs
//
// Configuration is stored in ~/.config/<app>/config.yaml, supporting
// multiple contexts similar to kubectl.
//
// Example usage:
//
//	cfg, err := cli.LoadConfig("doubaotts")
//	ctx, err := cfg.ResolveContext(name)
//
//	cli.Output(ctx, cli.OutputOptions{Format: cli.FormatJSON})
package cli
