package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/goccy/go-yaml"
)

// OutputFormat represents the output format type
type OutputFormat string

const (
	// FormatYAML outputs as YAML (default for terminal)
	FormatYAML OutputFormat = "yaml"
	// FormatJSON outputs as JSON
	FormatJSON OutputFormat = "json"
)

// OutputOptions configures output behavior
type OutputOptions struct {
	// Format is the output format (yaml, json)
	Format OutputFormat

	// Indent is the indentation for JSON output
	Indent string

	// Writer is the destination; nil means stdout
	Writer io.Writer
}

// Output writes the result to the configured destination
func Output(result any, opts OutputOptions) error {
	var w io.Writer = os.Stdout
	if opts.Writer != nil {
		w = opts.Writer
	}

	switch opts.Format {
	case FormatJSON:
		return outputJSON(w, result, opts.Indent)
	case FormatYAML, "":
		return outputYAML(w, result)
	default:
		return fmt.Errorf("unsupported output format: %s", opts.Format)
	}
}

func outputJSON(w io.Writer, result any, indent string) error {
	enc := json.NewEncoder(w)
	if indent == "" {
		indent = "  "
	}
	enc.SetIndent("", indent)
	return enc.Encode(result)
}

func outputYAML(w io.Writer, result any) error {
	data, err := yaml.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to format output: %w", err)
	}
	_, err = w.Write(data)
	return err
}

// Print helpers for terminal output. Status goes to stderr so that audio
// written to stdout is never mixed with it.

// PrintSuccess prints a success message with checkmark
func PrintSuccess(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "✓ "+format+"\n", args...)
}

// PrintError prints an error message to stderr
func PrintError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
}

// PrintInfo prints an info message
func PrintInfo(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "ℹ "+format+"\n", args...)
}

// PrintWarning prints a warning message
func PrintWarning(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "⚠ "+format+"\n", args...)
}
