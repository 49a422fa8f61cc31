// Package cli holds the small shared pieces of the command-line
// surface: structured command errors, output formatting (text, JSON,
// YAML), and signal-driven context cancellation for the long-running
// serve command.
package cli
