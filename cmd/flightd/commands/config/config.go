// Package config implements the 'flightd config' subcommand tree for
// inspecting and validating server configuration.
package config

import (
	"github.com/spf13/cobra"
)

// Cmd is the parent command for configuration operations.
var Cmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect and validate configuration",
	Long: `Inspect the effective server configuration, validate a configuration
file, or emit the JSON Schema describing the configuration format.`,
}

func init() {
	Cmd.AddCommand(showCmd)
	Cmd.AddCommand(schemaCmd)
	Cmd.AddCommand(validateCmd)
}
