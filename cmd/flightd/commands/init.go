package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/avionyx/flightd/pkg/config"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a default configuration file",
	Long: `Create a configuration file populated with defaults.

Writes to $XDG_CONFIG_HOME/flightd/config.yaml unless a path is given
with --config. Refuses to overwrite an existing file unless --force is
set.`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite an existing configuration file")
}

func runInit(cmd *cobra.Command, args []string) error {
	var path string
	var err error

	if cfgPath := GetConfigFile(); cfgPath != "" {
		path = cfgPath
		err = config.InitConfigToPath(cfgPath, initForce)
	} else {
		path, err = config.InitConfig(initForce)
	}
	if err != nil {
		return err
	}

	fmt.Printf("Configuration written to %s\n", path)
	fmt.Println("\nNext steps:")
	fmt.Println("  1. Edit the file to point at your MongoDB instance and MQTT broker")
	fmt.Println("  2. Run 'flightd keygen' to generate token signing keys")
	fmt.Println("  3. Run 'flightd start' to start the server")
	return nil
}
