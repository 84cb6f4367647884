/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ssargent/jsonlbuf/pkg/config"
)

// initCmd represents the init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a configuration file with a generated API key",
	Long: `Create a jsonlbuf configuration file for local use.

This command will:
- Write the default format settings (gzip, no flattening)
- Place buffer and segment directories under --data-dir
- Generate an API key for the REST server

Examples:
  jsonlbuf init --data-dir=./data
  jsonlbuf init --config=./jsonlbuf.yaml --force`,
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")
		dataDir, _ := cmd.Flags().GetString("data-dir")
		force, _ := cmd.Flags().GetBool("force")

		cfg, err := initializeConfig(configPath, dataDir, force)
		if err != nil {
			return err
		}

		cmd.Printf("Configuration written to %s\n", configPath)
		cmd.Printf("Segments directory: %s\n", cfg.Storage.SegmentDir)
		cmd.Printf("API key: %s\n", cfg.Server.APIKey[:8]+"...")
		return nil
	},
}

// initializeConfig bootstraps the configuration unless one already exists
func initializeConfig(configPath, dataDir string, force bool) (*config.Config, error) {
	if config.ConfigExists(configPath) && !force {
		return nil, fmt.Errorf("configuration already exists at %s; use --force to overwrite", configPath)
	}
	return config.BootstrapConfig(configPath, dataDir)
}

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().String("data-dir", "./data", "Directory for buffers and staged segments")
	initCmd.Flags().Bool("force", false, "Overwrite an existing configuration")
}
