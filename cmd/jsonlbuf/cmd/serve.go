/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ssargent/jsonlbuf/pkg/api"
	"github.com/ssargent/jsonlbuf/pkg/buffer"
	"github.com/ssargent/jsonlbuf/pkg/segment"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the REST API server",
	Long: `Start the jsonlbuf REST API server.

Each POST to /api/v1/segments is buffered into one JSON Lines file under the
buffer directory using the configured format, then staged in the local segment store, from where it
can be listed, downloaded and deleted. Prometheus metrics are served on
/metrics.

Examples:
  jsonlbuf serve
  jsonlbuf serve --port=9200 --api-key=mysecretkey`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := configFrom(cmd)
		logger := loggerFrom(cmd)

		if cmd.Flags().Changed("port") {
			cfg.Server.Port, _ = cmd.Flags().GetInt("port")
		}
		if cmd.Flags().Changed("bind") {
			cfg.Server.Bind, _ = cmd.Flags().GetString("bind")
		}
		if cmd.Flags().Changed("api-key") {
			cfg.Server.APIKey, _ = cmd.Flags().GetString("api-key")
		}
		if cfg.Server.APIKey == "" || cfg.Server.APIKey == "auto" {
			return fmt.Errorf("an API key is required (run 'jsonlbuf init' or pass --api-key)")
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}

		if err := os.MkdirAll(cfg.Storage.SegmentDir, 0750); err != nil {
			return fmt.Errorf("failed to create segment dir: %w", err)
		}
		store, err := segment.Open(cfg.Storage.SegmentDir)
		if err != nil {
			return err
		}
		defer store.Close()

		create := buffer.NewCreateFunc(&cfg.Format, func() (buffer.Storage, error) {
			return buffer.NewFileStorage(buffer.FileStorageConfig{
				Dir:        cfg.Storage.BufferDir,
				BufferSize: cfg.Storage.WriteBufferSize,
			}), nil
		}, buffer.WithLogger(logger))

		server := api.NewServer(store, create, api.ServerConfig{
			Bind:         cfg.Server.Bind,
			Port:         cfg.Server.Port,
			APIKey:       cfg.Server.APIKey,
			MaxBodyBytes: cfg.Server.MaxBodyBytes,
		}, api.NewMetrics(nil), api.WithLogger(logger))

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return server.Start(ctx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().IntP("port", "p", 8080, "Port to listen on")
	serveCmd.Flags().String("bind", "127.0.0.1", "Address to bind")
	serveCmd.Flags().String("api-key", "", "API key for client authentication")
}

