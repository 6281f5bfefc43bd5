package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"chatline/internal/adapter/mockserver"
	"chatline/internal/infra/logger"
)

type mockServerOptions struct {
	addr       string
	dbPath     string
	chunkDelay time.Duration
}

func newMockServerCmd(opts *rootOptions) *cobra.Command {
	var mo mockServerOptions
	cmd := &cobra.Command{
		Use:   "mock-server",
		Short: "Run a local stand-in for the assistant service",
		Long: `mock-server serves the assistant API from a local SQLite database and
answers with canned replies streamed word by word. Include "[fail]" in a
message to make the reply fail part-way through.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("addr") {
				cfg.MockServer.Addr = mo.addr
			}
			if cmd.Flags().Changed("db") {
				cfg.MockServer.DBPath = mo.dbPath
			}
			if cmd.Flags().Changed("chunk-delay") {
				cfg.MockServer.ChunkDelay = mo.chunkDelay
			}

			log, closeLog, err := logger.New(cfg.Logger)
			if err != nil {
				return err
			}
			defer closeLog()

			if err := os.MkdirAll(filepath.Dir(cfg.MockServer.DBPath), 0o700); err != nil {
				return fmt.Errorf("create data dir: %w", err)
			}
			store, err := mockserver.OpenStore(cfg.MockServer.DBPath)
			if err != nil {
				return err
			}
			defer store.Close()

			srv := mockserver.New(store, cfg.MockServer, logger.WithComponent(log, "mockserver"))
			return srv.Start(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&mo.addr, "addr", "", "listen address (overrides mock_server.addr)")
	cmd.Flags().StringVar(&mo.dbPath, "db", "", "SQLite database path (overrides mock_server.db_path)")
	cmd.Flags().DurationVar(&mo.chunkDelay, "chunk-delay", 0, "pause between streamed words")
	return cmd
}
