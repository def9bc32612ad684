package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ehrlich-b/wingthing/internal/config"
	"github.com/ehrlich-b/wingthing/internal/daemon"
	"github.com/ehrlich-b/wingthing/internal/logger"
)

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the sync daemon: stream, HTTP, and websocket transports",
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, _ := cmd.Flags().GetString("config")
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			if err := logger.Init(cfg.LogLevel, cfg.LogFile); err != nil {
				return fmt.Errorf("init logger: %w", err)
			}

			d, err := daemon.Build(cfg, logger.Log)
			if err != nil {
				return fmt.Errorf("build daemon: %w", err)
			}

			watcher, err := config.NewWatcher(configPath, logger.Log, d.ApplyConfig)
			if err == nil {
				go watcher.Run(context.Background())
			}

			return daemon.RunUntilSignal(d)
		},
	}
	return cmd
}
