package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ehrlich-b/wingthing/internal/config"
	"github.com/ehrlich-b/wingthing/internal/daemon"
	"github.com/ehrlich-b/wingthing/internal/logger"
)

// cleanCmd builds a fresh daemon and runs one reaper sweep over its
// registries. Those registries hold only entries loaded in this process, so
// records already in the store are not examined or deleted.
func cleanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clean",
		Short: "Run one reaper sweep and print \"Database clean.\"",
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

			d.Reaper.Sweep(context.Background())
			fmt.Println("Database clean.")
			return nil
		},
	}
}
