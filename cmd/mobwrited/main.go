package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// version is set via -ldflags "-X main.version=..." at build time.
var version = "dev"

func main() {
	root := &cobra.Command{
		Use:   "mobwrited",
		Short: "Differential synchronization daemon",
	}

	root.PersistentFlags().String("config", "mobwrite.yaml", "path to the YAML config file")

	root.AddCommand(serveCmd())
	root.AddCommand(cleanCmd())
	root.AddCommand(versionCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the build version",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println(version)
			return nil
		},
	}
}
