package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "lifesyncd",
	Short: "LifeSync offline-first sync engine",
	Long: `lifesyncd manages the LifeSync local record cache and keeps it
reconciled with the remote backend.

The cache is a local SQLite database that serves every read and accepts
every write, online or not. Pending writes are flushed to the backend
whenever connectivity allows, and the authoritative remote snapshot is
adopted once they land.`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default: lifesync.yaml in . or $HOME)")

	rootCmd.AddCommand(daemonCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(statusCmd)
}
