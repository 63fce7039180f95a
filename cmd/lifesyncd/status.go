package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/umer2k200/lifesync/internal/config"
	"github.com/umer2k200/lifesync/internal/connectivity"
	"github.com/umer2k200/lifesync/internal/store"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show local cache and connectivity status",
	Long: `Display the current state of the local record cache.

Shows:
  - Cache file location and size
  - Pending (unacknowledged) records per table
  - Current network reachability`,
	RunE: runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	settings, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	info, err := os.Stat(settings.DBPath)
	if os.IsNotExist(err) {
		fmt.Printf("\nCache not initialized at %s\n", settings.DBPath)
		fmt.Printf("Run 'lifesyncd daemon' or 'lifesyncd sync' to create it\n\n")
		return nil
	}
	if err != nil {
		return err
	}

	ctx := context.Background()

	cache, err := store.Open(settings.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open cache: %w", err)
	}
	defer cache.Close()

	pending, err := cache.PendingCounts(ctx, settings.UserID)
	if err != nil {
		return err
	}

	probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	online := connectivity.NewHTTPProber(settings.ProbeURL, 5*time.Second).Probe(probeCtx)
	cancel()

	fmt.Printf("\nLifeSync cache status\n")
	fmt.Printf("   Cache:   %s (%d KB)\n", settings.DBPath, info.Size()/1024)
	fmt.Printf("   User:    %s\n", settings.UserID)
	fmt.Printf("   Online:  %v\n", online)

	var total int
	for _, n := range pending {
		total += n
	}
	fmt.Printf("   Pending: %d\n", total)
	for _, table := range settings.Tables {
		if n := pending[table]; n > 0 {
			fmt.Printf("      %-12s %d\n", table, n)
		}
	}
	fmt.Println()

	return nil
}
