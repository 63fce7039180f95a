package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/umer2k200/lifesync/internal/config"
	"github.com/umer2k200/lifesync/internal/connectivity"
	"github.com/umer2k200/lifesync/internal/remote"
	"github.com/umer2k200/lifesync/internal/store"
	synceng "github.com/umer2k200/lifesync/internal/sync"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run one full reconciliation sweep",
	Long: `Run a single reconciliation sweep across all registered tables.

For each table this:
  1. Pushes locally pending records to the backend
  2. Swaps temporary ids for backend-assigned ones
  3. Adopts the authoritative remote snapshot`,
	RunE: runSync,
}

func runSync(cmd *cobra.Command, args []string) error {
	settings, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	if settings.RemoteURL == "" {
		return fmt.Errorf("remote.url is not configured")
	}
	if settings.UserID == "" {
		return fmt.Errorf("user.id is not configured")
	}

	logger := log.New(os.Stderr, "[sync] ", log.LstdFlags)
	ctx := context.Background()

	cache, err := store.Open(settings.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open cache: %w", err)
	}
	defer cache.Close()

	if err := cache.InitSchema(ctx); err != nil {
		return fmt.Errorf("failed to initialize cache schema: %w", err)
	}

	restClient, err := remote.NewREST(remote.DefaultConfig(settings.RemoteURL, settings.RemoteAPIKey))
	if err != nil {
		return err
	}

	monitor := connectivity.New(
		connectivity.NewHTTPProber(settings.ProbeURL, 5*time.Second),
		&connectivity.Config{Interval: settings.ProbeInterval, Logger: logger},
	)
	if !monitor.Refresh(ctx) {
		fmt.Println("Offline - nothing synced. Pending records remain queued.")
		return nil
	}

	before, err := cache.PendingCounts(ctx, settings.UserID)
	if err != nil {
		return err
	}

	engine := synceng.New(cache, restClient, monitor, &synceng.Config{
		Tables:   settings.Tables,
		Identity: func() string { return settings.UserID },
		Logger:   logger,
	})

	fmt.Printf("Syncing %d tables for user %s...\n", len(settings.Tables), settings.UserID)
	start := time.Now()
	engine.SyncAll(ctx)
	elapsed := time.Since(start)

	after, err := cache.PendingCounts(ctx, settings.UserID)
	if err != nil {
		return err
	}

	var flushed, remaining int
	for _, n := range before {
		flushed += n
	}
	for _, n := range after {
		remaining += n
	}
	flushed -= remaining
	if flushed < 0 {
		flushed = 0
	}

	fmt.Printf("Sync complete in %v\n", elapsed.Round(time.Millisecond))
	fmt.Printf("   Flushed:   %d\n", flushed)
	fmt.Printf("   Remaining: %d\n", remaining)
	fmt.Printf("   Cache:     %s\n", settings.DBPath)
	return nil
}
