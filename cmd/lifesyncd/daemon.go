package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/umer2k200/lifesync/internal/config"
	"github.com/umer2k200/lifesync/internal/connectivity"
	"github.com/umer2k200/lifesync/internal/dashboard"
	"github.com/umer2k200/lifesync/internal/notify"
	"github.com/umer2k200/lifesync/internal/remote"
	"github.com/umer2k200/lifesync/internal/store"
	synceng "github.com/umer2k200/lifesync/internal/sync"
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run the sync daemon",
	Long: `Run the long-lived sync daemon.

The daemon:
  1. Monitors network reachability and triggers a reconciliation sweep
     on every offline-to-online transition
  2. Scans cached tables for due reminders
  3. Serves the status dashboard (WebSocket feed + /api/status)`,
	RunE: runDaemon,
}

func runDaemon(cmd *cobra.Command, args []string) error {
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

	logger := newDaemonLogger(settings)
	logger.Printf("Starting lifesyncd for user %s", settings.UserID)

	cache, err := store.Open(settings.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open cache: %w", err)
	}
	defer cache.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

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

	// lastSweep is read by the status endpoint and written by the event sink.
	var lastSweep atomic.Int64

	var srv *dashboard.Server
	if settings.DashboardPort > 0 {
		srv = dashboard.NewServer(&dashboard.Config{
			Port:   settings.DashboardPort,
			Logger: logger,
			Status: func(ctx context.Context) dashboard.Status {
				status := dashboard.Status{Online: monitor.Online()}
				if nanos := lastSweep.Load(); nanos > 0 {
					status.LastSweep = time.Unix(0, nanos)
				}
				if pending, err := cache.PendingCounts(ctx, settings.UserID); err == nil {
					status.Pending = pending
				}
				return status
			},
		})
	}

	engine := synceng.New(cache, restClient, monitor, &synceng.Config{
		Tables:   settings.Tables,
		Identity: func() string { return settings.UserID },
		Logger:   logger,
		Events: func(ev synceng.Event) {
			if ev.Type == synceng.EventSweepCompleted {
				lastSweep.Store(ev.Timestamp.UnixNano())
			}
			if srv != nil {
				srv.Broadcast(dashboard.NewMessage(dashboard.MessageTypeSync, ev))
			}
		},
	})

	monitor.OnOnline(func() {
		go engine.SyncAll(context.Background())
	})
	if srv != nil {
		monitor.OnChange(func(online bool) {
			srv.Broadcast(dashboard.NewMessage(dashboard.MessageTypeConnectivity,
				map[string]bool{"online": online}))
		})
	}

	notifier := notify.New(engine, &notify.Config{
		Tables:    settings.Tables,
		Interval:  settings.NotifyInterval,
		Lookahead: settings.NotifyLookahead,
		Identity:  func() string { return settings.UserID },
		Logger:    logger,
		Notify: func(r notify.Reminder) {
			logger.Printf("Reminder: %s (%s/%s) at %s", r.Title, r.Table, r.RecordID,
				r.At.Format(time.RFC3339))
			if srv != nil {
				srv.Broadcast(dashboard.NewMessage(dashboard.MessageTypeReminder, r))
			}
		},
	})

	if srv != nil {
		if err := srv.Start(); err != nil {
			return err
		}
		defer func() { _ = srv.Stop() }()
	}

	if err := monitor.Start(ctx); err != nil {
		return err
	}
	defer monitor.Stop()

	if err := notifier.Start(ctx); err != nil {
		return err
	}
	defer notifier.Stop()

	// Initial sweep when the daemon comes up connected; later sweeps are
	// driven by the monitor's offline-to-online edges.
	if monitor.Online() {
		go engine.SyncAll(ctx)
	}

	logger.Printf("Daemon running (dashboard port %d)", settings.DashboardPort)
	<-ctx.Done()
	logger.Printf("Shutting down")

	return nil
}

// newDaemonLogger routes logs to a rotating file when configured, stderr
// otherwise.
func newDaemonLogger(settings *config.Settings) *log.Logger {
	var out io.Writer = os.Stderr
	if settings.LogFile != "" {
		out = &lumberjack.Logger{
			Filename:   settings.LogFile,
			MaxSize:    10, // megabytes
			MaxBackups: 3,
			MaxAge:     14, // days
			Compress:   true,
		}
	}
	return log.New(out, "[lifesyncd] ", log.LstdFlags)
}
