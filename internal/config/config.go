// Package config loads the sync core settings from file and environment.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	syncpkg "github.com/umer2k200/lifesync/internal/sync"
)

// Settings holds everything the daemon and CLI commands need.
type Settings struct {
	// DBPath is the local record cache location.
	DBPath string

	// UserID is the caller-supplied identity all operations run as.
	UserID string

	// RemoteURL and RemoteAPIKey configure the backend adapter.
	RemoteURL    string
	RemoteAPIKey string

	// Tables is the reconciliation sweep registry.
	Tables []string

	// ProbeURL and ProbeInterval configure the connectivity monitor.
	ProbeURL      string
	ProbeInterval time.Duration

	// DashboardPort serves the status feed (0 disables the dashboard).
	DashboardPort int

	// NotifyInterval and NotifyLookahead configure the reminder scanner.
	NotifyInterval  time.Duration
	NotifyLookahead time.Duration

	// LogFile routes daemon logs through rotation; empty logs to stderr.
	LogFile string
}

// Load reads settings from the given config file, or searches the working
// directory and $HOME for lifesync.yaml when cfgFile is empty. Environment
// variables prefixed LIFESYNC_ override file values (dots become
// underscores, e.g. LIFESYNC_REMOTE_URL).
func Load(cfgFile string) (*Settings, error) {
	v := viper.New()

	v.SetDefault("db.path", ".lifesync/cache.db")
	v.SetDefault("sync.tables", syncpkg.DefaultTables())
	v.SetDefault("connectivity.probe_url", "https://clients3.google.com/generate_204")
	v.SetDefault("connectivity.probe_interval", 30*time.Second)
	v.SetDefault("dashboard.port", 8719)
	v.SetDefault("notify.interval", time.Minute)
	v.SetDefault("notify.lookahead", 15*time.Minute)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("lifesync")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME")
	}

	v.SetEnvPrefix("LIFESYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		// A missing config file is fine unless one was named explicitly.
		if cfgFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	return &Settings{
		DBPath:          v.GetString("db.path"),
		UserID:          v.GetString("user.id"),
		RemoteURL:       v.GetString("remote.url"),
		RemoteAPIKey:    v.GetString("remote.api_key"),
		Tables:          v.GetStringSlice("sync.tables"),
		ProbeURL:        v.GetString("connectivity.probe_url"),
		ProbeInterval:   v.GetDuration("connectivity.probe_interval"),
		DashboardPort:   v.GetInt("dashboard.port"),
		NotifyInterval:  v.GetDuration("notify.interval"),
		NotifyLookahead: v.GetDuration("notify.lookahead"),
		LogFile:         v.GetString("log.file"),
	}, nil
}
