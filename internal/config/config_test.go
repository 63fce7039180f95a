package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "lifesync.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	settings, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if settings.DBPath != ".lifesync/cache.db" {
		t.Errorf("Wrong default db path: %s", settings.DBPath)
	}
	if len(settings.Tables) != 5 {
		t.Errorf("Expected full default table registry, got %v", settings.Tables)
	}
	if settings.ProbeInterval != 30*time.Second {
		t.Errorf("Wrong default probe interval: %v", settings.ProbeInterval)
	}
	if settings.DashboardPort != 8719 {
		t.Errorf("Wrong default dashboard port: %d", settings.DashboardPort)
	}
	if settings.NotifyLookahead != 15*time.Minute {
		t.Errorf("Wrong default lookahead: %v", settings.NotifyLookahead)
	}
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfig(t, `
db:
  path: /var/lib/lifesync/cache.db
user:
  id: u-42
remote:
  url: https://example.supabase.co
  api_key: secret
sync:
  tables:
    - goals
    - tasks
connectivity:
  probe_interval: 10s
dashboard:
  port: 0
log:
  file: /var/log/lifesync.log
`)

	settings, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if settings.DBPath != "/var/lib/lifesync/cache.db" {
		t.Errorf("Wrong db path: %s", settings.DBPath)
	}
	if settings.UserID != "u-42" {
		t.Errorf("Wrong user id: %s", settings.UserID)
	}
	if settings.RemoteURL != "https://example.supabase.co" || settings.RemoteAPIKey != "secret" {
		t.Errorf("Wrong remote settings: %s / %s", settings.RemoteURL, settings.RemoteAPIKey)
	}
	if len(settings.Tables) != 2 || settings.Tables[0] != "goals" || settings.Tables[1] != "tasks" {
		t.Errorf("Wrong tables: %v", settings.Tables)
	}
	if settings.ProbeInterval != 10*time.Second {
		t.Errorf("Wrong probe interval: %v", settings.ProbeInterval)
	}
	if settings.DashboardPort != 0 {
		t.Errorf("Expected dashboard disabled, got port %d", settings.DashboardPort)
	}
	if settings.LogFile != "/var/log/lifesync.log" {
		t.Errorf("Wrong log file: %s", settings.LogFile)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	path := writeConfig(t, `
remote:
  url: https://file.example.com
`)

	t.Setenv("LIFESYNC_REMOTE_URL", "https://env.example.com")
	t.Setenv("LIFESYNC_USER_ID", "env-user")

	settings, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if settings.RemoteURL != "https://env.example.com" {
		t.Errorf("Environment should override file, got %s", settings.RemoteURL)
	}
	if settings.UserID != "env-user" {
		t.Errorf("Wrong user id from environment: %s", settings.UserID)
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("Expected error for explicitly named missing config file")
	}
}
