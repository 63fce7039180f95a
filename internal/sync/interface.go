package sync

import (
	"context"
	"log"
	"os"

	"github.com/umer2k200/lifesync/internal/record"
)

// Store is the durable local cache the engine reads and writes.
// *store.DB satisfies it.
type Store interface {
	// Load returns all records for a (table, user) pair; a table with
	// nothing persisted yields an empty slice, not an error.
	Load(ctx context.Context, table, userID string) ([]record.Record, error)

	// Get retrieves a single record by id, or (nil, nil) when absent.
	Get(ctx context.Context, table, userID, id string) (record.Record, error)

	// Save replaces the persisted set for a (table, user) pair.
	Save(ctx context.Context, table, userID string, recs []record.Record) error

	// Append adds or replaces a single record by id.
	Append(ctx context.Context, table, userID string, rec record.Record) error

	// Remove deletes a record by id (idempotent).
	Remove(ctx context.Context, table, userID, id string) error

	// Unsynced returns the records awaiting remote acknowledgement.
	Unsynced(ctx context.Context, table, userID string) ([]record.Record, error)
}

// Connectivity reports the last known network reachability.
// *connectivity.Monitor satisfies it.
type Connectivity interface {
	Online() bool
}

// DefaultTables returns the fixed registry of tables the full
// reconciliation sweep covers. Ad hoc tables outside the registry can still
// be read and written through the engine; they just aren't swept.
func DefaultTables() []string {
	return []string{"goals", "habits", "tasks", "expenses", "prayer_logs"}
}

// Config holds engine configuration.
type Config struct {
	// Tables is the sweep registry, processed in order.
	// Defaults to DefaultTables().
	Tables []string

	// Identity resolves the current user for reconciliation sweeps.
	// A nil func or empty result aborts the sweep.
	Identity func() string

	// Logger for engine activity. Defaults to a stderr logger.
	Logger *log.Logger

	// Events receives engine events (sweep lifecycle, pushes,
	// failures). Optional; nil disables emission. The sink is called
	// synchronously and must not block.
	Events func(Event)
}

// DefaultConfig returns sensible defaults with no identity bound.
func DefaultConfig() *Config {
	return &Config{
		Tables: DefaultTables(),
		Logger: log.New(os.Stderr, "[sync] ", log.LstdFlags),
	}
}
