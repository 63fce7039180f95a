// Package sync provides the offline-first synchronization engine between the
// local record cache and the authoritative remote store.
//
// # Overview
//
// The engine decides, for every read and write, whether to hit the network
// or the local cache, how to merge results, and how to recover from partial
// failures. Writes always land locally first; the remote attempt is best
// effort. Reads prefer the remote store and fall back to the cache without
// ever failing the caller.
//
// # Architecture
//
//	UI / notification consumers
//	        ↓
//	   sync.Engine ── reads/writes ──→ store.DB (always)
//	        │                          remote.Client (best effort, if online)
//	        ↑
//	connectivity.Monitor ── offline→online edge ──→ SyncAll sweep
//
// # Usage
//
//	cache, err := store.Open(".lifesync/cache.db")
//	if err != nil {
//	    return err
//	}
//	defer cache.Close()
//
//	if err := cache.InitSchema(ctx); err != nil {
//	    return err
//	}
//
//	engine := sync.New(cache, restClient, monitor, nil)
//
//	rec := engine.Insert(ctx, "tasks", "u1", map[string]any{"title": "Buy milk"})
//	rows := engine.Fetch(ctx, "tasks", "u1", nil)
//
//	monitor.OnOnline(func() {
//	    go engine.SyncAll(context.Background())
//	})
//
// # Error Handling
//
// The engine deliberately has no fatal error path. Local storage errors are
// logged and degrade to empty reads; remote errors are swallowed at the
// operation boundary after the local result is secured; per-table sweep
// failures are logged and the sweep continues with the remaining tables.
// The user-visible failure mode is stale or eventually-consistent data,
// never an error surfaced from the sync core.
//
// # Concurrency
//
// All entry points are safe for concurrent use. Callers on different tables
// interleave freely (the cache runs in WAL mode); the full reconciliation
// sweep is guarded so at most one runs per process, and a second SyncAll
// call while one is active returns immediately as a no-op.
package sync
