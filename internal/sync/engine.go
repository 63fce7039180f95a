package sync

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync/atomic"
	"time"

	"github.com/umer2k200/lifesync/internal/record"
	"github.com/umer2k200/lifesync/internal/remote"
)

// Engine orchestrates reads, writes, and reconciliation between the local
// cache and the remote store. Construct one instance per process and share
// it; the sweep guard and connectivity state live on the instance, not in
// package globals.
type Engine struct {
	store  Store
	remote remote.Client
	conn   Connectivity
	config *Config

	// syncing guards the one-sweep-at-a-time invariant.
	syncing atomic.Bool
}

// New creates an Engine. If config is nil, DefaultConfig is used; a nil
// logger falls back to stderr.
func New(store Store, remoteClient remote.Client, conn Connectivity, config *Config) *Engine {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Logger == nil {
		config.Logger = log.New(os.Stderr, "[sync] ", log.LstdFlags)
	}
	if len(config.Tables) == 0 {
		config.Tables = DefaultTables()
	}
	return &Engine{
		store:  store,
		remote: remoteClient,
		conn:   conn,
		config: config,
	}
}

// Online returns the last known connectivity state.
func (e *Engine) Online() bool {
	return e.conn != nil && e.conn.Online()
}

// Tables returns a copy of the sweep registry.
func (e *Engine) Tables() []string {
	out := make([]string, len(e.config.Tables))
	copy(out, e.config.Tables)
	return out
}

// Fetch returns the records for a (table, user) pair, preferring the remote
// store and falling back to the local cache. It never fails the caller: a
// remote error or an unreadable cache degrades to the best available data,
// down to an empty slice.
//
// The filter applies on both paths - remotely as query parameters, locally
// as a predicate over the cached records - so an offline read returns the
// same selection a connected one would, just possibly stale.
func (e *Engine) Fetch(ctx context.Context, table, userID string, filter *record.Filter) []record.Record {
	if e.Online() {
		rows, err := e.remote.Select(ctx, table, userID, filter)
		if err == nil {
			for _, row := range rows {
				row.SetSynced(true)
			}
			e.persistFetched(ctx, table, userID, filter, rows)
			return rows
		}
		e.config.Logger.Printf("WARNING: remote fetch for %s failed, serving cache: %v", table, err)
	}

	local, err := e.store.Load(ctx, table, userID)
	if err != nil {
		e.config.Logger.Printf("WARNING: cache read for %s failed: %v", table, err)
		return []record.Record{}
	}

	if filter.Empty() {
		return local
	}
	out := make([]record.Record, 0, len(local))
	for _, rec := range local {
		if filter.Match(rec) {
			out = append(out, rec)
		}
	}
	return out
}

// Insert creates a record, locally first and unconditionally, then best
// effort remotely. The returned record is immediately usable: the
// remote-assigned row when the backend acknowledged it, otherwise the
// temp-id record with synced=false awaiting the next sweep.
func (e *Engine) Insert(ctx context.Context, table, userID string, fields map[string]any) record.Record {
	rec := record.New(userID, fields)
	rec[record.FieldID] = record.NewTempID()
	rec.SetSynced(false)

	// The local write must never be the reason the caller fails.
	if err := e.store.Append(ctx, table, userID, rec); err != nil {
		e.config.Logger.Printf("WARNING: local insert into %s failed: %v", table, err)
	}

	if !e.Online() {
		return rec
	}

	remoteRec, err := e.remote.Insert(ctx, table, userID, fields)
	if err != nil {
		e.config.Logger.Printf("WARNING: remote insert into %s failed, keeping pending record %s: %v",
			table, rec.ID(), err)
		return rec
	}

	if err := e.adoptRemote(ctx, table, userID, rec.ID(), remoteRec); err != nil {
		e.config.Logger.Printf("WARNING: failed to adopt remote record %s/%s: %v",
			table, remoteRec.ID(), err)
	}
	return remoteRec
}

// Update merges field changes into the cached record, marks it pending, and
// attempts the remote update. A remote acknowledgement flips the record back
// to synced so sweeps don't re-push it; a failure leaves it pending for
// retry. An id unknown to the cache is a silent local no-op, but the remote
// attempt still proceeds.
//
// Returns the merged record, or nil when the id was not cached.
func (e *Engine) Update(ctx context.Context, table, userID, id string, changes map[string]any) record.Record {
	var merged record.Record

	local, err := e.store.Get(ctx, table, userID, id)
	if err != nil {
		e.config.Logger.Printf("WARNING: cache lookup for %s/%s failed: %v", table, id, err)
	} else if local != nil {
		merged = local.Clone()
		for k, v := range changes {
			merged[k] = v
		}
		// Changes can't reassign ownership or identity.
		merged[record.FieldID] = id
		merged[record.FieldUserID] = userID
		merged.SetSynced(false)
		if err := e.store.Append(ctx, table, userID, merged); err != nil {
			e.config.Logger.Printf("WARNING: local update of %s/%s failed: %v", table, id, err)
		}
	}

	if !e.Online() {
		return merged
	}

	if err := e.remote.Update(ctx, table, id, changes); err != nil {
		e.config.Logger.Printf("WARNING: remote update of %s/%s failed, record stays pending: %v",
			table, id, err)
		return merged
	}

	if merged != nil {
		merged.SetSynced(true)
		if err := e.store.Append(ctx, table, userID, merged); err != nil {
			e.config.Logger.Printf("WARNING: failed to mark %s/%s synced: %v", table, id, err)
		}
	}
	return merged
}

// Delete removes the record locally and unconditionally, then best effort
// remotely. A failed remote delete is swallowed: the deletion is final from
// the user's perspective, though the row may resurface from the next
// authoritative snapshot if the remote delete never landed.
func (e *Engine) Delete(ctx context.Context, table, userID, id string) {
	if err := e.store.Remove(ctx, table, userID, id); err != nil {
		e.config.Logger.Printf("WARNING: local delete of %s/%s failed: %v", table, id, err)
	}

	if !e.Online() {
		return
	}

	if err := e.remote.Delete(ctx, table, id); err != nil {
		e.config.Logger.Printf("WARNING: remote delete of %s/%s failed, not retried: %v",
			table, id, err)
	}
}

// SyncAll runs one full reconciliation sweep across the table registry.
//
// The sweep is a no-op, not an error, when one is already running, when
// connectivity is down, or when no user identity resolves. Tables are
// processed sequentially in registry order; one table's failure is logged
// and the sweep continues with the next.
func (e *Engine) SyncAll(ctx context.Context) {
	if !e.syncing.CompareAndSwap(false, true) {
		e.config.Logger.Printf("Sweep already in progress, skipping")
		return
	}
	defer e.syncing.Store(false)

	if !e.Online() {
		e.config.Logger.Printf("Offline, skipping sweep")
		return
	}

	userID := ""
	if e.config.Identity != nil {
		userID = e.config.Identity()
	}
	if userID == "" {
		e.config.Logger.Printf("No user identity, skipping sweep")
		return
	}

	start := time.Now()
	e.config.Logger.Printf("Starting full sweep for user %s (%d tables)", userID, len(e.config.Tables))
	e.emit(Event{Type: EventSweepStarted, Tables: len(e.config.Tables)})

	var failed int
	for _, table := range e.config.Tables {
		if err := e.syncTable(ctx, table, userID); err != nil {
			e.config.Logger.Printf("WARNING: failed to sync table %s: %v", table, err)
			failed++
		}
	}

	elapsed := time.Since(start)
	e.config.Logger.Printf("Full sweep complete: tables=%d (failed=%d) in %v",
		len(e.config.Tables), failed, elapsed.Round(time.Millisecond))
	e.emit(Event{
		Type:     EventSweepCompleted,
		Tables:   len(e.config.Tables),
		Failed:   failed,
		Duration: elapsed,
	})
}

// syncTable reconciles one table: flush pending local mutations to the
// remote store, then adopt the authoritative remote snapshot. Records that
// fail to push stay pending and survive the snapshot.
func (e *Engine) syncTable(ctx context.Context, table, userID string) error {
	pending, err := e.store.Unsynced(ctx, table, userID)
	if err != nil {
		return fmt.Errorf("failed to load pending records: %w", err)
	}

	var pushed int
	for _, rec := range pending {
		if err := e.pushRecord(ctx, table, userID, rec); err != nil {
			e.config.Logger.Printf("WARNING: failed to push %s/%s: %v", table, rec.ID(), err)
			e.emit(Event{Type: EventPushFailed, Table: table, RecordID: rec.ID()})
			continue
		}
		pushed++
		e.emit(Event{Type: EventRecordPushed, Table: table, RecordID: rec.ID()})
	}

	// Remote is authoritative once pending writes have been flushed.
	rows, err := e.remote.Select(ctx, table, userID, nil)
	if err != nil {
		return fmt.Errorf("failed to fetch snapshot: %w", err)
	}
	for _, row := range rows {
		row.SetSynced(true)
	}
	if err := e.saveSnapshot(ctx, table, userID, rows); err != nil {
		return fmt.Errorf("failed to persist snapshot: %w", err)
	}

	e.emit(Event{Type: EventTableSynced, Table: table, Pushed: pushed})
	return nil
}

// pushRecord flushes one pending record. Temp-id records become remote
// inserts (the backend assigns the real id, which replaces the temp row);
// everything else is an idempotent upsert by id.
func (e *Engine) pushRecord(ctx context.Context, table, userID string, rec record.Record) error {
	if record.IsTempID(rec.ID()) {
		remoteRec, err := e.remote.Insert(ctx, table, userID, rec.Fields())
		if err != nil {
			return err
		}
		return e.adoptRemote(ctx, table, userID, rec.ID(), remoteRec)
	}

	if err := e.remote.Upsert(ctx, table, rec.WithoutSynced()); err != nil {
		return err
	}
	rec.SetSynced(true)
	return e.store.Append(ctx, table, userID, rec)
}

// adoptRemote swaps a temp-id row for its remote-assigned counterpart.
func (e *Engine) adoptRemote(ctx context.Context, table, userID, tempID string, remoteRec record.Record) error {
	if err := e.store.Remove(ctx, table, userID, tempID); err != nil {
		return err
	}
	remoteRec[record.FieldUserID] = userID
	remoteRec.SetSynced(true)
	return e.store.Append(ctx, table, userID, remoteRec)
}

// persistFetched stores a successful remote read. An unfiltered result is
// the authoritative snapshot; a filtered one is merged record by record so
// unmatched cached rows are never dropped. A remote row whose cached
// counterpart is still pending is skipped: the local mutation hasn't been
// acknowledged yet, and adopting the remote version would silently discard
// it before any sweep could push it.
func (e *Engine) persistFetched(ctx context.Context, table, userID string, filter *record.Filter, rows []record.Record) {
	if filter.Empty() {
		if err := e.saveSnapshot(ctx, table, userID, rows); err != nil {
			e.config.Logger.Printf("WARNING: failed to cache %s snapshot: %v", table, err)
		}
		return
	}
	for _, row := range rows {
		cached, err := e.store.Get(ctx, table, userID, row.ID())
		if err != nil {
			e.config.Logger.Printf("WARNING: cache lookup for %s/%s failed: %v", table, row.ID(), err)
			continue
		}
		if cached != nil && !cached.Synced() {
			continue
		}
		if err := e.store.Append(ctx, table, userID, row); err != nil {
			e.config.Logger.Printf("WARNING: failed to cache %s/%s: %v", table, row.ID(), err)
		}
	}
}

// saveSnapshot replaces the cached snapshot while keeping the cache the
// union of remote state and pending local mutations: unsynced records are
// re-applied on top of the snapshot, never silently dropped.
func (e *Engine) saveSnapshot(ctx context.Context, table, userID string, rows []record.Record) error {
	pending, err := e.store.Unsynced(ctx, table, userID)
	if err != nil {
		e.config.Logger.Printf("WARNING: failed to load pending records for %s before snapshot: %v",
			table, err)
	}

	if err := e.store.Save(ctx, table, userID, rows); err != nil {
		return err
	}

	for _, rec := range pending {
		if err := e.store.Append(ctx, table, userID, rec); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) emit(ev Event) {
	if e.config.Events == nil {
		return
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	e.config.Events(ev)
}
