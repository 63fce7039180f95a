package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/umer2k200/lifesync/internal/record"
)

// setupTestDB creates a temporary cache database for testing.
func setupTestDB(t *testing.T) *DB {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "cache.db")

	db, err := Open(dbPath)
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err := db.InitSchema(context.Background()); err != nil {
		t.Fatalf("failed to initialize schema: %v", err)
	}

	return db
}

func testRecord(id, userID string, synced bool, fields map[string]any) record.Record {
	rec := record.New(userID, fields)
	rec[record.FieldID] = id
	rec.SetSynced(synced)
	return rec
}

func TestLoadEmpty(t *testing.T) {
	db := setupTestDB(t)

	recs, err := db.Load(context.Background(), "tasks", "u1")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(recs) != 0 {
		t.Errorf("Expected empty result, got %d records", len(recs))
	}
}

func TestAppendLoadRoundTrip(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	rec := testRecord("t1", "u1", false, map[string]any{
		"title":  "Buy milk",
		"amount": 3.5,
		"done":   false,
	})
	if err := db.Append(ctx, "tasks", "u1", rec); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	recs, err := db.Load(ctx, "tasks", "u1")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("Expected 1 record, got %d", len(recs))
	}

	got := recs[0]
	if got.ID() != "t1" || got.UserID() != "u1" {
		t.Errorf("Identity fields wrong: id=%q user=%q", got.ID(), got.UserID())
	}
	if got.Synced() {
		t.Error("Expected synced=false")
	}
	if got["title"] != "Buy milk" {
		t.Errorf("title = %v", got["title"])
	}
	if got["amount"] != 3.5 {
		t.Errorf("amount = %v", got["amount"])
	}
	if got["done"] != false {
		t.Errorf("done = %v", got["done"])
	}
}

func TestAppendReplacesByID(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	if err := db.Append(ctx, "tasks", "u1",
		testRecord("t1", "u1", false, map[string]any{"title": "old"})); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if err := db.Append(ctx, "tasks", "u1",
		testRecord("t1", "u1", true, map[string]any{"title": "new"})); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	recs, err := db.Load(ctx, "tasks", "u1")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("Expected 1 record after replace, got %d", len(recs))
	}
	if recs[0]["title"] != "new" || !recs[0].Synced() {
		t.Errorf("Replace didn't take: %v", recs[0])
	}
}

func TestSaveReplacesSnapshot(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	if err := db.Append(ctx, "tasks", "u1",
		testRecord("stale", "u1", true, map[string]any{"title": "stale"})); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	snapshot := []record.Record{
		testRecord("a", "u1", true, map[string]any{"title": "one"}),
		testRecord("b", "u1", true, map[string]any{"title": "two"}),
	}
	if err := db.Save(ctx, "tasks", "u1", snapshot); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	recs, err := db.Load(ctx, "tasks", "u1")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("Expected 2 records, got %d", len(recs))
	}
	if recs[0].ID() != "a" || recs[1].ID() != "b" {
		t.Errorf("Expected insertion order a,b; got %s,%s", recs[0].ID(), recs[1].ID())
	}
}

func TestSaveScopedToTableAndUser(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	if err := db.Append(ctx, "tasks", "u2",
		testRecord("other-user", "u2", true, nil)); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if err := db.Append(ctx, "habits", "u1",
		testRecord("other-table", "u1", true, nil)); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	if err := db.Save(ctx, "tasks", "u1", nil); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	if recs, _ := db.Load(ctx, "tasks", "u2"); len(recs) != 1 {
		t.Errorf("Save leaked into another user's rows")
	}
	if recs, _ := db.Load(ctx, "habits", "u1"); len(recs) != 1 {
		t.Errorf("Save leaked into another table's rows")
	}
}

func TestGet(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	if err := db.Append(ctx, "tasks", "u1",
		testRecord("t1", "u1", false, map[string]any{"title": "x"})); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	rec, err := db.Get(ctx, "tasks", "u1", "t1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if rec == nil || rec["title"] != "x" {
		t.Errorf("Get returned %v", rec)
	}

	missing, err := db.Get(ctx, "tasks", "u1", "nope")
	if err != nil {
		t.Fatalf("Get of missing id errored: %v", err)
	}
	if missing != nil {
		t.Errorf("Expected nil for missing id, got %v", missing)
	}
}

func TestRemove(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	if err := db.Append(ctx, "tasks", "u1", testRecord("t1", "u1", false, nil)); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if err := db.Remove(ctx, "tasks", "u1", "t1"); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}

	recs, _ := db.Load(ctx, "tasks", "u1")
	if len(recs) != 0 {
		t.Errorf("Expected empty table after remove, got %d", len(recs))
	}

	// Removing again is idempotent.
	if err := db.Remove(ctx, "tasks", "u1", "t1"); err != nil {
		t.Errorf("Second remove errored: %v", err)
	}
}

func TestUnsynced(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	if err := db.Append(ctx, "tasks", "u1", testRecord("a", "u1", true, nil)); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if err := db.Append(ctx, "tasks", "u1", testRecord("b", "u1", false, nil)); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if err := db.Append(ctx, "tasks", "u1", testRecord("c", "u1", false, nil)); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	pending, err := db.Unsynced(ctx, "tasks", "u1")
	if err != nil {
		t.Fatalf("Unsynced failed: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("Expected 2 pending records, got %d", len(pending))
	}
	if pending[0].ID() != "b" || pending[1].ID() != "c" {
		t.Errorf("Expected pending b,c; got %s,%s", pending[0].ID(), pending[1].ID())
	}
}

func TestPendingCounts(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	_ = db.Append(ctx, "tasks", "u1", testRecord("a", "u1", false, nil))
	_ = db.Append(ctx, "tasks", "u1", testRecord("b", "u1", false, nil))
	_ = db.Append(ctx, "habits", "u1", testRecord("c", "u1", false, nil))
	_ = db.Append(ctx, "goals", "u1", testRecord("d", "u1", true, nil))
	_ = db.Append(ctx, "tasks", "u2", testRecord("e", "u2", false, nil))

	counts, err := db.PendingCounts(ctx, "u1")
	if err != nil {
		t.Fatalf("PendingCounts failed: %v", err)
	}

	if counts["tasks"] != 2 {
		t.Errorf("tasks pending = %d, want 2", counts["tasks"])
	}
	if counts["habits"] != 1 {
		t.Errorf("habits pending = %d, want 1", counts["habits"])
	}
	if _, ok := counts["goals"]; ok {
		t.Error("goals has nothing pending, must be absent")
	}
}
