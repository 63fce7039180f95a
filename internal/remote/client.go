// Package remote implements the thin adapter to the authoritative backend.
//
// The adapter translates table-name + user-id + optional filter into
// row-level backend calls and returns typed rows or a typed error. It has
// no retry or caching logic of its own - all resilience lives in the sync
// engine.
package remote

import (
	"context"
	"fmt"

	"github.com/umer2k200/lifesync/internal/record"
)

// Client is the row-level interface to the authoritative store.
type Client interface {
	// Select returns all rows for a (table, user) pair, optionally
	// narrowed by a filter.
	Select(ctx context.Context, table, userID string, filter *record.Filter) ([]record.Record, error)

	// Insert creates a row from the given fields, letting the backend
	// assign the id, and returns the stored row.
	Insert(ctx context.Context, table, userID string, fields map[string]any) (record.Record, error)

	// Update applies field changes to the row with the given id.
	Update(ctx context.Context, table, id string, fields map[string]any) error

	// Delete removes the row with the given id.
	// Deleting a missing row is not an error (idempotent).
	Delete(ctx context.Context, table, id string) error

	// Upsert inserts the row, or replaces it if a row with the same id
	// already exists.
	Upsert(ctx context.Context, table string, rec record.Record) error
}

// APIError is a backend rejection (anything outside the 2xx range).
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backend returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("backend returned status %d: %s", e.StatusCode, e.Message)
}
