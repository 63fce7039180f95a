// Package record defines the table-agnostic record model shared by the local
// store, the remote client, and the sync engine.
//
// A Record is a soft-typed field map: the sync core never interprets field
// semantics beyond the three keys it owns (id, user_id, synced). Everything
// else belongs to the application tables (goals, habits, tasks, ...).
package record

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Reserved field names owned by the sync core.
const (
	FieldID     = "id"
	FieldUserID = "user_id"
	FieldSynced = "synced"
)

// tempIDPrefix namespaces locally assigned ids so they can never collide
// with remote-assigned ones.
const tempIDPrefix = "temp_"

// Record represents one row of application data as a field map.
//
// Records are mutable in place and compared by id within a (table, user)
// scope. The synced flag marks whether the remote store has acknowledged
// the record's current field values.
type Record map[string]any

// New builds a record owned by userID from the given fields.
// The fields map is copied; id and synced are left for the caller to set.
func New(userID string, fields map[string]any) Record {
	rec := make(Record, len(fields)+3)
	for k, v := range fields {
		rec[k] = v
	}
	rec[FieldUserID] = userID
	return rec
}

// ID returns the record's id, or "" if unset.
func (r Record) ID() string {
	id, _ := r[FieldID].(string)
	return id
}

// UserID returns the record's owner, or "" if unset.
func (r Record) UserID() string {
	uid, _ := r[FieldUserID].(string)
	return uid
}

// Synced reports whether the remote store has acknowledged the record.
// The flag may arrive as a bool (in-process), a number (SQLite), or a
// string (JSON round trips); anything unrecognized counts as unsynced.
func (r Record) Synced() bool {
	switch v := r[FieldSynced].(type) {
	case bool:
		return v
	case int:
		return v != 0
	case int64:
		return v != 0
	case float64:
		return v != 0
	case string:
		return v == "true" || v == "1"
	default:
		return false
	}
}

// SetSynced sets the acknowledgement flag in place.
func (r Record) SetSynced(synced bool) {
	r[FieldSynced] = synced
}

// Clone returns a shallow copy of the record.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// WithoutSynced returns a copy of the record with the synced flag stripped,
// suitable as a remote payload (the backend has no synced column).
func (r Record) WithoutSynced() Record {
	out := r.Clone()
	delete(out, FieldSynced)
	return out
}

// Fields returns a copy of the record without any of the reserved keys.
// This is the payload shape for remote inserts, where the backend assigns
// the id and the caller supplies the owner separately.
func (r Record) Fields() map[string]any {
	out := make(map[string]any, len(r))
	for k, v := range r {
		switch k {
		case FieldID, FieldUserID, FieldSynced:
			continue
		}
		out[k] = v
	}
	return out
}

// NewTempID generates a locally unique id for a record created while the
// remote store is unreachable. The prefix plus timestamp plus random suffix
// scheme guarantees it cannot collide with a remote-assigned id.
func NewTempID() string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	return fmt.Sprintf("%s%d_%s", tempIDPrefix, time.Now().UnixNano(), suffix)
}

// IsTempID reports whether id was locally assigned by NewTempID.
func IsTempID(id string) bool {
	return strings.HasPrefix(id, tempIDPrefix)
}
