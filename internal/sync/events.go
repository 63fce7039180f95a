package sync

import "time"

// EventType identifies an engine event.
type EventType string

const (
	// EventSweepStarted fires when a full reconciliation sweep begins.
	EventSweepStarted EventType = "sweep_started"

	// EventSweepCompleted fires when a sweep finishes, with table stats.
	EventSweepCompleted EventType = "sweep_completed"

	// EventTableSynced fires after one table's pending records were
	// flushed and its authoritative snapshot refreshed.
	EventTableSynced EventType = "table_synced"

	// EventRecordPushed fires when a pending record was acknowledged.
	EventRecordPushed EventType = "record_pushed"

	// EventPushFailed fires when a pending record could not be pushed;
	// the record stays pending for the next sweep.
	EventPushFailed EventType = "push_failed"
)

// Event describes one observable engine action. Consumers (the dashboard
// feed, tests) receive events through Config.Events.
type Event struct {
	Type      EventType     `json:"type"`
	Timestamp time.Time     `json:"timestamp"`
	Table     string        `json:"table,omitempty"`
	RecordID  string        `json:"record_id,omitempty"`
	Tables    int           `json:"tables,omitempty"`
	Failed    int           `json:"failed,omitempty"`
	Pushed    int           `json:"pushed,omitempty"`
	Duration  time.Duration `json:"duration,omitempty"`
}
