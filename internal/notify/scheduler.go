// Package notify recomputes upcoming reminders from cached table snapshots.
//
// The scheduler is a consumer of the sync engine's read API, not part of the
// sync core: it periodically asks the engine for table snapshots and decides
// which reminders are due inside the lookahead window. Because the engine's
// reads never fail, the scheduler keeps working offline on whatever the
// cache holds.
package notify

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/umer2k200/lifesync/internal/record"
)

// Fields the scheduler understands on any table's records. Records without
// a remind_at are simply not reminder-bearing.
const (
	fieldRemindAt  = "remind_at"
	fieldCompleted = "completed"
	fieldTitle     = "title"
	fieldName      = "name"
)

// Snapshots is the read surface the scheduler consumes.
// *sync.Engine satisfies it.
type Snapshots interface {
	Fetch(ctx context.Context, table, userID string, filter *record.Filter) []record.Record
}

// Reminder is one due notification.
type Reminder struct {
	Table    string
	RecordID string
	UserID   string
	Title    string
	At       time.Time
}

// Config holds scheduler configuration.
type Config struct {
	// Tables to scan for reminder-bearing records.
	Tables []string

	// Interval between scans.
	Interval time.Duration

	// Lookahead is how far into the future a reminder may fire early.
	// The same duration bounds the backward grace: a reminder whose time
	// passed less than Lookahead ago (e.g. while the process was down)
	// still fires; anything older is considered missed.
	Lookahead time.Duration

	// Identity resolves the current user; an empty result skips the scan.
	Identity func() string

	// Notify receives each due reminder exactly once per process.
	Notify func(Reminder)

	// Logger for scheduler activity.
	Logger *log.Logger
}

// DefaultConfig returns sensible defaults with no identity or sink bound.
func DefaultConfig() *Config {
	return &Config{
		Interval:  time.Minute,
		Lookahead: 15 * time.Minute,
		Logger:    log.New(os.Stderr, "[notify] ", log.LstdFlags),
	}
}

// Scheduler periodically scans table snapshots for due reminders.
type Scheduler struct {
	source Snapshots
	config *Config

	mu    sync.Mutex
	fired map[string]bool

	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
}

// New creates a Scheduler over the given snapshot source.
func New(source Snapshots, config *Config) *Scheduler {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Logger == nil {
		config.Logger = log.New(os.Stderr, "[notify] ", log.LstdFlags)
	}
	if config.Interval <= 0 {
		config.Interval = time.Minute
	}
	if config.Lookahead <= 0 {
		config.Lookahead = 15 * time.Minute
	}
	return &Scheduler{
		source: source,
		config: config,
		fired:  make(map[string]bool),
	}
}

// Start begins the scan loop. The first scan runs immediately.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return fmt.Errorf("scheduler already started")
	}
	s.started = true
	s.mu.Unlock()

	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(1)
	go s.loop(loopCtx)

	return nil
}

// Stop halts the scan loop and waits for it to exit.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.started = false
	s.cancel = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.wg.Wait()
}

func (s *Scheduler) loop(ctx context.Context) {
	defer s.wg.Done()

	s.Scan(ctx)

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Scan(ctx)
		}
	}
}

// Scan runs one pass over all configured tables and fires due reminders.
func (s *Scheduler) Scan(ctx context.Context) {
	userID := ""
	if s.config.Identity != nil {
		userID = s.config.Identity()
	}
	if userID == "" || s.config.Notify == nil {
		return
	}

	now := time.Now()
	horizon := now.Add(s.config.Lookahead)

	for _, table := range s.config.Tables {
		for _, rec := range s.source.Fetch(ctx, table, userID, nil) {
			s.consider(table, userID, rec, now, horizon)
		}
	}
}

func (s *Scheduler) consider(table, userID string, rec record.Record, now, horizon time.Time) {
	remindAt, ok := parseTime(rec[fieldRemindAt])
	if !ok {
		return
	}
	if done, _ := rec[fieldCompleted].(bool); done {
		return
	}
	if remindAt.After(horizon) || remindAt.Before(now.Add(-s.config.Lookahead)) {
		return
	}

	key := table + "/" + rec.ID() + "/" + remindAt.UTC().Format(time.RFC3339)
	s.mu.Lock()
	already := s.fired[key]
	if !already {
		s.fired[key] = true
	}
	s.mu.Unlock()
	if already {
		return
	}

	s.config.Logger.Printf("Reminder due: %s/%s at %s", table, rec.ID(), remindAt.Format(time.RFC3339))
	s.config.Notify(Reminder{
		Table:    table,
		RecordID: rec.ID(),
		UserID:   userID,
		Title:    titleOf(rec),
		At:       remindAt,
	})
}

func titleOf(rec record.Record) string {
	if t, ok := rec[fieldTitle].(string); ok && t != "" {
		return t
	}
	if n, ok := rec[fieldName].(string); ok {
		return n
	}
	return ""
}

func parseTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case string:
		if parsed, err := time.Parse(time.RFC3339, t); err == nil {
			return parsed, true
		}
	}
	return time.Time{}, false
}
