// Package connectivity tracks network reachability and raises edge-triggered
// transition events.
//
// The monitor owns the process-wide connectivity state: it seeds the state
// with one probe at startup, re-probes on a ticker, and fires registered
// callbacks exactly once per offline-to-online transition. Reading the state
// through Online never triggers a probe - probing is the monitor's job, not
// the caller's.
package connectivity

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

// Prober answers a single reachability question.
type Prober interface {
	// Probe reports whether the network is currently reachable.
	// It must bound its own latency; a hung probe stalls the monitor.
	Probe(ctx context.Context) bool
}

// HTTPProber checks reachability with a HEAD request against a probe URL.
type HTTPProber struct {
	url    string
	client *http.Client
}

// NewHTTPProber creates a prober for the given URL. The timeout bounds each
// probe; anything under the tick interval is fine.
func NewHTTPProber(url string, timeout time.Duration) *HTTPProber {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPProber{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

// Probe implements Prober. Any response from the probe host counts as
// reachable, including error statuses - the question is connectivity, not
// backend health.
func (p *HTTPProber) Probe(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, p.url, nil)
	if err != nil {
		return false
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return false
	}
	_ = resp.Body.Close()
	return true
}

// Config holds monitor configuration.
type Config struct {
	// Interval is how often to re-probe reachability.
	Interval time.Duration

	// Logger for transition events.
	Logger *log.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Interval: 30 * time.Second,
		Logger:   log.New(os.Stderr, "[monitor] ", log.LstdFlags),
	}
}

// Monitor observes reachability transitions.
type Monitor struct {
	prober Prober
	config *Config

	online atomic.Bool

	mu       sync.Mutex
	onOnline []func()
	onChange []func(online bool)

	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
}

// New creates a Monitor. Start must be called before transitions are
// observed; Online is usable immediately and reports offline until the
// first probe lands.
func New(prober Prober, config *Config) *Monitor {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Logger == nil {
		config.Logger = log.New(os.Stderr, "[monitor] ", log.LstdFlags)
	}
	if config.Interval <= 0 {
		config.Interval = 30 * time.Second
	}
	return &Monitor{prober: prober, config: config}
}

// Online returns the last known reachability without probing.
func (m *Monitor) Online() bool {
	return m.online.Load()
}

// OnOnline registers a callback fired once per offline-to-online
// transition. Callbacks run on the monitor goroutine; long work should be
// handed off.
func (m *Monitor) OnOnline(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onOnline = append(m.onOnline, fn)
}

// OnChange registers a callback fired on every transition, in either
// direction.
func (m *Monitor) OnChange(fn func(online bool)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onChange = append(m.onChange, fn)
}

// Start seeds the state with one probe, then begins the probe loop.
// The seed sets initial state without firing transition callbacks; callers
// wanting an initial sync on a connected start should run one explicitly.
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return fmt.Errorf("monitor already started")
	}
	m.started = true
	m.mu.Unlock()

	m.online.Store(m.prober.Probe(ctx))
	m.config.Logger.Printf("Initial connectivity: online=%v", m.Online())

	loopCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel

	m.wg.Add(1)
	go m.loop(loopCtx)

	return nil
}

// Stop halts the probe loop and waits for it to exit.
func (m *Monitor) Stop() {
	m.mu.Lock()
	cancel := m.cancel
	m.started = false
	m.cancel = nil
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	m.wg.Wait()
}

// Refresh probes once, updates the state, and fires transition callbacks if
// the state changed. The probe loop calls this on every tick; one-shot
// commands call it directly before deciding remote participation.
func (m *Monitor) Refresh(ctx context.Context) bool {
	now := m.prober.Probe(ctx)
	was := m.online.Swap(now)

	if was == now {
		return now
	}

	m.config.Logger.Printf("Connectivity changed: online=%v", now)

	m.mu.Lock()
	change := make([]func(bool), len(m.onChange))
	copy(change, m.onChange)
	var online []func()
	if !was && now {
		online = make([]func(), len(m.onOnline))
		copy(online, m.onOnline)
	}
	m.mu.Unlock()

	for _, fn := range change {
		fn(now)
	}
	for _, fn := range online {
		fn()
	}

	return now
}

func (m *Monitor) loop(ctx context.Context) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Refresh(ctx)
		}
	}
}
