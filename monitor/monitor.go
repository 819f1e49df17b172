// Package monitor periodically fetches DarkSky forecasts for a set of
// locations, keeps the latest result per location in memory, persists it to
// PostgreSQL when configured and serves it over HTTP and WebSocket.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/devskill-org/darksky/darksky"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// PeriodicTask represents a task that runs periodically with an optional initial delay
type PeriodicTask struct {
	name         string
	initialDelay time.Duration
	interval     time.Duration
	runFunc      func()
}

// run executes the periodic task in a loop, respecting the initial delay and context cancellation
func (pt *PeriodicTask) run(ctx context.Context, stopChan <-chan struct{}, logger *log.Logger) {
	if pt.initialDelay > 0 {
		logger.Printf("[%s] Waiting for initial delay: %v", pt.name, pt.initialDelay)
		select {
		case <-time.After(pt.initialDelay):
			pt.runFunc()
		case <-ctx.Done():
			logger.Printf("[%s] Stopped during initial delay due to context cancellation", pt.name)
			return
		case <-stopChan:
			logger.Printf("[%s] Stopped during initial delay due to stop signal", pt.name)
			return
		}
	} else {
		pt.runFunc()
	}

	ticker := time.NewTicker(pt.interval)
	defer ticker.Stop()

	logger.Printf("[%s] Started with interval: %v", pt.name, pt.interval)

	for {
		select {
		case <-ticker.C:
			pt.runFunc()
		case <-ctx.Done():
			logger.Printf("[%s] Stopped due to context cancellation", pt.name)
			return
		case <-stopChan:
			logger.Printf("[%s] Stopped due to stop signal", pt.name)
			return
		}
	}
}

// Snapshot is the latest fetch result for one location.
type Snapshot struct {
	Location  Location          `json:"location"`
	RunID     string            `json:"run_id"`
	FetchedAt time.Time         `json:"fetched_at"`
	Forecast  *darksky.Forecast `json:"forecast,omitempty"`
	Error     string            `json:"error,omitempty"`
}

// RunSummary describes the last completed fetch run.
type RunSummary struct {
	ID        string        `json:"id"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
	Fetched   int           `json:"fetched"`
	Failed    int           `json:"failed"`
}

// Status represents the current status of the monitor
type Status struct {
	IsRunning      bool        `json:"is_running"`
	LocationsCount int         `json:"locations_count"`
	FetchedCount   int         `json:"fetched_count"`
	HasStore       bool        `json:"has_store"`
	LastRun        *RunSummary `json:"last_run,omitempty"`
}

// Monitor fetches forecasts for the configured locations.
type Monitor struct {
	config  *Config
	client  *darksky.Client
	limiter *rate.Limiter

	// State
	snapshots map[string]*Snapshot
	lastRun   *RunSummary
	isRunning bool
	stopChan  chan struct{}
	mu        sync.RWMutex

	webServer *WebServer
	store     *Store
	logger    *log.Logger
}

// NewMonitor creates a new monitor instance
func NewMonitor(config *Config, logger *log.Logger) *Monitor {
	if logger == nil {
		logger = log.Default()
	}

	client := darksky.NewClientWithHTTPClient(&http.Client{Timeout: config.APITimeout}, config.UserAgent)
	client.SetBaseURL(config.BaseURL)

	return &Monitor{
		config:    config,
		client:    client,
		limiter:   rate.NewLimiter(rate.Limit(config.RequestsPerSecond), config.Burst),
		snapshots: make(map[string]*Snapshot),
		stopChan:  make(chan struct{}),
		logger:    logger,
	}
}

// NewMonitorWithWebServer creates a new monitor instance with the HTTP server enabled
func NewMonitorWithWebServer(config *Config, logger *log.Logger) *Monitor {
	m := NewMonitor(config, logger)
	m.webServer = NewWebServer(m, config.HealthCheckPort)
	return m
}

// SetStore attaches persistent storage. Every fetched forecast is saved to it.
func (m *Monitor) SetStore(store *Store) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.store = store
}

// GetConfig returns the current configuration
func (m *Monitor) GetConfig() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config
}

func (m *Monitor) getStore() *Store {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.store
}

func (m *Monitor) debugf(format string, args ...any) {
	if m.GetConfig().LogLevel == "debug" {
		m.logger.Printf(format, args...)
	}
}

func (m *Monitor) getInitialDelay(now time.Time, delayInterval time.Duration) time.Duration {
	top := time.Date(now.Year(), now.Month(), now.Day(), now.Hour(), 0, 0, 0, now.Location())
	delay := now.Sub(top)
	for delay > 0 {
		delay = delay - delayInterval
	}
	return -delay
}

// RunFetch fetches every configured location once. Locations are fetched
// concurrently, paced by the rate limiter. The returned error joins the
// failures of individual locations; successful locations are still stored.
func (m *Monitor) RunFetch(ctx context.Context) error {
	config := m.GetConfig()
	opts := config.Options()

	summary := &RunSummary{
		ID:        uuid.New().String(),
		StartedAt: time.Now().UTC(),
	}
	m.debugf("Fetch run %s started for %d locations", summary.ID, len(config.Locations))

	var (
		wg     sync.WaitGroup
		errsMu sync.Mutex
		errs   []error
	)
	for _, loc := range config.Locations {
		wg.Add(1)
		go func() {
			defer wg.Done()
			snap, err := m.fetchLocation(ctx, config, summary.ID, loc, opts)
			m.publish(snap)

			errsMu.Lock()
			defer errsMu.Unlock()
			if err != nil {
				summary.Failed++
				errs = append(errs, fmt.Errorf("%s: %w", loc.Name, err))
				return
			}
			summary.Fetched++
		}()
	}
	wg.Wait()

	summary.Duration = time.Since(summary.StartedAt)

	m.mu.Lock()
	m.lastRun = summary
	m.mu.Unlock()

	m.logger.Printf("Fetch run %s finished: %d fetched, %d failed in %s",
		summary.ID, summary.Fetched, summary.Failed, summary.Duration.Round(time.Millisecond))

	return errors.Join(errs...)
}

func (m *Monitor) fetchLocation(ctx context.Context, config *Config, runID string, loc Location, opts darksky.Options) (*Snapshot, error) {
	snap := &Snapshot{Location: loc, RunID: runID}

	forecast, err := m.fetchForecast(ctx, config, loc, opts)
	snap.FetchedAt = time.Now().UTC()
	if err != nil {
		m.logger.Printf("Failed to fetch forecast for %s: %v", loc.Name, err)
		snap.Error = err.Error()
		m.storeSnapshot(snap)
		return snap, err
	}
	snap.Forecast = forecast

	m.debugf("Fetched forecast for %s (%d hourly, %d alerts)", loc.Name, hourlyCount(forecast), len(forecast.Alerts))

	if store := m.getStore(); store != nil {
		if err := store.SaveForecast(ctx, runID, loc, snap.FetchedAt, forecast); err != nil {
			m.logger.Printf("Failed to save forecast for %s: %v", loc.Name, err)
		}
	}

	m.storeSnapshot(snap)
	return snap, nil
}

func (m *Monitor) fetchForecast(ctx context.Context, config *Config, loc Location, opts darksky.Options) (*darksky.Forecast, error) {
	if err := m.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait canceled: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, config.APITimeout)
	defer cancel()

	return m.client.GetForecastWithOptions(ctx, config.Token, loc.Latitude, loc.Longitude,
		func(darksky.Options) darksky.Options { return opts })
}

// storeSnapshot keeps a failed fetch from replacing an earlier good forecast:
// the error is recorded but the previous forecast stays available.
func (m *Monitor) storeSnapshot(snap *Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if snap.Forecast == nil {
		if prev, ok := m.snapshots[snap.Location.Name]; ok && prev.Forecast != nil {
			kept := *prev
			kept.Error = snap.Error
			m.snapshots[snap.Location.Name] = &kept
			return
		}
	}
	m.snapshots[snap.Location.Name] = snap
}

func (m *Monitor) publish(snap *Snapshot) {
	if m.webServer != nil {
		m.webServer.Publish(snap)
	}
}

// Latest returns the latest snapshot for the named location.
func (m *Monitor) Latest(name string) (Snapshot, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snap, ok := m.snapshots[name]
	if !ok {
		return Snapshot{}, false
	}
	return *snap, true
}

// Snapshots returns a copy of the latest snapshots of all locations, in
// configuration order.
func (m *Monitor) Snapshots() []Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snaps := make([]Snapshot, 0, len(m.snapshots))
	for _, loc := range m.config.Locations {
		if snap, ok := m.snapshots[loc.Name]; ok {
			snaps = append(snaps, *snap)
		}
	}
	return snaps
}

// Start begins the monitor's periodic tasks and blocks until they stop
func (m *Monitor) Start(ctx context.Context, serverOnly bool) error {
	m.mu.Lock()
	if m.isRunning {
		m.mu.Unlock()
		return fmt.Errorf("monitor is already running")
	}
	m.isRunning = true
	m.stopChan = make(chan struct{})
	m.mu.Unlock()

	config := m.GetConfig()

	if m.getStore() == nil && config.PostgresConnString != "" {
		store, err := OpenStore(ctx, config.PostgresConnString, m.logger)
		if err != nil {
			m.logger.Printf("Persistence disabled: %v", err)
		} else {
			m.SetStore(store)
		}
	}

	if m.webServer != nil {
		err := m.webServer.Start()
		if err != nil {
			m.logger.Printf("Failed to start web server: %v", err)
		} else {
			m.logger.Printf("Web server started on port %d", m.webServer.port)
		}
		if serverOnly {
			return err
		}
	}

	tasks := []PeriodicTask{
		{
			name:         "ForecastFetch",
			initialDelay: 0, // Run immediately
			interval:     config.UpdateInterval,
			runFunc: func() {
				if err := m.RunFetch(ctx); err != nil {
					m.logger.Printf("Fetch run completed with errors: %v", err)
				}
			},
		},
	}

	if store := m.getStore(); store != nil {
		tasks = append(tasks, PeriodicTask{
			name:         "StorePrune",
			initialDelay: m.getInitialDelay(time.Now(), time.Hour),
			interval:     time.Hour,
			runFunc: func() {
				before := time.Now().Add(-RetentionPeriod)
				n, err := store.Prune(ctx, before)
				if err != nil {
					m.logger.Printf("Failed to prune stored forecasts: %v", err)
					return
				}
				m.debugf("Pruned %d stored datapoints older than %s", n, before.Format(time.RFC3339))
			},
		})
	}

	var wg sync.WaitGroup
	for _, task := range tasks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			task.run(ctx, m.stopChan, m.logger)
		}()
	}

	wg.Wait()

	m.logger.Printf("All periodic tasks stopped")
	m.stop()
	return nil
}

// Stop gracefully stops the monitor
func (m *Monitor) Stop() {
	m.stop()
}

func (m *Monitor) stop() {
	m.mu.Lock()
	if !m.isRunning {
		m.mu.Unlock()
		return
	}

	m.isRunning = false

	select {
	case <-m.stopChan:
	default:
		close(m.stopChan)
	}

	webServer, store := m.webServer, m.store
	m.store = nil
	m.mu.Unlock()

	// Shutdown waits for in-flight handlers, which read the monitor state
	if webServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := webServer.Stop(ctx); err != nil {
			m.logger.Printf("Error stopping web server: %v", err)
		}
	}

	if store != nil {
		if err := store.Close(); err != nil {
			m.logger.Printf("Error closing store: %v", err)
		}
	}
}

// IsRunning returns whether the monitor is currently running
func (m *Monitor) IsRunning() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.isRunning
}

// GetStatus returns the current status of the monitor
func (m *Monitor) GetStatus() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()

	status := Status{
		IsRunning:      m.isRunning,
		LocationsCount: len(m.config.Locations),
		HasStore:       m.store != nil,
	}
	for _, snap := range m.snapshots {
		if snap.Forecast != nil {
			status.FetchedCount++
		}
	}
	if m.lastRun != nil {
		run := *m.lastRun
		status.LastRun = &run
	}
	return status
}

func hourlyCount(f *darksky.Forecast) int {
	if f.Hourly == nil {
		return 0
	}
	return len(f.Hourly.Data)
}
