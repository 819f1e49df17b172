package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/devskill-org/darksky/darksky"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// RequestIDHeader carries the request ID on requests and responses.
const RequestIDHeader = "X-Request-ID"

// WebServer provides HTTP endpoints for health checking, forecasts and live updates
type WebServer struct {
	monitor   *Monitor
	server    *http.Server
	port      int
	startTime time.Time
	upgrader  websocket.Upgrader
	clients   sync.Map // *wsClient -> struct{}
	broadcast chan []byte

	mu   sync.Mutex
	done chan struct{}
}

// wsClient serializes writes to one connection; gorilla/websocket allows a
// single concurrent writer.
type wsClient struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *wsClient) write(message []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, message)
}

func (c *wsClient) writeJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(v)
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string        `json:"status"`
	Timestamp string        `json:"timestamp"`
	Version   string        `json:"version,omitempty"`
	Monitor   MonitorHealth `json:"monitor"`
	System    SystemHealth  `json:"system"`
}

// MonitorHealth represents monitor-specific health information
type MonitorHealth struct {
	IsRunning      bool       `json:"is_running"`
	LocationsCount int        `json:"locations_count"`
	FetchedCount   int        `json:"fetched_count"`
	LastRun        *time.Time `json:"last_run,omitempty"`
	UpdateInterval string     `json:"update_interval"`
	HasStore       bool       `json:"has_store"`
}

// SystemHealth represents system-level health information
type SystemHealth struct {
	Uptime     string `json:"uptime"`
	Goroutines int    `json:"goroutines,omitempty"`
}

// NewWebServer creates a new web server. It returns nil when port is not positive.
func NewWebServer(monitor *Monitor, port int) *WebServer {
	if port <= 0 {
		return nil // Web server disabled
	}

	hs := &WebServer{
		monitor:   monitor,
		port:      port,
		startTime: time.Now(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		broadcast: make(chan []byte, 256),
		done:      make(chan struct{}),
	}

	hs.server = hs.newHTTPServer()

	return hs
}

func (hs *WebServer) newHTTPServer() *http.Server {
	return &http.Server{
		Addr:         fmt.Sprintf(":%d", hs.port),
		Handler:      hs.routes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

func (hs *WebServer) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(middleware.Recoverer)

	r.Route("/api", func(api chi.Router) {
		api.Get("/health", hs.healthHandler)
		api.Get("/ready", hs.readinessHandler)
		api.Get("/status", hs.statusHandler)
		api.Get("/ws", hs.wsHandler)

		api.Route("/forecast", func(fr chi.Router) {
			fr.Get("/", hs.forecastsHandler)
			fr.Get("/{location}", hs.forecastHandler)
			fr.Get("/{location}/history", hs.historyHandler)
			fr.Get("/{location}/alerts", hs.alertsHandler)
		})
	})

	return r
}

// requestID tags every request with an ID, reusing the caller's when present.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get(RequestIDHeader)
		if reqID == "" {
			reqID = uuid.New().String()
			r.Header.Set(RequestIDHeader, reqID)
		}
		w.Header().Set(RequestIDHeader, reqID)
		next.ServeHTTP(w, r)
	})
}

// Start starts the web server. A stopped server can be started again.
func (hs *WebServer) Start() error {
	if hs == nil {
		return nil // Web server disabled
	}

	hs.mu.Lock()
	select {
	case <-hs.done:
		hs.done = make(chan struct{})
		hs.server = hs.newHTTPServer()
	default:
	}
	server, done := hs.server, hs.done
	hs.mu.Unlock()

	go hs.handleBroadcasts(done)
	go hs.broadcastStatus(done)

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			hs.monitor.logger.Printf("Web server error: %v", err)
		}
	}()

	return nil
}

// Stop gracefully stops the web server. Stopping a stopped server only
// waits for the shutdown of its listener.
func (hs *WebServer) Stop(ctx context.Context) error {
	if hs == nil {
		return nil // Web server disabled
	}

	hs.mu.Lock()
	select {
	case <-hs.done:
	default:
		close(hs.done)
	}
	server := hs.server
	hs.mu.Unlock()

	hs.clients.Range(func(key, value any) bool {
		if client, ok := key.(*wsClient); ok {
			client.conn.Close()
		}
		return true
	})

	return server.Shutdown(ctx)
}

// Publish queues a snapshot for all WebSocket clients. It drops the message
// when the queue is full.
func (hs *WebServer) Publish(snap *Snapshot) {
	if hs == nil || snap == nil {
		return
	}

	message, err := json.Marshal(map[string]any{
		"type":     "forecast_update",
		"snapshot": snap,
	})
	if err != nil {
		hs.monitor.logger.Printf("Failed to marshal snapshot: %v", err)
		return
	}

	select {
	case hs.broadcast <- message:
	default:
		hs.monitor.logger.Printf("Broadcast queue full, dropping update for %s", snap.Location.Name)
	}
}

// healthHandler handles the /api/health endpoint
func (hs *WebServer) healthHandler(w http.ResponseWriter, r *http.Request) {
	health := hs.buildHealth()

	w.Header().Set("Content-Type", "application/json")
	if health.Status != "healthy" {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	if err := json.NewEncoder(w).Encode(health); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

// readinessHandler handles the /api/ready endpoint. The monitor is ready once
// it runs and holds at least one forecast.
func (hs *WebServer) readinessHandler(w http.ResponseWriter, r *http.Request) {
	status := hs.monitor.GetStatus()
	ready := status.IsRunning && status.FetchedCount > 0

	w.Header().Set("Content-Type", "application/json")
	if !ready {
		w.WriteHeader(http.StatusServiceUnavailable)
	}

	response := map[string]any{
		"ready":     ready,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

// statusHandler handles the /api/status endpoint (detailed status)
func (hs *WebServer) statusHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, hs.buildStatusData())
}

// forecastsHandler lists the latest snapshot of every location
func (hs *WebServer) forecastsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, hs.monitor.Snapshots())
}

// forecastHandler returns the latest snapshot of one location
func (hs *WebServer) forecastHandler(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "location")

	snap, ok := hs.monitor.Latest(name)
	if !ok {
		if _, known := hs.monitor.GetConfig().Location(name); !known {
			writeError(w, http.StatusNotFound, fmt.Sprintf("unknown location %q", name))
			return
		}
		writeError(w, http.StatusServiceUnavailable, fmt.Sprintf("no forecast fetched yet for %q", name))
		return
	}

	writeJSON(w, http.StatusOK, snap)
}

// historyHandler returns stored datapoints of one block.
// Query parameters: block (default hourly), since (Unix seconds, default 24h ago).
func (hs *WebServer) historyHandler(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "location")
	if _, known := hs.monitor.GetConfig().Location(name); !known {
		writeError(w, http.StatusNotFound, fmt.Sprintf("unknown location %q", name))
		return
	}

	store := hs.monitor.getStore()
	if store == nil {
		writeError(w, http.StatusServiceUnavailable, "persistence is not configured")
		return
	}

	block := darksky.BlockHourly
	if b := r.URL.Query().Get("block"); b != "" {
		if !validBlocks[b] || b == string(darksky.BlockFlags) {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid block %q", b))
			return
		}
		block = darksky.Block(b)
	}

	since := time.Now().Add(-24 * time.Hour)
	if s := r.URL.Query().Get("since"); s != "" {
		sec, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid since %q", s))
			return
		}
		since = time.Unix(sec, 0)
	}

	points, err := store.LoadDatapoints(r.Context(), name, block, since)
	if err != nil {
		hs.monitor.logger.Printf("Failed to load history for %s: %v", name, err)
		writeError(w, http.StatusInternalServerError, "failed to load history")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"location":   name,
		"block":      block,
		"since":      since.Unix(),
		"datapoints": points,
	})
}

// alertsHandler returns the alerts in effect for one location, from the store
// when configured and from the latest snapshot otherwise.
func (hs *WebServer) alertsHandler(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "location")
	if _, known := hs.monitor.GetConfig().Location(name); !known {
		writeError(w, http.StatusNotFound, fmt.Sprintf("unknown location %q", name))
		return
	}

	now := time.Now()
	if store := hs.monitor.getStore(); store != nil {
		alerts, err := store.LoadAlerts(r.Context(), name, now)
		if err != nil {
			hs.monitor.logger.Printf("Failed to load alerts for %s: %v", name, err)
			writeError(w, http.StatusInternalServerError, "failed to load alerts")
			return
		}
		writeJSON(w, http.StatusOK, alerts)
		return
	}

	alerts := []darksky.Alert{}
	if snap, ok := hs.monitor.Latest(name); ok && snap.Forecast != nil {
		if active := snap.Forecast.ActiveAlerts(now); active != nil {
			alerts = active
		}
	}
	writeJSON(w, http.StatusOK, alerts)
}

// wsHandler handles WebSocket connections
func (hs *WebServer) wsHandler(w http.ResponseWriter, r *http.Request) {
	logger := hs.monitor.logger

	conn, err := hs.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Printf("WebSocket upgrade error: %v", err)
		return
	}

	client := &wsClient{conn: conn}
	hs.clients.Store(client, struct{}{})
	hs.monitor.debugf("New WebSocket client connected. Total clients: %d", hs.clientCount())

	hs.sendStatusToClient(client)

	defer func() {
		hs.clients.Delete(client)
		conn.Close()
		hs.monitor.debugf("WebSocket client disconnected. Total clients: %d", hs.clientCount())
	}()

	// Read messages from client (ping/pong, close)
	for {
		_, _, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Printf("WebSocket error: %v", err)
			}
			break
		}
	}
}

func (hs *WebServer) clientCount() int {
	n := 0
	hs.clients.Range(func(key, value any) bool {
		n++
		return true
	})
	return n
}

// handleBroadcasts sends messages to all connected clients until done is closed
func (hs *WebServer) handleBroadcasts(done <-chan struct{}) {
	for {
		select {
		case message := <-hs.broadcast:
			hs.clients.Range(func(key, value any) bool {
				client, ok := key.(*wsClient)
				if !ok {
					return true
				}

				if err := client.write(message); err != nil {
					hs.monitor.logger.Printf("WebSocket write error: %v", err)
					client.conn.Close()
					hs.clients.Delete(client)
				}
				return true
			})
		case <-done:
			return
		}
	}
}

// broadcastStatus periodically broadcasts status updates
func (hs *WebServer) broadcastStatus(done <-chan struct{}) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if hs.clientCount() == 0 {
				continue
			}

			message, err := json.Marshal(hs.buildStatusData())
			if err != nil {
				hs.monitor.logger.Printf("Failed to marshal status data: %v", err)
				continue
			}
			select {
			case hs.broadcast <- message:
			case <-done:
				return
			}
		case <-done:
			return
		}
	}
}

// sendStatusToClient sends status data to a specific client
func (hs *WebServer) sendStatusToClient(client *wsClient) {
	if err := client.writeJSON(hs.buildStatusData()); err != nil {
		hs.monitor.logger.Printf("Failed to send initial data: %v", err)
	}
}

func (hs *WebServer) buildHealth() HealthResponse {
	status := hs.monitor.GetStatus()

	health := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   "1.0.0",
		Monitor: MonitorHealth{
			IsRunning:      status.IsRunning,
			LocationsCount: status.LocationsCount,
			FetchedCount:   status.FetchedCount,
			UpdateInterval: hs.monitor.GetConfig().UpdateInterval.String(),
			HasStore:       status.HasStore,
		},
		System: SystemHealth{
			Uptime:     formatUptime(time.Since(hs.startTime)),
			Goroutines: runtime.NumGoroutine(),
		},
	}
	if status.LastRun != nil {
		started := status.LastRun.StartedAt
		health.Monitor.LastRun = &started
	}

	if !status.IsRunning {
		health.Status = "unhealthy"
	}
	return health
}

// buildStatusData builds combined health and status data
func (hs *WebServer) buildStatusData() map[string]any {
	locations := make([]map[string]any, 0)
	for _, snap := range hs.monitor.Snapshots() {
		entry := map[string]any{
			"name":       snap.Location.Name,
			"run_id":     snap.RunID,
			"fetched_at": snap.FetchedAt.Format(time.RFC3339),
		}
		if snap.Error != "" {
			entry["error"] = snap.Error
		}
		if f := snap.Forecast; f != nil {
			if f.Currently != nil {
				entry["temperature"] = f.Currently.Temperature
				entry["summary"] = f.Currently.Summary
				entry["icon"] = f.Currently.Icon
			}
			entry["alerts"] = len(f.ActiveAlerts(time.Now()))
		}
		locations = append(locations, entry)
	}

	return map[string]any{
		"type":   "status_update",
		"health": hs.buildHealth(),
		"status": map[string]any{
			"monitor_status": hs.monitor.GetStatus(),
			"locations":      locations,
			"timestamp":      time.Now().UTC().Format(time.RFC3339),
		},
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

func writeError(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, map[string]string{"error": message})
}

// formatUptime formats a duration as a string with seconds rounded to integer
func formatUptime(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%dh%dm%ds", h, m, s)
	}
	if m > 0 {
		return fmt.Sprintf("%dm%ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}
