package monitor

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func newTestWebServer(t *testing.T, fetch bool) (*Monitor, *WebServer, *httptest.Server) {
	t.Helper()

	m, _ := newTestMonitor(t, &fakeAPI{})
	if fetch {
		if err := m.RunFetch(context.Background()); err != nil {
			t.Fatalf("RunFetch failed: %v", err)
		}
	}

	ws := NewWebServer(m, 8080)
	m.webServer = ws

	srv := httptest.NewServer(ws.server.Handler)
	t.Cleanup(srv.Close)
	return m, ws, srv
}

func setRunning(m *Monitor, running bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.isRunning = running
}

func getJSON(t *testing.T, url string, v any) *http.Response {
	t.Helper()

	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s failed: %v", url, err)
	}
	defer resp.Body.Close()

	if v != nil {
		if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
			t.Fatalf("Failed to decode response of %s: %v", url, err)
		}
	}
	return resp
}

func TestNewWebServer_Disabled(t *testing.T) {
	if ws := NewWebServer(NewMonitor(validConfig(), nil), 0); ws != nil {
		t.Error("Expected nil web server for port 0")
	}

	var ws *WebServer
	if err := ws.Start(); err != nil {
		t.Errorf("Start on disabled server returned %v", err)
	}
	if err := ws.Stop(context.Background()); err != nil {
		t.Errorf("Stop on disabled server returned %v", err)
	}
	ws.Publish(&Snapshot{})
}

func TestHealthHandler(t *testing.T) {
	m, _, srv := newTestWebServer(t, true)

	var health HealthResponse
	resp := getJSON(t, srv.URL+"/api/health", &health)
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("Expected 503 while stopped, got %d", resp.StatusCode)
	}
	if health.Status != "unhealthy" {
		t.Errorf("Expected unhealthy, got %q", health.Status)
	}

	setRunning(m, true)
	resp = getJSON(t, srv.URL+"/api/health", &health)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected 200, got %d", resp.StatusCode)
	}
	if health.Status != "healthy" {
		t.Errorf("Expected healthy, got %q", health.Status)
	}
	if health.Monitor.LocationsCount != 2 || health.Monitor.FetchedCount != 2 {
		t.Errorf("Unexpected monitor health %+v", health.Monitor)
	}
	if health.Monitor.LastRun == nil {
		t.Error("Expected last run time")
	}
}

func TestReadinessHandler(t *testing.T) {
	m, _, srv := newTestWebServer(t, false)
	setRunning(m, true)

	var ready map[string]any
	resp := getJSON(t, srv.URL+"/api/ready", &ready)
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("Expected 503 before the first fetch, got %d", resp.StatusCode)
	}

	if err := m.RunFetch(context.Background()); err != nil {
		t.Fatalf("RunFetch failed: %v", err)
	}
	resp = getJSON(t, srv.URL+"/api/ready", &ready)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected 200, got %d", resp.StatusCode)
	}
	if ready["ready"] != true {
		t.Errorf("Expected ready=true, got %v", ready["ready"])
	}
}

func TestStatusHandler(t *testing.T) {
	_, _, srv := newTestWebServer(t, true)

	var status struct {
		Type   string `json:"type"`
		Status struct {
			MonitorStatus Status           `json:"monitor_status"`
			Locations     []map[string]any `json:"locations"`
		} `json:"status"`
	}
	resp := getJSON(t, srv.URL+"/api/status", &status)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}
	if status.Type != "status_update" {
		t.Errorf("Expected type status_update, got %q", status.Type)
	}
	if len(status.Status.Locations) != 2 {
		t.Fatalf("Expected 2 locations, got %d", len(status.Status.Locations))
	}
	if status.Status.Locations[0]["temperature"] != 3.5 {
		t.Errorf("Expected temperature 3.5, got %v", status.Status.Locations[0]["temperature"])
	}
}

func TestForecastHandlers(t *testing.T) {
	_, _, srv := newTestWebServer(t, true)

	var snaps []Snapshot
	resp := getJSON(t, srv.URL+"/api/forecast", &snaps)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}
	if len(snaps) != 2 {
		t.Fatalf("Expected 2 snapshots, got %d", len(snaps))
	}

	var snap Snapshot
	resp = getJSON(t, srv.URL+"/api/forecast/riga", &snap)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}
	if snap.Location.Name != "riga" {
		t.Errorf("Expected riga, got %q", snap.Location.Name)
	}
	if snap.Forecast == nil || snap.Forecast.Timezone != "Europe/Riga" {
		t.Errorf("Unexpected forecast %+v", snap.Forecast)
	}
	if len(snap.Forecast.Alerts) != 1 {
		t.Errorf("Expected 1 alert, got %d", len(snap.Forecast.Alerts))
	}

	var errResp map[string]string
	resp = getJSON(t, srv.URL+"/api/forecast/atlantis", &errResp)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("Expected 404 for unknown location, got %d", resp.StatusCode)
	}
	if !strings.Contains(errResp["error"], "atlantis") {
		t.Errorf("Unexpected error %q", errResp["error"])
	}
}

func TestForecastHandler_NotFetchedYet(t *testing.T) {
	_, _, srv := newTestWebServer(t, false)

	resp := getJSON(t, srv.URL+"/api/forecast/riga", nil)
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("Expected 503, got %d", resp.StatusCode)
	}
}

func TestHistoryHandler_NoStore(t *testing.T) {
	_, _, srv := newTestWebServer(t, true)

	resp := getJSON(t, srv.URL+"/api/forecast/riga/history", nil)
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("Expected 503 without a store, got %d", resp.StatusCode)
	}

	resp = getJSON(t, srv.URL+"/api/forecast/atlantis/history", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("Expected 404 for unknown location, got %d", resp.StatusCode)
	}
}

func TestAlertsHandler_FromSnapshot(t *testing.T) {
	_, _, srv := newTestWebServer(t, true)

	var alerts []map[string]any
	resp := getJSON(t, srv.URL+"/api/forecast/riga/alerts", &alerts)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}
	// The test alert expired in 2015
	if alerts == nil || len(alerts) != 0 {
		t.Errorf("Expected an empty list, got %v", alerts)
	}
}

func TestRequestID(t *testing.T) {
	_, _, srv := newTestWebServer(t, false)

	resp := getJSON(t, srv.URL+"/api/status", nil)
	if resp.Header.Get(RequestIDHeader) == "" {
		t.Error("Expected a generated request id")
	}

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/api/status", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	resp.Body.Close()
	if got := resp.Header.Get(RequestIDHeader); got != "abc-123" {
		t.Errorf("Expected request id to be echoed, got %q", got)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	_, _, srv := newTestWebServer(t, false)

	resp, err := http.Post(srv.URL+"/api/health", "application/json", nil)
	if err != nil {
		t.Fatalf("POST failed: %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("Expected 405, got %d", resp.StatusCode)
	}
}

func TestWebSocket(t *testing.T) {
	m, ws, srv := newTestWebServer(t, true)

	go ws.handleBroadcasts(ws.done)
	defer close(ws.done)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Failed to dial WebSocket: %v", err)
	}
	defer conn.Close()

	var msg map[string]any
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("Failed to read initial message: %v", err)
	}
	if msg["type"] != "status_update" {
		t.Errorf("Expected status_update, got %v", msg["type"])
	}

	snap, _ := m.Latest("oslo")
	ws.Publish(&snap)

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("Failed to read update: %v", err)
	}
	if msg["type"] != "forecast_update" {
		t.Errorf("Expected forecast_update, got %v", msg["type"])
	}
	published, ok := msg["snapshot"].(map[string]any)
	if !ok {
		t.Fatalf("Expected snapshot object, got %T", msg["snapshot"])
	}
	if loc := published["location"].(map[string]any); loc["name"] != "oslo" {
		t.Errorf("Expected oslo, got %v", loc["name"])
	}
}

func TestFormatUptime(t *testing.T) {
	tests := []struct {
		d        time.Duration
		expected string
	}{
		{42 * time.Second, "42s"},
		{3*time.Minute + 5*time.Second, "3m5s"},
		{2*time.Hour + 1*time.Minute + 1500*time.Millisecond, "2h1m2s"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := formatUptime(tt.d); got != tt.expected {
				t.Errorf("Expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestWebSocket_ConnectDuringBroadcasts(t *testing.T) {
	_, ws, srv := newTestWebServer(t, true)

	go ws.handleBroadcasts(ws.done)
	defer close(ws.done)

	stopFlood := make(chan struct{})
	defer close(stopFlood)
	payload := []byte(`{"type":"noise","data":"` + strings.Repeat("x", 4096) + `"}`)
	go func() {
		for {
			select {
			case ws.broadcast <- payload:
			case <-stopFlood:
				return
			}
		}
	}()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/ws"

	var wg sync.WaitGroup
	errs := make(chan error, 30)
	for i := 0; i < 30; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
			if err != nil {
				errs <- err
				return
			}
			defer conn.Close()

			// Every frame must arrive intact, the status one included
			_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
			for j := 0; j < 5; j++ {
				var msg map[string]any
				if err := conn.ReadJSON(&msg); err != nil {
					errs <- err
					return
				}
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("Client failed: %v", err)
	}
}

func TestWebServer_StopTwice(t *testing.T) {
	_, ws, _ := newTestWebServer(t, false)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := ws.Stop(ctx); err != nil {
		t.Fatalf("First stop failed: %v", err)
	}
	if err := ws.Stop(ctx); err != nil {
		t.Errorf("Second stop failed: %v", err)
	}
}

func TestWebServer_Restart(t *testing.T) {
	m, _ := newTestMonitor(t, &fakeAPI{})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to find a free port: %v", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()

	ws := NewWebServer(m, port)
	m.webServer = ws
	url := fmt.Sprintf("http://127.0.0.1:%d/api/health", port)

	for round := 1; round <= 2; round++ {
		if err := ws.Start(); err != nil {
			t.Fatalf("Round %d: start failed: %v", round, err)
		}

		var resp *http.Response
		for attempt := 0; attempt < 50; attempt++ {
			resp, err = http.Get(url)
			if err == nil {
				break
			}
			time.Sleep(20 * time.Millisecond)
		}
		if err != nil {
			t.Fatalf("Round %d: server not reachable: %v", round, err)
		}
		resp.Body.Close()

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		err = ws.Stop(ctx)
		cancel()
		if err != nil {
			t.Fatalf("Round %d: stop failed: %v", round, err)
		}
	}
}

func TestMonitorStop_InFlightRequest(t *testing.T) {
	m, ws, _ := newTestWebServer(t, true)
	setRunning(m, true)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to listen: %v", err)
	}
	go func() { _ = ws.server.Serve(ln) }()

	conn, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatalf("Failed to dial: %v", err)
	}
	defer conn.Close()

	// Headers are left open so the connection stays in flight during shutdown
	if _, err := fmt.Fprint(conn, "GET /api/status HTTP/1.1\r\nHost: test\r\n"); err != nil {
		t.Fatalf("Failed to write request: %v", err)
	}
	time.Sleep(100 * time.Millisecond)

	stopped := make(chan struct{})
	go func() {
		m.Stop()
		close(stopped)
	}()
	time.Sleep(100 * time.Millisecond)

	if _, err := fmt.Fprint(conn, "\r\n"); err != nil {
		t.Fatalf("Failed to finish request: %v", err)
	}
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	resp, err := http.ReadResponse(bufio.NewReader(conn), nil)
	if err != nil {
		t.Fatalf("Failed to read response: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected 200, got %d", resp.StatusCode)
	}

	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return while a request was in flight")
	}
	if m.IsRunning() {
		t.Error("Expected monitor to be stopped")
	}
}
