// Package main provides the DarkSky forecast monitor entry point and CLI interface.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/devskill-org/darksky/monitor"
)

func main() {
	// Command line flags
	var (
		configFile = flag.String("config", "config.json", "Configuration file path")
		help       = flag.Bool("help", false, "Show help message")
		serverOnly = flag.Bool("serverOnly", false, "Run only web server without periodic fetches")
		once       = flag.Bool("once", false, "Fetch every location once and print the current conditions")
	)
	flag.Parse()

	if *help {
		showHelp()
		return
	}

	config, err := monitor.LoadConfig(*configFile)
	if err != nil {
		fmt.Println("Error loading configuration:", err)
		os.Exit(1)
	}

	if *once {
		if err := runOnce(config); err != nil {
			os.Exit(1)
		}
		return
	}

	fmt.Printf("Starting DarkSky monitor with the following configuration:\n")
	fmt.Printf("  Base URL: %s\n", config.BaseURL)
	fmt.Printf("  Locations: %d\n", len(config.Locations))
	fmt.Printf("  Units: %s\n", config.Units)
	fmt.Printf("  Update Interval: %s\n", config.UpdateInterval)
	fmt.Printf("  Rate Limit: %.2f req/s (burst %d)\n", config.RequestsPerSecond, config.Burst)
	if config.HealthCheckPort > 0 {
		fmt.Printf("  Web Server Port: %d\n", config.HealthCheckPort)
	}
	if config.PostgresConnString != "" {
		fmt.Printf("  Persistence: enabled\n")
	}
	fmt.Println()

	logger := monitor.NewLogger(config, os.Stdout)

	forecastMonitor := monitor.NewMonitorWithWebServer(config, logger)

	// Set up context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := forecastMonitor.Start(ctx, *serverOnly); err != nil {
			if !errors.Is(err, context.Canceled) {
				logger.Printf("Monitor error: %v", err)
			}
		}
	}()

	logger.Printf("Monitor started. Press Ctrl+C to stop...")

	<-sigChan
	logger.Printf("Shutdown signal received, stopping monitor...")

	cancel()
	forecastMonitor.Stop()

	logger.Printf("Monitor stopped successfully")
}

func runOnce(config *monitor.Config) error {
	logger := monitor.NewLogger(config, os.Stderr)
	forecastMonitor := monitor.NewMonitor(config, logger)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	fetchErr := forecastMonitor.RunFetch(ctx)
	if fetchErr != nil {
		logger.Printf("Fetch finished with errors: %v", fetchErr)
	}

	snapshots := forecastMonitor.Snapshots()

	fmt.Println("\n========================================")
	fmt.Println("CURRENT CONDITIONS")
	fmt.Println("========================================")
	fmt.Printf("%-16s %-20s %8s %-24s %6s %s\n", "Location", "Local Time", "Temp", "Summary", "Alerts", "Sun")

	now := time.Now()
	for _, snap := range snapshots {
		f := snap.Forecast
		if f == nil {
			fmt.Printf("%-16s %s\n", snap.Location.Name, "error: "+snap.Error)
			continue
		}

		temp, summary := "-", "-"
		if c := f.Currently; c != nil {
			if c.Temperature != nil {
				temp = fmt.Sprintf("%.1f", *c.Temperature)
			}
			if c.Summary != nil {
				summary = *c.Summary
			}
		}

		sun := "night"
		if f.IsDaylight(now) {
			sun = "day"
		}

		fmt.Printf("%-16s %-20s %8s %-24s %6d %s\n",
			snap.Location.Name,
			now.In(f.Location()).Format("2006-01-02 15:04"),
			temp,
			summary,
			len(f.ActiveAlerts(now)),
			sun,
		)
	}

	fmt.Println("========================================")
	fmt.Printf("Fetched: %d of %d locations\n", countFetched(snapshots), len(config.Locations))
	if status := forecastMonitor.GetStatus(); status.LastRun != nil {
		fmt.Printf("Run ID:  %s (%s)\n", status.LastRun.ID, status.LastRun.Duration.Round(time.Millisecond))
	}
	fmt.Println("========================================")

	return fetchErr
}

func countFetched(snapshots []monitor.Snapshot) int {
	n := 0
	for _, snap := range snapshots {
		if snap.Forecast != nil {
			n++
		}
	}
	return n
}

func showHelp() {
	fmt.Println("DarkSky Monitor - Periodic weather forecasts for a set of locations")
	fmt.Println()
	fmt.Println("DESCRIPTION:")
	fmt.Println("  Fetches DarkSky forecasts for the configured locations on a fixed interval,")
	fmt.Println("  keeps the latest forecast per location in memory, optionally stores every")
	fmt.Println("  datapoint in PostgreSQL and serves them over HTTP and WebSocket.")
	fmt.Println()
	fmt.Println("  The API token is read from the config file or the " + monitor.TokenEnvVar + " environment variable.")
	fmt.Println()
	fmt.Println("USAGE:")
	fmt.Println("  darksky [OPTIONS]")
	fmt.Println()
	fmt.Println("OPTIONS:")
	flag.PrintDefaults()
	fmt.Println()
	fmt.Println("EXAMPLES:")
	fmt.Println("  # Basic usage with default settings")
	fmt.Println("  darksky")
	fmt.Println()
	fmt.Println("  # Custom configuration")
	fmt.Println("  darksky --config=config.json")
	fmt.Println()
	fmt.Println("  # Run only web server without periodic fetches")
	fmt.Println("  darksky -serverOnly")
	fmt.Println()
	fmt.Println("  # Fetch once and print the current conditions")
	fmt.Println("  darksky -once")
	fmt.Println()
	fmt.Println("  # Show this help")
	fmt.Println("  darksky -help")
}
