// Package main provides an example of using the darksky client to fetch weather forecasts.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/devskill-org/darksky/darksky"
	"github.com/devskill-org/darksky/utils"
)

func main() {
	token := os.Getenv("DARKSKY_TOKEN")
	if token == "" {
		log.Fatal("DARKSKY_TOKEN is not set")
	}

	client := darksky.NewClient("darksky-example/1.0")

	// Riga, Latvia
	lat, long := 56.9496, 24.1052

	if err := darksky.ValidateCoordinates(lat, long); err != nil {
		log.Fatalf("Invalid location: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	forecast, err := client.GetForecastWithOptions(ctx, token, lat, long,
		func(o darksky.Options) darksky.Options {
			return o.Exclude(darksky.BlockMinutely).Unit(darksky.UnitSI)
		})
	if err != nil {
		fatal(err)
	}

	fmt.Printf("Forecast for %.4f, %.4f (%s)\n\n", forecast.Latitude, forecast.Longitude, forecast.Timezone)

	if current := forecast.Currently; current != nil {
		fmt.Println("=== CURRENT WEATHER ===")
		fmt.Printf("Time: %s\n", current.Timestamp().In(forecast.Location()).Format("2006-01-02 15:04:05"))
		if current.Summary != nil {
			fmt.Printf("Summary: %s\n", *current.Summary)
		}
		if current.Temperature != nil {
			fmt.Printf("Temperature: %.1f°C\n", *current.Temperature)
		}
		if current.Humidity != nil {
			fmt.Printf("Humidity: %.0f%%\n", *current.Humidity*100)
		}
		if current.WindSpeed != nil {
			fmt.Printf("Wind speed: %.1f m/s\n", *current.WindSpeed)
		}
		fmt.Println()
	}

	sunrise, sunset := forecast.SunTimes(time.Now())
	fmt.Printf("Sunrise: %s, sunset: %s\n\n",
		sunrise.In(forecast.Location()).Format("15:04"),
		sunset.In(forecast.Location()).Format("15:04"))

	for _, alert := range forecast.ActiveAlerts(time.Now()) {
		fmt.Printf("ALERT [%s] %s (until %s)\n", alert.Severity, alert.Title, alert.ExpiresAt().Format(time.RFC3339))
	}

	// Same place one year ago
	at := utils.UnixString(time.Now().AddDate(-1, 0, 0))
	past, err := client.GetForecastTimeMachine(ctx, token, lat, long, at, func(o darksky.Options) darksky.Options {
		return o.Exclude(darksky.BlockHourly, darksky.BlockMinutely).Unit(darksky.UnitSI)
	})
	if err != nil {
		fatal(err)
	}
	if past.Currently != nil && past.Currently.Temperature != nil {
		fmt.Printf("One year ago: %.1f°C\n", *past.Currently.Temperature)
	}
}

func fatal(err error) {
	var (
		apiErr    *darksky.APIError
		netErr    *darksky.NetworkError
		decodeErr *darksky.DecodeError
	)
	switch {
	case errors.As(err, &apiErr):
		log.Fatalf("API error %d: %s", apiErr.StatusCode, apiErr.Message)
	case errors.As(err, &netErr):
		log.Fatalf("Network error: %v", netErr.Err)
	case errors.As(err, &decodeErr):
		log.Fatalf("Unexpected response: %v", decodeErr)
	default:
		log.Fatalf("Unknown error: %v", err)
	}
}
