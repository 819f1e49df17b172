package monitor

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/devskill-org/darksky/darksky"
)

// TokenEnvVar overrides the token from the config file when set.
const TokenEnvVar = "DARKSKY_TOKEN"

// Location is a named point to fetch forecasts for.
type Location struct {
	Name      string  `json:"name"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Config represents the configuration for the forecast monitor
type Config struct {
	// API settings
	Token      string        `json:"token"`       // DarkSky secret key
	BaseURL    string        `json:"base_url"`    // API root, without trailing slash
	UserAgent  string        `json:"user_agent"`  // User agent for the API client
	APITimeout time.Duration `json:"api_timeout"` // Timeout for API calls

	// Request options
	Locations    []Location `json:"locations"`
	Units        string     `json:"units"`         // auto, ca, si, uk2, us; empty = API default
	Language     string     `json:"language"`      // Summary language, empty = English
	Exclude      []string   `json:"exclude"`       // Blocks to leave out of responses
	ExtendHourly bool       `json:"extend_hourly"` // Request 168 hourly datapoints instead of 48

	// Scheduling
	UpdateInterval    time.Duration `json:"update_interval"`     // How often to fetch all locations
	RequestsPerSecond float64       `json:"requests_per_second"` // API request rate limit
	Burst             int           `json:"burst"`               // Rate limiter burst size

	// Advanced settings
	HealthCheckPort    int    `json:"health_check_port"`    // Port for the web server (0 = disabled)
	PostgresConnString string `json:"postgres_conn_string"` // PostgreSQL connection string, empty = no persistence

	// Logging settings
	LogLevel  string `json:"log_level"`  // Log level: debug, info
	LogFormat string `json:"log_format"` // Log format: text, json
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		BaseURL:    darksky.DefaultBaseURL,
		UserAgent:  "darksky-monitor/1.0",
		APITimeout: 30 * time.Second,
		Locations: []Location{
			{Name: "riga", Latitude: 56.9496, Longitude: 24.1052}, // Riga, Latvia
		},
		Units:             string(darksky.UnitAuto),
		UpdateInterval:    15 * time.Minute,
		RequestsPerSecond: 1,
		Burst:             1,
		HealthCheckPort:   0,
		LogLevel:          "info",
		LogFormat:         "text",
	}
}

// LoadConfig loads configuration from a JSON file
func LoadConfig(filename string) (*Config, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	return LoadConfigFromReader(file)
}

// LoadConfigFromReader loads configuration from an io.Reader
func LoadConfigFromReader(reader io.Reader) (*Config, error) {
	config := DefaultConfig()

	decoder := json.NewDecoder(reader)
	if err := decoder.Decode(config); err != nil {
		return nil, fmt.Errorf("failed to decode config JSON: %w", err)
	}

	if token := os.Getenv(TokenEnvVar); token != "" {
		config.Token = token
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// SaveConfig saves the configuration to a JSON file
func (c *Config) SaveConfig(filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer file.Close()

	return c.SaveConfigToWriter(file)
}

// SaveConfigToWriter saves the configuration to an io.Writer
func (c *Config) SaveConfigToWriter(writer io.Writer) error {
	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")

	if err := encoder.Encode(c); err != nil {
		return fmt.Errorf("failed to encode config JSON: %w", err)
	}

	return nil
}

var validUnits = map[string]bool{
	"":                       true,
	string(darksky.UnitAuto): true,
	string(darksky.UnitCA):   true,
	string(darksky.UnitSI):   true,
	string(darksky.UnitUK2):  true,
	string(darksky.UnitUS):   true,
}

var validBlocks = map[string]bool{
	string(darksky.BlockCurrently): true,
	string(darksky.BlockDaily):     true,
	string(darksky.BlockFlags):     true,
	string(darksky.BlockHourly):    true,
	string(darksky.BlockMinutely):  true,
}

// Validate checks if the configuration values are valid
func (c *Config) Validate() error {
	if c.Token == "" {
		return fmt.Errorf("token cannot be empty (set it in the config file or %s)", TokenEnvVar)
	}

	if c.BaseURL == "" {
		return fmt.Errorf("base_url cannot be empty")
	}
	if strings.HasSuffix(c.BaseURL, "/") {
		return fmt.Errorf("base_url must not end with a slash, got: %s", c.BaseURL)
	}

	if c.UserAgent == "" {
		return fmt.Errorf("user_agent cannot be empty")
	}

	if c.APITimeout <= 0 {
		return fmt.Errorf("api_timeout must be greater than 0, got: %s", c.APITimeout)
	}

	if c.UpdateInterval <= 0 {
		return fmt.Errorf("update_interval must be greater than 0, got: %s", c.UpdateInterval)
	}

	if c.RequestsPerSecond <= 0 {
		return fmt.Errorf("requests_per_second must be greater than 0, got: %f", c.RequestsPerSecond)
	}

	if c.Burst < 1 {
		return fmt.Errorf("burst must be at least 1, got: %d", c.Burst)
	}

	if c.HealthCheckPort < 0 || c.HealthCheckPort > 65535 {
		return fmt.Errorf("health_check_port must be between 0 and 65535, got: %d", c.HealthCheckPort)
	}

	if len(c.Locations) == 0 {
		return fmt.Errorf("locations cannot be empty")
	}
	seen := make(map[string]bool, len(c.Locations))
	for i, loc := range c.Locations {
		if loc.Name == "" {
			return fmt.Errorf("locations[%d]: name cannot be empty", i)
		}
		if seen[loc.Name] {
			return fmt.Errorf("locations[%d]: duplicate name %q", i, loc.Name)
		}
		seen[loc.Name] = true
		if err := darksky.ValidateCoordinates(loc.Latitude, loc.Longitude); err != nil {
			return fmt.Errorf("locations[%d] (%s): %w", i, loc.Name, err)
		}
	}

	if !validUnits[c.Units] {
		return fmt.Errorf("invalid units: %s, must be one of: auto, ca, si, uk2, us", c.Units)
	}

	if c.Language != "" && !darksky.Language(c.Language).Known() {
		return fmt.Errorf("invalid language: %s", c.Language)
	}

	for _, block := range c.Exclude {
		if !validBlocks[block] {
			return fmt.Errorf("invalid exclude block: %s, must be one of: currently, daily, flags, hourly, minutely", block)
		}
	}

	// Validate log level
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log_level: %s, must be one of: debug, info", c.LogLevel)
	}

	// Validate log format
	validLogFormats := map[string]bool{
		"text": true,
		"json": true,
	}
	if !validLogFormats[c.LogFormat] {
		return fmt.Errorf("invalid log_format: %s, must be one of: text, json", c.LogFormat)
	}

	return nil
}

// Options returns the request options described by the configuration.
func (c *Config) Options() darksky.Options {
	var opts darksky.Options
	if c.Exclude != nil {
		blocks := make([]darksky.Block, len(c.Exclude))
		for i, b := range c.Exclude {
			blocks[i] = darksky.Block(b)
		}
		opts = opts.Exclude(blocks...)
	}
	if c.ExtendHourly {
		opts = opts.ExtendHourly()
	}
	if c.Language != "" {
		opts = opts.Language(darksky.Language(c.Language))
	}
	if c.Units != "" {
		opts = opts.Unit(darksky.Unit(c.Units))
	}
	return opts
}

// Location returns the configured location with the given name.
func (c *Config) Location(name string) (Location, bool) {
	for _, loc := range c.Locations {
		if loc.Name == name {
			return loc, true
		}
	}
	return Location{}, false
}

// MarshalJSON implements custom JSON marshaling to handle durations
func (c *Config) MarshalJSON() ([]byte, error) {
	type Alias Config
	return json.Marshal(&struct {
		*Alias
		APITimeout     string `json:"api_timeout"`
		UpdateInterval string `json:"update_interval"`
	}{
		Alias:          (*Alias)(c),
		APITimeout:     c.APITimeout.String(),
		UpdateInterval: c.UpdateInterval.String(),
	})
}

// UnmarshalJSON implements custom JSON unmarshaling to handle durations
func (c *Config) UnmarshalJSON(data []byte) error {
	type Alias Config
	aux := &struct {
		*Alias
		APITimeout     string `json:"api_timeout"`
		UpdateInterval string `json:"update_interval"`
	}{
		Alias: (*Alias)(c),
	}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	var err error
	if aux.APITimeout != "" {
		if c.APITimeout, err = time.ParseDuration(aux.APITimeout); err != nil {
			return fmt.Errorf("invalid api_timeout: %w", err)
		}
	}

	if aux.UpdateInterval != "" {
		if c.UpdateInterval, err = time.ParseDuration(aux.UpdateInterval); err != nil {
			return fmt.Errorf("invalid update_interval: %w", err)
		}
	}

	return nil
}

// String returns a string representation of the config with the token masked
func (c *Config) String() string {
	masked := *c
	if masked.Token != "" {
		masked.Token = "***"
	}
	data, _ := json.MarshalIndent(&masked, "", "  ")
	return string(data)
}
