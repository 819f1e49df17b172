package monitor

import (
	"encoding/json"
	"io"
	"log"
	"strings"
	"time"
)

// NewLogger creates the monitor logger for the configured log_format.
// "text" gives the usual "[MONITOR] " prefixed lines; "json" writes one JSON
// object per entry.
func NewLogger(config *Config, w io.Writer) *log.Logger {
	if config.LogFormat == "json" {
		return log.New(&jsonLineWriter{out: w, component: "monitor"}, "", 0)
	}
	return log.New(w, "[MONITOR] ", log.LstdFlags)
}

type jsonLineWriter struct {
	out       io.Writer
	component string
	now       func() time.Time
}

type jsonLine struct {
	Time      string `json:"time"`
	Component string `json:"component"`
	Message   string `json:"msg"`
}

// Write encodes p as one JSON line. log.Logger calls Write once per entry.
func (j *jsonLineWriter) Write(p []byte) (int, error) {
	now := time.Now
	if j.now != nil {
		now = j.now
	}

	line, err := json.Marshal(jsonLine{
		Time:      now().UTC().Format(time.RFC3339Nano),
		Component: j.component,
		Message:   strings.TrimSuffix(string(p), "\n"),
	})
	if err != nil {
		return 0, err
	}
	if _, err := j.out.Write(append(line, '\n')); err != nil {
		return 0, err
	}
	return len(p), nil
}
