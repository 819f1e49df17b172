// Package utils provides time formatting helpers for Time Machine requests.
package utils //nolint:revive // utils is a common and acceptable package name

import (
	"strconv"
	"time"
)

// UnixString formats t as Unix seconds, e.g. "1450000000".
func UnixString(t time.Time) string {
	return strconv.FormatInt(t.Unix(), 10)
}

// LocalTimeString formats t as YYYY-MM-DDTHH:MM:SS without a zone. The API
// reads it in the local time of the requested location.
func LocalTimeString(t time.Time) string {
	return t.Format("2006-01-02T15:04:05")
}

// ZonedTimeString formats t as YYYY-MM-DDTHH:MM:SS followed by "Z" in UTC
// or a -HHMM offset otherwise.
func ZonedTimeString(t time.Time) string {
	_, offset := t.Zone()
	if offset == 0 {
		return t.Format("2006-01-02T15:04:05") + "Z"
	}
	return t.Format("2006-01-02T15:04:05-0700")
}
