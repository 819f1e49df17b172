package darksky

import (
	"time"

	"github.com/sixdouglas/suncalc"
)

// Timestamp returns the datapoint time in UTC.
func (d *Datapoint) Timestamp() time.Time {
	return time.Unix(d.Time, 0).UTC()
}

// HasPrecipitation checks if the datapoint reports any precipitation
func (d *Datapoint) HasPrecipitation() bool {
	if d == nil {
		return false
	}
	if d.PrecipIntensity != nil && *d.PrecipIntensity > 0 {
		return true
	}
	if d.PrecipAccumulation != nil && *d.PrecipAccumulation > 0 {
		return true
	}
	return false
}

// IssuedAt returns the time the alert was issued.
func (a *Alert) IssuedAt() time.Time {
	return time.Unix(a.Time, 0).UTC()
}

// ExpiresAt returns the time the alert expires.
func (a *Alert) ExpiresAt() time.Time {
	return time.Unix(a.Expires, 0).UTC()
}

// Active reports whether the alert is in effect at t.
func (a *Alert) Active(t time.Time) bool {
	return !t.Before(a.IssuedAt()) && t.Before(a.ExpiresAt())
}

// Location resolves the forecast timezone. Unknown zone names fall back to
// a fixed zone built from Offset, and to UTC when there is no offset either.
func (f *Forecast) Location() *time.Location {
	if f == nil {
		return time.UTC
	}
	if loc, err := time.LoadLocation(f.Timezone); err == nil && f.Timezone != "" {
		return loc
	}
	if f.Offset != nil {
		return time.FixedZone(f.Timezone, int(*f.Offset*3600))
	}
	return time.UTC
}

// HourlyAt returns the hourly datapoint closest to the specified time
func (f *Forecast) HourlyAt(target time.Time) *Datapoint {
	if f == nil || f.Hourly == nil {
		return nil
	}
	return f.Hourly.closest(target)
}

// Day returns the daily datapoint covering the calendar day of t in the
// forecast timezone.
func (f *Forecast) Day(t time.Time) *Datapoint {
	if f == nil || f.Daily == nil {
		return nil
	}

	loc := f.Location()
	local := t.In(loc)
	startOfDay := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	endOfDay := startOfDay.AddDate(0, 0, 1)

	for i := range f.Daily.Data {
		dp := &f.Daily.Data[i]
		ts := dp.Timestamp()
		if !ts.Before(startOfDay) && ts.Before(endOfDay) {
			return dp
		}
	}
	return nil
}

// ActiveAlerts returns the alerts in effect at t.
func (f *Forecast) ActiveAlerts(t time.Time) []Alert {
	if f == nil {
		return nil
	}
	var active []Alert
	for _, a := range f.Alerts {
		if a.Active(t) {
			active = append(active, a)
		}
	}
	return active
}

// SunTimes returns sunrise and sunset for the calendar day of t. The daily
// block is used when it reports them; otherwise they are computed from the
// forecast coordinates.
func (f *Forecast) SunTimes(t time.Time) (sunrise, sunset time.Time) {
	if dp := f.Day(t); dp != nil && dp.SunriseTime != nil && dp.SunsetTime != nil {
		return time.Unix(*dp.SunriseTime, 0).UTC(), time.Unix(*dp.SunsetTime, 0).UTC()
	}

	loc := f.Location()
	local := t.In(loc)
	noon := time.Date(local.Year(), local.Month(), local.Day(), 12, 0, 0, 0, loc)
	times := suncalc.GetTimes(noon, f.Latitude, f.Longitude)
	return times["sunrise"].Value.UTC(), times["sunset"].Value.UTC()
}

// IsDaylight reports whether t falls between sunrise and sunset.
func (f *Forecast) IsDaylight(t time.Time) bool {
	sunrise, sunset := f.SunTimes(t)
	if sunrise.IsZero() || sunset.IsZero() {
		// Polar day or night: fall back to the sun altitude.
		return suncalc.GetPosition(t, f.Latitude, f.Longitude).Altitude > 0
	}
	return !t.Before(sunrise) && t.Before(sunset)
}

// Between returns the datapoints within the specified time period, bounds included
func (b *Datablock) Between(start, end time.Time) []Datapoint {
	if b == nil {
		return nil
	}

	var period []Datapoint
	for _, dp := range b.Data {
		ts := dp.Timestamp()
		if !ts.Before(start) && !ts.After(end) {
			period = append(period, dp)
		}
	}
	return period
}

func (b *Datablock) closest(target time.Time) *Datapoint {
	var closest *Datapoint
	minDiff := time.Duration(1<<63 - 1) // Max duration

	for i := range b.Data {
		dp := &b.Data[i]
		diff := dp.Timestamp().Sub(target)
		if diff < 0 {
			diff = -diff
		}
		if diff < minDiff {
			minDiff = diff
			closest = dp
		}
	}

	return closest
}
