package monitor

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/devskill-org/darksky/darksky"
	"github.com/lib/pq"
)

// RetentionPeriod is how long stored datapoints are kept.
const RetentionPeriod = 30 * 24 * time.Hour

// ErrNotFound is returned when a lookup matches no rows.
var ErrNotFound = errors.New("not found")

const schema = `
CREATE TABLE IF NOT EXISTS forecast_runs (
	run_id      TEXT NOT NULL,
	location    TEXT NOT NULL,
	fetched_at  TIMESTAMPTZ NOT NULL,
	latitude    DOUBLE PRECISION NOT NULL,
	longitude   DOUBLE PRECISION NOT NULL,
	timezone    TEXT NOT NULL,
	utc_offset  DOUBLE PRECISION,
	units       TEXT,
	PRIMARY KEY (run_id, location)
);

CREATE TABLE IF NOT EXISTS forecast_datapoints (
	location             TEXT NOT NULL,
	block                TEXT NOT NULL,
	time                 BIGINT NOT NULL,
	run_id               TEXT NOT NULL,
	summary              TEXT,
	icon                 TEXT,
	temperature          DOUBLE PRECISION,
	apparent_temperature DOUBLE PRECISION,
	humidity             DOUBLE PRECISION,
	pressure             DOUBLE PRECISION,
	wind_speed           DOUBLE PRECISION,
	wind_bearing         DOUBLE PRECISION,
	cloud_cover          DOUBLE PRECISION,
	precip_intensity     DOUBLE PRECISION,
	precip_probability   DOUBLE PRECISION,
	precip_type          TEXT,
	uv_index             BIGINT,
	data                 JSONB NOT NULL,
	PRIMARY KEY (location, block, time)
);

CREATE TABLE IF NOT EXISTS forecast_alerts (
	location    TEXT NOT NULL,
	uri         TEXT NOT NULL,
	time        BIGINT NOT NULL,
	expires     BIGINT NOT NULL,
	title       TEXT NOT NULL,
	severity    TEXT NOT NULL,
	description TEXT NOT NULL,
	regions     TEXT[] NOT NULL,
	run_id      TEXT NOT NULL,
	PRIMARY KEY (location, uri, time)
);
`

// StoredDatapoint is a datapoint read back from the store.
type StoredDatapoint struct {
	Location  string            `json:"location"`
	Block     darksky.Block     `json:"block"`
	RunID     string            `json:"run_id"`
	Datapoint darksky.Datapoint `json:"datapoint"`
}

// RunRecord is the stored metadata of one fetched forecast.
type RunRecord struct {
	RunID     string    `json:"run_id"`
	Location  string    `json:"location"`
	FetchedAt time.Time `json:"fetched_at"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Timezone  string    `json:"timezone"`
	Offset    *float64  `json:"offset,omitempty"`
	Units     string    `json:"units,omitempty"`
}

// Store persists fetched forecasts to PostgreSQL.
type Store struct {
	db     *sql.DB
	logger *log.Logger
}

// NewStore wraps an open database connection.
func NewStore(db *sql.DB, logger *log.Logger) *Store {
	if logger == nil {
		logger = log.Default()
	}
	return &Store{db: db, logger: logger}
}

// OpenStore connects to PostgreSQL and creates the schema if needed.
func OpenStore(ctx context.Context, connString string, logger *log.Logger) (*Store, error) {
	db, err := sql.Open("postgres", connString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	store := NewStore(db, logger)
	if err := store.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// EnsureSchema creates the tables if they do not exist
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveForecast persists one fetched forecast: the run metadata, every
// datapoint of every block, and the alerts. Datapoints are upserted per
// (location, block, time), so later runs overwrite earlier predictions.
// The alerts of the location are replaced by the ones in the forecast.
func (s *Store) SaveForecast(ctx context.Context, runID string, loc Location, fetchedAt time.Time, f *darksky.Forecast) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var units *string
	if f.Flags != nil {
		units = f.Flags.Units
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO forecast_runs (run_id, location, fetched_at, latitude, longitude, timezone, utc_offset, units)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (run_id, location) DO NOTHING
	`, runID, loc.Name, fetchedAt, f.Latitude, f.Longitude, f.Timezone, f.Offset, units)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO forecast_datapoints (
			location,
			block,
			time,
			run_id,
			summary,
			icon,
			temperature,
			apparent_temperature,
			humidity,
			pressure,
			wind_speed,
			wind_bearing,
			cloud_cover,
			precip_intensity,
			precip_probability,
			precip_type,
			uv_index,
			data
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		ON CONFLICT (location, block, time) DO UPDATE SET
			run_id = EXCLUDED.run_id,
			summary = EXCLUDED.summary,
			icon = EXCLUDED.icon,
			temperature = EXCLUDED.temperature,
			apparent_temperature = EXCLUDED.apparent_temperature,
			humidity = EXCLUDED.humidity,
			pressure = EXCLUDED.pressure,
			wind_speed = EXCLUDED.wind_speed,
			wind_bearing = EXCLUDED.wind_bearing,
			cloud_cover = EXCLUDED.cloud_cover,
			precip_intensity = EXCLUDED.precip_intensity,
			precip_probability = EXCLUDED.precip_probability,
			precip_type = EXCLUDED.precip_type,
			uv_index = EXCLUDED.uv_index,
			data = EXCLUDED.data
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	count := 0
	for _, bp := range forecastBlocks(f) {
		data, err := json.Marshal(bp.point)
		if err != nil {
			return fmt.Errorf("failed to encode %s datapoint %d: %w", bp.block, bp.point.Time, err)
		}

		dp := bp.point
		_, err = stmt.ExecContext(ctx,
			loc.Name,
			string(bp.block),
			dp.Time,
			runID,
			dp.Summary,
			nullableString(dp.Icon),
			dp.Temperature,
			dp.ApparentTemperature,
			dp.Humidity,
			dp.Pressure,
			dp.WindSpeed,
			dp.WindBearing,
			dp.CloudCover,
			dp.PrecipIntensity,
			dp.PrecipProbability,
			nullableString(dp.PrecipType),
			dp.UVIndex,
			string(data),
		)
		if err != nil {
			return fmt.Errorf("failed to upsert %s datapoint %d: %w", bp.block, dp.Time, err)
		}
		count++
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM forecast_alerts WHERE location = $1`, loc.Name); err != nil {
		return fmt.Errorf("failed to delete existing alerts: %w", err)
	}
	for _, a := range f.Alerts {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO forecast_alerts (location, uri, time, expires, title, severity, description, regions, run_id)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT (location, uri, time) DO NOTHING
		`, loc.Name, a.URI, a.Time, a.Expires, a.Title, string(a.Severity), a.Description, pq.Array(a.Regions), runID)
		if err != nil {
			return fmt.Errorf("failed to insert alert %q: %w", a.Title, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.logger.Printf("Saved forecast for %s: %d datapoints, %d alerts", loc.Name, count, len(f.Alerts))
	return nil
}

// LoadDatapoints loads the stored datapoints of one block with time >= since, ordered by time
func (s *Store) LoadDatapoints(ctx context.Context, location string, block darksky.Block, since time.Time) ([]StoredDatapoint, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, data
		FROM forecast_datapoints
		WHERE location = $1 AND block = $2 AND time >= $3
		ORDER BY time ASC
	`, location, string(block), since.Unix())
	if err != nil {
		return nil, fmt.Errorf("failed to query datapoints: %w", err)
	}
	defer rows.Close()

	var points []StoredDatapoint
	for rows.Next() {
		var (
			runID string
			data  []byte
		)
		if err := rows.Scan(&runID, &data); err != nil {
			return nil, fmt.Errorf("failed to scan datapoint: %w", err)
		}

		point := StoredDatapoint{Location: location, Block: block, RunID: runID}
		if err := json.Unmarshal(data, &point.Datapoint); err != nil {
			return nil, fmt.Errorf("failed to decode stored datapoint: %w", err)
		}
		points = append(points, point)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating datapoints: %w", err)
	}

	return points, nil
}

// LoadAlerts loads the stored alerts of a location that have not expired at t
func (s *Store) LoadAlerts(ctx context.Context, location string, t time.Time) ([]darksky.Alert, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT uri, time, expires, title, severity, description, regions
		FROM forecast_alerts
		WHERE location = $1 AND expires > $2
		ORDER BY time ASC
	`, location, t.Unix())
	if err != nil {
		return nil, fmt.Errorf("failed to query alerts: %w", err)
	}
	defer rows.Close()

	alerts := []darksky.Alert{}
	for rows.Next() {
		var (
			a        darksky.Alert
			severity string
		)
		if err := rows.Scan(&a.URI, &a.Time, &a.Expires, &a.Title, &severity, &a.Description, pq.Array(&a.Regions)); err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		a.Severity = darksky.Severity(severity)
		alerts = append(alerts, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating alerts: %w", err)
	}

	return alerts, nil
}

// LatestRun returns the most recent run stored for a location
func (s *Store) LatestRun(ctx context.Context, location string) (*RunRecord, error) {
	var (
		rec    RunRecord
		offset sql.NullFloat64
		units  sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT run_id, location, fetched_at, latitude, longitude, timezone, utc_offset, units
		FROM forecast_runs
		WHERE location = $1
		ORDER BY fetched_at DESC
		LIMIT 1
	`, location).Scan(&rec.RunID, &rec.Location, &rec.FetchedAt, &rec.Latitude, &rec.Longitude, &rec.Timezone, &offset, &units)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query latest run: %w", err)
	}

	if offset.Valid {
		rec.Offset = &offset.Float64
	}
	if units.Valid {
		rec.Units = units.String
	}
	return &rec, nil
}

// Prune deletes datapoints, runs and expired alerts older than before. It
// returns the number of deleted datapoints.
func (s *Store) Prune(ctx context.Context, before time.Time) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `DELETE FROM forecast_datapoints WHERE time < $1`, before.Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to prune datapoints: %w", err)
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count pruned datapoints: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM forecast_runs WHERE fetched_at < $1`, before); err != nil {
		return 0, fmt.Errorf("failed to prune runs: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM forecast_alerts WHERE expires < $1`, before.Unix()); err != nil {
		return 0, fmt.Errorf("failed to prune alerts: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return deleted, nil
}

type blockPoint struct {
	block darksky.Block
	point darksky.Datapoint
}

// forecastBlocks flattens the datapoints of a forecast, tagged with their block.
func forecastBlocks(f *darksky.Forecast) []blockPoint {
	var points []blockPoint
	if f.Currently != nil {
		points = append(points, blockPoint{block: darksky.BlockCurrently, point: *f.Currently})
	}
	blocks := []struct {
		name  darksky.Block
		block *darksky.Datablock
	}{
		{darksky.BlockMinutely, f.Minutely},
		{darksky.BlockHourly, f.Hourly},
		{darksky.BlockDaily, f.Daily},
	}
	for _, b := range blocks {
		if b.block == nil {
			continue
		}
		for _, dp := range b.block.Data {
			points = append(points, blockPoint{block: b.name, point: dp})
		}
	}
	return points
}

// nullableString converts an optional string-kinded value to a SQL parameter.
func nullableString[T ~string](v *T) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(*v), Valid: true}
}
