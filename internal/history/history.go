package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// TimestampLayout is the UTC text form of temperature_log.timestamp. It
// sorts lexically in time order, which the range queries rely on.
const TimestampLayout = "2006-01-02T15:04:05Z"

// ErrInvalidRange is returned when a range ends before it starts.
var ErrInvalidRange = errors.New("history: end before start")

// Sample is one persisted reading. Temperature and Humidity are nil when
// the row carries no value.
type Sample struct {
	ID          int64     `json:"id"`
	UnitID      int64     `json:"unit_id"`
	Timestamp   time.Time `json:"timestamp"`
	Temperature *float64  `json:"temperature"`
	Humidity    *float64  `json:"humidity"`
	ActuatorOn  bool      `json:"actuator_on"`
}

// Query selects samples by calendar day. Both dates are inclusive; only
// their year, month and day (in UTC) are used. A nil UnitID selects every
// unit.
type Query struct {
	Start  time.Time
	End    time.Time
	UnitID *int64
}

// bounds returns the half-open timestamp interval [from, to) of q.
func (q Query) bounds() (from, to string, err error) {
	start := day(q.Start)
	end := day(q.End)
	if end.Before(start) {
		return "", "", ErrInvalidRange
	}
	return start.Format(TimestampLayout), end.AddDate(0, 0, 1).Format(TimestampLayout), nil
}

func day(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Store is the append-only sample log.
type Store struct {
	db *sql.DB
}

// NewStore creates a sample log on an open, migrated database.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Append persists s and sets its ID. A zero Timestamp is stamped with the
// current time.
func (s *Store) Append(ctx context.Context, sample *Sample) error {
	if sample.Timestamp.IsZero() {
		sample.Timestamp = time.Now()
	}
	sample.Timestamp = sample.Timestamp.UTC().Truncate(time.Second)

	var unitID any
	if sample.UnitID != 0 {
		unitID = sample.UnitID
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO temperature_log (timestamp, unit_id, temperature, humidity, actuator_on) VALUES (?, ?, ?, ?, ?)`,
		sample.Timestamp.Format(TimestampLayout), unitID,
		nullFloat(sample.Temperature), nullFloat(sample.Humidity), boolInt(sample.ActuatorOn),
	)
	if err != nil {
		return fmt.Errorf("appending sample: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading sample id: %w", err)
	}
	sample.ID = id
	return nil
}

// Range returns the samples matching q in timestamp order.
func (s *Store) Range(ctx context.Context, q Query) ([]Sample, error) {
	var out []Sample
	err := s.Each(ctx, q, func(sample Sample) error {
		out = append(out, sample)
		return nil
	})
	return out, err
}

// Each streams the samples matching q to fn in timestamp order. An error
// from fn stops the iteration and is returned.
func (s *Store) Each(ctx context.Context, q Query, fn func(Sample) error) error {
	from, to, err := q.bounds()
	if err != nil {
		return err
	}

	query := `SELECT id, timestamp, unit_id, temperature, humidity, actuator_on
		FROM temperature_log WHERE timestamp >= ? AND timestamp < ?`
	args := []any{from, to}
	if q.UnitID != nil {
		query += ` AND unit_id = ?`
		args = append(args, *q.UnitID)
	}
	query += ` ORDER BY timestamp, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("querying samples: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		sample, err := scanSample(rows)
		if err != nil {
			return err
		}
		if err := fn(sample); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterating samples: %w", err)
	}
	return nil
}

// Count returns the number of stored samples.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM temperature_log`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting samples: %w", err)
	}
	return n, nil
}

func scanSample(rows *sql.Rows) (Sample, error) {
	var (
		sample      Sample
		ts          string
		unitID      sql.NullInt64
		temperature sql.NullFloat64
		humidity    sql.NullFloat64
		actuatorOn  int
	)
	if err := rows.Scan(&sample.ID, &ts, &unitID, &temperature, &humidity, &actuatorOn); err != nil {
		return Sample{}, fmt.Errorf("scanning sample: %w", err)
	}

	t, err := time.Parse(TimestampLayout, ts)
	if err != nil {
		return Sample{}, fmt.Errorf("parsing sample timestamp %q: %w", ts, err)
	}
	sample.Timestamp = t
	sample.UnitID = unitID.Int64
	if temperature.Valid {
		sample.Temperature = &temperature.Float64
	}
	if humidity.Valid {
		sample.Humidity = &humidity.Float64
	}
	sample.ActuatorOn = actuatorOn == 1
	return sample, nil
}

func nullFloat(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
