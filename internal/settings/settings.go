package settings

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
)

// Setting keys in the settings table.
const (
	KeyTempMin = "temp_spec_min"
	KeyTempMax = "temp_spec_max"
)

// ErrInvalidLimits is returned when min is not below max.
var ErrInvalidLimits = errors.New("settings: min must be below max")

// Limits is the acceptable temperature range in °C. A temperature t is in
// range when Min <= t <= Max.
type Limits struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// DefaultLimits apply when the stored limits are missing or unreadable.
var DefaultLimits = Limits{Min: 10, Max: 40}

// Contains reports whether t lies within the limits, inclusive.
func (l Limits) Contains(t float64) bool {
	return t >= l.Min && t <= l.Max
}

// Validate checks that Min is below Max.
func (l Limits) Validate() error {
	if !(l.Min < l.Max) {
		return fmt.Errorf("%w: min %g, max %g", ErrInvalidLimits, l.Min, l.Max)
	}
	return nil
}

// Logger defines the logging interface used by the settings store.
type Logger interface {
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Warn(string, ...any) {}

// Store reads and writes the temperature limits. Limits are never cached: every
// call reads the table.
type Store struct {
	db     *sql.DB
	logger Logger
}

// NewStore creates a settings store on an open, migrated database.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db, logger: noopLogger{}}
}

// SetLogger sets the logger used to report fallbacks.
func (s *Store) SetLogger(logger Logger) {
	s.logger = logger
}

// Limits returns the stored limits, or DefaultLimits with a warning when
// they cannot be read. It never fails.
func (s *Store) Limits(ctx context.Context) Limits {
	l, err := s.LoadLimits(ctx)
	if err != nil {
		s.logger.Warn("using default temperature limits", "error", err,
			"min", DefaultLimits.Min, "max", DefaultLimits.Max)
		return DefaultLimits
	}
	return l
}

// LoadLimits returns the stored limits. A missing key takes its value from
// DefaultLimits on its own, so a stored min with no max keeps the min. An
// unreadable or unparseable value, or a pair that fails Validate, is an
// error.
func (s *Store) LoadLimits(ctx context.Context) (Limits, error) {
	lo, err := s.getFloat(ctx, KeyTempMin, DefaultLimits.Min)
	if err != nil {
		return Limits{}, err
	}
	hi, err := s.getFloat(ctx, KeyTempMax, DefaultLimits.Max)
	if err != nil {
		return Limits{}, err
	}
	l := Limits{Min: lo, Max: hi}
	if err := l.Validate(); err != nil {
		return Limits{}, err
	}
	return l, nil
}

// SetLimits validates and stores l in one transaction.
func (s *Store) SetLimits(ctx context.Context, l Limits) error {
	if err := l.Validate(); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning settings update: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	for key, v := range map[string]float64{KeyTempMin: l.Min, KeyTempMax: l.Max} {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO settings (key, value) VALUES (?, ?)
			 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
			key, strconv.FormatFloat(v, 'f', -1, 64))
		if err != nil {
			return fmt.Errorf("writing %s: %w", key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing settings update: %w", err)
	}
	return nil
}

func (s *Store) getFloat(ctx context.Context, key string, def float64) (float64, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.logger.Warn("temperature limit missing, using default", "key", key, "value", def)
			return def, nil
		}
		return 0, fmt.Errorf("reading %s: %w", key, err)
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing %s=%q: %w", key, raw, err)
	}
	return v, nil
}
