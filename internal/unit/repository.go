package unit

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"
)

// Repository defines the durable unit store.
type Repository interface {
	// ListActive returns every active unit ordered by id.
	ListActive(ctx context.Context) ([]Definition, error)

	// GetByID returns a unit, active or not.
	// Returns ErrUnitNotFound if the id does not exist.
	GetByID(ctx context.Context, id int64) (*Definition, error)

	// Create inserts an active unit and sets its ID and CreatedAt.
	// Returns ErrNameExists if the name is taken.
	Create(ctx context.Context, d *Definition) error

	// Deactivate clears the active flag.
	// Returns ErrUnitNotFound if no active unit has the id.
	Deactivate(ctx context.Context, id int64) error
}

// SQLiteRepository implements Repository on the units table.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a repository on an open, migrated database.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const selectUnit = `SELECT id, name, sensor_pin, actuator_pin, active, created_at FROM units`

// ListActive returns every active unit ordered by id.
func (r *SQLiteRepository) ListActive(ctx context.Context) ([]Definition, error) {
	rows, err := r.db.QueryContext(ctx, selectUnit+` WHERE active = 1 ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("querying active units: %w", err)
	}
	defer rows.Close()

	var defs []Definition
	for rows.Next() {
		d, err := scanDefinition(rows)
		if err != nil {
			return nil, err
		}
		defs = append(defs, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating units: %w", err)
	}
	return defs, nil
}

// GetByID returns a unit, active or not.
func (r *SQLiteRepository) GetByID(ctx context.Context, id int64) (*Definition, error) {
	d, err := scanDefinition(r.db.QueryRowContext(ctx, selectUnit+` WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUnitNotFound
		}
		return nil, err
	}
	return d, nil
}

// Create inserts an active unit.
func (r *SQLiteRepository) Create(ctx context.Context, d *Definition) error {
	now := time.Now().UTC().Truncate(time.Second)

	res, err := r.db.ExecContext(ctx,
		`INSERT INTO units (name, sensor_pin, actuator_pin, active, created_at) VALUES (?, ?, ?, 1, ?)`,
		d.Name, d.SensorPin, d.ActuatorPin, now.Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %q", ErrNameExists, d.Name)
		}
		return fmt.Errorf("inserting unit: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading unit id: %w", err)
	}
	d.ID = id
	d.Active = true
	d.CreatedAt = now
	return nil
}

// Deactivate clears the active flag. The row and its samples remain.
func (r *SQLiteRepository) Deactivate(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `UPDATE units SET active = 0 WHERE id = ? AND active = 1`, id)
	if err != nil {
		return fmt.Errorf("deactivating unit: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking deactivation: %w", err)
	}
	if n == 0 {
		return ErrUnitNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDefinition(row rowScanner) (*Definition, error) {
	var (
		d         Definition
		active    int
		createdAt string
	)
	if err := row.Scan(&d.ID, &d.Name, &d.SensorPin, &d.ActuatorPin, &active, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning unit: %w", err)
	}
	d.Active = active == 1
	d.CreatedAt, _ = time.Parse(time.RFC3339, createdAt) //nolint:errcheck // written by Create or the schema default
	return &d, nil
}

// isUniqueViolation reports whether err is a UNIQUE constraint failure.
func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
