package history

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/nerrad567/climate-core/internal/infrastructure/database"
	"github.com/nerrad567/climate-core/migrations"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()

	ctx := context.Background()
	db, err := database.Open(ctx, database.Config{Path: database.MemoryPath})
	if err != nil {
		t.Fatalf("database.Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // test cleanup

	if err := db.Migrate(ctx, migrations.FS); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	for _, name := range []string{"north", "south"} {
		if _, err := db.ExecContext(ctx,
			`INSERT INTO units (name, sensor_pin, actuator_pin) VALUES (?, 'D4', 17)`, name); err != nil {
			t.Fatalf("seeding unit: %v", err)
		}
	}
	return db.DB
}

func ptr(v float64) *float64 { return &v }

func at(s string) time.Time {
	t, err := time.Parse(TimestampLayout, s)
	if err != nil {
		panic(err)
	}
	return t
}

func seed(t *testing.T, store *Store, samples ...Sample) {
	t.Helper()
	for i := range samples {
		if err := store.Append(context.Background(), &samples[i]); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}
}

func TestStore_AppendAndRange(t *testing.T) {
	store := NewStore(openTestDB(t))

	s := Sample{UnitID: 1, Timestamp: at("2026-03-02T10:00:00Z"), Temperature: ptr(45), Humidity: ptr(30.5), ActuatorOn: true}
	if err := store.Append(context.Background(), &s); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if s.ID == 0 {
		t.Error("Append() did not set ID")
	}

	got, err := store.Range(context.Background(), Query{Start: at("2026-03-02T00:00:00Z"), End: at("2026-03-02T00:00:00Z")})
	if err != nil {
		t.Fatalf("Range() error = %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("Range() returned %d samples, want 1", len(got))
	}
	row := got[0]
	if row.UnitID != 1 || *row.Temperature != 45 || *row.Humidity != 30.5 || !row.ActuatorOn {
		t.Errorf("Range()[0] = %+v, want unit 1, 45, 30.5, on", row)
	}
	if !row.Timestamp.Equal(s.Timestamp) {
		t.Errorf("Timestamp = %v, want %v", row.Timestamp, s.Timestamp)
	}
}

func TestStore_AppendStampsZeroTimestamp(t *testing.T) {
	store := NewStore(openTestDB(t))

	s := Sample{UnitID: 1, Temperature: ptr(20)}
	if err := store.Append(context.Background(), &s); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if time.Since(s.Timestamp) > time.Minute {
		t.Errorf("Timestamp = %v, want now", s.Timestamp)
	}
}

func TestStore_RangeBoundaries(t *testing.T) {
	store := NewStore(openTestDB(t))
	seed(t, store,
		Sample{UnitID: 1, Timestamp: at("2026-02-28T23:59:59Z"), Temperature: ptr(1)},
		Sample{UnitID: 1, Timestamp: at("2026-03-01T00:00:00Z"), Temperature: ptr(2)},
		Sample{UnitID: 2, Timestamp: at("2026-03-02T12:00:00Z"), Temperature: ptr(3)},
		Sample{UnitID: 1, Timestamp: at("2026-03-03T23:59:59Z"), Temperature: ptr(4)},
		Sample{UnitID: 1, Timestamp: at("2026-03-04T00:00:00Z"), Temperature: ptr(5)},
	)

	unit1 := int64(1)
	tests := []struct {
		name  string
		query Query
		want  []float64
	}{
		{
			name:  "end date is inclusive",
			query: Query{Start: at("2026-03-01T00:00:00Z"), End: at("2026-03-03T00:00:00Z")},
			want:  []float64{2, 3, 4},
		},
		{
			name:  "time of day is ignored",
			query: Query{Start: at("2026-03-01T18:00:00Z"), End: at("2026-03-03T06:00:00Z")},
			want:  []float64{2, 3, 4},
		},
		{
			name:  "filtered by unit",
			query: Query{Start: at("2026-03-01T00:00:00Z"), End: at("2026-03-03T00:00:00Z"), UnitID: &unit1},
			want:  []float64{2, 4},
		},
		{
			name:  "single day",
			query: Query{Start: at("2026-03-04T00:00:00Z"), End: at("2026-03-04T00:00:00Z")},
			want:  []float64{5},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.Range(context.Background(), tt.query)
			if err != nil {
				t.Fatalf("Range() error = %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("Range() returned %d samples, want %d", len(got), len(tt.want))
			}
			for i, s := range got {
				if *s.Temperature != tt.want[i] {
					t.Errorf("sample %d temperature = %v, want %v", i, *s.Temperature, tt.want[i])
				}
			}
		})
	}
}

func TestStore_RangeInvalid(t *testing.T) {
	store := NewStore(openTestDB(t))

	_, err := store.Range(context.Background(), Query{Start: at("2026-03-02T00:00:00Z"), End: at("2026-03-01T00:00:00Z")})
	if !errors.Is(err, ErrInvalidRange) {
		t.Errorf("Range() error = %v, want ErrInvalidRange", err)
	}
}

func TestStore_DeactivatedUnitKeepsHistory(t *testing.T) {
	db := openTestDB(t)
	store := NewStore(db)
	seed(t, store, Sample{UnitID: 1, Timestamp: at("2026-03-01T08:00:00Z"), Temperature: ptr(21)})

	if _, err := db.Exec(`UPDATE units SET active = 0 WHERE id = 1`); err != nil {
		t.Fatalf("deactivating unit: %v", err)
	}

	unit1 := int64(1)
	got, err := store.Range(context.Background(), Query{Start: at("2026-03-01T00:00:00Z"), End: at("2026-03-01T00:00:00Z"), UnitID: &unit1})
	if err != nil {
		t.Fatalf("Range() error = %v", err)
	}
	if len(got) != 1 {
		t.Errorf("Range() returned %d samples for deactivated unit, want 1", len(got))
	}
}

func TestStore_HardDeleteDetachesSamples(t *testing.T) {
	db := openTestDB(t)
	store := NewStore(db)
	seed(t, store, Sample{UnitID: 2, Timestamp: at("2026-03-01T08:00:00Z"), Temperature: ptr(21)})

	if _, err := db.Exec(`DELETE FROM units WHERE id = 2`); err != nil {
		t.Fatalf("deleting unit: %v", err)
	}

	got, err := store.Range(context.Background(), Query{Start: at("2026-03-01T00:00:00Z"), End: at("2026-03-01T00:00:00Z")})
	if err != nil {
		t.Fatalf("Range() error = %v", err)
	}
	if len(got) != 1 || got[0].UnitID != 0 {
		t.Errorf("Range() = %+v, want one detached sample", got)
	}
}

func TestStore_WriteCSV(t *testing.T) {
	store := NewStore(openTestDB(t))
	seed(t, store,
		Sample{UnitID: 1, Timestamp: at("2026-03-01T08:00:00Z"), Temperature: ptr(21.5), Humidity: ptr(40), ActuatorOn: true},
		Sample{UnitID: 2, Timestamp: at("2026-03-01T08:00:10Z"), Temperature: ptr(19)},
	)

	var buf bytes.Buffer
	err := store.WriteCSV(context.Background(), Query{Start: at("2026-03-01T00:00:00Z"), End: at("2026-03-01T00:00:00Z")}, &buf)
	if err != nil {
		t.Fatalf("WriteCSV() error = %v", err)
	}

	want := strings.Join([]string{
		"timestamp,unit_id,temperature,humidity,fan_status",
		"2026-03-01T08:00:00Z,1,21.5,40,1",
		"2026-03-01T08:00:10Z,2,19,,0",
		"",
	}, "\n")
	if buf.String() != want {
		t.Errorf("WriteCSV() =\n%s\nwant\n%s", buf.String(), want)
	}
}

func TestStore_Count(t *testing.T) {
	store := NewStore(openTestDB(t))
	seed(t, store, Sample{UnitID: 1}, Sample{UnitID: 2})

	n, err := store.Count(context.Background())
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if n != 2 {
		t.Errorf("Count() = %d, want 2", n)
	}
}

func TestStore_AppendFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()

	mock.ExpectExec("INSERT INTO temperature_log").WillReturnError(errors.New("disk full"))

	err = NewStore(db).Append(context.Background(), &Sample{UnitID: 1, Temperature: ptr(20)})
	if err == nil || !strings.Contains(err.Error(), "disk full") {
		t.Errorf("Append() error = %v, want wrapped store error", err)
	}
}
