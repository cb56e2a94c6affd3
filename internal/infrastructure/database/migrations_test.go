package database

import (
	"context"
	"testing"
	"testing/fstest"
	"time"

	"github.com/nerrad567/climate-core/migrations"
)

// testMigrations is a two-step schema used to exercise ordering and rollback.
func testMigrations() fstest.MapFS {
	return fstest.MapFS{
		"20260101_000000_create_probes.up.sql": {Data: []byte(
			"CREATE TABLE test_probes (id INTEGER PRIMARY KEY, label TEXT NOT NULL);",
		)},
		"20260101_000000_create_probes.down.sql": {Data: []byte(
			"DROP TABLE test_probes;",
		)},
		"20260102_000000_add_probe_zone.up.sql": {Data: []byte(
			"ALTER TABLE test_probes ADD COLUMN zone TEXT;",
		)},
		"20260102_000000_add_probe_zone.down.sql": {Data: []byte(
			"ALTER TABLE test_probes DROP COLUMN zone;",
		)},
		"README.md": {Data: []byte("ignored")},
	}
}

func tableExists(t *testing.T, db *DB, name string) bool {
	t.Helper()
	var count int
	err := db.QueryRowContext(context.Background(),
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", name,
	).Scan(&count)
	if err != nil {
		t.Fatalf("sqlite_master query error: %v", err)
	}
	return count == 1
}

// TestMigrate verifies migration application.
func TestMigrate(t *testing.T) {
	db := openTestDB(t)
	defer db.Close() //nolint:errcheck // Test cleanup

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	fsys := testMigrations()
	if err := db.Migrate(ctx, fsys); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}

	if !tableExists(t, db, "test_probes") {
		t.Fatal("table test_probes not created")
	}
	if _, err := db.ExecContext(ctx, "INSERT INTO test_probes (label, zone) VALUES ('a', 'north')"); err != nil {
		t.Fatalf("second migration not applied: %v", err)
	}

	applied, pending, err := db.MigrationStatus(ctx, fsys)
	if err != nil {
		t.Fatalf("MigrationStatus() error = %v", err)
	}
	if len(applied) != 2 {
		t.Errorf("expected 2 applied migrations, got %d", len(applied))
	}
	if len(pending) != 0 {
		t.Errorf("expected 0 pending migrations, got %d", len(pending))
	}

	// Running again should be idempotent
	if err := db.Migrate(ctx, fsys); err != nil {
		t.Fatalf("second Migrate() error = %v", err)
	}
}

// TestMigrate_FailureStopsAtBrokenMigration verifies per-migration atomicity.
func TestMigrate_FailureStopsAtBrokenMigration(t *testing.T) {
	db := openTestDB(t)
	defer db.Close() //nolint:errcheck // Test cleanup

	ctx := context.Background()
	fsys := testMigrations()
	fsys["20260102_000000_add_probe_zone.up.sql"] = &fstest.MapFile{Data: []byte("ALTER TABLE missing ADD COLUMN x TEXT;")}

	if err := db.Migrate(ctx, fsys); err == nil {
		t.Fatal("Migrate() error = nil, want failure from broken migration")
	}

	applied, pending, err := db.MigrationStatus(ctx, fsys)
	if err != nil {
		t.Fatalf("MigrationStatus() error = %v", err)
	}
	if len(applied) != 1 || applied[0].Version != "20260101_000000" {
		t.Errorf("applied = %+v, want only the first migration", applied)
	}
	if len(pending) != 1 {
		t.Errorf("expected 1 pending migration, got %d", len(pending))
	}
}

// TestMigrateDown verifies migration rollback.
func TestMigrateDown(t *testing.T) {
	db := openTestDB(t)
	defer db.Close() //nolint:errcheck // Test cleanup

	ctx := context.Background()
	fsys := testMigrations()

	if err := db.Migrate(ctx, fsys); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	if err := db.MigrateDown(ctx, fsys); err != nil {
		t.Fatalf("MigrateDown() error = %v", err)
	}
	if err := db.MigrateDown(ctx, fsys); err != nil {
		t.Fatalf("second MigrateDown() error = %v", err)
	}

	if tableExists(t, db, "test_probes") {
		t.Error("table test_probes should have been dropped")
	}

	applied, _, err := db.MigrationStatus(ctx, fsys)
	if err != nil {
		t.Fatalf("MigrationStatus() error = %v", err)
	}
	if len(applied) != 0 {
		t.Errorf("expected 0 applied migrations after rollback, got %d", len(applied))
	}

	// Nothing left to roll back.
	if err := db.MigrateDown(ctx, fsys); err != nil {
		t.Errorf("MigrateDown() on empty history error = %v", err)
	}
}

// TestMigrateNoMigrations verifies behaviour with no migrations.
func TestMigrateNoMigrations(t *testing.T) {
	db := openTestDB(t)
	defer db.Close() //nolint:errcheck // Test cleanup

	ctx := context.Background()
	if err := db.Migrate(ctx, nil); err != nil {
		t.Fatalf("Migrate(nil) error = %v", err)
	}
	if err := db.Migrate(ctx, fstest.MapFS{"notes.txt": {Data: []byte("x")}}); err != nil {
		t.Fatalf("Migrate(no sql files) error = %v", err)
	}
}

// TestMigrate_EmbeddedSchema applies the shipped schema and checks its seed rows.
func TestMigrate_EmbeddedSchema(t *testing.T) {
	db := openTestDB(t)
	defer db.Close() //nolint:errcheck // Test cleanup

	ctx := context.Background()
	if err := db.Migrate(ctx, migrations.FS); err != nil {
		t.Fatalf("Migrate(migrations.FS) error = %v", err)
	}

	for _, table := range []string{"units", "temperature_log", "email_recipients", "settings", "audit_logs"} {
		if !tableExists(t, db, table) {
			t.Errorf("table %s not created", table)
		}
	}

	var minValue, maxValue string
	if err := db.QueryRowContext(ctx, "SELECT value FROM settings WHERE key = 'temp_spec_min'").Scan(&minValue); err != nil {
		t.Fatalf("reading temp_spec_min: %v", err)
	}
	if err := db.QueryRowContext(ctx, "SELECT value FROM settings WHERE key = 'temp_spec_max'").Scan(&maxValue); err != nil {
		t.Fatalf("reading temp_spec_max: %v", err)
	}
	if minValue != "10" || maxValue != "40" {
		t.Errorf("seeded limits = %s/%s, want 10/40", minValue, maxValue)
	}

	// Removing a unit keeps its samples with a NULL unit reference.
	res, err := db.ExecContext(ctx, "INSERT INTO units (name, sensor_pin, actuator_pin) VALUES ('A', 'D4', 17)")
	if err != nil {
		t.Fatalf("insert unit: %v", err)
	}
	unitID, _ := res.LastInsertId() //nolint:errcheck // sqlite always supports it
	if _, err := db.ExecContext(ctx, "INSERT INTO temperature_log (unit_id, temperature, humidity, actuator_on) VALUES (?, 21.5, 40, 0)", unitID); err != nil {
		t.Fatalf("insert sample: %v", err)
	}
	if _, err := db.ExecContext(ctx, "DELETE FROM units WHERE id = ?", unitID); err != nil {
		t.Fatalf("delete unit: %v", err)
	}
	var nulls int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM temperature_log WHERE unit_id IS NULL").Scan(&nulls); err != nil {
		t.Fatalf("count orphaned samples: %v", err)
	}
	if nulls != 1 {
		t.Errorf("orphaned samples = %d, want 1", nulls)
	}

	if err := db.MigrateDown(ctx, migrations.FS); err != nil {
		t.Fatalf("MigrateDown(migrations.FS) error = %v", err)
	}
	if tableExists(t, db, "audit_logs") {
		t.Error("audit_logs table survived rollback")
	}
	if !tableExists(t, db, "units") {
		t.Error("units table dropped by the audit rollback")
	}

	if err := db.MigrateDown(ctx, migrations.FS); err != nil {
		t.Fatalf("MigrateDown(migrations.FS) error = %v", err)
	}
	if tableExists(t, db, "units") {
		t.Error("units table survived rollback")
	}
}

// TestMigrationStatus verifies status reporting before anything is applied.
func TestMigrationStatus(t *testing.T) {
	db := openTestDB(t)
	defer db.Close() //nolint:errcheck // Test cleanup

	applied, pending, err := db.MigrationStatus(context.Background(), testMigrations())
	if err != nil {
		t.Fatalf("MigrationStatus() error = %v", err)
	}
	if len(applied) != 0 {
		t.Errorf("expected 0 applied, got %d", len(applied))
	}
	if len(pending) != 2 {
		t.Fatalf("expected 2 pending, got %d", len(pending))
	}
	if pending[0].Name != "create_probes" || pending[1].Name != "add_probe_zone" {
		t.Errorf("pending order = %s, %s", pending[0].Name, pending[1].Name)
	}
}

func TestLoadMigrations_DownWithoutUp(t *testing.T) {
	fsys := fstest.MapFS{
		"20260101_000000_orphan.down.sql": {Data: []byte("DROP TABLE x;")},
	}
	if _, err := LoadMigrations(fsys); err == nil {
		t.Error("LoadMigrations() error = nil, want error for down-only migration")
	}
}

// TestParseMigrationFilename verifies filename parsing.
func TestParseMigrationFilename(t *testing.T) {
	tests := []struct {
		name        string
		filename    string
		wantVersion string
		wantIsUp    bool
		wantOk      bool
	}{
		{
			name:        "valid up migration",
			filename:    "20260301_120000_initial_schema.up.sql",
			wantVersion: "20260301_120000",
			wantIsUp:    true,
			wantOk:      true,
		},
		{
			name:        "valid down migration",
			filename:    "20260301_120000_initial_schema.down.sql",
			wantVersion: "20260301_120000",
			wantIsUp:    false,
			wantOk:      true,
		},
		{
			name:     "not sql file",
			filename: "readme.txt",
			wantOk:   false,
		},
		{
			name:     "missing direction",
			filename: "20260301_120000_initial_schema.sql",
			wantOk:   false,
		},
		{
			name:     "invalid format",
			filename: "invalid.up.sql",
			wantOk:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			version, isUp, ok := parseMigrationFilename(tt.filename)
			if ok != tt.wantOk {
				t.Errorf("ok = %v, want %v", ok, tt.wantOk)
			}
			if ok {
				if version != tt.wantVersion {
					t.Errorf("version = %v, want %v", version, tt.wantVersion)
				}
				if isUp != tt.wantIsUp {
					t.Errorf("isUp = %v, want %v", isUp, tt.wantIsUp)
				}
			}
		})
	}
}

// TestExtractMigrationName verifies name extraction.
func TestExtractMigrationName(t *testing.T) {
	tests := []struct {
		filename string
		want     string
	}{
		{"20260301_120000_initial_schema.up.sql", "initial_schema"},
		{"20260301_120000_initial_schema.down.sql", "initial_schema"},
		{"20260402_090000_add_unit_location.up.sql", "add_unit_location"},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			if got := extractMigrationName(tt.filename); got != tt.want {
				t.Errorf("extractMigrationName(%q) = %q, want %q", tt.filename, got, tt.want)
			}
		})
	}
}
