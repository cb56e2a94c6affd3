package audit

import (
	"context"
	"database/sql"
	"errors"
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
	return db.DB
}

func TestStore_RecordAndList(t *testing.T) {
	store := NewStore(openTestDB(t))
	ctx := context.Background()

	base := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	entries := []*Entry{
		{Action: ActionCreate, EntityType: EntityUnit, EntityID: "1", Subject: "ops", Details: map[string]any{"name": "north"}, CreatedAt: base},
		{Action: ActionUpdate, EntityType: EntityLimits, CreatedAt: base.Add(time.Minute)},
		{Action: ActionDeactivate, EntityType: EntityUnit, EntityID: "1", CreatedAt: base.Add(2 * time.Minute)},
	}
	for _, e := range entries {
		if err := store.Record(ctx, e); err != nil {
			t.Fatalf("Record() error = %v", err)
		}
		if e.ID == "" {
			t.Error("Record() left ID empty")
		}
	}

	page, err := store.List(ctx, Filter{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if page.Total != 3 || len(page.Entries) != 3 {
		t.Fatalf("List() total=%d len=%d, want 3/3", page.Total, len(page.Entries))
	}
	if page.Entries[0].Action != ActionDeactivate {
		t.Errorf("newest entry = %q, want %q", page.Entries[0].Action, ActionDeactivate)
	}
	oldest := page.Entries[2]
	if oldest.Subject != "ops" || oldest.Details["name"] != "north" || !oldest.CreatedAt.Equal(base) {
		t.Errorf("oldest entry = %+v", oldest)
	}
	if page.Limit != defaultLimit {
		t.Errorf("Limit = %d, want %d", page.Limit, defaultLimit)
	}
}

func TestStore_ListFilters(t *testing.T) {
	store := NewStore(openTestDB(t))
	ctx := context.Background()

	for _, e := range []*Entry{
		{Action: ActionCreate, EntityType: EntityUnit, EntityID: "1"},
		{Action: ActionCreate, EntityType: EntityUnit, EntityID: "2"},
		{Action: ActionCreate, EntityType: EntityRecipient, EntityID: "ops@example.com"},
		{Action: ActionDelete, EntityType: EntityRecipient, EntityID: "ops@example.com"},
	} {
		if err := store.Record(ctx, e); err != nil {
			t.Fatalf("Record() error = %v", err)
		}
	}

	tests := []struct {
		name      string
		filter    Filter
		wantTotal int
		wantLen   int
	}{
		{"all", Filter{}, 4, 4},
		{"by action", Filter{Action: ActionCreate}, 3, 3},
		{"by entity type", Filter{EntityType: EntityRecipient}, 2, 2},
		{"by entity", Filter{EntityType: EntityUnit, EntityID: "2"}, 1, 1},
		{"paged", Filter{Limit: 2, Offset: 3}, 4, 1},
		{"limit clamped", Filter{Limit: 1000}, 4, 4},
		{"no match", Filter{Action: ActionActuator}, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := store.List(ctx, tt.filter)
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			if page.Total != tt.wantTotal || len(page.Entries) != tt.wantLen {
				t.Errorf("List() total=%d len=%d, want %d/%d", page.Total, len(page.Entries), tt.wantTotal, tt.wantLen)
			}
			if page.Limit > maxLimit {
				t.Errorf("Limit = %d, exceeds %d", page.Limit, maxLimit)
			}
		})
	}
}

func TestStore_RecordFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()

	mock.ExpectExec("INSERT INTO audit_logs").WillReturnError(errors.New("disk I/O error"))

	if err := NewStore(db).Record(context.Background(), &Entry{Action: ActionCreate, EntityType: EntityUnit}); err == nil {
		t.Error("Record() error = nil, want error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}
