// Package audit records administrative changes (units, limits, recipients)
// and lists them newest first.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Actions.
const (
	ActionCreate     = "create"
	ActionDeactivate = "deactivate"
	ActionActuator   = "actuator"
	ActionUpdate     = "update"
	ActionDelete     = "delete"
)

// Entity types.
const (
	EntityUnit      = "unit"
	EntityLimits    = "limits"
	EntityRecipient = "recipient"
)

// timestampLayout matches the schema's strftime default.
const timestampLayout = "2006-01-02T15:04:05Z"

// Page size bounds for List.
const (
	defaultLimit = 50
	maxLimit     = 200
)

// Entry is one administrative change.
type Entry struct {
	ID         string         `json:"id"`
	Action     string         `json:"action"`
	EntityType string         `json:"entity_type"`
	EntityID   string         `json:"entity_id,omitempty"`
	Subject    string         `json:"subject,omitempty"`
	Details    map[string]any `json:"details,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// Filter narrows List. Empty fields match everything.
type Filter struct {
	Action     string
	EntityType string
	EntityID   string
	Limit      int // default 50, max 200
	Offset     int
}

// Page is one page of entries plus the total match count.
type Page struct {
	Entries []Entry `json:"entries"`
	Total   int     `json:"total"`
	Limit   int     `json:"limit"`
	Offset  int     `json:"offset"`
}

// Store persists audit entries in SQLite.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// NewStore creates an audit store on an open, migrated database.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// Record inserts e, assigning its ID and CreatedAt when unset.
func (s *Store) Record(ctx context.Context, e *Entry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.now().UTC().Truncate(time.Second)
	}

	var details any
	if len(e.Details) > 0 {
		b, err := json.Marshal(e.Details)
		if err != nil {
			return fmt.Errorf("marshalling audit details: %w", err)
		}
		details = string(b)
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO audit_logs (id, action, entity_type, entity_id, subject, details, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Action, e.EntityType,
		nullableString(e.EntityID), nullableString(e.Subject), details,
		e.CreatedAt.UTC().Format(timestampLayout),
	)
	if err != nil {
		return fmt.Errorf("inserting audit entry: %w", err)
	}
	return nil
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// List returns entries matching f, newest first.
func (s *Store) List(ctx context.Context, f Filter) (*Page, error) {
	if f.Limit <= 0 {
		f.Limit = defaultLimit
	}
	f.Limit = min(f.Limit, maxLimit)
	f.Offset = max(f.Offset, 0)

	var conds []string
	var args []any
	for _, c := range []struct{ col, val string }{
		{"action", f.Action},
		{"entity_type", f.EntityType},
		{"entity_id", f.EntityID},
	} {
		if c.val != "" {
			conds = append(conds, c.col+" = ?")
			args = append(args, c.val)
		}
	}
	where := ""
	if len(conds) > 0 {
		where = "WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	//nolint:gosec // WHERE holds only fixed column names with placeholders
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM audit_logs "+where, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting audit entries: %w", err)
	}

	//nolint:gosec // WHERE holds only fixed column names with placeholders
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, action, entity_type, entity_id, subject, details, created_at
		 FROM audit_logs `+where+` ORDER BY created_at DESC, rowid DESC LIMIT ? OFFSET ?`,
		append(args, f.Limit, f.Offset)...)
	if err != nil {
		return nil, fmt.Errorf("querying audit entries: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating audit entries: %w", err)
	}

	return &Page{Entries: entries, Total: total, Limit: f.Limit, Offset: f.Offset}, nil
}

func scanEntry(rows *sql.Rows) (Entry, error) {
	var e Entry
	var entityID, subject, details sql.NullString
	var createdAt string
	if err := rows.Scan(&e.ID, &e.Action, &e.EntityType, &entityID, &subject, &details, &createdAt); err != nil {
		return Entry{}, fmt.Errorf("scanning audit entry: %w", err)
	}
	e.EntityID = entityID.String
	e.Subject = subject.String
	if details.Valid && details.String != "" {
		//nolint:errcheck // details are written by Record; a bad row keeps nil details
		json.Unmarshal([]byte(details.String), &e.Details)
	}

	t, err := time.Parse(timestampLayout, createdAt)
	if err != nil {
		return Entry{}, fmt.Errorf("parsing audit timestamp %q: %w", createdAt, err)
	}
	e.CreatedAt = t
	return e, nil
}
