package alert

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/mail"
	"strings"
)

var (
	// ErrInvalidEmail is returned for an address that does not parse.
	ErrInvalidEmail = errors.New("alert: invalid email address")

	// ErrRecipientNotFound is returned when removing an unknown address.
	ErrRecipientNotFound = errors.New("alert: recipient not found")
)

// RecipientStore persists alert recipients in the email_recipients table.
type RecipientStore struct {
	db *sql.DB
}

// NewRecipientStore creates a store on an open, migrated database.
func NewRecipientStore(db *sql.DB) *RecipientStore {
	return &RecipientStore{db: db}
}

// NormalizeEmail trims and validates a bare address. Display names are
// rejected so stored values are exactly what gets mailed.
func NormalizeEmail(email string) (string, error) {
	email = strings.TrimSpace(email)
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || addr.Name != "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidEmail, email)
	}
	return email, nil
}

// Add stores email. Adding an address that is already present succeeds
// without creating a duplicate.
func (s *RecipientStore) Add(ctx context.Context, email string) error {
	email, err := NormalizeEmail(email)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, `INSERT OR IGNORE INTO email_recipients (email) VALUES (?)`, email); err != nil {
		return fmt.Errorf("adding recipient: %w", err)
	}
	return nil
}

// Remove deletes email.
func (s *RecipientStore) Remove(ctx context.Context, email string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM email_recipients WHERE email = ?`, strings.TrimSpace(email))
	if err != nil {
		return fmt.Errorf("removing recipient: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking removal: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %q", ErrRecipientNotFound, email)
	}
	return nil
}

// List returns every recipient in insertion order.
func (s *RecipientStore) List(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT email FROM email_recipients ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("listing recipients: %w", err)
	}
	defer rows.Close()

	emails := []string{}
	for rows.Next() {
		var email string
		if err := rows.Scan(&email); err != nil {
			return nil, fmt.Errorf("scanning recipient: %w", err)
		}
		emails = append(emails, email)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating recipients: %w", err)
	}
	return emails, nil
}
