package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Contact is a resolvable notification target.
type Contact struct {
	Name  string
	Email string
}

// ErrNoContact means the user has no deliverable address on file.
var ErrNoContact = errors.New("notify: no contact on file")

// Directory resolves user ids to notification contacts.
type Directory interface {
	Contact(ctx context.Context, userID uuid.UUID) (*Contact, error)
}

type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PGDirectory resolves contacts from the users table, which mirrors the
// subset of the identity service this system needs for delivery.
type PGDirectory struct {
	db rowQuerier
}

func NewPGDirectory(db rowQuerier) *PGDirectory {
	if db == nil {
		panic("notify: db required")
	}
	return &PGDirectory{db: db}
}

// Contact looks up one user's name and email.
func (d *PGDirectory) Contact(ctx context.Context, userID uuid.UUID) (*Contact, error) {
	var c Contact
	err := d.db.QueryRow(ctx,
		`SELECT full_name, email FROM users WHERE id = $1`, userID).
		Scan(&c.Name, &c.Email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoContact
		}
		return nil, fmt.Errorf("notify: contact lookup: %w", err)
	}
	if c.Email == "" {
		return nil, ErrNoContact
	}
	return &c, nil
}
