package availability

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB abstracts the pgx query interface for testing.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store persists weekly recurring availability.
type Store struct {
	db DB
}

// NewStore creates an availability store.
func NewStore(db DB) *Store {
	return &Store{db: db}
}

// Replace swaps a doctor's whole weekly schedule inside one transaction
// (delete-all-then-insert). Readers never observe a half-applied schedule.
func (s *Store) Replace(ctx context.Context, doctorID uuid.UUID, entries []Entry) error {
	for i := range entries {
		entries[i].DoctorID = doctorID
		if entries[i].ID == uuid.Nil {
			entries[i].ID = uuid.New()
		}
		if err := entries[i].Validate(); err != nil {
			return err
		}
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("availability: begin replace: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM weekly_availability WHERE doctor_id = $1`, doctorID); err != nil {
		return fmt.Errorf("availability: clear schedule: %w", err)
	}

	now := time.Now().UTC()
	for _, e := range entries {
		if _, err := tx.Exec(ctx, `
			INSERT INTO weekly_availability (id, doctor_id, weekday, start_time, end_time, is_active, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			e.ID, e.DoctorID, int(e.Weekday), e.StartTime, e.EndTime, e.Active, now,
		); err != nil {
			return fmt.Errorf("availability: insert weekday %d: %w", e.Weekday, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("availability: commit replace: %w", err)
	}
	return nil
}

// ListByDoctor returns the doctor's full weekly schedule ordered by weekday.
func (s *Store) ListByDoctor(ctx context.Context, doctorID uuid.UUID) ([]Entry, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, doctor_id, weekday, start_time, end_time, is_active, created_at
		FROM weekly_availability
		WHERE doctor_id = $1
		ORDER BY weekday ASC`, doctorID)
	if err != nil {
		return nil, fmt.Errorf("availability: list schedule: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var weekday int
		if err := rows.Scan(&e.ID, &e.DoctorID, &weekday, &e.StartTime, &e.EndTime, &e.Active, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("availability: scan schedule row: %w", err)
		}
		e.Weekday = time.Weekday(weekday)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// ActiveWindow loads the single active window for a weekday, or ErrNoWindow.
func (s *Store) ActiveWindow(ctx context.Context, doctorID uuid.UUID, weekday time.Weekday) (*Entry, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, doctor_id, weekday, start_time, end_time, is_active, created_at
		FROM weekly_availability
		WHERE doctor_id = $1 AND weekday = $2 AND is_active`, doctorID, int(weekday))

	var e Entry
	var wd int
	if err := row.Scan(&e.ID, &e.DoctorID, &wd, &e.StartTime, &e.EndTime, &e.Active, &e.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoWindow
		}
		return nil, fmt.Errorf("availability: load window: %w", err)
	}
	e.Weekday = time.Weekday(wd)
	return &e, nil
}
