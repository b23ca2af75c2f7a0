package availability

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	pgx "github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReplaceRunsInOneTransaction(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewStore(mock)
	doctorID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM weekly_availability").
		WithArgs(doctorID).
		WillReturnResult(pgxmock.NewResult("DELETE", 2))
	mock.ExpectExec("INSERT INTO weekly_availability").
		WithArgs(pgxmock.AnyArg(), doctorID, 1, "09:00", "13:00", true, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO weekly_availability").
		WithArgs(pgxmock.AnyArg(), doctorID, 3, "14:00", "18:00", true, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	err = store.Replace(context.Background(), doctorID, []Entry{
		{Weekday: time.Monday, StartTime: "09:00", EndTime: "13:00", Active: true},
		{Weekday: time.Wednesday, StartTime: "14:00", EndTime: "18:00", Active: true},
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReplaceRejectsInvertedWindowBeforeTouchingDB(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewStore(mock)

	err = store.Replace(context.Background(), uuid.New(), []Entry{
		{Weekday: time.Monday, StartTime: "13:00", EndTime: "09:00", Active: true},
	})
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet(), "no SQL should run for invalid input")
}

func TestActiveWindowNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewStore(mock)
	doctorID := uuid.New()

	mock.ExpectQuery("SELECT id, doctor_id, weekday").
		WithArgs(doctorID, 2).
		WillReturnError(pgx.ErrNoRows)

	_, err = store.ActiveWindow(context.Background(), doctorID, time.Tuesday)
	assert.ErrorIs(t, err, ErrNoWindow)
}

func TestListByDoctor(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewStore(mock)
	doctorID := uuid.New()
	created := time.Now().UTC()

	mock.ExpectQuery("SELECT id, doctor_id, weekday").
		WithArgs(doctorID).
		WillReturnRows(pgxmock.NewRows([]string{"id", "doctor_id", "weekday", "start_time", "end_time", "is_active", "created_at"}).
			AddRow(uuid.New(), doctorID, 1, "09:00", "13:00", true, created).
			AddRow(uuid.New(), doctorID, 5, "10:00", "12:00", false, created))

	entries, err := store.ListByDoctor(context.Background(), doctorID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, time.Monday, entries[0].Weekday)
	assert.Equal(t, time.Friday, entries[1].Weekday)
	assert.False(t, entries[1].Active)
}
