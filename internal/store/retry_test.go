package store

import (
	"context"
	"errors"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
)

func TestRetryWithBackoff_RetriesOnSQLiteBusy(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT 1").WillReturnError(errors.New("database is locked"))
	mock.ExpectQuery("SELECT 1").WillReturnRows(sqlmock.NewRows([]string{"x"}).AddRow(1))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	err = RetryWithBackoff(ctx, func() error {
		row := db.QueryRowContext(ctx, "SELECT 1")
		var x int
		return row.Scan(&x)
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRetryWithBackoff_DoesNotRetryOnConstraintViolation(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("INSERT INTO sessions").WillReturnError(errors.New("UNIQUE constraint failed: sessions.name"))

	ctx := context.Background()
	attempts := 0
	err = RetryWithBackoff(ctx, func() error {
		attempts++
		_, execErr := db.ExecContext(ctx, "INSERT INTO sessions (name) VALUES (?)", "dup")
		return execErr
	})
	require.Error(t, err)
	require.Equal(t, 1, attempts, "constraint violations must not be retried")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRetryWithBackoff_DoesNotRetryOnVersionConflict(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("UPDATE sessions").WillReturnError(&VersionConflictError{Entity: "session", ID: "s1", Version: 3})

	ctx := context.Background()
	attempts := 0
	err = RetryWithBackoff(ctx, func() error {
		attempts++
		_, execErr := db.ExecContext(ctx, "UPDATE sessions SET status = ? WHERE name = ?", "active", "s1")
		return execErr
	})
	require.Error(t, err)
	require.Equal(t, 1, attempts)
	var vce *VersionConflictError
	require.ErrorAs(t, err, &vce)
}

func TestIsRetryableError_StringFallbacks(t *testing.T) {
	require.True(t, isRetryableError(errors.New("database is locked")))
	require.True(t, isRetryableError(errors.New("SQLITE_BUSY: database busy")))
	require.False(t, isRetryableError(errors.New("UNIQUE constraint failed")))
	require.False(t, isRetryableError(errors.New("FOREIGN KEY constraint failed")))
	require.False(t, isRetryableError(errors.New("some unrelated failure")))
}

func TestIsRetryableError_VersionConflictIsNeverRetryable(t *testing.T) {
	require.False(t, isRetryableError(&VersionConflictError{Entity: "session", ID: "s1", Version: 1}))
}

func TestIsVersionConflict(t *testing.T) {
	require.True(t, IsVersionConflict(&VersionConflictError{Entity: "session", ID: "s1", Version: 1}))
	require.True(t, IsVersionConflict(ErrVersionConflict))
	require.False(t, IsVersionConflict(errors.New("unrelated")))
	require.False(t, IsVersionConflict(nil))
}
