package store

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dotcommander/zjj/internal/models"
)

func TestInsertAndListConflictResolutions(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	require.NoError(t, Transact(ctx, db, func(tx *sql.Tx) error {
		_, err := InsertConflictResolutionTx(ctx, tx, models.ConflictResolution{
			Timestamp: now,
			Session:   "s1",
			File:      "main.go",
			Strategy:  "take-ours",
			Decider:   models.DeciderAI,
		})
		return err
	}))

	results, err := ListConflictResolutionsTx(ctx, db, ConflictResolutionFilter{Session: "s1"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, "main.go", results[0].File)
}

func TestInsertConflictResolutionTx_RejectsBadDecider(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	err := Transact(ctx, db, func(tx *sql.Tx) error {
		_, err := InsertConflictResolutionTx(ctx, tx, models.ConflictResolution{
			Timestamp: now, Session: "s1", File: "main.go", Strategy: "take-ours", Decider: "robot",
		})
		return err
	})
	require.Error(t, err)
	var ve *models.ValidationError
	require.ErrorAs(t, err, &ve)
}

func TestListConflictResolutionsTx_RejectsInvertedRange(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()
	now := time.Now().UTC()
	before := now.Add(-time.Hour)

	_, err := ListConflictResolutionsTx(ctx, db, ConflictResolutionFilter{Start: &now, End: &before})
	require.Error(t, err)
	var ve *models.ValidationError
	require.ErrorAs(t, err, &ve)
}

func TestListConflictResolutionsTx_FiltersByTimeRange(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()
	base := time.Now().UTC().Truncate(time.Second)

	insert := func(at time.Time, file string) {
		require.NoError(t, Transact(ctx, db, func(tx *sql.Tx) error {
			_, err := InsertConflictResolutionTx(ctx, tx, models.ConflictResolution{
				Timestamp: at, Session: "s1", File: file, Strategy: "x", Decider: models.DeciderHuman,
			})
			return err
		}))
	}
	insert(base, "a.go")
	insert(base.Add(time.Hour), "b.go")
	insert(base.Add(2*time.Hour), "c.go")

	start := base.Add(30 * time.Minute)
	end := base.Add(90 * time.Minute)
	results, err := ListConflictResolutionsTx(ctx, db, ConflictResolutionFilter{Start: &start, End: &end})
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, "b.go", results[0].File)
}
