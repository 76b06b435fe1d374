package mergequeue

import (
	"context"
	"database/sql"
	"time"

	"github.com/dotcommander/zjj/internal/models"
	"github.com/dotcommander/zjj/internal/store"
)

// RecordConflictResolution appends a bookkeeping record of how a conflict was
// resolved. The core never resolves conflicts itself — this is audit only.
func RecordConflictResolution(ctx context.Context, db *sql.DB, r models.ConflictResolution) (int64, error) {
	var id int64
	err := store.Transact(ctx, db, func(tx *sql.Tx) error {
		var err error
		id, err = store.InsertConflictResolutionTx(ctx, tx, r)
		return err
	})
	return id, err
}

// ConflictResolutionFilter narrows ListConflictResolutions. A zero value
// matches everything. Start/End describe a half-open range [Start, End).
type ConflictResolutionFilter struct {
	Session string
	Decider models.Decider
	Start   *time.Time
	End     *time.Time
}

// ListConflictResolutions queries the append-only log, oldest first.
func ListConflictResolutions(ctx context.Context, db *sql.DB, f ConflictResolutionFilter) ([]*models.ConflictResolution, error) {
	return store.ListConflictResolutionsTx(ctx, db, store.ConflictResolutionFilter{
		Session: f.Session,
		Decider: f.Decider,
		Start:   f.Start,
		End:     f.End,
	})
}
