package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dotcommander/zjj/internal/models"
)

// InsertConflictResolutionTx appends a conflict-resolution record. The log is
// append-only: no update/delete is exposed.
func InsertConflictResolutionTx(ctx context.Context, tx *sql.Tx, r models.ConflictResolution) (int64, error) {
	if r.Session == "" || r.File == "" || r.Strategy == "" {
		return 0, &models.ValidationError{Field: "conflict_resolution", Message: "session, file, and strategy are required"}
	}
	if r.Decider != models.DeciderAI && r.Decider != models.DeciderHuman {
		return 0, &models.ValidationError{Field: "decider", Message: "must be 'ai' or 'human'", Constraints: "decider IN (ai, human)"}
	}
	if r.Timestamp.IsZero() {
		return 0, &models.ValidationError{Field: "timestamp", Message: "must not be zero"}
	}

	result, err := tx.ExecContext(ctx, `
		INSERT INTO conflict_resolutions (timestamp, session, file, strategy, reason, confidence, decider)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, r.Timestamp.UTC().Format(rfc3339), r.Session, r.File, r.Strategy, r.Reason, r.Confidence, string(r.Decider))
	if err != nil {
		return 0, fmt.Errorf("insert conflict resolution: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	return id, nil
}

// ConflictResolutionFilter narrows ListConflictResolutionsTx. A zero value
// matches everything. Start/End describe a half-open range [Start, End).
type ConflictResolutionFilter struct {
	Session string
	Decider models.Decider
	Start   *time.Time
	End     *time.Time
}

// ListConflictResolutionsTx queries the append-only log, oldest first.
func ListConflictResolutionsTx(ctx context.Context, q Querier, f ConflictResolutionFilter) ([]*models.ConflictResolution, error) {
	if f.Start != nil && f.End != nil && !f.Start.Before(*f.End) {
		return nil, &models.ValidationError{Field: "time_range", Message: "start must be before end", Constraints: "start < end"}
	}

	query := `
		SELECT id, timestamp, session, file, strategy, reason, confidence, decider
		FROM conflict_resolutions WHERE 1=1`
	var args []any

	if f.Session != "" {
		query += " AND session = ?"
		args = append(args, f.Session)
	}
	if f.Decider != "" {
		query += " AND decider = ?"
		args = append(args, string(f.Decider))
	}
	if f.Start != nil {
		query += " AND timestamp >= ?"
		args = append(args, f.Start.UTC().Format(rfc3339))
	}
	if f.End != nil {
		query += " AND timestamp < ?"
		args = append(args, f.End.UTC().Format(rfc3339))
	}
	query += " ORDER BY timestamp ASC, id ASC"

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list conflict resolutions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*models.ConflictResolution
	for rows.Next() {
		var r models.ConflictResolution
		var ts, decider string
		var reason sql.NullString
		var confidence sql.NullFloat64
		if err := rows.Scan(&r.ID, &ts, &r.Session, &r.File, &r.Strategy, &reason, &confidence, &decider); err != nil {
			return nil, fmt.Errorf("scan conflict resolution row: %w", err)
		}
		if r.Timestamp, err = time.Parse(rfc3339, ts); err != nil {
			return nil, fmt.Errorf("parse timestamp: %w", err)
		}
		if reason.Valid {
			r.Reason = &reason.String
		}
		if confidence.Valid {
			r.Confidence = &confidence.Float64
		}
		r.Decider = models.Decider(decider)
		out = append(out, &r)
	}
	return out, rows.Err()
}
