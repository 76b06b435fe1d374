package commands

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"path/filepath"

	"github.com/dotcommander/zjj/internal/app"
	"github.com/dotcommander/zjj/internal/output"
	"github.com/dotcommander/zjj/internal/store"
)

// DB is an alias so command code doesn't need to import database/sql.
type DB = sql.DB

type printedError struct {
	err error
}

func (e printedError) Error() string {
	// Intentionally hide the original error: the JSON error response is the output.
	return "error already printed"
}

func (e printedError) Unwrap() error {
	return e.err
}

// Unwrap extracts the original typed error from Execute's return value, for
// callers (main's exit code mapping) that need the concrete error type
// rather than the already-printed wrapper.
func Unwrap(err error) error {
	var pe printedError
	if errors.As(err, &pe) {
		return pe.err
	}
	return err
}

func openDB(ctx context.Context) (*DB, func(), error) {
	root, err := app.DataRoot()
	if err != nil {
		return nil, nil, err
	}

	db, err := store.InitDBWithPath(ctx, filepath.Join(root, "state.db"))
	if err != nil {
		return nil, nil, err
	}

	return db, func() { _ = db.Close() }, nil
}

func withDB(ctx context.Context, fn func(db *DB) error) error {
	db, closeDB, err := openDB(ctx)
	if err != nil {
		return cmdErr(err)
	}
	defer closeDB()

	if err := fn(db); err != nil {
		return cmdErr(err)
	}
	return nil
}

func cmdErr(err error) error {
	if err == nil {
		return nil
	}
	attrs := []any{"error", err.Error()}
	type slogAttrError interface {
		SlogAttrs() []any
	}
	var detailed slogAttrError
	if errors.As(err, &detailed) {
		attrs = append(attrs, detailed.SlogAttrs()...)
	}
	slog.Error("command error", attrs...)
	_ = output.PrintError(err)
	return printedError{err: err}
}
