package whatif

import (
	"context"
	"database/sql"
	"testing"

	"github.com/dotcommander/zjj/internal/store"
)

func setupTestDB(t *testing.T) (*sql.DB, func()) {
	t.Helper()

	ctx := context.Background()
	tempDir := t.TempDir()
	testDBPath := tempDir + "/test.db"

	db, err := store.InitDBWithPath(ctx, testDBPath)
	if err != nil {
		t.Fatalf("failed to initialize test database: %v", err)
	}

	return db, func() { _ = db.Close() }
}
