// Package doctor aggregates read-only health signals about a zjj data root
// into a single report. It holds no state and enforces no invariant: every
// field is observational.
package doctor

import (
	"bufio"
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dotcommander/zjj/internal/store"
)

// recentRecoveryWindow bounds how far back into recovery.log's tail a line
// still counts as "recent recovery detected."
const recentRecoveryWindow = 5 * time.Minute

// recoveryLogTailLines is how many trailing lines of recovery.log are
// inspected for recency.
const recoveryLogTailLines = 5

// Report is the full health snapshot returned by Run.
type Report struct {
	DBPath           string
	DBReachable      bool
	DBError          string
	ActiveLockCount  int
	LockQueryError   string
	RecentRecovery   bool
	RecoveryTailLine string
}

// Run performs every check against dataRoot and returns the aggregated
// report. It never returns an error itself: every failure becomes a field
// on the report instead, so a caller always gets something to render.
func Run(ctx context.Context, dataRoot string) Report {
	dbPath := filepath.Join(dataRoot, "state.db")
	report := Report{DBPath: dbPath}

	db, err := store.InitDBWithPath(ctx, dbPath)
	if err != nil {
		report.DBError = err.Error()
		return report
	}
	defer db.Close()
	report.DBReachable = pingDB(ctx, db)
	if !report.DBReachable {
		report.DBError = "database did not respond to ping"
		return report
	}

	locks, err := store.ListLocksTx(ctx, db, time.Now())
	if err != nil {
		report.LockQueryError = err.Error()
	} else {
		report.ActiveLockCount = len(locks)
	}

	recent, line := checkRecentRecovery(filepath.Join(dataRoot, "recovery.log"), time.Now())
	report.RecentRecovery = recent
	report.RecoveryTailLine = line

	return report
}

func pingDB(ctx context.Context, db *sql.DB) bool {
	return db.PingContext(ctx) == nil
}

// checkRecentRecovery reads the last recoveryLogTailLines lines of path and
// reports whether any carries a timestamp within recentRecoveryWindow of
// now. Lines are expected to begin with an RFC 3339 timestamp, space
// separated from the rest of the entry.
func checkRecentRecovery(path string, now time.Time) (bool, string) {
	f, err := os.Open(path)
	if err != nil {
		return false, ""
	}
	defer f.Close()

	var tail []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		tail = append(tail, scanner.Text())
		if len(tail) > recoveryLogTailLines {
			tail = tail[1:]
		}
	}

	for i := len(tail) - 1; i >= 0; i-- {
		line := tail[i]
		fields := strings.SplitN(line, " ", 2)
		if len(fields) == 0 {
			continue
		}
		ts, err := time.Parse(time.RFC3339, fields[0])
		if err != nil {
			continue
		}
		if now.Sub(ts) <= recentRecoveryWindow {
			return true, line
		}
	}
	return false, ""
}
