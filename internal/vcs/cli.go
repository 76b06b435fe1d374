package vcs

import (
	"bytes"
	"context"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/dotcommander/zjj/internal/models"
)

// limitedWriter caps writes at maxBytes, silently discarding overflow, so a
// runaway jj subprocess emitting unbounded stderr cannot exhaust memory.
type limitedWriter struct {
	buf      bytes.Buffer
	maxBytes int
}

func (w *limitedWriter) Write(p []byte) (int, error) {
	n := len(p)
	remaining := w.maxBytes - w.buf.Len()
	if remaining <= 0 {
		return n, nil
	}
	if len(p) > remaining {
		p = p[:remaining]
	}
	w.buf.Write(p)
	return n, nil
}

// CLIDriver shells out to the jj binary found on PATH.
type CLIDriver struct {
	binary string
}

// NewCLIDriver returns a CLIDriver, failing if jj is not found on PATH.
func NewCLIDriver() (*CLIDriver, error) {
	path, err := exec.LookPath("jj")
	if err != nil {
		return nil, &models.JjCommandError{Operation: "lookup", Source: err.Error(), IsNotFound: true}
	}
	return &CLIDriver{binary: path}, nil
}

// run shells out to jj and tags the invocation with a correlation ID so a
// failure reported back up through classifyError can be matched against the
// debug line logged here, without needing to thread the full argv through
// every caller.
func (d *CLIDriver) run(ctx context.Context, dir string, args ...string) (string, string, string, error) {
	correlationID := uuid.NewString()
	slog.Debug("vcs command", "correlation_id", correlationID, "args", args, "dir", dir)

	cmd := exec.CommandContext(ctx, d.binary, args...) //nolint:gosec // G204: args are fixed subcommands plus caller-supplied paths/names, never shell-interpreted
	if dir != "" {
		cmd.Dir = dir
	}
	var stdout bytes.Buffer
	stderrW := &limitedWriter{maxBytes: 8192}
	cmd.Stdout = &stdout
	cmd.Stderr = stderrW

	err := cmd.Run()
	stderr := stderrW.buf.String()
	if stderrW.buf.Len() >= stderrW.maxBytes {
		stderr += " (truncated)"
	}
	if err != nil {
		slog.Warn("vcs command failed", "correlation_id", correlationID, "error", err.Error())
	}
	return strings.TrimSpace(stdout.String()), stderr, correlationID, err
}

func (d *CLIDriver) WorkspaceAdd(ctx context.Context, name, path string) error {
	_, stderr, correlationID, err := d.run(ctx, "", "workspace", "add", "--name", name, path)
	if err != nil {
		return classifyError("workspace_add", name, stderr, correlationID, err)
	}
	return nil
}

func (d *CLIDriver) WorkspaceForget(ctx context.Context, name string) error {
	_, stderr, correlationID, err := d.run(ctx, "", "workspace", "forget", name)
	if err != nil {
		return classifyError("workspace_forget", name, stderr, correlationID, err)
	}
	return nil
}

// WorkspaceList parses jj's "name: path" / "name: path (stale)" listing.
func (d *CLIDriver) WorkspaceList(ctx context.Context) ([]models.WorkspaceInfo, error) {
	out, stderr, correlationID, err := d.run(ctx, "", "workspace", "list")
	if err != nil {
		return nil, classifyError("workspace_list", "", stderr, correlationID, err)
	}
	var infos []models.WorkspaceInfo
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		name, rest, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		rest = strings.TrimSpace(rest)
		isStale := false
		if trimmed, found := strings.CutSuffix(rest, "(stale)"); found {
			rest = strings.TrimSpace(trimmed)
			isStale = true
		}
		infos = append(infos, models.WorkspaceInfo{
			Name:    strings.TrimSpace(name),
			Path:    rest,
			IsStale: isStale,
		})
	}
	return infos, nil
}

func (d *CLIDriver) WorkspaceStatus(ctx context.Context, path string) (models.ChangesSummary, error) {
	out, stderr, correlationID, err := d.run(ctx, path, "status")
	if err != nil {
		return models.ChangesSummary{}, classifyError("workspace_status", "", stderr, correlationID, err)
	}
	var summary models.ChangesSummary
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "M "):
			summary.Modified = append(summary.Modified, strings.TrimSpace(line[2:]))
		case strings.HasPrefix(line, "A "):
			summary.Added = append(summary.Added, strings.TrimSpace(line[2:]))
		case strings.HasPrefix(line, "D "):
			summary.Deleted = append(summary.Deleted, strings.TrimSpace(line[2:]))
		case strings.HasPrefix(line, "R "):
			summary.Renamed = append(summary.Renamed, strings.TrimSpace(line[2:]))
		case strings.HasPrefix(line, "? "):
			summary.Untracked = append(summary.Untracked, strings.TrimSpace(line[2:]))
		}
	}
	return summary, nil
}

func (d *CLIDriver) WorkspaceDiffStat(ctx context.Context, path string) (models.DiffStat, error) {
	out, stderr, correlationID, err := d.run(ctx, path, "diff", "--stat")
	if err != nil {
		return models.DiffStat{}, classifyError("workspace_diff_stat", "", stderr, correlationID, err)
	}
	for _, line := range strings.Split(out, "\n") {
		if strings.Contains(line, "insertion") || strings.Contains(line, "deletion") {
			return parseDiffStatSummaryLine(line), nil
		}
	}
	return models.DiffStat{}, nil
}

// parseDiffStatSummaryLine parses jj's trailer line, e.g.
// "2 files changed, 10 insertions(+), 3 deletions(-)".
func parseDiffStatSummaryLine(line string) models.DiffStat {
	var stat models.DiffStat
	for _, part := range strings.Split(line, ",") {
		part = strings.TrimSpace(part)
		fields := strings.Fields(part)
		if len(fields) < 2 {
			continue
		}
		n, err := strconv.Atoi(fields[0])
		if err != nil {
			continue
		}
		switch {
		case strings.Contains(fields[1], "insertion"):
			stat.Insertions = n
		case strings.Contains(fields[1], "deletion"):
			stat.Deletions = n
		}
	}
	return stat
}

func (d *CLIDriver) CurrentChangeID(ctx context.Context, path string) (string, error) {
	out, stderr, correlationID, err := d.run(ctx, path, "log", "-r", "@", "--no-graph", "-T", "change_id")
	if err != nil {
		return "", classifyError("current_change_id", "", stderr, correlationID, err)
	}
	return out, nil
}

func (d *CLIDriver) CurrentCommitID(ctx context.Context, path string) (string, error) {
	out, stderr, correlationID, err := d.run(ctx, path, "log", "-r", "@", "--no-graph", "-T", "commit_id")
	if err != nil {
		return "", classifyError("current_commit_id", "", stderr, correlationID, err)
	}
	return out, nil
}

func (d *CLIDriver) CurrentBookmarks(ctx context.Context, path string) ([]string, error) {
	out, stderr, correlationID, err := d.run(ctx, path, "log", "-r", "@", "--no-graph", "-T", "bookmarks")
	if err != nil {
		return nil, classifyError("current_bookmarks", "", stderr, correlationID, err)
	}
	if out == "" {
		return nil, nil
	}
	return strings.Fields(out), nil
}

func (d *CLIDriver) Commit(ctx context.Context, path, message string) error {
	_, stderr, correlationID, err := d.run(ctx, path, "commit", "-m", message)
	if err != nil {
		return classifyError("commit", "", stderr, correlationID, err)
	}
	return nil
}

func (d *CLIDriver) Edit(ctx context.Context, path, rev string) error {
	_, stderr, correlationID, err := d.run(ctx, path, "edit", rev)
	if err != nil {
		return classifyError("edit", "", stderr, correlationID, err)
	}
	return nil
}

func (d *CLIDriver) PushBookmark(ctx context.Context, path, bookmark string) error {
	_, stderr, correlationID, err := d.run(ctx, path, "bookmark", "move", bookmark, "--to", "@")
	if err != nil {
		return classifyError("push_bookmark", "", stderr, correlationID, err)
	}
	_, stderr, correlationID, err = d.run(ctx, path, "git", "push", "--bookmark", bookmark)
	if err != nil {
		return classifyError("push_bookmark", "", stderr, correlationID, err)
	}
	return nil
}

var _ Driver = (*CLIDriver)(nil)
