package vcs

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseDiffStatSummaryLine(t *testing.T) {
	stat := parseDiffStatSummaryLine("2 files changed, 10 insertions(+), 3 deletions(-)")
	require.Equal(t, 10, stat.Insertions)
	require.Equal(t, 3, stat.Deletions)
}

func TestParseDiffStatSummaryLineInsertionsOnly(t *testing.T) {
	stat := parseDiffStatSummaryLine("1 file changed, 4 insertions(+)")
	require.Equal(t, 4, stat.Insertions)
	require.Equal(t, 0, stat.Deletions)
}

func TestLimitedWriterTruncates(t *testing.T) {
	w := &limitedWriter{maxBytes: 4}
	n, err := w.Write([]byte("abcdef"))
	require.NoError(t, err)
	require.Equal(t, 6, n, "must report the original length to avoid a short-write error")
	require.Equal(t, "abcd", w.buf.String())
}

func TestCLIDriverRunWithMockScript(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "mock-jj")
	require.NoError(t, os.WriteFile(script, []byte("#!/bin/sh\necho \"$@\"\n"), 0o755))

	d := &CLIDriver{binary: script}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	out, stderr, correlationID, err := d.run(ctx, "", "workspace", "list")
	require.NoError(t, err)
	require.Empty(t, stderr)
	require.Equal(t, "workspace list", out)
	require.NotEmpty(t, correlationID)
}

func TestCLIDriverRunCapturesStderrOnFailure(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "mock-jj")
	require.NoError(t, os.WriteFile(script, []byte("#!/bin/sh\necho 'error: workspace '\"'\"'ws'\"'\"' already exists' >&2\nexit 1\n"), 0o755))

	d := &CLIDriver{binary: script}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := d.WorkspaceAdd(ctx, "ws", "/tmp/ws")
	require.Error(t, err)
	require.Contains(t, err.Error(), "already exists")
}

func TestNewCLIDriverFailsWhenBinaryMissing(t *testing.T) {
	t.Setenv("PATH", t.TempDir())
	_, err := NewCLIDriver()
	require.Error(t, err)
}
