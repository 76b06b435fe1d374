package workspace

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/dotcommander/zjj/internal/models"
)

// BackupMetadata describes a stored backup without exposing its contents.
type BackupMetadata struct {
	ID        string
	Workspace string
	CreatedAt time.Time
	SizeBytes int64
}

// BackupManager copies workspace directory trees under a root directory
// before destructive repair steps, keyed by a random backup ID.
type BackupManager struct {
	root string
	now  func() time.Time
}

// NewBackupManager returns a BackupManager rooted at <dataRoot>/backups.
func NewBackupManager(dataRoot string) *BackupManager {
	return &BackupManager{
		root: filepath.Join(dataRoot, "backups"),
		now:  time.Now,
	}
}

// WithClock overrides the backup manager's notion of "now", for tests.
func (b *BackupManager) WithClock(now func() time.Time) *BackupManager {
	b.now = now
	return b
}

// CreateBackup copies workspacePath's directory tree under
// <root>/<backupID>/ and returns the generated backup ID.
func (b *BackupManager) CreateBackup(ctx context.Context, workspaceName, workspacePath string) (string, error) {
	backupID := uuid.NewString()
	dest := filepath.Join(b.root, backupID)

	if err := os.MkdirAll(dest, 0o755); err != nil {
		return "", &models.IoError{Op: "mkdir_backup", Path: dest, Message: err.Error()}
	}
	if err := copyTree(ctx, workspacePath, dest); err != nil {
		return "", err
	}

	meta := BackupMetadata{ID: backupID, Workspace: workspaceName, CreatedAt: b.clock()}
	if err := writeBackupMetadata(dest, meta); err != nil {
		return "", err
	}
	return backupID, nil
}

// ListBackups returns metadata for every stored backup, without inspecting
// file contents.
func (b *BackupManager) ListBackups(ctx context.Context) ([]BackupMetadata, error) {
	entries, err := os.ReadDir(b.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, &models.IoError{Op: "list_backups", Path: b.root, Message: err.Error()}
	}

	metas := make([]BackupMetadata, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		meta, err := readBackupMetadata(filepath.Join(b.root, entry.Name()))
		if err != nil {
			continue
		}
		metas = append(metas, meta)
	}
	return metas, nil
}

// RestoreBackup copies a stored backup's directory tree back to destPath.
// It never removes destPath first; partial existing content is left in
// place alongside restored files.
func (b *BackupManager) RestoreBackup(ctx context.Context, backupID, destPath string) error {
	src := filepath.Join(b.root, backupID)
	if _, err := os.Stat(src); err != nil {
		return &models.IoError{Op: "restore_backup", Path: src, Message: err.Error()}
	}
	if err := os.MkdirAll(destPath, 0o755); err != nil {
		return &models.IoError{Op: "restore_backup", Path: destPath, Message: err.Error()}
	}
	return copyTree(ctx, src, destPath)
}

func (b *BackupManager) clock() time.Time {
	if b.now != nil {
		return b.now()
	}
	return time.Now()
}

const backupMetadataFile = ".zjj-backup-meta"

func writeBackupMetadata(dir string, meta BackupMetadata) error {
	path := filepath.Join(dir, backupMetadataFile)
	line := meta.ID + "\n" + meta.Workspace + "\n" + meta.CreatedAt.UTC().Format(time.RFC3339) + "\n"
	if err := os.WriteFile(path, []byte(line), 0o644); err != nil {
		return &models.IoError{Op: "write_backup_metadata", Path: path, Message: err.Error()}
	}
	return nil
}

func readBackupMetadata(dir string) (BackupMetadata, error) {
	path := filepath.Join(dir, backupMetadataFile)
	data, err := os.ReadFile(path)
	if err != nil {
		return BackupMetadata{}, err
	}
	var id, workspace, createdAtRaw string
	fields := splitLines(string(data))
	if len(fields) >= 3 {
		id, workspace, createdAtRaw = fields[0], fields[1], fields[2]
	}
	createdAt, _ := time.Parse(time.RFC3339, createdAtRaw)
	size, _ := dirSize(dir)
	return BackupMetadata{ID: id, Workspace: workspace, CreatedAt: createdAt, SizeBytes: size}, nil
}

func splitLines(s string) []string {
	var lines []string
	start := 0
	for i, r := range s {
		if r == '\n' {
			lines = append(lines, s[start:i])
			start = i + 1
		}
	}
	return lines
}

func dirSize(dir string) (int64, error) {
	var total int64
	err := filepath.Walk(dir, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			total += info.Size()
		}
		return nil
	})
	return total, err
}

// copyTree recursively copies src into dest, preserving relative structure.
func copyTree(ctx context.Context, src, dest string) error {
	return filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dest, rel)
		if info.IsDir() {
			return os.MkdirAll(target, info.Mode())
		}
		return copyFile(path, target, info.Mode())
	})
}

func copyFile(src, dest string, mode os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return &models.IoError{Op: "copy_file_open", Path: src, Message: err.Error()}
	}
	defer in.Close()

	out, err := os.OpenFile(dest, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, mode)
	if err != nil {
		return &models.IoError{Op: "copy_file_create", Path: dest, Message: err.Error()}
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return &models.IoError{Op: "copy_file_write", Path: dest, Message: err.Error()}
	}
	return nil
}
