package app

import (
	"os"
	"path/filepath"
)

// DataRoot returns the resolved data root directory, creating it if missing.
// Precedence: --data-root flag (SetDataRootOverride) > ZJJ_DATA_ROOT env >
// config.yaml data_root > default "./.zjj" (repo-local, like .git).
func DataRoot() (string, error) {
	if override := getDataRootOverride(); override != "" {
		return ensureDir(override)
	}
	if envRoot := os.Getenv("ZJJ_DATA_ROOT"); envRoot != "" {
		return ensureDir(envRoot)
	}
	cfg, err := LoadSettings()
	if err != nil {
		return "", err
	}
	if cfg.DataRoot != "" {
		return ensureDir(cfg.DataRoot)
	}
	return ensureDir(defaultDataRoot)
}

const defaultDataRoot = ".zjj"

// EnsureDataRoot creates the data root and its standard subdirectories
// (workspaces/, backups/) and a default config.yaml if missing.
func EnsureDataRoot() error {
	root, err := DataRoot()
	if err != nil {
		return err
	}
	for _, sub := range []string{"workspaces", "backups"} {
		if err := os.MkdirAll(filepath.Join(root, sub), 0750); err != nil {
			return err
		}
	}

	configFile := filepath.Join(root, "config.yaml")
	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		return os.WriteFile(configFile, []byte(defaultConfig), 0600)
	}
	return nil
}

func ensureDir(path string) (string, error) {
	if err := os.MkdirAll(path, 0750); err != nil {
		return "", err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return path, nil
	}
	return abs, nil
}

const defaultConfig = `# zjj configuration
# Run: zjj --help

# Optional: override the data root (state.db, workspaces/, backups/ all live here).
# Can also be set via ZJJ_DATA_ROOT or --data-root.
# data_root: .zjj

# lock_ttl_seconds: 300
# max_queue_attempts: 3
# max_stack_depth: 64
# validation_timeout_seconds: 5
# busy_timeout_ms: 5000
`
