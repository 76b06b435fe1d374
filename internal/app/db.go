package app

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// GetDBPath resolves the path to state.db under the resolved data root.
// Order of precedence:
// 1) CLI override (e.g. --data-root)
// 2) Environment variable: ZJJ_DATA_ROOT
// 3) config.yaml: data_root
// 4) Default: ./.zjj/state.db
func GetDBPath() (string, error) {
	root, err := DataRoot()
	if err != nil {
		return "", fmt.Errorf("failed to determine data root: %w", err)
	}
	return filepath.Join(root, "state.db"), nil
}

// ResolveDBPathDetailed returns the resolved DB path along with the source of that
// decision, for diagnostics (the doctor command).
func ResolveDBPathDetailed() (path string, source string, err error) {
	if override := getDataRootOverride(); override != "" {
		root, ensureErr := ensureDir(override)
		return filepath.Join(root, "state.db"), "cli(--data-root)", ensureErr
	}
	if envRoot := os.Getenv("ZJJ_DATA_ROOT"); envRoot != "" {
		root, ensureErr := ensureDir(envRoot)
		return filepath.Join(root, "state.db"), "env(ZJJ_DATA_ROOT)", ensureErr
	}

	configPaths := []string{
		filepath.Join(defaultDataRoot, "config.yaml"),
		"zjj.yaml",
	}
	for _, p := range configPaths {
		s, loadErr := loadSettingsFile(p)
		if loadErr == nil {
			if s.DataRoot != "" {
				root, ensureErr := ensureDir(s.DataRoot)
				return filepath.Join(root, "state.db"), fmt.Sprintf("config(%s)", p), ensureErr
			}
			continue
		}
		if errors.Is(loadErr, os.ErrNotExist) {
			continue
		}
		return "", "", fmt.Errorf("failed to load config %s: %w", p, loadErr)
	}

	root, err := ensureDir(defaultDataRoot)
	return filepath.Join(root, "state.db"), "default(./.zjj/state.db)", err
}
