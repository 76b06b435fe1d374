package app

import (
	"errors"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

// Settings represents configuration loaded from config.yaml.
// Field names match snake_case YAML keys.
type Settings struct {
	DataRoot                 string `yaml:"data_root"`
	LockTTLSeconds           int    `yaml:"lock_ttl_seconds"`
	MaxQueueAttempts         int    `yaml:"max_queue_attempts"`
	MaxStackDepth            int    `yaml:"max_stack_depth"`
	ValidationTimeoutSeconds int    `yaml:"validation_timeout_seconds"`
	BusyTimeoutMS            int    `yaml:"busy_timeout_ms"`
}

// RuntimeSettings are effective, defaulted, clamped values used throughout the core.
type RuntimeSettings struct {
	LockTTLSeconds           int
	MaxQueueAttempts         int
	MaxStackDepth            int
	ValidationTimeoutSeconds int
	BusyTimeoutMS            int
}

const (
	defaultLockTTLSeconds           = 300
	defaultMaxQueueAttempts         = 3
	defaultMaxStackDepth            = 64
	defaultValidationTimeoutSeconds = 5
	defaultBusyTimeoutMS            = 5000

	maxLockTTLSeconds   = 86400
	maxStackDepthCeil   = 4096
	maxValidationSecCap = 300
)

// EffectiveRuntimeSettings returns validated runtime settings with defaults applied.
// Invalid or missing config values fall back to safe defaults.
func EffectiveRuntimeSettings() RuntimeSettings {
	cfg := RuntimeSettings{
		LockTTLSeconds:           defaultLockTTLSeconds,
		MaxQueueAttempts:         defaultMaxQueueAttempts,
		MaxStackDepth:            defaultMaxStackDepth,
		ValidationTimeoutSeconds: defaultValidationTimeoutSeconds,
		BusyTimeoutMS:            defaultBusyTimeoutMS,
	}

	s, err := LoadSettings()
	if err != nil {
		return cfg
	}

	if s.LockTTLSeconds > 0 {
		cfg.LockTTLSeconds = s.LockTTLSeconds
	}
	if s.MaxQueueAttempts > 0 {
		cfg.MaxQueueAttempts = s.MaxQueueAttempts
	}
	if s.MaxStackDepth > 0 {
		cfg.MaxStackDepth = s.MaxStackDepth
	}
	if s.ValidationTimeoutSeconds > 0 {
		cfg.ValidationTimeoutSeconds = s.ValidationTimeoutSeconds
	}
	if s.BusyTimeoutMS > 0 {
		cfg.BusyTimeoutMS = s.BusyTimeoutMS
	}

	if cfg.LockTTLSeconds > maxLockTTLSeconds {
		cfg.LockTTLSeconds = maxLockTTLSeconds
	}
	if cfg.MaxStackDepth > maxStackDepthCeil {
		cfg.MaxStackDepth = maxStackDepthCeil
	}
	if cfg.ValidationTimeoutSeconds > maxValidationSecCap {
		cfg.ValidationTimeoutSeconds = maxValidationSecCap
	}
	return cfg
}

// settingsOnce, settings, settingsErr implement the sync.Once lazy-load singleton for
// config. dataRootOverrideMu and dataRootOverride implement a mutex-protected
// process-wide override for CLI --data-root. These globals are required by the
// sync.Once pattern and the RWMutex pattern; they cannot be avoided.
//
//nolint:gochecknoglobals // sync.Once singleton + RWMutex override are intentional process-wide state
var (
	settingsOnce sync.Once
	settings     Settings
	settingsErr  error

	dataRootOverrideMu sync.RWMutex
	dataRootOverride   string
)

// SetDataRootOverride sets a process-wide data root override.
// Intended for CLI flag support (e.g. --data-root).
func SetDataRootOverride(path string) {
	dataRootOverrideMu.Lock()
	dataRootOverride = path
	dataRootOverrideMu.Unlock()
}

func getDataRootOverride() string {
	dataRootOverrideMu.RLock()
	v := dataRootOverride
	dataRootOverrideMu.RUnlock()
	return v
}

// LoadSettings loads configuration once using the documented lookup order.
// Lookup order (first found wins):
// 1) <default data root>/config.yaml (./.zjj/config.yaml)
// 2) ./zjj.yaml (repo-local override at the working directory root)
// Environment variables are handled separately.
func LoadSettings() (Settings, error) {
	settingsOnce.Do(func() {
		settings = Settings{}

		if s, err := loadSettingsFile(filepath.Join(defaultDataRoot, "config.yaml")); err == nil {
			settings = s
			return
		} else if !errors.Is(err, os.ErrNotExist) {
			settingsErr = err
			return
		}

		if s, err := loadSettingsFile("zjj.yaml"); err == nil {
			settings = s
			return
		} else if !errors.Is(err, os.ErrNotExist) {
			settingsErr = err
			return
		}
	})

	return settings, settingsErr
}

func loadSettingsFile(path string) (Settings, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, err
	}

	var s Settings
	if err := yaml.Unmarshal(b, &s); err != nil {
		return Settings{}, err
	}
	return s, nil
}
