package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"syscall"

	"github.com/ZivoMartin/Dake/internal/ids"
)

// DaemonConfig is the persisted record of this host's daemon identity and
// last-known OS pid (spec.md §3 DaemonId, §6 "<workspace>/config.json").
type DaemonConfig struct {
	OSPid uint32       `json:"os_pid"`
	Id    ids.DaemonId `json:"id"`
}

func configPath(spacePath string) string {
	return filepath.Join(spacePath, "config.json")
}

// LoadOrCreateDaemonConfig reads config.json under spacePath, or generates a
// fresh DaemonId and writes a new one if none exists. It does not check
// whether the recorded pid still belongs to a live daemon -- callers that
// care (the daemon's own startup) use AlreadyRunning for that.
func LoadOrCreateDaemonConfig(spacePath string) (DaemonConfig, error) {
	path := configPath(spacePath)

	data, err := os.ReadFile(path)
	if err == nil {
		var cfg DaemonConfig
		if jerr := json.Unmarshal(data, &cfg); jerr != nil {
			return DaemonConfig{}, fmt.Errorf("parse %s: %w", path, jerr)
		}
		return cfg, nil
	}
	if !os.IsNotExist(err) {
		return DaemonConfig{}, fmt.Errorf("read %s: %w", path, err)
	}

	id, err := ids.NewDaemonId()
	if err != nil {
		return DaemonConfig{}, err
	}
	cfg := DaemonConfig{Id: id}
	if err := WriteDaemonConfig(spacePath, cfg); err != nil {
		return DaemonConfig{}, err
	}
	return cfg, nil
}

// WriteDaemonConfig persists cfg under spacePath, writing to a temp file and
// renaming over the final path so a crash mid-write never leaves a
// truncated config.json (spec.md §6 "written atomically via temp-rename").
func WriteDaemonConfig(spacePath string, cfg DaemonConfig) error {
	if err := os.MkdirAll(spacePath, 0755); err != nil {
		return fmt.Errorf("create workspace %s: %w", spacePath, err)
	}

	data, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	path := configPath(spacePath)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename %s to %s: %w", tmp, path, err)
	}
	return nil
}

// AlreadyRunning reports whether cfg.OSPid names a live process, the way
// minimega's own startup checks a pid file and refuses to start a second
// instance unless -force is given (cmd/minimega/main.go).
func AlreadyRunning(cfg DaemonConfig) bool {
	if cfg.OSPid == 0 {
		return false
	}
	proc, err := os.FindProcess(int(cfg.OSPid))
	if err != nil {
		return false
	}
	// On Unix, os.FindProcess always succeeds; signal 0 is the standard
	// liveness probe that performs no actual signaling.
	return proc.Signal(syscall.Signal(0)) == nil
}
