// Package orchestrator implements the handlers that distribute and
// supervise a build: process registration, makefile distribution with an
// ack barrier, target-locked fetches, log multiplexing, and cancellation on
// error (spec.md §4.4).
package orchestrator

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ZivoMartin/Dake/internal/ids"
)

// WorkDir returns the directory a participant persists pid's submakefile
// under: a stable hash of the ProcessId's fields (spec.md §3 RemoteMakefile,
// §6 "<workspace>/<hash-of-pid>/Makefile").
func WorkDir(spacePath string, pid ids.ProcessId) string {
	return filepath.Join(spacePath, pid.Hash())
}

// PersistMakefile writes text to <WorkDir(spacePath, pid)>/Makefile,
// creating the directory if needed (spec.md §4.4.3 "NewMakefile handler").
func PersistMakefile(spacePath string, pid ids.ProcessId, text string) error {
	dir := WorkDir(spacePath, pid)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create workspace dir %s: %w", dir, err)
	}
	path := filepath.Join(dir, "Makefile")
	if err := os.WriteFile(path, []byte(text), 0644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// ResolveBuildDir picks the directory a Fetch (or NewProcess-driven) make
// invocation runs in: labeledPath when the generating #!ROOT_DEF or label
// supplied one, else the hashed workspace directory (spec.md §4.4.4, and
// SPEC_FULL.md's "--labeled-path passthrough" supplement).
func ResolveBuildDir(spacePath string, pid ids.ProcessId, labeledPath string, hasLabeledPath bool) string {
	if hasLabeledPath {
		return labeledPath
	}
	return WorkDir(spacePath, pid)
}
