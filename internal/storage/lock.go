package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"
)

// ProcessLock is the lock file format claiming exclusive apply rights to a
// project. A second dedup process seeing a live lock refuses to mutate the
// same working tree; a stale lock (dead PID on the same host) is reclaimed.
type ProcessLock struct {
	Holder    string    `json:"holder"`
	PID       int       `json:"pid"`
	Hostname  string    `json:"hostname"`
	StartedAt time.Time `json:"started_at"`
}

// AcquireProcessLock creates the lock file inside the hidden project
// directory. Returns the lock path for release on shutdown.
func AcquireProcessLock(projectRoot, hiddenDir string) (lockPath string, err error) {
	dir := filepath.Join(projectRoot, hiddenDir)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create %s: %w", dir, err)
	}
	lockPath = filepath.Join(dir, ".lock")

	if data, err := os.ReadFile(lockPath); err == nil {
		var existing ProcessLock
		if json.Unmarshal(data, &existing) == nil {
			if isProcessAlive(existing.PID, existing.Hostname) {
				return "", fmt.Errorf("another dedup process is already applying (PID %d on %s, started %s)",
					existing.PID, existing.Hostname, existing.StartedAt.Format(time.RFC3339))
			}
			// Stale lock - will overwrite
		}
	}

	hostname, err := os.Hostname()
	if err != nil {
		return "", fmt.Errorf("failed to get hostname: %w", err)
	}

	lock := ProcessLock{
		Holder:    "dedup",
		PID:       os.Getpid(),
		Hostname:  hostname,
		StartedAt: time.Now(),
	}
	data, err := json.MarshalIndent(lock, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal lock: %w", err)
	}
	if err := os.WriteFile(lockPath, data, 0644); err != nil {
		return "", fmt.Errorf("failed to create lock: %w", err)
	}

	return lockPath, nil
}

// ReleaseProcessLock removes the lock file. Safe to call with "".
func ReleaseProcessLock(lockPath string) error {
	if lockPath == "" {
		return nil
	}
	if err := os.Remove(lockPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove lock: %w", err)
	}
	return nil
}

// isProcessAlive checks if a PID exists on the given host. Remote hosts
// cannot be checked and are assumed alive (fail-safe).
func isProcessAlive(pid int, hostname string) bool {
	currentHost, err := os.Hostname()
	if err != nil {
		return true
	}
	if !strings.EqualFold(hostname, currentHost) {
		return true
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}

	err = process.Signal(syscall.Signal(0))
	if err == nil {
		return true
	}
	if err == syscall.EPERM {
		// Exists but owned by someone else
		return true
	}
	return false
}
