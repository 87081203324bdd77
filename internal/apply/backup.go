package apply

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/aledlie/dedup/internal/types"
)

// backupsSubdir is where snapshots live under the hidden project directory.
const backupsSubdir = "backups"

// metadataFile is the per-backup manifest name.
const metadataFile = "metadata.json"

// BackupManager owns backup storage: a hidden project-relative directory
// with one subdirectory per backup id, holding copies of original files at
// their original relative paths plus a metadata manifest. The manager is
// the only writer to this directory.
type BackupManager struct {
	projectRoot string
	baseDir     string // absolute path of <projectRoot>/<hidden>/backups
}

// NewBackupManager creates a manager rooted at projectRoot with the given
// hidden directory name (e.g., ".dedup").
func NewBackupManager(projectRoot, hiddenDir string) (*BackupManager, error) {
	if projectRoot == "" {
		return nil, fmt.Errorf("project root is required")
	}
	abs, err := filepath.Abs(projectRoot)
	if err != nil {
		return nil, fmt.Errorf("invalid project root %q: %w", projectRoot, err)
	}
	return &BackupManager{
		projectRoot: abs,
		baseDir:     filepath.Join(abs, hiddenDir, backupsSubdir),
	}, nil
}

// NewBackupID returns a collision-free backup id: UTC timestamp for
// ordering plus a UUID fragment for disambiguation within the same second.
func NewBackupID(now time.Time) string {
	return fmt.Sprintf("%s-%s",
		now.UTC().Format("20060102T150405"),
		uuid.NewString()[:8])
}

// Create snapshots every listed file (project-relative paths) before any
// mutation. Files that do not exist yet (plan creates them) are recorded
// with an empty hash so rollback knows to delete them. Any failure is a
// *types.BackupError and leaves no mutation behind — a partial snapshot
// directory may remain but is inert without its metadata file, which is
// written last.
func (m *BackupManager) Create(groupID, planSummary string, paths []string) (*types.BackupMetadata, error) {
	id := NewBackupID(time.Now())
	dir := filepath.Join(m.baseDir, id)

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, &types.BackupError{Path: dir, Err: err}
	}

	meta := &types.BackupMetadata{
		BackupID:    id,
		CreatedAt:   time.Now().UTC(),
		GroupID:     groupID,
		PlanSummary: planSummary,
	}

	sorted := append([]string(nil), paths...)
	sort.Strings(sorted)

	for _, rel := range sorted {
		src := filepath.Join(m.projectRoot, rel)
		data, err := os.ReadFile(src)
		if err != nil {
			if os.IsNotExist(err) {
				// File the plan will create: nothing to copy, rollback
				// deletes it
				meta.Files = append(meta.Files, types.BackupFile{Path: rel, Hash: ""})
				continue
			}
			return nil, &types.BackupError{Path: rel, Err: err}
		}

		dst := filepath.Join(dir, rel)
		if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
			return nil, &types.BackupError{Path: rel, Err: err}
		}
		if err := os.WriteFile(dst, data, 0644); err != nil {
			return nil, &types.BackupError{Path: rel, Err: err}
		}

		meta.Files = append(meta.Files, types.BackupFile{Path: rel, Hash: hashBytes(data)})
	}

	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return nil, &types.BackupError{Path: dir, Err: err}
	}
	if err := os.WriteFile(filepath.Join(dir, metadataFile), data, 0644); err != nil {
		return nil, &types.BackupError{Path: dir, Err: err}
	}

	return meta, nil
}

// Load reads a backup's metadata. A missing backup is a *types.RollbackError.
func (m *BackupManager) Load(backupID string) (*types.BackupMetadata, error) {
	if err := validBackupID(backupID); err != nil {
		return nil, &types.RollbackError{BackupID: backupID, Err: err}
	}

	data, err := os.ReadFile(filepath.Join(m.baseDir, backupID, metadataFile))
	if err != nil {
		return nil, &types.RollbackError{
			BackupID: backupID,
			Err:      fmt.Errorf("backup metadata unreadable: %w", err),
		}
	}

	var meta types.BackupMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, &types.RollbackError{
			BackupID: backupID,
			Err:      fmt.Errorf("backup metadata corrupted: %w", err),
		}
	}
	if err := meta.Validate(); err != nil {
		return nil, &types.RollbackError{
			BackupID: backupID,
			Err:      fmt.Errorf("backup metadata invalid: %w", err),
		}
	}
	return &meta, nil
}

// Restore writes every recorded file back to its original location,
// verifying each backup copy against its recorded hash first. A hash
// mismatch means the backup itself was tampered with or damaged — that is
// a data-integrity failure, reported before any file is written.
func (m *BackupManager) Restore(backupID string) ([]string, error) {
	meta, err := m.Load(backupID)
	if err != nil {
		return nil, err
	}

	dir := filepath.Join(m.baseDir, backupID)

	// Verify everything before touching the working tree
	contents := make(map[string][]byte, len(meta.Files))
	for _, f := range meta.Files {
		if f.Hash == "" {
			continue // file did not exist pre-apply
		}
		data, err := os.ReadFile(filepath.Join(dir, f.Path))
		if err != nil {
			return nil, &types.RollbackError{BackupID: backupID, Path: f.Path,
				Err: fmt.Errorf("backup copy missing: %w", err)}
		}
		if got := hashBytes(data); got != f.Hash {
			return nil, &types.RollbackError{BackupID: backupID, Path: f.Path,
				Err: fmt.Errorf("backup copy hash mismatch (recorded %s, got %s)", f.Hash, got)}
		}
		contents[f.Path] = data
	}

	var restored []string
	for _, f := range meta.Files {
		target := filepath.Join(m.projectRoot, f.Path)
		if f.Hash == "" {
			// Plan-created file: restoring pre-apply state means removing it
			if err := os.Remove(target); err != nil && !os.IsNotExist(err) {
				return restored, &types.RollbackError{BackupID: backupID, Path: f.Path, Err: err}
			}
			restored = append(restored, f.Path)
			continue
		}
		if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
			return restored, &types.RollbackError{BackupID: backupID, Path: f.Path, Err: err}
		}
		if err := os.WriteFile(target, contents[f.Path], 0644); err != nil {
			return restored, &types.RollbackError{BackupID: backupID, Path: f.Path, Err: err}
		}
		restored = append(restored, f.Path)
	}

	return restored, nil
}

// List returns metadata for every backup on disk, newest first.
func (m *BackupManager) List() ([]*types.BackupMetadata, error) {
	entries, err := os.ReadDir(m.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading backup directory: %w", err)
	}

	var metas []*types.BackupMetadata
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		meta, err := m.Load(e.Name())
		if err != nil {
			continue // unreadable entries are skipped, not fatal, for listing
		}
		metas = append(metas, meta)
	}

	sort.Slice(metas, func(i, j int) bool {
		return metas[i].CreatedAt.After(metas[j].CreatedAt)
	})
	return metas, nil
}

// Delete removes one backup directory entirely.
func (m *BackupManager) Delete(backupID string) error {
	if err := validBackupID(backupID); err != nil {
		return err
	}
	if err := os.RemoveAll(filepath.Join(m.baseDir, backupID)); err != nil {
		return fmt.Errorf("deleting backup %s: %w", backupID, err)
	}
	return nil
}

// hashBytes returns the hex SHA-256 of data.
func hashBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// validBackupID rejects ids that could escape the backup directory.
func validBackupID(id string) error {
	if id == "" {
		return fmt.Errorf("backup id is required")
	}
	if strings.Contains(id, "/") || strings.Contains(id, "\\") || strings.Contains(id, "..") {
		return fmt.Errorf("invalid backup id: %q", id)
	}
	return nil
}
