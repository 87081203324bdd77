package storage

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aledlie/dedup/internal/types"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(filepath.Join(t.TempDir(), ".dedup", "dedup.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func scanResult(scannedAt time.Time) *types.ScanResult {
	return &types.ScanResult{
		ProjectRoot:    "/work/retail",
		Language:       types.LangPython,
		ConstructKind:  types.ConstructFunction,
		MinSimilarity:  0.8,
		ConstructCount: 42,
		Groups:         []types.DuplicateGroup{{ID: "dup-001"}},
		ScannedAt:      scannedAt,
		Duration:       340 * time.Millisecond,
	}
}

func backupMeta(id string, createdAt time.Time) *types.BackupMetadata {
	return &types.BackupMetadata{
		BackupID:    id,
		GroupID:     "dup-001",
		PlanSummary: "extract emit_greeting",
		CreatedAt:   createdAt,
		Files: []types.BackupFile{
			{Path: "a.py", Hash: "aaa"},
			{Path: "b.py", Hash: "bbb"},
		},
	}
}

func TestNewCreatesDatabase(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".dedup", "dedup.db")

	store, err := New(path)
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	_, err = os.Stat(path)
	assert.NoError(t, err, "database file should exist on disk")
}

func TestScanHistoryRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	older := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	newer := older.Add(2 * time.Hour)
	require.NoError(t, store.RecordScan(ctx, scanResult(older)))
	require.NoError(t, store.RecordScan(ctx, scanResult(newer)))

	records, err := store.RecentScans(ctx, 10)
	require.NoError(t, err)
	require.Len(t, records, 2)

	// Newest first
	assert.True(t, records[0].ScannedAt.After(records[1].ScannedAt))
	got := records[0]
	assert.Equal(t, "/work/retail", got.ProjectRoot)
	assert.Equal(t, "python", got.Language)
	assert.Equal(t, "function", got.ConstructKind)
	assert.Equal(t, 0.8, got.MinSimilarity)
	assert.Equal(t, 42, got.ConstructCount)
	assert.Equal(t, 1, got.GroupCount)
	assert.False(t, got.Truncated)
	assert.Equal(t, 340*time.Millisecond, got.Duration)
}

func TestRecentScansHonorsLimit(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		require.NoError(t, store.RecordScan(ctx, scanResult(base.Add(time.Duration(i)*time.Minute))))
	}

	records, err := store.RecentScans(ctx, 3)
	require.NoError(t, err)
	assert.Len(t, records, 3)
}

func TestBackupRegistryRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, store.RecordBackup(ctx, backupMeta("bk-1", created)))

	records, err := store.ListBackups(ctx, "")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "bk-1", records[0].BackupID)
	assert.Equal(t, "dup-001", records[0].GroupID)
	assert.Equal(t, 2, records[0].FileCount)
	assert.Equal(t, "extract emit_greeting", records[0].PlanSummary)
	assert.Equal(t, BackupActive, records[0].Status)
}

func TestSetBackupStatus(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.RecordBackup(ctx, backupMeta("bk-1", time.Now())))
	require.NoError(t, store.SetBackupStatus(ctx, "bk-1", BackupRolledBack))

	records, err := store.ListBackups(ctx, BackupRolledBack)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "bk-1", records[0].BackupID)

	active, err := store.ListBackups(ctx, BackupActive)
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestSetBackupStatusUnknownID(t *testing.T) {
	store := newTestStore(t)
	err := store.SetBackupStatus(context.Background(), "no-such-backup", BackupCleaned)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestStaleBackups(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	cutoff := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	old := cutoff.Add(-48 * time.Hour)
	fresh := cutoff.Add(24 * time.Hour)

	require.NoError(t, store.RecordBackup(ctx, backupMeta("bk-old", old)))
	require.NoError(t, store.RecordBackup(ctx, backupMeta("bk-fresh", fresh)))
	require.NoError(t, store.RecordBackup(ctx, backupMeta("bk-gone", old)))
	require.NoError(t, store.SetBackupStatus(ctx, "bk-gone", BackupRolledBack))

	stale, err := store.StaleBackups(ctx, cutoff)
	require.NoError(t, err)
	require.Len(t, stale, 1, "only active backups older than cutoff are stale")
	assert.Equal(t, "bk-old", stale[0].BackupID)
}

func TestAcquireProcessLock(t *testing.T) {
	root := t.TempDir()

	lockPath, err := AcquireProcessLock(root, ".dedup")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, ".dedup", ".lock"), lockPath)

	data, err := os.ReadFile(lockPath)
	require.NoError(t, err)
	var lock ProcessLock
	require.NoError(t, json.Unmarshal(data, &lock))
	assert.Equal(t, os.Getpid(), lock.PID)
	assert.Equal(t, "dedup", lock.Holder)

	// Same live PID holds the lock, so a second acquire fails
	_, err = AcquireProcessLock(root, ".dedup")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already applying")

	require.NoError(t, ReleaseProcessLock(lockPath))
	_, err = os.Stat(lockPath)
	assert.True(t, os.IsNotExist(err))
}

func TestAcquireProcessLockReclaimsStale(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, ".dedup")
	require.NoError(t, os.MkdirAll(dir, 0755))

	hostname, err := os.Hostname()
	require.NoError(t, err)
	stale := ProcessLock{
		Holder:    "dedup",
		PID:       1 << 30, // far beyond any real PID
		Hostname:  hostname,
		StartedAt: time.Now().Add(-time.Hour),
	}
	data, err := json.MarshalIndent(stale, "", "  ")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".lock"), data, 0644))

	lockPath, err := AcquireProcessLock(root, ".dedup")
	require.NoError(t, err, "dead holder's lock should be reclaimed")
	require.NoError(t, ReleaseProcessLock(lockPath))
}

func TestReleaseProcessLockEmptyPath(t *testing.T) {
	assert.NoError(t, ReleaseProcessLock(""))
}
