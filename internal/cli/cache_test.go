package cli

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// withCacheBase points pathutil.CacheBaseDir at a throwaway directory for
// the duration of a test by setting XDG_CACHE_HOME, which os.UserCacheDir
// honors on Linux.
func withCacheBase(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CACHE_HOME", dir)
	return filepath.Join(dir, "semfora")
}

func seedCacheEntry(t *testing.T, base, hash string, age time.Duration) {
	t.Helper()
	dir := filepath.Join(base, hash)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	file := filepath.Join(dir, "overview.json")
	if err := os.WriteFile(file, []byte("{}"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	stamp := time.Now().Add(-age)
	if err := os.Chtimes(file, stamp, stamp); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
}

func TestListCacheEntriesEmptyWhenNoBaseDir(t *testing.T) {
	withCacheBase(t)
	entries, err := listCacheEntries()
	if err != nil {
		t.Fatalf("listCacheEntries: %v", err)
	}
	if entries != nil {
		t.Errorf("expected no entries, got %v", entries)
	}
}

func TestListCacheEntriesSortedOldestFirst(t *testing.T) {
	base := withCacheBase(t)
	seedCacheEntry(t, base, "recent", time.Hour)
	seedCacheEntry(t, base, "old", 40*24*time.Hour)

	entries, err := listCacheEntries()
	if err != nil {
		t.Fatalf("listCacheEntries: %v", err)
	}
	if len(entries) != 2 || entries[0].hash != "old" || entries[1].hash != "recent" {
		t.Fatalf("expected [old, recent], got %+v", entries)
	}
}

func TestRunCachePruneDeletesOnlyStaleEntries(t *testing.T) {
	base := withCacheBase(t)
	seedCacheEntry(t, base, "recent", time.Hour)
	seedCacheEntry(t, base, "old", 40*24*time.Hour)

	pruneDays = 30
	if err := runCachePrune(cachePruneCmd, nil); err != nil {
		t.Fatalf("runCachePrune: %v", err)
	}

	if _, err := os.Stat(filepath.Join(base, "old")); !os.IsNotExist(err) {
		t.Error("expected the old entry to be pruned")
	}
	if _, err := os.Stat(filepath.Join(base, "recent")); err != nil {
		t.Error("expected the recent entry to survive pruning")
	}
}

func TestRunCacheClearRemovesEverythingWithNoArgs(t *testing.T) {
	base := withCacheBase(t)
	seedCacheEntry(t, base, "one", time.Minute)
	seedCacheEntry(t, base, "two", time.Minute)

	if err := runCacheClear(cacheClearCmd, nil); err != nil {
		t.Fatalf("runCacheClear: %v", err)
	}
	entries, err := listCacheEntries()
	if err != nil {
		t.Fatalf("listCacheEntries: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("expected every cache entry removed, got %+v", entries)
	}
}
