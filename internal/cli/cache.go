package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/anthropics/semfora/internal/cachedir"
	"github.com/anthropics/semfora/internal/pathutil"
)

var pruneDays int

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and manage semfora's on-disk cache",
}

var cacheInfoCmd = &cobra.Command{
	Use:   "info",
	Short: "List every cached repository and its on-disk size",
	RunE:  runCacheInfo,
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear [repo-path]",
	Short: "Delete a repository's cache, or every cached repository if none is given",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runCacheClear,
}

var cachePruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete cached repositories untouched for more than --days",
	RunE:  runCachePrune,
}

func init() {
	cachePruneCmd.Flags().IntVar(&pruneDays, "days", 30, "delete caches not modified within this many days")
	cacheCmd.AddCommand(cacheInfoCmd, cacheClearCmd, cachePruneCmd)
	rootCmd.AddCommand(cacheCmd)
}

// cacheEntry is one repo-hash subdirectory under the cache base.
type cacheEntry struct {
	hash    string
	path    string
	size    int64
	modTime time.Time
}

// listCacheEntries enumerates every repo-hash directory under the cache
// base, oldest-modified first. A missing base directory yields an empty
// list, not an error (nothing has ever been cached).
func listCacheEntries() ([]cacheEntry, error) {
	base, err := pathutil.CacheBaseDir()
	if err != nil {
		return nil, err
	}
	dirEntries, err := os.ReadDir(base)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var entries []cacheEntry
	for _, d := range dirEntries {
		if !d.IsDir() {
			continue
		}
		path := filepath.Join(base, d.Name())
		cd := &cachedir.CacheDir{Root: path, RepoHash: d.Name()}
		size, err := cd.Size()
		if err != nil {
			continue
		}
		mod := latestModTime(path)
		entries = append(entries, cacheEntry{hash: d.Name(), path: path, size: size, modTime: mod})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].modTime.Before(entries[j].modTime) })
	return entries, nil
}

// latestModTime returns the newest ModTime of any regular file under
// dir, used as a cache entry's last-touched timestamp since there is no
// single "last indexed" marker file shared by every format.
func latestModTime(dir string) time.Time {
	var latest time.Time
	filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		if info.ModTime().After(latest) {
			latest = info.ModTime()
		}
		return nil
	})
	return latest
}

func runCacheInfo(cmd *cobra.Command, args []string) error {
	entries, err := listCacheEntries()
	if err != nil {
		return fmt.Errorf("listing cache entries: %w", err)
	}
	if len(entries) == 0 {
		fmt.Println("no cached repositories")
		return nil
	}
	var total int64
	for _, e := range entries {
		total += e.size
		fmt.Printf("%s  %10d bytes  last touched %s\n", e.hash, e.size, e.modTime.Format(time.RFC3339))
	}
	fmt.Printf("%d repositories, %d bytes total\n", len(entries), total)
	return nil
}

func runCacheClear(cmd *cobra.Command, args []string) error {
	if len(args) == 1 {
		cd, err := cachedir.Open(args[0])
		if err != nil {
			return fmt.Errorf("resolving cache directory: %w", err)
		}
		if err := cd.Clear(); err != nil {
			return fmt.Errorf("clearing cache: %w", err)
		}
		fmt.Printf("cleared cache for %s\n", args[0])
		return nil
	}

	entries, err := listCacheEntries()
	if err != nil {
		return fmt.Errorf("listing cache entries: %w", err)
	}
	for _, e := range entries {
		if err := os.RemoveAll(e.path); err != nil {
			return fmt.Errorf("clearing %s: %w", e.hash, err)
		}
	}
	fmt.Printf("cleared %d repositories\n", len(entries))
	return nil
}

func runCachePrune(cmd *cobra.Command, args []string) error {
	if pruneDays < 0 {
		return fmt.Errorf("--days must be non-negative, got %d", pruneDays)
	}
	cutoff := time.Now().AddDate(0, 0, -pruneDays)

	entries, err := listCacheEntries()
	if err != nil {
		return fmt.Errorf("listing cache entries: %w", err)
	}

	pruned := 0
	for _, e := range entries {
		if e.modTime.After(cutoff) {
			continue
		}
		if err := os.RemoveAll(e.path); err != nil {
			return fmt.Errorf("pruning %s: %w", e.hash, err)
		}
		pruned++
	}
	fmt.Printf("pruned %d of %d repositories untouched for more than %d days\n", pruned, len(entries), pruneDays)
	return nil
}
