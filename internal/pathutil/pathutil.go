// Package pathutil provides the path normalization, atomic file write, and
// cache base directory primitives shared by every component that persists
// to CacheDir (spec §4.3): Windows path normalization for on-disk storage,
// tmp+rename atomic writes, and per-platform cache root resolution.
package pathutil

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// Normalize converts path to the POSIX-style, forward-slash form used for
// on-disk storage (spec §4.3: "Relative symbol paths must be
// POSIX-encoded on storage"). It is a no-op on already-POSIX paths.
func Normalize(path string) string {
	return filepath.ToSlash(path)
}

// AtomicWrite writes data to path by first writing to "<path>.tmp",
// flushing, then renaming over the destination (spec §4.3: "write to
// X.tmp, flush, rename over X"). On Windows the destination is removed
// first, since os.Rename there refuses to replace an existing file.
func AtomicWrite(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("pathutil: mkdir %s: %w", dir, err)
	}

	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return fmt.Errorf("pathutil: create %s: %w", tmp, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("pathutil: write %s: %w", tmp, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("pathutil: sync %s: %w", tmp, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("pathutil: close %s: %w", tmp, err)
	}

	if runtime.GOOS == "windows" {
		os.Remove(path)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("pathutil: rename %s to %s: %w", tmp, path, err)
	}
	return nil
}

// CacheBaseDir returns the platform cache root semfora writes under:
// os.UserCacheDir()/semfora, falling back to $TMPDIR/semfora-cache if the
// platform cache directory cannot be resolved (headless CI containers
// commonly lack $HOME).
func CacheBaseDir() (string, error) {
	base, err := os.UserCacheDir()
	if err != nil {
		base = os.TempDir()
		return filepath.Join(base, "semfora-cache"), nil
	}
	return filepath.Join(base, "semfora"), nil
}

// RepoHash derives the stable directory-name hash CacheDir uses to key a
// repository's cache directory, from its absolute root path.
func RepoHash(absRepoRoot string) string {
	norm := strings.TrimRight(Normalize(filepath.Clean(absRepoRoot)), "/")
	sum := xxhash.Sum64String(norm)
	return fmt.Sprintf("%016x", sum)
}
