package query

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/anthropics/semfora/internal/bm25"
	"github.com/anthropics/semfora/internal/cachedir"
	"github.com/anthropics/semfora/internal/layer"
	"github.com/anthropics/semfora/internal/registry"
)

// newTestContext builds a RepoContext backed by a throwaway cache
// directory under t.TempDir(), without touching git at all.
func newTestContext(t *testing.T) *registry.RepoContext {
	t.Helper()
	root := t.TempDir()
	cd := &cachedir.CacheDir{Root: filepath.Join(root, "cache"), RepoRoot: root, RepoHash: "test-repo"}
	if err := cd.Init(); err != nil {
		t.Fatalf("cd.Init: %v", err)
	}
	return &registry.RepoContext{
		RepoID:       "test-repo",
		BaseRepoPath: root,
		CacheDir:     cd,
		LayeredIndex: layer.NewLayeredIndex(),
		BM25:         bm25.New(),
	}
}

// writeModuleRow appends one compact symbol row to module's shard file.
func writeModuleRow(t *testing.T, cd *cachedir.CacheDir, module string, row cachedir.SymbolIndexEntry) {
	t.Helper()
	path := cd.ModulePath(module)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	data, err := json.Marshal(row)
	if err != nil {
		t.Fatalf("marshal row: %v", err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("open module shard: %v", err)
	}
	defer f.Close()
	if _, err := f.Write(append(data, '\n')); err != nil {
		t.Fatalf("write module row: %v", err)
	}
}

// writeSourceFile writes content to relPath under the repo context's
// base repo path, creating parent directories as needed.
func writeSourceFile(t *testing.T, rc *registry.RepoContext, relPath, content string) {
	t.Helper()
	full := filepath.Join(rc.BaseRepoPath, relPath)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
		t.Fatalf("write source file: %v", err)
	}
}

// writeSymbolFile writes a symbol's full record to its disk location.
func writeSymbolFile(t *testing.T, cd *cachedir.CacheDir, hash string, v interface{}) {
	t.Helper()
	path := cd.SymbolPath(hash)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal symbol: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write symbol file: %v", err)
	}
}
