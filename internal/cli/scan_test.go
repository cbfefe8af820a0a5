package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/anthropics/semfora/internal/bm25"
	"github.com/anthropics/semfora/internal/cachedir"
	"github.com/anthropics/semfora/internal/layer"
	"github.com/anthropics/semfora/internal/registry"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestDiscoverSourceFilesSkipsIgnoredDirectories(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "main.go"), "package main\n")
	writeFile(t, filepath.Join(root, "node_modules", "vendored.go"), "package main\n")
	writeFile(t, filepath.Join(root, ".git", "hidden.go"), "package main\n")
	writeFile(t, filepath.Join(root, "README.md"), "# not source\n")

	files, err := discoverSourceFiles(root)
	if err != nil {
		t.Fatalf("discoverSourceFiles: %v", err)
	}
	if len(files) != 1 || filepath.Base(files[0]) != "main.go" {
		t.Fatalf("expected only main.go, got %v", files)
	}
}

func TestExtractFileReturnsSymbols(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "a.go")
	writeFile(t, path, "package a\n\nfunc Hello() string {\n\treturn \"hi\"\n}\n")

	summary, err := extractFile(path)
	if err != nil {
		t.Fatalf("extractFile: %v", err)
	}
	if len(summary.Symbols) == 0 {
		t.Fatal("expected at least one extracted symbol")
	}
	found := false
	for _, sym := range summary.Symbols {
		if sym.Name == "Hello" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a Hello symbol, got %+v", summary.Symbols)
	}
}

func TestExtractFileRejectsUnknownLanguage(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "data.bin")
	writeFile(t, path, "\x00\x01")

	if _, err := extractFile(path); err == nil {
		t.Fatal("expected an error for a file with no resolvable language")
	}
}

func newCLITestContext(t *testing.T) *registry.RepoContext {
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

func TestInitialScanPopulatesCacheAndBaseLayer(t *testing.T) {
	rc := newCLITestContext(t)
	writeFile(t, filepath.Join(rc.BaseRepoPath, "a.go"), "package a\n\nfunc Foo() {}\n")
	writeFile(t, filepath.Join(rc.BaseRepoPath, "b.go"), "package a\n\nfunc Bar() {}\n")

	if err := initialScan(rc); err != nil {
		t.Fatalf("initialScan: %v", err)
	}

	if !rc.CacheDir.Exists() {
		t.Fatal("expected the cache directory to be initialized")
	}
	if _, err := os.Stat(rc.CacheDir.OverviewPath()); err != nil {
		t.Errorf("expected an overview file, got %v", err)
	}
	if len(rc.LayeredIndex.Base.States) != 2 {
		t.Errorf("expected 2 symbols in the Base layer, got %d", len(rc.LayeredIndex.Base.States))
	}
	if len(rc.BM25.Documents) != 2 {
		t.Errorf("expected 2 BM25 documents loaded back in memory, got %d", len(rc.BM25.Documents))
	}
}
