package watcher

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestKindOrderingRanksDeletedHighest(t *testing.T) {
	if !(Deleted > Renamed && Renamed > Modified && Modified > Created) {
		t.Fatalf("expected Deleted > Renamed > Modified > Created, got %d %d %d %d",
			Deleted, Renamed, Modified, Created)
	}
}

func TestShouldIgnoreFixedSet(t *testing.T) {
	root := t.TempDir()
	w, err := New(root, 50*time.Millisecond, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	cases := []struct {
		path string
		want bool
	}{
		{filepath.Join(root, ".git", "HEAD"), true},
		{filepath.Join(root, "node_modules", "pkg", "index.js"), true},
		{filepath.Join(root, ".semfora", "cache.json"), true},
		{filepath.Join(root, "src", "main.go"), false},
	}
	for _, c := range cases {
		if got := w.shouldIgnore(c.path); got != c.want {
			t.Errorf("shouldIgnore(%q) = %v, want %v", c.path, got, c.want)
		}
	}
}

func TestShouldIgnoreExtraPatterns(t *testing.T) {
	root := t.TempDir()
	w, err := New(root, 50*time.Millisecond, []string{"*.log"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if !w.shouldIgnore(filepath.Join(root, "debug.log")) {
		t.Error("expected *.log to be ignored via extra_ignores")
	}
	if w.shouldIgnore(filepath.Join(root, "main.go")) {
		t.Error("main.go should not be ignored")
	}
}

func TestWatcherCoalescesCreateThenWriteIntoModified(t *testing.T) {
	root := t.TempDir()
	w, err := New(root, 30*time.Millisecond, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := w.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer w.Stop()

	path := filepath.Join(root, "foo.go")
	if err := os.WriteFile(path, []byte("package foo\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("package foo\n\nfunc A() {}\n"), 0644); err != nil {
		t.Fatal(err)
	}

	select {
	case batch := <-w.Changes:
		found := false
		for _, c := range batch {
			if c.Path == path {
				found = true
				if c.Kind < Modified {
					t.Errorf("expected coalesced kind >= Modified, got %v", c.Kind)
				}
			}
		}
		if !found {
			t.Errorf("expected a change for %s in batch %+v", path, batch)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a change batch")
	}
}

func TestWatcherReportsDeletion(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "bar.go")
	if err := os.WriteFile(path, []byte("package bar\n"), 0644); err != nil {
		t.Fatal(err)
	}

	w, err := New(root, 30*time.Millisecond, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := w.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer w.Stop()

	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}

	select {
	case batch := <-w.Changes:
		found := false
		for _, c := range batch {
			if c.Path == path && c.Kind == Deleted {
				found = true
			}
		}
		if !found {
			t.Errorf("expected a Deleted change for %s in batch %+v", path, batch)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a change batch")
	}
}
