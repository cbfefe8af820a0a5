// Package watcher implements the recursive, debounced filesystem watch
// described in spec §4.8: fsnotify events are coalesced per path into a
// single strongest change kind and delivered in batches after a quiet
// window.
package watcher

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	gitignore "github.com/sabhiram/go-gitignore"
)

// Kind is the strongest observed change for a path within a debounce
// window. Ordered Deleted > Renamed > Modified > Created so coalescing
// can compare by rank.
type Kind int

const (
	Created Kind = iota
	Modified
	Renamed
	Deleted
)

func (k Kind) String() string {
	switch k {
	case Created:
		return "Created"
	case Modified:
		return "Modified"
	case Renamed:
		return "Renamed"
	case Deleted:
		return "Deleted"
	default:
		return "Unknown"
	}
}

// Change is one coalesced filesystem event, per spec §4.8's
// {path, kind, Renamed{from,to}} shape.
type Change struct {
	Path string
	Kind Kind
	From string
	To   string
}

// fixedIgnores never get watched or reported, regardless of .gitignore
// contents (spec §4.8: "a fixed ignore-set").
var fixedIgnores = map[string]bool{
	".git":         true,
	"node_modules": true,
	"target":       true,
	"dist":         true,
	".semfora":     true,
}

// Watcher recursively watches repoRoot and delivers debounced, coalesced
// change batches on Changes.
type Watcher struct {
	root     string
	debounce time.Duration
	ignore   *gitignore.GitIgnore
	extra    []string

	fsw     *fsnotify.Watcher
	Changes chan []Change

	mu         sync.Mutex
	pending    map[string]Change
	pendingRen []Change
	stop       chan struct{}
	done       chan struct{}
}

// New creates a Watcher rooted at repoRoot. extraIgnores are additional
// glob-style patterns (from WatchConfig.ExtraIgnores) layered on top of
// the repo's own .gitignore and the fixed ignore set.
func New(repoRoot string, debounce time.Duration, extraIgnores []string) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	var ign *gitignore.GitIgnore
	if gi, err := gitignore.CompileIgnoreFile(filepath.Join(repoRoot, ".gitignore")); err == nil {
		ign = gi
	}

	w := &Watcher{
		root:     repoRoot,
		debounce: debounce,
		ignore:   ign,
		extra:    extraIgnores,
		fsw:      fsw,
		Changes:  make(chan []Change, 16),
		pending:  make(map[string]Change),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	return w, nil
}

func (w *Watcher) shouldIgnore(path string) bool {
	rel, err := filepath.Rel(w.root, path)
	if err != nil {
		return false
	}
	for _, part := range splitPath(rel) {
		if fixedIgnores[part] {
			return true
		}
	}
	if w.ignore != nil && w.ignore.MatchesPath(rel) {
		return true
	}
	for _, pattern := range w.extra {
		if ok, _ := filepath.Match(pattern, rel); ok {
			return true
		}
		if ok, _ := filepath.Match(pattern, filepath.Base(rel)); ok {
			return true
		}
	}
	return false
}

func splitPath(p string) []string {
	return strings.Split(filepath.ToSlash(filepath.Clean(p)), "/")
}

// addRecursive walks dir and registers every non-ignored subdirectory
// with the underlying fsnotify watcher.
func (w *Watcher) addRecursive(dir string) error {
	return filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != w.root && w.shouldIgnore(path) {
			return filepath.SkipDir
		}
		return w.fsw.Add(path)
	})
}

// Start registers the recursive watch and begins delivering batches on
// Changes. It returns once the initial watch tree is registered; the
// event loop runs in a background goroutine until Stop is called.
func (w *Watcher) Start() error {
	if err := w.addRecursive(w.root); err != nil {
		return err
	}
	go w.run()
	return nil
}

// Stop halts the event loop and closes the underlying fsnotify watcher.
func (w *Watcher) Stop() {
	close(w.stop)
	<-w.done
	w.fsw.Close()
}

func (w *Watcher) run() {
	defer close(w.done)
	ticker := time.NewTicker(w.debounce)
	defer ticker.Stop()

	for {
		select {
		case <-w.stop:
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(ev)
		case <-w.fsw.Errors:
			// A watch error (e.g. a removed directory) doesn't abort the
			// loop; the next debounce tick still flushes what settled.
		case <-ticker.C:
			w.flush()
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	if w.shouldIgnore(ev.Name) {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	switch {
	case ev.Op&fsnotify.Create != 0:
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			w.addRecursive(ev.Name)
		}
		if matched := w.resolvePendingRename(ev.Name); matched {
			return
		}
		w.coalesce(ev.Name, Created)
	case ev.Op&fsnotify.Write != 0:
		w.coalesce(ev.Name, Modified)
	case ev.Op&fsnotify.Remove != 0:
		w.coalesce(ev.Name, Deleted)
	case ev.Op&fsnotify.Rename != 0:
		w.pendingRen = append(w.pendingRen, Change{Path: ev.Name, Kind: Renamed, From: ev.Name})
	}
}

// resolvePendingRename pairs an incoming Create at newPath with the
// oldest still-unmatched Rename, producing a single Renamed{from,to}
// change. Reports whether a pairing was made.
func (w *Watcher) resolvePendingRename(newPath string) bool {
	if len(w.pendingRen) == 0 {
		return false
	}
	r := w.pendingRen[0]
	w.pendingRen = w.pendingRen[1:]
	r.To = newPath
	w.pending[r.From] = r
	return true
}

func (w *Watcher) coalesce(path string, kind Kind) {
	existing, ok := w.pending[path]
	if !ok || kind > existing.Kind {
		w.pending[path] = Change{Path: path, Kind: kind}
	}
}

func (w *Watcher) flush() {
	w.mu.Lock()
	// Any rename whose Create never arrived within this window is really
	// a delete of the source path.
	for _, r := range w.pendingRen {
		if existing, ok := w.pending[r.From]; !ok || existing.Kind != Deleted {
			w.pending[r.From] = Change{Path: r.From, Kind: Deleted}
		}
	}
	w.pendingRen = nil

	if len(w.pending) == 0 {
		w.mu.Unlock()
		return
	}
	changes := make([]Change, 0, len(w.pending))
	for _, c := range w.pending {
		changes = append(changes, c)
	}
	w.pending = make(map[string]Change)
	w.mu.Unlock()

	sort.Slice(changes, func(i, j int) bool { return changes[i].Path < changes[j].Path })
	select {
	case w.Changes <- changes:
	default:
		// Backed-up consumer: rather than block the watch loop, fold the
		// batch back into pending so the next flush delivers it. Paths
		// carry their latest coalesced kind, not a diff, so the merged
		// batch is complete.
		w.mu.Lock()
		for _, c := range changes {
			if existing, ok := w.pending[c.Path]; !ok || c.Kind > existing.Kind {
				w.pending[c.Path] = c
			}
		}
		w.mu.Unlock()
	}
}
