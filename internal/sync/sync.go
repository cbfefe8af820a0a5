// Package sync implements the layer synchronizer described as C8: it
// consumes debounced file-change batches (from C9) and git state changes
// (from C10), re-extracts touched files, diffs the result against the
// appropriate layer's prior state, and routes the delta into Working,
// Branch, or Base.
package sync

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/anthropics/semfora/internal/astcache"
	"github.com/anthropics/semfora/internal/bm25"
	"github.com/anthropics/semfora/internal/cachedir"
	"github.com/anthropics/semfora/internal/events"
	"github.com/anthropics/semfora/internal/extract"
	"github.com/anthropics/semfora/internal/lang"
	"github.com/anthropics/semfora/internal/layer"
	"github.com/anthropics/semfora/internal/parser"
	"github.com/anthropics/semfora/internal/watcher"
)

// LayerName identifies one of the three persisted layers a delta can be
// routed to.
type LayerName string

const (
	LayerBase    LayerName = "base"
	LayerBranch  LayerName = "branch"
	LayerWorking LayerName = "working"
)

// Classifier decides which persisted layer a changed path belongs in,
// per spec §4.7 step 3. The default implementation (in git.go) answers
// from working-tree and branch state; tests substitute a stub.
type Classifier interface {
	ClassifyChange(path string) (LayerName, error)
}

// Clock is injected so staleness checks are deterministic in tests.
type Clock func() time.Time

// Synchronizer owns the CPU-bound re-extract-and-diff work for one
// repository's layered index.
type Synchronizer struct {
	RepoRoot    string
	CacheDir    *cachedir.CacheDir
	Index       *layer.LayeredIndex
	BM25        *bm25.Index
	ASTCache    *astcache.Cache
	Broadcaster *events.Broadcaster
	Classifier  Classifier
	Now         Clock

	StaleAfterCommits int
	StaleAfterSeconds int64

	// CommitsBehind, if set, reports how many commits HEAD is ahead of
	// indexedSHA; used for staleness detection (spec §4.7). nil disables
	// the commit-count half of the staleness check.
	CommitsBehind func(indexedSHA string) (int, error)
}

// New constructs a Synchronizer with a real-time clock.
func New(root string, cd *cachedir.CacheDir, idx *layer.LayeredIndex, bm *bm25.Index, ast *astcache.Cache, broadcaster *events.Broadcaster, classifier Classifier) *Synchronizer {
	return &Synchronizer{
		RepoRoot:          root,
		CacheDir:          cd,
		Index:             idx,
		BM25:              bm,
		ASTCache:          ast,
		Broadcaster:       broadcaster,
		Classifier:        classifier,
		Now:               time.Now,
		StaleAfterCommits: 50,
		StaleAfterSeconds: 3600,
	}
}

// FileResult records what happened to one path in a batch, including a
// non-fatal extraction failure.
type FileResult struct {
	Path  string
	Err   error
	Stale bool
}

// ProcessBatch applies a watcher batch: for each path it re-extracts (or
// tombstones, for a deletion), diffs against the destination layer's
// prior symbol set for that file, and commits the delta. One file's
// extraction failure is recorded but does not abort the batch or
// tombstone that file's previously indexed symbols (spec §4.7's failure
// semantics).
func (s *Synchronizer) ProcessBatch(changes []watcher.Change) (events.LayerUpdateStats, []FileResult) {
	start := s.now()
	byLayer := map[LayerName]*events.LayerUpdateStats{
		LayerBase:    {Layer: string(LayerBase)},
		LayerBranch:  {Layer: string(LayerBranch)},
		LayerWorking: {Layer: string(LayerWorking)},
	}
	var results []FileResult

	for _, change := range changes {
		target, err := s.Classifier.ClassifyChange(change.Path)
		if err != nil {
			results = append(results, FileResult{Path: change.Path, Err: err})
			continue
		}
		l := s.layerFor(target)
		stats := byLayer[target]
		stats.FilesTouched++

		switch change.Kind {
		case watcher.Deleted:
			added, removed, modified := s.applyDeletion(l, change.Path)
			stats.SymbolsAdded += added
			stats.SymbolsRemoved += removed
			stats.SymbolsModified += modified
		case watcher.Renamed:
			s.applyRename(l, change.From, change.To)
			added, removed, modified, err := s.reExtract(l, change.To)
			if err != nil {
				results = append(results, FileResult{Path: change.To, Err: err, Stale: true})
				continue
			}
			stats.SymbolsAdded += added
			stats.SymbolsRemoved += removed
			stats.SymbolsModified += modified
		default: // Created, Modified
			added, removed, modified, err := s.reExtract(l, change.Path)
			if err != nil {
				results = append(results, FileResult{Path: change.Path, Err: err, Stale: true})
				continue
			}
			stats.SymbolsAdded += added
			stats.SymbolsRemoved += removed
			stats.SymbolsModified += modified
		}
	}

	duration := s.now().Sub(start)
	var total events.LayerUpdateStats
	for name, stats := range byLayer {
		if stats.FilesTouched == 0 {
			continue
		}
		stats.DurationMS = duration.Milliseconds()
		if s.Broadcaster != nil {
			s.Broadcaster.Publish("repo:layer_updated", *stats)
		}
		if name == LayerWorking {
			total = *stats
		}
	}
	return total, results
}

func (s *Synchronizer) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Synchronizer) layerFor(name LayerName) *layer.Layer {
	switch name {
	case LayerBase:
		return s.Index.Base
	case LayerBranch:
		return s.Index.Branch
	default:
		return s.Index.Working
	}
}

// hashesForFile returns the Active hashes currently recorded against
// path in l.
func hashesForFile(l *layer.Layer, path string) map[string]layer.SymbolState {
	out := make(map[string]layer.SymbolState)
	for hash, state := range l.States {
		if state.File == path && state.Status == layer.StatusActive {
			out[hash] = state
		}
	}
	return out
}

func (s *Synchronizer) applyDeletion(l *layer.Layer, path string) (added, removed, modified int) {
	now := s.now().UnixMilli()
	for hash := range hashesForFile(l, path) {
		l.Put(hash, layer.SymbolState{File: path, Status: layer.StatusDeleted, LastSeenAt: now})
		removed++
	}
	s.removeBM25ForFile(path)
	return 0, removed, 0
}

func (s *Synchronizer) applyRename(l *layer.Layer, from, to string) {
	now := s.now().UnixMilli()
	for hash, state := range hashesForFile(l, from) {
		l.Put(hash, layer.SymbolState{
			Symbol: state.Symbol, File: from, Status: layer.StatusMoved,
			MovedTo: hash, FirstSeenAt: state.FirstSeenAt, LastSeenAt: now,
		})
	}
}

func (s *Synchronizer) removeBM25ForFile(path string) {
	if s.BM25 == nil {
		return
	}
	kept := make([]bm25.Document, 0, len(s.BM25.Documents))
	for _, doc := range s.BM25.Documents {
		if doc.File != path {
			kept = append(kept, doc)
		}
	}
	if len(kept) != len(s.BM25.Documents) {
		rebuilt := bm25.New()
		for _, doc := range kept {
			rebuilt.AddDocument(doc, nil)
		}
		*s.BM25 = *rebuilt
	}
}

// reExtract reads path, parses it through the shared AST cache, extracts
// its symbols, and diffs the result against l's prior Active state for
// that file.
func (s *Synchronizer) reExtract(l *layer.Layer, path string) (added, removed, modified int, err error) {
	source, err := os.ReadFile(path)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("sync: reading %s: %w", path, err)
	}

	language, err := lang.FromPath(path)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("sync: %s: %w", path, err)
	}

	result, err := s.ASTCache.ParseOrReuse(path, source, language, parseWith(language))
	if err != nil {
		return 0, 0, 0, fmt.Errorf("sync: parsing %s: %w", path, err)
	}

	summary := extract.Extract(path, source, result.Tree.RootNode(), language)

	prior := hashesForFile(l, path)
	now := s.now().UnixMilli()
	seen := make(map[string]bool, len(summary.Symbols))

	for i := range summary.Symbols {
		sym := summary.Symbols[i]
		seen[sym.Hash] = true
		old, existed := prior[sym.Hash]
		firstSeen := now
		if existed {
			firstSeen = old.FirstSeenAt
		}
		l.Put(sym.Hash, layer.SymbolState{
			Symbol: sym, File: path, Status: layer.StatusActive,
			FirstSeenAt: firstSeen, LastSeenAt: now,
		})
		if existed {
			modified++
		} else {
			added++
		}
	}

	for hash := range prior {
		if !seen[hash] {
			l.Put(hash, layer.SymbolState{File: path, Status: layer.StatusDeleted, LastSeenAt: now})
			removed++
		}
	}

	return added, removed, modified, nil
}

func parseWith(l lang.Lang) astcache.ParseFunc {
	return func(source []byte, pl lang.Lang) (*sitter.Tree, error) {
		p, err := parser.New(pl)
		if err != nil {
			return nil, err
		}
		defer p.Close()
		res, err := p.Parse(source)
		if err != nil {
			return nil, err
		}
		return res.Tree, nil
	}
}

// CheckStaleness implements spec §4.7's staleness rule: the recorded
// indexed_sha is stale once either the commit count or the wall-clock
// age threshold is exceeded.
func (s *Synchronizer) CheckStaleness(meta layer.Meta) (bool, error) {
	if s.now().UnixMilli()-meta.LastUpdateTS > s.StaleAfterSeconds*1000 {
		return true, nil
	}
	if s.CommitsBehind == nil || meta.IndexedSHA == "" {
		return false, nil
	}
	behind, err := s.CommitsBehind(meta.IndexedSHA)
	if err != nil {
		return false, err
	}
	return behind > s.StaleAfterCommits, nil
}

// absPath resolves a path reported by the watcher against RepoRoot, for
// callers that pass repo-relative paths.
func (s *Synchronizer) absPath(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(s.RepoRoot, path)
}
