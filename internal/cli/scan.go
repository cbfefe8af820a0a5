// Package cli implements semfora's external command-line surface
// (spec §6): a daemon command that starts the socket server, and a
// cache command group that inspects and prunes the on-disk cache.
package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/anthropics/semfora/internal/bm25"
	"github.com/anthropics/semfora/internal/exclude"
	"github.com/anthropics/semfora/internal/extract"
	"github.com/anthropics/semfora/internal/lang"
	"github.com/anthropics/semfora/internal/layer"
	"github.com/anthropics/semfora/internal/parser"
	"github.com/anthropics/semfora/internal/registry"
	"github.com/anthropics/semfora/internal/shard"
)

// fixedScanIgnores mirrors the watcher's fixed ignore set (C9) so the
// one-time initial scan and the live watcher agree on what counts as
// source.
var fixedScanIgnores = map[string]bool{
	".git": true, "node_modules": true, "target": true, "dist": true, ".semfora": true,
}

// discoverSourceFiles walks root and returns every file whose extension
// resolves to a Lang with a wired tree-sitter grammar, skipping the
// fixed ignore set and whatever exclude.DetectAutoExcludes identifies as
// dependency output.
func discoverSourceFiles(root string) ([]string, error) {
	auto := exclude.DetectAutoExcludes(root)
	autoDirs := make(map[string]bool, len(auto.Directories))
	for _, d := range auto.Directories {
		autoDirs[filepath.ToSlash(d)] = true
	}

	var files []string
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if path == root {
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if d.IsDir() {
			if fixedScanIgnores[d.Name()] || autoDirs[rel] {
				return filepath.SkipDir
			}
			return nil
		}
		l, err := lang.FromPath(path)
		if err != nil || !lang.HasGrammar(l) {
			return nil
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

// extractFile parses and extracts one file's semantic summary. A file
// that fails to read, resolve a language, or parse is skipped by the
// caller rather than aborting the whole scan, matching the extractor's
// per-file failure semantics (spec §4.1).
func extractFile(path string) (*extract.SemanticSummary, error) {
	source, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	l, err := lang.FromPath(path)
	if err != nil {
		return nil, err
	}
	p, err := parser.New(l)
	if err != nil {
		return nil, err
	}
	defer p.Close()
	result, err := p.Parse(source)
	if err != nil {
		return nil, err
	}
	defer result.Close()
	return extract.Extract(path, source, result.Root, l), nil
}

// initialScan walks rc.BaseRepoPath, extracts every source file, and
// writes the full cache directory (shards, call graph, signature index,
// BM25 index, overview) in one pass via shard.Write (C5) — the same
// writer an incremental sync relies on for its diff baseline. It then
// seeds the Base layer and the in-memory BM25 index from what it wrote,
// so the synchronizer's first incremental update diffs against a
// correct prior state instead of an empty one.
func initialScan(rc *registry.RepoContext) error {
	files, err := discoverSourceFiles(rc.BaseRepoPath)
	if err != nil {
		return fmt.Errorf("cli: discovering source files: %w", err)
	}

	summaries := make([]*extract.SemanticSummary, 0, len(files))
	for _, f := range files {
		summary, err := extractFile(f)
		if err != nil {
			continue
		}
		summaries = append(summaries, summary)
	}

	if _, err := shard.Write(rc.CacheDir, summaries); err != nil {
		return fmt.Errorf("cli: writing initial shard set: %w", err)
	}

	now := time.Now().UnixMilli()
	for _, summary := range summaries {
		for _, sym := range summary.Symbols {
			rc.LayeredIndex.Base.Put(sym.Hash, layer.SymbolState{
				Symbol: sym, File: summary.FilePath, Status: layer.StatusActive,
				FirstSeenAt: now, LastSeenAt: now,
			})
		}
	}
	rc.LayeredIndex.Base.Meta.LastUpdateTS = now

	bmData, err := os.ReadFile(rc.CacheDir.BM25IndexPath())
	if err != nil {
		return fmt.Errorf("cli: reading back the BM25 index: %w", err)
	}
	idx, err := bm25.LoadJSON(bmData)
	if err != nil {
		return fmt.Errorf("cli: loading the BM25 index: %w", err)
	}
	*rc.BM25 = *idx

	return nil
}
