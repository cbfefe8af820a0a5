package query

import (
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"github.com/anthropics/semfora/internal/extract"
	"github.com/anthropics/semfora/internal/lang"
	"github.com/anthropics/semfora/internal/parser"
	"github.com/anthropics/semfora/internal/registry"
	"github.com/anthropics/semfora/internal/semerr"
)

type analyzeDiffParams struct {
	BaseRef     string `json:"base_ref"`
	TargetRef   string `json:"target_ref"`
	SummaryOnly bool   `json:"summary_only"`
	Limit       int    `json:"limit"`
	Offset      int    `json:"offset"`
}

type diffEntry struct {
	Hash          string `json:"hash"`
	File          string `json:"file"`
	Name          string `json:"name"`
	Change        string `json:"change"`
	SemanticDelta bool   `json:"semantic_delta"`
}

type diffSummary struct {
	Files  int            `json:"files"`
	Counts map[string]int `json:"counts"`
}

// handleAnalyzeDiff compares the symbols of every file git reports as
// changed between BaseRef and TargetRef (an empty TargetRef defaults to
// "HEAD"; "WORKING" reads the live working tree instead of a commit).
// go-git v5 has no
// convenient tree-vs-arbitrary-ref content diff, so this shells to git
// the same way registry.listWorktrees shells to it for worktree
// enumeration.
func handleAnalyzeDiff(rc *registry.RepoContext, params json.RawMessage) (interface{}, error) {
	var p analyzeDiffParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	if p.BaseRef == "" {
		return nil, semerr.New(semerr.KindInvalidRequest, "analyze_diff requires base_ref")
	}
	if p.TargetRef == "" {
		p.TargetRef = "HEAD"
	}
	if p.Limit <= 0 {
		p.Limit = 50
	}

	files, err := changedFiles(rc.BaseRepoPath, p.BaseRef, p.TargetRef)
	if err != nil {
		return nil, semerr.Wrap(semerr.KindInternal, "listing changed files", err)
	}

	baseByHash := make(map[string]diffSide)
	targetByHash := make(map[string]diffSide)
	for _, file := range files {
		if baseSrc, err := readAtRef(rc.BaseRepoPath, p.BaseRef, file); err == nil {
			if syms, err := extractSource(file, baseSrc); err == nil {
				for _, s := range syms {
					baseByHash[s.Hash] = diffSide{Symbol: s, File: file}
				}
			}
		}
		if targetSrc, err := readAtRef(rc.BaseRepoPath, p.TargetRef, file); err == nil {
			if syms, err := extractSource(file, targetSrc); err == nil {
				for _, s := range syms {
					targetByHash[s.Hash] = diffSide{Symbol: s, File: file}
				}
			}
		}
	}

	var entries []diffEntry
	baseOnly := make(map[string]diffSide)
	targetOnly := make(map[string]diffSide)
	for hash, base := range baseByHash {
		target, ok := targetByHash[hash]
		if !ok {
			baseOnly[hash] = base
			continue
		}
		if base.Symbol.SemanticHash != target.Symbol.SemanticHash {
			entries = append(entries, diffEntry{Hash: hash, File: target.File, Name: target.Symbol.Name, Change: "modified", SemanticDelta: true})
		}
	}
	for hash, target := range targetByHash {
		if _, ok := baseByHash[hash]; !ok {
			targetOnly[hash] = target
		}
	}

	baseBySemantic := make(map[string][]string)
	for hash, side := range baseOnly {
		baseBySemantic[side.Symbol.SemanticHash] = append(baseBySemantic[side.Symbol.SemanticHash], hash)
	}
	targetBySemantic := make(map[string][]string)
	for hash, side := range targetOnly {
		targetBySemantic[side.Symbol.SemanticHash] = append(targetBySemantic[side.Symbol.SemanticHash], hash)
	}

	movedBase := make(map[string]bool)
	movedTarget := make(map[string]bool)
	for semHash, baseHashes := range baseBySemantic {
		targetHashes := targetBySemantic[semHash]
		n := len(baseHashes)
		if len(targetHashes) < n {
			n = len(targetHashes)
		}
		for i := 0; i < n; i++ {
			bh, th := baseHashes[i], targetHashes[i]
			movedBase[bh] = true
			movedTarget[th] = true
			target := targetByHash[th]
			entries = append(entries, diffEntry{Hash: th, File: target.File, Name: target.Symbol.Name, Change: "moved"})
		}
	}

	for hash, side := range baseOnly {
		if !movedBase[hash] {
			entries = append(entries, diffEntry{Hash: hash, File: side.File, Name: side.Symbol.Name, Change: "removed"})
		}
	}
	for hash, side := range targetOnly {
		if !movedTarget[hash] {
			entries = append(entries, diffEntry{Hash: hash, File: side.File, Name: side.Symbol.Name, Change: "added"})
		}
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].File != entries[j].File {
			return entries[i].File < entries[j].File
		}
		return entries[i].Hash < entries[j].Hash
	})

	if p.SummaryOnly {
		counts := make(map[string]int)
		for _, e := range entries {
			counts[e.Change]++
		}
		return diffSummary{Files: len(files), Counts: counts}, nil
	}

	start := p.Offset
	if start > len(entries) {
		start = len(entries)
	}
	end := start + p.Limit
	if end > len(entries) {
		end = len(entries)
	}
	return entries[start:end], nil
}

type diffSide struct {
	Symbol extract.Symbol
	File   string
}

func changedFiles(repoRoot, baseRef, targetRef string) ([]string, error) {
	args := []string{"diff", "--name-only", baseRef}
	if targetRef != "" && targetRef != "WORKING" {
		args = append(args, targetRef)
	}
	cmd := exec.Command("git", args...)
	cmd.Dir = repoRoot
	out, err := cmd.Output()
	if err != nil {
		return nil, err
	}
	var files []string
	for _, line := range strings.Split(strings.TrimSpace(string(out)), "\n") {
		if line != "" {
			files = append(files, line)
		}
	}
	return files, nil
}

func readAtRef(repoRoot, ref, file string) ([]byte, error) {
	if ref == "" || ref == "WORKING" {
		return os.ReadFile(filepath.Join(repoRoot, file))
	}
	cmd := exec.Command("git", "show", ref+":"+file)
	cmd.Dir = repoRoot
	return cmd.Output()
}

// extractSource parses source as file's language and returns its
// extracted symbols, or an empty slice for languages with no wired
// grammar.
func extractSource(file string, source []byte) ([]extract.Symbol, error) {
	l, err := lang.FromPath(file)
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

	summary := extract.Extract(file, source, result.Root, l)
	return summary.Symbols, nil
}
