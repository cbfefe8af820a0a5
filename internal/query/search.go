package query

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/anthropics/semfora/internal/registry"
	"github.com/anthropics/semfora/internal/semerr"
)

type searchParams struct {
	Query       string `json:"query"`
	Mode        string `json:"mode"`
	Limit       int    `json:"limit"`
	Module      string `json:"module"`
	Kind        string `json:"kind"`
	Risk        string `json:"risk"`
	SymbolScope string `json:"symbol_scope"`
}

type searchHit struct {
	Hash   string  `json:"hash"`
	Name   string  `json:"name"`
	Kind   string  `json:"kind"`
	File   string  `json:"file"`
	Module string  `json:"module"`
	Line   uint32  `json:"line"`
	Risk   string  `json:"risk"`
	Rank   string  `json:"rank"`
	Score  float64 `json:"score,omitempty"`
}

type rawMatch struct {
	File  string `json:"file"`
	Line  int    `json:"line"`
	Match string `json:"match"`
}

func handleSearch(rc *registry.RepoContext, params json.RawMessage) (interface{}, error) {
	var p searchParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	if p.Query == "" {
		return nil, semerr.New(semerr.KindInvalidRequest, "search requires a query")
	}
	if p.Limit <= 0 {
		p.Limit = 10
	}
	if p.Mode == "" {
		p.Mode = "hybrid"
	}
	if p.SymbolScope == "" {
		p.SymbolScope = "functions"
	}

	if rc.EnsureFresh != nil {
		if err := rc.EnsureFresh(); err != nil {
			return nil, semerr.Wrap(semerr.KindIndexStale, "refreshing stale index before search", err)
		}
	}

	if p.Mode == "raw" {
		return searchRaw(rc, p)
	}
	return searchIndexed(rc, p)
}

// searchIndexed covers the hybrid/symbols/semantic modes: an exact-name
// pass over the module shards (rank "exact"), optionally joined with a
// BM25 pass (rank "bm25"), de-duplicated by hash with the first-seen
// rank winning, per spec §4.12's hybrid merge rule.
func searchIndexed(rc *registry.RepoContext, p searchParams) ([]searchHit, error) {
	includeVariables := p.SymbolScope == "variables" || p.SymbolScope == "both"
	seen := make(map[string]bool)
	var hits []searchHit

	if p.Mode == "hybrid" || p.Mode == "symbols" {
		rows, err := rc.CacheDir.SearchSymbols(p.Query, p.Module, p.Kind, p.Risk, 0)
		if err != nil {
			return nil, semerr.Wrap(semerr.KindInternal, "searching symbol index", err)
		}
		for _, row := range rows {
			if !includeVariables && row.Kind == "variable" {
				continue
			}
			if seen[row.Hash] {
				continue
			}
			exact := strings.EqualFold(row.Name, p.Query)
			if p.Mode == "symbols" || exact {
				seen[row.Hash] = true
				hits = append(hits, searchHit{
					Hash: row.Hash, Name: row.Name, Kind: row.Kind, File: row.File,
					Module: row.Module, Line: row.Line, Risk: row.Risk, Rank: "exact",
				})
			}
		}
	}

	if (p.Mode == "hybrid" || p.Mode == "semantic") && rc.BM25 != nil {
		for _, hit := range rc.BM25.Search(p.Query, 0) {
			doc := hit.Document
			if !includeVariables && doc.Kind == "variable" {
				continue
			}
			if p.Module != "" && doc.Module != p.Module {
				continue
			}
			if p.Kind != "" && doc.Kind != p.Kind {
				continue
			}
			if p.Risk != "" && doc.Risk != p.Risk {
				continue
			}
			if seen[doc.Hash] {
				continue
			}
			seen[doc.Hash] = true
			hits = append(hits, searchHit{
				Hash: doc.Hash, Name: doc.Symbol, Kind: doc.Kind, File: doc.File,
				Module: doc.Module, Line: uint32(doc.Lines[0]), Risk: doc.Risk,
				Rank: "bm25", Score: hit.Score,
			})
		}
	}

	if p.Limit > 0 && len(hits) > p.Limit {
		hits = hits[:p.Limit]
	}
	return hits, nil
}

// searchRaw runs a regex over the source of every file in the modules
// matching p.Module (all modules if unset), per spec §4.12's raw mode.
func searchRaw(rc *registry.RepoContext, p searchParams) ([]rawMatch, error) {
	re, err := regexp.Compile(p.Query)
	if err != nil {
		return nil, semerr.Wrap(semerr.KindInvalidRequest, "compiling raw search pattern", err)
	}

	rows, err := rc.CacheDir.SearchSymbols("", p.Module, "", "", 0)
	if err != nil {
		return nil, semerr.Wrap(semerr.KindInternal, "resolving module files", err)
	}

	seenFiles := make(map[string]bool)
	var matches []rawMatch
	for _, row := range rows {
		if seenFiles[row.File] {
			continue
		}
		seenFiles[row.File] = true

		full := row.File
		if !filepath.IsAbs(full) {
			full = filepath.Join(rc.BaseRepoPath, row.File)
		}
		f, err := os.Open(full)
		if err != nil {
			continue
		}
		scanner := bufio.NewScanner(f)
		line := 0
		for scanner.Scan() {
			line++
			if m := re.FindString(scanner.Text()); m != "" {
				matches = append(matches, rawMatch{File: row.File, Line: line, Match: m})
				if p.Limit > 0 && len(matches) >= p.Limit {
					f.Close()
					return matches, nil
				}
			}
		}
		f.Close()
	}
	return matches, nil
}
