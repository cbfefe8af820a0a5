// Package shard implements the Shard Writer (C5): it takes a batch of
// SemanticSummary records and writes every cache-directory shard file,
// the call graph, the signature index, the BM25 index, and the repo
// overview, all through CacheDir's atomic primitives.
package shard

import (
	"encoding/json"
	"path"
	"strings"

	"github.com/anthropics/semfora/internal/bm25"
	"github.com/anthropics/semfora/internal/cachedir"
	"github.com/anthropics/semfora/internal/callgraph"
	"github.com/anthropics/semfora/internal/extract"
	"github.com/anthropics/semfora/internal/pathutil"
)

// Counts reports what a Write call produced.
type Counts struct {
	Symbols     int
	Modules     int
	Files       int
	BytesByKind map[string]int64
}

// Write groups summaries into modules, then emits every shard file,
// the call graph, the signature index, the BM25 index, and the repo
// overview, in that order (the overview is computed last because it
// references counts derived from the rest of the pass).
func Write(cd *cachedir.CacheDir, summaries []*extract.SemanticSummary) (Counts, error) {
	counts := Counts{BytesByKind: make(map[string]int64)}
	if err := cd.Init(); err != nil {
		return counts, err
	}

	moduleOf := ProjectModules(summaryPaths(summaries))

	rowsByModule := make(map[string][]cachedir.SymbolIndexEntry)
	graph := callgraph.New()
	index := bm25.New()
	var signatures []FunctionSignature

	// First pass: register every symbol so call resolution in the second
	// pass can see forward references across files.
	hashToModule := make(map[string]string)
	hashesByName := make(map[string][]string)
	for _, sum := range summaries {
		module := moduleOf[pathutil.Normalize(sum.FilePath)]
		for _, sym := range sum.Symbols {
			hashToModule[sym.Hash] = module
			hashesByName[sym.Name] = append(hashesByName[sym.Name], sym.Hash)
			graph.AddNode(sym.Hash)
		}
	}

	allSymbols := 0
	filesWritten := 0
	langCounts := make(map[string]int)
	riskCounts := make(map[string]int)
	deps := make(map[string]struct{})

	for _, sum := range summaries {
		module := moduleOf[pathutil.Normalize(sum.FilePath)]
		langCounts[string(sum.Language)]++
		for _, imp := range sum.Imports {
			if isExternalImport(imp.Path) {
				deps[imp.Path] = struct{}{}
			}
		}

		for _, sym := range sum.Symbols {
			allSymbols++
			riskCounts[string(sym.BehavioralRisk)]++

			rowsByModule[module] = append(rowsByModule[module], cachedir.SymbolIndexEntry{
				Hash: sym.Hash, Name: sym.Name, Kind: string(sym.Kind),
				File: sum.FilePath, Module: module,
				Line: sym.StartLine, Risk: string(sym.BehavioralRisk),
			})

			symData, err := json.Marshal(sym)
			if err != nil {
				return counts, err
			}
			if err := pathutil.AtomicWrite(cd.SymbolPath(sym.Hash), symData, 0o644); err != nil {
				return counts, err
			}
			counts.BytesByKind["symbols"] += int64(len(symData))
			filesWritten++

			for _, call := range sym.Calls {
				graph.AddEdge(resolveCallEdge(sym.Hash, module, call, hashesByName, hashToModule))
			}

			stem := fileStem(sum.FilePath)
			dir := path.Dir(pathutil.Normalize(sum.FilePath))
			index.AddDocument(bm25.Document{
				Hash: sym.Hash, Symbol: sym.Name, File: sum.FilePath,
				Lines: [2]int{int(sym.StartLine), int(sym.EndLine)},
				Kind:  string(sym.Kind), Module: module, Risk: string(sym.BehavioralRisk),
			}, bm25.TermsForSymbol(sym.Name, stem, path.Base(dir), string(sym.Kind),
				callNames(sym.Calls), stateTargets(sym.StateChanges), controlFlowStrings(sym.ControlFlow)))

			if sym.Kind == extract.KindFunction || sym.Kind == extract.KindMethod {
				signatures = append(signatures, BuildSignature(sym, module))
			}
		}
	}

	for module, rows := range rowsByModule {
		var sb strings.Builder
		for _, row := range rows {
			data, err := json.Marshal(row)
			if err != nil {
				return counts, err
			}
			sb.Write(data)
			sb.WriteByte('\n')
		}
		data := []byte(sb.String())
		if err := pathutil.AtomicWrite(cd.ModulePath(module), data, 0o644); err != nil {
			return counts, err
		}
		counts.BytesByKind["modules"] += int64(len(data))
		filesWritten++
	}

	cgData, err := marshalEdges(graph.AllEdges())
	if err != nil {
		return counts, err
	}
	if err := pathutil.AtomicWrite(cd.CallGraphPath(), cgData, 0o644); err != nil {
		return counts, err
	}
	counts.BytesByKind["call_graph"] += int64(len(cgData))
	filesWritten++

	sigData, err := marshalSignatures(signatures)
	if err != nil {
		return counts, err
	}
	if err := pathutil.AtomicWrite(cd.SignatureIndexPath(), sigData, 0o644); err != nil {
		return counts, err
	}
	counts.BytesByKind["signature_index"] += int64(len(sigData))
	filesWritten++

	bmData, err := bm25.SaveJSON(index)
	if err != nil {
		return counts, err
	}
	if err := pathutil.AtomicWrite(cd.BM25IndexPath(), bmData, 0o644); err != nil {
		return counts, err
	}
	counts.BytesByKind["bm25_index"] += int64(len(bmData))
	filesWritten++

	moduleSymbolCounts := make(map[string]int, len(rowsByModule))
	for module, rows := range rowsByModule {
		moduleSymbolCounts[module] = len(rows)
	}
	overview := BuildOverview(allSymbols, len(summaries), langCounts, riskCounts, deps, moduleSymbolCounts)
	ovData, err := json.Marshal(overview)
	if err != nil {
		return counts, err
	}
	if err := pathutil.AtomicWrite(cd.OverviewPath(), ovData, 0o644); err != nil {
		return counts, err
	}
	counts.BytesByKind["overview"] += int64(len(ovData))
	filesWritten++

	counts.Symbols = allSymbols
	counts.Modules = len(rowsByModule)
	counts.Files = filesWritten
	return counts, nil
}

func summaryPaths(summaries []*extract.SemanticSummary) []string {
	paths := make([]string, len(summaries))
	for i, s := range summaries {
		paths[i] = s.FilePath
	}
	return paths
}

func fileStem(filePath string) string {
	base := path.Base(pathutil.Normalize(filePath))
	if idx := strings.LastIndex(base, "."); idx > 0 {
		return base[:idx]
	}
	return base
}

func callNames(calls []extract.CallSite) []string {
	names := make([]string, len(calls))
	for i, c := range calls {
		names[i] = c.Name
	}
	return names
}

func stateTargets(changes []extract.StateChange) []string {
	names := make([]string, len(changes))
	for i, s := range changes {
		names[i] = s.Target
	}
	return names
}

func controlFlowStrings(flow []extract.ControlFlowKind) []string {
	out := make([]string, len(flow))
	for i, f := range flow {
		out[i] = string(f)
	}
	return out
}

// isExternalImport reports whether an import path looks like a
// third-party/external dependency rather than a relative or internal one.
func isExternalImport(importPath string) bool {
	if importPath == "" {
		return false
	}
	if strings.HasPrefix(importPath, ".") || strings.HasPrefix(importPath, "/") {
		return false
	}
	return true
}

func marshalEdges(edges []callgraph.Edge) ([]byte, error) {
	var sb strings.Builder
	for _, e := range edges {
		data, err := json.Marshal(e)
		if err != nil {
			return nil, err
		}
		sb.Write(data)
		sb.WriteByte('\n')
	}
	return []byte(sb.String()), nil
}

func marshalSignatures(sigs []FunctionSignature) ([]byte, error) {
	var sb strings.Builder
	for _, s := range sigs {
		data, err := json.Marshal(s)
		if err != nil {
			return nil, err
		}
		sb.Write(data)
		sb.WriteByte('\n')
	}
	return []byte(sb.String()), nil
}

// resolveCallEdge resolves a CallSite's bare callee name to a symbol hash
// when exactly one symbol in the batch carries that name. A name shared
// by more than one symbol is ambiguous and the edge is left external,
// carrying the raw callee name instead of a hash — a legal, expected
// state per the call graph's own contract.
func resolveCallEdge(callerHash, callerModule string, call extract.CallSite, hashesByName map[string][]string, hashToModule map[string]string) callgraph.Edge {
	candidates := hashesByName[call.Name]
	if len(candidates) == 1 {
		calleeHash := candidates[0]
		return callgraph.Edge{
			Caller: callerHash, Callee: calleeHash, CallSite: call.Line,
			IsCrossModule: hashToModule[calleeHash] != callerModule,
			IsExternal:    false,
		}
	}
	return callgraph.Edge{
		Caller: callerHash, Callee: call.Name, CallSite: call.Line,
		IsExternal: true,
	}
}

// ProjectModules implements the "directory→module projection" described
// in spec §4.4: the longest common directory prefix across every given
// file path is stripped, and the remaining path elements are joined by
// dots to form the module name of that file's directory.
func ProjectModules(filePaths []string) map[string]string {
	dirs := make(map[string]bool)
	normalized := make([]string, len(filePaths))
	for i, p := range filePaths {
		np := pathutil.Normalize(p)
		normalized[i] = np
		dirs[path.Dir(np)] = true
	}

	prefix := longestCommonDirPrefix(dirs)

	result := make(map[string]string, len(normalized))
	for _, p := range normalized {
		dir := path.Dir(p)
		rel := strings.TrimPrefix(dir, prefix)
		rel = strings.Trim(rel, "/")
		module := "root"
		if rel != "" {
			module = strings.ReplaceAll(rel, "/", ".")
		}
		result[p] = module
	}
	return result
}

func longestCommonDirPrefix(dirs map[string]bool) string {
	var segments [][]string
	for d := range dirs {
		if d == "." {
			segments = append(segments, nil)
			continue
		}
		segments = append(segments, strings.Split(d, "/"))
	}
	if len(segments) == 0 {
		return ""
	}

	common := segments[0]
	for _, s := range segments[1:] {
		common = commonPrefix(common, s)
		if len(common) == 0 {
			break
		}
	}
	if len(common) == 0 {
		return ""
	}
	return strings.Join(common, "/")
}

func commonPrefix(a, b []string) []string {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	i := 0
	for i < n && a[i] == b[i] {
		i++
	}
	return a[:i]
}
