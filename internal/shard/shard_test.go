package shard

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/anthropics/semfora/internal/bm25"
	"github.com/anthropics/semfora/internal/cachedir"
	"github.com/anthropics/semfora/internal/extract"
	"github.com/anthropics/semfora/internal/lang"
)

func newTestCacheDir(t *testing.T) *cachedir.CacheDir {
	t.Helper()
	tmp := t.TempDir()
	return &cachedir.CacheDir{Root: filepath.Join(tmp, "cache"), RepoRoot: tmp, RepoHash: "deadbeef"}
}

func symbol(name string, kind extract.SymbolKind, file string, line uint32, calls ...string) extract.Symbol {
	sym := extract.Symbol{Name: name, Kind: kind, StartLine: line, EndLine: line + 5, Arity: 1}
	for _, c := range calls {
		sym.Calls = append(sym.Calls, extract.CallSite{Name: c, Line: line + 1})
	}
	extract.Finalize(&sym, file)
	return sym
}

func TestProjectModulesStripsCommonPrefixAndJoinsWithDots(t *testing.T) {
	got := ProjectModules([]string{
		"/repo/internal/extract/golang.go",
		"/repo/internal/extract/python.go",
		"/repo/internal/cachedir/cachedir.go",
	})
	if got["/repo/internal/extract/golang.go"] != "extract" {
		t.Errorf("module = %q, want extract", got["/repo/internal/extract/golang.go"])
	}
	if got["/repo/internal/cachedir/cachedir.go"] != "cachedir" {
		t.Errorf("module = %q, want cachedir", got["/repo/internal/cachedir/cachedir.go"])
	}
}

func TestProjectModulesSingleDirectoryYieldsRoot(t *testing.T) {
	got := ProjectModules([]string{"/repo/main.go", "/repo/util.go"})
	if got["/repo/main.go"] != "root" {
		t.Errorf("module = %q, want root", got["/repo/main.go"])
	}
}

func TestWriteProducesAllShardFilesAndResolvesInternalCalls(t *testing.T) {
	cd := newTestCacheDir(t)

	caller := symbol("Handler", extract.KindFunction, "/repo/api/handler.go", 10, "Validate")
	callee := symbol("Validate", extract.KindFunction, "/repo/api/validate.go", 3)

	summaries := []*extract.SemanticSummary{
		{FilePath: "/repo/api/handler.go", Language: lang.Go, Symbols: []extract.Symbol{caller}},
		{FilePath: "/repo/api/validate.go", Language: lang.Go, Symbols: []extract.Symbol{callee}},
	}

	counts, err := Write(cd, summaries)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if counts.Symbols != 2 {
		t.Errorf("Symbols = %d, want 2", counts.Symbols)
	}
	if counts.Modules != 1 {
		t.Errorf("Modules = %d, want 1 (both files share the api/ dir)", counts.Modules)
	}

	if _, err := os.Stat(cd.OverviewPath()); err != nil {
		t.Errorf("overview.json missing: %v", err)
	}
	if _, err := os.Stat(cd.CallGraphPath()); err != nil {
		t.Errorf("call_graph.jsonl missing: %v", err)
	}
	if _, err := os.Stat(cd.SignatureIndexPath()); err != nil {
		t.Errorf("signature_index.jsonl missing: %v", err)
	}
	if _, err := os.Stat(cd.BM25IndexPath()); err != nil {
		t.Errorf("bm25_index.json missing: %v", err)
	}
	if _, err := os.Stat(cd.SymbolPath(caller.Hash)); err != nil {
		t.Errorf("symbols/%s.json missing: %v", caller.Hash, err)
	}

	cgData, err := os.ReadFile(cd.CallGraphPath())
	if err != nil {
		t.Fatalf("read call graph: %v", err)
	}
	if len(cgData) == 0 {
		t.Fatal("call graph file is empty")
	}
	var edge struct {
		Caller        string `json:"Caller"`
		Callee        string `json:"Callee"`
		IsCrossModule bool   `json:"IsCrossModule"`
		IsExternal    bool   `json:"IsExternal"`
	}
	if err := json.Unmarshal(cgData[:indexOfNewline(cgData)], &edge); err != nil {
		t.Fatalf("decode edge: %v", err)
	}
	if edge.Callee != callee.Hash {
		t.Errorf("edge.Callee = %q, want resolved hash %q", edge.Callee, callee.Hash)
	}
	if edge.IsExternal {
		t.Error("call to a known in-batch symbol must not be marked external")
	}

	overviewData, err := os.ReadFile(cd.OverviewPath())
	if err != nil {
		t.Fatalf("read overview: %v", err)
	}
	var overview RepoOverview
	if err := json.Unmarshal(overviewData, &overview); err != nil {
		t.Fatalf("decode overview: %v", err)
	}
	if overview.TotalSymbols != 2 {
		t.Errorf("overview.TotalSymbols = %d, want 2", overview.TotalSymbols)
	}
	if overview.DominantLanguage != "go" {
		t.Errorf("overview.DominantLanguage = %q, want go", overview.DominantLanguage)
	}

	bmData, err := os.ReadFile(cd.BM25IndexPath())
	if err != nil {
		t.Fatalf("read bm25 index: %v", err)
	}
	idx, err := bm25.LoadJSON(bmData)
	if err != nil {
		t.Fatalf("LoadJSON: %v", err)
	}
	hits := idx.Search("handler", 10)
	if len(hits) == 0 {
		t.Error("expected bm25 index to find the Handler symbol")
	}
}

func TestWriteLeavesAmbiguousCalleeExternal(t *testing.T) {
	cd := newTestCacheDir(t)

	caller := symbol("Run", extract.KindFunction, "/repo/a.go", 1, "Process")
	dup1 := symbol("Process", extract.KindFunction, "/repo/a.go", 20)
	dup2 := symbol("Process", extract.KindFunction, "/repo/b.go", 5)

	summaries := []*extract.SemanticSummary{
		{FilePath: "/repo/a.go", Language: lang.Go, Symbols: []extract.Symbol{caller, dup1}},
		{FilePath: "/repo/b.go", Language: lang.Go, Symbols: []extract.Symbol{dup2}},
	}

	if _, err := Write(cd, summaries); err != nil {
		t.Fatalf("Write: %v", err)
	}

	cgData, err := os.ReadFile(cd.CallGraphPath())
	if err != nil {
		t.Fatalf("read call graph: %v", err)
	}
	var edge struct {
		Callee     string `json:"Callee"`
		IsExternal bool   `json:"IsExternal"`
	}
	if err := json.Unmarshal(cgData[:indexOfNewline(cgData)], &edge); err != nil {
		t.Fatalf("decode edge: %v", err)
	}
	if !edge.IsExternal {
		t.Error("a callee name shared by two symbols is ambiguous and must stay external")
	}
	if edge.Callee != "Process" {
		t.Errorf("edge.Callee = %q, want raw name Process", edge.Callee)
	}
}

func indexOfNewline(data []byte) int {
	for i, b := range data {
		if b == '\n' {
			return i
		}
	}
	return len(data)
}

func TestBuildSignatureFiltersInfraCallsFromBusinessCalls(t *testing.T) {
	sym := symbol("SaveOrder", extract.KindFunction, "/repo/orders.go", 1, "log", "persist")
	sig := BuildSignature(sym, "orders")

	if len(sig.BusinessCalls) != 1 || sig.BusinessCalls[0] != "persist" {
		t.Errorf("BusinessCalls = %v, want [persist]", sig.BusinessCalls)
	}
	if !sig.HasBusinessLogic {
		t.Error("expected HasBusinessLogic true when a non-infra call is present")
	}
}

func TestBuildOverviewPicksDominantLanguageAndSortsDeps(t *testing.T) {
	overview := BuildOverview(10, 3,
		map[string]int{"go": 2, "python": 5},
		map[string]int{"low": 8, "high": 2},
		map[string]struct{}{"github.com/foo/bar": {}, "fmt": {}},
		map[string]int{"api": 4, "core": 6},
	)
	if overview.DominantLanguage != "python" {
		t.Errorf("DominantLanguage = %q, want python", overview.DominantLanguage)
	}
	if len(overview.ExternalDependencies) != 2 {
		t.Errorf("ExternalDependencies = %v, want 2 entries", overview.ExternalDependencies)
	}
	if overview.ModuleCounts[0].Module != "api" {
		t.Errorf("ModuleCounts[0] = %+v, want api first (sorted)", overview.ModuleCounts[0])
	}
}
