package query

import (
	"encoding/json"
	"os"
	"testing"

	"github.com/anthropics/semfora/internal/shard"
)

func TestHandleGetOverviewNilsModuleCountsByDefault(t *testing.T) {
	rc := newTestContext(t)
	overview := shard.RepoOverview{
		TotalSymbols: 10, TotalFiles: 3,
		ModuleCounts:     []shard.ModuleCount{{Module: "pkg", SymbolCount: 10}},
		DominantLanguage: "go",
	}
	data, _ := json.Marshal(overview)
	if err := os.WriteFile(rc.CacheDir.OverviewPath(), data, 0o644); err != nil {
		t.Fatalf("write overview: %v", err)
	}

	res, err := handleGetOverview(rc, nil)
	if err != nil {
		t.Fatalf("handleGetOverview: %v", err)
	}
	got, ok := res.(shard.RepoOverview)
	if !ok {
		t.Fatalf("expected shard.RepoOverview, got %T", res)
	}
	if got.ModuleCounts != nil {
		t.Errorf("expected module_counts to be nil without include_modules, got %+v", got.ModuleCounts)
	}
	if got.TotalSymbols != 10 {
		t.Errorf("expected total_symbols 10, got %d", got.TotalSymbols)
	}

	params, _ := json.Marshal(getOverviewParams{IncludeModules: true})
	res, err = handleGetOverview(rc, params)
	if err != nil {
		t.Fatalf("handleGetOverview with include_modules: %v", err)
	}
	got = res.(shard.RepoOverview)
	if len(got.ModuleCounts) != 1 {
		t.Errorf("expected module_counts to be populated, got %+v", got.ModuleCounts)
	}
}

func TestHandleGetOverviewMissingFile(t *testing.T) {
	rc := newTestContext(t)
	if _, err := handleGetOverview(rc, nil); err == nil {
		t.Fatal("expected an error when overview.json doesn't exist")
	}
}

func TestHandleFindDuplicatesIdenticalFingerprint(t *testing.T) {
	rc := newTestContext(t)
	sigs := []shard.FunctionSignature{
		{SymbolHash: "h1", Name: "Foo", File: "a.go", NameTokens: []string{"foo"}, CallFingerprint: 1, ControlFlowFingerprint: 2, StateFingerprint: 3},
		{SymbolHash: "h2", Name: "FooCopy", File: "b.go", NameTokens: []string{"foo", "copy"}, CallFingerprint: 1, ControlFlowFingerprint: 2, StateFingerprint: 3},
		{SymbolHash: "h3", Name: "Unrelated", File: "c.go", NameTokens: []string{"unrelated"}, CallFingerprint: 9, ControlFlowFingerprint: 9, StateFingerprint: 9},
	}
	var lines []byte
	for _, s := range sigs {
		data, _ := json.Marshal(s)
		lines = append(lines, data...)
		lines = append(lines, '\n')
	}
	if err := os.WriteFile(rc.CacheDir.SignatureIndexPath(), lines, 0o644); err != nil {
		t.Fatalf("write signature index: %v", err)
	}

	res, err := handleFindDuplicates(rc, nil)
	if err != nil {
		t.Fatalf("handleFindDuplicates: %v", err)
	}
	clusters, ok := res.([]duplicateCluster)
	if !ok {
		t.Fatalf("expected []duplicateCluster, got %T", res)
	}
	if len(clusters) != 1 {
		t.Fatalf("expected exactly one cluster of identical fingerprints, got %+v", clusters)
	}
	if clusters[0].Reason != "identical_fingerprint" {
		t.Errorf("expected reason identical_fingerprint, got %q", clusters[0].Reason)
	}
	if len(clusters[0].Members) != 2 {
		t.Errorf("expected 2 members, got %+v", clusters[0].Members)
	}
}

func TestJaccard(t *testing.T) {
	a := map[string]bool{"x": true, "y": true}
	b := map[string]bool{"x": true, "y": true, "z": true}
	got := jaccard(a, b)
	if got < 0.66 || got > 0.67 {
		t.Fatalf("jaccard(a, b) = %v, want ~0.667", got)
	}
}
