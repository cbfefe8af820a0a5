package query

import (
	"encoding/json"
	"testing"

	"github.com/anthropics/semfora/internal/cachedir"
)

func TestHandleSearchRequiresQuery(t *testing.T) {
	rc := newTestContext(t)
	if _, err := handleSearch(rc, nil); err == nil {
		t.Fatal("expected an error for a missing query")
	}
}

func TestHandleSearchSymbolsModeExcludesVariablesByDefault(t *testing.T) {
	rc := newTestContext(t)
	writeModuleRow(t, rc.CacheDir, "pkg", cachedir.SymbolIndexEntry{Hash: "h1", Name: "Fetch", Kind: "function", File: "a.go", Module: "pkg", Line: 1})
	writeModuleRow(t, rc.CacheDir, "pkg", cachedir.SymbolIndexEntry{Hash: "h2", Name: "fetchCount", Kind: "variable", File: "a.go", Module: "pkg", Line: 2})

	params, _ := json.Marshal(searchParams{Query: "fetch", Mode: "symbols"})
	res, err := handleSearch(rc, params)
	if err != nil {
		t.Fatalf("handleSearch: %v", err)
	}
	hits, ok := res.([]searchHit)
	if !ok {
		t.Fatalf("expected []searchHit, got %T", res)
	}
	for _, h := range hits {
		if h.Kind == "variable" {
			t.Errorf("expected variables excluded by default, got %+v", h)
		}
	}
	if len(hits) != 1 || hits[0].Hash != "h1" {
		t.Fatalf("expected only the function hit, got %+v", hits)
	}
}

func TestHandleSearchSymbolsModeIncludesVariablesWhenScoped(t *testing.T) {
	rc := newTestContext(t)
	writeModuleRow(t, rc.CacheDir, "pkg", cachedir.SymbolIndexEntry{Hash: "h2", Name: "fetchCount", Kind: "variable", File: "a.go", Module: "pkg", Line: 2})

	params, _ := json.Marshal(searchParams{Query: "fetch", Mode: "symbols", SymbolScope: "both"})
	res, err := handleSearch(rc, params)
	if err != nil {
		t.Fatalf("handleSearch: %v", err)
	}
	hits := res.([]searchHit)
	if len(hits) != 1 || hits[0].Kind != "variable" {
		t.Fatalf("expected the variable hit to be included, got %+v", hits)
	}
}

func TestHandleSearchRawModeScansFileContent(t *testing.T) {
	rc := newTestContext(t)
	writeModuleRow(t, rc.CacheDir, "pkg", cachedir.SymbolIndexEntry{Hash: "h1", Name: "A", Kind: "function", File: "a.go", Module: "pkg", Line: 1})
	writeSourceFile(t, rc, "a.go", "func A() {\n\tTODO: fix this\n}\n")

	params, _ := json.Marshal(searchParams{Query: "TODO", Mode: "raw"})
	res, err := handleSearch(rc, params)
	if err != nil {
		t.Fatalf("handleSearch raw: %v", err)
	}
	matches, ok := res.([]rawMatch)
	if !ok || len(matches) != 1 || matches[0].Line != 2 {
		t.Fatalf("expected a single match on line 2, got %+v", res)
	}
}
