package query

import (
	"encoding/json"
	"os"
	"testing"

	"github.com/anthropics/semfora/internal/callgraph"
)

func TestHandleGetCallersBFSDepth(t *testing.T) {
	rc := newTestContext(t)
	edges := []callgraph.Edge{
		{Caller: "b", Callee: "a", CallSite: 1},
		{Caller: "c", Callee: "b", CallSite: 2},
		{Caller: "d", Callee: "c", CallSite: 3},
	}
	var lines []byte
	for _, e := range edges {
		data, _ := json.Marshal(e)
		lines = append(lines, data...)
		lines = append(lines, '\n')
	}
	if err := os.WriteFile(rc.CacheDir.CallGraphPath(), lines, 0o644); err != nil {
		t.Fatalf("write call graph: %v", err)
	}

	params, _ := json.Marshal(getCallersParams{Hash: "a", Depth: 2})
	res, err := handleGetCallers(rc, params)
	if err != nil {
		t.Fatalf("handleGetCallers: %v", err)
	}
	results, ok := res.([]callerResult)
	if !ok {
		t.Fatalf("expected []callerResult, got %T", res)
	}
	if len(results) != 2 {
		t.Fatalf("expected b (depth 1) and c (depth 2), got %+v", results)
	}
	byHash := map[string]callerResult{}
	for _, r := range results {
		byHash[r.Hash] = r
	}
	if byHash["b"].Depth != 1 {
		t.Errorf("expected b at depth 1, got %+v", byHash["b"])
	}
	if byHash["c"].Depth != 2 {
		t.Errorf("expected c at depth 2, got %+v", byHash["c"])
	}
	if _, ok := byHash["d"]; ok {
		t.Error("expected d to be excluded beyond depth 2")
	}
}

func TestHandleGetCallersRequiresHash(t *testing.T) {
	rc := newTestContext(t)
	if _, err := handleGetCallers(rc, nil); err == nil {
		t.Fatal("expected an error for a missing hash")
	}
}

func TestHandleGetCallGraphSummaryOnly(t *testing.T) {
	rc := newTestContext(t)
	edges := []callgraph.Edge{{Caller: "a", Callee: "b", CallSite: 1}}
	var lines []byte
	for _, e := range edges {
		data, _ := json.Marshal(e)
		lines = append(lines, data...)
		lines = append(lines, '\n')
	}
	if err := os.WriteFile(rc.CacheDir.CallGraphPath(), lines, 0o644); err != nil {
		t.Fatalf("write call graph: %v", err)
	}

	params, _ := json.Marshal(getCallGraphParams{SummaryOnly: true})
	res, err := handleGetCallGraph(rc, params)
	if err != nil {
		t.Fatalf("handleGetCallGraph: %v", err)
	}
	summary, ok := res.(callGraphSummary)
	if !ok || summary.Nodes != 2 || summary.Edges != 1 {
		t.Fatalf("expected 2 nodes / 1 edge, got %+v", res)
	}
}

func TestHandleGetCallGraphFullResult(t *testing.T) {
	rc := newTestContext(t)
	edges := []callgraph.Edge{{Caller: "a", Callee: "b", CallSite: 1}}
	var lines []byte
	for _, e := range edges {
		data, _ := json.Marshal(e)
		lines = append(lines, data...)
		lines = append(lines, '\n')
	}
	if err := os.WriteFile(rc.CacheDir.CallGraphPath(), lines, 0o644); err != nil {
		t.Fatalf("write call graph: %v", err)
	}

	res, err := handleGetCallGraph(rc, nil)
	if err != nil {
		t.Fatalf("handleGetCallGraph: %v", err)
	}
	full, ok := res.(callGraphResult)
	if !ok || len(full.Edges) != 1 {
		t.Fatalf("expected the full edge list, got %+v", res)
	}
}
