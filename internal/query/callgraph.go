package query

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/anthropics/semfora/internal/callgraph"
	"github.com/anthropics/semfora/internal/registry"
	"github.com/anthropics/semfora/internal/semerr"
)

type getCallersParams struct {
	Hash  string `json:"hash"`
	Depth int    `json:"depth"`
}

type callerResult struct {
	Hash  string   `json:"hash"`
	Lines []uint32 `json:"lines"`
	Depth int      `json:"depth"`
}

// handleGetCallers runs a depth-bounded BFS over the reverse call
// graph. callgraph.Graph exposes no depth-aware traversal of its own
// (BFS/DFS walk to exhaustion), so this walks level by level using
// Graph.DirectCallers as the one-hop primitive, stopping once Depth
// levels have been expanded.
func handleGetCallers(rc *registry.RepoContext, params json.RawMessage) (interface{}, error) {
	var p getCallersParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	if p.Hash == "" {
		return nil, semerr.New(semerr.KindInvalidRequest, "get_callers requires a hash")
	}
	if p.Depth <= 0 {
		p.Depth = 1
	}

	g, err := loadCallGraph(rc)
	if err != nil {
		return nil, err
	}

	visited := map[string]bool{p.Hash: true}
	frontier := []string{p.Hash}
	var out []callerResult
	for depth := 1; depth <= p.Depth && len(frontier) > 0; depth++ {
		var next []string
		for _, node := range frontier {
			for _, ref := range g.DirectCallers(node) {
				if visited[ref.Hash] {
					continue
				}
				visited[ref.Hash] = true
				out = append(out, callerResult{Hash: ref.Hash, Lines: ref.Lines, Depth: depth})
				next = append(next, ref.Hash)
			}
		}
		frontier = next
	}
	return out, nil
}

type getCallGraphParams struct {
	Symbol      string `json:"symbol"`
	SummaryOnly bool   `json:"summary_only"`
	Export      string `json:"export"`
}

type callGraphSummary struct {
	Nodes int `json:"nodes"`
	Edges int `json:"edges"`
}

type callGraphResult struct {
	Nodes int              `json:"nodes"`
	Edges []callgraph.Edge `json:"edges"`
}

// handleGetCallGraph returns edges or just counts, scoped to a single
// symbol's neighborhood when Symbol is set. With export="sqlite" the
// graph is written to a sqlite file under the cache directory and only
// its statistics are returned, per spec §4.12's "never the graph
// itself" rule for exports.
func handleGetCallGraph(rc *registry.RepoContext, params json.RawMessage) (interface{}, error) {
	var p getCallGraphParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}

	g, err := loadCallGraph(rc)
	if err != nil {
		return nil, err
	}
	if p.Symbol != "" {
		neighborhood := append([]string{p.Symbol}, g.Successors(p.Symbol)...)
		neighborhood = append(neighborhood, g.Predecessors(p.Symbol)...)
		g = g.Subgraph(neighborhood)
	}

	if p.Export == "sqlite" {
		path := filepath.Join(rc.CacheDir.Root, "call_graph_export.sqlite")
		if err := exportCallGraphSQLite(g, path); err != nil {
			return nil, semerr.Wrap(semerr.KindInternal, "exporting call graph", err)
		}
		return callGraphSummary{Nodes: g.NodeCount(), Edges: g.EdgeCount()}, nil
	}
	if p.SummaryOnly {
		return callGraphSummary{Nodes: g.NodeCount(), Edges: g.EdgeCount()}, nil
	}
	return callGraphResult{Nodes: g.NodeCount(), Edges: g.AllEdges()}, nil
}

const callGraphExportSchema = `
CREATE TABLE IF NOT EXISTS call_graph_edges (
	caller TEXT NOT NULL,
	callee TEXT NOT NULL,
	call_site INTEGER NOT NULL,
	is_cross_module INTEGER NOT NULL,
	is_external INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_call_graph_edges_caller ON call_graph_edges(caller);
CREATE INDEX IF NOT EXISTS idx_call_graph_edges_callee ON call_graph_edges(callee);
`

// exportCallGraphSQLite persists g into the sqlite file at path as a
// single call_graph_edges table, one row per edge, indexed by caller and
// by callee.
func exportCallGraphSQLite(g *callgraph.Graph, path string) error {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("query: open sqlite: %w", err)
	}
	defer db.Close()

	if _, err := db.Exec(callGraphExportSchema); err != nil {
		return fmt.Errorf("query: init schema: %w", err)
	}
	if _, err := db.Exec("DELETE FROM call_graph_edges"); err != nil {
		return fmt.Errorf("query: clear table: %w", err)
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("query: begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT INTO call_graph_edges
		(caller, callee, call_site, is_cross_module, is_external) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("query: prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range g.AllEdges() {
		if _, err := stmt.Exec(e.Caller, e.Callee, e.CallSite, e.IsCrossModule, e.IsExternal); err != nil {
			return fmt.Errorf("query: insert edge %s->%s: %w", e.Caller, e.Callee, err)
		}
	}
	return tx.Commit()
}
