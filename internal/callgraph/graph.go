// Package callgraph implements the directed multigraph over symbol hashes
// described in spec §3 (CallGraph) and §9's design note on cyclic data:
// nodes are addressed by stable SymbolHash strings, edges live in a
// separate container keyed by (caller, callee) pairs, and nothing holds an
// owning back-pointer into another node.
package callgraph

import "sort"

// Edge is one call-graph edge. CallSite is the 1-based line in Caller's
// body where the call occurs. IsExternal marks edges whose Callee does not
// resolve to any known symbol (a legal, expected state per spec §3).
type Edge struct {
	Caller        string
	Callee        string
	CallSite      uint32
	IsCrossModule bool
	IsExternal    bool
}

// Graph is an in-memory call graph keyed by symbol hash.
type Graph struct {
	// Edges is the forward adjacency list: caller hash -> callee hashes.
	Edges map[string][]string
	// ReverseEdges is the reverse adjacency list: callee hash -> caller hashes.
	ReverseEdges map[string][]string
	// detail holds the full Edge record for every (caller, callee) pair.
	// Multiple call sites between the same pair are all retained.
	detail map[[2]string][]Edge
	nodes  map[string]struct{}
}

// New creates an empty call graph.
func New() *Graph {
	return &Graph{
		Edges:        make(map[string][]string),
		ReverseEdges: make(map[string][]string),
		detail:       make(map[[2]string][]Edge),
		nodes:        make(map[string]struct{}),
	}
}

// AddNode registers a symbol hash as a node even if it has no edges yet.
// The CallGraph invariant (node set = union of Symbols) requires every
// extracted symbol to be added even when it calls nothing and is called
// by nothing.
func (g *Graph) AddNode(hash string) {
	if hash == "" {
		return
	}
	g.nodes[hash] = struct{}{}
	if _, ok := g.Edges[hash]; !ok {
		g.Edges[hash] = nil
	}
	if _, ok := g.ReverseEdges[hash]; !ok {
		g.ReverseEdges[hash] = nil
	}
}

// AddEdge records a call from caller to callee. Dangling edges to unknown
// callees are legal; the caller should set e.IsExternal in that case.
func (g *Graph) AddEdge(e Edge) {
	g.AddNode(e.Caller)
	if !e.IsExternal {
		g.AddNode(e.Callee)
	} else if _, ok := g.nodes[e.Callee]; !ok {
		// External callees still appear as sink nodes so Successors/
		// Predecessors can report them, but are not counted by NodeCount.
		if _, ok := g.Edges[e.Callee]; !ok {
			g.Edges[e.Callee] = nil
		}
	}

	g.Edges[e.Caller] = append(g.Edges[e.Caller], e.Callee)
	g.ReverseEdges[e.Callee] = append(g.ReverseEdges[e.Callee], e.Caller)

	key := [2]string{e.Caller, e.Callee}
	g.detail[key] = append(g.detail[key], e)
}

// NodeCount returns the number of known (non-dangling) symbol nodes.
func (g *Graph) NodeCount() int {
	return len(g.nodes)
}

// EdgeCount returns the total number of call-site edges.
func (g *Graph) EdgeCount() int {
	count := 0
	for _, edges := range g.detail {
		count += len(edges)
	}
	return count
}

// Successors returns the (possibly repeated) callees of node.
func (g *Graph) Successors(node string) []string {
	return g.Edges[node]
}

// Predecessors returns the (possibly repeated) callers of node.
func (g *Graph) Predecessors(node string) []string {
	return g.ReverseEdges[node]
}

// EdgesBetween returns every recorded Edge from caller to callee (there may
// be more than one call site).
func (g *Graph) EdgesBetween(caller, callee string) []Edge {
	return g.detail[[2]string{caller, callee}]
}

// AllEdges returns every edge in the graph, sorted by caller hash then
// callee hash then call-site line, matching the shard writer's
// call_graph.jsonl ordering contract (spec §4.4).
func (g *Graph) AllEdges() []Edge {
	var all []Edge
	for _, edges := range g.detail {
		all = append(all, edges...)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].Caller != all[j].Caller {
			return all[i].Caller < all[j].Caller
		}
		if all[i].Callee != all[j].Callee {
			return all[i].Callee < all[j].Callee
		}
		return all[i].CallSite < all[j].CallSite
	})
	return all
}

// CallerRef pairs one caller of a node with the call-site line(s) where
// each call occurs, used by get_callers (spec §4.12).
type CallerRef struct {
	Hash  string
	Lines []uint32
}

// DirectCallers returns, for node, one CallerRef per distinct caller with
// every recorded call-site line.
func (g *Graph) DirectCallers(node string) []CallerRef {
	byHash := make(map[string][]uint32)
	for _, caller := range g.ReverseEdges[node] {
		if _, seen := byHash[caller]; seen {
			// ReverseEdges repeats a caller once per call site; its
			// lines were all collected the first time it was seen.
			continue
		}
		for _, e := range g.EdgesBetween(caller, node) {
			byHash[caller] = append(byHash[caller], e.CallSite)
		}
	}
	refs := make([]CallerRef, 0, len(byHash))
	for hash, lines := range byHash {
		refs = append(refs, CallerRef{Hash: hash, Lines: lines})
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].Hash < refs[j].Hash })
	return refs
}

// Subgraph creates a new graph containing only the specified nodes and the
// edges between them.
func (g *Graph) Subgraph(nodes []string) *Graph {
	nodeSet := make(map[string]struct{}, len(nodes))
	for _, n := range nodes {
		nodeSet[n] = struct{}{}
	}

	sub := New()
	for _, node := range nodes {
		sub.AddNode(node)
	}
	for key, edges := range g.detail {
		_, okFrom := nodeSet[key[0]]
		_, okTo := nodeSet[key[1]]
		if okFrom && okTo {
			for _, e := range edges {
				sub.AddEdge(e)
			}
		}
	}
	return sub
}
