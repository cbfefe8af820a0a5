// Package query implements the ten query handlers described as C13:
// search, get_symbol, get_file, get_source, get_callers, get_callgraph,
// get_overview, find_duplicates, validate, and analyze_diff. Every
// handler reads from a RepoContext's CacheDir and in-memory indexes and
// returns a JSON-serializable value or a *semerr.CodedError describing
// why it couldn't.
package query

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/anthropics/semfora/internal/callgraph"
	"github.com/anthropics/semfora/internal/extract"
	"github.com/anthropics/semfora/internal/registry"
	"github.com/anthropics/semfora/internal/semerr"
)

// Dispatch resolves method to its handler and is the function wired
// into wsserver.Server.Handler, keeping the socket server free of a
// direct dependency on any one handler's implementation.
func Dispatch(rc *registry.RepoContext, method string, params json.RawMessage) (interface{}, error) {
	switch method {
	case "search":
		return handleSearch(rc, params)
	case "get_symbol":
		return handleGetSymbol(rc, params)
	case "get_file":
		return handleGetFile(rc, params)
	case "get_source":
		return handleGetSource(rc, params)
	case "get_callers":
		return handleGetCallers(rc, params)
	case "get_callgraph":
		return handleGetCallGraph(rc, params)
	case "get_overview":
		return handleGetOverview(rc, params)
	case "find_duplicates":
		return handleFindDuplicates(rc, params)
	case "validate":
		return handleValidate(rc, params)
	case "analyze_diff":
		return handleAnalyzeDiff(rc, params)
	default:
		return nil, semerr.New(semerr.KindProtocolError, fmt.Sprintf("unknown method %q", method))
	}
}

// decodeParams unmarshals params into v, leaving v at its zero value
// when the caller sent none (every handler's params are optional-field
// structs, so an absent params object is a valid empty request).
func decodeParams(params json.RawMessage, v interface{}) error {
	if len(params) == 0 {
		return nil
	}
	if err := json.Unmarshal(params, v); err != nil {
		return semerr.Wrap(semerr.KindInvalidRequest, "decoding params", err)
	}
	return nil
}

// loadSymbol resolves hash through the layered index, so a tombstoned
// or unresolved move is reported as not-found, then returns its full
// record. A Working/Branch edit not yet folded into a shard write
// carries its Symbol in-memory on the SymbolState itself; anything else
// falls back to the persisted symbols/<hash>.json file.
func loadSymbol(rc *registry.RepoContext, hash string) (*extract.Symbol, error) {
	state, ok := rc.LayeredIndex.ResolveSymbol(hash)
	if !ok {
		return nil, semerr.New(semerr.KindFileNotFound, fmt.Sprintf("no symbol for hash %q", hash))
	}
	if sym, ok := state.Symbol.(extract.Symbol); ok {
		return &sym, nil
	}

	data, err := os.ReadFile(rc.CacheDir.SymbolPath(hash))
	if err != nil {
		return nil, semerr.Wrap(semerr.KindFileNotFound, fmt.Sprintf("reading symbol %q", hash), err)
	}
	var sym extract.Symbol
	if err := json.Unmarshal(data, &sym); err != nil {
		return nil, semerr.Wrap(semerr.KindCacheCorrupt, fmt.Sprintf("decoding symbol %q", hash), err)
	}
	return &sym, nil
}

// loadCallGraph rebuilds the in-memory call graph from the persisted
// call_graph.jsonl shard. Call graph handlers are infrequent enough
// relative to search/get_symbol that rebuilding per call avoids giving
// RepoContext a graph field that would need its own invalidation story
// on every layer update.
func loadCallGraph(rc *registry.RepoContext) (*callgraph.Graph, error) {
	data, err := os.ReadFile(rc.CacheDir.CallGraphPath())
	if os.IsNotExist(err) {
		return callgraph.New(), nil
	}
	if err != nil {
		return nil, semerr.Wrap(semerr.KindCacheCorrupt, "reading call graph", err)
	}
	g := callgraph.New()
	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		if line == "" {
			continue
		}
		var e callgraph.Edge
		if err := json.Unmarshal([]byte(line), &e); err != nil {
			return nil, semerr.Wrap(semerr.KindCacheCorrupt, "decoding call graph edge", err)
		}
		g.AddEdge(e)
	}
	return g, nil
}
