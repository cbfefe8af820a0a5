// Package layer implements the four-layer shadow-merge overlay described
// in spec §3/§4.6: Base, Branch, Working, and AI, resolved in that order
// with explicit Deleted tombstones short-circuiting resolution.
package layer

import "sort"

// Status is a SymbolState's lifecycle tag.
type Status string

const (
	StatusActive  Status = "Active"
	StatusDeleted Status = "Deleted"
	StatusMoved   Status = "Moved"
)

// SymbolState is one entry in a layer.
type SymbolState struct {
	Symbol      interface{} `json:"symbol,omitempty"`
	File        string      `json:"file"`
	Status      Status      `json:"status"`
	MovedTo     string      `json:"moved_to,omitempty"`
	FirstSeenAt int64       `json:"first_seen_at"`
	LastSeenAt  int64       `json:"last_seen_at"`
}

// Meta holds a layer's generation metadata.
type Meta struct {
	IndexedSHA   string `json:"indexed_sha,omitempty"`
	LastUpdateTS int64  `json:"last_update_ts"`
}

// Layer is an ordered map of SymbolHash to SymbolState, plus generation
// metadata.
type Layer struct {
	States map[string]SymbolState
	Meta   Meta
}

// NewLayer creates an empty layer.
func NewLayer() *Layer {
	return &Layer{States: make(map[string]SymbolState)}
}

// SortedHashes returns every hash in the layer in lexicographic order,
// for deterministic persistence.
func (l *Layer) SortedHashes() []string {
	hashes := make([]string, 0, len(l.States))
	for h := range l.States {
		hashes = append(hashes, h)
	}
	sort.Strings(hashes)
	return hashes
}

// Put inserts or overwrites a symbol state.
func (l *Layer) Put(hash string, state SymbolState) {
	l.States[hash] = state
}

// Tombstone marks hash as Deleted, the resolution short-circuit per spec
// §3's LayeredIndex invariant (a).
func (l *Layer) Tombstone(hash string, ts int64) {
	l.States[hash] = SymbolState{Status: StatusDeleted, LastSeenAt: ts}
}

// LayeredIndex is the four layers together.
type LayeredIndex struct {
	Base    *Layer
	Branch  *Layer
	Working *Layer
	AI      *Layer
}

// NewLayeredIndex creates four empty layers.
func NewLayeredIndex() *LayeredIndex {
	return &LayeredIndex{
		Base: NewLayer(), Branch: NewLayer(), Working: NewLayer(), AI: NewLayer(),
	}
}

// Meta reports the layer-wide pointers persisted alongside the layer
// files (the Base/Branch/Working generation metadata; AI is memory-only).
func (idx *LayeredIndex) Meta() map[string]Meta {
	return map[string]Meta{
		"base": idx.Base.Meta, "branch": idx.Branch.Meta, "working": idx.Working.Meta,
	}
}

const maxMoveHops = 64 // cycle guard for Moved{to} chains

// ResolveSymbol implements spec §4.6's resolve_symbol: visits Working →
// Branch → Base → AI in that order. In each layer: Active returns the
// state; Deleted short-circuits the whole resolution to not-found
// (a tombstone always wins over a lower-priority Active entry); Moved{to}
// recurses with `to` starting from the same layer, with a cycle guard
// that treats a cycle as not-found.
func (idx *LayeredIndex) ResolveSymbol(hash string) (SymbolState, bool) {
	for _, l := range []*Layer{idx.Working, idx.Branch, idx.Base, idx.AI} {
		state, ok, deleted := resolveInLayer(l, hash, maxMoveHops)
		if deleted {
			return SymbolState{}, false
		}
		if ok {
			return state, true
		}
	}
	return SymbolState{}, false
}

// resolveInLayer follows Moved{to} chains within a single layer. Returns
// deleted=true if a tombstone was hit anywhere in the chain (the caller
// must stop checking lower-priority layers entirely).
func resolveInLayer(l *Layer, hash string, hopsLeft int) (state SymbolState, found, deleted bool) {
	s, ok := l.States[hash]
	if !ok {
		return SymbolState{}, false, false
	}
	switch s.Status {
	case StatusDeleted:
		return SymbolState{}, false, true
	case StatusMoved:
		if hopsLeft <= 0 {
			return SymbolState{}, false, false // cycle: treated as not-found, not a tombstone
		}
		return resolveInLayer(l, s.MovedTo, hopsLeft-1)
	default:
		return s, true, false
	}
}

// MergedView returns the resolved state for every hash known to any
// layer, applying the same Working → Branch → Base → AI precedence as
// ResolveSymbol, skipping hashes that resolve to not-found (deleted, or
// a dangling/cyclic move).
func (idx *LayeredIndex) MergedView() map[string]SymbolState {
	seen := make(map[string]struct{})
	merged := make(map[string]SymbolState)
	for _, l := range []*Layer{idx.Working, idx.Branch, idx.Base, idx.AI} {
		for hash := range l.States {
			if _, ok := seen[hash]; ok {
				continue
			}
			seen[hash] = struct{}{}
			if state, ok := idx.ResolveSymbol(hash); ok {
				merged[hash] = state
			}
		}
	}
	return merged
}

// Stats reports per-layer symbol counts.
type Stats struct {
	BaseCount    int `json:"base_count"`
	BranchCount  int `json:"branch_count"`
	WorkingCount int `json:"working_count"`
	AICount      int `json:"ai_count"`
	MergedCount  int `json:"merged_count"`
}

// Stats computes the current layer sizes.
func (idx *LayeredIndex) Stats() Stats {
	return Stats{
		BaseCount:    len(idx.Base.States),
		BranchCount:  len(idx.Branch.States),
		WorkingCount: len(idx.Working.States),
		AICount:      len(idx.AI.States),
		MergedCount:  len(idx.MergedView()),
	}
}

// ClearAI empties the AI layer, per spec §3's lifecycle: "AI layer
// entries are destroyed ... when clear_layers is called."
func (idx *LayeredIndex) ClearAI() {
	idx.AI = NewLayer()
}
