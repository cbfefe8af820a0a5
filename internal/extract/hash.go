package extract

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// ComputeHash derives the 128-bit SymbolHash from (file path, symbol name,
// kind, start line) per spec §4.1. It is stable across reruns as long as
// the symbol's position in the file doesn't move.
func ComputeHash(filePath, name string, kind SymbolKind, startLine uint32) string {
	raw := fmt.Sprintf("%s\x00%s\x00%s\x00%d", filePath, name, kind, startLine)
	sum := md5.Sum([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// ComputeSemanticHash derives the 64-bit SemanticHash from a symbol's
// call-set, control-flow multiset, and state-change multiset per spec
// §4.1: "hash64 of the sorted canonical form of (call names) ++
// (control-flow kinds) ++ (state-change kinds)". Renaming the symbol (or
// its callers) never changes this hash; renaming a callee it invokes does.
func ComputeSemanticHash(calls []CallSite, controlFlow []ControlFlowKind, stateChanges []StateChange) string {
	names := make([]string, 0, len(calls))
	for _, c := range calls {
		names = append(names, c.Name)
	}
	sort.Strings(names)

	flows := make([]string, 0, len(controlFlow))
	for _, f := range controlFlow {
		flows = append(flows, string(f))
	}
	sort.Strings(flows)

	states := make([]string, 0, len(stateChanges))
	for _, s := range stateChanges {
		states = append(states, s.Kind)
	}
	sort.Strings(states)

	var sb strings.Builder
	for _, n := range names {
		sb.WriteString(n)
		sb.WriteByte(',')
	}
	sb.WriteByte('|')
	for _, f := range flows {
		sb.WriteString(f)
		sb.WriteByte(',')
	}
	sb.WriteByte('|')
	for _, s := range states {
		sb.WriteString(s)
		sb.WriteByte(',')
	}

	sum := xxhash.Sum64String(sb.String())
	return fmt.Sprintf("%016x", sum)
}

// Finalize computes and sets Hash, SemanticHash, and BehavioralRisk on sym
// in place. Every language adaptor must call this as its last step before
// returning a Symbol.
func Finalize(sym *Symbol, filePath string) {
	sym.File = filePath
	sym.Hash = ComputeHash(filePath, sym.Name, sym.Kind, sym.StartLine)
	sym.SemanticHash = ComputeSemanticHash(sym.Calls, sym.ControlFlow, sym.StateChanges)
	sym.BehavioralRisk = RiskForComplexity(sym.CyclomaticComplexity)
}

// Fingerprint64 rolls an ordered token multiset into a stable 64-bit hash,
// used by FunctionSignature's call/control-flow/state fingerprints (spec
// §3). Unlike ComputeSemanticHash it does not sort first: callers that want
// an order-invariant fingerprint should sort their input before calling.
func Fingerprint64(tokens []string) uint64 {
	var sb strings.Builder
	for _, t := range tokens {
		sb.WriteString(t)
		sb.WriteByte(',')
	}
	return xxhash.Sum64String(sb.String())
}
