package query

import (
	"encoding/json"
	"os"
	"sort"
	"strings"

	"github.com/anthropics/semfora/internal/registry"
	"github.com/anthropics/semfora/internal/semerr"
	"github.com/anthropics/semfora/internal/shard"
)

type getOverviewParams struct {
	IncludeModules bool `json:"include_modules"`
}

func handleGetOverview(rc *registry.RepoContext, params json.RawMessage) (interface{}, error) {
	var p getOverviewParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(rc.CacheDir.OverviewPath())
	if err != nil {
		return nil, semerr.Wrap(semerr.KindFileNotFound, "reading overview", err)
	}
	var overview shard.RepoOverview
	if err := json.Unmarshal(data, &overview); err != nil {
		return nil, semerr.Wrap(semerr.KindCacheCorrupt, "decoding overview", err)
	}
	if !p.IncludeModules {
		overview.ModuleCounts = nil
	}
	return overview, nil
}

const dupJaccardThreshold = 0.85

type findDuplicatesParams struct {
	SymbolHash string `json:"symbol_hash"`
	Limit      int    `json:"limit"`
}

type duplicateMember struct {
	Hash   string `json:"hash"`
	Name   string `json:"name"`
	File   string `json:"file"`
	Module string `json:"module"`
}

type duplicateCluster struct {
	Members []duplicateMember `json:"members"`
	Reason  string            `json:"reason"`
}

// handleFindDuplicates clusters signature_index.jsonl entries in two
// passes. Phase 1 groups exact (call, control-flow, state) fingerprint
// tuples, standing in for semantic_hash clustering since
// FunctionSignature doesn't persist one. Phase 2 runs Jaccard similarity
// over name/business-call tokens among what phase 1 left as singletons.
func handleFindDuplicates(rc *registry.RepoContext, params json.RawMessage) (interface{}, error) {
	var p findDuplicatesParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	if p.Limit <= 0 {
		p.Limit = 30
	}

	sigs, err := loadSignatures(rc)
	if err != nil {
		return nil, err
	}

	type fpKey struct {
		call, flow, state uint64
	}
	byFingerprint := make(map[fpKey][]shard.FunctionSignature)
	for _, s := range sigs {
		k := fpKey{s.CallFingerprint, s.ControlFlowFingerprint, s.StateFingerprint}
		byFingerprint[k] = append(byFingerprint[k], s)
	}

	var clusters []duplicateCluster
	var singletons []shard.FunctionSignature
	for _, group := range byFingerprint {
		if len(group) >= 2 {
			clusters = append(clusters, toCluster(group, "identical_fingerprint"))
		} else {
			singletons = append(singletons, group...)
		}
	}

	used := make(map[int]bool)
	for i := 0; i < len(singletons); i++ {
		if used[i] {
			continue
		}
		group := []shard.FunctionSignature{singletons[i]}
		tokensI := signatureTokens(singletons[i])
		for j := i + 1; j < len(singletons); j++ {
			if used[j] {
				continue
			}
			if jaccard(tokensI, signatureTokens(singletons[j])) >= dupJaccardThreshold {
				group = append(group, singletons[j])
				used[j] = true
			}
		}
		if len(group) >= 2 {
			used[i] = true
			clusters = append(clusters, toCluster(group, "fingerprint_similarity"))
		}
	}

	if p.SymbolHash != "" {
		var filtered []duplicateCluster
		for _, c := range clusters {
			for _, m := range c.Members {
				if m.Hash == p.SymbolHash {
					filtered = append(filtered, c)
					break
				}
			}
		}
		clusters = filtered
	}

	sort.Slice(clusters, func(i, j int) bool {
		return clusters[i].Members[0].Hash < clusters[j].Members[0].Hash
	})
	if len(clusters) > p.Limit {
		clusters = clusters[:p.Limit]
	}
	return clusters, nil
}

func toCluster(group []shard.FunctionSignature, reason string) duplicateCluster {
	members := make([]duplicateMember, 0, len(group))
	for _, s := range group {
		members = append(members, duplicateMember{Hash: s.SymbolHash, Name: s.Name, File: s.File, Module: s.Module})
	}
	sort.Slice(members, func(i, j int) bool { return members[i].Hash < members[j].Hash })
	return duplicateCluster{Members: members, Reason: reason}
}

func signatureTokens(s shard.FunctionSignature) map[string]bool {
	tokens := make(map[string]bool, len(s.NameTokens)+len(s.BusinessCalls))
	for _, t := range s.NameTokens {
		tokens[strings.ToLower(t)] = true
	}
	for _, c := range s.BusinessCalls {
		tokens[strings.ToLower(c)] = true
	}
	return tokens
}

func jaccard(a, b map[string]bool) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	intersection := 0
	for t := range a {
		if b[t] {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

func loadSignatures(rc *registry.RepoContext) ([]shard.FunctionSignature, error) {
	data, err := os.ReadFile(rc.CacheDir.SignatureIndexPath())
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, semerr.Wrap(semerr.KindInternal, "reading signature index", err)
	}
	var sigs []shard.FunctionSignature
	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		if line == "" {
			continue
		}
		var s shard.FunctionSignature
		if err := json.Unmarshal([]byte(line), &s); err != nil {
			return nil, semerr.Wrap(semerr.KindCacheCorrupt, "decoding signature entry", err)
		}
		sigs = append(sigs, s)
	}
	return sigs, nil
}
