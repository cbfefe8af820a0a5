package shard

import "sort"

// ModuleCount is one row of RepoOverview's per-module breakdown.
type ModuleCount struct {
	Module      string `json:"module"`
	SymbolCount int    `json:"symbol_count"`
}

// RepoOverview is the aggregated architecture view, matching spec §3's
// RepoOverview entity: "per-module counts, risk breakdown, total symbols,
// total files, dominant language, external dependency list."
type RepoOverview struct {
	TotalSymbols         int            `json:"total_symbols"`
	TotalFiles           int            `json:"total_files"`
	ModuleCounts         []ModuleCount  `json:"module_counts"`
	RiskBreakdown        map[string]int `json:"risk_breakdown"`
	DominantLanguage     string         `json:"dominant_language"`
	ExternalDependencies []string       `json:"external_dependencies"`
}

// BuildOverview aggregates the shard writer's pass-level counters into a
// RepoOverview. Rebuilt on every full shard write, per spec §3.
func BuildOverview(totalSymbols, totalFiles int, langCounts, riskCounts map[string]int, deps map[string]struct{}, moduleSymbolCounts map[string]int) RepoOverview {
	modules := make([]ModuleCount, 0, len(moduleSymbolCounts))
	for module, count := range moduleSymbolCounts {
		modules = append(modules, ModuleCount{Module: module, SymbolCount: count})
	}
	sort.Slice(modules, func(i, j int) bool { return modules[i].Module < modules[j].Module })

	dominant := ""
	best := -1
	langNames := make([]string, 0, len(langCounts))
	for l := range langCounts {
		langNames = append(langNames, l)
	}
	sort.Strings(langNames)
	for _, l := range langNames {
		if langCounts[l] > best {
			best = langCounts[l]
			dominant = l
		}
	}

	depList := make([]string, 0, len(deps))
	for d := range deps {
		depList = append(depList, d)
	}
	sort.Strings(depList)

	risk := make(map[string]int, len(riskCounts))
	for k, v := range riskCounts {
		risk[k] = v
	}

	return RepoOverview{
		TotalSymbols:         totalSymbols,
		TotalFiles:           totalFiles,
		ModuleCounts:         modules,
		RiskBreakdown:        risk,
		DominantLanguage:     dominant,
		ExternalDependencies: depList,
	}
}
