package query

import (
	"encoding/json"

	"github.com/anthropics/semfora/internal/extract"
	"github.com/anthropics/semfora/internal/registry"
	"github.com/anthropics/semfora/internal/semerr"
)

type validateParams struct {
	SymbolHash string `json:"symbol_hash"`
	FilePath   string `json:"file_path"`
	Line       int    `json:"line"`
	Module     string `json:"module"`
}

type validateRow struct {
	Hash                 string                `json:"hash"`
	Name                 string                `json:"name"`
	File                 string                `json:"file"`
	CyclomaticComplexity int                   `json:"cyclomatic_complexity"`
	CognitiveComplexity  int                   `json:"cognitive_complexity"`
	Risk                 extract.BehavioralRisk `json:"risk"`
}

// handleValidate resolves a hash set directly from SymbolHash or by
// filtering the symbol index on FilePath/Line/Module, then reports each
// resolved symbol's complexity banded through extract.RiskForComplexity
// rather than re-deriving the low/medium/high thresholds here.
func handleValidate(rc *registry.RepoContext, params json.RawMessage) (interface{}, error) {
	var p validateParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	if p.SymbolHash == "" && p.FilePath == "" && p.Module == "" {
		return nil, semerr.New(semerr.KindInvalidRequest, "validate requires symbol_hash, file_path, or module")
	}

	var hashes []string
	if p.SymbolHash != "" {
		hashes = []string{p.SymbolHash}
	} else {
		rows, err := rc.CacheDir.SearchSymbols("", p.Module, "", "", 0)
		if err != nil {
			return nil, semerr.Wrap(semerr.KindInternal, "resolving symbols to validate", err)
		}
		for _, row := range rows {
			if p.FilePath != "" && row.File != p.FilePath {
				continue
			}
			if p.Line != 0 && int(row.Line) != p.Line {
				continue
			}
			hashes = append(hashes, row.Hash)
		}
	}

	out := make([]validateRow, 0, len(hashes))
	for _, hash := range hashes {
		sym, err := loadSymbol(rc, hash)
		if err != nil {
			continue
		}
		out = append(out, validateRow{
			Hash:                 hash,
			Name:                 sym.Name,
			File:                 sym.File,
			CyclomaticComplexity: sym.CyclomaticComplexity,
			CognitiveComplexity:  sym.CognitiveComplexity,
			Risk:                 extract.RiskForComplexity(sym.CyclomaticComplexity),
		})
	}
	return out, nil
}
