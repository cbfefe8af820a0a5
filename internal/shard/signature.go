package shard

import (
	"sort"
	"strings"

	"github.com/anthropics/semfora/internal/bm25"
	"github.com/anthropics/semfora/internal/extract"
)

// infraCallNames is a closed list of call names treated as boilerplate
// rather than business logic when computing has_business_logic: logging,
// assertions, and trivial accessors that appear in nearly every function
// and would otherwise make every symbol look business-relevant.
var infraCallNames = map[string]bool{
	"log": true, "logf": true, "println": true, "print": true, "printf": true,
	"debug": true, "debugf": true, "info": true, "infof": true,
	"warn": true, "warnf": true, "error": true, "errorf": true,
	"assert": true, "fatal": true, "fatalf": true, "panic": true,
	"len": true, "cap": true, "append": true, "string": true,
}

// FunctionSignature is the duplicate-detection record emitted for every
// function/method symbol, matching spec §3's FunctionSignature entity.
type FunctionSignature struct {
	SymbolHash              string   `json:"symbol_hash"`
	Name                    string   `json:"name"`
	File                    string   `json:"file"`
	Module                  string   `json:"module"`
	StartLine               uint32   `json:"start_line"`
	NameTokens              []string `json:"name_tokens"`
	CallFingerprint         uint64   `json:"call_fingerprint"`
	ControlFlowFingerprint  uint64   `json:"control_flow_fingerprint"`
	StateFingerprint        uint64   `json:"state_fingerprint"`
	BusinessCalls           []string `json:"business_calls"`
	ParamCount              int      `json:"param_count"`
	HasBusinessLogic        bool     `json:"has_business_logic"`
	LineCount               int      `json:"line_count"`
}

// BuildSignature derives a FunctionSignature from a finalized Symbol.
// Fingerprints are stable 64-bit rolls over the sorted call/control-flow/
// state multisets, per spec §3's "Fingerprints are stable 64-bit rolls
// over the respective multiset."
func BuildSignature(sym extract.Symbol, module string) FunctionSignature {
	callNames := make([]string, 0, len(sym.Calls))
	var businessCalls []string
	for _, c := range sym.Calls {
		callNames = append(callNames, c.Name)
		if !infraCallNames[strings.ToLower(c.Name)] {
			businessCalls = append(businessCalls, c.Name)
		}
	}
	sort.Strings(callNames)
	sort.Strings(businessCalls)

	flowTokens := make([]string, 0, len(sym.ControlFlow))
	for _, f := range sym.ControlFlow {
		flowTokens = append(flowTokens, string(f))
	}
	sort.Strings(flowTokens)

	stateTokens := make([]string, 0, len(sym.StateChanges))
	for _, s := range sym.StateChanges {
		stateTokens = append(stateTokens, s.Kind)
	}
	sort.Strings(stateTokens)

	lineCount := 0
	if sym.EndLine >= sym.StartLine {
		lineCount = int(sym.EndLine-sym.StartLine) + 1
	}

	return FunctionSignature{
		SymbolHash:             sym.Hash,
		Name:                   sym.Name,
		File:                   sym.File,
		Module:                 module,
		StartLine:              sym.StartLine,
		NameTokens:             bm25.Tokenize(sym.Name),
		CallFingerprint:        extract.Fingerprint64(callNames),
		ControlFlowFingerprint: extract.Fingerprint64(flowTokens),
		StateFingerprint:       extract.Fingerprint64(stateTokens),
		BusinessCalls:          businessCalls,
		ParamCount:             sym.Arity,
		HasBusinessLogic:       len(businessCalls) > 0 || sym.CyclomaticComplexity > 1,
		LineCount:              lineCount,
	}
}
