package query

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/anthropics/semfora/internal/extract"
	"github.com/anthropics/semfora/internal/registry"
	"github.com/anthropics/semfora/internal/semerr"
)

const getSymbolBatchLimit = 20

type getSymbolParams struct {
	Hash   string   `json:"hash"`
	Hashes []string `json:"hashes"`
}

func handleGetSymbol(rc *registry.RepoContext, params json.RawMessage) (interface{}, error) {
	var p getSymbolParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}

	hashes := p.Hashes
	batch := len(p.Hashes) > 0
	if p.Hash != "" {
		hashes = append([]string{p.Hash}, hashes...)
	}
	if len(hashes) == 0 {
		return nil, semerr.New(semerr.KindInvalidRequest, "get_symbol requires hash or hashes")
	}
	if len(hashes) > getSymbolBatchLimit {
		return nil, semerr.New(semerr.KindInvalidRequest, fmt.Sprintf("get_symbol accepts at most %d hashes per batch", getSymbolBatchLimit))
	}

	symbols := make([]*extract.Symbol, 0, len(hashes))
	for _, h := range hashes {
		sym, err := loadSymbol(rc, h)
		if err != nil {
			return nil, err
		}
		symbols = append(symbols, sym)
	}
	if !batch {
		return symbols[0], nil
	}
	return symbols, nil
}

type getFileParams struct {
	FilePath string `json:"file_path"`
	Module   string `json:"module"`
}

type fileSymbolRow struct {
	Hash string `json:"hash"`
	Name string `json:"name"`
	Kind string `json:"kind"`
	Line uint32 `json:"line"`
	Risk string `json:"risk"`
}

func handleGetFile(rc *registry.RepoContext, params json.RawMessage) (interface{}, error) {
	var p getFileParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	if (p.FilePath == "") == (p.Module == "") {
		return nil, semerr.New(semerr.KindInvalidRequest, "get_file requires exactly one of file_path or module")
	}

	rows, err := rc.CacheDir.SearchSymbols("", p.Module, "", "", 0)
	if err != nil {
		return nil, semerr.Wrap(semerr.KindInternal, "loading symbol rows", err)
	}

	out := make([]fileSymbolRow, 0, len(rows))
	for _, row := range rows {
		if p.FilePath != "" && row.File != p.FilePath {
			continue
		}
		out = append(out, fileSymbolRow{Hash: row.Hash, Name: row.Name, Kind: row.Kind, Line: row.Line, Risk: row.Risk})
	}
	return out, nil
}

type getSourceParams struct {
	Hash  string `json:"hash"`
	File  string `json:"file"`
	Lines [2]int `json:"lines"`
}

type sourceResult struct {
	File  string `json:"file"`
	Lines [2]int `json:"lines"`
	Text  string `json:"text"`
}

func handleGetSource(rc *registry.RepoContext, params json.RawMessage) (interface{}, error) {
	var p getSourceParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}

	file, start, end := p.File, p.Lines[0], p.Lines[1]
	if p.Hash != "" {
		sym, err := loadSymbol(rc, p.Hash)
		if err != nil {
			return nil, err
		}
		file, start, end = sym.File, int(sym.StartLine), int(sym.EndLine)
	}
	if file == "" || start == 0 || end == 0 {
		return nil, semerr.New(semerr.KindInvalidRequest, "get_source requires hash or file+lines")
	}

	full := file
	if !filepath.IsAbs(full) {
		full = filepath.Join(rc.BaseRepoPath, file)
	}
	data, err := os.ReadFile(full)
	if err != nil {
		return nil, semerr.Wrap(semerr.KindFileNotFound, fmt.Sprintf("reading %s", file), err)
	}

	text, err := sliceLines(data, start, end)
	if err != nil {
		return nil, semerr.Wrap(semerr.KindInvalidRequest, "slicing source lines", err)
	}
	return sourceResult{File: file, Lines: [2]int{start, end}, Text: text}, nil
}

// sliceLines returns the byte-for-byte text of the 1-based, inclusive
// line range [start, end] of data, keeping every original line
// terminator so the result is an exact slice of the file's bytes.
func sliceLines(data []byte, start, end int) (string, error) {
	if start < 1 || end < start {
		return "", fmt.Errorf("invalid line range [%d, %d]", start, end)
	}
	lines := strings.SplitAfter(string(data), "\n")
	if start > len(lines) {
		return "", fmt.Errorf("start line %d is past end of file (%d lines)", start, len(lines))
	}
	if end > len(lines) {
		end = len(lines)
	}
	return strings.Join(lines[start-1:end], ""), nil
}
