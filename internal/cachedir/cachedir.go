// Package cachedir implements the on-disk cache layout described as C4:
// a fixed directory tree under <cache_base>/<repo_hash>/ holding shard
// files, the call graph, the signature index, the BM25 index, the repo
// overview, and the layered index.
package cachedir

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/anthropics/semfora/internal/layer"
	"github.com/anthropics/semfora/internal/pathutil"
)

// CacheDir owns one repository's on-disk cache.
type CacheDir struct {
	Root     string // <cache_base>/<repo_hash>
	RepoRoot string // absolute source path
	RepoHash string
}

// Open resolves a CacheDir for repoRoot without touching the filesystem.
func Open(repoRoot string) (*CacheDir, error) {
	base, err := pathutil.CacheBaseDir()
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(repoRoot)
	if err != nil {
		return nil, err
	}
	hash := pathutil.RepoHash(abs)
	return &CacheDir{
		Root:     filepath.Join(base, hash),
		RepoRoot: abs,
		RepoHash: hash,
	}, nil
}

// Init creates the directory tree idempotently.
func (c *CacheDir) Init() error {
	dirs := []string{
		c.Root,
		c.modulesDir(),
		c.symbolsDir(),
		filepath.Join(c.Root, "layers", "base"),
		filepath.Join(c.Root, "layers", "branch"),
		filepath.Join(c.Root, "layers", "working"),
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return err
		}
	}
	return nil
}

func (c *CacheDir) modulesDir() string { return filepath.Join(c.Root, "modules") }
func (c *CacheDir) symbolsDir() string { return filepath.Join(c.Root, "symbols") }

// OverviewPath returns the path to the repo overview file.
func (c *CacheDir) OverviewPath() string { return filepath.Join(c.Root, "overview.json") }

// CallGraphPath returns the path to the call graph JSONL file.
func (c *CacheDir) CallGraphPath() string { return filepath.Join(c.Root, "call_graph.jsonl") }

// SignatureIndexPath returns the path to the signature index JSONL file.
func (c *CacheDir) SignatureIndexPath() string {
	return filepath.Join(c.Root, "signature_index.jsonl")
}

// BM25IndexPath returns the path to the persisted BM25 index.
func (c *CacheDir) BM25IndexPath() string { return filepath.Join(c.Root, "bm25_index.json") }

// ModulePath returns the path to a module's symbol-row JSONL shard.
func (c *CacheDir) ModulePath(module string) string {
	return filepath.Join(c.modulesDir(), module+".jsonl")
}

// SymbolPath returns the path to a symbol's full JSON record.
func (c *CacheDir) SymbolPath(hash string) string {
	return filepath.Join(c.symbolsDir(), hash+".json")
}

// ListModules returns every module name with a shard file on disk.
func (c *CacheDir) ListModules() ([]string, error) {
	entries, err := os.ReadDir(c.modulesDir())
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var modules []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".jsonl") {
			modules = append(modules, strings.TrimSuffix(e.Name(), ".jsonl"))
		}
	}
	sort.Strings(modules)
	return modules, nil
}

// SymbolIndexEntry is one row returned by SearchSymbols.
type SymbolIndexEntry struct {
	Hash   string `json:"hash"`
	Name   string `json:"name"`
	Kind   string `json:"kind"`
	File   string `json:"file"`
	Module string `json:"module"`
	Line   uint32 `json:"line"`
	Risk   string `json:"risk"`
}

var kindRank = map[string]int{
	"function": 0, "method": 1, "class": 2, "struct": 2, "interface": 3,
	"trait": 3, "enum": 4, "type": 5, "impl": 6, "namespace": 7, "module": 7,
	"const": 8, "variable": 9,
}

// SearchSymbols implements spec §4.3's search_symbols: filters modules'
// compact rows by query/module/kind/risk and orders by (kind rank,
// lexicographic name), boosting an exact-name match to the top.
func (c *CacheDir) SearchSymbols(query, module, kind, risk string, limit int) ([]SymbolIndexEntry, error) {
	modules, err := c.ListModules()
	if err != nil {
		return nil, err
	}

	var all []SymbolIndexEntry
	for _, m := range modules {
		if module != "" && m != module {
			continue
		}
		rows, err := c.loadModuleRows(m)
		if err != nil {
			return nil, err
		}
		all = append(all, rows...)
	}

	lowerQuery := strings.ToLower(query)
	var matches []SymbolIndexEntry
	for _, e := range all {
		if kind != "" && e.Kind != kind {
			continue
		}
		if risk != "" && e.Risk != risk {
			continue
		}
		if lowerQuery != "" && !strings.Contains(strings.ToLower(e.Name), lowerQuery) {
			continue
		}
		matches = append(matches, e)
	}

	sort.SliceStable(matches, func(i, j int) bool {
		iExact := strings.EqualFold(matches[i].Name, query)
		jExact := strings.EqualFold(matches[j].Name, query)
		if iExact != jExact {
			return iExact
		}
		ri, rj := kindRank[matches[i].Kind], kindRank[matches[j].Kind]
		if ri != rj {
			return ri < rj
		}
		return matches[i].Name < matches[j].Name
	})

	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

func (c *CacheDir) loadModuleRows(module string) ([]SymbolIndexEntry, error) {
	data, err := os.ReadFile(c.ModulePath(module))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var rows []SymbolIndexEntry
	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		if line == "" {
			continue
		}
		var row SymbolIndexEntry
		if err := json.Unmarshal([]byte(line), &row); err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// SaveLayeredIndex persists Base/Branch/Working (never AI) per spec §4.3.
// Each layer's files are written atomically but there is no cross-file
// transaction: a crash between layer writes may leave mixed-generation
// files on disk, which LoadLayeredIndex must tolerate.
func (c *CacheDir) SaveLayeredIndex(idx *layer.LayeredIndex) error {
	for name, l := range map[string]*layer.Layer{
		"base": idx.Base, "branch": idx.Branch, "working": idx.Working,
	} {
		if err := c.saveLayer(name, l); err != nil {
			return err
		}
	}
	return c.saveLayerMeta(idx)
}

func (c *CacheDir) layerDir(name string) string { return filepath.Join(c.Root, "layers", name) }

func (c *CacheDir) saveLayer(name string, l *layer.Layer) error {
	dir := c.layerDir(name)

	symbolsPath := filepath.Join(dir, "symbols.jsonl")
	var sb strings.Builder
	for _, hash := range l.SortedHashes() {
		state := l.States[hash]
		if state.Status == layer.StatusDeleted {
			continue
		}
		data, err := json.Marshal(layerRow{Hash: hash, State: state})
		if err != nil {
			return err
		}
		sb.Write(data)
		sb.WriteByte('\n')
	}
	if err := pathutil.AtomicWrite(symbolsPath, []byte(sb.String()), 0o644); err != nil {
		return err
	}

	deletedPath := filepath.Join(dir, "deleted.txt")
	var deleted strings.Builder
	for _, hash := range l.SortedHashes() {
		if l.States[hash].Status == layer.StatusDeleted {
			deleted.WriteString(hash)
			deleted.WriteByte('\n')
		}
	}
	if err := pathutil.AtomicWrite(deletedPath, []byte(deleted.String()), 0o644); err != nil {
		return err
	}

	movesPath := filepath.Join(dir, "moves.jsonl")
	var moves strings.Builder
	for _, hash := range l.SortedHashes() {
		state := l.States[hash]
		if state.Status == layer.StatusMoved {
			data, err := json.Marshal(layerRow{Hash: hash, State: state})
			if err != nil {
				return err
			}
			moves.Write(data)
			moves.WriteByte('\n')
		}
	}
	if err := pathutil.AtomicWrite(movesPath, []byte(moves.String()), 0o644); err != nil {
		return err
	}

	metaPath := filepath.Join(dir, "meta.json")
	metaData, err := json.Marshal(l.Meta)
	if err != nil {
		return err
	}
	return pathutil.AtomicWrite(metaPath, metaData, 0o644)
}

type layerRow struct {
	Hash  string           `json:"hash"`
	State layer.SymbolState `json:"state"`
}

func (c *CacheDir) saveLayerMeta(idx *layer.LayeredIndex) error {
	data, err := json.Marshal(idx.Meta())
	if err != nil {
		return err
	}
	return pathutil.AtomicWrite(filepath.Join(c.Root, "layers", "meta.json"), data, 0o644)
}

// LoadLayeredIndex restores Base/Branch/Working from disk; AI is always
// empty (spec §3's LayeredIndex invariant (b)). Missing or partially
// written layer files are tolerated as empty layers, per the "mixed
// generation" crash-tolerance contract.
func (c *CacheDir) LoadLayeredIndex() (*layer.LayeredIndex, error) {
	idx := layer.NewLayeredIndex()
	for name, l := range map[string]*layer.Layer{
		"base": idx.Base, "branch": idx.Branch, "working": idx.Working,
	} {
		if err := c.loadLayer(name, l); err != nil {
			return nil, err
		}
	}
	return idx, nil
}

func (c *CacheDir) loadLayer(name string, l *layer.Layer) error {
	dir := c.layerDir(name)

	data, err := os.ReadFile(filepath.Join(dir, "symbols.jsonl"))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		if line == "" {
			continue
		}
		var row layerRow
		if err := json.Unmarshal([]byte(line), &row); err != nil {
			continue // tolerate a partially written line from a crash
		}
		l.States[row.Hash] = row.State
	}

	deletedData, err := os.ReadFile(filepath.Join(dir, "deleted.txt"))
	if err == nil {
		for _, hash := range strings.Split(strings.TrimSpace(string(deletedData)), "\n") {
			if hash == "" {
				continue
			}
			l.States[hash] = layer.SymbolState{Status: layer.StatusDeleted}
		}
	}

	movesData, err := os.ReadFile(filepath.Join(dir, "moves.jsonl"))
	if err == nil {
		for _, line := range strings.Split(strings.TrimSpace(string(movesData)), "\n") {
			if line == "" {
				continue
			}
			var row layerRow
			if err := json.Unmarshal([]byte(line), &row); err != nil {
				continue
			}
			l.States[row.Hash] = row.State
		}
	}

	metaData, err := os.ReadFile(filepath.Join(dir, "meta.json"))
	if err == nil {
		json.Unmarshal(metaData, &l.Meta)
	}
	return nil
}

// Clear removes the entire cache directory.
func (c *CacheDir) Clear() error { return os.RemoveAll(c.Root) }

// Exists reports whether the cache directory has been initialized.
func (c *CacheDir) Exists() bool {
	_, err := os.Stat(c.Root)
	return err == nil
}

// Size returns the total size in bytes of the cache directory tree.
func (c *CacheDir) Size() (int64, error) {
	var total int64
	err := filepath.Walk(c.Root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if !info.IsDir() {
			total += info.Size()
		}
		return nil
	})
	return total, err
}
