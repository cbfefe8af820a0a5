// Package astcache implements the process-wide AST cache described as C3:
// a thread-safe map from file path to the last parsed tree, keyed by a
// content hash so an unchanged file never gets reparsed.
package astcache

import (
	"sync"
	"sync/atomic"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/cespare/xxhash/v2"

	"github.com/anthropics/semfora/internal/lang"
)

type entry struct {
	contentHash   uint64
	lang          lang.Lang
	tree          *sitter.Tree
	source        []byte
	lastSourceLen int
	lastUsedTS    int64
}

// Stats reports the cache's monotonic counters per spec §4.2.
type Stats struct {
	CacheHits         uint64
	IncrementalParses uint64
	FullParses        uint64
}

// Cache is the process-wide, thread-safe AST cache.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]*entry

	cacheHits         atomic.Uint64
	incrementalParses atomic.Uint64
	fullParses        atomic.Uint64

	clock atomic.Int64
}

// New creates an empty AST cache.
func New() *Cache {
	return &Cache{entries: make(map[string]*entry)}
}

// ContentHash computes the 64-bit xxhash of source used as the cache key.
func ContentHash(source []byte) uint64 {
	return xxhash.Sum64(source)
}

// Result is what ParseOrReuse returns.
type Result struct {
	Tree     *sitter.Tree
	WasCached bool
}

// ParseFunc parses source for the given language into a tree-sitter tree.
// Callers supply this so astcache stays independent of internal/parser's
// per-language grammar wiring.
type ParseFunc func(source []byte, l lang.Lang) (*sitter.Tree, error)

// ParseOrReuse implements spec §4.2's parse_or_reuse: if the cached
// entry's content hash matches source and the cached language matches,
// the cached tree is returned; otherwise parseFn reparses and the cache
// entry is replaced. The cache never returns a tree for different source
// than the one hashed in: on a suspected hash collision (same hash,
// different length) it reparses rather than trusting the hash.
func (c *Cache) ParseOrReuse(path string, source []byte, l lang.Lang, parseFn ParseFunc) (Result, error) {
	hash := ContentHash(source)
	now := c.clock.Add(1)

	c.mu.RLock()
	e, ok := c.entries[path]
	c.mu.RUnlock()

	if ok && e.lang == l && e.contentHash == hash && e.lastSourceLen == len(source) {
		c.cacheHits.Add(1)
		c.mu.Lock()
		e.lastUsedTS = now
		c.mu.Unlock()
		return Result{Tree: e.tree, WasCached: true}, nil
	}

	tree, err := parseFn(source, l)
	if err != nil {
		return Result{}, err
	}

	if ok {
		c.incrementalParses.Add(1)
	} else {
		c.fullParses.Add(1)
	}

	newEntry := &entry{
		contentHash:   hash,
		lang:          l,
		tree:          tree,
		source:        source,
		lastSourceLen: len(source),
		lastUsedTS:    now,
	}
	c.mu.Lock()
	if old, existed := c.entries[path]; existed && old.tree != nil {
		old.tree.Close()
	}
	c.entries[path] = newEntry
	c.mu.Unlock()

	return Result{Tree: tree, WasCached: false}, nil
}

// Invalidate removes path's cached entry, closing its tree.
func (c *Cache) Invalidate(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[path]; ok {
		if e.tree != nil {
			e.tree.Close()
		}
		delete(c.entries, path)
	}
}

// Stats returns the cache's monotonic hit/parse counters.
func (c *Cache) Stats() Stats {
	return Stats{
		CacheHits:         c.cacheHits.Load(),
		IncrementalParses: c.incrementalParses.Load(),
		FullParses:        c.fullParses.Load(),
	}
}

// Len reports the number of cached entries, for tests and diagnostics.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
