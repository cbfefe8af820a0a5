// Package bm25 implements the BM25Index described as C6: a tokenizer, an
// inverted index, and classic BM25 scoring (k1=1.2, b=0.75).
package bm25

import (
	"math"
	"regexp"
	"sort"
	"strings"
)

const (
	k1 = 1.2
	b  = 0.75
)

var stopWords = map[string]bool{
	"a": true, "an": true, "the": true, "and": true, "or": true, "of": true,
	"in": true, "on": true, "to": true, "for": true, "with": true, "by": true,
	"is": true, "it": true, "at": true, "as": true, "be": true, "this": true,
	"that": true, "from": true, "fn": true, "let": true, "var": true,
	"const": true, "self": true, "impl": true, "def": true, "func": true,
}

var nonAlnum = regexp.MustCompile(`[^a-zA-Z0-9]+`)
var camelBoundary = regexp.MustCompile(`([a-z0-9])([A-Z])`)

// Tokenize implements spec §4.5's tokenizer: lowercase, split on
// non-alphanumeric, then split camelCase boundaries, emit each ≥2-char
// fragment that is not a stop word, also emit the full word, de-duplicate
// while preserving first-seen order.
func Tokenize(s string) []string {
	var out []string
	seen := make(map[string]bool)
	emit := func(tok string) {
		tok = strings.ToLower(tok)
		if tok == "" || stopWords[tok] || seen[tok] {
			return
		}
		if len(tok) < 2 {
			return
		}
		seen[tok] = true
		out = append(out, tok)
	}

	for _, word := range nonAlnum.Split(s, -1) {
		if word == "" {
			continue
		}
		emit(word)
		split := camelBoundary.ReplaceAllString(word, "$1 $2")
		if split != word {
			for _, frag := range strings.Fields(split) {
				emit(frag)
			}
		}
	}
	return out
}

// Document is one entry in the index, per spec §3's BM25Document.
type Document struct {
	Hash       string `json:"hash"`
	Symbol     string `json:"symbol"`
	File       string `json:"file"`
	Lines      [2]int `json:"lines"`
	Kind       string `json:"kind"`
	Module     string `json:"module"`
	Risk       string `json:"risk"`
	DocLength  int    `json:"doc_length"`
}

type posting struct {
	docID int
	tf    int
}

// Index is the BM25Index entity: an inverted index plus document store.
type Index struct {
	SchemaVersion int                  `json:"schema_version"`
	Inverted      map[string][]posting `json:"-"`
	Documents     []Document           `json:"documents"`
	docIndex      map[string]int       // hash -> index into Documents
	totalDocs     int
	totalLength   int
}

// New creates an empty BM25Index.
func New() *Index {
	return &Index{
		SchemaVersion: 1,
		Inverted:      make(map[string][]posting),
		docIndex:      make(map[string]int),
	}
}

// AddDocument inserts doc with terms, the exact token multiset emitted
// for it at insertion time. doc.DocLength is set to len(terms), matching
// spec §3's invariant.
func (idx *Index) AddDocument(doc Document, terms []string) {
	doc.DocLength = len(terms)
	docID := len(idx.Documents)
	idx.docIndex[doc.Hash] = docID
	idx.Documents = append(idx.Documents, doc)
	idx.totalDocs++
	idx.totalLength += len(terms)

	counts := make(map[string]int)
	for _, t := range terms {
		counts[t]++
	}
	for term, tf := range counts {
		idx.Inverted[term] = append(idx.Inverted[term], posting{docID: docID, tf: tf})
	}
}

func (idx *Index) avgDocLength() float64 {
	if idx.totalDocs == 0 {
		return 0
	}
	return float64(idx.totalLength) / float64(idx.totalDocs)
}

func (idx *Index) idf(term string) float64 {
	df := len(idx.Inverted[term])
	n := float64(idx.totalDocs)
	return math.Log((n-float64(df)+0.5)/(float64(df)+0.5) + 1)
}

// Hit is one scored search result.
type Hit struct {
	Document Document
	Score    float64
}

// Search scores query against the index using classic BM25 and returns
// the top results sorted by descending score, ties broken by doc_id for
// stability.
func (idx *Index) Search(query string, limit int) []Hit {
	terms := Tokenize(query)
	avgdl := idx.avgDocLength()

	scores := make(map[int]float64)
	for _, term := range terms {
		postings, ok := idx.Inverted[term]
		if !ok {
			continue
		}
		idf := idx.idf(term)
		for _, p := range postings {
			dl := float64(idx.Documents[p.docID].DocLength)
			tf := float64(p.tf)
			score := idf * (tf * (k1 + 1)) / (tf + k1*(1-b+b*dl/avgdl))
			scores[p.docID] += score
		}
	}

	docIDs := make([]int, 0, len(scores))
	for id := range scores {
		docIDs = append(docIDs, id)
	}
	sort.Slice(docIDs, func(i, j int) bool {
		if scores[docIDs[i]] != scores[docIDs[j]] {
			return scores[docIDs[i]] > scores[docIDs[j]]
		}
		return docIDs[i] < docIDs[j]
	})

	if limit > 0 && len(docIDs) > limit {
		docIDs = docIDs[:limit]
	}
	hits := make([]Hit, 0, len(docIDs))
	for _, id := range docIDs {
		hits = append(hits, Hit{Document: idx.Documents[id], Score: scores[id]})
	}
	return hits
}

// SuggestRelatedTerms implements spec §4.5's suggest_related_terms:
// terms most frequently co-occurring in documents matched by query,
// excluding the query terms themselves.
func (idx *Index) SuggestRelatedTerms(query string, limit int) []string {
	queryTerms := make(map[string]bool)
	for _, t := range Tokenize(query) {
		queryTerms[t] = true
	}

	hits := idx.Search(query, 0)
	matchedDocs := make(map[int]bool, len(hits))
	for _, h := range hits {
		matchedDocs[idx.docIndex[h.Document.Hash]] = true
	}

	coOccur := make(map[string]int)
	for term, postings := range idx.Inverted {
		if queryTerms[term] {
			continue
		}
		for _, p := range postings {
			if matchedDocs[p.docID] {
				coOccur[term]++
			}
		}
	}

	terms := make([]string, 0, len(coOccur))
	for t := range coOccur {
		terms = append(terms, t)
	}
	sort.Slice(terms, func(i, j int) bool {
		if coOccur[terms[i]] != coOccur[terms[j]] {
			return coOccur[terms[i]] > coOccur[terms[j]]
		}
		return terms[i] < terms[j]
	})
	if limit > 0 && len(terms) > limit {
		terms = terms[:limit]
	}
	return terms
}

// TermsForSymbol builds the term multiset for a symbol per spec §4.5:
// union of tokenize(name) + filename stem tokens + parent dir tokens +
// the lowercased kind + tokens harvested from calls/state/control-flow.
func TermsForSymbol(name, fileStem, parentDir, kind string, callNames, stateNames, controlFlow []string) []string {
	var terms []string
	terms = append(terms, Tokenize(name)...)
	terms = append(terms, Tokenize(fileStem)...)
	terms = append(terms, Tokenize(parentDir)...)
	terms = append(terms, strings.ToLower(kind))
	for _, c := range callNames {
		terms = append(terms, Tokenize(c)...)
	}
	for _, s := range stateNames {
		terms = append(terms, Tokenize(s)...)
	}
	for _, c := range controlFlow {
		terms = append(terms, strings.ToLower(c))
	}
	return terms
}
