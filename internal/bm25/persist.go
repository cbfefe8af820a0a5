package bm25

import (
	"database/sql"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite"
)

// jsonDoc is the single-blob JSON persistence shape: the document table
// plus the raw per-document term list needed to rebuild the inverted
// index and doc lengths exactly.
type jsonDoc struct {
	SchemaVersion int        `json:"schema_version"`
	Documents     []Document `json:"documents"`
	Terms         [][]string `json:"terms"`
}

// SaveJSON serializes the index to a single JSON blob.
func SaveJSON(idx *Index) ([]byte, error) {
	blob := jsonDoc{
		SchemaVersion: idx.SchemaVersion,
		Documents:     idx.Documents,
		Terms:         idx.termsPerDoc(),
	}
	return json.Marshal(blob)
}

// termsPerDoc reconstructs the flattened term multiset for every
// document from the inverted index, for round-trip persistence.
func (idx *Index) termsPerDoc() [][]string {
	out := make([][]string, len(idx.Documents))
	for term, postings := range idx.Inverted {
		for _, p := range postings {
			for i := 0; i < p.tf; i++ {
				out[p.docID] = append(out[p.docID], term)
			}
		}
	}
	return out
}

// LoadJSON rebuilds an Index from a blob written by SaveJSON.
func LoadJSON(data []byte) (*Index, error) {
	var blob jsonDoc
	if err := json.Unmarshal(data, &blob); err != nil {
		return nil, fmt.Errorf("bm25: decode json index: %w", err)
	}
	idx := New()
	idx.SchemaVersion = blob.SchemaVersion
	for i, doc := range blob.Documents {
		var terms []string
		if i < len(blob.Terms) {
			terms = blob.Terms[i]
		}
		idx.AddDocument(doc, terms)
	}
	return idx, nil
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS bm25_documents (
	doc_id INTEGER PRIMARY KEY,
	hash TEXT NOT NULL,
	symbol TEXT NOT NULL,
	file TEXT NOT NULL,
	line_start INTEGER NOT NULL,
	line_end INTEGER NOT NULL,
	kind TEXT NOT NULL,
	module TEXT NOT NULL,
	risk TEXT NOT NULL,
	doc_length INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS bm25_terms (
	term TEXT NOT NULL,
	doc_id INTEGER NOT NULL,
	tf INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_bm25_terms_term ON bm25_terms(term);
CREATE UNIQUE INDEX IF NOT EXISTS idx_bm25_terms_term_doc ON bm25_terms(term, doc_id);
CREATE TABLE IF NOT EXISTS bm25_meta (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

// SaveSQLite persists the index into the three-table sqlite schema
// described in spec §4.5, opening (or creating) the database at path.
func SaveSQLite(idx *Index, path string) error {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("bm25: open sqlite: %w", err)
	}
	defer db.Close()

	if _, err := db.Exec(sqliteSchema); err != nil {
		return fmt.Errorf("bm25: init schema: %w", err)
	}
	if _, err := db.Exec("DELETE FROM bm25_documents; DELETE FROM bm25_terms; DELETE FROM bm25_meta;"); err != nil {
		return fmt.Errorf("bm25: clear tables: %w", err)
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("bm25: begin tx: %w", err)
	}
	defer tx.Rollback()

	docStmt, err := tx.Prepare(`INSERT INTO bm25_documents
		(doc_id, hash, symbol, file, line_start, line_end, kind, module, risk, doc_length)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("bm25: prepare doc insert: %w", err)
	}
	defer docStmt.Close()

	for docID, doc := range idx.Documents {
		if _, err := docStmt.Exec(docID, doc.Hash, doc.Symbol, doc.File, doc.Lines[0], doc.Lines[1],
			doc.Kind, doc.Module, doc.Risk, doc.DocLength); err != nil {
			return fmt.Errorf("bm25: insert document %s: %w", doc.Hash, err)
		}
	}

	termStmt, err := tx.Prepare(`INSERT INTO bm25_terms (term, doc_id, tf) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("bm25: prepare term insert: %w", err)
	}
	defer termStmt.Close()

	for term, postings := range idx.Inverted {
		for _, p := range postings {
			if _, err := termStmt.Exec(term, p.docID, p.tf); err != nil {
				return fmt.Errorf("bm25: insert term %q: %w", term, err)
			}
		}
	}

	if _, err := tx.Exec(`INSERT INTO bm25_meta (key, value) VALUES ('schema_version', ?)`,
		fmt.Sprintf("%d", idx.SchemaVersion)); err != nil {
		return fmt.Errorf("bm25: insert meta: %w", err)
	}

	return tx.Commit()
}

// LoadSQLite rebuilds an Index from a database written by SaveSQLite.
func LoadSQLite(path string) (*Index, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("bm25: open sqlite: %w", err)
	}
	defer db.Close()

	idx := New()

	var schemaVersion string
	if err := db.QueryRow(`SELECT value FROM bm25_meta WHERE key = 'schema_version'`).Scan(&schemaVersion); err == nil {
		fmt.Sscanf(schemaVersion, "%d", &idx.SchemaVersion)
	}

	rows, err := db.Query(`SELECT doc_id, hash, symbol, file, line_start, line_end, kind, module, risk, doc_length
		FROM bm25_documents ORDER BY doc_id`)
	if err != nil {
		return nil, fmt.Errorf("bm25: query documents: %w", err)
	}
	defer rows.Close()

	docTerms := make(map[int][]string)
	docOrder := make([]int, 0)
	docByID := make(map[int]Document)
	for rows.Next() {
		var docID int
		var doc Document
		if err := rows.Scan(&docID, &doc.Hash, &doc.Symbol, &doc.File, &doc.Lines[0], &doc.Lines[1],
			&doc.Kind, &doc.Module, &doc.Risk, &doc.DocLength); err != nil {
			return nil, fmt.Errorf("bm25: scan document: %w", err)
		}
		docByID[docID] = doc
		docOrder = append(docOrder, docID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	termRows, err := db.Query(`SELECT term, doc_id, tf FROM bm25_terms`)
	if err != nil {
		return nil, fmt.Errorf("bm25: query terms: %w", err)
	}
	defer termRows.Close()
	for termRows.Next() {
		var term string
		var docID, tf int
		if err := termRows.Scan(&term, &docID, &tf); err != nil {
			return nil, fmt.Errorf("bm25: scan term: %w", err)
		}
		for i := 0; i < tf; i++ {
			docTerms[docID] = append(docTerms[docID], term)
		}
	}
	if err := termRows.Err(); err != nil {
		return nil, err
	}

	for _, docID := range docOrder {
		idx.AddDocument(docByID[docID], docTerms[docID])
	}
	return idx, nil
}
