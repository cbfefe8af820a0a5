// Package parser wraps tree-sitter to provide a uniform parsing interface
// across the languages semfora's extractor understands. It is the grammar
// half of the C1 language registry: internal/lang maps a path to a Lang
// tag, this package turns a Lang with a wired grammar into a tree-sitter
// parser and exposes AST walking helpers shared by every per-language
// extractor.
package parser

import (
	"context"
	"errors"
	"os"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/anthropics/semfora/internal/lang"
)

// ErrNoGrammar is returned by New for a Lang in the closed set that has no
// tree-sitter grammar binding available. Callers (internal/extract) treat
// this as the "grammar mismatch" failure mode from spec §4.1: skip the
// file, emit an empty-symbol summary, never fail the whole batch.
var ErrNoGrammar = errors.New("no tree-sitter grammar wired for this language")

// Parser wraps a tree-sitter parser bound to one language.
type Parser struct {
	parser *sitter.Parser
	lang   lang.Lang
}

// ParseResult contains the parsed AST and metadata.
type ParseResult struct {
	// Tree is the complete tree-sitter parse tree.
	Tree *sitter.Tree
	// Root is the root node of the AST.
	Root *sitter.Node
	// Source is the original source code that was parsed.
	Source []byte
	// FilePath is the path to the source file (empty for in-memory parsing).
	FilePath string
	// Language is the programming language of the source.
	Language lang.Lang
}

// New creates a parser for the given language. Returns ErrNoGrammar if the
// language has no tree-sitter binding wired.
func New(l lang.Lang) (*Parser, error) {
	if !lang.HasGrammar(l) {
		return nil, ErrNoGrammar
	}

	var (
		p   *sitter.Parser
		err error
	)

	switch l {
	case lang.Go:
		p, err = newGoParser()
	case lang.TypeScript:
		p, err = newTypeScriptParser()
	case lang.TSX:
		p, err = newTSXParser()
	case lang.JavaScript, lang.JSX:
		p, err = newJavaScriptParser()
	case lang.Python:
		p, err = newPythonParser()
	case lang.Rust:
		p, err = newRustParser()
	case lang.Java:
		p, err = newJavaParser()
	case lang.CSharp:
		p, err = newCSharpParser()
	case lang.C:
		p, err = newCParser()
	case lang.Cpp:
		p, err = newCppParser()
	case lang.PHP:
		p, err = newPHPParser()
	case lang.Kotlin:
		p, err = newKotlinParser()
	case lang.Ruby:
		p, err = newRubyParser()
	default:
		return nil, ErrNoGrammar
	}
	if err != nil {
		return nil, err
	}

	return &Parser{parser: p, lang: l}, nil
}

// Parse parses source code and returns the AST.
func (p *Parser) Parse(source []byte) (*ParseResult, error) {
	tree, err := p.parser.ParseCtx(context.Background(), nil, source)
	if err != nil {
		return nil, &ParseError{Message: err.Error()}
	}

	return &ParseResult{
		Tree:     tree,
		Root:     tree.RootNode(),
		Source:   source,
		Language: p.lang,
	}, nil
}

// ParseFile parses a file from disk.
func (p *Parser) ParseFile(path string) (*ParseResult, error) {
	source, err := os.ReadFile(path)
	if err != nil {
		return nil, &FileReadError{Path: path, Err: err}
	}

	result, err := p.Parse(source)
	if err != nil {
		if pe, ok := err.(*ParseError); ok {
			pe.File = path
		}
		return nil, err
	}

	result.FilePath = path
	return result, nil
}

// Language returns the language this parser is configured for.
func (p *Parser) Language() lang.Lang {
	return p.lang
}

// Close releases parser resources. After calling Close, the parser must
// not be used.
func (p *Parser) Close() {
	if p.parser != nil {
		p.parser.Close()
		p.parser = nil
	}
}

// Close releases the parse tree resources.
func (r *ParseResult) Close() {
	if r.Tree != nil {
		r.Tree.Close()
		r.Tree = nil
		r.Root = nil
	}
}

// HasErrors returns true if the parse tree contains syntax errors.
func (r *ParseResult) HasErrors() bool {
	if r.Root == nil {
		return false
	}
	return r.Root.HasError()
}

// WalkNodes traverses the AST depth-first, calling the visitor function
// for each node. If the visitor returns false, traversal stops descending
// into that node's children (siblings still run).
func (r *ParseResult) WalkNodes(visitor func(*sitter.Node) bool) {
	if r.Root == nil {
		return
	}
	walkNode(r.Root, visitor)
}

func walkNode(node *sitter.Node, visitor func(*sitter.Node) bool) {
	if !visitor(node) {
		return
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		walkNode(node.Child(i), visitor)
	}
}

// FindNodes returns all nodes matching the given predicate.
func (r *ParseResult) FindNodes(predicate func(*sitter.Node) bool) []*sitter.Node {
	var nodes []*sitter.Node
	r.WalkNodes(func(node *sitter.Node) bool {
		if predicate(node) {
			nodes = append(nodes, node)
		}
		return true
	})
	return nodes
}

// FindNodesByType returns all nodes of the specified type.
func (r *ParseResult) FindNodesByType(nodeType string) []*sitter.Node {
	return r.FindNodes(func(node *sitter.Node) bool {
		return node.Type() == nodeType
	})
}

// NodeText returns the source text for a node.
func (r *ParseResult) NodeText(node *sitter.Node) string {
	if node == nil || r.Source == nil {
		return ""
	}
	return node.Content(r.Source)
}
