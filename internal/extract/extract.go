package extract

import (
	sitter "github.com/smacker/go-tree-sitter"

	"github.com/anthropics/semfora/internal/lang"
)

// Extract implements the C2 extractor contract from spec §4.1:
// extract(file_path, source_text, parse_tree, lang) → SemanticSummary.
// A nil root (parse failure) yields a summary with no symbols rather than
// an error; a language with no adaptor wired yields the same, matching
// the "grammar mismatch never fails the whole batch" rule.
func Extract(filePath string, source []byte, root *sitter.Node, l lang.Lang) *SemanticSummary {
	switch l {
	case lang.Go:
		return extractGo(source, root, filePath)
	case lang.Python:
		return extractPython(source, root, filePath)
	case lang.Rust:
		return extractRust(source, root, filePath)
	case lang.TypeScript, lang.TSX, lang.JavaScript, lang.JSX:
		return extractTypeScript(source, root, filePath, l)
	default:
		if _, ok := genericConfigs[l]; ok {
			return extractGeneric(source, root, filePath, l)
		}
		return &SemanticSummary{FilePath: filePath, Language: l}
	}
}
