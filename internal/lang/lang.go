// Package lang maps source file paths to the closed set of languages
// semfora understands, and records which of those have a wired tree-sitter
// grammar. It is the language registry described as the engine's C1
// component: the rest of the system never guesses a language from content,
// only from extension.
package lang

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Lang is a tag from the closed set of languages semfora recognizes.
type Lang string

// The closed set of language tags. Every file extension semfora claims to
// support resolves to exactly one of these.
const (
	Rust       Lang = "rust"
	TypeScript Lang = "typescript"
	TSX        Lang = "tsx"
	JavaScript Lang = "javascript"
	JSX        Lang = "jsx"
	Vue        Lang = "vue"
	Python     Lang = "python"
	Go         Lang = "go"
	Java       Lang = "java"
	Kotlin     Lang = "kotlin"
	CSharp     Lang = "csharp"
	C          Lang = "c"
	Cpp        Lang = "cpp"
	Ruby       Lang = "ruby"
	PHP        Lang = "php"
	Swift      Lang = "swift"
	Scala      Lang = "scala"
	Bash       Lang = "bash"
	SQL        Lang = "sql"
	HTML       Lang = "html"
	CSS        Lang = "css"
	SCSS       Lang = "scss"
	JSON       Lang = "json"
	YAML       Lang = "yaml"
	TOML       Lang = "toml"
	XML        Lang = "xml"
	Markdown   Lang = "markdown"
	HCL        Lang = "hcl"
	Dockerfile Lang = "dockerfile"
	Gradle     Lang = "gradle"
)

// UnsupportedExtensionError is returned by FromPath for an unrecognized
// extension.
type UnsupportedExtensionError struct {
	Path string
	Ext  string
}

func (e *UnsupportedExtensionError) Error() string {
	return fmt.Sprintf("unsupported file extension %q for %q", e.Ext, e.Path)
}

// extensionTable maps a lowercased extension (including the leading dot) to
// a Lang. Some languages claim several extensions (e.g. TypeScript claims
// both .ts and .mts).
var extensionTable = map[string]Lang{
	".rs":         Rust,
	".ts":         TypeScript,
	".mts":        TypeScript,
	".cts":        TypeScript,
	".tsx":        TSX,
	".js":         JavaScript,
	".mjs":        JavaScript,
	".cjs":        JavaScript,
	".jsx":        JSX,
	".vue":        Vue,
	".py":         Python,
	".pyi":        Python,
	".go":         Go,
	".java":       Java,
	".kt":         Kotlin,
	".kts":        Kotlin,
	".cs":         CSharp,
	".c":          C,
	".h":          C,
	".cpp":        Cpp,
	".cc":         Cpp,
	".cxx":        Cpp,
	".hpp":        Cpp,
	".hh":         Cpp,
	".hxx":        Cpp,
	".rb":         Ruby,
	".rake":       Ruby,
	".php":        PHP,
	".swift":      Swift,
	".scala":      Scala,
	".sh":         Bash,
	".bash":       Bash,
	".sql":        SQL,
	".html":       HTML,
	".htm":        HTML,
	".css":        CSS,
	".scss":       SCSS,
	".json":       JSON,
	".yaml":       YAML,
	".yml":        YAML,
	".toml":       TOML,
	".xml":        XML,
	".md":         Markdown,
	".markdown":   Markdown,
	".hcl":        HCL,
	".tf":         HCL,
	".dockerfile": Dockerfile,
	".gradle":     Gradle,
}

// specialNames maps exact (case-sensitive) base file names to a Lang, for
// files that carry no extension telling the story (Dockerfile, Gemfile...).
var specialNames = map[string]Lang{
	"Dockerfile": Dockerfile,
	"Gemfile":    Ruby,
	"Rakefile":   Ruby,
}

// FromPath derives the Lang for a file path from its extension (or, failing
// that, its base name). Returns UnsupportedExtensionError for anything not
// in the closed set.
func FromPath(path string) (Lang, error) {
	base := filepath.Base(path)
	if l, ok := specialNames[base]; ok {
		return l, nil
	}

	ext := strings.ToLower(filepath.Ext(path))
	if l, ok := extensionTable[ext]; ok {
		return l, nil
	}
	return "", &UnsupportedExtensionError{Path: path, Ext: ext}
}

// grammarAvailable is the subset of the closed language set that has a
// tree-sitter grammar binding wired into internal/parser. Languages outside
// this set are registered (FromPath resolves them) but parser.New refuses
// them with ErrNoGrammar; the extractor then returns an empty-symbol
// SemanticSummary per the "grammar mismatch never fails the whole batch"
// contract in spec §4.1.
var grammarAvailable = map[Lang]bool{
	Rust:       true,
	TypeScript: true,
	TSX:        true,
	JavaScript: true,
	JSX:        true,
	Python:     true,
	Go:         true,
	Java:       true,
	Kotlin:     true,
	CSharp:     true,
	C:          true,
	Cpp:        true,
	Ruby:       true,
	PHP:        true,
}

// HasGrammar reports whether a wired tree-sitter grammar exists for lang.
func HasGrammar(l Lang) bool {
	return grammarAvailable[l]
}

// SupportedExtensions returns every extension FromPath resolves, sorted by
// insertion order is not guaranteed; callers that need a stable order should
// sort the result themselves.
func SupportedExtensions() []string {
	exts := make([]string, 0, len(extensionTable))
	for ext := range extensionTable {
		exts = append(exts, ext)
	}
	return exts
}
