package extract

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/anthropics/semfora/internal/lang"
)

var pySyntax = Syntax{
	Branch: map[string]bool{
		"if_statement": true, "for_statement": true, "while_statement": true,
		"try_statement": true, "match_statement": true, "case_clause": true,
	},
	Continuation: map[string]bool{"elif_clause": true, "else_clause": true, "except_clause": true},
	Nesting: map[string]bool{
		"if_statement": true, "for_statement": true, "while_statement": true,
		"try_statement": true, "match_statement": true, "function_definition": true,
	},
	BoolOperator: map[string]bool{"and": true, "or": true},
	Classify: func(t string) ControlFlowKind {
		switch t {
		case "if_statement":
			return CFIf
		case "for_statement":
			return CFFor
		case "while_statement":
			return CFWhile
		case "try_statement":
			return CFTry
		case "match_statement", "case_clause":
			return CFMatch
		}
		return ""
	},
	ReturnEarly: map[string]bool{"return_statement": true},
}

func extractPython(source []byte, root *sitter.Node, filePath string) *SemanticSummary {
	summary := &SemanticSummary{FilePath: filePath, Language: lang.Python}
	if root == nil {
		return summary
	}

	for _, n := range descendantsOfType(root, "import_statement") {
		summary.Imports = append(summary.Imports, pyImportsFromStatement(n, source)...)
	}
	for _, n := range descendantsOfType(root, "import_from_statement") {
		summary.Imports = append(summary.Imports, pyImportsFromStatement(n, source)...)
	}

	for i := 0; i < int(root.ChildCount()); i++ {
		child := root.Child(i)
		switch child.Type() {
		case "function_definition":
			if sym := pyFunctionSymbol(child, source, nil); sym != nil {
				summary.Symbols = append(summary.Symbols, *sym)
			}
		case "class_definition":
			summary.Symbols = append(summary.Symbols, pyClassSymbols(child, source)...)
		case "decorated_definition":
			summary.Symbols = append(summary.Symbols, pyDecoratedTopLevel(child, source)...)
		}
	}

	for i := range summary.Symbols {
		Finalize(&summary.Symbols[i], filePath)
	}
	return summary
}

func pyVisibility(name string) bool {
	return !strings.HasPrefix(name, "_")
}

func pyDecorators(decorated *sitter.Node, source []byte) []string {
	var out []string
	for _, d := range childrenOfType(decorated, "decorator") {
		out = append(out, strings.TrimSpace(text(d, source)))
	}
	return out
}

func pyDecoratedTopLevel(decorated *sitter.Node, source []byte) []Symbol {
	decorators := pyDecorators(decorated, source)
	start, end := lineRange(decorated)
	if fn := childOfType(decorated, "function_definition"); fn != nil {
		sym := pyFunctionSymbol(fn, source, decorators)
		if sym != nil {
			sym.StartLine, sym.EndLine = start, end
			return []Symbol{*sym}
		}
	}
	if cls := childOfType(decorated, "class_definition"); cls != nil {
		syms := pyClassSymbols(cls, source)
		if len(syms) > 0 {
			syms[0].Decorators = decorators
			syms[0].StartLine = start
		}
		return syms
	}
	return nil
}

func pyFunctionSymbol(node *sitter.Node, source []byte, decorators []string) *Symbol {
	nameNode := fieldChild(node, "name")
	if nameNode == nil {
		return nil
	}
	name := text(nameNode, source)
	params := fieldChild(node, "parameters")
	body := fieldChild(node, "body")
	start, end := lineRange(node)

	isAsync := false
	if node.ChildCount() > 0 && node.Child(0).Type() == "async" {
		isAsync = true
	}

	sym := &Symbol{
		Name: name, Kind: KindFunction, StartLine: start, EndLine: end,
		IsExported: pyVisibility(name), Arity: pyParamCount(params), IsAsync: isAsync,
		Decorators: decorators,
	}
	if ret := fieldChild(node, "return_type"); ret != nil {
		sym.ReturnType = text(ret, source)
	}
	cog, cyc, nest, flow := AnalyzeBody(body, pySyntax)
	sym.CognitiveComplexity, sym.CyclomaticComplexity, sym.MaxNesting, sym.ControlFlow = cog, cyc, nest, flow
	sym.Calls = pyCalls(body, source)
	sym.StateChanges = pyStateChanges(body, source)
	sym.FrameworkEntryPoint = pyFrameworkEntryPoint(name, decorators)
	return sym
}

func pyParamCount(params *sitter.Node) int {
	if params == nil {
		return 0
	}
	n := 0
	for i := 0; i < int(params.ChildCount()); i++ {
		switch params.Child(i).Type() {
		case "identifier", "typed_parameter", "default_parameter", "typed_default_parameter",
			"list_splat_pattern", "dictionary_splat_pattern":
			n++
		}
	}
	return n
}

func pyClassSymbols(node *sitter.Node, source []byte) []Symbol {
	nameNode := fieldChild(node, "name")
	if nameNode == nil {
		return nil
	}
	name := text(nameNode, source)
	start, end := lineRange(node)

	var bases []string
	if sup := fieldChild(node, "superclasses"); sup != nil {
		for i := 0; i < int(sup.ChildCount()); i++ {
			c := sup.Child(i)
			if c.Type() == "identifier" || c.Type() == "attribute" {
				bases = append(bases, text(c, source))
			}
		}
	}

	symbols := []Symbol{{
		Name: name, Kind: KindClass, StartLine: start, EndLine: end,
		IsExported: pyVisibility(name), BaseClasses: bases, CyclomaticComplexity: 1,
	}}

	body := fieldChild(node, "body")
	if body == nil {
		return symbols
	}
	for i := 0; i < int(body.ChildCount()); i++ {
		child := body.Child(i)
		switch child.Type() {
		case "function_definition":
			if sym := pyMethodSymbol(child, source, nil); sym != nil {
				symbols = append(symbols, *sym)
			}
		case "decorated_definition":
			if fn := childOfType(child, "function_definition"); fn != nil {
				decorators := pyDecorators(child, source)
				if sym := pyMethodSymbol(fn, source, decorators); sym != nil {
					start, end := lineRange(child)
					sym.StartLine, sym.EndLine = start, end
					symbols = append(symbols, *sym)
				}
			}
		}
	}
	return symbols
}

func pyMethodSymbol(node *sitter.Node, source []byte, decorators []string) *Symbol {
	sym := pyFunctionSymbol(node, source, decorators)
	if sym == nil {
		return nil
	}
	sym.Kind = KindMethod
	for _, d := range decorators {
		if strings.Contains(d, "pytest.fixture") || strings.Contains(d, "fixture") {
			sym.FrameworkEntryPoint = EntryFixture
		}
	}
	return sym
}

func pyFrameworkEntryPoint(name string, decorators []string) FrameworkEntryPoint {
	if name == "main" {
		return EntryMain
	}
	if strings.HasPrefix(name, "test_") {
		return EntryTestFunction
	}
	for _, d := range decorators {
		switch {
		case strings.Contains(d, "fixture"):
			return EntryFixture
		case strings.Contains(d, "route") || strings.Contains(d, "app.get") ||
			strings.Contains(d, "app.post") || strings.Contains(d, "api_view"):
			return EntryHttpHandler
		}
	}
	return EntryNone
}

func pyCalls(body *sitter.Node, source []byte) []CallSite {
	var calls []CallSite
	for _, n := range descendantsOfType(body, "call") {
		fn := fieldChild(n, "function")
		name, base := callChainBase(fn, source)
		if name == "" {
			continue
		}
		start, _ := lineRange(n)
		calls = append(calls, CallSite{Name: name, CalleeChainBase: base, Line: start})
	}
	return calls
}

func pyStateChanges(body *sitter.Node, source []byte) []StateChange {
	var changes []StateChange
	for _, n := range descendantsOfType(body, "assignment") {
		left := fieldChild(n, "left")
		if left == nil || left.Type() != "attribute" {
			continue
		}
		start, _ := lineRange(n)
		changes = append(changes, StateChange{Kind: "assign", Target: text(left, source), Line: start})
	}
	return changes
}

func pyImportsFromStatement(n *sitter.Node, source []byte) []Import {
	start, _ := lineRange(n)
	var out []Import
	if n.Type() == "import_from_statement" {
		module := ""
		if mod := fieldChild(n, "module_name"); mod != nil {
			module = text(mod, source)
		}
		for _, name := range childrenOfType(n, "dotted_name") {
			out = append(out, Import{Path: module + "." + text(name, source), Line: start})
		}
		for _, alias := range childrenOfType(n, "aliased_import") {
			if nm := fieldChild(alias, "name"); nm != nil {
				if as := fieldChild(alias, "alias"); as != nil {
					out = append(out, Import{Path: module + "." + text(nm, source), Alias: text(as, source), Line: start})
				}
			}
		}
		return out
	}
	for _, name := range childrenOfType(n, "dotted_name") {
		out = append(out, Import{Path: text(name, source), Line: start})
	}
	for _, alias := range childrenOfType(n, "aliased_import") {
		if nm := fieldChild(alias, "name"); nm != nil {
			if as := fieldChild(alias, "alias"); as != nil {
				out = append(out, Import{Path: text(nm, source), Alias: text(as, source), Line: start})
			}
		}
	}
	return out
}
