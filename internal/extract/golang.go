package extract

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/anthropics/semfora/internal/lang"
)

var goSyntax = Syntax{
	Branch: map[string]bool{
		"if_statement": true, "for_statement": true, "expression_switch_statement": true,
		"type_switch_statement": true, "select_statement": true, "expression_case": true,
		"type_case": true, "communication_case": true,
	},
	Continuation: map[string]bool{},
	Nesting: map[string]bool{
		"if_statement": true, "for_statement": true, "expression_switch_statement": true,
		"type_switch_statement": true, "select_statement": true, "func_literal": true,
	},
	BoolOperator: map[string]bool{"&&": true, "||": true},
	Classify: func(t string) ControlFlowKind {
		switch t {
		case "if_statement":
			return CFIf
		case "for_statement":
			return CFFor
		case "expression_switch_statement", "type_switch_statement", "select_statement",
			"expression_case", "type_case", "communication_case":
			return CFMatch
		}
		return ""
	},
	ReturnEarly: map[string]bool{"return_statement": true},
}

func extractGo(source []byte, root *sitter.Node, filePath string) *SemanticSummary {
	summary := &SemanticSummary{FilePath: filePath, Language: lang.Go}
	if root == nil {
		return summary
	}

	pkgName := "main"
	if pkgNode := childOfType(root, "package_clause"); pkgNode != nil {
		if id := childOfType(pkgNode, "package_identifier"); id != nil {
			pkgName = text(id, source)
		}
	}

	for _, spec := range descendantsOfType(root, "import_spec") {
		pathNode := childOfType(spec, "interpreted_string_literal")
		if pathNode == nil {
			continue
		}
		path := strings.Trim(text(pathNode, source), `"`)
		alias := ""
		if n := fieldChild(spec, "name"); n != nil {
			alias = text(n, source)
		}
		startLine, _ := lineRange(spec)
		summary.Imports = append(summary.Imports, Import{Path: path, Alias: alias, Line: startLine})
	}

	for i := 0; i < int(root.ChildCount()); i++ {
		decl := root.Child(i)
		switch decl.Type() {
		case "function_declaration":
			if sym := goFunctionSymbol(decl, source, pkgName); sym != nil {
				summary.Symbols = append(summary.Symbols, *sym)
			}
		case "method_declaration":
			if sym := goMethodSymbol(decl, source); sym != nil {
				summary.Symbols = append(summary.Symbols, *sym)
			}
		case "type_declaration":
			summary.Symbols = append(summary.Symbols, goTypeSymbols(decl, source)...)
		case "const_declaration":
			summary.Symbols = append(summary.Symbols, goValueSymbols(decl, source, KindConst)...)
		case "var_declaration":
			summary.Symbols = append(summary.Symbols, goValueSymbols(decl, source, KindVariable)...)
		}
	}

	for i := range summary.Symbols {
		Finalize(&summary.Symbols[i], filePath)
	}
	return summary
}

func goIsExported(name string) bool {
	if name == "" {
		return false
	}
	r := rune(name[0])
	return r >= 'A' && r <= 'Z'
}

func goFunctionSymbol(node *sitter.Node, source []byte, pkgName string) *Symbol {
	nameNode := fieldChild(node, "name")
	if nameNode == nil {
		return nil
	}
	name := text(nameNode, source)
	params := fieldChild(node, "parameters")
	body := fieldChild(node, "body")
	start, end := lineRange(node)

	sym := &Symbol{
		Name: name, Kind: KindFunction, StartLine: start, EndLine: end,
		IsExported: goIsExported(name), Arity: countGoParams(params),
		ReturnType: goReturnTypeString(fieldChild(node, "result"), source),
	}
	cog, cyc, nest, flow := AnalyzeBody(body, goSyntax)
	sym.CognitiveComplexity, sym.CyclomaticComplexity, sym.MaxNesting, sym.ControlFlow = cog, cyc, nest, flow
	sym.Calls = goCalls(body, source)
	sym.StateChanges = goStateChanges(body, source)
	sym.FrameworkEntryPoint = goFrameworkEntryPoint(name, pkgName, params, source)
	return sym
}

func goMethodSymbol(node *sitter.Node, source []byte) *Symbol {
	nameNode := fieldChild(node, "name")
	if nameNode == nil {
		return nil
	}
	name := text(nameNode, source)
	params := fieldChild(node, "parameters")
	body := fieldChild(node, "body")
	start, end := lineRange(node)

	sym := &Symbol{
		Name: name, Kind: KindMethod, StartLine: start, EndLine: end,
		IsExported: goIsExported(name), Arity: countGoParams(params),
		ReturnType: goReturnTypeString(fieldChild(node, "result"), source),
	}
	if recv := fieldChild(node, "receiver"); recv != nil {
		if decl := childOfType(recv, "parameter_declaration"); decl != nil {
			if t := fieldChild(decl, "type"); t != nil {
				sym.BaseClasses = []string{strings.TrimPrefix(text(t, source), "*")}
			}
		}
	}
	cog, cyc, nest, flow := AnalyzeBody(body, goSyntax)
	sym.CognitiveComplexity, sym.CyclomaticComplexity, sym.MaxNesting, sym.ControlFlow = cog, cyc, nest, flow
	sym.Calls = goCalls(body, source)
	sym.StateChanges = goStateChanges(body, source)
	if name == "ServeHTTP" {
		sym.FrameworkEntryPoint = EntryHttpHandler
	}
	return sym
}

func countGoParams(params *sitter.Node) int {
	if params == nil {
		return 0
	}
	n := 0
	for _, decl := range childrenOfType(params, "parameter_declaration") {
		names := childrenOfType(decl, "identifier")
		if len(names) == 0 {
			n++
		} else {
			n += len(names)
		}
	}
	n += len(childrenOfType(params, "variadic_parameter_declaration"))
	return n
}

func goReturnTypeString(result *sitter.Node, source []byte) string {
	if result == nil {
		return ""
	}
	if result.Type() != "parameter_list" {
		return text(result, source)
	}
	var types []string
	for _, decl := range childrenOfType(result, "parameter_declaration") {
		if t := fieldChild(decl, "type"); t != nil {
			types = append(types, text(t, source))
		}
	}
	return strings.Join(types, ", ")
}

func goCalls(body *sitter.Node, source []byte) []CallSite {
	var calls []CallSite
	for _, n := range descendantsOfType(body, "call_expression") {
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

func goStateChanges(body *sitter.Node, source []byte) []StateChange {
	var changes []StateChange
	for _, n := range descendantsOfType(body, "assignment_statement") {
		left := fieldChild(n, "left")
		start, _ := lineRange(n)
		for i := 0; i < int(left.ChildCount()); i++ {
			target := left.Child(i)
			if target.Type() == "selector_expression" {
				changes = append(changes, StateChange{Kind: "assign", Target: text(target, source), Line: start})
			}
		}
	}
	return changes
}

func goFrameworkEntryPoint(name, pkgName string, params *sitter.Node, source []byte) FrameworkEntryPoint {
	if pkgName == "main" && name == "main" {
		return EntryMain
	}
	if strings.HasPrefix(name, "Test") && params != nil {
		for _, decl := range childrenOfType(params, "parameter_declaration") {
			if t := fieldChild(decl, "type"); t != nil && strings.Contains(text(t, source), "testing.T") {
				return EntryTestFunction
			}
		}
	}
	if params != nil {
		for _, decl := range childrenOfType(params, "parameter_declaration") {
			if t := fieldChild(decl, "type"); t != nil && strings.Contains(text(t, source), "http.ResponseWriter") {
				return EntryHttpHandler
			}
		}
	}
	return EntryNone
}

func goTypeSymbols(decl *sitter.Node, source []byte) []Symbol {
	var symbols []Symbol
	for _, spec := range childrenOfType(decl, "type_spec") {
		nameNode := fieldChild(spec, "name")
		typeNode := fieldChild(spec, "type")
		if nameNode == nil || typeNode == nil {
			continue
		}
		name := text(nameNode, source)
		start, end := lineRange(spec)
		kind := KindType
		var baseClasses []string
		switch typeNode.Type() {
		case "struct_type":
			kind = KindStruct
			if fieldList := childOfType(typeNode, "field_declaration_list"); fieldList != nil {
				for _, fd := range childrenOfType(fieldList, "field_declaration") {
					if len(childrenOfType(fd, "field_identifier")) == 0 {
						if t := fieldChild(fd, "type"); t != nil {
							baseClasses = append(baseClasses, strings.TrimPrefix(text(t, source), "*"))
						}
					}
				}
			}
		case "interface_type":
			kind = KindInterface
		}
		symbols = append(symbols, Symbol{
			Name: name, Kind: kind, StartLine: start, EndLine: end,
			IsExported: goIsExported(name), BaseClasses: baseClasses,
			CyclomaticComplexity: 1,
		})
	}
	return symbols
}

func goValueSymbols(decl *sitter.Node, source []byte, kind SymbolKind) []Symbol {
	var symbols []Symbol
	for _, spec := range childrenOfType(decl, kind.specNodeType()) {
		for _, id := range childrenOfType(spec, "identifier") {
			name := text(id, source)
			start, _ := lineRange(spec)
			symbols = append(symbols, Symbol{
				Name: name, Kind: kind, StartLine: start, EndLine: start,
				IsExported: goIsExported(name), CyclomaticComplexity: 1,
			})
		}
	}
	return symbols
}

func (k SymbolKind) specNodeType() string {
	if k == KindConst {
		return "const_spec"
	}
	return "var_spec"
}
