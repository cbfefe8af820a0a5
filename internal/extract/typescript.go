package extract

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/anthropics/semfora/internal/lang"
)

var tsSyntax = Syntax{
	Branch: map[string]bool{
		"if_statement": true, "for_statement": true, "for_in_statement": true,
		"while_statement": true, "do_statement": true, "try_statement": true,
		"switch_case": true,
	},
	Continuation: map[string]bool{"else_clause": true, "catch_clause": true},
	Nesting: map[string]bool{
		"if_statement": true, "for_statement": true, "for_in_statement": true,
		"while_statement": true, "do_statement": true, "try_statement": true,
		"arrow_function": true, "function_expression": true,
	},
	BoolOperator: map[string]bool{"&&": true, "||": true, "??": true},
	Classify: func(t string) ControlFlowKind {
		switch t {
		case "if_statement":
			return CFIf
		case "for_statement", "for_in_statement":
			return CFFor
		case "while_statement", "do_statement":
			return CFWhile
		case "try_statement":
			return CFTry
		case "switch_case":
			return CFMatch
		}
		return ""
	},
	ReturnEarly: map[string]bool{"return_statement": true},
}

func extractTypeScript(source []byte, root *sitter.Node, filePath string, l lang.Lang) *SemanticSummary {
	summary := &SemanticSummary{FilePath: filePath, Language: l}
	if root == nil {
		return summary
	}

	for _, n := range descendantsOfType(root, "import_statement") {
		start, _ := lineRange(n)
		if src := childOfType(n, "string"); src != nil {
			summary.Imports = append(summary.Imports, Import{
				Path: strings.Trim(text(src, source), `"'`), Line: start,
			})
		}
	}

	for i := 0; i < int(root.ChildCount()); i++ {
		summary.Symbols = append(summary.Symbols, tsTopLevelSymbols(root.Child(i), source)...)
	}

	for i := range summary.Symbols {
		Finalize(&summary.Symbols[i], filePath)
	}
	return summary
}

func tsTopLevelSymbols(node *sitter.Node, source []byte) []Symbol {
	switch node.Type() {
	case "function_declaration", "generator_function_declaration":
		if sym := tsFunctionSymbol(node, source); sym != nil {
			return []Symbol{*sym}
		}
	case "class_declaration":
		return tsClassSymbols(node, source)
	case "interface_declaration":
		if sym := tsInterfaceSymbol(node, source); sym != nil {
			return []Symbol{*sym}
		}
	case "type_alias_declaration":
		if sym := tsTypeAliasSymbol(node, source); sym != nil {
			return []Symbol{*sym}
		}
	case "enum_declaration":
		if sym := tsEnumSymbol(node, source); sym != nil {
			return []Symbol{*sym}
		}
	case "lexical_declaration", "variable_declaration":
		return tsVariableSymbols(node, source)
	case "export_statement":
		if body := node.NamedChild(0); body != nil {
			syms := tsTopLevelSymbols(body, source)
			for i := range syms {
				syms[i].IsExported = true
			}
			return syms
		}
	}
	return nil
}

func tsIsExported(node *sitter.Node) bool {
	return node.Parent() != nil && node.Parent().Type() == "export_statement"
}

func tsFunctionSymbol(node *sitter.Node, source []byte) *Symbol {
	nameNode := fieldChild(node, "name")
	if nameNode == nil {
		return nil
	}
	name := text(nameNode, source)
	params := fieldChild(node, "parameters")
	body := fieldChild(node, "body")
	start, end := lineRange(node)

	isAsync := false
	for i := 0; i < int(node.ChildCount()); i++ {
		if node.Child(i).Type() == "async" {
			isAsync = true
		}
	}

	sym := &Symbol{
		Name: name, Kind: KindFunction, StartLine: start, EndLine: end,
		IsExported: tsIsExported(node), Arity: tsParamCount(params), IsAsync: isAsync,
	}
	if ret := fieldChild(node, "return_type"); ret != nil {
		sym.ReturnType = text(ret, source)
	}
	cog, cyc, nest, flow := AnalyzeBody(body, tsSyntax)
	sym.CognitiveComplexity, sym.CyclomaticComplexity, sym.MaxNesting, sym.ControlFlow = cog, cyc, nest, flow
	sym.Calls = tsCalls(body, source)
	sym.StateChanges = tsStateChanges(body, source)
	sym.FrameworkEntryPoint = tsFrameworkEntryPoint(name, params, source)
	return sym
}

func tsParamCount(params *sitter.Node) int {
	if params == nil {
		return 0
	}
	n := 0
	for i := 0; i < int(params.ChildCount()); i++ {
		switch params.Child(i).Type() {
		case "identifier", "required_parameter", "optional_parameter", "rest_parameter":
			n++
		}
	}
	return n
}

func tsFrameworkEntryPoint(name string, params *sitter.Node, source []byte) FrameworkEntryPoint {
	if strings.HasPrefix(name, "test") || strings.HasPrefix(name, "it") {
		return EntryTestFunction
	}
	if params != nil && params.ChildCount() >= 2 {
		p := text(params, source)
		if strings.Contains(p, "req") && strings.Contains(p, "res") {
			return EntryHttpHandler
		}
	}
	return EntryNone
}

func tsClassSymbols(node *sitter.Node, source []byte) []Symbol {
	nameNode := fieldChild(node, "name")
	if nameNode == nil {
		return nil
	}
	name := text(nameNode, source)
	start, end := lineRange(node)

	var bases []string
	if heritage := fieldChild(node, "heritage"); heritage != nil {
		for _, id := range childrenOfType(heritage, "identifier") {
			bases = append(bases, text(id, source))
		}
	}
	for _, clause := range descendantsOfType(node, "class_heritage") {
		for _, id := range childrenOfType(clause, "identifier") {
			bases = append(bases, text(id, source))
		}
	}

	symbols := []Symbol{{
		Name: name, Kind: KindClass, StartLine: start, EndLine: end,
		IsExported: tsIsExported(node), BaseClasses: bases, CyclomaticComplexity: 1,
	}}

	body := fieldChild(node, "body")
	if body == nil {
		return symbols
	}
	for _, m := range childrenOfType(body, "method_definition") {
		if sym := tsMethodSymbol(m, source); sym != nil {
			symbols = append(symbols, *sym)
		}
	}
	return symbols
}

func tsMethodSymbol(node *sitter.Node, source []byte) *Symbol {
	nameNode := fieldChild(node, "name")
	if nameNode == nil {
		return nil
	}
	name := text(nameNode, source)
	params := fieldChild(node, "parameters")
	body := fieldChild(node, "body")
	start, end := lineRange(node)

	isAsync := false
	for i := 0; i < int(node.ChildCount()); i++ {
		if node.Child(i).Type() == "async" {
			isAsync = true
		}
	}

	sym := &Symbol{
		Name: name, Kind: KindMethod, StartLine: start, EndLine: end,
		IsExported: !strings.HasPrefix(name, "#") && !strings.HasPrefix(name, "_"),
		Arity: tsParamCount(params), IsAsync: isAsync,
	}
	cog, cyc, nest, flow := AnalyzeBody(body, tsSyntax)
	sym.CognitiveComplexity, sym.CyclomaticComplexity, sym.MaxNesting, sym.ControlFlow = cog, cyc, nest, flow
	sym.Calls = tsCalls(body, source)
	sym.StateChanges = tsStateChanges(body, source)
	if name == "render" {
		sym.FrameworkEntryPoint = EntryFrameworkController
	}
	return sym
}

func tsInterfaceSymbol(node *sitter.Node, source []byte) *Symbol {
	nameNode := fieldChild(node, "name")
	if nameNode == nil {
		return nil
	}
	start, end := lineRange(node)
	var bases []string
	for _, clause := range descendantsOfType(node, "extends_type_clause") {
		for _, id := range childrenOfType(clause, "type_identifier") {
			bases = append(bases, text(id, source))
		}
	}
	return &Symbol{
		Name: text(nameNode, source), Kind: KindInterface, StartLine: start, EndLine: end,
		IsExported: tsIsExported(node), BaseClasses: bases, CyclomaticComplexity: 1,
	}
}

func tsTypeAliasSymbol(node *sitter.Node, source []byte) *Symbol {
	nameNode := fieldChild(node, "name")
	if nameNode == nil {
		return nil
	}
	start, end := lineRange(node)
	return &Symbol{
		Name: text(nameNode, source), Kind: KindType, StartLine: start, EndLine: end,
		IsExported: tsIsExported(node), CyclomaticComplexity: 1,
	}
}

func tsEnumSymbol(node *sitter.Node, source []byte) *Symbol {
	nameNode := fieldChild(node, "name")
	if nameNode == nil {
		return nil
	}
	start, end := lineRange(node)
	return &Symbol{
		Name: text(nameNode, source), Kind: KindEnum, StartLine: start, EndLine: end,
		IsExported: tsIsExported(node), CyclomaticComplexity: 1,
	}
}

func tsVariableSymbols(node *sitter.Node, source []byte) []Symbol {
	var symbols []Symbol
	for _, decl := range childrenOfType(node, "variable_declarator") {
		nameNode := fieldChild(decl, "name")
		if nameNode == nil || nameNode.Type() != "identifier" {
			continue
		}
		start, _ := lineRange(decl)
		symbols = append(symbols, Symbol{
			Name: text(nameNode, source), Kind: KindVariable, StartLine: start, EndLine: start,
			IsExported: tsIsExported(node), CyclomaticComplexity: 1,
		})
	}
	return symbols
}

func tsCalls(body *sitter.Node, source []byte) []CallSite {
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

func tsStateChanges(body *sitter.Node, source []byte) []StateChange {
	var changes []StateChange
	for _, n := range descendantsOfType(body, "assignment_expression") {
		left := fieldChild(n, "left")
		if left == nil || left.Type() != "member_expression" {
			continue
		}
		start, _ := lineRange(n)
		changes = append(changes, StateChange{Kind: "assign", Target: text(left, source), Line: start})
	}
	return changes
}
