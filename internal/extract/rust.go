package extract

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/anthropics/semfora/internal/lang"
)

var rustSyntax = Syntax{
	Branch: map[string]bool{
		"if_expression": true, "if_let_expression": true, "for_expression": true,
		"while_expression": true, "while_let_expression": true, "match_expression": true,
		"match_arm": true,
	},
	Continuation: map[string]bool{"else_clause": true},
	Nesting: map[string]bool{
		"if_expression": true, "if_let_expression": true, "for_expression": true,
		"while_expression": true, "while_let_expression": true, "match_expression": true,
		"closure_expression": true,
	},
	BoolOperator: map[string]bool{"&&": true, "||": true},
	Classify: func(t string) ControlFlowKind {
		switch t {
		case "if_expression", "if_let_expression":
			return CFIf
		case "for_expression":
			return CFFor
		case "while_expression", "while_let_expression":
			return CFWhile
		case "match_expression", "match_arm":
			return CFMatch
		}
		return ""
	},
	ReturnEarly: map[string]bool{"return_expression": true, "try_expression": true},
}

func extractRust(source []byte, root *sitter.Node, filePath string) *SemanticSummary {
	summary := &SemanticSummary{FilePath: filePath, Language: lang.Rust}
	if root == nil {
		return summary
	}

	for _, n := range descendantsOfType(root, "use_declaration") {
		start, _ := lineRange(n)
		summary.Imports = append(summary.Imports, Import{Path: strings.TrimSpace(text(n, source)), Line: start})
	}

	for i := 0; i < int(root.ChildCount()); i++ {
		summary.Symbols = append(summary.Symbols, rustTopLevelSymbols(root.Child(i), source)...)
	}

	for i := range summary.Symbols {
		Finalize(&summary.Symbols[i], filePath)
	}
	return summary
}

func rustTopLevelSymbols(node *sitter.Node, source []byte) []Symbol {
	switch node.Type() {
	case "function_item":
		if sym := rustFunctionSymbol(node, source, "", ""); sym != nil {
			return []Symbol{*sym}
		}
	case "struct_item":
		if sym := rustStructSymbol(node, source); sym != nil {
			return []Symbol{*sym}
		}
	case "enum_item":
		if sym := rustEnumSymbol(node, source); sym != nil {
			return []Symbol{*sym}
		}
	case "trait_item":
		if sym := rustTraitSymbol(node, source); sym != nil {
			return []Symbol{*sym}
		}
	case "impl_item":
		return rustImplSymbols(node, source)
	case "const_item", "static_item":
		if sym := rustConstSymbol(node, source); sym != nil {
			return []Symbol{*sym}
		}
	}
	return nil
}

func rustIsPublic(node *sitter.Node) bool {
	for i := 0; i < int(node.ChildCount()); i++ {
		if node.Child(i).Type() == "visibility_modifier" {
			return true
		}
	}
	return false
}

func rustFunctionSymbol(node *sitter.Node, source []byte, receiverType, traitName string) *Symbol {
	nameNode := fieldChild(node, "name")
	if nameNode == nil {
		return nil
	}
	name := text(nameNode, source)
	params := fieldChild(node, "parameters")
	body := fieldChild(node, "body")
	start, end := lineRange(node)

	kind := KindFunction
	var bases []string
	if receiverType != "" {
		kind = KindMethod
		bases = []string{receiverType}
		if traitName != "" {
			bases = append(bases, traitName)
		}
	}

	isAsync := false
	for i := 0; i < int(node.ChildCount()); i++ {
		if node.Child(i).Type() == "async" {
			isAsync = true
		}
	}

	sym := &Symbol{
		Name: name, Kind: kind, StartLine: start, EndLine: end,
		IsExported: rustIsPublic(node), Arity: rustParamCount(params), IsAsync: isAsync,
		BaseClasses: bases,
	}
	if ret := fieldChild(node, "return_type"); ret != nil {
		sym.ReturnType = text(ret, source)
	}
	cog, cyc, nest, flow := AnalyzeBody(body, rustSyntax)
	sym.CognitiveComplexity, sym.CyclomaticComplexity, sym.MaxNesting, sym.ControlFlow = cog, cyc, nest, flow
	sym.Calls = rustCalls(body, source)
	sym.FrameworkEntryPoint = rustFrameworkEntryPoint(node, name, source)
	return sym
}

func rustParamCount(params *sitter.Node) int {
	if params == nil {
		return 0
	}
	n := 0
	for i := 0; i < int(params.ChildCount()); i++ {
		switch params.Child(i).Type() {
		case "parameter", "self_parameter":
			n++
		}
	}
	return n
}

func rustFrameworkEntryPoint(node *sitter.Node, name string, source []byte) FrameworkEntryPoint {
	if name == "main" {
		return EntryMain
	}
	for _, attr := range rustAttributesOf(node, source) {
		switch {
		case strings.Contains(attr, "test"):
			return EntryTestFunction
		case strings.Contains(attr, "get") || strings.Contains(attr, "post") ||
			strings.Contains(attr, "route") || strings.Contains(attr, "handler"):
			return EntryHttpHandler
		}
	}
	return EntryNone
}

// rustAttributesOf collects #[...] attribute_item siblings immediately
// preceding node.
func rustAttributesOf(node *sitter.Node, source []byte) []string {
	var attrs []string
	prev := node.PrevSibling()
	for prev != nil && prev.Type() == "attribute_item" {
		attrs = append([]string{text(prev, source)}, attrs...)
		prev = prev.PrevSibling()
	}
	return attrs
}

func rustStructSymbol(node *sitter.Node, source []byte) *Symbol {
	nameNode := fieldChild(node, "name")
	if nameNode == nil {
		return nil
	}
	start, end := lineRange(node)
	return &Symbol{
		Name: text(nameNode, source), Kind: KindStruct, StartLine: start, EndLine: end,
		IsExported: rustIsPublic(node), CyclomaticComplexity: 1,
	}
}

func rustEnumSymbol(node *sitter.Node, source []byte) *Symbol {
	nameNode := fieldChild(node, "name")
	if nameNode == nil {
		return nil
	}
	start, end := lineRange(node)
	return &Symbol{
		Name: text(nameNode, source), Kind: KindEnum, StartLine: start, EndLine: end,
		IsExported: rustIsPublic(node), CyclomaticComplexity: 1,
	}
}

func rustTraitSymbol(node *sitter.Node, source []byte) *Symbol {
	nameNode := fieldChild(node, "name")
	if nameNode == nil {
		return nil
	}
	start, end := lineRange(node)
	return &Symbol{
		Name: text(nameNode, source), Kind: KindTrait, StartLine: start, EndLine: end,
		IsExported: rustIsPublic(node), CyclomaticComplexity: 1,
	}
}

func rustImplSymbols(node *sitter.Node, source []byte) []Symbol {
	typeNode := fieldChild(node, "type")
	receiverType := ""
	if typeNode != nil {
		receiverType = text(typeNode, source)
	}
	traitName := ""
	if traitNode := fieldChild(node, "trait"); traitNode != nil {
		traitName = text(traitNode, source)
	}

	body := fieldChild(node, "body")
	if body == nil {
		return nil
	}

	start, end := lineRange(node)
	symbols := []Symbol{{
		Name: receiverType + " impl", Kind: KindImpl, StartLine: start, EndLine: end,
		BaseClasses: []string{receiverType}, CyclomaticComplexity: 1,
	}}
	for i := 0; i < int(body.ChildCount()); i++ {
		if child := body.Child(i); child.Type() == "function_item" {
			if sym := rustFunctionSymbol(child, source, receiverType, traitName); sym != nil {
				symbols = append(symbols, *sym)
			}
		}
	}
	return symbols
}

func rustConstSymbol(node *sitter.Node, source []byte) *Symbol {
	nameNode := fieldChild(node, "name")
	if nameNode == nil {
		return nil
	}
	start, _ := lineRange(node)
	kind := KindConst
	if node.Type() == "static_item" {
		kind = KindVariable
	}
	return &Symbol{
		Name: text(nameNode, source), Kind: kind, StartLine: start, EndLine: start,
		IsExported: rustIsPublic(node), CyclomaticComplexity: 1,
	}
}

func rustCalls(body *sitter.Node, source []byte) []CallSite {
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
