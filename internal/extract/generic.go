package extract

import (
	sitter "github.com/smacker/go-tree-sitter"

	"github.com/anthropics/semfora/internal/lang"
)

// genericConfig is a reduced, table-driven adaptor for languages whose
// grammars are wired (internal/parser) but whose full per-construct
// extraction (decorators, base classes, framework tagging) is not worth a
// bespoke file: it recovers function/method and type declarations, their
// line ranges, complexity, and calls, using the same AnalyzeBody walker as
// the full language adaptors, but skips framework/decorator inference.
type genericConfig struct {
	FuncNodeTypes  map[string]bool
	ClassNodeTypes map[string]bool
	NameFields     []string
	CallNodeType   string
	CallFuncField  string
	Syntax         Syntax
}

var genericConfigs = map[lang.Lang]genericConfig{
	lang.Java: {
		FuncNodeTypes:  map[string]bool{"method_declaration": true, "constructor_declaration": true},
		ClassNodeTypes: map[string]bool{"class_declaration": true, "interface_declaration": true, "enum_declaration": true},
		NameFields:     []string{"name"},
		CallNodeType:   "method_invocation",
		CallFuncField:  "name",
		Syntax:         cLikeSyntax,
	},
	lang.Kotlin: {
		FuncNodeTypes:  map[string]bool{"function_declaration": true},
		ClassNodeTypes: map[string]bool{"class_declaration": true, "object_declaration": true},
		NameFields:     []string{"name"},
		CallNodeType:   "call_expression",
		CallFuncField:  "function",
		Syntax:         cLikeSyntax,
	},
	lang.CSharp: {
		FuncNodeTypes:  map[string]bool{"method_declaration": true, "constructor_declaration": true},
		ClassNodeTypes: map[string]bool{"class_declaration": true, "interface_declaration": true, "struct_declaration": true},
		NameFields:     []string{"name"},
		CallNodeType:   "invocation_expression",
		CallFuncField:  "function",
		Syntax:         cLikeSyntax,
	},
	lang.C: {
		FuncNodeTypes:  map[string]bool{"function_definition": true},
		ClassNodeTypes: map[string]bool{"struct_specifier": true, "enum_specifier": true},
		NameFields:     []string{"declarator", "name"},
		CallNodeType:   "call_expression",
		CallFuncField:  "function",
		Syntax:         cLikeSyntax,
	},
	lang.Cpp: {
		FuncNodeTypes:  map[string]bool{"function_definition": true},
		ClassNodeTypes: map[string]bool{"class_specifier": true, "struct_specifier": true},
		NameFields:     []string{"declarator", "name"},
		CallNodeType:   "call_expression",
		CallFuncField:  "function",
		Syntax:         cLikeSyntax,
	},
	lang.PHP: {
		FuncNodeTypes:  map[string]bool{"function_definition": true, "method_declaration": true},
		ClassNodeTypes: map[string]bool{"class_declaration": true, "interface_declaration": true},
		NameFields:     []string{"name"},
		CallNodeType:   "function_call_expression",
		CallFuncField:  "function",
		Syntax:         cLikeSyntax,
	},
	lang.Ruby: {
		FuncNodeTypes:  map[string]bool{"method": true, "singleton_method": true},
		ClassNodeTypes: map[string]bool{"class": true, "module": true},
		NameFields:     []string{"name"},
		CallNodeType:   "call",
		CallFuncField:  "method",
		Syntax:         rubySyntax,
	},
}

var cLikeSyntax = Syntax{
	Branch: map[string]bool{
		"if_statement": true, "for_statement": true, "while_statement": true,
		"do_statement": true, "switch_statement": true, "try_statement": true,
		"switch_section": true, "catch_clause": true,
	},
	Continuation: map[string]bool{"else_clause": true},
	Nesting: map[string]bool{
		"if_statement": true, "for_statement": true, "while_statement": true,
		"do_statement": true, "switch_statement": true, "try_statement": true,
	},
	BoolOperator: map[string]bool{"&&": true, "||": true},
	Classify: func(t string) ControlFlowKind {
		switch t {
		case "if_statement":
			return CFIf
		case "for_statement":
			return CFFor
		case "while_statement", "do_statement":
			return CFWhile
		case "switch_statement", "switch_section":
			return CFMatch
		case "try_statement", "catch_clause":
			return CFTry
		}
		return ""
	},
	ReturnEarly: map[string]bool{"return_statement": true, "break_statement": true},
}

var rubySyntax = Syntax{
	Branch: map[string]bool{
		"if": true, "unless": true, "for": true, "while": true, "until": true,
		"case": true, "when": true, "begin": true, "rescue": true,
	},
	Continuation: map[string]bool{"elsif": true, "else": true},
	Nesting: map[string]bool{
		"if": true, "unless": true, "for": true, "while": true, "until": true,
		"case": true, "begin": true,
	},
	BoolOperator: map[string]bool{"&&": true, "||": true, "and": true, "or": true},
	Classify: func(t string) ControlFlowKind {
		switch t {
		case "if", "unless":
			return CFIf
		case "for":
			return CFFor
		case "while", "until":
			return CFWhile
		case "case", "when":
			return CFMatch
		case "begin", "rescue":
			return CFTry
		}
		return ""
	},
	ReturnEarly: map[string]bool{"return": true, "next": true, "break": true},
}

func extractGeneric(source []byte, root *sitter.Node, filePath string, l lang.Lang) *SemanticSummary {
	summary := &SemanticSummary{FilePath: filePath, Language: l}
	cfg, ok := genericConfigs[l]
	if !ok || root == nil {
		return summary
	}

	var walk func(n *sitter.Node, bases []string)
	walk = func(n *sitter.Node, bases []string) {
		if n == nil {
			return
		}
		switch {
		case cfg.ClassNodeTypes[n.Type()]:
			name := genericName(n, cfg.NameFields, source)
			if name != "" {
				start, end := lineRange(n)
				summary.Symbols = append(summary.Symbols, Symbol{
					Name: name, Kind: KindClass, StartLine: start, EndLine: end,
					IsExported: true, CyclomaticComplexity: 1,
				})
				bases = append(bases, name)
			}
		case cfg.FuncNodeTypes[n.Type()]:
			name := genericName(n, cfg.NameFields, source)
			if name != "" {
				summary.Symbols = append(summary.Symbols, genericFuncSymbol(n, name, bases, cfg, source))
			}
		}
		for i := 0; i < int(n.ChildCount()); i++ {
			walk(n.Child(i), bases)
		}
	}
	walk(root, nil)

	for i := range summary.Symbols {
		Finalize(&summary.Symbols[i], filePath)
	}
	return summary
}

func genericName(n *sitter.Node, fields []string, source []byte) string {
	for _, f := range fields {
		if c := fieldChild(n, f); c != nil {
			if c.Type() == "identifier" || c.Type() == "type_identifier" ||
				c.Type() == "simple_identifier" || c.Type() == "constant" {
				return text(c, source)
			}
			if inner := descendantsOfType(c, "identifier"); len(inner) > 0 {
				return text(inner[len(inner)-1], source)
			}
		}
	}
	return ""
}

func genericFuncSymbol(n *sitter.Node, name string, bases []string, cfg genericConfig, source []byte) Symbol {
	body := fieldChild(n, "body")
	if body == nil {
		body = n
	}
	start, end := lineRange(n)
	kind := KindFunction
	if len(bases) > 0 {
		kind = KindMethod
	}
	sym := Symbol{
		Name: name, Kind: kind, StartLine: start, EndLine: end,
		IsExported: true, BaseClasses: bases,
	}
	cog, cyc, nest, flow := AnalyzeBody(body, cfg.Syntax)
	sym.CognitiveComplexity, sym.CyclomaticComplexity, sym.MaxNesting, sym.ControlFlow = cog, cyc, nest, flow
	for _, call := range descendantsOfType(body, cfg.CallNodeType) {
		fn := fieldChild(call, cfg.CallFuncField)
		callName, base := callChainBase(fn, source)
		if callName == "" {
			continue
		}
		lineStart, _ := lineRange(call)
		sym.Calls = append(sym.Calls, CallSite{Name: callName, CalleeChainBase: base, Line: lineStart})
	}
	return sym
}
