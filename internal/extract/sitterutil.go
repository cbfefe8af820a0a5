package extract

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

func text(n *sitter.Node, source []byte) string {
	if n == nil {
		return ""
	}
	return n.Content(source)
}

func fieldChild(n *sitter.Node, field string) *sitter.Node {
	if n == nil {
		return nil
	}
	return n.ChildByFieldName(field)
}

func childOfType(n *sitter.Node, t string) *sitter.Node {
	if n == nil {
		return nil
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		if c := n.Child(i); c.Type() == t {
			return c
		}
	}
	return nil
}

func childrenOfType(n *sitter.Node, t string) []*sitter.Node {
	if n == nil {
		return nil
	}
	var out []*sitter.Node
	for i := 0; i < int(n.ChildCount()); i++ {
		if c := n.Child(i); c.Type() == t {
			out = append(out, c)
		}
	}
	return out
}

// descendantsOfType collects every node of type t anywhere under n,
// including n itself.
func descendantsOfType(n *sitter.Node, t string) []*sitter.Node {
	var out []*sitter.Node
	if n == nil {
		return out
	}
	var walk func(*sitter.Node)
	walk = func(node *sitter.Node) {
		if node.Type() == t {
			out = append(out, node)
		}
		for i := 0; i < int(node.ChildCount()); i++ {
			walk(node.Child(i))
		}
	}
	walk(n)
	return out
}

func lineRange(n *sitter.Node) (start, end uint32) {
	if n == nil {
		return 0, 0
	}
	return n.StartPoint().Row + 1, n.EndPoint().Row + 1
}

// callChainBase returns the leaf name and the dotted-chain base of a call
// expression's callee, e.g. for "p.client.Do(req)" -> ("Do", "client").
func callChainBase(callee *sitter.Node, source []byte) (name, base string) {
	if callee == nil {
		return "", ""
	}
	switch callee.Type() {
	case "selector_expression", "member_expression", "attribute", "field_access",
		"field_expression", "scoped_identifier":
		field := fieldChild(callee, "field")
		if field == nil {
			field = fieldChild(callee, "property")
		}
		if field == nil {
			field = fieldChild(callee, "attribute")
		}
		if field == nil && callee.ChildCount() > 0 {
			field = callee.Child(int(callee.ChildCount()) - 1)
		}
		operand := fieldChild(callee, "operand")
		if operand == nil {
			operand = fieldChild(callee, "object")
		}
		if operand == nil {
			operand = fieldChild(callee, "value")
		}
		if operand == nil && callee.ChildCount() > 0 {
			operand = callee.Child(0)
		}
		return text(field, source), lastSegment(text(operand, source))
	default:
		return text(callee, source), ""
	}
}

func lastSegment(s string) string {
	if idx := strings.LastIndexAny(s, ".:"); idx >= 0 {
		return s[idx+1:]
	}
	return s
}
