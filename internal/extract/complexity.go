package extract

import sitter "github.com/smacker/go-tree-sitter"

// Syntax names the tree-sitter node types a language adaptor's grammar
// uses for the constructs complexity analysis and control-flow recording
// care about. Every per-language file builds one of these and shares the
// walker below, since the counting rules themselves (spec §4.1) are
// language-independent.
type Syntax struct {
	// Branch node types increment cyclomatic complexity by one and
	// cognitive complexity by 1+nesting. Each also maps to a
	// ControlFlowKind via Classify.
	Branch map[string]bool
	// Continuation node types (else, elif, catch) add +1 to cognitive
	// complexity without adding nesting or a new ControlFlowKind.
	Continuation map[string]bool
	// Nesting node types open a new nesting level for both the
	// max_nesting stack and cognitive complexity's nesting bonus. This
	// normally equals Branch plus any non-branch block openers
	// (try/switch bodies) a language wants counted.
	Nesting map[string]bool
	// BoolOperator node types (||, &&, "or", "and"...) each add one to
	// cyclomatic complexity.
	BoolOperator map[string]bool
	// Classify maps a Branch node's type to the ControlFlowKind recorded
	// for it. Node types absent from this map are counted but not
	// recorded as control-flow (rare; keeps the map exhaustive for the
	// common case).
	Classify func(nodeType string) ControlFlowKind
	// ReturnEarly identifies a return/break/continue node that appears
	// before the last statement of its enclosing block; the walker
	// handles the "early" judgement, this just flags candidate types.
	ReturnEarly map[string]bool
}

// AnalyzeBody walks a symbol's body subtree and computes cognitive
// complexity, cyclomatic complexity, max_nesting, and the control-flow
// multiset, per spec §4.1:
//
//   - cognitive: +1 per branch, +nesting-depth per nested branch, +1 per
//     continuation.
//   - cyclomatic: 1 + count(bool operators) + count(branches).
//   - max_nesting: depth of the deepest nesting-construct stack.
func AnalyzeBody(body *sitter.Node, s Syntax) (cognitive, cyclomatic, maxNesting int, flow []ControlFlowKind) {
	cyclomatic = 1
	if body == nil {
		return
	}

	var walk func(n *sitter.Node, depth int, lastSiblingIdx, childIdx int)
	walk = func(n *sitter.Node, depth int, lastSiblingIdx, childIdx int) {
		if n == nil {
			return
		}
		t := n.Type()

		nextDepth := depth
		switch {
		case s.Branch[t]:
			cyclomatic++
			cognitive += 1 + depth
			if kind := s.Classify(t); kind != "" {
				flow = append(flow, kind)
			}
		case s.Continuation[t]:
			cognitive++
		case s.BoolOperator[t]:
			cyclomatic++
		case s.ReturnEarly[t]:
			if childIdx < lastSiblingIdx {
				flow = append(flow, CFReturnEarly)
			}
		}

		if s.Nesting[t] {
			nextDepth = depth + 1
			if nextDepth > maxNesting {
				maxNesting = nextDepth
			}
		}

		count := int(n.ChildCount())
		// The last statement is the last named, non-comment child:
		// closing braces, "end" keywords and terminators do not count.
		last := count - 1
		for last > 0 && (!n.Child(last).IsNamed() || n.Child(last).Type() == "comment") {
			last--
		}
		for i := 0; i < count; i++ {
			walk(n.Child(i), nextDepth, last, i)
		}
	}

	walk(body, 0, 0, 0)
	return
}
