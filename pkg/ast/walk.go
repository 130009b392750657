package ast

// Children returns the direct children of n in source order. Nil children
// of hand-built nodes are skipped.
func Children(n Node) []Node {
	var out []Node
	add := func(c Node) {
		if c != nil {
			out = append(out, c)
		}
	}
	switch n := n.(type) {
	case *Assignment:
		add(n.Value)
	case *BinaryExpr:
		add(n.Left)
		add(n.Right)
	case *If:
		add(n.Condition)
		add(n.Body)
	case *IfElse:
		add(n.Condition)
		add(n.Body)
		add(n.Else)
	case *While:
		add(n.Condition)
		for _, c := range n.Body {
			add(c)
		}
	case *Print:
		add(n.Value)
	case *FunctionDefinition:
		for _, c := range n.Body {
			add(c)
		}
	case *FunctionCall:
		for _, c := range n.Args {
			add(c)
		}
	}
	return out
}

// Inspect traverses the tree rooted at n depth-first. If fn returns false
// the children of the current node are skipped.
func Inspect(n Node, fn func(Node) bool) {
	if n == nil || !fn(n) {
		return
	}
	for _, c := range Children(n) {
		Inspect(c, fn)
	}
}

// InspectProgram calls Inspect on every top-level statement.
func InspectProgram(p *Program, fn func(Node) bool) {
	for _, s := range p.Statements {
		Inspect(s, fn)
	}
}
