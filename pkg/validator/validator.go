// Package validator implements static checks over decoded program trees.
package validator

import (
	"fmt"

	"github.com/thomasrohde/exprtree/pkg/ast"
	"github.com/thomasrohde/exprtree/pkg/diagnostics"
)

// Scope describes names bound outside the program being checked.
type Scope struct {
	// Variables already hold a value, for example in a REPL session.
	Variables []string
	// Functions maps user functions defined earlier to their parameter count.
	Functions map[string]int
	// Builtins maps host functions to their arity. Negative means variadic.
	Builtins map[string]int
}

type validator struct {
	diags    []diagnostics.Diagnostic
	assigned map[string]bool
	arities  map[string]map[int]bool
	builtins map[string]int
}

// Validate checks a program with nothing bound beforehand.
func Validate(program *ast.Program) []diagnostics.Diagnostic {
	return ValidateIn(program, nil)
}

// ValidateIn checks a program against the names in sc. Variable checks are
// flow-insensitive: a read is accepted if the name is assigned, or is a
// parameter, anywhere in the program, since loops and calls can reach an
// assignment before the read executes.
func ValidateIn(program *ast.Program, sc *Scope) []diagnostics.Diagnostic {
	v := &validator{
		assigned: make(map[string]bool),
		arities:  make(map[string]map[int]bool),
		builtins: make(map[string]int),
	}
	if program == nil {
		v.addDiag(diagnostics.EAst, "program is nil", nil)
		return v.diags
	}
	if sc != nil {
		for _, name := range sc.Variables {
			v.assigned[name] = true
		}
		for name, n := range sc.Functions {
			v.defineArity(name, n)
		}
		for name, n := range sc.Builtins {
			v.builtins[name] = n
		}
	}

	v.validateBudget(program.Budget)

	// First pass: collect assignments, parameters and definitions.
	ast.InspectProgram(program, v.collect)

	// Second pass: check each statement.
	for i, stmt := range program.Statements {
		if stmt == nil {
			span := program.Span
			v.addDiag(diagnostics.EAst, fmt.Sprintf("statement %d is nil", i), &span)
			continue
		}
		v.validateNode(stmt)
	}
	return v.diags
}

func (v *validator) addDiag(code, msg string, span *ast.Span) {
	if span != nil && span.StartLine == 0 {
		span = nil
	}
	v.diags = append(v.diags, diagnostics.MakeDiag(code, msg, span, ""))
}

func (v *validator) defineArity(name string, n int) {
	set := v.arities[name]
	if set == nil {
		set = make(map[int]bool)
		v.arities[name] = set
	}
	set[n] = true
}

func (v *validator) collect(n ast.Node) bool {
	switch n := n.(type) {
	case *ast.Assignment:
		v.assigned[n.Name] = true
	case *ast.FunctionDefinition:
		v.defineArity(n.Name, len(n.Params))
		for _, p := range n.Params {
			v.assigned[p] = true
		}
	}
	return true
}

func (v *validator) validateBudget(b *ast.BudgetDecl) {
	if b == nil {
		return
	}
	fields := []struct {
		name string
		v    *int64
	}{
		{"maxIterations", b.MaxIterations},
		{"timeMs", b.TimeMs},
		{"maxCallDepth", b.MaxCallDepth},
		{"maxOutputLines", b.MaxOutputLines},
	}
	for _, f := range fields {
		if f.v != nil && *f.v < 0 {
			span := b.Span
			v.addDiag(diagnostics.EAst, fmt.Sprintf("budget field '%s' must be non-negative", f.name), &span)
		}
	}
}

// child reports a missing required child and returns whether it is present.
func (v *validator) child(parent ast.Node, field string, c ast.Node) bool {
	if c != nil {
		return true
	}
	span := parent.NodeSpan()
	v.addDiag(diagnostics.EAst, fmt.Sprintf("%s is missing its %s", parent.Kind(), field), &span)
	return false
}

func (v *validator) name(parent ast.Node, what, name string) {
	if name == "" {
		span := parent.NodeSpan()
		v.addDiag(diagnostics.EAst, fmt.Sprintf("%s has an empty %s", parent.Kind(), what), &span)
	}
}

func (v *validator) validateList(parent ast.Node, field string, nodes []ast.Node) {
	for i, c := range nodes {
		if v.child(parent, fmt.Sprintf("%s[%d]", field, i), c) {
			v.validateNode(c)
		}
	}
}

func (v *validator) validateNode(n ast.Node) {
	switch n := n.(type) {
	case *ast.Number:
		// literals are always valid

	case *ast.Variable:
		v.name(n, "name", n.Name)
		if n.Name != "" && !v.assigned[n.Name] {
			span := n.Span
			v.addDiag(diagnostics.EUnbound, fmt.Sprintf("variable '%s' is never assigned", n.Name), &span)
		}

	case *ast.Assignment:
		v.name(n, "name", n.Name)
		if v.child(n, "value", n.Value) {
			v.validateNode(n.Value)
		}

	case *ast.BinaryExpr:
		if !n.Op.Valid() {
			span := n.Span
			v.addDiag(diagnostics.EAst, fmt.Sprintf("unknown binary operator '%s'", n.Op), &span)
		}
		if v.child(n, "left operand", n.Left) {
			v.validateNode(n.Left)
		}
		if v.child(n, "right operand", n.Right) {
			v.validateNode(n.Right)
		}
		if lit, ok := n.Right.(*ast.Number); ok && n.Op == ast.OpDivide && lit.Value == 0 {
			span := n.Span
			v.addDiag(diagnostics.EArith, "division by literal zero", &span)
		}

	case *ast.If:
		if v.child(n, "condition", n.Condition) {
			v.validateNode(n.Condition)
		}
		if v.child(n, "body", n.Body) {
			v.validateNode(n.Body)
		}

	case *ast.IfElse:
		if v.child(n, "condition", n.Condition) {
			v.validateNode(n.Condition)
		}
		if v.child(n, "body", n.Body) {
			v.validateNode(n.Body)
		}
		if v.child(n, "else branch", n.Else) {
			v.validateNode(n.Else)
		}

	case *ast.While:
		if v.child(n, "condition", n.Condition) {
			v.validateNode(n.Condition)
		}
		v.validateList(n, "body", n.Body)

	case *ast.Print:
		if v.child(n, "value", n.Value) {
			v.validateNode(n.Value)
		}

	case *ast.FunctionDefinition:
		v.name(n, "name", n.Name)
		seen := make(map[string]bool, len(n.Params))
		for _, p := range n.Params {
			v.name(n, "parameter name", p)
			if p != "" && seen[p] {
				span := n.Span
				v.addDiag(diagnostics.EDupParam, fmt.Sprintf("duplicate parameter '%s' in function '%s'", p, n.Name), &span)
			}
			seen[p] = true
		}
		v.validateList(n, "body", n.Body)

	case *ast.FunctionCall:
		v.name(n, "name", n.Name)
		v.validateCall(n)
		v.validateList(n, "args", n.Args)

	default:
		v.addDiag(diagnostics.EAst, fmt.Sprintf("unsupported node %T", n), nil)
	}
}

func (v *validator) validateCall(call *ast.FunctionCall) {
	if call.Name == "" {
		return
	}
	span := call.Span
	argc := len(call.Args)

	// User definitions shadow builtins.
	if set, ok := v.arities[call.Name]; ok {
		if len(set) != 1 {
			return
		}
		for want := range set {
			if want != argc {
				v.addDiag(diagnostics.EArity, fmt.Sprintf("function '%s' expects %d argument(s), got %d", call.Name, want, argc), &span)
			}
		}
		return
	}
	if want, ok := v.builtins[call.Name]; ok {
		if want >= 0 && want != argc {
			v.addDiag(diagnostics.EArity, fmt.Sprintf("builtin '%s' expects %d argument(s), got %d", call.Name, want, argc), &span)
		}
		return
	}
	v.addDiag(diagnostics.EUnknownFn, fmt.Sprintf("unknown function '%s'", call.Name), &span)
}

// Partition separates structural problems, which make a tree impossible to
// evaluate, from hazards that only fail if the offending node is reached.
// An untaken branch may divide by zero or read an unassigned name and the
// program still runs to completion.
func Partition(diags []diagnostics.Diagnostic) (blocking, hazards []diagnostics.Diagnostic) {
	for _, d := range diags {
		if d.Code == diagnostics.EAst {
			blocking = append(blocking, d)
		} else {
			hazards = append(hazards, d)
		}
	}
	return blocking, hazards
}
