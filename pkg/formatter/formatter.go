// Package formatter renders program trees as readable infix pseudo-source.
package formatter

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/thomasrohde/exprtree/pkg/ast"
)

const indent = "  "

// Precedence table for binary operators (higher = tighter binding)
var precedence = map[ast.BinaryOp]int{
	ast.OpEqual: 1, ast.OpNotEqual: 1,
	ast.OpGreater: 2, ast.OpLess: 2,
	ast.OpPlus: 3, ast.OpMinus: 3,
	ast.OpMultiply: 4, ast.OpDivide: 4,
}

func needsParens(child ast.Node, parentOp ast.BinaryOp, isRight bool) bool {
	switch c := child.(type) {
	case *ast.Number, *ast.Variable, *ast.FunctionCall, nil:
		return false
	case *ast.BinaryExpr:
		childPrec := precedence[c.Op]
		parentPrec := precedence[parentOp]
		if childPrec < parentPrec {
			return true
		}
		// Left-associative: same precedence on the right keeps its parens
		return childPrec == parentPrec && isRight
	}
	// statements used as operands
	return true
}

// Format pretty-prints a program.
func Format(program *ast.Program) string {
	var lines []string

	if program.Name != "" {
		lines = append(lines, "program "+program.Name)
	}
	if program.Budget != nil {
		lines = append(lines, formatBudget(program.Budget))
	}
	if len(lines) > 0 && len(program.Statements) > 0 {
		lines = append(lines, "")
	}

	for _, s := range program.Statements {
		lines = append(lines, formatStmt(s, 0))
	}

	return strings.Join(lines, "\n") + "\n"
}

// FormatNode renders a single node at the top level without a trailing
// newline.
func FormatNode(n ast.Node) string {
	return formatNode(n, 0)
}

func formatBudget(b *ast.BudgetDecl) string {
	var parts []string
	add := func(key string, v *int64) {
		if v != nil {
			parts = append(parts, key+": "+strconv.FormatInt(*v, 10))
		}
	}
	add("maxIterations", b.MaxIterations)
	add("timeMs", b.TimeMs)
	add("maxCallDepth", b.MaxCallDepth)
	add("maxOutputLines", b.MaxOutputLines)
	if len(parts) == 0 {
		return "budget {}"
	}
	return "budget { " + strings.Join(parts, ", ") + " }"
}

func formatStmt(s ast.Node, depth int) string {
	return strings.Repeat(indent, depth) + formatNode(s, depth)
}

func formatBlock(stmts []ast.Node, depth int) string {
	if len(stmts) == 0 {
		return "{}"
	}
	lines := make([]string, len(stmts))
	for i, s := range stmts {
		lines[i] = formatStmt(s, depth+1)
	}
	return "{\n" + strings.Join(lines, "\n") + "\n" + strings.Repeat(indent, depth) + "}"
}

func formatNode(n ast.Node, depth int) string {
	switch node := n.(type) {
	case nil:
		return "<nil>"
	case *ast.Number:
		return strconv.FormatInt(node.Value, 10)
	case *ast.Variable:
		return node.Name
	case *ast.Assignment:
		return node.Name + " = " + formatNode(node.Value, depth)
	case *ast.BinaryExpr:
		leftStr := formatNode(node.Left, depth)
		rightStr := formatNode(node.Right, depth)
		if needsParens(node.Left, node.Op, false) {
			leftStr = "(" + leftStr + ")"
		}
		if needsParens(node.Right, node.Op, true) {
			rightStr = "(" + rightStr + ")"
		}
		return leftStr + " " + string(node.Op) + " " + rightStr
	case *ast.If:
		return fmt.Sprintf("if %s %s",
			formatNode(node.Condition, depth), formatBlock([]ast.Node{node.Body}, depth))
	case *ast.IfElse:
		return fmt.Sprintf("if %s %s else %s",
			formatNode(node.Condition, depth),
			formatBlock([]ast.Node{node.Body}, depth),
			formatBlock([]ast.Node{node.Else}, depth))
	case *ast.While:
		return fmt.Sprintf("while %s %s", formatNode(node.Condition, depth), formatBlock(node.Body, depth))
	case *ast.Print:
		return "print " + formatNode(node.Value, depth)
	case *ast.FunctionDefinition:
		return fmt.Sprintf("fn %s(%s) %s", node.Name, strings.Join(node.Params, ", "), formatBlock(node.Body, depth))
	case *ast.FunctionCall:
		args := make([]string, len(node.Args))
		for i, a := range node.Args {
			args[i] = formatNode(a, depth)
		}
		return node.Name + "(" + strings.Join(args, ", ") + ")"
	}
	return fmt.Sprintf("<%T>", n)
}
