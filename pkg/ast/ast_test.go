package ast_test

import (
	"testing"

	"github.com/thomasrohde/exprtree/pkg/ast"
)

func TestNodeKinds(t *testing.T) {
	nodes := []ast.Node{
		ast.NewNumber(42),
		ast.NewVariable("x"),
		ast.NewAssignment("x", ast.NewNumber(1)),
		ast.NewPlus(ast.NewNumber(1), ast.NewNumber(2)),
		ast.NewIf(ast.NewNumber(1), ast.NewNumber(2)),
		ast.NewIfElse(ast.NewNumber(1), ast.NewNumber(2), ast.NewNumber(3)),
		ast.NewWhile(ast.NewNumber(0)),
		ast.NewPrint(ast.NewNumber(1)),
		ast.NewFunctionDefinition("f", []string{"a"}),
		ast.NewFunctionCall("f", ast.NewNumber(1)),
	}

	expected := []string{
		"Number", "Variable", "Assignment", "BinaryExpr", "If",
		"IfElse", "While", "Print", "FunctionDefinition", "FunctionCall",
	}

	for i, node := range nodes {
		if got := node.Kind(); got != expected[i] {
			t.Errorf("node %d: got Kind() = %q, want %q", i, got, expected[i])
		}
	}
}

func TestBinaryOpClassification(t *testing.T) {
	tests := []struct {
		op         ast.BinaryOp
		comparison bool
	}{
		{ast.OpPlus, false},
		{ast.OpMinus, false},
		{ast.OpMultiply, false},
		{ast.OpDivide, false},
		{ast.OpEqual, true},
		{ast.OpNotEqual, true},
		{ast.OpLess, true},
		{ast.OpGreater, true},
	}
	for _, tt := range tests {
		if !tt.op.Valid() {
			t.Errorf("%q should be valid", tt.op)
		}
		if got := tt.op.IsComparison(); got != tt.comparison {
			t.Errorf("%q IsComparison() = %v, want %v", tt.op, got, tt.comparison)
		}
	}
	if ast.BinaryOp("%").Valid() {
		t.Error("modulo should not be a valid operator")
	}
}

func TestConstructorsRejectMissingChildren(t *testing.T) {
	cases := map[string]func(){
		"assignment without value": func() { ast.NewAssignment("x", nil) },
		"assignment without name":  func() { ast.NewAssignment("", ast.NewNumber(1)) },
		"variable without name":    func() { ast.NewVariable("") },
		"binary without right":     func() { ast.NewPlus(ast.NewNumber(1), nil) },
		"unknown operator":         func() { ast.NewBinary("%", ast.NewNumber(1), ast.NewNumber(2)) },
		"if without body":          func() { ast.NewIf(ast.NewNumber(1), nil) },
		"ifelse without else":      func() { ast.NewIfElse(ast.NewNumber(1), ast.NewNumber(1), nil) },
		"while with nil body":      func() { ast.NewWhile(ast.NewNumber(1), nil) },
		"print without value":      func() { ast.NewPrint(nil) },
		"def with empty param":     func() { ast.NewFunctionDefinition("f", []string{""}) },
		"call with nil arg":        func() { ast.NewFunctionCall("f", nil) },
	}
	for name, build := range cases {
		t.Run(name, func(t *testing.T) {
			defer func() {
				if recover() == nil {
					t.Errorf("expected panic")
				}
			}()
			build()
		})
	}
}

func TestInspectVisitsInSourceOrder(t *testing.T) {
	tree := ast.NewWhile(
		ast.NewGreater(ast.NewVariable("n"), ast.NewNumber(0)),
		ast.NewPrint(ast.NewVariable("n")),
		ast.NewAssignment("n", ast.NewMinus(ast.NewVariable("n"), ast.NewNumber(1))),
	)

	var kinds []string
	ast.Inspect(tree, func(n ast.Node) bool {
		kinds = append(kinds, n.Kind())
		return true
	})

	want := []string{
		"While", "BinaryExpr", "Variable", "Number",
		"Print", "Variable",
		"Assignment", "BinaryExpr", "Variable", "Number",
	}
	if len(kinds) != len(want) {
		t.Fatalf("visited %v, want %v", kinds, want)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Errorf("visit %d: got %s, want %s", i, kinds[i], want[i])
		}
	}
}

func TestInspectSkipsChildren(t *testing.T) {
	def := ast.NewFunctionDefinition("f", nil, ast.NewPrint(ast.NewNumber(1)))
	count := 0
	ast.Inspect(def, func(n ast.Node) bool {
		count++
		return false
	})
	if count != 1 {
		t.Errorf("visited %d nodes, want 1", count)
	}
}
