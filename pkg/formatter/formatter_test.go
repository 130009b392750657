package formatter_test

import (
	"testing"

	"github.com/thomasrohde/exprtree/pkg/ast"
	"github.com/thomasrohde/exprtree/pkg/formatter"
)

var (
	num = ast.NewNumber
	ref = ast.NewVariable
)

func TestFormatNode(t *testing.T) {
	tests := []struct {
		name string
		node ast.Node
		want string
	}{
		{"number", num(-4), "-4"},
		{"assign", ast.NewAssignment("x", ast.NewMinus(ref("x"), num(1))), "x = x - 1"},
		{"print call", ast.NewPrint(ast.NewFunctionCall("f", num(1), num(2))), "print f(1, 2)"},
		{"call no args", ast.NewFunctionCall("tick"), "tick()"},
		{"precedence", ast.NewMultiply(ast.NewPlus(num(1), num(2)), num(3)), "(1 + 2) * 3"},
		{"no redundant parens", ast.NewPlus(num(1), ast.NewMultiply(num(2), num(3))), "1 + 2 * 3"},
		{"left assoc", ast.NewMinus(ast.NewMinus(num(9), num(3)), num(1)), "9 - 3 - 1"},
		{"right grouping", ast.NewMinus(num(9), ast.NewMinus(num(3), num(1))), "9 - (3 - 1)"},
		{"comparison", ast.NewEqual(ast.NewLess(ref("a"), ref("b")), num(1)), "a < b == 1"},
		{"statement operand", ast.NewPlus(ast.NewAssignment("y", num(2)), num(1)), "(y = 2) + 1"},
		{"nil", nil, "<nil>"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := formatter.FormatNode(tt.node); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFormatBlocks(t *testing.T) {
	prog := ast.NewProgram(
		ast.NewFunctionDefinition("countdown", []string{"n"},
			ast.NewWhile(ast.NewGreater(ref("n"), num(0)),
				ast.NewPrint(ref("n")),
				ast.NewAssignment("n", ast.NewMinus(ref("n"), num(1))),
			),
		),
		ast.NewIfElse(ast.NewEqual(ref("n"), num(0)), ast.NewPrint(num(1)), ast.NewPrint(num(0))),
		ast.NewIf(num(1), ast.NewFunctionCall("countdown", num(3))),
		ast.NewFunctionDefinition("noop", nil),
	)

	want := `fn countdown(n) {
  while n > 0 {
    print n
    n = n - 1
  }
}
if n == 0 {
  print 1
} else {
  print 0
}
if 1 {
  countdown(3)
}
fn noop() {}
`
	if got := formatter.Format(prog); got != want {
		t.Errorf("got:\n%s\nwant:\n%s", got, want)
	}
}

func TestFormatHeader(t *testing.T) {
	iters, depth := int64(10), int64(5)
	prog := ast.NewProgram(ast.NewPrint(num(1)))
	prog.Name = "demo"
	prog.Budget = &ast.BudgetDecl{MaxIterations: &iters, MaxCallDepth: &depth}

	want := "program demo\nbudget { maxIterations: 10, maxCallDepth: 5 }\n\nprint 1\n"
	if got := formatter.Format(prog); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestFormatEmpty(t *testing.T) {
	if got := formatter.Format(ast.NewProgram()); got != "\n" {
		t.Errorf("got %q", got)
	}
}
