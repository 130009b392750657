// Package ast defines the node types of the exprtree language.
package ast

import "fmt"

// Span represents a source location range.
type Span struct {
	File      string `json:"file"`
	StartLine int    `json:"startLine"`
	StartCol  int    `json:"startCol"`
	EndLine   int    `json:"endLine"`
	EndCol    int    `json:"endCol"`
}

// Node is the interface implemented by all tree nodes. The set of
// implementations is closed: only types in this package satisfy it.
type Node interface {
	Kind() string
	NodeSpan() Span
	node() // sealed marker
}

// BinaryOp represents a binary operator.
type BinaryOp string

const (
	OpPlus     BinaryOp = "+"
	OpMinus    BinaryOp = "-"
	OpMultiply BinaryOp = "*"
	OpDivide   BinaryOp = "/"
	OpEqual    BinaryOp = "=="
	OpNotEqual BinaryOp = "!="
	OpLess     BinaryOp = "<"
	OpGreater  BinaryOp = ">"
)

// IsComparison reports whether op yields a 0/1 truth value.
func (op BinaryOp) IsComparison() bool {
	switch op {
	case OpEqual, OpNotEqual, OpLess, OpGreater:
		return true
	}
	return false
}

// Valid reports whether op is one of the known operators.
func (op BinaryOp) Valid() bool {
	switch op {
	case OpPlus, OpMinus, OpMultiply, OpDivide:
		return true
	}
	return op.IsComparison()
}

// --- Program ---

// BudgetDecl carries per-program resource limits. Nil fields are unlimited.
type BudgetDecl struct {
	Span           Span
	MaxIterations  *int64
	TimeMs         *int64
	MaxCallDepth   *int64
	MaxOutputLines *int64
}

// Program is an ordered sequence of top-level statements.
type Program struct {
	Span       Span
	Name       string
	Budget     *BudgetDecl
	Statements []Node
}

// --- Leaves ---

type Number struct {
	Span  Span
	Value int64
}

func (n *Number) Kind() string   { return "Number" }
func (n *Number) NodeSpan() Span { return n.Span }
func (n *Number) node()          {}

type Variable struct {
	Span Span
	Name string
}

func (n *Variable) Kind() string   { return "Variable" }
func (n *Variable) NodeSpan() Span { return n.Span }
func (n *Variable) node()          {}

// --- Statements and operators ---

type Assignment struct {
	Span  Span
	Name  string
	Value Node
}

func (n *Assignment) Kind() string   { return "Assignment" }
func (n *Assignment) NodeSpan() Span { return n.Span }
func (n *Assignment) node()          {}

// BinaryExpr covers both arithmetic and comparison operators.
type BinaryExpr struct {
	Span  Span
	Op    BinaryOp
	Left  Node
	Right Node
}

func (n *BinaryExpr) Kind() string   { return "BinaryExpr" }
func (n *BinaryExpr) NodeSpan() Span { return n.Span }
func (n *BinaryExpr) node()          {}

type If struct {
	Span      Span
	Condition Node
	Body      Node
}

func (n *If) Kind() string   { return "If" }
func (n *If) NodeSpan() Span { return n.Span }
func (n *If) node()          {}

type IfElse struct {
	Span      Span
	Condition Node
	Body      Node
	Else      Node
}

func (n *IfElse) Kind() string   { return "IfElse" }
func (n *IfElse) NodeSpan() Span { return n.Span }
func (n *IfElse) node()          {}

type While struct {
	Span      Span
	Condition Node
	Body      []Node
}

func (n *While) Kind() string   { return "While" }
func (n *While) NodeSpan() Span { return n.Span }
func (n *While) node()          {}

type Print struct {
	Span  Span
	Value Node
}

func (n *Print) Kind() string   { return "Print" }
func (n *Print) NodeSpan() Span { return n.Span }
func (n *Print) node()          {}

type FunctionDefinition struct {
	Span   Span
	Name   string
	Params []string
	Body   []Node
}

func (n *FunctionDefinition) Kind() string   { return "FunctionDefinition" }
func (n *FunctionDefinition) NodeSpan() Span { return n.Span }
func (n *FunctionDefinition) node()          {}

type FunctionCall struct {
	Span Span
	Name string
	Args []Node
}

func (n *FunctionCall) Kind() string   { return "FunctionCall" }
func (n *FunctionCall) NodeSpan() Span { return n.Span }
func (n *FunctionCall) node()          {}

// --- Constructors ---
//
// The constructors panic on missing children. Trees are built by code
// (fixture decoding, tests), so a nil child is a programming error rather
// than bad input.

func NewNumber(v int64) *Number { return &Number{Value: v} }

func NewVariable(name string) *Variable {
	mustName("Variable", name)
	return &Variable{Name: name}
}

func NewAssignment(name string, value Node) *Assignment {
	mustName("Assignment", name)
	mustNode("Assignment", "value", value)
	return &Assignment{Name: name, Value: value}
}

func NewBinary(op BinaryOp, left, right Node) *BinaryExpr {
	if !op.Valid() {
		panic(fmt.Sprintf("ast: unknown binary operator %q", op))
	}
	mustNode("BinaryExpr", "left", left)
	mustNode("BinaryExpr", "right", right)
	return &BinaryExpr{Op: op, Left: left, Right: right}
}

func NewPlus(l, r Node) *BinaryExpr     { return NewBinary(OpPlus, l, r) }
func NewMinus(l, r Node) *BinaryExpr    { return NewBinary(OpMinus, l, r) }
func NewMultiply(l, r Node) *BinaryExpr { return NewBinary(OpMultiply, l, r) }
func NewDivide(l, r Node) *BinaryExpr   { return NewBinary(OpDivide, l, r) }
func NewEqual(l, r Node) *BinaryExpr    { return NewBinary(OpEqual, l, r) }
func NewNotEqual(l, r Node) *BinaryExpr { return NewBinary(OpNotEqual, l, r) }
func NewLess(l, r Node) *BinaryExpr     { return NewBinary(OpLess, l, r) }
func NewGreater(l, r Node) *BinaryExpr  { return NewBinary(OpGreater, l, r) }

func NewIf(cond, body Node) *If {
	mustNode("If", "condition", cond)
	mustNode("If", "body", body)
	return &If{Condition: cond, Body: body}
}

func NewIfElse(cond, body, elseBody Node) *IfElse {
	mustNode("IfElse", "condition", cond)
	mustNode("IfElse", "body", body)
	mustNode("IfElse", "else", elseBody)
	return &IfElse{Condition: cond, Body: body, Else: elseBody}
}

func NewWhile(cond Node, body ...Node) *While {
	mustNode("While", "condition", cond)
	mustNodes("While", body)
	return &While{Condition: cond, Body: body}
}

func NewPrint(value Node) *Print {
	mustNode("Print", "value", value)
	return &Print{Value: value}
}

func NewFunctionDefinition(name string, params []string, body ...Node) *FunctionDefinition {
	mustName("FunctionDefinition", name)
	for _, p := range params {
		mustName("FunctionDefinition parameter", p)
	}
	mustNodes("FunctionDefinition", body)
	return &FunctionDefinition{Name: name, Params: params, Body: body}
}

func NewFunctionCall(name string, args ...Node) *FunctionCall {
	mustName("FunctionCall", name)
	mustNodes("FunctionCall", args)
	return &FunctionCall{Name: name, Args: args}
}

// NewProgram wraps statements into a Program.
func NewProgram(stmts ...Node) *Program {
	mustNodes("Program", stmts)
	return &Program{Statements: stmts}
}

func mustName(kind, name string) {
	if name == "" {
		panic(fmt.Sprintf("ast: %s requires a non-empty identifier", kind))
	}
}

func mustNode(kind, field string, n Node) {
	if n == nil {
		panic(fmt.Sprintf("ast: %s requires a %s", kind, field))
	}
}

func mustNodes(kind string, nodes []Node) {
	for i, n := range nodes {
		if n == nil {
			panic(fmt.Sprintf("ast: %s has nil child at index %d", kind, i))
		}
	}
}
