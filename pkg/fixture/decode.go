// Package fixture reads and writes program trees as YAML documents.
//
// A document is either a sequence of statements or a mapping with the keys
// name, budget and program. Each node is an integer scalar (Number), an
// identifier scalar (Variable) or a mapping with a single key naming the
// variant:
//
//	name: countdown
//	program:
//	  - assign: {name: n, value: 10}
//	  - while:
//	      cond: {gt: [n, 0]}
//	      body:
//	        - print: n
//	        - assign: {name: n, value: {minus: [n, 1]}}
//
// JSON documents are accepted as well since they are valid YAML.
package fixture

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/thomasrohde/exprtree/pkg/ast"
	"github.com/thomasrohde/exprtree/pkg/diagnostics"
)

// binaryKeys maps node keys to operators.
var binaryKeys = map[string]ast.BinaryOp{
	"plus":  ast.OpPlus,
	"minus": ast.OpMinus,
	"mul":   ast.OpMultiply,
	"div":   ast.OpDivide,
	"eq":    ast.OpEqual,
	"ne":    ast.OpNotEqual,
	"lt":    ast.OpLess,
	"gt":    ast.OpGreater,
}

var budgetKeys = []string{"maxIterations", "timeMs", "maxCallDepth", "maxOutputLines"}

type decoder struct {
	file  string
	diags []diagnostics.Diagnostic
}

// Decode parses a program document. Any diagnostics mean the returned
// program must not be evaluated.
func Decode(data []byte, filename string) (*ast.Program, []diagnostics.Diagnostic) {
	d := &decoder{file: filename}
	prog := &ast.Program{Span: ast.Span{File: filename, StartLine: 1, StartCol: 1}}

	root, ok := d.document(data)
	if !ok {
		return nil, d.diags
	}
	if root == nil {
		return prog, nil
	}

	switch root.Kind {
	case yaml.SequenceNode:
		prog.Statements = d.sequence(root, "program")
	case yaml.MappingNode:
		d.programMapping(root, prog)
	default:
		d.errorf(root, "document must be a sequence of statements or a program mapping")
	}

	if len(d.diags) > 0 {
		return nil, d.diags
	}
	return prog, nil
}

// DecodeNode parses a document holding a single statement.
func DecodeNode(data []byte, filename string) (ast.Node, []diagnostics.Diagnostic) {
	d := &decoder{file: filename}
	root, ok := d.document(data)
	if !ok {
		return nil, d.diags
	}
	if root == nil {
		d.diags = append(d.diags, diagnostics.MakeDiag(diagnostics.EFixture, "empty input", nil, ""))
		return nil, d.diags
	}
	n := d.node(root)
	if len(d.diags) > 0 {
		return nil, d.diags
	}
	return n, nil
}

func (d *decoder) document(data []byte) (*yaml.Node, bool) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		d.diags = append(d.diags, diagnostics.MakeDiag(diagnostics.EFixture,
			strings.TrimPrefix(err.Error(), "yaml: "), &ast.Span{File: d.file}, ""))
		return nil, false
	}
	if doc.Kind == 0 || len(doc.Content) == 0 {
		return nil, true
	}
	root := doc.Content[0]
	if !d.rejectAliases(root) {
		return nil, false
	}
	return root, true
}

func (d *decoder) programMapping(root *yaml.Node, prog *ast.Program) {
	fields := d.fields(root, "program document", nil, []string{"name", "budget", "program"})
	if fields == nil {
		return
	}
	if n := fields["name"]; n != nil {
		if n.Kind != yaml.ScalarNode {
			d.errorf(n, "program name must be a string")
		} else {
			prog.Name = n.Value
		}
	}
	if n := fields["budget"]; n != nil {
		prog.Budget = d.budget(n)
	}
	if n := fields["program"]; n != nil {
		prog.Statements = d.sequence(n, "program")
	}
}

func (d *decoder) budget(n *yaml.Node) *ast.BudgetDecl {
	fields := d.fields(n, "budget", nil, budgetKeys)
	if fields == nil {
		return nil
	}
	decl := &ast.BudgetDecl{Span: d.span(n)}
	targets := map[string]**int64{
		"maxIterations":  &decl.MaxIterations,
		"timeMs":         &decl.TimeMs,
		"maxCallDepth":   &decl.MaxCallDepth,
		"maxOutputLines": &decl.MaxOutputLines,
	}
	for _, key := range budgetKeys {
		value, found := fields[key]
		if !found {
			continue
		}
		v, ok := d.integer(value)
		if !ok {
			continue
		}
		if v < 0 {
			d.errorf(value, "budget field '%s' must be non-negative", key)
			continue
		}
		*targets[key] = &v
	}
	return decl
}

func (d *decoder) node(n *yaml.Node) ast.Node {
	switch n.Kind {
	case yaml.ScalarNode:
		return d.scalar(n)
	case yaml.MappingNode:
		if len(n.Content) != 2 {
			d.errorf(n, "node mapping must have exactly one key, got %d", len(n.Content)/2)
			return nil
		}
		return d.variant(n, n.Content[0], n.Content[1])
	default:
		d.errorf(n, "expected a node, got a sequence")
		return nil
	}
}

func (d *decoder) scalar(n *yaml.Node) ast.Node {
	switch n.Tag {
	case "!!int":
		v, ok := d.integer(n)
		if !ok {
			return nil
		}
		return &ast.Number{Span: d.span(n), Value: v}
	case "!!str":
		if !isIdent(n.Value) {
			d.errorf(n, "'%s' is not a valid identifier", n.Value)
			return nil
		}
		return &ast.Variable{Span: d.span(n), Name: n.Value}
	}
	d.errorf(n, "unsupported scalar '%s' (%s): only integers and identifiers are values", n.Value, strings.TrimPrefix(n.Tag, "!!"))
	return nil
}

func (d *decoder) variant(at, keyNode, v *yaml.Node) ast.Node {
	key := keyNode.Value
	span := d.span(keyNode)

	if op, ok := binaryKeys[key]; ok {
		if v.Kind != yaml.SequenceNode || len(v.Content) != 2 {
			d.errorf(v, "'%s' takes a sequence of exactly two operands", key)
			return nil
		}
		left, right := d.node(v.Content[0]), d.node(v.Content[1])
		if left == nil || right == nil {
			return nil
		}
		return &ast.BinaryExpr{Span: span, Op: op, Left: left, Right: right}
	}

	switch key {
	case "num":
		val, ok := d.integer(v)
		if !ok {
			return nil
		}
		return &ast.Number{Span: span, Value: val}

	case "var":
		name, ok := d.ident(v)
		if !ok {
			return nil
		}
		return &ast.Variable{Span: span, Name: name}

	case "assign":
		f := d.fields(v, key, []string{"name", "value"}, nil)
		if f == nil {
			return nil
		}
		name, ok := d.ident(f["name"])
		value := d.node(f["value"])
		if !ok || value == nil {
			return nil
		}
		return &ast.Assignment{Span: span, Name: name, Value: value}

	case "if":
		f := d.fields(v, key, []string{"cond", "then"}, nil)
		if f == nil {
			return nil
		}
		cond, body := d.node(f["cond"]), d.node(f["then"])
		if cond == nil || body == nil {
			return nil
		}
		return &ast.If{Span: span, Condition: cond, Body: body}

	case "ifelse":
		f := d.fields(v, key, []string{"cond", "then", "else"}, nil)
		if f == nil {
			return nil
		}
		cond, body, elseBody := d.node(f["cond"]), d.node(f["then"]), d.node(f["else"])
		if cond == nil || body == nil || elseBody == nil {
			return nil
		}
		return &ast.IfElse{Span: span, Condition: cond, Body: body, Else: elseBody}

	case "while":
		f := d.fields(v, key, []string{"cond"}, []string{"body"})
		if f == nil {
			return nil
		}
		before := len(d.diags)
		cond := d.node(f["cond"])
		body := d.optionalSequence(f["body"], "while body")
		if cond == nil || len(d.diags) > before {
			return nil
		}
		return &ast.While{Span: span, Condition: cond, Body: body}

	case "print":
		value := d.node(v)
		if value == nil {
			return nil
		}
		return &ast.Print{Span: span, Value: value}

	case "def":
		f := d.fields(v, key, []string{"name"}, []string{"params", "body"})
		if f == nil {
			return nil
		}
		before := len(d.diags)
		name, _ := d.ident(f["name"])
		params := d.params(f["params"])
		body := d.optionalSequence(f["body"], "function body")
		if len(d.diags) > before {
			return nil
		}
		return &ast.FunctionDefinition{Span: span, Name: name, Params: params, Body: body}

	case "call":
		f := d.fields(v, key, []string{"name"}, []string{"args"})
		if f == nil {
			return nil
		}
		before := len(d.diags)
		name, _ := d.ident(f["name"])
		args := d.optionalSequence(f["args"], "call arguments")
		if len(d.diags) > before {
			return nil
		}
		return &ast.FunctionCall{Span: span, Name: name, Args: args}
	}

	d.errorf(at, "unknown node '%s'", key)
	return nil
}

// sequence decodes a required sequence of statements.
func (d *decoder) sequence(n *yaml.Node, what string) []ast.Node {
	if n.Kind != yaml.SequenceNode {
		d.errorf(n, "%s must be a sequence", what)
		return nil
	}
	if len(n.Content) == 0 {
		return nil
	}
	out := make([]ast.Node, 0, len(n.Content))
	for _, item := range n.Content {
		if child := d.node(item); child != nil {
			out = append(out, child)
		}
	}
	return out
}

func (d *decoder) optionalSequence(n *yaml.Node, what string) []ast.Node {
	if n == nil || isNull(n) {
		return nil
	}
	return d.sequence(n, what)
}

func (d *decoder) params(n *yaml.Node) []string {
	if n == nil || isNull(n) {
		return nil
	}
	if n.Kind != yaml.SequenceNode {
		d.errorf(n, "params must be a sequence of identifiers")
		return nil
	}
	if len(n.Content) == 0 {
		return nil
	}
	out := make([]string, 0, len(n.Content))
	for _, p := range n.Content {
		if name, ok := d.ident(p); ok {
			out = append(out, name)
		}
	}
	return out
}

// fields checks that n is a mapping whose keys are drawn from required and
// optional, with every required key present.
func (d *decoder) fields(n *yaml.Node, what string, required, optional []string) map[string]*yaml.Node {
	if n.Kind != yaml.MappingNode {
		d.errorf(n, "'%s' expects a mapping", what)
		return nil
	}
	allowed := make(map[string]bool, len(required)+len(optional))
	for _, k := range required {
		allowed[k] = true
	}
	for _, k := range optional {
		allowed[k] = true
	}

	out := make(map[string]*yaml.Node, len(n.Content)/2)
	ok := true
	for i := 0; i+1 < len(n.Content); i += 2 {
		key := n.Content[i]
		if !allowed[key.Value] {
			d.errorf(key, "unknown field '%s' in '%s'", key.Value, what)
			ok = false
			continue
		}
		if _, dup := out[key.Value]; dup {
			d.errorf(key, "duplicate field '%s' in '%s'", key.Value, what)
			ok = false
			continue
		}
		out[key.Value] = n.Content[i+1]
	}
	for _, k := range required {
		if _, found := out[k]; !found {
			d.errorf(n, "'%s' is missing required field '%s'", what, k)
			ok = false
		}
	}
	if !ok {
		return nil
	}
	return out
}

func (d *decoder) integer(n *yaml.Node) (int64, bool) {
	if n.Kind != yaml.ScalarNode || n.Tag != "!!int" {
		d.errorf(n, "expected an integer, got '%s'", n.Value)
		return 0, false
	}
	var v int64
	if err := n.Decode(&v); err != nil {
		d.errorf(n, "integer '%s' out of range", n.Value)
		return 0, false
	}
	return v, true
}

func (d *decoder) ident(n *yaml.Node) (string, bool) {
	if n.Kind != yaml.ScalarNode || !isIdent(n.Value) {
		d.errorf(n, "expected an identifier, got '%s'", n.Value)
		return "", false
	}
	return n.Value, true
}

func (d *decoder) span(n *yaml.Node) ast.Span {
	return ast.Span{
		File:      d.file,
		StartLine: n.Line,
		StartCol:  n.Column,
		EndLine:   n.Line,
		EndCol:    n.Column + len(n.Value),
	}
}

func (d *decoder) errorf(n *yaml.Node, format string, args ...any) {
	span := d.span(n)
	d.diags = append(d.diags, diagnostics.MakeDiag(diagnostics.EFixture, fmt.Sprintf(format, args...), &span, ""))
}

// rejectAliases reports every alias in the tree. Aliases would let a small
// document expand into an exponentially large program.
func (d *decoder) rejectAliases(n *yaml.Node) bool {
	ok := true
	if n.Kind == yaml.AliasNode {
		d.errorf(n, "aliases are not supported ('*%s')", n.Value)
		return false
	}
	for _, c := range n.Content {
		if !d.rejectAliases(c) {
			ok = false
		}
	}
	return ok
}

func isNull(n *yaml.Node) bool {
	return n.Kind == yaml.ScalarNode && n.Tag == "!!null"
}

// isIdent reports whether s is a letter or underscore followed by letters,
// digits or underscores.
func isIdent(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case i > 0 && r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return true
}
