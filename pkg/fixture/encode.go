package fixture

import (
	"bytes"
	"fmt"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/thomasrohde/exprtree/pkg/ast"
)

var opKeys = func() map[ast.BinaryOp]string {
	m := make(map[ast.BinaryOp]string, len(binaryKeys))
	for k, op := range binaryKeys {
		m[op] = k
	}
	return m
}()

// Encode renders a program as a canonical YAML document. Expressions without
// nested control flow are written in flow style.
func Encode(p *ast.Program) ([]byte, error) {
	stmts, err := encodeList(p.Statements)
	if err != nil {
		return nil, err
	}

	var root *yaml.Node
	if p.Name == "" && p.Budget == nil {
		root = stmts
	} else {
		root = mapping()
		if p.Name != "" {
			root.Content = append(root.Content, str("name"), str(p.Name))
		}
		if p.Budget != nil {
			root.Content = append(root.Content, str("budget"), encodeBudget(p.Budget))
		}
		root.Content = append(root.Content, str("program"), stmts)
	}
	return marshal(root)
}

// EncodeNode renders a single node in flow style on one line.
func EncodeNode(n ast.Node) (string, error) {
	y, err := encodeNode(n)
	if err != nil {
		return "", err
	}
	flow(y)
	out, err := marshal(y)
	if err != nil {
		return "", err
	}
	return string(bytes.TrimRight(out, "\n")), nil
}

func marshal(root *yaml.Node) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(root); err != nil {
		return nil, fmt.Errorf("encode fixture: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encode fixture: %w", err)
	}
	return buf.Bytes(), nil
}

func encodeBudget(b *ast.BudgetDecl) *yaml.Node {
	m := mapping()
	add := func(key string, v *int64) {
		if v != nil {
			m.Content = append(m.Content, str(key), integer(*v))
		}
	}
	add("maxIterations", b.MaxIterations)
	add("timeMs", b.TimeMs)
	add("maxCallDepth", b.MaxCallDepth)
	add("maxOutputLines", b.MaxOutputLines)
	m.Style = yaml.FlowStyle
	return m
}

func encodeNode(n ast.Node) (*yaml.Node, error) {
	var (
		key  string
		body *yaml.Node
		err  error
	)

	switch n := n.(type) {
	case *ast.Number:
		return integer(n.Value), nil
	case *ast.Variable:
		return str(n.Name), nil

	case *ast.Assignment:
		key = "assign"
		body, err = fields("name", str(n.Name), "value", n.Value)

	case *ast.BinaryExpr:
		k, ok := opKeys[n.Op]
		if !ok {
			return nil, fmt.Errorf("encode fixture: unknown operator %q", n.Op)
		}
		key = k
		body, err = encodeList([]ast.Node{n.Left, n.Right})

	case *ast.If:
		key = "if"
		body, err = fields("cond", n.Condition, "then", n.Body)

	case *ast.IfElse:
		key = "ifelse"
		body, err = fields("cond", n.Condition, "then", n.Body, "else", n.Else)

	case *ast.While:
		key = "while"
		var list *yaml.Node
		if list, err = encodeList(n.Body); err == nil {
			body, err = fields("cond", n.Condition, "body", list)
		}

	case *ast.Print:
		key = "print"
		body, err = encodeNode(n.Value)

	case *ast.FunctionDefinition:
		key = "def"
		params := sequence()
		for _, p := range n.Params {
			params.Content = append(params.Content, str(p))
		}
		params.Style = yaml.FlowStyle
		var list *yaml.Node
		if list, err = encodeList(n.Body); err == nil {
			body, err = fields("name", str(n.Name), "params", params, "body", list)
		}

	case *ast.FunctionCall:
		key = "call"
		var list *yaml.Node
		if list, err = encodeList(n.Args); err == nil {
			list.Style = yaml.FlowStyle
			body, err = fields("name", str(n.Name), "args", list)
		}

	case nil:
		return nil, fmt.Errorf("encode fixture: nil node")
	default:
		return nil, fmt.Errorf("encode fixture: unsupported node %T", n)
	}
	if err != nil {
		return nil, err
	}

	m := mapping()
	m.Content = append(m.Content, str(key), body)
	if simple(n) {
		flow(m)
	}
	return m, nil
}

// fields builds a mapping from alternating keys and values. Values are
// either *yaml.Node or ast.Node.
func fields(kv ...any) (*yaml.Node, error) {
	m := mapping()
	for i := 0; i+1 < len(kv); i += 2 {
		var v *yaml.Node
		switch x := kv[i+1].(type) {
		case *yaml.Node:
			v = x
		case ast.Node:
			enc, err := encodeNode(x)
			if err != nil {
				return nil, err
			}
			v = enc
		}
		m.Content = append(m.Content, str(kv[i].(string)), v)
	}
	return m, nil
}

func encodeList(nodes []ast.Node) (*yaml.Node, error) {
	seq := sequence()
	for _, n := range nodes {
		enc, err := encodeNode(n)
		if err != nil {
			return nil, err
		}
		seq.Content = append(seq.Content, enc)
	}
	return seq, nil
}

// simple reports whether n contains no control flow or definitions.
func simple(n ast.Node) bool {
	ok := true
	ast.Inspect(n, func(c ast.Node) bool {
		switch c.(type) {
		case *ast.If, *ast.IfElse, *ast.While, *ast.FunctionDefinition:
			ok = false
		}
		return ok
	})
	return ok
}

func flow(n *yaml.Node) {
	if n.Kind == yaml.MappingNode || n.Kind == yaml.SequenceNode {
		n.Style = yaml.FlowStyle
	}
	for _, c := range n.Content {
		flow(c)
	}
}

func mapping() *yaml.Node  { return &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"} }
func sequence() *yaml.Node { return &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"} }

func str(s string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: s}
}

func integer(v int64) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!int", Value: strconv.FormatInt(v, 10)}
}
