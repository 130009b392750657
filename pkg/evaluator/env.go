package evaluator

import (
	"sort"

	"github.com/thomasrohde/exprtree/pkg/ast"
)

// Env is the binding store the evaluator reads and mutates. It holds two
// unscoped tables: variables and functions. One Env is shared by every node
// evaluated within a run; the evaluator never copies or replaces it.
type Env interface {
	Variable(name string) (int64, bool)
	SetVariable(name string, val int64)
	Function(name string) (*Function, bool)
	DefineFunction(name string, fn *Function)
}

// Function is a callable stored in an Env by a FunctionDefinition.
// Body shares its nodes with the defining tree.
type Function struct {
	Name   string
	Params []string
	Body   []ast.Node
	Span   ast.Span
}

// Environment is the map-backed Env.
type Environment struct {
	variables map[string]int64
	functions map[string]*Function
}

// NewEnvironment creates an empty environment.
func NewEnvironment() *Environment {
	return &Environment{
		variables: make(map[string]int64),
		functions: make(map[string]*Function),
	}
}

// Variable looks up a variable binding.
func (e *Environment) Variable(name string) (int64, bool) {
	v, ok := e.variables[name]
	return v, ok
}

// SetVariable inserts or overwrites a variable binding.
func (e *Environment) SetVariable(name string, val int64) {
	e.variables[name] = val
}

// Function looks up a function definition.
func (e *Environment) Function(name string) (*Function, bool) {
	fn, ok := e.functions[name]
	return fn, ok
}

// DefineFunction inserts or replaces a function definition.
func (e *Environment) DefineFunction(name string, fn *Function) {
	e.functions[name] = fn
}

// Variables returns a copy of the variable table.
func (e *Environment) Variables() map[string]int64 {
	out := make(map[string]int64, len(e.variables))
	for k, v := range e.variables {
		out[k] = v
	}
	return out
}

// VariableNames returns the bound variable names in sorted order.
func (e *Environment) VariableNames() []string {
	return sortedKeys(e.variables)
}

// FunctionNames returns the defined function names in sorted order.
func (e *Environment) FunctionNames() []string {
	return sortedKeys(e.functions)
}

// Reset drops every binding.
func (e *Environment) Reset() {
	clear(e.variables)
	clear(e.functions)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
