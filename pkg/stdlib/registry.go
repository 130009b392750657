// Package stdlib provides the host builtin functions reachable through
// FunctionCall.
package stdlib

import (
	"sort"

	"github.com/thomasrohde/exprtree/pkg/evaluator"
)

// Fn represents a builtin function. Arity < 0 means variadic.
type Fn struct {
	Name    string
	Arity   int
	Doc     string
	Execute func(args []int64) (int64, error)
}

// Registry holds registered builtin functions.
type Registry struct {
	fns map[string]*Fn
}

// NewRegistry creates a new empty registry.
func NewRegistry() *Registry {
	return &Registry{
		fns: make(map[string]*Fn),
	}
}

// Register adds a builtin function to the registry.
func (r *Registry) Register(fn Fn) {
	r.fns[fn.Name] = &fn
}

// Get retrieves a builtin function by name.
func (r *Registry) Get(name string) *Fn {
	return r.fns[name]
}

// All returns all registered builtin functions.
func (r *Registry) All() map[string]*Fn {
	return r.fns
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.fns))
	for name := range r.fns {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Builtins converts the registry into the table consumed by the evaluator.
func (r *Registry) Builtins() map[string]*evaluator.BuiltinFn {
	out := make(map[string]*evaluator.BuiltinFn, len(r.fns))
	for name, fn := range r.fns {
		out[name] = &evaluator.BuiltinFn{
			Name:    fn.Name,
			Arity:   fn.Arity,
			Execute: fn.Execute,
		}
	}
	return out
}
