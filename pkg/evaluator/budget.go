package evaluator

import "github.com/thomasrohde/exprtree/pkg/ast"

// DefaultMaxCallDepth bounds recursion when no budget sets MaxCallDepth.
const DefaultMaxCallDepth = 1000

// Budget holds the resource limits for a program execution.
type Budget struct {
	TimeMs         *int64
	MaxIterations  *int64
	MaxCallDepth   *int64
	MaxOutputLines *int64
}

// BudgetTracker tracks resource consumption during execution.
type BudgetTracker struct {
	Iterations  int64
	Calls       int64
	OutputLines int64
	Statements  int64
	StartMs     int64
}

// Limit returns a pointer to v, for building budgets inline.
func Limit(v int64) *int64 { return &v }

// mergeBudget returns the stricter of each limit in b and decl.
func mergeBudget(b Budget, decl *ast.BudgetDecl) Budget {
	if decl == nil {
		return b
	}
	return Budget{
		TimeMs:         stricter(b.TimeMs, decl.TimeMs),
		MaxIterations:  stricter(b.MaxIterations, decl.MaxIterations),
		MaxCallDepth:   stricter(b.MaxCallDepth, decl.MaxCallDepth),
		MaxOutputLines: stricter(b.MaxOutputLines, decl.MaxOutputLines),
	}
}

func stricter(a, b *int64) *int64 {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	case *b < *a:
		return b
	}
	return a
}
