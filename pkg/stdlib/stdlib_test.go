package stdlib_test

import (
	"errors"
	"testing"

	"github.com/thomasrohde/exprtree/pkg/evaluator"
	"github.com/thomasrohde/exprtree/pkg/stdlib"
)

func defaults() *stdlib.Registry {
	reg := stdlib.NewRegistry()
	stdlib.RegisterDefaults(reg)
	return reg
}

func call(t *testing.T, name string, args ...int64) (int64, error) {
	t.Helper()
	fn := defaults().Get(name)
	if fn == nil {
		t.Fatalf("builtin %q not registered", name)
	}
	if fn.Arity >= 0 && fn.Arity != len(args) {
		t.Fatalf("builtin %q takes %d args, test passed %d", name, fn.Arity, len(args))
	}
	return fn.Execute(args)
}

func TestBuiltins(t *testing.T) {
	tests := []struct {
		name string
		args []int64
		want int64
	}{
		{"abs", []int64{-5}, 5},
		{"abs", []int64{5}, 5},
		{"neg", []int64{3}, -3},
		{"sign", []int64{-9}, -1},
		{"sign", []int64{0}, 0},
		{"sign", []int64{9}, 1},
		{"min", []int64{4, -2, 7}, -2},
		{"max", []int64{4, -2, 7}, 7},
		{"min", []int64{1}, 1},
		{"mod", []int64{7, 3}, 1},
		{"mod", []int64{-7, 3}, -1},
		{"pow", []int64{2, 10}, 1024},
		{"pow", []int64{-3, 3}, -27},
		{"pow", []int64{5, 0}, 1},
		{"not", []int64{0}, 1},
		{"not", []int64{-4}, 0},
		{"and", []int64{1, 2, 3}, 1},
		{"and", []int64{1, 0, 3}, 0},
		{"and", nil, 1},
		{"or", []int64{0, 0, 5}, 1},
		{"or", []int64{0, 0}, 0},
	}
	for _, tt := range tests {
		got, err := call(t, tt.name, tt.args...)
		if err != nil {
			t.Errorf("%s(%v): unexpected error %v", tt.name, tt.args, err)
			continue
		}
		if got != tt.want {
			t.Errorf("%s(%v) = %d, want %d", tt.name, tt.args, got, tt.want)
		}
	}
}

func TestBuiltinErrors(t *testing.T) {
	if _, err := call(t, "mod", 1, 0); !errors.Is(err, evaluator.ErrDivisionByZero) {
		t.Errorf("mod by zero: got %v, want ErrDivisionByZero", err)
	}
	if _, err := call(t, "pow", 2, -1); err == nil {
		t.Error("pow with negative exponent should fail")
	}
	if _, err := call(t, "min"); err == nil {
		t.Error("min with no arguments should fail")
	}
	if _, err := call(t, "max"); err == nil {
		t.Error("max with no arguments should fail")
	}
}

func TestRegistryNamesSorted(t *testing.T) {
	names := defaults().Names()
	if len(names) != 10 {
		t.Fatalf("expected 10 builtins, got %d: %v", len(names), names)
	}
	for i := 1; i < len(names); i++ {
		if names[i-1] >= names[i] {
			t.Errorf("names not sorted: %v", names)
		}
	}
}

func TestRegistryBuiltinsTable(t *testing.T) {
	table := defaults().Builtins()
	abs, ok := table["abs"]
	if !ok {
		t.Fatal("abs missing from evaluator table")
	}
	if abs.Arity != 1 {
		t.Errorf("abs arity = %d, want 1", abs.Arity)
	}
	if got, _ := abs.Execute([]int64{-2}); got != 2 {
		t.Errorf("abs(-2) = %d", got)
	}
}
