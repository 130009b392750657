package stdlib

import (
	"fmt"

	"github.com/thomasrohde/exprtree/pkg/evaluator"
)

func builtinAbs(args []int64) (int64, error) {
	if args[0] < 0 {
		return -args[0], nil
	}
	return args[0], nil
}

func builtinNeg(args []int64) (int64, error) {
	return -args[0], nil
}

func builtinSign(args []int64) (int64, error) {
	switch {
	case args[0] < 0:
		return -1, nil
	case args[0] > 0:
		return 1, nil
	}
	return 0, nil
}

// min(x, ...) → smallest
func builtinMin(args []int64) (int64, error) {
	if len(args) == 0 {
		return 0, fmt.Errorf("min: at least one argument required")
	}
	m := args[0]
	for _, a := range args[1:] {
		if a < m {
			m = a
		}
	}
	return m, nil
}

// max(x, ...) → largest
func builtinMax(args []int64) (int64, error) {
	if len(args) == 0 {
		return 0, fmt.Errorf("max: at least one argument required")
	}
	m := args[0]
	for _, a := range args[1:] {
		if a > m {
			m = a
		}
	}
	return m, nil
}

func builtinMod(args []int64) (int64, error) {
	if args[1] == 0 {
		return 0, evaluator.ErrDivisionByZero
	}
	return args[0] % args[1], nil
}

// pow uses square-and-multiply; overflow wraps like the other operators.
func builtinPow(args []int64) (int64, error) {
	base, exp := args[0], args[1]
	if exp < 0 {
		return 0, fmt.Errorf("pow: negative exponent %d", exp)
	}
	result := int64(1)
	for exp > 0 {
		if exp&1 == 1 {
			result *= base
		}
		base *= base
		exp >>= 1
	}
	return result, nil
}
