// Package evaluator reduces exprtree nodes to integers against an Env.
package evaluator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/thomasrohde/exprtree/pkg/ast"
	"github.com/thomasrohde/exprtree/pkg/diagnostics"
)

// Sentinel causes carried by RuntimeError. Use errors.Is to match them.
var (
	ErrUndefinedVariable = errors.New("undefined variable")
	ErrDivisionByZero    = errors.New("division by zero")
	ErrUndefinedFunction = errors.New("undefined function")
	ErrArityMismatch     = errors.New("arity mismatch")
	ErrBudgetExceeded    = errors.New("budget exceeded")
)

// RuntimeError aborts evaluation of the current run. Node and Name identify
// the node kind and identifier (if any) that failed.
type RuntimeError struct {
	Code    string
	Message string
	Node    string
	Name    string
	Span    *ast.Span
	Err     error
}

func (e *RuntimeError) Error() string {
	return e.Message
}

func (e *RuntimeError) Unwrap() error {
	return e.Err
}

// BuiltinFn is a host function reachable through FunctionCall when no
// user function of the same name is defined. Arity < 0 means variadic.
type BuiltinFn struct {
	Name    string
	Arity   int
	Execute func(args []int64) (int64, error)
}

// ExecOptions configures program execution.
type ExecOptions struct {
	Output   io.Writer
	Budget   Budget
	Builtins map[string]*BuiltinFn
	Trace    func(event TraceEvent)
	RunID    string
	Logger   *slog.Logger
}

// ExecResult holds the result of a program execution.
type ExecResult struct {
	Value   int64
	Tracker BudgetTracker
}

type evaluator struct {
	ctx       context.Context
	env       Env
	opts      ExecOptions
	out       io.Writer
	log       *slog.Logger
	budget    Budget
	tracker   BudgetTracker
	startTime time.Time
	depth     int64
	maxDepth  int64
}

func newEvaluator(ctx context.Context, env Env, opts ExecOptions, decl *ast.BudgetDecl) *evaluator {
	now := time.Now()
	ev := &evaluator{
		ctx:       ctx,
		env:       env,
		opts:      opts,
		out:       opts.Output,
		log:       opts.Logger,
		budget:    mergeBudget(opts.Budget, decl),
		startTime: now,
		tracker:   BudgetTracker{StartMs: now.UnixMilli()},
		maxDepth:  DefaultMaxCallDepth,
	}
	if ev.out == nil {
		ev.out = os.Stdout
	}
	if ev.log == nil {
		ev.log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if ev.budget.MaxCallDepth != nil {
		ev.maxDepth = *ev.budget.MaxCallDepth
	}
	return ev
}

// Execute evaluates the program's statements in order against env and
// returns the value of the last one. The first error aborts the run; the
// returned result still reports the resources consumed up to that point.
func Execute(ctx context.Context, program *ast.Program, env Env, opts ExecOptions) (*ExecResult, error) {
	if program == nil {
		return nil, errors.New("evaluator: nil program")
	}
	if env == nil {
		return nil, errors.New("evaluator: nil environment")
	}
	ev := newEvaluator(ctx, env, opts, program.Budget)

	span := program.Span
	ev.emit(TraceRunStart, &span, nil)

	var last int64
	for _, stmt := range program.Statements {
		val, err := ev.statement(stmt)
		if err != nil {
			ev.emit(TraceRunEnd, &span, map[string]any{"error": err.Error()})
			return &ExecResult{Tracker: ev.tracker}, err
		}
		last = val
	}

	ev.emit(TraceRunEnd, &span, nil)
	return &ExecResult{Value: last, Tracker: ev.tracker}, nil
}

// Evaluate reduces a single node against env.
func Evaluate(ctx context.Context, node ast.Node, env Env, opts ExecOptions) (int64, error) {
	if env == nil {
		return 0, errors.New("evaluator: nil environment")
	}
	ev := newEvaluator(ctx, env, opts, nil)
	return ev.statement(node)
}

func (ev *evaluator) statement(stmt ast.Node) (int64, error) {
	if err := ev.checkpoint(stmt); err != nil {
		return 0, err
	}
	ev.tracker.Statements++

	span := spanOf(stmt)
	ev.emit(TraceStmtStart, span, nil)
	val, err := ev.eval(stmt)
	if err != nil {
		return 0, err
	}
	ev.emit(TraceStmtEnd, span, nil)
	return val, nil
}

// checkpoint is the cooperative cancellation hook, called before every
// top-level statement, loop iteration and function-body statement.
func (ev *evaluator) checkpoint(at ast.Node) error {
	if ev.budget.TimeMs != nil {
		if time.Since(ev.startTime).Milliseconds() >= *ev.budget.TimeMs {
			return ev.budgetError(at, fmt.Sprintf("time budget exceeded (%dms)", *ev.budget.TimeMs))
		}
	}
	if err := ev.ctx.Err(); err != nil {
		return &RuntimeError{
			Code:    diagnostics.ECancelled,
			Message: fmt.Sprintf("evaluation cancelled: %s", err),
			Node:    kindOf(at),
			Span:    spanOf(at),
			Err:     err,
		}
	}
	return nil
}

func (ev *evaluator) budgetError(at ast.Node, msg string) error {
	span := spanOf(at)
	ev.emit(TraceBudgetExceeded, span, map[string]any{"reason": msg})
	return &RuntimeError{
		Code:    diagnostics.EBudget,
		Message: msg,
		Node:    kindOf(at),
		Span:    span,
		Err:     ErrBudgetExceeded,
	}
}

func (ev *evaluator) fail(n ast.Node, name, code string, cause error, format string, args ...any) error {
	return &RuntimeError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Node:    kindOf(n),
		Name:    name,
		Span:    spanOf(n),
		Err:     cause,
	}
}

func (ev *evaluator) eval(node ast.Node) (int64, error) {
	switch n := node.(type) {
	case *ast.Number:
		return n.Value, nil

	case *ast.Variable:
		val, ok := ev.env.Variable(n.Name)
		if !ok {
			return 0, ev.fail(n, n.Name, diagnostics.EUndefinedVar, ErrUndefinedVariable,
				"undefined variable '%s'", n.Name)
		}
		return val, nil

	case *ast.Assignment:
		val, err := ev.eval(n.Value)
		if err != nil {
			return 0, err
		}
		ev.env.SetVariable(n.Name, val)
		return val, nil

	case *ast.BinaryExpr:
		return ev.evalBinary(n)

	case *ast.If:
		cond, err := ev.eval(n.Condition)
		if err != nil {
			return 0, err
		}
		if cond != 0 {
			return ev.eval(n.Body)
		}
		return 0, nil

	case *ast.IfElse:
		cond, err := ev.eval(n.Condition)
		if err != nil {
			return 0, err
		}
		if cond != 0 {
			return ev.eval(n.Body)
		}
		return ev.eval(n.Else)

	case *ast.While:
		return ev.evalWhile(n)

	case *ast.Print:
		return ev.evalPrint(n)

	case *ast.FunctionDefinition:
		ev.env.DefineFunction(n.Name, &Function{
			Name:   n.Name,
			Params: n.Params,
			Body:   n.Body,
			Span:   n.Span,
		})
		ev.emit(TraceFnDefine, &n.Span, map[string]any{"function": n.Name, "params": len(n.Params)})
		return 0, nil

	case *ast.FunctionCall:
		return ev.evalCall(n)

	case nil:
		return 0, &RuntimeError{Code: diagnostics.EAst, Message: "missing node"}

	default:
		return 0, &RuntimeError{
			Code:    diagnostics.EAst,
			Message: fmt.Sprintf("unsupported node type: %T", node),
		}
	}
}

func (ev *evaluator) evalBinary(n *ast.BinaryExpr) (int64, error) {
	left, err := ev.eval(n.Left)
	if err != nil {
		return 0, err
	}
	right, err := ev.eval(n.Right)
	if err != nil {
		return 0, err
	}

	switch n.Op {
	case ast.OpPlus:
		return left + right, nil
	case ast.OpMinus:
		return left - right, nil
	case ast.OpMultiply:
		return left * right, nil
	case ast.OpDivide:
		if right == 0 {
			return 0, ev.fail(n, "", diagnostics.EArith, ErrDivisionByZero,
				"division by zero (%d / 0)", left)
		}
		return left / right, nil
	case ast.OpEqual:
		return truth(left == right), nil
	case ast.OpNotEqual:
		return truth(left != right), nil
	case ast.OpLess:
		return truth(left < right), nil
	case ast.OpGreater:
		return truth(left > right), nil
	}
	return 0, ev.fail(n, "", diagnostics.EAst, nil, "unknown binary operator '%s'", n.Op)
}

func (ev *evaluator) evalWhile(n *ast.While) (int64, error) {
	ev.emit(TraceLoopStart, &n.Span, nil)
	var iterations int64
	for {
		if err := ev.checkpoint(n); err != nil {
			return 0, err
		}
		cond, err := ev.eval(n.Condition)
		if err != nil {
			return 0, err
		}
		if cond == 0 {
			break
		}
		if ev.budget.MaxIterations != nil && ev.tracker.Iterations >= *ev.budget.MaxIterations {
			return 0, ev.budgetError(n, fmt.Sprintf("iteration budget exceeded (max %d)", *ev.budget.MaxIterations))
		}
		ev.tracker.Iterations++
		iterations++

		for _, stmt := range n.Body {
			if _, err := ev.eval(stmt); err != nil {
				return 0, err
			}
		}
	}
	ev.emit(TraceLoopEnd, &n.Span, map[string]any{"iterations": iterations})
	return 0, nil
}

func (ev *evaluator) evalPrint(n *ast.Print) (int64, error) {
	val, err := ev.eval(n.Value)
	if err != nil {
		return 0, err
	}
	if ev.budget.MaxOutputLines != nil && ev.tracker.OutputLines >= *ev.budget.MaxOutputLines {
		return 0, ev.budgetError(n, fmt.Sprintf("output budget exceeded (max %d lines)", *ev.budget.MaxOutputLines))
	}
	if _, err := fmt.Fprintf(ev.out, "> %d\n", val); err != nil {
		return 0, ev.fail(n, "", diagnostics.EIO, err, "print failed: %s", err)
	}
	ev.tracker.OutputLines++
	ev.emit(TracePrint, &n.Span, map[string]any{"value": val})
	return 0, nil
}

func (ev *evaluator) evalCall(n *ast.FunctionCall) (int64, error) {
	fn, ok := ev.env.Function(n.Name)
	if !ok {
		if b, ok := ev.opts.Builtins[n.Name]; ok {
			return ev.callBuiltin(n, b)
		}
		return 0, ev.fail(n, n.Name, diagnostics.EUnknownFn, ErrUndefinedFunction,
			"undefined function '%s'", n.Name)
	}
	if len(n.Args) != len(fn.Params) {
		return 0, ev.fail(n, n.Name, diagnostics.EArity, ErrArityMismatch,
			"function '%s' expects %d argument(s), got %d", n.Name, len(fn.Params), len(n.Args))
	}

	args, err := ev.evalArgs(n.Args)
	if err != nil {
		return 0, err
	}

	if ev.depth >= ev.maxDepth {
		return 0, ev.budgetError(n, fmt.Sprintf("call depth budget exceeded (max %d)", ev.maxDepth))
	}
	ev.depth++
	defer func() { ev.depth-- }()
	ev.tracker.Calls++

	// Parameters live in the shared environment; there is no call frame.
	for i, param := range fn.Params {
		ev.env.SetVariable(param, args[i])
	}

	ev.log.Debug("function call",
		slog.String("function", n.Name),
		slog.Int("argument-count", len(args)),
		slog.Int64("depth", ev.depth))
	ev.emit(TraceFnCallStart, &n.Span, map[string]any{"function": n.Name})

	var result int64
	for _, stmt := range fn.Body {
		if err := ev.checkpoint(stmt); err != nil {
			return 0, err
		}
		result, err = ev.eval(stmt)
		if err != nil {
			return 0, err
		}
	}

	ev.emit(TraceFnCallEnd, &n.Span, map[string]any{"function": n.Name, "value": result})
	return result, nil
}

func (ev *evaluator) callBuiltin(n *ast.FunctionCall, b *BuiltinFn) (int64, error) {
	if b.Arity >= 0 && len(n.Args) != b.Arity {
		return 0, ev.fail(n, n.Name, diagnostics.EArity, ErrArityMismatch,
			"builtin '%s' expects %d argument(s), got %d", n.Name, b.Arity, len(n.Args))
	}
	args, err := ev.evalArgs(n.Args)
	if err != nil {
		return 0, err
	}
	ev.tracker.Calls++
	ev.log.Debug("builtin call", slog.String("function", n.Name), slog.Int("argument-count", len(args)))

	result, err := b.Execute(args)
	if err != nil {
		if errors.Is(err, ErrDivisionByZero) {
			return 0, ev.fail(n, n.Name, diagnostics.EArith, err, "builtin '%s': %s", n.Name, err)
		}
		return 0, ev.fail(n, n.Name, diagnostics.EFn, err, "builtin '%s' error: %s", n.Name, err)
	}
	return result, nil
}

func (ev *evaluator) evalArgs(nodes []ast.Node) ([]int64, error) {
	args := make([]int64, len(nodes))
	for i, arg := range nodes {
		val, err := ev.eval(arg)
		if err != nil {
			return nil, err
		}
		args[i] = val
	}
	return args, nil
}

func truth(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

func kindOf(n ast.Node) string {
	if n == nil {
		return ""
	}
	return n.Kind()
}

// spanOf returns nil for nodes without source positions (hand-built trees).
func spanOf(n ast.Node) *ast.Span {
	if n == nil {
		return nil
	}
	span := n.NodeSpan()
	if span.StartLine == 0 {
		return nil
	}
	return &span
}
