// Package runtime provides the top-level exprtree runtime orchestrator.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kr/pretty"

	"github.com/thomasrohde/exprtree/pkg/ast"
	"github.com/thomasrohde/exprtree/pkg/config"
	"github.com/thomasrohde/exprtree/pkg/diagnostics"
	"github.com/thomasrohde/exprtree/pkg/evaluator"
	"github.com/thomasrohde/exprtree/pkg/fixture"
	"github.com/thomasrohde/exprtree/pkg/formatter"
	"github.com/thomasrohde/exprtree/pkg/stdlib"
	"github.com/thomasrohde/exprtree/pkg/store"
	"github.com/thomasrohde/exprtree/pkg/validator"
)

// Result holds the outcome of a program execution.
type Result struct {
	RunID      string
	Value      int64
	Variables  map[string]int64
	Functions  []string
	Iterations int64
	Calls      int64
	Output     int64 // lines printed
	// RecordID is the history row id, zero when no store is configured.
	RecordID int64
	// Warnings are static hazards found before the run. They only become
	// errors if the offending node is evaluated.
	Warnings []diagnostics.Diagnostic
}

// Runtime wires together all exprtree components for program execution.
type Runtime struct {
	stdlib   *stdlib.Registry
	output   io.Writer
	budget   evaluator.Budget
	trace    func(event evaluator.TraceEvent)
	logger   *slog.Logger
	runID    string
	store    *store.Store
	validate bool
}

// Option is a functional option for configuring the Runtime.
type Option func(*Runtime)

// WithStdlib sets the builtin registry. A nil registry disables builtins.
func WithStdlib(r *stdlib.Registry) Option {
	return func(rt *Runtime) {
		rt.stdlib = r
	}
}

// WithOutput sets the writer Print statements write to.
func WithOutput(w io.Writer) Option {
	return func(rt *Runtime) {
		rt.output = w
	}
}

// WithBudget sets the host budget. Program budgets can only tighten it.
func WithBudget(b evaluator.Budget) Option {
	return func(rt *Runtime) {
		rt.budget = b
	}
}

// WithRunID sets the run ID for trace events and history. By default each
// run gets a fresh UUID.
func WithRunID(id string) Option {
	return func(rt *Runtime) {
		rt.runID = id
	}
}

// WithTrace sets the trace callback.
func WithTrace(fn func(event evaluator.TraceEvent)) Option {
	return func(rt *Runtime) {
		rt.trace = fn
	}
}

// WithLogger sets the structured debug logger.
func WithLogger(l *slog.Logger) Option {
	return func(rt *Runtime) {
		rt.logger = l
	}
}

// WithStore records every run in s.
func WithStore(s *store.Store) Option {
	return func(rt *Runtime) {
		rt.store = s
	}
}

// WithValidation toggles the static check before execution. When disabled,
// errors such as unknown functions surface at runtime instead.
func WithValidation(on bool) Option {
	return func(rt *Runtime) {
		rt.validate = on
	}
}

// WithConfig applies the budget and builtin settings of cfg.
func WithConfig(cfg *config.Config) Option {
	return func(rt *Runtime) {
		rt.budget = cfg.EvaluatorBudget()
		if !cfg.BuiltinsEnabled() {
			rt.stdlib = nil
		}
	}
}

// New creates a new Runtime with the given options.
// By default the builtin defaults are registered and programs are validated.
func New(opts ...Option) *Runtime {
	stdlibReg := stdlib.NewRegistry()
	stdlib.RegisterDefaults(stdlibReg)

	rt := &Runtime{
		stdlib:   stdlibReg,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		validate: true,
	}
	for _, opt := range opts {
		opt(rt)
	}
	return rt
}

// Run decodes, validates, and executes a program on a fresh environment.
// When execution fails the partial result is returned alongside the error.
func (rt *Runtime) Run(ctx context.Context, source []byte, filename string) (*Result, error) {
	program, warnings, err := rt.load(source, filename)
	if err != nil {
		return nil, err
	}
	result, err := rt.Execute(ctx, program, filename)
	if result != nil {
		result.Warnings = warnings
	}
	return result, err
}

// Execute runs an already decoded program.
func (rt *Runtime) Execute(ctx context.Context, program *ast.Program, filename string) (*Result, error) {
	if program == nil {
		return nil, &DiagnosticError{Diagnostics: []diagnostics.Diagnostic{
			diagnostics.MakeDiag(diagnostics.EAst, "program is nil", nil, ""),
		}}
	}
	runID := rt.runID
	if runID == "" {
		runID = uuid.NewString()
	}

	env := evaluator.NewEnvironment()
	started := time.Now()
	res, execErr := evaluator.Execute(ctx, program, env, rt.execOptions(runID))
	elapsed := time.Since(started)

	result := &Result{
		RunID:     runID,
		Variables: env.Variables(),
		Functions: env.FunctionNames(),
	}
	if res != nil {
		result.Value = res.Value
		result.Iterations = res.Tracker.Iterations
		result.Calls = res.Tracker.Calls
		result.Output = res.Tracker.OutputLines
	}
	rt.logger.Debug("run finished",
		slog.String("run_id", runID),
		slog.Duration("elapsed", elapsed),
		slog.String("status", statusOf(execErr)))

	if rt.store != nil {
		name := program.Name
		if name == "" {
			name = filename
		}
		// A cancelled run is still recorded.
		id, err := rt.store.RecordRun(context.WithoutCancel(ctx), store.Run{
			RunID:       runID,
			Program:     name,
			StartedAt:   started,
			DurationMs:  elapsed.Milliseconds(),
			Status:      statusOf(execErr),
			Message:     messageOf(execErr),
			Value:       result.Value,
			Iterations:  result.Iterations,
			Calls:       result.Calls,
			OutputLines: result.Output,
			Variables:   result.Variables,
		})
		switch {
		case err != nil && execErr == nil:
			return result, &StoreError{Err: err}
		case err != nil:
			rt.logger.Error("record run failed",
				slog.String("run_id", runID),
				slog.String("status", statusOf(execErr)),
				slog.String("error", err.Error()))
			return result, errors.Join(execErr, &StoreError{Err: err})
		}
		result.RecordID = id
	}

	if execErr != nil {
		return result, execErr
	}
	return result, nil
}

// Check decodes and validates a program without executing it.
func (rt *Runtime) Check(source []byte, filename string) []diagnostics.Diagnostic {
	program, diags := fixture.Decode(source, filename)
	if len(diags) > 0 {
		return diags
	}
	return validator.ValidateIn(program, rt.scope(nil))
}

// Format decodes and formats a program.
func (rt *Runtime) Format(source []byte, filename string) (string, error) {
	program, diags := fixture.Decode(source, filename)
	if len(diags) > 0 {
		return "", &DiagnosticError{Diagnostics: diags}
	}
	return formatter.Format(program), nil
}

// Dump decodes a program and renders its tree as Go syntax.
func (rt *Runtime) Dump(source []byte, filename string) (string, error) {
	program, diags := fixture.Decode(source, filename)
	if len(diags) > 0 {
		return "", &DiagnosticError{Diagnostics: diags}
	}
	return fmt.Sprintf("%# v\n", pretty.Formatter(program)), nil
}

// load decodes and, when validation is on, checks a program. Only
// structural diagnostics stop the run; hazards are returned as warnings.
func (rt *Runtime) load(source []byte, filename string) (*ast.Program, []diagnostics.Diagnostic, error) {
	program, diags := fixture.Decode(source, filename)
	if len(diags) > 0 {
		return nil, nil, &DiagnosticError{Diagnostics: diags}
	}
	if !rt.validate {
		return program, nil, nil
	}
	blocking, hazards := validator.Partition(validator.ValidateIn(program, rt.scope(nil)))
	if len(blocking) > 0 {
		return nil, nil, &DiagnosticError{Diagnostics: blocking}
	}
	rt.warn(hazards)
	return program, hazards, nil
}

func (rt *Runtime) warn(hazards []diagnostics.Diagnostic) {
	for _, d := range hazards {
		attrs := []any{slog.String("code", d.Code), slog.String("message", d.Message)}
		if d.Span != nil {
			attrs = append(attrs, slog.Int("line", d.Span.StartLine), slog.Int("col", d.Span.StartCol))
		}
		rt.logger.Warn("static hazard", attrs...)
	}
}

// scope describes the builtins and, for sessions, the names already bound.
func (rt *Runtime) scope(env *evaluator.Environment) *validator.Scope {
	sc := &validator.Scope{Builtins: make(map[string]int)}
	if rt.stdlib != nil {
		for name, fn := range rt.stdlib.All() {
			sc.Builtins[name] = fn.Arity
		}
	}
	if env != nil {
		sc.Variables = env.VariableNames()
		sc.Functions = make(map[string]int)
		for _, name := range env.FunctionNames() {
			if fn, ok := env.Function(name); ok {
				sc.Functions[name] = len(fn.Params)
			}
		}
	}
	return sc
}

// execOptions constructs evaluator options from the runtime's configuration.
func (rt *Runtime) execOptions(runID string) evaluator.ExecOptions {
	var builtins map[string]*evaluator.BuiltinFn
	if rt.stdlib != nil {
		builtins = rt.stdlib.Builtins()
	}
	return evaluator.ExecOptions{
		Output:   rt.output,
		Budget:   rt.budget,
		Builtins: builtins,
		Trace:    rt.trace,
		RunID:    runID,
		Logger:   rt.logger,
	}
}

// DiagnosticError wraps diagnostics as an error.
type DiagnosticError struct {
	Diagnostics []diagnostics.Diagnostic
}

func (e *DiagnosticError) Error() string {
	msgs := make([]string, len(e.Diagnostics))
	for i, d := range e.Diagnostics {
		msgs[i] = fmt.Sprintf("%s: %s", d.Code, d.Message)
	}
	return strings.Join(msgs, "; ")
}

// StoreError reports a run that executed but could not be recorded.
type StoreError struct {
	Err error
}

func (e *StoreError) Error() string { return "record run: " + e.Err.Error() }
func (e *StoreError) Unwrap() error { return e.Err }

// ErrorCode returns the diagnostic code that best describes err.
func ErrorCode(err error) string {
	var rtErr *evaluator.RuntimeError
	var diagErr *DiagnosticError
	var storeErr *StoreError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &rtErr):
		return rtErr.Code
	case errors.As(err, &diagErr) && len(diagErr.Diagnostics) > 0:
		return diagErr.Diagnostics[0].Code
	case errors.As(err, &storeErr):
		return diagnostics.EStore
	}
	return diagnostics.EIO
}

func statusOf(err error) string {
	if err == nil {
		return store.StatusOK
	}
	return ErrorCode(err)
}

func messageOf(err error) string {
	var rtErr *evaluator.RuntimeError
	if errors.As(err, &rtErr) {
		return rtErr.Message
	}
	if err != nil {
		return err.Error()
	}
	return ""
}
