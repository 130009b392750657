package runtime

import (
	"context"

	"github.com/google/uuid"

	"github.com/thomasrohde/exprtree/pkg/ast"
	"github.com/thomasrohde/exprtree/pkg/evaluator"
	"github.com/thomasrohde/exprtree/pkg/fixture"
	"github.com/thomasrohde/exprtree/pkg/validator"
)

// Session evaluates statements one at a time against a persistent
// environment. Each statement gets the runtime's budget afresh.
type Session struct {
	rt      *Runtime
	env     *evaluator.Environment
	runID   string
	history []ast.Node
}

// NewSession starts a session with an empty environment.
func (rt *Runtime) NewSession() *Session {
	runID := rt.runID
	if runID == "" {
		runID = uuid.NewString()
	}
	return &Session{rt: rt, env: evaluator.NewEnvironment(), runID: runID}
}

// EvalSource decodes one statement from src and evaluates it.
func (s *Session) EvalSource(ctx context.Context, src, filename string) (ast.Node, int64, error) {
	stmt, diags := fixture.DecodeNode([]byte(src), filename)
	if len(diags) > 0 {
		return nil, 0, &DiagnosticError{Diagnostics: diags}
	}
	v, err := s.Eval(ctx, stmt)
	return stmt, v, err
}

// Eval validates stmt against the names already bound and evaluates it.
// Structural problems reject the statement; hazards are logged and left to
// surface at runtime. Only statements that complete are added to the history.
func (s *Session) Eval(ctx context.Context, stmt ast.Node) (int64, error) {
	program := &ast.Program{Statements: []ast.Node{stmt}}
	if s.rt.validate {
		blocking, hazards := validator.Partition(validator.ValidateIn(program, s.rt.scope(s.env)))
		if len(blocking) > 0 {
			return 0, &DiagnosticError{Diagnostics: blocking}
		}
		s.rt.warn(hazards)
	}

	res, err := evaluator.Execute(ctx, program, s.env, s.rt.execOptions(s.runID))
	if err != nil {
		return 0, err
	}
	s.history = append(s.history, stmt)
	return res.Value, nil
}

// Variables returns a copy of the session's variables.
func (s *Session) Variables() map[string]int64 {
	return s.env.Variables()
}

// VariableNames returns the bound variable names in sorted order.
func (s *Session) VariableNames() []string {
	return s.env.VariableNames()
}

// Functions returns the defined functions in name order.
func (s *Session) Functions() []*evaluator.Function {
	names := s.env.FunctionNames()
	out := make([]*evaluator.Function, 0, len(names))
	for _, name := range names {
		if fn, ok := s.env.Function(name); ok {
			out = append(out, fn)
		}
	}
	return out
}

// History returns the statements evaluated successfully so far.
func (s *Session) History() []ast.Node {
	return append([]ast.Node(nil), s.history...)
}

// Reset clears variables, functions and history.
func (s *Session) Reset() {
	s.env.Reset()
	s.history = nil
}
