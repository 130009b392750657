package runtime_test

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/thomasrohde/exprtree/pkg/diagnostics"
	"github.com/thomasrohde/exprtree/pkg/evaluator"
	"github.com/thomasrohde/exprtree/pkg/runtime"
)

func evalLine(t *testing.T, s *runtime.Session, line string) int64 {
	t.Helper()
	_, v, err := s.EvalSource(context.Background(), line, "<test>")
	if err != nil {
		t.Fatalf("%s: unexpected error: %v", line, err)
	}
	return v
}

func TestSessionPersistsState(t *testing.T) {
	var out bytes.Buffer
	s := runtime.New(runtime.WithOutput(&out)).NewSession()

	evalLine(t, s, "{assign: {name: x, value: 4}}")
	evalLine(t, s, "{def: {name: twice, params: [v], body: [{mul: [v, 2]}]}}")
	if got := evalLine(t, s, "{call: {name: twice, args: [x]}}"); got != 8 {
		t.Errorf("twice(x) = %d, want 8", got)
	}
	evalLine(t, s, "{print: {plus: [x, 1]}}")
	if out.String() != "> 5\n" {
		t.Errorf("output = %q", out.String())
	}

	vars := s.Variables()
	if vars["x"] != 4 || vars["v"] != 4 {
		t.Errorf("variables = %v", vars)
	}
	fns := s.Functions()
	if len(fns) != 1 || fns[0].Name != "twice" {
		t.Errorf("functions = %v", fns)
	}
	if len(s.History()) != 4 {
		t.Errorf("history has %d entries, want 4", len(s.History()))
	}
}

func TestSessionHazardsSurfaceAtRuntime(t *testing.T) {
	s := runtime.New(runtime.WithOutput(&bytes.Buffer{})).NewSession()

	_, _, err := s.EvalSource(context.Background(), "{print: y}", "<test>")
	if runtime.ErrorCode(err) != diagnostics.EUndefinedVar {
		t.Fatalf("expected E_UNDEFINED_VAR, got %v", err)
	}

	evalLine(t, s, "{assign: {name: y, value: 1}}")
	evalLine(t, s, "{print: y}")

	evalLine(t, s, "{def: {name: one, body: [1]}}")
	_, _, err = s.EvalSource(context.Background(), "{call: {name: one, args: [1]}}", "<test>")
	if runtime.ErrorCode(err) != diagnostics.EArity {
		t.Fatalf("expected E_ARITY, got %v", err)
	}

	// A hazard in an untaken branch does not reject the statement.
	if got := evalLine(t, s, "{ifelse: {cond: 1, then: 7, else: {div: [1, 0]}}}"); got != 7 {
		t.Errorf("ifelse = %d, want 7", got)
	}
}

func TestSessionRuntimeErrorKeepsSession(t *testing.T) {
	s := runtime.New(runtime.WithOutput(&bytes.Buffer{})).NewSession()
	evalLine(t, s, "{assign: {name: z, value: 0}}")

	_, _, err := s.EvalSource(context.Background(), "{div: [1, z]}", "<test>")
	var rtErr *evaluator.RuntimeError
	if !errors.As(err, &rtErr) || rtErr.Code != diagnostics.EArith {
		t.Fatalf("expected E_ARITH, got %v", err)
	}
	if len(s.History()) != 1 {
		t.Errorf("failed statement should not enter history")
	}
	if got := evalLine(t, s, "{plus: [z, 2]}"); got != 2 {
		t.Errorf("z + 2 = %d", got)
	}
}

func TestSessionDecodeError(t *testing.T) {
	s := runtime.New().NewSession()
	_, _, err := s.EvalSource(context.Background(), "{print: [", "<test>")
	expectDiagCode(t, err, diagnostics.EFixture)
}

func TestSessionReset(t *testing.T) {
	s := runtime.New(runtime.WithOutput(&bytes.Buffer{})).NewSession()
	evalLine(t, s, "{assign: {name: a, value: 1}}")
	evalLine(t, s, "{def: {name: f, body: [a]}}")

	s.Reset()
	if len(s.VariableNames()) != 0 || len(s.Functions()) != 0 || len(s.History()) != 0 {
		t.Errorf("session not empty after reset")
	}
}
