package diagnostics_test

import (
	"strings"
	"testing"

	"github.com/thomasrohde/exprtree/pkg/ast"
	"github.com/thomasrohde/exprtree/pkg/diagnostics"
)

func TestMakeDiag(t *testing.T) {
	span := &ast.Span{File: "test.yaml", StartLine: 1, StartCol: 1, EndLine: 1, EndCol: 5}
	d := diagnostics.MakeDiag(diagnostics.EFixture, "unknown node 'loop'", span, "check the node key")

	if d.Code != diagnostics.EFixture {
		t.Errorf("got Code = %q, want %q", d.Code, diagnostics.EFixture)
	}
	if d.Message != "unknown node 'loop'" {
		t.Errorf("got Message = %q, want %q", d.Message, "unknown node 'loop'")
	}
}

func TestFormatDiagnosticPretty(t *testing.T) {
	span := &ast.Span{File: "test.yaml", StartLine: 3, StartCol: 5, EndLine: 3, EndCol: 10}
	d := diagnostics.MakeDiag(diagnostics.EUnbound, "variable 'x' is never assigned", span, "assign 'x' before reading it")

	out := diagnostics.FormatDiagnostic(d, true)
	if !strings.Contains(out, "error[E_UNBOUND]") {
		t.Errorf("expected error code in output, got: %s", out)
	}
	if !strings.Contains(out, "test.yaml:3:5") {
		t.Errorf("expected location in output, got: %s", out)
	}
	if !strings.Contains(out, "hint:") {
		t.Errorf("expected hint in output, got: %s", out)
	}
}

func TestFormatDiagnosticPrettyNoFile(t *testing.T) {
	span := &ast.Span{StartLine: 2, StartCol: 1}
	out := diagnostics.FormatDiagnostic(diagnostics.MakeDiag(diagnostics.EArith, "division by zero", span, ""), true)
	if !strings.Contains(out, "<input>:2:1") {
		t.Errorf("expected <input> location, got: %s", out)
	}
}

func TestFormatDiagnosticJSON(t *testing.T) {
	d := diagnostics.MakeDiag(diagnostics.EFixture, "bad node", nil, "")
	out := diagnostics.FormatDiagnostic(d, false)
	if !strings.Contains(out, `"code":"E_FIXTURE"`) {
		t.Errorf("expected JSON code in output, got: %s", out)
	}
}

func TestIsRuntime(t *testing.T) {
	if !diagnostics.IsRuntime(diagnostics.EArith) {
		t.Error("E_ARITH should be a runtime code")
	}
	if diagnostics.IsRuntime(diagnostics.EFixture) {
		t.Error("E_FIXTURE should not be a runtime code")
	}
}
