// Package diagnostics defines diagnostic types for fixture, validation and
// runtime errors.
package diagnostics

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/thomasrohde/exprtree/pkg/ast"
)

// Diagnostic code constants.
const (
	EFixture      = "E_FIXTURE"
	EAst          = "E_AST"
	EDupParam     = "E_DUP_PARAM"
	EUnbound      = "E_UNBOUND"
	EUnknownFn    = "E_UNKNOWN_FN"
	EArity        = "E_ARITY"
	EUndefinedVar = "E_UNDEFINED_VAR"
	EArith        = "E_ARITH"
	EFn           = "E_FN"
	EBudget       = "E_BUDGET"
	ECancelled    = "E_CANCELLED"
	EIO           = "E_IO"
	EConfig       = "E_CONFIG"
	EStore        = "E_STORE"
)

// Diagnostic represents a fixture, validation, or runtime diagnostic.
type Diagnostic struct {
	Code    string    `json:"code"`
	Message string    `json:"message"`
	Span    *ast.Span `json:"span,omitempty"`
	Hint    string    `json:"hint,omitempty"`
}

// MakeDiag creates a new Diagnostic.
func MakeDiag(code, message string, span *ast.Span, hint string) Diagnostic {
	return Diagnostic{
		Code:    code,
		Message: message,
		Span:    span,
		Hint:    hint,
	}
}

// IsRuntime reports whether code is raised during evaluation rather than
// while loading or validating a program.
func IsRuntime(code string) bool {
	switch code {
	case EUndefinedVar, EArith, EFn, EBudget, ECancelled, EIO:
		return true
	case EUnknownFn, EArity:
		// raised both statically and at call time
		return true
	}
	return false
}

// FormatDiagnostic formats a single diagnostic for display.
func FormatDiagnostic(d Diagnostic, pretty bool) string {
	if !pretty {
		b, _ := json.Marshal(d)
		return string(b)
	}
	loc := "<unknown>"
	if d.Span != nil {
		file := d.Span.File
		if file == "" {
			file = "<input>"
		}
		loc = fmt.Sprintf("%s:%d:%d", file, d.Span.StartLine, d.Span.StartCol)
	}
	out := fmt.Sprintf("error[%s]: %s\n  --> %s", d.Code, d.Message, loc)
	if d.Hint != "" {
		out += fmt.Sprintf("\n  hint: %s", d.Hint)
	}
	return out
}

// FormatDiagnostics formats a slice of diagnostics for display.
func FormatDiagnostics(diags []Diagnostic, pretty bool) string {
	if !pretty {
		b, _ := json.Marshal(diags)
		return string(b)
	}
	parts := make([]string, len(diags))
	for i, d := range diags {
		parts[i] = FormatDiagnostic(d, true)
	}
	return strings.Join(parts, "\n\n")
}
