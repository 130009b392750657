// Package repl implements the interactive statement loop.
package repl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/lmorg/readline"

	"github.com/thomasrohde/exprtree/pkg/ast"
	"github.com/thomasrohde/exprtree/pkg/diagnostics"
	"github.com/thomasrohde/exprtree/pkg/evaluator"
	"github.com/thomasrohde/exprtree/pkg/formatter"
	"github.com/thomasrohde/exprtree/pkg/help"
	"github.com/thomasrohde/exprtree/pkg/runtime"
)

// Prompt is shown before every input line.
const Prompt = "exprtree> "

const source = "<repl>"

// LineReader supplies input lines. *readline.Instance satisfies it.
type LineReader interface {
	SetPrompt(prompt string)
	Readline() (string, error)
}

// NewTerminal returns a line editor on the controlling terminal.
func NewTerminal() LineReader {
	return readline.NewInstance()
}

// REPL reads statements and evaluates them in one session.
type REPL struct {
	session *runtime.Session
	in      LineReader
	out     io.Writer
}

// New creates a REPL. Print output goes wherever the session's runtime
// writes; results, listings and errors go to out.
func New(session *runtime.Session, in LineReader, out io.Writer) *REPL {
	return &REPL{session: session, in: in, out: out}
}

// Run loops until :quit, end of input or cancellation of ctx.
func (r *REPL) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		r.in.SetPrompt(Prompt)
		line, err := r.in.Readline()
		if err != nil {
			// Ctrl-D, Ctrl-C and closed input all end the session.
			return nil
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if quit := r.Exec(ctx, line); quit {
			return nil
		}
	}
}

// Exec handles one input line and reports whether the session should end.
func (r *REPL) Exec(ctx context.Context, line string) bool {
	if strings.HasPrefix(line, ":") {
		return r.command(line)
	}

	stmt, val, err := r.session.EvalSource(ctx, line, source)
	if err != nil {
		r.report(err)
		return false
	}
	switch n := stmt.(type) {
	case *ast.Print:
		// already written
	case *ast.FunctionDefinition:
		fmt.Fprintf(r.out, "defined %s(%s)\n", n.Name, strings.Join(n.Params, ", "))
	default:
		fmt.Fprintf(r.out, "= %d\n", val)
	}
	return false
}

func (r *REPL) command(line string) bool {
	fields := strings.Fields(line)
	switch fields[0] {
	case ":quit", ":q", ":exit":
		return true
	case ":vars":
		names := r.session.VariableNames()
		if len(names) == 0 {
			fmt.Fprintln(r.out, "(no variables)")
			break
		}
		vars := r.session.Variables()
		for _, name := range names {
			fmt.Fprintf(r.out, "%s = %d\n", name, vars[name])
		}
	case ":funcs":
		fns := r.session.Functions()
		if len(fns) == 0 {
			fmt.Fprintln(r.out, "(no functions)")
			break
		}
		for _, fn := range fns {
			fmt.Fprintf(r.out, "%s(%s)\n", fn.Name, strings.Join(fn.Params, ", "))
		}
	case ":list":
		history := r.session.History()
		if len(history) == 0 {
			fmt.Fprintln(r.out, "(empty)")
			break
		}
		for _, stmt := range history {
			fmt.Fprintln(r.out, formatter.FormatNode(stmt))
		}
	case ":reset":
		r.session.Reset()
		fmt.Fprintln(r.out, "session cleared")
	case ":help":
		if len(fields) > 1 {
			_, content, err := help.MatchTopic(fields[1])
			if err != nil {
				fmt.Fprintln(r.out, err)
				break
			}
			fmt.Fprint(r.out, content)
			break
		}
		fmt.Fprint(r.out, help.Topics["repl"])
		fmt.Fprint(r.out, help.Topics["syntax"])
	default:
		fmt.Fprintf(r.out, "unknown command '%s' (try :help)\n", fields[0])
	}
	return false
}

func (r *REPL) report(err error) {
	var diagErr *runtime.DiagnosticError
	var rtErr *evaluator.RuntimeError
	switch {
	case errors.As(err, &diagErr):
		fmt.Fprintln(r.out, diagnostics.FormatDiagnostics(diagErr.Diagnostics, true))
	case errors.As(err, &rtErr):
		diag := diagnostics.MakeDiag(rtErr.Code, rtErr.Message, rtErr.Span, "")
		fmt.Fprintln(r.out, diagnostics.FormatDiagnostic(diag, true))
	default:
		fmt.Fprintf(r.out, "error: %s\n", err)
	}
}
