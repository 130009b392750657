// Command exprtree is the CLI entry point.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/thomasrohde/exprtree/pkg/config"
	"github.com/thomasrohde/exprtree/pkg/diagnostics"
	"github.com/thomasrohde/exprtree/pkg/evaluator"
	"github.com/thomasrohde/exprtree/pkg/fixture"
	"github.com/thomasrohde/exprtree/pkg/help"
	"github.com/thomasrohde/exprtree/pkg/repl"
	"github.com/thomasrohde/exprtree/pkg/runtime"
	"github.com/thomasrohde/exprtree/pkg/store"
)

// Exit codes.
const (
	exitOK         = 0
	exitUsage      = 1
	exitDiagnostic = 2
	exitBudget     = 3
	exitRuntime    = 4
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: exprtree <command> [options]")
		fmt.Fprintln(os.Stderr, "commands: run, check, fmt, dump, trace, repl, history, config, help")
		os.Exit(exitUsage)
	}

	cmd := os.Args[1]
	switch cmd {
	case "run":
		os.Exit(cmdRun(os.Args[2:]))
	case "check":
		os.Exit(cmdCheck(os.Args[2:]))
	case "fmt":
		os.Exit(cmdFmt(os.Args[2:]))
	case "dump":
		os.Exit(cmdDump(os.Args[2:]))
	case "trace":
		os.Exit(cmdTrace(os.Args[2:]))
	case "repl":
		os.Exit(cmdRepl(os.Args[2:]))
	case "history":
		os.Exit(cmdHistory(os.Args[2:]))
	case "config":
		os.Exit(cmdConfig(os.Args[2:]))
	case "help", "--help", "-h":
		os.Exit(cmdHelp(os.Args[2:]))
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		os.Exit(exitUsage)
	}
}

func cmdRun(args []string) int {
	var file, tracePath string
	pretty := false
	record := false
	verbose := false
	noCheck := false
	showVars := false

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--pretty":
			pretty = true
		case "--trace":
			if i+1 < len(args) {
				i++
				tracePath = args[i]
			}
		case "--record":
			record = true
		case "--verbose":
			verbose = true
		case "--no-check":
			noCheck = true
		case "--vars":
			showVars = true
		default:
			if !strings.HasPrefix(args[i], "-") || args[i] == "-" {
				file = args[i]
			}
		}
	}

	if file == "" {
		fmt.Fprintln(os.Stderr, "usage: exprtree run <file> [--pretty] [--trace <file>] [--record] [--verbose] [--no-check] [--vars]")
		return exitUsage
	}

	source, filename, exitCode := readSource(file, pretty)
	if exitCode != 0 {
		return exitCode
	}

	cfg, exitCode := loadConfig(pretty)
	if exitCode != 0 {
		return exitCode
	}

	opts := []runtime.Option{
		runtime.WithConfig(cfg),
		runtime.WithOutput(os.Stdout),
		runtime.WithValidation(!noCheck),
	}
	if verbose {
		opts = append(opts, runtime.WithLogger(debugLogger()))
	}

	var trace *traceWriter
	if tracePath != "" {
		f, err := os.Create(tracePath)
		if err != nil {
			printDiag(diagnostics.EIO, fmt.Sprintf("cannot create trace file: %s", tracePath), pretty)
			return exitUsage
		}
		trace = newTraceWriter(f)
		opts = append(opts, runtime.WithTrace(trace.Write))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if record {
		st, code := openStore(ctx, cfg, pretty)
		if code != 0 {
			return code
		}
		defer st.Close()
		opts = append(opts, runtime.WithStore(st))
	}

	rt := runtime.New(opts...)
	result, execErr := rt.Run(ctx, source, filename)

	exit := exitOK
	if execErr != nil {
		exit = reportRunError(execErr, pretty)
	}
	if trace != nil {
		if err := trace.Close(); err != nil {
			printDiag(diagnostics.EIO, fmt.Sprintf("cannot write trace file %s: %s", tracePath, err), pretty)
			if exit == exitOK {
				exit = exitUsage
			}
		}
	}

	if exit == exitOK && showVars && result != nil {
		b, _ := json.Marshal(result.Variables)
		fmt.Println(string(b))
	}
	return exit
}

// reportRunError prints err as diagnostics and returns the exit code. A
// store failure that accompanies a failed run is printed after it.
func reportRunError(err error, pretty bool) int {
	var diagErr *runtime.DiagnosticError
	var rtErr *evaluator.RuntimeError
	var storeErr *runtime.StoreError
	hasStoreErr := errors.As(err, &storeErr)

	switch {
	case errors.As(err, &diagErr):
		fmt.Fprintln(os.Stderr, diagnostics.FormatDiagnostics(diagErr.Diagnostics, pretty))
		return exitDiagnostic
	case errors.As(err, &rtErr):
		diag := diagnostics.MakeDiag(rtErr.Code, rtErr.Message, rtErr.Span, "")
		fmt.Fprintln(os.Stderr, diagnostics.FormatDiagnostics([]diagnostics.Diagnostic{diag}, pretty))
		if hasStoreErr {
			printDiag(diagnostics.EStore, storeErr.Error(), pretty)
		}
		return exitCodeForDiag(rtErr.Code)
	case hasStoreErr:
		printDiag(diagnostics.EStore, storeErr.Error(), pretty)
		return exitUsage
	}
	fmt.Fprintln(os.Stderr, err.Error())
	return exitRuntime
}

func cmdCheck(args []string) int {
	var file string
	pretty := false

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--pretty":
			pretty = true
		default:
			if !strings.HasPrefix(args[i], "-") || args[i] == "-" {
				file = args[i]
			}
		}
	}

	if file == "" {
		fmt.Fprintln(os.Stderr, "usage: exprtree check <file> [--pretty]")
		return exitUsage
	}

	source, filename, exitCode := readSource(file, pretty)
	if exitCode != 0 {
		return exitCode
	}
	cfg, exitCode := loadConfig(pretty)
	if exitCode != 0 {
		return exitCode
	}

	rt := runtime.New(runtime.WithConfig(cfg))
	diags := rt.Check(source, filename)
	if len(diags) > 0 {
		fmt.Fprintln(os.Stderr, diagnostics.FormatDiagnostics(diags, pretty))
		return exitDiagnostic
	}

	// Valid program
	if pretty {
		fmt.Println("No errors found.")
	} else {
		fmt.Println("[]")
	}
	return exitOK
}

func cmdFmt(args []string) int {
	var file string
	write := false
	canonical := false

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--write":
			write = true
		case "--yaml":
			canonical = true
		default:
			if !strings.HasPrefix(args[i], "-") || args[i] == "-" {
				file = args[i]
			}
		}
	}

	if file == "" || (write && !canonical) {
		fmt.Fprintln(os.Stderr, "usage: exprtree fmt <file> [--yaml [--write]]")
		return exitUsage
	}

	source, filename, exitCode := readSource(file, false)
	if exitCode != 0 {
		return exitCode
	}

	if canonical {
		program, diags := fixture.Decode(source, filename)
		if len(diags) > 0 {
			fmt.Fprintln(os.Stderr, diagnostics.FormatDiagnostics(diags, false))
			return exitDiagnostic
		}
		out, err := fixture.Encode(program)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return exitDiagnostic
		}
		if write && file != "-" {
			if err := os.WriteFile(file, out, 0644); err != nil {
				fmt.Fprintf(os.Stderr, "error writing file: %s\n", err)
				return exitUsage
			}
			return exitOK
		}
		os.Stdout.Write(out)
		return exitOK
	}

	formatted, fmtErr := runtime.New().Format(source, filename)
	if fmtErr != nil {
		var diagErr *runtime.DiagnosticError
		if errors.As(fmtErr, &diagErr) {
			fmt.Fprintln(os.Stderr, diagnostics.FormatDiagnostics(diagErr.Diagnostics, false))
			return exitDiagnostic
		}
		fmt.Fprintln(os.Stderr, fmtErr.Error())
		return exitDiagnostic
	}
	fmt.Print(formatted)
	return exitOK
}

func cmdDump(args []string) int {
	var file string
	for _, arg := range args {
		if !strings.HasPrefix(arg, "-") || arg == "-" {
			file = arg
		}
	}
	if file == "" {
		fmt.Fprintln(os.Stderr, "usage: exprtree dump <file>")
		return exitUsage
	}

	source, filename, exitCode := readSource(file, false)
	if exitCode != 0 {
		return exitCode
	}
	out, err := runtime.New().Dump(source, filename)
	if err != nil {
		var diagErr *runtime.DiagnosticError
		if errors.As(err, &diagErr) {
			fmt.Fprintln(os.Stderr, diagnostics.FormatDiagnostics(diagErr.Diagnostics, false))
		} else {
			fmt.Fprintln(os.Stderr, err)
		}
		return exitDiagnostic
	}
	fmt.Print(out)
	return exitOK
}

func cmdTrace(args []string) int {
	var file string
	textOutput := false

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--json":
			textOutput = false
		case "--text":
			textOutput = true
		default:
			if !strings.HasPrefix(args[i], "-") {
				file = args[i]
			}
		}
	}

	if file == "" {
		fmt.Fprintln(os.Stderr, "usage: exprtree trace <file.jsonl> [--json|--text]")
		return exitUsage
	}

	f, err := os.Open(file)
	if err != nil {
		printDiag(diagnostics.EIO, fmt.Sprintf("cannot read file: %s", file), false)
		return exitUsage
	}
	defer f.Close()

	summary := computeTraceSummary(f)
	if textOutput {
		printTraceSummaryText(os.Stdout, summary)
	} else {
		b, _ := json.Marshal(summary)
		fmt.Println(string(b))
	}
	return exitOK
}

func cmdRepl(args []string) int {
	verbose := false
	for _, arg := range args {
		if arg == "--verbose" {
			verbose = true
		}
	}

	cfg, exitCode := loadConfig(true)
	if exitCode != 0 {
		return exitCode
	}
	opts := []runtime.Option{runtime.WithConfig(cfg), runtime.WithOutput(os.Stdout)}
	if verbose {
		opts = append(opts, runtime.WithLogger(debugLogger()))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	fmt.Println("exprtree REPL. Type :help for commands, :quit to leave.")
	session := runtime.New(opts...).NewSession()
	if err := repl.New(session, repl.NewTerminal(), os.Stdout).Run(ctx); err != nil {
		return exitBudget
	}
	return exitOK
}

func cmdHistory(args []string) int {
	limit := 20
	var runID int64
	asJSON := false

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--limit", "--run":
			if i+1 >= len(args) {
				fmt.Fprintf(os.Stderr, "%s requires a value\n", args[i])
				return exitUsage
			}
			n, err := strconv.ParseInt(args[i+1], 10, 64)
			if err != nil {
				fmt.Fprintf(os.Stderr, "%s: invalid number %q\n", args[i], args[i+1])
				return exitUsage
			}
			if args[i] == "--limit" {
				limit = int(n)
			} else {
				runID = n
			}
			i++
		case "--json":
			asJSON = true
		}
	}

	cfg, exitCode := loadConfig(!asJSON)
	if exitCode != 0 {
		return exitCode
	}
	ctx := context.Background()
	st, code := openStore(ctx, cfg, !asJSON)
	if code != 0 {
		return code
	}
	defer st.Close()

	if runID != 0 {
		vars, err := st.RunVariables(ctx, runID)
		if err != nil {
			printDiag(diagnostics.EStore, err.Error(), !asJSON)
			return exitUsage
		}
		if asJSON {
			b, _ := json.Marshal(vars)
			fmt.Println(string(b))
			return exitOK
		}
		for _, name := range sortedNames(vars) {
			fmt.Printf("%s = %d\n", name, vars[name])
		}
		return exitOK
	}

	runs, err := st.ListRuns(ctx, limit)
	if err != nil {
		printDiag(diagnostics.EStore, err.Error(), !asJSON)
		return exitUsage
	}
	if asJSON {
		b, _ := json.Marshal(runs)
		fmt.Println(string(b))
		return exitOK
	}
	printRuns(os.Stdout, runs)
	return exitOK
}

func cmdConfig(args []string) int {
	cfg, exitCode := loadConfig(true)
	if exitCode != 0 {
		return exitCode
	}
	if cfg.Path != "" {
		fmt.Printf("# %s\n", cfg.Path)
	} else {
		fmt.Println("# defaults")
	}
	out, err := cfg.Marshal()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitUsage
	}
	fmt.Print(string(out))
	return exitOK
}

func cmdHelp(args []string) int {
	showIndex := false
	topic := ""
	for _, arg := range args {
		if arg == "--index" {
			showIndex = true
		} else if !strings.HasPrefix(arg, "-") {
			topic = arg
		}
	}

	if showIndex {
		if topic != "" && topic != "builtins" {
			fmt.Fprintf(os.Stderr, "error: --index is only supported for the builtins topic\n")
			return exitUsage
		}
		fmt.Print(help.BuiltinIndex())
		return exitOK
	}

	if topic == "" {
		fmt.Print(help.QUICKREF)
		return exitOK
	}

	_, content, err := help.MatchTopic(topic)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s\nAvailable topics: %s\n", err, strings.Join(help.TopicList, ", "))
		return exitUsage
	}
	fmt.Print(content)
	return exitOK
}

func readSource(file string, pretty bool) ([]byte, string, int) {
	if file == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error reading stdin: %s\n", err)
			return nil, "", exitUsage
		}
		return data, "<stdin>", 0
	}

	source, err := os.ReadFile(file)
	if err != nil {
		printDiag(diagnostics.EIO, fmt.Sprintf("cannot read file: %s", file), pretty)
		return nil, "", exitUsage
	}
	return source, file, 0
}

func loadConfig(pretty bool) (*config.Config, int) {
	cwd, _ := os.Getwd()
	cfg, err := config.Load(cwd)
	if err != nil {
		printDiag(diagnostics.EConfig, err.Error(), pretty)
		return nil, exitUsage
	}
	return cfg, 0
}

func openStore(ctx context.Context, cfg *config.Config, pretty bool) (*store.Store, int) {
	sc, err := cfg.HistoryStore()
	if err != nil {
		printDiag(diagnostics.EStore, err.Error(), pretty)
		return nil, exitUsage
	}
	st, err := store.Open(sc.Driver, sc.DSN)
	if err != nil {
		printDiag(diagnostics.EStore, err.Error(), pretty)
		return nil, exitUsage
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		printDiag(diagnostics.EStore, err.Error(), pretty)
		return nil, exitUsage
	}
	return st, 0
}

func printDiag(code, msg string, pretty bool) {
	diag := diagnostics.MakeDiag(code, msg, nil, "")
	fmt.Fprintln(os.Stderr, diagnostics.FormatDiagnostics([]diagnostics.Diagnostic{diag}, pretty))
}

func exitCodeForDiag(code string) int {
	switch code {
	case diagnostics.EBudget, diagnostics.ECancelled:
		return exitBudget
	case diagnostics.EIO:
		return exitUsage
	default:
		return exitRuntime
	}
}

func debugLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func printRuns(w io.Writer, runs []store.Run) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "no recorded runs")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTARTED\tPROGRAM\tSTATUS\tVALUE\tITERATIONS\tCALLS\tMS")
	for _, r := range runs {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%d\t%d\t%d\t%d\n",
			r.ID, r.StartedAt.Format("2006-01-02 15:04:05"), r.Program, r.Status,
			r.Value, r.Iterations, r.Calls, r.DurationMs)
	}
	tw.Flush()
}
