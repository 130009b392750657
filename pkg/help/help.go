// Package help holds the CLI reference texts.
package help

import (
	"fmt"
	"strings"

	"github.com/thomasrohde/exprtree/pkg/stdlib"
)

// QUICKREF is printed by `exprtree help` with no topic.
const QUICKREF = `exprtree v0.1 - tree-walking evaluator for integer programs

Programs are YAML (or JSON) trees. A document is a list of statements or a
mapping {name, budget, program}. Run one with:

  exprtree run countdown.yaml

Commands:
  run <file>       decode, check and execute a program
  check <file>     report diagnostics without running
  fmt <file>       print the program as infix pseudo-source
  dump <file>      print the decoded tree
  trace <file>     summarise a trace written by run --trace
  repl             evaluate statements interactively
  history          list recorded runs
  config           show the effective configuration
  help [topic]     show a help topic

Topics: syntax, semantics, functions, builtins, budget, diagnostics, repl, config, examples
`

// TopicList is the display order of the help topics.
var TopicList = []string{
	"syntax", "semantics", "functions", "builtins", "budget",
	"diagnostics", "repl", "config", "examples",
}

// Topics maps topic names to their text.
var Topics = map[string]string{
	"syntax": `NODE SYNTAX

  42                          Number
  x                           Variable (identifier scalar)
  num: 42                     Number, explicit form
  var: x                      Variable, explicit form
  assign: {name: x, value: N} Assignment
  plus|minus|mul|div: [L, R]  arithmetic
  eq|ne|lt|gt: [L, R]         comparison, yields 1 or 0
  if: {cond: C, then: N}
  ifelse: {cond: C, then: N, else: N}
  while: {cond: C, body: [...]}
  print: N                    writes "> value"
  def: {name: f, params: [a, b], body: [...]}
  call: {name: f, args: [...]}

Every node is a single-key mapping except the two scalar shorthands.
`,

	"semantics": `SEMANTICS

Values are 64-bit signed integers; arithmetic wraps on overflow.
Division truncates toward zero; dividing by zero is E_ARITH.
Conditions are true when non-zero.
Assignment, If, IfElse, While, Print and function definitions yield 0.
An If whose condition is false yields 0 without evaluating its body.
Reading a variable that was never assigned is E_UNDEFINED_VAR.
There is one global environment shared by the whole program.
`,

	"functions": `FUNCTIONS

  def: {name: add, params: [a, b], body: [{plus: [a, b]}]}
  call: {name: add, args: [1, 2]}

A call evaluates its arguments left to right, then binds each parameter in
the global environment. Bindings are not restored when the call returns,
so parameters are visible (and overwrite same-named variables) afterwards.
The call yields the value of the last body statement, or 0 for an empty
body. Defining a name again replaces the earlier definition.
A call with the wrong number of arguments is E_ARITY; a call to an unknown
name is E_UNKNOWN_FN. User functions shadow builtins of the same name.
`,

	"builtins": `BUILTINS

Host functions reachable through call when no user function has the name.
Disable them with "builtins: false" in the config file.
Run "exprtree help builtins --index" for the full list.
`,

	"budget": `BUDGET

Limits come from the config file and from the program's budget mapping;
the stricter value of each applies.

  budget:
    maxIterations: 1000   total while-loop iterations
    timeMs: 500           wall-clock time
    maxCallDepth: 64      nested calls (default 1000)
    maxOutputLines: 100   print statements

Exceeding a limit stops the run with E_BUDGET (exit code 3).
`,

	"diagnostics": `DIAGNOSTICS

  E_FIXTURE        program document could not be decoded
  E_AST            malformed tree (nil child, empty name, unknown operator)
  E_DUP_PARAM      repeated parameter name
  E_UNBOUND        variable read but never assigned
  E_UNKNOWN_FN     call to an undefined function
  E_ARITY          wrong number of arguments
  E_UNDEFINED_VAR  variable read before assignment at runtime
  E_ARITH          division by zero
  E_FN             builtin failed
  E_BUDGET         resource limit exceeded
  E_CANCELLED      evaluation cancelled
  E_IO             file or output error
  E_CONFIG         invalid config file
  E_STORE          run history could not be written

"check" reports every diagnostic. "run" stops only on E_FIXTURE and E_AST;
E_DUP_PARAM, E_UNBOUND, E_UNKNOWN_FN, E_ARITY and a literal division by
zero are hazards, logged as warnings with --verbose, that fail only if the
node is actually evaluated.

Exit codes: 0 ok, 1 usage or I/O, 2 diagnostics, 3 budget or cancel,
4 runtime error.
`,

	"repl": `REPL

Each line is one statement in flow YAML:

  exprtree> {assign: {name: x, value: 4}}
  = 0
  exprtree> {print: {mul: [x, x]}}
  > 16

Commands: :vars :funcs :list :reset :help :quit
State persists until :reset.
`,

	"config": `CONFIG

Loaded from .exprtree.yaml in the current directory, else
~/.exprtree/config.yaml, else defaults. Unknown keys are errors.

  budget: {maxIterations: 10000, timeMs: 2000}
  builtins: true
  store:
    driver: sqlite      # sqlite, postgres or mysql
    dsn: history.db

Without a store, "run --record" writes to ~/.exprtree/history.db.
`,

	"examples": `EXAMPLES

Countdown:

  - assign: {name: n, value: 3}
  - while:
      cond: {gt: [n, 0]}
      body:
        - print: n
        - assign: {name: n, value: {minus: [n, 1]}}

Factorial:

  - def:
      name: fact
      params: [n]
      body:
        - ifelse:
            cond: {lt: [n, 2]}
            then: 1
            else: {mul: [n, {call: {name: fact, args: [{minus: [n, 1]}]}}]}
  - print: {call: {name: fact, args: [5]}}
`,
}

// MatchTopic resolves an exact topic name or a unique prefix.
func MatchTopic(query string) (string, string, error) {
	if content, ok := Topics[query]; ok {
		return query, content, nil
	}
	var matches []string
	if query != "" {
		for _, name := range TopicList {
			if strings.HasPrefix(name, query) {
				matches = append(matches, name)
			}
		}
	}
	switch len(matches) {
	case 0:
		return "", "", fmt.Errorf("unknown help topic '%s'", query)
	case 1:
		return matches[0], Topics[matches[0]], nil
	}
	return "", "", fmt.Errorf("ambiguous help topic '%s' (matches %s)", query, strings.Join(matches, ", "))
}

// BuiltinIndex lists the default builtins with their arity and doc line.
func BuiltinIndex() string {
	reg := stdlib.NewRegistry()
	stdlib.RegisterDefaults(reg)

	names := reg.Names()

	var b strings.Builder
	b.WriteString("BUILTINS\n\n")
	for _, name := range names {
		fn := reg.Get(name)
		arity := fmt.Sprintf("%d", fn.Arity)
		if fn.Arity < 0 {
			arity = "n"
		}
		fmt.Fprintf(&b, "  %-6s /%-2s %s\n", name, arity, fn.Doc)
	}
	fmt.Fprintf(&b, "\nTotal: %d functions\n", len(names))
	return b.String()
}
